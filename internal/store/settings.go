package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

const settingsCollection = "moderation_settings"

// SettingsStore persists the scoped moderation settings documents the
// resolver layers together.
type SettingsStore struct {
	db *mongo.Database
}

func NewSettingsStore(db *mongo.Database) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) find(ctx context.Context, filter bson.M) (*models.ModerationSettings, bool, error) {
	var doc models.ModerationSettings
	err := s.db.Collection(settingsCollection).FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading settings: %w", err)
	}
	return &doc, true, nil
}

func (s *SettingsStore) AccountSettings(ctx context.Context, accountID string) (*models.ModerationSettings, bool, error) {
	return s.find(ctx, bson.M{"scope": models.SettingsScopeAccount, "account_id": accountID})
}

func (s *SettingsStore) ClientSettings(ctx context.Context, clientID primitive.ObjectID) (*models.ModerationSettings, bool, error) {
	return s.find(ctx, bson.M{"scope": models.SettingsScopeClient, "owner_client_id": clientID})
}

func (s *SettingsStore) OwnerSettings(ctx context.Context, owner models.OwnerRef) (*models.ModerationSettings, bool, error) {
	filter := bson.M{"scope": models.SettingsScopeOwner}
	if owner.IsClient() {
		filter["owner_client_id"] = owner.ClientID
	} else {
		filter["owner_user_id"] = owner.UserID
	}
	return s.find(ctx, filter)
}

// Upsert replaces the document at its scope, keyed by scope plus the
// identifying field for that scope.
func (s *SettingsStore) Upsert(ctx context.Context, doc *models.ModerationSettings) error {
	now := time.Now()
	doc.UpdatedAt = now

	filter := bson.M{"scope": doc.Scope}
	switch doc.Scope {
	case models.SettingsScopeAccount:
		filter["account_id"] = doc.AccountID
	case models.SettingsScopeClient:
		filter["owner_client_id"] = doc.OwnerClientID
	case models.SettingsScopeOwner:
		if doc.OwnerClientID != nil {
			filter["owner_client_id"] = doc.OwnerClientID
		} else {
			filter["owner_user_id"] = doc.OwnerUserID
		}
	default:
		return fmt.Errorf("unknown settings scope %q", doc.Scope)
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	var fields bson.M
	if err = bson.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	delete(fields, "_id")
	delete(fields, "created_at")

	update := bson.M{
		"$set":         fields,
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err = s.db.Collection(settingsCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
