package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

const accountsCollection = "managed_accounts"

// AccountStore persists the enrolled social media accounts.
type AccountStore struct {
	db *mongo.Database
}

func NewAccountStore(db *mongo.Database) *AccountStore {
	return &AccountStore{db: db}
}

// GetByPlatformID resolves an incoming webhook event's account.
func (s *AccountStore) GetByPlatformID(ctx context.Context, platformID string) (*models.ManagedAccount, bool, error) {
	var acc models.ManagedAccount
	err := s.db.Collection(accountsCollection).FindOne(ctx, bson.M{
		"platform_id": platformID,
		"active":      true,
	}).Decode(&acc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolving account: %w", err)
	}
	return &acc, true, nil
}

// GetByAccountID resolves an account by its internal id.
func (s *AccountStore) GetByAccountID(ctx context.Context, accountID string) (*models.ManagedAccount, bool, error) {
	var acc models.ManagedAccount
	err := s.db.Collection(accountsCollection).FindOne(ctx, bson.M{"account_id": accountID}).Decode(&acc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolving account: %w", err)
	}
	return &acc, true, nil
}

// Upsert enrolls or updates a managed account, keyed by its internal id.
func (s *AccountStore) Upsert(ctx context.Context, acc *models.ManagedAccount) error {
	now := time.Now()
	acc.UpdatedAt = now

	_, err := s.db.Collection(accountsCollection).UpdateOne(ctx,
		bson.M{"account_id": acc.AccountID},
		bson.M{
			"$set": bson.M{
				"platform_id":     acc.PlatformID,
				"username":        acc.Username,
				"owner_user_id":   acc.OwnerUserID,
				"owner_client_id": acc.OwnerClientID,
				"access_token":    acc.AccessToken,
				"active":          acc.Active,
				"updated_at":      now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("saving managed account: %w", err)
	}
	return nil
}

// List returns all enrolled accounts.
func (s *AccountStore) List(ctx context.Context) ([]models.ManagedAccount, error) {
	cursor, err := s.db.Collection(accountsCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("listing managed accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accs []models.ManagedAccount
	if err = cursor.All(ctx, &accs); err != nil {
		return nil, fmt.Errorf("decoding managed accounts: %w", err)
	}
	return accs, nil
}
