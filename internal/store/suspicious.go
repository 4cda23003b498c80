package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/moderation"
)

const suspiciousCollection = "suspicious_accounts"

// SuspiciousAccountStore is the MongoDB-backed per-(account, commenter)
// aggregate. Counter updates go through server-side $inc/$max so concurrent
// evaluations drift at worst; they cannot lose a block transition.
type SuspiciousAccountStore struct {
	db *mongo.Database
}

func NewSuspiciousAccountStore(db *mongo.Database) *SuspiciousAccountStore {
	return &SuspiciousAccountStore{db: db}
}

// Find resolves a record by exact commenter id, then exact username, then
// the alternate @-prefix form, then a case-insensitive username scan.
func (s *SuspiciousAccountStore) Find(ctx context.Context, accountID, commenterID, username string) (*models.SuspiciousAccount, bool, error) {
	coll := s.db.Collection(suspiciousCollection)

	if commenterID != "" {
		if rec, found, err := s.findOne(ctx, bson.M{"account_id": accountID, "commenter_id": commenterID}); err != nil || found {
			return rec, found, err
		}
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, false, nil
	}

	if rec, found, err := s.findOne(ctx, bson.M{"account_id": accountID, "commenter_username": username}); err != nil || found {
		return rec, found, err
	}

	// Alternate @-prefix form: stored with "@" when the lookup has none, or
	// the other way around.
	alt := "@" + username
	if strings.HasPrefix(username, "@") {
		alt = strings.TrimPrefix(username, "@")
	}
	if rec, found, err := s.findOne(ctx, bson.M{"account_id": accountID, "commenter_username": alt}); err != nil || found {
		return rec, found, err
	}

	// Last resort: case-insensitive scan.
	pattern := "^" + regexp.QuoteMeta(strings.TrimPrefix(username, "@")) + "$"
	var rec models.SuspiciousAccount
	err := coll.FindOne(ctx, bson.M{
		"account_id":         accountID,
		"commenter_username": bson.M{"$regex": pattern, "$options": "i"},
	}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("suspicious account scan: %w", err)
	}
	return &rec, true, nil
}

func (s *SuspiciousAccountStore) findOne(ctx context.Context, filter bson.M) (*models.SuspiciousAccount, bool, error) {
	var rec models.SuspiciousAccount
	err := s.db.Collection(suspiciousCollection).FindOne(ctx, filter).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("suspicious account lookup: %w", err)
	}
	return &rec, true, nil
}

// Get fetches a record by id.
func (s *SuspiciousAccountStore) Get(ctx context.Context, id primitive.ObjectID) (*models.SuspiciousAccount, bool, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// ApplyUpdate upserts the aggregate and applies this decision's counter
// increments atomically, returning the post-update record. New records are
// created hidden; the tracker surfaces them once a violation accumulates.
func (s *SuspiciousAccountStore) ApplyUpdate(ctx context.Context, upd moderation.AccountUpdate) (*models.SuspiciousAccount, error) {
	now := time.Now()

	inc := bson.M{"total_comments": 1}
	if upd.Flagged {
		inc["flagged_comments"] = 1
	}
	if upd.Deleted {
		inc["deleted_comments"] = 1
	}
	if upd.Category != "" && upd.Category != models.CategoryBenign {
		inc["category_counts."+string(upd.Category)] = 1
	}

	update := bson.M{
		"$inc": inc,
		"$max": bson.M{"highest_risk_score": upd.RiskScore},
		"$set": bson.M{
			"updated_at":         now,
			"last_seen_at":       now,
			"commenter_username": upd.CommenterUsername,
		},
		"$setOnInsert": bson.M{
			"created_at":          now,
			"first_seen_at":       now,
			"account_id":          upd.AccountID,
			"commenter_id":        upd.CommenterID,
			"auto_hide_enabled":   false,
			"auto_delete_enabled": false,
			"is_blocked":          false,
			"is_watchlisted":      false,
			"is_public_threat":    false,
			"is_hidden":           true,
			"average_risk_score":  0.0,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var rec models.SuspiciousAccount
	err := s.db.Collection(suspiciousCollection).FindOneAndUpdate(ctx, bson.M{
		"account_id":   upd.AccountID,
		"commenter_id": upd.CommenterID,
	}, update, opts).Decode(&rec)
	if err != nil {
		return nil, fmt.Errorf("updating suspicious account: %w", err)
	}
	return &rec, nil
}

// SetBlocked marks the record blocked with a reason. Set-only: nothing in
// this store ever writes is_blocked back to false.
func (s *SuspiciousAccountStore) SetBlocked(ctx context.Context, id primitive.ObjectID, reason string) error {
	_, err := s.db.Collection(suspiciousCollection).UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"is_blocked":     true,
			"blocked_reason": reason,
			"updated_at":     time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("setting blocked: %w", err)
	}
	return nil
}

// SetAverageRisk writes the recomputed running average.
func (s *SuspiciousAccountStore) SetAverageRisk(ctx context.Context, id primitive.ObjectID, avg float64) error {
	_, err := s.db.Collection(suspiciousCollection).UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"average_risk_score": avg, "updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("setting average risk: %w", err)
	}
	return nil
}

// SetVisible surfaces the record in the dashboard. One-way by design; a
// surfaced record is never re-hidden automatically.
func (s *SuspiciousAccountStore) SetVisible(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.db.Collection(suspiciousCollection).UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"is_hidden": false, "updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("setting visible: %w", err)
	}
	return nil
}

// SetAutoFlags writes both auto flags in one update so their mutual
// exclusion can't be split by a concurrent writer.
func (s *SuspiciousAccountStore) SetAutoFlags(ctx context.Context, id primitive.ObjectID, autoHide, autoDelete bool) error {
	_, err := s.db.Collection(suspiciousCollection).UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"auto_hide_enabled":   autoHide,
			"auto_delete_enabled": autoDelete,
			"updated_at":          time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("setting auto flags: %w", err)
	}
	return nil
}

// List returns an account's visible suspicious records ordered by most
// recently seen, for the dashboard.
func (s *SuspiciousAccountStore) List(ctx context.Context, accountID string, includeHidden bool, limit int) ([]models.SuspiciousAccount, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{"account_id": accountID}
	if !includeHidden {
		filter["is_hidden"] = false
	}

	findOptions := options.Find().SetSort(bson.M{"last_seen_at": -1}).SetLimit(int64(limit))
	cursor, err := s.db.Collection(suspiciousCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("listing suspicious accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []models.SuspiciousAccount
	if err = cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decoding suspicious accounts: %w", err)
	}
	return recs, nil
}
