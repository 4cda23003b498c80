package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

const entitlementsCollection = "entitlements"

// Entitlement is an owner's stored monthly allowance for one feature.
type Entitlement struct {
	OwnerKey     string `bson:"owner_key" json:"owner_key"`
	Feature      string `bson:"feature" json:"feature"`
	MonthlyLimit int    `bson:"monthly_limit" json:"monthly_limit"`
	Unlimited    bool   `bson:"unlimited" json:"unlimited"`
}

// Service meters feature usage against monthly entitlements. Counters live
// in Redis keyed by calendar month; limits live in MongoDB with a configured
// default for owners without an entitlement document.
type Service struct {
	rdb          *redis.Client
	db           *mongo.Database
	defaultLimit int
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(rdb *redis.Client, db *mongo.Database, defaultLimit int, logger *zap.Logger) *Service {
	return &Service{
		rdb:          rdb,
		db:           db,
		defaultLimit: defaultLimit,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *Service) usageKey(owner models.OwnerRef, feature string) string {
	return fmt.Sprintf("billing:usage:%s:%s:%s", owner.Key(), feature, s.now().UTC().Format("2006-01"))
}

func (s *Service) limit(ctx context.Context, owner models.OwnerRef, feature string) (int, bool, error) {
	var ent Entitlement
	err := s.db.Collection(entitlementsCollection).FindOne(ctx, bson.M{
		"owner_key": owner.Key(),
		"feature":   feature,
	}).Decode(&ent)
	if err == mongo.ErrNoDocuments {
		return s.defaultLimit, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("loading entitlement: %w", err)
	}
	return ent.MonthlyLimit, ent.Unlimited, nil
}

// CheckFeatureAllowed reports whether the owner has remaining allowance this
// month. Errors propagate so the caller can decide its failure posture.
func (s *Service) CheckFeatureAllowed(ctx context.Context, owner models.OwnerRef, feature string) (bool, error) {
	limit, unlimited, err := s.limit(ctx, owner, feature)
	if err != nil {
		return false, err
	}
	if unlimited {
		return true, nil
	}
	if limit <= 0 {
		return false, nil
	}

	used, err := s.rdb.Get(ctx, s.usageKey(owner, feature)).Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading usage counter: %w", err)
	}
	if used >= limit {
		s.logger.Info("monthly limit reached",
			zap.String("owner", owner.Key()),
			zap.String("feature", feature),
			zap.Int("used", used),
			zap.Int("limit", limit))
		return false, nil
	}
	return true, nil
}

// Track adds usage to the owner's monthly counter. Keys expire well past the
// month boundary so late increments still land before cleanup.
func (s *Service) Track(ctx context.Context, owner models.OwnerRef, feature string, amount int) error {
	if amount <= 0 {
		return nil
	}
	key := s.usageKey(owner, feature)

	pipe := s.rdb.TxPipeline()
	pipe.IncrBy(ctx, key, int64(amount))
	pipe.Expire(ctx, key, 40*24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tracking usage: %w", err)
	}
	return nil
}

// Usage returns the owner's current month consumption and limit, for the
// dashboard.
func (s *Service) Usage(ctx context.Context, owner models.OwnerRef, feature string) (used, limit int, unlimited bool, err error) {
	limit, unlimited, err = s.limit(ctx, owner, feature)
	if err != nil {
		return 0, 0, false, err
	}

	used, err = s.rdb.Get(ctx, s.usageKey(owner, feature)).Int()
	if err == redis.Nil {
		return 0, limit, unlimited, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("reading usage counter: %w", err)
	}
	return used, limit, unlimited, nil
}

// SetEntitlement upserts an owner's monthly limit for a feature.
func (s *Service) SetEntitlement(ctx context.Context, ent Entitlement) error {
	_, err := s.db.Collection(entitlementsCollection).UpdateOne(ctx,
		bson.M{"owner_key": ent.OwnerKey, "feature": ent.Feature},
		bson.M{"$set": ent},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("saving entitlement: %w", err)
	}
	return nil
}
