package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
	"github.com/azimhamza/safe-replies-backend-sub001/pkg/textnorm"
)

const (
	watchlistCollection  = "watchlist_entries"
	whitelistCollection  = "whitelist_entries"
	filtersCollection    = "custom_filters"
	detectionsCollection = "detection_events"
)

// ListStore reads and writes the owner-scoped configuration lists:
// watchlist, whitelist and custom filters, plus the detection event log.
type ListStore struct {
	db *mongo.Database
}

func NewListStore(db *mongo.Database) *ListStore {
	return &ListStore{db: db}
}

func ownerFilter(owner models.OwnerRef) bson.M {
	if owner.IsClient() {
		return bson.M{"owner_client_id": owner.ClientID}
	}
	return bson.M{"owner_user_id": owner.UserID}
}

// IsCommenterWhitelisted checks account-scoped entries first, then the
// owner's global entries (empty account_id).
func (s *ListStore) IsCommenterWhitelisted(ctx context.Context, owner models.OwnerRef, accountID, commenterID, username string) (bool, error) {
	filter := ownerFilter(owner)
	filter["account_id"] = bson.M{"$in": bson.A{accountID, ""}}

	identity := bson.A{}
	if commenterID != "" {
		identity = append(identity, bson.M{"commenter_id": commenterID})
	}
	if u := textnorm.NormalizeHandle(username); u != "" {
		identity = append(identity, bson.M{"commenter_username": u})
		identity = append(identity, bson.M{"commenter_username": "@" + u})
	}
	if len(identity) == 0 {
		return false, nil
	}
	filter["$or"] = identity

	count, err := s.db.Collection(whitelistCollection).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("checking commenter whitelist: %w", err)
	}
	return count > 0, nil
}

// IsIdentifierWhitelisted checks an extracted identifier (payment handle,
// phone, url) against the owner's identifier whitelist.
func (s *ListStore) IsIdentifierWhitelisted(ctx context.Context, owner models.OwnerRef, accountID, identifier string) (bool, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return false, nil
	}

	filter := ownerFilter(owner)
	filter["account_id"] = bson.M{"$in": bson.A{accountID, ""}}
	filter["identifier"] = identifier

	count, err := s.db.Collection(whitelistCollection).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("checking identifier whitelist: %w", err)
	}
	return count > 0, nil
}

// WatchlistMatches returns watchlist entries matching the commenter's id or
// username, including the alternate @-prefix form.
func (s *ListStore) WatchlistMatches(ctx context.Context, owner models.OwnerRef, commenterID, username string) ([]models.WatchlistEntry, error) {
	identity := bson.A{}
	if commenterID != "" {
		identity = append(identity, bson.M{"commenter_id": commenterID})
	}
	if u := textnorm.NormalizeHandle(username); u != "" {
		identity = append(identity, bson.M{"commenter_username": u})
		identity = append(identity, bson.M{"commenter_username": "@" + u})
	}
	if len(identity) == 0 {
		return nil, nil
	}

	filter := ownerFilter(owner)
	filter["$or"] = identity

	cursor, err := s.db.Collection(watchlistCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("matching watchlist: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.WatchlistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decoding watchlist entries: %w", err)
	}
	return entries, nil
}

// WatchlistMentions returns entries whose username appears inside the comment
// text. Matching happens client-side on the normalized text; owner watchlists
// are small enough that a full fetch beats a per-entry query.
func (s *ListStore) WatchlistMentions(ctx context.Context, owner models.OwnerRef, text string) ([]models.WatchlistEntry, error) {
	cursor, err := s.db.Collection(watchlistCollection).Find(ctx, ownerFilter(owner))
	if err != nil {
		return nil, fmt.Errorf("loading watchlist: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.WatchlistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decoding watchlist entries: %w", err)
	}

	lower := strings.ToLower(text)
	var mentioned []models.WatchlistEntry
	for _, e := range entries {
		u := textnorm.NormalizeHandle(e.CommenterUsername)
		if u == "" {
			continue
		}
		if strings.Contains(lower, u) || strings.Contains(lower, "@"+u) {
			mentioned = append(mentioned, e)
		}
	}
	return mentioned, nil
}

// EnabledFilters returns the owner's enabled custom filters that apply to the
// account, account-specific and global alike.
func (s *ListStore) EnabledFilters(ctx context.Context, owner models.OwnerRef, accountID string) ([]models.CustomFilter, error) {
	filter := ownerFilter(owner)
	filter["enabled"] = true
	filter["account_id"] = bson.M{"$in": bson.A{accountID, ""}}

	cursor, err := s.db.Collection(filtersCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("loading custom filters: %w", err)
	}
	defer cursor.Close(ctx)

	var filters []models.CustomFilter
	if err = cursor.All(ctx, &filters); err != nil {
		return nil, fmt.Errorf("decoding custom filters: %w", err)
	}
	return filters, nil
}

// RecordDetection appends a watchlist hit to the detection log.
func (s *ListStore) RecordDetection(ctx context.Context, event *models.DetectionEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	res, err := s.db.Collection(detectionsCollection).InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("recording detection: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		event.ID = id
	}
	return nil
}

// CRUD surface for the admin API.

func (s *ListStore) AddWatchlistEntry(ctx context.Context, entry *models.WatchlistEntry) error {
	entry.CreatedAt = time.Now()
	entry.CommenterUsername = textnorm.NormalizeHandle(entry.CommenterUsername)
	res, err := s.db.Collection(watchlistCollection).InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("adding watchlist entry: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		entry.ID = id
	}
	return nil
}

func (s *ListStore) RemoveWatchlistEntry(ctx context.Context, owner models.OwnerRef, id primitive.ObjectID) (bool, error) {
	filter := ownerFilter(owner)
	filter["_id"] = id
	res, err := s.db.Collection(watchlistCollection).DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("removing watchlist entry: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *ListStore) ListWatchlist(ctx context.Context, owner models.OwnerRef) ([]models.WatchlistEntry, error) {
	cursor, err := s.db.Collection(watchlistCollection).Find(ctx, ownerFilter(owner),
		options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("listing watchlist: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.WatchlistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decoding watchlist entries: %w", err)
	}
	return entries, nil
}

func (s *ListStore) AddWhitelistEntry(ctx context.Context, entry *models.WhitelistEntry) error {
	entry.CreatedAt = time.Now()
	entry.CommenterUsername = textnorm.NormalizeHandle(entry.CommenterUsername)
	entry.Identifier = strings.ToLower(strings.TrimSpace(entry.Identifier))
	res, err := s.db.Collection(whitelistCollection).InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("adding whitelist entry: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		entry.ID = id
	}
	return nil
}

func (s *ListStore) RemoveWhitelistEntry(ctx context.Context, owner models.OwnerRef, id primitive.ObjectID) (bool, error) {
	filter := ownerFilter(owner)
	filter["_id"] = id
	res, err := s.db.Collection(whitelistCollection).DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("removing whitelist entry: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *ListStore) ListWhitelist(ctx context.Context, owner models.OwnerRef) ([]models.WhitelistEntry, error) {
	cursor, err := s.db.Collection(whitelistCollection).Find(ctx, ownerFilter(owner),
		options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("listing whitelist: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.WhitelistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decoding whitelist entries: %w", err)
	}
	return entries, nil
}

func (s *ListStore) AddFilter(ctx context.Context, filter *models.CustomFilter) error {
	filter.CreatedAt = time.Now()
	res, err := s.db.Collection(filtersCollection).InsertOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("adding custom filter: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		filter.ID = id
	}
	return nil
}

func (s *ListStore) UpdateFilter(ctx context.Context, owner models.OwnerRef, id primitive.ObjectID, update bson.M) (bool, error) {
	filter := ownerFilter(owner)
	filter["_id"] = id
	res, err := s.db.Collection(filtersCollection).UpdateOne(ctx, filter, bson.M{"$set": update})
	if err != nil {
		return false, fmt.Errorf("updating custom filter: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *ListStore) RemoveFilter(ctx context.Context, owner models.OwnerRef, id primitive.ObjectID) (bool, error) {
	filter := ownerFilter(owner)
	filter["_id"] = id
	res, err := s.db.Collection(filtersCollection).DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("removing custom filter: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *ListStore) ListFilters(ctx context.Context, owner models.OwnerRef) ([]models.CustomFilter, error) {
	cursor, err := s.db.Collection(filtersCollection).Find(ctx, ownerFilter(owner),
		options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("listing custom filters: %w", err)
	}
	defer cursor.Close(ctx)

	var filters []models.CustomFilter
	if err = cursor.All(ctx, &filters); err != nil {
		return nil, fmt.Errorf("decoding custom filters: %w", err)
	}
	return filters, nil
}
