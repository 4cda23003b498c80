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

const commentsCollection = "comments"

// CommentStore is the MongoDB-backed locally authoritative comment state.
type CommentStore struct {
	db *mongo.Database
}

func NewCommentStore(db *mongo.Database) *CommentStore {
	return &CommentStore{db: db}
}

// SaveModerated upserts the comment record keyed by platform comment id, so
// re-moderation of the same comment updates in place.
func (s *CommentStore) SaveModerated(ctx context.Context, comment *models.Comment) error {
	filter := bson.M{
		"account_id":          comment.AccountID,
		"platform_comment_id": comment.PlatformCommentID,
	}
	update := bson.M{
		"$set": bson.M{
			"updated_at":             time.Now(),
			"post_id":                comment.PostID,
			"commenter_id":           comment.CommenterID,
			"commenter_username":     comment.CommenterUsername,
			"text":                   comment.Text,
			"owner_user_id":          comment.OwnerUserID,
			"owner_client_id":        comment.OwnerClientID,
			"status":                 comment.Status,
			"category":               comment.Category,
			"risk_score":             comment.RiskScore,
			"reason":                 comment.Reason,
			"platform_action_failed": comment.PlatformActionFailed,
		},
		"$setOnInsert": bson.M{
			"created_at": comment.CreatedAt,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := s.db.Collection(commentsCollection).UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("upserting comment: %w", err)
	}
	return nil
}

// MarkHidden settles local state after a hide attempt. Written regardless of
// the platform outcome; platformFailed records that the platform call errored.
func (s *CommentStore) MarkHidden(ctx context.Context, accountID, platformCommentID string, platformFailed bool) error {
	return s.markStatus(ctx, accountID, platformCommentID, models.CommentStatusHidden, platformFailed)
}

// MarkDeleted settles local state after a delete attempt.
func (s *CommentStore) MarkDeleted(ctx context.Context, accountID, platformCommentID string, platformFailed bool) error {
	return s.markStatus(ctx, accountID, platformCommentID, models.CommentStatusDeleted, platformFailed)
}

func (s *CommentStore) markStatus(ctx context.Context, accountID, platformCommentID string, status models.CommentStatus, platformFailed bool) error {
	filter := bson.M{
		"account_id":          accountID,
		"platform_comment_id": platformCommentID,
	}
	update := bson.M{
		"$set": bson.M{
			"updated_at":             time.Now(),
			"status":                 status,
			"platform_action_failed": platformFailed,
		},
		"$setOnInsert": bson.M{
			"created_at": time.Now(),
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := s.db.Collection(commentsCollection).UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("marking comment %s: %w", status, err)
	}
	return nil
}

// ListByCommenter returns the commenter's stored comments on one account,
// newest first. Used by the auto-hide/auto-delete backfill pass.
func (s *CommentStore) ListByCommenter(ctx context.Context, accountID, commenterID string) ([]models.Comment, error) {
	filter := bson.M{
		"account_id":   accountID,
		"commenter_id": commenterID,
	}

	findOptions := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.db.Collection(commentsCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer cursor.Close(ctx)

	var comments []models.Comment
	if err = cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("decoding comments: %w", err)
	}
	return comments, nil
}

// ListFlagged returns an account's comments awaiting review, for the
// dashboard queue.
func (s *CommentStore) ListFlagged(ctx context.Context, accountID string, limit int) ([]models.Comment, error) {
	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{
		"account_id": accountID,
		"status":     bson.M{"$in": []models.CommentStatus{models.CommentStatusFlagged, models.CommentStatusHidden}},
	}

	findOptions := options.Find().SetSort(bson.M{"updated_at": -1}).SetLimit(int64(limit))
	cursor, err := s.db.Collection(commentsCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("listing flagged comments: %w", err)
	}
	defer cursor.Close(ctx)

	var comments []models.Comment
	if err = cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("decoding comments: %w", err)
	}
	return comments, nil
}

// GetByPlatformID fetches one comment by its platform id, for manual
// re-moderation.
func (s *CommentStore) GetByPlatformID(ctx context.Context, accountID, platformCommentID string) (*models.Comment, bool, error) {
	var comment models.Comment
	err := s.db.Collection(commentsCollection).FindOne(ctx, bson.M{
		"account_id":          accountID,
		"platform_comment_id": platformCommentID,
	}).Decode(&comment)

	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetching comment: %w", err)
	}
	return &comment, true, nil
}
