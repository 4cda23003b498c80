package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommentStatus is the locally authoritative state of a moderated comment.
type CommentStatus string

const (
	CommentStatusActive  CommentStatus = "active"
	CommentStatusFlagged CommentStatus = "flagged"
	CommentStatusHidden  CommentStatus = "hidden"
	CommentStatusDeleted CommentStatus = "deleted"
)

// Comment is the stored record of a platform comment and the moderation
// outcome it received. PlatformActionFailed marks the case where the local
// state was updated but the platform hide/delete call errored, so operators
// can retry the platform side.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	AccountID         string `bson:"account_id" json:"account_id"`
	PostID            string `bson:"post_id" json:"post_id"`
	PlatformCommentID string `bson:"platform_comment_id" json:"platform_comment_id"`

	CommenterID       string `bson:"commenter_id" json:"commenter_id"`
	CommenterUsername string `bson:"commenter_username" json:"commenter_username"`
	Text              string `bson:"text" json:"text"`

	// Owner of the account: a user or a managed client, never both.
	OwnerUserID   *primitive.ObjectID `bson:"owner_user_id,omitempty" json:"owner_user_id,omitempty"`
	OwnerClientID *primitive.ObjectID `bson:"owner_client_id,omitempty" json:"owner_client_id,omitempty"`

	Status               CommentStatus `bson:"status" json:"status"`
	Category             Category      `bson:"category,omitempty" json:"category,omitempty"`
	RiskScore            int           `bson:"risk_score" json:"risk_score"`
	Reason               string        `bson:"reason,omitempty" json:"reason,omitempty"`
	PlatformActionFailed bool          `bson:"platform_action_failed,omitempty" json:"platform_action_failed,omitempty"`
}
