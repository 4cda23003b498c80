package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WatchlistEntry is an owner-maintained known-bad identity. Entries with
// AutoDelete set cause unconditional deletion of the commenter's comments;
// all entries also trigger deletion when the identity is mentioned by name
// inside another comment's body.
type WatchlistEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`

	OwnerUserID   *primitive.ObjectID `bson:"owner_user_id,omitempty" json:"owner_user_id,omitempty"`
	OwnerClientID *primitive.ObjectID `bson:"owner_client_id,omitempty" json:"owner_client_id,omitempty"`

	CommenterID       string `bson:"commenter_id,omitempty" json:"commenter_id,omitempty"`
	CommenterUsername string `bson:"commenter_username" json:"commenter_username"`
	AutoDelete        bool   `bson:"auto_delete" json:"auto_delete"`
	Reason            string `bson:"reason,omitempty" json:"reason,omitempty"`
}

// WhitelistEntry exempts a commenter (or an extracted identifier such as the
// owner's own payment handle) from moderation. Scoped to a specific account
// or global for the owner when AccountID is empty.
type WhitelistEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`

	OwnerUserID   *primitive.ObjectID `bson:"owner_user_id,omitempty" json:"owner_user_id,omitempty"`
	OwnerClientID *primitive.ObjectID `bson:"owner_client_id,omitempty" json:"owner_client_id,omitempty"`

	AccountID         string `bson:"account_id,omitempty" json:"account_id,omitempty"`
	CommenterID       string `bson:"commenter_id,omitempty" json:"commenter_id,omitempty"`
	CommenterUsername string `bson:"commenter_username,omitempty" json:"commenter_username,omitempty"`
	Identifier        string `bson:"identifier,omitempty" json:"identifier,omitempty"`
}

// CustomFilter is an owner-defined moderation rule. Literal filters match by
// category or by substring against Prompt; Semantic filters describe the
// content to catch and are matched in batch by the classifier. Exactly one of
// the auto flags should be set; precedence when several filters match is
// auto-delete > auto-hide > auto-flag.
type CustomFilter struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`

	OwnerUserID   *primitive.ObjectID `bson:"owner_user_id,omitempty" json:"owner_user_id,omitempty"`
	OwnerClientID *primitive.ObjectID `bson:"owner_client_id,omitempty" json:"owner_client_id,omitempty"`

	// Empty AccountID applies the filter to all of the owner's accounts.
	AccountID string `bson:"account_id,omitempty" json:"account_id,omitempty"`

	Enabled  bool     `bson:"enabled" json:"enabled"`
	Category Category `bson:"category,omitempty" json:"category,omitempty"`
	Prompt   string   `bson:"prompt" json:"prompt"`
	Semantic bool     `bson:"semantic" json:"semantic"`

	AutoDelete bool `bson:"auto_delete" json:"auto_delete"`
	AutoHide   bool `bson:"auto_hide" json:"auto_hide"`
	AutoFlag   bool `bson:"auto_flag" json:"auto_flag"`
}

// DetectionEvent records a single watchlist hit: either the watchlisted
// identity commented, or was mentioned by name in someone else's comment.
type DetectionEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`

	WatchlistEntryID primitive.ObjectID `bson:"watchlist_entry_id" json:"watchlist_entry_id"`
	AccountID        string             `bson:"account_id" json:"account_id"`
	CommentID        string             `bson:"comment_id" json:"comment_id"`
	Kind             string             `bson:"kind" json:"kind"` // "commenter_match" or "username_mention"
}
