package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SuspiciousAccount is the durable aggregate for one (owning account,
// commenter) pair. Created lazily on the first non-owner comment, updated
// after every moderation decision, never hard-deleted.
//
// AutoHideEnabled and AutoDeleteEnabled are mutually exclusive: enabling one
// clears the other. IsHidden controls dashboard visibility only and is
// distinct from platform hiding; a record becomes visible once it has any
// accumulated violation and is never forcibly re-hidden after that.
type SuspiciousAccount struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	AccountID         string `bson:"account_id" json:"account_id"`
	CommenterID       string `bson:"commenter_id" json:"commenter_id"`
	CommenterUsername string `bson:"commenter_username" json:"commenter_username"`

	CategoryCounts  map[string]int `bson:"category_counts,omitempty" json:"category_counts,omitempty"`
	TotalComments   int            `bson:"total_comments" json:"total_comments"`
	FlaggedComments int            `bson:"flagged_comments" json:"flagged_comments"`
	DeletedComments int            `bson:"deleted_comments" json:"deleted_comments"`

	HighestRiskScore int     `bson:"highest_risk_score" json:"highest_risk_score"`
	AverageRiskScore float64 `bson:"average_risk_score" json:"average_risk_score"`

	FirstSeenAt time.Time `bson:"first_seen_at" json:"first_seen_at"`
	LastSeenAt  time.Time `bson:"last_seen_at" json:"last_seen_at"`

	AutoHideEnabled   bool   `bson:"auto_hide_enabled" json:"auto_hide_enabled"`
	AutoDeleteEnabled bool   `bson:"auto_delete_enabled" json:"auto_delete_enabled"`
	IsBlocked         bool   `bson:"is_blocked" json:"is_blocked"`
	BlockedReason     string `bson:"blocked_reason,omitempty" json:"blocked_reason,omitempty"`
	IsWatchlisted     bool   `bson:"is_watchlisted" json:"is_watchlisted"`
	IsPublicThreat    bool   `bson:"is_public_threat" json:"is_public_threat"`
	IsHidden          bool   `bson:"is_hidden" json:"is_hidden"`
}

// CategoryCount returns the accumulated count for one category.
func (s *SuspiciousAccount) CategoryCount(c Category) int {
	if s.CategoryCounts == nil {
		return 0
	}
	return s.CategoryCounts[string(c)]
}

// ViolationCount is the number of comments that drew any moderation action.
func (s *SuspiciousAccount) ViolationCount() int {
	return s.FlaggedComments + s.DeletedComments
}

// CommentsPerDay is the commenter's posting velocity since first seen.
func (s *SuspiciousAccount) CommentsPerDay(now time.Time) float64 {
	if s.FirstSeenAt.IsZero() || s.TotalComments == 0 {
		return 0
	}
	days := now.Sub(s.FirstSeenAt).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(s.TotalComments) / days
}
