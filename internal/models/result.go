package models

import "time"

// Action is the terminal outcome of one moderation evaluation. Hides surface
// as ActionFlagged with the comment's platform visibility toggled off.
type Action string

const (
	ActionBenign  Action = "benign"
	ActionFlagged Action = "flagged"
	ActionDeleted Action = "deleted"
)

// Reason codes identify which cascade rule produced the terminal action.
// These are stable strings consumed by the dashboard and audit queries; do
// not rename.
const (
	ReasonBillingLimitReached    = "BILLING_LIMIT_REACHED"
	ReasonWhitelistedCommenter   = "WHITELISTED_COMMENTER"
	ReasonPostOwner              = "POST_OWNER"
	ReasonAccountAutoDelete      = "ACCOUNT_AUTO_DELETE"
	ReasonSimilarityAutoDelete   = "SIMILARITY_AUTO_DELETE"
	ReasonSimilarityAutoHide     = "SIMILARITY_AUTO_HIDE"
	ReasonWatchlistMatch         = "WATCHLIST_MATCH"
	ReasonWhitelistedIdentifier  = "WHITELISTED_IDENTIFIER"
	ReasonWatchlistMention       = "WATCHLIST_MENTION"
	ReasonCustomFilterAutoDelete = "CUSTOM_FILTER_AUTO_DELETE"
	ReasonCustomFilterAutoHide   = "CUSTOM_FILTER_AUTO_HIDE"
	ReasonConfidenceAutoDelete   = "CONFIDENCE_AUTO_DELETE"
	ReasonConfidenceAutoHide     = "CONFIDENCE_AUTO_HIDE"
	ReasonAllowedSimilarity      = "ALLOWED_SIMILARITY_BENIGN"
	ReasonAccountAutoHide        = "ACCOUNT_AUTO_HIDE"
	ReasonCategoryAutoDelete     = "CATEGORY_AUTO_DELETE"
	ReasonCategoryFlagDelete     = "CATEGORY_FLAG_DELETE"
	ReasonCategoryFlagHide       = "CATEGORY_FLAG_HIDE"
	ReasonRiskFlagged            = "RISK_FLAGGED"
	ReasonBenignDefault          = "BENIGN_DEFAULT"
	ReasonSystemError            = "SYSTEM_ERROR"
)

// RiskScoreResult is the computed risk score plus its components, kept for
// the evidence record and the dashboard breakdown.
type RiskScoreResult struct {
	Score         int     `bson:"score" json:"score"`
	Base          float64 `bson:"base" json:"base"`
	RepeatBonus   float64 `bson:"repeat_bonus" json:"repeat_bonus"`
	VelocityBonus float64 `bson:"velocity_bonus" json:"velocity_bonus"`
	AgePenalty    float64 `bson:"age_penalty" json:"age_penalty"`
}

// ModerationResult is what every pipeline invocation returns, even under
// total failure.
type ModerationResult struct {
	EvaluationID string    `json:"evaluation_id"`
	EvaluatedAt  time.Time `json:"evaluated_at"`

	AccountID         string `json:"account_id"`
	CommentID         string `json:"comment_id"`
	PlatformCommentID string `json:"platform_comment_id"`

	Action         Action          `json:"action"`
	Reason         string          `json:"reason"`
	Classification Classification  `json:"classification"`
	RiskScore      RiskScoreResult `json:"risk_score"`

	// True when the platform hide/delete call errored; local state was still
	// updated and the record carries the failure marker.
	PlatformActionFailed bool `json:"platform_action_failed,omitempty"`
}
