package models

import "time"

// EvidenceRecord is the append-only audit row written for every terminal
// moderation action (except the billing short-circuit). Stored in Postgres
// so the audit trail survives independently of the operational store.
type EvidenceRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EvaluationID string `json:"evaluation_id"`
	AccountID    string `json:"account_id"`
	CommentID    string `json:"comment_id"`
	CommenterID  string `json:"commenter_id"`

	CommentText string   `json:"comment_text"`
	Category    Category `json:"category"`
	RiskScore   int      `json:"risk_score"`
	Action      Action   `json:"action"`
	Reason      string   `json:"reason"`
	Rationale   string   `json:"rationale"`

	// Set when the record was written by the top-level failure handler and
	// may be missing classification detail.
	Degraded bool `json:"degraded,omitempty"`
}

// EmbeddingPattern is one entry in a curated similarity corpus: a previously
// reviewed comment, its embedding, and (for the auto-action corpus) the
// action a close-enough match should receive.
type EmbeddingPattern struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`

	OwnerKey  string    `bson:"owner_key" json:"owner_key"`
	Text      string    `bson:"text" json:"text"`
	Embedding []float32 `bson:"embedding" json:"-"`

	// "hide" or "delete"; empty for the allowed corpus.
	Action string `bson:"action,omitempty" json:"action,omitempty"`
}
