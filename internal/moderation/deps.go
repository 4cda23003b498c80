package moderation

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

// Classifier is the external classification capability. Implementations wrap
// an LLM provider; the adapter in this package layers re-evaluation and
// category validation on top.
type Classifier interface {
	Classify(ctx context.Context, text string, filters []models.CustomFilter, simCtx *SimilarityContext) (models.Classification, error)
	ReEvaluate(ctx context.Context, text string, suspected models.Category, evidence string) (models.Classification, error)
	// MatchFilterDescriptions batch-matches a comment against semantic custom
	// filters, returning the ids of filters the comment matches.
	MatchFilterDescriptions(ctx context.Context, text string, filters []models.CustomFilter) ([]primitive.ObjectID, error)
	AnalyzeURL(ctx context.Context, url string) (models.URLAnalysis, error)
}

// SimilarityContext carries the best embedding match, if any, into the
// classifier prompt as corroborating context.
type SimilarityContext struct {
	MatchedText string
	Similarity  float64
	Allowed     bool
}

// SimilarMatch is a nearest-neighbor hit against the "allowed" corpus.
type SimilarMatch struct {
	PatternID  string
	Text       string
	Similarity float64
}

// AutoActionMatch is a nearest-neighbor hit against the curated auto-action
// corpus; the action was decided when the pattern was reviewed.
type AutoActionMatch struct {
	PatternID  string
	Text       string
	Similarity float64
	Action     models.Action
	Hide       bool // hide rather than delete
}

// EmbeddingIndex is the vector similarity capability: embedding generation
// plus nearest-neighbor lookup against the two curated corpora.
type EmbeddingIndex interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	FindAllowedSimilar(ctx context.Context, owner models.OwnerRef, vec []float32, minSimilarity float64) (*SimilarMatch, bool, error)
	FindAutoActionSimilar(ctx context.Context, owner models.OwnerRef, vec []float32, minSimilarity float64) (*AutoActionMatch, bool, error)
}

// PlatformClient performs actions against the social platform. Calls are not
// idempotent and not reversible; callers must treat errors as best-effort
// failures and still settle local state.
type PlatformClient interface {
	HideComment(ctx context.Context, platformCommentID, credential string) error
	DeleteComment(ctx context.Context, platformCommentID, credential string) error
	BlockCommenter(ctx context.Context, commenterPlatformID, credential string) error
}

// Billing gates moderation on the owner's entitlement and records usage.
type Billing interface {
	CheckFeatureAllowed(ctx context.Context, owner models.OwnerRef, feature string) (bool, error)
	Track(ctx context.Context, owner models.OwnerRef, feature string, amount int) error
}

// CommentStore persists the locally authoritative comment state.
type CommentStore interface {
	SaveModerated(ctx context.Context, comment *models.Comment) error
	MarkHidden(ctx context.Context, accountID, platformCommentID string, platformFailed bool) error
	MarkDeleted(ctx context.Context, accountID, platformCommentID string, platformFailed bool) error
	// ListByCommenter returns the commenter's stored comments on one account,
	// for the backfill pass when auto-hide/auto-delete is toggled on.
	ListByCommenter(ctx context.Context, accountID, commenterID string) ([]models.Comment, error)
}

// SuspiciousAccountStore owns the per-(account, commenter) aggregate.
// Counter updates must be atomic server-side increments, not read-then-write,
// so concurrent evaluations only drift instead of losing the block bit.
type SuspiciousAccountStore interface {
	// Find resolves a record by exact commenter id, then exact username, then
	// the alternate @-prefixed form, then a case-insensitive username scan.
	Find(ctx context.Context, accountID, commenterID, username string) (*models.SuspiciousAccount, bool, error)
	// ApplyUpdate upserts the aggregate, applies the counter increments
	// atomically, and returns the post-update record.
	ApplyUpdate(ctx context.Context, upd AccountUpdate) (*models.SuspiciousAccount, error)
	SetBlocked(ctx context.Context, id primitive.ObjectID, reason string) error
	SetAverageRisk(ctx context.Context, id primitive.ObjectID, avg float64) error
	SetVisible(ctx context.Context, id primitive.ObjectID) error
	SetAutoFlags(ctx context.Context, id primitive.ObjectID, autoHide, autoDelete bool) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.SuspiciousAccount, bool, error)
}

// AccountUpdate is one tracked decision's contribution to the aggregate.
type AccountUpdate struct {
	AccountID         string
	CommenterID       string
	CommenterUsername string

	Category  models.Category
	RiskScore int
	Flagged   bool
	Deleted   bool
}

// ListStore reads the owner-scoped configuration lists.
type ListStore interface {
	// IsCommenterWhitelisted checks by commenter id or username, account
	// scope first and then the owner's global entries.
	IsCommenterWhitelisted(ctx context.Context, owner models.OwnerRef, accountID, commenterID, username string) (bool, error)
	IsIdentifierWhitelisted(ctx context.Context, owner models.OwnerRef, accountID, identifier string) (bool, error)
	// WatchlistMatches returns entries matching the commenter identity.
	WatchlistMatches(ctx context.Context, owner models.OwnerRef, commenterID, username string) ([]models.WatchlistEntry, error)
	// WatchlistMentions returns entries whose username appears in the text.
	WatchlistMentions(ctx context.Context, owner models.OwnerRef, text string) ([]models.WatchlistEntry, error)
	EnabledFilters(ctx context.Context, owner models.OwnerRef, accountID string) ([]models.CustomFilter, error)
	RecordDetection(ctx context.Context, event *models.DetectionEvent) error
}

// SettingsStore reads the stored settings documents for the resolver.
type SettingsStore interface {
	AccountSettings(ctx context.Context, accountID string) (*models.ModerationSettings, bool, error)
	ClientSettings(ctx context.Context, clientID primitive.ObjectID) (*models.ModerationSettings, bool, error)
	OwnerSettings(ctx context.Context, owner models.OwnerRef) (*models.ModerationSettings, bool, error)
}

// EvidenceStore appends audit records. Failures are logged, never fatal.
type EvidenceStore interface {
	Insert(ctx context.Context, rec *models.EvidenceRecord) error
}
