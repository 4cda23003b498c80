package moderation

import (
	"time"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

// Input is one comment to evaluate. Built once per incoming comment event and
// never mutated by the pipeline.
type Input struct {
	CommentID         string
	Text              string
	CommenterID       string
	CommenterUsername string

	AccountID         string
	AccountUsername   string
	AccountPlatformID string
	PostID            string
	PlatformCommentID string

	// Platform access token for hide/delete/block calls on this account.
	Credential string

	Owner models.OwnerRef

	ReceivedAt time.Time
}
