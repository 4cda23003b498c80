package moderation

import (
	"context"

	"go.uber.org/zap"
)

// ActionExecutor applies a decided action against the platform and settles
// local comment state. The contract for every method: the platform call is
// attempted, its failure is recorded, and the local authoritative state is
// always updated regardless of the platform outcome. The return value is
// true when the platform call itself errored.
type ActionExecutor interface {
	Hide(ctx context.Context, in *Input) bool
	Delete(ctx context.Context, in *Input) bool
	Block(ctx context.Context, in *Input) bool
}

// PlatformExecutor is the production executor.
type PlatformExecutor struct {
	platform PlatformClient
	comments CommentStore
	logger   *zap.Logger
}

func NewPlatformExecutor(platform PlatformClient, comments CommentStore, logger *zap.Logger) *PlatformExecutor {
	return &PlatformExecutor{platform: platform, comments: comments, logger: logger}
}

func (e *PlatformExecutor) Hide(ctx context.Context, in *Input) bool {
	failed := false
	if err := e.platform.HideComment(ctx, in.PlatformCommentID, in.Credential); err != nil {
		failed = true
		platformActionFailures.WithLabelValues("hide").Inc()
		e.logger.Error("platform hide failed",
			zap.String("comment_id", in.CommentID),
			zap.String("platform_comment_id", in.PlatformCommentID),
			zap.Error(err))
	}
	if err := e.comments.MarkHidden(ctx, in.AccountID, in.PlatformCommentID, failed); err != nil {
		e.logger.Error("persisting hidden state failed", zap.String("comment_id", in.CommentID), zap.Error(err))
	}
	return failed
}

func (e *PlatformExecutor) Delete(ctx context.Context, in *Input) bool {
	failed := false
	if err := e.platform.DeleteComment(ctx, in.PlatformCommentID, in.Credential); err != nil {
		failed = true
		platformActionFailures.WithLabelValues("delete").Inc()
		e.logger.Error("platform delete failed",
			zap.String("comment_id", in.CommentID),
			zap.String("platform_comment_id", in.PlatformCommentID),
			zap.Error(err))
	}
	// Deletion is not reversible on the platform; the failure marker lets
	// operators retry the platform side without losing local state.
	if err := e.comments.MarkDeleted(ctx, in.AccountID, in.PlatformCommentID, failed); err != nil {
		e.logger.Error("persisting deleted state failed", zap.String("comment_id", in.CommentID), zap.Error(err))
	}
	return failed
}

func (e *PlatformExecutor) Block(ctx context.Context, in *Input) bool {
	if err := e.platform.BlockCommenter(ctx, in.CommenterID, in.Credential); err != nil {
		platformActionFailures.WithLabelValues("block").Inc()
		e.logger.Error("platform block failed",
			zap.String("commenter_id", in.CommenterID),
			zap.Error(err))
		return true
	}
	return false
}

// NoopExecutor takes no platform actions and writes no comment state. It is
// the dry-run/test strategy injected in place of the production executor.
type NoopExecutor struct{}

func (NoopExecutor) Hide(ctx context.Context, in *Input) bool   { return false }
func (NoopExecutor) Delete(ctx context.Context, in *Input) bool { return false }
func (NoopExecutor) Block(ctx context.Context, in *Input) bool  { return false }
