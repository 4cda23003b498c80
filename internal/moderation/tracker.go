package moderation

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

// Auto-block thresholds.
const (
	spamBotSpamCount      = 5  // more than this many spam comments, and
	spamBotCommentsPerDay = 10 // more than this many comments/day since first seen
	blackmailBlockCount   = 2
	threatBlockCount      = 2
	deletedBlockCount     = 5
	deletedBlockAvgRisk   = 80.0
)

// Tracker owns the per-(account, commenter) aggregate: counters, running
// risk averages, dashboard visibility, and the auto-block rules evaluated
// after every tracked decision. Blocking never auto-clears.
type Tracker struct {
	accounts SuspiciousAccountStore
	comments CommentStore
	executor ActionExecutor
	logger   *zap.Logger

	now func() time.Time
}

func NewTracker(accounts SuspiciousAccountStore, comments CommentStore, executor ActionExecutor, logger *zap.Logger) *Tracker {
	return &Tracker{
		accounts: accounts,
		comments: comments,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordDecision folds one moderation decision into the commenter's
// aggregate and re-evaluates the auto-block rules. Counter drift under
// concurrent updates is tolerated; a block transition is not allowed to be
// lost, so it is written as its own set-only update.
func (t *Tracker) RecordDecision(ctx context.Context, in *Input, cat models.Category, riskScore int, action models.Action) error {
	upd := AccountUpdate{
		AccountID:         in.AccountID,
		CommenterID:       in.CommenterID,
		CommenterUsername: in.CommenterUsername,
		Category:          cat,
		RiskScore:         riskScore,
		Flagged:           action == models.ActionFlagged,
		Deleted:           action == models.ActionDeleted,
	}

	rec, err := t.accounts.ApplyUpdate(ctx, upd)
	if err != nil {
		return fmt.Errorf("updating suspicious account: %w", err)
	}

	// Running average over the counts before this comment. Lost updates only
	// drift the average, never the block bit.
	n := rec.TotalComments
	avg := rec.AverageRiskScore
	if n > 0 {
		avg = (rec.AverageRiskScore*float64(n-1) + float64(riskScore)) / float64(n)
	}
	if err := t.accounts.SetAverageRisk(ctx, rec.ID, avg); err != nil {
		t.logger.Warn("updating average risk failed", zap.String("commenter_id", in.CommenterID), zap.Error(err))
	}

	// Surface the record in the dashboard once it has any violation. Never
	// re-hide a surfaced record; manual review decides from there.
	if rec.IsHidden && rec.ViolationCount() > 0 {
		if err := t.accounts.SetVisible(ctx, rec.ID); err != nil {
			t.logger.Warn("unhiding suspicious account failed", zap.String("commenter_id", in.CommenterID), zap.Error(err))
		}
	}

	if !rec.IsBlocked {
		if reason, trip := t.checkAutoBlock(rec, avg); trip {
			if err := t.accounts.SetBlocked(ctx, rec.ID, reason); err != nil {
				return fmt.Errorf("recording block: %w", err)
			}
			t.executor.Block(ctx, in)
			t.logger.Info("commenter auto-blocked",
				zap.String("account_id", in.AccountID),
				zap.String("commenter_id", in.CommenterID),
				zap.String("reason", reason))
		}
	}

	return nil
}

// checkAutoBlock evaluates the block rules against the post-update aggregate.
// Any one rule tripping blocks the commenter, independent of what action the
// triggering comment itself received.
func (t *Tracker) checkAutoBlock(rec *models.SuspiciousAccount, avg float64) (string, bool) {
	if rec.CategoryCount(models.CategorySpam) > spamBotSpamCount && rec.CommentsPerDay(t.now()) > spamBotCommentsPerDay {
		return "spam bot pattern", true
	}
	if rec.CategoryCount(models.CategoryBlackmail) >= blackmailBlockCount {
		return "repeated blackmail attempts", true
	}
	if rec.CategoryCount(models.CategoryThreat) >= threatBlockCount {
		return "repeated threats", true
	}
	if rec.DeletedComments >= deletedBlockCount && avg > deletedBlockAvgRisk {
		return "persistent high-risk violations", true
	}
	return "", false
}

// SetAutoHide toggles the per-commenter auto-hide flag. Enabling it clears
// auto-delete (the two are mutually exclusive) and backfills hides across the
// commenter's existing comments on the account.
func (t *Tracker) SetAutoHide(ctx context.Context, id primitive.ObjectID, enabled bool, credential string) error {
	rec, found, err := t.accounts.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading suspicious account: %w", err)
	}
	if !found {
		return fmt.Errorf("suspicious account %s not found", id.Hex())
	}

	autoDelete := rec.AutoDeleteEnabled
	if enabled {
		autoDelete = false
	}
	if err := t.accounts.SetAutoFlags(ctx, id, enabled, autoDelete); err != nil {
		return fmt.Errorf("updating auto flags: %w", err)
	}
	if enabled {
		t.backfill(ctx, rec, credential, false)
	}
	return nil
}

// SetAutoDelete toggles the per-commenter auto-delete flag, clearing
// auto-hide when enabling and backfilling deletes.
func (t *Tracker) SetAutoDelete(ctx context.Context, id primitive.ObjectID, enabled bool, credential string) error {
	rec, found, err := t.accounts.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading suspicious account: %w", err)
	}
	if !found {
		return fmt.Errorf("suspicious account %s not found", id.Hex())
	}

	autoHide := rec.AutoHideEnabled
	if enabled {
		autoHide = false
	}
	if err := t.accounts.SetAutoFlags(ctx, id, autoHide, enabled); err != nil {
		return fmt.Errorf("updating auto flags: %w", err)
	}
	if enabled {
		t.backfill(ctx, rec, credential, true)
	}
	return nil
}

// BlockOnPlatform issues the platform block for an already recorded block
// decision, e.g. a manual block from the dashboard. Best-effort.
func (t *Tracker) BlockOnPlatform(ctx context.Context, rec *models.SuspiciousAccount, credential string) {
	in := &Input{
		AccountID:         rec.AccountID,
		CommenterID:       rec.CommenterID,
		CommenterUsername: rec.CommenterUsername,
		Credential:        credential,
	}
	t.executor.Block(ctx, in)
}

// backfill retroactively hides or deletes the commenter's pre-existing
// comments on the account. Best-effort against the platform, unconditional
// against local storage; the executor handles both halves per comment.
func (t *Tracker) backfill(ctx context.Context, rec *models.SuspiciousAccount, credential string, del bool) {
	comments, err := t.comments.ListByCommenter(ctx, rec.AccountID, rec.CommenterID)
	if err != nil {
		t.logger.Error("backfill listing failed",
			zap.String("account_id", rec.AccountID),
			zap.String("commenter_id", rec.CommenterID),
			zap.Error(err))
		return
	}

	for i := range comments {
		c := &comments[i]
		if c.Status == models.CommentStatusDeleted {
			continue
		}
		if !del && c.Status == models.CommentStatusHidden {
			continue
		}
		in := &Input{
			CommentID:         c.ID.Hex(),
			AccountID:         c.AccountID,
			PlatformCommentID: c.PlatformCommentID,
			CommenterID:       c.CommenterID,
			CommenterUsername: c.CommenterUsername,
			Credential:        credential,
		}
		if del {
			t.executor.Delete(ctx, in)
		} else {
			t.executor.Hide(ctx, in)
		}
	}
}
