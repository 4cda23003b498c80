package moderation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

func newTestTracker() (*Tracker, *fakeAccounts, *fakeComments, *fakeExecutor) {
	accounts := newFakeAccounts()
	comments := &fakeComments{}
	executor := &fakeExecutor{}
	tr := NewTracker(accounts, comments, executor, zap.NewNop())
	return tr, accounts, comments, executor
}

func trackerInput() *Input {
	return &Input{
		CommentID:         "c-1",
		AccountID:         "acct-1",
		CommenterID:       "commenter-1",
		CommenterUsername: "troll",
		Credential:        "token",
	}
}

func TestRecordDecisionAggregates(t *testing.T) {
	tr, accounts, _, _ := newTestTracker()
	ctx := context.Background()
	in := trackerInput()

	require.NoError(t, tr.RecordDecision(ctx, in, models.CategoryThreat, 60, models.ActionFlagged))
	require.NoError(t, tr.RecordDecision(ctx, in, models.CategoryBenign, 20, models.ActionBenign))

	rec := accounts.get("acct-1|commenter-1")
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.TotalComments)
	assert.Equal(t, 1, rec.FlaggedComments)
	assert.Equal(t, 0, rec.DeletedComments)
	assert.Equal(t, 1, rec.CategoryCount(models.CategoryThreat))
	assert.Equal(t, 0, rec.CategoryCount(models.CategoryBenign))
	assert.Equal(t, 60, rec.HighestRiskScore)
	// Running average: (60 + 20) / 2.
	assert.InDelta(t, 40.0, rec.AverageRiskScore, 1e-9)
}

func TestRecordDecisionSurfacesOnFirstViolation(t *testing.T) {
	tr, accounts, _, _ := newTestTracker()
	ctx := context.Background()
	in := trackerInput()

	// A benign comment creates the record but leaves it hidden.
	require.NoError(t, tr.RecordDecision(ctx, in, models.CategoryBenign, 10, models.ActionBenign))
	rec := accounts.get("acct-1|commenter-1")
	assert.True(t, rec.IsHidden)

	// The first violation surfaces it.
	require.NoError(t, tr.RecordDecision(ctx, in, models.CategorySpam, 55, models.ActionFlagged))
	assert.False(t, rec.IsHidden)
}

func TestAutoBlockRepeatedBlackmail(t *testing.T) {
	tr, accounts, _, executor := newTestTracker()
	ctx := context.Background()
	in := trackerInput()

	require.NoError(t, tr.RecordDecision(ctx, in, models.CategoryBlackmail, 90, models.ActionDeleted))
	rec := accounts.get("acct-1|commenter-1")
	assert.False(t, rec.IsBlocked)
	assert.Empty(t, executor.blocks)

	require.NoError(t, tr.RecordDecision(ctx, in, models.CategoryBlackmail, 92, models.ActionDeleted))
	assert.True(t, rec.IsBlocked)
	assert.Equal(t, "repeated blackmail attempts", rec.BlockedReason)
	assert.Equal(t, []string{"commenter-1"}, executor.blocks)

	// Already blocked: no second platform block.
	require.NoError(t, tr.RecordDecision(ctx, in, models.CategoryBlackmail, 95, models.ActionDeleted))
	assert.Len(t, executor.blocks, 1)
}

func TestAutoBlockRepeatedThreats(t *testing.T) {
	tr, accounts, _, _ := newTestTracker()
	ctx := context.Background()
	in := trackerInput()

	require.NoError(t, tr.RecordDecision(ctx, in, models.CategoryThreat, 70, models.ActionFlagged))
	require.NoError(t, tr.RecordDecision(ctx, in, models.CategoryThreat, 75, models.ActionFlagged))

	rec := accounts.get("acct-1|commenter-1")
	assert.True(t, rec.IsBlocked)
	assert.Equal(t, "repeated threats", rec.BlockedReason)
}

func TestAutoBlockSpamBot(t *testing.T) {
	tr, accounts, _, _ := newTestTracker()
	ctx := context.Background()
	in := trackerInput()

	// Eleven spam comments within the first day: count and velocity both trip.
	for i := 0; i < 11; i++ {
		require.NoError(t, tr.RecordDecision(ctx, in, models.CategorySpam, 40, models.ActionFlagged))
	}

	rec := accounts.get("acct-1|commenter-1")
	assert.True(t, rec.IsBlocked)
	assert.Equal(t, "spam bot pattern", rec.BlockedReason)
}

func TestAutoBlockPersistentHighRisk(t *testing.T) {
	tr, accounts, _, _ := newTestTracker()
	ctx := context.Background()
	in := trackerInput()

	// Five deletions averaging above 80, spread across categories so no
	// category rule trips first.
	cats := []models.Category{
		models.CategoryHarassment,
		models.CategoryDefamation,
		models.CategoryHarassment,
		models.CategoryDefamation,
		models.CategoryHarassment,
	}
	for _, c := range cats {
		require.NoError(t, tr.RecordDecision(ctx, in, c, 90, models.ActionDeleted))
	}

	rec := accounts.get("acct-1|commenter-1")
	assert.Equal(t, 5, rec.DeletedComments)
	assert.True(t, rec.IsBlocked)
	assert.Equal(t, "persistent high-risk violations", rec.BlockedReason)
}

func TestSetAutoHideClearsAutoDeleteAndBackfills(t *testing.T) {
	tr, accounts, comments, executor := newTestTracker()
	ctx := context.Background()

	id := primitive.NewObjectID()
	accounts.records[id.Hex()] = &models.SuspiciousAccount{
		ID:                id,
		AccountID:         "acct-1",
		CommenterID:       "commenter-1",
		AutoDeleteEnabled: true,
	}
	comments.list = []models.Comment{
		{PlatformCommentID: "p-1", Status: models.CommentStatusActive},
		{PlatformCommentID: "p-2", Status: models.CommentStatusHidden},
		{PlatformCommentID: "p-3", Status: models.CommentStatusDeleted},
		{PlatformCommentID: "p-4", Status: models.CommentStatusFlagged},
	}

	require.NoError(t, tr.SetAutoHide(ctx, id, true, "token"))

	rec := accounts.records[id.Hex()]
	assert.True(t, rec.AutoHideEnabled)
	assert.False(t, rec.AutoDeleteEnabled)
	// Already hidden and deleted comments are skipped.
	assert.ElementsMatch(t, []string{"p-1", "p-4"}, executor.hides)
	assert.Empty(t, executor.deletes)
}

func TestSetAutoDeleteClearsAutoHideAndBackfills(t *testing.T) {
	tr, accounts, comments, executor := newTestTracker()
	ctx := context.Background()

	id := primitive.NewObjectID()
	accounts.records[id.Hex()] = &models.SuspiciousAccount{
		ID:              id,
		AccountID:       "acct-1",
		CommenterID:     "commenter-1",
		AutoHideEnabled: true,
	}
	comments.list = []models.Comment{
		{PlatformCommentID: "p-1", Status: models.CommentStatusActive},
		{PlatformCommentID: "p-2", Status: models.CommentStatusHidden},
		{PlatformCommentID: "p-3", Status: models.CommentStatusDeleted},
	}

	require.NoError(t, tr.SetAutoDelete(ctx, id, true, "token"))

	rec := accounts.records[id.Hex()]
	assert.True(t, rec.AutoDeleteEnabled)
	assert.False(t, rec.AutoHideEnabled)
	// Hidden comments still get deleted; already deleted ones are skipped.
	assert.ElementsMatch(t, []string{"p-1", "p-2"}, executor.deletes)
}

func TestSetAutoHideDisableDoesNotBackfill(t *testing.T) {
	tr, accounts, comments, executor := newTestTracker()
	ctx := context.Background()

	id := primitive.NewObjectID()
	accounts.records[id.Hex()] = &models.SuspiciousAccount{
		ID:              id,
		AutoHideEnabled: true,
	}
	comments.list = []models.Comment{{PlatformCommentID: "p-1", Status: models.CommentStatusActive}}

	require.NoError(t, tr.SetAutoHide(ctx, id, false, "token"))
	assert.Empty(t, executor.hides)
	assert.False(t, accounts.records[id.Hex()].AutoHideEnabled)
}

func TestSetAutoHideUnknownRecord(t *testing.T) {
	tr, _, _, _ := newTestTracker()
	err := tr.SetAutoHide(context.Background(), primitive.NewObjectID(), true, "token")
	assert.Error(t, err)
}

func TestBlockOnPlatform(t *testing.T) {
	tr, _, _, executor := newTestTracker()
	rec := &models.SuspiciousAccount{AccountID: "acct-1", CommenterID: "commenter-9"}
	tr.BlockOnPlatform(context.Background(), rec, "token")
	assert.Equal(t, []string{"commenter-9"}, executor.blocks)
}
