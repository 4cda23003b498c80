package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

// engineFixture wires an Engine entirely onto in-memory fakes so every test
// can script signals and assert on side effects.
type engineFixture struct {
	engine   *Engine
	provider *fakeProvider
	executor *fakeExecutor
	accounts *fakeAccounts
	lists    *fakeLists
	index    *fakeIndex
	settings *fakeSettingsStore
	comments *fakeComments
	evidence *fakeEvidence
	billing  *fakeBilling
	notifier *fakeNotifier
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	logger := zap.NewNop()

	f := &engineFixture{
		provider: &fakeProvider{},
		executor: &fakeExecutor{},
		accounts: newFakeAccounts(),
		lists:    &fakeLists{},
		index:    &fakeIndex{},
		settings: &fakeSettingsStore{},
		comments: &fakeComments{},
		evidence: &fakeEvidence{},
		billing:  &fakeBilling{allowed: true},
		notifier: &fakeNotifier{},
	}

	resolver, err := NewSettingsResolver(f.settings, 16, logger)
	require.NoError(t, err)

	adapter := NewClassifierAdapter(f.provider, NewPatternDetector(), logger)
	adapter.sleep = func(time.Duration) {}
	adapter.calls = &countingMetric{}

	f.engine = NewEngine(EngineConfig{
		Signals:    NewSignalAggregator(f.lists, f.accounts, f.index, resolver, logger),
		Classifier: adapter,
		Tracker:    NewTracker(f.accounts, f.comments, f.executor, logger),
		Executor:   f.executor,
		Comments:   f.comments,
		Lists:      f.lists,
		Evidence:   f.evidence,
		Billing:    f.billing,
		Notifier:   f.notifier,
		Logger:     logger,
	})
	return f
}

func engineInput() *Input {
	userID := primitive.NewObjectID()
	return &Input{
		CommentID:         "c-1",
		Text:              "just a normal comment",
		CommenterID:       "commenter-1",
		CommenterUsername: "someuser",
		AccountID:         "acct-1",
		AccountUsername:   "creator",
		AccountPlatformID: "acct-platform-1",
		PostID:            "post-1",
		PlatformCommentID: "pc-1",
		Credential:        "token",
		Owner:             models.OwnerRef{UserID: &userID},
	}
}

func (f *engineFixture) classifyAs(cls models.Classification) {
	f.provider.classifyResults = []models.Classification{cls}
}

func TestModerateBenignDefault(t *testing.T) {
	f := newEngineFixture(t)
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.9, Rationale: "friendly"})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionBenign, result.Action)
	assert.Equal(t, models.ReasonBenignDefault, result.Reason)
	assert.NotEmpty(t, result.EvaluationID)
	assert.False(t, result.PlatformActionFailed)

	// Full bookkeeping: comment saved active, evidence written, tracker and
	// billing updated, result published.
	require.Len(t, f.comments.saved, 1)
	assert.Equal(t, models.CommentStatusActive, f.comments.saved[0].Status)
	require.Len(t, f.evidence.records, 1)
	assert.False(t, f.evidence.records[0].Degraded)
	assert.NotNil(t, f.accounts.get("acct-1|commenter-1"))
	assert.Equal(t, 1, f.billing.tracked)
	assert.Len(t, f.notifier.results, 1)
	assert.Empty(t, f.executor.hides)
	assert.Empty(t, f.executor.deletes)
}

func TestModerateBillingExhausted(t *testing.T) {
	f := newEngineFixture(t)
	f.billing.allowed = false

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionBenign, result.Action)
	assert.Equal(t, models.ReasonBillingLimitReached, result.Reason)

	// Complete short-circuit: no classification, no persistence, no usage.
	assert.Equal(t, 0, f.provider.classifyCalls)
	assert.Empty(t, f.comments.saved)
	assert.Empty(t, f.evidence.records)
	assert.Nil(t, f.accounts.get("acct-1|commenter-1"))
	assert.Equal(t, 0, f.billing.tracked)
	assert.Empty(t, f.notifier.results)
}

func TestModerateBillingCheckErrorFailsOpen(t *testing.T) {
	f := newEngineFixture(t)
	f.billing.checkErr = errFake
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.9})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionBenign, result.Action)
	assert.Equal(t, models.ReasonBenignDefault, result.Reason)
	assert.Equal(t, 1, f.provider.classifyCalls)
}

func TestModerateWhitelistedCommenter(t *testing.T) {
	f := newEngineFixture(t)
	f.lists.whitelisted = true

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionBenign, result.Action)
	assert.Equal(t, models.ReasonWhitelistedCommenter, result.Reason)
	assert.Equal(t, 0, f.provider.classifyCalls)

	// Comment and evidence are kept, the tracker is not touched.
	assert.Len(t, f.comments.saved, 1)
	assert.Len(t, f.evidence.records, 1)
	assert.Nil(t, f.accounts.get("acct-1|commenter-1"))
}

func TestModeratePostOwner(t *testing.T) {
	f := newEngineFixture(t)
	in := engineInput()
	in.CommenterID = in.AccountPlatformID

	result := f.engine.Moderate(context.Background(), in)

	assert.Equal(t, models.ActionBenign, result.Action)
	assert.Equal(t, models.ReasonPostOwner, result.Reason)
	assert.Equal(t, 0, f.provider.classifyCalls)

	// Owner self-comments leave no comment record and no tracker entry.
	assert.Empty(t, f.comments.saved)
	assert.Nil(t, f.accounts.get(in.AccountID+"|"+in.CommenterID))
}

func TestModeratePostOwnerByUsername(t *testing.T) {
	f := newEngineFixture(t)
	in := engineInput()
	in.CommenterUsername = "@Creator"

	result := f.engine.Moderate(context.Background(), in)

	assert.Equal(t, models.ReasonPostOwner, result.Reason)
}

func TestModerateAccountAutoDelete(t *testing.T) {
	f := newEngineFixture(t)
	f.accounts.findResult = &models.SuspiciousAccount{
		ID:                primitive.NewObjectID(),
		AutoDeleteEnabled: true,
	}

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionDeleted, result.Action)
	assert.Equal(t, models.ReasonAccountAutoDelete, result.Reason)
	assert.Equal(t, 0, f.provider.classifyCalls)
	assert.Equal(t, []string{"pc-1"}, f.executor.deletes)
	require.Len(t, f.comments.saved, 1)
	assert.Equal(t, models.CommentStatusDeleted, f.comments.saved[0].Status)
}

func TestModerateSimilarityHighConfidenceDelete(t *testing.T) {
	f := newEngineFixture(t)
	f.index.auto = &AutoActionMatch{
		PatternID:  "pat-1",
		Text:       "previously deleted scam",
		Similarity: 0.92,
		Action:     models.ActionDeleted,
	}

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionDeleted, result.Action)
	assert.Equal(t, models.ReasonSimilarityAutoDelete, result.Reason)
	// The one path that skips classification entirely.
	assert.Equal(t, 0, f.provider.classifyCalls)
	assert.Equal(t, []string{"pc-1"}, f.executor.deletes)
}

func TestModerateSimilarityHighConfidenceHide(t *testing.T) {
	f := newEngineFixture(t)
	f.index.auto = &AutoActionMatch{
		PatternID:  "pat-1",
		Text:       "previously hidden insult",
		Similarity: 0.90,
		Action:     models.ActionFlagged,
		Hide:       true,
	}

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionFlagged, result.Action)
	assert.Equal(t, models.ReasonSimilarityAutoHide, result.Reason)
	assert.Equal(t, []string{"pc-1"}, f.executor.hides)
	require.Len(t, f.comments.saved, 1)
	assert.Equal(t, models.CommentStatusHidden, f.comments.saved[0].Status)
}

func TestModerateSimilarityDisabledBySettings(t *testing.T) {
	f := newEngineFixture(t)
	disabled := false
	f.settings.account = &models.ModerationSettings{SimilarityEnabled: &disabled}
	f.index.auto = &AutoActionMatch{PatternID: "pat-1", Similarity: 0.95, Action: models.ActionDeleted}
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.9})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ReasonBenignDefault, result.Reason)
	assert.Empty(t, f.executor.deletes)
	assert.Equal(t, 1, f.provider.classifyCalls)
}

func TestModerateSimilarityLowConfidenceAfterClassification(t *testing.T) {
	f := newEngineFixture(t)
	// Between the floor and the threshold: classification runs first, and the
	// match still decides when nothing stronger fires.
	f.index.auto = &AutoActionMatch{PatternID: "pat-1", Similarity: 0.72, Action: models.ActionDeleted}
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.9})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionDeleted, result.Action)
	assert.Equal(t, models.ReasonSimilarityAutoDelete, result.Reason)
	assert.Equal(t, 1, f.provider.classifyCalls)
}

func TestModerateWatchlistAutoDelete(t *testing.T) {
	f := newEngineFixture(t)
	f.lists.watchlistMatches = []models.WatchlistEntry{
		{ID: primitive.NewObjectID(), CommenterUsername: "stalker", AutoDelete: true},
	}
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.9})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionDeleted, result.Action)
	assert.Equal(t, models.ReasonWatchlistMatch, result.Reason)
	require.Len(t, f.lists.detections, 1)
	assert.Equal(t, "commenter_match", f.lists.detections[0].Kind)
}

func TestModerateWatchlistMatchWithoutAutoDelete(t *testing.T) {
	f := newEngineFixture(t)
	f.lists.watchlistMatches = []models.WatchlistEntry{
		{ID: primitive.NewObjectID(), CommenterUsername: "stalker"},
	}
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.9})

	result := f.engine.Moderate(context.Background(), engineInput())

	// Watchlisted but not auto-delete: the cascade continues.
	assert.Equal(t, models.ReasonBenignDefault, result.Reason)
	assert.Empty(t, f.lists.detections)
}

func TestModerateWhitelistedIdentifier(t *testing.T) {
	f := newEngineFixture(t)
	f.lists.whitelistedIdentifiers = map[string]bool{"$creatortag": true}
	f.classifyAs(models.Classification{
		Category:   models.CategoryBlackmail,
		Severity:   90,
		Confidence: 0.95,
		Identifiers: []models.ExtractedIdentifier{
			{Kind: models.IdentifierPaymentHandle, Value: "$creatortag"},
		},
	})

	result := f.engine.Moderate(context.Background(), engineInput())

	// The owner's own payment handle: benign despite the scary classification.
	assert.Equal(t, models.ActionBenign, result.Action)
	assert.Equal(t, models.ReasonWhitelistedIdentifier, result.Reason)
	assert.Empty(t, f.executor.deletes)
}

func TestModerateWatchlistMention(t *testing.T) {
	f := newEngineFixture(t)
	f.lists.watchlistMentions = []models.WatchlistEntry{
		{ID: primitive.NewObjectID(), CommenterUsername: "knownscammer"},
	}
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.9})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionDeleted, result.Action)
	assert.Equal(t, models.ReasonWatchlistMention, result.Reason)
	require.Len(t, f.lists.detections, 1)
	assert.Equal(t, "username_mention", f.lists.detections[0].Kind)
}

func TestModerateCustomFilterAutoDelete(t *testing.T) {
	f := newEngineFixture(t)
	f.lists.filters = []models.CustomFilter{
		{ID: primitive.NewObjectID(), Enabled: true, Category: models.CategorySpam, AutoDelete: true},
	}
	f.classifyAs(models.Classification{Category: models.CategorySpam, Severity: 40, Confidence: 0.6})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionDeleted, result.Action)
	assert.Equal(t, models.ReasonCustomFilterAutoDelete, result.Reason)
}

func TestModerateCustomFilterPrecedence(t *testing.T) {
	f := newEngineFixture(t)
	// Both filters match: auto-delete beats auto-hide.
	f.lists.filters = []models.CustomFilter{
		{ID: primitive.NewObjectID(), Enabled: true, Prompt: "crypto", AutoHide: true},
		{ID: primitive.NewObjectID(), Enabled: true, Prompt: "giveaway", AutoDelete: true},
	}
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.8})
	in := engineInput()
	in.Text = "crypto giveaway, click now"

	result := f.engine.Moderate(context.Background(), in)

	assert.Equal(t, models.ReasonCustomFilterAutoDelete, result.Reason)
}

func TestModerateCustomFilterAutoFlagAnnotates(t *testing.T) {
	f := newEngineFixture(t)
	f.lists.filters = []models.CustomFilter{
		{ID: primitive.NewObjectID(), Enabled: true, Prompt: "competitor", AutoFlag: true},
	}
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.9})
	in := engineInput()
	in.Text = "the competitor does it better"

	result := f.engine.Moderate(context.Background(), in)

	// Non-terminal: the cascade continues, the rationale carries the note.
	assert.Equal(t, models.ReasonBenignDefault, result.Reason)
	assert.Contains(t, result.Classification.Rationale, "matched custom filter: competitor")
}

func TestModerateConfidenceAutoDelete(t *testing.T) {
	f := newEngineFixture(t)
	f.classifyAs(models.Classification{Category: models.CategoryThreat, Severity: 85, Confidence: 0.95})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionDeleted, result.Action)
	assert.Equal(t, models.ReasonConfidenceAutoDelete, result.Reason)
	assert.Equal(t, []string{"pc-1"}, f.executor.deletes)
}

func TestModerateConfidenceAutoHide(t *testing.T) {
	f := newEngineFixture(t)
	f.classifyAs(models.Classification{Category: models.CategoryHarassment, Severity: 60, Confidence: 0.75})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionFlagged, result.Action)
	assert.Equal(t, models.ReasonConfidenceAutoHide, result.Reason)
	assert.Equal(t, []string{"pc-1"}, f.executor.hides)
	require.Len(t, f.comments.saved, 1)
	assert.Equal(t, models.CommentStatusHidden, f.comments.saved[0].Status)
}

func TestModerateConfidenceThresholdsIgnoreBenign(t *testing.T) {
	f := newEngineFixture(t)
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.99})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ReasonBenignDefault, result.Reason)
	assert.Empty(t, f.executor.deletes)
}

func TestModerateAllowedSimilarityAgreement(t *testing.T) {
	f := newEngineFixture(t)
	f.index.allowed = &SimilarMatch{PatternID: "pat-1", Text: "thanks so much!", Similarity: 0.88}
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.9})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionBenign, result.Action)
	assert.Equal(t, models.ReasonAllowedSimilarity, result.Reason)
}

func TestModerateAllowedSimilarityDisagreementLosesToClassifier(t *testing.T) {
	f := newEngineFixture(t)
	f.index.allowed = &SimilarMatch{PatternID: "pat-1", Text: "thanks so much!", Similarity: 0.88}
	f.classifyAs(models.Classification{Category: models.CategoryThreat, Severity: 85, Confidence: 0.95})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionDeleted, result.Action)
	assert.Equal(t, models.ReasonConfidenceAutoDelete, result.Reason)
}

func TestModerateAccountAutoHideOverride(t *testing.T) {
	f := newEngineFixture(t)
	f.accounts.findResult = &models.SuspiciousAccount{
		ID:              primitive.NewObjectID(),
		AutoHideEnabled: true,
	}
	f.classifyAs(models.Classification{Category: models.CategoryBenign, Confidence: 0.9})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionFlagged, result.Action)
	assert.Equal(t, models.ReasonAccountAutoHide, result.Reason)
	assert.Equal(t, []string{"pc-1"}, f.executor.hides)
}

func TestModerateCategoryFlagDelete(t *testing.T) {
	f := newEngineFixture(t)
	// Risk 85 with confidence below the hide threshold: the category rule
	// flags for deletion without touching the platform.
	f.classifyAs(models.Classification{Category: models.CategoryDefamation, Severity: 100, Confidence: 0.69})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionFlagged, result.Action)
	assert.Equal(t, models.ReasonCategoryFlagDelete, result.Reason)
	assert.Empty(t, f.executor.hides)
	assert.Empty(t, f.executor.deletes)
	require.Len(t, f.comments.saved, 1)
	assert.Equal(t, models.CommentStatusFlagged, f.comments.saved[0].Status)
}

func TestModerateCategoryFlagHide(t *testing.T) {
	f := newEngineFixture(t)
	// Risk 72: above the hide threshold, below the delete one.
	f.classifyAs(models.Classification{Category: models.CategoryHarassment, Severity: 90, Confidence: 0.6})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionFlagged, result.Action)
	assert.Equal(t, models.ReasonCategoryFlagHide, result.Reason)
	assert.Equal(t, []string{"pc-1"}, f.executor.hides)
}

func TestModerateCategoryAutoDeleteFromSettings(t *testing.T) {
	f := newEngineFixture(t)
	enabled := true
	threshold := 75
	f.settings.account = &models.ModerationSettings{
		Categories: map[string]models.CategoryRuleSettings{
			"threat": {AutoDeleteEnabled: &enabled, AutoDeleteThreshold: &threshold},
		},
	}
	// Risk 83, confidence below the confidence-delete threshold.
	f.classifyAs(models.Classification{Category: models.CategoryThreat, Severity: 100, Confidence: 0.65})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionDeleted, result.Action)
	assert.Equal(t, models.ReasonCategoryAutoDelete, result.Reason)
}

func TestModerateRiskFlagged(t *testing.T) {
	f := newEngineFixture(t)
	// Risk 54: under every category threshold but at or above 50.
	f.classifyAs(models.Classification{Category: models.CategorySpam, Severity: 90, Confidence: 0.2})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionFlagged, result.Action)
	assert.Equal(t, models.ReasonRiskFlagged, result.Reason)
	assert.Empty(t, f.executor.hides)
}

func TestModerateClassifierErrorSystemFailure(t *testing.T) {
	f := newEngineFixture(t)
	f.provider.classifyErr = errFake

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionFlagged, result.Action)
	assert.Equal(t, models.ReasonSystemError, result.Reason)

	// Degraded evidence only; no comment save, no tracker, no publish.
	require.Len(t, f.evidence.records, 1)
	assert.True(t, f.evidence.records[0].Degraded)
	assert.Empty(t, f.comments.saved)
	assert.Empty(t, f.notifier.results)
}

func TestModeratePlatformFailureMarker(t *testing.T) {
	f := newEngineFixture(t)
	f.executor.deleteFail = true
	f.classifyAs(models.Classification{Category: models.CategoryThreat, Severity: 85, Confidence: 0.95})

	result := f.engine.Moderate(context.Background(), engineInput())

	assert.Equal(t, models.ActionDeleted, result.Action)
	assert.True(t, result.PlatformActionFailed)
	require.Len(t, f.comments.saved, 1)
	assert.True(t, f.comments.saved[0].PlatformActionFailed)
}

func TestModerateTrackerReceivesDecision(t *testing.T) {
	f := newEngineFixture(t)
	f.classifyAs(models.Classification{Category: models.CategoryThreat, Severity: 85, Confidence: 0.95})

	f.engine.Moderate(context.Background(), engineInput())

	rec := f.accounts.get("acct-1|commenter-1")
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.DeletedComments)
	assert.Equal(t, 1, rec.CategoryCount(models.CategoryThreat))
}
