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

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func boolPtr(v bool) *bool        { return &v }

func newTestResolver(t *testing.T, store SettingsStore) *SettingsResolver {
	t.Helper()
	r, err := NewSettingsResolver(store, 16, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.InDelta(t, 0.90, s.ConfidenceDeleteThreshold, 1e-9)
	assert.InDelta(t, 0.70, s.ConfidenceHideThreshold, 1e-9)
	assert.True(t, s.SimilarityEnabled)
	assert.InDelta(t, 0.85, s.SimilarityThreshold, 1e-9)

	// Every non-benign category gets the default rule; benign has no entry.
	assert.Len(t, s.Categories, len(models.Categories)-1)
	_, hasBenign := s.Categories[models.CategoryBenign]
	assert.False(t, hasBenign)

	rule := s.Rule(models.CategoryThreat)
	assert.False(t, rule.AutoDeleteEnabled)
	assert.Equal(t, 90, rule.AutoDeleteThreshold)
	assert.True(t, rule.FlagDeleteEnabled)
	assert.Equal(t, 80, rule.FlagDeleteThreshold)
	assert.True(t, rule.FlagHideEnabled)
	assert.Equal(t, 65, rule.FlagHideThreshold)
}

func TestResolveDefaultsWhenNothingStored(t *testing.T) {
	userID := primitive.NewObjectID()
	r := newTestResolver(t, &fakeSettingsStore{})

	resolved := r.Resolve(context.Background(), "acct-1", models.OwnerRef{UserID: &userID})
	assert.Equal(t, DefaultSettings(), resolved)
}

func TestResolveOverlayOrder(t *testing.T) {
	clientID := primitive.NewObjectID()
	store := &fakeSettingsStore{
		owner: &models.ModerationSettings{
			ConfidenceDeleteThreshold: floatPtr(0.80),
			ConfidenceHideThreshold:   floatPtr(0.60),
			SimilarityThreshold:       floatPtr(0.95),
		},
		client: &models.ModerationSettings{
			ConfidenceHideThreshold: floatPtr(0.65),
		},
		account: &models.ModerationSettings{
			ConfidenceDeleteThreshold: floatPtr(0.85),
		},
	}
	r := newTestResolver(t, store)

	resolved := r.Resolve(context.Background(), "acct-1", models.OwnerRef{ClientID: &clientID})

	// Account beats client beats owner; untouched fields keep the owner layer
	// or the hardcoded default.
	assert.InDelta(t, 0.85, resolved.ConfidenceDeleteThreshold, 1e-9)
	assert.InDelta(t, 0.65, resolved.ConfidenceHideThreshold, 1e-9)
	assert.InDelta(t, 0.95, resolved.SimilarityThreshold, 1e-9)
	assert.True(t, resolved.SimilarityEnabled)
}

func TestResolveCategoryOverlay(t *testing.T) {
	userID := primitive.NewObjectID()
	store := &fakeSettingsStore{
		owner: &models.ModerationSettings{
			Categories: map[string]models.CategoryRuleSettings{
				"blackmail": {
					AutoDeleteEnabled:   boolPtr(true),
					AutoDeleteThreshold: intPtr(75),
				},
				"benign":      {AutoDeleteEnabled: boolPtr(true)},
				"hate_speech": {AutoDeleteEnabled: boolPtr(true)},
			},
		},
	}
	r := newTestResolver(t, store)

	resolved := r.Resolve(context.Background(), "acct-1", models.OwnerRef{UserID: &userID})

	rule := resolved.Rule(models.CategoryBlackmail)
	assert.True(t, rule.AutoDeleteEnabled)
	assert.Equal(t, 75, rule.AutoDeleteThreshold)
	// Fields the document did not set keep their defaults.
	assert.True(t, rule.FlagDeleteEnabled)
	assert.Equal(t, 80, rule.FlagDeleteThreshold)

	// Benign and unknown category names in the stored document are ignored.
	_, hasBenign := resolved.Categories[models.CategoryBenign]
	assert.False(t, hasBenign)
	_, hasUnknown := resolved.Categories[models.Category("hate_speech")]
	assert.False(t, hasUnknown)
}

func TestResolveDegradesOnStoreError(t *testing.T) {
	userID := primitive.NewObjectID()
	r := newTestResolver(t, &fakeSettingsStore{err: errFake})

	resolved := r.Resolve(context.Background(), "acct-1", models.OwnerRef{UserID: &userID})
	assert.Equal(t, DefaultSettings(), resolved)
}

func TestResolveCachesAndInvalidates(t *testing.T) {
	userID := primitive.NewObjectID()
	owner := models.OwnerRef{UserID: &userID}
	store := &fakeSettingsStore{
		account: &models.ModerationSettings{ConfidenceDeleteThreshold: floatPtr(0.80)},
	}
	r := newTestResolver(t, store)

	first := r.Resolve(context.Background(), "acct-1", owner)
	assert.InDelta(t, 0.80, first.ConfidenceDeleteThreshold, 1e-9)

	// A changed document is not seen until the cache entry is invalidated.
	store.account = &models.ModerationSettings{ConfidenceDeleteThreshold: floatPtr(0.95)}
	cached := r.Resolve(context.Background(), "acct-1", owner)
	assert.InDelta(t, 0.80, cached.ConfidenceDeleteThreshold, 1e-9)

	r.Invalidate("acct-1", owner)
	fresh := r.Resolve(context.Background(), "acct-1", owner)
	assert.InDelta(t, 0.95, fresh.ConfidenceDeleteThreshold, 1e-9)
}

func TestInvalidateOwnerPurgesAllAccounts(t *testing.T) {
	userID := primitive.NewObjectID()
	owner := models.OwnerRef{UserID: &userID}
	store := &fakeSettingsStore{
		owner: &models.ModerationSettings{ConfidenceDeleteThreshold: floatPtr(0.80)},
	}
	r := newTestResolver(t, store)

	// Owner-scoped documents carry no account id, so a change has to stale
	// every account's cached snapshot, not a nonexistent ""-keyed one.
	for _, acct := range []string{"acct-1", "acct-2"} {
		resolved := r.Resolve(context.Background(), acct, owner)
		assert.InDelta(t, 0.80, resolved.ConfidenceDeleteThreshold, 1e-9)
	}

	store.owner = &models.ModerationSettings{ConfidenceDeleteThreshold: floatPtr(0.95)}
	r.InvalidateOwner(owner)

	for _, acct := range []string{"acct-1", "acct-2"} {
		fresh := r.Resolve(context.Background(), acct, owner)
		assert.InDelta(t, 0.95, fresh.ConfidenceDeleteThreshold, 1e-9)
	}
}

func TestInvalidateOwnerLeavesOtherOwnersCached(t *testing.T) {
	userA := primitive.NewObjectID()
	userB := primitive.NewObjectID()
	ownerA := models.OwnerRef{UserID: &userA}
	ownerB := models.OwnerRef{UserID: &userB}
	store := &fakeSettingsStore{
		owner: &models.ModerationSettings{ConfidenceDeleteThreshold: floatPtr(0.80)},
	}
	r := newTestResolver(t, store)

	r.Resolve(context.Background(), "acct-1", ownerA)
	r.Resolve(context.Background(), "acct-1", ownerB)

	store.owner = &models.ModerationSettings{ConfidenceDeleteThreshold: floatPtr(0.95)}
	r.InvalidateOwner(ownerA)

	fresh := r.Resolve(context.Background(), "acct-1", ownerA)
	assert.InDelta(t, 0.95, fresh.ConfidenceDeleteThreshold, 1e-9)

	cached := r.Resolve(context.Background(), "acct-1", ownerB)
	assert.InDelta(t, 0.80, cached.ConfidenceDeleteThreshold, 1e-9)
}

func TestInvalidateAccountWithOmittedOwnerIDs(t *testing.T) {
	userID := primitive.NewObjectID()
	owner := models.OwnerRef{UserID: &userID}
	store := &fakeSettingsStore{
		account: &models.ModerationSettings{ConfidenceDeleteThreshold: floatPtr(0.80)},
	}
	r := newTestResolver(t, store)

	first := r.Resolve(context.Background(), "acct-1", owner)
	assert.InDelta(t, 0.80, first.ConfidenceDeleteThreshold, 1e-9)

	// An account-scoped update may arrive without owner ids. Invalidation is
	// keyed by account alone so the change still lands.
	store.account = &models.ModerationSettings{ConfidenceDeleteThreshold: floatPtr(0.95)}
	r.InvalidateAccount("acct-1")

	fresh := r.Resolve(context.Background(), "acct-1", owner)
	assert.InDelta(t, 0.95, fresh.ConfidenceDeleteThreshold, 1e-9)
}
