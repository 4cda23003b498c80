package moderation

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

// Hardcoded defaults, the last layer of the resolution chain.
const (
	DefaultConfidenceDeleteThreshold = 0.90
	DefaultConfidenceHideThreshold   = 0.70
	DefaultSimilarityThreshold       = 0.85
	// SimilarityFloor is the minimum similarity for a nearest-neighbor match
	// to be surfaced at all.
	SimilarityFloor = 0.6

	defaultAutoDeleteThreshold = 90
	defaultFlagDeleteThreshold = 80
	defaultFlagHideThreshold   = 65
)

// CategoryRule is the fully defaulted per-category configuration the cascade
// evaluates. No optional fields: the resolver fills everything.
type CategoryRule struct {
	AutoDeleteEnabled   bool
	AutoDeleteThreshold int
	FlagDeleteEnabled   bool
	FlagDeleteThreshold int
	FlagHideEnabled     bool
	FlagHideThreshold   int
}

// ResolvedSettings is a complete configuration snapshot for one evaluation.
// Recomputed per evaluation (behind a small LRU) and never persisted.
type ResolvedSettings struct {
	ConfidenceDeleteThreshold float64
	ConfidenceHideThreshold   float64

	SimilarityEnabled   bool
	SimilarityThreshold float64

	Categories map[models.Category]CategoryRule
}

// Rule returns the resolved rule for a category, falling back to defaults
// for a category that somehow has no entry.
func (s ResolvedSettings) Rule(c models.Category) CategoryRule {
	if r, ok := s.Categories[c]; ok {
		return r
	}
	return defaultCategoryRule()
}

func defaultCategoryRule() CategoryRule {
	return CategoryRule{
		AutoDeleteEnabled:   false,
		AutoDeleteThreshold: defaultAutoDeleteThreshold,
		FlagDeleteEnabled:   true,
		FlagDeleteThreshold: defaultFlagDeleteThreshold,
		FlagHideEnabled:     true,
		FlagHideThreshold:   defaultFlagHideThreshold,
	}
}

// DefaultSettings returns the hardcoded bottom layer of the chain.
func DefaultSettings() ResolvedSettings {
	cats := make(map[models.Category]CategoryRule, len(models.Categories))
	for _, c := range models.Categories {
		if c == models.CategoryBenign {
			continue
		}
		cats[c] = defaultCategoryRule()
	}
	return ResolvedSettings{
		ConfidenceDeleteThreshold: DefaultConfidenceDeleteThreshold,
		ConfidenceHideThreshold:   DefaultConfidenceHideThreshold,
		SimilarityEnabled:         true,
		SimilarityThreshold:       DefaultSimilarityThreshold,
		Categories:                cats,
	}
}

// SettingsResolver builds the resolved snapshot for an evaluation. Resolution
// order, most to least specific: account settings, managed-client rule (when
// the owner is a delegated client), owner global default, hardcoded defaults.
type SettingsResolver struct {
	store  SettingsStore
	cache  *lru.Cache[string, ResolvedSettings]
	logger *zap.Logger
}

func NewSettingsResolver(store SettingsStore, cacheSize int, logger *zap.Logger) (*SettingsResolver, error) {
	cache, err := lru.New[string, ResolvedSettings](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("settings cache: %w", err)
	}
	return &SettingsResolver{store: store, cache: cache, logger: logger}, nil
}

// Resolve returns the configuration snapshot for one input. Lookup failures
// in any layer degrade to the layers below rather than failing resolution.
func (r *SettingsResolver) Resolve(ctx context.Context, accountID string, owner models.OwnerRef) ResolvedSettings {
	key := accountID + "|" + owner.Key()
	if cached, ok := r.cache.Get(key); ok {
		return cached
	}

	resolved := DefaultSettings()

	// Least specific first so more specific layers overwrite.
	if owner.UserID != nil || owner.ClientID != nil {
		if doc, found, err := r.store.OwnerSettings(ctx, owner); err != nil {
			r.logger.Warn("owner settings lookup failed", zap.String("owner", owner.Key()), zap.Error(err))
		} else if found {
			applySettings(&resolved, doc)
		}
	}
	if owner.ClientID != nil {
		if doc, found, err := r.store.ClientSettings(ctx, *owner.ClientID); err != nil {
			r.logger.Warn("client settings lookup failed", zap.String("owner", owner.Key()), zap.Error(err))
		} else if found {
			applySettings(&resolved, doc)
		}
	}
	if doc, found, err := r.store.AccountSettings(ctx, accountID); err != nil {
		r.logger.Warn("account settings lookup failed", zap.String("account_id", accountID), zap.Error(err))
	} else if found {
		applySettings(&resolved, doc)
	}

	r.cache.Add(key, resolved)
	return resolved
}

// Invalidate drops the cached snapshots for an account; called when an
// account-scoped settings document changes. Purging the whole account rather
// than one (account, owner) pair keeps documents with omitted owner ids
// effective immediately.
func (r *SettingsResolver) Invalidate(accountID string, owner models.OwnerRef) {
	r.InvalidateAccount(accountID)
}

// InvalidateOwner drops every cached snapshot belonging to one owner. Owner-
// and client-scoped documents have no account id, and their change stales
// all of the owner's accounts at once.
func (r *SettingsResolver) InvalidateOwner(owner models.OwnerRef) {
	r.InvalidateOwnerKey(owner.Key())
}

// InvalidateAccount and InvalidateOwnerKey are the string-keyed forms the
// cross-instance invalidation channel calls with wire payload values.

func (r *SettingsResolver) InvalidateAccount(accountID string) {
	prefix := accountID + "|"
	for _, key := range r.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			r.cache.Remove(key)
		}
	}
}

func (r *SettingsResolver) InvalidateOwnerKey(ownerKey string) {
	suffix := "|" + ownerKey
	for _, key := range r.cache.Keys() {
		if strings.HasSuffix(key, suffix) {
			r.cache.Remove(key)
		}
	}
}

// applySettings overlays the non-nil fields of one stored document onto an
// already defaulted snapshot.
func applySettings(resolved *ResolvedSettings, doc *models.ModerationSettings) {
	if doc.ConfidenceDeleteThreshold != nil {
		resolved.ConfidenceDeleteThreshold = *doc.ConfidenceDeleteThreshold
	}
	if doc.ConfidenceHideThreshold != nil {
		resolved.ConfidenceHideThreshold = *doc.ConfidenceHideThreshold
	}
	if doc.SimilarityEnabled != nil {
		resolved.SimilarityEnabled = *doc.SimilarityEnabled
	}
	if doc.SimilarityThreshold != nil {
		resolved.SimilarityThreshold = *doc.SimilarityThreshold
	}

	for name, stored := range doc.Categories {
		cat := models.Category(name)
		if !cat.IsValid() || cat == models.CategoryBenign {
			continue
		}
		rule := resolved.Categories[cat]
		if stored.AutoDeleteEnabled != nil {
			rule.AutoDeleteEnabled = *stored.AutoDeleteEnabled
		}
		if stored.AutoDeleteThreshold != nil {
			rule.AutoDeleteThreshold = *stored.AutoDeleteThreshold
		}
		if stored.FlagDeleteEnabled != nil {
			rule.FlagDeleteEnabled = *stored.FlagDeleteEnabled
		}
		if stored.FlagDeleteThreshold != nil {
			rule.FlagDeleteThreshold = *stored.FlagDeleteThreshold
		}
		if stored.FlagHideEnabled != nil {
			rule.FlagHideEnabled = *stored.FlagHideEnabled
		}
		if stored.FlagHideThreshold != nil {
			rule.FlagHideThreshold = *stored.FlagHideThreshold
		}
		resolved.Categories[cat] = rule
	}
}
