package moderation

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

const (
	// Severity/confidence floor applied when the blackmail override fires.
	blackmailOverrideSeverity   = 85
	blackmailOverrideConfidence = 0.9

	// Backoff before the single invalid-category retry.
	invalidCategoryRetryDelay = time.Second
)

// ClassifierAdapter wraps the external classifier with the disagreement
// re-evaluation step and category validation. The pattern detector acts as a
// second opinion: when the two disagree, the classifier gets one more look
// biased toward the pattern category.
type ClassifierAdapter struct {
	provider Classifier
	patterns *PatternDetector
	logger   *zap.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(time.Duration)

	// Calls counts provider Classify/ReEvaluate invocations, for billing.
	calls metricCounter
}

type metricCounter interface{ Inc() }

func NewClassifierAdapter(provider Classifier, patterns *PatternDetector, logger *zap.Logger) *ClassifierAdapter {
	return &ClassifierAdapter{
		provider: provider,
		patterns: patterns,
		logger:   logger,
		sleep:    time.Sleep,
		calls:    classifierCalls,
	}
}

// Classify runs pattern detection and classification, resolves disagreements,
// and validates the category. It never returns an invalid category: after the
// one retry, an invalid verdict defaults to benign with a rationale note
// rather than an error.
func (a *ClassifierAdapter) Classify(ctx context.Context, text string, filters []models.CustomFilter, simCtx *SimilarityContext) (models.Classification, error) {
	patternCat, patternHit := a.patterns.Detect(text)

	a.calls.Inc()
	cls, err := a.provider.Classify(ctx, text, filters, simCtx)
	if err != nil {
		return models.Classification{}, fmt.Errorf("classify: %w", err)
	}

	if patternHit && cls.Category != patternCat {
		cls = a.reEvaluate(ctx, text, patternCat, cls)
	}

	return a.validate(ctx, text, filters, simCtx, cls), nil
}

// MatchFilters batch-matches a comment against descriptive (semantic) custom
// filters, returning the ids of the filters that match.
func (a *ClassifierAdapter) MatchFilters(ctx context.Context, text string, filters []models.CustomFilter) ([]primitive.ObjectID, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	a.calls.Inc()
	ids, err := a.provider.MatchFilterDescriptions(ctx, text, filters)
	if err != nil {
		return nil, fmt.Errorf("match filter descriptions: %w", err)
	}
	return ids, nil
}

// reEvaluate gives the classifier a second look biased toward the pattern
// category. If it confirms the pattern, adopt the re-evaluation. If it does
// not, or the call itself fails, blackmail specifically still wins: a missed
// blackmail attempt is the highest-cost false negative.
func (a *ClassifierAdapter) reEvaluate(ctx context.Context, text string, patternCat models.Category, original models.Classification) models.Classification {
	evidence := fmt.Sprintf("heuristic pattern match suggested %q but model returned %q", patternCat, original.Category)

	a.calls.Inc()
	revised, err := a.provider.ReEvaluate(ctx, text, patternCat, evidence)
	if err != nil {
		a.logger.Warn("re-evaluation failed", zap.String("suspected", string(patternCat)), zap.Error(err))
		if patternCat == models.CategoryBlackmail {
			return blackmailOverride(original)
		}
		return original
	}

	if revised.Category == patternCat {
		return revised
	}
	if patternCat == models.CategoryBlackmail {
		return blackmailOverride(original)
	}
	// Any other mismatch: the original classification stands.
	return original
}

func blackmailOverride(cls models.Classification) models.Classification {
	cls.Category = models.CategoryBlackmail
	if cls.Severity < blackmailOverrideSeverity {
		cls.Severity = blackmailOverrideSeverity
	}
	if cls.Confidence < blackmailOverrideConfidence {
		cls.Confidence = blackmailOverrideConfidence
	}
	if cls.Rationale != "" {
		cls.Rationale += " "
	}
	cls.Rationale += "Overridden to blackmail: payment request combined with a conditional threat matched heuristic patterns."
	return cls
}

// validate ensures the category is one of the fixed enumerated values,
// retrying the classification once after a short backoff and defaulting to
// benign when the provider keeps misbehaving.
func (a *ClassifierAdapter) validate(ctx context.Context, text string, filters []models.CustomFilter, simCtx *SimilarityContext, cls models.Classification) models.Classification {
	if cls.Category.IsValid() {
		return cls
	}

	a.logger.Warn("invalid classification category, retrying once", zap.String("category", string(cls.Category)))
	a.sleep(invalidCategoryRetryDelay)

	a.calls.Inc()
	retried, err := a.provider.Classify(ctx, text, filters, simCtx)
	if err == nil && retried.Category.IsValid() {
		return retried
	}
	if err != nil {
		a.logger.Warn("classification retry failed", zap.Error(err))
	}

	return models.Classification{
		Category:   models.CategoryBenign,
		Severity:   0,
		Confidence: 0,
		Rationale:  fmt.Sprintf("Defaulted to benign: classifier returned unrecognized category %q twice.", cls.Category),
	}
}
