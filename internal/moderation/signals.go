package moderation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
	"github.com/azimhamza/safe-replies-backend-sub001/pkg/textnorm"
)

// Signals is the joined result of the pre-classification checks. Every field
// has a safe zero value; a failed check leaves its field at that zero value
// instead of failing the evaluation.
type Signals struct {
	Whitelisted bool
	IsPostOwner bool

	Suspicious *models.SuspiciousAccount

	// Watchlist entries matching the commenter's identity, and entries whose
	// watched username is mentioned inside the comment body.
	WatchlistMatches  []models.WatchlistEntry
	WatchlistMentions []models.WatchlistEntry

	Filters []models.CustomFilter

	AllowedMatch    *SimilarMatch
	AutoActionMatch *AutoActionMatch

	Settings ResolvedSettings
}

// SimilarityContext builds the classifier prompt context from whichever
// embedding match scored higher, or nil when neither corpus matched.
func (s *Signals) SimilarityContext() *SimilarityContext {
	var best *SimilarityContext
	if s.AllowedMatch != nil {
		best = &SimilarityContext{MatchedText: s.AllowedMatch.Text, Similarity: s.AllowedMatch.Similarity, Allowed: true}
	}
	if s.AutoActionMatch != nil && (best == nil || s.AutoActionMatch.Similarity > best.Similarity) {
		best = &SimilarityContext{MatchedText: s.AutoActionMatch.Text, Similarity: s.AutoActionMatch.Similarity}
	}
	return best
}

// SignalAggregator fans the independent pre-classification checks out
// concurrently and joins the results. Checks tolerate each other's failure:
// an errored lookup is logged, counted, and degraded to its zero value.
type SignalAggregator struct {
	lists    ListStore
	accounts SuspiciousAccountStore
	index    EmbeddingIndex
	settings *SettingsResolver
	logger   *zap.Logger
}

func NewSignalAggregator(lists ListStore, accounts SuspiciousAccountStore, index EmbeddingIndex, settings *SettingsResolver, logger *zap.Logger) *SignalAggregator {
	return &SignalAggregator{
		lists:    lists,
		accounts: accounts,
		index:    index,
		settings: settings,
		logger:   logger,
	}
}

// Gather runs the seven checks and joins them. It never returns an error;
// the worst case is a Signals with defaults everywhere.
func (a *SignalAggregator) Gather(ctx context.Context, in *Input) *Signals {
	sig := &Signals{Settings: DefaultSettings()}

	g := new(errgroup.Group)

	g.Go(a.check(in, "whitelist", func() error {
		ok, err := a.lists.IsCommenterWhitelisted(ctx, in.Owner, in.AccountID, in.CommenterID, in.CommenterUsername)
		if err != nil {
			return err
		}
		sig.Whitelisted = ok
		return nil
	}))

	g.Go(a.check(in, "post_owner", func() error {
		sig.IsPostOwner = isPostOwner(in)
		return nil
	}))

	g.Go(a.check(in, "suspicious_account", func() error {
		rec, found, err := a.accounts.Find(ctx, in.AccountID, in.CommenterID, in.CommenterUsername)
		if err != nil {
			return err
		}
		if found {
			sig.Suspicious = rec
		}
		return nil
	}))

	g.Go(a.check(in, "watchlist", func() error {
		matches, err := a.lists.WatchlistMatches(ctx, in.Owner, in.CommenterID, in.CommenterUsername)
		if err != nil {
			return err
		}
		sig.WatchlistMatches = matches

		mentions, err := a.lists.WatchlistMentions(ctx, in.Owner, in.Text)
		if err != nil {
			return err
		}
		sig.WatchlistMentions = mentions
		return nil
	}))

	g.Go(a.check(in, "custom_filters", func() error {
		filters, err := a.lists.EnabledFilters(ctx, in.Owner, in.AccountID)
		if err != nil {
			return err
		}
		sig.Filters = filters
		return nil
	}))

	g.Go(a.check(in, "embedding", func() error {
		vec, err := a.index.Embed(ctx, in.Text)
		if err != nil {
			// No embedding simply means no similarity context.
			return fmt.Errorf("embed: %w", err)
		}
		allowed, found, err := a.index.FindAllowedSimilar(ctx, in.Owner, vec, SimilarityFloor)
		if err != nil {
			return fmt.Errorf("allowed lookup: %w", err)
		}
		if found {
			sig.AllowedMatch = allowed
		}
		auto, found, err := a.index.FindAutoActionSimilar(ctx, in.Owner, vec, SimilarityFloor)
		if err != nil {
			return fmt.Errorf("auto-action lookup: %w", err)
		}
		if found {
			sig.AutoActionMatch = auto
		}
		return nil
	}))

	g.Go(a.check(in, "settings", func() error {
		sig.Settings = a.settings.Resolve(ctx, in.AccountID, in.Owner)
		return nil
	}))

	// Errors never propagate past check(); Wait is for synchronization only.
	_ = g.Wait()

	return sig
}

// check wraps one sub-task so a failure or panic degrades to "no signal"
// rather than aborting the join.
func (a *SignalAggregator) check(in *Input, name string, fn func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				signalFailures.WithLabelValues(name).Inc()
				a.logger.Error("signal check panicked",
					zap.String("check", name),
					zap.String("comment_id", in.CommentID),
					zap.Any("panic", r))
			}
		}()
		if err := fn(); err != nil {
			signalFailures.WithLabelValues(name).Inc()
			a.logger.Warn("signal check failed",
				zap.String("check", name),
				zap.String("comment_id", in.CommentID),
				zap.Error(err))
		}
		return nil
	}
}

// isPostOwner reports whether the commenter is the account owner commenting
// on their own post. Owner self-comments are never moderated.
func isPostOwner(in *Input) bool {
	if in.AccountPlatformID != "" && in.CommenterID == in.AccountPlatformID {
		return true
	}
	if in.AccountUsername == "" {
		return false
	}
	return strings.EqualFold(textnorm.NormalizeHandle(in.CommenterUsername), textnorm.NormalizeHandle(in.AccountUsername))
}
