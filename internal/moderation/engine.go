package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

// FeatureCommentModeration is the billing feature gating this pipeline.
const FeatureCommentModeration = "comment_moderation"

// Notifier receives every finished moderation result, e.g. for the live
// dashboard feed. Optional; a nil notifier is skipped.
type Notifier interface {
	PublishResult(result *models.ModerationResult)
}

// EngineConfig wires the engine's collaborators at construction. There is no
// global instance and no runtime test-mode flag; tests and dry runs inject
// NoopExecutor instead.
type EngineConfig struct {
	Signals    *SignalAggregator
	Classifier *ClassifierAdapter
	Tracker    *Tracker
	Executor   ActionExecutor
	Comments   CommentStore
	Lists      ListStore
	Evidence   EvidenceStore
	Billing    Billing
	Notifier   Notifier
	Logger     *zap.Logger
}

// Engine evaluates one comment at a time through a fixed-priority cascade of
// decision rules. The priority order lives in the preRules/postRules slices,
// not in scattered control flow: the first rule returning an outcome ends
// the evaluation.
type Engine struct {
	signals    *SignalAggregator
	classifier *ClassifierAdapter
	tracker    *Tracker
	executor   ActionExecutor
	comments   CommentStore
	lists      ListStore
	evidence   EvidenceStore
	billing    Billing
	notifier   Notifier
	logger     *zap.Logger

	preRules  []cascadeRule
	postRules []cascadeRule

	now   func() time.Time
	newID func() string
}

// evalState carries one evaluation through the cascade.
type evalState struct {
	ctx    context.Context
	in     *Input
	sig    *Signals
	evalID string

	cls  models.Classification
	risk models.RiskScoreResult

	// Rationale annotations accumulated by non-terminal rules (auto-flag
	// custom filters).
	annotations []string
}

// outcome is a terminal cascade decision.
type outcome struct {
	action models.Action
	reason string
	hide   bool
	del    bool

	// The billing short-circuit and owner/whitelist bypasses skip parts of
	// the bookkeeping that every other terminal action gets.
	skipTracking    bool
	skipCommentSave bool
	skipEvidence    bool
}

// cascadeRule is one named decision rule. A nil outcome means the rule did
// not fire and evaluation continues down the list.
type cascadeRule struct {
	name string
	eval func(*evalState) *outcome
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		signals:    cfg.Signals,
		classifier: cfg.Classifier,
		tracker:    cfg.Tracker,
		executor:   cfg.Executor,
		comments:   cfg.Comments,
		lists:      cfg.Lists,
		evidence:   cfg.Evidence,
		billing:    cfg.Billing,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}

	e.preRules = []cascadeRule{
		{name: "whitelisted_commenter", eval: e.ruleWhitelistedCommenter},
		{name: "post_owner", eval: e.rulePostOwner},
		{name: "account_auto_delete", eval: e.ruleAccountAutoDelete},
		{name: "similarity_auto_action_high", eval: e.ruleSimilarityHighConfidence},
	}
	e.postRules = []cascadeRule{
		{name: "watchlist_auto_delete", eval: e.ruleWatchlistAutoDelete},
		{name: "whitelisted_identifier", eval: e.ruleWhitelistedIdentifier},
		{name: "watchlist_mention", eval: e.ruleWatchlistMention},
		{name: "risk_score", eval: e.ruleComputeRisk},
		{name: "custom_filters", eval: e.ruleCustomFilters},
		{name: "confidence_thresholds", eval: e.ruleConfidenceThresholds},
		{name: "similarity_auto_action_low", eval: e.ruleSimilarityLowConfidence},
		{name: "allowed_similarity_agreement", eval: e.ruleAllowedSimilarity},
		{name: "category_thresholds", eval: e.ruleCategoryThresholds},
		{name: "default", eval: e.ruleDefault},
	}
	return e
}

// Moderate evaluates one comment to a terminal action. It never returns an
// error and never panics past this point: any unexpected failure produces a
// FLAGGED result so nothing slips through silently benign.
func (e *Engine) Moderate(ctx context.Context, in *Input) (result models.ModerationResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("moderation pipeline panic",
				zap.String("comment_id", in.CommentID),
				zap.Any("panic", r))
			result = e.systemFailure(ctx, in)
		}
	}()

	// Entitlement gate: exhausted billing is expected, not an error. Nothing
	// else runs, nothing is recorded.
	allowed, err := e.billing.CheckFeatureAllowed(ctx, in.Owner, FeatureCommentModeration)
	if err != nil {
		// Fail open: a broken billing check must not stop moderation.
		e.logger.Warn("billing check failed, allowing", zap.String("owner", in.Owner.Key()), zap.Error(err))
		allowed = true
	}
	if !allowed {
		out := &outcome{
			action:          models.ActionBenign,
			reason:          models.ReasonBillingLimitReached,
			skipTracking:    true,
			skipCommentSave: true,
			skipEvidence:    true,
		}
		st := &evalState{ctx: ctx, in: in, sig: &Signals{Settings: DefaultSettings()}, evalID: e.newID()}
		return e.finalize(st, out)
	}

	st := &evalState{ctx: ctx, in: in, sig: e.signals.Gather(ctx, in), evalID: e.newID()}

	for _, rule := range e.preRules {
		if out := rule.eval(st); out != nil {
			return e.finalize(st, out)
		}
	}

	cls, err := e.classifier.Classify(ctx, in.Text, st.sig.Filters, st.sig.SimilarityContext())
	if err != nil {
		e.logger.Error("classification failed", zap.String("comment_id", in.CommentID), zap.Error(err))
		return e.systemFailure(ctx, in)
	}
	st.cls = cls

	for _, rule := range e.postRules {
		if out := rule.eval(st); out != nil {
			return e.finalize(st, out)
		}
	}

	// The default rule is total; reaching here means a rule list bug.
	e.logger.Error("cascade fell through without a terminal rule", zap.String("comment_id", in.CommentID))
	return e.systemFailure(ctx, in)
}

// --- pre-classification rules, in cascade order ---

func (e *Engine) ruleWhitelistedCommenter(st *evalState) *outcome {
	if !st.sig.Whitelisted {
		return nil
	}
	st.cls = models.Classification{
		Category:  models.CategoryBenign,
		Rationale: "Commenter is whitelisted; moderation bypassed.",
	}
	return &outcome{action: models.ActionBenign, reason: models.ReasonWhitelistedCommenter, skipTracking: true}
}

func (e *Engine) rulePostOwner(st *evalState) *outcome {
	if !st.sig.IsPostOwner {
		return nil
	}
	st.cls = models.Classification{
		Category:  models.CategoryBenign,
		Rationale: "Account owner commenting on their own post; never moderated.",
	}
	return &outcome{action: models.ActionBenign, reason: models.ReasonPostOwner, skipTracking: true, skipCommentSave: true}
}

func (e *Engine) ruleAccountAutoDelete(st *evalState) *outcome {
	if st.sig.Suspicious == nil || !st.sig.Suspicious.AutoDeleteEnabled {
		return nil
	}
	// The synthesized classification explains why deletion happened, not
	// what the comment said; the text was never classified.
	st.cls = models.Classification{
		Category:   models.CategoryBenign,
		Severity:   100,
		Confidence: 1,
		Rationale:  "Auto-delete is enabled for this commenter; comment removed without classification.",
	}
	return &outcome{action: models.ActionDeleted, reason: models.ReasonAccountAutoDelete, del: true}
}

func (e *Engine) ruleSimilarityHighConfidence(st *evalState) *outcome {
	match := st.sig.AutoActionMatch
	if !st.sig.Settings.SimilarityEnabled || match == nil {
		return nil
	}
	if match.Similarity < st.sig.Settings.SimilarityThreshold {
		return nil
	}
	// The sole path that skips the classifier, purely for cost: the match is
	// close enough to a previously reviewed comment to reuse its action.
	st.cls = models.Classification{
		Category:   models.CategoryBenign,
		Confidence: match.Similarity,
		Rationale:  "Matched a previously reviewed comment with high similarity; applied its predetermined action without classification.",
	}
	if match.Hide {
		return &outcome{action: models.ActionFlagged, reason: models.ReasonSimilarityAutoHide, hide: true}
	}
	return &outcome{action: models.ActionDeleted, reason: models.ReasonSimilarityAutoDelete, del: true}
}

// --- post-classification rules, in cascade order ---

func (e *Engine) ruleWatchlistAutoDelete(st *evalState) *outcome {
	var matched []models.WatchlistEntry
	for _, entry := range st.sig.WatchlistMatches {
		if entry.AutoDelete {
			matched = append(matched, entry)
		}
	}
	if len(matched) == 0 {
		return nil
	}
	for _, entry := range matched {
		e.recordDetection(st, entry, "commenter_match")
	}
	return &outcome{action: models.ActionDeleted, reason: models.ReasonWatchlistMatch, del: true}
}

func (e *Engine) ruleWhitelistedIdentifier(st *evalState) *outcome {
	for _, ident := range st.cls.Identifiers {
		ok, err := e.lists.IsIdentifierWhitelisted(st.ctx, st.in.Owner, st.in.AccountID, ident.Value)
		if err != nil {
			e.logger.Warn("identifier whitelist lookup failed", zap.String("identifier", ident.Value), zap.Error(err))
			continue
		}
		if ok {
			return &outcome{action: models.ActionBenign, reason: models.ReasonWhitelistedIdentifier}
		}
	}
	return nil
}

func (e *Engine) ruleWatchlistMention(st *evalState) *outcome {
	if len(st.sig.WatchlistMentions) == 0 {
		return nil
	}
	for _, entry := range st.sig.WatchlistMentions {
		e.recordDetection(st, entry, "username_mention")
	}
	return &outcome{action: models.ActionDeleted, reason: models.ReasonWatchlistMention, del: true}
}

// ruleComputeRisk is non-terminal: it fills in the risk score the remaining
// rules compare against.
func (e *Engine) ruleComputeRisk(st *evalState) *outcome {
	repeat := 0
	velocity := 0.0
	if st.sig.Suspicious != nil {
		repeat = st.sig.Suspicious.ViolationCount()
		velocity = st.sig.Suspicious.CommentsPerDay(e.now())
	}
	st.risk = ScoreRisk(st.cls.Severity, st.cls.Confidence, repeat, velocity, 0)
	return nil
}

func (e *Engine) ruleCustomFilters(st *evalState) *outcome {
	if len(st.sig.Filters) == 0 {
		return nil
	}

	var matched []models.CustomFilter
	var semantic []models.CustomFilter
	textLower := strings.ToLower(st.in.Text)

	for _, f := range st.sig.Filters {
		switch {
		case f.Semantic:
			semantic = append(semantic, f)
		case f.Category != "" && f.Category == st.cls.Category:
			matched = append(matched, f)
		case f.Prompt != "" && strings.Contains(textLower, strings.ToLower(f.Prompt)):
			matched = append(matched, f)
		}
	}

	if len(semantic) > 0 {
		ids, err := e.classifier.MatchFilters(st.ctx, st.in.Text, semantic)
		if err != nil {
			e.logger.Warn("semantic filter match failed", zap.String("comment_id", st.in.CommentID), zap.Error(err))
		} else {
			hit := make(map[string]bool, len(ids))
			for _, id := range ids {
				hit[id.Hex()] = true
			}
			for _, f := range semantic {
				if hit[f.ID.Hex()] {
					matched = append(matched, f)
				}
			}
		}
	}

	if len(matched) == 0 {
		return nil
	}

	// Fixed sub-priority: auto-delete beats auto-hide beats auto-flag.
	for _, f := range matched {
		if f.AutoDelete {
			return &outcome{action: models.ActionDeleted, reason: models.ReasonCustomFilterAutoDelete, del: true}
		}
	}
	for _, f := range matched {
		if f.AutoHide {
			return &outcome{action: models.ActionFlagged, reason: models.ReasonCustomFilterAutoHide, hide: true}
		}
	}
	for _, f := range matched {
		if f.AutoFlag {
			st.annotations = append(st.annotations, "matched custom filter: "+f.Prompt)
		}
	}
	return nil
}

func (e *Engine) ruleConfidenceThresholds(st *evalState) *outcome {
	if st.cls.Category == models.CategoryBenign {
		return nil
	}
	if st.cls.Confidence >= st.sig.Settings.ConfidenceDeleteThreshold {
		return &outcome{action: models.ActionDeleted, reason: models.ReasonConfidenceAutoDelete, del: true}
	}
	if st.cls.Confidence >= st.sig.Settings.ConfidenceHideThreshold {
		return &outcome{action: models.ActionFlagged, reason: models.ReasonConfidenceAutoHide, hide: true}
	}
	return nil
}

func (e *Engine) ruleSimilarityLowConfidence(st *evalState) *outcome {
	match := st.sig.AutoActionMatch
	if !st.sig.Settings.SimilarityEnabled || match == nil {
		return nil
	}
	// The high-confidence rule already consumed matches at or above the
	// configured threshold; anything still here is between the floor and the
	// threshold, applied now that classification had its chance.
	if match.Hide {
		return &outcome{action: models.ActionFlagged, reason: models.ReasonSimilarityAutoHide, hide: true}
	}
	return &outcome{action: models.ActionDeleted, reason: models.ReasonSimilarityAutoDelete, del: true}
}

func (e *Engine) ruleAllowedSimilarity(st *evalState) *outcome {
	if st.sig.AllowedMatch == nil {
		return nil
	}
	// Embedding similarity to an allowed pattern is corroborating evidence
	// only. When the classifier independently agrees the comment is benign,
	// cite both signals; when it disagrees, the classifier's verdict wins.
	if st.cls.Category != models.CategoryBenign {
		return nil
	}
	st.annotations = append(st.annotations, "matched allowed pattern with similarity agreement")
	return &outcome{action: models.ActionBenign, reason: models.ReasonAllowedSimilarity}
}

func (e *Engine) ruleCategoryThresholds(st *evalState) *outcome {
	// A manually enabled per-commenter auto-hide overrides every category
	// threshold in this step.
	if st.sig.Suspicious != nil && st.sig.Suspicious.AutoHideEnabled {
		return &outcome{action: models.ActionFlagged, reason: models.ReasonAccountAutoHide, hide: true}
	}
	if st.cls.Category == models.CategoryBenign {
		return nil
	}

	rule := st.sig.Settings.Rule(st.cls.Category)
	if rule.AutoDeleteEnabled && st.risk.Score >= rule.AutoDeleteThreshold {
		return &outcome{action: models.ActionDeleted, reason: models.ReasonCategoryAutoDelete, del: true}
	}
	if rule.FlagDeleteEnabled && st.risk.Score >= rule.FlagDeleteThreshold {
		// Flagged for deletion: surfaced for review, no platform action yet.
		return &outcome{action: models.ActionFlagged, reason: models.ReasonCategoryFlagDelete}
	}
	if rule.FlagHideEnabled && st.risk.Score >= rule.FlagHideThreshold {
		return &outcome{action: models.ActionFlagged, reason: models.ReasonCategoryFlagHide, hide: true}
	}
	return nil
}

func (e *Engine) ruleDefault(st *evalState) *outcome {
	if st.cls.Category != models.CategoryBenign && st.risk.Score >= 50 {
		return &outcome{action: models.ActionFlagged, reason: models.ReasonRiskFlagged}
	}
	return &outcome{action: models.ActionBenign, reason: models.ReasonBenignDefault}
}

// --- bookkeeping ---

func (e *Engine) recordDetection(st *evalState, entry models.WatchlistEntry, kind string) {
	event := &models.DetectionEvent{
		CreatedAt:        e.now(),
		WatchlistEntryID: entry.ID,
		AccountID:        st.in.AccountID,
		CommentID:        st.in.CommentID,
		Kind:             kind,
	}
	if err := e.lists.RecordDetection(st.ctx, event); err != nil {
		e.logger.Warn("recording detection event failed",
			zap.String("watchlist_entry", entry.ID.Hex()),
			zap.String("kind", kind),
			zap.Error(err))
	}
}

// finalize applies the platform action, persists state, records evidence,
// updates the tracker, and builds the result. Each step is best-effort; a
// failing side effect is logged and the rest still run.
func (e *Engine) finalize(st *evalState, out *outcome) models.ModerationResult {
	in := st.in

	if len(st.annotations) > 0 {
		if st.cls.Rationale != "" {
			st.cls.Rationale += " "
		}
		st.cls.Rationale += strings.Join(st.annotations, "; ")
	}

	platformFailed := false
	switch {
	case out.del:
		platformFailed = e.executor.Delete(st.ctx, in)
	case out.hide:
		platformFailed = e.executor.Hide(st.ctx, in)
	}

	if !out.skipCommentSave {
		e.saveComment(st, out, platformFailed)
	}

	if !out.skipEvidence {
		e.writeEvidence(st, out, false)
	}

	if !out.skipTracking {
		if err := e.tracker.RecordDecision(st.ctx, in, st.cls.Category, st.risk.Score, out.action); err != nil {
			e.logger.Error("tracker update failed", zap.String("comment_id", in.CommentID), zap.Error(err))
		}
	}

	if !out.skipEvidence {
		if err := e.billing.Track(st.ctx, in.Owner, FeatureCommentModeration, 1); err != nil {
			e.logger.Warn("usage tracking failed", zap.String("owner", in.Owner.Key()), zap.Error(err))
		}
	}

	decisionsTotal.WithLabelValues(string(out.action), out.reason).Inc()

	result := models.ModerationResult{
		EvaluationID:         st.evalID,
		EvaluatedAt:          e.now(),
		AccountID:            in.AccountID,
		CommentID:            in.CommentID,
		PlatformCommentID:    in.PlatformCommentID,
		Action:               out.action,
		Reason:               out.reason,
		Classification:       st.cls,
		RiskScore:            st.risk,
		PlatformActionFailed: platformFailed,
	}

	if e.notifier != nil && !out.skipEvidence {
		e.notifier.PublishResult(&result)
	}

	return result
}

func (e *Engine) saveComment(st *evalState, out *outcome, platformFailed bool) {
	status := models.CommentStatusActive
	switch {
	case out.del:
		status = models.CommentStatusDeleted
	case out.hide:
		status = models.CommentStatusHidden
	case out.action == models.ActionFlagged:
		status = models.CommentStatusFlagged
	}

	comment := &models.Comment{
		CreatedAt:            st.in.ReceivedAt,
		UpdatedAt:            e.now(),
		AccountID:            st.in.AccountID,
		PostID:               st.in.PostID,
		PlatformCommentID:    st.in.PlatformCommentID,
		CommenterID:          st.in.CommenterID,
		CommenterUsername:    st.in.CommenterUsername,
		Text:                 st.in.Text,
		OwnerUserID:          st.in.Owner.UserID,
		OwnerClientID:        st.in.Owner.ClientID,
		Status:               status,
		Category:             st.cls.Category,
		RiskScore:            st.risk.Score,
		Reason:               out.reason,
		PlatformActionFailed: platformFailed,
	}
	if err := e.comments.SaveModerated(st.ctx, comment); err != nil {
		e.logger.Error("saving comment failed", zap.String("comment_id", st.in.CommentID), zap.Error(err))
	}
}

func (e *Engine) writeEvidence(st *evalState, out *outcome, degraded bool) {
	rec := &models.EvidenceRecord{
		CreatedAt:    e.now(),
		EvaluationID: st.evalID,
		AccountID:    st.in.AccountID,
		CommentID:    st.in.CommentID,
		CommenterID:  st.in.CommenterID,
		CommentText:  st.in.Text,
		Category:     st.cls.Category,
		RiskScore:    st.risk.Score,
		Action:       out.action,
		Reason:       out.reason,
		Rationale:    st.cls.Rationale,
		Degraded:     degraded,
	}
	if err := e.evidence.Insert(st.ctx, rec); err != nil {
		e.logger.Error("writing evidence failed", zap.String("comment_id", st.in.CommentID), zap.Error(err))
	}
}

// systemFailure is the catch-all: an unexpected error anywhere forces a
// FLAGGED result so a human reviews the comment, with a best-effort degraded
// evidence record.
func (e *Engine) systemFailure(ctx context.Context, in *Input) models.ModerationResult {
	pipelineFailures.Inc()

	st := &evalState{
		ctx:    ctx,
		in:     in,
		evalID: e.newID(),
		cls: models.Classification{
			Category:  models.CategoryBenign,
			Rationale: "Moderation pipeline failed; flagged for manual review.",
		},
	}
	out := &outcome{action: models.ActionFlagged, reason: models.ReasonSystemError}

	e.writeEvidence(st, out, true)
	decisionsTotal.WithLabelValues(string(out.action), out.reason).Inc()

	return models.ModerationResult{
		EvaluationID:      st.evalID,
		EvaluatedAt:       e.now(),
		AccountID:         in.AccountID,
		CommentID:         in.CommentID,
		PlatformCommentID: in.PlatformCommentID,
		Action:            models.ActionFlagged,
		Reason:            models.ReasonSystemError,
		Classification:    st.cls,
	}
}
