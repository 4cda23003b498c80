package moderation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

// Shared in-memory fakes for the pipeline tests. Each fake records calls so
// tests can assert on side effects as well as results.

type fakeProvider struct {
	mu sync.Mutex

	classifyResults []models.Classification
	classifyErr     error
	classifyCalls   int

	reEvaluateResult models.Classification
	reEvaluateErr    error
	reEvaluateCalls  int

	matchIDs   []primitive.ObjectID
	matchErr   error
	matchCalls int
}

func (f *fakeProvider) Classify(ctx context.Context, text string, filters []models.CustomFilter, simCtx *SimilarityContext) (models.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifyCalls++
	if f.classifyErr != nil {
		return models.Classification{}, f.classifyErr
	}
	if len(f.classifyResults) == 0 {
		return models.Classification{Category: models.CategoryBenign}, nil
	}
	idx := f.classifyCalls - 1
	if idx >= len(f.classifyResults) {
		idx = len(f.classifyResults) - 1
	}
	return f.classifyResults[idx], nil
}

func (f *fakeProvider) ReEvaluate(ctx context.Context, text string, suspected models.Category, evidence string) (models.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reEvaluateCalls++
	if f.reEvaluateErr != nil {
		return models.Classification{}, f.reEvaluateErr
	}
	return f.reEvaluateResult, nil
}

func (f *fakeProvider) MatchFilterDescriptions(ctx context.Context, text string, filters []models.CustomFilter) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchCalls++
	return f.matchIDs, f.matchErr
}

func (f *fakeProvider) AnalyzeURL(ctx context.Context, url string) (models.URLAnalysis, error) {
	return models.URLAnalysis{}, nil
}

type fakeExecutor struct {
	mu         sync.Mutex
	hides      []string
	deletes    []string
	blocks     []string
	hideFail   bool
	deleteFail bool
}

func (f *fakeExecutor) Hide(ctx context.Context, in *Input) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hides = append(f.hides, in.PlatformCommentID)
	return f.hideFail
}

func (f *fakeExecutor) Delete(ctx context.Context, in *Input) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, in.PlatformCommentID)
	return f.deleteFail
}

func (f *fakeExecutor) Block(ctx context.Context, in *Input) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, in.CommenterID)
	return false
}

type fakeAccounts struct {
	mu      sync.Mutex
	records map[string]*models.SuspiciousAccount // keyed by id hex

	findResult *models.SuspiciousAccount
	findErr    error

	applyErr     error
	applyUpdates []AccountUpdate
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{records: make(map[string]*models.SuspiciousAccount)}
}

func (f *fakeAccounts) Find(ctx context.Context, accountID, commenterID, username string) (*models.SuspiciousAccount, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, false, f.findErr
	}
	if f.findResult != nil {
		return f.findResult, true, nil
	}
	return nil, false, nil
}

func (f *fakeAccounts) ApplyUpdate(ctx context.Context, upd AccountUpdate) (*models.SuspiciousAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	f.applyUpdates = append(f.applyUpdates, upd)

	key := upd.AccountID + "|" + upd.CommenterID
	rec, ok := f.records[key]
	if !ok {
		rec = &models.SuspiciousAccount{
			ID:                primitive.NewObjectID(),
			AccountID:         upd.AccountID,
			CommenterID:       upd.CommenterID,
			CategoryCounts:    make(map[string]int),
			IsHidden:          true,
			CommenterUsername: upd.CommenterUsername,
			FirstSeenAt:       time.Now(),
		}
		f.records[key] = rec
		f.records[rec.ID.Hex()] = rec
	}
	rec.TotalComments++
	if upd.Flagged {
		rec.FlaggedComments++
	}
	if upd.Deleted {
		rec.DeletedComments++
	}
	if upd.Category != "" && upd.Category != models.CategoryBenign {
		rec.CategoryCounts[string(upd.Category)]++
	}
	if upd.RiskScore > rec.HighestRiskScore {
		rec.HighestRiskScore = upd.RiskScore
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeAccounts) SetBlocked(ctx context.Context, id primitive.ObjectID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id.Hex()]; ok {
		rec.IsBlocked = true
		rec.BlockedReason = reason
	}
	return nil
}

func (f *fakeAccounts) SetAverageRisk(ctx context.Context, id primitive.ObjectID, avg float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id.Hex()]; ok {
		rec.AverageRiskScore = avg
	}
	return nil
}

func (f *fakeAccounts) SetVisible(ctx context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id.Hex()]; ok {
		rec.IsHidden = false
	}
	return nil
}

func (f *fakeAccounts) SetAutoFlags(ctx context.Context, id primitive.ObjectID, autoHide, autoDelete bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id.Hex()]; ok {
		rec.AutoHideEnabled = autoHide
		rec.AutoDeleteEnabled = autoDelete
	}
	return nil
}

func (f *fakeAccounts) Get(ctx context.Context, id primitive.ObjectID) (*models.SuspiciousAccount, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id.Hex()]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (f *fakeAccounts) get(key string) *models.SuspiciousAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[key]
}

type fakeLists struct {
	mu sync.Mutex

	whitelisted            bool
	whitelistedIdentifiers map[string]bool
	watchlistMatches       []models.WatchlistEntry
	watchlistMentions      []models.WatchlistEntry
	filters                []models.CustomFilter
	detections             []models.DetectionEvent

	err error
}

func (f *fakeLists) IsCommenterWhitelisted(ctx context.Context, owner models.OwnerRef, accountID, commenterID, username string) (bool, error) {
	return f.whitelisted, f.err
}

func (f *fakeLists) IsIdentifierWhitelisted(ctx context.Context, owner models.OwnerRef, accountID, identifier string) (bool, error) {
	return f.whitelistedIdentifiers[identifier], f.err
}

func (f *fakeLists) WatchlistMatches(ctx context.Context, owner models.OwnerRef, commenterID, username string) ([]models.WatchlistEntry, error) {
	return f.watchlistMatches, f.err
}

func (f *fakeLists) WatchlistMentions(ctx context.Context, owner models.OwnerRef, text string) ([]models.WatchlistEntry, error) {
	return f.watchlistMentions, f.err
}

func (f *fakeLists) EnabledFilters(ctx context.Context, owner models.OwnerRef, accountID string) ([]models.CustomFilter, error) {
	return f.filters, f.err
}

func (f *fakeLists) RecordDetection(ctx context.Context, event *models.DetectionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detections = append(f.detections, *event)
	return nil
}

type fakeIndex struct {
	embedErr  error
	allowed   *SimilarMatch
	auto      *AutoActionMatch
	lookupErr error
}

func (f *fakeIndex) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeIndex) FindAllowedSimilar(ctx context.Context, owner models.OwnerRef, vec []float32, minSimilarity float64) (*SimilarMatch, bool, error) {
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	if f.allowed == nil || f.allowed.Similarity < minSimilarity {
		return nil, false, nil
	}
	return f.allowed, true, nil
}

func (f *fakeIndex) FindAutoActionSimilar(ctx context.Context, owner models.OwnerRef, vec []float32, minSimilarity float64) (*AutoActionMatch, bool, error) {
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	if f.auto == nil || f.auto.Similarity < minSimilarity {
		return nil, false, nil
	}
	return f.auto, true, nil
}

type fakeSettingsStore struct {
	account *models.ModerationSettings
	client  *models.ModerationSettings
	owner   *models.ModerationSettings
	err     error
}

func (f *fakeSettingsStore) AccountSettings(ctx context.Context, accountID string) (*models.ModerationSettings, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.account, f.account != nil, nil
}

func (f *fakeSettingsStore) ClientSettings(ctx context.Context, clientID primitive.ObjectID) (*models.ModerationSettings, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.client, f.client != nil, nil
}

func (f *fakeSettingsStore) OwnerSettings(ctx context.Context, owner models.OwnerRef) (*models.ModerationSettings, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.owner, f.owner != nil, nil
}

type fakeComments struct {
	mu      sync.Mutex
	saved   []models.Comment
	hidden  []string
	deleted []string
	list    []models.Comment
}

func (f *fakeComments) SaveModerated(ctx context.Context, comment *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *comment)
	return nil
}

func (f *fakeComments) MarkHidden(ctx context.Context, accountID, platformCommentID string, platformFailed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden = append(f.hidden, platformCommentID)
	return nil
}

func (f *fakeComments) MarkDeleted(ctx context.Context, accountID, platformCommentID string, platformFailed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, platformCommentID)
	return nil
}

func (f *fakeComments) ListByCommenter(ctx context.Context, accountID, commenterID string) ([]models.Comment, error) {
	return f.list, nil
}

type fakeEvidence struct {
	mu      sync.Mutex
	records []models.EvidenceRecord
}

func (f *fakeEvidence) Insert(ctx context.Context, rec *models.EvidenceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return nil
}

type fakeBilling struct {
	mu       sync.Mutex
	allowed  bool
	checkErr error
	tracked  int
}

func (f *fakeBilling) CheckFeatureAllowed(ctx context.Context, owner models.OwnerRef, feature string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.allowed, nil
}

func (f *fakeBilling) Track(ctx context.Context, owner models.OwnerRef, feature string, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked += amount
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	results []models.ModerationResult
}

func (f *fakeNotifier) PublishResult(result *models.ModerationResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, *result)
}

var errFake = errors.New("fake failure")
