package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/quiz"
	"github.com/dhyana-app/dhyana-backend/internal/repos"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type fakeRuleRepo struct {
	// rules returned for a specific (non-relaxed) query.
	specific []*types.RecommendationRule
	// rules returned for the relaxed practice-type-only query.
	relaxed []*types.RecommendationRule
	err     error

	queries []repos.RuleCriteria
}

func (f *fakeRuleRepo) Create(ctx context.Context, tx *gorm.DB, rules []*types.RecommendationRule) ([]*types.RecommendationRule, error) {
	return rules, nil
}

func (f *fakeRuleRepo) FindByCriteria(ctx context.Context, tx *gorm.DB, criteria repos.RuleCriteria) ([]*types.RecommendationRule, error) {
	f.queries = append(f.queries, criteria)
	if f.err != nil {
		return nil, f.err
	}
	if criteria.Goal == "" && criteria.Approach == "" && criteria.MinDurationSeconds == nil {
		return f.relaxed, nil
	}
	return f.specific, nil
}

type fakeRecordRepo struct {
	mu      sync.Mutex
	seen    []uuid.UUID
	seenErr error
	created chan *types.RecommendationRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{created: make(chan *types.RecommendationRecord, 8)}
}

func (f *fakeRecordRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.RecommendationRecord) ([]*types.RecommendationRecord, error) {
	for _, r := range records {
		f.created <- r
	}
	return records, nil
}

func (f *fakeRecordRepo) ListPracticeIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seenErr != nil {
		return nil, f.seenErr
	}
	return f.seen, nil
}

type fakePracticeRepo struct {
	byID    map[uuid.UUID]*types.Practice
	ambient []*types.Practice
	findErr error
}

func (f *fakePracticeRepo) Create(ctx context.Context, tx *gorm.DB, practices []*types.Practice) ([]*types.Practice, error) {
	return practices, nil
}

func (f *fakePracticeRepo) GetByIDs(ctx context.Context, tx *gorm.DB, practiceIDs []uuid.UUID) ([]*types.Practice, error) {
	var out []*types.Practice
	for _, id := range practiceIDs {
		if p, ok := f.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePracticeRepo) Find(ctx context.Context, tx *gorm.DB, filter repos.PracticeFilter) ([]*types.Practice, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.ambient, nil
}

func rule(practiceID uuid.UUID, priority int) *types.RecommendationRule {
	return &types.RecommendationRule{
		ID:           uuid.New(),
		PracticeType: string(quiz.PracticeShort),
		PracticeID:   practiceID,
		Priority:     priority,
	}
}

func practiceFixture(id uuid.UUID, title string) *types.Practice {
	return &types.Practice{
		ID:        id,
		Title:     title,
		MediaType: types.MediaVideo,
	}
}

func newTestRecommendationService(t *testing.T, rules *fakeRuleRepo, records *fakeRecordRepo, practices *fakePracticeRepo) *recommendationService {
	t.Helper()
	svc := NewRecommendationService(nil, testLogger(t), rules, records, practices).(*recommendationService)
	svc.randIntn = func(n int) int { return 0 }
	return svc
}

func shortCriteria() quiz.Criteria {
	return quiz.Criteria{
		PracticeType: quiz.PracticeShort,
		Goal:         quiz.Goal("energize"),
	}
}

func TestResolvePicksFromHighestPriorityGroup(t *testing.T) {
	top1, top2, low := uuid.New(), uuid.New(), uuid.New()
	rules := &fakeRuleRepo{specific: []*types.RecommendationRule{
		rule(low, 1),
		rule(top1, 5),
		rule(top2, 5),
	}}
	records := newFakeRecordRepo()
	pracs := &fakePracticeRepo{byID: map[uuid.UUID]*types.Practice{
		top1: practiceFixture(top1, "a"),
		top2: practiceFixture(top2, "b"),
		low:  practiceFixture(low, "c"),
	}}
	svc := newTestRecommendationService(t, rules, records, pracs)

	// randIntn pinned to 0: the first member of the top group wins.
	res, err := svc.Resolve(context.Background(), uuid.New(), shortCriteria(), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Practice == nil || res.Practice.ID != top1 {
		t.Fatalf("expected practice %s from top priority group, got %+v", top1, res.Practice)
	}

	svc.randIntn = func(n int) int {
		if n != 2 {
			t.Fatalf("tie-break over %d candidates, want 2", n)
		}
		return 1
	}
	res, err = svc.Resolve(context.Background(), uuid.New(), shortCriteria(), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Practice.ID != top2 {
		t.Fatalf("expected practice %s, got %s", top2, res.Practice.ID)
	}
}

func TestResolveFallsBackToRelaxedQuery(t *testing.T) {
	id := uuid.New()
	rules := &fakeRuleRepo{relaxed: []*types.RecommendationRule{rule(id, 1)}}
	records := newFakeRecordRepo()
	pracs := &fakePracticeRepo{byID: map[uuid.UUID]*types.Practice{id: practiceFixture(id, "fallback")}}
	svc := newTestRecommendationService(t, rules, records, pracs)

	res, err := svc.Resolve(context.Background(), uuid.New(), shortCriteria(), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Practice.ID != id {
		t.Fatalf("expected relaxed fallback practice, got %s", res.Practice.ID)
	}
	if len(rules.queries) != 2 {
		t.Fatalf("expected specific then relaxed query, got %d queries", len(rules.queries))
	}
	if rules.queries[1].Goal != "" || rules.queries[1].MinDurationSeconds != nil {
		t.Fatalf("relaxed query should only carry practice type: %+v", rules.queries[1])
	}
}

func TestResolveNoMatchingContent(t *testing.T) {
	svc := newTestRecommendationService(t, &fakeRuleRepo{}, newFakeRecordRepo(), &fakePracticeRepo{})
	_, err := svc.Resolve(context.Background(), uuid.New(), shortCriteria(), nil)
	if !errors.Is(err, ErrNoMatchingContent) {
		t.Fatalf("expected ErrNoMatchingContent, got %v", err)
	}
}

func TestResolvePrefersUnseenCandidates(t *testing.T) {
	seen, fresh := uuid.New(), uuid.New()
	rules := &fakeRuleRepo{specific: []*types.RecommendationRule{
		rule(seen, 3),
		rule(fresh, 3),
	}}
	records := newFakeRecordRepo()
	records.seen = []uuid.UUID{seen}
	pracs := &fakePracticeRepo{byID: map[uuid.UUID]*types.Practice{
		seen:  practiceFixture(seen, "seen"),
		fresh: practiceFixture(fresh, "fresh"),
	}}
	svc := newTestRecommendationService(t, rules, records, pracs)

	res, err := svc.Resolve(context.Background(), uuid.New(), shortCriteria(), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Practice.ID != fresh {
		t.Fatalf("expected unseen practice %s, got %s", fresh, res.Practice.ID)
	}
}

func TestResolveAllowsRepeatsWhenGroupExhausted(t *testing.T) {
	only := uuid.New()
	rules := &fakeRuleRepo{specific: []*types.RecommendationRule{rule(only, 3)}}
	records := newFakeRecordRepo()
	records.seen = []uuid.UUID{only}
	pracs := &fakePracticeRepo{byID: map[uuid.UUID]*types.Practice{only: practiceFixture(only, "again")}}
	svc := newTestRecommendationService(t, rules, records, pracs)

	res, err := svc.Resolve(context.Background(), uuid.New(), shortCriteria(), nil)
	if err != nil {
		t.Fatalf("expected a repeat instead of an error, got %v", err)
	}
	if res.Practice.ID != only {
		t.Fatalf("expected repeat of %s, got %s", only, res.Practice.ID)
	}
}

func TestResolveToleratesHistoryReadFailure(t *testing.T) {
	id := uuid.New()
	rules := &fakeRuleRepo{specific: []*types.RecommendationRule{rule(id, 1)}}
	records := newFakeRecordRepo()
	records.seenErr = errors.New("history unavailable")
	pracs := &fakePracticeRepo{byID: map[uuid.UUID]*types.Practice{id: practiceFixture(id, "ok")}}
	svc := newTestRecommendationService(t, rules, records, pracs)

	res, err := svc.Resolve(context.Background(), uuid.New(), shortCriteria(), nil)
	if err != nil {
		t.Fatalf("history failure must not block resolution: %v", err)
	}
	if res.Practice.ID != id {
		t.Fatalf("expected practice %s, got %s", id, res.Practice.ID)
	}
}

func TestResolveRecordsShownContent(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()
	rules := &fakeRuleRepo{specific: []*types.RecommendationRule{rule(id, 1)}}
	records := newFakeRecordRepo()
	pracs := &fakePracticeRepo{byID: map[uuid.UUID]*types.Practice{id: practiceFixture(id, "recorded")}}
	svc := newTestRecommendationService(t, rules, records, pracs)

	if _, err := svc.Resolve(context.Background(), userID, shortCriteria(), nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	select {
	case rec := <-records.created:
		if rec.UserID != userID || rec.PracticeID != id {
			t.Fatalf("record mismatch: %+v", rec)
		}
		if len(rec.Criteria) == 0 {
			t.Fatal("record criteria payload is empty")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recommendation record was never written")
	}
}

func TestResolveSelfMeditationReturnsTimer(t *testing.T) {
	ambient := practiceFixture(uuid.New(), "rain")
	ambient.MediaType = types.MediaAudio
	ambient.FileURL = "https://cdn.example.com/rain.mp3"

	svc := newTestRecommendationService(t, &fakeRuleRepo{}, newFakeRecordRepo(), &fakePracticeRepo{
		ambient: []*types.Practice{ambient},
	})

	criteria := quiz.Criteria{PracticeType: quiz.PracticeMeditation, Approach: quiz.ApproachSelf}
	res, err := svc.Resolve(context.Background(), uuid.New(), criteria, &quiz.SelfMeditationSettings{
		DurationSeconds: 600,
		Object:          quiz.ObjectBreath,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Timer == nil {
		t.Fatal("expected a timer resolution")
	}
	if res.Practice != nil {
		t.Fatal("timer resolution must not carry a practice")
	}
	if res.Timer.DurationSeconds != 600 || res.Timer.Object != quiz.ObjectBreath {
		t.Fatalf("timer spec mismatch: %+v", res.Timer)
	}
	if res.Timer.AmbientAudio == nil || res.Timer.AmbientAudio.FileURL != ambient.FileURL {
		t.Fatalf("expected ambient track, got %+v", res.Timer.AmbientAudio)
	}
}

func TestResolveSelfMeditationWithoutAmbientAudio(t *testing.T) {
	svc := newTestRecommendationService(t, &fakeRuleRepo{}, newFakeRecordRepo(), &fakePracticeRepo{
		findErr: errors.New("catalog offline"),
	})

	criteria := quiz.Criteria{PracticeType: quiz.PracticeMeditation, Approach: quiz.ApproachSelf}
	res, err := svc.Resolve(context.Background(), uuid.New(), criteria, &quiz.SelfMeditationSettings{
		DurationSeconds: 300,
		Object:          quiz.ObjectBody,
	})
	if err != nil {
		t.Fatalf("ambient lookup failure must not block the timer: %v", err)
	}
	if res.Timer == nil || res.Timer.AmbientAudio != nil {
		t.Fatalf("expected silent timer, got %+v", res.Timer)
	}
}

func TestResolveSelfMeditationRequiresSettings(t *testing.T) {
	svc := newTestRecommendationService(t, &fakeRuleRepo{}, newFakeRecordRepo(), &fakePracticeRepo{})
	criteria := quiz.Criteria{PracticeType: quiz.PracticeMeditation, Approach: quiz.ApproachSelf}
	if _, err := svc.Resolve(context.Background(), uuid.New(), criteria, nil); err == nil {
		t.Fatal("expected an error without timer settings")
	}
}
