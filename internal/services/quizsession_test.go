package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dhyana-app/dhyana-backend/internal/quiz"
)

// fakeStateStore is an in-memory stand-in for the redis-backed store.
type fakeStateStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	loadErr error
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{data: make(map[string][]byte)}
}

func (f *fakeStateStore) Load(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	raw, ok := f.data[key]
	if !ok {
		return nil, nil
	}
	return raw, nil
}

func (f *fakeStateStore) Save(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeStateStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeStateStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

// fakeResolver lets tests control when and what the recommendation layer
// answers.
type fakeResolver struct {
	mu         sync.Mutex
	calls      int
	resolution *Resolution
	err        error
	// release, when set, blocks Resolve until closed.
	release chan struct{}
	// started signals each entry into Resolve.
	started chan struct{}
}

func (f *fakeResolver) Resolve(ctx context.Context, userID uuid.UUID, criteria quiz.Criteria, selfSettings *quiz.SelfMeditationSettings) (*Resolution, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resolution, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestQuizService(t *testing.T, store *fakeStateStore, resolver *fakeResolver) QuizSessionService {
	t.Helper()
	return NewQuizSessionService(testLogger(t), store, resolver, nil)
}

func ptr[T any](v T) *T { return &v }

// answerShortQuiz walks a user to the short-practice results step.
func answerShortQuiz(t *testing.T, svc QuizSessionService, userID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Answer(ctx, userID, QuizAnswer{PracticeType: ptr(quiz.PracticeShort)}); err != nil {
		t.Fatalf("answer practice type: %v", err)
	}
	if _, err := svc.Next(ctx, userID); err != nil {
		t.Fatalf("next to goal step: %v", err)
	}
	if _, err := svc.Answer(ctx, userID, QuizAnswer{Goal: ptr(quiz.GoalRelax)}); err != nil {
		t.Fatalf("answer goal: %v", err)
	}
	if _, err := svc.Next(ctx, userID); err != nil {
		t.Fatalf("next to results: %v", err)
	}
}

func TestQuizStateSurvivesReload(t *testing.T) {
	store := newFakeStateStore()
	svc := newTestQuizService(t, store, &fakeResolver{})
	userID := uuid.New()

	if _, err := svc.Answer(context.Background(), userID, QuizAnswer{PracticeType: ptr(quiz.PracticeBreathing)}); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// A new service instance simulates a reload hitting another replica.
	svc2 := newTestQuizService(t, store, &fakeResolver{})
	state, err := svc2.GetState(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.PracticeType != quiz.PracticeBreathing {
		t.Fatalf("expected restored practice type, got %q", state.PracticeType)
	}
}

func TestCorruptSnapshotStartsFresh(t *testing.T) {
	store := newFakeStateStore()
	userID := uuid.New()
	store.data[quizStateKey(userID)] = []byte("{not json")

	svc := newTestQuizService(t, store, &fakeResolver{})
	state, err := svc.GetState(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.Step != 0 || state.PracticeType != "" {
		t.Fatalf("expected a fresh state, got %+v", state)
	}
}

func TestStoreReadFailureStartsFresh(t *testing.T) {
	store := newFakeStateStore()
	store.loadErr = errors.New("redis down")

	svc := newTestQuizService(t, store, &fakeResolver{})
	state, err := svc.GetState(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("store failure must not surface: %v", err)
	}
	if state.Step != 0 {
		t.Fatalf("expected a fresh state, got %+v", state)
	}
}

func TestBackFromFirstStepDestroysSnapshot(t *testing.T) {
	store := newFakeStateStore()
	svc := newTestQuizService(t, store, &fakeResolver{})
	userID := uuid.New()

	if _, err := svc.Answer(context.Background(), userID, QuizAnswer{PracticeType: ptr(quiz.PracticeShort)}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !store.has(quizStateKey(userID)) {
		t.Fatal("expected a stored snapshot after answering")
	}

	_, exited, err := svc.Back(context.Background(), userID)
	if err != nil {
		t.Fatalf("Back: %v", err)
	}
	if !exited {
		t.Fatal("Back from step 0 should signal exit")
	}
	if store.has(quizStateKey(userID)) {
		t.Fatal("exit should delete the quiz snapshot")
	}
}

func TestResolveRequiresTerminalState(t *testing.T) {
	svc := newTestQuizService(t, newFakeStateStore(), &fakeResolver{})
	userID := uuid.New()

	if _, err := svc.Answer(context.Background(), userID, QuizAnswer{PracticeType: ptr(quiz.PracticeShort)}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	_, err := svc.Resolve(context.Background(), userID)
	if !errors.Is(err, quiz.ErrStepIncomplete) {
		t.Fatalf("expected ErrStepIncomplete, got %v", err)
	}
}

func TestResolveDestroysSession(t *testing.T) {
	store := newFakeStateStore()
	practice := practiceFixture(uuid.New(), "relaxing video")
	resolver := &fakeResolver{resolution: &Resolution{Practice: practice}}
	svc := newTestQuizService(t, store, resolver)
	userID := uuid.New()

	answerShortQuiz(t, svc, userID)

	res, err := svc.Resolve(context.Background(), userID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Practice == nil || res.Practice.ID != practice.ID {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if store.has(quizStateKey(userID)) {
		t.Fatal("resolve should delete the quiz snapshot")
	}
}

func TestResolveDiscardedWhenAnswersChangeMidFlight(t *testing.T) {
	store := newFakeStateStore()
	resolver := &fakeResolver{
		resolution: &Resolution{Practice: practiceFixture(uuid.New(), "stale")},
		release:    make(chan struct{}),
		started:    make(chan struct{}, 1),
	}
	svc := newTestQuizService(t, store, resolver)
	userID := uuid.New()

	answerShortQuiz(t, svc, userID)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Resolve(context.Background(), userID)
		errCh <- err
	}()

	<-resolver.started
	// Changing an answer while the resolve is in flight supersedes it.
	if _, err := svc.Answer(context.Background(), userID, QuizAnswer{Goal: ptr(quiz.GoalEnergize)}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	close(resolver.release)

	if err := <-errCh; !errors.Is(err, ErrStaleResolution) {
		t.Fatalf("expected ErrStaleResolution, got %v", err)
	}
	// The superseded resolve must not have destroyed the session.
	if !store.has(quizStateKey(userID)) {
		t.Fatal("stale resolve must leave the snapshot in place")
	}
}

func TestConcurrentIdenticalResolvesCollapse(t *testing.T) {
	store := newFakeStateStore()
	resolver := &fakeResolver{
		resolution: &Resolution{Practice: practiceFixture(uuid.New(), "shared")},
		release:    make(chan struct{}),
		started:    make(chan struct{}, 1),
	}
	svc := newTestQuizService(t, store, resolver)
	userID := uuid.New()

	answerShortQuiz(t, svc, userID)

	const callers = 4
	errCh := make(chan error, callers)
	go func() {
		_, err := svc.Resolve(context.Background(), userID)
		errCh <- err
	}()
	<-resolver.started
	for i := 1; i < callers; i++ {
		go func() {
			_, err := svc.Resolve(context.Background(), userID)
			errCh <- err
		}()
	}
	// Give the late callers time to join the in-flight resolve.
	time.Sleep(100 * time.Millisecond)
	close(resolver.release)

	for i := 0; i < callers; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("Resolve %d: %v", i, err)
		}
	}
	if got := resolver.callCount(); got != 1 {
		t.Fatalf("expected one collapsed flight, got %d", got)
	}
}

func TestResetBumpsTokenAndClearsAnswers(t *testing.T) {
	store := newFakeStateStore()
	svc := newTestQuizService(t, store, &fakeResolver{})
	userID := uuid.New()

	answerShortQuiz(t, svc, userID)
	state, err := svc.Reset(context.Background(), userID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if state.Step != 0 || state.PracticeType != "" || state.Goal != "" {
		t.Fatalf("expected pristine state after reset, got %+v", state)
	}
}

func TestResolverErrorsPassThrough(t *testing.T) {
	resolver := &fakeResolver{err: ErrNoMatchingContent}
	svc := newTestQuizService(t, newFakeStateStore(), resolver)
	userID := uuid.New()

	answerShortQuiz(t, svc, userID)
	_, err := svc.Resolve(context.Background(), userID)
	if !errors.Is(err, ErrNoMatchingContent) {
		t.Fatalf("expected ErrNoMatchingContent, got %v", err)
	}
}

func TestAnswerEmptyRejected(t *testing.T) {
	svc := newTestQuizService(t, newFakeStateStore(), &fakeResolver{})
	if _, err := svc.Answer(context.Background(), uuid.New(), QuizAnswer{}); err == nil {
		t.Fatal("expected an error for an empty answer")
	}
}
