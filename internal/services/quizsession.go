package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dhyana-app/dhyana-backend/internal/clients/redis"
	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/quiz"
	"github.com/dhyana-app/dhyana-backend/internal/sse"
)

// ErrStaleResolution marks a resolve whose criteria were superseded by a
// newer resolve before it completed; its result must be discarded.
var ErrStaleResolution = errors.New("resolution superseded by a newer request")

// QuizAnswer carries one step's answer; exactly one field should be set,
// matching what the current step requires.
type QuizAnswer struct {
	PracticeType   *quiz.PracticeType           `json:"practice_type,omitempty"`
	Duration       *quiz.DurationRange          `json:"duration,omitempty"`
	Goal           *quiz.Goal                   `json:"goal,omitempty"`
	Approach       *quiz.Approach               `json:"approach,omitempty"`
	SelfMeditation *quiz.SelfMeditationSettings `json:"self_meditation,omitempty"`
}

type QuizSessionService interface {
	GetState(ctx context.Context, userID uuid.UUID) (*quiz.State, error)
	Answer(ctx context.Context, userID uuid.UUID, answer QuizAnswer) (*quiz.State, error)
	Next(ctx context.Context, userID uuid.UUID) (*quiz.State, error)
	Back(ctx context.Context, userID uuid.UUID) (*quiz.State, bool, error)
	Reset(ctx context.Context, userID uuid.UUID) (*quiz.State, error)
	Resolve(ctx context.Context, userID uuid.UUID) (*Resolution, error)
}

type quizSessionService struct {
	log    *logger.Logger
	store  redis.StateStore
	recSvc RecommendationService
	hub    *sse.Hub

	mu     sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
	tokens map[uuid.UUID]uint64

	resolveGroup singleflight.Group
}

func NewQuizSessionService(log *logger.Logger, store redis.StateStore, recSvc RecommendationService, hub *sse.Hub) QuizSessionService {
	return &quizSessionService{
		log:    log.With("service", "QuizSessionService"),
		store:  store,
		recSvc: recSvc,
		hub:    hub,
		locks:  make(map[uuid.UUID]*sync.Mutex),
		tokens: make(map[uuid.UUID]uint64),
	}
}

func quizStateKey(userID uuid.UUID) string {
	return "quiz:state:" + userID.String()
}

// userLock serializes mutations per user; transitions apply in the order
// received.
func (s *quizSessionService) userLock(userID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// loadState restores the snapshot or starts fresh. A corrupt snapshot is a
// silent fallback to defaults, not an error the user sees.
func (s *quizSessionService) loadState(ctx context.Context, userID uuid.UUID) *quiz.State {
	raw, err := s.store.Load(ctx, quizStateKey(userID))
	if err != nil {
		s.log.Warn("Quiz snapshot read failed, starting fresh", "error", err, "userID", userID)
		return quiz.NewState()
	}
	if raw == nil {
		return quiz.NewState()
	}
	state, err := quiz.RestoreState(raw)
	if err != nil {
		s.log.Debug("Quiz snapshot corrupt, starting fresh", "error", err, "userID", userID)
		return quiz.NewState()
	}
	return state
}

// saveState persists the snapshot so an accidental reload resumes in place.
// Persistence failures are not surfaced; the in-memory flow continues.
func (s *quizSessionService) saveState(ctx context.Context, userID uuid.UUID, state *quiz.State) {
	raw, err := state.Snapshot()
	if err != nil {
		s.log.Warn("Quiz snapshot encode failed", "error", err, "userID", userID)
		return
	}
	if err := s.store.Save(ctx, quizStateKey(userID), raw); err != nil {
		s.log.Warn("Quiz snapshot write failed", "error", err, "userID", userID)
	}
}

func (s *quizSessionService) publishState(userID uuid.UUID, state *quiz.State) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(sse.Message{
		Channel: sse.UserChannel(userID),
		Event:   sse.EventQuizStateChanged,
		Data:    state,
	})
}

func (s *quizSessionService) GetState(ctx context.Context, userID uuid.UUID) (*quiz.State, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()
	return s.loadState(ctx, userID), nil
}

func (s *quizSessionService) Answer(ctx context.Context, userID uuid.UUID, answer QuizAnswer) (*quiz.State, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	state := s.loadState(ctx, userID)

	var err error
	switch {
	case answer.PracticeType != nil:
		err = state.SetPracticeType(*answer.PracticeType)
	case answer.Duration != nil:
		err = state.SetDuration(*answer.Duration)
	case answer.Goal != nil:
		err = state.SetGoal(*answer.Goal)
	case answer.Approach != nil:
		err = state.SetApproach(*answer.Approach)
	case answer.SelfMeditation != nil:
		err = state.SetSelfMeditation(*answer.SelfMeditation)
	default:
		err = fmt.Errorf("empty answer")
	}
	if err != nil {
		return nil, err
	}

	// Any answer change supersedes an in-flight resolve.
	s.bumpToken(userID)

	s.saveState(ctx, userID, state)
	s.publishState(userID, state)
	return state, nil
}

func (s *quizSessionService) Next(ctx context.Context, userID uuid.UUID) (*quiz.State, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	state := s.loadState(ctx, userID)
	if err := state.Next(); err != nil {
		return nil, err
	}
	s.saveState(ctx, userID, state)
	s.publishState(userID, state)
	return state, nil
}

func (s *quizSessionService) Back(ctx context.Context, userID uuid.UUID) (*quiz.State, bool, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	state := s.loadState(ctx, userID)
	exited := state.Back()
	if exited {
		// Leaving the quiz destroys the transient snapshot.
		if err := s.store.Delete(ctx, quizStateKey(userID)); err != nil {
			s.log.Warn("Quiz snapshot delete failed", "error", err, "userID", userID)
		}
		return state, true, nil
	}
	s.saveState(ctx, userID, state)
	s.publishState(userID, state)
	return state, false, nil
}

func (s *quizSessionService) Reset(ctx context.Context, userID uuid.UUID) (*quiz.State, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	s.bumpToken(userID)
	state := quiz.NewState()
	s.saveState(ctx, userID, state)
	s.publishState(userID, state)
	return state, nil
}

func (s *quizSessionService) bumpToken(userID uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID]++
	return s.tokens[userID]
}

func (s *quizSessionService) currentToken(userID uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[userID]
}

// Resolve runs the recommendation for the terminal quiz state. Overlapping
// identical calls are collapsed into one flight; a call whose criteria were
// superseded mid-flight returns ErrStaleResolution so the caller drops it.
func (s *quizSessionService) Resolve(ctx context.Context, userID uuid.UUID) (*Resolution, error) {
	l := s.userLock(userID)
	l.Lock()
	state := s.loadState(ctx, userID)
	criteria, err := state.Criteria()
	if err != nil {
		l.Unlock()
		return nil, err
	}
	selfSettings := state.SelfMeditation
	token := s.currentToken(userID)
	l.Unlock()

	criteriaKey, err := json.Marshal(criteria)
	if err != nil {
		return nil, fmt.Errorf("encode criteria: %w", err)
	}
	flightKey := userID.String() + ":" + string(criteriaKey)

	v, err, _ := s.resolveGroup.Do(flightKey, func() (interface{}, error) {
		return s.recSvc.Resolve(ctx, userID, criteria, selfSettings)
	})
	if err != nil {
		return nil, err
	}

	// Discard if the answers changed while we were out.
	if s.currentToken(userID) != token {
		return nil, ErrStaleResolution
	}

	resolution := v.(*Resolution)

	l.Lock()
	defer l.Unlock()
	if resolution.Practice != nil {
		state.SetContentID(resolution.Practice.ID)
	}
	// Successful resolution ends the quiz session.
	if err := s.store.Delete(ctx, quizStateKey(userID)); err != nil {
		s.log.Warn("Quiz snapshot delete failed", "error", err, "userID", userID)
	}

	if s.hub != nil {
		s.hub.Broadcast(sse.Message{
			Channel: sse.UserChannel(userID),
			Event:   sse.EventRecommendationResolved,
			Data:    resolution,
		})
	}
	return resolution, nil
}
