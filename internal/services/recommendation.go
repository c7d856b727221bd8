package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/quiz"
	"github.com/dhyana-app/dhyana-backend/internal/repos"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

// recordWriteTimeout bounds the fire-and-forget history write.
const recordWriteTimeout = 5 * time.Second

// ErrNoMatchingContent is terminal: even the relaxed practice-type-only
// query found nothing. The UI offers a single recovery action (retake).
var ErrNoMatchingContent = errors.New("no matching content")

// TimerSpec configures a self-guided meditation countdown. AmbientAudio is
// best-effort: nil when no track was found, which is not an error.
type TimerSpec struct {
	DurationSeconds int                      `json:"duration_seconds"`
	Object          quiz.ConcentrationObject `json:"object"`
	AmbientAudio    *types.Practice          `json:"ambient_audio,omitempty"`
}

// Resolution is the resolver's outcome: exactly one of Practice or Timer.
type Resolution struct {
	Practice *types.Practice `json:"practice,omitempty"`
	Timer    *TimerSpec      `json:"timer,omitempty"`
}

type RecommendationService interface {
	Resolve(ctx context.Context, userID uuid.UUID, criteria quiz.Criteria, selfSettings *quiz.SelfMeditationSettings) (*Resolution, error)
}

type recommendationService struct {
	db         *gorm.DB
	log        *logger.Logger
	ruleRepo   repos.RecommendationRuleRepo
	recordRepo repos.RecommendationRecordRepo
	pracRepo   repos.PracticeRepo
	// randIntn is injectable so tests can pin the tie-break.
	randIntn func(n int) int
}

func NewRecommendationService(
	db *gorm.DB,
	log *logger.Logger,
	ruleRepo repos.RecommendationRuleRepo,
	recordRepo repos.RecommendationRecordRepo,
	pracRepo repos.PracticeRepo,
) RecommendationService {
	return &recommendationService{
		db:         db,
		log:        log.With("service", "RecommendationService"),
		ruleRepo:   ruleRepo,
		recordRepo: recordRepo,
		pracRepo:   pracRepo,
		randIntn:   rand.Intn,
	}
}

func (s *recommendationService) Resolve(ctx context.Context, userID uuid.UUID, criteria quiz.Criteria, selfSettings *quiz.SelfMeditationSettings) (*Resolution, error) {
	if criteria.PracticeType == quiz.PracticeMeditation && criteria.Approach == quiz.ApproachSelf {
		return s.resolveTimer(ctx, selfSettings)
	}
	return s.resolveContent(ctx, userID, criteria)
}

// resolveTimer bypasses content lookup; duration and object come from the
// results-screen picker. The ambient track is looked up best-effort.
func (s *recommendationService) resolveTimer(ctx context.Context, settings *quiz.SelfMeditationSettings) (*Resolution, error) {
	if settings == nil {
		return nil, fmt.Errorf("self-guided meditation needs timer settings")
	}
	spec := &TimerSpec{
		DurationSeconds: settings.DurationSeconds,
		Object:          settings.Object,
	}

	tracks, err := s.pracRepo.Find(ctx, nil, repos.PracticeFilter{
		MediaType:    types.MediaAudio,
		CategorySlug: "ambient",
	})
	if err != nil {
		// Non-fatal: the timer proceeds in silence.
		s.log.Warn("Ambient audio lookup failed", "error", err)
	} else if len(tracks) > 0 {
		spec.AmbientAudio = tracks[s.randIntn(len(tracks))]
	}

	return &Resolution{Timer: spec}, nil
}

func (s *recommendationService) resolveContent(ctx context.Context, userID uuid.UUID, criteria quiz.Criteria) (*Resolution, error) {
	specific := ruleCriteriaFrom(criteria, false)
	rules, err := s.ruleRepo.FindByCriteria(ctx, nil, specific)
	if err != nil {
		return nil, fmt.Errorf("query matching table: %w", err)
	}

	if len(rules) == 0 {
		// Relaxed fallback: practice type only.
		relaxed := ruleCriteriaFrom(criteria, true)
		rules, err = s.ruleRepo.FindByCriteria(ctx, nil, relaxed)
		if err != nil {
			return nil, fmt.Errorf("query matching table (relaxed): %w", err)
		}
	}
	if len(rules) == 0 {
		return nil, ErrNoMatchingContent
	}

	chosen := s.pickCandidate(ctx, userID, rules)

	practices, err := s.pracRepo.GetByIDs(ctx, nil, []uuid.UUID{chosen})
	if err != nil {
		return nil, fmt.Errorf("load practice %s: %w", chosen, err)
	}
	if len(practices) == 0 {
		return nil, fmt.Errorf("matching table points at missing practice %s", chosen)
	}
	practice := practices[0]

	s.recordAsync(userID, practice.ID, criteria)

	return &Resolution{Practice: practice}, nil
}

// pickCandidate takes the highest-priority group and draws uniformly at
// random from it, preferring candidates the user has not seen. The repeat
// exclusion is best-effort: if every candidate in the top group was already
// shown (or the history read fails), repeats are allowed rather than
// returning nothing. Kept lenient deliberately; see DESIGN.md.
func (s *recommendationService) pickCandidate(ctx context.Context, userID uuid.UUID, rules []*types.RecommendationRule) uuid.UUID {
	topPriority := rules[0].Priority
	for _, r := range rules {
		if r.Priority > topPriority {
			topPriority = r.Priority
		}
	}
	var group []uuid.UUID
	for _, r := range rules {
		if r.Priority == topPriority {
			group = append(group, r.PracticeID)
		}
	}

	seen, err := s.recordRepo.ListPracticeIDsByUser(ctx, nil, userID)
	if err != nil {
		s.log.Warn("Recommendation history read failed; repeats possible", "error", err, "userID", userID)
		seen = nil
	}
	seenSet := make(map[uuid.UUID]bool, len(seen))
	for _, id := range seen {
		seenSet[id] = true
	}

	var fresh []uuid.UUID
	for _, id := range group {
		if !seenSet[id] {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) > 0 {
		group = fresh
	}

	return group[s.randIntn(len(group))]
}

// recordAsync persists the shown-content fact without blocking the result.
// A failed write only weakens future repeat avoidance, so it is logged and
// dropped.
func (s *recommendationService) recordAsync(userID, practiceID uuid.UUID, criteria quiz.Criteria) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordWriteTimeout)
		defer cancel()

		payload, err := json.Marshal(criteria)
		if err != nil {
			s.log.Warn("Failed to encode recommendation criteria", "error", err)
			payload = []byte("{}")
		}
		record := &types.RecommendationRecord{
			UserID:     userID,
			PracticeID: practiceID,
			Criteria:   payload,
		}
		if _, err := s.recordRepo.Create(ctx, nil, []*types.RecommendationRecord{record}); err != nil {
			s.log.Warn("Failed to persist recommendation record", "error", err, "userID", userID, "practiceID", practiceID)
		}
	}()
}

func ruleCriteriaFrom(c quiz.Criteria, relaxed bool) repos.RuleCriteria {
	rc := repos.RuleCriteria{PracticeType: string(c.PracticeType)}
	if relaxed {
		return rc
	}
	rc.Goal = string(c.Goal)
	rc.Approach = string(c.Approach)
	if c.Duration != nil {
		minSec := c.Duration.MinSeconds
		maxSec := c.Duration.MaxSeconds
		rc.MinDurationSeconds = &minSec
		rc.MaxDurationSeconds = &maxSec
	}
	return rc
}
