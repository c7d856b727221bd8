package quiz

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PracticeType is the top-level branch of the wizard, chosen at step 0.
type PracticeType string

const (
	PracticeShort      PracticeType = "short"
	PracticePhysical   PracticeType = "physical"
	PracticeBreathing  PracticeType = "breathing"
	PracticeMeditation PracticeType = "meditation"
)

func (p PracticeType) Valid() bool {
	switch p {
	case PracticeShort, PracticePhysical, PracticeBreathing, PracticeMeditation:
		return true
	}
	return false
}

// Approach only applies to meditation practices.
type Approach string

const (
	ApproachSelf   Approach = "self"
	ApproachGuided Approach = "guided"
)

func (a Approach) Valid() bool {
	return a == ApproachSelf || a == ApproachGuided
}

// Goal domains are keyed by practice type; the wizard rejects a goal that does
// not belong to the currently selected type.
type Goal string

const (
	GoalRelax       Goal = "relax"
	GoalEnergize    Goal = "energize"
	GoalStretch     Goal = "stretch"
	GoalFlexibility Goal = "flexibility"
	GoalStrength    Goal = "strength"
	GoalBalance     Goal = "balance"
	GoalBackPain    Goal = "back_pain"
	GoalCalm        Goal = "calm"
	GoalMorning     Goal = "morning"
	GoalSleep       Goal = "sleep"
	GoalStress      Goal = "stress"
	GoalFocus       Goal = "focus"
	GoalAnxiety     Goal = "anxiety"
	GoalGratitude   Goal = "gratitude"
)

var goalsByType = map[PracticeType][]Goal{
	PracticeShort:      {GoalRelax, GoalEnergize, GoalStretch},
	PracticePhysical:   {GoalFlexibility, GoalStrength, GoalBalance, GoalBackPain},
	PracticeBreathing:  {GoalCalm, GoalMorning, GoalSleep},
	PracticeMeditation: {GoalStress, GoalFocus, GoalAnxiety, GoalGratitude},
}

// GoalsFor returns the goal domain for a practice type, in display order.
func GoalsFor(p PracticeType) []Goal {
	return goalsByType[p]
}

// ConcentrationObject is the focus anchor for self-guided meditation.
type ConcentrationObject string

const (
	ObjectBreath  ConcentrationObject = "breath"
	ObjectThought ConcentrationObject = "thought"
	ObjectBody    ConcentrationObject = "body"
	ObjectNone    ConcentrationObject = "none"
)

func (o ConcentrationObject) Valid() bool {
	switch o {
	case ObjectBreath, ObjectThought, ObjectBody, ObjectNone:
		return true
	}
	return false
}

// DurationRange is an inclusive range in seconds.
type DurationRange struct {
	MinSeconds int `json:"min_seconds"`
	MaxSeconds int `json:"max_seconds"`
}

func (d DurationRange) Validate() error {
	if d.MinSeconds < 0 || d.MaxSeconds < 0 {
		return fmt.Errorf("duration range must be non-negative")
	}
	if d.MaxSeconds < d.MinSeconds {
		return fmt.Errorf("duration range max (%d) below min (%d)", d.MaxSeconds, d.MinSeconds)
	}
	return nil
}

// Overlaps reports whether two inclusive ranges intersect. This is the crossed
// gte/lte comparison the matching table uses, not strict containment.
func (d DurationRange) Overlaps(other DurationRange) bool {
	return d.MinSeconds <= other.MaxSeconds && d.MaxSeconds >= other.MinSeconds
}

// SelfMeditationSettings is collected for the self approach; duration comes
// from the results-screen time picker, not a wizard step.
type SelfMeditationSettings struct {
	DurationSeconds int                 `json:"duration_seconds"`
	Object          ConcentrationObject `json:"object"`
}

// State is the wizard's accumulated answers and position. All mutation goes
// through the setters so cascading resets and MaxStep stay consistent.
type State struct {
	PracticeType   PracticeType            `json:"practice_type,omitempty"`
	Duration       *DurationRange          `json:"duration,omitempty"`
	Goal           Goal                    `json:"goal,omitempty"`
	Approach       Approach                `json:"approach,omitempty"`
	SelfMeditation *SelfMeditationSettings `json:"self_meditation,omitempty"`
	ContentID      *uuid.UUID              `json:"content_id,omitempty"`
	Step           int                     `json:"step"`
	MaxStep        int                     `json:"max_step"`
}

// NewState returns a fresh wizard at step 0 with nothing answered.
func NewState() *State {
	s := &State{}
	s.recomputeMaxStep()
	return s
}

// MaxStepFor is the terminal step index for a (type, approach) pair. It is a
// pure function; State.MaxStep is always derived from it, never stored
// independently of the answers.
func MaxStepFor(p PracticeType, a Approach) int {
	switch p {
	case PracticeShort, PracticeBreathing:
		return 2
	case PracticePhysical:
		return 3
	case PracticeMeditation:
		return 4
	default:
		// Type not chosen yet: only step 0 plus the nominal next step exist.
		return 1
	}
}

func (s *State) recomputeMaxStep() {
	s.MaxStep = MaxStepFor(s.PracticeType, s.Approach)
	if s.Step > s.MaxStep {
		s.Step = s.MaxStep
	}
}

// SetPracticeType records the step-0 answer. Any downstream answer depends on
// the type, so all of them are invalidated.
func (s *State) SetPracticeType(p PracticeType) error {
	if !p.Valid() {
		return fmt.Errorf("unknown practice type %q", p)
	}
	s.PracticeType = p
	s.Duration = nil
	s.Goal = ""
	s.Approach = ""
	s.SelfMeditation = nil
	s.ContentID = nil
	s.recomputeMaxStep()
	return nil
}

// SetDuration records the desired duration range. Goals are filtered by
// duration on the matching side, so a previously chosen goal is invalidated.
func (s *State) SetDuration(d DurationRange) error {
	if err := d.Validate(); err != nil {
		return err
	}
	dd := d
	s.Duration = &dd
	s.Goal = ""
	return nil
}

func (s *State) SetGoal(g Goal) error {
	found := false
	for _, allowed := range GoalsFor(s.PracticeType) {
		if g == allowed {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("goal %q not available for practice type %q", g, s.PracticeType)
	}
	s.Goal = g
	return nil
}

// SetApproach records the meditation branch choice and invalidates the
// answers that depend on it.
func (s *State) SetApproach(a Approach) error {
	if s.PracticeType != PracticeMeditation {
		return fmt.Errorf("approach only applies to meditation, current type is %q", s.PracticeType)
	}
	if !a.Valid() {
		return fmt.Errorf("unknown approach %q", a)
	}
	s.Approach = a
	s.Goal = ""
	s.SelfMeditation = nil
	s.recomputeMaxStep()
	return nil
}

func (s *State) SetSelfMeditation(settings SelfMeditationSettings) error {
	if s.Approach != ApproachSelf {
		return fmt.Errorf("self-meditation settings require the self approach, current approach is %q", s.Approach)
	}
	if !settings.Object.Valid() {
		return fmt.Errorf("unknown concentration object %q", settings.Object)
	}
	if settings.DurationSeconds < 0 {
		return fmt.Errorf("self-meditation duration must be non-negative")
	}
	ss := settings
	s.SelfMeditation = &ss
	return nil
}

func (s *State) SetContentID(id uuid.UUID) {
	s.ContentID = &id
}

// AtTerminal reports whether the wizard has reached its results step.
func (s *State) AtTerminal() bool {
	return s.PracticeType.Valid() && s.Step >= s.MaxStep
}

// Snapshot serializes the state for durable storage between reloads.
func (s *State) Snapshot() ([]byte, error) {
	return json.Marshal(s)
}

// RestoreState rebuilds a state from a snapshot. MaxStep is recomputed rather
// than trusted so a stale or tampered snapshot cannot break the invariant.
func RestoreState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode quiz snapshot: %w", err)
	}
	if s.PracticeType != "" && !s.PracticeType.Valid() {
		return nil, fmt.Errorf("quiz snapshot has unknown practice type %q", s.PracticeType)
	}
	if s.Step < 0 {
		s.Step = 0
	}
	s.recomputeMaxStep()
	return &s, nil
}
