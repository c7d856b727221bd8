package quiz

import (
	"errors"
	"fmt"
)

var (
	// ErrStepIncomplete means the current step's required answer is missing.
	ErrStepIncomplete = errors.New("current step answer is incomplete")
	// ErrAtTerminal means navigation forward was attempted from the results step.
	ErrAtTerminal = errors.New("already at the results step")
)

// Field names an answer slot a step requires before it allows progression.
type Field string

const (
	FieldPracticeType Field = "practice_type"
	FieldDuration     Field = "duration"
	FieldGoal         Field = "goal"
	FieldApproach     Field = "approach"
	FieldObject       Field = "object"
)

type stepKey struct {
	practice PracticeType
	approach Approach
	step     int
}

// stepSpec drives one wizard step: which field must be populated, and where
// the wizard jumps after it. Terminal steps are reached only via these jumps,
// never via a generic increment.
type stepSpec struct {
	requires Field
	next     func(s *State) int
}

var transitions = map[stepKey]stepSpec{
	// Step 0 is the same regardless of answers: pick a practice type.
	{"", "", 0}: {FieldPracticeType, func(s *State) int { return 1 }},

	// Step 1 branches on practice type.
	{PracticeShort, "", 1}:      {FieldGoal, func(s *State) int { return s.MaxStep }},
	{PracticeBreathing, "", 1}:  {FieldGoal, func(s *State) int { return s.MaxStep }},
	{PracticePhysical, "", 1}:   {FieldDuration, func(s *State) int { return 2 }},
	{PracticeMeditation, "", 1}: {FieldApproach, func(s *State) int { return 2 }},

	// Step 2 branches on (type, approach).
	{PracticePhysical, "", 2}:               {FieldGoal, func(s *State) int { return s.MaxStep }},
	{PracticeMeditation, ApproachGuided, 2}: {FieldGoal, func(s *State) int { return s.MaxStep }},
	// Self-guided meditation skips the nominal duration step; duration is
	// collected on the results screen before the countdown starts.
	{PracticeMeditation, ApproachSelf, 2}: {FieldObject, func(s *State) int { return s.MaxStep }},

	// Step 3 is only reachable by going back from the meditation results
	// step; it re-runs the step-2 jump so forward navigation still works.
	{PracticeMeditation, ApproachGuided, 3}: {FieldGoal, func(s *State) int { return s.MaxStep }},
	{PracticeMeditation, ApproachSelf, 3}:   {FieldObject, func(s *State) int { return s.MaxStep }},
}

// keyFor normalizes the lookup key: approach only disambiguates meditation
// steps past the approach choice itself, and step 0 ignores the type.
func keyFor(s *State) stepKey {
	k := stepKey{step: s.Step}
	if s.Step == 0 {
		return k
	}
	k.practice = s.PracticeType
	if s.PracticeType == PracticeMeditation && s.Step >= 2 {
		k.approach = s.Approach
	}
	return k
}

func (s *State) currentSpec() (stepSpec, bool) {
	spec, ok := transitions[keyFor(s)]
	return spec, ok
}

// fieldPopulated checks a single required answer slot.
func (s *State) fieldPopulated(f Field) bool {
	switch f {
	case FieldPracticeType:
		return s.PracticeType.Valid()
	case FieldDuration:
		return s.Duration != nil
	case FieldGoal:
		return s.Goal != ""
	case FieldApproach:
		return s.Approach.Valid()
	case FieldObject:
		return s.SelfMeditation != nil && s.SelfMeditation.Object.Valid()
	}
	return false
}

// CanGoNext is true only when the current step's required answer is populated
// and the wizard is not already at the results step.
func (s *State) CanGoNext() bool {
	if s.AtTerminal() {
		return false
	}
	spec, ok := s.currentSpec()
	if !ok {
		return false
	}
	return s.fieldPopulated(spec.requires)
}

// Next advances along the transition table. The target step comes from the
// table entry, so branch jumps over skipped steps land directly on the
// results step.
func (s *State) Next() error {
	if s.AtTerminal() {
		return ErrAtTerminal
	}
	spec, ok := s.currentSpec()
	if !ok {
		return fmt.Errorf("no step defined for (%q, %q, %d)", s.PracticeType, s.Approach, s.Step)
	}
	if !s.fieldPopulated(spec.requires) {
		return fmt.Errorf("%w: %s", ErrStepIncomplete, spec.requires)
	}
	next := spec.next(s)
	if next > s.MaxStep {
		next = s.MaxStep
	}
	s.Step = next
	return nil
}

// Back moves one step towards the start. It returns true when invoked at step
// 0, which means the caller should navigate out of the quiz entirely.
func (s *State) Back() (exited bool) {
	if s.Step == 0 {
		return true
	}
	s.Step--
	return false
}

// Criteria is the resolved set of answers the resolver queries with.
type Criteria struct {
	PracticeType PracticeType   `json:"practice_type"`
	Duration     *DurationRange `json:"duration,omitempty"`
	Goal         Goal           `json:"goal,omitempty"`
	Approach     Approach       `json:"approach,omitempty"`
}

// Criteria derives the matching-table query key from a terminal state.
func (s *State) Criteria() (Criteria, error) {
	if !s.AtTerminal() {
		return Criteria{}, fmt.Errorf("%w: step %d of %d", ErrStepIncomplete, s.Step, s.MaxStep)
	}
	c := Criteria{
		PracticeType: s.PracticeType,
		Goal:         s.Goal,
		Approach:     s.Approach,
	}
	if s.Duration != nil {
		d := *s.Duration
		c.Duration = &d
	}
	return c, nil
}
