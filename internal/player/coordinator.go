package player

import (
	"sync"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
)

// Listener observes coordinator state changes. Listeners are invoked after
// the mutation, with a copy of the new state, and only when the state
// actually changed; an operation that lands on the current value is silent,
// which keeps backend echoes from looping back through the coordinator.
type Listener func(State)

// Coordinator owns the shared PlayerState and exposes the backend-agnostic
// transport operations. It performs no I/O itself.
type Coordinator struct {
	mu        sync.Mutex
	state     State
	log       *logger.Logger
	listeners []Listener
}

func NewCoordinator(log *logger.Logger, prefs Preferences) *Coordinator {
	if prefs.Volume < 0 || prefs.Volume > 1 {
		prefs.Volume = 1
	}
	if prefs.PlaybackRate <= 0 {
		prefs.PlaybackRate = 1
	}
	return &Coordinator{
		state: initialState(prefs),
		log:   log.With("component", "PlayerCoordinator"),
	}
}

// Subscribe registers a listener for state changes. Backends subscribe to
// receive commands; there is no unsubscribe because backends live as long as
// the coordinator that owns them.
func (c *Coordinator) Subscribe(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// State returns a copy of the current session state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// mutate applies fn under the lock and notifies listeners only if the state
// changed. Listeners run outside the lock so they can call back in.
func (c *Coordinator) mutate(fn func(s *State)) {
	c.mu.Lock()
	before := c.state
	fn(&c.state)
	changed := c.state != before || !contentEqual(c.state.Content, before.Content)
	snapshot := c.state
	listeners := c.listeners
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		l(snapshot)
	}
}

func contentEqual(a, b *ContentData) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (c *Coordinator) Play() {
	c.mutate(func(s *State) { s.Playing = true })
}

func (c *Coordinator) Pause() {
	c.mutate(func(s *State) { s.Playing = false })
}

func (c *Coordinator) TogglePlay() {
	c.mutate(func(s *State) { s.Playing = !s.Playing })
}

// SeekTo clamps the target into [0, duration].
func (c *Coordinator) SeekTo(t float64) {
	c.mutate(func(s *State) {
		if t < 0 {
			t = 0
		}
		if t > s.Duration {
			t = s.Duration
		}
		s.CurrentTime = t
	})
}

// SetVolume clamps into [0,1]; a volume of exactly 0 also mutes.
func (c *Coordinator) SetVolume(v float64) {
	c.mutate(func(s *State) {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		s.Volume = v
		if v == 0 {
			s.Muted = true
		}
	})
}

func (c *Coordinator) ToggleMute() {
	c.mutate(func(s *State) { s.Muted = !s.Muted })
}

// SetPlaybackRate ignores non-positive rates; there is no sensible clamp for
// them and the UI never produces one.
func (c *Coordinator) SetPlaybackRate(r float64) {
	if r <= 0 {
		c.log.Warn("ignoring non-positive playback rate", "rate", r)
		return
	}
	c.mutate(func(s *State) { s.PlaybackRate = r })
}

func (c *Coordinator) ToggleFullscreen() {
	c.mutate(func(s *State) { s.Fullscreen = !s.Fullscreen })
}

func (c *Coordinator) ShowControls() {
	c.mutate(func(s *State) { s.DisplayControls = true })
}

func (c *Coordinator) HideControls() {
	c.mutate(func(s *State) { s.DisplayControls = false })
}

// SetActiveType switches the authoritative backend. Session-scoped fields
// reset to a fresh session; volume, rate and mute carry over.
func (c *Coordinator) SetActiveType(m MediaType) {
	if !m.Valid() {
		c.log.Warn("ignoring unknown media type", "type", m)
		return
	}
	c.mutate(func(s *State) {
		prefs := s.Preferences()
		*s = initialState(prefs)
		s.ActiveType = m
	})
}

// SetContentData replaces the loaded item and adopts its duration (0 when
// the payload carries none, e.g. a live embed before its ready callback).
func (c *Coordinator) SetContentData(data ContentData) {
	c.mutate(func(s *State) {
		d := data
		s.Content = &d
		s.ContentID = data.ID
		s.Duration = data.DurationSeconds
		if s.CurrentTime > s.Duration {
			s.CurrentTime = s.Duration
		}
		if data.BackgroundURL != "" {
			s.BackgroundImage = data.BackgroundURL
		}
	})
}

// SetDuration is for backends whose medium reports duration asynchronously.
func (c *Coordinator) SetDuration(d float64) {
	c.mutate(func(s *State) {
		if d < 0 {
			d = 0
		}
		s.Duration = d
		if s.CurrentTime > d {
			s.CurrentTime = d
		}
	})
}

func (c *Coordinator) SetBackgroundImage(url string) {
	c.mutate(func(s *State) { s.BackgroundImage = url })
}

// Reset returns to the initial state, preserving volume, rate and mute.
func (c *Coordinator) Reset() {
	c.mutate(func(s *State) {
		prefs := s.Preferences()
		*s = initialState(prefs)
	})
}

// Preferences returns the durable user-scoped fields.
func (c *Coordinator) Preferences() Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Preferences()
}
