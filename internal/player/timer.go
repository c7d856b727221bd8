package player

import (
	"context"
	"sync"
	"time"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
)

// TimerPhase is the countdown's lifecycle position.
type TimerPhase string

const (
	TimerIdle      TimerPhase = "idle"
	TimerRunning   TimerPhase = "running"
	TimerPaused    TimerPhase = "paused"
	TimerCompleted TimerPhase = "completed"
)

// Clock is injectable so tests can drive the countdown deterministically.
type Clock func() time.Time

// tickInterval is a scheduling convenience only; elapsed time is always
// recomputed from timestamps so background-tab throttling cannot drift the
// displayed remaining time away from wall clock.
const tickInterval = 100 * time.Millisecond

// AmbientTrack is the optional looping audio played alongside the countdown,
// independent of the countdown's own play/pause.
type AmbientTrack struct {
	FileURL string `json:"file_url"`
	Playing bool   `json:"playing"`
	Loop    bool   `json:"loop"`
}

// TimerBackend is a pure countdown bound to the coordinator. It owns no
// external media; reaching zero pauses the coordinator.
type TimerBackend struct {
	mu    sync.Mutex
	coord *Coordinator
	log   *logger.Logger
	clock Clock

	phase       TimerPhase
	duration    time.Duration
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration

	ambient *AmbientTrack

	cancelTick context.CancelFunc
}

func NewTimerBackend(coord *Coordinator, log *logger.Logger) *TimerBackend {
	return &TimerBackend{
		coord: coord,
		log:   log.With("backend", "timer"),
		clock: time.Now,
		phase: TimerIdle,
	}
}

// SetClock swaps the time source; only meaningful before Start.
func (t *TimerBackend) SetClock(c Clock) {
	t.mu.Lock()
	t.clock = c
	t.mu.Unlock()
}

// Configure arms the countdown and loads its duration into the coordinator.
// Any previous run is discarded.
func (t *TimerBackend) Configure(durationSeconds int, ambientURL string) {
	t.mu.Lock()
	t.stopTickLocked()
	t.phase = TimerIdle
	t.duration = time.Duration(durationSeconds) * time.Second
	t.pausedTotal = 0
	t.ambient = nil
	if ambientURL != "" {
		t.ambient = &AmbientTrack{FileURL: ambientURL, Loop: true}
	}
	t.mu.Unlock()

	t.coord.SetActiveType(MediaTimer)
	t.coord.SetDuration(float64(durationSeconds))
}

func (t *TimerBackend) Phase() TimerPhase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

func (t *TimerBackend) Ambient() *AmbientTrack {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ambient == nil {
		return nil
	}
	a := *t.ambient
	return &a
}

// Elapsed is the authoritative elapsed time: wall clock since start minus
// accumulated pause time, never a tick count.
func (t *TimerBackend) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

func (t *TimerBackend) elapsedLocked() time.Duration {
	switch t.phase {
	case TimerIdle:
		return 0
	case TimerCompleted:
		return t.duration
	case TimerPaused:
		return t.pausedAt.Sub(t.startedAt) - t.pausedTotal
	default:
		return t.clock().Sub(t.startedAt) - t.pausedTotal
	}
}

// Remaining never goes below zero.
func (t *TimerBackend) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.duration - t.elapsedLocked()
	if r < 0 {
		r = 0
	}
	return r
}

// Start begins (or restarts after completion) the countdown. The ambient
// track starts looping with it.
func (t *TimerBackend) Start(ctx context.Context) {
	t.mu.Lock()
	if t.phase == TimerRunning {
		t.mu.Unlock()
		return
	}
	if t.phase == TimerPaused {
		t.mu.Unlock()
		t.Resume()
		return
	}
	t.phase = TimerRunning
	t.startedAt = t.clock()
	t.pausedTotal = 0
	if t.ambient != nil {
		t.ambient.Playing = true
	}
	t.startTickLocked(ctx)
	t.mu.Unlock()

	t.coord.Play()
}

// Pause freezes the countdown; the ambient track keeps looping (it is
// independent of the countdown's own play/pause).
func (t *TimerBackend) Pause() {
	t.mu.Lock()
	if t.phase != TimerRunning {
		t.mu.Unlock()
		return
	}
	t.phase = TimerPaused
	t.pausedAt = t.clock()
	t.mu.Unlock()

	t.coord.Pause()
}

func (t *TimerBackend) Resume() {
	t.mu.Lock()
	if t.phase != TimerPaused {
		t.mu.Unlock()
		return
	}
	t.pausedTotal += t.clock().Sub(t.pausedAt)
	t.phase = TimerRunning
	t.mu.Unlock()

	t.coord.Play()
}

// Reset returns to idle with zero elapsed and silences the ambient track.
func (t *TimerBackend) Reset() {
	t.mu.Lock()
	t.stopTickLocked()
	t.phase = TimerIdle
	t.pausedTotal = 0
	if t.ambient != nil {
		t.ambient.Playing = false
	}
	t.mu.Unlock()

	t.coord.Pause()
	t.coord.SeekTo(0)
}

// Close stops the periodic work; leaving the player must call it so no
// interval keeps firing after teardown.
func (t *TimerBackend) Close() {
	t.mu.Lock()
	t.stopTickLocked()
	t.mu.Unlock()
}

func (t *TimerBackend) startTickLocked(ctx context.Context) {
	t.stopTickLocked()
	tickCtx, cancel := context.WithCancel(ctx)
	t.cancelTick = cancel
	go t.run(tickCtx)
}

func (t *TimerBackend) stopTickLocked() {
	if t.cancelTick != nil {
		t.cancelTick()
		t.cancelTick = nil
	}
}

func (t *TimerBackend) run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := t.Tick(); done {
				return
			}
		}
	}
}

// Tick recomputes elapsed time from timestamps and pushes it into the
// coordinator. It returns true once the countdown has completed. Exported so
// tests can drive it without the ticker goroutine.
func (t *TimerBackend) Tick() bool {
	t.mu.Lock()
	if t.phase != TimerRunning {
		done := t.phase == TimerCompleted
		t.mu.Unlock()
		return done
	}
	elapsed := t.elapsedLocked()
	completed := elapsed >= t.duration
	if completed {
		elapsed = t.duration
		t.phase = TimerCompleted
		if t.ambient != nil {
			t.ambient.Playing = false
		}
		t.stopTickLocked()
	}
	t.mu.Unlock()

	t.coord.SeekTo(elapsed.Seconds())
	if completed {
		t.coord.Pause()
		t.log.Info("countdown completed")
	}
	return completed
}
