package player

import (
	"math"
	"sync"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
)

// EmbedConfig is everything the third-party embed needs from us; all
// transport is delegated to the embed itself.
type EmbedConfig struct {
	EmbedID  string  `json:"embed_id"`
	Autoplay bool    `json:"autoplay"`
	Muted    bool    `json:"muted"`
	Volume   float64 `json:"volume"`
	StartAt  float64 `json:"start_at"`
	Controls bool    `json:"controls"`
}

// VideoBackend forwards coordinator intents to an embedded player and
// translates the embed's callbacks into coordinator operations. Embed errors
// are non-fatal: they surface as an inline message, never a content switch.
type VideoBackend struct {
	mu        sync.Mutex
	coord     *Coordinator
	log       *logger.Logger
	ready     bool
	lastError string
}

func NewVideoBackend(coord *Coordinator, log *logger.Logger) *VideoBackend {
	return &VideoBackend{coord: coord, log: log.With("backend", "video")}
}

// EmbedConfigFor builds the embed configuration from the current state.
func (v *VideoBackend) EmbedConfigFor() EmbedConfig {
	s := v.coord.State()
	cfg := EmbedConfig{
		Autoplay: s.Playing,
		Muted:    s.Muted,
		Volume:   s.Volume,
		StartAt:  s.CurrentTime,
		Controls: s.DisplayControls,
	}
	if s.Content != nil {
		cfg.EmbedID = s.Content.EmbedID
	}
	return cfg
}

func (v *VideoBackend) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// LastError is the inline message for the UI; empty means healthy.
func (v *VideoBackend) LastError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastError
}

// OnReady is the embed's ready callback; it carries the real duration.
func (v *VideoBackend) OnReady(durationSeconds float64) {
	v.mu.Lock()
	v.ready = true
	v.lastError = ""
	v.mu.Unlock()
	v.coord.SetDuration(durationSeconds)
}

func (v *VideoBackend) OnPlay()  { v.coord.Play() }
func (v *VideoBackend) OnPause() { v.coord.Pause() }

// OnEnded pauses and rewinds the shared state so a replay starts clean.
func (v *VideoBackend) OnEnded() {
	v.coord.Pause()
	v.coord.SeekTo(0)
}

// OnTimeUpdate mirrors the embed's position, epsilon-guarded against echoes
// of seeks that originated from the coordinator.
func (v *VideoBackend) OnTimeUpdate(t float64) {
	current := v.coord.State().CurrentTime
	if math.Abs(t-current) <= timeEpsilonSeconds {
		return
	}
	v.coord.SeekTo(t)
}

// OnError records the embed failure and stops playback; there is no
// automatic fallback to other content.
func (v *VideoBackend) OnError(msg string) {
	v.mu.Lock()
	v.ready = false
	v.lastError = msg
	v.mu.Unlock()
	v.log.Warn("embed reported an error", "message", msg)
	v.coord.Pause()
}
