package player

import (
	"math"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
)

// timeEpsilonSeconds guards the time channel between the coordinator and a
// concrete element: positions closer than this are treated as already in
// sync, which prevents the two sources of truth from oscillating.
const timeEpsilonSeconds = 0.5

// ElementState is a snapshot of the native audio element as reported by the
// client on each render.
type ElementState struct {
	Playing     bool    `json:"playing"`
	Volume      float64 `json:"volume"`
	Muted       bool    `json:"muted"`
	Rate        float64 `json:"rate"`
	CurrentTime float64 `json:"current_time"`
}

// ElementOp is a single command the client applies to the audio element.
type ElementOp string

const (
	OpPlay      ElementOp = "play"
	OpPause     ElementOp = "pause"
	OpSetVolume ElementOp = "set_volume"
	OpSetMuted  ElementOp = "set_muted"
	OpSetRate   ElementOp = "set_rate"
	OpSeek      ElementOp = "seek"
)

type ElementCommand struct {
	Op    ElementOp `json:"op"`
	Value float64   `json:"value,omitempty"`
	Flag  bool      `json:"flag,omitempty"`
}

// AudioBackend binds the coordinator to a native audio element. Commands flow
// one way (coordinator → element) via Reconcile and events flow the other way
// (element → coordinator) via the Handle* methods; there is no two-way bound
// value anywhere.
type AudioBackend struct {
	coord *Coordinator
	log   *logger.Logger
}

func NewAudioBackend(coord *Coordinator, log *logger.Logger) *AudioBackend {
	return &AudioBackend{coord: coord, log: log.With("backend", "audio")}
}

// Reconcile compares the desired coordinator state against the element
// snapshot and emits the commands needed to converge. Each field is checked
// independently so one field's update never clobbers another's in-flight
// change.
func (a *AudioBackend) Reconcile(actual ElementState) []ElementCommand {
	desired := a.coord.State()
	var cmds []ElementCommand

	// volume / mute
	if actual.Volume != desired.Volume {
		cmds = append(cmds, ElementCommand{Op: OpSetVolume, Value: desired.Volume})
	}
	if actual.Muted != desired.Muted {
		cmds = append(cmds, ElementCommand{Op: OpSetMuted, Flag: desired.Muted})
	}

	// playback rate
	if actual.Rate != desired.PlaybackRate {
		cmds = append(cmds, ElementCommand{Op: OpSetRate, Value: desired.PlaybackRate})
	}

	// play / pause
	if actual.Playing != desired.Playing {
		if desired.Playing {
			cmds = append(cmds, ElementCommand{Op: OpPlay})
		} else {
			cmds = append(cmds, ElementCommand{Op: OpPause})
		}
	}

	// current time, epsilon-guarded
	if math.Abs(actual.CurrentTime-desired.CurrentTime) > timeEpsilonSeconds {
		cmds = append(cmds, ElementCommand{Op: OpSeek, Value: desired.CurrentTime})
	}

	return cmds
}

// HandleTimeUpdate reflects the element's natural progress back into the
// coordinator. Updates within the epsilon are dropped: they are echoes of a
// position the coordinator already holds.
func (a *AudioBackend) HandleTimeUpdate(t float64) {
	current := a.coord.State().CurrentTime
	if math.Abs(t-current) <= timeEpsilonSeconds {
		return
	}
	a.coord.SeekTo(t)
}

// HandleDurationChange adopts the element's reported duration.
func (a *AudioBackend) HandleDurationChange(d float64) {
	a.coord.SetDuration(d)
}

// HandleEnded pauses; advancing to another item is the caller's business.
func (a *AudioBackend) HandleEnded() {
	a.coord.Pause()
}

// HandlePlay and HandlePause reflect user gestures on the native controls.
func (a *AudioBackend) HandlePlay()  { a.coord.Play() }
func (a *AudioBackend) HandlePause() { a.coord.Pause() }
