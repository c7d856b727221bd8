package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhyana-app/dhyana-backend/internal/clients/redis"
	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/player"
	"github.com/dhyana-app/dhyana-backend/internal/sse"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

// PlayerCommand is one transport operation from the client. Op selects the
// operation; the value fields are read per-op.
type PlayerCommand struct {
	Op    string           `json:"op"`
	Value float64          `json:"value,omitempty"`
	Type  player.MediaType `json:"type,omitempty"`
}

// PlayerSession bundles one user's coordinator with its three backends. The
// active backend follows the coordinator's ActiveType; the others stay idle.
type PlayerSession struct {
	Coordinator *player.Coordinator
	Video       *player.VideoBackend
	Audio       *player.AudioBackend
	Timer       *player.TimerBackend
}

// MediaEvent is one callback from the client's media element or embed:
// Value carries positions and durations, Message carries embed errors.
type MediaEvent struct {
	Event   string  `json:"event"`
	Value   float64 `json:"value,omitempty"`
	Message string  `json:"message,omitempty"`
}

type PlayerService interface {
	Session(ctx context.Context, userID uuid.UUID) *PlayerSession
	Command(ctx context.Context, userID uuid.UUID, cmd PlayerCommand) (player.State, error)
	HandleMediaEvent(ctx context.Context, userID uuid.UUID, ev MediaEvent) (player.State, error)
	Reconcile(ctx context.Context, userID uuid.UUID, actual player.ElementState) ([]player.ElementCommand, error)
	EmbedConfig(ctx context.Context, userID uuid.UUID) (player.EmbedConfig, error)
	ActivatePractice(ctx context.Context, userID uuid.UUID, practice *types.Practice) (player.State, error)
	ActivateTimer(ctx context.Context, userID uuid.UUID, spec *TimerSpec) (player.State, error)
	Teardown(userID uuid.UUID)
}

// timerPublishGap bounds how often timer-driven state changes go out over
// SSE. The countdown mutates the coordinator every 100ms; clients only need
// roughly per-second progress between commands.
const timerPublishGap = time.Second

type playerService struct {
	log   *logger.Logger
	store redis.StateStore
	hub   *sse.Hub

	// publishGap is timerPublishGap outside tests.
	publishGap time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*PlayerSession
}

func NewPlayerService(log *logger.Logger, store redis.StateStore, hub *sse.Hub) PlayerService {
	return &playerService{
		log:        log.With("service", "PlayerService"),
		store:      store,
		hub:        hub,
		publishGap: timerPublishGap,
		sessions:   make(map[uuid.UUID]*PlayerSession),
	}
}

func playerPrefsKey(userID uuid.UUID) string {
	return "player:prefs:" + userID.String()
}

// loadPreferences restores volume/rate/mute from durable storage; corrupted
// or missing entries silently fall back to defaults.
func (s *playerService) loadPreferences(ctx context.Context, userID uuid.UUID) player.Preferences {
	prefs := player.DefaultPreferences()
	raw, err := s.store.Load(ctx, playerPrefsKey(userID))
	if err != nil {
		s.log.Warn("Player preferences read failed, using defaults", "error", err, "userID", userID)
		return prefs
	}
	if raw == nil {
		return prefs
	}
	if err := json.Unmarshal(raw, &prefs); err != nil {
		s.log.Debug("Player preferences corrupt, using defaults", "error", err, "userID", userID)
		return player.DefaultPreferences()
	}
	if prefs.Volume < 0 || prefs.Volume > 1 || prefs.PlaybackRate <= 0 {
		return player.DefaultPreferences()
	}
	return prefs
}

func (s *playerService) savePreferences(ctx context.Context, userID uuid.UUID, prefs player.Preferences) {
	raw, err := json.Marshal(prefs)
	if err != nil {
		s.log.Warn("Player preferences encode failed", "error", err, "userID", userID)
		return
	}
	if err := s.store.Save(ctx, playerPrefsKey(userID), raw); err != nil {
		s.log.Warn("Player preferences write failed", "error", err, "userID", userID)
	}
}

// Session returns the user's player session, creating it with restored
// preferences on first touch.
func (s *playerService) Session(ctx context.Context, userID uuid.UUID) *PlayerSession {
	s.mu.Lock()
	if sess, ok := s.sessions[userID]; ok {
		s.mu.Unlock()
		return sess
	}
	s.mu.Unlock()

	// Preference restore does I/O; build outside the map lock.
	prefs := s.loadPreferences(ctx, userID)
	coord := player.NewCoordinator(s.log, prefs)
	sess := &PlayerSession{
		Coordinator: coord,
		Video:       player.NewVideoBackend(coord, s.log),
		Audio:       player.NewAudioBackend(coord, s.log),
		Timer:       player.NewTimerBackend(coord, s.log),
	}

	// Timer ticks mutate the coordinator with no request in flight, so the
	// client would never hear about the countdown between commands. Forward
	// those changes over SSE, throttled against the 100ms tick cadence.
	// Command paths keep publishing directly and unthrottled.
	var (
		pubMu   sync.Mutex
		lastPub time.Time
	)
	coord.Subscribe(func(st player.State) {
		if st.ActiveType != player.MediaTimer {
			return
		}
		pubMu.Lock()
		if time.Since(lastPub) < s.publishGap {
			pubMu.Unlock()
			return
		}
		lastPub = time.Now()
		pubMu.Unlock()
		s.publishState(userID, st)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[userID]; ok {
		return existing
	}
	s.sessions[userID] = sess
	return sess
}

func (s *playerService) Command(ctx context.Context, userID uuid.UUID, cmd PlayerCommand) (player.State, error) {
	sess := s.Session(ctx, userID)
	coord := sess.Coordinator
	before := coord.Preferences()

	switch cmd.Op {
	case "play":
		coord.Play()
	case "pause":
		coord.Pause()
	case "toggle_play":
		coord.TogglePlay()
	case "seek":
		coord.SeekTo(cmd.Value)
	case "set_volume":
		coord.SetVolume(cmd.Value)
	case "toggle_mute":
		coord.ToggleMute()
	case "set_rate":
		coord.SetPlaybackRate(cmd.Value)
	case "toggle_fullscreen":
		coord.ToggleFullscreen()
	case "show_controls":
		coord.ShowControls()
	case "hide_controls":
		coord.HideControls()
	case "set_active_type":
		coord.SetActiveType(cmd.Type)
	case "reset":
		sess.Timer.Reset()
		coord.Reset()
	case "timer_start":
		sess.Timer.Start(context.Background())
	case "timer_pause":
		sess.Timer.Pause()
	case "timer_resume":
		sess.Timer.Resume()
	case "timer_reset":
		sess.Timer.Reset()
	default:
		return player.State{}, fmt.Errorf("unknown player op %q", cmd.Op)
	}

	state := coord.State()

	// Volume/rate/mute outlive the session; persist when they moved.
	if after := state.Preferences(); after != before {
		s.savePreferences(ctx, userID, after)
	}

	s.publishState(userID, state)
	return state, nil
}

// HandleMediaEvent routes an element/embed callback to the backend that owns
// the active media type. Events for an inactive backend are rejected so a
// late video callback cannot corrupt an audio session.
func (s *playerService) HandleMediaEvent(ctx context.Context, userID uuid.UUID, ev MediaEvent) (player.State, error) {
	sess := s.Session(ctx, userID)
	active := sess.Coordinator.State().ActiveType

	switch active {
	case player.MediaVideo:
		switch ev.Event {
		case "ready":
			sess.Video.OnReady(ev.Value)
		case "play":
			sess.Video.OnPlay()
		case "pause":
			sess.Video.OnPause()
		case "ended":
			sess.Video.OnEnded()
		case "time_update":
			sess.Video.OnTimeUpdate(ev.Value)
		case "error":
			sess.Video.OnError(ev.Message)
		default:
			return player.State{}, fmt.Errorf("unknown video event %q", ev.Event)
		}
	case player.MediaAudio:
		switch ev.Event {
		case "play":
			sess.Audio.HandlePlay()
		case "pause":
			sess.Audio.HandlePause()
		case "ended":
			sess.Audio.HandleEnded()
		case "time_update":
			sess.Audio.HandleTimeUpdate(ev.Value)
		case "duration_change":
			sess.Audio.HandleDurationChange(ev.Value)
		default:
			return player.State{}, fmt.Errorf("unknown audio event %q", ev.Event)
		}
	default:
		return player.State{}, fmt.Errorf("media events need an active video or audio backend, have %q", active)
	}

	state := sess.Coordinator.State()
	s.publishState(userID, state)
	return state, nil
}

// Reconcile answers the audio element's snapshot with the commands needed to
// converge on the coordinator's state.
func (s *playerService) Reconcile(ctx context.Context, userID uuid.UUID, actual player.ElementState) ([]player.ElementCommand, error) {
	sess := s.Session(ctx, userID)
	if active := sess.Coordinator.State().ActiveType; active != player.MediaAudio {
		return nil, fmt.Errorf("reconcile needs an active audio backend, have %q", active)
	}
	return sess.Audio.Reconcile(actual), nil
}

// EmbedConfig builds the video embed setup from the current session state.
func (s *playerService) EmbedConfig(ctx context.Context, userID uuid.UUID) (player.EmbedConfig, error) {
	sess := s.Session(ctx, userID)
	if active := sess.Coordinator.State().ActiveType; active != player.MediaVideo {
		return player.EmbedConfig{}, fmt.Errorf("embed config needs an active video backend, have %q", active)
	}
	return sess.Video.EmbedConfigFor(), nil
}

// ActivatePractice loads resolved content into the session and binds the
// matching backend.
func (s *playerService) ActivatePractice(ctx context.Context, userID uuid.UUID, practice *types.Practice) (player.State, error) {
	mediaType := player.MediaType(practice.MediaType)
	if !mediaType.Valid() {
		return player.State{}, fmt.Errorf("practice %s has unknown media type %q", practice.ID, practice.MediaType)
	}

	sess := s.Session(ctx, userID)
	sess.Timer.Reset()
	sess.Coordinator.SetActiveType(mediaType)
	sess.Coordinator.SetContentData(player.ContentData{
		ID:              practice.ID.String(),
		Title:           practice.Title,
		Description:     practice.Description,
		EmbedID:         practice.EmbedID,
		FileURL:         practice.FileURL,
		ThumbnailURL:    practice.ThumbnailURL,
		BackgroundURL:   practice.BackgroundURL,
		DurationSeconds: float64(practice.DurationSeconds),
	})

	state := sess.Coordinator.State()
	s.publishState(userID, state)
	return state, nil
}

// ActivateTimer arms the countdown for a self-guided meditation; the
// countdown starts only on an explicit timer_start command.
func (s *playerService) ActivateTimer(ctx context.Context, userID uuid.UUID, spec *TimerSpec) (player.State, error) {
	if spec == nil {
		return player.State{}, fmt.Errorf("timer spec required")
	}
	sess := s.Session(ctx, userID)

	ambientURL := ""
	if spec.AmbientAudio != nil {
		ambientURL = spec.AmbientAudio.FileURL
	}
	sess.Timer.Configure(spec.DurationSeconds, ambientURL)

	state := sess.Coordinator.State()
	s.publishState(userID, state)
	return state, nil
}

// Teardown stops the session's periodic work and drops it. Navigating away
// from the player must land here so no timer keeps ticking.
func (s *playerService) Teardown(userID uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()

	if ok {
		sess.Timer.Close()
	}
}

func (s *playerService) publishState(userID uuid.UUID, state player.State) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(sse.Message{
		Channel: sse.UserChannel(userID),
		Event:   sse.EventPlayerStateChanged,
		Data:    state,
	})
}
