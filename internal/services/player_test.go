package services

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dhyana-app/dhyana-backend/internal/player"
	"github.com/dhyana-app/dhyana-backend/internal/sse"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

func newTestPlayerService(t *testing.T, store *fakeStateStore) PlayerService {
	t.Helper()
	svc := NewPlayerService(testLogger(t), store, nil)
	t.Cleanup(func() {
		// Closing via Teardown stops any timer goroutines the test started.
		if ps, ok := svc.(*playerService); ok {
			ps.mu.Lock()
			ids := make([]uuid.UUID, 0, len(ps.sessions))
			for id := range ps.sessions {
				ids = append(ids, id)
			}
			ps.mu.Unlock()
			for _, id := range ids {
				svc.Teardown(id)
			}
		}
	})
	return svc
}

func TestPlayerPreferencesSurviveSessions(t *testing.T) {
	store := newFakeStateStore()
	svc := newTestPlayerService(t, store)
	userID := uuid.New()

	if _, err := svc.Command(context.Background(), userID, PlayerCommand{Op: "set_volume", Value: 0.3}); err != nil {
		t.Fatalf("set_volume: %v", err)
	}
	if _, err := svc.Command(context.Background(), userID, PlayerCommand{Op: "set_rate", Value: 1.5}); err != nil {
		t.Fatalf("set_rate: %v", err)
	}
	svc.Teardown(userID)

	// A fresh service sharing the store restores the same preferences.
	svc2 := newTestPlayerService(t, store)
	state := svc2.Session(context.Background(), userID).Coordinator.State()
	if state.Volume != 0.3 || state.PlaybackRate != 1.5 {
		t.Fatalf("expected restored preferences, got volume=%v rate=%v", state.Volume, state.PlaybackRate)
	}
}

func TestPlayerCorruptPreferencesFallBackToDefaults(t *testing.T) {
	store := newFakeStateStore()
	userID := uuid.New()
	store.data[playerPrefsKey(userID)] = []byte("not json")

	svc := newTestPlayerService(t, store)
	state := svc.Session(context.Background(), userID).Coordinator.State()
	defaults := player.DefaultPreferences()
	if state.Volume != defaults.Volume || state.PlaybackRate != defaults.PlaybackRate {
		t.Fatalf("expected default preferences, got volume=%v rate=%v", state.Volume, state.PlaybackRate)
	}
}

func TestPlayerOutOfRangePreferencesRejected(t *testing.T) {
	store := newFakeStateStore()
	userID := uuid.New()
	raw, _ := json.Marshal(player.Preferences{Volume: 4, PlaybackRate: -1})
	store.data[playerPrefsKey(userID)] = raw

	svc := newTestPlayerService(t, store)
	state := svc.Session(context.Background(), userID).Coordinator.State()
	defaults := player.DefaultPreferences()
	if state.Volume != defaults.Volume || state.PlaybackRate != defaults.PlaybackRate {
		t.Fatalf("expected default preferences, got volume=%v rate=%v", state.Volume, state.PlaybackRate)
	}
}

func TestPlayerSessionReused(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	userID := uuid.New()

	first := svc.Session(context.Background(), userID)
	second := svc.Session(context.Background(), userID)
	if first != second {
		t.Fatal("expected the same session for repeated access")
	}

	other := svc.Session(context.Background(), uuid.New())
	if other == first {
		t.Fatal("expected distinct sessions per user")
	}
}

func TestPlayerUnknownOpRejected(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	if _, err := svc.Command(context.Background(), uuid.New(), PlayerCommand{Op: "rewind_tape"}); err == nil {
		t.Fatal("expected an error for an unknown op")
	}
}

func TestActivatePracticeBindsBackend(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	userID := uuid.New()

	practice := &types.Practice{
		ID:              uuid.New(),
		Title:           "Evening wind down",
		MediaType:       types.MediaAudio,
		FileURL:         "https://cdn.example.com/wind-down.mp3",
		DurationSeconds: 420,
	}
	state, err := svc.ActivatePractice(context.Background(), userID, practice)
	if err != nil {
		t.Fatalf("ActivatePractice: %v", err)
	}
	if state.ActiveType != player.MediaAudio {
		t.Fatalf("expected audio backend, got %q", state.ActiveType)
	}
	if state.Content == nil || state.Content.FileURL != practice.FileURL {
		t.Fatalf("content not loaded: %+v", state.Content)
	}
	if state.Duration != 420 {
		t.Fatalf("expected duration from catalog, got %v", state.Duration)
	}
	if state.Playing {
		t.Fatal("activation must not autoplay")
	}
}

func TestActivatePracticeRejectsUnknownMediaType(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	practice := &types.Practice{ID: uuid.New(), MediaType: "hologram"}
	if _, err := svc.ActivatePractice(context.Background(), uuid.New(), practice); err == nil {
		t.Fatal("expected an error for an unknown media type")
	}
}

func TestActivateTimerArmsWithoutStarting(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	userID := uuid.New()

	state, err := svc.ActivateTimer(context.Background(), userID, &TimerSpec{DurationSeconds: 600})
	if err != nil {
		t.Fatalf("ActivateTimer: %v", err)
	}
	if state.ActiveType != player.MediaTimer {
		t.Fatalf("expected timer backend, got %q", state.ActiveType)
	}
	if state.Duration != 600 {
		t.Fatalf("expected armed duration, got %v", state.Duration)
	}
	if state.Playing {
		t.Fatal("timer must wait for an explicit start")
	}

	state, err = svc.Command(context.Background(), userID, PlayerCommand{Op: "timer_start"})
	if err != nil {
		t.Fatalf("timer_start: %v", err)
	}
	if !state.Playing {
		t.Fatal("timer_start should begin the countdown")
	}
}

func TestActivateTimerRequiresSpec(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	if _, err := svc.ActivateTimer(context.Background(), uuid.New(), nil); err == nil {
		t.Fatal("expected an error without a timer spec")
	}
}

func TestMediaEventRoutedToActiveBackend(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	userID := uuid.New()

	practice := &types.Practice{
		ID:        uuid.New(),
		MediaType: types.MediaAudio,
		FileURL:   "https://cdn.example.com/track.mp3",
	}
	if _, err := svc.ActivatePractice(context.Background(), userID, practice); err != nil {
		t.Fatalf("ActivatePractice: %v", err)
	}

	state, err := svc.HandleMediaEvent(context.Background(), userID, MediaEvent{Event: "duration_change", Value: 123})
	if err != nil {
		t.Fatalf("HandleMediaEvent: %v", err)
	}
	if state.Duration != 123 {
		t.Fatalf("expected adopted duration, got %v", state.Duration)
	}

	// A video-only event must not reach the audio backend.
	if _, err := svc.HandleMediaEvent(context.Background(), userID, MediaEvent{Event: "ready", Value: 10}); err == nil {
		t.Fatal("expected rejection of a video event on an audio session")
	}
}

func TestMediaEventRejectedWithoutActiveBackend(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	if _, err := svc.HandleMediaEvent(context.Background(), uuid.New(), MediaEvent{Event: "play"}); err == nil {
		t.Fatal("expected rejection without an active media type")
	}
}

func TestReconcileOnlyForAudio(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	userID := uuid.New()

	if _, err := svc.Reconcile(context.Background(), userID, player.ElementState{}); err == nil {
		t.Fatal("expected rejection without an active audio backend")
	}

	practice := &types.Practice{ID: uuid.New(), MediaType: types.MediaAudio, FileURL: "x"}
	if _, err := svc.ActivatePractice(context.Background(), userID, practice); err != nil {
		t.Fatalf("ActivatePractice: %v", err)
	}
	if _, err := svc.Command(context.Background(), userID, PlayerCommand{Op: "set_volume", Value: 0.4}); err != nil {
		t.Fatalf("set_volume: %v", err)
	}

	cmds, err := svc.Reconcile(context.Background(), userID, player.ElementState{Volume: 1, Rate: 1})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	found := false
	for _, cmd := range cmds {
		if cmd.Op == player.OpSetVolume && cmd.Value == 0.4 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a set_volume command, got %+v", cmds)
	}
}

func TestEmbedConfigOnlyForVideo(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	userID := uuid.New()

	if _, err := svc.EmbedConfig(context.Background(), userID); err == nil {
		t.Fatal("expected rejection without an active video backend")
	}

	practice := &types.Practice{ID: uuid.New(), MediaType: types.MediaVideo, EmbedID: "abc123"}
	if _, err := svc.ActivatePractice(context.Background(), userID, practice); err != nil {
		t.Fatalf("ActivatePractice: %v", err)
	}
	cfg, err := svc.EmbedConfig(context.Background(), userID)
	if err != nil {
		t.Fatalf("EmbedConfig: %v", err)
	}
	if cfg.EmbedID != "abc123" {
		t.Fatalf("expected embed id from content, got %q", cfg.EmbedID)
	}
}

func TestTeardownDropsSession(t *testing.T) {
	svc := newTestPlayerService(t, newFakeStateStore())
	userID := uuid.New()

	first := svc.Session(context.Background(), userID)
	first.Coordinator.SetActiveType(player.MediaVideo)
	svc.Teardown(userID)

	second := svc.Session(context.Background(), userID)
	if second == first {
		t.Fatal("expected a new session after teardown")
	}
	if second.Coordinator.State().ActiveType == player.MediaVideo {
		t.Fatal("teardown should not leak session state")
	}
}

func newStreamingPlayerService(t *testing.T, gap time.Duration) (PlayerService, *sse.Hub) {
	t.Helper()
	log := testLogger(t)
	hub := sse.NewHub(log)
	svc := NewPlayerService(log, newFakeStateStore(), hub)
	svc.(*playerService).publishGap = gap
	return svc, hub
}

func drainOutbound(client *sse.Client) {
	for {
		select {
		case <-client.Outbound:
		default:
			return
		}
	}
}

func TestTimerTicksReachTheStream(t *testing.T) {
	svc, hub := newStreamingPlayerService(t, 0)
	userID := uuid.New()
	defer svc.Teardown(userID)

	client := hub.NewClient(userID)
	hub.AddChannel(client, sse.UserChannel(userID))
	defer hub.CloseClient(client)

	sess := svc.Session(context.Background(), userID)
	var nanos atomic.Int64
	nanos.Store(time.Now().UnixNano())
	sess.Timer.SetClock(func() time.Time { return time.Unix(0, nanos.Load()) })

	if _, err := svc.ActivateTimer(context.Background(), userID, &TimerSpec{DurationSeconds: 600}); err != nil {
		t.Fatalf("ActivateTimer: %v", err)
	}
	if _, err := svc.Command(context.Background(), userID, PlayerCommand{Op: "timer_start"}); err != nil {
		t.Fatalf("timer_start: %v", err)
	}
	drainOutbound(client)

	nanos.Add(int64(2 * time.Second))
	sess.Timer.Tick()

	select {
	case msg := <-client.Outbound:
		if msg.Event != sse.EventPlayerStateChanged {
			t.Errorf("event = %q, want %q", msg.Event, sse.EventPlayerStateChanged)
		}
		state, ok := msg.Data.(player.State)
		if !ok {
			t.Fatalf("unexpected broadcast payload type %T", msg.Data)
		}
		if state.CurrentTime < 2 {
			t.Errorf("current_time = %v, want >= 2", state.CurrentTime)
		}
	default:
		t.Fatal("expected a state broadcast from the timer tick")
	}
}

func TestTimerTickBroadcastsAreThrottled(t *testing.T) {
	svc, hub := newStreamingPlayerService(t, time.Hour)
	userID := uuid.New()
	defer svc.Teardown(userID)

	client := hub.NewClient(userID)
	hub.AddChannel(client, sse.UserChannel(userID))
	defer hub.CloseClient(client)

	sess := svc.Session(context.Background(), userID)
	var nanos atomic.Int64
	nanos.Store(time.Now().UnixNano())
	sess.Timer.SetClock(func() time.Time { return time.Unix(0, nanos.Load()) })

	// Activating the timer flips the active type, which fires the session
	// listener once and opens the throttle window.
	if _, err := svc.ActivateTimer(context.Background(), userID, &TimerSpec{DurationSeconds: 600}); err != nil {
		t.Fatalf("ActivateTimer: %v", err)
	}
	if _, err := svc.Command(context.Background(), userID, PlayerCommand{Op: "timer_start"}); err != nil {
		t.Fatalf("timer_start: %v", err)
	}
	drainOutbound(client)

	nanos.Add(int64(2 * time.Second))
	sess.Timer.Tick()

	select {
	case msg := <-client.Outbound:
		t.Fatalf("expected the tick broadcast to be suppressed, got %v", msg)
	default:
	}
}
