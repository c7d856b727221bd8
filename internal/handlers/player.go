package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	pkgerrors "github.com/dhyana-app/dhyana-backend/internal/pkg/errors"
	"github.com/dhyana-app/dhyana-backend/internal/player"
	"github.com/dhyana-app/dhyana-backend/internal/quiz"
	"github.com/dhyana-app/dhyana-backend/internal/requestdata"
	"github.com/dhyana-app/dhyana-backend/internal/services"
)

type PlayerHandler struct {
	log             *logger.Logger
	playerService   services.PlayerService
	practiceService services.PracticeService
}

func NewPlayerHandler(log *logger.Logger, playerService services.PlayerService, practiceService services.PracticeService) *PlayerHandler {
	return &PlayerHandler{
		log:             log.With("handler", "PlayerHandler"),
		playerService:   playerService,
		practiceService: practiceService,
	}
}

func (h *PlayerHandler) GetState(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	session := h.playerService.Session(c.Request.Context(), rd.UserID)
	RespondOK(c, session.Coordinator.State())
}

func (h *PlayerHandler) Command(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var cmd services.PlayerCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	state, err := h.playerService.Command(c.Request.Context(), rd.UserID, cmd)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_command", err)
		return
	}
	RespondOK(c, state)
}

// MediaEvent receives element/embed callbacks (play, pause, ended,
// time_update, duration_change, ready, error) for the active backend.
func (h *PlayerHandler) MediaEvent(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var ev services.MediaEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	state, err := h.playerService.HandleMediaEvent(c.Request.Context(), rd.UserID, ev)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_event", err)
		return
	}
	RespondOK(c, state)
}

// Reconcile takes the audio element's snapshot and returns the commands that
// bring it in line with the session state.
func (h *PlayerHandler) Reconcile(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var actual player.ElementState
	if err := c.ShouldBindJSON(&actual); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	cmds, err := h.playerService.Reconcile(c.Request.Context(), rd.UserID, actual)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_command", err)
		return
	}
	RespondOK(c, gin.H{"commands": cmds})
}

func (h *PlayerHandler) EmbedConfig(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	cfg, err := h.playerService.EmbedConfig(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_command", err)
		return
	}
	RespondOK(c, cfg)
}

type activatePracticeRequest struct {
	PracticeID uuid.UUID `json:"practice_id" binding:"required"`
}

// ActivatePractice loads a practice and points the player session at it.
func (h *PlayerHandler) ActivatePractice(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req activatePracticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	practice, err := h.practiceService.GetByID(c.Request.Context(), req.PracticeID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	state, err := h.playerService.ActivatePractice(c.Request.Context(), rd.UserID, practice)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_command", err)
		return
	}
	RespondOK(c, state)
}

type activateTimerRequest struct {
	DurationSeconds   int                      `json:"duration_seconds" binding:"required"`
	Object            quiz.ConcentrationObject `json:"object"`
	AmbientPracticeID *uuid.UUID               `json:"ambient_practice_id,omitempty"`
}

// ActivateTimer configures the self-meditation timer. The timer is armed
// but not started; the client sends timer_start explicitly.
func (h *PlayerHandler) ActivateTimer(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req activateTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	spec := &services.TimerSpec{
		DurationSeconds: req.DurationSeconds,
		Object:          req.Object,
	}
	if req.AmbientPracticeID != nil {
		ambient, err := h.practiceService.GetByID(c.Request.Context(), *req.AmbientPracticeID)
		if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
			RespondError(c, http.StatusInternalServerError, "internal", err)
			return
		}
		// Missing ambient audio never blocks the timer.
		spec.AmbientAudio = ambient
	}
	state, err := h.playerService.ActivateTimer(c.Request.Context(), rd.UserID, spec)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_command", err)
		return
	}
	RespondOK(c, state)
}

func (h *PlayerHandler) Teardown(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	h.playerService.Teardown(rd.UserID)
	RespondOK(c, gin.H{"status": "ok"})
}
