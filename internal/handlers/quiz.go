package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/quiz"
	"github.com/dhyana-app/dhyana-backend/internal/requestdata"
	"github.com/dhyana-app/dhyana-backend/internal/services"
)

type QuizHandler struct {
	log         *logger.Logger
	quizService services.QuizSessionService
}

func NewQuizHandler(log *logger.Logger, quizService services.QuizSessionService) *QuizHandler {
	return &QuizHandler{
		log:         log.With("handler", "QuizHandler"),
		quizService: quizService,
	}
}

func (h *QuizHandler) GetState(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	state, err := h.quizService.GetState(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, state)
}

func (h *QuizHandler) Answer(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var answer services.QuizAnswer
	if err := c.ShouldBindJSON(&answer); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	state, err := h.quizService.Answer(c.Request.Context(), rd.UserID, answer)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_answer", err)
		return
	}
	RespondOK(c, state)
}

func (h *QuizHandler) Next(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	state, err := h.quizService.Next(c.Request.Context(), rd.UserID)
	if err != nil {
		switch {
		case errors.Is(err, quiz.ErrStepIncomplete), errors.Is(err, quiz.ErrAtTerminal):
			RespondError(c, http.StatusBadRequest, "invalid_transition", err)
		default:
			RespondError(c, http.StatusInternalServerError, "internal", err)
		}
		return
	}
	RespondOK(c, state)
}

func (h *QuizHandler) Back(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	state, exited, err := h.quizService.Back(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{
		"state":  state,
		"exited": exited,
	})
}

func (h *QuizHandler) Reset(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	state, err := h.quizService.Reset(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, state)
}

// Resolve turns a completed quiz into a recommendation. A no-content outcome
// is a normal end state; the client prompts the user to retake the quiz.
func (h *QuizHandler) Resolve(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	resolution, err := h.quizService.Resolve(c.Request.Context(), rd.UserID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoMatchingContent):
			RespondError(c, http.StatusNotFound, "no_matching_content", err)
		case errors.Is(err, services.ErrStaleResolution):
			RespondError(c, http.StatusConflict, "stale_resolution", err)
		case errors.Is(err, quiz.ErrStepIncomplete):
			RespondError(c, http.StatusBadRequest, "quiz_incomplete", err)
		default:
			RespondError(c, http.StatusInternalServerError, "internal", err)
		}
		return
	}
	RespondOK(c, resolution)
}
