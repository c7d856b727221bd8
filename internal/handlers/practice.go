package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	pkgerrors "github.com/dhyana-app/dhyana-backend/internal/pkg/errors"
	"github.com/dhyana-app/dhyana-backend/internal/repos"
	"github.com/dhyana-app/dhyana-backend/internal/services"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

type PracticeHandler struct {
	log             *logger.Logger
	practiceService services.PracticeService
}

func NewPracticeHandler(log *logger.Logger, practiceService services.PracticeService) *PracticeHandler {
	return &PracticeHandler{
		log:             log.With("handler", "PracticeHandler"),
		practiceService: practiceService,
	}
}

func (h *PracticeHandler) List(c *gin.Context) {
	filter := repos.PracticeFilter{
		PracticeType: c.Query("practice_type"),
		CategorySlug: c.Query("category"),
		MediaType:    types.MediaType(c.Query("media_type")),
		TextSearch:   c.Query("q"),
	}
	if v := c.Query("min_duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		filter.MinDurationSeconds = &n
	}
	if v := c.Query("max_duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		filter.MaxDurationSeconds = &n
	}

	practices, err := h.practiceService.Find(c.Request.Context(), filter)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"practices": practices})
}

func (h *PracticeHandler) Get(c *gin.Context) {
	practiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	practice, err := h.practiceService.GetByID(c.Request.Context(), practiceID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, practice)
}

func (h *PracticeHandler) ListCategories(c *gin.Context) {
	categories, err := h.practiceService.ListCategories(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"categories": categories})
}
