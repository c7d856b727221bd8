package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	pkgerrors "github.com/dhyana-app/dhyana-backend/internal/pkg/errors"
	"github.com/dhyana-app/dhyana-backend/internal/requestdata"
	"github.com/dhyana-app/dhyana-backend/internal/services"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

type EventHandler struct {
	log          *logger.Logger
	eventService services.EventService
}

func NewEventHandler(log *logger.Logger, eventService services.EventService) *EventHandler {
	return &EventHandler{
		log:          log.With("handler", "EventHandler"),
		eventService: eventService,
	}
}

// List returns upcoming events, or the events inside [from, to] when both
// bounds are given as RFC 3339 timestamps.
func (h *EventHandler) List(c *gin.Context) {
	fromStr, toStr := c.Query("from"), c.Query("to")
	if fromStr != "" || toStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		events, err := h.eventService.ListRange(c.Request.Context(), from, to)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrInvalidArgument) {
				RespondError(c, http.StatusBadRequest, "invalid_request", err)
				return
			}
			RespondError(c, http.StatusInternalServerError, "internal", err)
			return
		}
		RespondOK(c, gin.H{"events": events})
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		limit = n
	}
	events, err := h.eventService.ListUpcoming(c.Request.Context(), limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"events": events})
}

type createEventRequest struct {
	Title           string    `json:"title" binding:"required"`
	Description     string    `json:"description"`
	StartsAt        time.Time `json:"starts_at" binding:"required"`
	DurationSeconds int       `json:"duration_seconds"`
	LocationURL     string    `json:"location_url"`
	DisplayOrder    int       `json:"display_order"`
}

// Create adds calendar entries. Admin only.
func (h *EventHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || !rd.IsAdmin {
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("admin access required"))
		return
	}
	var req []createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	events := make([]*types.Event, 0, len(req))
	for _, r := range req {
		events = append(events, &types.Event{
			Title:           r.Title,
			Description:     r.Description,
			StartsAt:        r.StartsAt,
			DurationSeconds: r.DurationSeconds,
			LocationURL:     r.LocationURL,
			DisplayOrder:    r.DisplayOrder,
		})
	}
	created, err := h.eventService.Create(c.Request.Context(), events)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"events": created})
}
