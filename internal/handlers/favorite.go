package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/requestdata"
	"github.com/dhyana-app/dhyana-backend/internal/services"
)

type FavoriteHandler struct {
	log             *logger.Logger
	favoriteService services.FavoriteService
}

func NewFavoriteHandler(log *logger.Logger, favoriteService services.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{
		log:             log.With("handler", "FavoriteHandler"),
		favoriteService: favoriteService,
	}
}

func (h *FavoriteHandler) Toggle(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	practiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	favorited, err := h.favoriteService.Toggle(c.Request.Context(), rd.UserID, practiceID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"favorited": favorited})
}

func (h *FavoriteHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	practices, err := h.favoriteService.List(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"practices": practices})
}
