package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/services"
)

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		log:         log.With("handler", "AuthHandler"),
		authService: authService,
	}
}

type telegramAuthRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

// AuthenticateTelegram exchanges a Mini App launch payload for a session
// token.
func (h *AuthHandler) AuthenticateTelegram(c *gin.Context) {
	var req telegramAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	token, user, err := h.authService.AuthenticateTelegram(c.Request.Context(), req.InitData)
	if err != nil {
		h.log.Warn("telegram auth failed", "error", err)
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	RespondOK(c, gin.H{
		"token":      token,
		"user":       user,
		"has_access": user.HasAccess(time.Now()),
	})
}
