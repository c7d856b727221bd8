package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/requestdata"
	"github.com/dhyana-app/dhyana-backend/internal/sse"
)

type SSEHandler struct {
	log *logger.Logger
	hub *sse.Hub
}

func NewSSEHandler(log *logger.Logger, hub *sse.Hub) *SSEHandler {
	return &SSEHandler{
		log: log.With("handler", "SSEHandler"),
		hub: hub,
	}
}

// Stream holds the connection open and pushes the caller's channel events
// until the client disconnects.
func (h *SSEHandler) Stream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	client := h.hub.NewClient(rd.UserID)
	h.hub.AddChannel(client, sse.UserChannel(rd.UserID))
	h.hub.AddChannel(client, sse.BroadcastChannel)
	defer h.hub.CloseClient(client)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
