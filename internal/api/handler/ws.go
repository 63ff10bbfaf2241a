package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"qabulxona/backend/internal/livefeed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from other origins; the token is the gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and subscribes it to the live feed.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	if h.Hub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Live feed disabled"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := fmt.Sprintf("%d-%s", c.GetInt64(ContextAdminID), uuid.NewString()[:8])
	client := livefeed.NewWebSocketClient(id, conn, h.Hub, h.log)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}
