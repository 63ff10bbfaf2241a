package livefeed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"qabulxona/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// WebSocketClient is a dashboard connected over WebSocket. The feed is one
// way; inbound frames are read only to notice pongs and disconnects.
type WebSocketClient struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	send chan models.FeedEvent
	once sync.Once
	log  zerolog.Logger
}

// NewWebSocketClient wraps an upgraded connection.
func NewWebSocketClient(id string, conn *websocket.Conn, hub *Hub, log zerolog.Logger) *WebSocketClient {
	return &WebSocketClient{
		id:   id,
		conn: conn,
		hub:  hub,
		send: make(chan models.FeedEvent, sendBuffer),
		log:  log.With().Str("client", id).Logger(),
	}
}

func (c *WebSocketClient) ID() string                           { return c.id }
func (c *WebSocketClient) SendChannel() chan<- models.FeedEvent { return c.send }

func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which closes the connection.
func (c *WebSocketClient) Close() {
	c.once.Do(func() { close(c.send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to encode feed event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
