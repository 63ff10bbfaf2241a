// Package livefeed streams complaint lifecycle events to connected
// dashboards over WebSocket.
package livefeed

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"qabulxona/backend/internal/models"
)

// Channel is the Redis pub/sub channel events travel through.
const Channel = "complaints:feed"

const broadcastBuffer = 64

// Hub owns the set of connected clients. All registry changes happen on the
// Run goroutine.
type Hub struct {
	clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	broadcastCh  chan models.FeedEvent

	redis *redis.Client
	count atomic.Int64
	done  chan struct{}
	log   zerolog.Logger
}

// NewHub creates a hub. With a nil Redis client events stay in process.
func NewHub(rdb *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		broadcastCh:  make(chan models.FeedEvent, broadcastBuffer),
		redis:        rdb,
		done:         make(chan struct{}),
		log:          log.With().Str("component", "livefeed").Logger(),
	}
}

// Publish hands ev to every connected client. It never blocks the caller;
// events are dropped when the hub is saturated.
func (h *Hub) Publish(ev models.FeedEvent) {
	if h.redis != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			err = h.redis.Publish(context.Background(), Channel, payload).Err()
		}
		if err == nil {
			return
		}
		h.log.Warn().Err(err).Msg("redis publish failed, delivering locally")
	}
	h.enqueue(ev)
}

func (h *Hub) enqueue(ev models.FeedEvent) {
	select {
	case h.broadcastCh <- ev:
	default:
		h.log.Warn().Str("type", ev.Type).Str("complaint_id", ev.ComplaintID).Msg("feed saturated, event dropped")
	}
}

// Register adds c to the hub. It reports false once the hub has stopped.
func (h *Hub) Register(c Client) bool {
	select {
	case h.RegisterCh <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c from the hub; it is a no-op after the hub stopped.
func (h *Hub) Unregister(c Client) {
	select {
	case h.UnregisterCh <- c:
	case <-h.done:
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	if h.redis != nil {
		go h.listen(ctx)
	}

	for {
		select {
		case c := <-h.RegisterCh:
			h.clients[c.ID()] = c
			h.count.Store(int64(len(h.clients)))
			h.log.Debug().Str("client", c.ID()).Msg("client registered")

		case c := <-h.UnregisterCh:
			h.remove(c)

		case ev := <-h.broadcastCh:
			for _, c := range h.clients {
				select {
				case c.SendChannel() <- ev:
				default:
					h.log.Warn().Str("client", c.ID()).Msg("slow client dropped")
					h.remove(c)
				}
			}

		case <-ctx.Done():
			for _, c := range h.clients {
				h.remove(c)
			}
			return nil
		}
	}
}

func (h *Hub) remove(c Client) {
	if _, ok := h.clients[c.ID()]; !ok {
		return
	}
	delete(h.clients, c.ID())
	h.count.Store(int64(len(h.clients)))
	c.Close()
}

// listen moves events published through Redis onto the broadcast channel.
func (h *Hub) listen(ctx context.Context) {
	pubsub := h.redis.Subscribe(ctx, Channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.FeedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.log.Warn().Err(err).Msg("bad feed payload")
				continue
			}
			h.enqueue(ev)
		}
	}
}
