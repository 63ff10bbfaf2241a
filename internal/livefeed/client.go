package livefeed

import "qabulxona/backend/internal/models"

// Client is one subscriber of the feed. The hub only ever writes to the
// send channel and closes the client when it falls behind or leaves.
type Client interface {
	// ID identifies the connection in logs and in the hub's registry.
	ID() string
	// SendChannel is where the hub delivers events for this client.
	SendChannel() chan<- models.FeedEvent
	// Run starts the read and write pumps.
	Run()
	// Close stops the client; the hub calls it exactly once.
	Close()
}
