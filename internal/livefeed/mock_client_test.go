package livefeed

import (
	"sync/atomic"

	"qabulxona/backend/internal/models"
)

type mockClient struct {
	id     string
	recv   chan models.FeedEvent
	closed atomic.Bool
}

func newMockClient(id string, buffer int) *mockClient {
	return &mockClient{id: id, recv: make(chan models.FeedEvent, buffer)}
}

func (c *mockClient) ID() string                           { return c.id }
func (c *mockClient) SendChannel() chan<- models.FeedEvent { return c.recv }
func (c *mockClient) Run()                                 {}
func (c *mockClient) Close()                               { c.closed.Store(true) }
