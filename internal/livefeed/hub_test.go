package livefeed

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qabulxona/backend/internal/models"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub, _ := startHub(t)
	client := newMockClient("dash-1", 4)

	require.True(t, hub.Register(client))
	assert.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
	assert.True(t, client.closed.Load())
}

func TestHub_PublishReachesEveryClient(t *testing.T) {
	hub, _ := startHub(t)
	a := newMockClient("a", 4)
	b := newMockClient("b", 4)
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))

	hub.Publish(models.FeedEvent{Type: "complaint_submitted", ComplaintID: "c1"})

	for _, c := range []*mockClient{a, b} {
		select {
		case ev := <-c.recv:
			assert.Equal(t, "c1", ev.ComplaintID)
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive the event", c.id)
		}
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub, _ := startHub(t)
	slow := newMockClient("slow", 0)
	require.True(t, hub.Register(slow))

	hub.Publish(models.FeedEvent{Type: "status_changed", ComplaintID: "c1"})

	assert.Eventually(t, slow.closed.Load, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.Clients())
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := startHub(t)
	client := newMockClient("dash", 4)
	require.True(t, hub.Register(client))

	cancel()

	assert.Eventually(t, client.closed.Load, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !hub.Register(newMockClient("late", 1)) }, time.Second, 10*time.Millisecond)
}
