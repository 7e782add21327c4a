package hub_test

import (
	"context"
	"testing"
	"time"

	hub "github.com/MCPJam/inspector-sub007/pkg/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_ReceivesLivePublish(t *testing.T) {
	h := hub.New()
	sub := h.Subscribe("servers")
	defer sub.Close()

	h.Publish("servers", "event-1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	env, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "servers", env.Topic)
	assert.Equal(t, "event-1", env.Data)
	assert.Zero(t, env.Dropped)
}

func TestSubscribe_ReplaysBufferedEvents(t *testing.T) {
	h := hub.New(hub.WithTopic("servers", hub.TopicConfig{BufferSize: 16, ReplayN: 2}))

	h.Publish("servers", "a")
	h.Publish("servers", "b")
	h.Publish("servers", "c")

	sub := h.Subscribe("servers")
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env1, ok := sub.Next(ctx)
	require.True(t, ok)
	env2, ok := sub.Next(ctx)
	require.True(t, ok)

	// Replay depth 2 over publishes a,b,c keeps the last two: b, c.
	assert.Equal(t, "b", env1.Data)
	assert.Equal(t, "c", env2.Data)
}

func TestPublish_DropsOldestWhenSubscriberQueueFull(t *testing.T) {
	h := hub.New(hub.WithTopic("servers", hub.TopicConfig{BufferSize: 1, ReplayN: 0}))
	sub := h.Subscribe("servers")
	defer sub.Close()

	h.Publish("servers", "first")
	h.Publish("servers", "second")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	env, ok := sub.Next(ctx)
	require.True(t, ok)

	assert.Equal(t, "second", env.Data)
	assert.Equal(t, 1, env.Dropped)
}

func TestSubscription_CloseStopsDelivery(t *testing.T) {
	h := hub.New()
	sub := h.Subscribe("servers")
	sub.Close()

	// Publishing after Close must not panic or block.
	h.Publish("servers", "after-close")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := sub.Next(ctx)
	assert.False(t, ok)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	h := hub.New()
	sub := h.Subscribe("servers")
	sub.Close()
	assert.NotPanics(t, func() { sub.Close() })
}

func TestNext_RespectsContextCancellation(t *testing.T) {
	h := hub.New()
	sub := h.Subscribe("servers")
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := sub.Next(ctx)
	assert.False(t, ok)
}
