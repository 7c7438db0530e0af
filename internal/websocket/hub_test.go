package websocket

import (
	"context"
	"testing"
	"time"

	"chat-lens-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)
	return hub
}

func attach(t *testing.T, hub *Hub, conversationID uuid.UUID, buffer int) *Client {
	t.Helper()
	before := hub.Watchers(conversationID)
	client := &Client{Hub: hub, ConversationID: conversationID, Send: make(chan []byte, buffer)}
	hub.register <- client
	require.Eventually(t, func() bool { return hub.Watchers(conversationID) == before+1 }, time.Second, 5*time.Millisecond)
	return client
}

func TestHub_SendConversationReachesOnlyItsWatchers(t *testing.T) {
	hub := startHub(t)
	conversationA, conversationB := uuid.New(), uuid.New()

	a1 := attach(t, hub, conversationA, 4)
	a2 := attach(t, hub, conversationA, 4)
	b := attach(t, hub, conversationB, 4)

	hub.SendConversation(conversationA, []byte(`{"type":"STAGE_CHUNK"}`))

	assert.Equal(t, `{"type":"STAGE_CHUNK"}`, string(<-a1.Send))
	assert.Equal(t, `{"type":"STAGE_CHUNK"}`, string(<-a2.Send))
	assert.Len(t, b.Send, 0)
}

func TestHub_SlowWatcherIsDropped(t *testing.T) {
	hub := startHub(t)
	conversationID := uuid.New()
	slow := attach(t, hub, conversationID, 1)

	hub.SendConversation(conversationID, []byte("1"))
	hub.SendConversation(conversationID, []byte("2"))

	assert.Equal(t, 0, hub.Watchers(conversationID))
	assert.Equal(t, "1", string(<-slow.Send))
	_, open := <-slow.Send
	assert.False(t, open)
}

func TestHub_UnregisterAndClose(t *testing.T) {
	hub := startHub(t)
	conversationID := uuid.New()

	c1 := attach(t, hub, conversationID, 1)
	c2 := attach(t, hub, conversationID, 1)

	hub.unregister <- c1
	require.Eventually(t, func() bool { return hub.Watchers(conversationID) == 1 }, time.Second, 5*time.Millisecond)
	_, open := <-c1.Send
	assert.False(t, open)

	hub.CloseConversation(conversationID)
	assert.Equal(t, 0, hub.Watchers(conversationID))
	_, open = <-c2.Send
	assert.False(t, open)
}
