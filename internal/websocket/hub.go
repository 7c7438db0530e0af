package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"chat-lens-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "chat_turn_events"

type clusterMessage struct {
	Origin         string          `json:"origin"`
	ConversationID string          `json:"conversation_id"`
	Message        json.RawMessage `json:"message"`
}

// Hub fans turn events out to every websocket watching a conversation.
// With redis configured, events reach watchers on other instances too.
type Hub struct {
	id string

	// conversation id -> watchers (several tabs may follow one conversation)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	rdb    *redis.Client
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		id:         uuid.NewString(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

// Run serves register and unregister requests until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConversationID] = append(h.clients[client.ConversationID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"conversation_id": client.ConversationID})

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		}
	}
}

// SendConversation delivers data to the local watchers of a conversation
// and publishes it for the other instances.
func (h *Hub) SendConversation(conversationID uuid.UUID, data []byte) {
	h.deliver(conversationID, data)

	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(clusterMessage{
		Origin:         h.id,
		ConversationID: conversationID.String(),
		Message:        data,
	})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
	}
}

// Watchers returns how many local connections follow a conversation.
func (h *Hub) Watchers(conversationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[conversationID])
}

// CloseConversation disconnects every local watcher of a conversation.
func (h *Hub) CloseConversation(conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients[conversationID] {
		close(c.Send)
	}
	delete(h.clients, conversationID)
}

func (h *Hub) deliver(conversationID uuid.UUID, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range append([]*Client(nil), h.clients[conversationID]...) {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping client", map[string]interface{}{"conversation_id": conversationID})
			h.remove(client)
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.ConversationID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.ConversationID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.ConversationID]) == 0 {
		delete(h.clients, client.ConversationID)
		h.logger.Info("Hub", "Conversation has no watchers", map[string]interface{}{"conversation_id": client.ConversationID})
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.clients {
		for _, c := range clients {
			close(c.Send)
		}
		delete(h.clients, id)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
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
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.id {
				continue
			}
			id, err := uuid.Parse(payload.ConversationID)
			if err != nil {
				continue
			}
			h.deliver(id, payload.Message)
		}
	}
}
