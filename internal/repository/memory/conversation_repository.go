package memory

import (
	"errors"
	"sync"
	"time"

	"chat-lens-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var ErrConversationNotFound = errors.New("conversation not found")

type conversationRecord struct {
	mu           sync.RWMutex
	conversation entity.Conversation
}

// ConversationRepository keeps live conversations in memory. Every read or
// append pushes the expiry forward by the configured TTL.
type ConversationRepository struct {
	cache *cache.Cache
	now   func() time.Time
}

func NewConversationRepository(ttl time.Duration) *ConversationRepository {
	cleanup := ttl / 6
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return &ConversationRepository{
		cache: cache.New(ttl, cleanup),
		now:   time.Now,
	}
}

// OnEvicted registers fn to run when a conversation expires or is deleted.
func (r *ConversationRepository) OnEvicted(fn func(conversationID uuid.UUID)) {
	r.cache.OnEvicted(func(key string, _ interface{}) {
		id, err := uuid.Parse(key)
		if err != nil {
			return
		}
		fn(id)
	})
}

func (r *ConversationRepository) Create() entity.Conversation {
	rec := &conversationRecord{
		conversation: entity.Conversation{
			Id:        uuid.New(),
			CreatedAt: r.now(),
		},
	}
	r.cache.Set(rec.conversation.Id.String(), rec, cache.DefaultExpiration)
	return rec.conversation
}

func (r *ConversationRepository) Get(conversationID uuid.UUID) (entity.Conversation, error) {
	rec, ok := r.touch(conversationID)
	if !ok {
		return entity.Conversation{}, ErrConversationNotFound
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	conv := rec.conversation
	conv.Turns = make([]entity.Turn, 0, len(rec.conversation.Turns))
	for _, t := range rec.conversation.Turns {
		conv.Turns = append(conv.Turns, t.Clone())
	}
	return conv, nil
}

func (r *ConversationRepository) Turns(conversationID uuid.UUID) ([]entity.Turn, error) {
	conv, err := r.Get(conversationID)
	if err != nil {
		return nil, err
	}
	return conv.Turns, nil
}

// Append adds a copy of turn to the end of the conversation.
func (r *ConversationRepository) Append(conversationID uuid.UUID, turn entity.Turn) error {
	rec, ok := r.touch(conversationID)
	if !ok {
		return ErrConversationNotFound
	}

	rec.mu.Lock()
	rec.conversation.Turns = append(rec.conversation.Turns, turn.Clone())
	rec.mu.Unlock()
	return nil
}

func (r *ConversationRepository) Exists(conversationID uuid.UUID) bool {
	_, ok := r.cache.Get(conversationID.String())
	return ok
}

func (r *ConversationRepository) Delete(conversationID uuid.UUID) bool {
	key := conversationID.String()
	if _, ok := r.cache.Get(key); !ok {
		return false
	}
	r.cache.Delete(key)
	return true
}

func (r *ConversationRepository) Count() int {
	return r.cache.ItemCount()
}

func (r *ConversationRepository) touch(conversationID uuid.UUID) (*conversationRecord, bool) {
	key := conversationID.String()
	x, found := r.cache.Get(key)
	if !found {
		return nil, false
	}
	rec := x.(*conversationRecord)
	r.cache.Set(key, rec, cache.DefaultExpiration)
	return rec, true
}
