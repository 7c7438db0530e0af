package message

import (
	"time"

	"chat-lens-be/internal/constant"
	"chat-lens-be/internal/entity"

	"github.com/google/uuid"
)

// Factory builds conversation turns.
type Factory struct {
	fallbackContent string
	now             func() time.Time
}

// NewFactory creates a factory; fallbackContent replaces an empty summary.
func NewFactory(fallbackContent string) *Factory {
	return &Factory{
		fallbackContent: fallbackContent,
		now:             time.Now,
	}
}

// CreateUserTurn wraps the raw query text.
func (f *Factory) CreateUserTurn(query string) entity.Turn {
	return entity.Turn{
		Id:        uuid.New(),
		Role:      constant.ChatMessageRoleUser,
		Content:   query,
		CreatedAt: f.now(),
	}
}

// CreateAssistantTurn assembles the final answer of a turn.
func (f *Factory) CreateAssistantTurn(summary string, sources []string, thoughts entity.Thoughts) entity.Turn {
	content := summary
	if content == "" {
		content = f.fallbackContent
	}

	var merged []string
	if len(sources) > 0 {
		merged = append(merged, sources...)
	}

	return entity.Turn{
		Id:        uuid.New(),
		Role:      constant.ChatMessageRoleAssistant,
		Content:   content,
		Sources:   merged,
		Thoughts:  &thoughts,
		CreatedAt: f.now(),
	}
}
