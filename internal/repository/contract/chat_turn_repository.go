package contract

import (
	"context"

	"chat-lens-be/internal/entity"
	"chat-lens-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ChatTurnRepository is the durable transcript archive.
type ChatTurnRepository interface {
	// Create appends turns after the ones already archived for the conversation.
	Create(ctx context.Context, conversationID uuid.UUID, turns ...entity.Turn) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]entity.Turn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
