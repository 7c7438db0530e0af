package unitofwork

import (
	"context"

	"chat-lens-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatTurnRepository() contract.ChatTurnRepository
}
