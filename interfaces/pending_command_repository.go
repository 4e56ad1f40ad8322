package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type PendingCommandRepository interface {
	Create(ctx context.Context, command *models.PendingCommand) error
	ListForAccount(ctx context.Context, accountID string) ([]*models.PendingCommand, error)
	Delete(ctx context.Context, id uint64) error
	DeleteForAccount(ctx context.Context, accountID string) error
	CountForAccount(ctx context.Context, accountID string) (int64, error)
}
