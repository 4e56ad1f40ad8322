package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type OutboxStateRepository interface {
	GetOrCreate(ctx context.Context, messageID string) (*models.OutboxState, error)
	IncrementSendAttempts(ctx context.Context, messageID string) error
	DecrementSendAttempts(ctx context.Context, messageID string) error
	SetSendAttemptError(ctx context.Context, messageID, errorText string) error
	SetSendAttemptsExceeded(ctx context.Context, messageID string) error
	RecordError(ctx context.Context, messageID, errorText string) error
	Delete(ctx context.Context, messageID string) error
}
