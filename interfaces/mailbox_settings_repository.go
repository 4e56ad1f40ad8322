package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type MailboxSettingsRepository interface {
	GetByAccountID(ctx context.Context, accountID string) (*models.MailboxSettings, error)
	Save(ctx context.Context, settings *models.MailboxSettings) error
	Delete(ctx context.Context, accountID string) error
}
