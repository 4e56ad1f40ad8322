package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type AccountRepository interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	GetAccountByUUID(ctx context.Context, accountUUID string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error
	SetLastSyncTime(ctx context.Context, accountID string) error
	SetFolderListRefreshedAt(ctx context.Context, accountID string) error
}
