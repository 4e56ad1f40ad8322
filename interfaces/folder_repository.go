package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type FolderRepository interface {
	GetFolder(ctx context.Context, folderID string) (*models.Folder, error)
	GetFolderByServerID(ctx context.Context, accountID, serverID string) (*models.Folder, error)
	ListFolders(ctx context.Context, accountID string) ([]*models.Folder, error)
	SaveFolder(ctx context.Context, folder *models.Folder) error
	SetLastChecked(ctx context.Context, folderID string) error
	SetVisibleLimit(ctx context.Context, folderID string, limit int) error
}
