package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

type MessageRepository interface {
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	GetMessageByUID(ctx context.Context, folderID, uid string) (*models.Message, error)
	GetMessagesByUID(ctx context.Context, folderID string, uids []string) ([]*models.Message, error)
	GetMessagesByIDs(ctx context.Context, messageIDs []string) ([]*models.Message, error)
	ListByFolder(ctx context.Context, folderID string) ([]*models.Message, error)
	ListByThreadRoots(ctx context.Context, accountID string, threadRootIDs []string) ([]*models.Message, error)
	FindByMessageIDHeader(ctx context.Context, folderID, messageIDHeader string) (*models.Message, error)

	Save(ctx context.Context, message *models.Message) error
	SetFlag(ctx context.Context, messageIDs []string, flag enum.Flag, value bool) error
	SetFlagByUID(ctx context.Context, folderID string, uids []string, flag enum.Flag, value bool) error
	SetFlagForFolder(ctx context.Context, folderID string, flag enum.Flag, value bool) error
	SetUID(ctx context.Context, messageID, newUID string) error
	SetFolder(ctx context.Context, messageID, folderID string) error

	Delete(ctx context.Context, messageIDs []string) error
	DeleteByFolder(ctx context.Context, folderID string) error
	DeleteLocalOnly(ctx context.Context, folderID string) error
}
