package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

// LocalStore is the durable message/folder database the controller
// reconciles against the backend. Implementations provide their own
// transactional consistency; the controller adds no locking around it.
type LocalStore interface {
	// Folders
	GetFolder(ctx context.Context, folderID string) (*models.Folder, error)
	GetFolderByServerID(ctx context.Context, accountID, serverID string) (*models.Folder, error)
	ListFolders(ctx context.Context, accountID string) ([]*models.Folder, error)
	UpsertRemoteFolders(ctx context.Context, accountID string, remote []RemoteFolder) error
	SetFolderLastChecked(ctx context.Context, folderID string) error
	SetFolderVisibleLimit(ctx context.Context, folderID string, limit int) error

	// Message lookup
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	GetMessageByUID(ctx context.Context, folderID, uid string) (*models.Message, error)
	GetMessagesByUID(ctx context.Context, folderID string, uids []string) ([]*models.Message, error)
	GetMessagesByReference(ctx context.Context, folderID string, refs []models.MessageReference) ([]*models.Message, error)
	ListMessages(ctx context.Context, folderID string) ([]*models.Message, error)
	ListMessagesByThreadRoots(ctx context.Context, accountID string, threadRootIDs []string) ([]*models.Message, error)
	FindUIDByMessageIDHeader(ctx context.Context, folderID, messageIDHeader string) (string, error)

	// Message mutation
	SaveMessage(ctx context.Context, message *models.Message) error
	SetFlag(ctx context.Context, messageIDs []string, flag enum.Flag, value bool) error
	SetFlagByUID(ctx context.Context, folderID string, uids []string, flag enum.Flag, value bool) error
	SetFlagForAllMessages(ctx context.Context, folderID string, flag enum.Flag, value bool) error
	SetMessageUID(ctx context.Context, messageID, newUID string) error

	// MoveMessages and CopyMessages return an old-message-ID to
	// new-message-ID mapping; copies get fresh placeholder UIDs.
	MoveMessages(ctx context.Context, messageIDs []string, targetFolderID string) (map[string]string, error)
	CopyMessages(ctx context.Context, messageIDs []string, targetFolderID string) (map[string]string, error)

	DestroyMessages(ctx context.Context, messageIDs []string) error
	// DestroyDeletedMessages removes only rows carrying the deleted flag.
	DestroyDeletedMessages(ctx context.Context, folderID string, uids []string) error
	DestroyLocalOnlyMessages(ctx context.Context, folderID string) error
	ClearAllMessages(ctx context.Context, folderID string) error

	// Raw RFC822 content
	GetRawMessage(ctx context.Context, message *models.Message) ([]byte, error)
	StoreRawMessage(ctx context.Context, message *models.Message, raw []byte) error
	StoreMessagePart(ctx context.Context, message *models.Message, partID string, data []byte, contentType string) error

	Compact(ctx context.Context, accountID string) error
}
