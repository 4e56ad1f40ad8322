package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
)

// RemoteFolder is one folder as reported by the backend's folder list.
type RemoteFolder struct {
	ServerID  string
	Name      string
	Delimiter string
}

// SyncConfig carries the per-folder knobs one sync pass honors.
type SyncConfig struct {
	VisibleLimit        int
	MaxAutoDownloadSize int64
	SyncRemoteDeletions bool
}

// SyncListener is the set of callbacks a Backend invokes during one folder
// sync pass. Folder identity is the backend server ID; the controller maps
// it back to local folder rows.
type SyncListener interface {
	SyncStarted(folderServerID string)
	SyncAuthenticationSuccess()
	SyncHeadersStarted(folderServerID string)
	SyncHeadersProgress(folderServerID string, completed, total int)
	SyncHeadersFinished(folderServerID string, totalMessagesInMailbox, numNewMessages int)
	SyncProgress(folderServerID string, completed, total int)
	SyncNewMessage(folderServerID, messageServerID string, isOldMessage bool)
	SyncRemovedMessage(folderServerID, messageServerID string)
	SyncFlagChanged(folderServerID, messageServerID string)
	SyncFinished(folderServerID string)
	SyncFailed(folderServerID, message string, err error)
	FolderStatusChanged(folderServerID string)
}

// Capabilities advertises what remote operations a backend supports.
type Capabilities struct {
	SupportsMove                bool
	SupportsCopy                bool
	SupportsFlags               bool
	SupportsExpunge             bool
	SupportsUpload              bool
	SupportsTrashFolder         bool
	SupportsSearch              bool
	SupportsFolderSubscriptions bool
	IsPushCapable               bool
}

// Backend abstracts one remote mail service. Errors crossing this boundary
// are classified as internal/errors.MailError values.
type Backend interface {
	Capabilities() Capabilities

	Sync(ctx context.Context, folderServerID string, config SyncConfig, listener SyncListener)
	RefreshFolderList(ctx context.Context) ([]RemoteFolder, error)

	SendMessage(ctx context.Context, raw []byte, from string, to []string) error
	UploadMessage(ctx context.Context, folderServerID string, raw []byte) (string, error)
	FindUIDByMessageID(ctx context.Context, folderServerID, messageID string) (string, error)

	MoveMessages(ctx context.Context, sourceServerID, targetServerID string, uids []string) (map[string]string, error)
	CopyMessages(ctx context.Context, sourceServerID, targetServerID string, uids []string) (map[string]string, error)
	MoveMessagesAndMarkAsRead(ctx context.Context, sourceServerID, targetServerID string, uids []string) (map[string]string, error)

	SetFlag(ctx context.Context, folderServerID string, uids []string, flag enum.Flag, value bool) error
	MarkAllAsRead(ctx context.Context, folderServerID string) error
	DeleteMessages(ctx context.Context, folderServerID string, uids []string) error
	DeleteAllMessages(ctx context.Context, folderServerID string) error
	Expunge(ctx context.Context, folderServerID string) error

	Search(ctx context.Context, folderServerID, query string, requiredFlags, forbiddenFlags []enum.Flag) ([]string, error)
	DownloadMessage(ctx context.Context, folderServerID, uid string, partial bool) ([]byte, error)
	FetchPart(ctx context.Context, folderServerID, uid, partID string) ([]byte, string, error)
}

// BackendProvider resolves the backend for an account. Implementations may
// cache connections per account.
type BackendProvider interface {
	GetBackend(ctx context.Context, accountID string) (Backend, error)
}
