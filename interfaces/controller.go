package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

// ControllerService is the mail-synchronization controller: it reconciles
// the local store with remote backends, replays deferred remote mutations
// in order, and fans progress out to registered listeners. All bulk
// operations accept references that may span accounts and folders.
type ControllerService interface {
	Start() error
	Stop(ctx context.Context) error

	AddListener(listener MailListener)
	RemoveListener(listener MailListener)
	RemoveAccount(ctx context.Context, account *models.Account)

	SynchronizeMailbox(ctx context.Context, account *models.Account, folderID string, notify bool, listener MailListener)
	CheckMail(ctx context.Context, account *models.Account, ignoreLastCheckedTime, notify bool, listener MailListener)
	PerformPeriodicMailSync(ctx context.Context, account *models.Account) bool
	RefreshFolderList(ctx context.Context, account *models.Account) error
	ProcessPendingCommands(account *models.Account)

	SendMessage(ctx context.Context, account *models.Account, message *models.Message, raw []byte) error
	SendPendingMessages(account *models.Account, listener MailListener)
	SaveDraft(ctx context.Context, account *models.Account, message *models.Message, raw []byte, previousDraft *models.Message) error

	SetFlag(ctx context.Context, refs []models.MessageReference, flag enum.Flag, value bool)
	SetFlagForThreads(ctx context.Context, accountID string, threadRootIDs []string, flag enum.Flag, value bool)
	MarkAllMessagesRead(ctx context.Context, account *models.Account, folderID string)

	MoveMessages(ctx context.Context, refs []models.MessageReference, targetFolderID string)
	MoveMessagesInThread(ctx context.Context, refs []models.MessageReference, targetFolderID string)
	CopyMessages(ctx context.Context, refs []models.MessageReference, targetFolderID string)
	CopyMessagesInThread(ctx context.Context, refs []models.MessageReference, targetFolderID string)
	ArchiveMessages(ctx context.Context, refs []models.MessageReference)
	MoveToSpam(ctx context.Context, refs []models.MessageReference)

	DeleteMessages(ctx context.Context, refs []models.MessageReference)
	DeleteThreads(ctx context.Context, refs []models.MessageReference)
	EmptyTrash(ctx context.Context, account *models.Account, listener MailListener)
	EmptySpam(ctx context.Context, account *models.Account, listener MailListener)
	ClearFolder(ctx context.Context, account *models.Account, folderID string)
	Expunge(ctx context.Context, account *models.Account, folderID string)
	Compact(account *models.Account)

	LoadMessageRemote(ctx context.Context, account *models.Account, folderID, uid string, listener MailListener)
	LoadMessageRemotePartial(ctx context.Context, account *models.Account, folderID, uid string, listener MailListener)
	LoadAttachment(ctx context.Context, account *models.Account, messageID, partID string, listener MailListener)

	SearchRemoteMessages(accountID, folderID, query string, requiredFlags, forbiddenFlags []enum.Flag, listener MailListener) context.CancelFunc

	CheckAuthenticationProblem(ctx context.Context, account *models.Account, incoming bool) bool
	IsMessageSuppressed(message *models.Message) bool
}
