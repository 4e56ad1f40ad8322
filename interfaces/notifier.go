package interfaces

import (
	"golang.org/x/net/context"

	"github.com/customeros/mailsync/internal/models"
)

// Notifier is the notification presentation collaborator. The controller
// decides when to notify; how is delegated.
type Notifier interface {
	ShowFetchingMailNotification(ctx context.Context, account *models.Account, folder *models.Folder)
	ClearFetchingMailNotification(ctx context.Context, account *models.Account)

	AddNewMailNotification(ctx context.Context, account *models.Account, message *models.Message, silent bool)
	RemoveNewMailNotification(ctx context.Context, account *models.Account, ref models.MessageReference)
	ClearNewMailNotifications(ctx context.Context, account *models.Account)

	ShowSendFailedNotification(ctx context.Context, account *models.Account, err error)
	ClearSendFailedNotification(ctx context.Context, account *models.Account)

	ShowAuthenticationErrorNotification(ctx context.Context, account *models.Account, incoming bool)
	ClearAuthenticationErrorNotification(ctx context.Context, account *models.Account, incoming bool)
	ShowCertificateErrorNotification(ctx context.Context, account *models.Account, incoming bool)
}

// NotificationStrategy decides whether a synced message deserves a
// new-mail notification.
type NotificationStrategy interface {
	ShouldNotifyForMessage(account *models.Account, folder *models.Folder, message *models.Message, isOldMessage bool) bool
}

// LocalDeleteDecider decides whether a delete should bypass the Trash
// folder and happen immediately on the server.
type LocalDeleteDecider interface {
	ShouldDeleteImmediately(account *models.Account, folderID string) bool
}
