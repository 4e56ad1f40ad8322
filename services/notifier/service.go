package notifier

import (
	"golang.org/x/net/context"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
)

// EventNotifier publishes notification events on the notifications
// exchange. Push gateways and UIs consume them; this service never
// renders anything itself.
type EventNotifier struct {
	log       logger.Logger
	publisher interfaces.EventPublisher
}

func NewEventNotifier(log logger.Logger, publisher interfaces.EventPublisher) *EventNotifier {
	return &EventNotifier{
		log:       log,
		publisher: publisher,
	}
}

func (n *EventNotifier) publish(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) {
	err := n.publisher.PublishNotificationEvent(ctx, entityId, entityType, message)
	if err != nil {
		n.log.Errorf("Failed to publish notification event: %v", err)
	}
}

func (n *EventNotifier) ShowFetchingMailNotification(ctx context.Context, account *models.Account, folder *models.Folder) {
	notification := dto.FetchingMailNotification{AccountID: account.ID}
	if folder != nil {
		notification.FolderID = folder.ID
		notification.FolderName = folder.Name
	}
	n.publish(ctx, account.ID, enum.ACCOUNT, notification)
}

func (n *EventNotifier) ClearFetchingMailNotification(ctx context.Context, account *models.Account) {
	n.publish(ctx, account.ID, enum.ACCOUNT, dto.ClearNotification{
		AccountID: account.ID,
		Kind:      dto.NotificationKindFetchingMail,
	})
}

func (n *EventNotifier) AddNewMailNotification(ctx context.Context, account *models.Account, message *models.Message, silent bool) {
	n.publish(ctx, message.ID, enum.MESSAGE, dto.NewMailNotification{
		AccountID: account.ID,
		FolderID:  message.FolderID,
		MessageID: message.ID,
		Subject:   message.Subject,
		From:      message.FromAddress,
		Silent:    silent,
	})
}

func (n *EventNotifier) RemoveNewMailNotification(ctx context.Context, account *models.Account, ref models.MessageReference) {
	n.publish(ctx, ref.MessageID, enum.MESSAGE, dto.ClearNotification{
		AccountID: account.ID,
		Kind:      dto.NotificationKindNewMail,
		FolderID:  ref.FolderID,
		MessageID: ref.MessageID,
	})
}

func (n *EventNotifier) ClearNewMailNotifications(ctx context.Context, account *models.Account) {
	n.publish(ctx, account.ID, enum.ACCOUNT, dto.ClearNotification{
		AccountID: account.ID,
		Kind:      dto.NotificationKindNewMail,
	})
}

func (n *EventNotifier) ShowSendFailedNotification(ctx context.Context, account *models.Account, err error) {
	notification := dto.SendFailedNotification{AccountID: account.ID}
	if err != nil {
		notification.Reason = err.Error()
	}
	n.publish(ctx, account.ID, enum.ACCOUNT, notification)
}

func (n *EventNotifier) ClearSendFailedNotification(ctx context.Context, account *models.Account) {
	n.publish(ctx, account.ID, enum.ACCOUNT, dto.ClearNotification{
		AccountID: account.ID,
		Kind:      dto.NotificationKindSendFailed,
	})
}

func (n *EventNotifier) ShowAuthenticationErrorNotification(ctx context.Context, account *models.Account, incoming bool) {
	n.publish(ctx, account.ID, enum.ACCOUNT, dto.AuthErrorNotification{
		AccountID: account.ID,
		Incoming:  incoming,
	})
}

func (n *EventNotifier) ClearAuthenticationErrorNotification(ctx context.Context, account *models.Account, incoming bool) {
	n.publish(ctx, account.ID, enum.ACCOUNT, dto.ClearNotification{
		AccountID: account.ID,
		Kind:      dto.NotificationKindAuthError,
		Incoming:  incoming,
	})
}

func (n *EventNotifier) ShowCertificateErrorNotification(ctx context.Context, account *models.Account, incoming bool) {
	n.publish(ctx, account.ID, enum.ACCOUNT, dto.CertificateErrorNotification{
		AccountID: account.ID,
		Incoming:  incoming,
	})
}
