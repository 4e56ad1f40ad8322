package controller

import (
	"context"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	mailerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
)

// controllerSyncListener bridges one backend sync pass to the registered
// mail listeners and the notifier. The backend talks in server IDs; this
// maps them back onto local rows before fanning out.
type controllerSyncListener struct {
	svc                   *ControllerService
	ctx                   context.Context
	account               *models.Account
	extra                 interfaces.MailListener
	suppressNotifications bool

	// set when SyncFailed fires, read by the caller after the pass
	syncFailed bool
	// once one notification was shown, the rest of the pass is silent
	wasNotified bool
}

func newControllerSyncListener(ctx context.Context, svc *ControllerService, account *models.Account, extra interfaces.MailListener, suppressNotifications bool) *controllerSyncListener {
	return &controllerSyncListener{
		svc:                   svc,
		ctx:                   ctx,
		account:               account,
		extra:                 extra,
		suppressNotifications: suppressNotifications,
	}
}

func (l *controllerSyncListener) fanOut(notify func(interfaces.MailListener)) {
	for _, listener := range l.svc.getListeners(l.extra) {
		notify(listener)
	}
}

func (l *controllerSyncListener) localFolder(folderServerID string) *models.Folder {
	folder, err := l.svc.localStore.GetFolderByServerID(l.ctx, l.account.ID, folderServerID)
	if err != nil {
		l.svc.log.Warnf("Unknown folder %s reported during sync of account %s: %v", folderServerID, l.account.ID, err)
		return nil
	}
	return folder
}

func (l *controllerSyncListener) SyncStarted(folderServerID string) {
	folder := l.localFolder(folderServerID)
	if folder == nil {
		return
	}
	l.fanOut(func(ml interfaces.MailListener) {
		ml.SynchronizeMailboxStarted(l.account, folder.ID)
	})
}

func (l *controllerSyncListener) SyncAuthenticationSuccess() {
	l.svc.notifier.ClearAuthenticationErrorNotification(l.ctx, l.account, true)
}

func (l *controllerSyncListener) SyncHeadersStarted(folderServerID string) {
	l.fanOut(func(ml interfaces.MailListener) {
		ml.SynchronizeMailboxHeadersStarted(l.account, folderServerID)
	})
}

func (l *controllerSyncListener) SyncHeadersProgress(folderServerID string, completed, total int) {
	l.fanOut(func(ml interfaces.MailListener) {
		ml.SynchronizeMailboxHeadersProgress(l.account, folderServerID, completed, total)
	})
}

func (l *controllerSyncListener) SyncHeadersFinished(folderServerID string, totalMessagesInMailbox, numNewMessages int) {
	l.fanOut(func(ml interfaces.MailListener) {
		ml.SynchronizeMailboxHeadersFinished(l.account, folderServerID, totalMessagesInMailbox, numNewMessages)
	})
}

func (l *controllerSyncListener) SyncProgress(folderServerID string, completed, total int) {
	folder := l.localFolder(folderServerID)
	if folder == nil {
		return
	}
	l.fanOut(func(ml interfaces.MailListener) {
		ml.SynchronizeMailboxProgress(l.account, folder.ID, completed, total)
	})
}

// SyncNewMessage decides whether the freshly synced message deserves a
// notification, then broadcasts it if it is still unread.
func (l *controllerSyncListener) SyncNewMessage(folderServerID, messageServerID string, isOldMessage bool) {
	folder := l.localFolder(folderServerID)
	if folder == nil {
		return
	}
	message, err := l.svc.localStore.GetMessageByUID(l.ctx, folder.ID, messageServerID)
	if err != nil {
		l.svc.log.Warnf("Synced message %s not found in folder %s: %v", messageServerID, folder.ID, err)
		return
	}

	if !l.suppressNotifications && l.svc.strategy.ShouldNotifyForMessage(l.account, folder, message, isOldMessage) {
		// Only the first notification of one pass makes a sound.
		l.svc.notifier.AddNewMailNotification(l.ctx, l.account, message, l.wasNotified)
		l.wasNotified = true
	}

	if !message.HasFlag(enum.FlagSeen) {
		l.fanOut(func(ml interfaces.MailListener) {
			ml.SynchronizeMailboxNewMessage(l.account, folderServerID, message)
		})
	}
}

func (l *controllerSyncListener) SyncRemovedMessage(folderServerID, messageServerID string) {
	folder := l.localFolder(folderServerID)
	if folder == nil {
		return
	}
	if message, err := l.svc.localStore.GetMessageByUID(l.ctx, folder.ID, messageServerID); err == nil {
		l.svc.notifier.RemoveNewMailNotification(l.ctx, l.account, message.MakeReference())
	}
	l.fanOut(func(ml interfaces.MailListener) {
		ml.SynchronizeMailboxRemovedMessage(l.account, folderServerID, messageServerID)
	})
}

// SyncFlagChanged re-evaluates the message: one now deleted or hidden by
// the overlay is reported as removed, anything else may gain or lose a
// notification.
func (l *controllerSyncListener) SyncFlagChanged(folderServerID, messageServerID string) {
	folder := l.localFolder(folderServerID)
	if folder == nil {
		return
	}
	message, err := l.svc.localStore.GetMessageByUID(l.ctx, folder.ID, messageServerID)
	if err != nil {
		return
	}

	if message.HasFlag(enum.FlagDeleted) || l.svc.IsMessageSuppressed(message) {
		l.SyncRemovedMessage(folderServerID, messageServerID)
		return
	}

	if message.HasFlag(enum.FlagSeen) {
		l.svc.notifier.RemoveNewMailNotification(l.ctx, l.account, message.MakeReference())
	}
}

func (l *controllerSyncListener) SyncFinished(folderServerID string) {
	folder := l.localFolder(folderServerID)
	if folder == nil {
		return
	}
	l.fanOut(func(ml interfaces.MailListener) {
		ml.SynchronizeMailboxFinished(l.account, folder.ID)
	})
}

func (l *controllerSyncListener) SyncFailed(folderServerID, message string, err error) {
	l.syncFailed = true

	switch {
	case mailerrors.IsAuthenticationError(err):
		l.svc.handleAuthenticationFailure(l.ctx, l.account, true)
	case mailerrors.IsCertificateError(err):
		l.svc.notifier.ShowCertificateErrorNotification(l.ctx, l.account, true)
	}

	folderID := folderServerID
	if folder := l.localFolder(folderServerID); folder != nil {
		folderID = folder.ID
	}
	l.fanOut(func(ml interfaces.MailListener) {
		ml.SynchronizeMailboxFailed(l.account, folderID, message)
	})
}

func (l *controllerSyncListener) FolderStatusChanged(folderServerID string) {
	folder := l.localFolder(folderServerID)
	if folder == nil {
		return
	}
	l.fanOut(func(ml interfaces.MailListener) {
		ml.FolderStatusChanged(l.account, folder.ID)
	})
}
