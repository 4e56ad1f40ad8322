package notifier

import (
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

// DefaultNotificationStrategy notifies for unread messages landing in
// regular visible folders of accounts that opted in. Messages that were
// already on the server before the first sync are skipped.
type DefaultNotificationStrategy struct{}

func NewDefaultNotificationStrategy() *DefaultNotificationStrategy {
	return &DefaultNotificationStrategy{}
}

func (s *DefaultNotificationStrategy) ShouldNotifyForMessage(account *models.Account, folder *models.Folder, message *models.Message, isOldMessage bool) bool {
	if account == nil || folder == nil || message == nil {
		return false
	}
	if !account.NotifyOnSync || isOldMessage {
		return false
	}
	if message.HasFlag(enum.FlagSeen) || message.HasFlag(enum.FlagDeleted) {
		return false
	}
	if !folder.Visible || folder.LocalOnly {
		return false
	}
	// Special folders never notify, except the inbox itself.
	if account.IsSpecialFolder(folder.ID) {
		return account.InboxFolderID != nil && folder.ID == *account.InboxFolderID
	}
	return true
}

// DefaultLocalDeleteDecider bypasses the Trash folder for folders the
// user would never restore from.
type DefaultLocalDeleteDecider struct{}

func NewDefaultLocalDeleteDecider() *DefaultLocalDeleteDecider {
	return &DefaultLocalDeleteDecider{}
}

func (d *DefaultLocalDeleteDecider) ShouldDeleteImmediately(account *models.Account, folderID string) bool {
	if account == nil {
		return false
	}
	if account.SpamFolderID != nil && folderID == *account.SpamFolderID {
		return true
	}
	if account.DraftsFolderID != nil && folderID == *account.DraftsFolderID {
		return true
	}
	return false
}
