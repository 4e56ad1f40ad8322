package interfaces

import (
	"github.com/customeros/mailsync/internal/models"
)

// MailListener receives progress and status events from the controller.
// Embed NoopListener and override only what you need.
type MailListener interface {
	SynchronizeMailboxStarted(account *models.Account, folderID string)
	SynchronizeMailboxHeadersStarted(account *models.Account, folderServerID string)
	SynchronizeMailboxHeadersProgress(account *models.Account, folderServerID string, completed, total int)
	SynchronizeMailboxHeadersFinished(account *models.Account, folderServerID string, totalMessagesInMailbox, numNewMessages int)
	SynchronizeMailboxProgress(account *models.Account, folderID string, completed, total int)
	SynchronizeMailboxNewMessage(account *models.Account, folderServerID string, message *models.Message)
	SynchronizeMailboxRemovedMessage(account *models.Account, folderServerID, messageServerID string)
	SynchronizeMailboxFinished(account *models.Account, folderID string)
	SynchronizeMailboxFailed(account *models.Account, folderID, message string)

	FolderStatusChanged(account *models.Account, folderID string)
	MessageUIDChanged(account *models.Account, folderID, oldUID, newUID string)

	CheckMailStarted(account *models.Account)
	CheckMailFinished(account *models.Account)

	SendPendingMessagesStarted(account *models.Account)
	SendPendingMessagesCompleted(account *models.Account)
	SendPendingMessagesFailed(account *models.Account)

	LoadMessageRemoteFinished(account *models.Account, folderID, uid string)
	LoadMessageRemoteFailed(account *models.Account, folderID, uid string, err error)
	LoadAttachmentFinished(account *models.Account, message *models.Message, partID string)
	LoadAttachmentFailed(account *models.Account, message *models.Message, partID string, err error)

	RemoteSearchStarted(folderID string)
	RemoteSearchServerQueryComplete(folderID string, numResults, maxResults int)
	RemoteSearchFinished(folderID string, numResults, maxResults int, extraResults []string)
	RemoteSearchFailed(folderID string, err error)

	OperationFailed(account *models.Account, description string, err error)
}

// NoopListener implements MailListener with empty methods.
type NoopListener struct{}

func (NoopListener) SynchronizeMailboxStarted(account *models.Account, folderID string) {}
func (NoopListener) SynchronizeMailboxHeadersStarted(account *models.Account, folderServerID string) {
}

func (NoopListener) SynchronizeMailboxHeadersProgress(account *models.Account, folderServerID string, completed, total int) {
}

func (NoopListener) SynchronizeMailboxHeadersFinished(account *models.Account, folderServerID string, totalMessagesInMailbox, numNewMessages int) {
}

func (NoopListener) SynchronizeMailboxProgress(account *models.Account, folderID string, completed, total int) {
}

func (NoopListener) SynchronizeMailboxNewMessage(account *models.Account, folderServerID string, message *models.Message) {
}

func (NoopListener) SynchronizeMailboxRemovedMessage(account *models.Account, folderServerID, messageServerID string) {
}
func (NoopListener) SynchronizeMailboxFinished(account *models.Account, folderID string)        {}
func (NoopListener) SynchronizeMailboxFailed(account *models.Account, folderID, message string) {}

func (NoopListener) FolderStatusChanged(account *models.Account, folderID string)               {}
func (NoopListener) MessageUIDChanged(account *models.Account, folderID, oldUID, newUID string) {}

func (NoopListener) CheckMailStarted(account *models.Account)  {}
func (NoopListener) CheckMailFinished(account *models.Account) {}

func (NoopListener) SendPendingMessagesStarted(account *models.Account)   {}
func (NoopListener) SendPendingMessagesCompleted(account *models.Account) {}
func (NoopListener) SendPendingMessagesFailed(account *models.Account)    {}

func (NoopListener) LoadMessageRemoteFinished(account *models.Account, folderID, uid string) {}
func (NoopListener) LoadMessageRemoteFailed(account *models.Account, folderID, uid string, err error) {
}
func (NoopListener) LoadAttachmentFinished(account *models.Account, message *models.Message, partID string) {
}

func (NoopListener) LoadAttachmentFailed(account *models.Account, message *models.Message, partID string, err error) {
}

func (NoopListener) RemoteSearchStarted(folderID string) {}
func (NoopListener) RemoteSearchServerQueryComplete(folderID string, numResults, maxResults int) {
}

func (NoopListener) RemoteSearchFinished(folderID string, numResults, maxResults int, extraResults []string) {
}
func (NoopListener) RemoteSearchFailed(folderID string, err error) {}

func (NoopListener) OperationFailed(account *models.Account, description string, err error) {}
