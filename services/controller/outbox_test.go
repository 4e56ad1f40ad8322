package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/internal/enum"
	mailerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
)

func outboxAccount(id string) *models.Account {
	account := testAccount(id)
	account.OutboxFolderID = stringPtr("outbox")
	account.SentFolderID = stringPtr("sent")
	return account
}

func (env *testEnv) addOutboxMessage(account *models.Account, id string, flags ...enum.Flag) *models.Message {
	message := &models.Message{
		ID:          id,
		AccountID:   account.ID,
		FolderID:    *account.OutboxFolderID,
		UID:         models.NewLocalUID(),
		FromAddress: account.EmailAddress,
		ToAddresses: []string{"recipient@example.com"},
	}
	for _, flag := range flags {
		message.SetFlag(flag, true)
	}
	env.store.addMessage(message)
	env.store.raw[message.ID] = []byte("From: " + account.EmailAddress + "\r\n\r\nbody")
	return message
}

func (env *testEnv) outboxFolders(account *models.Account) {
	env.store.addFolder(&models.Folder{ID: "outbox", AccountID: account.ID, Name: "Outbox", LocalOnly: true})
	env.addRemoteFolder(account.ID, "sent", "Sent")
}

func TestSendPendingMessages_SuccessMovesToSentAndQueuesAppend(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)
	message := env.addOutboxMessage(account, "msg1")

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	sends := env.backend.callsOf("send")
	require.Len(t, sends, 1)
	assert.Equal(t, account.EmailAddress, sends[0].from)
	assert.Equal(t, []string{"recipient@example.com"}, sends[0].to)

	assert.True(t, message.HasFlag(enum.FlagSeen))
	assert.Equal(t, "sent", message.FolderID)

	// The upload to the Sent folder is deferred through the durable log.
	require.Len(t, env.pending.commands, 1)
	assert.Equal(t, enum.PendingAppend, env.pending.commands[0].Kind)
	assert.Equal(t, "sent", env.pending.commands[0].FolderID)

	// Outbox bookkeeping for the message is gone.
	_, exists := env.outbox.states[message.ID]
	assert.False(t, exists)
	assert.Equal(t, 1, env.notifier.sendFailedCleared)
}

func TestSendPendingMessages_NoSentCopyDestroysMessage(t *testing.T) {
	account := outboxAccount("acc1")
	account.UploadSentMessages = false
	env := newTestEnv(account)
	env.outboxFolders(account)
	message := env.addOutboxMessage(account, "msg1")

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	assert.Len(t, env.backend.callsOf("send"), 1)
	assert.Contains(t, env.store.destroyed, message.ID)
	assert.Empty(t, env.pending.commands)
}

func TestSendPendingMessages_TransientFailureKeepsMessageReady(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)
	message := env.addOutboxMessage(account, "msg1")
	env.backend.sendErr = mailerrors.NewTransientError("greylisted", nil)

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	state := env.outbox.states[message.ID]
	require.NotNil(t, state)
	assert.Equal(t, enum.SendStateReady, state.SendState)
	assert.Equal(t, 1, state.Attempts)
	assert.Equal(t, "greylisted", state.LastError)
	assert.Equal(t, 1, env.notifier.sendFailed)
	assert.Equal(t, "outbox", message.FolderID)
}

func TestSendPendingMessages_AuthFailureGivesAttemptBack(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)
	message := env.addOutboxMessage(account, "msg1")
	env.backend.sendErr = mailerrors.NewAuthenticationError("invalid credentials", nil)

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	state := env.outbox.states[message.ID]
	require.NotNil(t, state)
	assert.Equal(t, 0, state.Attempts)
	assert.Equal(t, enum.SendStateReady, state.SendState)
	assert.Equal(t, 1, env.notifier.authErrors)
}

func TestSendPendingMessages_CertificateFailureGivesAttemptBack(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)
	message := env.addOutboxMessage(account, "msg1")
	env.backend.sendErr = mailerrors.NewCertificateError("expired certificate", nil)

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	state := env.outbox.states[message.ID]
	require.NotNil(t, state)
	assert.Equal(t, 0, state.Attempts)
	assert.Equal(t, 1, env.notifier.certErrors)
}

func TestSendPendingMessages_PermanentFailureParksMessage(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)
	message := env.addOutboxMessage(account, "msg1")
	env.backend.sendErr = mailerrors.NewPermanentError("mailbox does not exist", nil)

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	state := env.outbox.states[message.ID]
	require.NotNil(t, state)
	assert.Equal(t, enum.SendStateError, state.SendState)
	assert.Equal(t, "mailbox does not exist", state.LastError)

	// Parked messages are skipped on the next pass.
	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)
	assert.Len(t, env.backend.callsOf("send"), 1)
}

func TestSendPendingMessages_AttemptsExceededTransition(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)
	message := env.addOutboxMessage(account, "msg1")
	env.backend.sendErr = mailerrors.NewTransientError("greylisted", nil)

	// MaxSendAttempts is 3 in the test config: the third failing pass burns
	// the last attempt and flips the state in the same pass.
	for i := 0; i < 3; i++ {
		env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)
	}

	state := env.outbox.states[message.ID]
	require.NotNil(t, state)
	assert.Equal(t, enum.SendStateRetriesExceeded, state.SendState)
	assert.Equal(t, 3, state.Attempts)
	assert.Len(t, env.backend.callsOf("send"), 3)

	// Subsequent passes skip the message but keep the failure visible.
	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)
	assert.Len(t, env.backend.callsOf("send"), 3)
	assert.Equal(t, 4, env.notifier.sendFailed)
}

func TestSendPendingMessages_FailureOnLastAttemptExceedsInSamePass(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)
	message := env.addOutboxMessage(account, "msg1")
	env.outbox.states[message.ID] = &models.OutboxState{
		MessageID: message.ID,
		SendState: enum.SendStateReady,
		Attempts:  2,
	}
	env.backend.sendErr = mailerrors.NewTransientError("connection reset", nil)

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	state := env.outbox.states[message.ID]
	require.NotNil(t, state)
	assert.Equal(t, enum.SendStateRetriesExceeded, state.SendState)
	assert.Equal(t, 3, state.Attempts)
	assert.Len(t, env.backend.callsOf("send"), 1)
	assert.Equal(t, 1, env.notifier.sendFailed)
}

func TestSendPendingMessages_LocalOnlySentFolderSkipsUpload(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.store.addFolder(&models.Folder{ID: "outbox", AccountID: account.ID, Name: "Outbox", LocalOnly: true})
	env.store.addFolder(&models.Folder{ID: "sent", AccountID: account.ID, Name: "Sent", LocalOnly: true})
	message := env.addOutboxMessage(account, "msg1")

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	assert.Len(t, env.backend.callsOf("send"), 1)
	assert.Equal(t, "sent", message.FolderID)
	assert.Empty(t, env.pending.commands)
}

func TestSendPendingMessages_SkipsDraftsAndDestroysDeleted(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)
	draft := env.addOutboxMessage(account, "draft1", enum.FlagDraft)
	deleted := env.addOutboxMessage(account, "del1", enum.FlagDeleted)

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	assert.Empty(t, env.backend.callsOf("send"))
	assert.Contains(t, env.store.destroyed, deleted.ID)
	assert.NotContains(t, env.store.destroyed, draft.ID)
}

func TestSendPendingMessages_InvalidRecipientIsTerminal(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)
	message := env.addOutboxMessage(account, "msg1")
	message.ToAddresses = []string{"not an address"}

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	assert.Empty(t, env.backend.callsOf("send"))
	state := env.outbox.states[message.ID]
	require.NotNil(t, state)
	assert.Equal(t, enum.SendStateError, state.SendState)
}

func TestSendPendingMessages_MissingOutgoingCredentialsShort(t *testing.T) {
	account := outboxAccount("acc1")
	account.HasOutgoingCredentials = false
	env := newTestEnv(account)
	env.outboxFolders(account)
	env.addOutboxMessage(account, "msg1")

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)

	assert.Empty(t, env.backend.callsOf("send"))
	assert.Equal(t, 1, env.notifier.authErrors)
}

func TestSendPendingMessages_ListenersObserveOutcome(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)
	env.addOutboxMessage(account, "msg1")

	listener := &recordingListener{}
	env.svc.AddListener(listener)

	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)
	assert.Equal(t, []string{"sendStarted", "sendCompleted"}, listener.Events())

	env.backend.sendErr = mailerrors.NewTransientError("greylisted", nil)
	env.addOutboxMessage(account, "msg2")
	env.svc.sendPendingMessagesSynchronous(context.Background(), account, nil)
	assert.Contains(t, listener.Events(), "sendFailed")
}

func TestSendMessage_AssignsMessageIDAndStoresInOutbox(t *testing.T) {
	account := outboxAccount("acc1")
	env := newTestEnv(account)
	env.outboxFolders(account)

	message := &models.Message{
		ID:          "msg1",
		FromAddress: account.EmailAddress,
		ToAddresses: []string{"recipient@example.com"},
		Subject:     "hello",
	}
	err := env.svc.SendMessage(context.Background(), account, message, []byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, "outbox", message.FolderID)
	assert.NotEmpty(t, message.MessageID)
	assert.Contains(t, message.MessageID, "@example.com>")
	assert.Equal(t, []byte("raw"), env.store.raw[message.ID])
}

func TestSendMessage_RequiresOutboxFolder(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)

	err := env.svc.SendMessage(context.Background(), account, &models.Message{ID: "msg1"}, []byte("raw"))
	assert.Error(t, err)
}
