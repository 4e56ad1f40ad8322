package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

func TestMoveOrCopySynchronous_MoveQueuesPendingMove(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	env.addRemoteFolder(account.ID, "dst", "Archive")
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "src", UID: "10"})

	env.svc.moveOrCopySynchronous(context.Background(), account, "src", []*models.Message{message}, "dst", enum.FlavorMove)

	assert.Equal(t, "dst", message.FolderID)
	require.Len(t, env.pending.commands, 1)
	command := env.pending.commands[0]
	assert.Equal(t, enum.PendingMove, command.Kind)
	assert.Equal(t, "src", command.FolderID)
	assert.Equal(t, "dst", command.StringField(models.PayloadTargetFolderID))
	assert.Equal(t, map[string]string{"10": "10"}, command.UIDMap())
}

func TestMoveOrCopySynchronous_CopyMapsPlaceholderUIDs(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	env.addRemoteFolder(account.ID, "dst", "Archive")
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "src", UID: "10"})

	env.svc.moveOrCopySynchronous(context.Background(), account, "src", []*models.Message{message}, "dst", enum.FlavorCopy)

	// The original stays put; the copy got a placeholder UID.
	assert.Equal(t, "src", message.FolderID)
	require.Len(t, env.pending.commands, 1)
	uidMap := env.pending.commands[0].UIDMap()
	require.Len(t, uidMap, 1)
	placeholder := uidMap["10"]
	assert.True(t, models.IsLocalUID(placeholder))

	copied, err := env.store.GetMessageByUID(context.Background(), "dst", placeholder)
	require.NoError(t, err)
	assert.NotEqual(t, message.ID, copied.ID)
}

func TestMoveOrCopySynchronous_LocalOnlyMessagesStayLocal(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	env.addRemoteFolder(account.ID, "dst", "Archive")
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "src", UID: models.NewLocalUID()})

	listener := &recordingListener{}
	env.svc.AddListener(listener)
	env.svc.moveOrCopySynchronous(context.Background(), account, "src", []*models.Message{message}, "dst", enum.FlavorMove)

	// Local move happened, but nothing was deferred to the backend; the
	// message never had a server copy, and that is reported rather than
	// swallowed.
	assert.Equal(t, "dst", message.FolderID)
	assert.Empty(t, env.pending.commands)
	assert.Contains(t, listener.Events(), "operationFailed")
}

func TestMoveOrCopySynchronous_MixedBatchMovesSyncedSubsetRemotely(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	env.addRemoteFolder(account.ID, "dst", "Archive")
	synced := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "src", UID: "10"})
	unsynced := env.store.addMessage(&models.Message{ID: "m2", AccountID: account.ID, FolderID: "src", UID: models.NewLocalUID()})

	listener := &recordingListener{}
	env.svc.AddListener(listener)
	env.svc.moveOrCopySynchronous(context.Background(), account, "src", []*models.Message{synced, unsynced}, "dst", enum.FlavorMove)

	assert.Equal(t, "dst", synced.FolderID)
	assert.Equal(t, "dst", unsynced.FolderID)
	require.Len(t, env.pending.commands, 1)
	assert.Equal(t, map[string]string{"10": "10"}, env.pending.commands[0].UIDMap())
	assert.Contains(t, listener.Events(), "operationFailed")
}

func TestMoveOrCopySynchronous_LocalOnlyTargetSkipsRemote(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	env.store.addFolder(&models.Folder{ID: "drafts", AccountID: account.ID, Name: "Drafts", LocalOnly: true})
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "src", UID: "10"})

	env.svc.moveOrCopySynchronous(context.Background(), account, "src", []*models.Message{message}, "drafts", enum.FlavorMove)

	assert.Equal(t, "drafts", message.FolderID)
	assert.Empty(t, env.pending.commands)
}

func TestMoveOrCopySynchronous_UnsupportedMoveFailsAndUnhides(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	env.addRemoteFolder(account.ID, "dst", "Archive")
	env.backend.capabilities = &interfaces.Capabilities{SupportsCopy: true}
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "src", UID: "10"})

	env.svc.cache.HideMessages(account.ID, []string{message.ID})
	env.svc.moveOrCopySynchronous(context.Background(), account, "src", []*models.Message{message}, "dst", enum.FlavorMove)

	assert.Equal(t, "src", message.FolderID)
	assert.False(t, env.svc.cache.IsMessageHidden(account.ID, message.ID))
	assert.Empty(t, env.pending.commands)
}

func TestMoveOrCopySynchronous_MoveAndMarkAsReadSetsSeen(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	env.addRemoteFolder(account.ID, "dst", "Archive")
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "src", UID: "10"})

	env.svc.moveOrCopySynchronous(context.Background(), account, "src", []*models.Message{message}, "dst", enum.FlavorMoveAndMarkAsRead)

	assert.True(t, message.HasFlag(enum.FlagSeen))
	require.Len(t, env.pending.commands, 1)
	assert.Equal(t, enum.PendingMoveAndMarkAsRead, env.pending.commands[0].Kind)
}

func TestMoveMessages_SameSourceAndTargetIsNoop(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "src", UID: "10"})

	env.svc.MoveMessages(context.Background(), []models.MessageReference{message.MakeReference()}, "src")

	assert.Equal(t, 0, env.svc.queue.Len())
	assert.False(t, env.svc.cache.IsMessageHidden(account.ID, message.ID))
}

func TestArchiveMessages_SkipsAccountWithoutArchiveFolder(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "src", UID: "10"})

	env.svc.ArchiveMessages(context.Background(), []models.MessageReference{message.MakeReference()})
	assert.Equal(t, 0, env.svc.queue.Len())

	account.ArchiveFolderID = stringPtr("archive")
	env.svc.ArchiveMessages(context.Background(), []models.MessageReference{message.MakeReference()})
	assert.Equal(t, 1, env.svc.queue.Len())
	assert.True(t, env.svc.cache.IsMessageHidden(account.ID, message.ID))
}
