package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

func TestGroupByAccountAndFolder(t *testing.T) {
	first := testAccount("acc1")
	second := testAccount("acc2")
	env := newTestEnv(first, second)

	m1 := env.store.addMessage(&models.Message{ID: "m1", AccountID: first.ID, FolderID: "fld1", UID: "1"})
	m2 := env.store.addMessage(&models.Message{ID: "m2", AccountID: first.ID, FolderID: "fld1", UID: "2"})
	m3 := env.store.addMessage(&models.Message{ID: "m3", AccountID: first.ID, FolderID: "fld2", UID: "3"})
	m4 := env.store.addMessage(&models.Message{ID: "m4", AccountID: second.ID, FolderID: "fld1", UID: "4"})

	refs := []models.MessageReference{
		m1.MakeReference(), m2.MakeReference(), m3.MakeReference(), m4.MakeReference(),
		{AccountID: "ghost", FolderID: "fld1", MessageID: "m1"},
		{AccountID: first.ID, FolderID: "fld1", MessageID: "ghost"},
	}

	groups := env.svc.groupByAccountAndFolder(context.Background(), refs)
	require.Len(t, groups, 3)
	assert.Equal(t, first.ID, groups[0].account.ID)
	assert.Equal(t, "fld1", groups[0].folderID)
	assert.Equal(t, []string{"m1", "m2"}, messageIDs(groups[0].messages))
	assert.Equal(t, []string{"m3"}, messageIDs(groups[1].messages))
	assert.Equal(t, second.ID, groups[2].account.ID)
}

func TestSetFlagSynchronous_WritesLocallyAndDefersRemote(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "fld1", UID: "10"})

	env.svc.setFlagSynchronous(context.Background(), account, "fld1", []*models.Message{message}, enum.FlagSeen, true)

	assert.True(t, message.HasFlag(enum.FlagSeen))
	require.Len(t, env.pending.commands, 1)
	command := env.pending.commands[0]
	assert.Equal(t, enum.PendingSetFlag, command.Kind)
	assert.Equal(t, []string{"10"}, command.UIDs())
	assert.Equal(t, enum.FlagSeen.String(), command.StringField(models.PayloadFlag))
	assert.True(t, command.BoolField(models.PayloadValue))
}

func TestSetFlagSynchronous_LocalFlagStaysLocal(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "fld1", UID: "10"})

	// send_failed is local bookkeeping, never synced to the backend.
	env.svc.setFlagSynchronous(context.Background(), account, "fld1", []*models.Message{message}, enum.FlagSendFailed, true)

	assert.True(t, message.HasFlag(enum.FlagSendFailed))
	assert.Empty(t, env.pending.commands)
}

func TestSetFlagSynchronous_LocalOnlyFolderSkipsRemote(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.store.addFolder(&models.Folder{ID: "outbox", AccountID: account.ID, Name: "Outbox", LocalOnly: true})
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "outbox", UID: models.NewLocalUID()})

	env.svc.setFlagSynchronous(context.Background(), account, "outbox", []*models.Message{message}, enum.FlagSeen, true)

	assert.True(t, message.HasFlag(enum.FlagSeen))
	assert.Empty(t, env.pending.commands)
}

func TestSetFlag_OverlayVisibleUntilDurableWrite(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")
	message := env.store.addMessage(&models.Message{ID: "m1", AccountID: account.ID, FolderID: "fld1", UID: "10"})

	// SetFlag writes the overlay first; the queued work has not run yet
	// because the worker is not started.
	env.svc.SetFlag(context.Background(), []models.MessageReference{message.MakeReference()}, enum.FlagSeen, true)

	value, present := env.svc.cache.GetFlagForMessage(account.ID, message.ID, enum.FlagSeen)
	require.True(t, present)
	assert.True(t, value)
	assert.False(t, message.HasFlag(enum.FlagSeen))

	// After the durable write the overlay entry is gone.
	env.svc.setFlagSynchronous(context.Background(), account, "fld1", []*models.Message{message}, enum.FlagSeen, true)
	_, present = env.svc.cache.GetFlagForMessage(account.ID, message.ID, enum.FlagSeen)
	assert.False(t, present)
	assert.True(t, message.HasFlag(enum.FlagSeen))
}

func TestSetFlagForThreads_ExpandsThreadMembers(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")

	root := env.store.addMessage(&models.Message{ID: "root", AccountID: account.ID, FolderID: "fld1", UID: "1"})
	reply := env.store.addMessage(&models.Message{ID: "reply", AccountID: account.ID, FolderID: "fld1", UID: "2", ThreadRootID: "root"})
	other := env.store.addMessage(&models.Message{ID: "other", AccountID: account.ID, FolderID: "fld1", UID: "3", ThreadRootID: "elsewhere"})

	env.svc.SetFlagForThreads(context.Background(), account.ID, []string{"root"}, enum.FlagSeen, true)

	// Overlay written for both thread members, not the unrelated message.
	_, present := env.svc.cache.GetFlagForMessage(account.ID, root.ID, enum.FlagSeen)
	assert.True(t, present)
	_, present = env.svc.cache.GetFlagForMessage(account.ID, reply.ID, enum.FlagSeen)
	assert.True(t, present)
	_, present = env.svc.cache.GetFlagForMessage(account.ID, other.ID, enum.FlagSeen)
	assert.False(t, present)
}
