package controller

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	mailerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
)

func (env *testEnv) addRemoteFolder(accountID, folderID, serverID string) *models.Folder {
	return env.store.addFolder(&models.Folder{
		ID:        folderID,
		AccountID: accountID,
		ServerID:  stringPtr(serverID),
		Name:      serverID,
	})
}

func (env *testEnv) queueCommand(t *testing.T, account *models.Account, kind enum.PendingCommandKind, folderID string, payload models.JSONMap) *models.PendingCommand {
	t.Helper()
	require.NoError(t, env.svc.queuePendingCommand(context.Background(), account, kind, folderID, payload))
	return env.pending.commands[len(env.pending.commands)-1]
}

func TestProcessPendingCommands_SuccessRemovesInOrder(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")

	first := env.queueCommand(t, account, enum.PendingSetFlag, "fld1", models.JSONMap{
		models.PayloadUIDs:  []string{"10"},
		models.PayloadFlag:  enum.FlagSeen.String(),
		models.PayloadValue: true,
	})
	second := env.queueCommand(t, account, enum.PendingExpunge, "fld1", nil)

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)

	assert.Empty(t, env.pending.commands)
	assert.Equal(t, []uint64{first.ID, second.ID}, env.pending.deleted)
	assert.Len(t, env.backend.callsOf("setFlag"), 1)
	assert.Len(t, env.backend.callsOf("expunge"), 1)
}

func TestProcessPendingCommands_PermanentFailureDropsAndContinues(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")
	env.backend.deleteErr = mailerrors.NewPermanentError("mailbox gone", nil)

	env.queueCommand(t, account, enum.PendingDelete, "fld1", models.JSONMap{
		models.PayloadUIDs: []string{"10"},
	})
	env.queueCommand(t, account, enum.PendingExpunge, "fld1", nil)

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)

	// Both commands left the log: the failed one was dropped, the next ran.
	assert.Empty(t, env.pending.commands)
	assert.Len(t, env.backend.callsOf("expunge"), 1)
}

func TestProcessPendingCommands_TransientFailureStopsPassAndPreservesCommand(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")
	env.backend.deleteErr = mailerrors.NewTransientError("connection dropped", nil)

	blocked := env.queueCommand(t, account, enum.PendingDelete, "fld1", models.JSONMap{
		models.PayloadUIDs: []string{"10"},
	})
	env.queueCommand(t, account, enum.PendingExpunge, "fld1", nil)

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.Error(t, err)
	assert.True(t, mailerrors.IsMailError(err))

	// Head-of-line blocking: nothing was removed and the command behind the
	// failed one never ran.
	require.Len(t, env.pending.commands, 2)
	assert.Equal(t, blocked.ID, env.pending.commands[0].ID)
	assert.Empty(t, env.backend.callsOf("expunge"))
}

func TestProcessPendingCommands_UnexpectedErrorDropsCommand(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	// No folder row exists, so the handler fails with a plain error.
	env.queueCommand(t, account, enum.PendingExpunge, "missing", nil)
	env.queueCommand(t, account, enum.PendingExpunge, "also-missing", nil)

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)
	assert.Empty(t, env.pending.commands)
}

func TestProcessPendingAppend_UploadsAndAdoptsRemoteUID(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "Drafts")

	message := env.store.addMessage(&models.Message{
		ID:        "msg1",
		AccountID: account.ID,
		FolderID:  "fld1",
		UID:       models.NewLocalUID(),
		MessageID: "<draft@example.com>",
	})
	env.store.raw[message.ID] = []byte("From: acc1@example.com\r\n\r\nbody")
	env.backend.uploadUID = "4711"

	listener := &recordingListener{}
	env.svc.AddListener(listener)

	env.queueCommand(t, account, enum.PendingAppend, "fld1", models.JSONMap{
		models.PayloadOldUID: message.UID,
	})

	oldUID := message.UID
	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, "4711", message.UID)
	assert.False(t, message.HasFlag(enum.FlagRemoteCopyStarted))
	assert.Len(t, env.backend.callsOf("upload"), 1)
	assert.Contains(t, listener.Events(), "uidChanged:"+oldUID+">4711")
}

func TestProcessPendingAppend_ResumesViaMessageIDSearchAfterCrash(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "Drafts")

	// A previous pass flagged the upload as started before crashing, so the
	// replay must search instead of uploading a duplicate.
	message := env.store.addMessage(&models.Message{
		ID:        "msg1",
		AccountID: account.ID,
		FolderID:  "fld1",
		UID:       models.NewLocalUID(),
		MessageID: "<draft@example.com>",
		Flags:     []string{enum.FlagRemoteCopyStarted.String()},
	})
	env.backend.foundUID = "99"

	env.queueCommand(t, account, enum.PendingAppend, "fld1", models.JSONMap{
		models.PayloadOldUID: message.UID,
	})

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, "99", message.UID)
	assert.Len(t, env.backend.callsOf("findUID"), 1)
	assert.Empty(t, env.backend.callsOf("upload"))
}

func TestProcessPendingAppend_VanishedMessageIsSkipped(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "Drafts")

	env.queueCommand(t, account, enum.PendingAppend, "fld1", models.JSONMap{
		models.PayloadOldUID: "local:gone",
	})

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)
	assert.Empty(t, env.pending.commands)
	assert.Empty(t, env.backend.callsOf("upload"))
}

func TestProcessPendingDelete_SkipsLocalUIDsOnBackend(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")

	kept := env.store.addMessage(&models.Message{
		ID: "msg1", AccountID: account.ID, FolderID: "fld1", UID: "10",
		Flags: []string{enum.FlagDeleted.String()},
	})

	env.queueCommand(t, account, enum.PendingDelete, "fld1", models.JSONMap{
		models.PayloadUIDs: []string{"10", models.LocalUIDPrefix + "abc"},
	})

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)

	deletes := env.backend.callsOf("delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, []string{"10"}, deletes[0].uids)
	assert.Contains(t, env.store.destroyed, kept.ID)
}

func TestProcessPendingMoveOrCopy_RemapsPlaceholderUIDs(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	env.addRemoteFolder(account.ID, "dst", "Archive")

	placeholder := models.NewLocalUID()
	moved := env.store.addMessage(&models.Message{
		ID: "msg1", AccountID: account.ID, FolderID: "dst", UID: placeholder,
	})
	env.backend.moveResult = map[string]string{"10": "207"}

	env.queueCommand(t, account, enum.PendingMove, "src", models.JSONMap{
		models.PayloadTargetFolderID: "dst",
		models.PayloadUIDMap:         map[string]string{"10": placeholder},
	})

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)

	moves := env.backend.callsOf("move")
	require.Len(t, moves, 1)
	assert.Equal(t, []string{"10"}, moves[0].uids)
	assert.Equal(t, "207", moved.UID)
	assert.Len(t, env.backend.callsOf("expunge"), 1)
}

func TestProcessPendingMoveOrCopy_CopyLeavesSourceAlone(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "src", "INBOX")
	env.addRemoteFolder(account.ID, "dst", "Archive")

	placeholder := models.NewLocalUID()
	env.store.addMessage(&models.Message{
		ID: "msg1", AccountID: account.ID, FolderID: "dst", UID: placeholder,
	})
	env.backend.moveResult = map[string]string{"10": "300"}

	env.queueCommand(t, account, enum.PendingCopy, "src", models.JSONMap{
		models.PayloadTargetFolderID: "dst",
		models.PayloadUIDMap:         map[string]string{"10": placeholder},
	})

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)

	assert.Len(t, env.backend.callsOf("copy"), 1)
	assert.Empty(t, env.backend.callsOf("expunge"))
	assert.Empty(t, env.store.destroyed)
}

func TestProcessPendingSetFlag_NoopWhenBackendLacksFlagSupport(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")
	env.backend.capabilities = &interfaces.Capabilities{SupportsMove: true, SupportsCopy: true}

	env.queueCommand(t, account, enum.PendingSetFlag, "fld1", models.JSONMap{
		models.PayloadUIDs:  []string{"10"},
		models.PayloadFlag:  enum.FlagSeen.String(),
		models.PayloadValue: true,
	})

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)
	assert.Empty(t, env.backend.callsOf("setFlag"))
	assert.Empty(t, env.pending.commands)
}

func TestProcessPendingCommands_JSONBDecodedPayloadForms(t *testing.T) {
	// After a restart the payload comes back from jsonb as []interface{}
	// and map[string]interface{}; replay must tolerate both.
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")

	env.queueCommand(t, account, enum.PendingSetFlag, "fld1", models.JSONMap{
		models.PayloadUIDs:  []interface{}{"10", "11"},
		models.PayloadFlag:  enum.FlagFlagged.String(),
		models.PayloadValue: true,
	})

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)

	calls := env.backend.callsOf("setFlag")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"10", "11"}, calls[0].uids)
	assert.Equal(t, enum.FlagFlagged, calls[0].flag)
}

func TestProcessPendingCommands_BackendResolutionFailureLeavesLogIntact(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")

	env.queueCommand(t, account, enum.PendingSetFlag, "fld1", models.JSONMap{
		models.PayloadUIDs:  []string{"10"},
		models.PayloadFlag:  enum.FlagSeen.String(),
		models.PayloadValue: true,
	})
	env.queueCommand(t, account, enum.PendingExpunge, "fld1", nil)

	env.provider.err = fmt.Errorf("account settings unavailable")

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.Error(t, err)

	// Every command survives for the next pass.
	assert.Len(t, env.pending.commands, 2)
	assert.Empty(t, env.pending.deleted)
	assert.Empty(t, env.backend.calls)
}

func TestProcessPendingReplaceDraft_UploadsNewAndDeletesPrevious(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "drafts", "Drafts")

	draft := &models.Message{
		ID:        "d2",
		AccountID: account.ID,
		FolderID:  "drafts",
		UID:       models.NewLocalUID(),
		MessageID: "<draft@example.com>",
	}
	env.store.addMessage(draft)
	env.store.raw[draft.ID] = []byte("Subject: wip\r\n\r\nsecond version")
	env.backend.uploadUID = "100"

	env.queueCommand(t, account, enum.PendingReplaceDraft, "drafts", models.JSONMap{
		models.PayloadOldUID: draft.UID,
		models.PayloadUIDs:   []string{"42"},
	})

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)

	uploads := env.backend.callsOf("upload")
	require.Len(t, uploads, 1)
	assert.Equal(t, "Drafts", uploads[0].folder)
	assert.Equal(t, "100", draft.UID)

	deletes := env.backend.callsOf("delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, []string{"42"}, deletes[0].uids)
	assert.Empty(t, env.pending.commands)
}

func TestProcessPendingReplaceDraft_NoPreviousServerCopy(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "drafts", "Drafts")

	draft := &models.Message{
		ID:        "d1",
		AccountID: account.ID,
		FolderID:  "drafts",
		UID:       models.NewLocalUID(),
		MessageID: "<draft@example.com>",
	}
	env.store.addMessage(draft)
	env.store.raw[draft.ID] = []byte("Subject: wip\r\n\r\nfirst version")
	env.backend.uploadUID = "100"

	env.queueCommand(t, account, enum.PendingReplaceDraft, "drafts", models.JSONMap{
		models.PayloadOldUID: draft.UID,
	})

	err := env.svc.processPendingCommandsSynchronous(context.Background(), account)
	require.NoError(t, err)

	assert.Len(t, env.backend.callsOf("upload"), 1)
	assert.Empty(t, env.backend.callsOf("delete"))
}
