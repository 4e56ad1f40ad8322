package controller

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

func TestRefreshFolderListIfStale_FreshTimestampSkipsRefresh(t *testing.T) {
	account := testAccount("acc1")
	refreshedAt := time.Now().UTC().Add(-5 * time.Minute)
	account.FolderListRefreshedAt = &refreshedAt
	env := newTestEnv(account)

	err := env.svc.refreshFolderListIfStale(context.Background(), account, env.backend)
	require.NoError(t, err)
	assert.Empty(t, env.backend.callsOf("refreshFolderList"))
}

func TestRefreshFolderListIfStale_StaleTimestampRefreshes(t *testing.T) {
	account := testAccount("acc1")
	refreshedAt := time.Now().UTC().Add(-45 * time.Minute)
	account.FolderListRefreshedAt = &refreshedAt
	env := newTestEnv(account)

	err := env.svc.refreshFolderListIfStale(context.Background(), account, env.backend)
	require.NoError(t, err)
	assert.Len(t, env.backend.callsOf("refreshFolderList"), 1)
	assert.Equal(t, 1, env.accounts.folderListRefreshs)
}

func TestRefreshFolderListIfStale_RefreshesOncePerAccountInstance(t *testing.T) {
	// A successful refresh updates the in-memory account as well as the
	// row, so repeated checks against the same instance stay quiet.
	account := testAccount("acc1")
	refreshedAt := time.Now().UTC().Add(-45 * time.Minute)
	account.FolderListRefreshedAt = &refreshedAt
	env := newTestEnv(account)

	require.NoError(t, env.svc.refreshFolderListIfStale(context.Background(), account, env.backend))
	require.NoError(t, env.svc.refreshFolderListIfStale(context.Background(), account, env.backend))

	assert.Len(t, env.backend.callsOf("refreshFolderList"), 1)
	require.NotNil(t, account.FolderListRefreshedAt)
	assert.WithinDuration(t, time.Now().UTC(), *account.FolderListRefreshedAt, time.Minute)
}

func TestRefreshFolderListIfStale_NilTimestampRefreshes(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)

	err := env.svc.refreshFolderListIfStale(context.Background(), account, env.backend)
	require.NoError(t, err)
	assert.Len(t, env.backend.callsOf("refreshFolderList"), 1)
}

func TestRefreshFolderListIfStale_FutureTimestampRefreshes(t *testing.T) {
	// A timestamp ahead of the clock means the clock went backwards; it
	// must not suppress the refresh.
	account := testAccount("acc1")
	refreshedAt := time.Now().UTC().Add(10 * time.Minute)
	account.FolderListRefreshedAt = &refreshedAt
	env := newTestEnv(account)

	err := env.svc.refreshFolderListIfStale(context.Background(), account, env.backend)
	require.NoError(t, err)
	assert.Len(t, env.backend.callsOf("refreshFolderList"), 1)
}

func TestRefreshFolderList_UpsertsRemoteFolders(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.backend.folderList = []interfaces.RemoteFolder{
		{ServerID: "INBOX", Name: "INBOX"},
		{ServerID: "Archive", Name: "Archive"},
	}

	err := env.svc.RefreshFolderList(context.Background(), account)
	require.NoError(t, err)

	folders, err := env.store.ListFolders(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Len(t, folders, 2)
}

func TestCheckAuthenticationProblem(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	account := testAccount("acc1")
	assert.False(t, env.svc.CheckAuthenticationProblem(ctx, account, true))
	assert.False(t, env.svc.CheckAuthenticationProblem(ctx, account, false))

	account.HasIncomingCredentials = false
	assert.True(t, env.svc.CheckAuthenticationProblem(ctx, account, true))
	assert.False(t, env.svc.CheckAuthenticationProblem(ctx, account, false))

	account = testAccount("acc2")
	account.IncomingAuthType = enum.AuthXOAuth2
	assert.True(t, env.svc.CheckAuthenticationProblem(ctx, account, true),
		"OAuth without a token on file cannot authenticate")

	oauthState := "token"
	account.OAuthState = &oauthState
	assert.False(t, env.svc.CheckAuthenticationProblem(ctx, account, true))
}

func TestHandleAuthenticationFailure_MigratesToOAuthOnce(t *testing.T) {
	account := testAccount("acc1")
	account.MigrateToOAuth = true
	env := newTestEnv(account)

	env.svc.handleAuthenticationFailure(context.Background(), account, true)

	assert.False(t, account.MigrateToOAuth)
	assert.Equal(t, enum.AuthXOAuth2, account.IncomingAuthType)
	assert.Equal(t, enum.AuthXOAuth2, account.OutgoingAuthType)
	require.Len(t, env.accounts.savedAccounts, 1)
	assert.Equal(t, 0, env.notifier.authErrors)

	// Second failure after migration surfaces the notification.
	env.svc.handleAuthenticationFailure(context.Background(), account, true)
	assert.Equal(t, 1, env.notifier.authErrors)
	assert.Len(t, env.accounts.savedAccounts, 1)
}

func TestSynchronizeMailbox_AuthProblemFailsWithoutTouchingBackend(t *testing.T) {
	account := testAccount("acc1")
	account.HasIncomingCredentials = false
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")

	listener := &recordingListener{}
	env.svc.synchronizeMailboxSynchronous(context.Background(), account, "fld1", true, listener)

	assert.Empty(t, env.backend.calls)
	assert.Contains(t, listener.Events(), "failed:fld1")
	assert.Equal(t, 1, env.notifier.authErrors)
}

func TestSynchronizeMailbox_BackendResolutionFailureReportsLocalFolder(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")
	env.provider.err = fmt.Errorf("account settings unavailable")

	listener := &recordingListener{}
	env.svc.synchronizeMailboxSynchronous(context.Background(), account, "fld1", true, listener)

	assert.Contains(t, listener.Events(), "failed:fld1")
}

func TestSynchronizeMailbox_LocalOnlyFolderFinishesImmediately(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)
	env.store.addFolder(&models.Folder{ID: "outbox", AccountID: account.ID, Name: "Outbox", LocalOnly: true})

	listener := &recordingListener{}
	env.svc.synchronizeMailboxSynchronous(context.Background(), account, "outbox", true, listener)

	assert.Empty(t, env.backend.calls)
	assert.Contains(t, listener.Events(), "finished:outbox")
}

func TestSynchronizeFolder_IntervalGating(t *testing.T) {
	account := testAccount("acc1")
	env := newTestEnv(account)

	recentlyChecked := time.Now().UTC().Add(-5 * time.Minute)
	folder := env.addRemoteFolder(account.ID, "fld1", "INBOX")
	folder.LastChecked = &recentlyChecked

	// Checked five minutes ago with a fifteen minute interval: skipped.
	env.svc.synchronizeFolder(context.Background(), account, folder, false, true, nil)
	assert.Equal(t, 0, env.svc.queue.Len())

	// An explicit check ignores the interval.
	env.svc.synchronizeFolder(context.Background(), account, folder, true, true, nil)
	assert.Equal(t, 1, env.svc.queue.Len())

	// Past the interval the folder syncs again.
	staleChecked := time.Now().UTC().Add(-20 * time.Minute)
	folder.LastChecked = &staleChecked
	env.svc.synchronizeFolder(context.Background(), account, folder, false, true, nil)
	assert.Equal(t, 2, env.svc.queue.Len())

	// A last-checked time in the future must not suppress the sync.
	futureChecked := time.Now().UTC().Add(10 * time.Minute)
	folder.LastChecked = &futureChecked
	env.svc.synchronizeFolder(context.Background(), account, folder, false, true, nil)
	assert.Equal(t, 3, env.svc.queue.Len())
}

func TestSynchronizeFolder_OutboxNeverSyncs(t *testing.T) {
	account := testAccount("acc1")
	account.OutboxFolderID = stringPtr("outbox")
	env := newTestEnv(account)
	folder := env.store.addFolder(&models.Folder{ID: "outbox", AccountID: account.ID, Name: "Outbox", LocalOnly: true})

	env.svc.synchronizeFolder(context.Background(), account, folder, true, true, nil)
	assert.Equal(t, 0, env.svc.queue.Len())
}

func TestSynchronizeMailbox_RunsPendingCommandsBeforeSync(t *testing.T) {
	account := testAccount("acc1")
	refreshedAt := time.Now().UTC()
	account.FolderListRefreshedAt = &refreshedAt
	env := newTestEnv(account)
	env.addRemoteFolder(account.ID, "fld1", "INBOX")

	env.queueCommand(t, account, enum.PendingExpunge, "fld1", nil)

	listener := &recordingListener{}
	env.svc.synchronizeMailboxSynchronous(context.Background(), account, "fld1", true, listener)

	// The deferred expunge ran before the folder sync.
	var ops []string
	for _, call := range env.backend.calls {
		ops = append(ops, call.op)
	}
	assert.Equal(t, []string{"expunge", "sync"}, ops)
	assert.Empty(t, env.pending.commands)
	assert.Contains(t, listener.Events(), "finished:fld1")
}
