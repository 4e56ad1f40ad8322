package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/interfaces"
)

func TestListenerRegistry_AddIsIdempotent(t *testing.T) {
	registry := newListenerRegistry()
	listener := &recordingListener{}

	registry.Add(listener)
	registry.Add(listener)
	assert.Len(t, registry.Snapshot(), 1)
}

func TestListenerRegistry_AddNilIsIgnored(t *testing.T) {
	registry := newListenerRegistry()
	registry.Add(nil)
	assert.Empty(t, registry.Snapshot())
}

func TestListenerRegistry_Remove(t *testing.T) {
	registry := newListenerRegistry()
	first := &recordingListener{}
	second := &recordingListener{}

	registry.Add(first)
	registry.Add(second)
	registry.Remove(first)

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Same(t, interfaces.MailListener(second), snapshot[0])
}

func TestListenerRegistry_SnapshotIsImmutableDuringMutation(t *testing.T) {
	registry := newListenerRegistry()
	first := &recordingListener{}
	registry.Add(first)

	snapshot := registry.Snapshot()
	registry.Add(&recordingListener{})
	registry.Remove(first)

	// The earlier snapshot still holds exactly what it held.
	require.Len(t, snapshot, 1)
	assert.Same(t, interfaces.MailListener(first), snapshot[0])
}

func TestListenerRegistry_UnionDoesNotMutatePersistentSet(t *testing.T) {
	registry := newListenerRegistry()
	persistent := &recordingListener{}
	registry.Add(persistent)

	extra := &recordingListener{}
	union := registry.Union(extra)
	assert.Len(t, union, 2)
	assert.Len(t, registry.Snapshot(), 1)

	// A listener already registered is not fanned out twice.
	union = registry.Union(persistent)
	assert.Len(t, union, 1)

	assert.Len(t, registry.Union(nil), 1)
}

func TestMemorizingListener_ReplaysFinishedAndFailed(t *testing.T) {
	memorizer := newMemorizingListener()
	account := testAccount("acc1")

	memorizer.SynchronizeMailboxStarted(account, "fld1")
	memorizer.SynchronizeMailboxFinished(account, "fld1")
	memorizer.SynchronizeMailboxStarted(account, "fld2")
	memorizer.SynchronizeMailboxFailed(account, "fld2", "connection dropped")

	late := &recordingListener{}
	memorizer.RefreshOther(late)

	events := late.Events()
	assert.Contains(t, events, "finished:fld1")
	assert.Contains(t, events, "failed:fld2")
}

func TestMemorizingListener_ReplaysInFlightSyncWithProgress(t *testing.T) {
	memorizer := newMemorizingListener()
	account := testAccount("acc1")

	memorizer.SynchronizeMailboxStarted(account, "fld1")
	memorizer.SynchronizeMailboxProgress(account, "fld1", 7, 20)

	late := &recordingListener{}
	memorizer.RefreshOther(late)

	assert.Equal(t, []string{"started:fld1", "progress:fld1:7/20"}, late.Events())
}

func TestMemorizingListener_NoProgressReplayWithoutTotal(t *testing.T) {
	memorizer := newMemorizingListener()
	account := testAccount("acc1")

	memorizer.SynchronizeMailboxStarted(account, "fld1")

	late := &recordingListener{}
	memorizer.RefreshOther(late)

	assert.Equal(t, []string{"started:fld1"}, late.Events())
}

func TestMemorizingListener_RemoveAccountPurgesMemories(t *testing.T) {
	memorizer := newMemorizingListener()
	first := testAccount("acc1")
	second := testAccount("acc2")

	memorizer.SynchronizeMailboxStarted(first, "fld1")
	memorizer.SynchronizeMailboxFinished(first, "fld1")
	memorizer.SynchronizeMailboxStarted(second, "fld2")
	memorizer.SynchronizeMailboxFinished(second, "fld2")

	memorizer.RemoveAccount(first.UUID)

	late := &recordingListener{}
	memorizer.RefreshOther(late)
	assert.Equal(t, []string{"finished:fld2"}, late.Events())
}

func TestMemorizingListener_RefreshOtherNilIsSafe(t *testing.T) {
	memorizer := newMemorizingListener()
	memorizer.SynchronizeMailboxStarted(testAccount("acc1"), "fld1")
	memorizer.RefreshOther(nil)
}
