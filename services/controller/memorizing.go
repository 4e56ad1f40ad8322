package controller

import (
	"sync"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

// memory is the last-seen sync lifecycle state for one (account, folder).
type memory struct {
	account *models.Account
	folderID string

	syncingState    enum.SyncStatus
	failureMessage  string
	syncingTotal    int
	syncingProgress int
}

func memoryKey(accountUUID, folderID string) string {
	return accountUUID + ":" + folderID
}

// memorizingListener is permanently registered and records per
// (account, folder) the last sync lifecycle state, so a listener attaching
// mid-flight sees correct status without waiting for the next real event.
type memorizingListener struct {
	interfaces.NoopListener

	mu       sync.Mutex
	memories map[string]*memory
}

func newMemorizingListener() *memorizingListener {
	return &memorizingListener{
		memories: make(map[string]*memory),
	}
}

func (l *memorizingListener) getMemory(account *models.Account, folderID string) *memory {
	key := memoryKey(account.UUID, folderID)
	m, ok := l.memories[key]
	if !ok {
		m = &memory{
			account:      account,
			folderID:     folderID,
			syncingState: enum.SyncNotStarted,
		}
		l.memories[key] = m
	}
	return m
}

func (l *memorizingListener) SynchronizeMailboxStarted(account *models.Account, folderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.getMemory(account, folderID)
	m.syncingState = enum.SyncStarted
	m.folderID = folderID
}

func (l *memorizingListener) SynchronizeMailboxProgress(account *models.Account, folderID string, completed, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.getMemory(account, folderID)
	m.syncingProgress = completed
	m.syncingTotal = total
}

func (l *memorizingListener) SynchronizeMailboxFinished(account *models.Account, folderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.getMemory(account, folderID)
	m.syncingState = enum.SyncFinished
}

func (l *memorizingListener) SynchronizeMailboxFailed(account *models.Account, folderID, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.getMemory(account, folderID)
	m.syncingState = enum.SyncFailed
	m.failureMessage = message
}

// RefreshOther replays the single most relevant remembered state to a
// newly attached listener: finished/failed memories are replayed
// immediately, then an in-progress sync wins over anything stale, with its
// latest progress.
func (l *memorizingListener) RefreshOther(other interfaces.MailListener) {
	if other == nil {
		return
	}

	l.mu.Lock()
	var somethingStarted *memory
	finished := make([]*memory, 0)
	failed := make([]*memory, 0)
	for _, m := range l.memories {
		switch m.syncingState {
		case enum.SyncStarted:
			somethingStarted = m
		case enum.SyncFinished:
			finished = append(finished, m)
		case enum.SyncFailed:
			failed = append(failed, m)
		}
	}
	l.mu.Unlock()

	for _, m := range finished {
		other.SynchronizeMailboxFinished(m.account, m.folderID)
	}
	for _, m := range failed {
		other.SynchronizeMailboxFailed(m.account, m.folderID, m.failureMessage)
	}
	if somethingStarted != nil {
		other.SynchronizeMailboxStarted(somethingStarted.account, somethingStarted.folderID)
		if somethingStarted.syncingTotal > 0 {
			other.SynchronizeMailboxProgress(somethingStarted.account, somethingStarted.folderID,
				somethingStarted.syncingProgress, somethingStarted.syncingTotal)
		}
	}
}

// RemoveAccount purges all memories for the account's UUID.
func (l *memorizingListener) RemoveAccount(accountUUID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, m := range l.memories {
		if m.account.UUID == accountUUID {
			delete(l.memories, key)
		}
	}
}
