package controller

import (
	"context"
	"sync"
	"time"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/cache"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
)

const (
	// FolderListStalenessThreshold is how old an account's folder list may
	// get before a sync refreshes it first.
	FolderListStalenessThreshold = 30 * time.Minute

	// DefaultMaxSendAttempts is how many times one outbox message is tried
	// before it transitions to retries-exceeded.
	DefaultMaxSendAttempts = 5

	stopTimeout = 10 * time.Second
)

type Config struct {
	MaxSendAttempts int
}

// ControllerService drives synchronization between the local store and the
// remote backends. One background worker drains the command queue in
// priority order; an elastic set of goroutines runs work that must not be
// serialized behind it (remote search, attachment loads, per-account check
// fan-out). All state is owned by the instance; there are no globals.
type ControllerService struct {
	log          logger.Logger
	repositories *repository.Repositories
	localStore   interfaces.LocalStore
	backends     interfaces.BackendProvider
	notifier     interfaces.Notifier
	strategy     interfaces.NotificationStrategy
	deleteDecider interfaces.LocalDeleteDecider

	queue     *commandQueue
	listeners *listenerRegistry
	memory    *memorizingListener
	cache     *cache.MessageCache

	maxSendAttempts int

	mu            sync.Mutex
	searchCancels map[string]context.CancelFunc

	pool    sync.WaitGroup
	stopCh  chan struct{}
	started bool
}

func NewControllerService(
	log logger.Logger,
	cfg *Config,
	repositories *repository.Repositories,
	localStore interfaces.LocalStore,
	backends interfaces.BackendProvider,
	notifier interfaces.Notifier,
	strategy interfaces.NotificationStrategy,
	deleteDecider interfaces.LocalDeleteDecider,
) *ControllerService {
	maxSendAttempts := DefaultMaxSendAttempts
	if cfg != nil && cfg.MaxSendAttempts > 0 {
		maxSendAttempts = cfg.MaxSendAttempts
	}

	s := &ControllerService{
		log:             log,
		repositories:    repositories,
		localStore:      localStore,
		backends:        backends,
		notifier:        notifier,
		strategy:        strategy,
		deleteDecider:   deleteDecider,
		queue:           newCommandQueue(log),
		listeners:       newListenerRegistry(),
		cache:           cache.NewMessageCache(),
		maxSendAttempts: maxSendAttempts,
		searchCancels:   make(map[string]context.CancelFunc),
		stopCh:          make(chan struct{}),
	}

	s.memory = newMemorizingListener()
	s.listeners.Add(s.memory)

	return s
}

// Start launches the queue worker.
func (s *ControllerService) Start() error {
	if s.started {
		return nil
	}
	s.started = true

	s.log.Info("Starting mail controller")
	s.queue.StartWorker()

	return nil
}

// Stop shuts down the worker and waits for pool goroutines with a bounded
// timeout. In-flight work past the deadline is abandoned.
func (s *ControllerService) Stop(ctx context.Context) error {
	if !s.started {
		return nil
	}
	s.started = false

	s.log.Info("Stopping mail controller")
	close(s.stopCh)
	s.queue.Close()

	done := make(chan struct{})
	go func() {
		s.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.log.Warn("Timed out waiting for background work to finish")
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// put enqueues a foreground-priority unit of work.
func (s *ControllerService) put(description string, listener interfaces.MailListener, run func()) {
	s.queue.Put(&command{
		description: description,
		listener:    listener,
		run:         run,
		foreground:  true,
	})
}

// putBackground enqueues a background-priority unit of work.
func (s *ControllerService) putBackground(description string, listener interfaces.MailListener, run func()) {
	s.queue.Put(&command{
		description: description,
		listener:    listener,
		run:         run,
		foreground:  false,
	})
}

// runInPool executes work concurrently with the queue worker. Shared state
// the work touches must be safe for concurrent access.
func (s *ControllerService) runInPool(description string, run func()) {
	s.pool.Add(1)
	go func() {
		defer s.pool.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorf("Panic in %s: %v", description, r)
			}
		}()
		run()
	}()
}

func (s *ControllerService) AddListener(listener interfaces.MailListener) {
	s.listeners.Add(listener)
	s.memory.RefreshOther(listener)
}

func (s *ControllerService) RemoveListener(listener interfaces.MailListener) {
	s.listeners.Remove(listener)
}

// getListeners returns the persistent set plus an optional per-operation
// listener, without mutating the persistent set.
func (s *ControllerService) getListeners(extra interfaces.MailListener) []interfaces.MailListener {
	return s.listeners.Union(extra)
}

// RemoveAccount purges per-account controller state. The account rows
// themselves are owned elsewhere.
func (s *ControllerService) RemoveAccount(ctx context.Context, account *models.Account) {
	s.notifier.ClearNewMailNotifications(ctx, account)
	s.memory.RemoveAccount(account.UUID)
	s.cache.RemoveAccount(account.ID)
}

// IsMessageSuppressed reports whether the overlay currently hides the
// message from readers.
func (s *ControllerService) IsMessageSuppressed(message *models.Message) bool {
	return s.cache.IsMessageHidden(message.AccountID, message.ID)
}

func (s *ControllerService) Compact(account *models.Account) {
	s.putBackground("compact:"+account.ID, nil, func() {
		ctx := context.Background()
		if err := s.localStore.Compact(ctx, account.ID); err != nil {
			s.log.Errorf("Failed to compact account %s: %v", account.ID, err)
		}
	})
}
