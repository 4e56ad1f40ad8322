package controller

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

// SynchronizeMailbox schedules a foreground sync of one folder.
func (s *ControllerService) SynchronizeMailbox(ctx context.Context, account *models.Account, folderID string, notify bool, listener interfaces.MailListener) {
	s.put("synchronizeMailbox:"+folderID, listener, func() {
		s.synchronizeMailboxSynchronous(context.Background(), account, folderID, notify, listener)
	})
}

// synchronizeMailboxSynchronous runs one folder sync pass: auth pre-flight,
// a folder-list refresh if stale, the pending command drain, then the
// backend sync itself. A pending-command failure does not stop the sync,
// but it is surfaced as a failure even when the sync itself succeeds, so
// callers retry the drain.
func (s *ControllerService) synchronizeMailboxSynchronous(ctx context.Context, account *models.Account, folderID string, notify bool, listener interfaces.MailListener) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.synchronizeMailboxSynchronous")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	syncListener := newControllerSyncListener(ctx, s, account, listener, !notify)

	if s.CheckAuthenticationProblem(ctx, account, true) {
		s.log.Warnf("Skipping sync of account %s: authentication is not configured", account.ID)
		s.handleAuthenticationFailure(ctx, account, true)
		syncListener.SyncFailed(folderID, "authentication not configured", nil)
		return
	}

	folder, err := s.localStore.GetFolder(ctx, folderID)
	if err != nil {
		tracing.TraceErr(span, err)
		syncListener.fanOut(func(ml interfaces.MailListener) {
			ml.SynchronizeMailboxFailed(account, folderID, err.Error())
		})
		return
	}
	if folder.LocalOnly || folder.ServerID == nil {
		s.log.Debugf("Folder %s is local-only, nothing to sync", folderID)
		syncListener.fanOut(func(ml interfaces.MailListener) {
			ml.SynchronizeMailboxFinished(account, folderID)
		})
		return
	}

	backend, err := s.backends.GetBackend(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		syncListener.SyncFailed(folderID, err.Error(), err)
		return
	}

	if err := s.refreshFolderListIfStale(ctx, account, backend); err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("Folder list refresh failed for account %s: %v", account.ID, err)
	}

	// Drain deferred mutations first so the pass observes its own writes.
	commandErr := s.processPendingCommandsSynchronous(ctx, account)
	if commandErr != nil {
		tracing.TraceErr(span, commandErr)
	}

	syncConfig := interfaces.SyncConfig{
		VisibleLimit:        folder.VisibleLimit,
		MaxAutoDownloadSize: account.MaxAutoDownloadSize,
		SyncRemoteDeletions: true,
	}
	backend.Sync(ctx, *folder.ServerID, syncConfig, syncListener)

	if !syncListener.syncFailed {
		if err := s.localStore.SetFolderLastChecked(ctx, folder.ID); err != nil {
			tracing.TraceErr(span, err)
		}
	}

	if commandErr != nil && !syncListener.syncFailed {
		// The mailbox itself synced fine, but deferred writes are still
		// stuck. Report failure so the caller schedules another pass.
		syncListener.fanOut(func(ml interfaces.MailListener) {
			ml.SynchronizeMailboxFailed(account, folderID, commandErr.Error())
		})
	}
}

// RefreshFolderList unconditionally reconciles the local folder rows with
// the backend's folder list.
func (s *ControllerService) RefreshFolderList(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.RefreshFolderList")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	backend, err := s.backends.GetBackend(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.refreshFolderList(ctx, account, backend); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *ControllerService) refreshFolderList(ctx context.Context, account *models.Account, backend interfaces.Backend) error {
	remote, err := backend.RefreshFolderList(ctx)
	if err != nil {
		return err
	}
	if err := s.localStore.UpsertRemoteFolders(ctx, account.ID, remote); err != nil {
		return err
	}
	if err := s.repositories.AccountRepository.SetFolderListRefreshedAt(ctx, account.ID); err != nil {
		return err
	}
	// Keep the in-memory account in step with the row so staleness checks
	// against the same instance see the refresh.
	now := time.Now().UTC()
	account.FolderListRefreshedAt = &now
	return nil
}

// refreshFolderListIfStale refreshes when the last refresh is older than
// the staleness threshold. A timestamp in the future means the clock went
// backwards at some point; treat it as stale rather than trusting it.
func (s *ControllerService) refreshFolderListIfStale(ctx context.Context, account *models.Account, backend interfaces.Backend) error {
	now := time.Now().UTC()
	refreshedAt := account.FolderListRefreshedAt
	if refreshedAt != nil && refreshedAt.Before(now) && now.Sub(*refreshedAt) < FolderListStalenessThreshold {
		return nil
	}
	return s.refreshFolderList(ctx, account, backend)
}

// CheckMail schedules a full account check: send the outbox, then sync
// every folder that qualifies.
func (s *ControllerService) CheckMail(ctx context.Context, account *models.Account, ignoreLastCheckedTime, notify bool, listener interfaces.MailListener) {
	s.putBackground("checkMail:"+account.ID, listener, func() {
		s.checkMailForAccount(context.Background(), account, ignoreLastCheckedTime, notify, listener)
	})
}

func (s *ControllerService) checkMailForAccount(ctx context.Context, account *models.Account, ignoreLastCheckedTime, notify bool, listener interfaces.MailListener) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.checkMailForAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	s.log.Infof("Starting mail check for account %s", account.ID)
	for _, l := range s.getListeners(listener) {
		l.CheckMailStarted(account)
	}

	s.sendPendingMessagesSynchronous(ctx, account, listener)

	backend, err := s.backends.GetBackend(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
	} else if err := s.refreshFolderListIfStale(ctx, account, backend); err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("Folder list refresh failed for account %s: %v", account.ID, err)
	}

	folders, err := s.localStore.ListFolders(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to list folders for account %s: %v", account.ID, err)
	}
	for _, folder := range folders {
		if !folder.Visible || !folder.SyncEnabled {
			continue
		}
		s.synchronizeFolder(ctx, account, folder, ignoreLastCheckedTime, notify, listener)
	}

	// Finalization runs behind any folder syncs the loop queued.
	s.putBackground("checkMailFinished:"+account.ID, listener, func() {
		s.log.Infof("Finished mail check for account %s", account.ID)
		for _, l := range s.getListeners(listener) {
			l.CheckMailFinished(account)
		}
	})
}

// synchronizeFolder queues one folder sync unless it was checked recently.
// The outbox never syncs against the server.
func (s *ControllerService) synchronizeFolder(ctx context.Context, account *models.Account, folder *models.Folder, ignoreLastCheckedTime, notify bool, listener interfaces.MailListener) {
	if account.OutboxFolderID != nil && folder.ID == *account.OutboxFolderID {
		return
	}

	if !ignoreLastCheckedTime && folder.LastChecked != nil {
		interval := time.Duration(account.AutoCheckIntervalMinutes) * time.Minute
		now := time.Now().UTC()
		lastChecked := *folder.LastChecked
		// A last-checked time in the future means the clock moved; sync
		// anyway instead of waiting it out.
		if lastChecked.Before(now) && now.Sub(lastChecked) < interval {
			s.log.Debugf("Skipping folder %s, checked %s ago", folder.ID, now.Sub(lastChecked))
			return
		}
	}

	folderID := folder.ID
	s.putBackground("synchronizeFolder:"+folderID, listener, func() {
		s.synchronizeMailboxSynchronous(context.Background(), account, folderID, notify, listener)
	})
}

// PerformPeriodicMailSync runs one blocking check of the account and
// reports whether every folder synced cleanly. The last-sync timestamp
// only advances on success.
func (s *ControllerService) PerformPeriodicMailSync(ctx context.Context, account *models.Account) bool {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.PerformPeriodicMailSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	latch := make(chan struct{})
	listener := &periodicSyncListener{latch: latch}

	s.CheckMail(ctx, account, false, true, listener)

	select {
	case <-latch:
	case <-ctx.Done():
		s.log.Warnf("Interrupted while awaiting mail sync of account %s", account.ID)
		return false
	case <-s.stopCh:
		return false
	}

	if listener.syncError {
		return false
	}

	if err := s.repositories.AccountRepository.SetLastSyncTime(ctx, account.ID); err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to record sync time for account %s: %v", account.ID, err)
	}
	return true
}

// periodicSyncListener latches when the check completes and remembers
// whether any folder failed along the way.
type periodicSyncListener struct {
	interfaces.NoopListener
	latch     chan struct{}
	syncError bool
}

func (l *periodicSyncListener) SynchronizeMailboxFailed(account *models.Account, folderID, message string) {
	l.syncError = true
}

func (l *periodicSyncListener) CheckMailFinished(account *models.Account) {
	close(l.latch)
}
