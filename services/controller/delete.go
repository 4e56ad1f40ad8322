package controller

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

// DeleteMessages deletes the referenced messages according to each
// account's delete policy. The messages vanish from readers immediately;
// the durable effect follows on the queue.
func (s *ControllerService) DeleteMessages(ctx context.Context, refs []models.MessageReference) {
	for _, group := range s.groupByAccountAndFolder(ctx, refs) {
		group := group
		s.cache.HideMessages(group.account.ID, messageIDs(group.messages))
		s.putBackground("deleteMessages:"+group.folderID, nil, func() {
			s.deleteMessagesSynchronous(context.Background(), group.account, group.folderID, group.messages)
		})
	}
}

// DeleteThreads deletes every message of the threads the references
// belong to.
func (s *ControllerService) DeleteThreads(ctx context.Context, refs []models.MessageReference) {
	s.DeleteMessages(ctx, s.expandThreads(ctx, refs))
}

// deleteMessagesSynchronous is the policy switch. Messages that never
// reached the server are destroyed outright. Outbox deletes move to Trash
// and queue uploads so the server-side Trash matches. Everything else
// either moves to Trash locally or is destroyed, with the matching remote
// command dictated by the account's delete policy.
func (s *ControllerService) deleteMessagesSynchronous(ctx context.Context, account *models.Account, folderID string, messages []*models.Message) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.deleteMessagesSynchronous")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	unhide := func() {
		s.cache.UnhideMessages(account.ID, messageIDs(messages))
	}

	var localOnly, synced []*models.Message
	for _, message := range messages {
		if message.HasLocalUID() {
			localOnly = append(localOnly, message)
		} else {
			synced = append(synced, message)
		}
	}

	if len(localOnly) > 0 {
		if err := s.localStore.DestroyMessages(ctx, messageIDs(localOnly)); err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("Failed to destroy local messages: %v", err)
		}
	}
	if len(synced) == 0 {
		unhide()
		return
	}

	if account.OutboxFolderID != nil && folderID == *account.OutboxFolderID {
		s.deleteFromOutbox(ctx, account, synced)
		unhide()
		return
	}

	deletingFromTrash := account.TrashFolderID != nil && folderID == *account.TrashFolderID
	moveToTrash := account.HasTrashFolder() &&
		!deletingFromTrash &&
		!s.deleteDecider.ShouldDeleteImmediately(account, folderID)

	uids := messageUIDs(synced)
	ids := messageIDs(synced)

	var queued bool
	if moveToTrash {
		if account.MarkMessageAsReadOnDelete {
			if err := s.localStore.SetFlag(ctx, ids, enum.FlagSeen, true); err != nil {
				tracing.TraceErr(span, err)
			}
		}
		mapping, err := s.localStore.MoveMessages(ctx, ids, *account.TrashFolderID)
		if err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("Failed to move messages to trash: %v", err)
			unhide()
			return
		}
		unhide()
		queued = s.queueRemoteDelete(ctx, account, folderID, synced, mapping)
	} else {
		switch account.DeletePolicy {
		case enum.DeletePolicyOnDelete:
			// Keep placeholder rows flagged deleted; replay destroys
			// them once the server confirms.
			if err := s.localStore.SetFlag(ctx, ids, enum.FlagDeleted, true); err != nil {
				tracing.TraceErr(span, err)
				unhide()
				return
			}
			unhide()
			err := s.queuePendingCommand(ctx, account, enum.PendingDelete, folderID, models.JSONMap{
				models.PayloadUIDs: uids,
			})
			if err != nil {
				tracing.TraceErr(span, err)
				s.log.Errorf("Failed to queue delete command: %v", err)
			} else {
				queued = true
			}
		case enum.DeletePolicyMarkAsRead:
			if err := s.localStore.DestroyMessages(ctx, ids); err != nil {
				tracing.TraceErr(span, err)
			}
			unhide()
			err := s.queuePendingCommand(ctx, account, enum.PendingSetFlag, folderID, models.JSONMap{
				models.PayloadUIDs:  uids,
				models.PayloadFlag:  string(enum.FlagSeen),
				models.PayloadValue: true,
			})
			if err != nil {
				tracing.TraceErr(span, err)
			} else {
				queued = true
			}
		default:
			s.log.Debugf("Delete policy %s prevents delete from server", account.DeletePolicy)
			if err := s.localStore.DestroyMessages(ctx, ids); err != nil {
				tracing.TraceErr(span, err)
			}
			unhide()
		}
	}

	if queued {
		s.ProcessPendingCommands(account)
	}
}

// queueRemoteDelete mirrors a local move-to-trash on the server, honoring
// the delete policy.
func (s *ControllerService) queueRemoteDelete(ctx context.Context, account *models.Account, folderID string, messages []*models.Message, mapping map[string]string) bool {
	switch account.DeletePolicy {
	case enum.DeletePolicyOnDelete:
		uidMap := make(map[string]string, len(messages))
		for _, message := range messages {
			uidMap[message.UID] = message.UID
		}
		kind := enum.PendingMove
		if account.MarkMessageAsReadOnDelete {
			kind = enum.PendingMoveAndMarkAsRead
		}
		err := s.queuePendingCommand(ctx, account, kind, folderID, models.JSONMap{
			models.PayloadTargetFolderID: *account.TrashFolderID,
			models.PayloadUIDMap:         uidMap,
		})
		if err != nil {
			s.log.Errorf("Failed to queue trash move: %v", err)
			return false
		}
		return true
	case enum.DeletePolicyMarkAsRead:
		err := s.queuePendingCommand(ctx, account, enum.PendingSetFlag, folderID, models.JSONMap{
			models.PayloadUIDs:  messageUIDs(messages),
			models.PayloadFlag:  string(enum.FlagSeen),
			models.PayloadValue: true,
		})
		if err != nil {
			s.log.Errorf("Failed to queue flag change: %v", err)
			return false
		}
		return true
	default:
		s.log.Debugf("Delete policy %s prevents delete from server", account.DeletePolicy)
		return false
	}
}

// deleteFromOutbox moves unsent messages to Trash and uploads them there,
// so the server's Trash reflects the delete. Messages mid-send are left
// alone.
func (s *ControllerService) deleteFromOutbox(ctx context.Context, account *models.Account, messages []*models.Message) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.deleteFromOutbox")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	deletable := messages[:0:0]
	for _, message := range messages {
		if message.HasFlag(enum.FlagSendInProgress) {
			s.log.Warnf("Skipping delete of message %s, send in progress", message.ID)
			continue
		}
		deletable = append(deletable, message)
	}
	if len(deletable) == 0 {
		return
	}

	for _, message := range deletable {
		if err := s.repositories.OutboxStateRepository.Delete(ctx, message.ID); err != nil {
			tracing.TraceErr(span, err)
		}
	}

	if !account.HasTrashFolder() {
		if err := s.localStore.DestroyMessages(ctx, messageIDs(deletable)); err != nil {
			tracing.TraceErr(span, err)
		}
		return
	}

	mapping, err := s.localStore.MoveMessages(ctx, messageIDs(deletable), *account.TrashFolderID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to move outbox messages to trash: %v", err)
		return
	}

	// The trash copies exist only locally; upload each one.
	queued := false
	for _, message := range deletable {
		newID, ok := mapping[message.ID]
		if !ok {
			continue
		}
		moved, err := s.localStore.GetMessage(ctx, newID)
		if err != nil {
			continue
		}
		err = s.queuePendingCommand(ctx, account, enum.PendingAppend, *account.TrashFolderID, models.JSONMap{
			models.PayloadOldUID: moved.UID,
		})
		if err != nil {
			tracing.TraceErr(span, err)
			continue
		}
		queued = true
	}
	if queued {
		s.ProcessPendingCommands(account)
	}
}

// EmptyTrash empties the account's Trash folder. A local-only Trash is
// simply cleared; otherwise local rows become deleted placeholders and
// the server-side empty is deferred.
func (s *ControllerService) EmptyTrash(ctx context.Context, account *models.Account, listener interfaces.MailListener) {
	s.putBackground("emptyTrash:"+account.ID, listener, func() {
		s.emptySpecialFolderSynchronous(context.Background(), account, account.TrashFolderID, enum.PendingEmptyTrash)
	})
}

// EmptySpam does the same for the Spam folder.
func (s *ControllerService) EmptySpam(ctx context.Context, account *models.Account, listener interfaces.MailListener) {
	s.putBackground("emptySpam:"+account.ID, listener, func() {
		s.emptySpecialFolderSynchronous(context.Background(), account, account.SpamFolderID, enum.PendingEmptySpam)
	})
}

func (s *ControllerService) emptySpecialFolderSynchronous(ctx context.Context, account *models.Account, folderID *string, kind enum.PendingCommandKind) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.emptySpecialFolderSynchronous")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	if folderID == nil {
		s.log.Debugf("Account %s has no folder to empty", account.ID)
		return
	}
	folder, err := s.localStore.GetFolder(ctx, *folderID)
	if err != nil {
		tracing.TraceErr(span, err)
		return
	}

	if folder.LocalOnly || folder.ServerID == nil {
		if err := s.localStore.ClearAllMessages(ctx, folder.ID); err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("Failed to clear folder %s: %v", folder.ID, err)
		}
		return
	}

	// Rows that never reached the server can go now; the rest become
	// placeholders destroyed when the server confirms.
	if err := s.localStore.DestroyLocalOnlyMessages(ctx, folder.ID); err != nil {
		tracing.TraceErr(span, err)
		return
	}
	if err := s.localStore.SetFlagForAllMessages(ctx, folder.ID, enum.FlagDeleted, true); err != nil {
		tracing.TraceErr(span, err)
		return
	}
	if err := s.queuePendingCommand(ctx, account, kind, folder.ID, models.JSONMap{}); err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to queue %s: %v", kind, err)
		return
	}
	s.ProcessPendingCommands(account)
}

// ClearFolder wipes the folder's local contents without touching the
// server.
func (s *ControllerService) ClearFolder(ctx context.Context, account *models.Account, folderID string) {
	s.putBackground("clearFolder:"+folderID, nil, func() {
		if err := s.localStore.ClearAllMessages(context.Background(), folderID); err != nil {
			s.log.Errorf("Failed to clear folder %s: %v", folderID, err)
		}
	})
}

// Expunge asks the server to expunge the folder.
func (s *ControllerService) Expunge(ctx context.Context, account *models.Account, folderID string) {
	s.putBackground("expunge:"+folderID, nil, func() {
		ctx := context.Background()
		if err := s.queuePendingCommand(ctx, account, enum.PendingExpunge, folderID, models.JSONMap{}); err != nil {
			s.log.Errorf("Failed to queue expunge: %v", err)
			return
		}
		s.ProcessPendingCommands(account)
	})
}
