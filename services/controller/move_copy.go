package controller

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/internal/enum"
	mailerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

func errUnsupportedOperation(account *models.Account, operation string) error {
	return fmt.Errorf("backend for account %s does not support %s: %w", account.ID, operation, mailerrors.ErrOperationUnsupported)
}

// MoveMessages moves the referenced messages to the target folder. Each
// account/folder group is its own unit of work; the messages disappear
// from readers immediately via the overlay and commit when the local move
// lands.
func (s *ControllerService) MoveMessages(ctx context.Context, refs []models.MessageReference, targetFolderID string) {
	s.moveOrCopy(ctx, refs, targetFolderID, enum.FlavorMove)
}

func (s *ControllerService) MoveMessagesInThread(ctx context.Context, refs []models.MessageReference, targetFolderID string) {
	s.moveOrCopy(ctx, s.expandThreads(ctx, refs), targetFolderID, enum.FlavorMove)
}

func (s *ControllerService) CopyMessages(ctx context.Context, refs []models.MessageReference, targetFolderID string) {
	s.moveOrCopy(ctx, refs, targetFolderID, enum.FlavorCopy)
}

func (s *ControllerService) CopyMessagesInThread(ctx context.Context, refs []models.MessageReference, targetFolderID string) {
	s.moveOrCopy(ctx, s.expandThreads(ctx, refs), targetFolderID, enum.FlavorCopy)
}

// ArchiveMessages moves to the account's archive folder. Groups from
// accounts without one are skipped.
func (s *ControllerService) ArchiveMessages(ctx context.Context, refs []models.MessageReference) {
	s.moveToSpecialFolder(ctx, refs, func(account *models.Account) *string {
		return account.ArchiveFolderID
	}, enum.FlavorMove)
}

// MoveToSpam moves to the account's spam folder.
func (s *ControllerService) MoveToSpam(ctx context.Context, refs []models.MessageReference) {
	s.moveToSpecialFolder(ctx, refs, func(account *models.Account) *string {
		return account.SpamFolderID
	}, enum.FlavorMove)
}

func (s *ControllerService) moveToSpecialFolder(ctx context.Context, refs []models.MessageReference, target func(*models.Account) *string, flavor enum.MoveOrCopyFlavor) {
	for _, group := range s.groupByAccountAndFolder(ctx, refs) {
		targetFolderID := target(group.account)
		if targetFolderID == nil {
			s.log.Warnf("Account %s has no destination folder configured, skipping move", group.account.ID)
			continue
		}
		s.scheduleMoveOrCopy(group, *targetFolderID, flavor)
	}
}

// expandThreads widens references to every message of the threads they
// belong to.
func (s *ControllerService) expandThreads(ctx context.Context, refs []models.MessageReference) []models.MessageReference {
	byAccount := make(map[string][]string)
	for _, ref := range refs {
		message, err := s.localStore.GetMessage(ctx, ref.MessageID)
		if err != nil {
			continue
		}
		root := message.ThreadRootID
		if root == "" {
			root = message.ID
		}
		byAccount[ref.AccountID] = append(byAccount[ref.AccountID], root)
	}

	var expanded []models.MessageReference
	for accountID, roots := range byAccount {
		messages, err := s.localStore.ListMessagesByThreadRoots(ctx, accountID, roots)
		if err != nil {
			s.log.Errorf("Failed to expand threads for account %s: %v", accountID, err)
			continue
		}
		for _, message := range messages {
			expanded = append(expanded, message.MakeReference())
		}
	}
	return expanded
}

func (s *ControllerService) moveOrCopy(ctx context.Context, refs []models.MessageReference, targetFolderID string, flavor enum.MoveOrCopyFlavor) {
	for _, group := range s.groupByAccountAndFolder(ctx, refs) {
		if group.folderID == targetFolderID {
			continue
		}
		s.scheduleMoveOrCopy(group, targetFolderID, flavor)
	}
}

func (s *ControllerService) scheduleMoveOrCopy(group *folderGroup, targetFolderID string, flavor enum.MoveOrCopyFlavor) {
	if flavor != enum.FlavorCopy {
		// Hide the originals until the local move commits.
		s.cache.HideMessages(group.account.ID, messageIDs(group.messages))
	}
	s.putBackground("moveOrCopy:"+group.folderID+">"+targetFolderID, nil, func() {
		s.moveOrCopySynchronous(context.Background(), group.account, group.folderID, group.messages, targetFolderID, flavor)
	})
}

// moveOrCopySynchronous performs the local mutation, queues the deferred
// remote counterpart, and kicks off a replay pass. Messages that have not
// reached the server yet stay local; they are never part of the remote
// command.
func (s *ControllerService) moveOrCopySynchronous(ctx context.Context, account *models.Account, folderID string, messages []*models.Message, targetFolderID string, flavor enum.MoveOrCopyFlavor) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.moveOrCopySynchronous")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	unhide := func() {
		if flavor != enum.FlavorCopy {
			s.cache.UnhideMessages(account.ID, messageIDs(messages))
		}
	}

	backend, err := s.backends.GetBackend(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.operationFailed(account, "resolving backend", err)
		unhide()
		return
	}

	caps := backend.Capabilities()
	if flavor == enum.FlavorCopy && !caps.SupportsCopy {
		s.operationFailed(account, "copying messages", errUnsupportedOperation(account, "copy"))
		unhide()
		return
	}
	if flavor != enum.FlavorCopy && !caps.SupportsMove {
		s.operationFailed(account, "moving messages", errUnsupportedOperation(account, "move"))
		unhide()
		return
	}

	if flavor == enum.FlavorMoveAndMarkAsRead {
		if err := s.localStore.SetFlag(ctx, messageIDs(messages), enum.FlagSeen, true); err != nil {
			tracing.TraceErr(span, err)
		}
	}

	var mapping map[string]string
	if flavor == enum.FlavorCopy {
		mapping, err = s.localStore.CopyMessages(ctx, messageIDs(messages), targetFolderID)
	} else {
		mapping, err = s.localStore.MoveMessages(ctx, messageIDs(messages), targetFolderID)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		s.operationFailed(account, "moving messages locally", err)
		unhide()
		return
	}
	// The local mutation is durable; readers may see it now.
	unhide()

	sourceFolder, err := s.localStore.GetFolder(ctx, folderID)
	if err != nil {
		tracing.TraceErr(span, err)
		return
	}
	targetFolder, err := s.localStore.GetFolder(ctx, targetFolderID)
	if err != nil {
		tracing.TraceErr(span, err)
		return
	}
	if sourceFolder.LocalOnly || targetFolder.LocalOnly {
		return
	}

	// uidMap keys are the server-side UIDs to act on; values are the
	// placeholder UIDs replay uses to find the destination rows.
	uidMap := make(map[string]string)
	var unsynced int
	for _, message := range messages {
		if message.HasLocalUID() {
			unsynced++
			continue
		}
		destinationUID := message.UID
		if flavor == enum.FlavorCopy {
			newID, ok := mapping[message.ID]
			if !ok {
				continue
			}
			copied, err := s.localStore.GetMessage(ctx, newID)
			if err != nil {
				continue
			}
			destinationUID = copied.UID
		}
		uidMap[message.UID] = destinationUID
	}
	if unsynced > 0 {
		// The local mutation went through, but the server never saw these
		// messages, so there is nothing to replicate for them.
		s.operationFailed(account, "replicating on the server",
			fmt.Errorf("%d message(s) have no server copy: %w", unsynced, mailerrors.ErrUnsyncedMessage))
	}
	if len(uidMap) == 0 {
		return
	}

	var kind enum.PendingCommandKind
	switch flavor {
	case enum.FlavorCopy:
		kind = enum.PendingCopy
	case enum.FlavorMoveAndMarkAsRead:
		kind = enum.PendingMoveAndMarkAsRead
	default:
		kind = enum.PendingMove
	}

	err = s.queuePendingCommand(ctx, account, kind, folderID, models.JSONMap{
		models.PayloadTargetFolderID: targetFolderID,
		models.PayloadUIDMap:         uidMap,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to queue %s command: %v", kind, err)
		return
	}
	s.ProcessPendingCommands(account)
}

func (s *ControllerService) operationFailed(account *models.Account, description string, err error) {
	s.log.Errorf("Operation failed for account %s while %s: %v", account.ID, description, err)
	for _, l := range s.getListeners(nil) {
		l.OperationFailed(account, description, err)
	}
}
