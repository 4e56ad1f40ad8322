package controller

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	mailerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

// queuePendingCommand persists a deferred remote operation. The durable
// log is the source of truth; replay order is the insertion order.
func (s *ControllerService) queuePendingCommand(ctx context.Context, account *models.Account, kind enum.PendingCommandKind, folderID string, payload models.JSONMap) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.queuePendingCommand")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	command := &models.PendingCommand{
		AccountID: account.ID,
		Kind:      kind,
		FolderID:  folderID,
		Payload:   payload,
	}

	if err := s.repositories.PendingCommandRepository.Create(ctx, command); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

// ProcessPendingCommands schedules a replay pass for the account.
func (s *ControllerService) ProcessPendingCommands(account *models.Account) {
	s.putBackground("processPendingCommands:"+account.ID, nil, func() {
		ctx := context.Background()
		if err := s.processPendingCommandsSynchronous(ctx, account); err != nil {
			// Transient failure: the remaining log is retried on the
			// next pass, from the same command.
			s.log.Warnf("Postponing pending command processing for account %s: %v", account.ID, err)
		}
	})
}

// processPendingCommandsSynchronous replays the account's pending commands
// strictly in enqueue order. Success removes the command. A permanent
// failure removes it and moves on. Any other classified failure stops the
// pass and propagates, preserving ordering at the cost of head-of-line
// blocking. An unclassified error is treated as permanent so a poison pill
// cannot block the account forever.
func (s *ControllerService) processPendingCommandsSynchronous(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.processPendingCommandsSynchronous")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	commands, err := s.repositories.PendingCommandRepository.ListForAccount(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if len(commands) == 0 {
		return nil
	}

	s.log.Infof("Processing %d pending command(s) for account %s", len(commands), account.ID)

	// Resolve the backend once for the whole pass. A resolution failure
	// must leave every command in the log untouched.
	backend, err := s.backends.GetBackend(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	for _, command := range commands {
		s.log.Debugf("Processing pending command '%s' for account %s", command.Kind, account.ID)

		err := s.processPendingCommand(ctx, account, backend, command)
		switch {
		case err == nil:
			// fallthrough to removal below
		case mailerrors.IsPermanent(err):
			tracing.TraceErr(span, err)
			s.log.Errorf("Pending command '%s' failed permanently, dropping it: %v", command.Kind, err)
		case mailerrors.IsMailError(err):
			tracing.TraceErr(span, err)
			return err
		default:
			// Not an error the backend boundary produced. Removing the
			// command keeps the log unblocked, but this points at a bug.
			tracing.TraceErr(span, err)
			s.log.Errorf("Unexpected exception processing pending command '%s', dropping it: %v", command.Kind, err)
		}

		if removeErr := s.repositories.PendingCommandRepository.Delete(ctx, command.ID); removeErr != nil {
			tracing.TraceErr(span, removeErr)
			return removeErr
		}
	}

	return nil
}

func (s *ControllerService) processPendingCommand(ctx context.Context, account *models.Account, backend interfaces.Backend, command *models.PendingCommand) error {
	switch command.Kind {
	case enum.PendingAppend:
		return s.processPendingAppend(ctx, account, backend, command)
	case enum.PendingDelete:
		return s.processPendingDelete(ctx, account, backend, command)
	case enum.PendingMove, enum.PendingCopy, enum.PendingMoveAndMarkAsRead:
		return s.processPendingMoveOrCopy(ctx, account, backend, command)
	case enum.PendingSetFlag:
		return s.processPendingSetFlag(ctx, backend, command)
	case enum.PendingExpunge:
		return s.processPendingExpunge(ctx, backend, command)
	case enum.PendingMarkAllAsRead:
		return s.processPendingMarkAllAsRead(ctx, backend, command)
	case enum.PendingEmptyTrash:
		return s.processPendingEmptySpecialFolder(ctx, account, backend, account.TrashFolderID)
	case enum.PendingEmptySpam:
		return s.processPendingEmptySpecialFolder(ctx, account, backend, account.SpamFolderID)
	case enum.PendingReplaceDraft:
		return s.processPendingReplaceDraft(ctx, account, backend, command)
	default:
		return fmt.Errorf("unknown pending command kind %q", command.Kind)
	}
}

// processPendingAppend uploads a locally-created message and adopts the
// server-assigned UID. If a prior pass already started the remote copy,
// the backend is searched by message-id header first so a crashed upload
// is never duplicated.
func (s *ControllerService) processPendingAppend(ctx context.Context, account *models.Account, backend interfaces.Backend, command *models.PendingCommand) error {
	folder, err := s.localStore.GetFolder(ctx, command.FolderID)
	if err != nil {
		return err
	}
	if folder.ServerID == nil {
		// Folder is local-only; nothing to reconcile.
		return nil
	}

	uid := command.StringField(models.PayloadOldUID)
	message, err := s.localStore.GetMessageByUID(ctx, command.FolderID, uid)
	if err != nil {
		// The message disappeared locally; the append is moot.
		s.log.Warnf("Pending append for vanished message uid %s, skipping", uid)
		return nil
	}

	if !message.HasLocalUID() {
		// Already adopted a remote UID on a prior pass.
		return nil
	}

	var remoteUID string
	if message.HasFlag(enum.FlagRemoteCopyStarted) && message.MessageID != "" {
		remoteUID, err = backend.FindUIDByMessageID(ctx, *folder.ServerID, message.MessageID)
		if err != nil {
			return err
		}
	}

	if remoteUID == "" {
		raw, err := s.localStore.GetRawMessage(ctx, message)
		if err != nil {
			return err
		}
		if err := s.localStore.SetFlag(ctx, []string{message.ID}, enum.FlagRemoteCopyStarted, true); err != nil {
			return err
		}
		remoteUID, err = backend.UploadMessage(ctx, *folder.ServerID, raw)
		if err != nil {
			return err
		}
	}

	oldUID := message.UID
	if err := s.localStore.SetMessageUID(ctx, message.ID, remoteUID); err != nil {
		return err
	}
	if err := s.localStore.SetFlag(ctx, []string{message.ID}, enum.FlagRemoteCopyStarted, false); err != nil {
		return err
	}

	for _, l := range s.getListeners(nil) {
		l.MessageUIDChanged(account, command.FolderID, oldUID, remoteUID)
	}

	return nil
}

// processPendingDelete deletes by UID on the backend, then destroys the
// local placeholder rows still flagged deleted.
func (s *ControllerService) processPendingDelete(ctx context.Context, account *models.Account, backend interfaces.Backend, command *models.PendingCommand) error {
	folder, err := s.localStore.GetFolder(ctx, command.FolderID)
	if err != nil {
		return err
	}
	if folder.ServerID == nil {
		return nil
	}

	uids := remoteUIDsOnly(command.UIDs())
	if len(uids) > 0 {
		if err := backend.DeleteMessages(ctx, *folder.ServerID, uids); err != nil {
			return err
		}
	}

	return s.localStore.DestroyDeletedMessages(ctx, command.FolderID, uids)
}

// processPendingMoveOrCopy replays a move/copy between two backend
// folders and remaps the local placeholder UIDs from the server's
// reported table.
func (s *ControllerService) processPendingMoveOrCopy(ctx context.Context, account *models.Account, backend interfaces.Backend, command *models.PendingCommand) error {
	sourceFolder, err := s.localStore.GetFolder(ctx, command.FolderID)
	if err != nil {
		return err
	}
	targetFolder, err := s.localStore.GetFolder(ctx, command.StringField(models.PayloadTargetFolderID))
	if err != nil {
		return err
	}
	if sourceFolder.ServerID == nil || targetFolder.ServerID == nil {
		return nil
	}

	// uidMap: source UID -> destination placeholder UID
	uidMap := command.UIDMap()
	sourceUIDs := make([]string, 0, len(uidMap))
	for sourceUID := range uidMap {
		if !models.IsLocalUID(sourceUID) {
			sourceUIDs = append(sourceUIDs, sourceUID)
		}
	}
	if len(sourceUIDs) == 0 {
		return nil
	}

	var remoteUIDMap map[string]string
	switch command.Kind {
	case enum.PendingCopy:
		remoteUIDMap, err = backend.CopyMessages(ctx, *sourceFolder.ServerID, *targetFolder.ServerID, sourceUIDs)
	case enum.PendingMoveAndMarkAsRead:
		remoteUIDMap, err = backend.MoveMessagesAndMarkAsRead(ctx, *sourceFolder.ServerID, *targetFolder.ServerID, sourceUIDs)
	default:
		remoteUIDMap, err = backend.MoveMessages(ctx, *sourceFolder.ServerID, *targetFolder.ServerID, sourceUIDs)
	}
	if err != nil {
		return err
	}

	if command.Kind != enum.PendingCopy {
		// The source rows were placeholders kept around for this moment.
		if err := s.localStore.DestroyDeletedMessages(ctx, command.FolderID, sourceUIDs); err != nil {
			return err
		}
		if backend.Capabilities().SupportsExpunge {
			if err := backend.Expunge(ctx, *sourceFolder.ServerID); err != nil {
				return err
			}
		}
	}

	// Adopt the server-assigned UIDs on the destination rows.
	for sourceUID, newRemoteUID := range remoteUIDMap {
		placeholderUID, ok := uidMap[sourceUID]
		if !ok {
			continue
		}
		message, err := s.localStore.GetMessageByUID(ctx, targetFolder.ID, placeholderUID)
		if err != nil {
			continue
		}
		if err := s.localStore.SetMessageUID(ctx, message.ID, newRemoteUID); err != nil {
			return err
		}
		for _, l := range s.getListeners(nil) {
			l.MessageUIDChanged(account, targetFolder.ID, placeholderUID, newRemoteUID)
		}
	}

	return nil
}

func (s *ControllerService) processPendingSetFlag(ctx context.Context, backend interfaces.Backend, command *models.PendingCommand) error {
	folder, err := s.localStore.GetFolder(ctx, command.FolderID)
	if err != nil {
		return err
	}
	if folder.ServerID == nil || !backend.Capabilities().SupportsFlags {
		return nil
	}

	uids := remoteUIDsOnly(command.UIDs())
	if len(uids) == 0 {
		return nil
	}

	flag := enum.Flag(command.StringField(models.PayloadFlag))
	value := command.BoolField(models.PayloadValue)
	return backend.SetFlag(ctx, *folder.ServerID, uids, flag, value)
}

func (s *ControllerService) processPendingExpunge(ctx context.Context, backend interfaces.Backend, command *models.PendingCommand) error {
	folder, err := s.localStore.GetFolder(ctx, command.FolderID)
	if err != nil {
		return err
	}
	if folder.ServerID == nil || !backend.Capabilities().SupportsExpunge {
		return nil
	}
	return backend.Expunge(ctx, *folder.ServerID)
}

func (s *ControllerService) processPendingMarkAllAsRead(ctx context.Context, backend interfaces.Backend, command *models.PendingCommand) error {
	folder, err := s.localStore.GetFolder(ctx, command.FolderID)
	if err != nil {
		return err
	}
	if folder.ServerID == nil || !backend.Capabilities().SupportsFlags {
		return nil
	}
	return backend.MarkAllAsRead(ctx, *folder.ServerID)
}

// processPendingEmptySpecialFolder deletes every remote message in the
// trash or spam folder, then purges the local placeholders.
func (s *ControllerService) processPendingEmptySpecialFolder(ctx context.Context, account *models.Account, backend interfaces.Backend, folderID *string) error {
	if folderID == nil {
		return nil
	}
	folder, err := s.localStore.GetFolder(ctx, *folderID)
	if err != nil {
		return err
	}
	if folder.ServerID == nil {
		return nil
	}

	if err := backend.DeleteAllMessages(ctx, *folder.ServerID); err != nil {
		return err
	}

	messages, err := s.localStore.ListMessages(ctx, folder.ID)
	if err != nil {
		return err
	}
	uids := make([]string, 0, len(messages))
	for _, message := range messages {
		uids = append(uids, message.UID)
	}
	if err := s.localStore.DestroyDeletedMessages(ctx, folder.ID, uids); err != nil {
		return err
	}

	return s.localStore.Compact(ctx, account.ID)
}

// processPendingReplaceDraft uploads the new draft version and then
// deletes the previously uploaded one.
func (s *ControllerService) processPendingReplaceDraft(ctx context.Context, account *models.Account, backend interfaces.Backend, command *models.PendingCommand) error {
	if err := s.processPendingAppend(ctx, account, backend, command); err != nil {
		return err
	}

	folder, err := s.localStore.GetFolder(ctx, command.FolderID)
	if err != nil {
		return err
	}
	if folder.ServerID == nil {
		return nil
	}

	var previousUID string
	if uids := command.UIDs(); len(uids) == 1 {
		previousUID = uids[0]
	}
	if previousUID == "" || models.IsLocalUID(previousUID) {
		return nil
	}

	return backend.DeleteMessages(ctx, *folder.ServerID, []string{previousUID})
}

func remoteUIDsOnly(uids []string) []string {
	remote := uids[:0:0]
	for _, uid := range uids {
		if !models.IsLocalUID(uid) {
			remote = append(remote, uid)
		}
	}
	return remote
}
