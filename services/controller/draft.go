package controller

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

// SaveDraft stores the message in the Drafts folder and queues a replace
// so the server copy catches up: the new version is uploaded and, when a
// previous version was already on the server, that one is deleted.
func (s *ControllerService) SaveDraft(ctx context.Context, account *models.Account, message *models.Message, raw []byte, previousDraft *models.Message) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.SaveDraft")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	if account.DraftsFolderID == nil {
		err := fmt.Errorf("account %s has no drafts folder", account.ID)
		tracing.TraceErr(span, err)
		return err
	}

	message.AccountID = account.ID
	message.FolderID = *account.DraftsFolderID
	if message.UID == "" {
		message.UID = models.NewLocalUID()
	}
	message.SetFlag(enum.FlagDraft, true)
	if message.MessageID == "" {
		message.MessageID = utils.GenerateMessageID(utils.ExtractDomainFromEmail(message.FromAddress), message.Subject)
	}
	if err := s.localStore.SaveMessage(ctx, message); err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to store draft: %w", err)
	}
	if err := s.localStore.StoreRawMessage(ctx, message, raw); err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to store raw draft: %w", err)
	}

	payload := models.JSONMap{
		models.PayloadOldUID: message.UID,
	}
	if previousDraft != nil && previousDraft.ID != message.ID {
		if !previousDraft.HasLocalUID() {
			payload[models.PayloadUIDs] = []string{previousDraft.UID}
		}
		if err := s.localStore.DestroyMessages(ctx, []string{previousDraft.ID}); err != nil {
			tracing.TraceErr(span, err)
		}
	}

	if err := s.queuePendingCommand(ctx, account, enum.PendingReplaceDraft, *account.DraftsFolderID, payload); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	s.ProcessPendingCommands(account)
	return nil
}
