package controller

import (
	"context"
	"fmt"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	mailerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

// SendMessage stores the message in the Outbox and triggers a send pass.
func (s *ControllerService) SendMessage(ctx context.Context, account *models.Account, message *models.Message, raw []byte) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.SendMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	if account.OutboxFolderID == nil {
		err := fmt.Errorf("account %s has no outbox folder", account.ID)
		tracing.TraceErr(span, err)
		return err
	}

	message.AccountID = account.ID
	message.FolderID = *account.OutboxFolderID
	if message.MessageID == "" {
		message.MessageID = utils.GenerateMessageID(utils.ExtractDomainFromEmail(message.FromAddress), message.Subject)
	}
	if err := s.localStore.SaveMessage(ctx, message); err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to store message in outbox: %w", err)
	}
	if err := s.localStore.StoreRawMessage(ctx, message, raw); err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to store raw message: %w", err)
	}

	s.SendPendingMessages(account, nil)
	return nil
}

// SendPendingMessages schedules a pass over the account's Outbox.
func (s *ControllerService) SendPendingMessages(account *models.Account, listener interfaces.MailListener) {
	s.put("sendPendingMessages:"+account.ID, listener, func() {
		s.sendPendingMessagesSynchronous(context.Background(), account, listener)
	})
}

// sendPendingMessagesSynchronous tries to send every ready message in the
// Outbox. The attempt counter is incremented before the send; auth and
// certificate failures give the attempt back since the message itself was
// never the problem. A message that exhausts its attempts transitions to
// retries-exceeded and is skipped until the state is reset.
func (s *ControllerService) sendPendingMessagesSynchronous(ctx context.Context, account *models.Account, listener interfaces.MailListener) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.sendPendingMessagesSynchronous")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	if account.OutboxFolderID == nil {
		return
	}

	if s.CheckAuthenticationProblem(ctx, account, false) {
		s.log.Warnf("Skipping outbox of account %s: outgoing authentication is not configured", account.ID)
		s.handleAuthenticationFailure(ctx, account, false)
		return
	}

	messages, err := s.localStore.ListMessages(ctx, *account.OutboxFolderID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to list outbox of account %s: %v", account.ID, err)
		return
	}
	if len(messages) == 0 {
		return
	}

	backend, err := s.backends.GetBackend(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.operationFailed(account, "resolving backend", err)
		return
	}

	s.log.Infof("Sending %d pending message(s) for account %s", len(messages), account.ID)
	for _, l := range s.getListeners(listener) {
		l.SendPendingMessagesStarted(account)
	}

	var lastFailure error
	for _, message := range messages {
		if message.HasFlag(enum.FlagDeleted) {
			if err := s.localStore.DestroyMessages(ctx, []string{message.ID}); err != nil {
				tracing.TraceErr(span, err)
			}
			continue
		}
		// A draft that ended up in the Outbox must never be sent.
		if message.HasFlag(enum.FlagDraft) {
			s.log.Warnf("Skipping draft %s found in outbox", message.ID)
			continue
		}

		state, err := s.repositories.OutboxStateRepository.GetOrCreate(ctx, message.ID)
		if err != nil {
			tracing.TraceErr(span, err)
			continue
		}
		if state.SendState != enum.SendStateReady {
			s.log.Debugf("Skipping message %s in send state %s", message.ID, state.SendState)
			lastFailure = fmt.Errorf("message %s is in send state %s", message.ID, state.SendState)
			continue
		}
		if state.Attempts+1 > s.maxSendAttempts {
			s.log.Warnf("Message %s exceeded %d send attempts", message.ID, s.maxSendAttempts)
			if err := s.repositories.OutboxStateRepository.SetSendAttemptsExceeded(ctx, message.ID); err != nil {
				tracing.TraceErr(span, err)
			}
			lastFailure = fmt.Errorf("message %s exceeded the maximum number of send attempts", message.ID)
			continue
		}

		if err := validateRecipients(message); err != nil {
			tracing.TraceErr(span, err)
			if stateErr := s.repositories.OutboxStateRepository.SetSendAttemptError(ctx, message.ID, err.Error()); stateErr != nil {
				tracing.TraceErr(span, stateErr)
			}
			lastFailure = err
			continue
		}

		// The fetched row goes stale once the counter is bumped; remember
		// what this attempt brings the count to.
		attempts := state.Attempts + 1
		if err := s.repositories.OutboxStateRepository.IncrementSendAttempts(ctx, message.ID); err != nil {
			tracing.TraceErr(span, err)
			continue
		}
		if err := s.localStore.SetFlag(ctx, []string{message.ID}, enum.FlagSendInProgress, true); err != nil {
			tracing.TraceErr(span, err)
		}

		sendErr := s.sendOneMessage(ctx, backend, message)

		if err := s.localStore.SetFlag(ctx, []string{message.ID}, enum.FlagSendInProgress, false); err != nil {
			tracing.TraceErr(span, err)
		}

		switch {
		case sendErr == nil:
			if err := s.localStore.SetFlag(ctx, []string{message.ID}, enum.FlagSeen, true); err != nil {
				tracing.TraceErr(span, err)
			}
			if err := s.moveOrDeleteSentMessage(ctx, account, message); err != nil {
				tracing.TraceErr(span, err)
			}
			if err := s.repositories.OutboxStateRepository.Delete(ctx, message.ID); err != nil {
				tracing.TraceErr(span, err)
			}
		case mailerrors.IsAuthenticationError(sendErr):
			tracing.TraceErr(span, sendErr)
			// The attempt never reached the message itself.
			if err := s.repositories.OutboxStateRepository.DecrementSendAttempts(ctx, message.ID); err != nil {
				tracing.TraceErr(span, err)
			}
			s.handleAuthenticationFailure(ctx, account, false)
			lastFailure = sendErr
		case mailerrors.IsCertificateError(sendErr):
			tracing.TraceErr(span, sendErr)
			if err := s.repositories.OutboxStateRepository.DecrementSendAttempts(ctx, message.ID); err != nil {
				tracing.TraceErr(span, err)
			}
			s.notifier.ShowCertificateErrorNotification(ctx, account, false)
			lastFailure = sendErr
		case mailerrors.IsPermanent(sendErr):
			tracing.TraceErr(span, sendErr)
			if err := s.repositories.OutboxStateRepository.SetSendAttemptError(ctx, message.ID, sendErr.Error()); err != nil {
				tracing.TraceErr(span, err)
			}
			lastFailure = sendErr
		default:
			tracing.TraceErr(span, sendErr)
			if attempts >= s.maxSendAttempts {
				s.log.Warnf("Message %s failed its final send attempt (%d of %d)", message.ID, attempts, s.maxSendAttempts)
				if err := s.repositories.OutboxStateRepository.SetSendAttemptsExceeded(ctx, message.ID); err != nil {
					tracing.TraceErr(span, err)
				}
			} else if err := s.repositories.OutboxStateRepository.RecordError(ctx, message.ID, sendErr.Error()); err != nil {
				tracing.TraceErr(span, err)
			}
			lastFailure = sendErr
		}
	}

	if lastFailure != nil {
		s.notifier.ShowSendFailedNotification(ctx, account, lastFailure)
		for _, l := range s.getListeners(listener) {
			l.SendPendingMessagesFailed(account)
		}
		return
	}

	s.notifier.ClearSendFailedNotification(ctx, account)
	for _, l := range s.getListeners(listener) {
		l.SendPendingMessagesCompleted(account)
	}
}

func (s *ControllerService) sendOneMessage(ctx context.Context, backend interfaces.Backend, message *models.Message) error {
	raw, err := s.localStore.GetRawMessage(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to load raw message: %w", err)
	}
	return backend.SendMessage(ctx, raw, message.FromAddress, utils.UniqueEmails(message.ToAddresses))
}

// moveOrDeleteSentMessage moves a sent message into the Sent folder and
// queues its upload, or destroys it when the account keeps no copies.
func (s *ControllerService) moveOrDeleteSentMessage(ctx context.Context, account *models.Account, message *models.Message) error {
	if !account.UploadSentMessages || account.SentFolderID == nil {
		s.log.Debugf("Not uploading sent message %s, deleting local copy", message.ID)
		return s.localStore.DestroyMessages(ctx, []string{message.ID})
	}

	sentFolder, err := s.localStore.GetFolder(ctx, *account.SentFolderID)
	if err != nil {
		return err
	}

	s.log.Debugf("Moving sent message %s to folder %s", message.ID, *account.SentFolderID)
	mapping, err := s.localStore.MoveMessages(ctx, []string{message.ID}, *account.SentFolderID)
	if err != nil {
		return err
	}
	newID, ok := mapping[message.ID]
	if !ok {
		return fmt.Errorf("message %s vanished during move to sent folder", message.ID)
	}
	moved, err := s.localStore.GetMessage(ctx, newID)
	if err != nil {
		return err
	}

	// A Sent folder that only exists locally has no server copy to append to.
	if sentFolder.LocalOnly || sentFolder.ServerID == nil {
		return nil
	}

	err = s.queuePendingCommand(ctx, account, enum.PendingAppend, *account.SentFolderID, models.JSONMap{
		models.PayloadOldUID: moved.UID,
	})
	if err != nil {
		return err
	}
	s.ProcessPendingCommands(account)
	return nil
}

func validateRecipients(message *models.Message) error {
	if len(message.ToAddresses) == 0 {
		return fmt.Errorf("message %s has no recipients", message.ID)
	}
	for _, recipient := range message.ToAddresses {
		validation := mailvalidate.ValidateEmailSyntax(recipient)
		if !validation.IsValid {
			return fmt.Errorf("recipient address %s is not valid", recipient)
		}
	}
	return nil
}
