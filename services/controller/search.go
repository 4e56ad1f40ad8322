package controller

import (
	"bytes"
	"context"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

// SearchRemoteMessages runs a server-side search concurrently with queue
// work. The returned cancel function aborts the search; an aborted search
// still reports finished so listeners always unwind.
func (s *ControllerService) SearchRemoteMessages(accountID, folderID, query string, requiredFlags, forbiddenFlags []enum.Flag, listener interfaces.MailListener) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if previous, ok := s.searchCancels[folderID]; ok {
		previous()
	}
	s.searchCancels[folderID] = cancel
	s.mu.Unlock()

	s.runInPool("searchRemoteMessages:"+folderID, func() {
		defer func() {
			s.mu.Lock()
			delete(s.searchCancels, folderID)
			s.mu.Unlock()
		}()
		s.searchRemoteMessagesSynchronous(ctx, accountID, folderID, query, requiredFlags, forbiddenFlags, listener)
	})

	return cancel
}

func (s *ControllerService) searchRemoteMessagesSynchronous(ctx context.Context, accountID, folderID, query string, requiredFlags, forbiddenFlags []enum.Flag, listener interfaces.MailListener) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.searchRemoteMessagesSynchronous")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, accountID)

	notify := func(fn func(interfaces.MailListener)) {
		for _, l := range s.getListeners(listener) {
			fn(l)
		}
	}

	notify(func(l interfaces.MailListener) { l.RemoteSearchStarted(folderID) })

	account, err := s.repositories.AccountRepository.GetAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		notify(func(l interfaces.MailListener) { l.RemoteSearchFailed(folderID, err) })
		return
	}
	folder, err := s.localStore.GetFolder(ctx, folderID)
	if err != nil || folder.ServerID == nil {
		tracing.TraceErr(span, err)
		notify(func(l interfaces.MailListener) { l.RemoteSearchFailed(folderID, err) })
		return
	}
	backend, err := s.backends.GetBackend(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		notify(func(l interfaces.MailListener) { l.RemoteSearchFailed(folderID, err) })
		return
	}

	uids, err := backend.Search(ctx, *folder.ServerID, query, requiredFlags, forbiddenFlags)
	if err != nil {
		if ctx.Err() != nil {
			notify(func(l interfaces.MailListener) { l.RemoteSearchFinished(folderID, 0, 0, nil) })
			return
		}
		tracing.TraceErr(span, err)
		notify(func(l interfaces.MailListener) { l.RemoteSearchFailed(folderID, err) })
		return
	}

	maxResults := account.RemoteSearchLimit
	notify(func(l interfaces.MailListener) {
		l.RemoteSearchServerQueryComplete(folderID, len(uids), maxResults)
	})

	var extraResults []string
	if maxResults > 0 && len(uids) > maxResults {
		extraResults = uids[maxResults:]
		uids = uids[:maxResults]
	}

	numResults := len(uids)
	for _, uid := range uids {
		if ctx.Err() != nil {
			notify(func(l interfaces.MailListener) { l.RemoteSearchFinished(folderID, 0, 0, nil) })
			return
		}
		if _, err := s.localStore.GetMessageByUID(ctx, folderID, uid); err == nil {
			continue
		}
		if err := s.downloadMessage(ctx, backend, account, folder, uid, true); err != nil {
			tracing.TraceErr(span, err)
			s.log.Warnf("Failed to fetch search result %s: %v", uid, err)
		}
	}

	notify(func(l interfaces.MailListener) {
		l.RemoteSearchFinished(folderID, numResults, maxResults, extraResults)
	})
}

// LoadMessageRemote fetches the complete message body from the server.
func (s *ControllerService) LoadMessageRemote(ctx context.Context, account *models.Account, folderID, uid string, listener interfaces.MailListener) {
	s.loadMessageRemote(account, folderID, uid, false, listener)
}

// LoadMessageRemotePartial fetches only the message structure and the
// first text part, honoring the account's auto-download cap.
func (s *ControllerService) LoadMessageRemotePartial(ctx context.Context, account *models.Account, folderID, uid string, listener interfaces.MailListener) {
	s.loadMessageRemote(account, folderID, uid, true, listener)
}

func (s *ControllerService) loadMessageRemote(account *models.Account, folderID, uid string, partial bool, listener interfaces.MailListener) {
	s.put("loadMessageRemote:"+uid, listener, func() {
		ctx := context.Background()
		err := s.loadMessageRemoteSynchronous(ctx, account, folderID, uid, partial)
		for _, l := range s.getListeners(listener) {
			if err != nil {
				l.LoadMessageRemoteFailed(account, folderID, uid, err)
			} else {
				l.LoadMessageRemoteFinished(account, folderID, uid)
			}
		}
	})
}

func (s *ControllerService) loadMessageRemoteSynchronous(ctx context.Context, account *models.Account, folderID, uid string, partial bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.loadMessageRemoteSynchronous")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	folder, err := s.localStore.GetFolder(ctx, folderID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if folder.ServerID == nil {
		return nil
	}
	backend, err := s.backends.GetBackend(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.downloadMessage(ctx, backend, account, folder, uid, partial); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// downloadMessage fetches one message by UID and upserts the local row
// from the parsed envelope.
func (s *ControllerService) downloadMessage(ctx context.Context, backend interfaces.Backend, account *models.Account, folder *models.Folder, uid string, partial bool) error {
	raw, err := backend.DownloadMessage(ctx, *folder.ServerID, uid, partial)
	if err != nil {
		return err
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	message, err := s.localStore.GetMessageByUID(ctx, folder.ID, uid)
	if err != nil {
		message = &models.Message{
			AccountID: account.ID,
			FolderID:  folder.ID,
			UID:       uid,
		}
	}

	message.Subject = envelope.GetHeader("Subject")
	message.MessageID = strings.Trim(envelope.GetHeader("Message-ID"), "<>")
	if from, err := mail.ParseAddress(envelope.GetHeader("From")); err == nil {
		message.FromAddress = from.Address
	}
	if recipients, err := envelope.AddressList("To"); err == nil {
		addresses := make([]string, 0, len(recipients))
		for _, recipient := range recipients {
			addresses = append(addresses, recipient.Address)
		}
		message.ToAddresses = addresses
	}
	if sentAt, err := mail.ParseDate(envelope.GetHeader("Date")); err == nil {
		message.SentAt = &sentAt
	}
	message.BodyDownloaded = !partial

	if err := s.localStore.SaveMessage(ctx, message); err != nil {
		return err
	}
	return s.localStore.StoreRawMessage(ctx, message, raw)
}

// LoadAttachment fetches one MIME part of a message and stores it next to
// the raw content.
func (s *ControllerService) LoadAttachment(ctx context.Context, account *models.Account, messageID, partID string, listener interfaces.MailListener) {
	s.put("loadAttachment:"+messageID+"/"+partID, listener, func() {
		ctx := context.Background()
		message, err := s.loadAttachmentSynchronous(ctx, account, messageID, partID)
		for _, l := range s.getListeners(listener) {
			if err != nil {
				l.LoadAttachmentFailed(account, message, partID, err)
			} else {
				l.LoadAttachmentFinished(account, message, partID)
			}
		}
	})
}

func (s *ControllerService) loadAttachmentSynchronous(ctx context.Context, account *models.Account, messageID, partID string) (*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.loadAttachmentSynchronous")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	message, err := s.localStore.GetMessage(ctx, messageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	folder, err := s.localStore.GetFolder(ctx, message.FolderID)
	if err != nil {
		tracing.TraceErr(span, err)
		return message, err
	}
	if folder.ServerID == nil {
		return message, errUnsupportedOperation(account, "attachment download from a local folder")
	}
	backend, err := s.backends.GetBackend(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return message, err
	}

	data, contentType, err := backend.FetchPart(ctx, *folder.ServerID, message.UID, partID)
	if err != nil {
		tracing.TraceErr(span, err)
		return message, err
	}
	if err := s.localStore.StoreMessagePart(ctx, message, partID, data, contentType); err != nil {
		tracing.TraceErr(span, err)
		return message, err
	}
	return message, nil
}
