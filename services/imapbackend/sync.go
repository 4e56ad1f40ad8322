package imapbackend

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

// Sync reconciles one folder: prunes rows the server no longer has,
// downloads new messages up to the visible limit, and mirrors remote flag
// changes onto local rows. Every outcome is reported through the
// listener; Sync itself never returns an error.
func (b *imapBackend) Sync(ctx context.Context, folderServerID string, config interfaces.SyncConfig, listener interfaces.SyncListener) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.Sync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, b.settings.AccountID)
	span.SetTag("folder", folderServerID)

	listener.SyncStarted(folderServerID)

	c, err := b.getClient(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		listener.SyncFailed(folderServerID, "failed to connect", err)
		return
	}
	listener.SyncAuthenticationSuccess()

	status, err := c.Select(folderServerID, false)
	if err != nil {
		b.dropClient()
		tracing.TraceErr(span, err)
		listener.SyncFailed(folderServerID, fmt.Sprintf("failed to select folder %s", folderServerID), err)
		return
	}

	folder, err := b.localStore.GetFolderByServerID(ctx, b.settings.AccountID, folderServerID)
	if err != nil {
		tracing.TraceErr(span, err)
		listener.SyncFailed(folderServerID, "folder is not tracked locally", err)
		return
	}

	remoteUIDs, err := b.fetchRemoteUIDs(c, config.VisibleLimit)
	if err != nil {
		b.dropClient()
		tracing.TraceErr(span, err)
		listener.SyncFailed(folderServerID, "failed to list server messages", err)
		return
	}
	span.LogFields(tracingLog.Int("remote_messages", len(remoteUIDs)))

	local, err := b.localStore.ListMessages(ctx, folder.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		listener.SyncFailed(folderServerID, "failed to list local messages", err)
		return
	}

	remoteSet := make(map[string]struct{}, len(remoteUIDs))
	for _, uid := range remoteUIDs {
		remoteSet[uid] = struct{}{}
	}
	localByUID := make(map[string]*models.Message, len(local))
	for _, message := range local {
		localByUID[message.UID] = message
	}

	if config.SyncRemoteDeletions {
		b.syncRemovedMessages(ctx, folderServerID, folder, local, remoteSet, listener)
	}

	var newUIDs, knownUIDs []string
	for _, uid := range remoteUIDs {
		if _, ok := localByUID[uid]; ok {
			knownUIDs = append(knownUIDs, uid)
		} else {
			newUIDs = append(newUIDs, uid)
		}
	}

	if err := b.syncNewMessages(ctx, c, folderServerID, folder, newUIDs, int(status.Messages), config, listener); err != nil {
		b.dropClient()
		tracing.TraceErr(span, err)
		listener.SyncFailed(folderServerID, "failed to download new messages", err)
		return
	}

	if err := b.syncFlags(ctx, c, folderServerID, folder, knownUIDs, localByUID, listener); err != nil {
		b.dropClient()
		tracing.TraceErr(span, err)
		listener.SyncFailed(folderServerID, "failed to sync message flags", err)
		return
	}

	b.log.Infof("Account %s synced folder %s: %d new, %d known", b.settings.AccountID, folderServerID, len(newUIDs), len(knownUIDs))
	listener.SyncFinished(folderServerID)
}

// fetchRemoteUIDs returns the newest UIDs in the selected folder, capped
// by the visible limit.
func (b *imapBackend) fetchRemoteUIDs(c imapSearcher, visibleLimit int) ([]string, error) {
	uids, err := c.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return nil, err
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if visibleLimit > 0 && len(uids) > visibleLimit {
		uids = uids[len(uids)-visibleLimit:]
	}

	result := make([]string, 0, len(uids))
	for _, uid := range uids {
		result = append(result, formatUID(uid))
	}
	return result, nil
}

type imapSearcher interface {
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
}

func (b *imapBackend) syncRemovedMessages(ctx context.Context, folderServerID string, folder *models.Folder, local []*models.Message, remoteSet map[string]struct{}, listener interfaces.SyncListener) {
	var doomed []string
	for _, message := range local {
		if message.HasLocalUID() {
			continue
		}
		if _, ok := remoteSet[message.UID]; ok {
			continue
		}
		doomed = append(doomed, message.ID)
		listener.SyncRemovedMessage(folderServerID, message.UID)
	}
	if len(doomed) == 0 {
		return
	}
	if err := b.localStore.DestroyMessages(ctx, doomed); err != nil {
		b.log.Errorf("Account %s failed to prune %d removed message(s): %v", b.settings.AccountID, len(doomed), err)
	}
}

// syncNewMessages downloads envelopes for every new UID, then full bodies
// for the ones under the auto-download cap.
func (b *imapBackend) syncNewMessages(ctx context.Context, c imapFetcher, folderServerID string, folder *models.Folder, newUIDs []string, totalMessagesInMailbox int, config interfaces.SyncConfig, listener interfaces.SyncListener) error {
	listener.SyncHeadersStarted(folderServerID)
	if len(newUIDs) == 0 {
		listener.SyncHeadersFinished(folderServerID, totalMessagesInMailbox, 0)
		return nil
	}

	seqSet, err := parseUIDSet(newUIDs)
	if err != nil {
		return err
	}

	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, imap.FetchEnvelope, imap.FetchRFC822Size}
	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var fetched []*imap.Message
	completed := 0
	for message := range messages {
		fetched = append(fetched, message)
		completed++
		listener.SyncHeadersProgress(folderServerID, completed, len(newUIDs))
	}
	if err := <-done; err != nil {
		return err
	}

	numNew := 0
	for _, remote := range fetched {
		message := b.messageFromEnvelope(folder, remote)
		if err := b.localStore.SaveMessage(ctx, message); err != nil {
			b.log.Errorf("Account %s failed to save message uid %d: %v", b.settings.AccountID, remote.Uid, err)
			continue
		}
		numNew++

		if config.MaxAutoDownloadSize <= 0 || int64(remote.Size) <= config.MaxAutoDownloadSize {
			if err := b.downloadBody(ctx, c, message, remote.Uid); err != nil {
				b.log.Errorf("Account %s failed to download body of uid %d: %v", b.settings.AccountID, remote.Uid, err)
			}
		}

		isOldMessage := message.SentAt != nil && time.Since(*message.SentAt) > 24*time.Hour
		listener.SyncNewMessage(folderServerID, message.UID, isOldMessage)
	}

	listener.SyncHeadersFinished(folderServerID, totalMessagesInMailbox, numNew)
	return nil
}

type imapFetcher interface {
	UidFetch(seqSet *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
}

func (b *imapBackend) messageFromEnvelope(folder *models.Folder, remote *imap.Message) *models.Message {
	message := &models.Message{
		AccountID: b.settings.AccountID,
		FolderID:  folder.ID,
		UID:       formatUID(remote.Uid),
		Size:      int64(remote.Size),
	}

	for _, flag := range remote.Flags {
		if local, ok := flagFromImap(flag); ok {
			message.SetFlag(local, true)
		}
	}

	envelope := remote.Envelope
	if envelope == nil {
		return message
	}
	message.Subject = envelope.Subject
	message.MessageID = utils.NormalizeMessageID(envelope.MessageId)
	if envelope.InReplyTo != "" {
		message.ThreadRootID = utils.NormalizeMessageID(envelope.InReplyTo)
	} else {
		message.ThreadRootID = message.MessageID
	}
	if !envelope.Date.IsZero() {
		sentAt := envelope.Date.UTC()
		message.SentAt = &sentAt
	}
	if len(envelope.From) > 0 {
		message.FromAddress = envelope.From[0].Address()
	}
	for _, to := range envelope.To {
		message.ToAddresses = append(message.ToAddresses, to.Address())
	}
	return message
}

func (b *imapBackend) downloadBody(ctx context.Context, c imapFetcher, message *models.Message, uid uint32) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var raw []byte
	for remote := range messages {
		body := remote.GetBody(section)
		if body == nil {
			continue
		}
		data, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		raw = data
	}
	if err := <-done; err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("no body returned for uid %d", uid)
	}

	message.BodyDownloaded = true
	return b.localStore.StoreRawMessage(ctx, message, raw)
}

// syncFlags mirrors server-side flag state onto local rows.
func (b *imapBackend) syncFlags(ctx context.Context, c imapFetcher, folderServerID string, folder *models.Folder, knownUIDs []string, localByUID map[string]*models.Message, listener interfaces.SyncListener) error {
	if len(knownUIDs) == 0 {
		return nil
	}
	seqSet, err := parseUIDSet(knownUIDs)
	if err != nil {
		return err
	}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, []imap.FetchItem{imap.FetchUid, imap.FetchFlags}, messages)
	}()

	completed := 0
	for remote := range messages {
		completed++
		listener.SyncProgress(folderServerID, completed, len(knownUIDs))

		local, ok := localByUID[formatUID(remote.Uid)]
		if !ok {
			continue
		}

		remoteFlags := make(map[enum.Flag]bool)
		for _, flag := range remote.Flags {
			if f, ok := flagFromImap(flag); ok {
				remoteFlags[f] = true
			}
		}

		changed := false
		for _, flag := range enum.SyncFlags {
			if remoteFlags[flag] != local.HasFlag(flag) {
				if err := b.localStore.SetFlag(ctx, []string{local.ID}, flag, remoteFlags[flag]); err != nil {
					b.log.Errorf("Account %s failed to update flag %s on %s: %v", b.settings.AccountID, flag, local.ID, err)
					continue
				}
				local.SetFlag(flag, remoteFlags[flag])
				changed = true
			}
		}
		if remoteFlags[enum.FlagDeleted] && !local.HasFlag(enum.FlagDeleted) {
			if err := b.localStore.SetFlag(ctx, []string{local.ID}, enum.FlagDeleted, true); err == nil {
				local.SetFlag(enum.FlagDeleted, true)
				changed = true
			}
		}
		if changed {
			listener.SyncFlagChanged(folderServerID, local.UID)
		}
	}
	return <-done
}
