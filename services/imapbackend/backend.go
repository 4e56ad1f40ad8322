package imapbackend

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	mailerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/tracing"
)

// imapFlag maps a message flag onto its IMAP representation.
func imapFlag(flag enum.Flag) string {
	switch flag {
	case enum.FlagSeen:
		return imap.SeenFlag
	case enum.FlagFlagged:
		return imap.FlaggedFlag
	case enum.FlagAnswered:
		return imap.AnsweredFlag
	case enum.FlagDeleted:
		return imap.DeletedFlag
	case enum.FlagDraft:
		return imap.DraftFlag
	case enum.FlagForwarded:
		return "$Forwarded"
	default:
		return ""
	}
}

func flagFromImap(flag string) (enum.Flag, bool) {
	switch flag {
	case imap.SeenFlag:
		return enum.FlagSeen, true
	case imap.FlaggedFlag:
		return enum.FlagFlagged, true
	case imap.AnsweredFlag:
		return enum.FlagAnswered, true
	case imap.DeletedFlag:
		return enum.FlagDeleted, true
	case imap.DraftFlag:
		return enum.FlagDraft, true
	case "$Forwarded":
		return enum.FlagForwarded, true
	default:
		return "", false
	}
}

func parseUIDSet(uids []string) (*imap.SeqSet, error) {
	seqSet := new(imap.SeqSet)
	for _, uid := range uids {
		n, err := strconv.ParseUint(uid, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid uid %q: %w", uid, err)
		}
		seqSet.AddNum(uint32(n))
	}
	return seqSet, nil
}

func formatUID(uid uint32) string {
	return strconv.FormatUint(uint64(uid), 10)
}

// withSelectedFolder runs fn against the pooled client with the folder
// selected. Protocol errors drop the connection so the next call starts
// fresh, and surface as transient unless classified otherwise.
func (b *imapBackend) withSelectedFolder(ctx context.Context, folderServerID string, readOnly bool, fn func(*clientSession) error) error {
	c, err := b.getClient(ctx)
	if err != nil {
		return err
	}

	if _, err := c.Select(folderServerID, readOnly); err != nil {
		b.dropClient()
		return mailerrors.NewTransientError(fmt.Sprintf("failed to select folder %s", folderServerID), err)
	}

	if err := fn(&clientSession{c: c, folder: folderServerID}); err != nil {
		if !mailerrors.IsMailError(err) {
			b.dropClient()
			return mailerrors.NewTransientError(fmt.Sprintf("imap operation failed in folder %s", folderServerID), err)
		}
		return err
	}
	return nil
}

type clientSession struct {
	c      *client.Client
	folder string
}

func (b *imapBackend) RefreshFolderList(ctx context.Context) ([]interfaces.RemoteFolder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.RefreshFolderList")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, b.settings.AccountID)

	c, err := b.getClient(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	mailboxes := make(chan *imap.MailboxInfo, 32)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", mailboxes)
	}()

	var folders []interfaces.RemoteFolder
	for mailbox := range mailboxes {
		noSelect := false
		for _, attr := range mailbox.Attributes {
			if attr == imap.NoSelectAttr {
				noSelect = true
				break
			}
		}
		if noSelect {
			continue
		}
		folders = append(folders, interfaces.RemoteFolder{
			ServerID:  mailbox.Name,
			Name:      mailbox.Name,
			Delimiter: mailbox.Delimiter,
		})
	}
	if err := <-done; err != nil {
		b.dropClient()
		tracing.TraceErr(span, err)
		return nil, mailerrors.NewTransientError("failed to list folders", err)
	}

	return folders, nil
}

// UploadMessage appends the raw message and reports the UID the server
// assigned, found by searching above the pre-append UIDNEXT.
func (b *imapBackend) UploadMessage(ctx context.Context, folderServerID string, raw []byte) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.UploadMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, b.settings.AccountID)

	c, err := b.getClient(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	status, err := c.Select(folderServerID, false)
	if err != nil {
		b.dropClient()
		tracing.TraceErr(span, err)
		return "", mailerrors.NewTransientError(fmt.Sprintf("failed to select folder %s", folderServerID), err)
	}
	uidNext := status.UidNext

	if err := c.Append(folderServerID, nil, time.Now(), bytes.NewBuffer(raw)); err != nil {
		b.dropClient()
		tracing.TraceErr(span, err)
		return "", mailerrors.NewTransientError("failed to append message", err)
	}

	criteria := imap.NewSearchCriteria()
	uidRange := new(imap.SeqSet)
	uidRange.AddRange(uidNext, 0)
	criteria.Uid = uidRange
	uids, err := c.UidSearch(criteria)
	if err != nil || len(uids) == 0 {
		// The append landed; the UID is reconciled on the next sync.
		tracing.TraceErr(span, err)
		return "", nil
	}
	return formatUID(uids[len(uids)-1]), nil
}

func (b *imapBackend) FindUIDByMessageID(ctx context.Context, folderServerID, messageID string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.FindUIDByMessageID")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	var uid string
	err := b.withSelectedFolder(ctx, folderServerID, true, func(session *clientSession) error {
		criteria := imap.NewSearchCriteria()
		criteria.Header.Set("Message-Id", "<"+messageID+">")
		uids, err := session.c.UidSearch(criteria)
		if err != nil {
			return err
		}
		if len(uids) > 0 {
			uid = formatUID(uids[0])
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return uid, nil
}

func (b *imapBackend) MoveMessages(ctx context.Context, sourceServerID, targetServerID string, uids []string) (map[string]string, error) {
	return b.moveOrCopy(ctx, sourceServerID, targetServerID, uids, false, false)
}

func (b *imapBackend) CopyMessages(ctx context.Context, sourceServerID, targetServerID string, uids []string) (map[string]string, error) {
	return b.moveOrCopy(ctx, sourceServerID, targetServerID, uids, true, false)
}

func (b *imapBackend) MoveMessagesAndMarkAsRead(ctx context.Context, sourceServerID, targetServerID string, uids []string) (map[string]string, error) {
	return b.moveOrCopy(ctx, sourceServerID, targetServerID, uids, false, true)
}

// moveOrCopy relocates messages between folders. The server does not
// report the new UIDs without COPYUID support, so the mapping is empty
// and the destination reconciles on its next sync.
func (b *imapBackend) moveOrCopy(ctx context.Context, sourceServerID, targetServerID string, uids []string, copyOnly, markAsRead bool) (map[string]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.moveOrCopy")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, b.settings.AccountID)
	span.SetTag("source", sourceServerID)
	span.SetTag("target", targetServerID)

	seqSet, err := parseUIDSet(uids)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, mailerrors.NewPermanentError("invalid uid set", err)
	}

	err = b.withSelectedFolder(ctx, sourceServerID, false, func(session *clientSession) error {
		if markAsRead {
			item := imap.FormatFlagsOp(imap.AddFlags, true)
			if err := session.c.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
				return err
			}
		}
		if copyOnly {
			return session.c.UidCopy(seqSet, targetServerID)
		}
		return session.c.UidMove(seqSet, targetServerID)
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return map[string]string{}, nil
}

func (b *imapBackend) SetFlag(ctx context.Context, folderServerID string, uids []string, flag enum.Flag, value bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.SetFlag")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	remoteFlag := imapFlag(flag)
	if remoteFlag == "" {
		return nil
	}
	seqSet, err := parseUIDSet(uids)
	if err != nil {
		tracing.TraceErr(span, err)
		return mailerrors.NewPermanentError("invalid uid set", err)
	}

	var op imap.FlagsOp = imap.AddFlags
	if !value {
		op = imap.RemoveFlags
	}

	err = b.withSelectedFolder(ctx, folderServerID, false, func(session *clientSession) error {
		item := imap.FormatFlagsOp(op, true)
		return session.c.UidStore(seqSet, item, []interface{}{remoteFlag}, nil)
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (b *imapBackend) MarkAllAsRead(ctx context.Context, folderServerID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.MarkAllAsRead")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	err := b.withSelectedFolder(ctx, folderServerID, false, func(session *clientSession) error {
		all := new(imap.SeqSet)
		all.AddRange(1, 0)
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		return session.c.Store(all, item, []interface{}{imap.SeenFlag}, nil)
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (b *imapBackend) DeleteMessages(ctx context.Context, folderServerID string, uids []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.DeleteMessages")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	seqSet, err := parseUIDSet(uids)
	if err != nil {
		tracing.TraceErr(span, err)
		return mailerrors.NewPermanentError("invalid uid set", err)
	}

	err = b.withSelectedFolder(ctx, folderServerID, false, func(session *clientSession) error {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := session.c.UidStore(seqSet, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
			return err
		}
		return session.c.Expunge(nil)
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (b *imapBackend) DeleteAllMessages(ctx context.Context, folderServerID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.DeleteAllMessages")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	err := b.withSelectedFolder(ctx, folderServerID, false, func(session *clientSession) error {
		all := new(imap.SeqSet)
		all.AddRange(1, 0)
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := session.c.Store(all, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
			return err
		}
		return session.c.Expunge(nil)
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (b *imapBackend) Expunge(ctx context.Context, folderServerID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.Expunge")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	err := b.withSelectedFolder(ctx, folderServerID, false, func(session *clientSession) error {
		return session.c.Expunge(nil)
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (b *imapBackend) Search(ctx context.Context, folderServerID, query string, requiredFlags, forbiddenFlags []enum.Flag) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.Search")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	criteria := imap.NewSearchCriteria()
	if query != "" {
		criteria.Text = []string{query}
	}
	for _, flag := range requiredFlags {
		if remoteFlag := imapFlag(flag); remoteFlag != "" {
			criteria.WithFlags = append(criteria.WithFlags, remoteFlag)
		}
	}
	for _, flag := range forbiddenFlags {
		if remoteFlag := imapFlag(flag); remoteFlag != "" {
			criteria.WithoutFlags = append(criteria.WithoutFlags, remoteFlag)
		}
	}

	var results []string
	err := b.withSelectedFolder(ctx, folderServerID, true, func(session *clientSession) error {
		uids, err := session.c.UidSearch(criteria)
		if err != nil {
			return err
		}
		// Newest first.
		for i := len(uids) - 1; i >= 0; i-- {
			results = append(results, formatUID(uids[i]))
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return results, nil
}

func (b *imapBackend) DownloadMessage(ctx context.Context, folderServerID, uid string, partial bool) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.DownloadMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("uid", uid)
	span.SetTag("partial", partial)

	seqSet, err := parseUIDSet([]string{uid})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, mailerrors.NewPermanentError("invalid uid", err)
	}

	section := &imap.BodySectionName{Peek: true}
	if partial {
		section.Specifier = imap.HeaderSpecifier
	}

	var raw []byte
	err = b.withSelectedFolder(ctx, folderServerID, true, func(session *clientSession) error {
		messages := make(chan *imap.Message, 1)
		done := make(chan error, 1)
		go func() {
			done <- session.c.UidFetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
		}()
		for message := range messages {
			body := message.GetBody(section)
			if body == nil {
				continue
			}
			var buf bytes.Buffer
			if _, err := buf.ReadFrom(body); err != nil {
				return err
			}
			raw = buf.Bytes()
		}
		return <-done
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if raw == nil {
		return nil, mailerrors.NewPermanentError(fmt.Sprintf("message %s not found on server", uid), nil)
	}
	return raw, nil
}

func (b *imapBackend) FetchPart(ctx context.Context, folderServerID, uid, partID string) ([]byte, string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.FetchPart")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("uid", uid)
	span.SetTag("part", partID)

	seqSet, err := parseUIDSet([]string{uid})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, "", mailerrors.NewPermanentError("invalid uid", err)
	}

	var path []int
	for _, segment := range strings.Split(partID, ".") {
		n, err := strconv.Atoi(segment)
		if err != nil {
			return nil, "", mailerrors.NewPermanentError(fmt.Sprintf("invalid part id %q", partID), err)
		}
		path = append(path, n)
	}
	section := &imap.BodySectionName{Peek: true}
	section.Path = path

	var data []byte
	var contentType string
	err = b.withSelectedFolder(ctx, folderServerID, true, func(session *clientSession) error {
		messages := make(chan *imap.Message, 1)
		done := make(chan error, 1)
		items := []imap.FetchItem{section.FetchItem(), imap.FetchBodyStructure}
		go func() {
			done <- session.c.UidFetch(seqSet, items, messages)
		}()
		for message := range messages {
			body := message.GetBody(section)
			if body != nil {
				var buf bytes.Buffer
				if _, err := buf.ReadFrom(body); err != nil {
					return err
				}
				data = buf.Bytes()
			}
			if message.BodyStructure != nil {
				if part := findBodyPart(message.BodyStructure, path); part != nil {
					contentType = part.MIMEType + "/" + part.MIMESubType
				}
			}
		}
		return <-done
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, "", err
	}
	if data == nil {
		return nil, "", mailerrors.NewPermanentError(fmt.Sprintf("part %s of message %s not found", partID, uid), nil)
	}
	return data, contentType, nil
}

func findBodyPart(structure *imap.BodyStructure, path []int) *imap.BodyStructure {
	part := structure
	for _, index := range path {
		if index < 1 || index > len(part.Parts) {
			return nil
		}
		part = part.Parts[index-1]
	}
	return part
}
