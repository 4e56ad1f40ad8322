package controller

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

// folderGroup is one account/folder slice of a bulk operation.
type folderGroup struct {
	account  *models.Account
	folderID string
	messages []*models.Message
}

// groupByAccountAndFolder resolves bulk references into per-folder groups
// so each group runs as its own unit of work. References that no longer
// resolve are silently dropped.
func (s *ControllerService) groupByAccountAndFolder(ctx context.Context, refs []models.MessageReference) []*folderGroup {
	accounts := make(map[string]*models.Account)
	groups := make(map[string]*folderGroup)
	order := make([]string, 0, len(refs))

	for _, ref := range refs {
		account, ok := accounts[ref.AccountID]
		if !ok {
			var err error
			account, err = s.repositories.AccountRepository.GetAccount(ctx, ref.AccountID)
			if err != nil {
				s.log.Warnf("Dropping reference to unknown account %s: %v", ref.AccountID, err)
				continue
			}
			accounts[ref.AccountID] = account
		}

		message, err := s.localStore.GetMessage(ctx, ref.MessageID)
		if err != nil {
			s.log.Warnf("Dropping reference to unknown message %s: %v", ref.MessageID, err)
			continue
		}

		key := ref.AccountID + "/" + ref.FolderID
		group, ok := groups[key]
		if !ok {
			group = &folderGroup{account: account, folderID: ref.FolderID}
			groups[key] = group
			order = append(order, key)
		}
		group.messages = append(group.messages, message)
	}

	result := make([]*folderGroup, 0, len(order))
	for _, key := range order {
		result = append(result, groups[key])
	}
	return result
}

func messageIDs(messages []*models.Message) []string {
	ids := make([]string, 0, len(messages))
	for _, message := range messages {
		ids = append(ids, message.ID)
	}
	return ids
}

func messageUIDs(messages []*models.Message) []string {
	uids := make([]string, 0, len(messages))
	for _, message := range messages {
		uids = append(uids, message.UID)
	}
	return uids
}

// SetFlag applies a flag change to the referenced messages. The overlay
// is written immediately so readers see the change before any durable
// write lands; the rest happens on the queue.
func (s *ControllerService) SetFlag(ctx context.Context, refs []models.MessageReference, flag enum.Flag, value bool) {
	for _, group := range s.groupByAccountAndFolder(ctx, refs) {
		group := group
		s.cache.SetFlagForMessages(group.account.ID, messageIDs(group.messages), flag, value)
		s.putBackground("setFlag:"+group.folderID, nil, func() {
			s.setFlagSynchronous(context.Background(), group.account, group.folderID, group.messages, flag, value)
		})
	}
}

func (s *ControllerService) setFlagSynchronous(ctx context.Context, account *models.Account, folderID string, messages []*models.Message, flag enum.Flag, value bool) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.setFlagSynchronous")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	ids := messageIDs(messages)
	if err := s.localStore.SetFlag(ctx, ids, flag, value); err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to set flag %s locally: %v", flag, err)
		return
	}
	// The durable write is in; the overlay entry is no longer needed.
	s.cache.RemoveFlagForMessages(account.ID, ids, flag)

	if !enum.IsSyncFlag(flag) {
		return
	}
	folder, err := s.localStore.GetFolder(ctx, folderID)
	if err != nil || folder.LocalOnly {
		return
	}

	err = s.queuePendingCommand(ctx, account, enum.PendingSetFlag, folderID, models.JSONMap{
		models.PayloadUIDs:  messageUIDs(messages),
		models.PayloadFlag:  string(flag),
		models.PayloadValue: value,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to queue flag change: %v", err)
		return
	}
	s.ProcessPendingCommands(account)
}

// SetFlagForThreads expands the thread roots to every message in those
// threads, then applies the flag change message-wise.
func (s *ControllerService) SetFlagForThreads(ctx context.Context, accountID string, threadRootIDs []string, flag enum.Flag, value bool) {
	messages, err := s.localStore.ListMessagesByThreadRoots(ctx, accountID, threadRootIDs)
	if err != nil {
		s.log.Errorf("Failed to expand threads for account %s: %v", accountID, err)
		return
	}
	refs := make([]models.MessageReference, 0, len(messages))
	for _, message := range messages {
		refs = append(refs, message.MakeReference())
	}
	s.SetFlag(ctx, refs, flag, value)
}

// MarkAllMessagesRead marks the whole folder read locally and defers the
// same operation to the backend.
func (s *ControllerService) MarkAllMessagesRead(ctx context.Context, account *models.Account, folderID string) {
	s.putBackground("markAllMessagesRead:"+folderID, nil, func() {
		ctx := context.Background()
		if err := s.localStore.SetFlagForAllMessages(ctx, folderID, enum.FlagSeen, true); err != nil {
			s.log.Errorf("Failed to mark folder %s read: %v", folderID, err)
			return
		}
		folder, err := s.localStore.GetFolder(ctx, folderID)
		if err != nil || folder.LocalOnly {
			return
		}
		if err := s.queuePendingCommand(ctx, account, enum.PendingMarkAllAsRead, folderID, models.JSONMap{}); err != nil {
			s.log.Errorf("Failed to queue mark-all-read: %v", err)
			return
		}
		s.ProcessPendingCommands(account)
	})
}
