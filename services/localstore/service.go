package localstore

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

// localStore implements interfaces.LocalStore on top of the postgres
// repositories, with raw RFC822 content kept in object storage.
type localStore struct {
	repositories *repository.Repositories
	rawStorage   interfaces.StorageService
}

func NewLocalStore(repositories *repository.Repositories, rawStorage interfaces.StorageService) interfaces.LocalStore {
	return &localStore{
		repositories: repositories,
		rawStorage:   rawStorage,
	}
}

func (s *localStore) GetFolder(ctx context.Context, folderID string) (*models.Folder, error) {
	return s.repositories.FolderRepository.GetFolder(ctx, folderID)
}

func (s *localStore) GetFolderByServerID(ctx context.Context, accountID, serverID string) (*models.Folder, error) {
	return s.repositories.FolderRepository.GetFolderByServerID(ctx, accountID, serverID)
}

func (s *localStore) ListFolders(ctx context.Context, accountID string) ([]*models.Folder, error) {
	return s.repositories.FolderRepository.ListFolders(ctx, accountID)
}

// UpsertRemoteFolders reconciles the folder rows with the backend's folder
// list. Existing rows keep their numeric identity; new remote folders get
// fresh rows. Local-only folders are never touched.
func (s *localStore) UpsertRemoteFolders(ctx context.Context, accountID string, remote []interfaces.RemoteFolder) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localStore.UpsertRemoteFolders")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	existing, err := s.repositories.FolderRepository.ListFolders(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	byServerID := make(map[string]*models.Folder, len(existing))
	for _, folder := range existing {
		if folder.ServerID != nil {
			byServerID[*folder.ServerID] = folder
		}
	}

	for _, remoteFolder := range remote {
		folder, ok := byServerID[remoteFolder.ServerID]
		if !ok {
			serverID := remoteFolder.ServerID
			folder = &models.Folder{
				AccountID: accountID,
				ServerID:  &serverID,
				Name:      remoteFolder.Name,
				Delimiter: remoteFolder.Delimiter,
			}
		} else if folder.Name == remoteFolder.Name && folder.Delimiter == remoteFolder.Delimiter {
			continue
		} else {
			folder.Name = remoteFolder.Name
			folder.Delimiter = remoteFolder.Delimiter
		}
		if err := s.repositories.FolderRepository.SaveFolder(ctx, folder); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	return nil
}

func (s *localStore) SetFolderLastChecked(ctx context.Context, folderID string) error {
	return s.repositories.FolderRepository.SetLastChecked(ctx, folderID)
}

func (s *localStore) SetFolderVisibleLimit(ctx context.Context, folderID string, limit int) error {
	return s.repositories.FolderRepository.SetVisibleLimit(ctx, folderID, limit)
}

func (s *localStore) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	return s.repositories.MessageRepository.GetMessage(ctx, messageID)
}

func (s *localStore) GetMessageByUID(ctx context.Context, folderID, uid string) (*models.Message, error) {
	return s.repositories.MessageRepository.GetMessageByUID(ctx, folderID, uid)
}

func (s *localStore) GetMessagesByUID(ctx context.Context, folderID string, uids []string) ([]*models.Message, error) {
	return s.repositories.MessageRepository.GetMessagesByUID(ctx, folderID, uids)
}

func (s *localStore) GetMessagesByReference(ctx context.Context, folderID string, refs []models.MessageReference) ([]*models.Message, error) {
	messageIDs := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.FolderID == folderID {
			messageIDs = append(messageIDs, ref.MessageID)
		}
	}
	return s.repositories.MessageRepository.GetMessagesByIDs(ctx, messageIDs)
}

func (s *localStore) ListMessages(ctx context.Context, folderID string) ([]*models.Message, error) {
	return s.repositories.MessageRepository.ListByFolder(ctx, folderID)
}

func (s *localStore) ListMessagesByThreadRoots(ctx context.Context, accountID string, threadRootIDs []string) ([]*models.Message, error) {
	return s.repositories.MessageRepository.ListByThreadRoots(ctx, accountID, threadRootIDs)
}

func (s *localStore) FindUIDByMessageIDHeader(ctx context.Context, folderID, messageIDHeader string) (string, error) {
	message, err := s.repositories.MessageRepository.FindByMessageIDHeader(ctx, folderID, utils.NormalizeMessageID(messageIDHeader))
	if err != nil {
		return "", err
	}
	return message.UID, nil
}

func (s *localStore) SaveMessage(ctx context.Context, message *models.Message) error {
	return s.repositories.MessageRepository.Save(ctx, message)
}

func (s *localStore) SetFlag(ctx context.Context, messageIDs []string, flag enum.Flag, value bool) error {
	return s.repositories.MessageRepository.SetFlag(ctx, messageIDs, flag, value)
}

func (s *localStore) SetFlagByUID(ctx context.Context, folderID string, uids []string, flag enum.Flag, value bool) error {
	return s.repositories.MessageRepository.SetFlagByUID(ctx, folderID, uids, flag, value)
}

func (s *localStore) SetFlagForAllMessages(ctx context.Context, folderID string, flag enum.Flag, value bool) error {
	return s.repositories.MessageRepository.SetFlagForFolder(ctx, folderID, flag, value)
}

func (s *localStore) SetMessageUID(ctx context.Context, messageID, newUID string) error {
	return s.repositories.MessageRepository.SetUID(ctx, messageID, newUID)
}

// MoveMessages relocates rows to the target folder. Moved rows keep their
// row identity, so the returned mapping is the identity mapping; it exists
// for symmetry with CopyMessages.
func (s *localStore) MoveMessages(ctx context.Context, messageIDs []string, targetFolderID string) (map[string]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localStore.MoveMessages")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	mapping := make(map[string]string, len(messageIDs))
	for _, messageID := range messageIDs {
		if err := s.repositories.MessageRepository.SetFolder(ctx, messageID, targetFolderID); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		mapping[messageID] = messageID
	}

	return mapping, nil
}

// CopyMessages duplicates rows into the target folder. Copies get fresh
// placeholder UIDs; the real UID arrives with the pending command result.
func (s *localStore) CopyMessages(ctx context.Context, messageIDs []string, targetFolderID string) (map[string]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localStore.CopyMessages")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	originals, err := s.repositories.MessageRepository.GetMessagesByIDs(ctx, messageIDs)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	mapping := make(map[string]string, len(originals))
	for _, original := range originals {
		copied := *original
		copied.ID = ""
		copied.FolderID = targetFolderID
		copied.UID = models.NewLocalUID()
		if err := s.repositories.MessageRepository.Save(ctx, &copied); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		mapping[original.ID] = copied.ID
	}

	return mapping, nil
}

func (s *localStore) DestroyMessages(ctx context.Context, messageIDs []string) error {
	return s.repositories.MessageRepository.Delete(ctx, messageIDs)
}

// DestroyDeletedMessages removes placeholder rows, but only those that
// carry the deleted flag. Anything else is a live message the caller has
// no business destroying.
func (s *localStore) DestroyDeletedMessages(ctx context.Context, folderID string, uids []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localStore.DestroyDeletedMessages")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	messages, err := s.repositories.MessageRepository.GetMessagesByUID(ctx, folderID, uids)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	var doomed []string
	for _, message := range messages {
		if message.HasFlag(enum.FlagDeleted) {
			doomed = append(doomed, message.ID)
		}
	}
	if len(doomed) == 0 {
		return nil
	}

	return s.repositories.MessageRepository.Delete(ctx, doomed)
}

func (s *localStore) DestroyLocalOnlyMessages(ctx context.Context, folderID string) error {
	return s.repositories.MessageRepository.DeleteLocalOnly(ctx, folderID)
}

func (s *localStore) ClearAllMessages(ctx context.Context, folderID string) error {
	return s.repositories.MessageRepository.DeleteByFolder(ctx, folderID)
}

func (s *localStore) GetRawMessage(ctx context.Context, message *models.Message) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localStore.GetRawMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if message.RawStorageKey == "" {
		err := fmt.Errorf("message %s has no stored raw content", message.ID)
		tracing.TraceErr(span, err)
		return nil, err
	}

	return s.rawStorage.Download(ctx, message.RawStorageKey)
}

func (s *localStore) StoreRawMessage(ctx context.Context, message *models.Message, raw []byte) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localStore.StoreRawMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	key := fmt.Sprintf("raw/%s/%s", message.AccountID, message.ID)
	if err := s.rawStorage.Upload(ctx, key, raw, "message/rfc822"); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	message.RawStorageKey = key
	message.Size = int64(len(raw))
	return s.repositories.MessageRepository.Save(ctx, message)
}

func (s *localStore) StoreMessagePart(ctx context.Context, message *models.Message, partID string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localStore.StoreMessagePart")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := fmt.Sprintf("raw/%s/%s/parts/%s.%s", message.AccountID, message.ID, partID, utils.GetFileExtensionFromContentType(contentType))
	if err := s.rawStorage.Upload(ctx, key, data, contentType); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// Compact is a no-op for postgres; space reclamation is the database's
// job. Kept so trash emptying can request it unconditionally.
func (s *localStore) Compact(ctx context.Context, accountID string) error {
	return nil
}
