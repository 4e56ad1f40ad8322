package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

// fakeLocalStore is an in-memory stand-in for the postgres-backed store.
type fakeLocalStore struct {
	mu        sync.Mutex
	folders   map[string]*models.Folder
	messages  map[string]*models.Message
	order     []string
	raw       map[string][]byte
	destroyed []string
	nextCopy  int
}

func newFakeLocalStore() *fakeLocalStore {
	return &fakeLocalStore{
		folders:  make(map[string]*models.Folder),
		messages: make(map[string]*models.Message),
		raw:      make(map[string][]byte),
	}
}

func (s *fakeLocalStore) addFolder(folder *models.Folder) *models.Folder {
	s.folders[folder.ID] = folder
	return folder
}

func (s *fakeLocalStore) addMessage(message *models.Message) *models.Message {
	s.messages[message.ID] = message
	s.order = append(s.order, message.ID)
	return message
}

func (s *fakeLocalStore) GetFolder(ctx context.Context, folderID string) (*models.Folder, error) {
	folder, ok := s.folders[folderID]
	if !ok {
		return nil, fmt.Errorf("folder %s not found", folderID)
	}
	return folder, nil
}

func (s *fakeLocalStore) GetFolderByServerID(ctx context.Context, accountID, serverID string) (*models.Folder, error) {
	for _, folder := range s.folders {
		if folder.AccountID == accountID && folder.ServerID != nil && *folder.ServerID == serverID {
			return folder, nil
		}
	}
	return nil, fmt.Errorf("folder with server id %s not found", serverID)
}

func (s *fakeLocalStore) ListFolders(ctx context.Context, accountID string) ([]*models.Folder, error) {
	var folders []*models.Folder
	for _, folder := range s.folders {
		if folder.AccountID == accountID {
			folders = append(folders, folder)
		}
	}
	return folders, nil
}

func (s *fakeLocalStore) UpsertRemoteFolders(ctx context.Context, accountID string, remote []interfaces.RemoteFolder) error {
	for _, remoteFolder := range remote {
		if _, err := s.GetFolderByServerID(ctx, accountID, remoteFolder.ServerID); err == nil {
			continue
		}
		serverID := remoteFolder.ServerID
		s.addFolder(&models.Folder{
			ID:        "fld_" + remoteFolder.ServerID,
			AccountID: accountID,
			ServerID:  &serverID,
			Name:      remoteFolder.Name,
		})
	}
	return nil
}

func (s *fakeLocalStore) SetFolderLastChecked(ctx context.Context, folderID string) error { return nil }

func (s *fakeLocalStore) SetFolderVisibleLimit(ctx context.Context, folderID string, limit int) error {
	if folder, ok := s.folders[folderID]; ok {
		folder.VisibleLimit = limit
	}
	return nil
}

func (s *fakeLocalStore) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	message, ok := s.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s not found", messageID)
	}
	return message, nil
}

func (s *fakeLocalStore) GetMessageByUID(ctx context.Context, folderID, uid string) (*models.Message, error) {
	for _, id := range s.order {
		message, ok := s.messages[id]
		if ok && message.FolderID == folderID && message.UID == uid {
			return message, nil
		}
	}
	return nil, fmt.Errorf("message uid %s not found in folder %s", uid, folderID)
}

func (s *fakeLocalStore) GetMessagesByUID(ctx context.Context, folderID string, uids []string) ([]*models.Message, error) {
	var result []*models.Message
	for _, uid := range uids {
		if message, err := s.GetMessageByUID(ctx, folderID, uid); err == nil {
			result = append(result, message)
		}
	}
	return result, nil
}

func (s *fakeLocalStore) GetMessagesByReference(ctx context.Context, folderID string, refs []models.MessageReference) ([]*models.Message, error) {
	var result []*models.Message
	for _, ref := range refs {
		if message, ok := s.messages[ref.MessageID]; ok && message.FolderID == folderID {
			result = append(result, message)
		}
	}
	return result, nil
}

func (s *fakeLocalStore) ListMessages(ctx context.Context, folderID string) ([]*models.Message, error) {
	var result []*models.Message
	for _, id := range s.order {
		message, ok := s.messages[id]
		if ok && message.FolderID == folderID {
			result = append(result, message)
		}
	}
	return result, nil
}

func (s *fakeLocalStore) ListMessagesByThreadRoots(ctx context.Context, accountID string, threadRootIDs []string) ([]*models.Message, error) {
	var result []*models.Message
	for _, id := range s.order {
		message, ok := s.messages[id]
		if !ok || message.AccountID != accountID {
			continue
		}
		for _, root := range threadRootIDs {
			if message.ThreadRootID == root || message.ID == root {
				result = append(result, message)
				break
			}
		}
	}
	return result, nil
}

func (s *fakeLocalStore) FindUIDByMessageIDHeader(ctx context.Context, folderID, messageIDHeader string) (string, error) {
	for _, message := range s.messages {
		if message.FolderID == folderID && message.MessageID == messageIDHeader {
			return message.UID, nil
		}
	}
	return "", fmt.Errorf("no message with message-id %s", messageIDHeader)
}

func (s *fakeLocalStore) SaveMessage(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		s.nextCopy++
		message.ID = fmt.Sprintf("copy_%d", s.nextCopy)
	}
	if _, ok := s.messages[message.ID]; !ok {
		s.order = append(s.order, message.ID)
	}
	s.messages[message.ID] = message
	return nil
}

func (s *fakeLocalStore) SetFlag(ctx context.Context, messageIDs []string, flag enum.Flag, value bool) error {
	for _, id := range messageIDs {
		if message, ok := s.messages[id]; ok {
			message.SetFlag(flag, value)
		}
	}
	return nil
}

func (s *fakeLocalStore) SetFlagByUID(ctx context.Context, folderID string, uids []string, flag enum.Flag, value bool) error {
	for _, uid := range uids {
		if message, err := s.GetMessageByUID(ctx, folderID, uid); err == nil {
			message.SetFlag(flag, value)
		}
	}
	return nil
}

func (s *fakeLocalStore) SetFlagForAllMessages(ctx context.Context, folderID string, flag enum.Flag, value bool) error {
	for _, message := range s.messages {
		if message.FolderID == folderID {
			message.SetFlag(flag, value)
		}
	}
	return nil
}

func (s *fakeLocalStore) SetMessageUID(ctx context.Context, messageID, newUID string) error {
	message, ok := s.messages[messageID]
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	message.UID = newUID
	return nil
}

func (s *fakeLocalStore) MoveMessages(ctx context.Context, messageIDs []string, targetFolderID string) (map[string]string, error) {
	mapping := make(map[string]string, len(messageIDs))
	for _, id := range messageIDs {
		message, ok := s.messages[id]
		if !ok {
			continue
		}
		message.FolderID = targetFolderID
		mapping[id] = id
	}
	return mapping, nil
}

func (s *fakeLocalStore) CopyMessages(ctx context.Context, messageIDs []string, targetFolderID string) (map[string]string, error) {
	mapping := make(map[string]string, len(messageIDs))
	for _, id := range messageIDs {
		original, ok := s.messages[id]
		if !ok {
			continue
		}
		copied := *original
		copied.ID = ""
		copied.FolderID = targetFolderID
		copied.UID = models.NewLocalUID()
		if err := s.SaveMessage(ctx, &copied); err != nil {
			return nil, err
		}
		mapping[id] = copied.ID
	}
	return mapping, nil
}

func (s *fakeLocalStore) DestroyMessages(ctx context.Context, messageIDs []string) error {
	for _, id := range messageIDs {
		delete(s.messages, id)
		s.destroyed = append(s.destroyed, id)
	}
	return nil
}

func (s *fakeLocalStore) DestroyDeletedMessages(ctx context.Context, folderID string, uids []string) error {
	for _, uid := range uids {
		message, err := s.GetMessageByUID(ctx, folderID, uid)
		if err != nil {
			continue
		}
		if message.HasFlag(enum.FlagDeleted) {
			delete(s.messages, message.ID)
			s.destroyed = append(s.destroyed, message.ID)
		}
	}
	return nil
}

func (s *fakeLocalStore) DestroyLocalOnlyMessages(ctx context.Context, folderID string) error {
	for id, message := range s.messages {
		if message.FolderID == folderID && message.HasLocalUID() {
			delete(s.messages, id)
			s.destroyed = append(s.destroyed, id)
		}
	}
	return nil
}

func (s *fakeLocalStore) ClearAllMessages(ctx context.Context, folderID string) error {
	for id, message := range s.messages {
		if message.FolderID == folderID {
			delete(s.messages, id)
			s.destroyed = append(s.destroyed, id)
		}
	}
	return nil
}

func (s *fakeLocalStore) GetRawMessage(ctx context.Context, message *models.Message) ([]byte, error) {
	raw, ok := s.raw[message.ID]
	if !ok {
		return nil, fmt.Errorf("no raw content for message %s", message.ID)
	}
	return raw, nil
}

func (s *fakeLocalStore) StoreRawMessage(ctx context.Context, message *models.Message, raw []byte) error {
	s.raw[message.ID] = raw
	return nil
}

func (s *fakeLocalStore) StoreMessagePart(ctx context.Context, message *models.Message, partID string, data []byte, contentType string) error {
	return nil
}

func (s *fakeLocalStore) Compact(ctx context.Context, accountID string) error { return nil }

// fakePendingCommandRepo keeps the durable command log in a slice, in
// insertion order.
type fakePendingCommandRepo struct {
	mu       sync.Mutex
	nextID   uint64
	commands []*models.PendingCommand
	deleted  []uint64
}

func (r *fakePendingCommandRepo) Create(ctx context.Context, command *models.PendingCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	command.ID = r.nextID
	r.commands = append(r.commands, command)
	return nil
}

func (r *fakePendingCommandRepo) ListForAccount(ctx context.Context, accountID string) ([]*models.PendingCommand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.PendingCommand
	for _, command := range r.commands {
		if command.AccountID == accountID {
			result = append(result, command)
		}
	}
	return result, nil
}

func (r *fakePendingCommandRepo) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.commands[:0]
	for _, command := range r.commands {
		if command.ID != id {
			kept = append(kept, command)
		}
	}
	r.commands = kept
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakePendingCommandRepo) DeleteForAccount(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.commands[:0]
	for _, command := range r.commands {
		if command.AccountID != accountID {
			kept = append(kept, command)
		}
	}
	r.commands = kept
	return nil
}

func (r *fakePendingCommandRepo) CountForAccount(ctx context.Context, accountID string) (int64, error) {
	commands, _ := r.ListForAccount(ctx, accountID)
	return int64(len(commands)), nil
}

// fakeOutboxStateRepo mirrors the repository's state transitions in memory.
type fakeOutboxStateRepo struct {
	states map[string]*models.OutboxState
}

func newFakeOutboxStateRepo() *fakeOutboxStateRepo {
	return &fakeOutboxStateRepo{states: make(map[string]*models.OutboxState)}
}

func (r *fakeOutboxStateRepo) GetOrCreate(ctx context.Context, messageID string) (*models.OutboxState, error) {
	state, ok := r.states[messageID]
	if !ok {
		state = &models.OutboxState{MessageID: messageID, SendState: enum.SendStateReady}
		r.states[messageID] = state
	}
	return state, nil
}

func (r *fakeOutboxStateRepo) IncrementSendAttempts(ctx context.Context, messageID string) error {
	state, _ := r.GetOrCreate(ctx, messageID)
	state.Attempts++
	return nil
}

func (r *fakeOutboxStateRepo) DecrementSendAttempts(ctx context.Context, messageID string) error {
	state, _ := r.GetOrCreate(ctx, messageID)
	state.Attempts--
	return nil
}

func (r *fakeOutboxStateRepo) SetSendAttemptError(ctx context.Context, messageID, errorText string) error {
	state, _ := r.GetOrCreate(ctx, messageID)
	state.SendState = enum.SendStateError
	state.LastError = errorText
	return nil
}

func (r *fakeOutboxStateRepo) SetSendAttemptsExceeded(ctx context.Context, messageID string) error {
	state, _ := r.GetOrCreate(ctx, messageID)
	state.SendState = enum.SendStateRetriesExceeded
	return nil
}

func (r *fakeOutboxStateRepo) RecordError(ctx context.Context, messageID, errorText string) error {
	state, _ := r.GetOrCreate(ctx, messageID)
	state.LastError = errorText
	return nil
}

func (r *fakeOutboxStateRepo) Delete(ctx context.Context, messageID string) error {
	delete(r.states, messageID)
	return nil
}

// fakeAccountRepo serves accounts from a map and records bookkeeping calls.
type fakeAccountRepo struct {
	accounts           map[string]*models.Account
	savedAccounts      []*models.Account
	lastSyncSet        int
	folderListRefreshs int
}

func newFakeAccountRepo(accounts ...*models.Account) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: make(map[string]*models.Account)}
	for _, account := range accounts {
		r.accounts[account.ID] = account
	}
	return r
}

func (r *fakeAccountRepo) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s not found", accountID)
	}
	return account, nil
}

func (r *fakeAccountRepo) GetAccountByUUID(ctx context.Context, accountUUID string) (*models.Account, error) {
	for _, account := range r.accounts {
		if account.UUID == accountUUID {
			return account, nil
		}
	}
	return nil, fmt.Errorf("account uuid %s not found", accountUUID)
}

func (r *fakeAccountRepo) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (r *fakeAccountRepo) SaveAccount(ctx context.Context, account *models.Account) error {
	r.accounts[account.ID] = account
	r.savedAccounts = append(r.savedAccounts, account)
	return nil
}

func (r *fakeAccountRepo) SetLastSyncTime(ctx context.Context, accountID string) error {
	r.lastSyncSet++
	return nil
}

func (r *fakeAccountRepo) SetFolderListRefreshedAt(ctx context.Context, accountID string) error {
	r.folderListRefreshs++
	return nil
}

// backendCall records one invocation crossing the backend boundary.
type backendCall struct {
	op       string
	folder   string
	uids     []string
	flag     enum.Flag
	value    bool
	target   string
	raw      []byte
	from     string
	to       []string
}

// fakeBackend records calls and answers from configurable hooks.
type fakeBackend struct {
	mu    sync.Mutex
	calls []backendCall

	capabilities *interfaces.Capabilities

	sendErr      error
	uploadUID    string
	uploadErr    error
	foundUID     string
	moveResult   map[string]string
	moveErr      error
	deleteErr    error
	setFlagErr   error
	folderList   []interfaces.RemoteFolder
	folderErr    error
	searchResult []string
}

func (b *fakeBackend) record(call backendCall) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *fakeBackend) callsOf(op string) []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var result []backendCall
	for _, call := range b.calls {
		if call.op == op {
			result = append(result, call)
		}
	}
	return result
}

func (b *fakeBackend) Capabilities() interfaces.Capabilities {
	if b.capabilities != nil {
		return *b.capabilities
	}
	return interfaces.Capabilities{
		SupportsMove:    true,
		SupportsCopy:    true,
		SupportsFlags:   true,
		SupportsExpunge: true,
		SupportsUpload:  true,
		SupportsSearch:  true,
	}
}

func (b *fakeBackend) Sync(ctx context.Context, folderServerID string, config interfaces.SyncConfig, listener interfaces.SyncListener) {
	b.record(backendCall{op: "sync", folder: folderServerID})
	listener.SyncStarted(folderServerID)
	listener.SyncFinished(folderServerID)
}

func (b *fakeBackend) RefreshFolderList(ctx context.Context) ([]interfaces.RemoteFolder, error) {
	b.record(backendCall{op: "refreshFolderList"})
	return b.folderList, b.folderErr
}

func (b *fakeBackend) SendMessage(ctx context.Context, raw []byte, from string, to []string) error {
	b.record(backendCall{op: "send", raw: raw, from: from, to: to})
	return b.sendErr
}

func (b *fakeBackend) UploadMessage(ctx context.Context, folderServerID string, raw []byte) (string, error) {
	b.record(backendCall{op: "upload", folder: folderServerID, raw: raw})
	return b.uploadUID, b.uploadErr
}

func (b *fakeBackend) FindUIDByMessageID(ctx context.Context, folderServerID, messageID string) (string, error) {
	b.record(backendCall{op: "findUID", folder: folderServerID})
	return b.foundUID, nil
}

func (b *fakeBackend) MoveMessages(ctx context.Context, sourceServerID, targetServerID string, uids []string) (map[string]string, error) {
	b.record(backendCall{op: "move", folder: sourceServerID, target: targetServerID, uids: uids})
	return b.moveResult, b.moveErr
}

func (b *fakeBackend) CopyMessages(ctx context.Context, sourceServerID, targetServerID string, uids []string) (map[string]string, error) {
	b.record(backendCall{op: "copy", folder: sourceServerID, target: targetServerID, uids: uids})
	return b.moveResult, b.moveErr
}

func (b *fakeBackend) MoveMessagesAndMarkAsRead(ctx context.Context, sourceServerID, targetServerID string, uids []string) (map[string]string, error) {
	b.record(backendCall{op: "moveAndMarkRead", folder: sourceServerID, target: targetServerID, uids: uids})
	return b.moveResult, b.moveErr
}

func (b *fakeBackend) SetFlag(ctx context.Context, folderServerID string, uids []string, flag enum.Flag, value bool) error {
	b.record(backendCall{op: "setFlag", folder: folderServerID, uids: uids, flag: flag, value: value})
	return b.setFlagErr
}

func (b *fakeBackend) MarkAllAsRead(ctx context.Context, folderServerID string) error {
	b.record(backendCall{op: "markAllRead", folder: folderServerID})
	return nil
}

func (b *fakeBackend) DeleteMessages(ctx context.Context, folderServerID string, uids []string) error {
	b.record(backendCall{op: "delete", folder: folderServerID, uids: uids})
	return b.deleteErr
}

func (b *fakeBackend) DeleteAllMessages(ctx context.Context, folderServerID string) error {
	b.record(backendCall{op: "deleteAll", folder: folderServerID})
	return nil
}

func (b *fakeBackend) Expunge(ctx context.Context, folderServerID string) error {
	b.record(backendCall{op: "expunge", folder: folderServerID})
	return nil
}

func (b *fakeBackend) Search(ctx context.Context, folderServerID, query string, requiredFlags, forbiddenFlags []enum.Flag) ([]string, error) {
	b.record(backendCall{op: "search", folder: folderServerID})
	return b.searchResult, nil
}

func (b *fakeBackend) DownloadMessage(ctx context.Context, folderServerID, uid string, partial bool) ([]byte, error) {
	b.record(backendCall{op: "download", folder: folderServerID, uids: []string{uid}})
	return []byte("raw"), nil
}

func (b *fakeBackend) FetchPart(ctx context.Context, folderServerID, uid, partID string) ([]byte, string, error) {
	b.record(backendCall{op: "fetchPart", folder: folderServerID, uids: []string{uid}})
	return []byte("part"), "text/plain", nil
}

type fakeBackendProvider struct {
	backend *fakeBackend
	err     error
}

func (p *fakeBackendProvider) GetBackend(ctx context.Context, accountID string) (interfaces.Backend, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.backend, nil
}

// fakeNotifier counts notification traffic.
type fakeNotifier struct {
	mu                sync.Mutex
	newMail           int
	newMailSilent     int
	removedNewMail    int
	clearedNewMail    int
	sendFailed        int
	sendFailedCleared int
	authErrors        int
	authErrorsCleared int
	certErrors        int
}

func (n *fakeNotifier) ShowFetchingMailNotification(ctx context.Context, account *models.Account, folder *models.Folder) {
}

func (n *fakeNotifier) ClearFetchingMailNotification(ctx context.Context, account *models.Account) {}

func (n *fakeNotifier) AddNewMailNotification(ctx context.Context, account *models.Account, message *models.Message, silent bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newMail++
	if silent {
		n.newMailSilent++
	}
}

func (n *fakeNotifier) RemoveNewMailNotification(ctx context.Context, account *models.Account, ref models.MessageReference) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removedNewMail++
}

func (n *fakeNotifier) ClearNewMailNotifications(ctx context.Context, account *models.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clearedNewMail++
}

func (n *fakeNotifier) ShowSendFailedNotification(ctx context.Context, account *models.Account, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendFailed++
}

func (n *fakeNotifier) ClearSendFailedNotification(ctx context.Context, account *models.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendFailedCleared++
}

func (n *fakeNotifier) ShowAuthenticationErrorNotification(ctx context.Context, account *models.Account, incoming bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.authErrors++
}

func (n *fakeNotifier) ClearAuthenticationErrorNotification(ctx context.Context, account *models.Account, incoming bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.authErrorsCleared++
}

func (n *fakeNotifier) ShowCertificateErrorNotification(ctx context.Context, account *models.Account, incoming bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.certErrors++
}

type alwaysNotifyStrategy struct{}

func (alwaysNotifyStrategy) ShouldNotifyForMessage(account *models.Account, folder *models.Folder, message *models.Message, isOldMessage bool) bool {
	return true
}

type neverDeleteImmediately struct{}

func (neverDeleteImmediately) ShouldDeleteImmediately(account *models.Account, folderID string) bool {
	return false
}

// recordingListener captures fan-out events for assertions.
type recordingListener struct {
	interfaces.NoopListener

	mu     sync.Mutex
	events []string
}

func (l *recordingListener) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingListener) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *recordingListener) SynchronizeMailboxStarted(account *models.Account, folderID string) {
	l.add("started:" + folderID)
}

func (l *recordingListener) SynchronizeMailboxProgress(account *models.Account, folderID string, completed, total int) {
	l.add(fmt.Sprintf("progress:%s:%d/%d", folderID, completed, total))
}

func (l *recordingListener) SynchronizeMailboxFinished(account *models.Account, folderID string) {
	l.add("finished:" + folderID)
}

func (l *recordingListener) SynchronizeMailboxFailed(account *models.Account, folderID, message string) {
	l.add("failed:" + folderID)
}

func (l *recordingListener) MessageUIDChanged(account *models.Account, folderID, oldUID, newUID string) {
	l.add("uidChanged:" + oldUID + ">" + newUID)
}

func (l *recordingListener) OperationFailed(account *models.Account, description string, err error) {
	l.add("operationFailed")
}

func (l *recordingListener) SendPendingMessagesStarted(account *models.Account)   { l.add("sendStarted") }
func (l *recordingListener) SendPendingMessagesCompleted(account *models.Account) { l.add("sendCompleted") }
func (l *recordingListener) SendPendingMessagesFailed(account *models.Account)    { l.add("sendFailed") }

// testEnv bundles a controller wired entirely to fakes.
type testEnv struct {
	svc      *ControllerService
	store    *fakeLocalStore
	backend  *fakeBackend
	provider *fakeBackendProvider
	pending  *fakePendingCommandRepo
	outbox   *fakeOutboxStateRepo
	accounts *fakeAccountRepo
	notifier *fakeNotifier
}

func newTestEnv(accounts ...*models.Account) *testEnv {
	env := &testEnv{
		store:    newFakeLocalStore(),
		backend:  &fakeBackend{},
		pending:  &fakePendingCommandRepo{},
		outbox:   newFakeOutboxStateRepo(),
		accounts: newFakeAccountRepo(accounts...),
		notifier: &fakeNotifier{},
	}
	env.provider = &fakeBackendProvider{backend: env.backend}

	repos := &repository.Repositories{
		AccountRepository:        env.accounts,
		PendingCommandRepository: env.pending,
		OutboxStateRepository:    env.outbox,
	}

	env.svc = NewControllerService(
		getLogger(),
		&Config{MaxSendAttempts: 3},
		repos,
		env.store,
		env.provider,
		env.notifier,
		alwaysNotifyStrategy{},
		neverDeleteImmediately{},
	)
	return env
}

func stringPtr(s string) *string { return &s }

func testAccount(id string) *models.Account {
	return &models.Account{
		ID:                       id,
		UUID:                     "uuid-" + id,
		EmailAddress:             id + "@example.com",
		HasIncomingCredentials:   true,
		HasOutgoingCredentials:   true,
		AutoCheckIntervalMinutes: 15,
		UploadSentMessages:       true,
	}
}
