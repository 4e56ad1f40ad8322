package imapbackend

import (
	"context"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

const (
	connectTimeout = 30 * time.Second
	logoutTimeout  = 5 * time.Second
)

// BackendService hands out IMAP/SMTP backends per account and owns the
// pooled connections. One account maps to at most one cached IMAP client;
// a broken connection is dropped and re-dialed on the next use.
type BackendService struct {
	log        logger.Logger
	settings   interfaces.MailboxSettingsRepository
	localStore interfaces.LocalStore

	clientsMutex sync.RWMutex
	clients      map[string]*client.Client
}

func NewBackendService(log logger.Logger, settings interfaces.MailboxSettingsRepository, localStore interfaces.LocalStore) *BackendService {
	return &BackendService{
		log:        log,
		settings:   settings,
		localStore: localStore,
		clients:    make(map[string]*client.Client),
	}
}

// GetBackend resolves the backend for an account. The settings row is
// read fresh each time so credential changes take effect without a
// restart.
func (s *BackendService) GetBackend(ctx context.Context, accountID string) (interfaces.Backend, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BackendService.GetBackend")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, accountID)

	settings, err := s.settings.GetByAccountID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &imapBackend{
		service:    s,
		settings:   settings,
		localStore: s.localStore,
		log:        s.log,
	}, nil
}

// Stop disconnects every pooled client.
func (s *BackendService) Stop() {
	s.clientsMutex.Lock()
	clients := s.clients
	s.clients = make(map[string]*client.Client)
	s.clientsMutex.Unlock()

	for accountID, c := range clients {
		s.log.Infof("Disconnecting IMAP client for account %s", accountID)
		c.Timeout = logoutTimeout
		_ = c.Logout()
	}
}

// imapBackend is the per-account view over the pooled connections. It
// carries the settings snapshot the caller resolved.
type imapBackend struct {
	service    *BackendService
	settings   *models.MailboxSettings
	localStore interfaces.LocalStore
	log        logger.Logger
}

func (b *imapBackend) Capabilities() interfaces.Capabilities {
	return interfaces.Capabilities{
		SupportsMove:        true,
		SupportsCopy:        true,
		SupportsFlags:       true,
		SupportsExpunge:     true,
		SupportsUpload:      true,
		SupportsTrashFolder: true,
		SupportsSearch:      true,
		IsPushCapable:       false,
	}
}
