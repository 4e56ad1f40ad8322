package services

import (
	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/services/controller"
	"github.com/customeros/mailsync/services/events"
	"github.com/customeros/mailsync/services/imapbackend"
	"github.com/customeros/mailsync/services/localstore"
	"github.com/customeros/mailsync/services/notifier"
	"github.com/customeros/mailsync/services/storage"
)

type Services struct {
	EventsService     *events.EventsService
	LocalStore        interfaces.LocalStore
	BackendService    *imapbackend.BackendService
	ControllerService interfaces.ControllerService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	// events
	publisherConfig := &events.PublisherConfig{
		MessageTTL:          events.DefaultMessageTTL,
		MaxRetries:          events.DefaultMaxRetries,
		PublishTimeout:      events.DefaultPublishTimeout,
		ReconnectBackoff:    events.DefaultReconnectBackoff,
		MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
	}

	eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	// raw message storage on R2
	rawStorage := storage.NewR2StorageService(
		cfg.R2StorageConfig.AccountID,
		cfg.R2StorageConfig.AccessKeyID,
		cfg.R2StorageConfig.AccessKeySecret,
		cfg.R2StorageConfig.RawMessageBucket,
		false,
	)

	localStore := localstore.NewLocalStore(repos, rawStorage)
	backendService := imapbackend.NewBackendService(log, repos.MailboxSettingsRepository, localStore)

	controllerService := controller.NewControllerService(
		log,
		&controller.Config{MaxSendAttempts: cfg.AppConfig.MaxSendAttempts},
		repos,
		localStore,
		backendService,
		notifier.NewEventNotifier(log, eventsService.Publisher),
		notifier.NewDefaultNotificationStrategy(),
		notifier.NewDefaultLocalDeleteDecider(),
	)

	services := Services{
		EventsService:     eventsService,
		LocalStore:        localStore,
		BackendService:    backendService,
		ControllerService: controllerService,
	}

	return &services, nil
}
