package listeners

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services/events"
)

// SyncFolderListener synchronizes a single folder on request.
type SyncFolderListener struct {
	events.BaseEventListener
	repositories *repository.Repositories
	controller   interfaces.ControllerService
}

func NewSyncFolderListener(
	logger logger.Logger, repos *repository.Repositories, controller interfaces.ControllerService,
) interfaces.EventListener {
	return &SyncFolderListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.SyncFolder](),
			events.QueueSyncFolder,
		),
		repositories: repos,
		controller:   controller,
	}
}

func (l *SyncFolderListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncFolderListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	syncFolder, err := events.DecodeEventData[dto.SyncFolder](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, syncFolder.FolderID)

	account, err := l.repositories.AccountRepository.GetAccount(ctx, syncFolder.AccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	l.controller.SynchronizeMailbox(ctx, account, syncFolder.FolderID, true, nil)
	return nil
}
