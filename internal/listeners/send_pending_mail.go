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

// SendPendingMailListener drains the outbox of an account on request.
type SendPendingMailListener struct {
	events.BaseEventListener
	repositories *repository.Repositories
	controller   interfaces.ControllerService
}

func NewSendPendingMailListener(
	logger logger.Logger, repos *repository.Repositories, controller interfaces.ControllerService,
) interfaces.EventListener {
	return &SendPendingMailListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.SendPendingMail](),
			events.QueueSendPendingMail,
		),
		repositories: repos,
		controller:   controller,
	}
}

func (l *SendPendingMailListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SendPendingMailListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	sendPending, err := events.DecodeEventData[dto.SendPendingMail](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, sendPending.AccountID)

	account, err := l.repositories.AccountRepository.GetAccount(ctx, sendPending.AccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	l.controller.SendPendingMessages(account, nil)
	return nil
}
