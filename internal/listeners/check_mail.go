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

// CheckMailListener triggers a full mail check for an account when a
// CheckMail event arrives on the direct queue.
type CheckMailListener struct {
	events.BaseEventListener
	repositories *repository.Repositories
	controller   interfaces.ControllerService
}

func NewCheckMailListener(
	logger logger.Logger, repos *repository.Repositories, controller interfaces.ControllerService,
) interfaces.EventListener {
	return &CheckMailListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.CheckMail](),
			events.QueueCheckMail,
		),
		repositories: repos,
		controller:   controller,
	}
}

func (l *CheckMailListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CheckMailListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	checkMail, err := events.DecodeEventData[dto.CheckMail](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, checkMail.AccountID)

	account, err := l.repositories.AccountRepository.GetAccount(ctx, checkMail.AccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	l.controller.CheckMail(ctx, account, true, true, nil)
	return nil
}
