package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
)

type EventPublisher interface {
	PublishDirectEvent(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}, routingKey string) error
	PublishNotificationEvent(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) error
	Close() error
}

type EventListener interface {
	Handle(ctx context.Context, event any) error
	GetEventType() string
	GetQueueName() string
}

type EventSubscriber interface {
	RegisterListener(listener EventListener)
	ListenQueue(queueName string) error
	ListenQueueExclusive(queueName string) error
	Close() error
}
