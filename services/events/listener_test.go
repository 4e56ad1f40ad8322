package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func validEvent() dto.Event {
	return dto.Event{
		Event: dto.EventDetails{
			Id:        "evt1",
			EntityId:  "acc1",
			EventType: "CheckMail",
			Data:      map[string]interface{}{"accountId": "acc1"},
		},
	}
}

func TestValidateBaseEvent(t *testing.T) {
	base := NewBaseEventListener(getLogger(), "CheckMail", "mailsync-check-mail")
	ctx := context.Background()

	event, err := base.ValidateBaseEvent(ctx, validEvent())
	require.NoError(t, err)
	assert.Equal(t, "acc1", event.Event.EntityId)

	_, err = base.ValidateBaseEvent(ctx, "not an event")
	assert.Error(t, err)

	missingData := validEvent()
	missingData.Event.Data = nil
	_, err = base.ValidateBaseEvent(ctx, missingData)
	assert.Error(t, err)

	missingEntity := validEvent()
	missingEntity.Event.EntityId = ""
	_, err = base.ValidateBaseEvent(ctx, missingEntity)
	assert.Error(t, err)

	missingType := validEvent()
	missingType.Event.EventType = ""
	_, err = base.ValidateBaseEvent(ctx, missingType)
	assert.Error(t, err)
}

func TestDecodeEventData(t *testing.T) {
	event := validEvent()
	decoded, err := DecodeEventData[dto.CheckMail](context.Background(), &event)
	require.NoError(t, err)
	assert.Equal(t, "acc1", decoded.AccountID)

	badShape := validEvent()
	badShape.Event.Data = "not a map"
	_, err = DecodeEventData[dto.CheckMail](context.Background(), &badShape)
	assert.Error(t, err)
}

func TestGetEventType(t *testing.T) {
	assert.Equal(t, "CheckMail", GetEventType[dto.CheckMail]())
	assert.Equal(t, "SyncFolder", GetEventType[*dto.SyncFolder]())
}

func TestBaseEventListenerAccessors(t *testing.T) {
	base := NewBaseEventListener(getLogger(), "SendPendingMail", "mailsync-send-pending")
	assert.Equal(t, "SendPendingMail", base.GetEventType())
	assert.Equal(t, "mailsync-send-pending", base.GetQueueName())
}
