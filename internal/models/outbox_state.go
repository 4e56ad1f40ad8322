package models

import (
	"time"

	"github.com/customeros/mailsync/internal/enum"
)

// OutboxState tracks send attempts for one queued outgoing message.
// Attempts only ever decrease on the explicit rollback after a failure that
// never reached the server; once the maximum is hit the entry transitions
// irreversibly to retries-exceeded.
type OutboxState struct {
	MessageID string         `gorm:"column:message_id;type:varchar(50);primaryKey" json:"messageId"`
	SendState enum.SendState `gorm:"column:send_state;type:varchar(50);not null;default:'ready'" json:"sendState"`
	Attempts  int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError string         `gorm:"column:last_error;type:text" json:"lastError"`
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (OutboxState) TableName() string {
	return "outbox_states"
}
