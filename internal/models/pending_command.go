package models

import (
	"time"

	"github.com/customeros/mailsync/internal/enum"
)

// PendingCommand is one deferred remote operation, persisted when the local
// mutation already happened but the backend could not be reached
// synchronously. The auto-increment primary key is the replay order:
// commands for one account must execute in the exact order they were
// enqueued.
type PendingCommand struct {
	ID        uint64                  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AccountID string                  `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`
	Kind      enum.PendingCommandKind `gorm:"column:kind;type:varchar(50);not null" json:"kind"`
	FolderID  string                  `gorm:"column:folder_id;type:varchar(50);not null" json:"folderId"`
	Payload   JSONMap                 `gorm:"column:payload;type:jsonb" json:"payload"`
	CreatedAt time.Time               `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (PendingCommand) TableName() string {
	return "pending_commands"
}

// Payload keys shared by the command builders and the replay handlers.
const (
	PayloadUIDs           = "uids"
	PayloadMessageID      = "messageId"
	PayloadTargetFolderID = "targetFolderId"
	PayloadFlag           = "flag"
	PayloadValue          = "value"
	PayloadUIDMap         = "uidMap"
	PayloadOldUID         = "oldUid"
)

// UIDs tolerates both the in-memory []string form and the []interface{}
// form jsonb decoding produces.
func (c *PendingCommand) UIDs() []string {
	switch raw := c.Payload[PayloadUIDs].(type) {
	case []string:
		return raw
	case []interface{}:
		uids := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				uids = append(uids, s)
			}
		}
		return uids
	default:
		return nil
	}
}

func (c *PendingCommand) UIDMap() map[string]string {
	switch raw := c.Payload[PayloadUIDMap].(type) {
	case map[string]string:
		return raw
	case map[string]interface{}:
		uidMap := make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				uidMap[k] = s
			}
		}
		return uidMap
	default:
		return nil
	}
}

func (c *PendingCommand) StringField(key string) string {
	s, _ := c.Payload[key].(string)
	return s
}

func (c *PendingCommand) BoolField(key string) bool {
	b, _ := c.Payload[key].(bool)
	return b
}
