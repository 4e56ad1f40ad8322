package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

// LocalUIDPrefix marks a locally-synthesized UID assigned before the
// backend has reported a real one.
const LocalUIDPrefix = "local:"

type Message struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`
	FolderID  string `gorm:"column:folder_id;type:varchar(50);index;not null" json:"folderId"`
	UID       string `gorm:"column:uid;type:varchar(255);index;not null" json:"uid"`
	// Envelope
	MessageID    string         `gorm:"column:message_id;type:varchar(998);index" json:"messageId"`
	ThreadRootID string         `gorm:"column:thread_root_id;type:varchar(50);index" json:"threadRootId"`
	Subject      string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	FromAddress  string         `gorm:"column:from_address;type:varchar(255)" json:"fromAddress"`
	ToAddresses  pq.StringArray `gorm:"column:to_addresses;type:text[]" json:"toAddresses"`
	SentAt       *time.Time     `gorm:"column:sent_at;type:timestamp" json:"sentAt"`
	// State
	Flags          pq.StringArray `gorm:"column:flags;type:text[]" json:"flags"`
	IdentityHeader string         `gorm:"column:identity_header;type:text" json:"-"`
	Size           int64          `gorm:"column:size;default:0" json:"size"`
	BodyDownloaded bool           `gorm:"column:body_downloaded;not null;default:false" json:"bodyDownloaded"`
	RawStorageKey  string         `gorm:"column:raw_storage_key;type:varchar(255)" json:"-"`
	// Standard timestamps
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIdWithPrefix("msg", 24)
	}
	if m.UID == "" {
		m.UID = NewLocalUID()
	}
	m.CreatedAt = utils.Now()
	return nil
}

func NewLocalUID() string {
	return LocalUIDPrefix + utils.GenerateNanoId(16)
}

func IsLocalUID(uid string) bool {
	return strings.HasPrefix(uid, LocalUIDPrefix)
}

func (m *Message) HasLocalUID() bool {
	return IsLocalUID(m.UID)
}

func (m *Message) HasFlag(flag enum.Flag) bool {
	return utils.IsStringInSlice(flag.String(), m.Flags)
}

func (m *Message) SetFlag(flag enum.Flag, value bool) {
	if value {
		if !m.HasFlag(flag) {
			m.Flags = append(m.Flags, flag.String())
		}
		return
	}
	kept := m.Flags[:0]
	for _, f := range m.Flags {
		if f != flag.String() {
			kept = append(kept, f)
		}
	}
	m.Flags = kept
}

// Reference identifies a message across the controller boundary without
// holding the row itself.
type MessageReference struct {
	AccountID string `json:"accountId"`
	FolderID  string `json:"folderId"`
	MessageID string `json:"messageId"`
}

func (m *Message) MakeReference() MessageReference {
	return MessageReference{
		AccountID: m.AccountID,
		FolderID:  m.FolderID,
		MessageID: m.ID,
	}
}
