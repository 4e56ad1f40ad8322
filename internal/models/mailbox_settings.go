package models

import (
	"time"

	"github.com/customeros/mailsync/internal/enum"
)

// MailboxSettings holds the connection parameters for one account's
// backend. Credentials live here, separate from the account row.
type MailboxSettings struct {
	AccountID string `gorm:"column:account_id;type:varchar(50);primaryKey" json:"accountId"`

	ImapServer   string `gorm:"column:imap_server;type:varchar(255);not null" json:"imapServer"`
	ImapPort     int    `gorm:"column:imap_port;not null;default:993" json:"imapPort"`
	ImapTLS      bool   `gorm:"column:imap_tls;not null;default:true" json:"imapTLS"`
	ImapUsername string `gorm:"column:imap_username;type:varchar(255)" json:"imapUsername"`
	ImapPassword string `gorm:"column:imap_password;type:varchar(255)" json:"-"`

	SmtpServer   string             `gorm:"column:smtp_server;type:varchar(255);not null" json:"smtpServer"`
	SmtpPort     int                `gorm:"column:smtp_port;not null;default:587" json:"smtpPort"`
	SmtpSecurity enum.EmailSecurity `gorm:"column:smtp_security;type:varchar(50);not null;default:'startTLS'" json:"smtpSecurity"`
	SmtpUsername string             `gorm:"column:smtp_username;type:varchar(255)" json:"smtpUsername"`
	SmtpPassword string             `gorm:"column:smtp_password;type:varchar(255)" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (MailboxSettings) TableName() string {
	return "mailbox_settings"
}
