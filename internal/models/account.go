package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

type Account struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UUID         string `gorm:"column:uuid;type:uuid;uniqueIndex;not null" json:"uuid"`
	EmailAddress string `gorm:"column:email_address;type:varchar(255);index;not null" json:"emailAddress"`
	DisplayName  string `gorm:"column:display_name;type:varchar(255)" json:"displayName"`
	// Policies
	DeletePolicy              enum.DeletePolicy `gorm:"column:delete_policy;type:varchar(50);not null;default:'never'" json:"deletePolicy"`
	MarkMessageAsReadOnDelete bool              `gorm:"column:mark_as_read_on_delete;not null;default:false" json:"markMessageAsReadOnDelete"`
	MarkMessageAsReadOnView   bool              `gorm:"column:mark_as_read_on_view;not null;default:true" json:"markMessageAsReadOnView"`
	NotifyOnSync              bool              `gorm:"column:notify_on_sync;not null;default:false" json:"notifyOnSync"`
	UploadSentMessages        bool              `gorm:"column:upload_sent_messages;not null;default:true" json:"uploadSentMessages"`
	AutoCheckIntervalMinutes  int               `gorm:"column:auto_check_interval_minutes;not null;default:15" json:"autoCheckIntervalMinutes"`
	RemoteSearchLimit         int               `gorm:"column:remote_search_limit;not null;default:50" json:"remoteSearchLimit"`
	MaxAutoDownloadSize       int64             `gorm:"column:max_auto_download_size;not null;default:32768" json:"maxAutoDownloadSize"`
	// Special folders, nullable until discovered
	InboxFolderID   *string `gorm:"column:inbox_folder_id;type:varchar(50)" json:"inboxFolderId"`
	OutboxFolderID  *string `gorm:"column:outbox_folder_id;type:varchar(50)" json:"outboxFolderId"`
	SentFolderID    *string `gorm:"column:sent_folder_id;type:varchar(50)" json:"sentFolderId"`
	TrashFolderID   *string `gorm:"column:trash_folder_id;type:varchar(50)" json:"trashFolderId"`
	SpamFolderID    *string `gorm:"column:spam_folder_id;type:varchar(50)" json:"spamFolderId"`
	DraftsFolderID  *string `gorm:"column:drafts_folder_id;type:varchar(50)" json:"draftsFolderId"`
	ArchiveFolderID *string `gorm:"column:archive_folder_id;type:varchar(50)" json:"archiveFolderId"`
	// Authentication state
	IncomingAuthType       enum.AuthType `gorm:"column:incoming_auth_type;type:varchar(50);not null;default:'plain'" json:"incomingAuthType"`
	OutgoingAuthType       enum.AuthType `gorm:"column:outgoing_auth_type;type:varchar(50);not null;default:'plain'" json:"outgoingAuthType"`
	HasIncomingCredentials bool          `gorm:"column:has_incoming_credentials;not null;default:true" json:"hasIncomingCredentials"`
	HasOutgoingCredentials bool          `gorm:"column:has_outgoing_credentials;not null;default:true" json:"hasOutgoingCredentials"`
	OAuthState             *string       `gorm:"column:oauth_state;type:text" json:"-"`
	MigrateToOAuth         bool          `gorm:"column:migrate_to_oauth;not null;default:false" json:"migrateToOAuth"`
	// Sync bookkeeping
	FolderListRefreshedAt *time.Time `gorm:"column:folder_list_refreshed_at;type:timestamp" json:"folderListRefreshedAt"`
	LastSyncAt            *time.Time `gorm:"column:last_sync_at;type:timestamp" json:"lastSyncAt"`
	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIdWithPrefix("acct", 16)
	}
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	return nil
}

func (a *Account) HasTrashFolder() bool {
	return a.TrashFolderID != nil
}

func (a *Account) HasSpamFolder() bool {
	return a.SpamFolderID != nil
}

func (a *Account) HasSentFolder() bool {
	return a.SentFolderID != nil
}

func (a *Account) HasArchiveFolder() bool {
	return a.ArchiveFolderID != nil
}

func (a *Account) IsSpecialFolder(folderID string) bool {
	for _, special := range []*string{a.InboxFolderID, a.OutboxFolderID, a.SentFolderID, a.TrashFolderID, a.SpamFolderID, a.DraftsFolderID, a.ArchiveFolderID} {
		if special != nil && *special == folderID {
			return true
		}
	}
	return false
}
