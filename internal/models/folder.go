package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/utils"
)

// Folder is one mail folder known to the local store. ServerID may be nil
// only for local-only folders (Outbox, drafts before first upload).
type Folder struct {
	ID        string  `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string  `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`
	ServerID  *string `gorm:"column:server_id;type:varchar(255);index" json:"serverId"`
	Name      string  `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Delimiter string  `gorm:"column:delimiter;type:varchar(10)" json:"delimiter"`
	// Sync policy
	Visible      bool `gorm:"column:visible;not null;default:true" json:"visible"`
	SyncEnabled  bool `gorm:"column:sync_enabled;not null;default:true" json:"syncEnabled"`
	LocalOnly    bool `gorm:"column:local_only;not null;default:false" json:"localOnly"`
	VisibleLimit int  `gorm:"column:visible_limit;not null;default:25" json:"visibleLimit"`
	// Sync bookkeeping
	LastChecked *time.Time `gorm:"column:last_checked;type:timestamp" json:"lastChecked"`
	// Standard timestamps
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Folder) TableName() string {
	return "folders"
}

func (f *Folder) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = utils.GenerateNanoIdWithPrefix("fold", 16)
	}
	return nil
}

func (f *Folder) ServerIDOrEmpty() string {
	return utils.GetOrDefault(f.ServerID, "")
}
