package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
)

type Repositories struct {
	AccountRepository         interfaces.AccountRepository
	FolderRepository          interfaces.FolderRepository
	MessageRepository         interfaces.MessageRepository
	PendingCommandRepository  interfaces.PendingCommandRepository
	OutboxStateRepository     interfaces.OutboxStateRepository
	MailboxSettingsRepository interfaces.MailboxSettingsRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		AccountRepository:         NewAccountRepository(db),
		FolderRepository:          NewFolderRepository(db),
		MessageRepository:         NewMessageRepository(db),
		PendingCommandRepository:  NewPendingCommandRepository(db),
		OutboxStateRepository:     NewOutboxStateRepository(db),
		MailboxSettingsRepository: NewMailboxSettingsRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Account{},
		&models.Folder{},
		&models.Message{},
		&models.PendingCommand{},
		&models.OutboxState{},
		&models.MailboxSettings{},
	)

	sqlDB.Close()

	sqlDB, _ = db.DB()
	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
