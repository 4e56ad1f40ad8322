package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type mailboxSettingsRepository struct {
	db *gorm.DB
}

func NewMailboxSettingsRepository(db *gorm.DB) interfaces.MailboxSettingsRepository {
	return &mailboxSettingsRepository{db: db}
}

func (r *mailboxSettingsRepository) GetByAccountID(ctx context.Context, accountID string) (*models.MailboxSettings, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxSettingsRepository.GetByAccountID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, accountID)

	var settings models.MailboxSettings
	result := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&settings)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrMailboxSettingsNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get mailbox settings: %w", result.Error)
	}

	return &settings, nil
}

func (r *mailboxSettingsRepository) Save(ctx context.Context, settings *models.MailboxSettings) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxSettingsRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, settings.AccountID)

	if err := r.db.WithContext(ctx).Save(settings).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to save mailbox settings: %w", err)
	}

	return nil
}

func (r *mailboxSettingsRepository) Delete(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxSettingsRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, accountID)

	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.MailboxSettings{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete mailbox settings: %w", err)
	}

	return nil
}
