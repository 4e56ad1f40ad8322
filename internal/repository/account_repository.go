package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) interfaces.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, accountID)

	var account models.Account
	result := r.db.WithContext(ctx).Where("id = ?", accountID).First(&account)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrAccountNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get account: %w", result.Error)
	}

	return &account, nil
}

func (r *accountRepository) GetAccountByUUID(ctx context.Context, accountUUID string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetAccountByUUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var account models.Account
	result := r.db.WithContext(ctx).Where("uuid = ?", accountUUID).First(&account)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrAccountNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get account by uuid: %w", result.Error)
	}

	return &account, nil
}

func (r *accountRepository) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.ListAccounts")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.Account
	if err := r.db.WithContext(ctx).Find(&accounts).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	return accounts, nil
}

func (r *accountRepository) SaveAccount(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.SaveAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, account.ID)

	if err := r.db.WithContext(ctx).Save(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

func (r *accountRepository) SetLastSyncTime(ctx context.Context, accountID string) error {
	return r.setTimestamp(ctx, "accountRepository.SetLastSyncTime", accountID, "last_sync_at")
}

func (r *accountRepository) SetFolderListRefreshedAt(ctx context.Context, accountID string) error {
	return r.setTimestamp(ctx, "accountRepository.SetFolderListRefreshedAt", accountID, "folder_list_refreshed_at")
}

func (r *accountRepository) setTimestamp(ctx context.Context, operationName, accountID, column string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, operationName)
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, accountID)

	err := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			column:       time.Now(),
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update account timestamp: %w", err)
	}

	return nil
}
