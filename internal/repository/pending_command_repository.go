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

type pendingCommandRepository struct {
	db *gorm.DB
}

func NewPendingCommandRepository(db *gorm.DB) interfaces.PendingCommandRepository {
	return &pendingCommandRepository{db: db}
}

// Create appends a command to the account's durable replay log. The
// auto-increment primary key fixes the replay order.
func (r *pendingCommandRepository) Create(ctx context.Context, command *models.PendingCommand) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingCommandRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Create(command).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to persist pending command: %w", err)
	}

	return nil
}

// ListForAccount returns all pending commands for the account in insertion
// order.
func (r *pendingCommandRepository) ListForAccount(ctx context.Context, accountID string) ([]*models.PendingCommand, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingCommandRepository.ListForAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var commands []*models.PendingCommand
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id asc").
		Find(&commands).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list pending commands: %w", err)
	}

	return commands, nil
}

func (r *pendingCommandRepository) Delete(ctx context.Context, id uint64) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingCommandRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Delete(&models.PendingCommand{}, id).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete pending command: %w", err)
	}

	return nil
}

func (r *pendingCommandRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingCommandRepository.DeleteForAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.PendingCommand{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete pending commands: %w", err)
	}

	return nil
}

func (r *pendingCommandRepository) CountForAccount(ctx context.Context, accountID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingCommandRepository.CountForAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PendingCommand{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, fmt.Errorf("failed to count pending commands: %w", err)
	}

	return count, nil
}
