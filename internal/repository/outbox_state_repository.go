package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type outboxStateRepository struct {
	db *gorm.DB
}

func NewOutboxStateRepository(db *gorm.DB) interfaces.OutboxStateRepository {
	return &outboxStateRepository{db: db}
}

func (r *outboxStateRepository) GetOrCreate(ctx context.Context, messageID string) (*models.OutboxState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "outboxStateRepository.GetOrCreate")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var state models.OutboxState
	result := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&state)
	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			tracing.TraceErr(span, result.Error)
			return nil, fmt.Errorf("failed to get outbox state: %w", result.Error)
		}
		state = models.OutboxState{
			MessageID: messageID,
			SendState: enum.SendStateReady,
		}
		if err := r.db.WithContext(ctx).Create(&state).Error; err != nil {
			tracing.TraceErr(span, err)
			return nil, fmt.Errorf("failed to create outbox state: %w", err)
		}
	}

	return &state, nil
}

// IncrementSendAttempts runs before each send attempt. The paired decrement
// happens only when the attempt never reached the server.
func (r *outboxStateRepository) IncrementSendAttempts(ctx context.Context, messageID string) error {
	return r.adjustAttempts(ctx, "outboxStateRepository.IncrementSendAttempts", messageID, +1)
}

func (r *outboxStateRepository) DecrementSendAttempts(ctx context.Context, messageID string) error {
	return r.adjustAttempts(ctx, "outboxStateRepository.DecrementSendAttempts", messageID, -1)
}

func (r *outboxStateRepository) adjustAttempts(ctx context.Context, operationName, messageID string, delta int) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, operationName)
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Model(&models.OutboxState{}).
		Where("message_id = ?", messageID).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + ?", delta),
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to adjust send attempts: %w", err)
	}

	return nil
}

// SetSendAttemptError marks the entry terminally errored.
func (r *outboxStateRepository) SetSendAttemptError(ctx context.Context, messageID, errorText string) error {
	return r.setState(ctx, "outboxStateRepository.SetSendAttemptError", messageID, enum.SendStateError, errorText)
}

func (r *outboxStateRepository) SetSendAttemptsExceeded(ctx context.Context, messageID string) error {
	return r.setState(ctx, "outboxStateRepository.SetSendAttemptsExceeded", messageID, enum.SendStateRetriesExceeded, "")
}

// RecordError keeps the entry READY but remembers the failure text.
func (r *outboxStateRepository) RecordError(ctx context.Context, messageID, errorText string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "outboxStateRepository.RecordError")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Model(&models.OutboxState{}).
		Where("message_id = ?", messageID).
		Updates(map[string]interface{}{
			"last_error": errorText,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to record outbox error: %w", err)
	}

	return nil
}

func (r *outboxStateRepository) setState(ctx context.Context, operationName, messageID string, state enum.SendState, errorText string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, operationName)
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	updates := map[string]interface{}{
		"send_state": state,
		"updated_at": time.Now(),
	}
	if errorText != "" {
		updates["last_error"] = errorText
	}

	err := r.db.WithContext(ctx).
		Model(&models.OutboxState{}).
		Where("message_id = ?", messageID).
		Updates(updates).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update outbox state: %w", err)
	}

	return nil
}

func (r *outboxStateRepository) Delete(ctx context.Context, messageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "outboxStateRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Delete(&models.OutboxState{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete outbox state: %w", err)
	}

	return nil
}
