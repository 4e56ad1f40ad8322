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

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) interfaces.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.GetMessage")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, messageID)

	var message models.Message
	result := r.db.WithContext(ctx).Where("id = ?", messageID).First(&message)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrMessageNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get message: %w", result.Error)
	}

	return &message, nil
}

func (r *messageRepository) GetMessageByUID(ctx context.Context, folderID, uid string) (*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.GetMessageByUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var message models.Message
	result := r.db.WithContext(ctx).
		Where("folder_id = ? AND uid = ?", folderID, uid).
		First(&message)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrMessageNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get message by uid: %w", result.Error)
	}

	return &message, nil
}

func (r *messageRepository) GetMessagesByUID(ctx context.Context, folderID string, uids []string) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.GetMessagesByUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("folder_id = ? AND uid IN ?", folderID, uids).
		Find(&messages).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get messages by uid: %w", err)
	}

	return messages, nil
}

func (r *messageRepository) GetMessagesByIDs(ctx context.Context, messageIDs []string) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.GetMessagesByIDs")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("id IN ?", messageIDs).
		Find(&messages).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get messages by ids: %w", err)
	}

	return messages, nil
}

func (r *messageRepository) ListByFolder(ctx context.Context, folderID string) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.ListByFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

func (r *messageRepository) ListByThreadRoots(ctx context.Context, accountID string, threadRootIDs []string) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.ListByThreadRoots")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND thread_root_id IN ?", accountID, threadRootIDs).
		Find(&messages).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list messages by thread roots: %w", err)
	}

	return messages, nil
}

func (r *messageRepository) FindByMessageIDHeader(ctx context.Context, folderID, messageIDHeader string) (*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.FindByMessageIDHeader")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var message models.Message
	result := r.db.WithContext(ctx).
		Where("folder_id = ? AND message_id = ?", folderID, messageIDHeader).
		First(&message)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrMessageNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to find message by message-id header: %w", result.Error)
	}

	return &message, nil
}

func (r *messageRepository) Save(ctx context.Context, message *models.Message) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Save(message).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// SetFlag adds or removes a flag on each message row. Array mutation is
// done in SQL so concurrent writers cannot lose flags.
func (r *messageRepository) SetFlag(ctx context.Context, messageIDs []string, flag enum.Flag, value bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.SetFlag")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.flagUpdate(ctx, flag, value).
		Where("id IN ?", messageIDs).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to set flag: %w", err)
	}

	return nil
}

func (r *messageRepository) SetFlagByUID(ctx context.Context, folderID string, uids []string, flag enum.Flag, value bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.SetFlagByUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.flagUpdate(ctx, flag, value).
		Where("folder_id = ? AND uid IN ?", folderID, uids).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to set flag by uid: %w", err)
	}

	return nil
}

func (r *messageRepository) SetFlagForFolder(ctx context.Context, folderID string, flag enum.Flag, value bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.SetFlagForFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.flagUpdate(ctx, flag, value).
		Where("folder_id = ?", folderID).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to set flag for folder: %w", err)
	}

	return nil
}

func (r *messageRepository) flagUpdate(ctx context.Context, flag enum.Flag, value bool) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&models.Message{})
	if value {
		return tx.Updates(map[string]interface{}{
			"flags":      gorm.Expr("array_append(array_remove(flags, ?::text), ?::text)", flag.String(), flag.String()),
			"updated_at": time.Now(),
		})
	}
	return tx.Updates(map[string]interface{}{
		"flags":      gorm.Expr("array_remove(flags, ?::text)", flag.String()),
		"updated_at": time.Now(),
	})
}

func (r *messageRepository) SetUID(ctx context.Context, messageID, newUID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.SetUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"uid":        newUID,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to set message uid: %w", err)
	}

	return nil
}

func (r *messageRepository) SetFolder(ctx context.Context, messageID, folderID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.SetFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"folder_id":  folderID,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to set message folder: %w", err)
	}

	return nil
}

func (r *messageRepository) Delete(ctx context.Context, messageIDs []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Where("id IN ?", messageIDs).
		Delete(&models.Message{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	return nil
}

func (r *messageRepository) DeleteByFolder(ctx context.Context, folderID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.DeleteByFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Delete(&models.Message{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete folder messages: %w", err)
	}

	return nil
}

func (r *messageRepository) DeleteLocalOnly(ctx context.Context, folderID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.DeleteLocalOnly")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Where("folder_id = ? AND uid LIKE ?", folderID, models.LocalUIDPrefix+"%").
		Delete(&models.Message{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete local-only messages: %w", err)
	}

	return nil
}
