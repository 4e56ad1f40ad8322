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

type folderRepository struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) interfaces.FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) GetFolder(ctx context.Context, folderID string) (*models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.GetFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, folderID)

	var folder models.Folder
	result := r.db.WithContext(ctx).Where("id = ?", folderID).First(&folder)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrFolderNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get folder: %w", result.Error)
	}

	return &folder, nil
}

func (r *folderRepository) GetFolderByServerID(ctx context.Context, accountID, serverID string) (*models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.GetFolderByServerID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var folder models.Folder
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND server_id = ?", accountID, serverID).
		First(&folder)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrFolderNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get folder by server id: %w", result.Error)
	}

	return &folder, nil
}

func (r *folderRepository) ListFolders(ctx context.Context, accountID string) ([]*models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.ListFolders")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var folders []*models.Folder
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("name asc").
		Find(&folders).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

func (r *folderRepository) SaveFolder(ctx context.Context, folder *models.Folder) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.SaveFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Save(folder).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to save folder: %w", err)
	}

	return nil
}

func (r *folderRepository) SetLastChecked(ctx context.Context, folderID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.SetLastChecked")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Model(&models.Folder{}).
		Where("id = ?", folderID).
		Updates(map[string]interface{}{
			"last_checked": time.Now(),
			"updated_at":   time.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to set folder last checked: %w", err)
	}

	return nil
}

func (r *folderRepository) SetVisibleLimit(ctx context.Context, folderID string, limit int) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.SetVisibleLimit")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Model(&models.Folder{}).
		Where("id = ?", folderID).
		Updates(map[string]interface{}{
			"visible_limit": limit,
			"updated_at":    time.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to set folder visible limit: %w", err)
	}

	return nil
}
