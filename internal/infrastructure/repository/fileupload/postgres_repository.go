// Package fileupload persists provider file upload records.
package fileupload

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"assistant-api/internal/domain/attachment"
	"assistant-api/internal/infrastructure/database/entities"
)

// Repository persists upload tracking records.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a file upload repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ attachment.Uploads = (*Repository)(nil)

// CountForThread counts the uploads recorded for a thread.
func (r *Repository) CountForThread(ctx context.Context, threadID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.FileUpload{}).
		Where("thread_id = ?", threadID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count uploads: %w", err)
	}
	return count, nil
}

// Record inserts one upload record.
func (r *Repository) Record(ctx context.Context, rec attachment.UploadRecord) error {
	if err := r.db.WithContext(ctx).Create(entities.NewSchemaFileUpload(rec)).Error; err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// ForVectorStore lists the uploads attached to a store.
func (r *Repository) ForVectorStore(ctx context.Context, storeID string) ([]attachment.UploadRecord, error) {
	var rows []entities.FileUpload
	if err := r.db.WithContext(ctx).
		Where("vector_store_id = ?", storeID).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	records := make([]attachment.UploadRecord, len(rows))
	for i, row := range rows {
		records[i] = row.EtoD()
	}
	return records, nil
}

// DeleteByVectorStore removes all records for a store.
func (r *Repository) DeleteByVectorStore(ctx context.Context, storeID string) error {
	if err := r.db.WithContext(ctx).
		Where("vector_store_id = ?", storeID).
		Delete(&entities.FileUpload{}).Error; err != nil {
		return fmt.Errorf("delete uploads: %w", err)
	}
	return nil
}

// UniqueVectorStoreIDs lists the distinct store ids with recorded uploads.
func (r *Repository) UniqueVectorStoreIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&entities.FileUpload{}).
		Where("vector_store_id <> ''").
		Distinct().
		Pluck("vector_store_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list vector store ids: %w", err)
	}
	return ids, nil
}
