// Package aimodel persists model configurations.
package aimodel

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"assistant-api/internal/domain/model"
	"assistant-api/internal/infrastructure/database/entities"
)

// Repository persists model configurations.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a model repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ model.Store = (*Repository)(nil)

// List returns every configured model.
func (r *Repository) List(ctx context.Context) ([]model.Model, error) {
	var rows []entities.AIModel
	if err := r.db.WithContext(ctx).Order("model_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	models := make([]model.Model, len(rows))
	for i, row := range rows {
		models[i] = row.EtoD()
	}
	return models, nil
}
