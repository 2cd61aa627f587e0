// Package toolserver persists MCP server configurations.
package toolserver

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/infrastructure/database/entities"
)

// ErrNotFound is returned when a server id does not exist.
var ErrNotFound = errors.New("mcp server not found")

// Repository persists MCP server configurations.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a tool server repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListEnabled returns the enabled servers in name order.
func (r *Repository) ListEnabled(ctx context.Context) ([]mcpauth.Server, error) {
	var rows []entities.MCPServer
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("name").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list mcp servers: %w", err)
	}

	servers := make([]mcpauth.Server, len(rows))
	for i, row := range rows {
		servers[i] = row.EtoD()
	}
	return servers, nil
}

// Get fetches one server by id.
func (r *Repository) Get(ctx context.Context, id uint) (*mcpauth.Server, error) {
	var row entities.MCPServer
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("fetch mcp server: %w", err)
	}
	server := row.EtoD()
	return &server, nil
}
