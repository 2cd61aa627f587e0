// Package threadrepo persists threads and their transcripts.
package threadrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"assistant-api/internal/domain/attachment"
	"assistant-api/internal/domain/thread"
	"assistant-api/internal/infrastructure/database/entities"
)

// ErrNotFound is returned when a thread does not exist.
var ErrNotFound = errors.New("thread not found")

// Repository persists threads.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a thread repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Compile-time check against the attachment service's needs.
var _ attachment.Threads = (*Repository)(nil)

// Create inserts a new thread with a fresh UUID.
func (r *Repository) Create(ctx context.Context, userID, title string) (*thread.Thread, error) {
	entity := &entities.Thread{
		UUID:   uuid.NewString(),
		UserID: userID,
		Title:  title,
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return entity.EtoD(), nil
}

// FindByUUID fetches a thread by its public UUID.
func (r *Repository) FindByUUID(ctx context.Context, id string) (*thread.Thread, error) {
	var entity entities.Thread
	if err := r.db.WithContext(ctx).Where("uuid = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("fetch thread: %w", err)
	}
	return entity.EtoD(), nil
}

// Get returns the attachment-facing slice of a thread, nil when the
// thread does not exist.
func (r *Repository) Get(ctx context.Context, id uint) (*attachment.ThreadRef, error) {
	var entity entities.Thread
	if err := r.db.WithContext(ctx).First(&entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch thread: %w", err)
	}
	return &attachment.ThreadRef{ID: entity.ID, UUID: entity.UUID, VectorStoreID: entity.VectorStoreID}, nil
}

// SetVectorStore records the thread's vector store id.
func (r *Repository) SetVectorStore(ctx context.Context, id uint, storeID string) error {
	res := r.db.WithContext(ctx).
		Model(&entities.Thread{}).
		Where("id = ?", id).
		Update("vector_store_id", storeID)
	if res.Error != nil {
		return fmt.Errorf("set vector store: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// ClearVectorStore removes a store reference from every thread holding
// it, returning the number of threads updated.
func (r *Repository) ClearVectorStore(ctx context.Context, storeID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entities.Thread{}).
		Where("vector_store_id = ?", storeID).
		Update("vector_store_id", "")
	if res.Error != nil {
		return 0, fmt.Errorf("clear vector store refs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UniqueVectorStoreIDs lists the distinct store ids referenced by threads.
func (r *Repository) UniqueVectorStoreIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&entities.Thread{}).
		Where("vector_store_id <> ''").
		Distinct().
		Pluck("vector_store_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list vector store ids: %w", err)
	}
	return ids, nil
}

// AppendMessage stores one transcript entry.
func (r *Repository) AppendMessage(ctx context.Context, threadID uint, msg thread.Message) error {
	entity := &entities.ThreadMessage{
		ThreadID: threadID,
		Type:     string(msg.Type),
		Text:     msg.Text,
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("append thread message: %w", err)
	}
	return nil
}

// Messages returns the transcript in insertion order.
func (r *Repository) Messages(ctx context.Context, threadID uint) ([]thread.Message, error) {
	var rows []entities.ThreadMessage
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list thread messages: %w", err)
	}

	msgs := make([]thread.Message, len(rows))
	for i, row := range rows {
		msgs[i] = row.EtoD()
	}
	return msgs, nil
}
