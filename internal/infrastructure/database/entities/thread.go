package entities

import (
	"time"

	"assistant-api/internal/domain/thread"
)

// Thread represents the database schema for conversation threads.
type Thread struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	UUID          string `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserID        string `gorm:"type:varchar(64);index;not null"`
	Title         string `gorm:"type:varchar(256)"`
	VectorStoreID string `gorm:"type:varchar(64);index"`

	Messages []ThreadMessage `gorm:"foreignKey:ThreadID"`
}

// TableName specifies the table name for Thread.
func (Thread) TableName() string {
	return "threads"
}

// ThreadMessage is one persisted transcript entry.
type ThreadMessage struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	ThreadID uint   `gorm:"index;not null"`
	Type     string `gorm:"type:varchar(20);not null"`
	Text     string `gorm:"type:text"`
}

// TableName specifies the table name for ThreadMessage.
func (ThreadMessage) TableName() string {
	return "thread_messages"
}

// EtoD converts database entity to domain model.
func (t *Thread) EtoD() *thread.Thread {
	return &thread.Thread{
		ID:            t.ID,
		UUID:          t.UUID,
		UserID:        t.UserID,
		Title:         t.Title,
		VectorStoreID: t.VectorStoreID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// NewSchemaThread creates a database entity from domain model.
func NewSchemaThread(t *thread.Thread) *Thread {
	return &Thread{
		ID:            t.ID,
		UUID:          t.UUID,
		UserID:        t.UserID,
		Title:         t.Title,
		VectorStoreID: t.VectorStoreID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// EtoD converts database entity to domain model.
func (m *ThreadMessage) EtoD() thread.Message {
	return thread.Message{
		Type: thread.MessageType(m.Type),
		Text: m.Text,
	}
}
