package entities

import (
	"time"

	"assistant-api/internal/domain/model"
)

// AIModel represents the database schema for configured models.
type AIModel struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	ModelID   string `gorm:"type:varchar(128);uniqueIndex;not null"`
	Name      string `gorm:"type:varchar(128);not null"`
	Provider  string `gorm:"type:varchar(32);index;not null"`
	APIKey    string `gorm:"type:varchar(256)"`
	BaseURL   string `gorm:"type:varchar(512)"`
	IsDefault bool   `gorm:"not null;default:false"`
}

// TableName specifies the table name for AIModel.
func (AIModel) TableName() string {
	return "ai_models"
}

// EtoD converts database entity to domain model.
func (m *AIModel) EtoD() model.Model {
	return model.Model{
		ID:       m.ID,
		ModelID:  m.ModelID,
		Name:     m.Name,
		Provider: m.Provider,
		APIKey:   m.APIKey,
		BaseURL:  m.BaseURL,
		Default:  m.IsDefault,
	}
}
