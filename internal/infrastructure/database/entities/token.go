package entities

import (
	"time"

	"assistant-api/internal/domain/mcpauth"
)

// UserMCPToken stores one user's OAuth token for one MCP server.
type UserMCPToken struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	UserID   string `gorm:"type:varchar(64);uniqueIndex:idx_user_server;not null"`
	ServerID uint   `gorm:"uniqueIndex:idx_user_server;not null"`

	AccessToken  string     `gorm:"type:text;not null"`
	RefreshToken string     `gorm:"type:text"`
	ExpiresAt    *time.Time `gorm:"type:timestamp"`
}

// TableName specifies the table name for UserMCPToken.
func (UserMCPToken) TableName() string {
	return "user_mcp_tokens"
}

// EtoD converts database entity to domain model.
func (t *UserMCPToken) EtoD() mcpauth.UserToken {
	return mcpauth.UserToken{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
	}
}

// OAuthState is a short-lived record tying an authorization redirect
// back to the user and server that started it.
type OAuthState struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	State        string    `gorm:"type:varchar(128);uniqueIndex;not null"`
	UserID       string    `gorm:"type:varchar(64);not null"`
	ServerID     uint      `gorm:"not null"`
	PKCEVerifier string    `gorm:"type:varchar(256)"`
	RedirectURI  string    `gorm:"type:varchar(512)"`
	ExpiresAt    time.Time `gorm:"not null"`
}

// TableName specifies the table name for OAuthState.
func (OAuthState) TableName() string {
	return "oauth_states"
}
