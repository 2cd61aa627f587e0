package entities

import (
	"time"

	"gorm.io/datatypes"

	"assistant-api/internal/domain/mcpauth"
)

// MCPServer represents the database schema for configured MCP servers.
type MCPServer struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Name        string         `gorm:"type:varchar(128);uniqueIndex;not null"`
	Description string         `gorm:"type:text"`
	URL         string         `gorm:"type:varchar(512);not null"`
	Headers     datatypes.JSON `gorm:"type:jsonb"`
	Prompt      string         `gorm:"type:text"`
	AuthType    string         `gorm:"type:varchar(32);not null;default:'none'"`
	Enabled     bool           `gorm:"not null;default:true"`

	DiscoveryURL      string `gorm:"type:varchar(512)"`
	OAuthClientID     string `gorm:"type:varchar(256)"`
	OAuthClientSecret string `gorm:"type:varchar(256)"`
	OAuthIssuer       string `gorm:"type:varchar(512)"`
	OAuthAuthorizeURL string `gorm:"type:varchar(512)"`
	OAuthTokenURL     string `gorm:"type:varchar(512)"`
	OAuthScopes       string `gorm:"type:varchar(256)"`
}

// TableName specifies the table name for MCPServer.
func (MCPServer) TableName() string {
	return "mcp_servers"
}

// EtoD converts database entity to domain model.
func (s *MCPServer) EtoD() mcpauth.Server {
	return mcpauth.Server{
		ID:                s.ID,
		Name:              s.Name,
		Description:       s.Description,
		URL:               s.URL,
		Headers:           string(s.Headers),
		Prompt:            s.Prompt,
		AuthType:          mcpauth.AuthType(s.AuthType),
		DiscoveryURL:      s.DiscoveryURL,
		OAuthClientID:     s.OAuthClientID,
		OAuthClientSecret: s.OAuthClientSecret,
		OAuthIssuer:       s.OAuthIssuer,
		OAuthAuthorizeURL: s.OAuthAuthorizeURL,
		OAuthTokenURL:     s.OAuthTokenURL,
		OAuthScopes:       s.OAuthScopes,
	}
}
