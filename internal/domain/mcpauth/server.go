// Package mcpauth decides which MCP servers a model call may use and
// which ones need the user to authorize first.
package mcpauth

import (
	"strings"
	"time"
)

// AuthType classifies how an MCP server expects to be authenticated.
type AuthType string

const (
	AuthNone           AuthType = "none"
	AuthStatic         AuthType = "static"
	AuthOAuthDiscovery AuthType = "oauth_discovery"
)

// Server describes a configured MCP server.
type Server struct {
	ID          uint
	Name        string
	Description string
	URL         string
	// Headers is a JSON object of extra HTTP headers, stored as the raw
	// string the admin entered. Empty means no headers.
	Headers      string
	Prompt       string
	AuthType     AuthType
	DiscoveryURL string

	OAuthClientID     string
	OAuthClientSecret string
	OAuthIssuer       string
	OAuthAuthorizeURL string
	OAuthTokenURL     string
	OAuthScopes       string
}

// Label returns the identifier used as the provider-facing server label.
func (s Server) Label() string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s.Name), " ", "_"))
}

// UserToken is a stored per-user OAuth token for one MCP server.
type UserToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// Valid reports whether the token can still be sent upstream.
func (t UserToken) Valid() bool {
	if t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt == nil {
		return true
	}
	return time.Now().Before(*t.ExpiresAt)
}
