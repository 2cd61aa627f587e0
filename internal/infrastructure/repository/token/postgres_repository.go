// Package token persists per-user MCP OAuth tokens and the transient
// authorization state records.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/infrastructure/database/entities"
)

// ErrStateNotFound is returned when an authorization state is unknown
// or already consumed.
var ErrStateNotFound = errors.New("oauth state not found")

// Repository persists tokens and authorization states.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a token repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Token returns the stored token for a (user, server) pair, nil when
// none exists.
func (r *Repository) Token(ctx context.Context, userID string, serverID uint) (*mcpauth.UserToken, error) {
	var row entities.UserMCPToken
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND server_id = ?", userID, serverID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch token: %w", err)
	}
	token := row.EtoD()
	return &token, nil
}

// SaveToken upserts the token for a (user, server) pair.
func (r *Repository) SaveToken(ctx context.Context, userID string, serverID uint, token mcpauth.UserToken) error {
	row := entities.UserMCPToken{
		UserID:       userID,
		ServerID:     serverID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
	}

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND server_id = ?", userID, serverID).
		Assign(map[string]any{
			"access_token":  row.AccessToken,
			"refresh_token": row.RefreshToken,
			"expires_at":    row.ExpiresAt,
		}).
		FirstOrCreate(&row).Error
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// DeleteToken removes the stored token for a (user, server) pair.
func (r *Repository) DeleteToken(ctx context.Context, userID string, serverID uint) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND server_id = ?", userID, serverID).
		Delete(&entities.UserMCPToken{}).Error; err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// AuthState is one pending authorization redirect.
type AuthState struct {
	State        string
	UserID       string
	ServerID     uint
	PKCEVerifier string
	RedirectURI  string
}

// SaveState stores an authorization state with a lifetime.
func (r *Repository) SaveState(ctx context.Context, state AuthState, ttl time.Duration) error {
	row := entities.OAuthState{
		State:        state.State,
		UserID:       state.UserID,
		ServerID:     state.ServerID,
		PKCEVerifier: state.PKCEVerifier,
		RedirectURI:  state.RedirectURI,
		ExpiresAt:    time.Now().Add(ttl),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// ConsumeState fetches and deletes a state record. Expired or unknown
// states return ErrStateNotFound.
func (r *Repository) ConsumeState(ctx context.Context, state string) (*AuthState, error) {
	var row entities.OAuthState
	err := r.db.WithContext(ctx).
		Where("state = ? AND expires_at > ?", state, time.Now()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("fetch oauth state: %w", err)
	}

	if err := r.db.WithContext(ctx).Delete(&row).Error; err != nil {
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}

	return &AuthState{
		State:        row.State,
		UserID:       row.UserID,
		ServerID:     row.ServerID,
		PKCEVerifier: row.PKCEVerifier,
		RedirectURI:  row.RedirectURI,
	}, nil
}
