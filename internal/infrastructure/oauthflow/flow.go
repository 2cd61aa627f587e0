// Package oauthflow implements the OAuth authorization-code flow for
// MCP servers that use discovery-based auth: metadata discovery, PKCE
// authorization URLs, the callback code exchange, and refresh-aware
// token lookup for the auth gate.
package oauthflow

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/infrastructure/repository/token"
)

const stateTTL = 10 * time.Minute

// Tokens is the persistence surface the flow needs.
type Tokens interface {
	Token(ctx context.Context, userID string, serverID uint) (*mcpauth.UserToken, error)
	SaveToken(ctx context.Context, userID string, serverID uint, t mcpauth.UserToken) error
	DeleteToken(ctx context.Context, userID string, serverID uint) error
	SaveState(ctx context.Context, state token.AuthState, ttl time.Duration) error
	ConsumeState(ctx context.Context, state string) (*token.AuthState, error)
}

// Servers resolves server ids back to their configuration during the
// callback exchange.
type Servers interface {
	Get(ctx context.Context, id uint) (*mcpauth.Server, error)
}

// Flow implements mcpauth.TokenSource and mcpauth.AuthURLBuilder.
type Flow struct {
	tokens      Tokens
	servers     Servers
	httpClient  *resty.Client
	redirectURL string
	log         zerolog.Logger
}

// NewFlow builds the OAuth flow. redirectURL is the absolute callback
// URL registered with the authorization servers.
func NewFlow(tokens Tokens, servers Servers, redirectURL string, log zerolog.Logger) *Flow {
	return &Flow{
		tokens:      tokens,
		servers:     servers,
		httpClient:  resty.New().SetTimeout(15 * time.Second),
		redirectURL: redirectURL,
		log:         log.With().Str("component", "oauth-flow").Logger(),
	}
}

var (
	_ mcpauth.TokenSource    = (*Flow)(nil)
	_ mcpauth.AuthURLBuilder = (*Flow)(nil)
)

// AccessToken returns a usable token for the (user, server) pair,
// refreshing an expired one when a refresh token exists. An empty
// return means the user must (re)authorize.
func (f *Flow) AccessToken(ctx context.Context, userID string, server mcpauth.Server) (string, error) {
	stored, err := f.tokens.Token(ctx, userID, server.ID)
	if err != nil {
		return "", err
	}
	if stored == nil {
		return "", nil
	}
	if stored.Valid() {
		return stored.AccessToken, nil
	}
	if stored.RefreshToken == "" {
		return "", nil
	}

	cfg, err := f.oauthConfig(ctx, server)
	if err != nil {
		return "", fmt.Errorf("oauth config: %w", err)
	}

	refreshed, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: stored.RefreshToken}).Token()
	if err != nil {
		f.log.Warn().Err(err).Str("server", server.Name).Msg("token refresh failed")
		return "", nil
	}

	updated := mcpauth.UserToken{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
	}
	if updated.RefreshToken == "" {
		updated.RefreshToken = stored.RefreshToken
	}
	if !refreshed.Expiry.IsZero() {
		expiry := refreshed.Expiry
		updated.ExpiresAt = &expiry
	}
	if err := f.tokens.SaveToken(ctx, userID, server.ID, updated); err != nil {
		f.log.Error().Err(err).Str("server", server.Name).Msg("persisting refreshed token failed")
	}

	return updated.AccessToken, nil
}

// BuildAuthURL produces a PKCE authorization URL and persists the
// state record the callback will consume.
func (f *Flow) BuildAuthURL(ctx context.Context, userID string, server mcpauth.Server) (string, string, error) {
	cfg, err := f.oauthConfig(ctx, server)
	if err != nil {
		return "", "", fmt.Errorf("oauth config: %w", err)
	}

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	err = f.tokens.SaveState(ctx, token.AuthState{
		State:        state,
		UserID:       userID,
		ServerID:     server.ID,
		PKCEVerifier: verifier,
		RedirectURI:  f.redirectURL,
	}, stateTTL)
	if err != nil {
		return "", "", fmt.Errorf("persist state: %w", err)
	}

	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return authURL, state, nil
}

// HandleCallback exchanges the authorization code for a token and
// stores it for the user who started the flow.
func (f *Flow) HandleCallback(ctx context.Context, state, code string) error {
	record, err := f.tokens.ConsumeState(ctx, state)
	if err != nil {
		return err
	}

	server, err := f.servers.Get(ctx, record.ServerID)
	if err != nil {
		return fmt.Errorf("resolve server: %w", err)
	}

	cfg, err := f.oauthConfig(ctx, *server)
	if err != nil {
		return fmt.Errorf("oauth config: %w", err)
	}
	cfg.RedirectURL = record.RedirectURI

	exchanged, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(record.PKCEVerifier))
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	stored := mcpauth.UserToken{
		AccessToken:  exchanged.AccessToken,
		RefreshToken: exchanged.RefreshToken,
	}
	if !exchanged.Expiry.IsZero() {
		expiry := exchanged.Expiry
		stored.ExpiresAt = &expiry
	}

	if err := f.tokens.SaveToken(ctx, record.UserID, record.ServerID, stored); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	f.log.Info().Str("user_id", record.UserID).Uint("server_id", record.ServerID).Msg("authorization completed")
	return nil
}

// Revoke drops the stored token so the next call re-enters the flow.
func (f *Flow) Revoke(ctx context.Context, userID string, serverID uint) error {
	return f.tokens.DeleteToken(ctx, userID, serverID)
}

// oauthConfig assembles the oauth2 configuration for a server, using
// its configured endpoints or falling back to metadata discovery.
func (f *Flow) oauthConfig(ctx context.Context, server mcpauth.Server) (*oauth2.Config, error) {
	endpoint := oauth2.Endpoint{
		AuthURL:  server.OAuthAuthorizeURL,
		TokenURL: server.OAuthTokenURL,
	}
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		discovered, err := f.discover(ctx, server)
		if err != nil {
			return nil, err
		}
		endpoint = discovered
	}

	return &oauth2.Config{
		ClientID:     server.OAuthClientID,
		ClientSecret: server.OAuthClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  f.redirectURL,
		Scopes:       strings.Fields(server.OAuthScopes),
	}, nil
}

type serverMetadata struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

// discover fetches OAuth authorization server metadata from the
// configured discovery URL, or derives the well-known location from
// the server URL's origin.
func (f *Flow) discover(ctx context.Context, server mcpauth.Server) (oauth2.Endpoint, error) {
	discoveryURL := server.DiscoveryURL
	if discoveryURL == "" {
		parsed, err := url.Parse(server.URL)
		if err != nil {
			return oauth2.Endpoint{}, fmt.Errorf("parse server url: %w", err)
		}
		discoveryURL = parsed.Scheme + "://" + parsed.Host + "/.well-known/oauth-authorization-server"
	}

	var metadata serverMetadata
	resp, err := f.httpClient.R().
		SetContext(ctx).
		SetResult(&metadata).
		Get(discoveryURL)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("fetch metadata: %w", err)
	}
	if resp.IsError() {
		return oauth2.Endpoint{}, fmt.Errorf("fetch metadata: %s", resp.Status())
	}
	if metadata.AuthorizationEndpoint == "" || metadata.TokenEndpoint == "" {
		return oauth2.Endpoint{}, fmt.Errorf("metadata from %s is missing endpoints", discoveryURL)
	}

	return oauth2.Endpoint{
		AuthURL:  metadata.AuthorizationEndpoint,
		TokenURL: metadata.TokenEndpoint,
	}, nil
}
