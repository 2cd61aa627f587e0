package oauthflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/infrastructure/repository/token"
)

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]mcpauth.UserToken
	states map[string]token.AuthState
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{
		tokens: map[string]mcpauth.UserToken{},
		states: map[string]token.AuthState{},
	}
}

func tokenKey(userID string, serverID uint) string {
	return fmt.Sprintf("%s/%d", userID, serverID)
}

func (f *fakeTokens) Token(_ context.Context, userID string, serverID uint) (*mcpauth.UserToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[tokenKey(userID, serverID)]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTokens) SaveToken(_ context.Context, userID string, serverID uint, t mcpauth.UserToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[tokenKey(userID, serverID)] = t
	return nil
}

func (f *fakeTokens) DeleteToken(_ context.Context, userID string, serverID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, tokenKey(userID, serverID))
	return nil
}

func (f *fakeTokens) SaveState(_ context.Context, state token.AuthState, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.State] = state
	return nil
}

func (f *fakeTokens) ConsumeState(_ context.Context, state string) (*token.AuthState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[state]
	if !ok {
		return nil, token.ErrStateNotFound
	}
	delete(f.states, state)
	return &s, nil
}

type fakeServers struct {
	servers map[uint]mcpauth.Server
}

func (f *fakeServers) Get(_ context.Context, id uint) (*mcpauth.Server, error) {
	s, ok := f.servers[id]
	if !ok {
		return nil, context.Canceled
	}
	return &s, nil
}

// authServer fakes an OAuth authorization server with metadata
// discovery and a token endpoint.
func authServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var ts *httptest.Server

	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"authorization_endpoint": ts.URL + "/authorize",
			"token_endpoint":         ts.URL + "/token",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-access",
			"refresh_token": "fresh-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	ts = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func discoveryTestServer(t *testing.T, ts *httptest.Server) mcpauth.Server {
	t.Helper()
	return mcpauth.Server{
		ID:            1,
		Name:          "Core Tools",
		URL:           ts.URL + "/mcp",
		AuthType:      mcpauth.AuthOAuthDiscovery,
		DiscoveryURL:  ts.URL + "/.well-known/oauth-authorization-server",
		OAuthClientID: "client-1",
	}
}

func TestBuildAuthURL(t *testing.T) {
	ts := authServer(t)
	tokens := newFakeTokens()
	flow := NewFlow(tokens, &fakeServers{}, "https://app.example/v1/oauth/callback", zerolog.Nop())

	server := discoveryTestServer(t, ts)
	authURL, state, err := flow.BuildAuthURL(context.Background(), "user-1", server)
	require.NoError(t, err)
	require.NotEmpty(t, state)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "/authorize", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, state, query.Get("state"))
	assert.Equal(t, "client-1", query.Get("client_id"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.NotEmpty(t, query.Get("code_challenge"))
	assert.Equal(t, "https://app.example/v1/oauth/callback", query.Get("redirect_uri"))

	saved, ok := tokens.states[state]
	require.True(t, ok)
	assert.Equal(t, "user-1", saved.UserID)
	assert.Equal(t, uint(1), saved.ServerID)
	assert.NotEmpty(t, saved.PKCEVerifier)
}

func TestBuildAuthURLUsesConfiguredEndpoints(t *testing.T) {
	// No discovery round trip when both endpoints are configured.
	tokens := newFakeTokens()
	flow := NewFlow(tokens, &fakeServers{}, "https://app.example/cb", zerolog.Nop())

	server := mcpauth.Server{
		ID:                2,
		Name:              "Preconfigured",
		AuthType:          mcpauth.AuthOAuthDiscovery,
		OAuthClientID:     "client-2",
		OAuthAuthorizeURL: "https://idp.example/authorize",
		OAuthTokenURL:     "https://idp.example/token",
	}

	authURL, _, err := flow.BuildAuthURL(context.Background(), "user-1", server)
	require.NoError(t, err)
	assert.Contains(t, authURL, "https://idp.example/authorize")
}

func TestHandleCallback(t *testing.T) {
	ts := authServer(t)
	tokens := newFakeTokens()
	server := discoveryTestServer(t, ts)
	servers := &fakeServers{servers: map[uint]mcpauth.Server{1: server}}
	flow := NewFlow(tokens, servers, "https://app.example/cb", zerolog.Nop())

	tokens.states["state-1"] = token.AuthState{
		State:        "state-1",
		UserID:       "user-1",
		ServerID:     1,
		PKCEVerifier: "verifier",
		RedirectURI:  "https://app.example/cb",
	}

	err := flow.HandleCallback(context.Background(), "state-1", "auth-code")
	require.NoError(t, err)

	stored, ok := tokens.tokens[tokenKey("user-1", 1)]
	require.True(t, ok)
	assert.Equal(t, "fresh-access", stored.AccessToken)
	assert.Equal(t, "fresh-refresh", stored.RefreshToken)
	require.NotNil(t, stored.ExpiresAt)

	// State records are single use.
	err = flow.HandleCallback(context.Background(), "state-1", "auth-code")
	assert.ErrorIs(t, err, token.ErrStateNotFound)
}

func TestAccessTokenPaths(t *testing.T) {
	ts := authServer(t)
	server := discoveryTestServer(t, ts)

	t.Run("no stored token", func(t *testing.T) {
		flow := NewFlow(newFakeTokens(), &fakeServers{}, "https://app.example/cb", zerolog.Nop())
		got, err := flow.AccessToken(context.Background(), "user-1", server)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("valid token returned as is", func(t *testing.T) {
		tokens := newFakeTokens()
		tokens.tokens[tokenKey("user-1", 1)] = mcpauth.UserToken{AccessToken: "live"}
		flow := NewFlow(tokens, &fakeServers{}, "https://app.example/cb", zerolog.Nop())

		got, err := flow.AccessToken(context.Background(), "user-1", server)
		require.NoError(t, err)
		assert.Equal(t, "live", got)
	})

	t.Run("expired token refreshed and persisted", func(t *testing.T) {
		expired := time.Now().Add(-time.Hour)
		tokens := newFakeTokens()
		tokens.tokens[tokenKey("user-1", 1)] = mcpauth.UserToken{
			AccessToken:  "stale",
			RefreshToken: "refresh-1",
			ExpiresAt:    &expired,
		}
		flow := NewFlow(tokens, &fakeServers{}, "https://app.example/cb", zerolog.Nop())

		got, err := flow.AccessToken(context.Background(), "user-1", server)
		require.NoError(t, err)
		assert.Equal(t, "fresh-access", got)

		stored := tokens.tokens[tokenKey("user-1", 1)]
		assert.Equal(t, "fresh-access", stored.AccessToken)
		assert.Equal(t, "fresh-refresh", stored.RefreshToken)
	})

	t.Run("expired without refresh token forces re-auth", func(t *testing.T) {
		expired := time.Now().Add(-time.Hour)
		tokens := newFakeTokens()
		tokens.tokens[tokenKey("user-1", 1)] = mcpauth.UserToken{
			AccessToken: "stale",
			ExpiresAt:   &expired,
		}
		flow := NewFlow(tokens, &fakeServers{}, "https://app.example/cb", zerolog.Nop())

		got, err := flow.AccessToken(context.Background(), "user-1", server)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
