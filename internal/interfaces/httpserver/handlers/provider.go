// Package handlers exposes the HTTP entrypoints of the assistant API.
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"assistant-api/internal/domain/attachment"
	"assistant-api/internal/domain/model"
	"assistant-api/internal/infrastructure/oauthflow"
	"assistant-api/internal/infrastructure/repository/threadrepo"
	"assistant-api/internal/infrastructure/repository/toolserver"
)

// Provider bundles all HTTP handlers.
type Provider struct {
	Chat   *ChatHandler
	Thread *ThreadHandler
	OAuth  *OAuthHandler
	Model  *ModelHandler
}

// NewProvider constructs every handler with its dependencies.
func NewProvider(
	registry *model.Registry,
	threads *threadrepo.Repository,
	servers *toolserver.Repository,
	attachments *attachment.Service,
	flow *oauthflow.Flow,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Chat:   NewChatHandler(registry, threads, servers, log),
		Thread: NewThreadHandler(threads, attachments, log),
		OAuth:  NewOAuthHandler(flow, log),
		Model:  NewModelHandler(registry),
	}
}

// UserID extracts the authenticated user id from the request. Identity
// arrives pre-validated from the edge; absent it falls back to guest.
func UserID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-User-ID")); id != "" {
		return id
	}
	return "guest"
}
