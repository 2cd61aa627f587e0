package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"assistant-api/internal/infrastructure/oauthflow"
	"assistant-api/internal/infrastructure/repository/token"
)

// OAuthHandler completes the MCP server authorization flow.
type OAuthHandler struct {
	flow *oauthflow.Flow
	log  zerolog.Logger
}

// NewOAuthHandler constructs the handler.
func NewOAuthHandler(flow *oauthflow.Flow, log zerolog.Logger) *OAuthHandler {
	return &OAuthHandler{
		flow: flow,
		log:  log.With().Str("handler", "oauth").Logger(),
	}
}

const callbackPage = `<!DOCTYPE html>
<html><body>
<p>Authorization complete. You can close this window and return to the assistant.</p>
</body></html>`

// Callback handles GET /v1/oauth/callback, the redirect target of the
// authorization servers.
func (h *OAuthHandler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		description := c.Query("error_description")
		h.log.Warn().Str("error", errParam).Str("description", description).Msg("authorization denied")
		c.String(http.StatusBadRequest, "Authorization failed: %s", errParam)
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.String(http.StatusBadRequest, "Missing state or code parameter")
		return
	}

	if err := h.flow.HandleCallback(c.Request.Context(), state, code); err != nil {
		if errors.Is(err, token.ErrStateNotFound) {
			c.String(http.StatusBadRequest, "Authorization session expired, please try again")
			return
		}
		h.log.Error().Err(err).Msg("callback exchange failed")
		c.String(http.StatusInternalServerError, "Authorization failed")
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, callbackPage)
}
