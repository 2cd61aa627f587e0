package mcpauth

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"assistant-api/internal/domain/chunk"
)

// TokenSource yields a usable OAuth access token for a (user, server)
// pair, refreshing it when possible. Implementations return an empty
// token when the user has never authorized the server or the stored
// token can no longer be refreshed.
type TokenSource interface {
	AccessToken(ctx context.Context, userID string, server Server) (string, error)
}

// AuthURLBuilder produces the authorization URL and opaque state for an
// OAuth discovery server.
type AuthURLBuilder interface {
	BuildAuthURL(ctx context.Context, userID string, server Server) (authURL string, state string, err error)
}

// ResolvedServer is a server cleared for use in the current call.
type ResolvedServer struct {
	Server Server
	// Token is the credential to send upstream: the user's OAuth token
	// when one exists, otherwise the statically configured one.
	Token string
	// Extra holds the configured non-auth headers.
	Extra map[string]string
}

// Resolution is the call-scoped outcome of the auth gate. Pending keeps
// the order in which servers were attempted.
type Resolution struct {
	Ready   []ResolvedServer
	Pending []Server
}

// Gate decides per call which MCP servers are usable and which need the
// user to authorize first.
type Gate struct {
	tokens TokenSource
	log    zerolog.Logger
}

// NewGate builds an auth gate over the given token source.
func NewGate(tokens TokenSource, log zerolog.Logger) *Gate {
	return &Gate{tokens: tokens, log: log.With().Str("component", "mcp-auth-gate").Logger()}
}

// Resolve splits the configured servers into ready and pending sets for
// one model call. A fresh Resolution is produced per call; nothing is
// carried over between calls.
func (g *Gate) Resolve(ctx context.Context, userID string, servers []Server) Resolution {
	res := Resolution{}
	for _, server := range servers {
		parsed, err := ParseHeaders(server.Headers)
		if err != nil {
			g.log.Warn().Err(err).Str("server", server.Name).Msg("ignoring malformed server headers")
		}

		token := parsed.Token
		if server.AuthType == AuthOAuthDiscovery {
			userToken, err := g.tokens.AccessToken(ctx, userID, server)
			if err != nil {
				g.log.Warn().Err(err).Str("server", server.Name).Msg("token lookup failed")
			}
			if userToken == "" {
				res.Pending = append(res.Pending, server)
				continue
			}
			// A user-scoped OAuth token wins over a static one.
			token = userToken
		}

		res.Ready = append(res.Ready, ResolvedServer{
			Server: server,
			Token:  token,
			Extra:  parsed.Extra,
		})
	}
	return res
}

// PendingChunks converts the pending set into trailing authorization
// chunks, in the order the servers were attempted. URL building is best
// effort: a failure yields a chunk with empty auth_url and state rather
// than aborting the stream.
func PendingChunks(ctx context.Context, f chunk.Factory, builder AuthURLBuilder, userID string, pending []Server, log zerolog.Logger) []chunk.Chunk {
	chunks := make([]chunk.Chunk, 0, len(pending))
	for _, server := range pending {
		authURL, state := "", ""
		if builder != nil {
			var err error
			authURL, state, err = builder.BuildAuthURL(ctx, userID, server)
			if err != nil {
				log.Warn().Err(err).Str("server", server.Name).Msg("building authorization url failed")
				authURL, state = "", ""
			}
		}
		chunks = append(chunks, f.AuthRequired(server.Name, strconv.FormatUint(uint64(server.ID), 10), authURL, state))
	}
	return chunks
}
