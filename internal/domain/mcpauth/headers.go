package mcpauth

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ParsedHeaders is the result of splitting a server's configured headers
// into the bearer credential and everything else.
type ParsedHeaders struct {
	// Token is the value of the Authorization header with any
	// "Bearer " prefix removed. Empty when no Authorization header
	// was configured.
	Token string
	// Extra holds the remaining headers with their original names.
	Extra map[string]string
}

// ParseHeaders decodes the stored headers JSON for a server. The
// Authorization header is matched case-insensitively; a "Bearer " prefix
// is stripped, any other value is kept verbatim.
func ParseHeaders(raw string) (ParsedHeaders, error) {
	parsed := ParsedHeaders{Extra: map[string]string{}}
	if strings.TrimSpace(raw) == "" {
		return parsed, nil
	}

	var headers map[string]string
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return parsed, fmt.Errorf("decode server headers: %w", err)
	}

	for name, value := range headers {
		if strings.EqualFold(name, "Authorization") {
			parsed.Token = strings.TrimPrefix(value, "Bearer ")
			continue
		}
		parsed.Extra[name] = value
	}
	return parsed, nil
}

// QueryParams converts non-auth headers into query parameters for
// providers that cannot forward custom headers to MCP servers. Header
// names are lowercased, a leading "x-" is dropped and dashes become
// underscores, so "X-Api-Version: 2" yields "api_version=2".
func QueryParams(extra map[string]string) url.Values {
	values := url.Values{}
	for name, value := range extra {
		key := strings.ToLower(name)
		key = strings.TrimPrefix(key, "x-")
		key = strings.ReplaceAll(key, "-", "_")
		values.Set(key, value)
	}
	return values
}

// AppendQuery attaches the given parameters to a server URL, respecting
// an existing query string.
func AppendQuery(serverURL string, params url.Values) string {
	if len(params) == 0 {
		return serverURL
	}
	sep := "?"
	if strings.Contains(serverURL, "?") {
		sep = "&"
	}
	return serverURL + sep + params.Encode()
}
