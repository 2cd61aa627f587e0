package processor

import (
	"strings"

	"assistant-api/internal/domain/mcpauth"
)

// SystemPrompt combines the base system prompt with the tool guidance
// collected from the ready MCP servers, one bullet line per server
// that carries a prompt.
func SystemPrompt(base string, servers []mcpauth.ResolvedServer) string {
	var lines []string
	for _, s := range servers {
		if p := strings.TrimSpace(s.Server.Prompt); p != "" {
			lines = append(lines, "- "+p)
		}
	}
	if len(lines) == 0 {
		return base
	}

	section := "When choosing tools, follow this guidance:\n" + strings.Join(lines, "\n")
	if base == "" {
		return section
	}
	return base + "\n\n" + section
}
