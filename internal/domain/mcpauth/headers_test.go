package mcpauth

import "testing"

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantToken string
		wantExtra map[string]string
		wantErr   bool
	}{
		{
			name:      "empty",
			raw:       "",
			wantToken: "",
			wantExtra: map[string]string{},
		},
		{
			name:      "bearer prefix stripped",
			raw:       `{"Authorization": "Bearer abc123"}`,
			wantToken: "abc123",
			wantExtra: map[string]string{},
		},
		{
			name:      "raw token kept verbatim",
			raw:       `{"authorization": "tok-raw"}`,
			wantToken: "tok-raw",
			wantExtra: map[string]string{},
		},
		{
			name:      "case insensitive match",
			raw:       `{"AUTHORIZATION": "Bearer x"}`,
			wantToken: "x",
			wantExtra: map[string]string{},
		},
		{
			name:      "non auth headers preserved",
			raw:       `{"Authorization": "Bearer t", "X-Api-Version": "2", "X-Region": "eu"}`,
			wantToken: "t",
			wantExtra: map[string]string{"X-Api-Version": "2", "X-Region": "eu"},
		},
		{
			name:    "malformed json",
			raw:     `{not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseHeaders(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if parsed.Token != tt.wantToken {
				t.Fatalf("token = %q, want %q", parsed.Token, tt.wantToken)
			}
			if len(parsed.Extra) != len(tt.wantExtra) {
				t.Fatalf("extra = %#v, want %#v", parsed.Extra, tt.wantExtra)
			}
			for k, v := range tt.wantExtra {
				if parsed.Extra[k] != v {
					t.Fatalf("extra[%s] = %q, want %q", k, parsed.Extra[k], v)
				}
			}
		})
	}
}

func TestQueryParams(t *testing.T) {
	params := QueryParams(map[string]string{
		"X-Api-Version": "2",
		"X-Region":      "eu-west",
		"Accept":        "application/json",
	})

	if got := params.Get("api_version"); got != "2" {
		t.Fatalf("api_version = %q", got)
	}
	if got := params.Get("region"); got != "eu-west" {
		t.Fatalf("region = %q", got)
	}
	if got := params.Get("accept"); got != "application/json" {
		t.Fatalf("accept = %q", got)
	}
}

func TestAppendQuery(t *testing.T) {
	params := QueryParams(map[string]string{"X-Team": "core"})

	if got := AppendQuery("https://mcp.example.com/sse", params); got != "https://mcp.example.com/sse?team=core" {
		t.Fatalf("got %q", got)
	}
	if got := AppendQuery("https://mcp.example.com/sse?a=1", params); got != "https://mcp.example.com/sse?a=1&team=core" {
		t.Fatalf("got %q", got)
	}
	if got := AppendQuery("https://mcp.example.com/sse", nil); got != "https://mcp.example.com/sse" {
		t.Fatalf("got %q", got)
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"HTTP 401 from upstream", true},
		{"403 Forbidden", true},
		{"request was Unauthorized", true},
		{"Authentication Required to list tools", true},
		{"access denied by server", true},
		{"Invalid Token supplied", true},
		{"token expired at 2026-01-01", true},
		{"connection reset by peer", false},
		{"tool exploded with a stack trace", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsAuthError(tt.text); got != tt.want {
			t.Errorf("IsAuthError(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
