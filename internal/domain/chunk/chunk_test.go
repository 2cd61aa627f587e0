package chunk

import "testing"

func TestFactoryStampsProcessor(t *testing.T) {
	f := NewFactory("openai")

	tests := []struct {
		name  string
		chunk Chunk
		typ   Type
	}{
		{"text", f.Text("hello"), TypeText},
		{"completion", f.Completion(nil), TypeCompletion},
		{"lifecycle", f.Lifecycle("created"), TypeLifecycle},
		{"error", f.Error("boom", "TimeoutError"), TypeError},
		{"auth_required", f.AuthRequired("notion", "42", "", ""), TypeAuthRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.chunk.Type != tt.typ {
				t.Fatalf("type = %q, want %q", tt.chunk.Type, tt.typ)
			}
			if got := tt.chunk.Metadata[MetaProcessor]; got != "openai" {
				t.Fatalf("processor = %q, want openai", got)
			}
		})
	}
}

func TestFactoryDoesNotOverwriteProcessor(t *testing.T) {
	f := NewFactory("anthropic")
	c := f.New(TypeToolCall, "", map[string]string{
		MetaToolName: "search",
		MetaStatus:   "starting",
	})
	if c.Metadata[MetaProcessor] != "anthropic" {
		t.Fatalf("processor = %q", c.Metadata[MetaProcessor])
	}
	if c.Metadata[MetaToolName] != "search" || c.Metadata[MetaStatus] != "starting" {
		t.Fatalf("extra metadata lost: %#v", c.Metadata)
	}
}

func TestErrorChunkCarriesTypeName(t *testing.T) {
	c := NewFactory("gemini").Error("rate limited", "APIError")
	if c.Text != "rate limited" {
		t.Fatalf("text = %q", c.Text)
	}
	if c.Metadata[MetaErrorType] != "APIError" {
		t.Fatalf("error_type = %q", c.Metadata[MetaErrorType])
	}
}
