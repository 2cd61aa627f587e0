package model

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-api/internal/domain/chunk"
	"assistant-api/internal/domain/processor"
)

type staticStore []Model

func (s staticStore) List(context.Context) ([]Model, error) { return s, nil }

type stubProcessor struct{ name string }

func (s stubProcessor) Name() string              { return s.name }
func (s stubProcessor) SupportedModels() []string { return nil }
func (s stubProcessor) Stream(context.Context, processor.Request) (<-chan chunk.Chunk, error) {
	return nil, nil
}

func builders() map[string]Builder {
	mk := func(name string) Builder {
		return func(Model) (processor.Processor, error) { return stubProcessor{name: name}, nil }
	}
	return map[string]Builder{"openai": mk("openai"), "anthropic": mk("anthropic")}
}

func TestLoadSkipsModelsWithoutKeyOrProvider(t *testing.T) {
	store := staticStore{
		{ModelID: "gpt-4o", Provider: "openai", APIKey: "sk-1"},
		{ModelID: "keyless", Provider: "openai"},
		{ModelID: "mystery", Provider: "acme", APIKey: "x"},
	}

	r := NewRegistry(zerolog.Nop())
	require.NoError(t, r.Load(context.Background(), store, builders()))

	_, ok := r.Get("gpt-4o")
	assert.True(t, ok)
	_, ok = r.Get("keyless")
	assert.False(t, ok)
	_, ok = r.Get("mystery")
	assert.False(t, ok)
	assert.Len(t, r.Models(), 1)
}

func TestLoadPicksDefault(t *testing.T) {
	store := staticStore{
		{ModelID: "gpt-4o", Provider: "openai", APIKey: "sk-1"},
		{ModelID: "claude-sonnet", Provider: "anthropic", APIKey: "sk-2", Default: true},
	}

	r := NewRegistry(zerolog.Nop())
	require.NoError(t, r.Load(context.Background(), store, builders()))

	id, p, ok := r.Default()
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet", id)
	assert.Equal(t, "anthropic", p.Name())
}

func TestLoadFallsBackToFirstUsableDefault(t *testing.T) {
	store := staticStore{
		{ModelID: "keyless", Provider: "openai", Default: true},
		{ModelID: "gpt-4o", Provider: "openai", APIKey: "sk-1"},
	}

	r := NewRegistry(zerolog.Nop())
	require.NoError(t, r.Load(context.Background(), store, builders()))

	id, _, ok := r.Default()
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", id)
}

func TestLoadSkipsFailedBuilds(t *testing.T) {
	store := staticStore{{ModelID: "gpt-4o", Provider: "openai", APIKey: "sk-1"}}
	b := map[string]Builder{
		"openai": func(Model) (processor.Processor, error) { return nil, errors.New("bad config") },
	}

	r := NewRegistry(zerolog.Nop())
	require.NoError(t, r.Load(context.Background(), store, b))
	assert.Empty(t, r.Models())
}
