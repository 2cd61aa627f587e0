// Package model maintains the catalog of configured models and the
// processor serving each one.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"assistant-api/internal/domain/processor"
)

// Model is one configured model row.
type Model struct {
	ID       uint   `json:"id"`
	ModelID  string `json:"model_id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	APIKey   string `json:"-"`
	BaseURL  string `json:"base_url,omitempty"`
	Default  bool   `json:"default"`
}

// Store lists the configured models.
type Store interface {
	List(ctx context.Context) ([]Model, error)
}

// Builder constructs a processor for one configured model.
type Builder func(m Model) (processor.Processor, error)

// Registry maps model ids to their processors. Models without an API
// key or with an unknown provider are skipped at load time.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]processor.Processor
	models     map[string]Model
	defaultID  string
	log        zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		processors: map[string]processor.Processor{},
		models:     map[string]Model{},
		log:        log.With().Str("component", "model_registry").Logger(),
	}
}

// Load replaces the registry contents from the store using the
// per-provider builders.
func (r *Registry) Load(ctx context.Context, store Store, builders map[string]Builder) error {
	models, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	processors := map[string]processor.Processor{}
	byID := map[string]Model{}
	defaultID := ""

	for _, m := range models {
		if m.APIKey == "" {
			r.log.Warn().Str("model", m.ModelID).Msg("skipping model without api key")
			continue
		}
		build, ok := builders[m.Provider]
		if !ok {
			r.log.Warn().Str("model", m.ModelID).Str("provider", m.Provider).Msg("skipping model with unknown provider")
			continue
		}
		p, err := build(m)
		if err != nil {
			r.log.Error().Err(err).Str("model", m.ModelID).Msg("building processor failed")
			continue
		}
		processors[m.ModelID] = p
		byID[m.ModelID] = m
		if m.Default && defaultID == "" {
			defaultID = m.ModelID
		}
	}

	if defaultID == "" {
		for _, m := range models {
			if _, ok := processors[m.ModelID]; ok {
				defaultID = m.ModelID
				break
			}
		}
	}

	r.mu.Lock()
	r.processors = processors
	r.models = byID
	r.defaultID = defaultID
	r.mu.Unlock()

	r.log.Info().Int("models", len(processors)).Str("default", defaultID).Msg("model registry loaded")
	return nil
}

// Get returns the processor serving the given model id.
func (r *Registry) Get(modelID string) (processor.Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[modelID]
	return p, ok
}

// Default returns the default model id and its processor.
func (r *Registry) Default() (string, processor.Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[r.defaultID]
	return r.defaultID, p, ok
}

// Models lists the registered models.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	return out
}
