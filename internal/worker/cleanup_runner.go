// Package worker runs the periodic background jobs of the service.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"assistant-api/internal/domain/attachment"
	"assistant-api/internal/infrastructure/metrics"
)

// CleanupRunner sweeps expired vector stores on a fixed interval.
type CleanupRunner struct {
	cleanup  *attachment.CleanupService
	interval time.Duration
	log      zerolog.Logger
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewCleanupRunner creates the runner. interval is the time between
// sweeps; the first sweep happens one interval after Start.
func NewCleanupRunner(cleanup *attachment.CleanupService, interval time.Duration, log zerolog.Logger) *CleanupRunner {
	return &CleanupRunner{
		cleanup:  cleanup,
		interval: interval,
		log:      log.With().Str("component", "cleanup-runner").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start launches the background loop.
func (r *CleanupRunner) Start(ctx context.Context) {
	r.log.Info().Dur("interval", r.interval).Msg("starting cleanup runner")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.log.Info().Msg("cleanup runner stopped by context")
				return
			case <-r.stopChan:
				r.log.Info().Msg("cleanup runner stopped")
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
}

// Stop gracefully shuts down the runner.
func (r *CleanupRunner) Stop() {
	close(r.stopChan)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info().Msg("cleanup runner stopped gracefully")
	case <-time.After(30 * time.Second):
		r.log.Warn().Msg("cleanup runner shutdown timed out")
	}
}

func (r *CleanupRunner) sweep(ctx context.Context) {
	stats, err := r.cleanup.Run(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("cleanup sweep failed")
		metrics.RecordCleanupRun("error")
		return
	}

	r.log.Info().
		Int("stores_checked", stats.StoresChecked).
		Int("stores_expired", stats.StoresExpired).
		Int("stores_deleted", stats.StoresDeleted).
		Int("files_deleted", stats.FilesDeleted).
		Int("threads_updated", stats.ThreadsUpdated).
		Msg("cleanup sweep completed")
	metrics.RecordCleanupRun("success")
}
