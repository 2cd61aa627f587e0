package attachment

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// CleanupStats summarizes one expiration sweep.
type CleanupStats struct {
	StoresChecked  int `json:"vector_stores_checked"`
	StoresExpired  int `json:"vector_stores_expired"`
	StoresDeleted  int `json:"vector_stores_deleted"`
	FilesFound     int `json:"files_found"`
	FilesDeleted   int `json:"files_deleted"`
	ThreadsUpdated int `json:"threads_updated"`
}

// CleanupService sweeps expired vector stores and removes their files,
// records and thread references.
type CleanupService struct {
	svc     *Service
	store   FileStore
	threads Threads
	uploads Uploads
	log     zerolog.Logger
}

// NewCleanupService builds the sweep service on top of the attachment
// service's deletion logic.
func NewCleanupService(svc *Service, store FileStore, threads Threads, uploads Uploads, log zerolog.Logger) *CleanupService {
	return &CleanupService{
		svc:     svc,
		store:   store,
		threads: threads,
		uploads: uploads,
		log:     log.With().Str("component", "attachment_cleanup").Logger(),
	}
}

// Run checks every referenced vector store and deletes the expired
// ones. Stores referenced by upload records and by threads are both
// considered; a store that no longer exists upstream counts as expired.
func (c *CleanupService) Run(ctx context.Context) (CleanupStats, error) {
	stats := CleanupStats{}

	storeIDs, err := c.collectStoreIDs(ctx)
	if err != nil {
		return stats, err
	}
	c.log.Info().Int("stores", len(storeIDs)).Msg("starting vector store cleanup")

	for _, storeID := range storeIDs {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		stats.StoresChecked++

		expired, err := c.isExpired(ctx, storeID)
		if err != nil {
			c.log.Warn().Err(err).Str("store_id", storeID).Msg("failed to check vector store")
			continue
		}
		if !expired {
			continue
		}
		stats.StoresExpired++

		res, err := c.svc.DeleteVectorStore(ctx, storeID)
		stats.FilesFound += res.FilesFound
		stats.FilesDeleted += res.FilesDeleted
		if err != nil {
			c.log.Warn().Err(err).Str("store_id", storeID).Msg("failed to delete vector store")
			continue
		}
		if !res.Deleted {
			continue
		}
		stats.StoresDeleted++

		updated, err := c.threads.ClearVectorStore(ctx, storeID)
		if err != nil {
			c.log.Warn().Err(err).Str("store_id", storeID).Msg("failed to clear thread references")
			continue
		}
		stats.ThreadsUpdated += int(updated)
	}

	c.log.Info().
		Int("checked", stats.StoresChecked).
		Int("expired", stats.StoresExpired).
		Int("deleted", stats.StoresDeleted).
		Int("files_deleted", stats.FilesDeleted).
		Msg("vector store cleanup finished")
	return stats, nil
}

func (c *CleanupService) collectStoreIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string

	fromUploads, err := c.uploads.UniqueVectorStoreIDs(ctx)
	if err != nil {
		return nil, err
	}
	fromThreads, err := c.threads.UniqueVectorStoreIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, id := range append(fromUploads, fromThreads...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *CleanupService) isExpired(ctx context.Context, storeID string) (bool, error) {
	store, err := c.store.RetrieveVectorStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return true, nil
		}
		return false, err
	}
	return store.Status == "expired", nil
}
