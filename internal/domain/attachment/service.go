// Package attachment manages provider file uploads and the per-thread
// vector store lifecycle, including expiration cleanup.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"assistant-api/internal/domain/retry"
)

// Validation and lifecycle errors. Validation failures are detected
// before any provider call is made.
var (
	ErrFileTooLarge   = errors.New("file exceeds maximum size")
	ErrTooManyFiles   = errors.New("maximum files per thread reached")
	ErrThreadNotFound = errors.New("thread not found")
	// ErrStoreNotFound is returned by FileStore implementations when a
	// vector store no longer exists upstream.
	ErrStoreNotFound = errors.New("vector store not found")
)

// UploadError wraps a provider upload failure after all retries.
type UploadError struct {
	Op    string
	Cause error
}

func (e *UploadError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Cause) }
func (e *UploadError) Unwrap() error { return e.Cause }

// File is a local file queued for upload.
type File struct {
	Name string
	Data []byte
}

// VectorStore is the provider-side view of a store.
type VectorStore struct {
	ID     string
	Name   string
	Status string
}

// VectorStoreFile is one file's processing state inside a store.
type VectorStoreFile struct {
	ID        string
	Status    string
	LastError string
}

// UploadRecord tracks one provider upload in the database.
type UploadRecord struct {
	Filename        string
	FileID          string
	VectorStoreID   string
	VectorStoreName string
	ThreadID        uint
	UserID          string
	Size            int64
}

// FileStore is the provider file and vector store API.
type FileStore interface {
	UploadFile(ctx context.Context, name string, data []byte) (string, error)
	CreateVectorStore(ctx context.Context, name string, expirationDays int) (string, error)
	RetrieveVectorStore(ctx context.Context, storeID string) (*VectorStore, error)
	AddFileToVectorStore(ctx context.Context, storeID, fileID string) error
	ListVectorStoreFiles(ctx context.Context, storeID string) ([]VectorStoreFile, error)
	DeleteFile(ctx context.Context, fileID string) error
	DeleteVectorStore(ctx context.Context, storeID string) error
}

// ThreadRef is the slice of a thread the attachment service needs.
type ThreadRef struct {
	ID            uint
	UUID          string
	VectorStoreID string
}

// Threads is the thread persistence surface used here.
type Threads interface {
	Get(ctx context.Context, id uint) (*ThreadRef, error)
	SetVectorStore(ctx context.Context, id uint, storeID string) error
	ClearVectorStore(ctx context.Context, storeID string) (int64, error)
	UniqueVectorStoreIDs(ctx context.Context) ([]string, error)
}

// Uploads persists upload tracking records.
type Uploads interface {
	CountForThread(ctx context.Context, threadID uint) (int64, error)
	Record(ctx context.Context, rec UploadRecord) error
	ForVectorStore(ctx context.Context, storeID string) ([]UploadRecord, error)
	DeleteByVectorStore(ctx context.Context, storeID string) error
	UniqueVectorStoreIDs(ctx context.Context) ([]string, error)
}

// Config bounds uploads and store expiration.
type Config struct {
	MaxFileSizeMB       int
	MaxFilesPerThread   int
	StoreExpirationDays int
	ProcessingTimeout   time.Duration
	PollInterval        time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxFileSizeMB <= 0 {
		c.MaxFileSizeMB = 20
	}
	if c.MaxFilesPerThread <= 0 {
		c.MaxFilesPerThread = 10
	}
	if c.StoreExpirationDays <= 0 {
		c.StoreExpirationDays = 7
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c
}

// Service manages uploads and the per-thread vector store.
type Service struct {
	store   FileStore
	threads Threads
	uploads Uploads
	cfg     Config
	policy  retry.Policy
	log     zerolog.Logger
}

// NewService builds the attachment service.
func NewService(store FileStore, threads Threads, uploads Uploads, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		threads: threads,
		uploads: uploads,
		cfg:     cfg.withDefaults(),
		policy:  retry.UploadPolicy(),
		log:     log.With().Str("component", "attachment").Logger(),
	}
}

// UploadFile validates and uploads one file. Size and per-thread count
// limits are enforced before any provider call.
func (s *Service) UploadFile(ctx context.Context, threadID uint, file File) (string, error) {
	maxBytes := int64(s.cfg.MaxFileSizeMB) * 1024 * 1024
	if int64(len(file.Data)) > maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes, limit %dMB", ErrFileTooLarge, file.Name, len(file.Data), s.cfg.MaxFileSizeMB)
	}

	count, err := s.uploads.CountForThread(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("count thread files: %w", err)
	}
	if count >= int64(s.cfg.MaxFilesPerThread) {
		return "", fmt.Errorf("%w: %d", ErrTooManyFiles, s.cfg.MaxFilesPerThread)
	}

	fileID, err := retry.ExecuteWithResult(ctx, s.policy, func(ctx context.Context, attempt int) (string, error) {
		id, err := s.store.UploadFile(ctx, file.Name, file.Data)
		if err != nil {
			s.log.Warn().Err(err).Int("attempt", attempt+1).Str("file", file.Name).Msg("file upload attempt failed")
		}
		return id, err
	})
	if err != nil {
		return "", &UploadError{Op: "upload file " + file.Name, Cause: err}
	}

	s.log.Info().Str("file", file.Name).Str("file_id", fileID).Msg("uploaded file")
	return fileID, nil
}

// GetOrCreateVectorStore returns the id and name of the thread's
// store, creating and persisting one when the thread has none yet.
// Repeated calls for the same thread return the same store. The name
// of a reused store is looked up from the provider best-effort,
// falling back to the synthesized one.
func (s *Service) GetOrCreateVectorStore(ctx context.Context, threadID uint) (string, string, error) {
	thread, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return "", "", err
	}
	if thread == nil {
		return "", "", fmt.Errorf("%w: %d", ErrThreadNotFound, threadID)
	}

	name := "Thread-" + thread.UUID
	if thread.VectorStoreID != "" {
		store, err := s.store.RetrieveVectorStore(ctx, thread.VectorStoreID)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("store_id", thread.VectorStoreID).Msg("vector store name lookup failed")
		case store.Name != "":
			name = store.Name
		}
		return thread.VectorStoreID, name, nil
	}

	storeID, err := retry.ExecuteWithResult(ctx, s.policy, func(ctx context.Context, attempt int) (string, error) {
		id, err := s.store.CreateVectorStore(ctx, name, s.cfg.StoreExpirationDays)
		if err != nil {
			s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("vector store creation attempt failed")
		}
		return id, err
	})
	if err != nil {
		return "", "", &UploadError{Op: "create vector store", Cause: err}
	}

	if err := s.threads.SetVectorStore(ctx, threadID, storeID); err != nil {
		return "", "", fmt.Errorf("persist vector store id: %w", err)
	}

	s.log.Info().Str("store_id", storeID).Str("thread", thread.UUID).Msg("created vector store")
	return storeID, name, nil
}

// Uploaded pairs a provider file id with its local metadata.
type Uploaded struct {
	FileID string
	Name   string
	Size   int64
}

// AddFiles attaches uploaded files to a store and records them. The
// first attach failure aborts; records are only written once every
// file is attached.
func (s *Service) AddFiles(ctx context.Context, storeID, storeName string, threadID uint, userID string, files []Uploaded) error {
	if len(files) == 0 {
		return nil
	}

	for _, f := range files {
		if err := s.store.AddFileToVectorStore(ctx, storeID, f.FileID); err != nil {
			return fmt.Errorf("add file %s to vector store: %w", f.FileID, err)
		}
	}

	for _, f := range files {
		rec := UploadRecord{
			Filename:        f.Name,
			FileID:          f.FileID,
			VectorStoreID:   storeID,
			VectorStoreName: storeName,
			ThreadID:        threadID,
			UserID:          userID,
			Size:            f.Size,
		}
		if err := s.uploads.Record(ctx, rec); err != nil {
			return fmt.Errorf("record upload %s: %w", f.FileID, err)
		}
	}
	return nil
}

// WaitForProcessing polls until every file reports completed. Returns
// false when a file fails or is cancelled, or when the deadline passes
// with files still pending.
func (s *Service) WaitForProcessing(ctx context.Context, storeID string, fileIDs []string) bool {
	if len(fileIDs) == 0 {
		return true
	}

	pending := make(map[string]struct{}, len(fileIDs))
	for _, id := range fileIDs {
		pending[id] = struct{}{}
	}

	deadline := time.Now().Add(s.cfg.ProcessingTimeout)
	for len(pending) > 0 && time.Now().Before(deadline) {
		files, err := s.store.ListVectorStoreFiles(ctx, storeID)
		if err != nil {
			s.log.Warn().Err(err).Str("store_id", storeID).Msg("listing vector store files failed")
		}
		for _, f := range files {
			if _, ok := pending[f.ID]; !ok {
				continue
			}
			switch f.Status {
			case "completed":
				delete(pending, f.ID)
			case "failed", "cancelled":
				s.log.Error().Str("file_id", f.ID).Str("error", f.LastError).Msg("file processing failed")
				return false
			}
		}

		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.cfg.PollInterval):
		}
	}

	if len(pending) > 0 {
		s.log.Warn().Int("pending", len(pending)).Str("store_id", storeID).Msg("timeout waiting for file processing")
		return false
	}
	return true
}

// ProcessFilesForThread uploads the files, ensures the thread's vector
// store, attaches everything and waits for indexing. On failure the
// already-uploaded provider files are cleaned up best-effort before the
// error is returned. A processing wait that merely times out is logged
// and the store id is still returned.
func (s *Service) ProcessFilesForThread(ctx context.Context, threadID uint, userID string, files []File) (storeID string, err error) {
	if len(files) == 0 {
		return "", nil
	}

	var uploaded []Uploaded
	defer func() {
		if err != nil && len(uploaded) > 0 {
			s.log.Warn().Int("count", len(uploaded)).Msg("cleaning up uploaded files after failure")
			ids := make([]string, len(uploaded))
			for i, u := range uploaded {
				ids[i] = u.FileID
			}
			s.CleanupFiles(ctx, ids)
		}
	}()

	for _, f := range files {
		fileID, uploadErr := s.UploadFile(ctx, threadID, f)
		if uploadErr != nil {
			return "", uploadErr
		}
		uploaded = append(uploaded, Uploaded{FileID: fileID, Name: f.Name, Size: int64(len(f.Data))})
	}

	storeID, storeName, err := s.GetOrCreateVectorStore(ctx, threadID)
	if err != nil {
		return "", err
	}

	if err = s.AddFiles(ctx, storeID, storeName, threadID, userID, uploaded); err != nil {
		return "", err
	}

	ids := make([]string, len(uploaded))
	for i, u := range uploaded {
		ids[i] = u.FileID
	}
	if !s.WaitForProcessing(ctx, storeID, ids) {
		s.log.Warn().Str("store_id", storeID).Msg("some files did not finish processing")
	}

	return storeID, nil
}

// CleanupFiles deletes provider files best-effort; individual failures
// are logged and skipped.
func (s *Service) CleanupFiles(ctx context.Context, fileIDs []string) {
	for _, id := range fileIDs {
		if err := s.store.DeleteFile(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("file_id", id).Msg("failed to delete file")
			continue
		}
		s.log.Debug().Str("file_id", id).Msg("deleted file")
	}
}

// DeleteResult reports what a store deletion accomplished.
type DeleteResult struct {
	Deleted      bool
	FilesFound   int
	FilesDeleted int
}

// DeleteVectorStore removes a store's files and, only when every file
// was deleted, the store itself plus its tracking records. A partial
// file cleanup leaves the store in place for a later run.
func (s *Service) DeleteVectorStore(ctx context.Context, storeID string) (DeleteResult, error) {
	res := DeleteResult{}

	records, err := s.uploads.ForVectorStore(ctx, storeID)
	if err != nil {
		return res, fmt.Errorf("list uploads for store: %w", err)
	}
	res.FilesFound = len(records)

	for _, rec := range records {
		if err := s.store.DeleteFile(ctx, rec.FileID); err != nil {
			s.log.Warn().Err(err).Str("file_id", rec.FileID).Msg("failed to delete file")
			continue
		}
		res.FilesDeleted++
	}

	if res.FilesDeleted < res.FilesFound {
		s.log.Info().
			Str("store_id", storeID).
			Int("found", res.FilesFound).
			Int("deleted", res.FilesDeleted).
			Msg("keeping vector store, not all files were deleted")
		return res, nil
	}

	if err := s.store.DeleteVectorStore(ctx, storeID); err != nil {
		if !errors.Is(err, ErrStoreNotFound) {
			return res, fmt.Errorf("delete vector store: %w", err)
		}
	}
	res.Deleted = true

	if err := s.uploads.DeleteByVectorStore(ctx, storeID); err != nil {
		s.log.Warn().Err(err).Str("store_id", storeID).Msg("failed to remove upload records")
	}

	s.log.Info().Str("store_id", storeID).Int("files", res.FilesDeleted).Msg("deleted vector store")
	return res, nil
}
