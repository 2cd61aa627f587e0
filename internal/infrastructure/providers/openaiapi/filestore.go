package openaiapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"assistant-api/internal/domain/attachment"
)

// FileStore implements the attachment.FileStore interface against the
// OpenAI Files and Vector Stores APIs.
type FileStore struct {
	httpClient *resty.Client
}

// NewFileStore creates a Resty-backed file store client.
func NewFileStore(baseURL, apiKey string) *FileStore {
	return &FileStore{
		httpClient: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetAuthToken(apiKey).
			SetTimeout(120 * time.Second),
	}
}

var _ attachment.FileStore = (*FileStore)(nil)

type fileObject struct {
	ID string `json:"id"`
}

type vectorStoreObject struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type vectorStoreFileObject struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Message string `json:"message"`
	} `json:"last_error"`
}

type vectorStoreFileList struct {
	Data []vectorStoreFileObject `json:"data"`
}

// UploadFile uploads a file with the assistants purpose and returns its id.
func (s *FileStore) UploadFile(ctx context.Context, name string, data []byte) (string, error) {
	var file fileObject
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetFileReader("file", name, bytes.NewReader(data)).
		SetFormData(map[string]string{"purpose": "assistants"}).
		SetResult(&file).
		Post("/files")
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("upload file: %s", resp.String())
	}
	return file.ID, nil
}

// CreateVectorStore creates a store expiring after the given number of
// days of inactivity.
func (s *FileStore) CreateVectorStore(ctx context.Context, name string, expirationDays int) (string, error) {
	var store vectorStoreObject
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"name": name,
			"expires_after": map[string]any{
				"anchor": "last_active_at",
				"days":   expirationDays,
			},
		}).
		SetResult(&store).
		Post("/vector_stores")
	if err != nil {
		return "", fmt.Errorf("create vector store: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create vector store: %s", resp.String())
	}
	return store.ID, nil
}

// RetrieveVectorStore fetches a store; a 404 maps to ErrStoreNotFound.
func (s *FileStore) RetrieveVectorStore(ctx context.Context, storeID string) (*attachment.VectorStore, error) {
	var store vectorStoreObject
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetResult(&store).
		Get("/vector_stores/" + storeID)
	if err != nil {
		return nil, fmt.Errorf("retrieve vector store: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, attachment.ErrStoreNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("retrieve vector store: %s", resp.String())
	}
	return &attachment.VectorStore{ID: store.ID, Name: store.Name, Status: store.Status}, nil
}

// AddFileToVectorStore attaches an uploaded file to a store.
func (s *FileStore) AddFileToVectorStore(ctx context.Context, storeID, fileID string) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"file_id": fileID}).
		Post("/vector_stores/" + storeID + "/files")
	if err != nil {
		return fmt.Errorf("attach file: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("attach file: %s", resp.String())
	}
	return nil
}

// ListVectorStoreFiles lists the files attached to a store.
func (s *FileStore) ListVectorStoreFiles(ctx context.Context, storeID string) ([]attachment.VectorStoreFile, error) {
	var list vectorStoreFileList
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("limit", "100").
		SetResult(&list).
		Get("/vector_stores/" + storeID + "/files")
	if err != nil {
		return nil, fmt.Errorf("list vector store files: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, attachment.ErrStoreNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list vector store files: %s", resp.String())
	}

	files := make([]attachment.VectorStoreFile, len(list.Data))
	for i, f := range list.Data {
		file := attachment.VectorStoreFile{ID: f.ID, Status: f.Status}
		if f.LastError != nil {
			file.LastError = f.LastError.Message
		}
		files[i] = file
	}
	return files, nil
}

// DeleteFile removes an uploaded file.
func (s *FileStore) DeleteFile(ctx context.Context, fileID string) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		Delete("/files/" + fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("delete file: %s", resp.String())
	}
	return nil
}

// DeleteVectorStore removes a store; a 404 maps to ErrStoreNotFound.
func (s *FileStore) DeleteVectorStore(ctx context.Context, storeID string) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		Delete("/vector_stores/" + storeID)
	if err != nil {
		return fmt.Errorf("delete vector store: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return attachment.ErrStoreNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("delete vector store: %s", resp.String())
	}
	return nil
}
