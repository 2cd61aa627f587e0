package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"assistant-api/internal/domain/attachment"
	"assistant-api/internal/infrastructure/metrics"
	"assistant-api/internal/infrastructure/repository/threadrepo"
)

// ThreadHandler manages threads and their file attachments.
type ThreadHandler struct {
	threads     *threadrepo.Repository
	attachments *attachment.Service
	log         zerolog.Logger
}

// NewThreadHandler constructs the handler.
func NewThreadHandler(threads *threadrepo.Repository, attachments *attachment.Service, log zerolog.Logger) *ThreadHandler {
	return &ThreadHandler{
		threads:     threads,
		attachments: attachments,
		log:         log.With().Str("handler", "thread").Logger(),
	}
}

type createThreadRequest struct {
	Title string `json:"title"`
}

// Create handles POST /v1/threads.
func (h *ThreadHandler) Create(c *gin.Context) {
	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	th, err := h.threads.Create(c.Request.Context(), UserID(c), req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, th)
}

// Get handles GET /v1/threads/:thread_id, returning the thread with its
// transcript.
func (h *ThreadHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	th, err := h.threads.FindByUUID(ctx, c.Param("thread_id"))
	if err != nil {
		h.respondNotFoundOrError(c, err)
		return
	}

	messages, err := h.threads.Messages(ctx, th.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"thread": th, "messages": messages})
}

// UploadFiles handles POST /v1/threads/:thread_id/files. Files arrive
// as a multipart form under the "files" field; they are uploaded,
// attached to the thread's vector store and waited on.
func (h *ThreadHandler) UploadFiles(c *gin.Context) {
	ctx := c.Request.Context()

	th, err := h.threads.FindByUUID(ctx, c.Param("thread_id"))
	if err != nil {
		h.respondNotFoundOrError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	files := make([]attachment.File, 0, len(headers))
	for _, header := range headers {
		opened, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		data, err := io.ReadAll(opened)
		opened.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		files = append(files, attachment.File{Name: header.Filename, Data: data})
	}

	storeID, err := h.attachments.ProcessFilesForThread(ctx, th.ID, UserID(c), files)
	if err != nil {
		metrics.RecordFileUpload("error")
		status := http.StatusInternalServerError
		if errors.Is(err, attachment.ErrFileTooLarge) || errors.Is(err, attachment.ErrTooManyFiles) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	metrics.RecordFileUpload("success")
	c.JSON(http.StatusOK, gin.H{"vector_store_id": storeID, "files_processed": len(files)})
}

// DeleteFiles handles DELETE /v1/threads/:thread_id/files, removing the
// thread's vector store with its files.
func (h *ThreadHandler) DeleteFiles(c *gin.Context) {
	ctx := c.Request.Context()

	th, err := h.threads.FindByUUID(ctx, c.Param("thread_id"))
	if err != nil {
		h.respondNotFoundOrError(c, err)
		return
	}

	if th.VectorStoreID == "" {
		c.JSON(http.StatusOK, gin.H{"deleted": false})
		return
	}

	result, err := h.attachments.DeleteVectorStore(ctx, th.VectorStoreID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if result.Deleted {
		if _, err := h.threads.ClearVectorStore(ctx, th.VectorStoreID); err != nil {
			h.log.Error().Err(err).Str("store_id", th.VectorStoreID).Msg("clearing store reference failed")
		}
	}

	c.JSON(http.StatusOK, result)
}

func (h *ThreadHandler) respondNotFoundOrError(c *gin.Context, err error) {
	if errors.Is(err, threadrepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
