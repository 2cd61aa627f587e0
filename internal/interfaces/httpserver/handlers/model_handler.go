package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"assistant-api/internal/domain/model"
)

// ModelHandler lists the models available for chat.
type ModelHandler struct {
	registry *model.Registry
}

// NewModelHandler constructs the handler.
func NewModelHandler(registry *model.Registry) *ModelHandler {
	return &ModelHandler{registry: registry}
}

// List handles GET /v1/models.
func (h *ModelHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.registry.Models()})
}
