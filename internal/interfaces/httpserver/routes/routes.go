// Package routes wires handlers onto the gin engine.
package routes

import (
	"github.com/gin-gonic/gin"

	"assistant-api/internal/interfaces/httpserver/handlers"
)

// Provider coordinates all route registrations.
type Provider struct {
	handlers *handlers.Provider
}

// NewProvider constructs the route provider.
func NewProvider(handlerProvider *handlers.Provider) *Provider {
	return &Provider{handlers: handlerProvider}
}

// Register attaches all available routes to the gin engine.
func (p *Provider) Register(engine *gin.Engine) {
	v1 := engine.Group("/v1")

	v1.POST("/chat", p.handlers.Chat.Chat)

	v1.POST("/threads", p.handlers.Thread.Create)
	v1.GET("/threads/:thread_id", p.handlers.Thread.Get)
	v1.POST("/threads/:thread_id/files", p.handlers.Thread.UploadFiles)
	v1.DELETE("/threads/:thread_id/files", p.handlers.Thread.DeleteFiles)

	v1.GET("/models", p.handlers.Model.List)

	v1.GET("/oauth/callback", p.handlers.OAuth.Callback)
}
