package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/api/middleware"
	"github.com/customeros/mailsync/api/rest/handlers"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())                                         // Gin's built-in recovery
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer())) // Our custom Jaeger recovery

	// Health check endpoint (no custom context needed)
	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-MAILSYNC-API-KEY",
		ValidAPIKey: apikey,
	})

	controller := s.ControllerService

	// API group with version and custom context
	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.CustomContextMiddleware("mailsync")) // Add custom context for all /v1/* endpoints
	api.Use(middleware.TracingMiddleware())                 // Add tracing for all /v1/* endpoints
	{
		// Account-scoped sync triggers
		accounts := api.Group("/accounts")
		{
			accounts.POST("/:id/check", handlers.CheckMail(controller, repos))
			accounts.POST("/:id/folders/:folderId/sync", handlers.SyncFolder(controller, repos))
			accounts.POST("/:id/folders/refresh", handlers.RefreshFolderList(controller, repos))
			accounts.POST("/:id/send-pending", handlers.SendPendingMessages(controller, repos))
			accounts.POST("/:id/pending-commands", handlers.ProcessPendingCommands(controller, repos))
			accounts.POST("/:id/empty-trash", handlers.EmptyTrash(controller, repos))
			accounts.POST("/:id/empty-spam", handlers.EmptySpam(controller, repos))
		}

		// Batch message operations, refs may span accounts and folders
		messages := api.Group("/messages")
		{
			messages.POST("/flags", handlers.SetFlag(controller))
			messages.POST("/move", handlers.MoveMessages(controller))
			messages.POST("/copy", handlers.CopyMessages(controller))
			messages.POST("/archive", handlers.ArchiveMessages(controller))
			messages.POST("/spam", handlers.MoveToSpam(controller))
			messages.POST("/delete", handlers.DeleteMessages(controller))
		}
	}
}
