package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
	"github.com/Baleenmedia2512/recordingapp--ramesh/queue"
	"github.com/Baleenmedia2512/recordingapp--ramesh/uploading"
	"github.com/Baleenmedia2512/recordingapp--ramesh/web/handlers"
	"github.com/Baleenmedia2512/recordingapp--ramesh/web/middleware"
)

// Server exposes the status API over HTTP
type Server struct {
	logger logging.Logger
	server *http.Server
}

// NewServer builds the status API server
func NewServer(addr string, port int, apiKey string, debug bool, manager uploading.QueueManager, repo queue.UploadRepository, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	authMiddleware := middleware.NewAuthMiddleware(logger, apiKey)
	queueHandler := handlers.NewQueueHandler(logger, manager, repo)

	setupRoutes(router, authMiddleware, queueHandler)

	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", addr, port),
			Handler: router,
		},
	}
}

// setupRoutes wires the status API endpoints
func setupRoutes(router *gin.Engine, auth *middleware.AuthMiddleware, queueHandler *handlers.QueueHandler) {
	api := router.Group("/api")
	api.Use(auth.RequireAuth())
	{
		api.GET("/status", queueHandler.GetStatus)
		api.GET("/stats", queueHandler.GetStats)
		api.GET("/uploads", queueHandler.ListUploads)
		api.POST("/uploads", queueHandler.EnqueueUpload)
		api.POST("/retry", queueHandler.TriggerRetry)
	}
}

// Start begins serving in a background goroutine
func (s *Server) Start() {
	s.logger.Info("Status API listening", "address", s.server.Addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Status API server failed", "error", err)
		}
	}()
}

// Stop shuts the server down gracefully
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("Status API shutdown failed", "error", err)
	}
}
