package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
	"github.com/Baleenmedia2512/recordingapp--ramesh/queue"
	"github.com/Baleenmedia2512/recordingapp--ramesh/uploading"
)

// QueueHandler exposes the upload queue over the status API
type QueueHandler struct {
	logger  logging.Logger
	manager uploading.QueueManager
	repo    queue.UploadRepository
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(logger logging.Logger, manager uploading.QueueManager, repo queue.UploadRepository) *QueueHandler {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &QueueHandler{
		logger:  logger,
		manager: manager,
		repo:    repo,
	}
}

// uploadResponse is the JSON shape of one queue record
type uploadResponse struct {
	ID         string  `json:"id"`
	FileName   string  `json:"file_name"`
	FileSize   int64   `json:"file_size"`
	Duration   float64 `json:"duration_seconds"`
	CreatedAt  string  `json:"created_at"`
	Status     string  `json:"status"`
	RetryCount int     `json:"retry_count"`
	LastError  *string `json:"last_error"`
	PublicURL  string  `json:"public_url,omitempty"`
	Notified   bool    `json:"notified"`
}

func toUploadResponse(upload *queue.PendingUpload) uploadResponse {
	return uploadResponse{
		ID:         upload.ID,
		FileName:   upload.FileName,
		FileSize:   upload.FileSize,
		Duration:   upload.Duration.Seconds(),
		CreatedAt:  upload.CreatedAt.Format(time.RFC3339),
		Status:     string(upload.Status),
		RetryCount: upload.RetryCount,
		LastError:  upload.LastError,
		PublicURL:  upload.PublicURL,
		Notified:   upload.Notified,
	}
}

// GetStatus handles GET /api/status
func (h *QueueHandler) GetStatus(c *gin.Context) {
	status, err := h.manager.GetStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read queue status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read queue status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetStats handles GET /api/stats
func (h *QueueHandler) GetStats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read queue stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read queue stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListUploads handles GET /api/uploads?status=pending
func (h *QueueHandler) ListUploads(c *gin.Context) {
	status := queue.UploadStatus(c.Query("status"))
	switch status {
	case "", queue.StatusPending, queue.StatusSuccess, queue.StatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	uploads, err := h.repo.List(c.Request.Context(), status)
	if err != nil {
		h.logger.Error("Failed to list uploads", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list uploads"})
		return
	}

	responses := make([]uploadResponse, 0, len(uploads))
	for _, upload := range uploads {
		responses = append(responses, toUploadResponse(upload))
	}

	c.JSON(http.StatusOK, gin.H{"uploads": responses})
}

// EnqueueRequest is the body of POST /api/uploads
type EnqueueRequest struct {
	FilePath        string  `json:"file_path" binding:"required"`
	FileName        string  `json:"file_name" binding:"required"`
	FileSize        int64   `json:"file_size"`
	DurationSeconds float64 `json:"duration_seconds"`
	LMSCallID       string  `json:"lms_call_id"`
}

// EnqueueUpload handles POST /api/uploads. It lets the recording trigger hand
// over a file for background delivery, with an optional LMS correlation.
func (h *QueueHandler) EnqueueUpload(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.repo.Add(c.Request.Context(), queue.NewPendingUpload{
		FilePath:  req.FilePath,
		FileName:  req.FileName,
		FileSize:  req.FileSize,
		Duration:  time.Duration(req.DurationSeconds * float64(time.Second)),
		LMSCallID: req.LMSCallID,
	})
	if err != nil {
		h.logger.Error("Failed to enqueue upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue upload"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// TriggerRetry handles POST /api/retry
func (h *QueueHandler) TriggerRetry(c *gin.Context) {
	// The pass runs in the background; the single-flight guard makes
	// concurrent triggers harmless
	go h.manager.TriggerRetry()

	c.JSON(http.StatusAccepted, gin.H{"status": "retry triggered"})
}
