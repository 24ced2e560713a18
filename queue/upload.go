package queue

import "time"

// UploadStatus represents the delivery state of a queued recording
type UploadStatus string

const (
	// StatusPending means the recording still needs to be delivered
	StatusPending UploadStatus = "pending"
	// StatusSuccess means the recording reached the storage bucket
	StatusSuccess UploadStatus = "success"
	// StatusFailed means delivery was permanently abandoned
	StatusFailed UploadStatus = "failed"
)

// MaxRetries is the hard ceiling on delivery attempts per recording.
// An upload that fails this many times is marked failed and never retried.
const MaxRetries = 10

// PendingUpload is one durable record representing a call recording
// that needs to be (or has been) delivered to the storage bucket
type PendingUpload struct {
	ID         string
	FilePath   string
	FileName   string
	FileSize   int64
	Duration   time.Duration
	LMSCallID  string // empty when the recording has no lead-management correlation
	CreatedAt  time.Time
	Status     UploadStatus
	RetryCount int
	LastError  *string
	PublicURL  string
	Notified   bool
}

// NewPendingUpload holds the caller-supplied fields for enqueueing a recording
type NewPendingUpload struct {
	FilePath  string
	FileName  string
	FileSize  int64
	Duration  time.Duration
	LMSCallID string
}

// Stats holds aggregate queue counts for status reporting
type Stats struct {
	Pending int `json:"pending"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}
