package uploading

import (
	"time"

	"github.com/Baleenmedia2512/recordingapp--ramesh/queue"
)

// backoffCap bounds the exponential growth of the retry delay. With the
// current retry ceiling the largest computed delay is about 17 minutes, so
// the cap only matters if the ceiling is ever raised.
const backoffCap = time.Hour

// RetryScheduler decides when a pending upload is eligible for another attempt
type RetryScheduler interface {
	// Delay returns the backoff delay for the given retry count
	Delay(retryCount int) time.Duration

	// IsDue reports whether the upload may be attempted at the given time
	IsDue(upload *queue.PendingUpload, now time.Time) bool
}

// exponentialScheduler implements RetryScheduler with capped exponential backoff
type exponentialScheduler struct{}

// NewExponentialScheduler creates the default retry scheduler
func NewExponentialScheduler() RetryScheduler {
	return &exponentialScheduler{}
}

// Delay returns min(2^retryCount seconds, one hour)
func (s *exponentialScheduler) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	// 2^12 seconds already exceeds the cap; guard before shifting
	if retryCount >= 12 {
		return backoffCap
	}

	delay := time.Duration(1<<uint(retryCount)) * time.Second
	if delay > backoffCap {
		return backoffCap
	}
	return delay
}

// IsDue reports whether enough time has passed since the upload was enqueued.
// The baseline is deliberately the enqueue time rather than the last attempt:
// it keeps the schedule computable from the record alone.
func (s *exponentialScheduler) IsDue(upload *queue.PendingUpload, now time.Time) bool {
	if upload.RetryCount == 0 {
		return true
	}
	return now.Sub(upload.CreatedAt) >= s.Delay(upload.RetryCount)
}
