package uploading

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
	"github.com/Baleenmedia2512/recordingapp--ramesh/lms"
	"github.com/Baleenmedia2512/recordingapp--ramesh/queue"
	"github.com/Baleenmedia2512/recordingapp--ramesh/storage"
)

// ManagerStatus is an observability snapshot of the queue manager
type ManagerStatus struct {
	IsProcessing bool        `json:"is_processing"`
	IsRunning    bool        `json:"is_running"`
	Stats        queue.Stats `json:"stats"`
}

// QueueManager drives the upload retry loop: periodic wake-up, reconnect
// wake-up, manual trigger, single-flight processing and retention cleanup
type QueueManager interface {
	// Start begins periodic queue processing. Calling Start on a running
	// manager is a no-op.
	Start()

	// Stop cancels the timers. An in-flight pass is allowed to finish;
	// uploads are not safely interruptible mid-transfer.
	Stop()

	// TriggerRetry requests an out-of-band processing pass, subject to the
	// same single-flight guard as the periodic pass
	TriggerRetry()

	// GetStatus returns a snapshot of the manager and queue state
	GetStatus(ctx context.Context) (ManagerStatus, error)
}

// ManagerSettings holds the tunable timings of the queue manager
type ManagerSettings struct {
	RetryInterval   time.Duration
	CleanupInterval time.Duration
	RetentionDays   int
	UploadTimeout   time.Duration
	ExistsTimeout   time.Duration
	NotifyTimeout   time.Duration
}

// DefaultManagerSettings returns the settings used in production
func DefaultManagerSettings() ManagerSettings {
	return ManagerSettings{
		RetryInterval:   5 * time.Minute,
		CleanupInterval: 24 * time.Hour,
		RetentionDays:   7,
		UploadTimeout:   30 * time.Second,
		ExistsTimeout:   5 * time.Second,
		NotifyTimeout:   15 * time.Second,
	}
}

// queueManager implements QueueManager
type queueManager struct {
	settings  ManagerSettings
	repo      queue.UploadRepository
	uploader  Uploader
	checker   storage.ExistenceChecker
	notifier  lms.Notifier
	scheduler RetryScheduler
	logger    logging.Logger

	// now is swapped out by tests to control backoff eligibility
	now func() time.Time

	processing atomic.Bool
	mu         sync.Mutex
	isRunning  bool
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// NewQueueManager creates a queue manager with injected dependencies.
// A nil notifier disables downstream forwarding; a nil scheduler uses the
// default exponential backoff.
func NewQueueManager(
	settings ManagerSettings,
	repo queue.UploadRepository,
	uploader Uploader,
	checker storage.ExistenceChecker,
	notifier lms.Notifier,
	scheduler RetryScheduler,
	logger logging.Logger,
) QueueManager {
	if notifier == nil {
		notifier = lms.NopNotifier
	}
	if scheduler == nil {
		scheduler = NewExponentialScheduler()
	}
	if logger == nil {
		logger = logging.NopLogger
	}

	return &queueManager{
		settings:  settings,
		repo:      repo,
		uploader:  uploader,
		checker:   checker,
		notifier:  notifier,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// Start begins periodic queue processing
func (m *queueManager) Start() {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		m.logger.Warn("Queue manager already running")
		return
	}
	m.isRunning = true
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("Starting upload queue manager", "retry_interval", m.settings.RetryInterval)

	m.wg.Add(1)
	go m.run(m.stopChan)
}

// Stop cancels the timers and waits for an in-flight pass to finish
func (m *queueManager) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("Upload queue manager stopped")
}

// TriggerRetry requests an out-of-band processing pass
func (m *queueManager) TriggerRetry() {
	m.logger.Info("Manual retry triggered")
	m.processQueue()
}

// GetStatus returns a snapshot of the manager and queue state
func (m *queueManager) GetStatus(ctx context.Context) (ManagerStatus, error) {
	stats, err := m.repo.Stats(ctx)
	if err != nil {
		return ManagerStatus{}, err
	}

	m.mu.Lock()
	isRunning := m.isRunning
	m.mu.Unlock()

	return ManagerStatus{
		IsProcessing: m.processing.Load(),
		IsRunning:    isRunning,
		Stats:        stats,
	}, nil
}

// run is the manager's timer loop
func (m *queueManager) run(stopChan <-chan struct{}) {
	defer m.wg.Done()

	// Process the queue immediately on start
	m.processQueue()

	retryTicker := time.NewTicker(m.settings.RetryInterval)
	defer retryTicker.Stop()

	cleanupTicker := time.NewTicker(m.settings.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-retryTicker.C:
			m.logger.Debug("Periodic retry triggered")
			m.processQueue()
		case <-cleanupTicker.C:
			m.cleanup()
		case <-stopChan:
			return
		}
	}
}

// processQueue runs one pass over all pending uploads. Only one pass runs
// at a time; concurrent callers return immediately.
func (m *queueManager) processQueue() {
	if !m.processing.CompareAndSwap(false, true) {
		m.logger.Debug("Queue processing already in progress, skipping")
		return
	}
	defer m.processing.Store(false)

	ctx := context.Background()

	stats, err := m.repo.Stats(ctx)
	if err != nil {
		// Store unavailable: skip this pass, the next wake retries
		m.logger.Error("Failed to read queue stats, skipping pass", "error", err)
		return
	}

	m.logger.Info("Processing upload queue",
		"pending", stats.Pending, "success", stats.Success, "failed", stats.Failed)

	if stats.Pending > 0 {
		uploads, err := m.repo.GetPending(ctx)
		if err != nil {
			m.logger.Error("Failed to fetch pending uploads, skipping pass", "error", err)
			return
		}

		// Strictly sequential: bounds network usage on constrained devices
		// and keeps the backoff math simple
		for _, upload := range uploads {
			if err := m.processUpload(ctx, upload); err != nil {
				m.logger.Error("Store failure during pass, aborting remaining items", "error", err)
				return
			}
		}
	}

	m.renotifyDelivered(ctx)
}

// processUpload handles one pending upload. The returned error is non-nil
// only for store-level failures, which abort the rest of the pass.
func (m *queueManager) processUpload(ctx context.Context, upload *queue.PendingUpload) error {
	if upload.RetryCount >= queue.MaxRetries {
		m.logger.Error("Max retries exceeded, marking upload as failed", "id", upload.ID)
		return m.repo.UpdateStatus(ctx, upload.ID, queue.StatusFailed, "max retries exceeded")
	}

	if !m.scheduler.IsDue(upload, m.now()) {
		m.logger.Debug("Backoff delay not met yet, skipping",
			"id", upload.ID, "retry_count", upload.RetryCount)
		return nil
	}

	// Idempotency guard: never upload what is already in the bucket
	existsCtx, cancel := context.WithTimeout(ctx, m.settings.ExistsTimeout)
	exists := m.checker.Exists(existsCtx, upload.FileName)
	cancel()

	if exists {
		m.logger.Info("Recording already in bucket, marking as success", "id", upload.ID)
		return m.repo.SetDelivered(ctx, upload.ID, "")
	}

	uploadCtx, cancel := context.WithTimeout(ctx, m.settings.UploadTimeout)
	publicURL, err := m.uploader.Upload(uploadCtx, upload)
	cancel()

	if err != nil {
		if !storage.IsRecoverable(err) {
			m.logger.Error("Upload permanently failed", "id", upload.ID, "error", err)
			return m.repo.UpdateStatus(ctx, upload.ID, queue.StatusFailed, err.Error())
		}

		newCount, repoErr := m.repo.IncrementRetry(ctx, upload.ID, err.Error())
		if repoErr != nil {
			return repoErr
		}

		m.logger.Warn("Upload failed, will retry",
			"id", upload.ID, "retry_count", newCount, "next_delay", m.scheduler.Delay(newCount))
		return nil
	}

	if err := m.repo.SetDelivered(ctx, upload.ID, publicURL); err != nil {
		return err
	}
	m.logger.Info("Upload delivered", "id", upload.ID, "url", publicURL)

	if upload.LMSCallID != "" {
		m.notify(ctx, upload.ID, upload.LMSCallID, publicURL, upload.Duration)
	}

	return nil
}

// notify forwards a delivered recording to the LMS. Notification failure
// never affects the upload's success status; unconfirmed notifications are
// retried by later passes through renotifyDelivered.
func (m *queueManager) notify(ctx context.Context, id, callID, publicURL string, duration time.Duration) {
	notifyCtx, cancel := context.WithTimeout(ctx, m.settings.NotifyTimeout)
	defer cancel()

	if !m.notifier.NotifyRecording(notifyCtx, callID, publicURL, int(duration.Seconds())) {
		m.logger.Warn("LMS notification failed, will retry on a later pass", "id", id)
		return
	}

	if err := m.repo.MarkNotified(ctx, id); err != nil {
		m.logger.Warn("Failed to record notification state", "id", id, "error", err)
	}
}

// renotifyDelivered retries outstanding LMS notifications for uploads that
// already reached the bucket
func (m *queueManager) renotifyDelivered(ctx context.Context) {
	uploads, err := m.repo.GetUnnotified(ctx)
	if err != nil {
		m.logger.Error("Failed to fetch unnotified uploads", "error", err)
		return
	}

	for _, upload := range uploads {
		m.notify(ctx, upload.ID, upload.LMSCallID, upload.PublicURL, upload.Duration)
	}
}

// cleanup removes old successful uploads past the retention window
func (m *queueManager) cleanup() {
	ctx := context.Background()

	deleted, err := m.repo.CleanupSuccessful(ctx, m.settings.RetentionDays)
	if err != nil {
		m.logger.Error("Retention cleanup failed", "error", err)
		return
	}

	m.logger.Info("Retention cleanup completed", "deleted", deleted)
}
