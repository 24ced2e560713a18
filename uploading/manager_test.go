package uploading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/db"
	"github.com/Baleenmedia2512/recordingapp--ramesh/queue"
	"github.com/Baleenmedia2512/recordingapp--ramesh/storage"
)

// mockUploader records calls and returns scripted results per file name
type mockUploader struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string]error
	delay   time.Duration
	baseURL string
}

func newMockUploader() *mockUploader {
	return &mockUploader{
		errs:    make(map[string]error),
		baseURL: "https://storage",
	}
}

func (u *mockUploader) Upload(ctx context.Context, upload *queue.PendingUpload) (string, error) {
	u.mu.Lock()
	u.calls = append(u.calls, upload.FileName)
	u.mu.Unlock()

	if u.delay > 0 {
		time.Sleep(u.delay)
	}

	if err, ok := u.errs[upload.FileName]; ok && err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", u.baseURL, upload.FileName), nil
}

func (u *mockUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

func (u *mockUploader) callOrder() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

// mockChecker reports existence from a fixed set
type mockChecker struct {
	mu       sync.Mutex
	existing map[string]bool
	calls    []string
}

func newMockChecker() *mockChecker {
	return &mockChecker{existing: make(map[string]bool)}
}

func (c *mockChecker) Exists(ctx context.Context, fileName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fileName)
	return c.existing[fileName]
}

// mockNotifier records notifications and returns a scripted result
type mockNotifier struct {
	mu     sync.Mutex
	calls  []string
	result bool
}

func (n *mockNotifier) NotifyRecording(ctx context.Context, callID string, publicURL string, durationSeconds int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, callID)
	return n.result
}

func (n *mockNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type managerFixture struct {
	repo     *queue.SQLiteUploadRepository
	uploader *mockUploader
	checker  *mockChecker
	notifier *mockNotifier
	manager  *queueManager
	cleanup  func()
}

func setupManager(t *testing.T) *managerFixture {
	testDB, err := db.NewInMemoryDB()
	require.NoError(t, err)

	repo, err := queue.NewSQLiteUploadRepository(testDB, nil)
	require.NoError(t, err)

	uploader := newMockUploader()
	checker := newMockChecker()
	notifier := &mockNotifier{result: true}

	manager := NewQueueManager(
		DefaultManagerSettings(), repo, uploader, checker, notifier, nil, nil,
	).(*queueManager)

	return &managerFixture{
		repo:     repo,
		uploader: uploader,
		checker:  checker,
		notifier: notifier,
		manager:  manager,
		cleanup:  func() { testDB.Close() },
	}
}

func (f *managerFixture) enqueue(t *testing.T, name, callID string) string {
	id, err := f.repo.Add(context.Background(), queue.NewPendingUpload{
		FilePath:  "/recordings/" + name,
		FileName:  name,
		FileSize:  50000,
		Duration:  30 * time.Second,
		LMSCallID: callID,
	})
	require.NoError(t, err)
	return id
}

func (f *managerFixture) get(t *testing.T, id string) *queue.PendingUpload {
	upload, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, upload)
	return upload
}

func TestQueueManager_SuccessfulUpload(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	id := f.enqueue(t, "rec_1.m4a", "call-1")

	f.manager.processQueue()

	upload := f.get(t, id)
	assert.Equal(t, queue.StatusSuccess, upload.Status)
	assert.Equal(t, "https://storage/rec_1.m4a", upload.PublicURL)
	assert.True(t, upload.Notified)
	assert.Equal(t, 1, f.uploader.callCount())
	assert.Equal(t, 1, f.notifier.callCount())
}

func TestQueueManager_ExistenceShortCircuit(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	id := f.enqueue(t, "rec_f.m4a", "")
	f.checker.existing["rec_f.m4a"] = true

	f.manager.processQueue()

	upload := f.get(t, id)
	assert.Equal(t, queue.StatusSuccess, upload.Status)
	// The uploader must never run for an already-delivered recording
	assert.Equal(t, 0, f.uploader.callCount())
}

func TestQueueManager_FailureIncrementsRetry(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	id := f.enqueue(t, "rec_b.m4a", "")
	f.uploader.errs["rec_b.m4a"] = storage.ErrNetworkUnavailable

	// Three eligible attempts: make every pass see the upload as due
	now := time.Now()
	for i := 0; i < 3; i++ {
		f.manager.now = func() time.Time { return now.Add(time.Duration(i+1) * time.Hour) }
		f.manager.processQueue()
	}

	upload := f.get(t, id)
	assert.Equal(t, queue.StatusPending, upload.Status)
	assert.Equal(t, 3, upload.RetryCount)
	require.NotNil(t, upload.LastError)
	assert.Contains(t, *upload.LastError, "network unavailable")
	assert.Equal(t, 3, f.uploader.callCount())
}

func TestQueueManager_BackoffGating(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	id := f.enqueue(t, "rec.m4a", "")
	f.uploader.errs["rec.m4a"] = storage.ErrTimeout

	created := f.get(t, id).CreatedAt

	// First attempt fails immediately; retry count becomes 1 (delay 2s)
	f.manager.processQueue()
	assert.Equal(t, 1, f.uploader.callCount())

	// Before the backoff window elapses no new attempt may happen
	f.manager.now = func() time.Time { return created.Add(1 * time.Second) }
	f.manager.processQueue()
	assert.Equal(t, 1, f.uploader.callCount())

	// Once the window has elapsed the upload is attempted again
	f.manager.now = func() time.Time { return created.Add(3 * time.Second) }
	f.manager.processQueue()
	assert.Equal(t, 2, f.uploader.callCount())

	upload := f.get(t, id)
	assert.Equal(t, queue.StatusPending, upload.Status)
	assert.Equal(t, 2, upload.RetryCount)
}

func TestQueueManager_MaxRetriesEnforced(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	id := f.enqueue(t, "rec_c.m4a", "")
	f.uploader.errs["rec_c.m4a"] = storage.ErrNetworkUnavailable

	// Drive the upload through every eligible window until it is abandoned
	now := time.Now()
	for i := 0; i < queue.MaxRetries+5; i++ {
		f.manager.now = func() time.Time { return now.Add(time.Duration(i+1) * time.Hour) }
		f.manager.processQueue()
	}

	upload := f.get(t, id)
	assert.Equal(t, queue.StatusFailed, upload.Status)
	assert.Equal(t, queue.MaxRetries, upload.RetryCount)
	// Exactly MaxRetries attempts, and no more even when triggered again
	assert.Equal(t, queue.MaxRetries, f.uploader.callCount())

	f.manager.TriggerRetry()
	assert.Equal(t, queue.MaxRetries, f.uploader.callCount())
}

func TestQueueManager_TerminalStatesAreImmutable(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	successID := f.enqueue(t, "done.m4a", "")
	f.manager.processQueue()

	failedID := f.enqueue(t, "doomed.m4a", "")
	f.uploader.errs["doomed.m4a"] = storage.ErrNetworkUnavailable
	now := time.Now()
	for i := 0; i < queue.MaxRetries; i++ {
		f.manager.now = func() time.Time { return now.Add(time.Duration(i+1) * time.Hour) }
		f.manager.processQueue()
	}

	success := f.get(t, successID)
	failed := f.get(t, failedID)
	require.Equal(t, queue.StatusSuccess, success.Status)
	require.Equal(t, queue.StatusFailed, failed.Status)

	callsBefore := f.uploader.callCount()

	// Further passes must not touch either record
	f.manager.processQueue()
	f.manager.processQueue()

	assert.Equal(t, callsBefore, f.uploader.callCount())

	successAfter := f.get(t, successID)
	failedAfter := f.get(t, failedID)
	assert.Equal(t, success.Status, successAfter.Status)
	assert.Equal(t, success.RetryCount, successAfter.RetryCount)
	assert.Equal(t, failed.Status, failedAfter.Status)
	assert.Equal(t, failed.RetryCount, failedAfter.RetryCount)
	assert.Equal(t, failed.LastError, failedAfter.LastError)
}

func TestQueueManager_SourceUnreadableIsTerminal(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	id := f.enqueue(t, "gone.m4a", "")
	f.uploader.errs["gone.m4a"] = storage.ErrSourceUnreadable

	f.manager.processQueue()

	upload := f.get(t, id)
	// A deleted source file cannot reappear; no retries are scheduled
	assert.Equal(t, queue.StatusFailed, upload.Status)
	assert.Equal(t, 0, upload.RetryCount)
	require.NotNil(t, upload.LastError)
}

func TestQueueManager_FairnessOrdering(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	f.enqueue(t, "oldest.m4a", "")
	time.Sleep(5 * time.Millisecond)
	f.enqueue(t, "middle.m4a", "")
	time.Sleep(5 * time.Millisecond)
	f.enqueue(t, "newest.m4a", "")

	f.manager.processQueue()

	assert.Equal(t, []string{"oldest.m4a", "middle.m4a", "newest.m4a"}, f.uploader.callOrder())
}

func TestQueueManager_SingleFlight(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	for i := 0; i < 3; i++ {
		f.enqueue(t, fmt.Sprintf("rec_%d.m4a", i), "")
	}

	// A slow uploader keeps the first pass in flight while the others fire
	f.uploader.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.manager.TriggerRetry()
		}()
	}
	wg.Wait()

	// Exactly one pass processed the queue: one upload call per item
	assert.Equal(t, 3, f.uploader.callCount())
}

func TestQueueManager_NotificationFailureKeepsSuccess(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	id := f.enqueue(t, "rec.m4a", "call-9")
	f.notifier.result = false

	f.manager.processQueue()

	upload := f.get(t, id)
	// Upload success is independent of notification success
	assert.Equal(t, queue.StatusSuccess, upload.Status)
	assert.False(t, upload.Notified)
	assert.Equal(t, 1, f.notifier.callCount())

	// A later pass retries only the notification, not the upload
	f.notifier.result = true
	f.manager.processQueue()

	upload = f.get(t, id)
	assert.True(t, upload.Notified)
	assert.Equal(t, 1, f.uploader.callCount())
	assert.Equal(t, 2, f.notifier.callCount())
}

func TestQueueManager_StartIsIdempotent(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	f.manager.Start()
	f.manager.Start() // no-op, not an error
	defer f.manager.Stop()

	status, err := f.manager.GetStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.IsRunning)
}

func TestQueueManager_StopWithoutStart(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	// Must not panic or hang
	f.manager.Stop()

	status, err := f.manager.GetStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
}

func TestQueueManager_GetStatusStats(t *testing.T) {
	f := setupManager(t)
	defer f.cleanup()

	f.enqueue(t, "a.m4a", "")
	f.enqueue(t, "b.m4a", "")
	f.uploader.errs["b.m4a"] = errors.New("boom")

	f.manager.processQueue()

	status, err := f.manager.GetStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsProcessing)
	assert.Equal(t, 1, status.Stats.Success)
	assert.Equal(t, 1, status.Stats.Pending)
	assert.Equal(t, 2, status.Stats.Total)
}
