package recordings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
	"github.com/Baleenmedia2512/recordingapp--ramesh/queue"
)

// audioExtensions lists the recording formats the OS call recorder produces
var audioExtensions = map[string]bool{
	".m4a": true,
	".aac": true,
	".mp3": true,
	".ogg": true,
	".wav": true,
	".amr": true,
}

// Watcher detects finished call recordings and enqueues them for upload
type Watcher interface {
	// Start begins scanning the recordings directory. Calling Start on a
	// running watcher is a no-op.
	Start() error

	// Stop ends scanning
	Stop()
}

// directoryWatcher implements Watcher by polling a directory. A file is
// considered finished once its size is unchanged between two scans; the
// recorder writes incrementally while a call is still in progress.
type directoryWatcher struct {
	dir      string
	interval time.Duration
	repo     queue.UploadRepository
	probe    MetadataProbe
	logger   logging.Logger

	// lastSizes tracks file sizes seen on the previous scan
	lastSizes map[string]int64
	// enqueued caches paths already handed to the queue this process lifetime
	enqueued map[string]bool

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewDirectoryWatcher creates a watcher over the given recordings directory
func NewDirectoryWatcher(dir string, interval time.Duration, repo queue.UploadRepository, probe MetadataProbe, logger logging.Logger) Watcher {
	if probe == nil {
		probe = NopMetadataProbe
	}
	if logger == nil {
		logger = logging.NopLogger
	}

	return &directoryWatcher{
		dir:       dir,
		interval:  interval,
		repo:      repo,
		probe:     probe,
		logger:    logger,
		lastSizes: make(map[string]int64),
		enqueued:  make(map[string]bool),
	}
}

// Start begins scanning the recordings directory
func (w *directoryWatcher) Start() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		w.logger.Warn("Recording watcher already running")
		return nil
	}
	w.isRunning = true
	w.stopChan = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("Watching for call recordings", "dir", w.dir, "interval", w.interval)

	w.wg.Add(1)
	go w.run(w.stopChan)
	return nil
}

// Stop ends scanning
func (w *directoryWatcher) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	close(w.stopChan)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *directoryWatcher) run(stopChan <-chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.scan()
		case <-stopChan:
			return
		}
	}
}

// scan walks the recordings directory and enqueues every finished file
func (w *directoryWatcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("Failed to read recordings directory", "dir", w.dir, "error", err)
		return
	}

	ctx := context.Background()

	for _, entry := range entries {
		if entry.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(w.dir, entry.Name())
		if w.enqueued[path] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			w.logger.Warn("Failed to stat recording", "path", path, "error", err)
			continue
		}

		// Wait until the recorder stops growing the file
		lastSize, seen := w.lastSizes[path]
		if !seen || lastSize != info.Size() {
			w.lastSizes[path] = info.Size()
			continue
		}

		w.enqueueRecording(ctx, path, entry.Name(), info.Size())
	}
}

// enqueueRecording adds one finished recording to the upload queue
func (w *directoryWatcher) enqueueRecording(ctx context.Context, path, name string, size int64) {
	// Survive restarts: the queue itself remembers what was already enqueued
	known, err := w.repo.HasPath(ctx, path)
	if err != nil {
		w.logger.Error("Failed to check queue for recording", "path", path, "error", err)
		return
	}
	if known {
		w.enqueued[path] = true
		delete(w.lastSizes, path)
		return
	}

	duration, err := w.probe.Duration(path)
	if err != nil {
		// Enqueue anyway; duration is informational for the LMS
		w.logger.Warn("Failed to probe recording duration", "path", path, "error", err)
	}

	id, err := w.repo.Add(ctx, queue.NewPendingUpload{
		FilePath: path,
		FileName: name,
		FileSize: size,
		Duration: duration,
	})
	if err != nil {
		w.logger.Error("Failed to enqueue recording", "path", path, "error", err)
		return
	}

	w.logger.Info("Queued recording for upload", "id", id, "file_name", name, "size", size)
	w.enqueued[path] = true
	delete(w.lastSizes, path)
}
