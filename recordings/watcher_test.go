package recordings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/db"
	"github.com/Baleenmedia2512/recordingapp--ramesh/queue"
)

func setupWatcherTest(t *testing.T) (string, *queue.SQLiteUploadRepository, *directoryWatcher) {
	t.Helper()

	dir := t.TempDir()

	database, err := db.NewInMemoryDB()
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo, err := queue.NewSQLiteUploadRepository(database, nil)
	if err != nil {
		t.Fatalf("Failed to create upload repository: %v", err)
	}

	watcher := NewDirectoryWatcher(dir, time.Hour, repo, nil, nil).(*directoryWatcher)
	return dir, repo, watcher
}

func writeRecording(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write recording file: %v", err)
	}
	return path
}

func TestDirectoryWatcher_EnqueuesStableFile(t *testing.T) {
	dir, repo, watcher := setupWatcherTest(t)
	path := writeRecording(t, dir, "call_001.m4a", "audio-bytes")

	// First scan only records the size; the file might still be growing
	watcher.scan()

	pending, err := repo.GetPending(context.Background())
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("Expected no uploads after first scan, got %d", len(pending))
	}

	// Second scan sees an unchanged size and enqueues
	watcher.scan()

	pending, err = repo.GetPending(context.Background())
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 upload after second scan, got %d", len(pending))
	}
	if pending[0].FilePath != path {
		t.Errorf("Expected file path %s, got %s", path, pending[0].FilePath)
	}
	if pending[0].FileName != "call_001.m4a" {
		t.Errorf("Expected file name call_001.m4a, got %s", pending[0].FileName)
	}
	if pending[0].FileSize != int64(len("audio-bytes")) {
		t.Errorf("Expected file size %d, got %d", len("audio-bytes"), pending[0].FileSize)
	}
}

func TestDirectoryWatcher_WaitsWhileFileGrows(t *testing.T) {
	dir, repo, watcher := setupWatcherTest(t)
	writeRecording(t, dir, "call_002.m4a", "first")

	watcher.scan()
	// The recorder appends more audio between scans
	writeRecording(t, dir, "call_002.m4a", "first-and-more")
	watcher.scan()

	pending, err := repo.GetPending(context.Background())
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("Expected no uploads while the file grows, got %d", len(pending))
	}

	// Size settled: the next scan enqueues
	watcher.scan()

	pending, err = repo.GetPending(context.Background())
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 upload once the file settled, got %d", len(pending))
	}
}

func TestDirectoryWatcher_DoesNotEnqueueTwice(t *testing.T) {
	dir, repo, watcher := setupWatcherTest(t)
	writeRecording(t, dir, "call_003.m4a", "audio")

	watcher.scan()
	watcher.scan()
	watcher.scan()
	watcher.scan()

	pending, err := repo.GetPending(context.Background())
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected exactly 1 upload, got %d", len(pending))
	}
}

func TestDirectoryWatcher_SkipsKnownPathsAfterRestart(t *testing.T) {
	dir, repo, watcher := setupWatcherTest(t)
	path := writeRecording(t, dir, "call_004.m4a", "audio")

	// The queue already holds this path from a previous process run
	_, err := repo.Add(context.Background(), queue.NewPendingUpload{
		FilePath: path,
		FileName: "call_004.m4a",
		FileSize: 5,
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	watcher.scan()
	watcher.scan()

	pending, err := repo.GetPending(context.Background())
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected the pre-existing upload only, got %d", len(pending))
	}
}

func TestDirectoryWatcher_IgnoresNonAudioFiles(t *testing.T) {
	dir, repo, watcher := setupWatcherTest(t)
	writeRecording(t, dir, "notes.txt", "not audio")
	writeRecording(t, dir, "call_005.tmp", "partial download")

	if err := os.Mkdir(filepath.Join(dir, "subdir.m4a"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	watcher.scan()
	watcher.scan()

	pending, err := repo.GetPending(context.Background())
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("Expected no uploads for non-audio files, got %d", len(pending))
	}
}

func TestDirectoryWatcher_StartCreatesDirectory(t *testing.T) {
	dir, _, _ := setupWatcherTest(t)

	database, err := db.NewInMemoryDB()
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	defer database.Close()

	repo, err := queue.NewSQLiteUploadRepository(database, nil)
	if err != nil {
		t.Fatalf("Failed to create upload repository: %v", err)
	}

	nested := filepath.Join(dir, "recordings", "calls")
	watcher := NewDirectoryWatcher(nested, time.Hour, repo, nil, nil)

	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	if _, err := os.Stat(nested); err != nil {
		t.Errorf("Expected recordings directory to exist: %v", err)
	}
}
