package uploading

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
	"github.com/Baleenmedia2512/recordingapp--ramesh/queue"
	"github.com/Baleenmedia2512/recordingapp--ramesh/storage"
)

// Uploader moves a local recording into the storage bucket.
// It owns no queue state; status transitions belong to the QueueManager.
type Uploader interface {
	// Upload transfers the recording and returns its public URL
	Upload(ctx context.Context, upload *queue.PendingUpload) (string, error)
}

// bucketUploader implements Uploader on top of a BucketClient
type bucketUploader struct {
	client storage.BucketClient
	folder string
	logger logging.Logger
}

// NewBucketUploader creates an Uploader that writes into the given bucket folder
func NewBucketUploader(client storage.BucketClient, folder string, logger logging.Logger) Uploader {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &bucketUploader{
		client: client,
		folder: folder,
		logger: logger,
	}
}

// Upload reads the recording from disk and writes it to the bucket
func (u *bucketUploader) Upload(ctx context.Context, upload *queue.PendingUpload) (string, error) {
	data, err := os.ReadFile(upload.FilePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrSourceUnreadable, err)
	}

	// Prefix with the upload time so repeated deliveries of the same
	// recording never collide on the object path
	objectPath := fmt.Sprintf("%s/%d_%s", u.folder, time.Now().UnixMilli(), upload.FileName)

	u.logger.Info("Uploading recording", "file_name", upload.FileName, "size_kb", len(data)/1024)

	publicURL, err := u.client.Upload(ctx, objectPath, contentTypeForFile(upload.FileName), data)
	if err != nil {
		return "", err
	}

	return publicURL, nil
}

// contentTypeForFile maps a recording file extension to its MIME type
func contentTypeForFile(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".amr":
		return "audio/amr"
	default:
		return "application/octet-stream"
	}
}
