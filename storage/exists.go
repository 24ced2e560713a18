package storage

import (
	"context"
	"strings"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
)

// ExistenceChecker determines whether a recording was already delivered,
// so that a retry does not upload the same file twice
type ExistenceChecker interface {
	// Exists reports whether an object matching the file name is already
	// present in the bucket
	Exists(ctx context.Context, fileName string) bool
}

// bucketExistenceChecker implements ExistenceChecker by listing the bucket
type bucketExistenceChecker struct {
	client BucketClient
	folder string
	logger logging.Logger
}

// NewBucketExistenceChecker creates an ExistenceChecker backed by a bucket listing
func NewBucketExistenceChecker(client BucketClient, folder string, logger logging.Logger) ExistenceChecker {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &bucketExistenceChecker{
		client: client,
		folder: folder,
		logger: logger,
	}
}

// Exists lists the recordings folder searching for the file name. Any query
// failure is reported as "not found": re-uploading an existing recording is
// cheap, while skipping a missing one would strand it permanently.
func (c *bucketExistenceChecker) Exists(ctx context.Context, fileName string) bool {
	entries, err := c.client.List(ctx, c.folder, fileName)
	if err != nil {
		c.logger.Warn("Existence check failed, assuming not uploaded", "file_name", fileName, "error", err)
		return false
	}

	// Uploaded objects are prefixed with a timestamp, so match on containment
	for _, entry := range entries {
		if strings.Contains(entry.Name, fileName) {
			c.logger.Info("Recording already exists in bucket", "file_name", fileName, "object", entry.Name)
			return true
		}
	}

	return false
}
