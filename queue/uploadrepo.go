package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/db"
	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
)

// UploadRepository defines the persistence operations for PendingUpload records
type UploadRepository interface {
	// Add enqueues a new upload with status pending and returns its ID
	Add(ctx context.Context, upload NewPendingUpload) (string, error)

	// GetByID retrieves an upload by its ID, or nil if it does not exist
	GetByID(ctx context.Context, id string) (*PendingUpload, error)

	// GetPending returns all pending uploads, oldest first
	GetPending(ctx context.Context) ([]*PendingUpload, error)

	// List returns uploads with the given status, oldest first.
	// An empty status returns all uploads.
	List(ctx context.Context, status UploadStatus) ([]*PendingUpload, error)

	// UpdateStatus sets the status and last error of an upload.
	// Unknown IDs are logged and ignored.
	UpdateStatus(ctx context.Context, id string, status UploadStatus, errMsg string) error

	// SetDelivered marks an upload as successful and records its public URL
	SetDelivered(ctx context.Context, id string, publicURL string) error

	// MarkNotified records that the downstream system accepted the recording
	MarkNotified(ctx context.Context, id string) error

	// IncrementRetry atomically bumps the retry count, stores the error and
	// marks the upload failed once the count reaches MaxRetries.
	// Returns the new retry count.
	IncrementRetry(ctx context.Context, id string, errMsg string) (int, error)

	// GetUnnotified returns delivered uploads whose downstream notification
	// is still outstanding
	GetUnnotified(ctx context.Context) ([]*PendingUpload, error)

	// HasPath reports whether an upload was already enqueued for the given file path
	HasPath(ctx context.Context, filePath string) (bool, error)

	// Stats returns aggregate queue counts
	Stats(ctx context.Context) (Stats, error)

	// CleanupSuccessful deletes successful uploads older than the given number
	// of days and returns how many were removed
	CleanupSuccessful(ctx context.Context, olderThanDays int) (int, error)
}

// SQLiteUploadRepository implements UploadRepository using SQLite
type SQLiteUploadRepository struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteUploadRepository creates a new SQLite-based UploadRepository
func NewSQLiteUploadRepository(database *sql.DB, logger logging.Logger) (*SQLiteUploadRepository, error) {
	if logger == nil {
		logger = logging.NopLogger
	}

	repo := &SQLiteUploadRepository{db: database, logger: logger}
	if err := repo.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return repo, nil
}

// createTables ensures that the required tables and indexes exist
func (r *SQLiteUploadRepository) createTables() error {
	createUploadsTable := `
	CREATE TABLE IF NOT EXISTS pending_uploads (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		lms_call_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL,
		last_error TEXT,
		public_url TEXT NOT NULL DEFAULT '',
		notified INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_pending_uploads_status ON pending_uploads(status);
	CREATE INDEX IF NOT EXISTS idx_pending_uploads_created_at ON pending_uploads(created_at);`

	_, err := r.db.Exec(createUploadsTable)
	return err
}

// Add enqueues a new upload with status pending
func (r *SQLiteUploadRepository) Add(ctx context.Context, upload NewPendingUpload) (string, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC()

	query := `
	INSERT INTO pending_uploads (id, file_path, file_name, file_size, duration, lms_call_id, created_at, status, retry_count, last_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)`

	_, err := r.db.ExecContext(ctx, query,
		id, upload.FilePath, upload.FileName, upload.FileSize, int64(upload.Duration),
		upload.LMSCallID, db.TimeToMillis(createdAt), string(StatusPending),
	)
	if err != nil {
		return "", fmt.Errorf("failed to add upload: %w", err)
	}

	r.logger.Info("Added recording to upload queue", "id", id, "file_name", upload.FileName)
	return id, nil
}

const uploadColumns = `id, file_path, file_name, file_size, duration, lms_call_id, created_at, status, retry_count, last_error, public_url, notified`

// scanUpload reads one PendingUpload from a row scanner
func scanUpload(scan func(dest ...any) error) (*PendingUpload, error) {
	upload := &PendingUpload{}
	var durationNanos int64
	var createdAtMillis int64
	var status string
	var lastError sql.NullString
	var notifiedInt int

	err := scan(
		&upload.ID, &upload.FilePath, &upload.FileName, &upload.FileSize, &durationNanos,
		&upload.LMSCallID, &createdAtMillis, &status, &upload.RetryCount, &lastError,
		&upload.PublicURL, &notifiedInt,
	)
	if err != nil {
		return nil, err
	}

	upload.Duration = time.Duration(durationNanos)
	upload.CreatedAt = db.MillisToTime(createdAtMillis)
	upload.Status = UploadStatus(status)
	upload.LastError = db.NullStringToString(lastError)
	upload.Notified = db.IntToBool(notifiedInt)
	return upload, nil
}

// GetByID retrieves an upload by its ID
func (r *SQLiteUploadRepository) GetByID(ctx context.Context, id string) (*PendingUpload, error) {
	query := `SELECT ` + uploadColumns + ` FROM pending_uploads WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	upload, err := scanUpload(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get upload by ID: %w", err)
	}

	return upload, nil
}

// GetPending returns all pending uploads, oldest first
func (r *SQLiteUploadRepository) GetPending(ctx context.Context) ([]*PendingUpload, error) {
	query := `SELECT ` + uploadColumns + ` FROM pending_uploads WHERE status = ? ORDER BY created_at ASC`
	return r.queryUploads(ctx, query, string(StatusPending))
}

// List returns uploads with the given status, oldest first
func (r *SQLiteUploadRepository) List(ctx context.Context, status UploadStatus) ([]*PendingUpload, error) {
	if status == "" {
		query := `SELECT ` + uploadColumns + ` FROM pending_uploads ORDER BY created_at ASC`
		return r.queryUploads(ctx, query)
	}

	query := `SELECT ` + uploadColumns + ` FROM pending_uploads WHERE status = ? ORDER BY created_at ASC`
	return r.queryUploads(ctx, query, string(status))
}

// GetUnnotified returns delivered uploads still awaiting their downstream notification
func (r *SQLiteUploadRepository) GetUnnotified(ctx context.Context) ([]*PendingUpload, error) {
	query := `SELECT ` + uploadColumns + ` FROM pending_uploads
	WHERE status = ? AND notified = 0 AND lms_call_id != '' AND public_url != ''
	ORDER BY created_at ASC`
	return r.queryUploads(ctx, query, string(StatusSuccess))
}

func (r *SQLiteUploadRepository) queryUploads(ctx context.Context, query string, args ...any) ([]*PendingUpload, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*PendingUpload
	for rows.Next() {
		upload, err := scanUpload(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, upload)
	}

	return uploads, rows.Err()
}

// UpdateStatus sets the status and last error of an upload
func (r *SQLiteUploadRepository) UpdateStatus(ctx context.Context, id string, status UploadStatus, errMsg string) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	query := `UPDATE pending_uploads SET status = ?, last_error = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, string(status), db.StringToNullString(lastError), id)
	if err != nil {
		return fmt.Errorf("failed to update upload status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		// Tolerate drift between manager and store rather than fail the pass
		r.logger.Warn("Upload not found for status update", "id", id, "status", status)
	}

	return nil
}

// SetDelivered marks an upload as successful and records its public URL
func (r *SQLiteUploadRepository) SetDelivered(ctx context.Context, id string, publicURL string) error {
	query := `UPDATE pending_uploads SET status = ?, last_error = NULL, public_url = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, string(StatusSuccess), publicURL, id)
	if err != nil {
		return fmt.Errorf("failed to mark upload delivered: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		r.logger.Warn("Upload not found for delivery update", "id", id)
	}

	return nil
}

// MarkNotified records that the downstream system accepted the recording
func (r *SQLiteUploadRepository) MarkNotified(ctx context.Context, id string) error {
	query := `UPDATE pending_uploads SET notified = 1 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark upload notified: %w", err)
	}
	return nil
}

// IncrementRetry atomically bumps the retry count and stores the error
func (r *SQLiteUploadRepository) IncrementRetry(ctx context.Context, id string, errMsg string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var retryCount int
	err = tx.QueryRowContext(ctx, `SELECT retry_count FROM pending_uploads WHERE id = ?`, id).Scan(&retryCount)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Upload not found for retry increment", "id", id)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read retry count: %w", err)
	}

	retryCount++
	status := StatusPending
	if retryCount >= MaxRetries {
		status = StatusFailed
		r.logger.Error("Upload exceeded max retries, marking as failed", "id", id, "retry_count", retryCount)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE pending_uploads SET retry_count = ?, last_error = ?, status = ? WHERE id = ?`,
		retryCount, errMsg, string(status), id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to increment retry count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit retry increment: %w", err)
	}

	return retryCount, nil
}

// HasPath reports whether an upload was already enqueued for the given file path
func (r *SQLiteUploadRepository) HasPath(ctx context.Context, filePath string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_uploads WHERE file_path = ?`, filePath).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check for file path: %w", err)
	}
	return count > 0, nil
}

// Stats returns aggregate queue counts
func (r *SQLiteUploadRepository) Stats(ctx context.Context) (Stats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM pending_uploads GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("failed to scan queue stats: %w", err)
		}

		switch UploadStatus(status) {
		case StatusPending:
			stats.Pending = count
		case StatusSuccess:
			stats.Success = count
		case StatusFailed:
			stats.Failed = count
		}
		stats.Total += count
	}

	return stats, rows.Err()
}

// CleanupSuccessful deletes successful uploads older than the given number of days
func (r *SQLiteUploadRepository) CleanupSuccessful(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_uploads WHERE status = ? AND created_at < ?`,
		string(StatusSuccess), db.TimeToMillis(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old uploads: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned up uploads: %w", err)
	}

	if deleted > 0 {
		r.logger.Info("Cleaned up old successful uploads", "deleted", deleted)
	}
	return int(deleted), nil
}
