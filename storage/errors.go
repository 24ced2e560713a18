package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNetworkUnavailable indicates the storage backend could not be reached
	// (DNS failure, refused connection, unreachable network)
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrTimeout indicates the request did not complete within its deadline
	ErrTimeout = errors.New("request timed out")

	// ErrUnauthorized indicates the storage backend rejected the credentials
	ErrUnauthorized = errors.New("authorization denied")

	// ErrBucketNotFound indicates the destination bucket does not exist
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrSourceUnreadable indicates the local recording file is missing or unreadable
	ErrSourceUnreadable = errors.New("source file unreadable")
)

// IsRecoverable returns true if a later attempt at the same upload may succeed.
// A missing source file cannot reappear, so it is the one per-item terminal case.
func IsRecoverable(err error) bool {
	return !errors.Is(err, ErrSourceUnreadable)
}

// classifyTransportError maps a transport-level failure onto the error
// taxonomy, keeping DNS/network failures distinguishable from timeouts
func classifyTransportError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
}

// classifyStatusError maps an HTTP error status onto the error taxonomy
func classifyStatusError(statusCode int, body string) error {
	switch statusCode {
	case 401, 403:
		return fmt.Errorf("%w: server returned status %d", ErrUnauthorized, statusCode)
	case 404:
		return fmt.Errorf("%w: server returned status %d", ErrBucketNotFound, statusCode)
	default:
		return fmt.Errorf("server returned status %d: %s", statusCode, body)
	}
}
