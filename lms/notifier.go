package lms

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
)

// Notifier forwards delivered recordings to the lead-management system.
// The contract is best-effort: implementations report failure through the
// boolean return and never let an error escape.
type Notifier interface {
	// NotifyRecording tells the LMS where the recording for a call ended up.
	// Returns false on any failure.
	NotifyRecording(ctx context.Context, callID string, publicURL string, durationSeconds int) bool
}

type nopNotifier struct{}

// NopNotifier is a Notifier that does nothing and reports success.
// Use this when the LMS integration is disabled.
var NopNotifier Notifier = &nopNotifier{}

// NotifyRecording does nothing and returns true.
func (n *nopNotifier) NotifyRecording(ctx context.Context, callID string, publicURL string, durationSeconds int) bool {
	return true
}

// updateRecordingRequest is the payload of the LMS update-recording endpoint
type updateRecordingRequest struct {
	CallLogID           string `json:"callLogId"`
	RecordingURL        string `json:"recordingUrl"`
	Duration            int    `json:"duration"`
	RecordingAppCallID  string `json:"recordingAppCallId,omitempty"`
	APIKey              string `json:"apiKey"`
}

// updateRecordingResponse is the reply of the LMS update-recording endpoint
type updateRecordingResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// httpNotifier implements Notifier against the LMS HTTP API
type httpNotifier struct {
	baseURL string
	apiKey  string
	client  *resty.Client
	logger  logging.Logger
}

// NewHTTPNotifier creates a Notifier that posts to the LMS update-recording endpoint
func NewHTTPNotifier(baseURL, apiKey string, timeout time.Duration, logger logging.Logger) Notifier {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &httpNotifier{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		logger:  logger,
	}
}

// NotifyRecording posts the recording URL to the LMS
func (n *httpNotifier) NotifyRecording(ctx context.Context, callID string, publicURL string, durationSeconds int) bool {
	var result updateRecordingResponse

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(updateRecordingRequest{
			CallLogID:    callID,
			RecordingURL: publicURL,
			Duration:     durationSeconds,
			APIKey:       n.apiKey,
		}).
		SetResult(&result).
		Post("/api/call-monitor/update-recording")

	if err != nil {
		n.logger.Warn("LMS notification request failed", "call_id", callID, "error", err)
		return false
	}
	if resp.IsError() {
		n.logger.Warn("LMS rejected recording notification", "call_id", callID, "status", resp.StatusCode())
		return false
	}
	if !result.Success {
		n.logger.Warn("LMS reported notification failure", "call_id", callID, "message", result.Message)
		return false
	}

	n.logger.Info("Recording forwarded to LMS", "call_id", callID, "url", publicURL)
	return true
}
