package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ObjectInfo describes one object returned by a bucket listing
type ObjectInfo struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	UpdatedAt string `json:"updated_at"`
}

// BucketClient handles communication with the storage bucket
type BucketClient interface {
	// Upload writes an object and returns its stable public URL
	Upload(ctx context.Context, objectPath string, contentType string, data []byte) (string, error)

	// List returns the objects under a folder whose names match the search term
	List(ctx context.Context, folder string, search string) ([]ObjectInfo, error)
}

// supabaseClient implements BucketClient against the Supabase storage REST API
type supabaseClient struct {
	baseURL string
	bucket  string
	client  *resty.Client
}

// listRequest is the body of the storage list endpoint
type listRequest struct {
	Prefix string `json:"prefix"`
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit"`
}

// NewSupabaseClient creates a new storage client. A nil httpClient uses the
// default transport; pass NewDoHFallbackHTTPClient for installed-app networks
// where platform DNS is unreliable.
func NewSupabaseClient(baseURL, bucket, apiKey string, timeout time.Duration, httpClient *http.Client) BucketClient {
	var client *resty.Client
	if httpClient != nil {
		client = resty.NewWithClient(httpClient)
	} else {
		client = resty.New()
	}

	client.SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("apikey", apiKey)

	return &supabaseClient{
		baseURL: baseURL,
		bucket:  bucket,
		client:  client,
	}
}

// Upload writes an object to the bucket and returns its public URL
func (s *supabaseClient) Upload(ctx context.Context, objectPath string, contentType string, data []byte) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetBody(data).
		Post(fmt.Sprintf("/storage/v1/object/%s/%s", s.bucket, objectPath))

	if err != nil {
		return "", classifyTransportError(err)
	}
	if resp.IsError() {
		return "", classifyStatusError(resp.StatusCode(), resp.String())
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath), nil
}

// List returns the objects under a folder whose names match the search term
func (s *supabaseClient) List(ctx context.Context, folder string, search string) ([]ObjectInfo, error) {
	var entries []ObjectInfo

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(listRequest{Prefix: folder, Search: search, Limit: 100}).
		SetResult(&entries).
		Post(fmt.Sprintf("/storage/v1/object/list/%s", s.bucket))

	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.IsError() {
		return nil, classifyStatusError(resp.StatusCode(), resp.String())
	}

	return entries, nil
}
