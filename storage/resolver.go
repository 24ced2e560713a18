package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
)

// dohEndpoint is addressed by IP so the fallback works when platform DNS
// is exactly what is broken. The certificate is valid for the bare IP.
const dohEndpoint = "https://1.1.1.1/dns-query"

// dohResponse is the JSON answer of the DNS-over-HTTPS endpoint
type dohResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Type int    `json:"type"`
		Data string `json:"data"`
	} `json:"Answer"`
}

// FallbackDialer dials normally and, when name resolution fails, retries
// after resolving the host over DNS-over-HTTPS. Mobile networks frequently
// hand out DNS servers that cannot resolve storage hosts; this keeps uploads
// moving without touching the retry queue's own logic.
type FallbackDialer struct {
	dialer *net.Dialer
	doh    *resty.Client
	logger logging.Logger
}

// NewFallbackDialer creates a dialer with a DNS-over-HTTPS fallback path
func NewFallbackDialer(logger logging.Logger) *FallbackDialer {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &FallbackDialer{
		dialer: &net.Dialer{Timeout: 10 * time.Second},
		doh:    resty.New().SetTimeout(5 * time.Second),
		logger: logger,
	}
}

// DialContext dials the address, falling back to DoH resolution on DNS failure
func (d *FallbackDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, dialErr := d.dialer.DialContext(ctx, network, addr)

	var dnsErr *net.DNSError
	if dialErr == nil || !errors.As(dialErr, &dnsErr) {
		return conn, dialErr
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, dialErr
	}

	d.logger.Warn("Platform DNS failed, resolving over DoH", "host", host, "error", dialErr)

	ips, err := d.resolve(ctx, host)
	if err != nil || len(ips) == 0 {
		d.logger.Error("DoH resolution failed", "host", host, "error", err)
		return nil, dialErr
	}

	for _, ip := range ips {
		conn, err := d.dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, nil
		}
	}

	return nil, dialErr
}

// resolve queries A records for the host over DNS-over-HTTPS
func (d *FallbackDialer) resolve(ctx context.Context, host string) ([]string, error) {
	var answer dohResponse

	resp, err := d.doh.R().
		SetContext(ctx).
		SetHeader("Accept", "application/dns-json").
		SetQueryParams(map[string]string{"name": host, "type": "A"}).
		SetResult(&answer).
		Get(dohEndpoint)

	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("DoH endpoint returned status %d", resp.StatusCode())
	}
	if answer.Status != 0 {
		return nil, fmt.Errorf("DoH query failed with status %d", answer.Status)
	}

	var ips []string
	for _, a := range answer.Answer {
		// Type 1 is an A record; CNAME entries also appear in the answer list
		if a.Type == 1 {
			ips = append(ips, a.Data)
		}
	}

	return ips, nil
}

// NewDoHFallbackHTTPClient builds an HTTP client whose transport uses the
// DoH fallback dialer. Intended for the installed-app upload path.
func NewDoHFallbackHTTPClient(timeout time.Duration, logger logging.Logger) *http.Client {
	dialer := NewFallbackDialer(logger)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}
