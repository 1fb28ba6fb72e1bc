package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Sink delivers a single event to the ingestion backend. Implementations
// make exactly one attempt; the emitter never retries.
type Sink interface {
	Deliver(ctx context.Context, event *AccessEvent) error
}

// HTTPSinkConfig contains configuration for the HTTP ingestion sink.
type HTTPSinkConfig struct {
	// Endpoint is the full ingestion URL events are POSTed to.
	Endpoint string `yaml:"endpoint"`

	// APIToken authenticates the edge to the ingestion endpoint, sent
	// as a bearer token.
	APIToken string `yaml:"api_token"`

	// Timeout bounds a single delivery attempt. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPSink POSTs events as JSON to the ingestion endpoint.
type HTTPSink struct {
	cfg    HTTPSinkConfig
	client *http.Client
}

// NewHTTPSink creates a sink for the given ingestion endpoint.
func NewHTTPSink(cfg HTTPSinkConfig) (*HTTPSink, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("analytics endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid analytics endpoint: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPSink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Deliver POSTs the event. Any non-2xx status is an error; the caller
// decides whether that matters (the emitter logs and drops).
func (s *HTTPSink) Deliver(ctx context.Context, event *AccessEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode analytics event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build analytics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StreamCDN-Edge/1.0")
	if s.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("analytics delivery failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("analytics endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
