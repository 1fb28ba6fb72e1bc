package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBody bounds how much of a registry response is read.
const maxResponseBody = 1 << 20

// HTTPConfig contains configuration for the registry HTTP client.
type HTTPConfig struct {
	// BaseURL is the registry service base URL, e.g.
	// "https://registry.internal:8443".
	BaseURL string `yaml:"base_url"`

	// APIToken authenticates the edge to the registry, sent as a
	// bearer token. Typically injected via environment.
	APIToken string `yaml:"api_token"`

	// Timeout bounds each lookup. The lookup sits on the hot request
	// path, so this should stay small. Default: 5s.
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPClient implements Client over the registry's REST API.
type HTTPClient struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates a registry client.
func NewHTTPClient(cfg HTTPConfig, logger *slog.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("registry base_url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid registry base_url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "registry.client"),
	}, nil
}

// Lookup fetches the domain record for hostname. Returns ErrNotFound
// for unknown hostnames; any other failure is a routing error surfaced
// to the caller.
func (c *HTTPClient) Lookup(ctx context.Context, hostname string) (*DomainRecord, error) {
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))

	u := fmt.Sprintf("%s/v1/domains/%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(hostname))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil, fmt.Errorf("lookup %q: %w", hostname, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil, fmt.Errorf("registry returned status %d for %q", resp.StatusCode, hostname)
	}

	var record DomainRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode registry response: %w", err)
	}
	if record.Hostname == "" {
		record.Hostname = hostname
	}
	return &record, nil
}
