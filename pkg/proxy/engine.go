package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"streamcdn/edge/pkg/telemetry/tracing"
)

// EngineConfig contains forwarding policy.
type EngineConfig struct {
	// OriginTimeout bounds each attempt up to response headers.
	// The body relay itself is bounded only by the client connection.
	// Default: 30s
	OriginTimeout time.Duration `yaml:"origin_timeout"`

	// RetryAttempts is the number of retries after the first attempt.
	// Retries happen only on connection errors and timeouts, never on
	// a received HTTP status. Default: 2
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryDelay is the fixed delay between attempts. Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// EngineMetrics is the telemetry the engine reports. Nil is valid.
type EngineMetrics interface {
	RecordForwardRetry()
	RecordOriginError(kind string)
	AddBytesTransferred(n int64)
}

// Result describes a completed forward.
type Result struct {
	// StatusCode is the origin status relayed to the client.
	StatusCode int

	// BytesTransferred counts response body bytes sent to the client.
	// For 3xx answers the origin's Content-Length is used when present.
	BytesTransferred int64

	// Attempts is how many origin attempts were made.
	Attempts int
}

// Engine performs transparent forwarding to customer origins: it
// rebuilds the inbound request against the origin, streams the response
// straight through with constant memory, counts bytes, and retries
// connection-level failures with a fixed delay.
type Engine struct {
	cfg     EngineConfig
	client  *http.Client
	logger  *slog.Logger
	metrics EngineMetrics
	tracer  trace.Tracer
}

// NewEngine creates a forwarding engine.
func NewEngine(cfg EngineConfig, logger *slog.Logger, metrics EngineMetrics) *Engine {
	if cfg.OriginTimeout <= 0 {
		cfg.OriginTimeout = 30 * time.Second
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		cfg: cfg,
		client: &http.Client{
			// Redirects are the origin's answer; relay them untouched.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "proxy.engine"),
		metrics: metrics,
		tracer:  otel.Tracer("streamcdn/edge/pkg/proxy"),
	}
}

// maxReplayBodyBytes caps how much of an inbound request body is
// buffered for retry replay. Larger bodies are streamed through on a
// single attempt instead of being held in memory.
const maxReplayBodyBytes = 4 << 20

// hopByHopHeaders are stripped from both directions.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// identityHeaders are attribution headers stripped before re-adding our
// own, so a spoofed or stale value never reaches the origin.
var identityHeaders = []string{
	"X-Forwarded-For",
	"X-Real-Ip",
	"Cf-Connecting-Ip",
	"True-Client-Ip",
	"X-Client-Ip",
}

// Forward proxies r to originURL and relays the response to w. The
// target path and query always come from the live request. On total
// failure nothing has been written to w and the returned error is an
// *OriginError; the caller renders the client-facing answer.
func (e *Engine) Forward(w http.ResponseWriter, r *http.Request, originURL, clientIP string) (Result, error) {
	origin, err := url.Parse(originURL)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return Result{}, fmt.Errorf("invalid origin URL: %q", originURL)
	}

	target := origin.Scheme + "://" + origin.Host + r.URL.RequestURI()

	spanCtx, span := e.tracer.Start(r.Context(), "proxy.forward",
		trace.WithAttributes(attribute.String("origin.host", origin.Host)),
	)
	defer span.End()
	r = r.WithContext(spanCtx)

	// Streaming requests are bodyless; buffer the rare small body once
	// so retries can replay it. A body over the cap is not retry
	// eligible.
	var replay []byte
	var oversized io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		buf, err := io.ReadAll(io.LimitReader(r.Body, maxReplayBodyBytes+1))
		if err != nil {
			return Result{}, fmt.Errorf("failed to read request body: %w", err)
		}
		if len(buf) > maxReplayBodyBytes {
			oversized = io.MultiReader(bytes.NewReader(buf), r.Body)
		} else {
			replay = buf
		}
	}

	retries := e.cfg.RetryAttempts
	if oversized != nil {
		retries = 0
	}

	var lastErr error
	var lastKind OriginErrorKind
	attempts := 0

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if e.metrics != nil {
				e.metrics.RecordForwardRetry()
			}
			select {
			case <-time.After(e.cfg.RetryDelay):
			case <-r.Context().Done():
				return Result{Attempts: attempts}, r.Context().Err()
			}
		}
		attempts++

		var reqBody io.Reader
		if oversized != nil {
			reqBody = oversized
		} else if len(replay) > 0 {
			reqBody = bytes.NewReader(replay)
		}

		resp, kind, err := e.attempt(r, target, origin.Host, clientIP, reqBody)
		if err != nil {
			// The client hanging up is not an origin failure.
			if r.Context().Err() != nil {
				return Result{Attempts: attempts}, r.Context().Err()
			}
			lastErr = err
			lastKind = kind
			e.logger.WarnContext(r.Context(), "origin attempt failed",
				"attempt", attempts,
				"kind", string(kind),
				"error", err,
			)
			continue
		}

		result := e.relay(w, r, resp)
		result.Attempts = attempts
		if e.metrics != nil {
			e.metrics.AddBytesTransferred(result.BytesTransferred)
		}
		span.SetAttributes(
			attribute.Int("http.status_code", result.StatusCode),
			attribute.Int("proxy.attempts", attempts),
			attribute.Int64("proxy.bytes", result.BytesTransferred),
		)
		tracing.SetStatus(span, nil)
		return result, nil
	}

	if e.metrics != nil {
		e.metrics.RecordOriginError(string(lastKind))
	}
	originErr := &OriginError{Kind: lastKind, Attempts: attempts, Err: lastErr}
	tracing.SetStatus(span, originErr)
	return Result{Attempts: attempts}, originErr
}

// attempt makes one origin exchange. The timeout covers dialing through
// response headers; once headers arrive the timer stops so long streams
// are not cut at the timeout mark.
func (e *Engine) attempt(r *http.Request, target, originHost, clientIP string, body io.Reader) (*http.Response, OriginErrorKind, error) {
	ctx, cancel := context.WithCancel(r.Context())

	var timedOut atomic.Bool
	timer := time.AfterFunc(e.cfg.OriginTimeout, func() {
		timedOut.Store(true)
		cancel()
	})

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		timer.Stop()
		cancel()
		return nil, OriginConnection, fmt.Errorf("failed to build origin request: %w", err)
	}

	copyProxyHeaders(req.Header, r.Header)
	req.Host = originHost
	req.Header.Set("X-Forwarded-For", clientIP)
	req.Header.Set("X-Real-IP", clientIP)

	resp, err := e.client.Do(req)
	if err != nil {
		timer.Stop()
		cancel()
		if timedOut.Load() {
			return nil, OriginTimeout, err
		}
		return nil, OriginConnection, err
	}

	timer.Stop()
	// ctx must stay alive until the body is drained; tie cancellation
	// to body close.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, "", nil
}

// relay copies status, headers and body through to the client, counting
// bytes and flushing as segments arrive.
func (e *Engine) relay(w http.ResponseWriter, r *http.Request, resp *http.Response) Result {
	defer resp.Body.Close()

	header := w.Header()
	for name, values := range resp.Header {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			header.Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	n, copyErr := io.Copy(&flushWriter{w: w}, resp.Body)
	if copyErr != nil && r.Context().Err() == nil {
		e.logger.WarnContext(r.Context(), "origin stream ended early",
			"bytes", n,
			"error", copyErr,
		)
	}

	result := Result{StatusCode: resp.StatusCode, BytesTransferred: n}

	// Redirect bodies are negligible; account the declared length so
	// analytics reflects what the client will fetch.
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if declared, err := strconv.ParseInt(cl, 10, 64); err == nil && declared > 0 {
				result.BytesTransferred = declared
			}
		}
	}
	return result
}

func copyProxyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) || isIdentityHeader(name) || strings.EqualFold(name, "Host") {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

func isIdentityHeader(name string) bool {
	for _, h := range identityHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

// flushWriter flushes after every write so media segments reach the
// client as they arrive instead of sitting in server buffers.
type flushWriter struct {
	w http.ResponseWriter
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if f, ok := fw.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

// cancelOnClose releases the attempt context when the response body is
// closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
