package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Metrics is the subset of telemetry the emitter reports. A nil Metrics
// is valid and records nothing.
type Metrics interface {
	AnalyticsEmitted()
	AnalyticsDropped(reason string)
}

// Config contains configuration for the emitter.
type Config struct {
	// Enabled turns event emission on. When false, Emit is a no-op and
	// no worker goroutine runs.
	Enabled bool `yaml:"enabled"`

	// Buffer is the size of the async event channel. Default: 1000.
	Buffer int `yaml:"buffer"`

	// DeliveryTimeout bounds the single delivery attempt per event.
	// Default: 10s.
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// Emitter dispatches access events to a Sink from a background worker.
// Emit never blocks: when the buffer is full the event is dropped and
// counted. Each event gets at most one delivery attempt.
type Emitter struct {
	sink    Sink
	cfg     Config
	events  chan *AccessEvent
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics Metrics
}

// NewEmitter creates an emitter and starts its worker when enabled.
func NewEmitter(sink Sink, cfg Config, logger *slog.Logger, metrics Metrics) *Emitter {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1000
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Emitter{
		sink:    sink,
		cfg:     cfg,
		events:  make(chan *AccessEvent, cfg.Buffer),
		done:    make(chan struct{}),
		logger:  logger.With("component", "analytics.emitter"),
		metrics: metrics,
	}

	if cfg.Enabled && sink != nil {
		e.wg.Add(1)
		go e.worker()
		e.logger.Info("analytics emitter started",
			"buffer", cfg.Buffer,
			"delivery_timeout", cfg.DeliveryTimeout,
		)
	}
	return e
}

// Emit enqueues an event for delivery. Never blocks; a full buffer
// drops the event with a log line.
func (e *Emitter) Emit(event *AccessEvent) {
	if e == nil || !e.cfg.Enabled || e.sink == nil || event == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case e.events <- event:
	default:
		if e.metrics != nil {
			e.metrics.AnalyticsDropped("buffer_full")
		}
		e.logger.Warn("analytics buffer full, dropping event",
			"domain", event.Domain,
			"path", event.Path,
		)
	}
}

// Close stops the worker after draining already-enqueued events. Events
// emitted after Close starts may be dropped.
func (e *Emitter) Close() error {
	if !e.cfg.Enabled || e.sink == nil {
		return nil
	}
	close(e.done)
	e.wg.Wait()
	return nil
}

func (e *Emitter) worker() {
	defer e.wg.Done()

	for {
		select {
		case event := <-e.events:
			e.deliver(event)
		case <-e.done:
			for {
				select {
				case event := <-e.events:
					e.deliver(event)
				default:
					return
				}
			}
		}
	}
}

// deliver makes the single delivery attempt. Failures are logged and
// swallowed; analytics loss is acceptable, a blocked stream is not.
func (e *Emitter) deliver(event *AccessEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.DeliveryTimeout)
	defer cancel()

	if err := e.sink.Deliver(ctx, event); err != nil {
		if e.metrics != nil {
			e.metrics.AnalyticsDropped("delivery_failed")
		}
		e.logger.Warn("analytics delivery failed",
			"domain", event.Domain,
			"path", event.Path,
			"error", err,
		)
		return
	}
	if e.metrics != nil {
		e.metrics.AnalyticsEmitted()
	}
}
