package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"streamcdn/edge/pkg/analytics"
	"streamcdn/edge/pkg/classify"
	"streamcdn/edge/pkg/cli"
	"streamcdn/edge/pkg/config"
	"streamcdn/edge/pkg/geo"
	"streamcdn/edge/pkg/proxy"
	"streamcdn/edge/pkg/proxy/handlers"
	"streamcdn/edge/pkg/registry"
	"streamcdn/edge/pkg/server"
	"streamcdn/edge/pkg/session"
	"streamcdn/edge/pkg/telemetry/logging"
	"streamcdn/edge/pkg/telemetry/metrics"
	"streamcdn/edge/pkg/telemetry/tracing"
)

// gaugeInterval is how often the cache-size and active-session gauges
// are refreshed.
const gaugeInterval = 15 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the edge server",
	Long: `Start the edge server with the specified configuration.

The server listens on the configured address and dispatches every request
by its Host header: streaming-capable clients of active domains are
forwarded to the customer origin, everything else gets a status page.

Examples:
  # Start with default config
  edge run

  # Start with custom config
  edge run --config /etc/streamcdn/edge.yaml

  # Override listen address
  edge run --listen 0.0.0.0:8080

  # Validate config without starting
  edge run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("StreamCDN Edge v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Tracing
	tracer, err := tracing.New(tracing.Config{
		Enabled:     cfg.Telemetry.Tracing.Enabled,
		ServiceName: cfg.Telemetry.Tracing.ServiceName,
		Endpoint:    cfg.Telemetry.Tracing.Endpoint,
		Insecure:    cfg.Telemetry.Tracing.Insecure,
		SampleRatio: cfg.Telemetry.Tracing.SampleRatio,
	}, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// Metrics
	collector := metrics.NewCollector(metrics.Config{
		Enabled: cfg.Telemetry.Metrics.Enabled,
	}, nil)

	// Geolocation cache and resolver
	store, err := geo.OpenStore(geo.StoreConfig{
		Path:         cfg.Geo.CachePath,
		MaxOpenConns: cfg.Geo.MaxOpenConns,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()

	resolver := geo.NewResolver(store, nil, nil, geo.ResolverConfig{
		TTL:             cfg.Geo.CacheTTL,
		ProviderTimeout: cfg.Geo.ProviderTimeout,
		SweepSchedule:   cfg.Geo.SweepSchedule,
	}, logger, collector)
	if err := resolver.StartSweeper(); err != nil {
		logger.Warn("geo cache sweeper not started", "error", err)
	} else {
		defer resolver.StopSweeper()
	}
	fmt.Println("✓ Geolocation cache ready")

	// Session tracking
	sessions := session.NewTracker(session.Config{
		IdleTTL:       cfg.Session.IdleTTL,
		SweepInterval: cfg.Session.SweepInterval,
	})

	// Client classification
	classifier := classify.New(classify.Config{
		OkHTTPStrictBrowserCheck: cfg.Classifier.OkHTTPStrictBrowserCheck,
		ExtraBotSignatures:       cfg.Classifier.ExtraBotSignatures,
		ExtraSmartTVSignatures:   cfg.Classifier.ExtraSmartTVSignatures,
	})

	// Domain registry
	registryClient, err := registry.NewHTTPClient(registry.HTTPConfig{
		BaseURL:  cfg.Registry.BaseURL,
		APIToken: cfg.Registry.APIToken,
		Timeout:  cfg.Registry.Timeout,
	}, logger)
	if err != nil {
		return cli.NewConfigError("registry", err.Error())
	}
	fmt.Printf("✓ Registry client ready (%s)\n", cfg.Registry.BaseURL)

	// Analytics
	var sink analytics.Sink
	if cfg.Analytics.Enabled {
		sink, err = analytics.NewHTTPSink(analytics.HTTPSinkConfig{
			Endpoint: cfg.Analytics.Endpoint,
			APIToken: cfg.Analytics.APIToken,
			Timeout:  cfg.Analytics.DeliveryTimeout,
		})
		if err != nil {
			return cli.NewConfigError("analytics", err.Error())
		}
	}
	emitter := analytics.NewEmitter(sink, analytics.Config{
		Enabled:         cfg.Analytics.Enabled,
		Buffer:          cfg.Analytics.Buffer,
		DeliveryTimeout: cfg.Analytics.DeliveryTimeout,
	}, logger, collector)
	defer emitter.Close()
	if cfg.Analytics.Enabled {
		fmt.Println("✓ Analytics emitter started")
	}

	// Forwarding and routing
	engine := proxy.NewEngine(proxy.EngineConfig{
		OriginTimeout: cfg.Forward.OriginTimeout,
		RetryAttempts: cfg.Forward.RetryAttempts,
		RetryDelay:    cfg.Forward.RetryDelay,
	}, logger, collector)

	router := proxy.NewRouter(
		proxy.RouterConfig{TrustedIPHeaders: cfg.Proxy.TrustedIPHeaders},
		registryClient,
		classifier,
		resolver,
		sessions,
		engine,
		emitter,
		logger,
		collector,
	)

	health := handlers.NewHealth(handlers.HealthConfig{
		ServiceName:      "streamcdn-edge",
		Version:          Version,
		TrustedIPHeaders: cfg.Proxy.TrustedIPHeaders,
		AnalyticsEnabled: cfg.Analytics.Enabled,
		TracingEnabled:   tracer.Enabled(),
	}, resolver, sessions)

	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		metricsHandler = collector.Handler()
	}

	srv := server.NewServer(&cfg.Proxy, router, health, metricsHandler, cfg.Telemetry.Metrics.Path, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Gauges are sampled, not event-driven.
	go func() {
		ticker := time.NewTicker(gaugeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collector.SetGeoCacheSize(resolver.CacheSize(ctx))
				collector.SetActiveSessions(sessions.Len())
			}
		}
	}()

	// Config file watcher: a changed file reloads the singleton so new
	// processes of this config pick it up; live components keep their
	// construction-time settings until restart.
	watcher, err := config.NewWatcher(cfgFile, 0, logger)
	if err != nil {
		logger.Warn("config watcher not started", "error", err)
	} else {
		go func() {
			if err := watcher.Watch(ctx, func() error {
				return config.ReloadConfig(cfgFile)
			}); err != nil {
				logger.Warn("config watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Edge listening on %s\n", cfg.Proxy.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Proxy.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Proxy.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Proxy.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Edge stopped")
		return nil
	}
}
