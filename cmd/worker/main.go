// Command worker runs the resilient-call pipeline on a cron schedule
// and serves its operational endpoints: liveness, readiness, the
// resilience snapshot, and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"callguard/internal/config"
	hhttp "callguard/internal/handler/http"
	"callguard/internal/handler/http/requestid"
	"callguard/internal/infra/alert"
	"callguard/internal/infra/provider"
	"callguard/internal/infra/worker"
	"callguard/internal/observability/logging"
	"callguard/internal/observability/slo"
	"callguard/internal/observability/tracing"
	"callguard/internal/usecase/pipeline"
	pkgconfig "callguard/pkg/config"
	"callguard/pkg/resilience"
)

const (
	// statusRequestTimeout bounds one status request end to end.
	statusRequestTimeout = 10 * time.Second

	// statusMaxBodyBytes caps request bodies on the status surface.
	// The endpoints accept no bodies at all, so the cap only has to
	// leave room for clients that send one anyway.
	statusMaxBodyBytes = 4 << 10

	// feedClientTimeout bounds one feed fetch, connection to close.
	feedClientTimeout = 30 * time.Second
)

func main() {
	logger := initLogger()

	shutdownTracing := tracing.Init("callguard-worker")
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", slog.Any("error", err))
		}
	}()

	workerMetrics := worker.NewWorkerMetrics()
	workerConfig, err := worker.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}

	resilienceMetrics := resilience.NewPrometheusMetrics()
	registry, alertSink := setupResilience(logger, resilienceMetrics)
	defer alertSink.Close()

	providers := setupProviders(logger, registry)
	if providers.Analysis != nil {
		defer func() {
			if err := providers.Analysis.Close(); err != nil {
				logger.Error("failed to close analysis client", slog.Any("error", err))
			}
		}()
	}

	executor := resilience.NewExecutor(registry)
	svc := newPipelineService(logger, executor, providers, workerConfig)

	var schedulerUp atomic.Bool
	statusHandler := setupStatusSurface(logger, registry, providers.Analysis, &schedulerUp)

	runWorker(logger, workerConfig, workerMetrics, resilienceMetrics, statusHandler, svc, &schedulerUp)
}

// initLogger initializes the process-wide structured logger.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// setupResilience builds the shared resilience registry: policies from
// the environment, Prometheus metrics, and event sinks. Breaker and
// rate-limit events always reach the structured log; the webhook sink
// forwards them to the configured alert endpoint when enabled.
func setupResilience(logger *slog.Logger, metrics *resilience.PrometheusMetrics) (*resilience.Registry, *alert.WebhookSink) {
	resilienceCfg, err := pkgconfig.LoadResilienceConfig()
	if err != nil {
		logger.Error("failed to load resilience configuration", slog.Any("error", err))
		os.Exit(1)
	}

	alertCfg, err := alert.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load alert configuration", slog.Any("error", err))
		os.Exit(1)
	}

	webhook, err := alert.NewWebhookSink(alertCfg, logger)
	if err != nil {
		logger.Error("failed to create alert webhook sink", slog.Any("error", err))
		os.Exit(1)
	}

	resilienceCfg.Metrics = metrics
	resilienceCfg.Events = resilience.MultiSink{resilience.NewLogSink(logger), webhook}

	return resilience.NewRegistry(resilienceCfg), webhook
}

// pipelineProviders holds the upstream adapters of one worker process.
// Nil fields disable the corresponding pipeline task kinds.
type pipelineProviders struct {
	Feeds     *provider.FeedScraper
	Pages     *provider.PageScraper
	Anthropic *provider.AnthropicGenerator
	OpenAI    *provider.OpenAIGenerator
	Analysis  *provider.AnalysisClient
}

// setupProviders constructs the upstream adapters from provider
// configuration. Generation providers are only built when their API key
// is present, the analysis client only when the analysis service is
// enabled. An unreachable analysis service degrades the first probes
// instead of blocking startup.
func setupProviders(logger *slog.Logger, registry *resilience.Registry) *pipelineProviders {
	providersCfg, err := config.LoadProvidersConfig()
	if err != nil {
		logger.Error("failed to load provider configuration", slog.Any("error", err))
		os.Exit(1)
	}

	pageCfg, err := provider.LoadPageConfigFromEnv()
	if err != nil {
		logger.Error("failed to load page scraper configuration", slog.Any("error", err))
		os.Exit(1)
	}

	providers := &pipelineProviders{
		Feeds: provider.NewFeedScraper(provider.NewHTTPClient(feedClientTimeout), registry.Limits(), logger),
		Pages: provider.NewPageScraper(pageCfg, logger),
	}

	if providersCfg.HasAnthropic() {
		providers.Anthropic = provider.NewAnthropicGenerator(providersCfg.Anthropic, registry.Limits(), logger)
		logger.Info("anthropic provider configured", slog.String("model", providersCfg.Anthropic.Model))
	}

	if providersCfg.HasOpenAI() {
		providers.OpenAI = provider.NewOpenAIGenerator(providersCfg.OpenAI, registry.Limits(), logger)
		logger.Info("openai provider configured", slog.String("model", providersCfg.OpenAI.Model))
	}

	if providersCfg.Analysis.Enabled {
		analysis, err := provider.NewAnalysisClient(providersCfg.Analysis, logger)
		if err != nil {
			logger.Error("failed to create analysis client", slog.Any("error", err))
			os.Exit(1)
		}
		if err := analysis.WaitReady(context.Background()); err != nil {
			logger.Warn("analysis service not ready at startup",
				slog.String("address", providersCfg.Analysis.GRPCAddress),
				slog.Any("error", err))
		}
		providers.Analysis = analysis
	}

	return providers
}

// newPipelineService loads the task file and assembles the pipeline
// service around the shared executor.
func newPipelineService(logger *slog.Logger, executor *resilience.Executor, providers *pipelineProviders, workerConfig *worker.WorkerConfig) *pipeline.Service {
	pipelineCfg, err := config.LoadPipelineConfig(workerConfig.TasksFile)
	if err != nil {
		logger.Error("failed to load pipeline tasks",
			slog.String("path", workerConfig.TasksFile),
			slog.Any("error", err))
		os.Exit(1)
	}

	runCfg := pipeline.DefaultRunConfig()
	runCfg.Parallelism = workerConfig.MaxConcurrentTasks

	// The service detects disabled task kinds by checking its interface
	// fields for nil, so a nil concrete pointer must never be wrapped
	// into a non-nil interface value.
	var feeds pipeline.FeedScraper
	if providers.Feeds != nil {
		feeds = providers.Feeds
	}
	var pages pipeline.PageScraper
	if providers.Pages != nil {
		pages = providers.Pages
	}
	var anthropic pipeline.Generator
	if providers.Anthropic != nil {
		anthropic = providers.Anthropic
	}
	var openai pipeline.Generator
	if providers.OpenAI != nil {
		openai = providers.OpenAI
	}
	var analysis pipeline.AnalysisProber
	if providers.Analysis != nil {
		analysis = providers.Analysis
	}

	svc := pipeline.NewService(executor, feeds, pages, anthropic, openai, analysis, pipelineCfg.Tasks(), runCfg)

	logger.Info("pipeline service assembled",
		slog.Int("tasks", len(pipelineCfg.Tasks())),
		slog.Int("parallelism", runCfg.Parallelism))

	return &svc
}

// setupStatusSurface assembles the operational HTTP handler: liveness,
// readiness with the worker's checks, and the resilience snapshot
// behind bearer-token auth unless auth is explicitly disabled.
func setupStatusSurface(logger *slog.Logger, registry *resilience.Registry, analysis *provider.AnalysisClient, schedulerUp *atomic.Bool) http.Handler {
	statusCfg, err := config.LoadStatusConfig()
	if err != nil {
		logger.Error("failed to load status configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ready := hhttp.NewReadyHandler(getVersion())
	registerReadinessChecks(ready, registry, analysis, schedulerUp)

	mux := http.NewServeMux()
	mux.Handle("/healthz", &hhttp.LiveHandler{})
	mux.Handle("/readyz", ready)

	var status http.Handler = &hhttp.StatusHandler{Registry: registry}
	if statusCfg.AuthEnabled {
		status = hhttp.RequireToken([]byte(statusCfg.JWTSecret), statusCfg.RequiredRole)(status)
	} else {
		logger.Warn("status auth is DISABLED - resilience state is exposed unauthenticated")
	}
	mux.Handle("/status/resilience", status)

	return applyMiddleware(logger, mux)
}

// registerReadinessChecks wires the worker's readiness checks: the
// scheduler must be running, open breakers degrade readiness without
// failing it, and the analysis connection state is reported when the
// analysis service is enabled.
func registerReadinessChecks(ready *hhttp.ReadyHandler, registry *resilience.Registry, analysis *provider.AnalysisClient, schedulerUp *atomic.Bool) {
	ready.AddCheck("scheduler", func(_ context.Context) hhttp.CheckStatus {
		if !schedulerUp.Load() {
			return hhttp.CheckStatus{Status: "unhealthy", Message: "scheduler not started"}
		}
		return hhttp.CheckStatus{Status: "healthy"}
	})

	ready.AddCheck("breakers", func(_ context.Context) hhttp.CheckStatus {
		open := 0
		for _, b := range registry.Breakers().Snapshot() {
			if b.State == resilience.StateOpen {
				open++
			}
		}
		if open > 0 {
			return hhttp.CheckStatus{
				Status:  "degraded",
				Message: fmt.Sprintf("%d dependency breaker(s) open", open),
				Details: map[string]any{"open_circuits": open},
			}
		}
		return hhttp.CheckStatus{Status: "healthy"}
	})

	if analysis == nil {
		return
	}
	ready.AddCheck("analysis", func(_ context.Context) hhttp.CheckStatus {
		state := analysis.State()
		switch state {
		case "READY", "IDLE":
			return hhttp.CheckStatus{
				Status:  "healthy",
				Details: map[string]any{"connection_state": state},
			}
		default:
			return hhttp.CheckStatus{
				Status:  "degraded",
				Message: "analysis connection is " + state,
				Details: map[string]any{"connection_state": state},
			}
		}
	})
}

// applyMiddleware wraps the status mux in the shared middleware chain.
// Applied in reverse so the first listed runs first: the request ID
// must exist before the span starts, and the span must be recording
// before the request logger reads its trace ID.
func applyMiddleware(logger *slog.Logger, mux http.Handler) http.Handler {
	handler := http.Handler(mux)
	handler = hhttp.Metrics(handler)                              // 7. Request metrics
	handler = hhttp.LimitRequestBody(statusMaxBodyBytes)(handler) // 6. Body size cap
	handler = hhttp.Timeout(statusRequestTimeout)(handler)        // 5. Request timeout
	handler = hhttp.Logging(logger)(handler)                      // 4. Request logging
	handler = hhttp.Recover(logger)(handler)                      // 3. Panic recovery
	handler = tracing.Middleware(handler)                         // 2. Tracing span
	handler = requestid.Middleware(handler)                       // 1. Request ID
	return handler
}

// runWorker starts the status and metrics servers and the scheduler,
// then blocks until SIGINT or SIGTERM. Any component failing cancels
// the others; a signal shuts all three down gracefully.
func runWorker(logger *slog.Logger, workerConfig *worker.WorkerConfig, workerMetrics *worker.WorkerMetrics, resilienceMetrics *resilience.PrometheusMetrics, statusHandler http.Handler, svc *pipeline.Service, schedulerUp *atomic.Bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := worker.NewScheduler(workerConfig, func(runCtx context.Context) error {
		stats, err := svc.Run(runCtx)
		if stats != nil {
			slo.RecordRun(stats.Tasks, stats.Failed, stats.Degraded, stats.Duration)
		}
		return err
	}, logger, workerMetrics)

	// The pipeline and worker metrics live in the default registry; the
	// resilience layer records into its own injected registry. One
	// endpoint gathers both.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, resilienceMetrics.Registry()},
		promhttp.HandlerOpts{},
	))

	statusServer := worker.NewServer("status", fmt.Sprintf(":%d", workerConfig.StatusPort), statusHandler, logger)
	metricsServer := worker.NewServer("metrics", fmt.Sprintf(":%d", workerConfig.MetricsPort), metricsMux, logger)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := statusServer.Start(groupCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := metricsServer.Start(groupCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		schedulerUp.Store(true)
		if err := scheduler.Start(groupCtx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	logger.Info("worker started",
		slog.String("version", getVersion()),
		slog.Int("status_port", workerConfig.StatusPort),
		slog.Int("metrics_port", workerConfig.MetricsPort),
		slog.String("schedule", workerConfig.CronSchedule))

	if err := group.Wait(); err != nil {
		logger.Error("worker failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker stopped")
}
