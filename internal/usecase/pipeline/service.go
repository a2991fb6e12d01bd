// Package pipeline drives the configured tasks through the resilient
// execution layer: scraping feeds and pages, generating summaries with
// provider fallback, and probing the analysis service.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"callguard/internal/config"
	"callguard/internal/infra/provider"
	"callguard/internal/observability/logging"
	"callguard/internal/observability/metrics"
	"callguard/internal/observability/tracing"
	"callguard/internal/utils/text"
	"callguard/pkg/resilience"
)

// FeedScraper fetches RSS/Atom feed items from a URL.
type FeedScraper interface {
	Fetch(ctx context.Context, feedURL string) ([]provider.FeedItem, error)
}

// PageScraper fetches a web page and extracts its readable text.
type PageScraper interface {
	Fetch(ctx context.Context, pageURL string) (*provider.Page, error)
}

// Generator produces text from a prompt through one LLM provider.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*provider.Generation, error)
}

// AnalysisProber checks the availability of the analysis service.
type AnalysisProber interface {
	Probe(ctx context.Context) (*provider.AnalysisStatus, error)
}

// RunConfig holds configuration for pipeline run behavior.
type RunConfig struct {
	Parallelism    int // Maximum number of tasks executed concurrently
	FeedItemLimit  int // Number of leading feed items included in a summary prompt
	MaxPromptRunes int // Rune budget for generation prompts
}

// DefaultRunConfig returns run settings suitable for typical task files.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Parallelism:    4,
		FeedItemLimit:  5,
		MaxPromptRunes: 12000,
	}
}

// Service executes the configured pipeline tasks through the resilient
// execution layer. Every upstream call goes through the shared Executor
// so it gets retry, breaker, rate-limit, and cache handling; the
// service itself only sequences work and aggregates outcomes.
type Service struct {
	Executor  *resilience.Executor
	Feeds     FeedScraper
	Pages     PageScraper
	Anthropic Generator
	OpenAI    Generator
	Analysis  AnalysisProber

	tasks     []config.Task
	runConfig RunConfig
}

// NewService creates a pipeline service with the provided dependencies.
//
// Parameters:
//   - executor: Resilient call executor shared by every upstream call
//   - feeds: Feed scraper for feed tasks (can be nil to disable)
//   - pages: Page scraper for page tasks (can be nil to disable)
//   - anthropic: Primary generation provider (can be nil to disable)
//   - openai: Secondary generation provider (can be nil to disable)
//   - analysis: Analysis service prober (can be nil to disable)
//   - tasks: Validated task list from the pipeline config
//   - runConfig: Run behavior settings; non-positive fields fall back
//     to the DefaultRunConfig values
//
// Returns:
//   - Service: Configured pipeline service ready to run
//
// Example:
//
//	runCfg := pipeline.DefaultRunConfig()
//	runCfg.Parallelism = workerCfg.MaxConcurrentTasks
//	svc := pipeline.NewService(executor, feeds, pages, anthropic, openai, analysis, tasks, runCfg)
func NewService(
	executor *resilience.Executor,
	feeds FeedScraper,
	pages PageScraper,
	anthropic Generator,
	openai Generator,
	analysis AnalysisProber,
	tasks []config.Task,
	runConfig RunConfig,
) Service {
	defaults := DefaultRunConfig()
	if runConfig.Parallelism < 1 {
		runConfig.Parallelism = defaults.Parallelism
	}
	if runConfig.FeedItemLimit < 1 {
		runConfig.FeedItemLimit = defaults.FeedItemLimit
	}
	if runConfig.MaxPromptRunes < 1 {
		runConfig.MaxPromptRunes = defaults.MaxPromptRunes
	}

	return Service{
		Executor:  executor,
		Feeds:     feeds,
		Pages:     pages,
		Anthropic: anthropic,
		OpenAI:    openai,
		Analysis:  analysis,
		tasks:     tasks,
		runConfig: runConfig,
	}
}

// RunStats contains statistics about one pipeline run. Every task ends
// in exactly one of the three outcome counters.
type RunStats struct {
	Tasks     int
	Succeeded int64
	Degraded  int64
	Failed    int64
	FeedItems int64
	Generated int64
	Duration  time.Duration
}

// Run executes all configured tasks once.
// Tasks run concurrently up to the configured parallelism. Each task is
// dispatched by kind:
//  1. feed: fetch and parse the feed, optionally summarize its items
//  2. page: fetch the page, optionally summarize its extracted text
//  3. generation: run the task prompt through a generation provider
//  4. analysis: probe the analysis service's availability
//
// A failing task is logged and counted without stopping the others;
// context cancellation aborts the whole run.
// Returns run statistics including per-outcome task counts.
func (s *Service) Run(ctx context.Context) (*RunStats, error) {
	runID := uuid.NewString()
	logger := logging.FromContext(ctx).With(slog.String("run_id", runID))
	ctx = logging.WithLogger(ctx, logger)

	ctx, span := tracing.StartSpan(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.tasks", len(s.tasks)),
		))
	defer span.End()

	start := time.Now()
	stats := &RunStats{Tasks: len(s.tasks)}

	logger.Info("pipeline run starting", slog.Int("tasks", stats.Tasks))

	sem := make(chan struct{}, s.runConfig.Parallelism)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, task := range s.tasks {
		t := task
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			return s.runTask(egCtx, t, stats)
		})
	}

	if err := eg.Wait(); err != nil {
		stats.Duration = time.Since(start)
		metrics.RecordPipelineRun("failure", stats.Duration)
		span.SetAttributes(attribute.Bool("error", true))
		return stats, err
	}

	stats.Duration = time.Since(start)
	status := runStatus(stats)
	metrics.RecordPipelineRun(status, stats.Duration)
	span.SetAttributes(attribute.String("run.status", status))

	logger.Info("pipeline run completed",
		slog.String("status", status),
		slog.Int("tasks", stats.Tasks),
		slog.Int64("succeeded", atomic.LoadInt64(&stats.Succeeded)),
		slog.Int64("degraded", atomic.LoadInt64(&stats.Degraded)),
		slog.Int64("failed", atomic.LoadInt64(&stats.Failed)),
		slog.Int64("feed_items", atomic.LoadInt64(&stats.FeedItems)),
		slog.Int64("generated", atomic.LoadInt64(&stats.Generated)),
		slog.Duration("duration", stats.Duration),
	)

	return stats, nil
}

// runStatus classifies a finished run by its failure count.
func runStatus(stats *RunStats) string {
	failed := atomic.LoadInt64(&stats.Failed)
	switch {
	case failed == 0:
		return "success"
	case failed == int64(stats.Tasks):
		return "failure"
	default:
		return "partial"
	}
}

// runTask executes one task, records its outcome, and updates stats.
//
// Error Handling:
//   - Context cancellation (context.Canceled, context.DeadlineExceeded): Propagates immediately (aborts run)
//   - All other failures: Logged and counted in stats.Failed, the remaining tasks keep running
func (s *Service) runTask(ctx context.Context, task config.Task, stats *RunStats) error {
	logger := logging.FromContext(ctx).With(
		slog.String("task", task.Name),
		slog.String("kind", task.Kind))

	ctx, span := tracing.StartSpan(ctx, "pipeline.task",
		trace.WithAttributes(
			attribute.String("task.name", task.Name),
			attribute.String("task.kind", task.Kind),
		))
	defer span.End()
	ctx = logging.WithLogger(ctx, logger)

	start := time.Now()
	degraded, err := s.dispatch(ctx, task, stats)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		atomic.AddInt64(&stats.Failed, 1)
		metrics.RecordTask(task.Kind, "failure", duration)
		span.SetAttributes(attribute.Bool("error", true))
		logger.Warn("task failed",
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return nil
	}

	if degraded {
		atomic.AddInt64(&stats.Degraded, 1)
		metrics.RecordTask(task.Kind, "degraded", duration)
		span.SetAttributes(attribute.Bool("degraded", true))
		logger.Warn("task completed with degraded result",
			slog.Duration("duration", duration))
		return nil
	}

	atomic.AddInt64(&stats.Succeeded, 1)
	metrics.RecordTask(task.Kind, "success", duration)
	logger.Info("task completed", slog.Duration("duration", duration))
	return nil
}

// dispatch runs the kind-specific behavior for one task. The degraded
// flag reports whether any step served a fallback result.
func (s *Service) dispatch(ctx context.Context, task config.Task, stats *RunStats) (bool, error) {
	switch task.Kind {
	case config.TaskKindFeed:
		return s.runFeedTask(ctx, task, stats)
	case config.TaskKindPage:
		return s.runPageTask(ctx, task, stats)
	case config.TaskKindGeneration:
		return s.runGenerationTask(ctx, task, stats)
	case config.TaskKindAnalysis:
		return s.runAnalysisTask(ctx, task)
	default:
		// Unreachable for validated task files.
		return false, &resilience.ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown task kind %q", task.Kind),
		}
	}
}

// execute runs one provider call through the executor inside its own
// span, so the scrape and generation calls of a task stay separable in
// a trace.
func (s *Service) execute(ctx context.Context, dependency string, op resilience.Operation, opts resilience.Options) (resilience.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "provider.call",
		trace.WithAttributes(attribute.String("dependency", dependency)))
	defer span.End()

	result, err := s.Executor.Execute(ctx, dependency, op, opts)
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		return result, err
	}

	span.SetAttributes(
		attribute.Bool("degraded", result.Degraded),
		attribute.Bool("from_cache", result.FromCache),
		attribute.Int("attempts", result.Attempts),
	)
	return result, nil
}

// runFeedTask fetches a feed through the executor and, when the task
// carries a prompt, summarizes the leading items. A dead feed host
// degrades to an empty item list instead of failing the task.
func (s *Service) runFeedTask(ctx context.Context, task config.Task, stats *RunStats) (bool, error) {
	if s.Feeds == nil {
		return false, &resilience.ValidationError{Field: "task", Message: "feed scraping is not configured"}
	}

	key := provider.FeedDependencyKey(task.URL)
	result, err := s.execute(ctx, key, func(ctx context.Context) (any, error) {
		return s.Feeds.Fetch(ctx, task.URL)
	}, resilience.Options{
		CacheKey: taskCacheKey(task.Name, "scrape"),
		CacheTTL: task.CacheTTL(),
		Fallback: func(_ context.Context) (any, error) {
			return []provider.FeedItem{}, nil
		},
		Meta: map[string]string{"task": task.Name},
	})
	if err != nil {
		return false, err
	}

	items, ok := result.Value.([]provider.FeedItem)
	if !ok {
		return false, &resilience.SystemError{
			Op:  "decode feed result",
			Err: fmt.Errorf("unexpected value type %T", result.Value),
		}
	}

	atomic.AddInt64(&stats.FeedItems, int64(len(items)))
	metrics.RecordFeedItemsFetched(task.Name, len(items))

	logger := logging.FromContext(ctx)
	if task.Prompt == "" || len(items) == 0 {
		if task.Prompt != "" {
			logger.Info("feed is empty, skipping summary", slog.String("url", task.URL))
		}
		return result.Degraded, nil
	}

	gen, genDegraded, err := s.generate(ctx, task, s.feedPrompt(task, items))
	if err != nil {
		return false, err
	}

	atomic.AddInt64(&stats.Generated, 1)
	logger.Info("feed summary generated",
		slog.String("provider", gen.Provider),
		slog.Int("feed_items", len(items)),
		slog.Int("summary_length", text.CountRunes(gen.Text)))

	return result.Degraded || genDegraded, nil
}

// runPageTask fetches a page through the executor and, when the task
// carries a prompt, summarizes the extracted text. An unreachable page
// degrades to an empty page instead of failing the task.
func (s *Service) runPageTask(ctx context.Context, task config.Task, stats *RunStats) (bool, error) {
	if s.Pages == nil {
		return false, &resilience.ValidationError{Field: "task", Message: "page scraping is not configured"}
	}

	key := provider.PageDependencyKey(task.URL)
	result, err := s.execute(ctx, key, func(ctx context.Context) (any, error) {
		return s.Pages.Fetch(ctx, task.URL)
	}, resilience.Options{
		CacheKey: taskCacheKey(task.Name, "scrape"),
		CacheTTL: task.CacheTTL(),
		Fallback: func(_ context.Context) (any, error) {
			return &provider.Page{URL: task.URL}, nil
		},
		Meta: map[string]string{"task": task.Name},
	})
	if err != nil {
		return false, err
	}

	page, ok := result.Value.(*provider.Page)
	if !ok {
		return false, &resilience.SystemError{
			Op:  "decode page result",
			Err: fmt.Errorf("unexpected value type %T", result.Value),
		}
	}

	logger := logging.FromContext(ctx)
	if task.Prompt == "" || page.Text == "" {
		if task.Prompt != "" {
			logger.Info("page has no extractable text, skipping summary",
				slog.String("url", task.URL))
		}
		return result.Degraded, nil
	}

	gen, genDegraded, err := s.generate(ctx, task, s.pagePrompt(task, page))
	if err != nil {
		return false, err
	}

	atomic.AddInt64(&stats.Generated, 1)
	logger.Info("page summary generated",
		slog.String("provider", gen.Provider),
		slog.Int("text_length", text.CountRunes(page.Text)),
		slog.Int("summary_length", text.CountRunes(gen.Text)))

	return result.Degraded || genDegraded, nil
}

// runGenerationTask runs the task prompt through a generation provider.
func (s *Service) runGenerationTask(ctx context.Context, task config.Task, stats *RunStats) (bool, error) {
	gen, degraded, err := s.generate(ctx, task, task.Prompt)
	if err != nil {
		return false, err
	}

	atomic.AddInt64(&stats.Generated, 1)
	logging.FromContext(ctx).Info("generation completed",
		slog.String("provider", gen.Provider),
		slog.String("model", gen.Model),
		slog.Int("output_length", text.CountRunes(gen.Text)))

	return degraded, nil
}

// runAnalysisTask probes the analysis service through the executor.
// Probe results are never cached and have no fallback: the probe's
// whole value is telling a live service apart from a dead one.
func (s *Service) runAnalysisTask(ctx context.Context, task config.Task) (bool, error) {
	if s.Analysis == nil {
		return false, &resilience.ValidationError{Field: "task", Message: "analysis service is not configured"}
	}

	meta := map[string]string{"task": task.Name}
	if task.Prompt != "" {
		meta["query"] = task.Prompt
	}

	result, err := s.execute(ctx, provider.DependencyAnalysis, func(ctx context.Context) (any, error) {
		return s.Analysis.Probe(ctx)
	}, resilience.Options{Meta: meta})
	if err != nil {
		return false, err
	}

	status, ok := result.Value.(*provider.AnalysisStatus)
	if !ok {
		return false, &resilience.SystemError{
			Op:  "decode analysis result",
			Err: fmt.Errorf("unexpected value type %T", result.Value),
		}
	}

	logging.FromContext(ctx).Info("analysis probe completed",
		slog.String("state", status.State),
		slog.Duration("latency", status.Latency))

	return result.Degraded, nil
}

// generate runs one generation call through the executor. An empty
// task.Provider pairs the primary provider with the secondary as the
// degraded fallback; a pinned provider runs alone.
func (s *Service) generate(ctx context.Context, task config.Task, prompt string) (*provider.Generation, bool, error) {
	primary, fallback, key, err := s.pickGenerators(task)
	if err != nil {
		return nil, false, err
	}

	opts := resilience.Options{
		CacheKey: taskCacheKey(task.Name, "generate") + ":" + contentDigest(prompt),
		CacheTTL: task.CacheTTL(),
		Meta:     map[string]string{"task": task.Name},
	}
	if fallback != nil {
		opts.Fallback = func(ctx context.Context) (any, error) {
			return fallback.Generate(ctx, prompt)
		}
	}

	result, err := s.execute(ctx, key, func(ctx context.Context) (any, error) {
		return primary.Generate(ctx, prompt)
	}, opts)
	if err != nil {
		return nil, false, err
	}

	gen, ok := result.Value.(*provider.Generation)
	if !ok {
		return nil, false, &resilience.SystemError{
			Op:  "decode generation result",
			Err: fmt.Errorf("unexpected value type %T", result.Value),
		}
	}

	return gen, result.Degraded, nil
}

// pickGenerators resolves the provider pinning of a task to a primary
// generator, an optional fallback generator, and the dependency key the
// call is tracked under.
func (s *Service) pickGenerators(task config.Task) (Generator, Generator, string, error) {
	switch task.Provider {
	case config.ProviderAnthropic:
		if s.Anthropic == nil {
			return nil, nil, "", &resilience.ValidationError{
				Field:   "provider",
				Message: "task pins the anthropic provider but it is not configured",
			}
		}
		return s.Anthropic, nil, provider.DependencyAnthropic, nil
	case config.ProviderOpenAI:
		if s.OpenAI == nil {
			return nil, nil, "", &resilience.ValidationError{
				Field:   "provider",
				Message: "task pins the openai provider but it is not configured",
			}
		}
		return s.OpenAI, nil, provider.DependencyOpenAI, nil
	default:
		switch {
		case s.Anthropic == nil && s.OpenAI == nil:
			return nil, nil, "", &resilience.ValidationError{
				Field:   "provider",
				Message: "no generation provider is configured",
			}
		case s.Anthropic == nil:
			return s.OpenAI, nil, provider.DependencyOpenAI, nil
		default:
			return s.Anthropic, s.OpenAI, provider.DependencyAnthropic, nil
		}
	}
}

// feedPrompt builds the generation prompt for a feed task from the
// leading feed items (feeds list newest entries first), bounded by the
// configured item and rune budgets.
func (s *Service) feedPrompt(task config.Task, items []provider.FeedItem) string {
	limit := s.runConfig.FeedItemLimit
	if len(items) < limit {
		limit = len(items)
	}

	var b strings.Builder
	b.WriteString(task.Prompt)
	b.WriteString("\n")
	for _, item := range items[:limit] {
		b.WriteString("\n## ")
		b.WriteString(item.Title)
		b.WriteString("\n")
		b.WriteString(item.Content)
		b.WriteString("\n")
	}

	// The instruction at the head of the prompt survives truncation;
	// trailing scraped content is dropped.
	return text.TruncateRunes(b.String(), s.runConfig.MaxPromptRunes)
}

// pagePrompt builds the generation prompt for a page task.
func (s *Service) pagePrompt(task config.Task, page *provider.Page) string {
	var b strings.Builder
	b.WriteString(task.Prompt)
	b.WriteString("\n\n# ")
	b.WriteString(page.Title)
	b.WriteString("\n")
	b.WriteString(page.Text)

	return text.TruncateRunes(b.String(), s.runConfig.MaxPromptRunes)
}

// taskCacheKey builds a normalized response-cache key. Task names are
// unique per task-file validation; the step suffix keeps the scrape and
// generation results of one task apart.
func taskCacheKey(taskName, step string) string {
	return "task:" + taskName + ":" + step
}

// contentDigest returns a short stable digest of a generation input,
// used in cache keys so a summary is re-generated exactly when the
// scraped content changed.
func contentDigest(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:8])
}
