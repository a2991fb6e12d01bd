// Package main provides a one-shot CLI that exercises each configured
// upstream dependency through the resilient execution layer and prints
// the resulting breaker and rate-limit snapshot. It shares the
// worker's wiring without the scheduler, so a deployment can verify
// credentials, quotas, and connectivity before the first scheduled run.
// Usage: callguard-probe [--dependency KEY] [--timeout 30s] [--output json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callguard/internal/config"
	"callguard/internal/infra/provider"
	pkgconfig "callguard/pkg/config"
	"callguard/pkg/resilience"
)

// probePrompt keeps generation probes cheap: one short completion is
// enough to prove the API key and model name are valid.
const probePrompt = "Reply with the single word OK."

// ProbeResult is the outcome of one dependency probe.
type ProbeResult struct {
	Dependency string `json:"dependency"`
	OK         bool   `json:"ok"`
	Attempts   int    `json:"attempts"`
	Latency    string `json:"latency"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BreakerOutput is one breaker row in the snapshot output.
type BreakerOutput struct {
	Dependency   string `json:"dependency"`
	State        string `json:"state"`
	FailureCount int    `json:"failure_count"`
}

// RateLimitOutput is one rate-limit row in the snapshot output.
type RateLimitOutput struct {
	Dependency        string `json:"dependency"`
	RequestsRemaining *int   `json:"requests_remaining,omitempty"`
	TokensRemaining   *int   `json:"tokens_remaining,omitempty"`
	ResetTime         string `json:"reset_time,omitempty"`
}

// ProbeOutput represents the JSON output format for one probe run.
type ProbeOutput struct {
	Results    []ProbeResult     `json:"results"`
	Breakers   []BreakerOutput   `json:"breakers"`
	RateLimits []RateLimitOutput `json:"rate_limits"`
}

// probe pairs a dependency key with the operation that exercises it.
type probe struct {
	key string
	op  resilience.Operation
}

func main() {
	// Parse command-line arguments
	var (
		dependency   string
		timeout      time.Duration
		outputFormat string
	)

	flag.StringVar(&dependency, "dependency", "", "Probe a single dependency: anthropic, openai, or analysis")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Per-attempt timeout for probe calls")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.Parse()

	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load provider configuration
	providersCfg, err := config.LoadProvidersConfig()
	if err != nil {
		logger.Error("failed to load provider configuration", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to load provider configuration: %v\n", err)
		os.Exit(1)
	}

	// Build the execution layer with the same policies as the worker.
	// Events stay on the log sink: a manual probe must not page anyone
	// through the alert webhook.
	resilienceCfg, err := pkgconfig.LoadResilienceConfig()
	if err != nil {
		logger.Error("failed to load resilience configuration", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to load resilience configuration: %v\n", err)
		os.Exit(1)
	}
	resilienceCfg.Events = resilience.NewLogSink(logger)

	registry := resilience.NewRegistry(resilienceCfg)
	executor := resilience.NewExecutor(registry)

	probes, cleanup := buildProbes(logger, providersCfg, registry, dependency)
	defer cleanup()

	if len(probes) == 0 {
		fmt.Fprintln(os.Stderr, "Error: No matching dependency is configured")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: callguard-probe [--dependency anthropic|openai|analysis] [--timeout 30s] [--output json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  callguard-probe")
		fmt.Fprintln(os.Stderr, "  callguard-probe --dependency anthropic")
		fmt.Fprintln(os.Stderr, "  callguard-probe --dependency analysis --timeout 5s --output json")
		os.Exit(1)
	}

	var output ProbeOutput
	failed := 0
	for _, p := range probes {
		result := runProbe(ctx, executor, p, timeout)
		if !result.OK {
			failed++
		}
		output.Results = append(output.Results, result)
	}

	collectSnapshot(&output, registry)

	// Output results
	if outputFormat == "json" {
		outputJSON(output)
	} else {
		outputText(output)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// runProbe executes one dependency call through the executor under the
// registry's retry and breaker policies. Probes never cache and never
// fall back: their whole value is telling a live dependency from a
// dead one.
func runProbe(ctx context.Context, executor *resilience.Executor, p probe, timeout time.Duration) ProbeResult {
	start := time.Now()
	result, err := executor.Execute(ctx, p.key, p.op, resilience.Options{
		AttemptTimeout: timeout,
		Meta:           map[string]string{"probe": "manual"},
	})
	latency := time.Since(start)

	out := ProbeResult{
		Dependency: p.key,
		Latency:    latency.Round(time.Millisecond).String(),
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.OK = true
	out.Attempts = result.Attempts
	out.Detail = describeValue(result.Value)
	return out
}

// buildProbes assembles one probe per configured dependency, filtered
// by the --dependency flag when set. The returned cleanup closes any
// client the probes opened.
func buildProbes(logger *slog.Logger, providersCfg *config.ProvidersConfig, registry *resilience.Registry, only string) ([]probe, func()) {
	var probes []probe
	cleanup := func() {}

	wanted := func(key string) bool { return only == "" || only == key }

	if providersCfg.HasAnthropic() && wanted(provider.DependencyAnthropic) {
		gen := provider.NewAnthropicGenerator(providersCfg.Anthropic, registry.Limits(), logger)
		probes = append(probes, probe{
			key: provider.DependencyAnthropic,
			op: func(ctx context.Context) (any, error) {
				return gen.Generate(ctx, probePrompt)
			},
		})
	}

	if providersCfg.HasOpenAI() && wanted(provider.DependencyOpenAI) {
		gen := provider.NewOpenAIGenerator(providersCfg.OpenAI, registry.Limits(), logger)
		probes = append(probes, probe{
			key: provider.DependencyOpenAI,
			op: func(ctx context.Context) (any, error) {
				return gen.Generate(ctx, probePrompt)
			},
		})
	}

	if providersCfg.Analysis.Enabled && wanted(provider.DependencyAnalysis) {
		client, err := provider.NewAnalysisClient(providersCfg.Analysis, logger)
		if err != nil {
			logger.Error("failed to create analysis client", slog.Any("error", err))
			fmt.Fprintf(os.Stderr, "Error: Failed to create analysis client: %v\n", err)
			os.Exit(1)
		}
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close analysis client", slog.Any("error", err))
			}
		}
		probes = append(probes, probe{
			key: provider.DependencyAnalysis,
			op: func(ctx context.Context) (any, error) {
				return client.Probe(ctx)
			},
		})
	}

	return probes, cleanup
}

// describeValue renders a short human-readable summary of a probe's
// return value.
func describeValue(v any) string {
	switch val := v.(type) {
	case *provider.Generation:
		return fmt.Sprintf("%s/%s replied with %d chars", val.Provider, val.Model, len(val.Text))
	case *provider.AnalysisStatus:
		return fmt.Sprintf("analysis %s in %s", val.State, val.Latency.Round(time.Millisecond))
	default:
		return ""
	}
}

// collectSnapshot copies the post-probe breaker and rate-limit state
// into the output.
func collectSnapshot(output *ProbeOutput, registry *resilience.Registry) {
	for _, b := range registry.Breakers().Snapshot() {
		output.Breakers = append(output.Breakers, BreakerOutput{
			Dependency:   b.Key,
			State:        b.State.String(),
			FailureCount: b.FailureCount,
		})
	}

	for _, rl := range registry.Limits().Snapshot() {
		out := RateLimitOutput{
			Dependency:        rl.Key,
			RequestsRemaining: rl.RequestsRemaining,
			TokensRemaining:   rl.TokensRemaining,
		}
		if !rl.ResetTime.IsZero() {
			out.ResetTime = rl.ResetTime.Format(time.RFC3339)
		}
		output.RateLimits = append(output.RateLimits, out)
	}
}

// outputText prints probe results in human-readable format.
func outputText(output ProbeOutput) {
	fmt.Printf("Probed %d dependencies:\n\n", len(output.Results))
	for _, r := range output.Results {
		status := "OK"
		if !r.OK {
			status = "FAILED"
		}
		fmt.Printf("%-10s %-7s attempts=%d latency=%s\n", r.Dependency, status, r.Attempts, r.Latency)
		if r.Detail != "" {
			fmt.Printf("           %s\n", r.Detail)
		}
		if r.Error != "" {
			fmt.Printf("           error: %s\n", r.Error)
		}
	}

	fmt.Printf("\nBreakers:\n")
	if len(output.Breakers) == 0 {
		fmt.Println("  (none tracked)")
	}
	for _, b := range output.Breakers {
		fmt.Printf("  %-24s %-9s failures=%d\n", b.Dependency, b.State, b.FailureCount)
	}

	fmt.Printf("\nRate limits:\n")
	if len(output.RateLimits) == 0 {
		fmt.Println("  (none observed)")
	}
	for _, rl := range output.RateLimits {
		line := fmt.Sprintf("  %-24s", rl.Dependency)
		if rl.RequestsRemaining != nil {
			line += fmt.Sprintf(" requests_remaining=%d", *rl.RequestsRemaining)
		}
		if rl.TokensRemaining != nil {
			line += fmt.Sprintf(" tokens_remaining=%d", *rl.TokensRemaining)
		}
		if rl.ResetTime != "" {
			line += " resets=" + rl.ResetTime
		}
		fmt.Println(line)
	}
}

// outputJSON prints probe results in JSON format.
func outputJSON(output ProbeOutput) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

// initLogger initializes a text logger on stderr so log lines stay out
// of the probe's stdout output.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
