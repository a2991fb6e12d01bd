package metrics

import (
	"time"
)

// RecordPipelineRun records the outcome of a full pipeline run.
// Status should be "success", "partial", or "failure".
func RecordPipelineRun(status string, duration time.Duration) {
	PipelineRunsTotal.WithLabelValues(status).Inc()
	PipelineRunDuration.Observe(duration.Seconds())
}

// RecordTask records the outcome of a single pipeline task.
// Kind identifies the task type (e.g., "feed", "generation"), status is
// "success", "degraded", or "failure".
func RecordTask(kind, status string, duration time.Duration) {
	PipelineTasksTotal.WithLabelValues(kind, status).Inc()
	PipelineTaskDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRunSkipped records a scheduled run that was skipped because the
// previous run had not finished yet.
func RecordRunSkipped() {
	WorkerRunsSkippedTotal.Inc()
}

// RecordGeneration records a completed text generation call.
// This tracks both the duration and the token usage reported by the provider.
//
// Parameters:
//   - provider: Provider name (e.g., "anthropic", "openai")
//   - duration: Time taken by the call
//   - inputTokens: Prompt tokens reported by the provider
//   - outputTokens: Completion tokens reported by the provider
//
// Example:
//
//	start := time.Now()
//	resp, err := client.Generate(ctx, prompt)
//	if err == nil {
//	    RecordGeneration("anthropic", time.Since(start), resp.InputTokens, resp.OutputTokens)
//	}
func RecordGeneration(provider string, duration time.Duration, inputTokens, outputTokens int) {
	GenerationDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if inputTokens > 0 {
		GenerationTokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		GenerationTokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

// RecordFeedItemsFetched records the number of items fetched for a feed task.
func RecordFeedItemsFetched(task string, count int) {
	if count <= 0 {
		return
	}
	FeedItemsFetchedTotal.WithLabelValues(task).Add(float64(count))
}

// RecordPageFetchSuccess records a successful page fetch operation.
// This tracks both the attempt result and the size of extracted content.
func RecordPageFetchSuccess(size int) {
	PageFetchAttemptsTotal.WithLabelValues("success").Inc()
	PageFetchSize.Observe(float64(size))
}

// RecordPageFetchFailed records a failed page fetch operation.
func RecordPageFetchFailed() {
	PageFetchAttemptsTotal.WithLabelValues("failure").Inc()
}

// RecordAlertDelivered records the result of one webhook alert delivery.
func RecordAlertDelivered(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	AlertsDeliveredTotal.WithLabelValues(result).Inc()
}

// RecordAlertDropped records an alert that was dropped before delivery.
// Reason should describe the drop cause (e.g., "queue_full", "breaker_open").
func RecordAlertDropped(reason string) {
	AlertsDroppedTotal.WithLabelValues(reason).Inc()
}
