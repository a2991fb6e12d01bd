package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	sharedconfig "callguard/internal/pkg/config"
)

// Task kinds understood by the pipeline.
const (
	TaskKindFeed       = "feed"
	TaskKindPage       = "page"
	TaskKindGeneration = "generation"
	TaskKindAnalysis   = "analysis"
)

// PipelineConfig represents the pipeline task file.
//
// Example task file:
//
//	pipeline:
//	  tasks:
//	    - name: go-blog
//	      kind: feed
//	      url: https://blog.golang.org/feed.atom
//	      prompt: "Summarize the newest entries in three bullet points."
//	      cache_ttl_minutes: 30
//	    - name: release-notes
//	      kind: page
//	      url: https://go.dev/doc/devel/release
//	    - name: weekly-digest
//	      kind: generation
//	      prompt: "Write a short digest of this week's Go ecosystem news."
//	      provider: anthropic
type PipelineConfig struct {
	Pipeline struct {
		Tasks []Task `yaml:"tasks"`
	} `yaml:"pipeline"`
}

// Task describes one unit of pipeline work.
type Task struct {
	// Name identifies the task in logs, metrics, and cache keys.
	Name string `yaml:"name"`

	// Kind selects the behavior: "feed", "page", "generation", or
	// "analysis".
	Kind string `yaml:"kind"`

	// URL is the source to fetch for feed and page tasks.
	URL string `yaml:"url"`

	// Prompt is the generation instruction. Required for generation
	// tasks; for feed and page tasks a non-empty prompt requests a
	// summary of the scraped content.
	Prompt string `yaml:"prompt"`

	// Provider pins generation to "anthropic" or "openai". Empty uses
	// the primary provider with fallback.
	Provider string `yaml:"provider"`

	// CacheTTLMinutes overrides the response cache TTL for this task.
	// Zero keeps the layer default.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
}

// CacheTTL returns the per-task cache override, zero when unset.
func (t Task) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLMinutes) * time.Minute
}

// LoadPipelineConfig loads the pipeline task file from YAML.
// The path parameter is expected to come from a trusted source
// (command-line flag or PIPELINE_TASKS_FILE environment variable).
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	// #nosec G304 -- path is provided by trusted source (CLI flag or env), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	var config PipelineConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}

	if err := validatePipelineConfig(&config); err != nil {
		return nil, fmt.Errorf("task file validation failed: %w", err)
	}

	return &config, nil
}

// validatePipelineConfig validates the loaded task list.
func validatePipelineConfig(config *PipelineConfig) error {
	if len(config.Pipeline.Tasks) == 0 {
		return fmt.Errorf("at least one task is required")
	}

	seen := make(map[string]bool, len(config.Pipeline.Tasks))

	for _, task := range config.Pipeline.Tasks {
		if task.Name == "" {
			return fmt.Errorf("task name is required")
		}

		if seen[task.Name] {
			return fmt.Errorf("duplicate task name '%s'", task.Name)
		}
		seen[task.Name] = true

		switch task.Kind {
		case TaskKindFeed, TaskKindPage:
			if err := sharedconfig.ValidateAbsoluteURL(task.URL); err != nil {
				return fmt.Errorf("task '%s': %w", task.Name, err)
			}
		case TaskKindGeneration:
			if task.Prompt == "" {
				return fmt.Errorf("task '%s': prompt is required for generation tasks", task.Name)
			}
		case TaskKindAnalysis:
			// Analysis tasks carry no required fields; the prompt is
			// attached to the probe as caller context when present.
		default:
			return fmt.Errorf("task '%s': unknown kind '%s'", task.Name, task.Kind)
		}

		switch task.Provider {
		case "", ProviderAnthropic, ProviderOpenAI:
		default:
			return fmt.Errorf("task '%s': unknown provider '%s'", task.Name, task.Provider)
		}

		if task.CacheTTLMinutes < 0 {
			return fmt.Errorf("task '%s': cache_ttl_minutes cannot be negative", task.Name)
		}
	}

	return nil
}

// Tasks returns the configured task list.
func (c *PipelineConfig) Tasks() []Task {
	return c.Pipeline.Tasks
}
