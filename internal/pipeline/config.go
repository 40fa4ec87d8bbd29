package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the run configuration, decoded from YAML.
type Config struct {
	// LogsRoot is the parent directory for per-run artifact roots.
	// Defaults to ${XDG_STATE_HOME:-$HOME/.local/state}/moriarty/runs.
	LogsRoot string `yaml:"logs_root"`

	// ArchivePath is the sqlite database recording terminal runs.
	ArchivePath string `yaml:"archive_path"`

	// MaxValidationAttempts bounds the validation-retry wrapper per
	// generation stage. 1 disables retry.
	MaxValidationAttempts int `yaml:"max_validation_attempts"`

	// MaxTransientAttempts bounds transient-failure retries per
	// generation call (timeouts, rate limits).
	MaxTransientAttempts int `yaml:"max_transient_attempts"`

	// StageTimeoutSeconds caps each individual generation call.
	StageTimeoutSeconds int `yaml:"stage_timeout_seconds"`

	// StrictFairPlay turns persistent critical fair-play failure into a
	// hard stop after structural revision and clue regeneration are
	// both exhausted. Off by default: the run completes with warnings.
	StrictFairPlay bool `yaml:"strict_fair_play"`

	// NoveltyCheck enables the optional novelty audit stage.
	NoveltyCheck bool `yaml:"novelty_check"`

	// JudgeMaxRegens bounds clue regenerations driven by judge feedback
	// across both judge types combined.
	JudgeMaxRegens int `yaml:"judge_max_regens"`

	// JudgeCostCeilingUSD caps spend on judge-feedback retries. The
	// ceiling binds even when the attempt budget has room.
	JudgeCostCeilingUSD float64 `yaml:"judge_cost_ceiling_usd"`

	// MaxConcurrentCalls bounds in-flight generation calls across every
	// run in this process. 0 means unlimited.
	MaxConcurrentCalls int64 `yaml:"max_concurrent_calls"`

	Backoff BackoffConfig `yaml:"backoff"`

	// Stages tunes provider/model/temperature per stage.
	Stages map[string]StageParams `yaml:"stages"`

	// ExamplesRoot plus ExamplePatterns select few-shot example files
	// per stage (doublestar globs, relative to ExamplesRoot).
	ExamplesRoot    string              `yaml:"examples_root"`
	ExamplePatterns map[string][]string `yaml:"example_patterns"`
}

func LoadConfig(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.LogsRoot == "" {
		c.LogsRoot = defaultLogsRoot()
	}
	if c.ArchivePath == "" {
		c.ArchivePath = filepath.Join(c.LogsRoot, "archive.db")
	}
	if c.MaxValidationAttempts == 0 {
		c.MaxValidationAttempts = 3
	}
	if c.MaxTransientAttempts == 0 {
		c.MaxTransientAttempts = 3
	}
	if c.StageTimeoutSeconds == 0 {
		c.StageTimeoutSeconds = 180
	}
	if c.JudgeMaxRegens == 0 {
		c.JudgeMaxRegens = 3
	}
	if c.JudgeCostCeilingUSD == 0 {
		c.JudgeCostCeilingUSD = 1.50
	}
	if c.MaxConcurrentCalls == 0 {
		c.MaxConcurrentCalls = 4
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = defaultBackoffConfig()
	}
}

func (c *Config) Validate() error {
	if c.MaxValidationAttempts < 1 {
		return fmt.Errorf("max_validation_attempts must be >= 1, got %d", c.MaxValidationAttempts)
	}
	if c.MaxTransientAttempts < 1 {
		return fmt.Errorf("max_transient_attempts must be >= 1, got %d", c.MaxTransientAttempts)
	}
	if c.StageTimeoutSeconds < 0 {
		return fmt.Errorf("stage_timeout_seconds must be >= 0, got %d", c.StageTimeoutSeconds)
	}
	if c.JudgeMaxRegens < 0 {
		return fmt.Errorf("judge_max_regens must be >= 0, got %d", c.JudgeMaxRegens)
	}
	if c.JudgeCostCeilingUSD < 0 {
		return fmt.Errorf("judge_cost_ceiling_usd must be >= 0, got %g", c.JudgeCostCeilingUSD)
	}
	return nil
}

func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutSeconds) * time.Second
}

func defaultLogsRoot() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			base = "."
		} else {
			base = filepath.Join(home, ".local", "state")
		}
	}
	return filepath.Join(base, "moriarty", "runs")
}
