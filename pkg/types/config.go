package types

import "time"

// Mode selects the chapter-generation strategy.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
	ModeCascade    Mode = "cascade"
)

// Provider identifies the LLM backend.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

// LLMConfig is the immutable snapshot of LLM settings. It is resolved once
// at startup and handed to every component (and every worker) that needs
// to build a client.
type LLMConfig struct {
	// Provider selects the backend: gemini or anthropic.
	Provider Provider `json:"provider" yaml:"provider" mapstructure:"provider" validate:"required,oneof=gemini anthropic"`

	// APIKey authenticates against the provider.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`

	// Model is the model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model_name" yaml:"model_name" mapstructure:"model_name" validate:"required"`

	// Temperature controls sampling randomness.
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`

	// Timeout bounds a single LLM request (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
}

// GenerationConfig holds settings for TOC and chapter generation.
type GenerationConfig struct {
	// Mode selects sequential, parallel, or cascade chapter generation.
	Mode Mode `json:"mode" yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=sequential parallel cascade"`

	// MaxChapters is the chapter limit handed to the TOC prompt (default 10).
	MaxChapters int `json:"max_chapters" yaml:"max_chapters" mapstructure:"max_chapters" validate:"gte=1,lte=100"`

	// FixedChapterCount asks for exactly MaxChapters chapters.
	FixedChapterCount bool `json:"fixed_chapter_count" yaml:"fixed_chapter_count" mapstructure:"fixed_chapter_count"`

	// CustomInstructions is appended verbatim to every chapter prompt.
	CustomInstructions string `json:"custom_instructions,omitempty" yaml:"custom_instructions,omitempty" mapstructure:"-"`
}

// ParallelConfig holds settings for the worker pool and the retry policy.
type ParallelConfig struct {
	// Enabled selects the parallel mode when no mode is configured.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// MaxWorkers bounds concurrent chapter generations. Zero uses the CPU count.
	MaxWorkers int `json:"max_workers" yaml:"max_workers" mapstructure:"max_workers" validate:"gte=0"`

	// DelayMin and DelayMax bound the random pause before each submission.
	DelayMin time.Duration `json:"delay_min" yaml:"delay_min" mapstructure:"delay_min" validate:"gte=0"`
	DelayMax time.Duration `json:"delay_max" yaml:"delay_max" mapstructure:"delay_max" validate:"gte=0,gtefield=DelayMin"`

	// MaxRetries is the number of retries after the first attempt (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`

	// RetryDelay is the base of the exponential backoff (default 1s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay" validate:"gte=0"`
}

// LoggingConfig holds plain logging options.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`

	// File, when set, receives a copy of every log line.
	File string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
}

// LedgerConfig controls the SQLite run ledger.
type LedgerConfig struct {
	// Enabled records every run and chapter in the ledger.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Dir holds the ledger database (default ".course-engine").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// CourseConfig groups everything a generate run needs.
type CourseConfig struct {
	// Title names the course and its output directory.
	Title string `json:"title" yaml:"title" validate:"required"`

	// InputPath and InputText are the two forms of source content; exactly
	// one is used (InputText wins when both are set).
	InputPath string `json:"input_path,omitempty" yaml:"input_path,omitempty"`
	InputText string `json:"-" yaml:"-"`

	// CustomPrompt is either literal instructions or a path to a file.
	CustomPrompt string `json:"custom_prompt,omitempty" yaml:"custom_prompt,omitempty"`

	// OutputDir is the root directory for generated files.
	OutputDir string `json:"output_dir" yaml:"output_dir" validate:"required"`

	LLM        LLMConfig        `json:"api" yaml:"api"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Parallel   ParallelConfig   `json:"parallel" yaml:"parallel"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger"`
}
