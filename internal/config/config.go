// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config assembles a types.CourseConfig from defaults, a YAML file,
// COURSE_ENGINE_* environment variables and command-line flags, then
// validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pdiddy/course-engine/internal/ledger"
	"github.com/pdiddy/course-engine/internal/llm"
	"github.com/pdiddy/course-engine/pkg/types"
)

const (
	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "COURSE_ENGINE"

	// FileName is the config file name searched for without extension.
	FileName = "course-engine"
)

// Keys bound to command-line flags.
const (
	KeyProvider          = "api.provider"
	KeyModel             = "api.model_name"
	KeyAPIKey            = "api.api_key"
	KeyGoogleAPIKey      = "api.google_api_key"
	KeyTimeout           = "api.timeout"
	KeyInputPath         = "input.path"
	KeyInputText         = "input.text"
	KeyOutputDir         = "output.directory"
	KeyTitle             = "course.title"
	KeyCustomPrompt      = "course.custom_prompt"
	KeyTemperature       = "generation.temperature"
	KeyMaxChapters       = "generation.max_chapters"
	KeyFixedChapterCount = "generation.fixed_chapter_count"
	KeyMode              = "generation.mode"
	KeyParallel          = "parallel.enabled"
	KeyMaxWorkers        = "parallel.max_workers"
	KeyDelayMin          = "parallel.delay_min"
	KeyDelayMax          = "parallel.delay_max"
	KeyMaxRetries        = "parallel.max_retries"
	KeyRetryDelay        = "parallel.retry_delay"
	KeyLogLevel          = "logging.level"
	KeyLogFormat         = "logging.format"
	KeyLogFile           = "logging.file"
	KeyLedgerEnabled     = "ledger.enabled"
	KeyLedgerDir         = "ledger.dir"
)

var validate = validator.New()

// SetDefaults registers every default so environment overrides are seen
// for all keys.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyProvider, string(types.ProviderGemini))
	v.SetDefault(KeyModel, "")
	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeyGoogleAPIKey, "")
	v.SetDefault(KeyTimeout, "120s")
	v.SetDefault(KeyInputPath, "")
	v.SetDefault(KeyInputText, "")
	v.SetDefault(KeyOutputDir, "output")
	v.SetDefault(KeyTitle, "")
	v.SetDefault(KeyCustomPrompt, "")
	v.SetDefault(KeyTemperature, 0.0)
	v.SetDefault(KeyMaxChapters, 10)
	v.SetDefault(KeyFixedChapterCount, false)
	v.SetDefault(KeyMode, "")
	v.SetDefault(KeyParallel, false)
	v.SetDefault(KeyMaxWorkers, 0)
	v.SetDefault(KeyDelayMin, "100ms")
	v.SetDefault(KeyDelayMax, "500ms")
	v.SetDefault(KeyMaxRetries, 3)
	v.SetDefault(KeyRetryDelay, "1s")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLedgerEnabled, true)
	v.SetDefault(KeyLedgerDir, ledger.DefaultDir)
}

// Init points v at the config file and the environment. An explicit path
// must exist; otherwise ./course-engine.yaml and
// ~/.config/course-engine/course-engine.yaml are tried. It returns the file
// used, or "" when none was found.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load reads every key from v into a CourseConfig, applies derived
// defaults and validates the result. The API key is not resolved here.
func Load(v *viper.Viper) (types.CourseConfig, error) {
	var (
		cfg  types.CourseConfig
		errs []error
	)
	duration := func(key string) time.Duration {
		d, err := parseDuration(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	cfg.Title = strings.TrimSpace(v.GetString(KeyTitle))
	cfg.InputPath = v.GetString(KeyInputPath)
	cfg.InputText = v.GetString(KeyInputText)
	cfg.CustomPrompt = v.GetString(KeyCustomPrompt)
	cfg.OutputDir = v.GetString(KeyOutputDir)

	cfg.LLM = types.LLMConfig{
		Provider:    types.Provider(strings.ToLower(v.GetString(KeyProvider))),
		APIKey:      v.GetString(KeyAPIKey),
		Model:       v.GetString(KeyModel),
		Temperature: v.GetFloat64(KeyTemperature),
		Timeout:     duration(KeyTimeout),
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v.GetString(KeyGoogleAPIKey)
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = types.ProviderGemini
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = llm.DefaultModels[cfg.LLM.Provider]
	}

	cfg.Generation = types.GenerationConfig{
		Mode:              types.Mode(strings.ToLower(v.GetString(KeyMode))),
		MaxChapters:       v.GetInt(KeyMaxChapters),
		FixedChapterCount: v.GetBool(KeyFixedChapterCount),
	}

	cfg.Parallel = types.ParallelConfig{
		Enabled:    v.GetBool(KeyParallel),
		MaxWorkers: v.GetInt(KeyMaxWorkers),
		DelayMin:   duration(KeyDelayMin),
		DelayMax:   duration(KeyDelayMax),
		MaxRetries: v.GetInt(KeyMaxRetries),
		RetryDelay: duration(KeyRetryDelay),
	}
	if cfg.Generation.Mode == "" && cfg.Parallel.Enabled {
		cfg.Generation.Mode = types.ModeParallel
	}
	if cfg.Generation.Mode == types.ModeParallel {
		cfg.Parallel.Enabled = true
	}

	cfg.Logging = types.LoggingConfig{
		Level:  strings.ToLower(v.GetString(KeyLogLevel)),
		Format: strings.ToLower(v.GetString(KeyLogFormat)),
		File:   v.GetString(KeyLogFile),
	}
	cfg.Ledger = types.LedgerConfig{
		Enabled: v.GetBool(KeyLedgerEnabled),
		Dir:     v.GetString(KeyLedgerDir),
	}

	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks struct tags and the input rule.
func Validate(cfg types.CourseConfig) error {
	var errs []error
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	if cfg.InputPath == "" && cfg.InputText == "" {
		errs = append(errs, errors.New("an input path or input text is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// parseDuration accepts Go duration strings and plain numbers of seconds,
// so "1.5", "1.5s" and "1500ms" are equivalent.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	d, err := time.ParseDuration(s + "s")
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
