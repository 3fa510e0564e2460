// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm defines the language-model capability consumed by course
// generation and the provider clients that implement it.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/pdiddy/course-engine/pkg/types"
)

var (
	// ErrEmptyResponse is returned when the provider answers without text.
	ErrEmptyResponse = errors.New("language model returned no text")

	// ErrRateLimited is returned when the provider keeps answering 429.
	ErrRateLimited = errors.New("language model rate limit exceeded")

	// ErrInvalidConfig is returned when a client cannot be built from the snapshot.
	ErrInvalidConfig = errors.New("invalid language model configuration")

	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown language model provider")
)

const defaultTimeout = 120 * time.Second

// DefaultModels maps each provider to the model used when none is configured.
var DefaultModels = map[types.Provider]string{
	types.ProviderGemini:    "gemini-2.5-flash",
	types.ProviderAnthropic: "claude-sonnet-4-5-20250929",
}

// Request is one prompt: a named template and the variables it is
// rendered with. Clients render it; fakes can inspect Vars directly.
type Request struct {
	Name     string
	Template *template.Template
	Vars     map[string]string
}

// Render executes the template with Vars.
func (r Request) Render() (string, error) {
	if r.Template == nil {
		return "", fmt.Errorf("request %q has no template", r.Name)
	}
	var buf bytes.Buffer
	if err := r.Template.Execute(&buf, r.Vars); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", r.Name, err)
	}
	return buf.String(), nil
}

// Response holds the generated text.
type Response struct {
	Text string
}

// Client generates text for a prompt. Implementations must be safe to call
// repeatedly with the same request.
type Client interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Factory builds a client from a config snapshot. Workers call it to get a
// client of their own.
type Factory func(ctx context.Context, cfg types.LLMConfig) (Client, error)

// New is the production Factory. It dispatches on cfg.Provider.
func New(ctx context.Context, cfg types.LLMConfig) (Client, error) {
	if cfg.Provider == "" {
		cfg.Provider = types.ProviderGemini
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels[cfg.Provider]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	switch cfg.Provider {
	case types.ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	case types.ProviderAnthropic:
		return NewClaudeClient(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
