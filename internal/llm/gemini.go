// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/pdiddy/course-engine/pkg/types"
)

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient builds a client from the snapshot. Each call creates an
// independent SDK client with its own HTTP client and timeout.
func NewGeminiClient(ctx context.Context, cfg types.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is empty", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: gemini model is empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating gemini client: %v", ErrInvalidConfig, err)
	}

	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
	}, nil
}

// Invoke renders the request and sends it as a single user turn.
func (g *GeminiClient) Invoke(ctx context.Context, req Request) (Response, error) {
	prompt, err := req.Render()
	if err != nil {
		return Response{}, err
	}

	temperature := g.temperature
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("calling gemini %s: %w", g.model, err)
	}

	text, err := responseText(resp)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: text}, nil
}

// responseText concatenates the text parts of the first candidate. A
// candidate with no text yields "" so callers decide what empty means.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: blocked by safety filters", ErrEmptyResponse)
	}
	if cand.Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
