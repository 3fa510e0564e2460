// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/course-engine/internal/httputil"
	"github.com/pdiddy/course-engine/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const claudeMaxTokens = 8192

// ClaudeClient calls the Anthropic Messages API.
type ClaudeClient struct {
	APIKey      string
	Model       string
	Temperature float64
	Client      *http.Client
}

// NewClaudeClient builds a client with its own http.Client.
func NewClaudeClient(cfg types.LLMConfig) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key is empty", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: anthropic model is empty", ErrInvalidConfig)
	}
	return &ClaudeClient{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Client:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Invoke renders the request and sends it as one user message. Throttled
// and 5xx responses are retried by httputil.DoWithRetry.
func (c *ClaudeClient) Invoke(ctx context.Context, req Request) (Response, error) {
	prompt, err := req.Render()
	if err != nil {
		return Response{}, err
	}

	bodyBytes, err := json.Marshal(claudeRequest{
		Model:       c.Model,
		MaxTokens:   claudeMaxTokens,
		Temperature: c.Temperature,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("x-api-key", c.APIKey)
	header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, http.MethodPost, claudeAPIURL, header, bodyBytes, 0)
	if err != nil {
		return Response{}, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Response{}, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Response{}, fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return Response{}, fmt.Errorf("decoding Claude response: %w", err)
	}
	if len(cResp.Content) == 0 {
		return Response{}, ErrEmptyResponse
	}

	var b strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return Response{Text: b.String()}, nil
}
