// Package anthropic provides an LLM service adapter using the Anthropic API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
)

// Ensure LLMService implements the interfaces.
var (
	_ driven.LLMService   = (*LLMService)(nil)
	_ driven.CostReporter = (*LLMService)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 2048

	// DefaultRequestsPerMinute paces API calls below the account rate
	// limit so batch runs never trip 429s.
	DefaultRequestsPerMinute = 50

	anthropicVersion = "2023-06-01"
)

// modelPricing maps model names to USD per million input/output tokens,
// used for the running cost estimate. Unknown models report zero cost.
var modelPricing = map[string][2]float64{
	"claude-sonnet-4-20250514":   {3.0, 15.0},
	"claude-opus-4-20250514":     {15.0, 75.0},
	"claude-3-5-haiku-20241022":  {0.8, 4.0},
	"claude-3-5-sonnet-20241022": {3.0, 15.0},
}

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the model to use (default: claude-sonnet-4-20250514).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RequestsPerMinute caps the request rate (default: 50).
	RequestsPerMinute int
}

// LLMService provides LLM operations using the Anthropic Messages API.
// It paces requests with a client-side rate limiter and tracks token
// usage for cost reporting.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	limiter *rate.Limiter

	mu    sync.Mutex
	usage driven.TokenUsage
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model         string        `json:"model"`
	MaxTokens     int           `json:"max_tokens"`
	Messages      []chatMessage `json:"messages"`
	System        string        `json:"system,omitempty"`
	Temperature   *float64      `json:"temperature,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
}

// chatMessage is the Anthropic message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}

	return &LLMService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody := messagesRequest{
		Model:     s.model,
		MaxTokens: maxTokens,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		System: opts.System,
	}
	// Zero temperature is meaningful here, so always send it.
	reqBody.Temperature = &opts.Temperature
	if len(opts.StopWords) > 0 {
		reqBody.StopSequences = opts.StopWords
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/v1/messages",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %v: %w", err, domain.ErrLLMUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("anthropic: %w", domain.ErrRateLimited)
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("anthropic error (status %d): %w", resp.StatusCode, domain.ErrLLMUnavailable)
	case msgResp.Error != nil:
		return "", fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}

	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("anthropic: no content blocks returned")
	}

	s.recordUsage(msgResp.Usage.InputTokens, msgResp.Usage.OutputTokens)

	var text string
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// recordUsage accumulates token counts and the cost estimate.
func (s *LLMService) recordUsage(inputTokens, outputTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usage.Calls++
	s.usage.InputTokens += inputTokens
	s.usage.OutputTokens += outputTokens

	if pricing, ok := modelPricing[s.model]; ok {
		s.usage.EstimatedUSD += float64(inputTokens)/1e6*pricing[0] +
			float64(outputTokens)/1e6*pricing[1]
	}
}

// Usage returns cumulative token usage since the service was created.
func (s *LLMService) Usage() driven.TokenUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// ModelName returns the name of the model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /v1/models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("anthropic: failed to create ping request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("anthropic: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("anthropic: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
