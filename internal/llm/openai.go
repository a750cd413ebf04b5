package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/elkhov/shopadvisor/internal/httpkit"
)

// DefaultOpenAIEndpoint is the public chat completions URL. Any
// OpenAI-compatible server works when the endpoint is overridden.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIClient is a client for OpenAI-compatible chat completions APIs.
type OpenAIClient struct {
	apiKey      string
	model       string
	endpoint    string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *slog.Logger
}

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	APIKey      string
	Model       string
	Endpoint    string // empty means DefaultOpenAIEndpoint
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewOpenAIClient creates an OpenAI-compatible client. The timeout bounds
// each Generate call and is enforced here, not by callers.
func NewOpenAIClient(opts OpenAIOptions, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultOpenAIEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	return &OpenAIClient{
		apiKey:      opts.APIKey,
		model:       opts.Model,
		endpoint:    opts.Endpoint,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		logger:      logger.With("provider", "openai"),
		httpClient:  httpkit.NewClient(httpkit.WithTimeout(opts.Timeout)),
	}
}

type openaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Name identifies the provider in logs.
func (c *OpenAIClient) Name() string { return "openai" }

// Generate sends one chat completion request with the given window.
// The wire format already matches our Message shape, so no conversion
// is needed.
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message) (*Reply, error) {
	resp, err := c.call(ctx, openaiRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{
			Provider: c.Name(),
			Kind:     KindEmptyResponse,
			Detail:   "response contained no choices",
		}
	}

	if resp.Usage != nil {
		c.logger.Debug("response received",
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"finish_reason", resp.Choices[0].FinishReason,
		)
	}

	return normalizeReply(c.Name(), resp.Choices[0].Message.Content)
}

// Ping verifies the API key with a one-token probe.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	_, err := c.call(ctx, openaiRequest{
		Model:     c.model,
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		// A probe that comes back empty still proves reachability and auth.
		if pe, ok := AsProviderError(err); ok && pe.Kind == KindEmptyResponse {
			return nil
		}
		return err
	}
	return nil
}

func (c *OpenAIClient) call(ctx context.Context, req openaiRequest) (*openaiResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Kind: KindBadRequest, Detail: "marshal request: " + err.Error()}
	}

	c.logger.Debug("sending request", "messages", len(req.Messages), "model", req.Model)
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Kind: KindBadRequest, Detail: "create request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(c.Name(), err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 4096)
		c.logger.Error("API error", "status", httpResp.StatusCode, "body", errBody)
		return nil, statusError(c.Name(), httpResp.StatusCode, errBody)
	}

	var resp openaiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Kind: KindMalformed, Detail: "decode response: " + err.Error()}
	}
	return &resp, nil
}
