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

// OllamaClient is a client for a local Ollama server's chat API.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *slog.Logger
}

// OllamaOptions configures an OllamaClient.
type OllamaOptions struct {
	BaseURL     string // empty means http://localhost:11434
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewOllamaClient creates an Ollama client. Local models can be slow to
// load, so the default timeout is more generous than the cloud adapters'.
func NewOllamaClient(opts OllamaOptions, logger *slog.Logger) *OllamaClient {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &OllamaClient{
		baseURL:     opts.BaseURL,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		logger:      logger.With("provider", "ollama"),
		httpClient:  httpkit.NewClient(httpkit.WithTimeout(opts.Timeout)),
	}
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Message   Message `json:"message"`
	Done      bool    `json:"done"`

	// Usage stats (when done=true)
	TotalDuration   int64 `json:"total_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
}

// Name identifies the provider in logs.
func (c *OllamaClient) Name() string { return "ollama" }

// Generate sends one non-streaming chat request to the local server.
func (c *OllamaClient) Generate(ctx context.Context, messages []Message) (*Reply, error) {
	req := ollamaRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Kind: KindBadRequest, Detail: "marshal request: " + err.Error()}
	}

	c.logger.Debug("sending request", "messages", len(messages), "model", c.model)
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Kind: KindBadRequest, Detail: "create request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var resp ollamaResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Kind: KindMalformed, Detail: "decode response: " + err.Error()}
	}

	c.logger.Debug("response received",
		"model", resp.Model,
		"prompt_eval_count", resp.PromptEvalCount,
		"eval_count", resp.EvalCount,
	)

	return normalizeReply(c.Name(), resp.Message.Content)
}

// Ping checks if the Ollama server is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return &ProviderError{Provider: c.Name(), Kind: KindBadRequest, Detail: "create request: " + err.Error()}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return transportError(c.Name(), err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return statusError(c.Name(), httpResp.StatusCode, httpkit.ReadErrorBody(httpResp.Body, 4096))
	}
	return nil
}
