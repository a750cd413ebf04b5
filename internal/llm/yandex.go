package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/elkhov/shopadvisor/internal/httpkit"
)

// DefaultYandexEndpoint is the public Foundation Models completion URL.
const DefaultYandexEndpoint = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"

// YandexGPTClient is a client for the Yandex Foundation Models completion API.
type YandexGPTClient struct {
	apiKey      string
	folderID    string
	model       string
	endpoint    string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *slog.Logger
}

// YandexGPTOptions configures a YandexGPTClient.
type YandexGPTOptions struct {
	APIKey      string
	FolderID    string
	Model       string // model name inside the folder, e.g. "yandexgpt"
	Endpoint    string // empty means DefaultYandexEndpoint
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewYandexGPTClient creates a Yandex GPT client. The timeout bounds each
// Generate call and is enforced here, not by callers.
func NewYandexGPTClient(opts YandexGPTOptions, logger *slog.Logger) *YandexGPTClient {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultYandexEndpoint
	}
	if opts.Model == "" {
		opts.Model = "yandexgpt"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	return &YandexGPTClient{
		apiKey:      opts.APIKey,
		folderID:    opts.FolderID,
		model:       opts.Model,
		endpoint:    opts.Endpoint,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		logger:      logger.With("provider", "yandexgpt"),
		httpClient:  httpkit.NewClient(httpkit.WithTimeout(opts.Timeout)),
	}
}

// Yandex wire types. The message list uses "text" where everyone else
// says "content", and the model is addressed by a gpt:// URI.

type yandexRequest struct {
	ModelURI          string                  `json:"modelUri"`
	CompletionOptions yandexCompletionOptions `json:"completionOptions"`
	Messages          []yandexMessage         `json:"messages"`
}

type yandexCompletionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type yandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type yandexResponse struct {
	Result struct {
		Alternatives []struct {
			Message yandexMessage `json:"message"`
			Status  string        `json:"status"`
		} `json:"alternatives"`
		ModelVersion string `json:"modelVersion"`
	} `json:"result"`
}

// Name identifies the provider in logs.
func (c *YandexGPTClient) Name() string { return "yandexgpt" }

// Generate sends one completion request with the given window.
func (c *YandexGPTClient) Generate(ctx context.Context, messages []Message) (*Reply, error) {
	req := yandexRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s/latest", c.folderID, c.model),
		CompletionOptions: yandexCompletionOptions{
			Stream:      false,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		},
		Messages: convertToYandex(messages),
	}

	resp, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Result.Alternatives) == 0 {
		return nil, &ProviderError{
			Provider: c.Name(),
			Kind:     KindEmptyResponse,
			Detail:   "response contained no alternatives",
		}
	}

	c.logger.Debug("response received",
		"model_version", resp.Result.ModelVersion,
		"status", resp.Result.Alternatives[0].Status,
	)

	return normalizeReply(c.Name(), resp.Result.Alternatives[0].Message.Text)
}

// Ping verifies the API key and folder with a one-token probe.
func (c *YandexGPTClient) Ping(ctx context.Context) error {
	req := yandexRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s/latest", c.folderID, c.model),
		CompletionOptions: yandexCompletionOptions{
			Temperature: 0,
			MaxTokens:   1,
		},
		Messages: []yandexMessage{{Role: "user", Text: "ping"}},
	}

	_, err := c.call(ctx, req)
	return err
}

func (c *YandexGPTClient) call(ctx context.Context, req yandexRequest) (*yandexResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Kind: KindBadRequest, Detail: "marshal request: " + err.Error()}
	}

	c.logger.Debug("sending request", "messages", len(req.Messages), "model_uri", req.ModelURI)
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Kind: KindBadRequest, Detail: "create request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Api-Key "+c.apiKey)

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

	var resp yandexResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Kind: KindMalformed, Detail: "decode response: " + err.Error()}
	}
	return &resp, nil
}

// convertToYandex renames the content field; roles carry over unchanged
// (Yandex accepts system, user, and assistant).
func convertToYandex(messages []Message) []yandexMessage {
	result := make([]yandexMessage, len(messages))
	for i, m := range messages {
		result[i] = yandexMessage{Role: m.Role, Text: m.Content}
	}
	return result
}
