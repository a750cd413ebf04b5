package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestOpenAIClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOpenAIClient(OpenAIOptions{
		APIKey:    "sk-test",
		Model:     "gpt-4o-mini",
		Endpoint:  srv.URL,
		MaxTokens: 500,
		Timeout:   5 * time.Second,
	}, nil)
}

func TestOpenAIGenerate(t *testing.T) {
	var gotReq openaiRequest
	var gotAuth string

	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Рекомендую ноутбук для работы."}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 12},
		})
	})

	reply, err := client.Generate(context.Background(), []Message{
		{Role: "system", Content: "Ты - консультант."},
		{Role: "user", Content: "Посоветуй ноутбук"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if reply.Text != "Рекомендую ноутбук для работы." {
		t.Errorf("reply = %q", reply.Text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestOpenAIGenerateUnauthorized(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "Incorrect API key"}}`, http.StatusUnauthorized)
	})

	_, err := client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	pe, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Kind != KindUnauthorized {
		t.Errorf("kind = %s, want unauthorized", pe.Kind)
	}
}

func TestOpenAIGenerateNoChoices(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	pe, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Kind != KindEmptyResponse {
		t.Errorf("kind = %s, want empty_response", pe.Kind)
	}
}

func TestOpenAIPingTreatsEmptyProbeAsSuccess(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		// A max_tokens=1 probe can legitimately produce no text.
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": ""}, "finish_reason": "length"},
			},
		})
	})

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestOpenAIClientImplementsInterface(t *testing.T) {
	var _ Client = (*OpenAIClient)(nil)
}
