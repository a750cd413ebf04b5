package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestYandexClient(t *testing.T, handler http.HandlerFunc) *YandexGPTClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewYandexGPTClient(YandexGPTOptions{
		APIKey:      "test-key",
		FolderID:    "b1gtest",
		Model:       "yandexgpt",
		Endpoint:    srv.URL,
		Temperature: 0.3,
		MaxTokens:   500,
		Timeout:     5 * time.Second,
	}, nil)
}

func TestYandexGenerate(t *testing.T) {
	var gotReq yandexRequest
	var gotAuth string

	client := newTestYandexClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"alternatives": []map[string]any{
					{"message": map[string]any{"role": "assistant", "text": "У нас есть смартфоны на любой бюджет."}, "status": "ALTERNATIVE_STATUS_FINAL"},
				},
				"modelVersion": "23.10.2024",
			},
		})
	})

	reply, err := client.Generate(context.Background(), []Message{
		{Role: "system", Content: "Ты - консультант."},
		{Role: "user", Content: "Какие есть смартфоны?"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if reply.Text != "У нас есть смартфоны на любой бюджет." {
		t.Errorf("reply = %q", reply.Text)
	}
	if gotAuth != "Api-Key test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.ModelURI != "gpt://b1gtest/yandexgpt/latest" {
		t.Errorf("modelUri = %q", gotReq.ModelURI)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
	// The wire format uses "text", not "content".
	if gotReq.Messages[1].Text != "Какие есть смартфоны?" {
		t.Errorf("message text = %q", gotReq.Messages[1].Text)
	}
	if gotReq.CompletionOptions.MaxTokens != 500 {
		t.Errorf("maxTokens = %d", gotReq.CompletionOptions.MaxTokens)
	}
}

func TestYandexGenerateStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindForbidden},
		{http.StatusBadRequest, KindBadRequest},
		{http.StatusInternalServerError, KindServerFault},
	}

	for _, tt := range tests {
		client := newTestYandexClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "backend says no", tt.status)
		})

		_, err := client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
		pe, ok := AsProviderError(err)
		if !ok {
			t.Fatalf("status %d: expected ProviderError, got %v", tt.status, err)
		}
		if pe.Kind != tt.want {
			t.Errorf("status %d: kind = %s, want %s", tt.status, pe.Kind, tt.want)
		}
		if pe.Provider != "yandexgpt" {
			t.Errorf("provider = %q", pe.Provider)
		}
	}
}

func TestYandexGenerateEmptyAlternatives(t *testing.T) {
	client := newTestYandexClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"alternatives": []any{}},
		})
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

func TestYandexGenerateBlankText(t *testing.T) {
	// HTTP 200 with a present but empty reply field normalizes to
	// empty_response, never to a blank Reply.
	client := newTestYandexClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"alternatives": []map[string]any{
					{"message": map[string]any{"role": "assistant", "text": ""}},
				},
			},
		})
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

func TestYandexGenerateMalformedBody(t *testing.T) {
	client := newTestYandexClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	})

	_, err := client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	pe, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Kind != KindMalformed {
		t.Errorf("kind = %s, want malformed", pe.Kind)
	}
}

func TestYandexGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	client := NewYandexGPTClient(YandexGPTOptions{
		APIKey:   "k",
		FolderID: "f",
		Endpoint: srv.URL,
		Timeout:  50 * time.Millisecond,
	}, nil)

	_, err := client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	pe, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Kind != KindTimeout {
		t.Errorf("kind = %s, want timeout", pe.Kind)
	}
}

func TestYandexClientImplementsInterface(t *testing.T) {
	var _ Client = (*YandexGPTClient)(nil)
}
