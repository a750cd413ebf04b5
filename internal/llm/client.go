// Package llm provides generation provider clients. Each backend's wire
// format, auth scheme, and status-code semantics stay inside its adapter;
// callers only ever see a Reply or a typed ProviderError.
package llm

import (
	"context"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message is one role-tagged entry in the conversation window sent to a
// provider. Role is "system", "user", or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the normalized successful outcome of a generation call.
// Text is never empty; an empty backend payload is reported as a
// ProviderError of kind KindEmptyResponse instead.
type Reply struct {
	Text string
}

// Client is the interface every generation provider implements.
type Client interface {
	// Generate sends one request with the given conversation window and
	// returns the normalized reply. The adapter enforces its own call
	// timeout and never retries. Failures are *ProviderError.
	Generate(ctx context.Context, messages []Message) (*Reply, error)

	// Ping checks whether the provider is reachable and the credentials
	// are accepted, using a minimal probe request.
	Ping(ctx context.Context) error

	// Name identifies the provider in logs and diagnostics.
	Name() string
}
