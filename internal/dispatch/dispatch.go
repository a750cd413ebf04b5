// Package dispatch orchestrates one conversational exchange: load recent
// history, build the bounded context, call the configured provider (or
// the fallback responder), and persist the exchange. It is the only
// component that knows the whole read-generate-persist sequence.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/elkhov/shopadvisor/internal/fallback"
	"github.com/elkhov/shopadvisor/internal/llm"
	"github.com/elkhov/shopadvisor/internal/store"
	"github.com/elkhov/shopadvisor/internal/window"
)

// HistoryStore is the slice of the storage contract the dispatcher
// consumes. *store.Store satisfies it.
type HistoryStore interface {
	UpsertUser(id int64, username, firstName, lastName string) error
	Append(userID int64, role, text string) error
	Recent(userID int64, limit int) ([]store.Turn, error)
}

// UserMeta carries display-name fields from the transport. The dispatcher
// only passes them through to the user upsert.
type UserMeta struct {
	Username  string
	FirstName string
	LastName  string
}

// Dispatcher routes inbound messages to the resolved provider. All
// collaborators are injected once at construction; there is no global
// state and no runtime provider switching.
type Dispatcher struct {
	logger       *slog.Logger
	store        HistoryStore
	builder      window.Builder
	provider     llm.Client // nil means fallback-only operation
	fallback     *fallback.Responder
	systemPrompt string

	// userLocks serializes exchanges per user so concurrent messages
	// from one user cannot interleave their context windows.
	userLocks sync.Map // int64 → *sync.Mutex
}

// New creates a dispatcher. provider may be nil when no backend is
// configured; every message then goes to the fallback responder.
func New(logger *slog.Logger, st HistoryStore, builder window.Builder, provider llm.Client, fb *fallback.Responder, systemPrompt string) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:       logger,
		store:        st,
		builder:      builder,
		provider:     provider,
		fallback:     fb,
		systemPrompt: systemPrompt,
	}
}

// Handle processes one inbound message and returns the outbound text.
//
// The only error it returns is a history read failure before any
// provider call; the caller should ask the user to retry later. Provider
// failures never surface: they resolve to the fallback responder, and
// the fallback text is persisted as the assistant turn. Persistence
// failures after a successful generation are logged but do not change
// what the user sees.
func (d *Dispatcher) Handle(ctx context.Context, userID int64, meta UserMeta, text string) (string, error) {
	mu := d.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	// Create or refresh the user record. Best-effort: a failed upsert
	// does not block the exchange.
	if err := d.store.UpsertUser(userID, meta.Username, meta.FirstName, meta.LastName); err != nil {
		d.logger.Warn("user upsert failed", "user_id", userID, "error", err)
	}

	recent, err := d.store.Recent(userID, d.historyLimit())
	if err != nil {
		d.logger.Error("history read failed", "user_id", userID, "error", err)
		return "", fmt.Errorf("load history: %w", err)
	}

	replyText := d.generate(ctx, userID, recent, text)

	// Exactly one user turn and one assistant turn per exchange, in that
	// order. After a reply exists, persistence is best-effort: the user
	// keeps their answer even if the store is down. The assistant turn is
	// skipped when the user turn failed so the log never holds an answer
	// without its question.
	if err := d.store.Append(userID, store.RoleUser, text); err != nil {
		d.logger.Error("persist user turn failed", "user_id", userID, "error", err)
		return replyText, nil
	}
	if err := d.store.Append(userID, store.RoleAssistant, replyText); err != nil {
		d.logger.Error("persist assistant turn failed", "user_id", userID, "error", err)
	}

	return replyText, nil
}

// generate resolves the reply text: provider when configured, fallback
// on any provider failure. Always returns non-empty text.
func (d *Dispatcher) generate(ctx context.Context, userID int64, recent []store.Turn, text string) string {
	if d.provider == nil {
		d.logger.Debug("no provider configured, using fallback", "user_id", userID)
		return d.fallback.Respond(text)
	}

	messages := d.builder.Build(d.systemPrompt, recent, text)

	d.logger.Debug("calling provider",
		"provider", d.provider.Name(),
		"user_id", userID,
		"messages", len(messages),
	)

	reply, err := d.provider.Generate(ctx, messages)
	if err != nil {
		if pe, ok := llm.AsProviderError(err); ok {
			d.logger.Warn("provider call failed",
				"provider", pe.Provider,
				"kind", pe.Kind.String(),
				"detail", pe.Detail,
			)
		} else {
			d.logger.Warn("provider call failed", "error", err)
		}
		return d.fallback.Respond(text)
	}

	return reply.Text
}

func (d *Dispatcher) historyLimit() int {
	if d.builder.MaxTurns > 0 {
		return d.builder.MaxTurns
	}
	return 6
}

func (d *Dispatcher) userLock(userID int64) *sync.Mutex {
	mu, _ := d.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
