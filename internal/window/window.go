// Package window builds the bounded conversation context sent to a
// generation provider. Building is pure: it never touches storage.
package window

import (
	"github.com/elkhov/shopadvisor/internal/llm"
	"github.com/elkhov/shopadvisor/internal/store"
)

// Builder assembles a provider message list from stored history. All
// limits come from configuration; zero values fall back to safe defaults.
type Builder struct {
	// MaxTurns is how many recent history turns survive truncation.
	// Older turns are dropped first.
	MaxTurns int

	// MaxTurnChars caps each history turn's text, applied after the
	// turn-count truncation.
	MaxTurnChars int

	// MaxMessageChars caps the current inbound message's text.
	MaxMessageChars int
}

const (
	defaultMaxTurns        = 6
	defaultMaxTurnChars    = 500
	defaultMaxMessageChars = 1000
)

// Build assembles system prompt + recent history + current message into
// one chronological message list. recent is expected in most-recent-first
// order, exactly as the store returns it.
func (b Builder) Build(systemPrompt string, recent []store.Turn, userMessage string) []llm.Message {
	maxTurns := b.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	maxTurnChars := b.MaxTurnChars
	if maxTurnChars <= 0 {
		maxTurnChars = defaultMaxTurnChars
	}
	maxMessageChars := b.MaxMessageChars
	if maxMessageChars <= 0 {
		maxMessageChars = defaultMaxMessageChars
	}

	// Truncate by turn count first, then apply the character cap.
	if len(recent) > maxTurns {
		recent = recent[:maxTurns]
	}

	messages := make([]llm.Message, 0, len(recent)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})

	// recent is newest-first; walk backwards to restore chronology.
	for i := len(recent) - 1; i >= 0; i-- {
		role := recent[i].Role
		if role != store.RoleAssistant {
			role = store.RoleUser
		}
		messages = append(messages, llm.Message{
			Role:    role,
			Content: clip(recent[i].Text, maxTurnChars),
		})
	}

	messages = append(messages, llm.Message{
		Role:    store.RoleUser,
		Content: clip(userMessage, maxMessageChars),
	})

	return messages
}

// clip bounds s to max characters without splitting a UTF-8 sequence.
// History is mostly Russian text, so byte-based slicing would corrupt it.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
