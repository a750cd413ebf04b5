// Package fallback implements the always-available canned responder used
// when no provider is configured or a provider call fails. It is pure
// and local: no I/O, no failure mode, never an empty answer.
package fallback

import "strings"

// Rule maps message keywords to one canned reply. A rule matches when
// any of its keywords occurs in the lowercased message.
type Rule struct {
	Keywords []string
	Reply    string
}

// Responder matches inbound text against a fixed rule table.
type Responder struct {
	rules   []Rule
	generic string
}

// New creates a responder. generic is returned when no rule matches and
// must be non-empty.
func New(rules []Rule, generic string) *Responder {
	return &Responder{rules: rules, generic: generic}
}

// Respond returns the first matching rule's reply, or the generic answer.
// Rules are checked in order, so more specific rules should come first.
func (r *Responder) Respond(message string) string {
	lower := strings.ToLower(message)

	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Reply
			}
		}
	}

	return r.generic
}
