package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a provider failure. Every backend-specific error shape
// is collapsed into one of these before it leaves the adapter.
type Kind int

const (
	// KindUnauthorized means the credential was rejected.
	KindUnauthorized Kind = iota

	// KindForbidden means the credential is valid but lacks permission
	// or scope (for Yandex: wrong folder, service not enabled).
	KindForbidden

	// KindBadRequest means the outgoing payload was malformed. Should not
	// occur in correct operation; surfaced for diagnostics.
	KindBadRequest

	// KindServerFault is a backend-side failure (5xx-class).
	KindServerFault

	// KindTimeout means no response arrived within the adapter's deadline.
	KindTimeout

	// KindEmptyResponse means the backend answered but produced no usable text.
	KindEmptyResponse

	// KindMalformed means the response body could not be parsed into the
	// expected shape.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindServerFault:
		return "server_fault"
	case KindTimeout:
		return "timeout"
	case KindEmptyResponse:
		return "empty_response"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ProviderError is the normalized failure shape for all providers.
// Detail is a diagnostic string for logs, never shown to end users.
type ProviderError struct {
	Provider string
	Kind     Kind
	Detail   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Detail)
}

// AsProviderError extracts a *ProviderError from err, if present.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// kindFromStatus maps an HTTP status code to an error kind. Unexpected
// 4xx codes (404, 429, ...) count as bad requests from our side.
func kindFromStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized:
		return KindUnauthorized
	case code == http.StatusForbidden:
		return KindForbidden
	case code >= 500:
		return KindServerFault
	default:
		return KindBadRequest
	}
}

// statusError builds the ProviderError for a non-200 response, capping
// the diagnostic body so logs stay readable.
func statusError(provider string, code int, body string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     kindFromStatus(code),
		Detail:   fmt.Sprintf("HTTP %d: %s", code, strings.TrimSpace(body)),
	}
}

// transportError normalizes a failed round trip. Deadline expiry (either
// the client timeout or the caller's context) becomes KindTimeout; every
// other transport-level failure is treated as a backend fault.
func transportError(provider string, err error) *ProviderError {
	kind := KindServerFault
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &ProviderError{Provider: provider, Kind: kind, Detail: err.Error()}
}

// normalizeReply guarantees a non-empty reply text. An empty or
// whitespace-only payload becomes KindEmptyResponse.
func normalizeReply(provider, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ProviderError{
			Provider: provider,
			Kind:     KindEmptyResponse,
			Detail:   "backend returned no usable text",
		}
	}
	return &Reply{Text: text}, nil
}
