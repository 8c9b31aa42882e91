// Package provider implements the chat-completion clients for the two
// supported LLM backends behind a single capability interface
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/flowchat/engine/pkg/api"
)

type (
	// StreamHandler receives incremental response chunks in arrival
	// order. The final invocation has Done set and carries no content
	// guarantee
	StreamHandler func(api.StreamChunk)

	// Client is the capability surface of a chat-completion backend. A
	// client is safe to share; calls in flight keep the client they were
	// issued against even if the caller swaps clients between runs
	Client interface {
		// Chat runs one completion. When onChunk is non-nil and the
		// request asks for streaming, chunks are delivered as they
		// arrive and the returned response carries the accumulated
		// content with zero-filled usage counts
		Chat(
			ctx context.Context, req *api.ChatRequest, onChunk StreamHandler,
		) (*api.ChatResponse, error)

		// ValidateAPIKey performs a minimal request to check the
		// configured credential. It never mutates client state
		ValidateAPIKey(ctx context.Context) (bool, error)
	}

	// Config carries the settings shared by both backends
	Config struct {
		APIKey  string
		BaseURL string
		Model   string

		// Version is the wire protocol version header; only the
		// Anthropic backend uses it
		Version string

		// HTTPClient overrides the transport; nil gets a client with
		// DefaultTimeout
		HTTPClient *http.Client
	}

	// Error describes a provider failure with enough context for a user
	// to act on without further lookup
	Error struct {
		err        error
		Message    string
		Provider   api.Provider
		StatusCode int
	}
)

const DefaultTimeout = 120 * time.Second

var (
	ErrCredentialMissing = errors.New("api key not configured")
	ErrUpstreamRequest   = errors.New("provider request failed")
	ErrStreamUnreadable  = errors.New("provider response not readable")
	ErrTransport         = errors.New("provider transport failure")
	ErrUnknownProvider   = errors.New("unknown provider")
)

// New constructs the client for one of the two supported backends
func New(id api.Provider, cfg Config) (Client, error) {
	switch id {
	case api.ProviderAnthropic:
		return NewAnthropic(cfg), nil
	case api.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)",
			e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

func newCredentialError(p api.Provider) error {
	return &Error{
		err:      ErrCredentialMissing,
		Message:  ErrCredentialMissing.Error(),
		Provider: p,
	}
}

func newUpstreamError(p api.Provider, status int, body []byte) error {
	return &Error{
		err:        ErrUpstreamRequest,
		Message:    upstreamMessage(status, body),
		Provider:   p,
		StatusCode: status,
	}
}

func newTransportError(p api.Provider, err error) error {
	return &Error{
		err:      ErrTransport,
		Message:  err.Error(),
		Provider: p,
	}
}

func newStreamError(p api.Provider) error {
	return &Error{
		err:      ErrStreamUnreadable,
		Message:  ErrStreamUnreadable.Error(),
		Provider: p,
	}
}

// upstreamMessage extracts a displayable message from an error body.
// Both backends nest it under error.message; anything else falls back to
// the raw body or the HTTP status text
func upstreamMessage(status int, body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return trimmed
	}
	return http.StatusText(status)
}

func httpClientFor(cfg Config) *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}
