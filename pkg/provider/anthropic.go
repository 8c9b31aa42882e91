package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/flowchat/engine/pkg/api"
	"github.com/flowchat/engine/pkg/log"
)

type (
	// Anthropic is the client for the /v1/messages wire protocol
	Anthropic struct {
		httpClient *http.Client
		cfg        Config
	}

	anthropicRequest struct {
		Model       string        `json:"model"`
		System      string        `json:"system,omitempty"`
		Messages    []api.Message `json:"messages"`
		Temperature float64       `json:"temperature"`
		MaxTokens   int           `json:"max_tokens"`
		Stream      bool          `json:"stream,omitempty"`
	}

	anthropicResponse struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Model string `json:"model"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultAnthropicVersion = "2023-06-01"
	DefaultAnthropicModel   = "claude-3-5-sonnet-20241022"

	anthropicMessagesPath = "/v1/messages"
)

var _ Client = (*Anthropic)(nil)

// NewAnthropic creates an Anthropic client with defaults applied for any
// unset configuration values
func NewAnthropic(cfg Config) *Anthropic {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAnthropicBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultAnthropicVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	return &Anthropic{
		httpClient: httpClientFor(cfg),
		cfg:        cfg,
	}
}

// Chat runs one completion against /v1/messages
func (a *Anthropic) Chat(
	ctx context.Context, req *api.ChatRequest, onChunk StreamHandler,
) (*api.ChatResponse, error) {
	if a.cfg.APIKey == "" {
		return nil, newCredentialError(api.ProviderAnthropic)
	}

	model := req.Model
	if model == "" {
		model = a.cfg.Model
	}
	streaming := req.Stream && onChunk != nil

	// The protocol takes a single system prompt outside the conversation
	// array; only the first system message is honored
	system, messages := splitSystemMessages(req.Messages)

	body := &anthropicRequest{
		Model:       model,
		System:      system,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      streaming,
	}

	resp, err := a.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		slog.Error("Anthropic request failed",
			log.Provider(api.ProviderAnthropic),
			slog.Int("status_code", resp.StatusCode))
		return nil, newUpstreamError(
			api.ProviderAnthropic, resp.StatusCode, respBody,
		)
	}

	if streaming {
		if resp.Body == nil {
			return nil, newStreamError(api.ProviderAnthropic)
		}
		content, err := readEventStream(
			resp.Body, api.ProviderAnthropic, decodeAnthropicEvent, onChunk,
		)
		if err != nil {
			return nil, err
		}
		return &api.ChatResponse{
			Content:  content,
			Provider: api.ProviderAnthropic,
			Model:    model,
		}, nil
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, newTransportError(api.ProviderAnthropic, err)
	}

	res := &api.ChatResponse{
		Provider: api.ProviderAnthropic,
		Model:    decoded.Model,
		Usage: api.Usage{
			PromptTokens:     decoded.Usage.InputTokens,
			CompletionTokens: decoded.Usage.OutputTokens,
			TotalTokens: decoded.Usage.InputTokens +
				decoded.Usage.OutputTokens,
		},
	}
	if res.Model == "" {
		res.Model = model
	}
	for _, block := range decoded.Content {
		if block.Type == "text" {
			res.Content += block.Text
		}
	}
	return res, nil
}

// ValidateAPIKey sends a one-token probe message. A 400 response means
// the request was malformed but authenticated, so the key is considered
// valid; only auth failures invalidate it
func (a *Anthropic) ValidateAPIKey(ctx context.Context) (bool, error) {
	if a.cfg.APIKey == "" {
		return false, nil
	}

	probe := &anthropicRequest{
		Model:     a.cfg.Model,
		MaxTokens: 1,
		Messages: []api.Message{
			{Role: api.RoleUser, Content: "ping"},
		},
	}

	resp, err := a.post(ctx, probe)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, nil
	}
	return resp.StatusCode == http.StatusBadRequest, nil
}

func (a *Anthropic) post(
	ctx context.Context, body *anthropicRequest,
) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, newTransportError(api.ProviderAnthropic, err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		a.cfg.BaseURL+anthropicMessagesPath,
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, newTransportError(api.ProviderAnthropic, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", a.cfg.Version)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, newTransportError(api.ProviderAnthropic, err)
	}
	return resp, nil
}

// decodeAnthropicEvent handles the two event types that matter on this
// stream: content_block_delta carries incremental text and message_stop
// terminates with no content guarantee
func decodeAnthropicEvent(payload string) (string, bool) {
	switch gjson.Get(payload, "type").String() {
	case "content_block_delta":
		return gjson.Get(payload, "delta.text").String(), false
	case "message_stop":
		return "", true
	default:
		return "", false
	}
}

// splitSystemMessages pulls the first system message out for top-level
// placement, silently dropping any later ones
func splitSystemMessages(msgs []api.Message) (string, []api.Message) {
	var system string
	rest := make([]api.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == api.RoleSystem {
			if system == "" {
				system = m.Content
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
