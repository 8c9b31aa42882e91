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
	// OpenAI is the client for the /v1/chat/completions wire protocol
	OpenAI struct {
		httpClient *http.Client
		cfg        Config
	}

	openAIRequest struct {
		Model       string        `json:"model"`
		Messages    []api.Message `json:"messages"`
		Temperature float64       `json:"temperature"`
		MaxTokens   int           `json:"max_tokens"`
		Stream      bool          `json:"stream,omitempty"`
	}

	openAIResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultOpenAIModel   = "gpt-4o"

	openAICompletionsPath = "/v1/chat/completions"
	openAIModelsPath      = "/v1/models"

	// openAIDoneSentinel is a literal, unparsed terminal marker, not JSON
	openAIDoneSentinel = "[DONE]"
)

var _ Client = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI client with defaults applied for any unset
// configuration values
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	return &OpenAI{
		httpClient: httpClientFor(cfg),
		cfg:        cfg,
	}
}

// Chat runs one completion against /v1/chat/completions. System messages
// are legal inline members of the conversation array on this protocol
// and pass through unchanged
func (o *OpenAI) Chat(
	ctx context.Context, req *api.ChatRequest, onChunk StreamHandler,
) (*api.ChatResponse, error) {
	if o.cfg.APIKey == "" {
		return nil, newCredentialError(api.ProviderOpenAI)
	}

	model := req.Model
	if model == "" {
		model = o.cfg.Model
	}
	streaming := req.Stream && onChunk != nil

	body := &openAIRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      streaming,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, newTransportError(api.ProviderOpenAI, err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		o.cfg.BaseURL+openAICompletionsPath,
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, newTransportError(api.ProviderOpenAI, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, newTransportError(api.ProviderOpenAI, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		slog.Error("OpenAI request failed",
			log.Provider(api.ProviderOpenAI),
			slog.Int("status_code", resp.StatusCode))
		return nil, newUpstreamError(
			api.ProviderOpenAI, resp.StatusCode, respBody,
		)
	}

	if streaming {
		if resp.Body == nil {
			return nil, newStreamError(api.ProviderOpenAI)
		}
		content, err := readEventStream(
			resp.Body, api.ProviderOpenAI, decodeOpenAIEvent, onChunk,
		)
		if err != nil {
			return nil, err
		}
		return &api.ChatResponse{
			Content:  content,
			Provider: api.ProviderOpenAI,
			Model:    model,
		}, nil
	}

	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, newTransportError(api.ProviderOpenAI, err)
	}

	res := &api.ChatResponse{
		Provider: api.ProviderOpenAI,
		Model:    decoded.Model,
		Usage: api.Usage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			TotalTokens:      decoded.Usage.TotalTokens,
		},
	}
	if res.Model == "" {
		res.Model = model
	}
	if len(decoded.Choices) > 0 {
		res.Content = decoded.Choices[0].Message.Content
	}
	return res, nil
}

// ValidateAPIKey lists models, the cheapest authenticated call this
// protocol offers
func (o *OpenAI) ValidateAPIKey(ctx context.Context) (bool, error) {
	if o.cfg.APIKey == "" {
		return false, nil
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodGet, o.cfg.BaseURL+openAIModelsPath, nil,
	)
	if err != nil {
		return false, newTransportError(api.ProviderOpenAI, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return false, newTransportError(api.ProviderOpenAI, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func decodeOpenAIEvent(payload string) (string, bool) {
	if payload == openAIDoneSentinel {
		return "", true
	}
	return gjson.Get(payload, "choices.0.delta.content").String(), false
}
