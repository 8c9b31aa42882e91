package api

type (
	// Role identifies the author of a chat message
	Role string

	// Provider identifies one of the supported LLM backends
	Provider string

	// Message is a single chat message. Messages are immutable once sent
	Message struct {
		Role    Role   `json:"role"`
		Content string `json:"content"`
	}

	// ChatRequest carries an ordered conversation plus generation
	// parameters. A request is constructed fresh for every call and is
	// never reused
	ChatRequest struct {
		Messages    []Message `json:"messages"`
		Provider    Provider  `json:"provider,omitempty"`
		Model       string    `json:"model,omitempty"`
		Temperature float64   `json:"temperature,omitempty"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
		Stream      bool      `json:"stream,omitempty"`
	}

	// Usage reports token counts when the provider makes them available.
	// Counts are zero-filled when the provider does not report them,
	// which includes all streaming responses
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	}

	// ChatResponse is the final result of a chat completion. In streaming
	// mode the content is the accumulation of every delivered chunk
	ChatResponse struct {
		Content  string   `json:"content"`
		Provider Provider `json:"provider"`
		Model    string   `json:"model"`
		Usage    Usage    `json:"usage"`
	}

	// StreamChunk is one incremental piece of a streaming response. Done
	// is terminal and carries no content guarantee
	StreamChunk struct {
		Content string `json:"content"`
		Done    bool   `json:"done,omitempty"`
	}
)

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Valid returns true for one of the supported provider identifiers
func (p Provider) Valid() bool {
	return p == ProviderAnthropic || p == ProviderOpenAI
}
