package api

type (
	// CreateFlowRequest contains parameters for defining a new flow
	CreateFlowRequest struct {
		Name   string `json:"name"`
		Source string `json:"source"`
	}

	// FlowsListResponse contains the stored flow definitions
	FlowsListResponse struct {
		Flows []*Flow `json:"flows"`
		Count int     `json:"count"`
	}

	// ExecuteFlowRequest contains parameters for running a stored flow
	ExecuteFlowRequest struct {
		Provider Provider `json:"provider"`
		Model    string   `json:"model,omitempty"`
		Input    string   `json:"input,omitempty"`
		Stream   bool     `json:"stream,omitempty"`
	}

	// ExecuteFlowResponse is returned when a flow execution finishes,
	// successfully or not
	ExecuteFlowResponse struct {
		Execution *FlowExecution `json:"execution"`
		Error     string         `json:"error,omitempty"`
	}

	// ValidateKeyRequest contains parameters for an API key check
	ValidateKeyRequest struct {
		Provider Provider `json:"provider"`
	}

	// ValidateKeyResponse reports whether a provider credential works
	ValidateKeyResponse struct {
		Provider Provider `json:"provider"`
		Valid    bool     `json:"valid"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
		Store   string `json:"store,omitempty"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)
