package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowchat/engine/pkg/api"
	"github.com/flowchat/engine/pkg/log"
	"github.com/flowchat/engine/pkg/provider"
)

type (
	// Observer receives a fresh execution snapshot after every state
	// transition, in chronological order, starting with the initial
	// all-pending snapshot. Snapshots are never mutated after delivery
	Observer func(*api.FlowExecution)

	// Params are the generation parameters applied to every step. An
	// empty Model defers to the provider client's configured default
	Params struct {
		Model       string
		Temperature float64
		MaxTokens   int
	}

	// Executor drives a parsed flow through a provider client one step
	// at a time, threading each step's output into the next step's
	// prompt. The client is borrowed, not owned; swapping it between
	// runs never redirects a run already in flight
	Executor struct {
		client provider.Client
		params Params
	}

	// Option adjusts a single Execute call
	Option func(*execOptions)

	execOptions struct {
		observer Observer
		onChunk  provider.StreamHandler
		flowID   api.FlowID
	}
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
)

// NewExecutor creates an executor bound to a provider client. Zero
// params are replaced with defaults
func NewExecutor(client provider.Client, params Params) *Executor {
	if params.Temperature == 0 {
		params.Temperature = DefaultTemperature
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = DefaultMaxTokens
	}
	return &Executor{
		client: client,
		params: params,
	}
}

// WithObserver registers a progress observer for one execution
func WithObserver(fn Observer) Option {
	return func(o *execOptions) {
		o.observer = fn
	}
}

// WithStreamHandler enables per-step streaming and delivers chunks to fn
func WithStreamHandler(fn provider.StreamHandler) Option {
	return func(o *execOptions) {
		o.onChunk = fn
	}
}

// WithFlowID stamps the execution with the stored flow it was run from
func WithFlowID(id api.FlowID) Option {
	return func(o *execOptions) {
		o.flowID = id
	}
}

// Execute runs every step of the flow in order, strictly sequentially.
// The first step failure marks the flow failed and propagates the
// provider's error unchanged; no remaining steps run. Validation
// failures surface before any snapshot is produced
func (e *Executor) Execute(
	ctx context.Context, flow *api.ParsedFlow, initialInput string,
	opts ...Option,
) (*api.FlowExecution, error) {
	if err := flow.Validate(); err != nil {
		return nil, err
	}

	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}

	// the client is captured once for the whole run
	client := e.client

	ex := api.NewFlowExecution(flow)
	if o.flowID != "" {
		ex = ex.SetFlowID(o.flowID)
	}
	o.notify(ex)

	slog.Info("Flow execution started",
		log.FlowID(ex.FlowID),
		log.ExecutionID(ex.ID),
		slog.Int("steps", len(ex.Steps)))

	previous := initialInput
	for i := range ex.Steps {
		ex = ex.SetCurrentStep(i).SetStep(i, ex.Steps[i].
			SetStatus(api.StepRunning).
			SetStartedAt(time.Now()))
		o.notify(ex)

		resp, err := client.Chat(ctx, e.stepRequest(
			ex.Steps[i].Step, previous, o.onChunk != nil,
		), o.onChunk)

		now := time.Now()
		if err != nil {
			ex = ex.SetStep(i, ex.Steps[i].
				SetStatus(api.StepFailed).
				SetError(err.Error()).
				SetCompletedAt(now)).
				SetStatus(api.FlowFailed).
				SetError(err.Error()).
				SetCompletedAt(now)
			o.notify(ex)

			slog.Error("Flow execution failed",
				log.ExecutionID(ex.ID),
				log.StepIndex(i),
				log.Error(err))
			return ex, err
		}

		ex = ex.SetStep(i, ex.Steps[i].
			SetStatus(api.StepCompleted).
			SetOutput(resp.Content).
			SetCompletedAt(now))
		o.notify(ex)
		previous = resp.Content
	}

	ex = ex.SetStatus(api.FlowCompleted).SetCompletedAt(time.Now())
	o.notify(ex)

	slog.Info("Flow execution completed",
		log.ExecutionID(ex.ID),
		log.Status(ex.Status))
	return ex, nil
}

// stepRequest builds the single-user-message request for one step,
// merging prior output into the prompt when the step consumes it
func (e *Executor) stepRequest(
	step api.FlowStep, previous string, stream bool,
) *api.ChatRequest {
	prompt := step.Instruction
	if step.UsesPreviousOutput {
		prompt = BuildPrompt(prompt, previous)
	}
	return &api.ChatRequest{
		Messages: []api.Message{
			{Role: api.RoleUser, Content: prompt},
		},
		Model:       e.params.Model,
		Temperature: e.params.Temperature,
		MaxTokens:   e.params.MaxTokens,
		Stream:      stream,
	}
}

func (o *execOptions) notify(ex *api.FlowExecution) {
	if o.observer != nil {
		o.observer(ex)
	}
}
