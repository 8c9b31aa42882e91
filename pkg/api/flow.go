package api

import (
	"errors"
	"fmt"
	"time"
)

type (
	// FlowID is a unique identifier for a stored flow definition
	FlowID string

	// ExecutionID is a unique identifier for one run of a flow
	ExecutionID string

	// FlowStep is one instruction within a flow. Immutable after parse
	FlowStep struct {
		Instruction        string `json:"instruction"`
		Order              int    `json:"order"`
		UsesPreviousOutput bool   `json:"uses_previous_output"`
	}

	// ParsedFlow is an ordered sequence of steps plus the raw source text
	// it was parsed from
	ParsedFlow struct {
		Source string     `json:"source"`
		Steps  []FlowStep `json:"steps"`
	}

	// Flow is a stored flow definition
	Flow struct {
		CreatedAt time.Time  `json:"created_at"`
		ID        FlowID     `json:"id"`
		Name      string     `json:"name"`
		Source    string     `json:"source"`
		Steps     []FlowStep `json:"steps"`
	}
)

var (
	ErrNoSteps          = errors.New("flow has no steps")
	ErrEmptyInstruction = errors.New("step instruction empty")
	ErrStepOrder        = errors.New("step orders must run 1..N")
	ErrFirstStepChained = errors.New(
		"first step cannot use previous output",
	)
)

// Validate checks the structural invariants of a parsed flow: at least one
// step, contiguous 1..N orders, non-empty instructions, and a first step
// that does not consume prior output
func (f *ParsedFlow) Validate() error {
	if len(f.Steps) == 0 {
		return ErrNoSteps
	}
	for i, step := range f.Steps {
		if step.Order != i+1 {
			return fmt.Errorf("%w: step %d has order %d",
				ErrStepOrder, i+1, step.Order)
		}
		if step.Instruction == "" {
			return fmt.Errorf("%w: step %d", ErrEmptyInstruction, i+1)
		}
	}
	if f.Steps[0].UsesPreviousOutput {
		return ErrFirstStepChained
	}
	return nil
}

// IsValidationError reports whether an error belongs to the flow
// validation family, raised before any execution begins
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoSteps) ||
		errors.Is(err, ErrEmptyInstruction) ||
		errors.Is(err, ErrStepOrder) ||
		errors.Is(err, ErrFirstStepChained)
}

// Parsed returns the flow definition as a ParsedFlow ready for execution
func (f *Flow) Parsed() *ParsedFlow {
	return &ParsedFlow{
		Source: f.Source,
		Steps:  f.Steps,
	}
}
