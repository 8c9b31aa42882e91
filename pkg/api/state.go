package api

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type (
	// StepStatus represents the current state of a step execution
	StepStatus string

	// FlowStatus represents the current state of a flow execution
	FlowStatus string

	// StepExecution wraps one FlowStep with its execution outcome. It is
	// owned by exactly one FlowExecution and never shared across flows
	StepExecution struct {
		StartedAt   time.Time  `json:"started_at,omitzero"`
		CompletedAt time.Time  `json:"completed_at,omitzero"`
		Step        FlowStep   `json:"step"`
		Status      StepStatus `json:"status"`
		Output      string     `json:"output,omitempty"`
		Error       string     `json:"error,omitempty"`
	}

	// FlowExecution is the full state of one run of a flow. Snapshots are
	// produced fresh at every transition; observers never receive a
	// reference that is mutated later
	FlowExecution struct {
		StartedAt   time.Time        `json:"started_at"`
		CompletedAt time.Time        `json:"completed_at,omitzero"`
		ID          ExecutionID      `json:"id"`
		FlowID      FlowID           `json:"flow_id,omitempty"`
		Steps       []*StepExecution `json:"steps"`
		Status      FlowStatus       `json:"status"`
		CurrentStep int              `json:"current_step"`
		Error       string           `json:"error,omitempty"`
	}
)

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "error"
)

const (
	FlowRunning   FlowStatus = "running"
	FlowCompleted FlowStatus = "completed"
	FlowFailed    FlowStatus = "error"
)

// NewFlowExecution creates a running execution for the given flow with
// every step pending
func NewFlowExecution(flow *ParsedFlow) *FlowExecution {
	steps := make([]*StepExecution, len(flow.Steps))
	for i, step := range flow.Steps {
		steps[i] = &StepExecution{
			Step:   step,
			Status: StepPending,
		}
	}
	return &FlowExecution{
		ID:        ExecutionID(uuid.NewString()),
		Steps:     steps,
		Status:    FlowRunning,
		StartedAt: time.Now(),
	}
}

// Terminal returns true once a step has reached a state it cannot leave
func (st *StepExecution) Terminal() bool {
	return st.Status == StepCompleted || st.Status == StepFailed
}

// SetStatus returns a new StepExecution with the updated status
func (st *StepExecution) SetStatus(s StepStatus) *StepExecution {
	res := *st
	res.Status = s
	return &res
}

// SetOutput returns a new StepExecution with the output text set
func (st *StepExecution) SetOutput(output string) *StepExecution {
	res := *st
	res.Output = output
	return &res
}

// SetError returns a new StepExecution with the error message set
func (st *StepExecution) SetError(err string) *StepExecution {
	res := *st
	res.Error = err
	return &res
}

// SetStartedAt returns a new StepExecution with the start timestamp set
func (st *StepExecution) SetStartedAt(t time.Time) *StepExecution {
	res := *st
	res.StartedAt = t
	return &res
}

// SetCompletedAt returns a new StepExecution with completion time set
func (st *StepExecution) SetCompletedAt(t time.Time) *StepExecution {
	res := *st
	res.CompletedAt = t
	return &res
}

// SetFlowID returns a new FlowExecution bound to a stored flow definition
func (ex *FlowExecution) SetFlowID(id FlowID) *FlowExecution {
	res := *ex
	res.FlowID = id
	return &res
}

// SetStatus returns a new FlowExecution with the updated status
func (ex *FlowExecution) SetStatus(s FlowStatus) *FlowExecution {
	res := *ex
	res.Status = s
	return &res
}

// SetStep returns a new FlowExecution with the step at index i replaced
func (ex *FlowExecution) SetStep(i int, st *StepExecution) *FlowExecution {
	res := *ex
	res.Steps = slices.Clone(ex.Steps)
	res.Steps[i] = st
	return &res
}

// SetCurrentStep returns a new FlowExecution with the step cursor set
func (ex *FlowExecution) SetCurrentStep(i int) *FlowExecution {
	res := *ex
	res.CurrentStep = i
	return &res
}

// SetError returns a new FlowExecution with the error message set
func (ex *FlowExecution) SetError(err string) *FlowExecution {
	res := *ex
	res.Error = err
	return &res
}

// SetCompletedAt returns a new FlowExecution with completion time set
func (ex *FlowExecution) SetCompletedAt(t time.Time) *FlowExecution {
	res := *ex
	res.CompletedAt = t
	return &res
}

// Terminal returns true once the flow has completed or failed
func (ex *FlowExecution) Terminal() bool {
	return ex.Status == FlowCompleted || ex.Status == FlowFailed
}
