package api

type (
	// EventType discriminates execution events on the wire
	EventType string

	// ExecutionEvent is the envelope published for every execution state
	// transition and streamed to websocket subscribers
	ExecutionEvent struct {
		Execution *FlowExecution `json:"execution,omitempty"`
		Chunk     *StreamChunk   `json:"chunk,omitempty"`
		Type      EventType      `json:"type"`
		FlowID    FlowID         `json:"flow_id,omitempty"`
		Timestamp int64          `json:"timestamp"`
	}

	// SubscribeRequest is sent by websocket clients to narrow the event
	// stream to a single flow
	SubscribeRequest struct {
		Type   string `json:"type"`
		FlowID FlowID `json:"flow_id,omitempty"`
	}
)

const (
	EventTypeExecutionStarted   EventType = "execution_started"
	EventTypeExecutionCompleted EventType = "execution_completed"
	EventTypeExecutionFailed    EventType = "execution_failed"
	EventTypeStepStarted        EventType = "step_started"
	EventTypeStepCompleted      EventType = "step_completed"
	EventTypeStepChunk          EventType = "step_chunk"
)

// EventFor classifies an execution snapshot into the event type its
// transition represents. A failed snapshot always classifies as an
// execution failure since step and flow fail in the same transition
func EventFor(ex *FlowExecution) EventType {
	switch ex.Status {
	case FlowCompleted:
		return EventTypeExecutionCompleted
	case FlowFailed:
		return EventTypeExecutionFailed
	}
	step := ex.Steps[ex.CurrentStep]
	switch step.Status {
	case StepRunning:
		return EventTypeStepStarted
	case StepCompleted:
		return EventTypeStepCompleted
	}
	return EventTypeExecutionStarted
}
