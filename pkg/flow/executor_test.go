package flow_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/flowchat/engine/pkg/api"
	"github.com/flowchat/engine/pkg/flow"
	"github.com/flowchat/engine/pkg/provider"
	"github.com/stretchr/testify/assert"
)

type stubClient struct {
	chat     func(*api.ChatRequest, provider.StreamHandler) (*api.ChatResponse, error)
	requests []*api.ChatRequest
}

func (c *stubClient) Chat(
	_ context.Context, req *api.ChatRequest, onChunk provider.StreamHandler,
) (*api.ChatResponse, error) {
	c.requests = append(c.requests, req)
	return c.chat(req, onChunk)
}

func (c *stubClient) ValidateAPIKey(context.Context) (bool, error) {
	return true, nil
}

func echoClient() *stubClient {
	return &stubClient{
		chat: func(
			req *api.ChatRequest, _ provider.StreamHandler,
		) (*api.ChatResponse, error) {
			return &api.ChatResponse{
				Content: "out: " + req.Messages[0].Content,
			}, nil
		},
	}
}

func mustParse(t *testing.T, source string) *api.ParsedFlow {
	t.Helper()
	res, err := flow.Parse(source)
	assert.NoError(t, err)
	return res
}

func TestExecuteSuccess(t *testing.T) {
	as := assert.New(t)

	client := echoClient()
	e := flow.NewExecutor(client, flow.Params{})
	parsed := mustParse(t, "First step\nSecond step\nThird step")

	ex, err := e.Execute(context.Background(), parsed, "seed")
	as.NoError(err)
	as.Equal(api.FlowCompleted, ex.Status)
	as.Equal(2, ex.CurrentStep)
	as.False(ex.CompletedAt.IsZero())
	for _, st := range ex.Steps {
		as.Equal(api.StepCompleted, st.Status)
		as.NotEmpty(st.Output)
	}
}

func TestExecuteOutputThreading(t *testing.T) {
	as := assert.New(t)

	client := echoClient()
	e := flow.NewExecutor(client, flow.Params{})
	parsed := mustParse(t, "Write a story\nSummarize it")

	ex, err := e.Execute(context.Background(), parsed, "")
	as.NoError(err)
	as.Len(client.requests, 2)

	// step 1 never consumes input; step 2 references, so the first
	// step's output is prepended
	as.Equal("Write a story", client.requests[0].Messages[0].Content)
	as.Equal(
		"Given this content:\n\nout: Write a story\n\nSummarize it",
		client.requests[1].Messages[0].Content,
	)
	as.Equal(ex.Steps[0].Output, "out: Write a story")
}

func TestExecuteInitialInput(t *testing.T) {
	as := assert.New(t)

	client := echoClient()
	e := flow.NewExecutor(client, flow.Params{})

	// a hand-built flow whose first step consumes the initial input
	parsed := &api.ParsedFlow{
		Steps: []api.FlowStep{{
			Order:       1,
			Instruction: "List 3 facts",
		}},
	}
	parsed.Steps[0].UsesPreviousOutput = false

	_, err := e.Execute(context.Background(), parsed, "ignored")
	as.NoError(err)
	as.Equal("List 3 facts", client.requests[0].Messages[0].Content)
}

func TestExecuteFailFast(t *testing.T) {
	as := assert.New(t)

	boom := errors.New("upstream exploded")
	calls := 0
	client := &stubClient{
		chat: func(
			req *api.ChatRequest, _ provider.StreamHandler,
		) (*api.ChatResponse, error) {
			calls++
			if calls == 2 {
				return nil, boom
			}
			return &api.ChatResponse{Content: "ok"}, nil
		},
	}
	e := flow.NewExecutor(client, flow.Params{})
	parsed := mustParse(t, "One\nTwo\nThree\nFour")

	ex, err := e.Execute(context.Background(), parsed, "")
	as.ErrorIs(err, boom)
	as.Equal(2, calls)
	as.Equal(api.FlowFailed, ex.Status)
	as.Equal(1, ex.CurrentStep)
	as.Equal(boom.Error(), ex.Error)
	as.False(ex.CompletedAt.IsZero())

	as.Equal(api.StepCompleted, ex.Steps[0].Status)
	as.Equal(api.StepFailed, ex.Steps[1].Status)
	as.Equal(boom.Error(), ex.Steps[1].Error)
	as.Equal(api.StepPending, ex.Steps[2].Status)
	as.Equal(api.StepPending, ex.Steps[3].Status)
}

func TestExecuteObserverSuccess(t *testing.T) {
	as := assert.New(t)

	e := flow.NewExecutor(echoClient(), flow.Params{})
	parsed := mustParse(t, "One\nTwo\nThree")

	var snaps []*api.FlowExecution
	_, err := e.Execute(context.Background(), parsed, "",
		flow.WithObserver(func(ex *api.FlowExecution) {
			snaps = append(snaps, ex)
		}))
	as.NoError(err)

	// initial, running+completed per step, final
	as.Len(snaps, 2*len(parsed.Steps)+2)
	as.Equal(api.FlowRunning, snaps[0].Status)
	as.Equal(api.StepPending, snaps[0].Steps[0].Status)
	as.Equal(api.StepRunning, snaps[1].Steps[0].Status)
	as.Equal(api.StepCompleted, snaps[2].Steps[0].Status)
	as.Equal(api.FlowCompleted, snaps[len(snaps)-1].Status)
}

func TestExecuteObserverFailure(t *testing.T) {
	as := assert.New(t)

	for _, failAt := range []int{0, 1, 2} {
		calls := 0
		client := &stubClient{
			chat: func(
				req *api.ChatRequest, _ provider.StreamHandler,
			) (*api.ChatResponse, error) {
				if calls == failAt {
					return nil, errors.New("nope")
				}
				calls++
				return &api.ChatResponse{Content: "ok"}, nil
			},
		}
		e := flow.NewExecutor(client, flow.Params{})
		parsed := mustParse(t, "One\nTwo\nThree")

		var snaps []*api.FlowExecution
		_, err := e.Execute(context.Background(), parsed, "",
			flow.WithObserver(func(ex *api.FlowExecution) {
				snaps = append(snaps, ex)
			}))
		as.Error(err)

		// step failure and flow failure land in a single snapshot
		as.Len(snaps, 1+2*(failAt+1), fmt.Sprintf("failAt=%d", failAt))
		last := snaps[len(snaps)-1]
		as.Equal(api.FlowFailed, last.Status)
		as.Equal(api.StepFailed, last.Steps[failAt].Status)
	}
}

func TestExecuteSnapshotsImmutable(t *testing.T) {
	as := assert.New(t)

	e := flow.NewExecutor(echoClient(), flow.Params{})
	parsed := mustParse(t, "One\nTwo")

	var snaps []*api.FlowExecution
	_, err := e.Execute(context.Background(), parsed, "",
		flow.WithObserver(func(ex *api.FlowExecution) {
			snaps = append(snaps, ex)
		}))
	as.NoError(err)

	// earlier snapshots keep the state they were delivered with
	as.Equal(api.StepPending, snaps[0].Steps[0].Status)
	as.Equal(api.StepRunning, snaps[1].Steps[0].Status)
	as.Empty(snaps[2].Steps[1].Output)
}

func TestExecuteStreaming(t *testing.T) {
	as := assert.New(t)

	client := &stubClient{
		chat: func(
			req *api.ChatRequest, onChunk provider.StreamHandler,
		) (*api.ChatResponse, error) {
			as.True(req.Stream)
			onChunk(api.StreamChunk{Content: "Hel"})
			onChunk(api.StreamChunk{Content: "lo"})
			onChunk(api.StreamChunk{Done: true})
			return &api.ChatResponse{Content: "Hello"}, nil
		},
	}
	e := flow.NewExecutor(client, flow.Params{})
	parsed := mustParse(t, "Say hello")

	var b strings.Builder
	ex, err := e.Execute(context.Background(), parsed, "",
		flow.WithStreamHandler(func(c api.StreamChunk) {
			b.WriteString(c.Content)
		}))
	as.NoError(err)
	as.Equal("Hello", b.String())
	as.Equal("Hello", ex.Steps[0].Output)
}

func TestExecuteNoStreamingByDefault(t *testing.T) {
	as := assert.New(t)

	client := &stubClient{
		chat: func(
			req *api.ChatRequest, onChunk provider.StreamHandler,
		) (*api.ChatResponse, error) {
			as.False(req.Stream)
			as.Nil(onChunk)
			return &api.ChatResponse{Content: "ok"}, nil
		},
	}
	e := flow.NewExecutor(client, flow.Params{})
	parsed := mustParse(t, "Do a thing")

	_, err := e.Execute(context.Background(), parsed, "")
	as.NoError(err)
}

func TestExecuteParams(t *testing.T) {
	as := assert.New(t)

	client := echoClient()
	e := flow.NewExecutor(client, flow.Params{
		Temperature: 0.2,
		MaxTokens:   64,
	})
	parsed := mustParse(t, "Do a thing")

	_, err := e.Execute(context.Background(), parsed, "")
	as.NoError(err)
	as.Equal(0.2, client.requests[0].Temperature)
	as.Equal(64, client.requests[0].MaxTokens)
	as.Equal(api.RoleUser, client.requests[0].Messages[0].Role)
}

func TestExecuteDefaultParams(t *testing.T) {
	as := assert.New(t)

	client := echoClient()
	e := flow.NewExecutor(client, flow.Params{})
	parsed := mustParse(t, "Do a thing")

	_, err := e.Execute(context.Background(), parsed, "")
	as.NoError(err)
	as.Equal(flow.DefaultTemperature, client.requests[0].Temperature)
	as.Equal(flow.DefaultMaxTokens, client.requests[0].MaxTokens)
}

func TestExecuteFlowID(t *testing.T) {
	as := assert.New(t)

	e := flow.NewExecutor(echoClient(), flow.Params{})
	parsed := mustParse(t, "Do a thing")

	ex, err := e.Execute(context.Background(), parsed, "",
		flow.WithFlowID("flow-123"))
	as.NoError(err)
	as.Equal(api.FlowID("flow-123"), ex.FlowID)
	as.NotEmpty(ex.ID)
}

func TestExecuteInvalidFlow(t *testing.T) {
	as := assert.New(t)

	e := flow.NewExecutor(echoClient(), flow.Params{})
	ex, err := e.Execute(context.Background(), &api.ParsedFlow{}, "")
	as.Nil(ex)
	as.ErrorIs(err, api.ErrNoSteps)
}
