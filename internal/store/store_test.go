package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/flowchat/engine/internal/store"
	"github.com/flowchat/engine/pkg/api"
)

func newRedisStore(t *testing.T) store.FlowStore {
	t.Helper()
	server := miniredis.RunT(t)
	s := store.NewRedisStore(&store.Options{
		Addr:   server.Addr(),
		Prefix: "test",
	})
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func eachStore(t *testing.T, fn func(*testing.T, store.FlowStore)) {
	t.Run("redis", func(t *testing.T) {
		fn(t, newRedisStore(t))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemoryStore())
	})
}

func sampleFlow(name string) *api.Flow {
	return &api.Flow{
		Name:   name,
		Source: "First step\nSecond step",
		Steps: []api.FlowStep{
			{Order: 1, Instruction: "First step"},
			{Order: 2, Instruction: "Second step",
				UsesPreviousOutput: true},
		},
	}
}

func TestSaveAssignsIdentity(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.FlowStore) {
		as := assert.New(t)
		ctx := context.Background()

		flow := sampleFlow("summarizer")
		as.NoError(s.Save(ctx, flow))
		as.NotEmpty(flow.ID)
		as.False(flow.CreatedAt.IsZero())
	})
}

func TestSaveAndGet(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.FlowStore) {
		as := assert.New(t)
		ctx := context.Background()

		flow := sampleFlow("summarizer")
		as.NoError(s.Save(ctx, flow))

		got, err := s.Get(ctx, flow.ID)
		as.NoError(err)
		as.Equal(flow.ID, got.ID)
		as.Equal("summarizer", got.Name)
		as.Len(got.Steps, 2)
		as.True(got.Steps[1].UsesPreviousOutput)
	})
}

func TestSavePreservesExplicitID(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.FlowStore) {
		as := assert.New(t)
		ctx := context.Background()

		flow := sampleFlow("pinned")
		flow.ID = "flow-pinned"
		flow.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		as.NoError(s.Save(ctx, flow))

		got, err := s.Get(ctx, "flow-pinned")
		as.NoError(err)
		as.Equal(flow.CreatedAt.Unix(), got.CreatedAt.Unix())
	})
}

func TestGetMissing(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.FlowStore) {
		as := assert.New(t)

		got, err := s.Get(context.Background(), "missing")
		as.Nil(got)
		as.ErrorIs(err, store.ErrFlowNotFound)
	})
}

func TestList(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.FlowStore) {
		as := assert.New(t)
		ctx := context.Background()

		as.NoError(s.Save(ctx, sampleFlow("one")))
		as.NoError(s.Save(ctx, sampleFlow("two")))

		flows, err := s.List(ctx)
		as.NoError(err)
		as.Len(flows, 2)

		names := map[string]bool{}
		for _, f := range flows {
			names[f.Name] = true
		}
		as.True(names["one"])
		as.True(names["two"])
	})
}

func TestListEmpty(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.FlowStore) {
		as := assert.New(t)

		flows, err := s.List(context.Background())
		as.NoError(err)
		as.Empty(flows)
	})
}

func TestDelete(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.FlowStore) {
		as := assert.New(t)
		ctx := context.Background()

		flow := sampleFlow("ephemeral")
		as.NoError(s.Save(ctx, flow))
		as.NoError(s.Delete(ctx, flow.ID))

		_, err := s.Get(ctx, flow.ID)
		as.ErrorIs(err, store.ErrFlowNotFound)

		flows, err := s.List(ctx)
		as.NoError(err)
		as.Empty(flows)
	})
}

func TestDeleteMissing(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.FlowStore) {
		as := assert.New(t)

		err := s.Delete(context.Background(), "missing")
		as.ErrorIs(err, store.ErrFlowNotFound)
	})
}

func TestPing(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.FlowStore) {
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func TestMemoryStoreNoAliasing(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()

	s := store.NewMemoryStore()
	flow := sampleFlow("guarded")
	as.NoError(s.Save(ctx, flow))

	flow.Name = "mutated"
	flow.Steps[0].Instruction = "mutated"

	got, err := s.Get(ctx, flow.ID)
	as.NoError(err)
	as.Equal("guarded", got.Name)
	as.Equal("First step", got.Steps[0].Instruction)
}
