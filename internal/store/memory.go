package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowchat/engine/pkg/api"
)

// MemoryStore keeps flows in process memory. Stored flows are copied
// on the way in and out so callers can never alias store state
type MemoryStore struct {
	flows map[api.FlowID]*api.Flow
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory flow store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flows: map[api.FlowID]*api.Flow{},
	}
}

func (s *MemoryStore) Save(_ context.Context, flow *api.Flow) error {
	if flow.ID == "" {
		flow.ID = api.FlowID(uuid.NewString())
	}
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[flow.ID] = copyFlow(flow)
	return nil
}

func (s *MemoryStore) Get(
	_ context.Context, id api.FlowID,
) (*api.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow, ok := s.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	return copyFlow(flow), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*api.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*api.Flow, 0, len(s.flows))
	for _, flow := range s.flows {
		res = append(res, copyFlow(flow))
	}
	return res, nil
}

func (s *MemoryStore) Delete(_ context.Context, id api.FlowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[id]; !ok {
		return fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	delete(s.flows, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyFlow(flow *api.Flow) *api.Flow {
	res := *flow
	res.Steps = make([]api.FlowStep, len(flow.Steps))
	copy(res.Steps, flow.Steps)
	return &res
}
