// Package store persists flow definitions. The Redis store is the
// production backend; the in-memory store backs tests and single-node
// setups without external dependencies
package store

import (
	"context"
	"errors"

	"github.com/flowchat/engine/pkg/api"
)

type (
	// FlowStore persists flow definitions keyed by their generated ID
	FlowStore interface {
		// Save persists the flow, assigning an ID when it has none
		Save(ctx context.Context, flow *api.Flow) error

		// Get retrieves a flow by ID, or ErrFlowNotFound
		Get(ctx context.Context, id api.FlowID) (*api.Flow, error)

		// List returns all stored flows in unspecified order
		List(ctx context.Context) ([]*api.Flow, error)

		// Delete removes a flow by ID, or ErrFlowNotFound
		Delete(ctx context.Context, id api.FlowID) error

		// Ping reports whether the backing store is reachable
		Ping(ctx context.Context) error

		// Close releases store resources
		Close() error
	}
)

var ErrFlowNotFound = errors.New("flow not found")
