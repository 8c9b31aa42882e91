// Package engine identifies the FlowChat engine build
package engine

const (
	// Name is the service name reported in logs and health responses
	Name = "flowchat-engine"

	// Version is the engine release version
	Version = "0.3.0"
)
