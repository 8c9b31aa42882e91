// Package api defines the core data types shared across the engine
//
// This package contains the chat message and request/response model, flow
// definitions, execution state snapshots, execution events, and the HTTP
// message envelopes used by the server
package api
