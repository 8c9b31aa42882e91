// Package server implements the HTTP API for the chat backend
//
// This package provides REST endpoints for chat completions, API key
// validation, flow management and execution, plus a WebSocket stream of
// execution events
package server
