package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowchat/engine/pkg/api"
	"github.com/flowchat/engine/pkg/log"
	"github.com/flowchat/engine/pkg/provider"
)

var (
	ErrInvalidJSON     = errors.New("invalid JSON request")
	ErrNoMessages      = errors.New("request has no messages")
	ErrMissingProvider = errors.New("provider is required")
	ErrValidateKey     = errors.New("failed to validate API key")
)

func (s *Server) handleChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	client, ok := s.bindClient(c, req.Provider)
	if !ok {
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  ErrNoMessages.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	if req.Stream {
		s.streamChat(c, client, &req)
		return
	}

	resp, err := client.Chat(c.Request.Context(), &req, nil)
	if err != nil {
		s.forwardProviderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// streamChat relays provider chunks to the client as server-sent
// events. Once the first chunk is written the response is committed, so
// later failures can only end the stream early
func (s *Server) streamChat(
	c *gin.Context, client provider.Client, req *api.ChatRequest,
) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	wrote := false
	_, err := client.Chat(c.Request.Context(), req,
		func(chunk api.StreamChunk) {
			data, err := json.Marshal(chunk)
			if err != nil {
				return
			}
			_, _ = fmt.Fprintf(c.Writer, "data: %s\n\n", data)
			c.Writer.Flush()
			wrote = true
		})
	if err != nil {
		if !wrote {
			s.forwardProviderError(c, err)
			return
		}
		slog.Error("Chat stream ended early",
			log.Provider(req.Provider),
			log.Error(err))
	}
}

func (s *Server) handleValidateKey(c *gin.Context) {
	var req api.ValidateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	client, ok := s.bindClient(c, req.Provider)
	if !ok {
		return
	}

	valid, err := client.ValidateAPIKey(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrValidateKey, err),
			Status: http.StatusBadGateway,
		})
		return
	}

	c.JSON(http.StatusOK, api.ValidateKeyResponse{
		Provider: req.Provider,
		Valid:    valid,
	})
}

// bindClient validates the provider field and resolves its client,
// writing the error response itself when it cannot
func (s *Server) bindClient(
	c *gin.Context, p api.Provider,
) (provider.Client, bool) {
	if p == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  ErrMissingProvider.Error(),
			Status: http.StatusBadRequest,
		})
		return nil, false
	}
	client, ok := s.clientFor(p)
	if !ok {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", provider.ErrUnknownProvider, p),
			Status: http.StatusBadRequest,
		})
		return nil, false
	}
	return client, true
}

// forwardProviderError maps a provider failure onto a response status:
// missing credentials read as unauthorized, upstream rejections keep
// their status, and everything else is a bad gateway
func (s *Server) forwardProviderError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	var pe *provider.Error
	switch {
	case errors.Is(err, provider.ErrCredentialMissing):
		status = http.StatusUnauthorized
	case errors.As(err, &pe) && pe.StatusCode > 0:
		status = pe.StatusCode
	}

	c.JSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}
