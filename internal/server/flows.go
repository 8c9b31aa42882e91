package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowchat/engine/internal/store"
	"github.com/flowchat/engine/pkg/api"
	"github.com/flowchat/engine/pkg/flow"
	"github.com/flowchat/engine/pkg/log"
)

var (
	ErrListFlows  = errors.New("failed to list flows")
	ErrSaveFlow   = errors.New("failed to save flow")
	ErrDeleteFlow = errors.New("failed to delete flow")
)

func (s *Server) createFlow(c *gin.Context) {
	var req api.CreateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	parsed, err := flow.Parse(req.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	res := &api.Flow{
		Name:   req.Name,
		Source: parsed.Source,
		Steps:  parsed.Steps,
	}
	if err := s.store.Save(c.Request.Context(), res); err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrSaveFlow, err),
			Status: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (s *Server) listFlows(c *gin.Context) {
	flows, err := s.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrListFlows, err),
			Status: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, api.FlowsListResponse{
		Flows: flows,
		Count: len(flows),
	})
}

func (s *Server) getFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	res, err := s.store.Get(c.Request.Context(), flowID)
	if err != nil {
		s.flowStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) deleteFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	if err := s.store.Delete(c.Request.Context(), flowID); err != nil {
		s.flowStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{
		Message: "Flow deleted",
	})
}

func (s *Server) executeFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	var req api.ExecuteFlowRequest
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

	def, err := s.store.Get(c.Request.Context(), flowID)
	if err != nil {
		s.flowStoreError(c, err)
		return
	}

	params := s.params
	params.Model = req.Model

	opts := []flow.Option{
		flow.WithFlowID(flowID),
		flow.WithObserver(func(ex *api.FlowExecution) {
			s.hub.Publish(&api.ExecutionEvent{
				Type:      api.EventFor(ex),
				FlowID:    flowID,
				Execution: ex,
			})
		}),
	}
	if req.Stream {
		opts = append(opts, flow.WithStreamHandler(
			func(chunk api.StreamChunk) {
				s.hub.Publish(&api.ExecutionEvent{
					Type:   api.EventTypeStepChunk,
					FlowID: flowID,
					Chunk:  &chunk,
				})
			}))
	}

	executor := flow.NewExecutor(client, params)
	ex, err := executor.Execute(
		c.Request.Context(), def.Parsed(), req.Input, opts...,
	)
	if err != nil && api.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	s.archiveExecution(c.Request.Context(), ex)

	if err != nil {
		c.JSON(http.StatusBadGateway, api.ExecuteFlowResponse{
			Execution: ex,
			Error:     err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, api.ExecuteFlowResponse{
		Execution: ex,
	})
}

func (s *Server) archiveExecution(
	ctx context.Context, ex *api.FlowExecution,
) {
	if s.archiver == nil || ex == nil || !ex.Terminal() {
		return
	}
	if err := s.archiver.Put(ctx, ex); err != nil {
		slog.Error("Failed to archive execution",
			log.ExecutionID(ex.ID),
			log.Error(err))
	}
}

func (s *Server) flowStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrFlowNotFound) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, api.ErrorResponse{
		Error:  err.Error(),
		Status: http.StatusInternalServerError,
	})
}
