package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowchat/engine"
	"github.com/flowchat/engine/pkg/api"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"

	storeOK          = "ok"
	storeUnreachable = "unreachable"
)

func (s *Server) handleHealth(c *gin.Context) {
	res := api.HealthResponse{
		Service: engine.Name,
		Version: engine.Version,
		Status:  statusHealthy,
		Store:   storeOK,
	}
	if err := s.store.Ping(c.Request.Context()); err != nil {
		res.Status = statusDegraded
		res.Store = storeUnreachable
	}
	c.JSON(http.StatusOK, res)
}
