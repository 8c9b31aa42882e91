package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/flowchat/engine/internal/hub"
	"github.com/flowchat/engine/internal/store"
	"github.com/flowchat/engine/internal/util"
	"github.com/flowchat/engine/pkg/api"
	"github.com/flowchat/engine/pkg/flow"
	"github.com/flowchat/engine/pkg/provider"
)

type (
	// Server implements the HTTP API for the chat backend
	Server struct {
		store    store.FlowStore
		hub      *hub.Hub
		clients  map[api.Provider]provider.Client
		archiver Archiver
		params   flow.Params
		sockets  util.Set[*Client]
		mu       sync.Mutex
	}

	// Archiver stores terminal execution records. Nil disables archiving
	Archiver interface {
		Put(ctx context.Context, ex *api.FlowExecution) error
	}

	// Options configures a Server
	Options struct {
		Store    store.FlowStore
		Hub      *hub.Hub
		Clients  map[api.Provider]provider.Client
		Archiver Archiver
		Params   flow.Params
	}
)

// NewServer creates a new HTTP API server
func NewServer(opts *Options) *Server {
	return &Server{
		store:    opts.Store,
		hub:      opts.Hub,
		clients:  opts.Clients,
		archiver: opts.Archiver,
		params:   opts.Params,
		sockets:  util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API
// endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, api.ErrorResponse{
			Error:  "method not allowed",
			Status: http.StatusMethodNotAllowed,
		})
	})

	// Health check
	router.GET("/health", s.handleHealth)

	// API endpoints
	group := router.Group("/api")
	{
		// Chat
		group.POST("/chat", s.handleChat)
		group.POST("/keys/validate", s.handleValidateKey)

		// Flow endpoints
		group.GET("/flows", s.listFlows)
		group.POST("/flows", s.createFlow)
		group.GET("/flows/:flowID", s.getFlow)
		group.DELETE("/flows/:flowID", s.deleteFlow)
		group.POST("/flows/:flowID/execute", s.executeFlow)

		// WebSocket
		group.GET("/ws", s.handleWebSocket)
	}

	return router
}

// clientFor resolves the provider named in a request
func (s *Server) clientFor(p api.Provider) (provider.Client, bool) {
	client, ok := s.clients[p]
	return client, ok
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
