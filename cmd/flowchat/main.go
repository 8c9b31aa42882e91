package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/flowchat/engine"
	"github.com/flowchat/engine/internal/archive"
	"github.com/flowchat/engine/internal/config"
	"github.com/flowchat/engine/internal/hub"
	"github.com/flowchat/engine/internal/server"
	"github.com/flowchat/engine/internal/store"
	"github.com/flowchat/engine/pkg/api"
	"github.com/flowchat/engine/pkg/flow"
	"github.com/flowchat/engine/pkg/log"
	"github.com/flowchat/engine/pkg/provider"
)

type flowchat struct {
	cfg        *config.Config
	store      store.FlowStore
	archiver   *archive.BlobArchiver
	hub        *hub.Hub
	clients    map[api.Provider]provider.Client
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrCreateClient   = errors.New("failed to create provider client")
	ErrCreateArchiver = errors.New("failed to create archiver")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &flowchat{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *flowchat) run() error {
	s.initializeStore()
	if err := s.initializeArchiver(); err != nil {
		return err
	}
	if err := s.initializeClients(); err != nil {
		return err
	}
	s.hub = hub.New()
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *flowchat) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("FlowChat Engine starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("redis_addr", s.cfg.Redis.Addr),
		slog.String("archive_bucket", s.cfg.ArchiveBucketURL),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

// initializeStore selects Redis when an address is configured and falls
// back to the in-process store otherwise
func (s *flowchat) initializeStore() {
	if s.cfg.Redis.Addr == "" {
		slog.Info("Using in-memory flow store")
		s.store = store.NewMemoryStore()
		return
	}

	slog.Info("Using Redis flow store",
		slog.String("addr", s.cfg.Redis.Addr))
	s.store = store.NewRedisStore(&store.Options{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		Prefix:   s.cfg.Redis.Prefix,
		DB:       s.cfg.Redis.DB,
	})
}

func (s *flowchat) initializeArchiver() error {
	if s.cfg.ArchiveBucketURL == "" {
		return nil
	}

	archiver, err := archive.NewBlobArchiver(
		context.Background(), s.cfg.ArchiveBucketURL, s.cfg.ArchivePrefix,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateArchiver, err)
	}
	s.archiver = archiver
	return nil
}

func (s *flowchat) initializeClients() error {
	s.clients = map[api.Provider]provider.Client{}

	providers := map[api.Provider]config.ProviderConfig{
		api.ProviderAnthropic: s.cfg.Anthropic,
		api.ProviderOpenAI:    s.cfg.OpenAI,
	}
	httpClient := &http.Client{
		Timeout: s.cfg.RequestTimeout,
	}
	for id, pc := range providers {
		client, err := provider.New(id, provider.Config{
			APIKey:     pc.APIKey,
			BaseURL:    pc.BaseURL,
			Model:      pc.Model,
			Version:    pc.Version,
			HTTPClient: httpClient,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCreateClient, err)
		}
		s.clients[id] = client
	}
	return nil
}

func (s *flowchat) startServer() {
	opts := &server.Options{
		Store:   s.store,
		Hub:     s.hub,
		Clients: s.clients,
		Params: flow.Params{
			Temperature: s.cfg.Temperature,
			MaxTokens:   s.cfg.MaxTokens,
		},
	}
	if s.archiver != nil {
		opts.Archiver = s.archiver
	}

	s.apiServer = server.NewServer(opts)
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *flowchat) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()
	s.hub.Close()

	if s.archiver != nil {
		if err := s.archiver.Close(); err != nil {
			slog.Error("Archiver shutdown failed", log.Error(err))
		}
	}
	if err := s.store.Close(); err != nil {
		slog.Error("Store shutdown failed", log.Error(err))
	}

	slog.Info("Server exited")
}
