package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/papercheck/internal/analysis"
	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/internal/cache"
	"github.com/jackzampolin/papercheck/internal/config"
	"github.com/jackzampolin/papercheck/internal/knowledge"
	"github.com/jackzampolin/papercheck/internal/llmcall"
	"github.com/jackzampolin/papercheck/internal/metrics"
	"github.com/jackzampolin/papercheck/internal/prompts"
	"github.com/jackzampolin/papercheck/internal/providers"
	"github.com/jackzampolin/papercheck/internal/server/endpoints"
	"github.com/jackzampolin/papercheck/internal/svcctx"
)

// Server is the papercheck HTTP server. It owns the analysis pipeline and
// the connections behind it (cache and knowledge store), opening them on
// Start and closing them on shutdown.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	registry   *providers.Registry
	configMgr  *config.Manager
	metrics    *metrics.Recorder
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	// closers run on shutdown
	closers []namedCloser

	mu      sync.RWMutex
	running bool
}

type namedCloser struct {
	name string
	io.Closer
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080, "0" picks a free port)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		metrics:   metrics.NewRecorder(),
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{Started: time.Now()}) {
		if err := s.endpointRegistry.Register(ep); err != nil {
			return nil, err
		}
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withRequestID(s.withServices(s.metrics.Middleware(mux))),
		ReadTimeout: 60 * time.Second,
		// Long enough for every retry of a slow analysis.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start wires the pipeline and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	services, err := s.initServices(ctx)
	if err != nil {
		_ = s.shutdown()
		return err
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.services = services
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		routes := s.endpointRegistry.Routes()
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String(), "routes", len(routes))
		for _, r := range routes {
			s.logger.Debug("route", "pattern", r.Pattern(), "requires_init", r.RequiresInit)
		}
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// initServices builds the provider registry, cache, knowledge store and
// pipeline from the current config, and subscribes to config reloads.
func (s *Server) initServices(ctx context.Context) (*svcctx.Services, error) {
	cfg := s.configMgr.Get()

	s.registry = providers.NewRegistryFromConfig(ctx, cfg.ToProviderRegistryConfig(), s.logger)
	if !s.registry.Has(cfg.Analysis.OracleProvider) {
		s.logger.Warn("oracle provider not registered; analysis will fail until it is configured",
			"provider", cfg.Analysis.OracleProvider, "registered", s.registry.List())
	}

	c, err := cache.New(cfg.CacheConfig())
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if p, ok := c.(interface{ Ping(context.Context) error }); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := p.Ping(pingCtx); err != nil {
			s.logger.Warn("cache backend unreachable; lookups will miss until it recovers",
				"backend", cfg.Cache.Backend, "addr", cfg.Cache.RedisAddr, "error", err)
		}
		cancel()
	}
	if closer, ok := c.(io.Closer); ok {
		s.closers = append(s.closers, namedCloser{"cache", closer})
	}

	know, err := s.openKnowledge(ctx, cfg.Knowledge)
	if err != nil {
		return nil, err
	}

	resolver := prompts.NewResolver(know.overrides, s.logger)
	analysis.RegisterPrompts(resolver)

	store := llmcall.NewStore(cfg.Knowledge.CallHistory)
	pipeline := analysis.New(analysis.Config{
		Client:      s.registry.Client(cfg.Analysis.OracleProvider),
		ProbeClient: s.registry.Client(cfg.Analysis.ProbeProviderName()),
		Cache:       c,
		Resolver:    resolver,
		Patterns:    know.patterns,
		Errors:      know.errors,
		Topics:      know.topics,
		Corrections: know.corrections,
		Recorder:    llmcall.NewRecorder(store, s.metrics, s.logger),
		Metrics:     s.metrics,
		Logger:      s.logger,
		Settings:    cfg.Settings(),
	})

	// Watch for config changes. Cache, knowledge and the provider names the
	// pipeline uses are fixed until restart.
	s.configMgr.OnChange(func(c *config.Config) {
		s.registry.Reload(ctx, c.ToProviderRegistryConfig())
		pipeline.UpdateSettings(c.Settings())
		s.logger.Info("providers and analysis settings reloaded from config")
	})

	s.logger.Info("analysis pipeline ready",
		"oracle", cfg.Analysis.OracleProvider,
		"probe", cfg.Analysis.ProbeProviderName(),
		"cache", c.Stats().Backend,
		"knowledge", know.source)

	return &svcctx.Services{
		Pipeline:      pipeline,
		Registry:      s.registry,
		ConfigManager: s.configMgr,
		Resolver:      resolver,
		Overrides:     know.writer,
		LLMCallStore:  store,
		Metrics:       s.metrics,
		Logger:        s.logger,
	}, nil
}

// knowledgeSources are the pipeline's knowledge dependencies, served either
// by a catalog in memory or by Postgres.
type knowledgeSources struct {
	source      string
	patterns    knowledge.PatternSource
	errors      knowledge.ErrorLibrary
	topics      knowledge.TopicGuide
	corrections knowledge.CorrectionRecorder
	overrides   prompts.OverrideStore
	writer      prompts.OverrideWriter
}

func (s *Server) openKnowledge(ctx context.Context, cfg config.KnowledgeCfg) (knowledgeSources, error) {
	catalog, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return knowledgeSources{}, err
	}
	catalog.SetLearnThreshold(cfg.LearnThreshold)

	dsn := config.ResolveEnvVars(cfg.PostgresDSN)
	if dsn == "" {
		return knowledgeSources{
			source:      "catalog",
			patterns:    catalog,
			errors:      catalog,
			topics:      catalog,
			corrections: catalog,
		}, nil
	}

	pg, err := knowledge.OpenPostgres(ctx, dsn)
	if err != nil {
		return knowledgeSources{}, fmt.Errorf("knowledge store: %w", err)
	}
	s.closers = append(s.closers, namedCloser{"knowledge store", pg})
	if cfg.LearnThreshold > 0 {
		pg.LearnThreshold = cfg.LearnThreshold
	}
	if cfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			return knowledgeSources{}, err
		}
		if err := pg.Seed(ctx, catalog); err != nil {
			return knowledgeSources{}, fmt.Errorf("seed knowledge store: %w", err)
		}
		s.logger.Info("knowledge store migrated and seeded")
	}
	return knowledgeSources{
		source:      "postgres",
		patterns:    pg,
		errors:      pg,
		topics:      pg,
		corrections: pg,
		overrides:   pg,
		writer:      pg,
	}, nil
}

func loadCatalog(path string) (*knowledge.Catalog, error) {
	if path == "" {
		return knowledge.DefaultCatalog()
	}
	c, err := knowledge.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge catalog: %w", err)
	}
	return c, nil
}

// shutdown stops the HTTP server and closes the backing connections.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	var g errgroup.Group
	for _, c := range s.closers {
		g.Go(func() error {
			if err := c.Close(); err != nil {
				return fmt.Errorf("close %s: %w", c.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("shutdown close error", "error", err)
	}
	s.closers = nil

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.services = nil
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address. Once serving, this is the
// bound address, so port "0" resolves to the chosen port.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Registry returns the provider registry.
// Returns nil if the server hasn't started yet.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Pipeline returns the analysis pipeline.
// Returns nil if the server hasn't started yet.
func (s *Server) Pipeline() *analysis.Pipeline {
	if svc := s.currentServices(); svc != nil {
		return svc.Pipeline
	}
	return nil
}

func (s *Server) currentServices() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
// The logger is scoped to the request id.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc := s.currentServices(); svc != nil {
			scoped := *svc
			scoped.Logger = svc.Logger.With("request_id", w.Header().Get(api.RequestIDHeader))
			ctx = svcctx.WithServices(ctx, &scoped)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withRequestID echoes the caller's request id, or assigns one.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(api.RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(api.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the pipeline isn't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.currentServices() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized","kind":"unavailable"}`))
			return
		}
		next(w, r)
	}
}
