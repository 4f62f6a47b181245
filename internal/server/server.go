// Package server exposes the shopinsight dashboard over an HTTP JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopinsight/shopinsight/internal/catalog"
	"github.com/shopinsight/shopinsight/internal/session"
	"go.uber.org/zap"
)

// Asker answers a question within a session.
type Asker interface {
	Ask(ctx context.Context, s *session.Session, question string) (string, error)
}

// CatalogSource provides the default catalog new sessions start with.
type CatalogSource func() (name string, t *catalog.Table, err error)

// Options configure a Server.
type Options struct {
	Store          session.Store
	Asker          Asker
	DefaultCatalog CatalogSource
	Models         []string
	DefaultModel   string
	SystemPrompt   string
	MaxUploadBytes int64
	Logger         *zap.Logger
	Debug          bool
}

type Server struct {
	engine *gin.Engine
	opts   Options
	logger *zap.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.MaxMultipartMemory = opts.MaxUploadBytes

	s := &Server{engine: engine, opts: opts, logger: opts.Logger}
	engine.Use(s.requestLogger(), s.recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/suggestions", s.handleSuggestions)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", s.handleCreateSession)
			sessions.GET("", s.handleListSessions)
			sessions.GET("/:id", s.handleGetSession)
			sessions.DELETE("/:id", s.handleDeleteSession)
			sessions.PUT("/:id/settings", s.handleUpdateSettings)
			sessions.POST("/:id/catalog", s.handleUploadCatalog)
			sessions.POST("/:id/catalog/reload", s.handleReloadCatalog)
			sessions.GET("/:id/context", s.handleGetContext)
			sessions.POST("/:id/ask", s.handleAsk)
			sessions.GET("/:id/export", s.handleExport)
		}
	}
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
