package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/styl-labs/styld/internal/config"
	"github.com/styl-labs/styld/internal/model"
	"github.com/styl-labs/styld/internal/service"
)

const shutdownTimeout = 5 * time.Second

// Server serves the REST API.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
}

// New creates a new API server.
func New(cfg *config.Config, images *service.Images, manager *model.Manager) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		RequestID(),
		RequestLogger(slog.Default()),
		CORS(cfg.Server.CORS.AllowedOrigins),
	)

	docs := NewDocsHandler()
	docs.Register(engine)

	engine.GET("/health", handleHealth)
	engine.GET("/", handleRoot)

	api := engine.Group("/api/v1")
	NewImagesHandler(images).Register(api)
	NewModelsHandler(manager).Register(api)

	return &Server{
		engine: engine,
		srv: &http.Server{
			Addr:    cfg.Server.HTTP.Addr(),
			Handler: engine,
		},
	}
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Run serves requests until the context is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", s.srv.Addr)

		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		slog.Info("HTTP server shutting down")
		return s.srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to the styld API",
		"docs":    "/docs",
	})
}
