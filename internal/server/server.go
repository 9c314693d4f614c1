// Package server exposes the quiz engine over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/abhisek/quizloop/internal/engine"
	"github.com/abhisek/quizloop/internal/logger"
)

// Config controls the HTTP listener.
type Config struct {
	Address     string
	CORSOrigins []string

	// ShutdownTimeout bounds graceful shutdown after the context ends.
	ShutdownTimeout time.Duration
}

// Server serves the quiz API.
type Server struct {
	cfg    Config
	log    *logger.Logger
	router *gin.Engine
}

// New builds the router for svc. A nil logger discards output.
func New(svc *engine.Service, cfg Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), corsMiddleware(cfg.CORSOrigins))

	h := &handler{svc: svc, log: log}
	r.GET("/healthz", h.health)

	api := r.Group("/api/v1")
	{
		api.POST("/evaluate", h.evaluate)
		api.POST("/questions", h.saveQuestion)
		api.POST("/questions/generate", h.generateQuestions)
		api.GET("/questions/:id", h.getQuestion)

		users := api.Group("/users/:user")
		users.GET("/next", h.nextQuestion)
		users.POST("/answers", h.submitAnswer)
		users.GET("/proficiency", h.proficiency)
		users.PUT("/proficiency/:concept", h.updateProficiency)
		users.GET("/attempts", h.attempts)
	}

	return &Server{cfg: cfg, log: log, router: r}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "address", s.cfg.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}
