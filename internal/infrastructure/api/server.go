// Package api serves the review engine over a gin REST API with live
// progress on a websocket.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/wiring"
)

// EnvToken holds the bearer token required by the API when set.
const EnvToken = "SMARTREVIEWER_API_TOKEN"

type Server struct {
	services *wiring.AppServices
	router   *gin.Engine
	token    string
	logger   *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on /api routes.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

func NewServer(services *wiring.AppServices, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{services: services, router: gin.New(), logger: services.Logger}
	for _, opt := range opts {
		opt(s)
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/api/v1", s.verifyToken())
	{
		v1.GET("/checks", s.listChecks)
		v1.POST("/reviews", s.runReview)
		v1.GET("/reviews", s.listReviews)
		v1.GET("/reviews/:id", s.getReview)
		v1.POST("/evaluations", s.runEvaluation)
		v1.GET("/evaluations/:id", s.getEvaluation)
		v1.GET("/ws/progress", gin.WrapF(s.services.Workspace.Progress.ServeWS))
		v1.GET("/events/progress", gin.WrapF(s.services.Workspace.Progress.ServeSSE))
	}
}

// Handler exposes the router, mostly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) verifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			// Browsers cannot set headers on websocket upgrades.
			got = c.Query("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing or invalid bearer token"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("api request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
