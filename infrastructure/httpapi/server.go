// Package httpapi exposes the quote flow over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/ahrav/go-pricescout/internal/application"
	"github.com/ahrav/go-pricescout/internal/ports"
)

// QuoteService is the caller-facing flow served by the API.
type QuoteService interface {
	Quote(ctx context.Context, callerID, itemName string) (application.Quote, error)
	History(ctx context.Context, callerID string, limit int) ([]ports.Turn, error)
}

// Server is the HTTP front of a QuoteService.
type Server struct {
	quotes         QuoteService
	metrics        http.Handler
	health         func() map[string]any
	logger         log.FieldLogger
	requestTimeout time.Duration
	engine         *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithHealthDetails adds fields to the /healthz body.
func WithHealthDetails(f func() map[string]any) Option { return func(s *Server) { s.health = f } }

// WithLogger overrides the logger.
func WithLogger(l log.FieldLogger) Option { return func(s *Server) { s.logger = l } }

// WithRequestTimeout bounds a single quote request. Zero means no bound.
func WithRequestTimeout(d time.Duration) Option { return func(s *Server) { s.requestTimeout = d } }

// NewServer builds the router.
func NewServer(quotes QuoteService, opts ...Option) *Server {
	s := &Server{
		quotes: quotes,
		logger: log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(s.logger))

	r.GET("/healthz", s.healthz)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	v1 := r.Group("/v1")
	v1.POST("/quotes", s.createQuote)
	v1.GET("/callers/:id/history", s.callerHistory)

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(log.Fields{"event": "http_listening", "addr": addr}).Info("HTTP server listening")
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

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.WithField("event", "http_shutdown").Info("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}
