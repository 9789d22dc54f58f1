// Package statsserver exposes a hedge engine's provider statistics over HTTP.
//
// Routes:
//
//	GET  /stats        provider snapshot with latency percentiles
//	POST /stats/reset  zero every provider's statistics
//	GET  /metrics      Prometheus exposition, when a handler is configured
//	GET  /livez        liveness
//
// Example:
//
//	srv := statsserver.New(client.Engine(),
//	    statsserver.WithAddr(":2112"),
//	    statsserver.WithLogger(logger),
//	    statsserver.WithMetricsHandler(tel.MetricsHandler()),
//	)
//	if err := srv.ListenAndServe(ctx); err != nil {
//	    return err
//	}
package statsserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/kroma-labs/sentinel-hedge/hedge"
)

// Source is what the server reads statistics from. *hedge.Engine satisfies it.
type Source interface {
	Snapshot() map[hedge.ProviderID]hedge.ProviderStats
	ResetStats()
}

// Server serves the stats routes with graceful shutdown.
type Server struct {
	httpServer *http.Server
	config     config
	logger     zerolog.Logger
}

// New builds a Server over src.
func New(src Source, opts ...Option) *Server {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{config: cfg, logger: cfg.Logger}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(src),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes(src Source) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(recovery(s.logger))
	r.Use(requestLogger(s.logger, "/livez", "/metrics"))

	h := &handlers{src: src, service: s.config.ServiceName, version: s.config.Version, start: time.Now()}
	r.Get("/livez", h.live)
	r.Get("/stats", h.stats)
	r.Post("/stats/reset", h.reset)
	if s.config.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.config.MetricsHandler)
	}
	return r
}

// Handler returns the routed handler, for mounting or tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe serves until ctx is cancelled or SIGINT/SIGTERM arrives,
// then shuts down within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Str("service", s.config.ServiceName).
			Msg("stats server starting")

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error().Err(err).Msg("stats server error")
			return err
		}
		return nil
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
		s.logger.Info().Err(ctx.Err()).Msg("context cancelled, shutting down")
	}

	return s.shutdown(context.WithoutCancel(ctx))
}

func (s *Server) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("graceful shutdown failed, forcing close")
		_ = s.httpServer.Close()
		return err
	}

	s.logger.Info().Msg("stats server stopped")
	return nil
}

// Shutdown stops the server without waiting for a signal.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
