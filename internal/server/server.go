// Package server exposes the copilot dashboard API over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"tradecopilot/internal/logging"
	"tradecopilot/internal/resilience"
	"tradecopilot/internal/store"
)

// MetricsRecorder records HTTP metrics and exposes the registry.
type MetricsRecorder interface {
	HTTPRecorder
	Handler() http.Handler
}

// HealthChecker aggregates component health for /healthz.
type HealthChecker interface {
	Check(ctx context.Context) resilience.SystemHealth
}

// Options holds the server collaborators. Journal, Recorder, AnalystLimiter
// and Health are optional.
type Options struct {
	Addr            string
	Driver          Controller
	Desk            Commentator
	Journal         store.Journal
	Recorder        MetricsRecorder
	AnalystLimiter  Limiter
	Health          HealthChecker
	Logger          zerolog.Logger
	ShutdownTimeout time.Duration
	Now             func() time.Time
}

// Server wraps the Echo instance serving the dashboard.
type Server struct {
	echo     *echo.Echo
	addr     string
	driver   Controller
	desk     Commentator
	journal  store.Journal
	recorder MetricsRecorder
	limiter  Limiter
	health   HealthChecker
	logger   zerolog.Logger
	shutdown time.Duration
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates the server and registers its routes.
func New(opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:     opts.Addr,
		driver:   opts.Driver,
		desk:     opts.Desk,
		journal:  opts.Journal,
		recorder: opts.Recorder,
		limiter:  opts.AnalystLimiter,
		health:   opts.Health,
		logger:   logging.WithOperation(opts.Logger, "server"),
		shutdown: opts.ShutdownTimeout,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	var httpRecorder HTTPRecorder
	if opts.Recorder != nil {
		httpRecorder = opts.Recorder
	}
	e.Use(recoverPanics(s.logger))
	e.Use(requestLogging(s.logger, httpRecorder))

	s.registerRoutes(e)
	s.echo = e
	return s
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("Dashboard listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.cancel()
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("Dashboard stopped")
	return nil
}
