package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/texlate/texlate/engine/infra/monitoring"
	"github.com/texlate/texlate/engine/infra/server/appstate"
	"github.com/texlate/texlate/engine/infra/server/routes"
	"github.com/texlate/texlate/pkg/config"
	"github.com/texlate/texlate/pkg/logger"
)

const (
	httpReadHeaderTimeout  = 10 * time.Second
	httpIdleTimeout        = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	hostAny                = "0.0.0.0"
	hostLoopback           = "127.0.0.1"
)

// Server is the HTTP front of the job runner.
type Server struct {
	cfg        config.ServerConfig
	state      *appstate.State
	monitoring *monitoring.Service
	router     *gin.Engine
}

// NewServer builds the router. monitoring may be nil.
func NewServer(ctx context.Context, cfg config.ServerConfig, state *appstate.State, mon *monitoring.Service) (*Server, error) {
	if state == nil {
		return nil, errors.New("application state is required")
	}
	if cfg.SSEHeartbeat > 0 {
		state.Heartbeat = cfg.SSEHeartbeat
	}
	s := &Server{cfg: cfg, state: state, monitoring: mon}
	s.buildRouter(ctx)
	return s, nil
}

func (s *Server) buildRouter(ctx context.Context) {
	r := gin.New()
	r.Use(gin.Recovery())
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.Use(s.monitoring.GinMiddleware())
	}
	r.Use(LoggerMiddleware(logger.FromContext(ctx)))
	r.Use(appstate.StateMiddleware(s.state))
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.GET(s.monitoring.Path(), gin.WrapH(s.monitoring.ExporterHandler()))
	}
	RegisterRoutes(r)
	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: httpReadHeaderTimeout,
		IdleTimeout:       httpIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Received shutdown signal, initiating graceful shutdown")
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("Server shutdown completed successfully")
		return nil
	})
	s.logStartupBanner(ctx)
	return g.Wait()
}

func (s *Server) logStartupBanner(ctx context.Context) {
	host := s.cfg.Host
	if host == hostAny || host == "::" || host == "" {
		host = hostLoopback
	}
	httpURL := "http://" + net.JoinHostPort(host, strconv.Itoa(s.cfg.Port))
	fields := []any{
		"api", httpURL + routes.Base(),
		"jobs", httpURL + routes.Jobs(),
		"health", httpURL + "/health",
	}
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		fields = append(fields, "metrics", httpURL+s.monitoring.Path())
	}
	logger.FromContext(ctx).Info("HTTP server started", fields...)
}
