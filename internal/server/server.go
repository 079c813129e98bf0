// Package server mounts the configured upload routes, metrics and outcome
// feed on a chi router and runs them as an HTTP server.
package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/uprename/internal/config"
	"github.com/vango-dev/uprename/internal/errors"
	"github.com/vango-dev/uprename/pkg/feed"
	"github.com/vango-dev/uprename/pkg/middleware"
	"github.com/vango-dev/uprename/pkg/upload"
)

// Server serves the configured upload routes.
type Server struct {
	config     *config.Config
	router     chi.Router
	hub        *feed.Hub
	relocator  upload.Relocator
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	metrics    *middleware.Metrics
	logger     *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRelocator overrides the relocator built from the storage config.
func WithRelocator(r upload.Relocator) Option {
	return func(s *Server) {
		s.relocator = r
	}
}

// WithMetricsRegistry registers metrics with reg and serves them from it.
// Default: the global Prometheus registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registerer = reg
		s.gatherer = reg
	}
}

// New validates cfg and builds a Server with its routes.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:     cfg,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.relocator == nil {
		r, err := NewRelocator(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		s.relocator = r
	}

	if cfg.Metrics.Enabled {
		s.metrics = middleware.NewMetrics(
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithRegistry(s.registerer),
		)
	}

	if cfg.Feed.Enabled {
		hubOpts := []feed.Option{
			feed.WithHistory(cfg.Feed.History),
			feed.WithLogger(s.logger),
		}
		if s.metrics != nil {
			hubOpts = append(hubOpts, feed.WithConnectHooks(s.metrics.FeedConnect, s.metrics.FeedDisconnect))
		}
		s.hub = feed.NewHub(hubOpts...)
	}

	router, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.router = router
	return s, nil
}

func (s *Server) routes() (chi.Router, error) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	if s.config.Metrics.Enabled {
		r.Handle(s.config.Metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.hub != nil {
		r.Get(s.config.Feed.Path, s.hub.ServeHTTP)
	}

	uploadCfg := &upload.Config{MaxBodySize: s.config.MaxBodySize}
	for _, route := range s.config.EnabledRoutes() {
		p := s.processor(route)

		if route.Upstream == "" {
			r.Handle(route.Path, upload.Handler(p, uploadCfg))
			s.logger.Debug("upload route", "path", route.Path)
			continue
		}

		proxy, err := s.proxy(route.Upstream)
		if err != nil {
			return nil, err
		}
		r.Handle(route.Path, upload.Intercept(p, uploadCfg)(proxy))
		s.logger.Debug("upload route", "path", route.Path, "upstream", route.Upstream)
	}

	return r, nil
}

// processor builds the processor for one route with the enabled middleware.
func (s *Server) processor(route config.RouteConfig) *upload.Processor {
	var mw []upload.Middleware
	if s.metrics != nil {
		mw = append(mw, s.metrics.Middleware())
	}
	if s.config.Tracing.Enabled {
		mw = append(mw, middleware.OpenTelemetry(
			middleware.WithTracerName(s.config.Tracing.TracerName),
		))
	}
	if s.hub != nil {
		mw = append(mw, s.hub.Middleware(route.Path))
	}

	return upload.NewProcessor(s.relocator,
		upload.WithLayout(s.config.BodyLayout()),
		upload.WithLogger(s.logger.With("route", route.Path)),
		upload.WithMiddleware(mw...),
	)
}

func (s *Server) proxy(upstream string) (http.Handler, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, errors.New("E107").Wrap(err)
	}
	proxy := httputil.NewSingleHostReverseProxy(u)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Error("upstream error", "upstream", upstream, "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}

// requestLogger logs one line per request with chi's request ID.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", chimw.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the outcome feed, or nil when it is disabled.
func (s *Server) Hub() *feed.Hub {
	return s.hub
}

// Run listens on the configured address and serves until SIGINT or SIGTERM.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.config.Server.Address)
	if err != nil {
		return errors.New("E400").
			WithDetail(s.config.Server.Address + " could not be bound").
			WithSuggestion("Use --addr to pick another address").
			Wrap(err)
	}

	// Set up graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return err

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout(),
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("server starting", "address", ln.Addr().String())
	err := srv.Serve(ln)
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return errors.New("E401").Wrap(err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if timeout := s.config.ShutdownTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Feed clients are hijacked connections that http.Server does not track.
	if s.hub != nil {
		s.hub.Close()
	}

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
