// Package server exposes the dashboard routes and the tick stream over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"marketdash/config"
	"marketdash/internal/listing"
	"marketdash/internal/market"
	"marketdash/internal/metrics"
	"marketdash/internal/portfolio"
	"marketdash/internal/tier"
	"marketdash/pkg/yahoo"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Selector serves series and quotes through the fallback chain.
type Selector interface {
	Series(ctx context.Context, symbol string, interval yahoo.Interval) tier.Result
	Quote(ctx context.Context, symbol string) market.Quote
	Quotes(ctx context.Context, symbols []string) []market.Quote
}

// Ticker advances a live price by one tick.
type Ticker interface {
	NextPrice(current float64) float64
}

// HealthCheck reports a dependency failure as an error.
type HealthCheck func(ctx context.Context) error

// Deps are the components behind the routes. Portfolio may be nil when no
// storage is configured; its routes then answer 503.
type Deps struct {
	Selector    Selector
	Listings    *listing.Service
	Searcher    *listing.Searcher
	Portfolio   *portfolio.Service
	Instruments *config.Instruments
	Ticker      Ticker
	Metrics     *metrics.Metrics
	Checks      map[string]HealthCheck
}

type Server struct {
	cfg      config.ServerConfig
	stream   config.StreamConfig
	deps     Deps
	metrics  *metrics.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
	handler  http.Handler
}

func New(cfg config.ServerConfig, stream config.StreamConfig, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if stream.TickInterval <= 0 {
		stream.TickInterval = 2 * time.Second
	}
	if stream.MaxSymbols <= 0 {
		stream.MaxSymbols = 20
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		cfg:     cfg,
		stream:  stream,
		deps:    deps,
		metrics: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return cfg.CORSOrigin == "*" || r.Header.Get("Origin") == "" || r.Header.Get("Origin") == cfg.CORSOrigin
			},
		},
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/stocks", s.handleSeries)
	mux.HandleFunc("GET /api/stocks/quote", s.handleQuotes)
	mux.HandleFunc("GET /api/stocks/search", s.handleSearch)
	mux.HandleFunc("GET /api/stocks/list", s.handleList)
	mux.HandleFunc("GET /api/stocks/all", s.handleBrowse)
	mux.HandleFunc("GET /api/instruments", s.handleInstruments)
	mux.HandleFunc("GET /api/analysis", s.handleAnalysis)

	mux.HandleFunc("GET /api/portfolio", s.handlePortfolioGet)
	mux.HandleFunc("POST /api/portfolio", s.handlePortfolioAdd)
	mux.HandleFunc("DELETE /api/portfolio", s.handlePortfolioRemove)

	mux.HandleFunc("GET /ws/ticks", s.handleTicks)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	// outermost first
	return s.requestID(s.accessLog(s.recoverer(s.cors(mux))))
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on the configured address until ctx is canceled, then shuts
// down gracefully. Open streams observe ctx through their request context.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
		"ts":     time.Now().UTC().Format(time.RFC3339),
	})
}
