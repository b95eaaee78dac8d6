// Package app assembles the dashboard from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketdash/config"
	"marketdash/internal/listing"
	"marketdash/internal/memorystore"
	"marketdash/internal/metrics"
	"marketdash/internal/portfolio"
	"marketdash/internal/server"
	"marketdash/internal/synth"
	"marketdash/internal/tier"
	"marketdash/pkg/alphavantage"
	"marketdash/pkg/storage/postgres"
	"marketdash/pkg/storage/redis"
	"marketdash/pkg/yahoo"

	"go.uber.org/zap"
)

const storeReportInterval = time.Minute

// App owns every long-lived component.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	server    *server.Server
	scheduler *listing.Scheduler
	memStore  *memorystore.SeriesStore
	closers   []func() error
}

// SynthParams maps the synthetic config section onto generator parameters.
func SynthParams(cfg config.SyntheticConfig) synth.Params {
	return synth.Params{
		Points:        cfg.Points,
		Step:          cfg.Step,
		Volatility:    cfg.Volatility,
		Drift:         cfg.Drift,
		MeanReversion: cfg.MeanReversion,
		Band:          cfg.Band,
		SpreadMin:     cfg.SpreadMin,
		SpreadMax:     cfg.SpreadMax,
		VolumeMin:     cfg.VolumeMin,
		VolumeMax:     cfg.VolumeMax,
		TickStep:      cfg.TickStep,
		TickBias:      cfg.TickBias,
	}
}

// New connects storage and wires the providers, the fallback chain and the
// HTTP server. Nothing is served until Run.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	instruments, err := config.LoadInstruments(cfg.Synthetic)
	if err != nil {
		return nil, err
	}

	src := synth.NewTimeSource()
	if cfg.Synthetic.Seed != 0 {
		src = synth.NewSource(cfg.Synthetic.Seed)
	}
	gen, err := synth.NewGenerator(SynthParams(cfg.Synthetic), src)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	yc := yahoo.NewRESTClient(cfg.Yahoo.BaseURL, cfg.Yahoo.UserAgent, cfg.Yahoo.Timeout)
	yc.SetObserver(m.Upstream("yahoo"))
	ac := alphavantage.NewClient(cfg.Alpha.BaseURL, cfg.Alpha.APIKey, cfg.Alpha.Timeout)
	ac.SetObserver(m.Upstream("alphavantage"))

	checks := map[string]server.HealthCheck{}

	opts := []tier.Option{tier.WithRecorder(m)}
	switch cfg.Cache.Backend {
	case "memory":
		a.memStore = memorystore.NewSeriesStore()
		opts = append(opts, tier.WithStore(a.memStore))
	case "redis":
		rs, err := redis.New(ctx, redis.Config{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
			TTL:       cfg.Cache.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		opts = append(opts, tier.WithStore(rs))
		checks["redis"] = rs.Ping
	}

	sel := tier.NewSelector(yc, instruments, gen, tier.Config{
		Points:           cfg.Synthetic.Points,
		MaxPoints:        cfg.Normalize.MaxPoints,
		DefaultSuffix:    cfg.Normalize.DefaultSuffix,
		CacheTTL:         cfg.Cache.TTL,
		QuoteConcurrency: cfg.Quotes.Concurrency,
		MaxQuoteSymbols:  cfg.Quotes.MaxSymbols,
	}, logger.Named("tier"), opts...)

	listings := listing.NewService(ac, memorystore.NewListingCache(cfg.Listing.TTL), instruments.All(),
		logger.Named("listing"), listing.WithRecorder(m), listing.WithTimeout(cfg.Alpha.Timeout))
	if cfg.Listing.Schedule {
		a.scheduler, err = listing.NewScheduler(cfg.Listing.RefreshCron, listing.ServiceRefresher(listings),
			cfg.Alpha.Timeout, logger.Named("listing"))
		if err != nil {
			return nil, err
		}
	}

	var folio *portfolio.Service
	if cfg.Storage.Driver != "none" {
		db, err := postgres.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
		}
		a.closers = append(a.closers, db.Close)
		folio = portfolio.NewService(db, sel, cfg.Quotes.MaxSymbols, logger.Named("portfolio"))
		checks["storage"] = func(ctx context.Context) error {
			if !db.IsHealthy(ctx) {
				return errors.New("database ping failed")
			}
			return nil
		}
	}

	a.server = server.New(cfg.Server, cfg.Stream, server.Deps{
		Selector:    sel,
		Listings:    listings,
		Searcher:    listing.NewSearcher(yc, ac, instruments.All(), logger.Named("search")),
		Portfolio:   folio,
		Instruments: instruments,
		Ticker:      gen,
		Metrics:     m,
		Checks:      checks,
	}, logger.Named("http"))

	logger.Info("dashboard initialised",
		zap.String("env", cfg.Env),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("storage", cfg.Storage.Driver),
		zap.Int("instruments", len(instruments.All())),
	)
	return a, nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves until ctx is canceled, then stops the scheduler and releases
// storage.
func (a *App) Run(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Start()
	}
	if a.memStore != nil {
		go a.reportStore(ctx)
	}

	err := a.server.Run(ctx)

	if a.scheduler != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		a.scheduler.Stop(stopCtx)
		cancel()
	}
	return errors.Join(err, a.Close())
}

// reportStore periodically logs the in-process cache size.
func (a *App) reportStore(ctx context.Context) {
	ticker := time.NewTicker(storeReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.logger.Debug("cached series",
				zap.Int("entries", len(a.memStore.Symbols())),
				zap.Int("points", a.memStore.CountPoints()),
			)
		}
	}
}

// Close releases storage connections. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
