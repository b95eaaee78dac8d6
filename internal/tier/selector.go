// Package tier picks the best available source for a symbol's series and
// quote. Tiers are tried in order (live, live-seeded-synthetic, cached,
// synthetic) with one attempt each; the synthetic tier always succeeds, so
// callers never see an empty series.
package tier

import (
	"context"
	"math"
	"time"

	"marketdash/internal/market"
	"marketdash/internal/memorystore"
	"marketdash/internal/normalize"
	"marketdash/pkg/yahoo"

	"go.uber.org/zap"
)

// ChartProvider fetches raw chart payloads.
type ChartProvider interface {
	Chart(ctx context.Context, symbol string, interval yahoo.IntervalMeta) ([]byte, error)
	Snapshot(ctx context.Context, symbol string) ([]byte, error)
}

// SeriesStore backs the cached tier. Series entries are keyed by ticker and
// interval, quote entries by ticker alone.
type SeriesStore interface {
	Put(ctx context.Context, key string, e memorystore.Entry) error
	Get(ctx context.Context, key string) (memorystore.Entry, bool, error)
}

// BasePrices resolves the synthetic base price for a symbol. It must always
// return a positive price.
type BasePrices interface {
	BasePrice(symbol string) float64
}

// instrumentLookup is optionally implemented by BasePrices to supply names.
type instrumentLookup interface {
	Instrument(symbol string) (market.Instrument, bool)
}

// Generator produces synthetic series and ticks.
type Generator interface {
	Series(base float64, count int) (market.Series, error)
	NextPrice(current float64) float64
}

// Recorder observes tier outcomes. route is "series" or "quote".
type Recorder interface {
	Served(route string, t market.Tier)
	Failed(route string, t market.Tier, kind market.ErrorKind)
}

type nopRecorder struct{}

func (nopRecorder) Served(string, market.Tier) {}

func (nopRecorder) Failed(string, market.Tier, market.ErrorKind) {}

// fallbackBasePrice is only used if BasePrices breaks its contract.
const fallbackBasePrice = 1000

// Config holds the selector settings.
type Config struct {
	Points           int           // synthetic series length
	MaxPoints        int           // cap applied to live series
	DefaultSuffix    string        // appended to bare tickers, e.g. ".NS"
	CacheTTL         time.Duration // max age of a cached live result
	QuoteConcurrency int           // parallel upstream calls for batch quotes
	MaxQuoteSymbols  int           // batch size limit
}

// Attempt records one tier that produced nothing usable.
type Attempt struct {
	Tier  market.Tier      `json:"tier"`
	Kind  market.ErrorKind `json:"kind"`
	Error string           `json:"error,omitempty"`
}

// Result is the outcome of a series lookup. Series is never empty.
type Result struct {
	Symbol        string // upstream ticker
	DisplaySymbol string // suffix stripped
	Name          string
	Interval      yahoo.Interval
	Market        string // NSE or BSE
	Currency      string
	Series        market.Series
	Quote         market.Quote
	Tier          market.Tier
	Attempts      []Attempt
}

// Selector runs the fallback chain.
type Selector struct {
	charts   ChartProvider
	store    SeriesStore
	bases    BasePrices
	gen      Generator
	cfg      Config
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// Option customises a Selector.
type Option func(*Selector)

// WithStore enables the cached tier.
func WithStore(store SeriesStore) Option {
	return func(s *Selector) { s.store = store }
}

func WithRecorder(r Recorder) Option {
	return func(s *Selector) { s.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

func NewSelector(charts ChartProvider, bases BasePrices, gen Generator, cfg Config, logger *zap.Logger, opts ...Option) *Selector {
	if cfg.Points <= 0 {
		cfg.Points = 60
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = 100
	}
	if cfg.QuoteConcurrency <= 0 {
		cfg.QuoteConcurrency = 8
	}
	if cfg.MaxQuoteSymbols <= 0 {
		cfg.MaxQuoteSymbols = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Selector{
		charts:   charts,
		bases:    bases,
		gen:      gen,
		cfg:      cfg,
		logger:   logger,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Series returns the best available series for symbol. At most two upstream
// calls are made.
func (s *Selector) Series(ctx context.Context, symbol string, interval yahoo.Interval) Result {
	interval, meta, err := yahoo.ParseInterval(string(interval))
	if err != nil {
		interval, meta, _ = yahoo.ParseInterval("")
	}

	upstream := market.UpstreamSymbol(symbol, s.cfg.DefaultSuffix)
	res := Result{
		Symbol:        upstream,
		DisplaySymbol: market.DisplaySymbol(upstream),
		Interval:      interval,
	}

	if s.primary(ctx, &res, meta) ||
		s.secondary(ctx, &res) ||
		s.cached(ctx, &res) {
		s.recorder.Served("series", res.Tier)
		return res
	}
	s.synthetic(&res)
	s.recorder.Served("series", res.Tier)
	return res
}

func (s *Selector) primary(ctx context.Context, res *Result, interval yahoo.IntervalMeta) bool {
	payload, err := s.charts.Chart(ctx, res.Symbol, interval)
	if err != nil {
		s.fail("series", res, market.TierLive, err)
		return false
	}
	chart, err := normalize.ChartSeries(payload, res.Symbol, s.cfg.MaxPoints)
	if err != nil {
		s.fail("series", res, market.TierLive, err)
		return false
	}

	res.Name = chart.Meta.Name
	res.Market = chart.Meta.Exchange
	res.Currency = chart.Meta.Currency
	res.Series = chart.Series
	res.Quote = liveQuote(res.DisplaySymbol, chart)
	res.Tier = market.TierLive

	if s.store != nil {
		entry := memorystore.Entry{
			Series:   chart.Series,
			Quote:    res.Quote,
			Name:     res.Name,
			Currency: res.Currency,
			StoredAt: s.now(),
		}
		s.put(ctx, seriesKey(res.Symbol, res.Interval), entry)
		entry.Series = nil
		s.put(ctx, quoteKey(res.Symbol), entry)
	}
	return true
}

// seriesKey scopes cached bars to the exchange ticker and bar size.
func seriesKey(upstream string, interval yahoo.Interval) string {
	return upstream + "|" + string(interval)
}

// quoteKey scopes a cached quote to the exchange ticker only.
func quoteKey(upstream string) string {
	return upstream
}

func (s *Selector) put(ctx context.Context, key string, e memorystore.Entry) {
	if err := s.store.Put(ctx, key, e); err != nil {
		s.logger.Warn("failed to store live result", zap.String("key", key), zap.Error(err))
	}
}

func (s *Selector) secondary(ctx context.Context, res *Result) bool {
	q, meta, err := s.snapshot(ctx, res.Symbol)
	if err != nil {
		s.fail("series", res, market.TierLiveSeededSynthetic, err)
		return false
	}
	series, err := normalize.SeedSeries(s.gen, q.Price, s.cfg.Points)
	if err != nil {
		s.fail("series", res, market.TierLiveSeededSynthetic, err)
		return false
	}

	q.Source = market.TierLiveSeededSynthetic
	res.Name = meta.Name
	res.Market = meta.Exchange
	res.Currency = meta.Currency
	res.Series = series
	res.Quote = q
	res.Tier = market.TierLiveSeededSynthetic
	return true
}

func (s *Selector) cached(ctx context.Context, res *Result) bool {
	e, ok := s.lookup(ctx, seriesKey(res.Symbol, res.Interval))
	if !ok || len(e.Series) == 0 {
		return false
	}

	e.Quote.Source = market.TierCached
	res.Name = e.Name
	res.Market = marketOf(res.Symbol)
	res.Currency = e.Currency
	res.Series = e.Series
	res.Quote = e.Quote
	res.Tier = market.TierCached
	return true
}

func (s *Selector) synthetic(res *Result) {
	base := s.basePrice(res.Symbol)
	series, err := s.gen.Series(base, s.cfg.Points)
	if err != nil {
		s.logger.Error("synthetic generation failed", zap.String("symbol", res.Symbol), zap.Float64("base", base), zap.Error(err))
		base = fallbackBasePrice
		series, _ = s.gen.Series(base, s.cfg.Points)
	}

	q, _ := market.QuoteFromSeries(res.DisplaySymbol, series, normalize.DefaultCurrency, market.TierSynthetic)
	res.Name = s.name(res.Symbol)
	res.Market = marketOf(res.Symbol)
	res.Currency = normalize.DefaultCurrency
	res.Series = series
	res.Quote = q
	res.Tier = market.TierSynthetic
}

// lookup reads a fresh entry from the store. Store errors count as a miss.
func (s *Selector) lookup(ctx context.Context, key string) (memorystore.Entry, bool) {
	if s.store == nil {
		return memorystore.Entry{}, false
	}
	e, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		s.recorder.Failed("cache", market.TierCached, market.KindUnavailable)
		return memorystore.Entry{}, false
	}
	if !ok || !e.Fresh(s.now(), s.cfg.CacheTTL) {
		return memorystore.Entry{}, false
	}
	return e, true
}

func (s *Selector) snapshot(ctx context.Context, upstream string) (market.Quote, normalize.ChartMeta, error) {
	payload, err := s.charts.Snapshot(ctx, upstream)
	if err != nil {
		return market.Quote{}, normalize.ChartMeta{}, err
	}
	return normalize.ChartQuote(payload, upstream)
}

func (s *Selector) basePrice(symbol string) float64 {
	base := s.bases.BasePrice(symbol)
	if !(base > 0) || math.IsInf(base, 0) {
		return fallbackBasePrice
	}
	return base
}

func (s *Selector) name(symbol string) string {
	if l, ok := s.bases.(instrumentLookup); ok {
		if in, ok := l.Instrument(symbol); ok && in.Name != "" {
			return in.Name
		}
	}
	return market.DisplaySymbol(symbol)
}

func (s *Selector) fail(route string, res *Result, t market.Tier, err error) {
	kind := market.KindOf(err)
	if res != nil {
		res.Attempts = append(res.Attempts, Attempt{Tier: t, Kind: kind, Error: err.Error()})
	}
	s.recorder.Failed(route, t, kind)
	s.logger.Warn("tier failed",
		zap.String("route", route),
		zap.String("tier", string(t)),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
}

// liveQuote prefers the meta snapshot and falls back to the series.
func liveQuote(display string, chart normalize.Chart) market.Quote {
	m := chart.Meta
	if m.Price > 0 {
		high, low := m.DayHigh, m.DayLow
		if high <= 0 || low <= 0 {
			q, _ := market.QuoteFromSeries(display, chart.Series, m.Currency, market.TierLive)
			high, low = q.High, q.Low
		}
		return market.NewQuote(display, m.Price, m.PreviousClose,
			math.Max(high, m.Price), math.Min(low, m.Price), m.Volume, m.Currency, market.TierLive)
	}
	q, _ := market.QuoteFromSeries(display, chart.Series, m.Currency, market.TierLive)
	return q
}

func marketOf(symbol string) string {
	if ex := market.ExchangeOf(symbol); ex != "" {
		return ex
	}
	return "NSE"
}
