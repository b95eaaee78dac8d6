package tier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketdash/internal/market"
	"marketdash/internal/memorystore"
	"marketdash/internal/synth"
	"marketdash/pkg/yahoo"

	"go.uber.org/zap/zaptest"
)

type fixedBases map[string]float64

func (b fixedBases) BasePrice(symbol string) float64 {
	if p, ok := b[market.DisplaySymbol(symbol)]; ok {
		return p
	}
	return 1000
}

type countingRecorder struct {
	mu     sync.Mutex
	served map[market.Tier]int
	failed map[market.Tier]int
}

func newRecorder() *countingRecorder {
	return &countingRecorder{served: map[market.Tier]int{}, failed: map[market.Tier]int{}}
}

func (r *countingRecorder) Served(_ string, t market.Tier) {
	r.mu.Lock()
	r.served[t]++
	r.mu.Unlock()
}

func (r *countingRecorder) Failed(_ string, t market.Tier, _ market.ErrorKind) {
	r.mu.Lock()
	r.failed[t]++
	r.mu.Unlock()
}

// upstream fakes the chart API. chart handles interval != 1d, snapshot the 1d meta call.
type upstream struct {
	mu       sync.Mutex
	chart    http.HandlerFunc
	snapshot http.HandlerFunc
	calls    atomic.Int32
}

func (u *upstream) setChart(h http.HandlerFunc) {
	u.mu.Lock()
	u.chart = h
	u.mu.Unlock()
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.calls.Add(1)
	u.mu.Lock()
	chart, snapshot := u.chart, u.snapshot
	u.mu.Unlock()

	if r.URL.Query().Get("interval") == "1d" && r.URL.Query().Get("range") == "1d" {
		snapshot(w, r)
		return
	}
	chart(w, r)
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(code), code)
	}
}

func body(s string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s))
	}
}

const liveChart = `{"chart":{"result":[{
	"meta":{"currency":"INR","symbol":"TCS.NS","exchangeName":"NSI","shortName":"TATA CONSULTANCY SERV LT",
		"regularMarketPrice":3855,"previousClose":3850,"regularMarketDayHigh":3870,"regularMarketDayLow":3840,"regularMarketVolume":5000},
	"timestamp":[1700000000,1700000300,1700000600],
	"indicators":{"quote":[{"open":[3850,3852,3854],"high":[3853,3856,3858],"low":[3848,3850,3852],"close":[3852,3854,3855],"volume":[100,200,300]}]}
}]}}`

func newTestSelector(t *testing.T, u *upstream, bases fixedBases, opts ...Option) *Selector {
	t.Helper()
	srv := httptest.NewServer(u)
	t.Cleanup(srv.Close)

	gen, err := synth.NewGenerator(synth.DefaultParams(), synth.NewSource(7))
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	client := yahoo.NewRESTClient(srv.URL, "", 2*time.Second)
	cfg := Config{Points: 60, MaxPoints: 100, DefaultSuffix: ".NS", CacheTTL: time.Minute}
	return NewSelector(client, bases, gen, cfg, zaptest.NewLogger(t), opts...)
}

func closesWithin(t *testing.T, s market.Series, lo, hi float64) {
	t.Helper()
	for i, p := range s {
		if p.Close < lo || p.Close > hi {
			t.Fatalf("close[%d]=%v outside [%v,%v]", i, p.Close, lo, hi)
		}
	}
}

// go test -v --run TestSeriesPrimaryLive
func TestSeriesPrimaryLive(t *testing.T) {
	store := memorystore.NewSeriesStore()
	u := &upstream{chart: body(liveChart), snapshot: status(http.StatusInternalServerError)}
	sel := newTestSelector(t, u, nil, WithStore(store))

	res := sel.Series(context.Background(), "TCS", "")
	if res.Tier != market.TierLive {
		t.Fatalf("expected live tier, got %s (%+v)", res.Tier, res.Attempts)
	}
	if res.Symbol != "TCS.NS" || res.DisplaySymbol != "TCS" || res.Market != "NSE" {
		t.Errorf("unexpected identity %+v", res)
	}
	if len(res.Series) != 3 || res.Quote.Price != 3855 || res.Quote.Source != market.TierLive {
		t.Errorf("unexpected payload: %d points, quote %+v", len(res.Series), res.Quote)
	}
	if res.Interval != yahoo.DefaultInterval {
		t.Errorf("expected default interval, got %s", res.Interval)
	}
	if u.calls.Load() != 1 {
		t.Errorf("expected one upstream call, got %d", u.calls.Load())
	}
	if e, ok, _ := store.Get(context.Background(), "TCS.NS|5min"); !ok || len(e.Series) != 3 {
		t.Error("live series was not stored under ticker and interval")
	}
	if e, ok, _ := store.Get(context.Background(), "TCS.NS"); !ok || e.Quote.Price != 3855 {
		t.Error("live quote was not stored under ticker")
	}
}

// go test -v --run TestSeriesSeededFromSnapshot
func TestSeriesSeededFromSnapshot(t *testing.T) {
	rec := newRecorder()
	u := &upstream{
		chart:    status(http.StatusTooManyRequests),
		snapshot: body(`{"chart":{"result":[{"meta":{"regularMarketPrice":100}}]}}`),
	}
	sel := newTestSelector(t, u, nil, WithRecorder(rec))

	res := sel.Series(context.Background(), "INFY", yahoo.Interval5Min)
	if res.Tier != market.TierLiveSeededSynthetic {
		t.Fatalf("expected live-seeded-synthetic, got %s", res.Tier)
	}
	if len(res.Series) != 60 {
		t.Fatalf("expected 60 points, got %d", len(res.Series))
	}
	if !res.Series.Valid() {
		t.Fatal("seeded series is invalid")
	}
	closesWithin(t, res.Series, 95, 105)

	if len(res.Attempts) != 1 || res.Attempts[0].Kind != market.KindUnavailable {
		t.Errorf("unexpected attempts %+v", res.Attempts)
	}
	if rec.failed[market.TierLive] != 1 || rec.served[market.TierLiveSeededSynthetic] != 1 {
		t.Errorf("unexpected metrics served=%v failed=%v", rec.served, rec.failed)
	}
	if res.Quote.Price != 100 || res.Quote.Source != market.TierLiveSeededSynthetic {
		t.Errorf("unexpected quote %+v", res.Quote)
	}
}

// go test -v --run TestSeriesSyntheticFallback
func TestSeriesSyntheticFallback(t *testing.T) {
	u := &upstream{chart: status(http.StatusServiceUnavailable), snapshot: body(`not json`)}
	sel := newTestSelector(t, u, fixedBases{"RELIANCE": 2890})

	res := sel.Series(context.Background(), "RELIANCE.BSE", "")
	if res.Tier != market.TierSynthetic {
		t.Fatalf("expected synthetic, got %s", res.Tier)
	}
	if res.Symbol != "RELIANCE.BO" || res.Market != "BSE" {
		t.Errorf("unexpected identity %s %s", res.Symbol, res.Market)
	}
	if len(res.Series) != 60 || !res.Series.Valid() {
		t.Fatalf("bad synthetic series: %d points", len(res.Series))
	}
	closesWithin(t, res.Series, 2890*0.95, 2890*1.05)

	if len(res.Attempts) != 2 {
		t.Fatalf("expected 2 failed attempts, got %+v", res.Attempts)
	}
	if res.Attempts[1].Kind != market.KindMalformed {
		t.Errorf("expected malformed snapshot, got %s", res.Attempts[1].Kind)
	}
	if u.calls.Load() != 2 {
		t.Errorf("expected two upstream calls, got %d", u.calls.Load())
	}
}

// go test -v --run TestSeriesCachedTier
func TestSeriesCachedTier(t *testing.T) {
	store := memorystore.NewSeriesStore()
	now := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	u := &upstream{chart: body(liveChart), snapshot: body(`{"chart":{"result":[]}}`)}
	sel := newTestSelector(t, u, nil, WithStore(store), WithClock(clock))

	if res := sel.Series(context.Background(), "TCS", ""); res.Tier != market.TierLive {
		t.Fatalf("warm-up expected live, got %s", res.Tier)
	}

	u.setChart(status(http.StatusBadGateway))
	now = now.Add(30 * time.Second)
	res := sel.Series(context.Background(), "TCS", "")
	if res.Tier != market.TierCached {
		t.Fatalf("expected cached, got %s", res.Tier)
	}
	if len(res.Series) != 3 || res.Quote.Source != market.TierCached || res.Name != "TATA CONSULTANCY SERV LT" {
		t.Errorf("unexpected cached result %+v", res)
	}

	// past the ttl the cache no longer serves
	now = now.Add(2 * time.Minute)
	if res := sel.Series(context.Background(), "TCS", ""); res.Tier != market.TierSynthetic {
		t.Fatalf("expected synthetic after expiry, got %s", res.Tier)
	}
}

// go test -v --run TestSeriesCacheScopedByIntervalAndExchange
func TestSeriesCacheScopedByIntervalAndExchange(t *testing.T) {
	store := memorystore.NewSeriesStore()
	u := &upstream{chart: body(liveChart), snapshot: status(http.StatusTooManyRequests)}
	sel := newTestSelector(t, u, nil, WithStore(store))

	if res := sel.Series(context.Background(), "TCS", yahoo.IntervalDaily); res.Tier != market.TierLive {
		t.Fatalf("warm-up expected live, got %s", res.Tier)
	}
	u.setChart(status(http.StatusTooManyRequests))

	tests := []struct {
		symbol   string
		interval yahoo.Interval
		want     market.Tier
	}{
		{"TCS", yahoo.Interval1Min, market.TierSynthetic},
		{"TCS.BSE", yahoo.IntervalDaily, market.TierSynthetic},
		{"TCS.NS", yahoo.IntervalDaily, market.TierCached},
	}
	for _, tt := range tests {
		res := sel.Series(context.Background(), tt.symbol, tt.interval)
		if res.Tier != tt.want {
			t.Errorf("%s %s: expected %s, got %s", tt.symbol, tt.interval, tt.want, res.Tier)
		}
		if res.Interval != tt.interval {
			t.Errorf("%s: interval %s, want %s", tt.symbol, res.Interval, tt.interval)
		}
	}

	// quotes are not interval scoped
	if q := sel.Quote(context.Background(), "TCS"); q.Source != market.TierCached || q.Price != 3855 || q.Symbol != "TCS" {
		t.Errorf("unexpected quote %+v", q)
	}
	if q := sel.Quote(context.Background(), "TCS.BSE"); q.Source != market.TierSynthetic {
		t.Errorf("BSE quote served from NSE cache: %+v", q)
	}
}

func TestSeriesContextCanceled(t *testing.T) {
	u := &upstream{chart: body(liveChart), snapshot: body(liveChart)}
	sel := newTestSelector(t, u, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := sel.Series(ctx, "TCS", "")
	if res.Tier != market.TierSynthetic || len(res.Series) == 0 {
		t.Fatalf("expected synthetic on canceled context, got %s", res.Tier)
	}
}

// go test -v --run TestQuotes
func TestQuotes(t *testing.T) {
	u := &upstream{
		chart: status(http.StatusNotFound),
		snapshot: func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "FAIL") {
				http.Error(w, "nope", http.StatusTooManyRequests)
				return
			}
			body(`{"chart":{"result":[{"meta":{"regularMarketPrice":250,"previousClose":200}}]}}`)(w, r)
		},
	}
	sel := newTestSelector(t, u, fixedBases{"FAIL": 500})

	quotes := sel.Quotes(context.Background(), []string{"tcs", "FAIL", "TCS.NS", " ", "INFY"})
	if len(quotes) != 3 {
		t.Fatalf("expected 3 quotes after dedupe, got %d", len(quotes))
	}
	if quotes[0].Symbol != "TCS" || quotes[1].Symbol != "FAIL" || quotes[2].Symbol != "INFY" {
		t.Fatalf("order not preserved: %+v", quotes)
	}
	if quotes[0].Source != market.TierLive || quotes[0].Change != 50 || quotes[0].ChangePercent != 25 {
		t.Errorf("unexpected live quote %+v", quotes[0])
	}
	fail := quotes[1]
	if fail.Source != market.TierSynthetic || fail.PreviousClose != 500 {
		t.Errorf("unexpected synthetic quote %+v", fail)
	}
	if fail.Price < 500*0.999 || fail.Price > 500*1.001 {
		t.Errorf("synthetic tick moved too far: %v", fail.Price)
	}
}

func TestDedupeLimit(t *testing.T) {
	got := Dedupe([]string{"a", "b", "A.NS", "c", "d"}, 3)
	if strings.Join(got, ",") != "A,B,C" {
		t.Fatalf("unexpected dedupe result %v", got)
	}
}
