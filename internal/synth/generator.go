package synth

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"marketdash/internal/market"
)

var (
	ErrInvalidBase  = errors.New("base price must be a positive finite number")
	ErrInvalidCount = errors.New("point count must be positive")
)

// Params tunes the random walk. None of the constants are load-bearing; they
// only keep demo data visually plausible.
type Params struct {
	Points        int           // default series length
	Step          time.Duration // spacing between bars
	Volatility    float64       // max per-step move as a fraction of price
	Drift         float64       // upward bias per step as a fraction of price
	MeanReversion float64       // fraction of the distance to base recovered per step
	Band          float64       // price is clamped to base*(1±Band)
	SpreadMin     float64       // high/low inflation lower bound
	SpreadMax     float64       // high/low inflation upper bound
	VolumeMin     int64
	VolumeMax     int64
	TickStep      float64 // max live tick move as a fraction of price
	TickBias      float64 // centre of the live tick draw; <0.5 leans upward
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		Points:        60,
		Step:          5 * time.Minute,
		Volatility:    0.002,
		Drift:         0.0001,
		MeanReversion: 0,
		Band:          0.05,
		SpreadMin:     0.003,
		SpreadMax:     0.005,
		VolumeMin:     500_000,
		VolumeMax:     2_500_000,
		TickStep:      0.001,
		TickBias:      0.48,
	}
}

// Validate checks the parameters keep every generated bar well formed.
func (p Params) Validate() error {
	switch {
	case p.Points <= 0:
		return fmt.Errorf("points must be positive, got %d", p.Points)
	case p.Step <= 0:
		return fmt.Errorf("step must be positive, got %s", p.Step)
	case p.Volatility < 0 || p.Volatility >= 1:
		return fmt.Errorf("volatility must be in [0,1), got %v", p.Volatility)
	case p.MeanReversion < 0 || p.MeanReversion > 1:
		return fmt.Errorf("mean reversion must be in [0,1], got %v", p.MeanReversion)
	case p.Band <= 0 || p.Band >= 1:
		return fmt.Errorf("band must be in (0,1), got %v", p.Band)
	case p.SpreadMin <= 0 || p.SpreadMax < p.SpreadMin || p.SpreadMax >= 1:
		return fmt.Errorf("spread range [%v,%v] is invalid", p.SpreadMin, p.SpreadMax)
	case p.VolumeMin < 0 || p.VolumeMax <= p.VolumeMin:
		return fmt.Errorf("volume range [%d,%d) is invalid", p.VolumeMin, p.VolumeMax)
	case p.TickStep <= 0 || p.TickStep > 0.001:
		return fmt.Errorf("tick step must be in (0,0.001], got %v", p.TickStep)
	case p.TickBias < 0 || p.TickBias > 1:
		return fmt.Errorf("tick bias must be in [0,1], got %v", p.TickBias)
	}
	return nil
}

// Generator produces bounded random-walk series and live ticks. It is safe
// for concurrent use.
type Generator struct {
	params Params
	now    func() time.Time

	mu  sync.Mutex
	src Source
}

// Option customises a Generator.
type Option func(*Generator)

// WithClock pins the generator's notion of "now".
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator returns a generator drawing from src.
func NewGenerator(params Params, src Source, opts ...Option) (*Generator, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("synthetic params: %w", err)
	}
	if src == nil {
		src = NewTimeSource()
	}
	g := &Generator{params: params, src: src, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Params returns the generator configuration.
func (g *Generator) Params() Params {
	return g.params
}

// Series returns count bars spaced by the configured step, the last one at
// "now" truncated to the step. Every close stays within base*(1±Band).
func (g *Generator) Series(base float64, count int) (market.Series, error) {
	if !(base > 0) || math.IsInf(base, 0) {
		return nil, ErrInvalidBase
	}
	if count <= 0 {
		return nil, ErrInvalidCount
	}

	p := g.params
	floor, ceil := base*(1-p.Band), base*(1+p.Band)
	end := g.now().Truncate(p.Step)

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(market.Series, count)
	price := base
	for i := range out {
		price += (g.src.Float64()-0.5)*2*p.Volatility*price +
			p.Drift*price +
			p.MeanReversion*(base-price)
		price = math.Max(floor, math.Min(ceil, price))

		spread := p.SpreadMin + g.src.Float64()*(p.SpreadMax-p.SpreadMin)
		high := price * (1 + spread)
		low := price * (1 - spread)
		open := math.Max(low, math.Min(high, low+g.src.Float64()*(high-low)))

		out[i] = market.PricePoint{
			Timestamp: end.Add(-time.Duration(count-1-i) * p.Step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    p.VolumeMin + int64(g.src.Float64()*float64(p.VolumeMax-p.VolumeMin)),
		}
	}
	return out, nil
}

// NextPrice nudges current by at most TickStep of its value. The result is
// always positive; a non-positive input is returned unchanged.
func (g *Generator) NextPrice(current float64) float64 {
	if !(current > 0) || math.IsInf(current, 0) {
		return current
	}

	g.mu.Lock()
	u := g.src.Float64()
	g.mu.Unlock()

	next := current + (u-g.params.TickBias)*current*g.params.TickStep
	if !(next > 0) {
		return current
	}
	return next
}
