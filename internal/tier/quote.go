package tier

import (
	"context"
	"math"
	"strings"

	"marketdash/internal/market"
	"marketdash/internal/normalize"

	"golang.org/x/sync/errgroup"
)

// Quote returns the best available quote: live snapshot, then a fresh cached
// entry, then a synthetic tick off the base price.
func (s *Selector) Quote(ctx context.Context, symbol string) market.Quote {
	upstream := market.UpstreamSymbol(symbol, s.cfg.DefaultSuffix)
	display := market.DisplaySymbol(upstream)

	q, _, err := s.snapshot(ctx, upstream)
	if err == nil {
		s.recorder.Served("quote", market.TierLive)
		return q
	}
	s.fail("quote", nil, market.TierLive, err)

	if e, ok := s.lookup(ctx, quoteKey(upstream)); ok {
		q = e.Quote
		q.Symbol = display
		q.Source = market.TierCached
		s.recorder.Served("quote", market.TierCached)
		return q
	}

	s.recorder.Served("quote", market.TierSynthetic)
	return s.syntheticQuote(upstream)
}

func (s *Selector) syntheticQuote(upstream string) market.Quote {
	base := s.basePrice(upstream)
	price := s.gen.NextPrice(base)
	return market.NewQuote(market.DisplaySymbol(upstream), price, base,
		math.Max(price, base), math.Min(price, base), 0, normalize.DefaultCurrency, market.TierSynthetic)
}

// Quotes fetches quotes for up to MaxQuoteSymbols distinct symbols with
// bounded concurrency. Output order follows first appearance in symbols;
// a failing symbol degrades to a lower tier and never fails the batch.
func (s *Selector) Quotes(ctx context.Context, symbols []string) []market.Quote {
	unique := Dedupe(symbols, s.cfg.MaxQuoteSymbols)
	out := make([]market.Quote, len(unique))

	var g errgroup.Group
	g.SetLimit(s.cfg.QuoteConcurrency)
	for i, sym := range unique {
		g.Go(func() error {
			out[i] = s.Quote(ctx, sym)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Dedupe trims, uppercases and collapses duplicate symbols by display form,
// keeping at most limit entries. A non-positive limit keeps all.
func Dedupe(symbols []string, limit int) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		key := market.DisplaySymbol(sym)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, sym)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
