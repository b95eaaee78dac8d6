package listing

import (
	"context"
	"errors"
	"strings"

	"marketdash/internal/market"
	"marketdash/internal/normalize"

	"go.uber.org/zap"
)

const (
	SearchSourceYahoo = "yahoo"
	SearchSourceAlpha = "alpha_vantage"
	SearchSourceLocal = "local"

	yahooSearchCount = 30
)

var ErrEmptyQuery = errors.New("search query is required")

// ChartSearch is the chart provider's symbol search.
type ChartSearch interface {
	Search(ctx context.Context, query string, count int) ([]byte, error)
}

// KeywordSearch is the listing provider's symbol search.
type KeywordSearch interface {
	SymbolSearch(ctx context.Context, keywords string) ([]byte, error)
}

type SearchResult struct {
	Results []market.SearchResult
	Source  string
}

// Searcher resolves a query against the chart provider, then the listing
// provider, then the static instrument table. Either provider may be nil.
type Searcher struct {
	yahoo       ChartSearch
	alpha       KeywordSearch
	instruments []market.Instrument
	logger      *zap.Logger
}

func NewSearcher(yahoo ChartSearch, alpha KeywordSearch, instruments []market.Instrument, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{yahoo: yahoo, alpha: alpha, instruments: instruments, logger: logger}
}

func (s *Searcher) Search(ctx context.Context, query, mkt string) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, ErrEmptyQuery
	}
	mkt = strings.ToUpper(strings.TrimSpace(mkt))

	if s.yahoo != nil {
		q := query
		if mkt == normalize.MarketIndia {
			q = query + ".NS " + query + ".BO"
		}
		payload, err := s.yahoo.Search(ctx, q, yahooSearchCount)
		if err == nil {
			var results []market.SearchResult
			results, err = normalize.YahooSearch(payload, mkt)
			if err == nil {
				return SearchResult{Results: results, Source: SearchSourceYahoo}, nil
			}
		}
		s.logger.Warn("chart search failed", zap.String("query", query), zap.String("kind", string(market.KindOf(err))), zap.Error(err))
	}

	if ctx.Err() == nil && s.alpha != nil {
		payload, err := s.alpha.SymbolSearch(ctx, query)
		if err == nil {
			var results []market.SearchResult
			results, err = normalize.AlphaVantageSearch(payload, mkt)
			if err == nil {
				return SearchResult{Results: results, Source: SearchSourceAlpha}, nil
			}
		}
		s.logger.Warn("keyword search failed", zap.String("query", query), zap.String("kind", string(market.KindOf(err))), zap.Error(err))
	}

	return SearchResult{
		Results: normalize.InstrumentSearch(s.instruments, query),
		Source:  SearchSourceLocal,
	}, nil
}
