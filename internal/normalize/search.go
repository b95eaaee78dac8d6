package normalize

import (
	"encoding/json"
	"errors"
	"strings"

	"marketdash/internal/market"
	"marketdash/pkg/alphavantage"
	"marketdash/pkg/yahoo"
)

// MarketIndia restricts search results to NSE/BSE listings.
const MarketIndia = "IN"

// YahooSearch normalizes a chart-provider search payload. For MarketIndia
// only NSE/BSE hits are kept, otherwise only equities.
func YahooSearch(payload []byte, mkt string) ([]market.SearchResult, error) {
	const op = "yahoo search"

	var resp yahoo.SearchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, market.Malformed(op, err)
	}

	out := make([]market.SearchResult, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		if q.Symbol == "" {
			continue
		}
		if mkt == MarketIndia {
			if market.ExchangeOf(q.Symbol) == "" && !indianExchangeCode(q.Exchange) {
				continue
			}
		} else if q.QuoteType != "EQUITY" {
			continue
		}

		display := market.DisplaySymbol(q.Symbol)
		name := q.ShortName
		if name == "" {
			name = q.LongName
		}
		if name == "" {
			name = display
		}
		kind := q.QuoteType
		if kind == "" {
			kind = "Stock"
		}
		out = append(out, market.SearchResult{
			Symbol:   display,
			Name:     name,
			Exchange: exchangeName(q.Exchange, q.Symbol),
			Type:     kind,
		})
	}
	return out, nil
}

// AlphaVantageSearch normalizes a SYMBOL_SEARCH payload. A rate-limit notice
// without matches is malformed.
func AlphaVantageSearch(payload []byte, mkt string) ([]market.SearchResult, error) {
	const op = "alphavantage search"

	var resp alphavantage.SearchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, market.Malformed(op, err)
	}
	if resp.BestMatches == nil {
		return nil, market.Malformed(op, errors.New(orDefault(resp.Message(), "missing bestMatches")))
	}

	out := make([]market.SearchResult, 0, len(resp.BestMatches))
	for _, m := range resp.BestMatches {
		if mkt == MarketIndia && m.Region != "India" {
			continue
		}
		symbol, _, _ := strings.Cut(m.Symbol, ".")
		if symbol == "" {
			continue
		}
		exchange := m.Region
		if m.Region == "India" {
			exchange = "NSE"
			if market.ExchangeOf(m.Symbol) == "BSE" {
				exchange = "BSE"
			}
		}
		kind := m.Type
		if kind == "" {
			kind = "Stock"
		}
		out = append(out, market.SearchResult{
			Symbol:   strings.ToUpper(symbol),
			Name:     m.Name,
			Exchange: exchange,
			Type:     kind,
		})
	}
	return out, nil
}

// InstrumentSearch matches query against the static instrument table by
// symbol or name, case-insensitively.
func InstrumentSearch(instruments []market.Instrument, query string) []market.SearchResult {
	q := strings.ToUpper(strings.TrimSpace(query))
	var out []market.SearchResult
	for _, in := range instruments {
		display := market.DisplaySymbol(in.Symbol)
		if !strings.Contains(display, q) && !strings.Contains(strings.ToUpper(in.Name), q) {
			continue
		}
		out = append(out, market.SearchResult{
			Symbol:   display,
			Name:     in.Name,
			Exchange: in.Exchange,
			Type:     "Stock",
		})
	}
	return out
}

func indianExchangeCode(code string) bool {
	switch code {
	case "NSI", "NSE", "BSE", "BOM":
		return true
	}
	return false
}
