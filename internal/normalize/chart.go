// Package normalize maps upstream payloads onto the canonical market types.
// Functions never panic on bad input; failures are market.UpstreamError
// values so callers can fall through to the next tier.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"marketdash/internal/market"
	"marketdash/pkg/yahoo"
)

// DefaultCurrency is assumed when the chart meta omits one.
const DefaultCurrency = "INR"

// ChartMeta is the normalized snapshot block of a chart payload.
type ChartMeta struct {
	Symbol        string // upstream ticker, suffix retained
	DisplaySymbol string // suffix stripped
	Name          string
	Currency      string
	Exchange      string
	Price         float64
	PreviousClose float64
	DayHigh       float64
	DayLow        float64
	Volume        int64
}

// Chart is a normalized chart payload.
type Chart struct {
	Meta   ChartMeta
	Series market.Series
}

// ChartSeries normalizes a chart payload into at most maxPoints bars,
// most recent last. Bars with neither open nor close are dropped.
func ChartSeries(payload []byte, symbol string, maxPoints int) (Chart, error) {
	const op = "chart series"

	res, err := decodeChart(op, payload)
	if err != nil {
		return Chart{}, err
	}
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return Chart{}, market.NoData(op)
	}

	q := res.Indicators.Quote[0]
	series := make(market.Series, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		open, high, low, closePrice := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		if open == 0 && closePrice == 0 {
			continue // no trades in this bar
		}
		if open == 0 {
			open = closePrice
		}
		if closePrice == 0 {
			closePrice = open
		}
		if high == 0 {
			high = closePrice
		}
		if low == 0 {
			low = closePrice
		}

		pt := market.PricePoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      open,
			High:      math.Max(high, math.Max(open, closePrice)),
			Low:       math.Min(low, math.Min(open, closePrice)),
			Close:     closePrice,
			Volume:    int64(math.Max(0, at(q.Volume, i))),
		}
		if !pt.Valid() {
			continue
		}
		series = append(series, pt)
	}

	sort.SliceStable(series, func(i, j int) bool { return series[i].Timestamp.Before(series[j].Timestamp) })
	series = Cap(series, maxPoints)
	if len(series) == 0 {
		return Chart{}, market.NoData(op)
	}

	return Chart{Meta: chartMeta(res.Meta, symbol), Series: series}, nil
}

// ChartQuote reads only the meta block of a chart payload. A positive
// regular market price is required.
func ChartQuote(payload []byte, symbol string) (market.Quote, ChartMeta, error) {
	const op = "chart quote"

	res, err := decodeChart(op, payload)
	if err != nil {
		return market.Quote{}, ChartMeta{}, err
	}
	meta := chartMeta(res.Meta, symbol)
	if !(meta.Price > 0) || math.IsInf(meta.Price, 0) {
		return market.Quote{}, ChartMeta{}, market.NoData(op)
	}

	high, low := meta.DayHigh, meta.DayLow
	if high <= 0 {
		high = meta.Price * 1.01
	}
	if low <= 0 {
		low = meta.Price * 0.99
	}
	q := market.NewQuote(meta.DisplaySymbol, meta.Price, meta.PreviousClose,
		math.Max(high, meta.Price), math.Min(low, meta.Price), meta.Volume, meta.Currency, market.TierLive)
	return q, meta, nil
}

// Cap keeps the last n bars. A non-positive n disables the cap.
func Cap(s market.Series, n int) market.Series {
	if n > 0 && len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

func decodeChart(op string, payload []byte) (*yahoo.ChartResult, error) {
	var resp yahoo.ChartResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, market.Malformed(op, err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, market.Malformed(op, fmt.Errorf("provider error %s: %s", e.Code, e.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return nil, market.NoData(op)
	}
	return &resp.Chart.Result[0], nil
}

func chartMeta(m yahoo.ChartMeta, requested string) ChartMeta {
	symbol := m.Symbol
	if symbol == "" {
		symbol = requested
	}
	display := market.DisplaySymbol(symbol)

	name := m.ShortName
	if name == "" {
		name = m.LongName
	}
	if name == "" {
		name = display
	}

	currency := m.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	prev := m.PreviousClose
	if prev <= 0 {
		prev = m.ChartPreviousClose
	}

	return ChartMeta{
		Symbol:        symbol,
		DisplaySymbol: display,
		Name:          name,
		Currency:      currency,
		Exchange:      exchangeName(m.ExchangeName, symbol),
		Price:         finite(m.RegularMarketPrice),
		PreviousClose: finite(prev),
		DayHigh:       finite(m.RegularMarketDayHigh),
		DayLow:        finite(m.RegularMarketDayLow),
		Volume:        int64(math.Max(0, finite(m.RegularMarketVolume))),
	}
}

// exchangeName maps provider exchange codes onto the dashboard's names.
func exchangeName(code, symbol string) string {
	switch code {
	case "NSI", "NSE":
		return "NSE"
	case "BSE", "BOM":
		return "BSE"
	}
	if ex := market.ExchangeOf(symbol); ex != "" {
		return ex
	}
	if code != "" {
		return code
	}
	return "NSE"
}

func at(v []*float64, i int) float64 {
	if i >= len(v) || v[i] == nil {
		return 0
	}
	return finite(*v[i])
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
