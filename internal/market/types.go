package market

import (
	"math"
	"time"
)

// Tier tags the provenance of a series or quote.
type Tier string

const (
	TierLive                Tier = "live"
	TierLiveSeededSynthetic Tier = "live-seeded-synthetic"
	TierCached              Tier = "cached"
	TierSynthetic           Tier = "synthetic"
)

// PricePoint is a single OHLCV bar.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Valid reports whether the bar is positive and internally consistent
// (low <= open,close <= high).
func (p PricePoint) Valid() bool {
	for _, v := range []float64{p.Open, p.High, p.Low, p.Close} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if p.Low > p.High {
		return false
	}
	if p.Open < p.Low || p.Open > p.High || p.Close < p.Low || p.Close > p.High {
		return false
	}
	return p.Volume >= 0
}

// Series is a chronologically ordered sequence of bars, oldest first.
type Series []PricePoint

// Valid reports whether every bar is valid and timestamps never go backwards.
func (s Series) Valid() bool {
	for i, p := range s {
		if !p.Valid() {
			return false
		}
		if i > 0 && p.Timestamp.Before(s[i-1].Timestamp) {
			return false
		}
	}
	return true
}

// Last returns the most recent bar. ok is false for an empty series.
func (s Series) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// Closes returns the close prices in series order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

// Quote is a point-in-time snapshot of an instrument.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        int64   `json:"volume"`
	Currency      string  `json:"currency"`
	Source        Tier    `json:"source"`
}

// NewQuote fills the derived change fields. A missing previous close is
// replaced by the price itself.
func NewQuote(symbol string, price, previousClose, high, low float64, volume int64, currency string, source Tier) Quote {
	if previousClose <= 0 {
		previousClose = price
	}
	change := price - previousClose
	return Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: previousClose,
		Change:        change,
		ChangePercent: change / previousClose * 100,
		High:          high,
		Low:           low,
		Volume:        volume,
		Currency:      currency,
		Source:        source,
	}
}

// QuoteFromSeries derives a quote from the first open and last close of a series.
func QuoteFromSeries(symbol string, s Series, currency string, source Tier) (Quote, bool) {
	last, ok := s.Last()
	if !ok {
		return Quote{}, false
	}
	high, low := last.High, last.Low
	var volume int64
	for _, p := range s {
		high = math.Max(high, p.High)
		low = math.Min(low, p.Low)
		volume += p.Volume
	}
	return NewQuote(symbol, last.Close, s[0].Open, high, low, volume, currency, source), true
}

// Instrument is static reference data used to seed synthetic generation.
type Instrument struct {
	Symbol    string  `json:"symbol" yaml:"symbol"`
	Name      string  `json:"name" yaml:"name"`
	Exchange  string  `json:"exchange" yaml:"exchange"`
	Sector    string  `json:"sector" yaml:"sector"`
	BasePrice float64 `json:"basePrice" yaml:"base_price"`
}

// Listing is one row of the upstream listing feed.
type Listing struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Exchange      string `json:"exchange"`
	AssetType     string `json:"assetType"`
	IPODate       string `json:"ipoDate"`
	DelistingDate string `json:"delistingDate,omitempty"`
	Status        string `json:"status"`
}

// Active reports whether the listing is currently traded.
func (l Listing) Active() bool {
	return l.Status == "Active"
}

// SearchResult is a normalized symbol-search hit.
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
}
