package server

import (
	"encoding/json"
	"net/http"
	"time"

	"marketdash/internal/analysis"
	"marketdash/internal/market"

	"github.com/shopspring/decimal"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

type pointDTO struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

func toPoints(s market.Series) []pointDTO {
	out := make([]pointDTO, len(s))
	for i, p := range s {
		out[i] = pointDTO{
			Timestamp: p.Timestamp.UTC(),
			Open:      round2(p.Open),
			High:      round2(p.High),
			Low:       round2(p.Low),
			Close:     round2(p.Close),
			Volume:    p.Volume,
		}
	}
	return out
}

func toQuote(q market.Quote) market.Quote {
	q.Price = round2(q.Price)
	q.PreviousClose = round2(q.PreviousClose)
	q.Change = round2(q.Change)
	q.ChangePercent = round2(q.ChangePercent)
	q.High = round2(q.High)
	q.Low = round2(q.Low)
	return q
}

func toQuotes(qs []market.Quote) []market.Quote {
	out := make([]market.Quote, len(qs))
	for i, q := range qs {
		out[i] = toQuote(q)
	}
	return out
}

type reportDTO struct {
	analysis.Report
	Data []pointDTO `json:"data,omitempty"`
}

func toReport(r analysis.Report, withSeries bool) reportDTO {
	out := reportDTO{Report: r}
	out.Price = round2(r.Price)
	out.Change = round2(r.Change)
	out.ChangePercent = round2(r.ChangePercent)
	out.RSI = round2(r.RSI)
	out.MACD = round2(r.MACD)
	out.Strength = round2(r.Strength)
	out.Series = nil
	if withSeries {
		out.Data = toPoints(r.Series)
	}
	return out
}
