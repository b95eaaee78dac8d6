package analysis

import (
	"math"

	"marketdash/internal/market"
)

type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// SignalFor maps RSI and day change (percent) onto a hint. Oversold or a
// drop of more than 2% reads as buy; overbought or a gain above 3% as sell.
func SignalFor(rsi, changePercent float64) Signal {
	switch {
	case rsi < 30 || changePercent < -2:
		return SignalBuy
	case rsi > 70 || changePercent > 3:
		return SignalSell
	}
	return SignalHold
}

// Prediction is the one-line outlook shown next to a signal.
func (s Signal) Prediction() string {
	switch s {
	case SignalBuy:
		return "Bullish momentum expected"
	case SignalSell:
		return "Bearish correction likely"
	}
	return "Consolidation phase"
}

// Report summarises one symbol.
type Report struct {
	Symbol        string        `json:"symbol"`
	Name          string        `json:"name"`
	Price         float64       `json:"price"`
	Change        float64       `json:"change"`
	ChangePercent float64       `json:"changePercent"`
	RSI           float64       `json:"rsi"`
	MACD          float64       `json:"macd"`
	Signal        Signal        `json:"signal"`
	Strength      float64       `json:"strength"`
	Prediction    string        `json:"prediction"`
	Source        market.Tier   `json:"source"`
	Series        market.Series `json:"data,omitempty"`
}

// Analyze builds a report from a series and its quote. Change figures come
// from the quote; indicators from the series closes.
func Analyze(symbol, name string, series market.Series, q market.Quote) Report {
	closes := series.Closes()
	rsi := RSI(closes)
	signal := SignalFor(rsi, q.ChangePercent)

	return Report{
		Symbol:        symbol,
		Name:          name,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		RSI:           rsi,
		MACD:          MACD(closes),
		Signal:        signal,
		Strength:      math.Abs(rsi-neutralRSI) * 2,
		Prediction:    signal.Prediction(),
		Source:        q.Source,
		Series:        series,
	}
}
