// Package analysis derives illustrative technical indicators and a
// buy/sell/hold hint from a price series. None of it is investment advice.
package analysis

const (
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	neutralRSI = 50.0
)

// RSI computes a simple-average RSI over the first rsiPeriod changes.
// It returns 50 when fewer than rsiPeriod closes are given and 100 when
// there are no losses.
func RSI(closes []float64) float64 {
	if len(closes) < rsiPeriod {
		return neutralRSI
	}

	var gains, losses float64
	for i := 1; i < min(rsiPeriod+1, len(closes)); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change // make positive
		}
	}
	avgGain := gains / rsiPeriod
	avgLoss := losses / rsiPeriod

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// EMA returns the exponential moving average of closes, seeded with the
// simple average of the first period values. ok is false when there are
// fewer than period closes.
func EMA(closes []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}

	var sum float64
	for _, c := range closes[:period] {
		sum += c
	}
	current := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for _, c := range closes[period:] {
		current = c*multiplier + current*(1-multiplier)
	}
	return current, true
}

// MACD is EMA12 minus EMA26 over the whole series, 0 when the series is too short.
func MACD(closes []float64) float64 {
	fast, ok := EMA(closes, macdFast)
	if !ok {
		return 0
	}
	slow, ok := EMA(closes, macdSlow)
	if !ok {
		return 0
	}
	return fast - slow
}
