package market

import "strings"

// exchangeSuffixes lists the market suffixes stripped for display.
var exchangeSuffixes = []string{".NS", ".BO", ".BSE", ".NSE"}

// DisplaySymbol strips a known exchange suffix: "RELIANCE.BSE" → "RELIANCE".
func DisplaySymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, suffix := range exchangeSuffixes {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}

// UpstreamSymbol returns the ticker used for chart lookups. An existing
// suffix is retained (".BSE" and ".NSE" are rewritten to the chart
// provider's ".BO" and ".NS"); a bare ticker gets defaultSuffix.
func UpstreamSymbol(symbol, defaultSuffix string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, ".BSE"):
		return strings.TrimSuffix(s, ".BSE") + ".BO"
	case strings.HasSuffix(s, ".NSE"):
		return strings.TrimSuffix(s, ".NSE") + ".NS"
	case strings.Contains(s, "."), strings.HasPrefix(s, "^"):
		return s
	}
	return s + defaultSuffix
}

// ExchangeOf guesses the exchange from a suffixed ticker. Empty when unknown.
func ExchangeOf(symbol string) string {
	s := strings.ToUpper(symbol)
	switch {
	case strings.HasSuffix(s, ".NS"), strings.HasSuffix(s, ".NSE"):
		return "NSE"
	case strings.HasSuffix(s, ".BO"), strings.HasSuffix(s, ".BSE"):
		return "BSE"
	}
	return ""
}
