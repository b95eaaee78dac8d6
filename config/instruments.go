package config

import (
	_ "embed"
	"fmt"
	"strings"

	"marketdash/internal/market"

	"gopkg.in/yaml.v3"
)

//go:embed instruments.yaml
var instrumentsYAML []byte

// Instruments is the static reference table keyed by display symbol.
type Instruments struct {
	list        []market.Instrument
	bySymbol    map[string]int
	overrides   map[string]float64
	defaultBase float64
}

// LoadInstruments parses the embedded table and applies base price
// overrides. Override keys are display symbols, matched case-insensitively.
func LoadInstruments(cfg SyntheticConfig) (*Instruments, error) {
	return ParseInstruments(instrumentsYAML, cfg)
}

// ParseInstruments is LoadInstruments over an explicit document.
func ParseInstruments(doc []byte, cfg SyntheticConfig) (*Instruments, error) {
	var file struct {
		Instruments []market.Instrument `yaml:"instruments"`
	}
	if err := yaml.Unmarshal(doc, &file); err != nil {
		return nil, fmt.Errorf("parse instruments: %w", err)
	}

	t := &Instruments{
		list:        make([]market.Instrument, 0, len(file.Instruments)),
		bySymbol:    make(map[string]int, len(file.Instruments)),
		overrides:   make(map[string]float64, len(cfg.BasePrices)),
		defaultBase: cfg.DefaultBasePrice,
	}
	for sym, p := range cfg.BasePrices {
		t.overrides[market.DisplaySymbol(sym)] = p
	}
	for _, in := range file.Instruments {
		key := market.DisplaySymbol(in.Symbol)
		if key == "" || in.BasePrice <= 0 {
			return nil, fmt.Errorf("instrument %q: symbol and positive base_price are required", in.Symbol)
		}
		if _, dup := t.bySymbol[key]; dup {
			continue
		}
		if p, ok := t.overrides[key]; ok {
			in.BasePrice = p
		}
		t.bySymbol[key] = len(t.list)
		t.list = append(t.list, in)
	}
	if t.defaultBase <= 0 {
		t.defaultBase = 1000
	}
	return t, nil
}

// All returns the instruments in table order. The slice must not be modified.
func (t *Instruments) All() []market.Instrument {
	return t.list
}

// Instrument looks a symbol up by its display form.
func (t *Instruments) Instrument(symbol string) (market.Instrument, bool) {
	i, ok := t.bySymbol[market.DisplaySymbol(symbol)]
	if !ok {
		return market.Instrument{}, false
	}
	return t.list[i], true
}

// BasePrice resolves the synthetic base: config override, then table, then
// the configured default.
func (t *Instruments) BasePrice(symbol string) float64 {
	key := market.DisplaySymbol(symbol)
	if p, ok := t.overrides[key]; ok {
		return p
	}
	if i, ok := t.bySymbol[key]; ok {
		return t.list[i].BasePrice
	}
	return t.defaultBase
}

// Symbols returns the first n display symbols, or all when n <= 0.
func (t *Instruments) Symbols(n int) []string {
	if n <= 0 || n > len(t.list) {
		n = len(t.list)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = strings.ToUpper(market.DisplaySymbol(t.list[i].Symbol))
	}
	return out
}
