package normalize

import (
	"fmt"

	"marketdash/internal/market"
)

// SeriesGenerator builds a synthetic series around a base price.
type SeriesGenerator interface {
	Series(base float64, count int) (market.Series, error)
}

// SeedSeries synthesizes a full series around a live snapshot price. The
// caller tags the result live-seeded-synthetic.
func SeedSeries(gen SeriesGenerator, price float64, count int) (market.Series, error) {
	series, err := gen.Series(price, count)
	if err != nil {
		return nil, fmt.Errorf("seed series at %v: %w", price, err)
	}
	return series, nil
}
