package normalize

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"marketdash/internal/market"
	"marketdash/pkg/alphavantage"
)

// Listings parses the delimited listing feed. Column positions come from the
// header row when it names them; otherwise the documented order is assumed.
// Rows without a symbol are skipped.
func Listings(payload []byte) ([]market.Listing, error) {
	const op = "listings"

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, market.NoData(op)
	}
	if trimmed[0] == '{' {
		// rate-limit and error notices come back as JSON
		var n alphavantage.Notice
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, market.Malformed(op, err)
		}
		return nil, market.Malformed(op, errors.New(orDefault(n.Message(), "unexpected JSON payload")))
	}

	r := csv.NewReader(bytes.NewReader(trimmed))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	first, err := r.Read()
	if err != nil {
		return nil, market.Malformed(op, err)
	}

	cols, hasHeader := headerColumns(first)
	var out []market.Listing
	if !hasHeader {
		if l, ok := listingRow(first, cols); ok {
			out = append(out, l)
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				continue
			}
			return nil, market.Malformed(op, err)
		}
		if l, ok := listingRow(row, cols); ok {
			out = append(out, l)
		}
	}

	if len(out) == 0 {
		return nil, market.NoData(op)
	}
	return out, nil
}

type listingColumns struct {
	symbol, name, exchange, assetType, ipoDate, delistingDate, status int
}

func headerColumns(row []string) (listingColumns, bool) {
	idx := map[string]int{}
	for i, h := range row {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["symbol"]; !ok {
		return listingColumns{0, 1, 2, 3, 4, 5, 6}, false
	}
	get := func(name string) int {
		if i, ok := idx[strings.ToLower(name)]; ok {
			return i
		}
		return -1
	}
	return listingColumns{
		symbol:        get("symbol"),
		name:          get("name"),
		exchange:      get("exchange"),
		assetType:     get("assetType"),
		ipoDate:       get("ipoDate"),
		delistingDate: get("delistingDate"),
		status:        get("status"),
	}, true
}

func listingRow(row []string, c listingColumns) (market.Listing, bool) {
	field := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	l := market.Listing{
		Symbol:        field(c.symbol),
		Name:          field(c.name),
		Exchange:      field(c.exchange),
		AssetType:     field(c.assetType),
		IPODate:       field(c.ipoDate),
		DelistingDate: field(c.delistingDate),
		Status:        field(c.status),
	}
	// six-column rows carry no delisting date; status is the last field
	if c.status == 6 && len(row) == 6 {
		l.DelistingDate = ""
		l.Status = field(5)
	}
	if l.Symbol == "" || len(row) < 3 {
		return market.Listing{}, false
	}
	if strings.EqualFold(l.DelistingDate, "null") {
		l.DelistingDate = ""
	}
	return l, true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
