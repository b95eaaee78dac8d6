package normalize

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"marketdash/internal/market"
)

const chartPayload = `{"chart":{"result":[{
	"meta":{"currency":"INR","symbol":"RELIANCE.NS","exchangeName":"NSI","shortName":"RELIANCE INDUSTRIES",
		"regularMarketPrice":2901.5,"previousClose":2880.0,"regularMarketDayHigh":2910,"regularMarketDayLow":2875,
		"regularMarketVolume":1234567},
	"timestamp":[1700000600,1700000000,1700000300,1700000900],
	"indicators":{"quote":[{
		"open":  [2895.0, 2890.0, 0,    null],
		"high":  [2899.0, 2893.0, 0,    2902.0],
		"low":   [2891.0, 2888.0, 0,    null],
		"close": [2897.0, 2891.0, 0,    2900.0],
		"volume":[1000,   2000,   0,    null]
	}]}
}],"error":null}}`

// go test -v --run TestChartSeries
func TestChartSeries(t *testing.T) {
	chart, err := ChartSeries([]byte(chartPayload), "RELIANCE", 100)
	if err != nil {
		t.Fatalf("ChartSeries: %v", err)
	}

	// index 2 has open=0 and close=0 and must be dropped
	if len(chart.Series) != 3 {
		t.Fatalf("expected 3 points, got %d: %+v", len(chart.Series), chart.Series)
	}
	if !chart.Series.Valid() {
		t.Fatalf("invalid series: %+v", chart.Series)
	}
	for _, p := range chart.Series {
		if p.Timestamp.Unix() == 1700000300 {
			t.Fatal("zero bar was emitted")
		}
	}
	if chart.Series[0].Timestamp.Unix() != 1700000000 {
		t.Errorf("series not sorted: first ts %d", chart.Series[0].Timestamp.Unix())
	}

	// missing open/low filled from close
	last := chart.Series[2]
	if last.Open != 2900 || last.Low != 2900 || last.High != 2902 || last.Volume != 0 {
		t.Errorf("unexpected filled bar %+v", last)
	}

	if chart.Meta.DisplaySymbol != "RELIANCE" || chart.Meta.Symbol != "RELIANCE.NS" {
		t.Errorf("unexpected symbols %+v", chart.Meta)
	}
	if chart.Meta.Exchange != "NSE" || chart.Meta.Name != "RELIANCE INDUSTRIES" {
		t.Errorf("unexpected meta %+v", chart.Meta)
	}
}

func TestChartSeriesCap(t *testing.T) {
	var ts, vals []string
	for i := 0; i < 150; i++ {
		ts = append(ts, fmt.Sprint(1700000000+i*300))
		vals = append(vals, fmt.Sprint(100+i))
	}
	payload := fmt.Sprintf(`{"chart":{"result":[{"meta":{},"timestamp":[%s],
		"indicators":{"quote":[{"open":[%[2]s],"high":[%[2]s],"low":[%[2]s],"close":[%[2]s],"volume":[]}]}}]}}`,
		strings.Join(ts, ","), strings.Join(vals, ","))

	chart, err := ChartSeries([]byte(payload), "TCS", 60)
	if err != nil {
		t.Fatalf("ChartSeries: %v", err)
	}
	if len(chart.Series) != 60 {
		t.Fatalf("expected 60 points, got %d", len(chart.Series))
	}
	if chart.Series[59].Close != 249 {
		t.Errorf("expected most recent bar last, got %v", chart.Series[59].Close)
	}
	if chart.Meta.DisplaySymbol != "TCS" || chart.Meta.Currency != DefaultCurrency {
		t.Errorf("unexpected meta defaults %+v", chart.Meta)
	}
}

func TestChartSeriesErrors(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `<html>Too Many Requests</html>`, market.ErrUpstreamMalformed},
		{"provider error", `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, market.ErrUpstreamMalformed},
		{"empty result", `{"chart":{"result":[]}}`, market.ErrNoUsableData},
		{"no timestamps", `{"chart":{"result":[{"meta":{"regularMarketPrice":10}}]}}`, market.ErrNoUsableData},
		{"all null", `{"chart":{"result":[{"timestamp":[1,2],"indicators":{"quote":[{"open":[null,null],"close":[null,null]}]}}]}}`, market.ErrNoUsableData},
		{"short arrays", `{"chart":{"result":[{"timestamp":[1,2,3],"indicators":{"quote":[{"open":[1]}]}}]}}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ChartSeries([]byte(tc.payload), "X", 100)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestChartQuote(t *testing.T) {
	q, meta, err := ChartQuote([]byte(chartPayload), "RELIANCE")
	if err != nil {
		t.Fatalf("ChartQuote: %v", err)
	}
	if q.Symbol != "RELIANCE" || q.Price != 2901.5 || q.PreviousClose != 2880 {
		t.Errorf("unexpected quote %+v", q)
	}
	if q.Change != 21.5 || q.Source != market.TierLive || q.Volume != 1234567 {
		t.Errorf("unexpected derived fields %+v", q)
	}
	if meta.Currency != "INR" {
		t.Errorf("unexpected currency %q", meta.Currency)
	}

	q, _, err = ChartQuote([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":100}}]}}`), "TCS.NS")
	if err != nil {
		t.Fatalf("ChartQuote: %v", err)
	}
	if q.High != 101 || q.Low != 99 || q.PreviousClose != 100 || q.Symbol != "TCS" {
		t.Errorf("defaults not applied: %+v", q)
	}

	if _, _, err := ChartQuote([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":0}}]}}`), "TCS"); !errors.Is(err, market.ErrNoUsableData) {
		t.Errorf("expected no data for zero price, got %v", err)
	}
}

func TestListings(t *testing.T) {
	csv := "symbol,name,exchange,assetType,ipoDate,delistingDate,status\r\n" +
		"RELIANCE.BSE,Reliance Industries Limited,BSE,Stock,1977-01-01,null,Active\r\n" +
		"OLDCO,Old Co,NSE,Stock,1990-01-01,2010-01-01,Delisted\r\n" +
		",missing symbol,NSE,Stock,2000-01-01,null,Active\r\n" +
		"SHORT\r\n"

	rows, err := Listings([]byte(csv))
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Symbol != "RELIANCE.BSE" || !rows[0].Active() || rows[0].DelistingDate != "" {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[1].Active() || rows[1].DelistingDate != "2010-01-01" {
		t.Errorf("unexpected second row %+v", rows[1])
	}
}

func TestListingsHeaderless(t *testing.T) {
	csv := "TCS.BSE,Tata Consultancy Services Limited,BSE,Stock,2004-08-25,Active\n"
	rows, err := Listings([]byte(csv))
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != "Active" || rows[0].Exchange != "BSE" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestListingsRateLimited(t *testing.T) {
	_, err := Listings([]byte(`{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	if !errors.Is(err, market.ErrUpstreamMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
	if _, err := Listings([]byte("  ")); !errors.Is(err, market.ErrNoUsableData) {
		t.Fatalf("expected no data, got %v", err)
	}
}

func TestYahooSearch(t *testing.T) {
	payload := `{"quotes":[
		{"symbol":"RELIANCE.NS","shortname":"RELIANCE INDUSTRIES","exchange":"NSI","quoteType":"EQUITY"},
		{"symbol":"RELIANCE.BO","longname":"Reliance Industries Limited","exchange":"BSE","quoteType":"EQUITY"},
		{"symbol":"RELI","shortname":"Reliance Global","exchange":"NCM","quoteType":"EQUITY"},
		{"symbol":"RELFUT","shortname":"Futures","exchange":"NYM","quoteType":"FUTURE"}
	]}`

	in, err := YahooSearch([]byte(payload), MarketIndia)
	if err != nil {
		t.Fatalf("YahooSearch: %v", err)
	}
	if len(in) != 2 || in[0].Symbol != "RELIANCE" || in[0].Exchange != "NSE" || in[1].Exchange != "BSE" {
		t.Fatalf("unexpected IN results %+v", in)
	}
	if in[1].Name != "Reliance Industries Limited" {
		t.Errorf("expected long name fallback, got %q", in[1].Name)
	}

	us, err := YahooSearch([]byte(payload), "US")
	if err != nil {
		t.Fatalf("YahooSearch: %v", err)
	}
	if len(us) != 3 {
		t.Fatalf("expected equities only, got %+v", us)
	}

	if _, err := YahooSearch([]byte(`nope`), MarketIndia); !errors.Is(err, market.ErrUpstreamMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestAlphaVantageSearch(t *testing.T) {
	payload := `{"bestMatches":[
		{"1. symbol":"TATAMOTORS.BSE","2. name":"Tata Motors Limited","3. type":"Equity","4. region":"India/Bombay"},
		{"1. symbol":"TTM","2. name":"Tata Motors ADR","3. type":"Equity","4. region":"United States"},
		{"1. symbol":"TATASTEEL.BSE","2. name":"Tata Steel","3. type":"Equity","4. region":"India"}
	]}`

	in, err := AlphaVantageSearch([]byte(payload), MarketIndia)
	if err != nil {
		t.Fatalf("AlphaVantageSearch: %v", err)
	}
	if len(in) != 1 || in[0].Symbol != "TATASTEEL" || in[0].Exchange != "BSE" {
		t.Fatalf("unexpected IN results %+v", in)
	}

	all, err := AlphaVantageSearch([]byte(payload), "US")
	if err != nil {
		t.Fatalf("AlphaVantageSearch: %v", err)
	}
	if len(all) != 3 || all[1].Exchange != "United States" {
		t.Fatalf("unexpected results %+v", all)
	}

	_, err = AlphaVantageSearch([]byte(`{"Information":"rate limited"}`), MarketIndia)
	if !errors.Is(err, market.ErrUpstreamMalformed) {
		t.Fatalf("expected malformed for notice, got %v", err)
	}
}

func TestInstrumentSearch(t *testing.T) {
	instruments := []market.Instrument{
		{Symbol: "TCS.BSE", Name: "Tata Consultancy Services", Exchange: "BSE"},
		{Symbol: "TATASTEEL.BSE", Name: "Tata Steel", Exchange: "BSE"},
		{Symbol: "INFY.BSE", Name: "Infosys", Exchange: "BSE"},
	}
	got := InstrumentSearch(instruments, "tata")
	if len(got) != 2 || got[0].Symbol != "TCS" {
		t.Fatalf("unexpected results %+v", got)
	}
}

type stubGenerator struct{ base float64 }

func (s *stubGenerator) Series(base float64, count int) (market.Series, error) {
	s.base = base
	return make(market.Series, count), nil
}

func TestSeedSeries(t *testing.T) {
	gen := &stubGenerator{}
	series, err := SeedSeries(gen, 3850, 60)
	if err != nil {
		t.Fatalf("SeedSeries: %v", err)
	}
	if gen.base != 3850 || len(series) != 60 {
		t.Fatalf("generator not seeded with live price: base=%v len=%d", gen.base, len(series))
	}
}
