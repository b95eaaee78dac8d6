package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketdash/internal/analysis"
	"marketdash/internal/listing"
	"marketdash/internal/market"
	"marketdash/internal/normalize"
	"marketdash/internal/tier"
	"marketdash/pkg/yahoo"

	"golang.org/x/sync/errgroup"
)

const (
	defaultSymbol      = "RELIANCE"
	defaultExchange    = "NSE"
	defaultPageLimit   = 50
	analysisConcurrent = 4
	analysisDefaults   = 8
	analysisMaxSymbols = 20
)

type seriesMeta struct {
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	PreviousClose      float64 `json:"previousClose"`
	Currency           string  `json:"currency"`
}

type seriesResponse struct {
	Success  bool           `json:"success"`
	Data     []pointDTO     `json:"data"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Interval yahoo.Interval `json:"interval"`
	Market   string         `json:"market"`
	Source   market.Tier    `json:"source"`
	Meta     seriesMeta     `json:"meta"`
	Attempts []tier.Attempt `json:"attempts,omitempty"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.TrimSpace(q.Get("symbol"))
	if symbol == "" {
		symbol = defaultSymbol
	}
	interval, _, err := yahoo.ParseInterval(q.Get("interval"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.deps.Selector.Series(r.Context(), symbol, interval)
	writeJSON(w, http.StatusOK, seriesResponse{
		Success:  true,
		Data:     toPoints(res.Series),
		Symbol:   res.DisplaySymbol,
		Name:     res.Name,
		Interval: res.Interval,
		Market:   res.Market,
		Source:   res.Tier,
		Meta: seriesMeta{
			RegularMarketPrice: round2(res.Quote.Price),
			PreviousClose:      round2(res.Quote.PreviousClose),
			Currency:           res.Currency,
		},
		Attempts: res.Attempts,
	})
}

// splitSymbols parses a comma separated list, dropping blanks and duplicates.
func splitSymbols(raw string, limit int) []string {
	return tier.Dedupe(strings.Split(raw, ","), limit)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"), 0)
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "no symbols provided")
		return
	}

	quotes := toQuotes(s.deps.Selector.Quotes(r.Context(), symbols))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    quotes,
		"count":   len(quotes),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mkt := q.Get("market")
	if mkt == "" {
		mkt = normalize.MarketIndia
	}

	res, err := s.deps.Searcher.Search(r.Context(), q.Get("q"), mkt)
	if errors.Is(err, listing.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	data := res.Results
	if data == nil {
		data = []market.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"count":   len(data),
		"source":  res.Source,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	exchange := strings.ToUpper(strings.TrimSpace(q.Get("exchange")))
	if exchange == "" {
		exchange = defaultExchange
	}
	refresh, _ := strconv.ParseBool(q.Get("refresh"))

	res := s.deps.Listings.List(r.Context(), exchange, refresh)
	body := map[string]any{
		"success":    res.Source != listing.SourceFallback,
		"data":       res.Listings,
		"count":      len(res.Listings),
		"totalCount": res.Total,
		"source":     res.Source,
	}
	if !res.LastUpdated.IsZero() {
		body["lastUpdated"] = res.LastUpdated.UTC().Format(time.RFC3339)
	}
	if res.Reason != "" {
		body["error"] = "failed to fetch listing status"
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	limit, err := intParam(q.Get("limit"), defaultPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	p, err := s.deps.Listings.Browse(r.Context(), page, limit, q.Get("search"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data := p.Listings
	if data == nil {
		data = []market.Listing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"total":   p.Total,
		"page":    p.Page,
		"limit":   p.Limit,
		"source":  p.Source,
	})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	all := s.deps.Instruments.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    all,
		"count":   len(all),
	})
}

// handleAnalysis builds a report per symbol from its series and quote. The
// series tier doubles as the report source.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbols := splitSymbols(q.Get("symbols"), analysisMaxSymbols)
	if len(symbols) == 0 {
		symbols = s.deps.Instruments.Symbols(analysisDefaults)
	}
	withSeries, _ := strconv.ParseBool(q.Get("series"))

	reports := make([]reportDTO, len(symbols))
	var g errgroup.Group
	g.SetLimit(analysisConcurrent)
	for i, sym := range symbols {
		g.Go(func() error {
			res := s.deps.Selector.Series(r.Context(), sym, yahoo.DefaultInterval)
			rep := analysis.Analyze(res.DisplaySymbol, res.Name, res.Series, res.Quote)
			rep.Source = res.Tier
			reports[i] = toReport(rep, withSeries)
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    reports,
		"count":   len(reports),
	})
}
