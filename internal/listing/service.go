// Package listing serves the exchange listing feed from a daily cache, with
// a static fallback when the provider is unavailable.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketdash/internal/market"
	"marketdash/internal/memorystore"
	"marketdash/internal/normalize"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Source string

const (
	SourceCache    Source = "cache"
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// ExchangeAll disables the exchange filter.
const ExchangeAll = "ALL"

const MaxPageLimit = 500

// DefaultRefreshTimeout bounds one shared download.
const DefaultRefreshTimeout = 30 * time.Second

var ErrInvalidPage = errors.New("page must be >= 1 and limit between 1 and 500")

// Provider downloads the raw listing feed.
type Provider interface {
	ListingStatus(ctx context.Context) ([]byte, error)
}

// Recorder observes refresh outcomes.
type Recorder interface {
	ListingRefreshed(ok bool, rows int)
}

type nopRecorder struct{}

func (nopRecorder) ListingRefreshed(bool, int) {}

// Result is a filtered view of the listings.
type Result struct {
	Listings    []market.Listing
	Total       int // rows before filtering
	Source      Source
	LastUpdated time.Time
	Reason      string // why the fallback was served
}

// Page is one page of Browse output.
type Page struct {
	Listings []market.Listing
	Total    int // matches across all pages
	Page     int
	Limit    int
	Source   Source
}

type Service struct {
	provider Provider
	cache    *memorystore.ListingCache
	fallback []market.Listing
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
	timeout  time.Duration
	group    singleflight.Group
}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTimeout bounds the provider download shared by concurrent refreshes.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewService(provider Provider, cache *memorystore.ListingCache, instruments []market.Instrument, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		provider: provider,
		cache:    cache,
		fallback: FallbackListings(instruments),
		logger:   logger,
		recorder: nopRecorder{},
		now:      time.Now,
		timeout:  DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FallbackListings maps the static instrument table onto listing rows.
func FallbackListings(instruments []market.Instrument) []market.Listing {
	out := make([]market.Listing, len(instruments))
	for i, in := range instruments {
		out[i] = market.Listing{
			Symbol:    in.Symbol,
			Name:      in.Name,
			Exchange:  in.Exchange,
			AssetType: "Stock",
			Status:    "Active",
		}
	}
	return out
}

// Refresh downloads the feed and replaces the cache. Concurrent callers share
// one download, which is detached from any single caller's cancellation and
// bounded by the service timeout. A caller whose ctx ends stops waiting.
func (s *Service) Refresh(ctx context.Context) ([]market.Listing, time.Time, error) {
	type fetched struct {
		rows []market.Listing
		at   time.Time
	}
	ch := s.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		start := s.now()
		payload, err := s.provider.ListingStatus(fetchCtx)
		if err != nil {
			s.recorder.ListingRefreshed(false, 0)
			return nil, err
		}
		rows, err := normalize.Listings(payload)
		if err != nil {
			s.recorder.ListingRefreshed(false, 0)
			return nil, err
		}
		at := s.now()
		s.cache.Set(rows, at)
		s.recorder.ListingRefreshed(true, len(rows))
		s.logger.Info("listings refreshed",
			zap.Int("rows", len(rows)),
			zap.String("size", humanize.Bytes(uint64(len(payload)))),
			zap.Duration("elapsed", at.Sub(start)),
		)
		return fetched{rows: rows, at: at}, nil
	})

	select {
	case <-ctx.Done():
		return nil, time.Time{}, fmt.Errorf("refresh listings: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, time.Time{}, fmt.Errorf("refresh listings: %w", r.Err)
		}
		f := r.Val.(fetched)
		return f.rows, f.at, nil
	}
}

// load returns the fresh cache, else a live download, else the fallback.
func (s *Service) load(ctx context.Context, refresh bool) ([]market.Listing, Source, time.Time, string) {
	if !refresh {
		if rows, ok := s.cache.Get(s.now()); ok {
			_, at := s.cache.Snapshot()
			return rows, SourceCache, at, ""
		}
	}

	rows, at, err := s.Refresh(ctx)
	if err != nil {
		s.logger.Warn("serving fallback listings", zap.String("kind", string(market.KindOf(err))), zap.Error(err))
		return s.fallback, SourceFallback, time.Time{}, err.Error()
	}
	return rows, SourceLive, at, ""
}

// List returns listings for exchange, or every row for ExchangeAll.
func (s *Service) List(ctx context.Context, exchange string, refresh bool) Result {
	rows, source, at, reason := s.load(ctx, refresh)

	filtered := rows
	if !strings.EqualFold(exchange, ExchangeAll) {
		filtered = make([]market.Listing, 0, len(rows)/4)
		for _, l := range rows {
			if strings.EqualFold(l.Exchange, exchange) {
				filtered = append(filtered, l)
			}
		}
	}
	return Result{
		Listings:    filtered,
		Total:       len(rows),
		Source:      source,
		LastUpdated: at,
		Reason:      reason,
	}
}

// Browse pages through active listings. A search matches symbol or name
// case-insensitively; without one only BSE and NSE rows are returned.
func (s *Service) Browse(ctx context.Context, page, limit int, search string) (Page, error) {
	if page < 1 || limit < 1 || limit > MaxPageLimit {
		return Page{}, ErrInvalidPage
	}

	rows, source, _, _ := s.load(ctx, false)
	q := strings.ToUpper(strings.TrimSpace(search))

	var matches []market.Listing
	for _, l := range rows {
		if !l.Active() {
			continue
		}
		if q != "" {
			if !strings.Contains(strings.ToUpper(l.Symbol), q) && !strings.Contains(strings.ToUpper(l.Name), q) {
				continue
			}
		} else if l.Exchange != "BSE" && l.Exchange != "NSE" {
			continue
		}
		matches = append(matches, l)
	}

	start := min((page-1)*limit, len(matches))
	end := min(start+limit, len(matches))
	return Page{
		Listings: matches[start:end],
		Total:    len(matches),
		Page:     page,
		Limit:    limit,
		Source:   source,
	}, nil
}
