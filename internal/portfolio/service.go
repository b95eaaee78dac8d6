// Package portfolio keeps per-user symbol lists and values them with the
// best available quotes.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketdash/internal/market"
	"marketdash/pkg/storage/postgres"

	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("portfolio not found")
	ErrInvalidInput = errors.New("user id and stock are required")
)

// Store persists holdings.
type Store interface {
	AddHolding(ctx context.Context, record *postgres.HoldingRecord) (bool, error)
	ListHoldings(ctx context.Context, userID string) ([]postgres.HoldingRecord, error)
	DeleteHolding(ctx context.Context, userID, symbol string) (bool, error)
}

// Quoter prices a batch of symbols, preserving order.
type Quoter interface {
	Quotes(ctx context.Context, symbols []string) []market.Quote
}

type Holding struct {
	Symbol  string       `json:"symbol"`
	AddedAt time.Time    `json:"addedAt"`
	Quote   market.Quote `json:"quote"`
}

type Portfolio struct {
	UserID   string    `json:"userId"`
	Stocks   []string  `json:"stocks"`
	Holdings []Holding `json:"holdings"`
	Value    float64   `json:"portfolioValue"`
}

type Service struct {
	store     Store
	quotes    Quoter
	batchSize int
	logger    *zap.Logger
}

// NewService values holdings batchSize symbols at a time.
func NewService(store Store, quotes Quoter, batchSize int, logger *zap.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, quotes: quotes, batchSize: batchSize, logger: logger}
}

func normalizeInput(userID, symbol string) (string, string, error) {
	userID = strings.TrimSpace(userID)
	symbol = market.DisplaySymbol(symbol)
	if userID == "" || symbol == "" {
		return "", "", ErrInvalidInput
	}
	return userID, symbol, nil
}

// Add records symbol for the user and returns the updated symbol list.
// Adding a symbol twice keeps a single holding.
func (s *Service) Add(ctx context.Context, userID, symbol string) ([]string, error) {
	userID, symbol, err := normalizeInput(userID, symbol)
	if err != nil {
		return nil, err
	}

	created, err := s.store.AddHolding(ctx, &postgres.HoldingRecord{UserID: userID, Symbol: symbol})
	if err != nil {
		return nil, fmt.Errorf("add holding: %w", err)
	}
	if created {
		s.logger.Info("holding added", zap.String("user", userID), zap.String("symbol", symbol))
	}

	records, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	return symbols(records), nil
}

// Get returns the user's holdings valued at current quotes. ErrNotFound is
// returned when the user holds nothing.
func (s *Service) Get(ctx context.Context, userID string) (Portfolio, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Portfolio{}, ErrInvalidInput
	}

	records, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return Portfolio{}, fmt.Errorf("list holdings: %w", err)
	}
	if len(records) == 0 {
		return Portfolio{}, ErrNotFound
	}

	syms := symbols(records)
	quotes := make([]market.Quote, 0, len(syms))
	for start := 0; start < len(syms); start += s.batchSize {
		end := min(start+s.batchSize, len(syms))
		quotes = append(quotes, s.quotes.Quotes(ctx, syms[start:end])...)
	}

	p := Portfolio{UserID: userID, Stocks: syms, Holdings: make([]Holding, len(records))}
	for i, r := range records {
		p.Holdings[i] = Holding{Symbol: r.Symbol, AddedAt: r.CreatedAt}
		if i < len(quotes) {
			p.Holdings[i].Quote = quotes[i]
			p.Value += quotes[i].Price
		}
	}
	return p, nil
}

// Remove deletes symbol from the user's holdings. ErrNotFound is returned
// when the user did not hold it.
func (s *Service) Remove(ctx context.Context, userID, symbol string) error {
	userID, symbol, err := normalizeInput(userID, symbol)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteHolding(ctx, userID, symbol)
	if err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	s.logger.Info("holding removed", zap.String("user", userID), zap.String("symbol", symbol))
	return nil
}

func symbols(records []postgres.HoldingRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Symbol
	}
	return out
}
