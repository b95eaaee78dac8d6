package memorystore

import (
	"context"
	"sync"

	"marketdash/internal/market"
)

// SeriesStore keeps the last live entry per symbol in process memory.
type SeriesStore struct {
	globalMu sync.RWMutex
	data     map[string]*symbolEntry
}

type symbolEntry struct {
	mu    sync.Mutex
	entry Entry
}

func NewSeriesStore() *SeriesStore {
	return &SeriesStore{
		data: make(map[string]*symbolEntry),
	}
}

// Put replaces the entry for symbol. The series is copied.
func (s *SeriesStore) Put(_ context.Context, symbol string, e Entry) error {
	// Fast path: lock per-symbol store only
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()

	if !ok {
		s.globalMu.Lock()
		if store, ok = s.data[symbol]; !ok {
			store = &symbolEntry{}
			s.data[symbol] = store
		}
		s.globalMu.Unlock()
	}

	e.Series = append(market.Series(nil), e.Series...)

	store.mu.Lock()
	store.entry = e
	store.mu.Unlock()
	return nil
}

// Get returns a copy of the entry for symbol.
func (s *SeriesStore) Get(_ context.Context, symbol string) (Entry, bool, error) {
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	e := store.entry
	e.Series = append(market.Series(nil), store.entry.Series...)
	return e, true, nil
}

// Symbols lists every symbol with a stored entry.
func (s *SeriesStore) Symbols() []string {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	out := make([]string, 0, len(s.data))
	for sym := range s.data {
		out = append(out, sym)
	}
	return out
}

// CountPoints returns the total number of bars stored across all symbols.
func (s *SeriesStore) CountPoints() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, store := range s.data {
		store.mu.Lock()
		total += len(store.entry.Series)
		store.mu.Unlock()
	}
	return total
}
