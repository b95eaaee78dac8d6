// Package redis stores the last live series per symbol in Redis so the cached
// tier survives restarts and is shared between replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketdash/internal/memorystore"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultKeyPrefix = "marketdash:series:"
	defaultTTL       = 15 * time.Minute
)

// Config configures the Redis series store.
type Config struct {
	Addr      string        // Redis address, e.g. "localhost:6379"
	Password  string        // optional
	DB        int           // logical database index
	KeyPrefix string        // prepended to every symbol key
	TTL       time.Duration // expiry applied on every write
}

// SeriesStore keeps one JSON-encoded memorystore.Entry per symbol.
type SeriesStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and pings the server.
func New(ctx context.Context, cfg Config) (*SeriesStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string, ttl time.Duration) *SeriesStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SeriesStore{client: client, prefix: prefix, ttl: ttl}
}

// Client returns the underlying Redis client for health checks.
func (s *SeriesStore) Client() *goredis.Client { return s.client }

func (s *SeriesStore) key(symbol string) string {
	return s.prefix + symbol
}

func (s *SeriesStore) Put(ctx context.Context, symbol string, e memorystore.Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", symbol, err)
	}
	if err := s.client.Set(ctx, s.key(symbol), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", symbol, err)
	}
	return nil
}

// Get returns ok=false for a missing or expired key.
func (s *SeriesStore) Get(ctx context.Context, symbol string) (memorystore.Entry, bool, error) {
	b, err := s.client.Get(ctx, s.key(symbol)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return memorystore.Entry{}, false, nil
	}
	if err != nil {
		return memorystore.Entry{}, false, fmt.Errorf("redis get %s: %w", symbol, err)
	}

	var e memorystore.Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return memorystore.Entry{}, false, fmt.Errorf("decode entry %s: %w", symbol, err)
	}
	return e, true, nil
}

func (s *SeriesStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SeriesStore) Close() error {
	return s.client.Close()
}
