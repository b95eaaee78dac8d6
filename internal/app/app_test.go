package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"marketdash/config"

	"go.uber.org/zap"
)

func testConfig(t *testing.T, upstream string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Yahoo.BaseURL = upstream
	cfg.Alpha.BaseURL = upstream
	cfg.Listing.Schedule = false
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "app.db")
	cfg.Synthetic.Seed = 42
	return cfg
}

func downUpstream(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// go test -v --run TestNewServesRoutes
func TestNewServesRoutes(t *testing.T) {
	cfg := testConfig(t, downUpstream(t))
	a, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &health)
	if health.Status != "ok" || health.Checks["storage"] != "ok" {
		t.Errorf("unexpected health %+v", health)
	}

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/stocks?symbol=RELIANCE.BSE", nil))
	var series struct {
		Source string `json:"source"`
		Data   []any  `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &series)
	if series.Source != "synthetic" || len(series.Data) != cfg.Synthetic.Points {
		t.Errorf("unexpected series source=%s points=%d", series.Source, len(series.Data))
	}
}

func TestNewWithoutStorage(t *testing.T) {
	cfg := testConfig(t, downUpstream(t))
	cfg.Storage.Driver = "none"
	cfg.Cache.Backend = "none"

	a, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/portfolio?userId=1", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without storage, got %d", rec.Code)
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	cfg := testConfig(t, downUpstream(t))
	cfg.Cache.Backend = "redis"
	cfg.Cache.Redis.Addr = "127.0.0.1:1"

	if _, err := New(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected redis connection error")
	}
}

// go test -v --run TestRunStopsOnCancel
func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, downUpstream(t))
	cfg.Listing.Schedule = true

	a, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestSynthParamsMatchDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if err := SynthParams(cfg.Synthetic).Validate(); err != nil {
		t.Fatalf("default synthetic config is invalid: %v", err)
	}
}
