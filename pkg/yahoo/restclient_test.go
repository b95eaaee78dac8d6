package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketdash/internal/market"
)

// go test -v --run TestChartRequest
func TestChartRequest(t *testing.T) {
	var gotPath, gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotUA = r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")
		w.Write([]byte(`{"chart":{"result":[]}}`))
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, "", 5*time.Second)
	_, meta, err := ParseInterval("5min")
	if err != nil {
		t.Fatalf("ParseInterval: %v", err)
	}

	body, err := client.Chart(context.Background(), "RELIANCE.NS", meta)
	if err != nil {
		t.Fatalf("Chart: %v", err)
	}
	if string(body) != `{"chart":{"result":[]}}` {
		t.Errorf("unexpected body %s", body)
	}
	if gotPath != "/v8/finance/chart/RELIANCE.NS" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if !strings.Contains(gotQuery, "interval=5m") || !strings.Contains(gotQuery, "range=5d") {
		t.Errorf("unexpected query %s", gotQuery)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("unexpected user agent %q", gotUA)
	}
}

func TestRateLimitedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var observed []string
	client := NewRESTClient(srv.URL, "", 5*time.Second)
	client.SetObserver(func(op string, err error, _ time.Duration) {
		if err != nil {
			observed = append(observed, op)
		}
	})

	_, err := client.Snapshot(context.Background(), "TCS.NS")
	if !errors.Is(err, market.ErrUpstreamUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if len(observed) != 1 || observed[0] != "snapshot" {
		t.Errorf("observer not called as expected: %v", observed)
	}
}

func TestNetworkErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewRESTClient(url, "", time.Second)
	if _, err := client.Search(context.Background(), "reliance", 10); !errors.Is(err, market.ErrUpstreamUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestParseInterval(t *testing.T) {
	if iv, _, err := ParseInterval(""); err != nil || iv != DefaultInterval {
		t.Errorf("empty interval: got %q, %v", iv, err)
	}
	if _, meta, err := ParseInterval("DAILY"); err != nil || meta.APIValue != "1d" {
		t.Errorf("daily: got %+v, %v", meta, err)
	}
	if _, _, err := ParseInterval("3min"); err == nil {
		t.Error("expected error for unsupported interval")
	}
}
