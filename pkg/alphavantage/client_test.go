package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketdash/internal/market"
)

// go test -v --run TestListingStatusQuery
func TestListingStatusQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("function") != "LISTING_STATUS" || q.Get("apikey") != "secret" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte("symbol,name,exchange,assetType,ipoDate,delistingDate,status\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 5*time.Second)
	body, err := c.ListingStatus(context.Background())
	if err != nil {
		t.Fatalf("ListingStatus: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("expected body")
	}
}

func TestSymbolSearchDefaultsToDemoKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "demo" || q.Get("keywords") != "tata motors" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"bestMatches":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	if _, err := c.SymbolSearch(context.Background(), "tata motors"); err != nil {
		t.Fatalf("SymbolSearch: %v", err)
	}
}

func TestServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	if _, err := c.ListingStatus(context.Background()); !errors.Is(err, market.ErrUpstreamUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestNoticeMessage(t *testing.T) {
	n := Notice{Information: "rate limit", Note: "slow down"}
	if n.Message() != "slow down" {
		t.Errorf("unexpected message %q", n.Message())
	}
}
