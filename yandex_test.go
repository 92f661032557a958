package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const yandexFixture = `{
  "response": {
    "search": {
      "offers": {
        "entities": [
          {
            "offerId": "555",
            "shareUrl": "https://realty.yandex.ru/offer/555/",
            "creationDate": "2024-05-29T18:00:00Z",
            "price": {"value": 42000},
            "location": {"address": "Москва, Арбат, 10"},
            "area": {"value": 33},
            "roomsTotalKey": "1"
          }
        ]
      }
    }
  }
}`

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestYandexFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("priceMax"); got != "50000" {
			t.Errorf("priceMax = %q, want 50000", got)
		}
		if got := r.URL.Query().Get("roomsTotalMax"); got != "1" {
			t.Errorf("roomsTotalMax = %q, want 1", got)
		}
		w.Write([]byte(yandexFixture))
	}))
	defer server.Close()

	source := NewYandexSource(server.Client(), Criteria{Rooms: 1, MaxPrice: 50000})
	source.url = server.URL

	listings, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("listings = %d, want 1", len(listings))
	}

	got := listings[0]
	if got.Key != "yandex:555" {
		t.Errorf("Key = %q, want yandex:555", got.Key)
	}
	if got.Source != SourceIDYandex || got.Rooms != 1 || got.Price != 42000 || got.Area != 33 {
		t.Errorf("normalized listing = %+v", got)
	}
	if got.PublishedAt.IsZero() {
		t.Error("PublishedAt not parsed")
	}
}

func TestYandexFetchRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(yandexFixture))
	}))
	defer server.Close()

	source := NewYandexSource(server.Client(), Criteria{Rooms: 1, MaxPrice: 50000})
	source.url = server.URL
	source.sleep = noSleep

	listings, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("listings = %d, want 1", len(listings))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestYandexFetchGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewYandexSource(server.Client(), Criteria{Rooms: 1, MaxPrice: 50000})
	source.url = server.URL
	source.sleep = noSleep

	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if got := calls.Load(); got != yandexRetries {
		t.Errorf("server calls = %d, want %d", got, yandexRetries)
	}
}
