package main

import (
	"context"
	"net/http"
	"time"
)

// Source fetches the current listings for one provider and normalizes them
// into canonical Listing records. A source failure aborts only that
// provider's contribution to the run.
type Source interface {
	ID() SourceID
	Fetch(ctx context.Context) ([]Listing, error)
}

// Provider endpoints refuse obviously non-browser clients, so every request
// carries a desktop User-Agent.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0 Safari/537.36"

const fetchTimeout = 20 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: fetchTimeout}
}
