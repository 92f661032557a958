package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/samber/oops"
)

// TravelTimeEstimator attaches a commute estimate to a listing address.
// It is an optional, external collaborator: any failure degrades the
// listing (no travel time) and never aborts the run.
type TravelTimeEstimator interface {
	Estimate(ctx context.Context, origin string) (time.Duration, error)
}

// RouterClient estimates travel time through the GraphHopper HTTP API:
// one geocoding call for the listing address, one routing call to the
// configured destination. The destination is geocoded once, lazily.
type RouterClient struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	destination string

	destMu    sync.Mutex
	destPoint geoPoint
	destSet   bool
}

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func NewRouterClient(client *http.Client, baseURL, apiKey, destination string) *RouterClient {
	return &RouterClient{
		client:      client,
		baseURL:     baseURL,
		apiKey:      apiKey,
		destination: destination,
	}
}

func (c *RouterClient) Estimate(ctx context.Context, origin string) (time.Duration, error) {
	to, err := c.destinationPoint(ctx)
	if err != nil {
		return 0, oops.In("router").With("address", c.destination).Wrapf(err, "failed to geocode destination")
	}

	from, err := c.geocode(ctx, origin)
	if err != nil {
		return 0, oops.In("router").With("address", origin).Wrapf(err, "failed to geocode origin")
	}

	return c.route(ctx, from, to)
}

// destinationPoint geocodes the configured destination once and caches it
// for the rest of the run. Estimate runs from a worker pool, hence the lock.
func (c *RouterClient) destinationPoint(ctx context.Context) (geoPoint, error) {
	c.destMu.Lock()
	defer c.destMu.Unlock()
	if c.destSet {
		return c.destPoint, nil
	}
	point, err := c.geocode(ctx, c.destination)
	if err != nil {
		return geoPoint{}, err
	}
	c.destPoint = point
	c.destSet = true
	return point, nil
}

func (c *RouterClient) geocode(ctx context.Context, address string) (geoPoint, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("limit", "1")
	q.Set("key", c.apiKey)

	var payload struct {
		Hits []struct {
			Point geoPoint `json:"point"`
		} `json:"hits"`
	}
	if err := c.get(ctx, "/geocode", q, &payload); err != nil {
		return geoPoint{}, err
	}
	if len(payload.Hits) == 0 {
		return geoPoint{}, fmt.Errorf("no geocoding hits for %q", address)
	}
	return payload.Hits[0].Point, nil
}

func (c *RouterClient) route(ctx context.Context, from, to geoPoint) (time.Duration, error) {
	q := url.Values{}
	q.Add("point", fmt.Sprintf("%f,%f", from.Lat, from.Lng))
	q.Add("point", fmt.Sprintf("%f,%f", to.Lat, to.Lng))
	q.Set("profile", "car")
	q.Set("calc_points", "false")
	q.Set("key", c.apiKey)

	var payload struct {
		Paths []struct {
			Time int64 `json:"time"` // milliseconds
		} `json:"paths"`
	}
	if err := c.get(ctx, "/route", q, &payload); err != nil {
		return 0, err
	}
	if len(payload.Paths) == 0 {
		return 0, ErrNoRoute
	}
	return time.Duration(payload.Paths[0].Time) * time.Millisecond, nil
}

func (c *RouterClient) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("router responded %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
