package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/samber/oops"
)

const yandexSearchURL = "https://realty.yandex.ru/gate/react-page/get/"

// moscowRgid is the Yandex Realty geo id for Moscow.
const moscowRgid = "741964"

const (
	yandexRetries    = 5
	yandexBackoffMin = 1.0 // seconds
	yandexBackoffMax = 3.0
)

// YandexSource fetches owner-listed rental offers from the Yandex Realty
// react gate. The gate is flaky under load, so requests are retried with
// jittered linear backoff before the source is declared down.
type YandexSource struct {
	client   *http.Client
	url      string
	criteria Criteria
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewYandexSource(client *http.Client, criteria Criteria) *YandexSource {
	return &YandexSource{client: client, url: yandexSearchURL, criteria: criteria, sleep: sleepCtx}
}

func (s *YandexSource) ID() SourceID { return SourceIDYandex }

func (s *YandexSource) Fetch(ctx context.Context) ([]Listing, error) {
	var lastErr error
	for attempt := 1; attempt <= yandexRetries; attempt++ {
		listings, err := s.fetchOnce(ctx)
		if err == nil {
			return listings, nil
		}
		lastErr = err
		if attempt == yandexRetries {
			break
		}
		pause := time.Duration((yandexBackoffMin + rand.Float64()*(yandexBackoffMax-yandexBackoffMin)) *
			float64(attempt) * float64(time.Second))
		slog.Warn("Yandex fetch failed, retrying",
			"attempt", attempt, "retries", yandexRetries, "pause", pause, "error", err)
		if err := s.sleep(ctx, pause); err != nil {
			return nil, err
		}
	}
	return nil, oops.In("yandex").With("retries", yandexRetries).Wrap(lastErr)
}

func (s *YandexSource) fetchOnce(ctx context.Context) ([]Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"?"+s.params().Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected search status %d", resp.StatusCode)
	}

	var payload yandexResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	listings := lo.Map(payload.Response.Search.Offers.Entities, func(o yandexOffer, _ int) Listing {
		return o.toListing()
	})
	return listings, nil
}

func (s *YandexSource) params() url.Values {
	providers := []string{
		"search", "filters", "searchParams", "seo", "queryId",
		"forms", "filtersParams", "searchPresets", "react-search-data",
	}
	v := url.Values{}
	for _, p := range providers {
		v.Add("_providers", p)
	}
	v.Set("sort", "DATE_DESC")
	v.Set("rgid", moscowRgid)
	v.Set("type", "RENT")
	v.Set("category", "APARTMENT")
	v.Set("agents", "NO")
	v.Set("_pageType", "search")
	v.Set("roomsTotalMin", strconv.Itoa(s.criteria.Rooms))
	v.Set("roomsTotalMax", strconv.Itoa(s.criteria.Rooms))
	v.Set("priceMax", strconv.Itoa(s.criteria.MaxPrice))
	return v
}

type yandexResponse struct {
	Response struct {
		Search struct {
			Offers struct {
				Entities []yandexOffer `json:"entities"`
			} `json:"offers"`
		} `json:"search"`
	} `json:"response"`
}

type yandexOffer struct {
	OfferID      string `json:"offerId"`
	ShareURL     string `json:"shareUrl"`
	CreationDate string `json:"creationDate"`
	UpdateDate   string `json:"updateDate"`
	Price        struct {
		Value int `json:"value"`
	} `json:"price"`
	Location struct {
		Address string `json:"address"`
	} `json:"location"`
	Area struct {
		Value float64 `json:"value"`
	} `json:"area"`
	RoomsTotalKey json.Number `json:"roomsTotalKey"`
}

func (o yandexOffer) toListing() Listing {
	rooms, _ := strconv.Atoi(o.RoomsTotalKey.String())

	raw := o.UpdateDate
	if raw == "" {
		raw = o.CreationDate
	}
	published, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		published, _ = time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(raw, "Z"))
	}

	return Listing{
		Key:         fmt.Sprintf("%s:%s", SourceIDYandex, o.OfferID),
		Source:      SourceIDYandex,
		URL:         o.ShareURL,
		Rooms:       rooms,
		Price:       o.Price.Value,
		Address:     o.Location.Address,
		Area:        o.Area.Value,
		PublishedAt: published,
	}
}
