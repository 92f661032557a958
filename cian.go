package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/samber/oops"
)

const cianSearchURL = "https://api.cian.ru/search-offers/v2/search-offers-desktop/"

// moscowRegionID is the CIAN region term for Moscow.
const moscowRegionID = 1

// CianSource fetches owner-listed rental offers from the CIAN search API.
type CianSource struct {
	client   *http.Client
	url      string
	criteria Criteria
}

func NewCianSource(client *http.Client, criteria Criteria) *CianSource {
	return &CianSource{client: client, url: cianSearchURL, criteria: criteria}
}

func (s *CianSource) ID() SourceID { return SourceIDCian }

func (s *CianSource) Fetch(ctx context.Context) ([]Listing, error) {
	body, err := json.Marshal(s.query())
	if err != nil {
		return nil, oops.In("cian").Wrapf(err, "failed to encode search query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, oops.In("cian").Wrap(err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, oops.In("cian").Wrapf(err, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, oops.In("cian").With("status", resp.StatusCode).Errorf("unexpected search status %d", resp.StatusCode)
	}

	var payload cianResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, oops.In("cian").Wrapf(err, "failed to decode search response")
	}

	listings := lo.Map(payload.Data.OffersSerialized, func(o cianOffer, _ int) Listing {
		return o.toListing()
	})
	return listings, nil
}

// query reproduces the desktop search: rent, owner-only, newest first,
// bounded by the configured price ceiling and room count.
func (s *CianSource) query() map[string]any {
	return map[string]any{
		"jsonQuery": map[string]any{
			"region":          map[string]any{"type": "terms", "value": []int{moscowRegionID}},
			"_type":           "flatrent",
			"room":            map[string]any{"type": "terms", "value": []int{s.criteria.Rooms}},
			"engine_version":  map[string]any{"type": "term", "value": 2},
			"for_day":         map[string]any{"type": "term", "value": "!1"},
			"is_by_homeowner": map[string]any{"type": "term", "value": true},
			"sort":            map[string]any{"type": "term", "value": "creation_date_desc"},
			"bargain_terms":   map[string]any{"type": "range", "value": map[string]any{"lte": s.criteria.MaxPrice}},
		},
	}
}

type cianResponse struct {
	Data struct {
		OffersSerialized []cianOffer `json:"offersSerialized"`
	} `json:"data"`
}

type cianOffer struct {
	ID             int64       `json:"id"`
	FullURL        string      `json:"fullUrl"`
	AddedTimestamp int64       `json:"addedTimestamp"`
	RoomsCount     int         `json:"roomsCount"`
	TotalArea      json.Number `json:"totalArea"`
	BargainTerms   struct {
		PriceRur int `json:"priceRur"`
	} `json:"bargainTerms"`
	Geo struct {
		UserInput string `json:"userInput"`
	} `json:"geo"`
}

func (o cianOffer) toListing() Listing {
	area, _ := o.TotalArea.Float64()
	return Listing{
		Key:         fmt.Sprintf("%s:%d", SourceIDCian, o.ID),
		Source:      SourceIDCian,
		URL:         o.FullURL,
		Rooms:       o.RoomsCount,
		Price:       o.BargainTerms.PriceRur,
		Address:     o.Geo.UserInput,
		Area:        area,
		PublishedAt: time.Unix(o.AddedTimestamp, 0),
	}
}
