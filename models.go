package main

import (
	"time"
)

//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

// SourceID identifies a listing provider
// ENUM(cian,yandex)
type SourceID string

// RunState represents the current stage of a pipeline run
// ENUM(fetching,filtering,enriching,notifying,summarizing,done)
type RunState string

// Listing is one rental offer normalized from a provider payload.
// A fresh set is built on every run; only the Key survives across runs,
// as a seen-record in the store.
type Listing struct {
	Key         string        `json:"key"`
	Source      SourceID      `json:"source"`
	URL         string        `json:"url"`
	Rooms       int           `json:"rooms"`
	Price       int           `json:"price"`
	Address     string        `json:"address"`
	Area        float64       `json:"area"`
	PublishedAt time.Time     `json:"published_at"`
	TravelTime  time.Duration `json:"travel_time,omitempty"` // zero means not estimated
}

// SourceStats holds per-provider counters for one run.
type SourceStats struct {
	Fetched int `json:"fetched"`
	New     int `json:"new"`
}

// RunStats aggregates the outcome of one pipeline run. It is produced by
// the pipeline and consumed once when the summary is emitted.
type RunStats struct {
	Sources           map[SourceID]*SourceStats `json:"sources"`
	Passed            int                       `json:"passed"`
	NewlySeen         int                       `json:"newly_seen"`
	Delivered         int                       `json:"delivered"`
	PermanentFailures int                       `json:"permanent_failures"`
	State             RunState                  `json:"state"`
}

// NewRunStats returns stats with a counter slot for each configured source.
func NewRunStats(sources []SourceID) *RunStats {
	stats := &RunStats{
		Sources: make(map[SourceID]*SourceStats, len(sources)),
		State:   RunStateFetching,
	}
	for _, id := range sources {
		stats.Sources[id] = &SourceStats{}
	}
	return stats
}

// ForSource returns the counter slot for a provider, creating it if needed.
func (s *RunStats) ForSource(id SourceID) *SourceStats {
	if st, ok := s.Sources[id]; ok {
		return st
	}
	st := &SourceStats{}
	s.Sources[id] = st
	return st
}
