package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Pipeline drives one run through its stages:
// fetching -> filtering -> enriching -> notifying -> summarizing -> done.
// Each stage drains its whole batch before the next begins, so a mid-run
// crash can only strand listings inside the current stage.
type Pipeline struct {
	cfg       *Config
	sources   []Source
	store     Store
	notifier  *Notifier
	estimator TravelTimeEstimator
}

func NewPipeline(cfg *Config, sources []Source, store Store, notifier *Notifier, estimator TravelTimeEstimator) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		sources:   sources,
		store:     store,
		notifier:  notifier,
		estimator: estimator,
	}
}

// Run executes one complete pass. Individual delivery failures never abort
// it; only all sources failing or a store failure do. The returned stats
// are valid even when an error is returned.
func (p *Pipeline) Run(ctx context.Context) (*RunStats, error) {
	ids := lo.Map(p.sources, func(s Source, _ int) SourceID { return s.ID() })
	stats := NewRunStats(ids)
	p.advance(stats, RunStateFetching)

	fetched, err := p.fetchAll(ctx, stats)
	if err != nil {
		return stats, err
	}

	p.advance(stats, RunStateFiltering)
	fresh, err := p.filterNew(fetched, stats)
	if err != nil {
		return stats, err
	}

	p.advance(stats, RunStateEnriching)
	p.enrich(ctx, fresh)

	p.advance(stats, RunStateNotifying)
	result, err := p.notifier.Broadcast(ctx, fresh)
	stats.Delivered = len(result.DeliveredKeys)
	stats.PermanentFailures = result.Abandoned
	if err != nil {
		return stats, oops.In("notifier").Wrap(err)
	}

	p.advance(stats, RunStateSummarizing)
	if stats.Delivered > 0 {
		p.notifier.BroadcastText(ctx, FormatSummary(stats))
	}

	p.advance(stats, RunStateDone)
	return stats, nil
}

func (p *Pipeline) advance(stats *RunStats, state RunState) {
	stats.State = state
	slog.Info("Run stage", "state", state)
}

// fetchAll queries every source concurrently. One provider failing only
// drops that provider's batch; all of them failing is fatal.
func (p *Pipeline) fetchAll(ctx context.Context, stats *RunStats) ([]Listing, error) {
	var (
		mu       sync.Mutex
		all      []Listing
		failures int
	)

	var wg sync.WaitGroup
	for _, src := range p.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			listings, err := src.Fetch(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				slog.Error("Source fetch failed", "source", src.ID(), "error", err)
				return
			}
			stats.ForSource(src.ID()).Fetched = len(listings)
			all = append(all, listings...)
			slog.Info("Source fetched", "source", src.ID(), "count", len(listings))
		}(src)
	}
	wg.Wait()

	if len(p.sources) > 0 && failures == len(p.sources) {
		return nil, ErrAllSourcesDown
	}
	return all, nil
}

// filterNew keeps listings that match the criteria and have not been seen
// before, marking each survivor seen. Store failures here are fatal; marks
// already committed stay valid for the next run.
func (p *Pipeline) filterNew(fetched []Listing, stats *RunStats) ([]Listing, error) {
	criteria := Criteria{Rooms: p.cfg.Rooms, MaxPrice: p.cfg.MaxPrice}

	var fresh []Listing
	for _, listing := range fetched {
		if !criteria.Accept(listing) {
			continue
		}
		stats.Passed++

		seen, err := p.store.HasSeen(listing.Key)
		if err != nil {
			return nil, oops.In("store").With("key", listing.Key).Wrap(err)
		}
		if seen {
			continue
		}
		if err := p.store.MarkSeen(listing.Key); err != nil {
			return nil, oops.In("store").With("key", listing.Key).Wrap(err)
		}

		stats.NewlySeen++
		stats.ForSource(listing.Source).New++
		fresh = append(fresh, listing)
	}
	return fresh, nil
}

// enrich attaches travel-time estimates through a bounded worker pool.
// A failed estimate leaves the field absent; it never drops the listing.
func (p *Pipeline) enrich(ctx context.Context, listings []Listing) {
	if p.estimator == nil || len(listings) == 0 {
		return
	}

	workers := p.cfg.EnrichWorkers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				estimate, err := p.estimator.Estimate(ctx, listings[i].Address)
				if err != nil {
					slog.Warn("Travel time estimate failed", "key", listings[i].Key, "error", err)
					continue
				}
				listings[i].TravelTime = estimate
			}
		}()
	}
	for i := range listings {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
