// Package optimizer runs the trajectory-to-transit matching pipeline: sample
// the trajectory, match each waypoint to nearby sites, join real-time
// departures, and fall back to direct-travel estimates where transit coverage
// is absent.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"slroute/internal/domain"
	"slroute/internal/geo"
	"slroute/internal/hub"
	"slroute/internal/metrics"
	"slroute/internal/proximity"
	"slroute/internal/trajectory"
	"slroute/internal/transit"
)

// DepartureSource fetches real-time departures for one site. Implementations
// return *domain.DataSourceError on upstream failure.
type DepartureSource interface {
	Departures(ctx context.Context, siteID string, window time.Duration, transportMode string) ([]domain.Departure, error)
}

// Broadcaster receives per-waypoint progress. The hub implements it.
type Broadcaster interface {
	Broadcast(batch hub.EntryBatch)
}

// Options are the tunables of one optimization run. Radius and candidate
// count vary legitimately with city density, so none of these are constants.
type Options struct {
	RadiusMeters    float64
	MaxSites        int
	DepartureWindow time.Duration
	TransportMode   string // empty requests all modes
	SampleStep      int
	MinStay         time.Duration
	Concurrency     int
	SortByExpected  bool
}

func (o *Options) validate() error {
	if o.RadiusMeters <= 0 {
		return domain.ConfigurationError(fmt.Sprintf("radius must be positive, got %f", o.RadiusMeters))
	}
	if o.MaxSites <= 0 {
		return domain.ConfigurationError(fmt.Sprintf("max sites must be positive, got %d", o.MaxSites))
	}
	if o.DepartureWindow <= 0 {
		return domain.ConfigurationError(fmt.Sprintf("departure window must be positive, got %s", o.DepartureWindow))
	}
	if o.SampleStep <= 0 {
		return domain.ConfigurationError(fmt.Sprintf("sample step must be positive, got %d", o.SampleStep))
	}
	if o.MinStay <= 0 {
		return domain.ConfigurationError(fmt.Sprintf("min stay must be positive, got %s", o.MinStay))
	}
	if o.Concurrency <= 0 {
		return domain.ConfigurationError(fmt.Sprintf("concurrency must be positive, got %d", o.Concurrency))
	}
	return nil
}

// Result is the output of one run: the ordered route entry table plus run
// accounting. Partial marks a cancelled run that returned the prefix
// processed so far; a partial result is valid output, not an error.
type Result struct {
	RunID              string              `json:"run_id"`
	Entries            []domain.RouteEntry `json:"entries"`
	Partial            bool                `json:"partial"`
	WaypointsSampled   int                 `json:"waypoints_sampled"`
	WaypointsProcessed int                 `json:"waypoints_processed"`
	WaypointsSkipped   int                 `json:"waypoints_skipped"`
	FetchFailures      int                 `json:"fetch_failures"`
	Destinations       int                 `json:"destinations"`
}

type Optimizer struct {
	store      *transit.Store
	departures DepartureSource
	hub        Broadcaster
	metrics    *metrics.Collector
	logger     *slog.Logger
}

func New(store *transit.Store, departures DepartureSource, broadcaster Broadcaster, m *metrics.Collector, logger *slog.Logger) *Optimizer {
	return &Optimizer{
		store:      store,
		departures: departures,
		hub:        broadcaster,
		metrics:    m,
		logger:     logger.With("component", "optimizer"),
	}
}

// Run optimizes one trajectory against the current reference data snapshot.
// extraDestinations supplements the dwell-derived destinations with
// user-confirmed stay locations. Waypoint-level and site-level failures are
// downgraded; only missing reference data or invalid input abort the run.
func (o *Optimizer) Run(ctx context.Context, traj *trajectory.Trajectory, extraDestinations []domain.Point, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	sites := o.store.Sites()
	if len(sites) == 0 {
		return nil, domain.ErrNoReferenceData
	}

	sampled, err := traj.Sample(opts.SampleStep)
	if err != nil {
		return nil, err
	}

	destinations := traj.DestinationPoints(opts.MinStay)
	for _, p := range extraDestinations {
		if p.Valid() {
			destinations = append(destinations, p)
		}
	}

	runID := uuid.NewString()
	start := time.Now()
	o.metrics.RunsStarted.Inc()
	o.logger.Info("run started",
		"run_id", runID,
		"waypoints", len(sampled),
		"destinations", len(destinations),
		"radius_m", opts.RadiusMeters,
	)

	matcher := proximity.NewMatcher(sites)

	state := &runState{
		buffers:   make([][]domain.RouteEntry, len(sampled)),
		processed: make([]bool, len(sampled)),
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				o.processWaypoint(ctx, runID, state, i, sampled[i], matcher, destinations, opts)
			}
		}()
	}

dispatch:
	for i := range sampled {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	partial := ctx.Err() != nil
	upTo := completedPrefix(state.processed)

	result := &Result{
		RunID:            runID,
		Entries:          Assemble(state.buffers, upTo, opts.SortByExpected),
		Partial:          partial,
		WaypointsSampled: len(sampled),
		Destinations:     len(destinations),
	}
	result.WaypointsProcessed = upTo
	result.WaypointsSkipped = int(state.skipped.Load())
	result.FetchFailures = int(state.fetchFailures.Load())

	if partial {
		o.metrics.RunsPartial.Inc()
	} else {
		o.metrics.RunsCompleted.Inc()
	}
	o.metrics.EntriesEmitted.Add(float64(len(result.Entries)))
	o.metrics.RunDuration.Observe(time.Since(start).Seconds())

	if o.hub != nil {
		o.hub.Broadcast(hub.EntryBatch{RunID: runID, WaypointIndex: upTo, Done: true, Partial: partial})
	}

	o.logger.Info("run finished",
		"run_id", runID,
		"entries", len(result.Entries),
		"partial", partial,
		"fetch_failures", result.FetchFailures,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

type runState struct {
	buffers       [][]domain.RouteEntry
	processed     []bool
	skipped       atomic.Int64
	fetchFailures atomic.Int64
}

// processWaypoint runs the per-waypoint state machine. Each index is handled
// by exactly one worker; buffers and processed need no locking because the
// WaitGroup orders all writes before the final read.
func (o *Optimizer) processWaypoint(ctx context.Context, runID string, state *runState, i int, wp domain.Waypoint, matcher *proximity.Matcher, destinations []domain.Point, opts Options) {
	if ctx.Err() != nil {
		return
	}

	if !wp.Point().Valid() {
		o.logger.Warn("skipping waypoint with missing coordinates", "run_id", runID, "waypoint_index", i)
		state.skipped.Add(1)
		state.processed[i] = true
		o.metrics.WaypointsSkipped.Inc()
		return
	}

	matches, err := matcher.Nearest(wp.Point(), opts.RadiusMeters, opts.MaxSites)
	if err != nil {
		// Options were validated up front; treat this as a skipped waypoint
		// rather than poisoning the run.
		o.logger.Error("nearest-site query failed", "run_id", runID, "waypoint_index", i, "error", err)
		state.skipped.Add(1)
		state.processed[i] = true
		return
	}

	var entries []domain.RouteEntry
	if len(matches) > 0 {
		entries = o.matchedEntries(ctx, runID, state, wp, matches, opts)
	} else {
		entries = o.fallbackEntries(runID, wp, destinations)
	}

	state.buffers[i] = entries
	state.processed[i] = true

	if o.hub != nil && len(entries) > 0 {
		o.hub.Broadcast(hub.EntryBatch{RunID: runID, WaypointIndex: i, Entries: entries})
	}
}

// matchedEntries joins each nearby site's departures to the waypoint. A site
// with zero departures contributes nothing; a failed fetch is logged and
// counted, never propagated.
func (o *Optimizer) matchedEntries(ctx context.Context, runID string, state *runState, wp domain.Waypoint, matches []proximity.Match, opts Options) []domain.RouteEntry {
	var entries []domain.RouteEntry
	for _, match := range matches {
		deps, err := o.departures.Departures(ctx, match.Site.ID, opts.DepartureWindow, opts.TransportMode)
		if err != nil {
			state.fetchFailures.Add(1)
			var srcErr *domain.DataSourceError
			if errors.As(err, &srcErr) {
				o.logger.Warn("departure fetch failed",
					"run_id", runID,
					"site_id", match.Site.ID,
					"endpoint", srcErr.Endpoint,
					"params", srcErr.Params,
					"status", srcErr.StatusCode,
				)
			} else {
				o.logger.Warn("departure fetch failed", "run_id", runID, "site_id", match.Site.ID, "error", err)
			}
			continue
		}
		o.metrics.DeparturesFetched.Add(float64(len(deps)))

		for _, dep := range deps {
			entries = append(entries, domain.RouteEntry{
				WaypointLat:     wp.Lat,
				WaypointLon:     wp.Lon,
				WaypointTime:    wp.Time,
				SiteID:          match.Site.ID,
				SiteName:        match.Site.Name,
				SiteLat:         match.Site.Lat,
				SiteLon:         match.Site.Lon,
				Destination:     dep.Destination,
				Direction:       dep.Direction,
				State:           dep.State,
				Scheduled:       dep.Scheduled,
				Expected:        dep.Expected,
				LineID:          dep.LineID,
				LineDesignation: dep.LineDesignation,
				TransportMode:   dep.TransportMode,
			})
		}
	}
	return entries
}

// fallbackEntries guarantees actionable output for a waypoint without transit
// coverage: one direct-travel estimate per known destination and mode.
func (o *Optimizer) fallbackEntries(runID string, wp domain.Waypoint, destinations []domain.Point) []domain.RouteEntry {
	entries := make([]domain.RouteEntry, 0, len(destinations)*len(domain.FallbackModes))
	for _, dest := range destinations {
		distanceKm := geo.Distance(wp.Point(), dest)
		for _, mode := range domain.FallbackModes {
			travel, err := geo.EstimateTravelTime(distanceKm, mode)
			if err != nil {
				o.logger.Error("travel time estimate failed", "run_id", runID, "mode", mode, "error", err)
				continue
			}
			entries = append(entries, domain.RouteEntry{
				WaypointLat:   wp.Lat,
				WaypointLon:   wp.Lon,
				WaypointTime:  wp.Time,
				SiteID:        domain.NoSiteID,
				Destination:   fmt.Sprintf("%.5f,%.5f", dest.Lat, dest.Lon),
				Expected:      wp.Time.Add(travel),
				LineID:        domain.FallbackLineID,
				TransportMode: string(mode),
			})
			o.metrics.FallbackEntries.Inc()
		}
	}
	return entries
}

// completedPrefix returns the length of the longest prefix of fully-processed
// waypoints. Under cancellation, completions beyond the first gap are
// discarded so the output never has holes.
func completedPrefix(processed []bool) int {
	for i, done := range processed {
		if !done {
			return i
		}
	}
	return len(processed)
}
