// Package refresher keeps the transit reference data current by polling the
// upstream API. Sites, lines and deviations are fetched concurrently on each
// cycle.
package refresher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"slroute/internal/domain"
	"slroute/internal/metrics"
	"slroute/internal/transit"
)

// ReferenceSource is the upstream reference-data API.
type ReferenceSource interface {
	Sites(ctx context.Context) ([]domain.Site, int, error)
	Lines(ctx context.Context) ([]domain.TimetableEntry, int, error)
	Deviations(ctx context.Context) ([]domain.Deviation, error)
}

// FallbackSiteSource supplies sites when the live API has never succeeded,
// e.g. the static GTFS stops dump.
type FallbackSiteSource interface {
	Load(ctx context.Context) ([]domain.Site, error)
}

type Refresher struct {
	source   ReferenceSource
	fallback FallbackSiteSource
	store    *transit.Store
	interval time.Duration
	metrics  *metrics.Collector
	logger   *slog.Logger

	ready   bool
	readyMu sync.RWMutex
}

func New(source ReferenceSource, fallback FallbackSiteSource, store *transit.Store, interval time.Duration, m *metrics.Collector, logger *slog.Logger) *Refresher {
	return &Refresher{
		source:   source,
		fallback: fallback,
		store:    store,
		interval: interval,
		metrics:  m,
		logger:   logger.With("component", "refresher"),
	}
}

// Run refreshes once immediately and then on every interval tick until the
// context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// EnsureReference usually ran already; skip the extra upfront cycle then.
	if !r.IsReady() {
		r.refresh(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	start := time.Now()

	var wg sync.WaitGroup
	var sites []domain.Site
	var lines []domain.TimetableEntry
	var devs []domain.Deviation
	var droppedSites, droppedLines int
	var siteErr, lineErr, devErr error

	wg.Add(3)
	go func() {
		defer wg.Done()
		sites, droppedSites, siteErr = r.source.Sites(ctx)
	}()
	go func() {
		defer wg.Done()
		lines, droppedLines, lineErr = r.source.Lines(ctx)
	}()
	go func() {
		defer wg.Done()
		devs, devErr = r.source.Deviations(ctx)
	}()
	wg.Wait()

	if siteErr != nil {
		r.logger.Error("failed to fetch sites", "error", siteErr)
		r.metrics.FetchErrors.WithLabelValues("sites").Inc()
	} else {
		r.store.SetSites(sites, droppedSites)
		r.metrics.DroppedReferenceRows.WithLabelValues("site").Add(float64(droppedSites))
	}

	if lineErr != nil {
		r.logger.Error("failed to fetch lines", "error", lineErr)
		r.metrics.FetchErrors.WithLabelValues("lines").Inc()
	} else {
		r.store.SetLines(lines, droppedLines)
		r.metrics.DroppedReferenceRows.WithLabelValues("line").Add(float64(droppedLines))
	}

	if devErr != nil {
		r.logger.Error("failed to fetch deviations", "error", devErr)
		r.metrics.FetchErrors.WithLabelValues("deviations").Inc()
	} else {
		r.store.SetDeviations(devs)
	}

	if siteErr != nil && r.store.SiteCount() == 0 && r.fallback != nil {
		r.loadFallbackSites(ctx)
	}

	r.metrics.SitesLoaded.Set(float64(r.store.SiteCount()))
	r.metrics.RefreshDuration.Observe(time.Since(start).Seconds())

	if !r.IsReady() && r.store.SiteCount() > 0 {
		r.setReady(true)
		r.logger.Info("reference data ready",
			"sites", r.store.SiteCount(),
			"lines", len(lines),
			"deviations", len(devs),
		)
	}

	r.logger.Debug("refresh completed",
		"sites", len(sites),
		"lines", len(lines),
		"deviations", len(devs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (r *Refresher) loadFallbackSites(ctx context.Context) {
	sites, err := r.fallback.Load(ctx)
	if err != nil {
		r.logger.Error("fallback site load failed", "error", err)
		r.metrics.FetchErrors.WithLabelValues("gtfs_fallback").Inc()
		return
	}
	r.store.SetSites(sites, 0)
	r.logger.Warn("loaded sites from static fallback", "sites", len(sites))
}

// EnsureReference performs one synchronous refresh and fails if no site data
// is available afterwards. Called at startup: a run without minimal site data
// is not attempted.
func (r *Refresher) EnsureReference(ctx context.Context) error {
	r.refresh(ctx)
	if r.store.SiteCount() == 0 {
		return domain.ErrNoReferenceData
	}
	return nil
}

func (r *Refresher) IsReady() bool {
	r.readyMu.RLock()
	defer r.readyMu.RUnlock()
	return r.ready
}

func (r *Refresher) setReady(ready bool) {
	r.readyMu.Lock()
	defer r.readyMu.Unlock()
	r.ready = ready
}
