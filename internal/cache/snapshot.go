package cache

import (
	"context"
	"log/slog"
	"time"

	"slroute/internal/domain"
	"slroute/internal/transit"
)

// SnapshotWriter periodically stores the reference data (sites plus the
// merged timetable) in Redis so other analyses can reuse it without hitting
// the upstream API.
type SnapshotWriter struct {
	cache    *RedisCache
	store    *transit.Store
	interval time.Duration
	ttl      time.Duration
	logger   *slog.Logger
}

func NewSnapshotWriter(cache *RedisCache, store *transit.Store, interval, ttl time.Duration, logger *slog.Logger) *SnapshotWriter {
	return &SnapshotWriter{
		cache:    cache,
		store:    store,
		interval: interval,
		ttl:      ttl,
		logger:   logger.With("component", "snapshot_writer"),
	}
}

// Snapshot is the published reference-data shape.
type Snapshot struct {
	Sites       []domain.Site                  `json:"sites"`
	Merged      map[string][]domain.MergedLine `json:"merged_timetable"`
	GeneratedAt time.Time                      `json:"generated_at"`
}

func (w *SnapshotWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.write(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.write(ctx)
		}
	}
}

func (w *SnapshotWriter) write(ctx context.Context) {
	if w.store.SiteCount() == 0 {
		return
	}

	start := time.Now()
	snap := Snapshot{
		Sites:       w.store.Sites(),
		Merged:      w.store.Merged(),
		GeneratedAt: time.Now(),
	}

	if err := w.cache.SetJSONCompressed(ctx, KeyReferenceSnapshot, snap, w.ttl); err != nil {
		w.logger.Error("failed to write reference snapshot", "error", err)
		return
	}

	w.logger.Debug("reference snapshot written",
		"sites", len(snap.Sites),
		"lines", len(snap.Merged),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
