package optimizer

import (
	"sort"

	"slroute/internal/domain"
)

// Assemble materializes the ordered route entry table from per-waypoint
// buffers. Output follows waypoint sampling order; within a waypoint the
// entries keep site-match order then upstream departure order. sortByExpected
// is the one declared post-processing step: earliest expected departure first
// within each waypoint, fallback entries after timed ones.
func Assemble(buffers [][]domain.RouteEntry, upTo int, sortByExpected bool) []domain.RouteEntry {
	if upTo > len(buffers) {
		upTo = len(buffers)
	}

	total := 0
	for _, b := range buffers[:upTo] {
		total += len(b)
	}

	entries := make([]domain.RouteEntry, 0, total)
	for _, b := range buffers[:upTo] {
		if sortByExpected {
			b = sortedByExpected(b)
		}
		entries = append(entries, b...)
	}
	return entries
}

func sortedByExpected(entries []domain.RouteEntry) []domain.RouteEntry {
	out := make([]domain.RouteEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Expected.Before(out[b].Expected)
	})
	return out
}
