// Package proximity finds the transit sites near a point.
package proximity

import (
	"fmt"
	"math"
	"sort"

	"slroute/internal/domain"
	"slroute/internal/geo"
)

// bucketZoom trades bucket granularity against neighborhood size; at zoom 15
// one tile is a few hundred meters across in Nordic latitudes, comfortably
// finer than the radii in use.
const bucketZoom = 15

// Meters per degree of latitude on the mean-radius sphere; also meters per
// degree of longitude at the equator.
const metersPerDegreeLat = geo.EarthRadiusKm * 1000 * math.Pi / 180

// Match pairs a site with its great-circle distance from the query point.
type Match struct {
	Site           domain.Site `json:"site"`
	DistanceMeters float64     `json:"distance_meters"`
}

// Matcher indexes an immutable site snapshot for nearest-site queries.
type Matcher struct {
	sites   []domain.Site
	buckets map[string][]int // tile id -> site ordinals, ascending
}

// NewMatcher builds the index. Sites with missing coordinates are excluded
// from the buckets so they can never match.
func NewMatcher(sites []domain.Site) *Matcher {
	m := &Matcher{
		sites:   sites,
		buckets: make(map[string][]int),
	}
	for i, s := range sites {
		if math.IsNaN(s.Lat) || math.IsNaN(s.Lon) {
			continue
		}
		id := tileID(s.Lat, s.Lon, bucketZoom)
		m.buckets[id] = append(m.buckets[id], i)
	}
	return m
}

// Nearest returns the at most n sites within radiusMeters of p, ordered
// ascending by distance. Equal distances keep the site input order, so
// repeated queries over the same snapshot are deterministic.
func (m *Matcher) Nearest(p domain.Point, radiusMeters float64, n int) ([]Match, error) {
	if radiusMeters <= 0 {
		return nil, domain.ConfigurationError(fmt.Sprintf("radius must be positive, got %f", radiusMeters))
	}
	if n <= 0 {
		return nil, domain.ConfigurationError(fmt.Sprintf("candidate count must be positive, got %d", n))
	}
	if !p.Valid() {
		return nil, nil
	}

	candidates := m.candidates(p, radiusMeters)

	matches := make([]Match, 0, len(candidates))
	for _, i := range candidates {
		site := m.sites[i]
		d := geo.DistanceMeters(p, domain.Point{Lat: site.Lat, Lon: site.Lon})
		if d <= radiusMeters {
			matches = append(matches, Match{Site: site, DistanceMeters: d})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].DistanceMeters < matches[b].DistanceMeters
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

// candidates gathers the ordinals of sites in every tile touching the radius
// bounding box around p, in input order.
func (m *Matcher) candidates(p domain.Point, radiusMeters float64) []int {
	latDelta := radiusMeters / metersPerDegreeLat
	lonScale := math.Cos(p.Lat * math.Pi / 180.0)
	lonDelta := 180.0
	if lonScale > 1e-6 {
		lonDelta = radiusMeters / (metersPerDegreeLat * lonScale)
	}

	minLat := math.Max(p.Lat-latDelta, -90)
	maxLat := math.Min(p.Lat+latDelta, 90)
	minLon := math.Max(p.Lon-lonDelta, -180)
	maxLon := math.Min(p.Lon+lonDelta, 180)

	var ordinals []int
	for _, tile := range tilesInBBox(minLat, minLon, maxLat, maxLon, bucketZoom) {
		ordinals = append(ordinals, m.buckets[tile]...)
	}
	sort.Ints(ordinals)
	return ordinals
}
