package proximity

import (
	"errors"
	"math"
	"testing"

	"slroute/internal/domain"
)

// Sites around Stockholm city center at increasing distance from Sergels torg.
func stockholmSites() []domain.Site {
	return []domain.Site{
		{ID: "9001", Name: "T-Centralen", Lat: 59.3313, Lon: 18.0616},
		{ID: "9192", Name: "Slussen", Lat: 59.3200, Lon: 18.0719},
		{ID: "9117", Name: "Odenplan", Lat: 59.3428, Lon: 18.0493},
		{ID: "9507", Name: "Gullmarsplan", Lat: 59.2990, Lon: 18.0810},
	}
}

var sergelsTorg = domain.Point{Lat: 59.3326, Lon: 18.0649}

func TestNearestWithinRadius(t *testing.T) {
	m := NewMatcher(stockholmSites())

	matches, err := m.Nearest(sergelsTorg, 500, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected only T-Centralen within 500m, got %d matches", len(matches))
	}
	if matches[0].Site.ID != "9001" {
		t.Errorf("expected site 9001, got %s", matches[0].Site.ID)
	}
	if matches[0].DistanceMeters <= 0 || matches[0].DistanceMeters > 500 {
		t.Errorf("distance %f outside (0, 500]", matches[0].DistanceMeters)
	}
}

func TestNearestOrderedByDistance(t *testing.T) {
	m := NewMatcher(stockholmSites())

	matches, err := m.Nearest(sergelsTorg, 5000, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 4 {
		t.Fatalf("expected all 4 sites within 5km, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].DistanceMeters < matches[i-1].DistanceMeters {
			t.Errorf("matches not ordered: %f before %f", matches[i-1].DistanceMeters, matches[i].DistanceMeters)
		}
	}
	if matches[0].Site.ID != "9001" {
		t.Errorf("closest site should be 9001, got %s", matches[0].Site.ID)
	}
}

func TestNearestLimitsToN(t *testing.T) {
	m := NewMatcher(stockholmSites())

	matches, err := m.Nearest(sergelsTorg, 5000, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestNearestEqualDistanceKeepsInputOrder(t *testing.T) {
	// Two sites at the same coordinates tie exactly.
	sites := []domain.Site{
		{ID: "b-first", Name: "B", Lat: 59.3313, Lon: 18.0616},
		{ID: "a-second", Name: "A", Lat: 59.3313, Lon: 18.0616},
	}
	m := NewMatcher(sites)

	matches, err := m.Nearest(sergelsTorg, 5000, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected both sites, got %d", len(matches))
	}
	if matches[0].Site.ID != "b-first" || matches[1].Site.ID != "a-second" {
		t.Errorf("ties must keep input order, got %s, %s", matches[0].Site.ID, matches[1].Site.ID)
	}
}

func TestNearestNoSitesInRange(t *testing.T) {
	m := NewMatcher(stockholmSites())

	// Uppsala is ~64km away.
	matches, err := m.Nearest(domain.Point{Lat: 59.8586, Lon: 17.6389}, 1000, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestNearestExcludesSitesWithMissingCoordinates(t *testing.T) {
	sites := append(stockholmSites(), domain.Site{ID: "broken", Name: "NaN", Lat: math.NaN(), Lon: math.NaN()})
	m := NewMatcher(sites)

	matches, err := m.Nearest(sergelsTorg, 5000, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, match := range matches {
		if match.Site.ID == "broken" {
			t.Error("site with missing coordinates matched")
		}
	}
}

func TestNearestInvalidQueryPoint(t *testing.T) {
	m := NewMatcher(stockholmSites())

	matches, err := m.Nearest(domain.Point{Lat: math.NaN(), Lon: math.NaN()}, 500, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches != nil {
		t.Errorf("missing fix should match nothing, got %d", len(matches))
	}
}

func TestNearestParameterValidation(t *testing.T) {
	m := NewMatcher(stockholmSites())

	tests := []struct {
		name   string
		radius float64
		n      int
	}{
		{"zero radius", 0, 3},
		{"negative radius", -10, 3},
		{"zero n", 500, 0},
		{"negative n", 500, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Nearest(sergelsTorg, tc.radius, tc.n)
			var cfgErr domain.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestNearestFindsSiteAtRadiusEdge(t *testing.T) {
	// A site just inside the radius, due north of the query point, must fall
	// inside the candidate bounding box at any latitude.
	const radius = 400.0
	for _, lat := range []float64{55.6, 59.33, 63.8, 67.9} {
		base := domain.Point{Lat: lat, Lon: 18.0}
		siteLat := lat + radius*0.999/metersPerDegreeLat
		m := NewMatcher([]domain.Site{{ID: "edge", Name: "Edge", Lat: siteLat, Lon: 18.0}})

		matches, err := m.Nearest(base, radius, 1)
		if err != nil {
			t.Fatalf("lat %f: unexpected error: %v", lat, err)
		}
		if len(matches) != 1 {
			t.Errorf("lat %f: site just inside the radius was missed", lat)
		}
	}
}

func TestTileBucketsCoverBoundaryNeighbors(t *testing.T) {
	// A site just across a tile boundary from the query point must still be
	// found when it is within the radius.
	base := sergelsTorg
	var neighbor domain.Site
	found := false
	for d := 0.0005; d < 0.015; d += 0.0005 {
		cand := domain.Site{ID: "n", Name: "N", Lat: base.Lat, Lon: base.Lon + d}
		if tileID(cand.Lat, cand.Lon, bucketZoom) != tileID(base.Lat, base.Lon, bucketZoom) {
			neighbor = cand
			found = true
			break
		}
	}
	if !found {
		t.Fatal("could not construct a cross-tile neighbor")
	}

	m := NewMatcher([]domain.Site{neighbor})
	matches, err := m.Nearest(base, 2000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatal("cross-tile neighbor within radius was not found")
	}
}
