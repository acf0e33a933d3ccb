// Package geo provides great-circle distance and direct-travel time
// estimation. Coordinates cross the package boundary in degrees only.
package geo

import (
	"fmt"
	"time"

	"github.com/golang/geo/s2"

	"slroute/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used for all distance computations.
const EarthRadiusKm = 6371.0

// Assumed speeds per travel mode, in km/h.
var modeSpeeds = map[domain.TravelMode]float64{
	domain.ModeWalk: 5,
	domain.ModeBike: 15,
	domain.ModeCar:  50,
}

// Distance returns the great-circle distance between two points in
// kilometers.
func Distance(a, b domain.Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// DistanceMeters is Distance in meters.
func DistanceMeters(a, b domain.Point) float64 {
	return Distance(a, b) * 1000
}

// EstimateTravelTime returns the direct-travel duration for a distance using
// the linear speed model for the given mode. An unknown mode is a
// ConfigurationError, not a silent default.
func EstimateTravelTime(distanceKm float64, mode domain.TravelMode) (time.Duration, error) {
	if distanceKm < 0 {
		return 0, domain.ConfigurationError(fmt.Sprintf("negative distance %f km", distanceKm))
	}
	speed, ok := modeSpeeds[mode]
	if !ok {
		return 0, domain.ConfigurationError(fmt.Sprintf("unknown travel mode %q", mode))
	}
	hours := distanceKm / speed
	return time.Duration(hours * float64(time.Hour)), nil
}
