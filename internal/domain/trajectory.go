package domain

import (
	"math"
	"time"
)

// Point is a bare lat/lon pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both coordinates are present and inside the usual
// degree ranges. NaN means the fix is missing, not at the origin.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Waypoint is one timestamped GPS fix belonging to a trajectory.
type Waypoint struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Time      time.Time `json:"time"`
	Elevation *float64  `json:"elevation,omitempty"`
}

// Point returns the waypoint's coordinates.
func (w Waypoint) Point() Point {
	return Point{Lat: w.Lat, Lon: w.Lon}
}

// TravelMode is a direct-travel mode used for fallback estimates.
type TravelMode string

const (
	ModeWalk TravelMode = "walk"
	ModeBike TravelMode = "bike"
	ModeCar  TravelMode = "car"
)

// FallbackModes lists the modes a fallback route entry is emitted for, in
// output order.
var FallbackModes = []TravelMode{ModeWalk, ModeBike, ModeCar}
