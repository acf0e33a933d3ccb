// Package trajectory models an ordered sequence of GPS fixes for one
// traveler: parsing, dwell-based destination detection, sampling and derived
// per-segment statistics.
package trajectory

import (
	"fmt"
	"math"
	"time"

	"slroute/internal/domain"
	"slroute/internal/geo"
)

// Timestamp layouts accepted on input, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// RawPoint is one record of an incoming trajectory before validation.
type RawPoint struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Time      string   `json:"time"`
	Elevation *float64 `json:"elevation,omitempty"`
}

// Trajectory is an immutable ordered waypoint sequence.
type Trajectory struct {
	points []domain.Waypoint
}

// Parse validates an ordered sequence of raw points into a Trajectory.
// Unparseable timestamps, out-of-range coordinates and decreasing timestamps
// yield a MalformedInputError. NaN coordinates pass through: they mark a
// missing fix and are skipped downstream, never treated as zero.
func Parse(points []RawPoint) (*Trajectory, error) {
	if len(points) == 0 {
		return nil, &domain.MalformedInputError{Index: 0, Reason: "empty trajectory"}
	}

	parsed := make([]domain.Waypoint, 0, len(points))
	var prev time.Time

	for i, p := range points {
		ts, err := parseTime(p.Time)
		if err != nil {
			return nil, &domain.MalformedInputError{Index: i, Reason: fmt.Sprintf("unparseable timestamp %q", p.Time)}
		}
		if i > 0 && ts.Before(prev) {
			return nil, &domain.MalformedInputError{Index: i, Reason: "timestamp decreases within trajectory"}
		}
		if !math.IsNaN(p.Lat) && (p.Lat < -90 || p.Lat > 90) {
			return nil, &domain.MalformedInputError{Index: i, Reason: fmt.Sprintf("latitude %f out of range", p.Lat)}
		}
		if !math.IsNaN(p.Lon) && (p.Lon < -180 || p.Lon > 180) {
			return nil, &domain.MalformedInputError{Index: i, Reason: fmt.Sprintf("longitude %f out of range", p.Lon)}
		}

		parsed = append(parsed, domain.Waypoint{
			Lat:       p.Lat,
			Lon:       p.Lon,
			Time:      ts,
			Elevation: p.Elevation,
		})
		prev = ts
	}

	return &Trajectory{points: parsed}, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched %q", s)
}

// Len returns the number of waypoints.
func (t *Trajectory) Len() int { return len(t.points) }

// Waypoints returns a copy of the waypoint sequence.
func (t *Trajectory) Waypoints() []domain.Waypoint {
	out := make([]domain.Waypoint, len(t.points))
	copy(out, t.points)
	return out
}

// Destinations returns the indexes of waypoints where the dwell time before
// the next fix is at least minStay. The last waypoint has no next fix and is
// never flagged by this rule.
func (t *Trajectory) Destinations(minStay time.Duration) []int {
	var idx []int
	for i := 0; i < len(t.points)-1; i++ {
		if t.points[i+1].Time.Sub(t.points[i].Time) >= minStay {
			idx = append(idx, i)
		}
	}
	return idx
}

// DestinationPoints returns the coordinates of the flagged destinations,
// excluding any with a missing fix.
func (t *Trajectory) DestinationPoints(minStay time.Duration) []domain.Point {
	var pts []domain.Point
	for _, i := range t.Destinations(minStay) {
		p := t.points[i].Point()
		if p.Valid() {
			pts = append(pts, p)
		}
	}
	return pts
}

// Sample returns every step-th waypoint, starting at the first. Sampling
// bounds the number of external departure fetches; it is a cost tradeoff, not
// a correctness requirement.
func (t *Trajectory) Sample(step int) ([]domain.Waypoint, error) {
	if step <= 0 {
		return nil, domain.ConfigurationError(fmt.Sprintf("sample step must be positive, got %d", step))
	}
	out := make([]domain.Waypoint, 0, len(t.points)/step+1)
	for i := 0; i < len(t.points); i += step {
		out = append(out, t.points[i])
	}
	return out, nil
}

// SegmentStats describes the leg between a waypoint and the next one.
type SegmentStats struct {
	DistanceKm float64       `json:"distance_km"`
	TimeDelta  time.Duration `json:"time_delta"`
	SpeedKmh   float64       `json:"speed_kmh"`
}

// Segments returns per-leg distance, time delta and instantaneous speed.
// Legs touching a missing fix report zero distance and speed.
func (t *Trajectory) Segments() []SegmentStats {
	if len(t.points) < 2 {
		return nil
	}
	segs := make([]SegmentStats, 0, len(t.points)-1)
	for i := 0; i < len(t.points)-1; i++ {
		a, b := t.points[i], t.points[i+1]
		s := SegmentStats{TimeDelta: b.Time.Sub(a.Time)}
		if a.Point().Valid() && b.Point().Valid() {
			s.DistanceKm = geo.Distance(a.Point(), b.Point())
			if hours := s.TimeDelta.Hours(); hours > 0 {
				s.SpeedKmh = s.DistanceKm / hours
			}
		}
		segs = append(segs, s)
	}
	return segs
}

// TotalDistanceKm sums the segment distances.
func (t *Trajectory) TotalDistanceKm() float64 {
	var total float64
	for _, s := range t.Segments() {
		total += s.DistanceKm
	}
	return total
}
