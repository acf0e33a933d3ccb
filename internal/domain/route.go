package domain

import "time"

const (
	// NoSiteID marks a route entry produced by the direct-travel fallback
	// rather than a matched transit site.
	NoSiteID = "no-site"

	// FallbackLineID is the line id carried by fallback entries.
	FallbackLineID = "N/A"
)

// RouteEntry is one unit of the optimizer's output: a sampled waypoint joined
// to either one transit departure at a nearby site, or one direct-travel
// estimate to a known destination. Entries are never mutated after creation.
type RouteEntry struct {
	WaypointLat  float64   `json:"waypoint_lat"`
	WaypointLon  float64   `json:"waypoint_lon"`
	WaypointTime time.Time `json:"waypoint_time"`

	SiteID   string  `json:"site_id"`
	SiteName string  `json:"site_name,omitempty"`
	SiteLat  float64 `json:"site_lat,omitempty"`
	SiteLon  float64 `json:"site_lon,omitempty"`

	Destination     string    `json:"destination"`
	Direction       string    `json:"direction,omitempty"`
	State           string    `json:"state,omitempty"`
	Scheduled       time.Time `json:"scheduled,omitzero"`
	Expected        time.Time `json:"expected"`
	LineID          string    `json:"line_id"`
	LineDesignation string    `json:"line_designation,omitempty"`
	TransportMode   string    `json:"transport_mode"`
}

// IsFallback reports whether the entry came from the direct-travel fallback.
func (e RouteEntry) IsFallback() bool {
	return e.SiteID == NoSiteID
}
