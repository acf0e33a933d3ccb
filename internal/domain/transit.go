package domain

import "time"

// Site represents a transit boarding location from the SL integration API.
type Site struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Note string  `json:"note,omitempty"`
}

// TimetableEntry is one transit line flattened out of the mode-keyed
// /v1/lines response.
type TimetableEntry struct {
	LineID             string    `json:"line_id"`
	TransportMode      string    `json:"transport_mode"`
	Designation        string    `json:"designation"`
	ValidFrom          time.Time `json:"valid_from"`
	ValidTo            time.Time `json:"valid_to,omitzero"`
	TransportAuthority string    `json:"transport_authority"`
}

// Deviation is a service disruption scoped to zero or more lines. LineIDs is
// empty when the upstream message carried no scope.lines array; such
// deviations never join against the timetable.
type Deviation struct {
	LineIDs   []string  `json:"line_ids"`
	Priority  int       `json:"priority"`
	Message   string    `json:"message"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to,omitzero"`
}

// MergedLine is one row of the timetable/deviation join. Deviation is nil for
// lines kept through the left join without an active deviation.
type MergedLine struct {
	Line      TimetableEntry `json:"line"`
	Deviation *Deviation     `json:"deviation,omitempty"`
}

// Departure is one scheduled or real-time vehicle departure from a site.
type Departure struct {
	Destination     string    `json:"destination"`
	Direction       string    `json:"direction"`
	State           string    `json:"state"`
	Scheduled       time.Time `json:"scheduled"`
	Expected        time.Time `json:"expected"`
	LineID          string    `json:"line_id"`
	LineDesignation string    `json:"line_designation"`
	TransportMode   string    `json:"transport_mode"`
}
