package domain

import (
	"errors"
	"fmt"
)

// ErrNoReferenceData is returned when an optimization run is attempted with
// no transit reference data loaded at all. This is fatal for the run: without
// site data no meaningful matching is possible.
var ErrNoReferenceData = errors.New("transit reference data unavailable")

// MalformedInputError means trajectory input could not be parsed or
// normalized. The run for that trajectory aborts.
type MalformedInputError struct {
	Index  int
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed trajectory input at point %d: %s", e.Index, e.Reason)
}

// DataSourceError wraps a failed external transit API call with enough
// context to diagnose it. Callers treat it as "no data available" and log it;
// it never aborts a whole optimization run.
type DataSourceError struct {
	Endpoint   string
	Params     string
	StatusCode int
	Err        error
}

func (e *DataSourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transit data source %s (%s): status %d", e.Endpoint, e.Params, e.StatusCode)
	}
	return fmt.Sprintf("transit data source %s (%s): %v", e.Endpoint, e.Params, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// ConfigurationError indicates an invalid parameter such as an unknown travel
// mode or a non-positive radius. It is a programming or configuration bug,
// fatal at the call site.
type ConfigurationError string

func (e ConfigurationError) Error() string {
	return "invalid configuration: " + string(e)
}
