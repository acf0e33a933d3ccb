package cache

import (
	"fmt"
	"time"
)

const KeyReferenceSnapshot = "reference:snapshot"

func KeyDepartures(siteID string, window time.Duration, transportMode string) string {
	if transportMode == "" {
		return fmt.Sprintf("departures:%s:%d", siteID, int(window.Minutes()))
	}
	return fmt.Sprintf("departures:%s:%d:%s", siteID, int(window.Minutes()), transportMode)
}
