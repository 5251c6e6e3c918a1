package utils

import (
	"fmt"
	"time"
)

// ConvertToDate truncates t to midnight in the given timezone. History rows are
// keyed by the tenant's local calendar day, not the server's.
func ConvertToDate(t time.Time, timezone string) (time.Time, error) {
	if timezone == "" {
		timezone = "UTC"
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return t, err
	}
	localTime := t.In(location)

	dateOnly := time.Date(localTime.Year(), localTime.Month(), localTime.Day(), 0, 0, 0, 0, location)
	return dateOnly, nil
}

// DateOnlyUTC truncates t to midnight UTC. Summary dates are always UTC days so
// the same event lands in the same bucket regardless of tenant timezone.
func DateOnlyUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
