package domain

import (
	"fmt"
	"time"
)

// Sessions run 2.5 hours from slot start; a booking stays usable until the
// session ends, not until it starts.
const SessionDuration = 150 * time.Minute

// WIB is western Indonesia time, where the business operates.
var WIB = time.FixedZone("WIB", 7*60*60)

const AllDaySlot = "all-day"

// SessionEnd parses a YYYY-MM-DD date and HH:MM slot and returns when that
// session finishes.
func SessionEnd(date, timeSlot string) (time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeSlot, WIB)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse session start: %w", err)
	}
	return start.Add(SessionDuration), nil
}
