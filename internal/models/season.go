package models

import (
	"fmt"
	"time"
)

// Season identifies an NBA season by the year it starts in
type Season int

// SeasonFor returns the season in progress at t. Seasons roll over in October.
func SeasonFor(t time.Time) Season {
	if t.Month() >= time.October {
		return Season(t.Year())
	}
	return Season(t.Year() - 1)
}

// String renders the provider's season label, e.g. "2025-26"
func (s Season) String() string {
	return fmt.Sprintf("%d-%02d", int(s), (int(s)+1)%100)
}

// DefaultStart returns October 1 of the season's first year
func (s Season) DefaultStart() time.Time {
	return time.Date(int(s), time.October, 1, 0, 0, 0, 0, time.UTC)
}

// CivilDate truncates t to midnight UTC of its calendar date in loc
func CivilDate(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
