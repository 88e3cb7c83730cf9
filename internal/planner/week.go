package planner

import "time"

// GetNextMonday returns the date of the next Monday at midnight in t's location.
// If t is a Monday, the Monday of the following week is returned.
func GetNextMonday(t time.Time) time.Time {
	daysUntil := (8 - int(t.Weekday())) % 7
	if daysUntil == 0 {
		daysUntil = 7
	}
	next := t.AddDate(0, 0, daysUntil)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, t.Location())
}

// CurrentWeek returns the ISO year and week containing t.
func CurrentWeek(t time.Time) (year, week int) {
	return t.ISOWeek()
}

// NextWeek returns the ISO year and week that starts on the Monday after t.
func NextWeek(t time.Time) (year, week int) {
	return GetNextMonday(t).ISOWeek()
}
