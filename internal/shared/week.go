package shared

import "fmt"

// Accepted ranges for planning weeks.
const (
	MinWeek = 1
	MaxWeek = 53
	MinYear = 2000
	MaxYear = 2100
)

// ValidateWeek checks that week and year identify a plannable ISO week.
func ValidateWeek(week, year int) error {
	if week < MinWeek || week > MaxWeek {
		return Validation("invalid_week", fmt.Sprintf("week must be between %d and %d", MinWeek, MaxWeek))
	}
	if year < MinYear || year > MaxYear {
		return Validation("invalid_year", fmt.Sprintf("year must be between %d and %d", MinYear, MaxYear))
	}
	return nil
}

// ValidateHousehold checks that a household id was resolved for the caller.
func ValidateHousehold(householdID int64) error {
	if householdID <= 0 {
		return Validation("invalid_household", "household id must be positive")
	}
	return nil
}
