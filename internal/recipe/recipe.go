package recipe

import (
	"strings"
	"time"
)

// Recipe is a household recipe as seen by the planner. Ingredients are ordered by
// significance: index 0 is the primary ingredient, index 1 the secondary one.
type Recipe struct {
	ID          string    `json:"id"`
	HouseholdID int64     `json:"-"`
	Title       string    `json:"title"`
	Ingredients []string  `json:"ingredients"`
	UpdatedAt   time.Time `json:"-"`
}

// Selectable reports whether the recipe can take part in a random selection.
func (r Recipe) Selectable() bool {
	return len(r.Ingredients) > 0
}

// Primary returns the primary ingredient, or "" when the recipe has none.
func (r Recipe) Primary() string {
	if len(r.Ingredients) == 0 {
		return ""
	}
	return r.Ingredients[0]
}

// Secondary returns the secondary ingredient and whether the recipe has one.
func (r Recipe) Secondary() (string, bool) {
	if len(r.Ingredients) < 2 {
		return "", false
	}
	return r.Ingredients[1], true
}

// Summary renders the recipe as a single line, e.g. "Pad Thai (noodles, tofu)".
func (r Recipe) Summary() string {
	if len(r.Ingredients) == 0 {
		return r.Title
	}
	n := min(len(r.Ingredients), 2)
	return r.Title + " (" + strings.Join(r.Ingredients[:n], ", ") + ")"
}
