package shopping

import "fmt"

// Bucket is one of the two parallel sub-lists of a week's shopping list.
type Bucket string

const (
	BucketFresh  Bucket = "fresh"
	BucketPantry Bucket = "pantry"
)

// BucketFromFresh maps the wire-level "fresh" flag to a Bucket.
func BucketFromFresh(fresh bool) Bucket {
	if fresh {
		return BucketFresh
	}
	return BucketPantry
}

// ParseBucket accepts "fresh" or "pantry".
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(s)
	if !b.Valid() {
		return "", fmt.Errorf("unknown bucket %q", s)
	}
	return b, nil
}

func (b Bucket) Valid() bool {
	return b == BucketFresh || b == BucketPantry
}

// Other returns the opposite bucket.
func (b Bucket) Other() Bucket {
	if b == BucketFresh {
		return BucketPantry
	}
	return BucketFresh
}

// Scope identifies one household's list for one week. All reads and writes of
// shopping list items are restricted to a scope.
type Scope struct {
	HouseholdID int64
	Week        int
	Year        int
}

func (s Scope) String() string {
	return fmt.Sprintf("household %d %d-W%02d", s.HouseholdID, s.Year, s.Week)
}

// Item is a single shopping list entry.
type Item struct {
	ID           int64    `json:"id"`
	HouseholdID  int64    `json:"-"`
	Week         int      `json:"week"`
	Year         int      `json:"year"`
	Bucket       Bucket   `json:"bucket"`
	Sort         int      `json:"sort"`
	Name         string   `json:"name"`
	Cost         *float64 `json:"cost"`
	Stockcode    *string  `json:"stockcode"`
	Purchased    bool     `json:"purchased"`
	IngredientID *int64   `json:"ingredientId,omitempty"`
}

// List is a week's shopping list, each bucket ordered by sort.
type List struct {
	Fresh  []Item `json:"fresh"`
	Pantry []Item `json:"pantry"`
}

// Bucket returns the items of b.
func (l *List) Bucket(b Bucket) []Item {
	if b == BucketFresh {
		return l.Fresh
	}
	return l.Pantry
}

// Ingredient is a known ingredient items can be created from.
type Ingredient struct {
	ID        int64
	Name      string
	Cost      *float64
	Stockcode *string
	Pantry    bool
	Public    bool
}

// MoveResult carries the week's list after a successful move so callers can
// reconcile any optimistic local state.
type MoveResult struct {
	Fresh  []Item `json:"fresh"`
	Pantry []Item `json:"pantry"`
}
