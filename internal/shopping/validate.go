package shopping

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"weekly-planner/internal/shared"
)

// Limits applied to incoming requests.
const (
	MaxSort       = 1000
	MaxNameLength = 200
)

// MoveRequest repositions an item, possibly into the other bucket.
type MoveRequest struct {
	HouseholdID int64
	ID          int64
	Bucket      Bucket
	Sort        int
	Week        int
	Year        int
}

// AppendRequest adds an item at the end of a bucket. When Bucket is nil the
// bucket is taken from the known ingredient, falling back to fresh.
type AppendRequest struct {
	HouseholdID       int64
	Week              int
	Year              int
	Name              string
	KnownIngredientID *int64
	Bucket            *Bucket
}

// DeleteRequest removes an item.
type DeleteRequest struct {
	HouseholdID int64
	ID          int64
	Week        int
	Year        int
}

// PurchaseRequest marks an item as purchased or not.
type PurchaseRequest struct {
	HouseholdID int64
	ID          int64
	Week        int
	Year        int
	Purchased   bool
}

func (r MoveRequest) scope() Scope     { return Scope{HouseholdID: r.HouseholdID, Week: r.Week, Year: r.Year} }
func (r AppendRequest) scope() Scope   { return Scope{HouseholdID: r.HouseholdID, Week: r.Week, Year: r.Year} }
func (r DeleteRequest) scope() Scope   { return Scope{HouseholdID: r.HouseholdID, Week: r.Week, Year: r.Year} }
func (r PurchaseRequest) scope() Scope { return Scope{HouseholdID: r.HouseholdID, Week: r.Week, Year: r.Year} }

// Validate checks the request before any store access.
func (r MoveRequest) Validate() error {
	if err := validateID(r.ID); err != nil {
		return err
	}
	if r.Sort < 0 || r.Sort > MaxSort {
		return shared.Validation("invalid_sort", fmt.Sprintf("sort must be between 0 and %d", MaxSort))
	}
	if err := shared.ValidateWeek(r.Week, r.Year); err != nil {
		return err
	}
	if !r.Bucket.Valid() {
		return shared.Validation("invalid_bucket", "bucket must be fresh or pantry")
	}
	return shared.ValidateHousehold(r.HouseholdID)
}

// Validate checks the request and returns it with the name trimmed.
func (r AppendRequest) Validate() (AppendRequest, error) {
	if err := shared.ValidateWeek(r.Week, r.Year); err != nil {
		return r, err
	}
	if err := shared.ValidateHousehold(r.HouseholdID); err != nil {
		return r, err
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return r, shared.Validation("invalid_name", "name is required")
	}
	if utf8.RuneCountInString(r.Name) > MaxNameLength {
		return r, shared.Validation("invalid_name", fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}
	if r.KnownIngredientID != nil && *r.KnownIngredientID <= 0 {
		return r, shared.Validation("invalid_ingredient", "knownIngredientId must be positive")
	}
	if r.Bucket != nil && !r.Bucket.Valid() {
		return r, shared.Validation("invalid_bucket", "bucket must be fresh or pantry")
	}
	return r, nil
}

// Validate checks the request before any store access.
func (r DeleteRequest) Validate() error {
	if err := validateID(r.ID); err != nil {
		return err
	}
	if err := shared.ValidateWeek(r.Week, r.Year); err != nil {
		return err
	}
	return shared.ValidateHousehold(r.HouseholdID)
}

// Validate checks the request before any store access.
func (r PurchaseRequest) Validate() error {
	if err := validateID(r.ID); err != nil {
		return err
	}
	if err := shared.ValidateWeek(r.Week, r.Year); err != nil {
		return err
	}
	return shared.ValidateHousehold(r.HouseholdID)
}

func validateScope(s Scope) error {
	if err := shared.ValidateWeek(s.Week, s.Year); err != nil {
		return err
	}
	return shared.ValidateHousehold(s.HouseholdID)
}

func validateID(id int64) error {
	if id <= 0 {
		return shared.Validation("invalid_id", "id must be a positive integer")
	}
	return nil
}
