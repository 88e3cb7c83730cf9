package planner

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"weekly-planner/internal/database"
	"weekly-planner/internal/recipe"
	"weekly-planner/internal/shared"
	"weekly-planner/internal/telemetry"
)

// DefaultCount is the number of recipes proposed when the caller does not say.
const DefaultCount = 3

// Catalog lists the recipes a household can plan with. A nil slice with a nil
// error means the catalog could not be read.
type Catalog interface {
	ListByHousehold(ctx context.Context, householdID int64) ([]recipe.Recipe, error)
}

// PlanStore persists the recipes chosen for a week.
type PlanStore interface {
	Save(ctx context.Context, plan MealPlan) error
}

// RandomizeRequest asks for a random set of compatible recipes. When Week and
// Year are set the selection is stored as that week's plan.
type RandomizeRequest struct {
	HouseholdID int64
	Count       int
	Week        int
	Year        int
}

// RandomizeResult is the outcome of Randomize.
type RandomizeResult struct {
	Recipes        []recipe.Recipe `json:"recipes"`
	TotalAvailable int             `json:"totalAvailable"`
}

// Planner proposes recipes for a household's week.
type Planner struct {
	catalog Catalog
	plans   PlanStore
	src     Source
	op      *telemetry.Operation
}

// Option customizes a Planner.
type Option func(*Planner)

// WithSource injects the random source used for shuffling.
func WithSource(src Source) Option {
	return func(p *Planner) { p.src = src }
}

// WithPlanStore enables persisting selections as week plans.
func WithPlanStore(plans PlanStore) Option {
	return func(p *Planner) { p.plans = plans }
}

// WithOperation instruments Randomize with op.
func WithOperation(op *telemetry.Operation) Option {
	return func(p *Planner) { p.op = op }
}

// NewPlanner creates a new Planner instance.
func NewPlanner(catalog Catalog, opts ...Option) *Planner {
	p := &Planner{catalog: catalog, src: DefaultSource}
	for _, opt := range opts {
		opt(p)
	}
	if p.op == nil {
		p.op = telemetry.NewOperation(nil)
	}
	return p
}

// Randomize fetches the household's recipes and selects a compatible subset.
func (p *Planner) Randomize(ctx context.Context, req RandomizeRequest) (_ *RandomizeResult, err error) {
	ctx, end := p.op.Start(ctx, "planner.randomize",
		attribute.Int64("household.id", req.HouseholdID),
		attribute.Int("count", req.Count),
	)
	defer func() { end(err) }()

	if err := shared.ValidateHousehold(req.HouseholdID); err != nil {
		return nil, err
	}
	persist := req.Week != 0 || req.Year != 0
	if persist {
		if err := shared.ValidateWeek(req.Week, req.Year); err != nil {
			return nil, err
		}
	}

	candidates, err := p.catalog.ListByHousehold(ctx, req.HouseholdID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch recipes", "household_id", req.HouseholdID, "error", err)
		return nil, shared.CatalogUnavailable("catalog_error", "failed to fetch recipes", err)
	}
	if candidates == nil {
		return nil, shared.CatalogUnavailable("catalog_unavailable", "failed to fetch recipes from database", nil)
	}

	selected := Select(candidates, req.Count, p.src)

	// An empty selection keeps whatever plan the week already has.
	if persist && p.plans != nil && len(selected) > 0 {
		plan := MealPlan{
			HouseholdID: req.HouseholdID,
			Week:        req.Week,
			Year:        req.Year,
			RecipeIDs:   recipeIDs(selected),
			CreatedAt:   time.Now(),
		}
		if err := p.plans.Save(ctx, plan); err != nil {
			return nil, database.Classify(err)
		}
	}

	slog.DebugContext(ctx, "randomized recipes",
		"household_id", req.HouseholdID,
		"requested", req.Count,
		"selected", len(selected),
		"available", len(candidates),
	)

	return &RandomizeResult{
		Recipes:        selected,
		TotalAvailable: len(candidates),
	}, nil
}

// ParseCount interprets a user supplied recipe count. Empty or non-numeric input
// yields def, fractions truncate toward zero and negative values become 0.
func ParseCount(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return max(n, 0)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	f = math.Trunc(f)
	if f < 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func recipeIDs(recipes []recipe.Recipe) []string {
	ids := make([]string, 0, len(recipes))
	for _, r := range recipes {
		ids = append(ids, r.ID)
	}
	return ids
}
