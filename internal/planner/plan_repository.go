package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"weekly-planner/internal/database"
)

// MealPlan represents the recipes stored for one household week.
type MealPlan struct {
	HouseholdID int64
	Year        int
	Week        int
	RecipeIDs   []string
	CreatedAt   time.Time
}

// PlanRepository is a database-backed repository for meal plans.
type PlanRepository struct {
	db *database.DB
	q  *database.Querier
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db *database.DB) *PlanRepository {
	return &PlanRepository{db: db, q: db.Querier()}
}

// Save stores the plan, replacing any plan already stored for the same week.
func (r *PlanRepository) Save(ctx context.Context, plan MealPlan) error {
	ids, err := json.Marshal(plan.RecipeIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe ids: %w", err)
	}
	createdAt := plan.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO meal_plans (household_id, year, week, recipe_ids, created_at) VALUES (?, ?, ?, ?, ?)`
	if r.q.Dialect() == database.MySQL {
		query += ` ON DUPLICATE KEY UPDATE recipe_ids = VALUES(recipe_ids), created_at = VALUES(created_at)`
	} else {
		query += ` ON CONFLICT (household_id, year, week) DO UPDATE SET recipe_ids = excluded.recipe_ids, created_at = excluded.created_at`
	}

	return r.db.WithConn(ctx, func(q *database.Querier) error {
		if _, err := q.ExecContext(ctx, query, plan.HouseholdID, plan.Year, plan.Week, string(ids), createdAt.Unix()); err != nil {
			return fmt.Errorf("failed to save meal plan: %w", err)
		}
		return nil
	})
}

// Get retrieves the plan for a household week. It returns nil, nil when no plan
// was stored.
func (r *PlanRepository) Get(ctx context.Context, householdID int64, year, week int) (*MealPlan, error) {
	var (
		ids       string
		createdAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT recipe_ids, created_at FROM meal_plans WHERE household_id = ? AND year = ? AND week = ?`,
		householdID, year, week,
	).Scan(&ids, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get meal plan: %w", err)
	}

	plan := MealPlan{
		HouseholdID: householdID,
		Year:        year,
		Week:        week,
		CreatedAt:   time.Unix(createdAt, 0).UTC(),
	}
	if err := json.Unmarshal([]byte(ids), &plan.RecipeIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meal plan: %w", err)
	}
	return &plan, nil
}
