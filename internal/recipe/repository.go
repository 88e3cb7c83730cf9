package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"weekly-planner/internal/database"
	"weekly-planner/internal/shared"
)

// Repository is a database-backed repository for recipes.
type Repository struct {
	db *database.DB
	q  *database.Querier
}

// NewRepository creates a new Repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db, q: db.Querier()}
}

// WithTx returns a Repository that runs its statements on q.
func (r *Repository) WithTx(q *database.Querier) *Repository {
	return &Repository{q: q}
}

// Save inserts a recipe. A recipe with the same id is reported as a conflict.
func (r *Repository) Save(ctx context.Context, rec Recipe) error {
	if strings.TrimSpace(rec.ID) == "" {
		return shared.Validation("invalid_recipe", "recipe id is required")
	}
	if rec.HouseholdID <= 0 {
		return shared.Validation("invalid_household", "household id must be positive")
	}

	ingredients, err := json.Marshal(nonNil(rec.Ingredients))
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients: %w", err)
	}

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO recipes (id, household_id, title, ingredients, updated_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.HouseholdID, rec.Title, string(ingredients), updatedAt.Unix(),
	)
	if err != nil {
		if database.IsUniqueConstraintError(err) {
			return shared.Conflict("recipe_exists", "recipe already exists", err)
		}
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	return nil
}

// Get retrieves a recipe by its ID within a household. It returns nil, nil when
// the recipe does not exist.
func (r *Repository) Get(ctx context.Context, householdID int64, id string) (*Recipe, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, household_id, title, ingredients, updated_at FROM recipes WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	rec, err := scanRecipe(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipe by ID: %w", err)
	}
	return &rec, nil
}

// GetByIDs retrieves the household's recipes with the given ids, in id order.
func (r *Repository) GetByIDs(ctx context.Context, householdID int64, ids []string) ([]Recipe, error) {
	if len(ids) == 0 {
		return []Recipe{}, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, householdID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	rows, err := r.q.QueryContext(ctx,
		`SELECT id, household_id, title, ingredients, updated_at FROM recipes
		 WHERE household_id = ? AND id IN (`+placeholders+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipes by IDs: %w", err)
	}
	return collect(rows)
}

// ListByHousehold returns every recipe of the household ordered by id. On success
// the slice is never nil.
func (r *Repository) ListByHousehold(ctx context.Context, householdID int64) ([]Recipe, error) {
	var recipes []Recipe
	err := r.withConn(ctx, func(q *database.Querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT id, household_id, title, ingredients, updated_at FROM recipes WHERE household_id = ? ORDER BY id`,
			householdID,
		)
		if err != nil {
			return fmt.Errorf("failed to list recipes: %w", err)
		}
		recipes, err = collect(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// withConn runs fn on a pool connection taken within the acquire timeout, or
// on the transaction when the repository is bound to one.
func (r *Repository) withConn(ctx context.Context, fn func(q *database.Querier) error) error {
	if r.db == nil {
		return fn(r.q)
	}
	return r.db.WithConn(ctx, fn)
}

// Count returns the number of recipes stored for the household.
func (r *Repository) Count(ctx context.Context, householdID int64) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes WHERE household_id = ?`, householdID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecipe(s scanner) (Recipe, error) {
	var (
		rec         Recipe
		ingredients string
		updatedAt   int64
	)
	if err := s.Scan(&rec.ID, &rec.HouseholdID, &rec.Title, &ingredients, &updatedAt); err != nil {
		return Recipe{}, err
	}
	if err := json.Unmarshal([]byte(ingredients), &rec.Ingredients); err != nil {
		return Recipe{}, fmt.Errorf("failed to unmarshal ingredients for recipe %s: %w", rec.ID, err)
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}

func collect(rows *sql.Rows) ([]Recipe, error) {
	defer rows.Close()

	recipes := []Recipe{}
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			// Skip corrupted rows rather than failing the whole listing.
			slog.Warn("skipping unreadable recipe", "error", err)
			continue
		}
		recipes = append(recipes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipes: %w", err)
	}
	return recipes, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
