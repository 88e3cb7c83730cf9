package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"weekly-planner/internal/recipe"
	"weekly-planner/internal/shared"
)

// ImportSummary counts the outcome of ImportRecipes.
type ImportSummary struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// ImportRecipes reads a JSON array of recipes and saves them for a household.
// Recipes already in the database are skipped; invalid ones are logged and counted
// as failed so one bad entry does not stop the import.
func (a *App) ImportRecipes(ctx context.Context, r io.Reader, householdID int64) (ImportSummary, error) {
	var summary ImportSummary
	if err := shared.ValidateHousehold(householdID); err != nil {
		return summary, err
	}

	var recipes []recipe.Recipe
	if err := json.NewDecoder(r).Decode(&recipes); err != nil {
		return summary, fmt.Errorf("failed to decode recipes: %w", err)
	}

	existing, err := a.recipeRepo.ListByHousehold(ctx, householdID)
	if err != nil {
		return summary, fmt.Errorf("failed to list existing recipes: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		known[rec.ID] = struct{}{}
	}

	slog.Info("importing recipes", "household_id", householdID, "found", len(recipes), "existing", len(known))

	for _, rec := range recipes {
		rec.ID = strings.TrimSpace(rec.ID)
		if _, ok := known[rec.ID]; ok {
			slog.Debug("recipe already exists, skipping", "id", rec.ID, "title", rec.Title)
			summary.Skipped++
			continue
		}
		rec.HouseholdID = householdID

		if err := a.recipeRepo.Save(ctx, rec); err != nil {
			if shared.KindOf(err) == shared.KindConflict {
				summary.Skipped++
				continue
			}
			slog.Warn("failed to import recipe", "id", rec.ID, "title", rec.Title, "error", err)
			summary.Failed++
			continue
		}
		known[rec.ID] = struct{}{}
		summary.Imported++
	}

	slog.Info("import complete", "imported", summary.Imported, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}
