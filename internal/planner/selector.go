package planner

import (
	"math/rand/v2"

	"weekly-planner/internal/recipe"
)

// Source supplies uniformly distributed integers in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

// IntN uses the math/rand/v2 top-level generator, which is safe for concurrent use.
func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource is the Source used when none is injected.
var DefaultSource Source = globalSource{}

// Select picks up to count recipes from candidates such that no two chosen recipes
// share a primary ingredient and no two share a secondary ingredient. Recipes
// without ingredients are never chosen. When fewer valid recipes exist than
// requested, as many as could be chosen are returned. candidates is not modified.
func Select(candidates []recipe.Recipe, count int, src Source) []recipe.Recipe {
	if count <= 0 {
		return []recipe.Recipe{}
	}
	if src == nil {
		src = DefaultSource
	}

	pool := make([]recipe.Recipe, 0, len(candidates))
	for _, r := range candidates {
		if r.Selectable() {
			pool = append(pool, r)
		}
	}

	// Fisher-Yates
	for i := len(pool) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}

	selected := make([]recipe.Recipe, 0, min(count, len(pool)))
	usedPrimary := make(map[string]struct{})
	usedSecondary := make(map[string]struct{})

	for _, r := range pool {
		if len(selected) == count {
			break
		}
		primary := r.Primary()
		if _, taken := usedPrimary[primary]; taken {
			continue
		}
		secondary, hasSecondary := r.Secondary()
		if hasSecondary {
			if _, taken := usedSecondary[secondary]; taken {
				continue
			}
		}

		selected = append(selected, r)
		usedPrimary[primary] = struct{}{}
		if hasSecondary {
			usedSecondary[secondary] = struct{}{}
		}
	}
	return selected
}
