package pipeline

import "resumatch/pkg/models"

// ShouldRecompute is the match-cache policy: given the existing match row
// for a pair (nil when absent) and the caller's flags, decide whether the
// pipeline must call the LLM again or can return the stored row as-is.
//
// Recompute when there is no row, when the caller forces it, or when the
// caller wants a Deep verdict and the stored row is Standard-only.
// Everything else is a reuse.
func ShouldRecompute(existing *models.Match, forcePass1, forceDeep, wantsDeep bool) bool {
	if existing == nil {
		return true
	}
	if forcePass1 || forceDeep {
		return true
	}
	if wantsDeep && existing.Strategy != models.StrategyDeep {
		return true
	}
	return false
}
