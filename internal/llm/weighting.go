package llm

import (
	"fmt"

	"resumatch/pkg/models"
)

// categoryWeights drive the deep-scan aggregation. Hard requirements count
// triple; soft skills and responsibilities count half.
var categoryWeights = map[models.Category]float64{
	models.CategoryMustHave:        3.0,
	models.CategoryExperience:      3.0,
	models.CategoryDomainKnowledge: 3.0,
	models.CategoryEducation:       1.0,
	models.CategoryNiceToHave:      1.0,
	models.CategorySoftSkills:      0.5,
	models.CategoryResponsibility:  0.5,
}

// CategoryWeight returns the aggregation weight for a category; unknown
// categories weigh 1.0.
func CategoryWeight(category models.Category) float64 {
	if w, ok := categoryWeights[category]; ok {
		return w
	}
	return 1.0
}

func statusValue(status models.CriterionStatus) float64 {
	switch status {
	case models.StatusMet:
		return 1.0
	case models.StatusPartial:
		return 0.5
	default:
		return 0.0
	}
}

// GenerateFinalDecision aggregates evaluated details into a final score and
// decision. Pure computation, no network. An empty detail list scores 0 and
// rejects.
func GenerateFinalDecision(candidateName string, details []models.MatchDetail, strategy models.Strategy) (int, models.Decision, string) {
	var earned, total float64
	met, partial := 0, 0
	for _, d := range details {
		w := CategoryWeight(d.Category)
		total += w
		earned += w * statusValue(d.Status)
		switch d.Status {
		case models.StatusMet:
			met++
		case models.StatusPartial:
			partial++
		}
	}

	score := 0
	if total > 0 {
		score = int(earned / total * 100)
	}

	decision := DecisionForScore(score, strategy)
	reasoning := fmt.Sprintf("%s: %d of %d requirements met, %d partially, weighted score %d",
		candidateName, met, len(details), partial, score)
	return score, decision, reasoning
}

// DecisionForScore maps a score onto a decision using the strategy's
// thresholds: 70/40 for Deep, 80/50 for Standard.
func DecisionForScore(score int, strategy models.Strategy) models.Decision {
	forward, review := 80, 50
	if strategy == models.StrategyDeep {
		forward, review = 70, 40
	}
	switch {
	case score >= forward:
		return models.DecisionMoveForward
	case score >= review:
		return models.DecisionReview
	default:
		return models.DecisionReject
	}
}

// CoerceStandardDecision fills in a missing or unrecognized Pass-1 decision
// from the score: Reject below 60, Review below 80, Move Forward otherwise.
func CoerceStandardDecision(raw string, score int) models.Decision {
	switch models.Decision(raw) {
	case models.DecisionMoveForward, models.DecisionReview, models.DecisionReject:
		return models.Decision(raw)
	}
	switch {
	case score >= 80:
		return models.DecisionMoveForward
	case score >= 60:
		return models.DecisionReview
	default:
		return models.DecisionReject
	}
}
