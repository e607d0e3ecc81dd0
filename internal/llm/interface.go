package llm

import (
	"context"

	"resumatch/pkg/models"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// AnalyzeJD extracts structured hiring criteria from job description text
	AnalyzeJD(ctx context.Context, text string) (*models.JobCriteria, error)

	// AnalyzeResume extracts a structured candidate profile from resume text
	AnalyzeResume(ctx context.Context, text string) (*models.CandidateProfile, error)

	// EvaluateStandard scores the pair holistically in one call
	EvaluateStandard(ctx context.Context, resumeText string, criteria *models.JobCriteria, profile *models.CandidateProfile, temperature float64) (*models.StandardEvaluation, error)

	// EvaluateCriterion evaluates a single requirement against the resume
	EvaluateCriterion(ctx context.Context, resumeText string, category models.Category, requirement string) (*models.MatchDetail, error)

	// EvaluateBulkCriteria evaluates several requirements in one call; the
	// returned slice may be shorter than the input on partial model output
	EvaluateBulkCriteria(ctx context.Context, resumeText string, requirements []models.Requirement) ([]models.MatchDetail, error)

	// IsHealthy checks if the LLM provider is healthy and available
	IsHealthy(ctx context.Context) error

	// GetProviderName returns the name of the LLM provider
	GetProviderName() string
}
