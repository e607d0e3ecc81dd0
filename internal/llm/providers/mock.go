package providers

import (
	"context"
	"strings"
	"sync"

	"resumatch/pkg/models"
)

// MockProvider is the mock:// backend. Tests script its behavior through
// the *Func fields; unset fields fall back to deterministic keyword
// matching against the resume text. All calls are counted.
type MockProvider struct {
	mu    sync.Mutex
	calls map[string]int

	AnalyzeJDFunc         func(ctx context.Context, text string) (*models.JobCriteria, error)
	AnalyzeResumeFunc     func(ctx context.Context, text string) (*models.CandidateProfile, error)
	EvaluateStandardFunc  func(ctx context.Context, resumeText string, criteria *models.JobCriteria, profile *models.CandidateProfile, temperature float64) (*models.StandardEvaluation, error)
	EvaluateCriterionFunc func(ctx context.Context, resumeText string, category models.Category, requirement string) (*models.MatchDetail, error)
	EvaluateBulkFunc      func(ctx context.Context, resumeText string, requirements []models.Requirement) ([]models.MatchDetail, error)
}

// NewMockProvider creates a mock provider with default deterministic
// behavior.
func NewMockProvider() *MockProvider {
	return &MockProvider{calls: make(map[string]int)}
}

func (mp *MockProvider) record(op string) {
	mp.mu.Lock()
	mp.calls[op]++
	mp.mu.Unlock()
}

// Calls returns how many times op has been invoked.
func (mp *MockProvider) Calls(op string) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.calls[op]
}

// TotalCalls returns the total number of provider invocations.
func (mp *MockProvider) TotalCalls() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	total := 0
	for _, n := range mp.calls {
		total += n
	}
	return total
}

func (mp *MockProvider) AnalyzeJD(ctx context.Context, text string) (*models.JobCriteria, error) {
	mp.record("analyze_jd")
	if mp.AnalyzeJDFunc != nil {
		return mp.AnalyzeJDFunc(ctx, text)
	}

	// Default: every non-empty line becomes a must-have requirement.
	criteria := &models.JobCriteria{RoleTitle: "Unknown Role"}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			criteria.MustHaveSkills = append(criteria.MustHaveSkills, line)
		}
	}
	return criteria, nil
}

func (mp *MockProvider) AnalyzeResume(ctx context.Context, text string) (*models.CandidateProfile, error) {
	mp.record("analyze_resume")
	if mp.AnalyzeResumeFunc != nil {
		return mp.AnalyzeResumeFunc(ctx, text)
	}

	profile := &models.CandidateProfile{CandidateName: "Unknown Candidate"}
	if line := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0]); line != "" {
		profile.CandidateName = line
	}
	return profile, nil
}

func (mp *MockProvider) EvaluateStandard(ctx context.Context, resumeText string, criteria *models.JobCriteria, profile *models.CandidateProfile, temperature float64) (*models.StandardEvaluation, error) {
	mp.record("evaluate_standard")
	if mp.EvaluateStandardFunc != nil {
		return mp.EvaluateStandardFunc(ctx, resumeText, criteria, profile, temperature)
	}

	// Default: score by the fraction of must-have skills present verbatim.
	lower := strings.ToLower(resumeText)
	var missing []string
	hits := 0
	for _, skill := range criteria.MustHaveSkills {
		if strings.Contains(lower, strings.ToLower(skill)) {
			hits++
		} else {
			missing = append(missing, skill)
		}
	}

	score := 100
	if len(criteria.MustHaveSkills) > 0 {
		score = hits * 100 / len(criteria.MustHaveSkills)
	}

	name := ""
	if profile != nil {
		name = profile.CandidateName
	}
	return &models.StandardEvaluation{
		CandidateName: name,
		MatchScore:    score,
		Reasoning:     "Mock keyword evaluation",
		MissingSkills: missing,
	}, nil
}

func (mp *MockProvider) EvaluateCriterion(ctx context.Context, resumeText string, category models.Category, requirement string) (*models.MatchDetail, error) {
	mp.record("evaluate_criterion")
	if mp.EvaluateCriterionFunc != nil {
		return mp.EvaluateCriterionFunc(ctx, resumeText, category, requirement)
	}

	status := models.StatusMissing
	evidence := "None"
	if strings.Contains(strings.ToLower(resumeText), strings.ToLower(requirement)) {
		status = models.StatusMet
		evidence = "Requirement text found in resume"
	}
	return &models.MatchDetail{
		Category:    category,
		Requirement: requirement,
		Status:      status,
		Evidence:    evidence,
	}, nil
}

func (mp *MockProvider) EvaluateBulkCriteria(ctx context.Context, resumeText string, requirements []models.Requirement) ([]models.MatchDetail, error) {
	mp.record("evaluate_bulk")
	if mp.EvaluateBulkFunc != nil {
		return mp.EvaluateBulkFunc(ctx, resumeText, requirements)
	}

	details := make([]models.MatchDetail, 0, len(requirements))
	for _, req := range requirements {
		detail, err := mp.EvaluateCriterion(ctx, resumeText, req.Category, req.Text)
		if err != nil {
			return details, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

func (mp *MockProvider) IsHealthy(ctx context.Context) error {
	return nil
}

func (mp *MockProvider) GetProviderName() string {
	return "mock"
}
