package pipeline

import (
	"context"
	"fmt"

	"resumatch/internal/llm"
	"resumatch/internal/store"
	"resumatch/pkg/models"
	"resumatch/pkg/utils"
)

// Scorer runs the two-phase scoring state machine for one (job, resume)
// pair: a holistic Standard pass, then an optional per-requirement Deep
// Scan with a durable checkpoint after every step.
type Scorer struct {
	store   *store.Store
	gateway *llm.Manager
}

// NewScorer creates a scorer over the given store and gateway.
func NewScorer(st *store.Store, gateway *llm.Manager) *Scorer {
	return &Scorer{store: st, gateway: gateway}
}

// secondarySections may be evaluated in one bulk call instead of
// per-requirement; the merge back into the detail list is positional so the
// output is identical either way.
var secondarySections = map[models.Category]bool{
	models.CategoryNiceToHave: true,
	models.CategorySoftSkills: true,
	models.CategoryEducation:  true,
}

// BuildRequirements flattens job criteria into the fixed section order the
// Deep Scan walks: must-have, experience, education, domain, nice-to-have,
// soft skills, responsibilities. The experience section is a single
// synthesized requirement when a minimum is stated. Source order within a
// section is preserved.
func BuildRequirements(criteria *models.JobCriteria) []models.Requirement {
	if criteria == nil {
		return nil
	}

	var reqs []models.Requirement
	appendSection := func(category models.Category, items []string) {
		for _, item := range items {
			reqs = append(reqs, models.Requirement{Category: category, Text: item})
		}
	}

	appendSection(models.CategoryMustHave, criteria.MustHaveSkills)
	if criteria.MinYearsExperience > 0 {
		reqs = append(reqs, models.Requirement{
			Category: models.CategoryExperience,
			Text:     fmt.Sprintf("Minimum %d years relevant experience", criteria.MinYearsExperience),
		})
	}
	appendSection(models.CategoryEducation, criteria.EducationRequirements)
	appendSection(models.CategoryDomainKnowledge, criteria.DomainKnowledge)
	appendSection(models.CategoryNiceToHave, criteria.NiceToHaveSkills)
	appendSection(models.CategorySoftSkills, criteria.SoftSkills)
	appendSection(models.CategoryResponsibility, criteria.KeyResponsibilities)
	return reqs
}

// ScoreMatch scores one pair according to the payload's flags, honoring any
// persisted Deep checkpoint. Returns the run result or one of the
// cooperative interrupts (ErrRunCanceled, PausedError).
func (s *Scorer) ScoreMatch(ctx context.Context, handle *RunHandle, payload models.RunPayload) (*models.RunResult, error) {
	job, err := s.store.GetJob(payload.JobID)
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", payload.JobID, err)
	}
	resume, err := s.store.GetResume(payload.ResumeID)
	if err != nil {
		return nil, fmt.Errorf("resume %d: %w", payload.ResumeID, err)
	}

	criteria := job.Criteria
	if criteria == nil {
		criteria = &models.JobCriteria{}
	}

	existing, err := s.store.GetMatchIfExists(payload.JobID, payload.ResumeID)
	if err != nil {
		return nil, err
	}

	wantsDeep := payload.AutoDeep || payload.ForceDeep
	resuming := payload.DeepResumeFrom > 0

	if !resuming && !ShouldRecompute(existing, payload.ForcePass1, payload.ForceDeep, wantsDeep) {
		handle.Log("info", fmt.Sprintf("Reusing cached match %d for job %d / resume %d", existing.ID, job.ID, resume.ID))
		if payload.LegacyRunID != 0 {
			if err := s.store.LinkMatchToLegacyRun(payload.LegacyRunID, existing.ID); err != nil {
				return nil, err
			}
		}
		return &models.RunResult{
			MatchID:    existing.ID,
			JobID:      job.ID,
			ResumeID:   resume.ID,
			MatchScore: existing.MatchScore,
			Decision:   existing.Decision,
			Strategy:   existing.Strategy,
			Reused:     true,
		}, nil
	}

	var matchID int64
	if existing != nil {
		matchID = existing.ID
	}

	// Phase 1, Standard. Skipped when resuming a Deep checkpoint or when a
	// stored Standard verdict exists and the caller did not force a redo.
	candidateName := resume.Filename
	if resume.Profile != nil && resume.Profile.CandidateName != "" {
		candidateName = resume.Profile.CandidateName
	}

	var (
		standardScore     int
		standardReasoning string
		standardDecision  models.Decision
		missingSkills     = []string{}
	)

	reuseStandard := resuming || (existing != nil && existing.StandardScore != nil && !payload.ForcePass1)
	if reuseStandard && existing != nil && existing.StandardScore != nil {
		standardScore = *existing.StandardScore
		standardReasoning = existing.StandardReasoning
		standardDecision = llm.CoerceStandardDecision(string(existing.Decision), standardScore)
		if existing.CandidateName != "" {
			candidateName = existing.CandidateName
		}
		if existing.MissingSkills != nil {
			missingSkills = existing.MissingSkills
		}
	} else if !resuming {
		if err := handle.EnsureActive(); err != nil {
			return nil, err
		}
		handle.Progress(5, "standard_evaluation")
		handle.Log("info", "Starting standard evaluation")

		eval, err := s.gateway.EvaluateStandard(ctx, resume.Content, criteria, resume.Profile)
		if err != nil {
			handle.Log("warn", fmt.Sprintf("Standard evaluation failed after retry: %v", err))
			eval = &models.StandardEvaluation{
				MatchScore: 0,
				Decision:   string(models.DecisionReview),
				Reasoning:  fmt.Sprintf("Standard evaluation fallback used (%v)", err),
			}
		}

		standardScore = utils.ClampScore(eval.MatchScore)
		standardReasoning = eval.Reasoning
		standardDecision = llm.CoerceStandardDecision(eval.Decision, standardScore)
		if eval.MissingSkills != nil {
			missingSkills = eval.MissingSkills
		}
		if candidateName == resume.Filename && eval.CandidateName != "" {
			candidateName = eval.CandidateName
		}
		handle.Log("info", fmt.Sprintf("Standard evaluation: score=%d decision=%s", standardScore, standardDecision))
	}

	runDeep := resuming || payload.ForceDeep || (payload.AutoDeep && standardScore >= payload.Threshold)

	// Persist the Standard verdict before any Deep work so a canceled or
	// paused Deep run keeps its Pass-1 result.
	if runDeep && !reuseStandard && !resuming {
		match := &models.Match{
			JobID:             job.ID,
			ResumeID:          resume.ID,
			CandidateName:     candidateName,
			MatchScore:        standardScore,
			StandardScore:     &standardScore,
			Decision:          standardDecision,
			Strategy:          models.StrategyStandard,
			Reasoning:         standardReasoning,
			StandardReasoning: standardReasoning,
			MissingSkills:     missingSkills,
			MatchDetails:      []models.MatchDetail{},
		}
		matchID, err = s.store.SaveMatch(match, matchID)
		if err != nil {
			return nil, err
		}
	}

	if !runDeep {
		match := &models.Match{
			JobID:             job.ID,
			ResumeID:          resume.ID,
			CandidateName:     candidateName,
			MatchScore:        standardScore,
			StandardScore:     &standardScore,
			Decision:          standardDecision,
			Strategy:          models.StrategyStandard,
			Reasoning:         standardReasoning,
			StandardReasoning: standardReasoning,
			MissingSkills:     missingSkills,
			MatchDetails:      []models.MatchDetail{},
		}
		matchID, err = s.store.SaveMatch(match, matchID)
		if err != nil {
			return nil, err
		}
		if payload.LegacyRunID != 0 {
			if err := s.store.LinkMatchToLegacyRun(payload.LegacyRunID, matchID); err != nil {
				return nil, err
			}
		}
		return &models.RunResult{
			MatchID:    matchID,
			JobID:      job.ID,
			ResumeID:   resume.ID,
			MatchScore: standardScore,
			Decision:   standardDecision,
			Strategy:   models.StrategyStandard,
		}, nil
	}

	// Phase 2, Deep Scan.
	details, err := s.deepScan(ctx, handle, payload, resume.Content, criteria)
	if err != nil {
		return nil, err
	}

	score, decision, reasoning := llm.GenerateFinalDecision(candidateName, details, models.StrategyDeep)
	handle.Log("info", fmt.Sprintf("Deep scan complete: score=%d decision=%s", score, decision))

	var standardPtr *int
	if !resuming || (existing != nil && existing.StandardScore != nil) {
		sc := standardScore
		standardPtr = &sc
	}

	match := &models.Match{
		JobID:             job.ID,
		ResumeID:          resume.ID,
		CandidateName:     candidateName,
		MatchScore:        score,
		StandardScore:     standardPtr,
		Decision:          decision,
		Strategy:          models.StrategyDeep,
		Reasoning:         reasoning,
		StandardReasoning: standardReasoning,
		MissingSkills:     missingFromDetails(details, missingSkills),
		MatchDetails:      details,
	}
	matchID, err = s.store.SaveMatch(match, matchID)
	if err != nil {
		return nil, err
	}
	if payload.LegacyRunID != 0 {
		if err := s.store.LinkMatchToLegacyRun(payload.LegacyRunID, matchID); err != nil {
			return nil, err
		}
	}

	return &models.RunResult{
		MatchID:    matchID,
		JobID:      job.ID,
		ResumeID:   resume.ID,
		MatchScore: score,
		Decision:   decision,
		Strategy:   models.StrategyDeep,
	}, nil
}

// deepScan evaluates every requirement, checkpointing after each one so an
// interrupted run resumes without repeating persisted work.
func (s *Scorer) deepScan(ctx context.Context, handle *RunHandle, payload models.RunPayload, resumeText string, criteria *models.JobCriteria) ([]models.MatchDetail, error) {
	requirements := BuildRequirements(criteria)
	total := len(requirements)
	if total == 0 {
		handle.Log("info", "Deep scan: no requirements to evaluate")
		return []models.MatchDetail{}, nil
	}

	details := make([]models.MatchDetail, 0, total)
	start := 0
	if payload.DeepResumeFrom > 0 {
		start = payload.DeepResumeFrom
		if start > total {
			start = total
		}
		if len(payload.DeepPartialDetails) < start {
			start = len(payload.DeepPartialDetails)
		}
		details = append(details, payload.DeepPartialDetails[:start]...)
		handle.Log("info", fmt.Sprintf("Resuming deep scan at requirement %d of %d", start+1, total))
	} else {
		handle.Log("info", fmt.Sprintf("Starting deep scan over %d requirements", total))
	}

	bulkResults := s.bulkFastPath(ctx, handle, resumeText, requirements, start)

	for i := start; i < total; i++ {
		if err := handle.EnsureActive(); err != nil {
			return nil, err
		}

		req := requirements[i]
		var detail models.MatchDetail
		if cached, ok := bulkResults[i]; ok {
			detail = cached
		} else {
			evaluated, err := s.gateway.EvaluateCriterion(ctx, resumeText, req.Category, req.Text)
			if err != nil {
				handle.Log("warn", fmt.Sprintf("Criterion %q failed: %v", req.Text, err))
				detail = models.MatchDetail{
					Category:    req.Category,
					Requirement: req.Text,
					Status:      models.StatusMissing,
					Evidence:    "Evaluation timed out or failed",
				}
			} else {
				detail = *evaluated
			}
		}
		details = append(details, detail)

		completed := i + 1
		payload.DeepResumeFrom = completed
		payload.DeepPartialDetails = details
		progress := 10 + completed*85/total
		step := fmt.Sprintf("deep_scan_%d_of_%d", completed, total)

		if err := handle.EnsureActive(); err != nil {
			return nil, err
		}
		result := &models.RunResult{DeepPartialDetails: details}
		if err := handle.Checkpoint(payload, result, progress, step); err != nil {
			return nil, err
		}
	}
	return details, nil
}

// bulkFastPath evaluates the remaining secondary-section requirements in one
// call and indexes the results by their position in the full requirement
// list. Failures degrade silently to per-requirement evaluation.
func (s *Scorer) bulkFastPath(ctx context.Context, handle *RunHandle, resumeText string, requirements []models.Requirement, start int) map[int]models.MatchDetail {
	var indices []int
	var secondary []models.Requirement
	for i := start; i < len(requirements); i++ {
		if secondarySections[requirements[i].Category] {
			indices = append(indices, i)
			secondary = append(secondary, requirements[i])
		}
	}
	if len(secondary) < 2 {
		return nil
	}

	if err := handle.EnsureActive(); err != nil {
		return nil
	}
	results, err := s.gateway.EvaluateBulkCriteria(ctx, resumeText, secondary)
	if err != nil {
		handle.Log("warn", fmt.Sprintf("Bulk evaluation failed, falling back to per-requirement calls: %v", err))
		return nil
	}

	byIndex := make(map[int]models.MatchDetail, len(results))
	for pos, idx := range indices {
		if pos < len(results) {
			byIndex[idx] = results[pos]
		}
	}
	return byIndex
}

// missingFromDetails derives the missing-skills list from deep results,
// keeping any Pass-1 findings not already covered.
func missingFromDetails(details []models.MatchDetail, standardMissing []string) []string {
	missing := []string{}
	seen := map[string]bool{}
	for _, d := range details {
		if d.Status == models.StatusMissing && d.Category == models.CategoryMustHave {
			missing = append(missing, d.Requirement)
			seen[d.Requirement] = true
		}
	}
	for _, skill := range standardMissing {
		if !seen[skill] {
			missing = append(missing, skill)
		}
	}
	return missing
}
