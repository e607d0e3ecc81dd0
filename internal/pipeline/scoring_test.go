package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"resumatch/internal/config"
	"resumatch/internal/llm"
	"resumatch/internal/llm/providers"
	"resumatch/internal/store"
	"resumatch/pkg/models"
)

type scoringFixture struct {
	store    *store.Store
	provider *providers.MockProvider
	scorer   *Scorer
}

func newScoringFixture(t *testing.T) *scoringFixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	provider := providers.NewMockProvider()
	gateway := llm.NewManagerWithProvider(cfg, provider)
	return &scoringFixture{store: st, provider: provider, scorer: NewScorer(st, gateway)}
}

func (f *scoringFixture) seedPair(t *testing.T, criteria *models.JobCriteria, resumeContent string) (int64, int64) {
	t.Helper()
	job, err := f.store.UpsertJob("jd.txt", "job body", criteria, nil)
	if err != nil {
		t.Fatalf("upsert job failed: %v", err)
	}
	resume, err := f.store.UpsertResume("cv.txt", resumeContent,
		&models.CandidateProfile{CandidateName: "Ada Lovelace"}, nil)
	if err != nil {
		t.Fatalf("upsert resume failed: %v", err)
	}
	return job.ID, resume.ID
}

func (f *scoringFixture) newHandle(t *testing.T, payload models.RunPayload) *RunHandle {
	t.Helper()
	run, err := f.store.EnqueueRun(models.JobTypeScoreMatch, payload)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	return NewRunHandle(f.store, run.ID)
}

func TestBuildRequirementsSectionOrder(t *testing.T) {
	criteria := &models.JobCriteria{
		MustHaveSkills:        []string{"Go", "SQL"},
		NiceToHaveSkills:      []string{"Kubernetes"},
		MinYearsExperience:    5,
		EducationRequirements: []string{"BSc"},
		DomainKnowledge:       []string{"Fintech"},
		SoftSkills:            []string{"Communication"},
		KeyResponsibilities:   []string{"Own the billing service"},
	}

	reqs := BuildRequirements(criteria)
	wantOrder := []models.Category{
		models.CategoryMustHave, models.CategoryMustHave,
		models.CategoryExperience,
		models.CategoryEducation,
		models.CategoryDomainKnowledge,
		models.CategoryNiceToHave,
		models.CategorySoftSkills,
		models.CategoryResponsibility,
	}
	if len(reqs) != len(wantOrder) {
		t.Fatalf("expected %d requirements, got %d", len(wantOrder), len(reqs))
	}
	for i, want := range wantOrder {
		if reqs[i].Category != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, reqs[i].Category)
		}
	}
	if reqs[2].Text != "Minimum 5 years relevant experience" {
		t.Fatalf("unexpected experience requirement: %q", reqs[2].Text)
	}
}

func TestBuildRequirementsSkipsZeroExperience(t *testing.T) {
	reqs := BuildRequirements(&models.JobCriteria{MustHaveSkills: []string{"Go"}})
	if len(reqs) != 1 {
		t.Fatalf("expected 1 requirement, got %d", len(reqs))
	}
	if BuildRequirements(nil) != nil {
		t.Fatalf("expected nil for nil criteria")
	}
}

func TestScoreMatchStandardOnly(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{MustHaveSkills: []string{"Go", "SQL", "Kafka", "Rust"}},
		"Ada Lovelace\nExperienced with Go and SQL services.")

	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID}
	result, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, payload), payload)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	// Mock matches 2 of 4 must-have skills verbatim.
	if result.MatchScore != 50 {
		t.Fatalf("expected score 50, got %d", result.MatchScore)
	}
	if result.Strategy != models.StrategyStandard {
		t.Fatalf("expected Standard strategy, got %s", result.Strategy)
	}
	if result.Decision != models.DecisionReject {
		t.Fatalf("expected Reject at 50, got %s", result.Decision)
	}

	match, err := f.store.GetMatch(result.MatchID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if match.StandardScore == nil || *match.StandardScore != 50 {
		t.Fatalf("expected standard score persisted")
	}
	if match.CandidateName != "Ada Lovelace" {
		t.Fatalf("expected candidate name from profile, got %q", match.CandidateName)
	}
	if len(match.MissingSkills) != 2 {
		t.Fatalf("expected 2 missing skills, got %v", match.MissingSkills)
	}
	if f.provider.Calls("evaluate_criterion") != 0 {
		t.Fatalf("standard-only run must not evaluate criteria")
	}
}

func TestScoreMatchAutoDeepCrossesThreshold(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{MustHaveSkills: []string{"Go", "SQL"}},
		"Ada Lovelace\nGo and SQL, eight years.")

	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID, Threshold: 70, AutoDeep: true}
	result, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, payload), payload)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if result.Strategy != models.StrategyDeep {
		t.Fatalf("expected Deep strategy, got %s", result.Strategy)
	}
	if result.MatchScore != 100 || result.Decision != models.DecisionMoveForward {
		t.Fatalf("expected 100/Move Forward, got %d/%s", result.MatchScore, result.Decision)
	}

	match, err := f.store.GetMatch(result.MatchID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if len(match.MatchDetails) != 2 {
		t.Fatalf("expected 2 evaluated details, got %d", len(match.MatchDetails))
	}
	if match.StandardScore == nil || *match.StandardScore != 100 {
		t.Fatalf("expected standard score kept alongside deep verdict")
	}

	if f.provider.Calls("evaluate_standard") != 1 {
		t.Fatalf("expected one standard call, got %d", f.provider.Calls("evaluate_standard"))
	}
	if f.provider.Calls("evaluate_criterion") != 2 {
		t.Fatalf("expected 2 criterion calls, got %d", f.provider.Calls("evaluate_criterion"))
	}
}

func TestScoreMatchAutoDeepBelowThresholdStaysStandard(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{MustHaveSkills: []string{"Go", "Haskell"}},
		"Ada Lovelace\nGo only.")

	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID, Threshold: 70, AutoDeep: true}
	result, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, payload), payload)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if result.Strategy != models.StrategyStandard {
		t.Fatalf("expected sub-threshold pair to stay Standard, got %s", result.Strategy)
	}
	if f.provider.Calls("evaluate_criterion") != 0 {
		t.Fatalf("expected no deep calls below threshold")
	}
}

func TestScoreMatchStandardFallback(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{MustHaveSkills: []string{"Go"}}, "Ada Lovelace\nGo.")

	f.provider.EvaluateStandardFunc = func(ctx context.Context, resumeText string, criteria *models.JobCriteria, profile *models.CandidateProfile, temperature float64) (*models.StandardEvaluation, error) {
		return nil, errors.New("model unavailable")
	}

	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID}
	result, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, payload), payload)
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}

	if result.MatchScore != 0 || result.Decision != models.DecisionReview {
		t.Fatalf("expected 0/Review fallback, got %d/%s", result.MatchScore, result.Decision)
	}
	match, err := f.store.GetMatch(result.MatchID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if !strings.Contains(match.Reasoning, "Standard evaluation fallback used") {
		t.Fatalf("expected fallback reasoning, got %q", match.Reasoning)
	}
	// The gateway retries once before giving up.
	if f.provider.Calls("evaluate_standard") != 2 {
		t.Fatalf("expected 2 attempts, got %d", f.provider.Calls("evaluate_standard"))
	}
}

func TestScoreMatchReusesCachedMatch(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{MustHaveSkills: []string{"Go"}}, "Ada Lovelace\nGo.")

	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID}
	first, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, payload), payload)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	callsAfterFirst := f.provider.TotalCalls()

	second, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, payload), payload)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if !second.Reused {
		t.Fatalf("expected cached reuse")
	}
	if second.MatchID != first.MatchID || second.MatchScore != first.MatchScore {
		t.Fatalf("expected identical cached verdict")
	}
	if f.provider.TotalCalls() != callsAfterFirst {
		t.Fatalf("reuse must not call the model: %d vs %d", f.provider.TotalCalls(), callsAfterFirst)
	}
}

func TestScoreMatchDeepUpgradeKeepsStandardVerdict(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{MustHaveSkills: []string{"Go", "SQL"}},
		"Ada Lovelace\nGo and SQL.")

	// First pass: Standard only.
	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID}
	first, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, payload), payload)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	standardCalls := f.provider.Calls("evaluate_standard")

	// Second pass wants Deep: the stored Pass-1 verdict is reused, only the
	// deep scan runs.
	deepPayload := models.RunPayload{JobID: jobID, ResumeID: resumeID, ForceDeep: true}
	second, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, deepPayload), deepPayload)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if second.Strategy != models.StrategyDeep {
		t.Fatalf("expected Deep strategy, got %s", second.Strategy)
	}
	if second.MatchID != first.MatchID {
		t.Fatalf("expected the same match row upgraded in place")
	}
	if f.provider.Calls("evaluate_standard") != standardCalls {
		t.Fatalf("expected standard pass skipped on deep upgrade")
	}

	match, err := f.store.GetMatch(second.MatchID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if match.StandardScore == nil || *match.StandardScore != first.MatchScore {
		t.Fatalf("expected standard score preserved across deep upgrade")
	}
}

func TestScoreMatchPausesAtStepBoundaryAndResumes(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{MustHaveSkills: []string{"Go", "SQL", "Kafka", "Rust"}},
		"Ada Lovelace\nGo, SQL, Kafka and Rust.")

	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID, ForceDeep: true}
	run, err := f.store.EnqueueRun(models.JobTypeScoreMatch, payload)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	handle := NewRunHandle(f.store, run.ID)

	// Request a pause while the third criterion is in flight; the run must
	// finish that call, discard its unpersisted step and stop.
	criterionCalls := 0
	f.provider.EvaluateCriterionFunc = func(ctx context.Context, resumeText string, category models.Category, requirement string) (*models.MatchDetail, error) {
		criterionCalls++
		if criterionCalls == 3 {
			if err := f.store.RequestPause(run.ID, "deploy window"); err != nil {
				t.Fatalf("request pause failed: %v", err)
			}
		}
		return &models.MatchDetail{
			Category: category, Requirement: requirement,
			Status: models.StatusMet, Evidence: "found",
		}, nil
	}

	_, err = f.scorer.ScoreMatch(context.Background(), handle, payload)
	var paused *PausedError
	if !errors.As(err, &paused) {
		t.Fatalf("expected PausedError, got %v", err)
	}
	if paused.Reason != "deploy window" {
		t.Fatalf("unexpected pause reason: %q", paused.Reason)
	}

	// The checkpoint covers only fully persisted steps.
	checkpointed, err := f.store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get run failed: %v", err)
	}
	if checkpointed.Payload.DeepResumeFrom != 2 {
		t.Fatalf("expected checkpoint at step 2, got %d", checkpointed.Payload.DeepResumeFrom)
	}
	if len(checkpointed.Payload.DeepPartialDetails) != 2 {
		t.Fatalf("expected 2 persisted details, got %d", len(checkpointed.Payload.DeepPartialDetails))
	}
	if checkpointed.CurrentStep != "deep_scan_2_of_4" {
		t.Fatalf("unexpected step marker: %q", checkpointed.CurrentStep)
	}

	// Pause, then resume from the checkpoint: only the remaining two
	// requirements are evaluated again.
	if err := f.store.MarkRunPaused(run.ID, "deploy window"); err != nil {
		t.Fatalf("mark paused failed: %v", err)
	}
	if err := f.store.RequeueRun(run.ID); err != nil {
		t.Fatalf("requeue failed: %v", err)
	}

	resumed, err := f.store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get run failed: %v", err)
	}
	callsBefore := criterionCalls
	result, err := f.scorer.ScoreMatch(context.Background(), NewRunHandle(f.store, run.ID), resumed.Payload)
	if err != nil {
		t.Fatalf("resumed score failed: %v", err)
	}
	if criterionCalls-callsBefore != 2 {
		t.Fatalf("expected 2 remaining evaluations, got %d", criterionCalls-callsBefore)
	}
	if result.Strategy != models.StrategyDeep || result.MatchScore != 100 {
		t.Fatalf("unexpected final verdict: %d/%s", result.MatchScore, result.Strategy)
	}

	match, err := f.store.GetMatch(result.MatchID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if len(match.MatchDetails) != 4 {
		t.Fatalf("expected 4 details after resume, got %d", len(match.MatchDetails))
	}
}

func TestScoreMatchCancelDiscardsInFlightStep(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{MustHaveSkills: []string{"Go", "SQL", "Kafka"}},
		"Ada Lovelace\nGo, SQL, Kafka.")

	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID, ForceDeep: true}
	run, err := f.store.EnqueueRun(models.JobTypeScoreMatch, payload)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	handle := NewRunHandle(f.store, run.ID)

	calls := 0
	f.provider.EvaluateCriterionFunc = func(ctx context.Context, resumeText string, category models.Category, requirement string) (*models.MatchDetail, error) {
		calls++
		if calls == 2 {
			if err := f.store.CancelRun(run.ID, false); err != nil {
				t.Fatalf("cancel failed: %v", err)
			}
		}
		return &models.MatchDetail{
			Category: category, Requirement: requirement,
			Status: models.StatusMet, Evidence: "found",
		}, nil
	}

	_, err = f.scorer.ScoreMatch(context.Background(), handle, payload)
	if !errors.Is(err, ErrRunCanceled) {
		t.Fatalf("expected ErrRunCanceled, got %v", err)
	}

	got, err := f.store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get run failed: %v", err)
	}
	// The second step's work never reached a checkpoint.
	if got.Payload.DeepResumeFrom != 1 {
		t.Fatalf("expected checkpoint at step 1, got %d", got.Payload.DeepResumeFrom)
	}
}

func TestScoreMatchCriterionFailureSynthesizesMissing(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{MustHaveSkills: []string{"Go", "SQL"}},
		"Ada Lovelace\nGo and SQL.")

	f.provider.EvaluateCriterionFunc = func(ctx context.Context, resumeText string, category models.Category, requirement string) (*models.MatchDetail, error) {
		if requirement == "SQL" {
			return nil, errors.New("timeout talking to model")
		}
		return &models.MatchDetail{
			Category: category, Requirement: requirement,
			Status: models.StatusMet, Evidence: "found",
		}, nil
	}

	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID, ForceDeep: true}
	result, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, payload), payload)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	match, err := f.store.GetMatch(result.MatchID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if len(match.MatchDetails) != 2 {
		t.Fatalf("expected 2 details, got %d", len(match.MatchDetails))
	}
	failed := match.MatchDetails[1]
	if failed.Status != models.StatusMissing || failed.Evidence != "Evaluation timed out or failed" {
		t.Fatalf("expected synthesized failure row, got %+v", failed)
	}
	found := false
	for _, skill := range match.MissingSkills {
		if skill == "SQL" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected SQL in missing skills, got %v", match.MissingSkills)
	}
}

func TestScoreMatchBulkFastPath(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{
			MustHaveSkills:   []string{"Go"},
			NiceToHaveSkills: []string{"Kubernetes", "Terraform"},
			SoftSkills:       []string{"Communication"},
		},
		"Ada Lovelace\nGo, Kubernetes, Terraform, Communication.")

	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID, ForceDeep: true}
	result, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, payload), payload)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	// The three secondary requirements go through one bulk call; only the
	// must-have is evaluated individually.
	if f.provider.Calls("evaluate_bulk") != 1 {
		t.Fatalf("expected 1 bulk call, got %d", f.provider.Calls("evaluate_bulk"))
	}
	if f.provider.Calls("evaluate_criterion") != 4 {
		// The default mock bulk implementation delegates to EvaluateCriterion
		// per requirement, plus one direct call for the must-have.
		t.Fatalf("unexpected criterion call count: %d", f.provider.Calls("evaluate_criterion"))
	}

	match, err := f.store.GetMatch(result.MatchID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if len(match.MatchDetails) != 4 {
		t.Fatalf("expected 4 details, got %d", len(match.MatchDetails))
	}
	// Output order is the fixed section order regardless of the bulk path.
	wantReqs := []string{"Go", "Kubernetes", "Terraform", "Communication"}
	for i, want := range wantReqs {
		if match.MatchDetails[i].Requirement != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, match.MatchDetails[i].Requirement)
		}
	}
}

func TestScoreMatchBulkFailureFallsBack(t *testing.T) {
	f := newScoringFixture(t)
	jobID, resumeID := f.seedPair(t,
		&models.JobCriteria{NiceToHaveSkills: []string{"Kubernetes", "Terraform"}},
		"Ada Lovelace\nKubernetes and Terraform.")

	f.provider.EvaluateBulkFunc = func(ctx context.Context, resumeText string, requirements []models.Requirement) ([]models.MatchDetail, error) {
		return nil, fmt.Errorf("bulk endpoint overloaded")
	}

	payload := models.RunPayload{JobID: jobID, ResumeID: resumeID, ForceDeep: true}
	result, err := f.scorer.ScoreMatch(context.Background(), f.newHandle(t, payload), payload)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if f.provider.Calls("evaluate_criterion") != 2 {
		t.Fatalf("expected per-requirement fallback, got %d calls", f.provider.Calls("evaluate_criterion"))
	}
	match, err := f.store.GetMatch(result.MatchID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if len(match.MatchDetails) != 2 {
		t.Fatalf("expected 2 details, got %d", len(match.MatchDetails))
	}
}

func TestShouldRecompute(t *testing.T) {
	deep := &models.Match{Strategy: models.StrategyDeep}
	standard := &models.Match{Strategy: models.StrategyStandard}

	if !ShouldRecompute(nil, false, false, false) {
		t.Fatalf("missing row must recompute")
	}
	if ShouldRecompute(standard, false, false, false) {
		t.Fatalf("cached standard row with standard request must reuse")
	}
	if ShouldRecompute(deep, false, false, true) {
		t.Fatalf("cached deep row satisfies a deep request")
	}
	if !ShouldRecompute(standard, false, false, true) {
		t.Fatalf("deep request over standard row must recompute")
	}
	if !ShouldRecompute(deep, true, false, false) {
		t.Fatalf("force_pass1 must recompute")
	}
	if !ShouldRecompute(deep, false, true, true) {
		t.Fatalf("force_deep must recompute")
	}
}
