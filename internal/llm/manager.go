package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"resumatch/internal/config"
	"resumatch/internal/logging"
	"resumatch/pkg/models"
)

// Manager is the LLM gateway: it owns the provider lifecycle and enforces
// the call contracts the pipeline relies on: input truncation, one retry
// per call site, response normalization and bulk padding. The core never
// talks to a provider directly.
type Manager struct {
	config   *config.Config
	factory  *Factory
	provider Provider
	limiter  *rate.Limiter
	mu       sync.RWMutex
	healthy  bool
}

// NewManager creates a new LLM manager instance.
func NewManager(cfg *config.Config) *Manager {
	perMinute := cfg.Workers.RateLimit
	if perMinute <= 0 {
		perMinute = 60
	}
	return &Manager{
		config:  cfg,
		factory: NewFactory(cfg),
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}
}

// NewManagerWithProvider creates a manager around an existing provider,
// bypassing the factory. Used by tests to inject a scripted mock.
func NewManagerWithProvider(cfg *config.Config, provider Provider) *Manager {
	m := NewManager(cfg)
	m.provider = provider
	m.healthy = true
	return m
}

// Start initializes the LLM manager and creates the provider.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting LLM manager", map[string]interface{}{
		"provider": m.config.LLM.Provider,
	})

	provider, err := m.factory.CreateProvider()
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	m.provider = provider

	ctx, cancel := context.WithTimeout(context.Background(), m.config.LLM.Timeout)
	defer cancel()

	if err := m.provider.IsHealthy(ctx); err != nil {
		logger.Warn("LLM provider health check failed - scoring will degrade to fallbacks", map[string]interface{}{
			"error": err.Error(),
		})
		m.healthy = false
	} else {
		m.healthy = true
		logger.Info("LLM manager started successfully", map[string]interface{}{
			"provider": m.provider.GetProviderName(),
		})
	}
	return nil
}

// Stop shuts down the LLM manager.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provider = nil
	m.healthy = false
	return nil
}

// IsHealthy reports whether the manager holds a healthy provider.
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && m.provider != nil
}

// GetProviderName returns the name of the current LLM provider.
func (m *Manager) GetProviderName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.provider != nil {
		return m.provider.GetProviderName()
	}
	return "none"
}

// CheckHealth performs a health check on the LLM provider.
func (m *Manager) CheckHealth(ctx context.Context) error {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()

	if provider == nil {
		return fmt.Errorf("LLM provider not available")
	}
	err := provider.IsHealthy(ctx)

	m.mu.Lock()
	m.healthy = (err == nil)
	m.mu.Unlock()
	return err
}

func (m *Manager) getProvider() (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.provider == nil {
		return nil, NewFailure(FailureKindNetwork, false, errors.New("LLM manager not started or provider not available"))
	}
	return m.provider, nil
}

// wait blocks on the shared rate limiter before a provider call.
func (m *Manager) wait(ctx context.Context) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return classifyFailure(err)
	}
	return nil
}

// AnalyzeJD extracts and normalizes hiring criteria from JD text.
func (m *Manager) AnalyzeJD(ctx context.Context, text string) (*models.JobCriteria, error) {
	provider, err := m.getProvider()
	if err != nil {
		return nil, err
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.config.LLM.Timeout)
	defer cancel()

	criteria, err := provider.AnalyzeJD(callCtx, m.truncate(text, m.singleCallBudget()))
	if err != nil {
		return nil, classifyFailure(err)
	}

	NormalizeCriteria(criteria)
	return criteria, nil
}

// AnalyzeResume extracts a candidate profile from resume text.
func (m *Manager) AnalyzeResume(ctx context.Context, text string) (*models.CandidateProfile, error) {
	provider, err := m.getProvider()
	if err != nil {
		return nil, err
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.config.LLM.Timeout)
	defer cancel()

	profile, err := provider.AnalyzeResume(callCtx, m.truncate(text, m.singleCallBudget()))
	if err != nil {
		return nil, classifyFailure(err)
	}
	return profile, nil
}

// EvaluateStandard scores the pair holistically. One retry with a nudged
// temperature before the failure surfaces to the caller.
func (m *Manager) EvaluateStandard(ctx context.Context, resumeText string, criteria *models.JobCriteria, profile *models.CandidateProfile) (*models.StandardEvaluation, error) {
	provider, err := m.getProvider()
	if err != nil {
		return nil, err
	}

	resumeText = m.truncate(resumeText, m.singleCallBudget())
	temperature := float64(m.config.LLM.Temperature)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		callCtx, cancel := context.WithTimeout(ctx, m.config.LLM.Timeout)
		out, err := provider.EvaluateStandard(callCtx, resumeText, criteria, profile, temperature)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
		temperature += 0.1
	}
	return nil, classifyFailure(lastErr)
}

// EvaluateCriterion evaluates one requirement, normalizing the result so
// the pipeline always sees a complete detail row.
func (m *Manager) EvaluateCriterion(ctx context.Context, resumeText string, category models.Category, requirement string) (*models.MatchDetail, error) {
	provider, err := m.getProvider()
	if err != nil {
		return nil, err
	}

	resumeText = m.truncate(resumeText, m.singleCallBudget())

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		callCtx, cancel := context.WithTimeout(ctx, m.config.LLM.Timeout)
		detail, err := provider.EvaluateCriterion(callCtx, resumeText, category, requirement)
		cancel()
		if err == nil {
			normalizeDetail(detail, category, requirement)
			return detail, nil
		}
		lastErr = err
	}
	return nil, classifyFailure(lastErr)
}

// EvaluateBulkCriteria evaluates several requirements at once. The result
// always has exactly one row per input requirement in input order; rows the
// model failed to produce are padded with status Missing.
func (m *Manager) EvaluateBulkCriteria(ctx context.Context, resumeText string, requirements []models.Requirement) ([]models.MatchDetail, error) {
	if len(requirements) == 0 {
		return []models.MatchDetail{}, nil
	}

	provider, err := m.getProvider()
	if err != nil {
		return nil, err
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if budget := m.config.LLM.BulkResumeChars; budget > 0 {
		resumeText = m.truncate(resumeText, budget)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.config.LLM.BulkTimeout)
	defer cancel()

	raw, err := provider.EvaluateBulkCriteria(callCtx, resumeText, requirements)
	if err != nil {
		return nil, classifyFailure(err)
	}
	return PadBulkResults(requirements, raw), nil
}

func (m *Manager) singleCallBudget() int {
	// Rough estimation: 3 chars per token.
	return m.config.LLM.MaxTokens * 3
}

func (m *Manager) truncate(text string, budget int) string {
	if budget > 0 && len(text) > budget {
		return text[:budget] + "..."
	}
	return text
}

// criteriaPriority orders categories for cross-section deduplication; a
// requirement appearing in two sections is kept in the higher-priority one.
var criteriaPriority = []models.Category{
	models.CategoryMustHave,
	models.CategoryExperience,
	models.CategoryDomainKnowledge,
	models.CategoryNiceToHave,
	models.CategoryEducation,
	models.CategorySoftSkills,
	models.CategoryResponsibility,
}

// NormalizeCriteria deduplicates requirement lists case-insensitively,
// both within and across sections.
func NormalizeCriteria(criteria *models.JobCriteria) {
	if criteria == nil {
		return
	}

	seen := make(map[string]bool)
	for _, category := range criteriaPriority {
		list := criteria.SectionList(category)
		if list == nil {
			continue
		}
		out := make([]string, 0, len(*list))
		for _, item := range *list {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			key := strings.ToLower(item)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
		*list = out
	}
}

// PadBulkResults aligns a possibly-short bulk response with its input: one
// row per requirement, input order, missing rows synthesized as Missing.
func PadBulkResults(requirements []models.Requirement, raw []models.MatchDetail) []models.MatchDetail {
	// Index returned rows by requirement text; fall back to positional
	// matching for rows whose text the model rewrote.
	byText := make(map[string]*models.MatchDetail, len(raw))
	for i := range raw {
		key := strings.ToLower(strings.TrimSpace(raw[i].Requirement))
		if key != "" && byText[key] == nil {
			byText[key] = &raw[i]
		}
	}

	out := make([]models.MatchDetail, len(requirements))
	for i, req := range requirements {
		var found *models.MatchDetail
		if d := byText[strings.ToLower(strings.TrimSpace(req.Text))]; d != nil {
			found = d
		} else if i < len(raw) && strings.TrimSpace(raw[i].Requirement) == "" {
			found = &raw[i]
		}

		if found == nil {
			out[i] = models.MatchDetail{
				Category:    req.Category,
				Requirement: req.Text,
				Status:      models.StatusMissing,
				Evidence:    "None",
			}
			continue
		}
		detail := *found
		normalizeDetail(&detail, req.Category, req.Text)
		out[i] = detail
	}
	return out
}

// normalizeDetail fills gaps in a model-produced detail row and coerces the
// status into the known set.
func normalizeDetail(detail *models.MatchDetail, category models.Category, requirement string) {
	if detail.Category == "" {
		detail.Category = category
	} else {
		detail.Category = models.NormalizeCategory(string(detail.Category))
		if detail.Category == models.CategoryOther && category != "" {
			detail.Category = category
		}
	}
	if detail.Requirement == "" {
		detail.Requirement = requirement
	}
	switch detail.Status {
	case models.StatusMet, models.StatusPartial, models.StatusMissing:
	default:
		detail.Status = coerceStatus(string(detail.Status))
	}
	if detail.Evidence == "" {
		detail.Evidence = "None"
	}
}

func coerceStatus(s string) models.CriterionStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "met", "yes", "true", "pass", "passed":
		return models.StatusMet
	case "partial", "partially met", "partially":
		return models.StatusPartial
	default:
		return models.StatusMissing
	}
}

// classifyFailure wraps a provider error into a structured gateway failure.
func classifyFailure(err error) error {
	if err == nil {
		return nil
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewFailure(FailureKindTimeout, true, err)
	case errors.Is(err, context.Canceled):
		return NewFailure(FailureKindNetwork, false, err)
	case strings.Contains(err.Error(), "parse"), strings.Contains(err.Error(), "JSON"):
		return NewFailure(FailureKindBadJSON, true, err)
	case strings.Contains(err.Error(), "empty"):
		return NewFailure(FailureKindEmpty, true, err)
	default:
		return NewFailure(FailureKindNetwork, true, err)
	}
}
