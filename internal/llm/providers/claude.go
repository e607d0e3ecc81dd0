package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"resumatch/internal/config"
	"resumatch/internal/llm/processors"
	"resumatch/internal/logging"
	"resumatch/pkg/models"
)

// ClaudeProvider implements the provider interface using Anthropic's Claude.
type ClaudeProvider struct {
	client   anthropic.Client
	config   *config.Config
	repairer *processors.JSONRepairer
}

// NewClaudeProvider creates a new Claude provider instance.
func NewClaudeProvider(cfg *config.Config) *ClaudeProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.LLM.APIKey)}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.LLM.BaseURL))
	}

	return &ClaudeProvider{
		client:   anthropic.NewClient(opts...),
		config:   cfg,
		repairer: processors.NewJSONRepairer(),
	}
}

func (cp *ClaudeProvider) model() anthropic.Model {
	if cp.config.LLM.Model != "" {
		return anthropic.Model(cp.config.LLM.Model)
	}
	return anthropic.ModelClaude3_7SonnetLatest
}

// complete sends one prompt and returns the raw text of the response.
func (cp *ClaudeProvider) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	response, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       cp.model(),
		MaxTokens:   int64(cp.config.LLM.MaxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call Claude API: %w", err)
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("empty response from Claude")
	}

	var responseText string
	for _, content := range response.Content {
		textContent := content.AsText()
		responseText = textContent.Text
		break
	}
	if responseText == "" {
		return "", fmt.Errorf("no text content in Claude response")
	}
	return responseText, nil
}

// AnalyzeJD extracts structured hiring criteria from job description text.
func (cp *ClaudeProvider) AnalyzeJD(ctx context.Context, text string) (*models.JobCriteria, error) {
	logger := logging.GetGlobalLogger()
	logger.Debug("Analyzing job description", map[string]interface{}{
		"text_length": len(text),
		"provider":    "claude",
	})

	raw, err := cp.complete(ctx, buildJDPrompt(text), float64(cp.config.LLM.Temperature))
	if err != nil {
		return nil, err
	}

	var criteria models.JobCriteria
	if err := cp.repairer.ParseObject(raw, &criteria); err != nil {
		return nil, fmt.Errorf("failed to parse JD analysis: %w", err)
	}
	return &criteria, nil
}

// AnalyzeResume extracts a structured candidate profile from resume text.
func (cp *ClaudeProvider) AnalyzeResume(ctx context.Context, text string) (*models.CandidateProfile, error) {
	raw, err := cp.complete(ctx, buildResumePrompt(text), float64(cp.config.LLM.Temperature))
	if err != nil {
		return nil, err
	}

	var profile models.CandidateProfile
	if err := cp.repairer.ParseObject(raw, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse resume analysis: %w", err)
	}
	return &profile, nil
}

// EvaluateStandard scores the pair holistically in one call.
func (cp *ClaudeProvider) EvaluateStandard(ctx context.Context, resumeText string, criteria *models.JobCriteria, profile *models.CandidateProfile, temperature float64) (*models.StandardEvaluation, error) {
	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to encode criteria: %w", err)
	}

	raw, err := cp.complete(ctx, buildStandardPrompt(resumeText, string(criteriaJSON), profile), temperature)
	if err != nil {
		return nil, err
	}

	var out models.StandardEvaluation
	if err := cp.repairer.ParseObject(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse standard evaluation: %w", err)
	}
	return &out, nil
}

// EvaluateCriterion evaluates a single requirement against the resume.
func (cp *ClaudeProvider) EvaluateCriterion(ctx context.Context, resumeText string, category models.Category, requirement string) (*models.MatchDetail, error) {
	raw, err := cp.complete(ctx, buildCriterionPrompt(resumeText, string(category), requirement), float64(cp.config.LLM.Temperature))
	if err != nil {
		return nil, err
	}

	var detail models.MatchDetail
	if err := cp.repairer.ParseObject(raw, &detail); err != nil {
		return nil, fmt.Errorf("failed to parse criterion evaluation: %w", err)
	}
	return &detail, nil
}

// EvaluateBulkCriteria evaluates several requirements in one call.
func (cp *ClaudeProvider) EvaluateBulkCriteria(ctx context.Context, resumeText string, requirements []models.Requirement) ([]models.MatchDetail, error) {
	reqJSON, err := json.Marshal(requirements)
	if err != nil {
		return nil, fmt.Errorf("failed to encode requirements: %w", err)
	}

	raw, err := cp.complete(ctx, buildBulkPrompt(resumeText, string(reqJSON)), float64(cp.config.LLM.Temperature))
	if err != nil {
		return nil, err
	}

	var details []models.MatchDetail
	if err := cp.repairer.ParseArray(raw, &details); err != nil {
		return nil, fmt.Errorf("failed to parse bulk evaluation: %w", err)
	}
	return details, nil
}

// IsHealthy checks if the Claude provider is healthy and available.
func (cp *ClaudeProvider) IsHealthy(ctx context.Context) error {
	if cp.config.LLM.APIKey == "" {
		return fmt.Errorf("Claude API key not configured - set LLM_API_KEY environment variable")
	}

	_, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     cp.model(),
		MaxTokens: 16,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: "Hello"},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return fmt.Errorf("Claude API health check failed: %w", err)
	}
	return nil
}

// GetProviderName returns the name of the LLM provider.
func (cp *ClaudeProvider) GetProviderName() string {
	return "claude"
}

func buildJDPrompt(text string) string {
	return fmt.Sprintf(`You are a hiring criteria analyzer. Extract structured hiring criteria from the job description below and return it as a JSON object with exactly these fields:

{
  "role_title": "string - The job title",
  "must_have_skills": ["array of strings - Hard requirements"],
  "nice_to_have_skills": ["array of strings - Preferred but optional skills"],
  "min_years_experience": number - Minimum years of relevant experience (0 if not stated),
  "education_requirements": ["array of strings - Degrees or certifications required"],
  "domain_knowledge": ["array of strings - Industry or domain expertise required"],
  "soft_skills": ["array of strings - Communication, leadership and similar"],
  "key_responsibilities": ["array of strings - Main duties of the role"]
}

IMPORTANT RULES:
1. Return ONLY valid JSON, no additional text or explanation
2. If information is not found, use empty string "" for strings, empty array [] for arrays, and 0 for numbers
3. Keep each requirement short and self-contained

JOB DESCRIPTION:
%s`, text)
}

func buildResumePrompt(text string) string {
	return fmt.Sprintf(`You are a resume analyzer. Extract a structured candidate profile from the resume below and return it as a JSON object with exactly these fields:

{
  "candidate_name": "string - The candidate's full name",
  "email": "string - Email address if present",
  "phone": "string - Phone number if present",
  "extracted_skills": ["array of strings - Technical and professional skills"],
  "years_experience": number - Total years of professional experience (may be fractional),
  "education_summary": "string - Highest degree and institution",
  "domain_experience": ["array of strings - Industries the candidate has worked in"],
  "work_history": [{"company": "string", "title": "string", "duration": "string", "highlights": ["array of strings"]}]
}

IMPORTANT RULES:
1. Return ONLY valid JSON, no additional text or explanation
2. If information is not found, use empty string "" for strings, empty array [] for arrays, and 0 for numbers

RESUME:
%s`, text)
}

func buildStandardPrompt(resumeText, criteriaJSON string, profile *models.CandidateProfile) string {
	var sb strings.Builder
	sb.WriteString(`You are a recruiting evaluator. Score how well the candidate below matches the hiring criteria and return ONLY a JSON object with exactly these fields:

{
  "candidate_name": "string - The candidate's name",
  "match_score": number - Overall fit from 0 to 100,
  "decision": "string - One of: Move Forward, Review, Reject",
  "reasoning": "string - 2-3 sentences explaining the score",
  "missing_skills": ["array of strings - Required skills the candidate lacks"]
}

HIRING CRITERIA (JSON):
`)
	sb.WriteString(criteriaJSON)
	if profile != nil && profile.CandidateName != "" {
		sb.WriteString("\n\nCANDIDATE NAME: ")
		sb.WriteString(profile.CandidateName)
	}
	sb.WriteString("\n\nRESUME:\n")
	sb.WriteString(resumeText)
	return sb.String()
}

func buildCriterionPrompt(resumeText, category, requirement string) string {
	return fmt.Sprintf(`You are a recruiting evaluator checking ONE requirement against a resume. Return ONLY a JSON object with exactly these fields:

{
  "category": "%s",
  "requirement": "%s",
  "status": "string - One of: Met, Partial, Missing",
  "evidence": "string - A short quote or fact from the resume supporting the status, or 'None'"
}

REQUIREMENT (%s): %s

RESUME:
%s`, category, requirement, category, requirement, resumeText)
}

func buildBulkPrompt(resumeText, requirementsJSON string) string {
	return fmt.Sprintf(`You are a recruiting evaluator checking several requirements against a resume at once. For EACH requirement in the input list, produce one result object. Return ONLY a JSON array, one entry per input requirement, in the same order:

[{"category": "string - copied from the input", "requirement": "string - copied from the input", "status": "string - One of: Met, Partial, Missing", "evidence": "string - supporting fact or 'None'"}]

REQUIREMENTS (JSON):
%s

RESUME:
%s`, requirementsJSON, resumeText)
}
