package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"resumatch/internal/extractor"
	"resumatch/internal/llm"
	"resumatch/internal/store"
	"resumatch/pkg/models"
)

// Ingester runs the document ingest pipelines: extract text, analyze it
// through the gateway, persist the row. Linear with three checkpoints;
// failures are fatal to the run.
type Ingester struct {
	store     *store.Store
	gateway   *llm.Manager
	extractor *extractor.Extractor
}

// NewIngester creates an ingester over the given store, gateway and
// extractor.
func NewIngester(st *store.Store, gateway *llm.Manager, ex *extractor.Extractor) *Ingester {
	return &Ingester{store: st, gateway: gateway, extractor: ex}
}

// IngestJob ingests job description text and derives its criteria.
func (in *Ingester) IngestJob(ctx context.Context, handle *RunHandle, payload models.RunPayload) (*models.RunResult, error) {
	return in.ingestJobText(ctx, handle, payload.Filename, payload.Content, payload.Tags)
}

// IngestResume ingests resume text and derives its candidate profile.
func (in *Ingester) IngestResume(ctx context.Context, handle *RunHandle, payload models.RunPayload) (*models.RunResult, error) {
	return in.ingestResumeText(ctx, handle, payload.Filename, payload.Content, payload.Tags)
}

// IngestJobFile extracts text from an uploaded file, then ingests it as a
// job description.
func (in *Ingester) IngestJobFile(ctx context.Context, handle *RunHandle, payload models.RunPayload) (*models.RunResult, error) {
	text, err := in.extractFile(handle, payload)
	if err != nil {
		return nil, err
	}
	return in.ingestJobText(ctx, handle, payload.Filename, text, payload.Tags)
}

// IngestResumeFile extracts text from an uploaded file, then ingests it as
// a resume.
func (in *Ingester) IngestResumeFile(ctx context.Context, handle *RunHandle, payload models.RunPayload) (*models.RunResult, error) {
	text, err := in.extractFile(handle, payload)
	if err != nil {
		return nil, err
	}
	return in.ingestResumeText(ctx, handle, payload.Filename, text, payload.Tags)
}

// IngestAutoFile extracts text from an uploaded file, classifies it as a
// job description or resume, and delegates to the matching pipeline.
func (in *Ingester) IngestAutoFile(ctx context.Context, handle *RunHandle, payload models.RunPayload) (*models.RunResult, error) {
	text, err := in.extractFile(handle, payload)
	if err != nil {
		return nil, err
	}

	kind := extractor.ClassifyDocument(text)
	handle.Log("info", fmt.Sprintf("Classified %s as %s", payload.Filename, kind))

	if kind == extractor.DocumentKindJob {
		return in.ingestJobText(ctx, handle, payload.Filename, text, payload.Tags)
	}
	return in.ingestResumeText(ctx, handle, payload.Filename, text, payload.Tags)
}

// ReprocessJob re-analyzes a stored job's content with the current gateway.
func (in *Ingester) ReprocessJob(ctx context.Context, handle *RunHandle, payload models.RunPayload) (*models.RunResult, error) {
	job, err := in.store.GetJob(payload.TargetID)
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", payload.TargetID, err)
	}
	return in.ingestJobText(ctx, handle, job.Filename, job.Content, job.Tags)
}

// ReprocessResume re-analyzes a stored resume's content.
func (in *Ingester) ReprocessResume(ctx context.Context, handle *RunHandle, payload models.RunPayload) (*models.RunResult, error) {
	resume, err := in.store.GetResume(payload.TargetID)
	if err != nil {
		return nil, fmt.Errorf("resume %d: %w", payload.TargetID, err)
	}
	return in.ingestResumeText(ctx, handle, resume.Filename, resume.Content, resume.Tags)
}

func (in *Ingester) extractFile(handle *RunHandle, payload models.RunPayload) (string, error) {
	if payload.Path == "" {
		return "", fmt.Errorf("no file path in payload")
	}
	handle.Progress(10, "extracting_text")
	handle.Log("info", fmt.Sprintf("Extracting text from %s", filepath.Base(payload.Path)))

	text, err := in.extractor.ExtractFile(payload.Path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text extracted from %s", filepath.Base(payload.Path))
	}
	return text, nil
}

func (in *Ingester) ingestJobText(ctx context.Context, handle *RunHandle, filename, content string, tags []string) (*models.RunResult, error) {
	if err := handle.EnsureActive(); err != nil {
		return nil, err
	}
	handle.Progress(40, "analyzing_jd")
	handle.Log("info", fmt.Sprintf("Analyzing job description %s", filename))

	criteria, err := in.gateway.AnalyzeJD(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("JD analysis failed: %w", err)
	}

	if err := handle.EnsureActive(); err != nil {
		return nil, err
	}
	handle.Progress(80, "saving")

	job, err := in.store.UpsertJob(filename, content, criteria, tags)
	if err != nil {
		return nil, err
	}
	if err := in.store.EnsureTags(tags); err != nil {
		return nil, err
	}

	handle.Log("info", fmt.Sprintf("Ingested job %d (%s)", job.ID, filename))
	return &models.RunResult{
		JobID:    job.ID,
		Filename: filename,
		Message:  fmt.Sprintf("Ingested job %q with %d must-have requirements", criteria.RoleTitle, len(criteria.MustHaveSkills)),
	}, nil
}

func (in *Ingester) ingestResumeText(ctx context.Context, handle *RunHandle, filename, content string, tags []string) (*models.RunResult, error) {
	if err := handle.EnsureActive(); err != nil {
		return nil, err
	}
	handle.Progress(40, "analyzing_resume")
	handle.Log("info", fmt.Sprintf("Analyzing resume %s", filename))

	profile, err := in.gateway.AnalyzeResume(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("resume analysis failed: %w", err)
	}

	if err := handle.EnsureActive(); err != nil {
		return nil, err
	}
	handle.Progress(80, "saving")

	resume, err := in.store.UpsertResume(filename, content, profile, tags)
	if err != nil {
		return nil, err
	}
	if err := in.store.EnsureTags(tags); err != nil {
		return nil, err
	}

	handle.Log("info", fmt.Sprintf("Ingested resume %d (%s)", resume.ID, filename))
	return &models.RunResult{
		ResumeID: resume.ID,
		Filename: filename,
		Message:  fmt.Sprintf("Ingested resume for %s", profile.CandidateName),
	}, nil
}
