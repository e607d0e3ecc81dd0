package extractor

import "strings"

// DocumentKind is the result of heuristic document classification.
type DocumentKind string

const (
	DocumentKindJob    DocumentKind = "job"
	DocumentKindResume DocumentKind = "resume"
)

var jobSignals = []string{
	"we are looking for", "we're looking for", "job description",
	"responsibilities", "requirements", "qualifications", "what you'll do",
	"what you will do", "about the role", "about this role", "who you are",
	"benefits", "equal opportunity", "apply now", "salary range",
	"about us", "about the company", "the ideal candidate",
}

var resumeSignals = []string{
	"work experience", "professional experience", "employment history",
	"education", "curriculum vitae", "career objective",
	"summary of qualifications",
	"references available", "skills", "certifications", "linkedin.com/in",
	"github.com/", "professional summary", "career summary",
}

// ClassifyDocument decides whether extracted text reads like a job
// description or a resume. Keyword hits are counted per side; ties go to
// resume since uploads skew heavily toward candidate documents.
func ClassifyDocument(text string) DocumentKind {
	lower := strings.ToLower(text)

	jobScore := 0
	for _, signal := range jobSignals {
		if strings.Contains(lower, signal) {
			jobScore++
		}
	}
	resumeScore := 0
	for _, signal := range resumeSignals {
		if strings.Contains(lower, signal) {
			resumeScore++
		}
	}

	if jobScore > resumeScore {
		return DocumentKindJob
	}
	return DocumentKindResume
}
