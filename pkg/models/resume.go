package models

import "time"

// WorkHistoryEntry is a single position in a candidate's work history.
type WorkHistoryEntry struct {
	Company string `json:"company"`
	Role    string `json:"role"`
	Summary string `json:"summary"`
}

// CandidateProfile is the structured profile extracted from a resume by the
// LLM gateway.
type CandidateProfile struct {
	CandidateName    string             `json:"candidate_name"`
	Email            string             `json:"email"`
	Phone            string             `json:"phone"`
	ExtractedSkills  []string           `json:"extracted_skills"`
	YearsExperience  float64            `json:"years_experience"`
	EducationSummary string             `json:"education_summary"`
	DomainExperience []string           `json:"domain_experience"`
	WorkHistory      []WorkHistoryEntry `json:"work_history"`
}

// Resume represents an uploaded candidate resume and its derived profile.
type Resume struct {
	ID         int64             `json:"id"`
	Filename   string            `json:"filename"`
	Content    string            `json:"content"`
	Profile    *CandidateProfile `json:"profile,omitempty"`
	Tags       []string          `json:"tags"`
	UploadDate time.Time         `json:"upload_date"`
}
