package models

// Decision is the hiring recommendation for a (job, resume) pair.
type Decision string

const (
	DecisionMoveForward Decision = "Move Forward"
	DecisionReview      Decision = "Review"
	DecisionReject      Decision = "Reject"
)

// Strategy identifies which scoring tier produced a match.
type Strategy string

const (
	StrategyStandard Strategy = "Standard"
	StrategyDeep     Strategy = "Deep"
)

// CriterionStatus is the per-requirement verdict from a deep scan.
type CriterionStatus string

const (
	StatusMet     CriterionStatus = "Met"
	StatusPartial CriterionStatus = "Partial"
	StatusMissing CriterionStatus = "Missing"
)

// Category identifies the criteria section a requirement came from.
type Category string

const (
	CategoryMustHave        Category = "must_have_skills"
	CategoryExperience      Category = "experience"
	CategoryEducation       Category = "education_requirements"
	CategoryDomainKnowledge Category = "domain_knowledge"
	CategoryNiceToHave      Category = "nice_to_have_skills"
	CategorySoftSkills      Category = "soft_skills"
	CategoryResponsibility  Category = "key_responsibilities"
	CategoryOther           Category = "other"
)

// NormalizeCategory maps free-form category strings onto the known enum,
// falling back to CategoryOther.
func NormalizeCategory(s string) Category {
	switch Category(s) {
	case CategoryMustHave, CategoryExperience, CategoryEducation,
		CategoryDomainKnowledge, CategoryNiceToHave, CategorySoftSkills,
		CategoryResponsibility:
		return Category(s)
	}
	return CategoryOther
}

// Requirement is one (category, text) pair derived from job criteria.
type Requirement struct {
	Category Category `json:"category"`
	Text     string   `json:"requirement"`
}

// MatchDetail is the evaluated outcome of a single requirement.
type MatchDetail struct {
	Category    Category        `json:"category"`
	Requirement string          `json:"requirement"`
	Status      CriterionStatus `json:"status"`
	Evidence    string          `json:"evidence"`
}

// StandardEvaluation is the holistic Pass-1 verdict for a (job, resume)
// pair as returned by the LLM gateway.
type StandardEvaluation struct {
	CandidateName string   `json:"candidate_name"`
	MatchScore    int      `json:"match_score"`
	Decision      string   `json:"decision"`
	Reasoning     string   `json:"reasoning"`
	MissingSkills []string `json:"missing_skills"`
}

// Match is the persisted scoring outcome for a (job, resume) pair. At most
// one row exists per pair; recomputes update the row in place.
type Match struct {
	ID                int64         `json:"id"`
	JobID             int64         `json:"job_id"`
	ResumeID          int64         `json:"resume_id"`
	CandidateName     string        `json:"candidate_name"`
	MatchScore        int           `json:"match_score"`
	StandardScore     *int          `json:"standard_score,omitempty"`
	Decision          Decision      `json:"decision"`
	Strategy          Strategy      `json:"strategy"`
	Reasoning         string        `json:"reasoning"`
	StandardReasoning string        `json:"standard_reasoning"`
	MissingSkills     []string      `json:"missing_skills"`
	MatchDetails      []MatchDetail `json:"match_details"`
}
