package models

import "time"

// JobCriteria is the structured requirement set extracted from a job
// description by the LLM gateway.
type JobCriteria struct {
	RoleTitle             string   `json:"role_title"`
	MustHaveSkills        []string `json:"must_have_skills"`
	NiceToHaveSkills      []string `json:"nice_to_have_skills"`
	MinYearsExperience    int      `json:"min_years_experience"`
	EducationRequirements []string `json:"education_requirements"`
	DomainKnowledge       []string `json:"domain_knowledge"`
	SoftSkills            []string `json:"soft_skills"`
	KeyResponsibilities   []string `json:"key_responsibilities"`
}

// SectionList returns a pointer to the requirement list backing the given
// category, or nil for categories that are not lists (experience, other).
func (c *JobCriteria) SectionList(category Category) *[]string {
	switch category {
	case CategoryMustHave:
		return &c.MustHaveSkills
	case CategoryNiceToHave:
		return &c.NiceToHaveSkills
	case CategoryEducation:
		return &c.EducationRequirements
	case CategoryDomainKnowledge:
		return &c.DomainKnowledge
	case CategorySoftSkills:
		return &c.SoftSkills
	case CategoryResponsibility:
		return &c.KeyResponsibilities
	}
	return nil
}

// Job represents an uploaded job description and its derived criteria.
type Job struct {
	ID         int64        `json:"id"`
	Filename   string       `json:"filename"`
	Content    string       `json:"content"`
	Criteria   *JobCriteria `json:"criteria,omitempty"`
	Tags       []string     `json:"tags"`
	UploadDate time.Time    `json:"upload_date"`
}
