package patient

import "time"

// Patient is the clinician-managed record a check-in session belongs to.
// Patients are never deleted, only archived.
type Patient struct {
	ID                string            `json:"id"`
	FullName          string            `json:"fullName,omitempty"`
	DateOfBirth       string            `json:"dateOfBirth,omitempty"`
	Language          string            `json:"language,omitempty"`
	AccessibilityNeed map[string]string `json:"accessibilityNeeds,omitempty"`
	Conditions        []string          `json:"conditions,omitempty"`
	Archived          bool              `json:"archived"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// ConditionTag returns the primary condition used to pick a questionnaire
// template, falling back to the general template when none is recorded.
func (p *Patient) ConditionTag() string {
	if len(p.Conditions) == 0 {
		return "general"
	}
	return p.Conditions[0]
}
