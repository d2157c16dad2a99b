package risk

import "time"

// Direction labels a metric-family trend.
type Direction string

const (
	Worsening Direction = "worsening"
	Stable    Direction = "stable"
	Improving Direction = "improving"
)

// Signal is one named trend finding, e.g. "sleep declining 3 sessions".
type Signal struct {
	Name      string    `json:"name"`
	Metric    string    `json:"metric"`
	Direction Direction `json:"direction"`
	Magnitude float64   `json:"magnitude"`
	Acute     bool      `json:"acute,omitempty"`
}

// Assessment is the immutable output of the trend engine for one completed
// session. Score is a normalized [0,1] aggregate; the alert decision never
// depends on any text backend.
type Assessment struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patientId"`
	SessionID      string    `json:"sessionId"`
	Score          float64   `json:"score"`
	Signals        []Signal  `json:"signals"`
	Alert          bool      `json:"alert"`
	Recommendation string    `json:"recommendation"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Severity grades a clinician-facing alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status tracks clinician handling of an alert. Only clinician actions move
// an alert out of StatusActive.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Alert is raised when an assessment crosses the alert threshold or shows an
// acute single-session change.
type Alert struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patientId"`
	AssessmentID string    `json:"assessmentId"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}
