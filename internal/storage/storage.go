package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/risk"
	"github.com/lumenhealth/checkin/backend/internal/model/session"
)

// ErrNotFound is returned for lookups of records that do not exist.
var ErrNotFound = errors.New("storage: not found")

// AuditEntry records one orchestration event for traceability.
type AuditEntry struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patientId"`
	SessionID string    `json:"sessionId,omitempty"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence boundary for the check-in service. Implementations
// must be safe for concurrent use. Transient failures should be reported as
// such so callers can decide to retry.
type Store interface {
	SavePatient(ctx context.Context, p patient.Patient) error
	LoadPatient(ctx context.Context, id string) (patient.Patient, error)

	SaveSession(ctx context.Context, s session.Session) error
	LoadSession(ctx context.Context, id string) (session.Session, error)
	// ActiveSessionForPatient returns the patient's non-terminal session, or
	// ErrNotFound when every session has finished.
	ActiveSessionForPatient(ctx context.Context, patientID string) (session.Session, error)

	AppendTurn(ctx context.Context, t session.Turn) error
	SessionTurns(ctx context.Context, sessionID string) ([]session.Turn, error)

	AppendResponse(ctx context.Context, r pro.Response) error
	SessionResponses(ctx context.Context, sessionID string) ([]pro.Response, error)
	// PatientHistory returns the patient's responses across past sessions in
	// chronological order, excluding the named session.
	PatientHistory(ctx context.Context, patientID, excludeSessionID string) ([]pro.Response, error)

	SaveAssessment(ctx context.Context, a risk.Assessment) error
	AssessmentBySession(ctx context.Context, sessionID string) (risk.Assessment, error)

	SaveAlert(ctx context.Context, a risk.Alert) error
	AlertsForPatient(ctx context.Context, patientID string) ([]risk.Alert, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
}
