package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/risk"
	"github.com/lumenhealth/checkin/backend/internal/model/session"
)

// MemoryStore keeps everything in process memory. Suitable for development
// and tests; production deployments use the Postgres store.
type MemoryStore struct {
	mu sync.RWMutex

	patients map[string]patient.Patient
	sessions map[string]session.Session
	// sessionOrder preserves per-patient session creation order so history
	// queries stay chronological.
	sessionOrder map[string][]string
	turns        map[string][]session.Turn
	responses    map[string][]pro.Response
	assessments  map[string]risk.Assessment
	alerts       map[string][]risk.Alert
	audit        []AuditEntry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore bootstraps the in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:     make(map[string]patient.Patient),
		sessions:     make(map[string]session.Session),
		sessionOrder: make(map[string][]string),
		turns:        make(map[string][]session.Turn),
		responses:    make(map[string][]pro.Response),
		assessments:  make(map[string]risk.Assessment),
		alerts:       make(map[string][]risk.Alert),
	}
}

func (m *MemoryStore) SavePatient(_ context.Context, p patient.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
	return nil
}

func (m *MemoryStore) LoadPatient(_ context.Context, id string) (patient.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return patient.Patient{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.sessions[s.ID]; !seen {
		m.sessionOrder[s.PatientID] = append(m.sessionOrder[s.PatientID], s.ID)
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) LoadSession(_ context.Context, id string) (session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return session.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ActiveSessionForPatient(_ context.Context, patientID string) (session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.sessionOrder[patientID] {
		s := m.sessions[id]
		if !s.Phase.Terminal() {
			return s, nil
		}
	}
	return session.Session{}, ErrNotFound
}

func (m *MemoryStore) AppendTurn(_ context.Context, t session.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.turns[t.SessionID] = append(m.turns[t.SessionID], t)
	return nil
}

func (m *MemoryStore) SessionTurns(_ context.Context, sessionID string) ([]session.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := m.turns[sessionID]
	copied := make([]session.Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}

func (m *MemoryStore) AppendResponse(_ context.Context, r pro.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.responses[r.SessionID] = append(m.responses[r.SessionID], r)
	return nil
}

func (m *MemoryStore) SessionResponses(_ context.Context, sessionID string) ([]pro.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	responses := m.responses[sessionID]
	copied := make([]pro.Response, len(responses))
	copy(copied, responses)
	return copied, nil
}

func (m *MemoryStore) PatientHistory(_ context.Context, patientID, excludeSessionID string) ([]pro.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var history []pro.Response
	for _, sessionID := range m.sessionOrder[patientID] {
		if sessionID == excludeSessionID {
			continue
		}
		history = append(history, m.responses[sessionID]...)
	}
	return history, nil
}

func (m *MemoryStore) SaveAssessment(_ context.Context, a risk.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments[a.SessionID] = a
	return nil
}

func (m *MemoryStore) AssessmentBySession(_ context.Context, sessionID string) (risk.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assessments[sessionID]
	if !ok {
		return risk.Assessment{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) SaveAlert(_ context.Context, a risk.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.PatientID] = append(m.alerts[a.PatientID], a)
	return nil
}

func (m *MemoryStore) AlertsForPatient(_ context.Context, patientID string) ([]risk.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	alerts := m.alerts[patientID]
	copied := make([]risk.Alert, len(alerts))
	copy(copied, alerts)
	return copied, nil
}

func (m *MemoryStore) AppendAudit(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.audit = append(m.audit, e)
	return nil
}

// AuditTrail returns a copy of the recorded audit entries, oldest first.
func (m *MemoryStore) AuditTrail() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	copied := make([]AuditEntry, len(m.audit))
	copy(copied, m.audit)
	return copied
}
