package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/risk"
	"github.com/lumenhealth/checkin/backend/internal/model/session"
)

// PostgresStore persists everything in Postgres. JSON-shaped fields
// (accessibility needs, emotion history, answers, signals) live in jsonb
// columns.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SavePatient(ctx context.Context, p patient.Patient) error {
	accessibility, err := json.Marshal(p.AccessibilityNeed)
	if err != nil {
		return fmt.Errorf("marshal accessibility needs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patients (id, full_name, date_of_birth, language, accessibility, conditions, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			date_of_birth = EXCLUDED.date_of_birth,
			language = EXCLUDED.language,
			accessibility = EXCLUDED.accessibility,
			conditions = EXCLUDED.conditions,
			archived = EXCLUDED.archived,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.FullName, p.DateOfBirth, p.Language, accessibility, pq.Array(p.Conditions), p.Archived, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save patient %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) LoadPatient(ctx context.Context, id string) (patient.Patient, error) {
	var (
		p             patient.Patient
		accessibility []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, date_of_birth, language, accessibility, conditions, archived, created_at, updated_at
		FROM patients WHERE id = $1`, id).
		Scan(&p.ID, &p.FullName, &p.DateOfBirth, &p.Language, &accessibility, pq.Array(&p.Conditions), &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return patient.Patient{}, ErrNotFound
	}
	if err != nil {
		return patient.Patient{}, fmt.Errorf("load patient %s: %w", id, err)
	}
	if len(accessibility) > 0 {
		if err := json.Unmarshal(accessibility, &p.AccessibilityNeed); err != nil {
			return patient.Patient{}, fmt.Errorf("decode accessibility for patient %s: %w", id, err)
		}
	}
	return p, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, sess session.Session) error {
	emotions, err := json.Marshal(sess.EmotionHistory)
	if err != nil {
		return fmt.Errorf("marshal emotion history: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, patient_id, template_id, phase, turn_count, emotion_history, last_question_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			turn_count = EXCLUDED.turn_count,
			emotion_history = EXCLUDED.emotion_history,
			last_question_id = EXCLUDED.last_question_id,
			updated_at = EXCLUDED.updated_at`,
		sess.ID, sess.PatientID, sess.TemplateID, string(sess.Phase), sess.TurnCount, emotions, sess.LastQuestionID, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *PostgresStore) LoadSession(ctx context.Context, id string) (session.Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, patient_id, template_id, phase, turn_count, emotion_history, last_question_id, created_at, updated_at
		FROM sessions WHERE id = $1`, id))
}

func (s *PostgresStore) ActiveSessionForPatient(ctx context.Context, patientID string) (session.Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, patient_id, template_id, phase, turn_count, emotion_history, last_question_id, created_at, updated_at
		FROM sessions
		WHERE patient_id = $1 AND phase NOT IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`,
		patientID, string(session.PhaseComplete), string(session.PhaseAborted)))
}

func (s *PostgresStore) scanSession(row *sql.Row) (session.Session, error) {
	var (
		sess     session.Session
		phase    string
		emotions []byte
	)
	err := row.Scan(&sess.ID, &sess.PatientID, &sess.TemplateID, &phase, &sess.TurnCount, &emotions, &sess.LastQuestionID, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("load session: %w", err)
	}
	sess.Phase = session.Phase(phase)
	if len(emotions) > 0 {
		if err := json.Unmarshal(emotions, &sess.EmotionHistory); err != nil {
			return session.Session{}, fmt.Errorf("decode emotion history for session %s: %w", sess.ID, err)
		}
	}
	return sess, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, t session.Turn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, seq, speaker, text, emotion, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.SessionID, t.Seq, string(t.Speaker), t.Text, t.Emotion, t.Confidence, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("append turn for session %s: %w", t.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) SessionTurns(ctx context.Context, sessionID string) ([]session.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, speaker, text, emotion, confidence, created_at
		FROM turns WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []session.Turn
	for rows.Next() {
		var (
			t       session.Turn
			speaker string
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &speaker, &t.Text, &t.Emotion, &t.Confidence, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Speaker = session.Speaker(speaker)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *PostgresStore) AppendResponse(ctx context.Context, r pro.Response) error {
	answer, err := r.MarshalValue()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pro_responses (id, session_id, question_id, metric, answer, severity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.SessionID, r.QuestionID, r.Metric, answer, r.Severity, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("append response for session %s: %w", r.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) SessionResponses(ctx context.Context, sessionID string) ([]pro.Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, question_id, metric, answer, severity, created_at
		FROM pro_responses WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list responses for session %s: %w", sessionID, err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

func (s *PostgresStore) PatientHistory(ctx context.Context, patientID, excludeSessionID string) ([]pro.Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.session_id, r.question_id, r.metric, r.answer, r.severity, r.created_at
		FROM pro_responses r
		JOIN sessions s ON s.id = r.session_id
		WHERE s.patient_id = $1 AND r.session_id <> $2
		ORDER BY s.created_at, r.created_at, r.id`, patientID, excludeSessionID)
	if err != nil {
		return nil, fmt.Errorf("load history for patient %s: %w", patientID, err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

func scanResponses(rows *sql.Rows) ([]pro.Response, error) {
	var responses []pro.Response
	for rows.Next() {
		var (
			r      pro.Response
			answer []byte
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.QuestionID, &r.Metric, &answer, &r.Severity, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if err := json.Unmarshal(answer, &r.Answer); err != nil {
			return nil, fmt.Errorf("decode answer for response %s: %w", r.ID, err)
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

func (s *PostgresStore) SaveAssessment(ctx context.Context, a risk.Assessment) error {
	signals, err := json.Marshal(a.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_assessments (id, patient_id, session_id, score, signals, alert, recommendation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			score = EXCLUDED.score,
			signals = EXCLUDED.signals,
			alert = EXCLUDED.alert,
			recommendation = EXCLUDED.recommendation`,
		a.ID, a.PatientID, a.SessionID, a.Score, signals, a.Alert, a.Recommendation, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save assessment for session %s: %w", a.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) AssessmentBySession(ctx context.Context, sessionID string) (risk.Assessment, error) {
	var (
		a       risk.Assessment
		signals []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, patient_id, session_id, score, signals, alert, recommendation, created_at
		FROM risk_assessments WHERE session_id = $1`, sessionID).
		Scan(&a.ID, &a.PatientID, &a.SessionID, &a.Score, &signals, &a.Alert, &a.Recommendation, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return risk.Assessment{}, ErrNotFound
	}
	if err != nil {
		return risk.Assessment{}, fmt.Errorf("load assessment for session %s: %w", sessionID, err)
	}
	if len(signals) > 0 {
		if err := json.Unmarshal(signals, &a.Signals); err != nil {
			return risk.Assessment{}, fmt.Errorf("decode signals for assessment %s: %w", a.ID, err)
		}
	}
	return a, nil
}

func (s *PostgresStore) SaveAlert(ctx context.Context, a risk.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, patient_id, assessment_id, severity, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
		a.ID, a.PatientID, a.AssessmentID, string(a.Severity), a.Message, string(a.Status), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save alert %s: %w", a.ID, err)
	}
	return nil
}

func (s *PostgresStore) AlertsForPatient(ctx context.Context, patientID string) ([]risk.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, assessment_id, severity, message, status, created_at
		FROM alerts WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list alerts for patient %s: %w", patientID, err)
	}
	defer rows.Close()

	var alerts []risk.Alert
	for rows.Next() {
		var (
			a                risk.Alert
			severity, status string
		)
		if err := rows.Scan(&a.ID, &a.PatientID, &a.AssessmentID, &severity, &a.Message, &status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = risk.Severity(severity)
		a.Status = risk.Status(status)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *PostgresStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, patient_id, session_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.PatientID, e.SessionID, e.Action, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
