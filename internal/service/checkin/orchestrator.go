package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenhealth/checkin/backend/internal/analysis/trend"
	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/questionnaire"
	"github.com/lumenhealth/checkin/backend/internal/model/risk"
	"github.com/lumenhealth/checkin/backend/internal/model/session"
	"github.com/lumenhealth/checkin/backend/internal/notify"
	"github.com/lumenhealth/checkin/backend/internal/service/ai"
	questionnaireservice "github.com/lumenhealth/checkin/backend/internal/service/questionnaire"
	"github.com/lumenhealth/checkin/backend/internal/storage"
)

// Options tunes the orchestrator.
type Options struct {
	// MaxQuestions caps structured questions per session.
	MaxQuestions int
	// PersistTimeout bounds each persistence call.
	PersistTimeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Orchestrator drives a check-in session through its phases: companion
// warm-up, structured questionnaire, analysis, completion. All turn
// processing for one session is serialized; different sessions proceed
// independently.
type Orchestrator struct {
	store     storage.Store
	templates questionnaire.Store
	engine    *trend.Engine
	processor turnProcessor
	notifiers []notify.Notifier
	log       *zap.SugaredLogger

	locks          *sessionLocks
	persistTimeout time.Duration
	now            func() time.Time
}

// NewOrchestrator wires the session pipeline. generator may be nil, which
// forces templated replies everywhere.
func NewOrchestrator(store storage.Store, templates questionnaire.Store, engine *trend.Engine, generator ai.Generator, notifiers []notify.Notifier, log *zap.SugaredLogger, opts Options) *Orchestrator {
	if opts.MaxQuestions < 1 {
		opts.MaxQuestions = 5
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Orchestrator{
		store:     store,
		templates: templates,
		engine:    engine,
		processor: turnProcessor{
			generator: generator,
			adapter:   questionnaireservice.NewAdapter(opts.MaxQuestions),
			now:       opts.Now,
		},
		notifiers:      notifiers,
		log:            log,
		locks:          newSessionLocks(),
		persistTimeout: opts.PersistTimeout,
		now:            opts.Now,
	}
}

// StartResult is the response to a session start.
type StartResult struct {
	Session  session.Session `json:"session"`
	Greeting string          `json:"greeting"`
}

// StartSession opens a new check-in for the patient and returns the opening
// greeting. A patient can only have one active session at a time.
func (o *Orchestrator) StartSession(ctx context.Context, patientID string) (StartResult, error) {
	if patientID == "" {
		return StartResult{}, &ValidationError{Field: "patientId", Reason: "required"}
	}

	pat, err := o.store.LoadPatient(ctx, patientID)
	if errors.Is(err, storage.ErrNotFound) {
		return StartResult{}, &ValidationError{Field: "patientId", Reason: "unknown patient"}
	}
	if err != nil {
		return StartResult{}, &TransientError{Op: "load patient", Err: err}
	}
	if pat.Archived {
		return StartResult{}, &ValidationError{Field: "patientId", Reason: "patient is archived"}
	}

	if active, err := o.store.ActiveSessionForPatient(ctx, patientID); err == nil {
		return StartResult{}, &ValidationError{
			Field:  "patientId",
			Reason: fmt.Sprintf("patient already has an active session %s", active.ID),
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return StartResult{}, &TransientError{Op: "check active session", Err: err}
	}

	tpl, ok := o.templates.FindByCondition(pat.ConditionTag())
	if !ok {
		return StartResult{}, &ValidationError{Field: "patientId", Reason: "no questionnaire template for condition " + pat.ConditionTag()}
	}

	now := o.now()
	sess := session.Session{
		ID:         uuid.NewString(),
		PatientID:  patientID,
		TemplateID: tpl.ID,
		Phase:      session.PhaseCompanion,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	greeting := ai.Greeting(&pat)

	if err := o.persist(ctx, "save session", func(ctx context.Context) error {
		return o.store.SaveSession(ctx, sess)
	}); err != nil {
		return StartResult{}, err
	}
	if err := o.persist(ctx, "save greeting turn", func(ctx context.Context) error {
		return o.store.AppendTurn(ctx, session.Turn{
			ID:        uuid.NewString(),
			SessionID: sess.ID,
			Seq:       1,
			Speaker:   session.SpeakerAgent,
			Text:      greeting,
			CreatedAt: now,
		})
	}); err != nil {
		return StartResult{}, err
	}

	o.audit(ctx, pat.ID, sess.ID, "session_started", "template "+tpl.ID)
	o.log.Infow("session started", "session", sess.ID, "patient", pat.ID, "template", tpl.ID)

	return StartResult{Session: sess, Greeting: greeting}, nil
}

// TurnReply is the response to one processed patient message.
type TurnReply struct {
	SessionID string        `json:"sessionId"`
	Phase     session.Phase `json:"phase"`
	Reply     string        `json:"reply"`
	Emotion   string        `json:"emotion,omitempty"`
	Done      bool          `json:"done"`
	Alert     bool          `json:"alert,omitempty"`
}

// SubmitTurn processes one patient message. The session lock is held for
// the duration of the turn only.
func (o *Orchestrator) SubmitTurn(ctx context.Context, sessionID, message string) (TurnReply, error) {
	if sessionID == "" {
		return TurnReply{}, &ValidationError{Field: "sessionId", Reason: "required"}
	}
	if strings.TrimSpace(message) == "" {
		return TurnReply{}, &ValidationError{Field: "message", Reason: "message is empty"}
	}

	release := o.locks.acquire(sessionID)
	defer release()

	sess, err := o.store.LoadSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return TurnReply{}, err
	}
	if err != nil {
		return TurnReply{}, &TransientError{Op: "load session", Err: err}
	}
	if err := sess.Validate(); err != nil {
		return TurnReply{}, o.quarantine(ctx, sess, err)
	}
	if sess.Phase.Terminal() {
		return TurnReply{}, &StateError{SessionID: sess.ID, Phase: sess.Phase, Reason: "session has ended"}
	}

	pat, err := o.store.LoadPatient(ctx, sess.PatientID)
	if err != nil {
		return TurnReply{}, &TransientError{Op: "load patient", Err: err}
	}

	// A session left in the analysis phase by an earlier persistence failure
	// resumes here instead of wedging.
	if sess.Phase == session.PhaseAnalysis {
		answered, err := o.store.SessionResponses(ctx, sessionID)
		if err != nil {
			return TurnReply{}, &TransientError{Op: "load responses", Err: err}
		}
		assessment, err := o.analyze(ctx, pat, &sess, answered)
		if err != nil {
			return TurnReply{}, err
		}
		return TurnReply{
			SessionID: sess.ID,
			Phase:     sess.Phase,
			Reply:     completionMessage,
			Done:      true,
			Alert:     assessment.Alert,
		}, nil
	}

	tpl, ok := o.templates.FindByID(sess.TemplateID)
	if !ok {
		return TurnReply{}, o.quarantine(ctx, sess, fmt.Errorf("template %s missing", sess.TemplateID))
	}
	answered, err := o.store.SessionResponses(ctx, sessionID)
	if err != nil {
		return TurnReply{}, &TransientError{Op: "load responses", Err: err}
	}
	turns, err := o.store.SessionTurns(ctx, sessionID)
	if err != nil {
		return TurnReply{}, &TransientError{Op: "load turns", Err: err}
	}

	result, err := o.processor.process(ctx, &pat, &sess, &tpl, answered, turns, message)
	if err != nil {
		return TurnReply{}, err
	}
	if result.usedFallback {
		o.log.Warnw("model reply unavailable, used fallback", "session", sess.ID)
	}

	now := o.now()
	seq := len(turns)

	seq++
	if err := o.persist(ctx, "save patient turn", func(ctx context.Context) error {
		return o.store.AppendTurn(ctx, session.Turn{
			ID:         uuid.NewString(),
			SessionID:  sess.ID,
			Seq:        seq,
			Speaker:    session.SpeakerPatient,
			Text:       message,
			Emotion:    string(result.emotion.Label),
			Confidence: result.emotion.Confidence,
			CreatedAt:  now,
		})
	}); err != nil {
		return TurnReply{}, err
	}

	seq++
	if err := o.persist(ctx, "save agent turn", func(ctx context.Context) error {
		return o.store.AppendTurn(ctx, session.Turn{
			ID:        uuid.NewString(),
			SessionID: sess.ID,
			Seq:       seq,
			Speaker:   session.SpeakerAgent,
			Text:      result.reply,
			CreatedAt: now,
		})
	}); err != nil {
		return TurnReply{}, err
	}

	if result.response != nil {
		if err := o.persist(ctx, "save response", func(ctx context.Context) error {
			return o.store.AppendResponse(ctx, *result.response)
		}); err != nil {
			return TurnReply{}, err
		}
		answered = append(answered, *result.response)
	}

	sess.TurnCount++
	sess.RecordEmotion(string(result.emotion.Label), result.emotion.Confidence, now)
	sess.LastQuestionID = result.askedQuestionID
	sess.UpdatedAt = now
	if result.advanceTo != "" && result.advanceTo != sess.Phase {
		if !sess.Phase.CanAdvanceTo(result.advanceTo) {
			return TurnReply{}, o.quarantine(ctx, sess, fmt.Errorf("illegal transition %s -> %s", sess.Phase, result.advanceTo))
		}
		sess.Phase = result.advanceTo
	}
	if err := o.persist(ctx, "save session", func(ctx context.Context) error {
		return o.store.SaveSession(ctx, sess)
	}); err != nil {
		return TurnReply{}, err
	}

	reply := TurnReply{
		SessionID: sess.ID,
		Phase:     sess.Phase,
		Reply:     result.reply,
		Emotion:   string(result.emotion.Label),
	}

	if sess.Phase == session.PhaseAnalysis {
		assessment, err := o.analyze(ctx, pat, &sess, answered)
		if err != nil {
			return TurnReply{}, err
		}
		reply.Phase = sess.Phase
		reply.Done = true
		reply.Alert = assessment.Alert
	}

	return reply, nil
}

// analyze runs the trend engine, completes the session and dispatches
// notifications. Analysis is synchronous so the assessment is ready the
// moment the session completes; only notification delivery is asynchronous.
func (o *Orchestrator) analyze(ctx context.Context, pat patient.Patient, sess *session.Session, current []pro.Response) (risk.Assessment, error) {
	history, err := o.store.PatientHistory(ctx, pat.ID, sess.ID)
	if err != nil {
		return risk.Assessment{}, &TransientError{Op: "load patient history", Err: err}
	}

	now := o.now()
	assessment := o.engine.Analyze(pat.ID, sess.ID, history, current, now)
	alerts := o.engine.Alerts(assessment, now)

	if err := o.persist(ctx, "save assessment", func(ctx context.Context) error {
		return o.store.SaveAssessment(ctx, assessment)
	}); err != nil {
		return risk.Assessment{}, err
	}
	for _, alert := range alerts {
		if err := o.persist(ctx, "save alert", func(ctx context.Context) error {
			return o.store.SaveAlert(ctx, alert)
		}); err != nil {
			return risk.Assessment{}, err
		}
	}

	sess.Phase = session.PhaseComplete
	sess.UpdatedAt = now
	if err := o.persist(ctx, "save session", func(ctx context.Context) error {
		return o.store.SaveSession(ctx, *sess)
	}); err != nil {
		return risk.Assessment{}, err
	}

	o.audit(ctx, pat.ID, sess.ID, "session_completed", fmt.Sprintf("score %.2f alert %t", assessment.Score, assessment.Alert))
	o.log.Infow("session completed", "session", sess.ID, "patient", pat.ID, "score", assessment.Score, "alert", assessment.Alert)

	if len(o.notifiers) > 0 && assessment.Alert {
		go o.dispatch(pat, assessment, alerts, current)
	}

	return assessment, nil
}

// dispatch delivers alert notifications with a fresh context; the patient's
// request must not wait on external channels.
func (o *Orchestrator) dispatch(pat patient.Patient, assessment risk.Assessment, alerts []risk.Alert, responses []pro.Response) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, n := range o.notifiers {
		if err := n.Notify(ctx, pat, assessment, alerts, responses); err != nil {
			o.log.Errorw("notification failed", "patient", pat.ID, "error", err)
		}
	}
}

// Cancel aborts an active session. Cancelling an already aborted session is
// a no-op; a completed session cannot be cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return &ValidationError{Field: "sessionId", Reason: "required"}
	}

	release := o.locks.acquire(sessionID)
	defer release()

	sess, err := o.store.LoadSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err != nil {
		return &TransientError{Op: "load session", Err: err}
	}
	if sess.Phase == session.PhaseAborted {
		return nil
	}
	if sess.Phase == session.PhaseComplete {
		return &StateError{SessionID: sess.ID, Phase: sess.Phase, Reason: "completed session cannot be cancelled"}
	}

	sess.Phase = session.PhaseAborted
	sess.UpdatedAt = o.now()
	if err := o.persist(ctx, "save session", func(ctx context.Context) error {
		return o.store.SaveSession(ctx, sess)
	}); err != nil {
		return err
	}

	o.audit(ctx, sess.PatientID, sess.ID, "session_cancelled", "")
	o.log.Infow("session cancelled", "session", sess.ID, "patient", sess.PatientID)
	return nil
}

// Assessment returns the risk assessment for a completed session.
func (o *Orchestrator) Assessment(ctx context.Context, sessionID string) (risk.Assessment, error) {
	sess, err := o.store.LoadSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return risk.Assessment{}, err
	}
	if err != nil {
		return risk.Assessment{}, &TransientError{Op: "load session", Err: err}
	}
	if sess.Phase != session.PhaseComplete {
		return risk.Assessment{}, &StateError{SessionID: sess.ID, Phase: sess.Phase, Reason: "assessment is only available after completion"}
	}

	assessment, err := o.store.AssessmentBySession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return risk.Assessment{}, err
	}
	if err != nil {
		return risk.Assessment{}, &TransientError{Op: "load assessment", Err: err}
	}
	return assessment, nil
}

// Alerts lists a patient's alerts, newest first.
func (o *Orchestrator) Alerts(ctx context.Context, patientID string) ([]risk.Alert, error) {
	if patientID == "" {
		return nil, &ValidationError{Field: "patientId", Reason: "required"}
	}
	alerts, err := o.store.AlertsForPatient(ctx, patientID)
	if err != nil {
		return nil, &TransientError{Op: "list alerts", Err: err}
	}
	return alerts, nil
}

// History lists every PRO response recorded for a patient, oldest session
// first.
func (o *Orchestrator) History(ctx context.Context, patientID string) ([]pro.Response, error) {
	if patientID == "" {
		return nil, &ValidationError{Field: "patientId", Reason: "required"}
	}
	if _, err := o.store.LoadPatient(ctx, patientID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, &TransientError{Op: "load patient", Err: err}
	}
	history, err := o.store.PatientHistory(ctx, patientID, "")
	if err != nil {
		return nil, &TransientError{Op: "load patient history", Err: err}
	}
	return history, nil
}

// quarantine aborts a session whose stored state failed invariant checks and
// reports the corruption.
func (o *Orchestrator) quarantine(ctx context.Context, sess session.Session, cause error) error {
	o.log.Errorw("session state corrupted", "session", sess.ID, "error", cause)

	if !sess.Phase.Terminal() {
		sess.Phase = session.PhaseAborted
		sess.UpdatedAt = o.now()
		if err := o.store.SaveSession(ctx, sess); err != nil {
			o.log.Errorw("failed to abort corrupted session", "session", sess.ID, "error", err)
		}
		o.audit(ctx, sess.PatientID, sess.ID, "session_quarantined", cause.Error())
	}

	return &CorruptionError{SessionID: sess.ID, Reason: cause.Error()}
}

// persist runs a storage operation under the persistence timeout, retrying
// once after a short backoff before giving up as transient.
func (o *Orchestrator) persist(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	const backoff = 100 * time.Millisecond

	attempt := func() error {
		opCtx, cancel := context.WithTimeout(ctx, o.persistTimeout)
		defer cancel()
		return fn(opCtx)
	}

	err := attempt()
	if err == nil {
		return nil
	}
	o.log.Warnw("persistence failed, retrying", "op", op, "error", err)

	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return &TransientError{Op: op, Err: ctx.Err()}
	}

	if err := attempt(); err != nil {
		return &TransientError{Op: op, Err: err}
	}
	return nil
}

// audit records an orchestration event; audit failures are logged, never
// surfaced to the patient.
func (o *Orchestrator) audit(ctx context.Context, patientID, sessionID, action, detail string) {
	entry := storage.AuditEntry{
		ID:        uuid.NewString(),
		PatientID: patientID,
		SessionID: sessionID,
		Action:    action,
		Detail:    detail,
		CreatedAt: o.now(),
	}
	if err := o.store.AppendAudit(ctx, entry); err != nil {
		o.log.Warnw("audit append failed", "action", action, "error", err)
	}
}
