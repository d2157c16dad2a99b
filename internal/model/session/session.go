package session

import (
	"fmt"
	"time"
)

// Phase names a stage of the check-in state machine.
type Phase string

const (
	PhaseInit          Phase = "init"
	PhaseCompanion     Phase = "companion"
	PhaseQuestionnaire Phase = "questionnaire"
	PhaseAnalysis      Phase = "analysis"
	PhaseComplete      Phase = "complete"
	PhaseAborted       Phase = "aborted"
)

// order positions each phase on the forward-only progression. Aborted sits
// outside the progression and is reachable from anywhere.
var order = map[Phase]int{
	PhaseInit:          0,
	PhaseCompanion:     1,
	PhaseQuestionnaire: 2,
	PhaseAnalysis:      3,
	PhaseComplete:      4,
}

// Known reports whether p is a valid phase value.
func (p Phase) Known() bool {
	_, ok := order[p]
	return ok || p == PhaseAborted
}

// Terminal reports whether no further patient input is accepted.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseAborted
}

// CanAdvanceTo reports whether next is a legal transition from p. Phases move
// strictly forward one step at a time; Aborted is always reachable.
func (p Phase) CanAdvanceTo(next Phase) bool {
	if next == PhaseAborted {
		return !p.Terminal()
	}
	from, ok := order[p]
	to, ok2 := order[next]
	return ok && ok2 && to == from+1
}

// EmotionSnapshot records one classified emotional state within a session.
type EmotionSnapshot struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// Session captures one check-in conversation for a patient. At most one
// session is active per patient; completed sessions are immutable.
type Session struct {
	ID             string            `json:"id"`
	PatientID      string            `json:"patientId"`
	TemplateID     string            `json:"templateId"`
	Phase          Phase             `json:"phase"`
	TurnCount      int               `json:"turnCount"`
	EmotionHistory []EmotionSnapshot `json:"emotionHistory,omitempty"`
	LastQuestionID string            `json:"lastQuestionId,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// CurrentEmotion returns the most recent emotional state, or a neutral
// zero-confidence snapshot when nothing has been classified yet.
func (s *Session) CurrentEmotion() EmotionSnapshot {
	if len(s.EmotionHistory) == 0 {
		return EmotionSnapshot{Label: "neutral"}
	}
	return s.EmotionHistory[len(s.EmotionHistory)-1]
}

// RecordEmotion appends a snapshot to the emotional-state history.
func (s *Session) RecordEmotion(label string, confidence float64, at time.Time) {
	s.EmotionHistory = append(s.EmotionHistory, EmotionSnapshot{
		Label:      label,
		Confidence: confidence,
		At:         at,
	})
}

// Validate checks the invariants a stored session must satisfy. A session
// failing these checks is considered corrupted and must be aborted.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session has no id")
	}
	if s.PatientID == "" {
		return fmt.Errorf("session %s has no patient id", s.ID)
	}
	if !s.Phase.Known() {
		return fmt.Errorf("session %s has unknown phase %q", s.ID, s.Phase)
	}
	if s.TurnCount < 0 {
		return fmt.Errorf("session %s has negative turn count", s.ID)
	}
	return nil
}

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerPatient Speaker = "patient"
	SpeakerAgent   Speaker = "agent"
)

// Turn persists a single utterance for audit and trend context. Turns are
// append-only and belong to exactly one session.
type Turn struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Seq        int       `json:"seq"`
	Speaker    Speaker   `json:"speaker"`
	Text       string    `json:"text"`
	Emotion    string    `json:"emotion,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
