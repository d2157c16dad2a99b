package pro

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AnswerKind discriminates the tagged-union answer payload.
type AnswerKind string

const (
	AnswerFreeText AnswerKind = "free_text"
	AnswerChoice   AnswerKind = "choice"
)

// Answer is either free text or one option from an enumerated set. The kind
// is validated against the question's declared answer type at ingestion.
type Answer struct {
	Kind     AnswerKind `json:"kind"`
	FreeText string     `json:"freeText,omitempty"`
	Choice   string     `json:"choice,omitempty"`
}

// FreeText builds a free-text answer.
func FreeTextAnswer(text string) Answer {
	return Answer{Kind: AnswerFreeText, FreeText: text}
}

// ChoiceAnswer builds a single-choice answer.
func ChoiceAnswer(option string) Answer {
	return Answer{Kind: AnswerChoice, Choice: option}
}

// Text returns the raw answer text regardless of kind.
func (a Answer) Text() string {
	if a.Kind == AnswerChoice {
		return a.Choice
	}
	return a.FreeText
}

// Numeric extracts a leading numeric value from a free-text answer, e.g.
// "7 hours" -> 7. Used to derive severity for numeric metric families.
func (a Answer) Numeric() (float64, bool) {
	fields := strings.Fields(strings.TrimSpace(a.Text()))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "h"), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Response is one structured Patient Reported Outcome, appended once per
// answered question and immutable thereafter.
type Response struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	QuestionID string    `json:"questionId"`
	Metric     string    `json:"metric,omitempty"`
	Answer     Answer    `json:"answer"`
	Severity   *float64  `json:"severity,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SeverityValue returns the derived severity and whether one applies.
func (r Response) SeverityValue() (float64, bool) {
	if r.Severity == nil {
		return 0, false
	}
	return *r.Severity, true
}

// MarshalValue serializes the answer union for storage.
func (r Response) MarshalValue() ([]byte, error) {
	b, err := json.Marshal(r.Answer)
	if err != nil {
		return nil, fmt.Errorf("marshal answer for question %s: %w", r.QuestionID, err)
	}
	return b, nil
}
