package ai

import (
	"strings"
	"testing"

	"github.com/lumenhealth/checkin/backend/internal/analysis/emotion"
	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/session"
)

func TestFallbackMatchesEmotion(t *testing.T) {
	p := &patient.Patient{FullName: "Maria Gonzalez"}

	anxious := Fallback(Request{Patient: p, Emotion: emotion.Result{Label: emotion.Anxious, Confidence: 0.8}})
	if !strings.HasPrefix(anxious, "Maria, ") {
		t.Errorf("fallback should address the patient by first name: %q", anxious)
	}
	if !strings.Contains(anxious, "understandable") {
		t.Errorf("anxious fallback = %q", anxious)
	}

	neutral := Fallback(Request{Emotion: emotion.Result{Label: emotion.Neutral}})
	if strings.Contains(neutral, ", ") && strings.HasPrefix(neutral, "Maria") {
		t.Errorf("no name expected without a patient: %q", neutral)
	}

	// Same input, same output.
	if again := Fallback(Request{Patient: p, Emotion: emotion.Result{Label: emotion.Anxious, Confidence: 0.8}}); again != anxious {
		t.Errorf("fallback not deterministic: %q vs %q", again, anxious)
	}
}

func TestFallbackKeepsPronounCapitalized(t *testing.T) {
	p := &patient.Patient{FullName: "Maria Gonzalez"}

	sad := Fallback(Request{Patient: p, Emotion: emotion.Result{Label: emotion.Sad, Confidence: 0.8}})
	if !strings.HasPrefix(sad, "Maria, I'm") {
		t.Errorf("name prefix must not lowercase the pronoun I: %q", sad)
	}

	// Other sentence openers still lose their capital after the name.
	calm := Fallback(Request{Patient: p, Emotion: emotion.Result{Label: emotion.Calm}})
	if !strings.HasPrefix(calm, "Maria, thanks") {
		t.Errorf("calm fallback = %q", calm)
	}
}

func TestGreeting(t *testing.T) {
	if got := Greeting(nil); !strings.Contains(got, "check-in") {
		t.Errorf("greeting = %q", got)
	}
	got := Greeting(&patient.Patient{FullName: "James Lee"})
	if !strings.Contains(got, "James") {
		t.Errorf("greeting should use the first name: %q", got)
	}
}

func TestBuildSystemPromptIncludesGuidance(t *testing.T) {
	req := Request{
		Patient: &patient.Patient{FullName: "Maria Gonzalez", Conditions: []string{"rheumatoid arthritis"}},
		Emotion: emotion.Result{Label: emotion.Sad, Confidence: 0.7},
	}
	prompt := buildSystemPrompt(req)

	if !strings.Contains(prompt, "Maria Gonzalez") {
		t.Error("prompt missing patient name")
	}
	if !strings.Contains(prompt, "rheumatoid arthritis") {
		t.Error("prompt missing condition")
	}
	if !strings.Contains(prompt, "sounds low") {
		t.Error("prompt missing tone guidance")
	}

	// Low-confidence reads carry no tone guidance.
	req.Emotion.Confidence = 0.3
	if strings.Contains(buildSystemPrompt(req), "Tone guidance") {
		t.Error("guidance should be dropped below confidence 0.5")
	}
}

func TestBuildHistoryMessagesLimitsWindow(t *testing.T) {
	turns := make([]session.Turn, 0, 14)
	for i := 0; i < 14; i++ {
		speaker := session.SpeakerPatient
		if i%2 == 1 {
			speaker = session.SpeakerAgent
		}
		turns = append(turns, session.Turn{Speaker: speaker, Text: "t"})
	}

	if got := buildHistoryMessages(turns); len(got) != 10 {
		t.Errorf("history length = %d, want 10", len(got))
	}
	if got := buildHistoryMessages(nil); got != nil {
		t.Errorf("expected nil history, got %v", got)
	}
}
