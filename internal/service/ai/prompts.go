package ai

import (
	"fmt"
	"strings"

	"github.com/lumenhealth/checkin/backend/internal/analysis/emotion"
	"github.com/lumenhealth/checkin/backend/internal/model/patient"
)

const systemPromptBase = `You are a warm, concise health check-in companion for patients managing a chronic condition.
Your job is to acknowledge what the patient shares, in one or two short sentences, before the structured questions continue.
Never give medical advice, never diagnose, and never promise outcomes. If the patient describes an emergency, tell them to contact their care team or emergency services.
Stay factual about what the patient said; do not invent symptoms they did not mention.`

func buildSystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)

	if req.Patient != nil {
		fmt.Fprintf(&b, "\n\nThe patient's name is %s.", req.Patient.FullName)
		if tag := req.Patient.ConditionTag(); tag != "general" {
			fmt.Fprintf(&b, " They are managing %s.", tag)
		}
		if req.Patient.Language != "" && req.Patient.Language != "en" {
			fmt.Fprintf(&b, " Reply in the language with code %q.", req.Patient.Language)
		}
	}

	if guidance := emotionGuidance[req.Emotion.Label]; guidance != "" && req.Emotion.Confidence >= 0.5 {
		b.WriteString("\n\nTone guidance: ")
		b.WriteString(guidance)
	}

	return b.String()
}

var emotionGuidance = map[emotion.Label]string{
	emotion.Anxious:    "The patient sounds anxious. Be reassuring and unhurried; keep sentences short.",
	emotion.Sad:        "The patient sounds low. Acknowledge the feeling gently before moving on.",
	emotion.Frustrated: "The patient sounds frustrated. Validate the frustration without being defensive.",
	emotion.Positive:   "The patient sounds upbeat. Match the energy briefly and keep momentum.",
	emotion.Calm:       "The patient sounds settled. Keep a neutral, friendly tone.",
}

// Fallback returns a deterministic templated acknowledgement, used whenever
// generation fails. Keyed on the detected emotion so the reply still fits
// the conversation.
func Fallback(req Request) string {
	name := ""
	if req.Patient != nil {
		name = firstName(req.Patient.FullName)
	}

	switch req.Emotion.Label {
	case emotion.Anxious:
		return withName(name, "That sounds worrying, and it's completely understandable to feel that way. Let's go through today's check-in together.")
	case emotion.Sad:
		return withName(name, "I'm sorry you're feeling low today. Thank you for telling me; let's take the check-in one step at a time.")
	case emotion.Frustrated:
		return withName(name, "That sounds really frustrating. Your care team will see what you've shared. Let's continue with a few questions.")
	case emotion.Positive:
		return withName(name, "That's great to hear. Let's run through today's questions.")
	default:
		return withName(name, "Thanks for sharing that. Let's go through today's check-in questions.")
	}
}

// Greeting opens a session without a model call.
func Greeting(p *patient.Patient) string {
	if p == nil || p.FullName == "" {
		return "Hello! It's time for your check-in today. How are you feeling?"
	}
	return fmt.Sprintf("Hello %s! It's time for your check-in today. How are you feeling?", firstName(p.FullName))
}

func withName(name, text string) string {
	if name == "" {
		return text
	}
	return name + ", " + lowerFirst(text)
}

func lowerFirst(text string) string {
	if text == "" {
		return text
	}
	// The pronoun "I" stays capitalized mid-sentence.
	if text[0] == 'I' && (len(text) == 1 || !isLetter(text[1])) {
		return text
	}
	return strings.ToLower(text[:1]) + text[1:]
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
