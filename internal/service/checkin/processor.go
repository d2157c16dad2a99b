package checkin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhealth/checkin/backend/internal/analysis/emotion"
	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/questionnaire"
	"github.com/lumenhealth/checkin/backend/internal/model/session"
	"github.com/lumenhealth/checkin/backend/internal/service/ai"
	questionnaireservice "github.com/lumenhealth/checkin/backend/internal/service/questionnaire"
)

// completionMessage closes the questionnaire before analysis runs.
const completionMessage = "Thank you, that's everything for today. I'll pass your answers to your care team."

// turnResult is everything one processed patient message produces.
type turnResult struct {
	reply           string
	emotion         emotion.Result
	response        *pro.Response
	askedQuestionID string
	advanceTo       session.Phase
	usedFallback    bool
}

// turnProcessor handles the conversational phases: the companion warm-up and
// the structured questionnaire. It is stateless; all session state arrives
// as arguments and leaves in the result.
type turnProcessor struct {
	generator ai.Generator
	adapter   *questionnaireservice.Adapter
	now       func() time.Time
}

func (p *turnProcessor) process(ctx context.Context, pat *patient.Patient, sess *session.Session, tpl *questionnaire.Template, answered []pro.Response, history []session.Turn, message string) (turnResult, error) {
	switch sess.Phase {
	case session.PhaseInit, session.PhaseCompanion:
		return p.companionTurn(ctx, pat, sess, tpl, history, message)
	case session.PhaseQuestionnaire:
		return p.questionnaireTurn(sess, tpl, answered, message)
	default:
		return turnResult{}, &StateError{SessionID: sess.ID, Phase: sess.Phase, Reason: "no patient input expected"}
	}
}

// companionTurn acknowledges the patient's opening message and, once a
// substantive reply arrives, hands over to the questionnaire with its first
// question.
func (p *turnProcessor) companionTurn(ctx context.Context, pat *patient.Patient, sess *session.Session, tpl *questionnaire.Template, history []session.Turn, message string) (turnResult, error) {
	mood := emotion.Classify(message, emotionLabels(sess)...)
	result := turnResult{emotion: mood}

	if isGreetingOnly(message) {
		result.reply = "Hello! How are you feeling today?"
		if sess.Phase == session.PhaseInit {
			result.advanceTo = session.PhaseCompanion
		}
		return result, nil
	}

	ack, usedFallback := p.acknowledge(ctx, pat, mood, history, message)
	result.usedFallback = usedFallback

	next := p.adapter.NextQuestion(tpl, nil, mood)
	if next.Done {
		result.reply = ack
		result.advanceTo = session.PhaseQuestionnaire
		return result, nil
	}

	result.reply = ack + "\n\n" + next.Prompt
	result.askedQuestionID = next.Question.ID
	result.advanceTo = session.PhaseQuestionnaire
	return result, nil
}

// acknowledge asks the model for an empathetic reply. Any failure falls back
// to the templated acknowledgement without a retry; a slow or unavailable
// model must not stall the check-in.
func (p *turnProcessor) acknowledge(ctx context.Context, pat *patient.Patient, mood emotion.Result, history []session.Turn, message string) (string, bool) {
	req := ai.Request{Patient: pat, Emotion: mood, History: history, UserMessage: message}
	if p.generator == nil {
		return ai.Fallback(req), true
	}
	reply, err := p.generator.Generate(ctx, req)
	if err != nil {
		return ai.Fallback(req), true
	}
	return reply, false
}

// questionnaireTurn records the answer to the pending question and selects
// the next one.
func (p *turnProcessor) questionnaireTurn(sess *session.Session, tpl *questionnaire.Template, answered []pro.Response, message string) (turnResult, error) {
	pendingID := sess.LastQuestionID
	if pendingID == "" {
		return turnResult{}, &CorruptionError{SessionID: sess.ID, Reason: "questionnaire phase with no pending question"}
	}
	question, ok := tpl.QuestionByID(pendingID)
	if !ok {
		return turnResult{}, &CorruptionError{SessionID: sess.ID, Reason: fmt.Sprintf("pending question %q not in template %s", pendingID, tpl.ID)}
	}

	mood := emotion.Classify(message, emotionLabels(sess)...)
	result := turnResult{emotion: mood}

	response, err := buildResponse(sess.ID, question, message, p.now())
	if err != nil {
		return turnResult{}, err
	}
	result.response = &response

	next := p.adapter.NextQuestion(tpl, append(answered, response), mood)
	if next.Done {
		result.reply = completionMessage
		result.advanceTo = session.PhaseAnalysis
		return result, nil
	}

	result.reply = next.Prompt
	result.askedQuestionID = next.Question.ID
	return result, nil
}

// buildResponse validates the raw answer against the question's declared
// type and derives the severity value.
func buildResponse(sessionID string, question questionnaire.Question, raw string, now time.Time) (pro.Response, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return pro.Response{}, &ValidationError{Field: question.ID, Reason: "answer is empty"}
	}

	response := pro.Response{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		QuestionID: question.ID,
		Metric:     question.Metric,
		CreatedAt:  now,
	}

	switch question.Type {
	case pro.AnswerChoice:
		option, ok := question.OptionFor(text)
		if !ok {
			return pro.Response{}, &ValidationError{
				Field:  question.ID,
				Reason: fmt.Sprintf("answer %q is not one of: %s", text, optionList(question)),
			}
		}
		response.Answer = pro.ChoiceAnswer(option.Value)
		severity := option.Severity
		response.Severity = &severity
	case pro.AnswerFreeText:
		response.Answer = pro.FreeTextAnswer(text)
		if value, ok := response.Answer.Numeric(); ok {
			response.Severity = &value
		}
	default:
		return pro.Response{}, &ValidationError{Field: question.ID, Reason: fmt.Sprintf("unknown answer type %q", question.Type)}
	}

	return response, nil
}

func optionList(question questionnaire.Question) string {
	values := make([]string, len(question.Options))
	for i, opt := range question.Options {
		values[i] = opt.Value
	}
	return strings.Join(values, ", ")
}

func emotionLabels(sess *session.Session) []emotion.Label {
	if len(sess.EmotionHistory) == 0 {
		return nil
	}
	labels := make([]emotion.Label, len(sess.EmotionHistory))
	for i, snap := range sess.EmotionHistory {
		labels[i] = emotion.Label(snap.Label)
	}
	return labels
}

// greetings are openings that carry no health content; the companion keeps
// its question open until something substantive arrives.
var greetings = map[string]bool{
	"hi":             true,
	"hello":          true,
	"hey":            true,
	"hiya":           true,
	"hi there":       true,
	"hey there":      true,
	"good morning":   true,
	"good afternoon": true,
	"good evening":   true,
	"morning":        true,
	"evening":        true,
}

func isGreetingOnly(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = strings.TrimRight(normalized, "!.,? ")
	return greetings[normalized]
}
