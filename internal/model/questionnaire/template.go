package questionnaire

import (
	"fmt"
	"strings"

	"github.com/lumenhealth/checkin/backend/internal/model/pro"
)

// Option is one selectable answer for a single-choice question. Severity
// positions the option on the 0-3 none/mild/moderate/severe scale.
type Option struct {
	Value    string  `yaml:"value" json:"value"`
	Severity float64 `yaml:"severity" json:"severity"`
}

// Question defines one questionnaire prompt. Simple, when present, is a
// shorter variant preferred for distressed patients. Metric tags the metric
// family the answer feeds (e.g. "pain", "sleep").
type Question struct {
	ID      string         `yaml:"id" json:"id"`
	Prompt  string         `yaml:"prompt" json:"prompt"`
	Simple  string         `yaml:"simple,omitempty" json:"simple,omitempty"`
	Type    pro.AnswerKind `yaml:"type" json:"type"`
	Options []Option       `yaml:"options,omitempty" json:"options,omitempty"`
	Metric  string         `yaml:"metric,omitempty" json:"metric,omitempty"`
}

// OptionFor matches a raw answer against the option set, case-insensitively.
func (q Question) OptionFor(value string) (Option, bool) {
	for _, opt := range q.Options {
		if strings.EqualFold(opt.Value, value) {
			return opt, true
		}
	}
	return Option{}, false
}

// PromptFor returns the variant to ask given whether a simpler phrasing is
// preferred. Substitution is best effort: without a Simple variant the base
// prompt is used unchanged.
func (q Question) PromptFor(preferSimple bool) string {
	if preferSimple && q.Simple != "" {
		return q.Simple
	}
	return q.Prompt
}

// Trigger describes when a follow-up unlocks: the named question was answered
// with Equals, or with any option at or above MinSeverity.
type Trigger struct {
	QuestionID  string   `yaml:"question" json:"question"`
	Equals      string   `yaml:"equals,omitempty" json:"equals,omitempty"`
	MinSeverity *float64 `yaml:"minSeverity,omitempty" json:"minSeverity,omitempty"`
}

// FollowUp is a conditional question inserted ahead of the remaining base
// sequence once its trigger matches. Lower priority numbers are asked first;
// equal priority falls back to declaration order.
type FollowUp struct {
	Question Question `yaml:"question" json:"question"`
	When     Trigger  `yaml:"when" json:"when"`
	Priority int      `yaml:"priority" json:"priority"`
}

// Template is an immutable, versioned questionnaire definition loaded once at
// startup and selected by patient condition tag.
type Template struct {
	ID        string     `yaml:"id" json:"id"`
	Version   int        `yaml:"version" json:"version"`
	Condition string     `yaml:"condition" json:"condition"`
	Questions []Question `yaml:"questions" json:"questions"`
	FollowUps []FollowUp `yaml:"followups,omitempty" json:"followups,omitempty"`
}

// QuestionByID looks up a question in the base sequence or the follow-ups.
func (t *Template) QuestionByID(id string) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	for _, f := range t.FollowUps {
		if f.Question.ID == id {
			return f.Question, true
		}
	}
	return Question{}, false
}

// Validate rejects templates that could not be asked coherently.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template has no id")
	}
	if len(t.Questions) == 0 {
		return fmt.Errorf("template %s has no questions", t.ID)
	}
	seen := make(map[string]bool, len(t.Questions)+len(t.FollowUps))
	for _, q := range t.Questions {
		if err := validateQuestion(t.ID, q); err != nil {
			return err
		}
		if seen[q.ID] {
			return fmt.Errorf("template %s: duplicate question id %q", t.ID, q.ID)
		}
		seen[q.ID] = true
	}
	for _, f := range t.FollowUps {
		if err := validateQuestion(t.ID, f.Question); err != nil {
			return err
		}
		if seen[f.Question.ID] {
			return fmt.Errorf("template %s: duplicate question id %q", t.ID, f.Question.ID)
		}
		seen[f.Question.ID] = true
		if f.When.QuestionID == "" {
			return fmt.Errorf("template %s: follow-up %s has no trigger question", t.ID, f.Question.ID)
		}
		if f.When.Equals == "" && f.When.MinSeverity == nil {
			return fmt.Errorf("template %s: follow-up %s has an empty trigger", t.ID, f.Question.ID)
		}
	}
	return nil
}

func validateQuestion(templateID string, q Question) error {
	if q.ID == "" || q.Prompt == "" {
		return fmt.Errorf("template %s: question missing id or prompt", templateID)
	}
	switch q.Type {
	case pro.AnswerFreeText:
		if len(q.Options) > 0 {
			return fmt.Errorf("template %s: free-text question %s declares options", templateID, q.ID)
		}
	case pro.AnswerChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("template %s: choice question %s needs at least two options", templateID, q.ID)
		}
	default:
		return fmt.Errorf("template %s: question %s has unknown type %q", templateID, q.ID, q.Type)
	}
	return nil
}
