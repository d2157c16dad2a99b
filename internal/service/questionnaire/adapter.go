package questionnaire

import (
	"sort"
	"strings"

	"github.com/lumenhealth/checkin/backend/internal/analysis/emotion"
	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/questionnaire"
)

// Next is the adapter's decision for the upcoming turn.
type Next struct {
	// Question is the question to ask; nil when the questionnaire is done.
	Question *questionnaire.Question
	// Prompt is the phrasing to use, possibly the simpler variant.
	Prompt string
	// Done reports that no further question will be asked this session,
	// either because the sequence is exhausted or the budget is spent.
	Done bool
}

// Adapter selects the next question from a template given everything answered
// so far. It keeps no per-session state: the decision is recomputed from the
// recorded responses each turn, so identical responses always produce the
// identical next question.
type Adapter struct {
	maxQuestions int
}

// NewAdapter caps the number of questions per session, follow-ups included.
func NewAdapter(maxQuestions int) *Adapter {
	if maxQuestions < 1 {
		maxQuestions = 1
	}
	return &Adapter{maxQuestions: maxQuestions}
}

// NextQuestion returns the question for the upcoming turn. mood selects
// between the base phrasing and the simpler variant for distressed patients.
func (a *Adapter) NextQuestion(tpl *questionnaire.Template, answered []pro.Response, mood emotion.Result) Next {
	if len(answered) >= a.maxQuestions {
		return Next{Done: true}
	}

	byQuestion := make(map[string]pro.Response, len(answered))
	for _, r := range answered {
		byQuestion[r.QuestionID] = r
	}

	if q, ok := a.pendingFollowUp(tpl, byQuestion); ok {
		return Next{Question: &q, Prompt: q.PromptFor(mood.Distressed())}
	}

	for _, q := range tpl.Questions {
		if _, done := byQuestion[q.ID]; done {
			continue
		}
		q := q
		return Next{Question: &q, Prompt: q.PromptFor(mood.Distressed())}
	}

	return Next{Done: true}
}

// pendingFollowUp returns the highest-priority unlocked, unanswered follow-up.
// Ties on priority resolve by declaration order.
func (a *Adapter) pendingFollowUp(tpl *questionnaire.Template, byQuestion map[string]pro.Response) (questionnaire.Question, bool) {
	type candidate struct {
		question questionnaire.Question
		priority int
		index    int
	}

	var candidates []candidate
	for i, f := range tpl.FollowUps {
		if _, done := byQuestion[f.Question.ID]; done {
			continue
		}
		trigger, answered := byQuestion[f.When.QuestionID]
		if !answered || !triggerMatches(f.When, trigger) {
			continue
		}
		candidates = append(candidates, candidate{question: f.Question, priority: f.Priority, index: i})
	}
	if len(candidates) == 0 {
		return questionnaire.Question{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].index < candidates[j].index
	})
	return candidates[0].question, true
}

func triggerMatches(when questionnaire.Trigger, response pro.Response) bool {
	if when.Equals != "" && strings.EqualFold(response.Answer.Text(), when.Equals) {
		return true
	}
	if when.MinSeverity != nil {
		if severity, ok := response.SeverityValue(); ok && severity >= *when.MinSeverity {
			return true
		}
	}
	return false
}
