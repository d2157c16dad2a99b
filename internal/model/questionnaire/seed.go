package questionnaire

import "github.com/lumenhealth/checkin/backend/internal/model/pro"

func sev(v float64) *float64 { return &v }

// Seed provides the built-in general chronic-condition template used when no
// template directory is configured. Covers the tracked metric families:
// pain, fatigue, sleep, mood and medication adherence.
func Seed() []Template {
	return []Template{
		{
			ID:        "general-v1",
			Version:   1,
			Condition: "general",
			Questions: []Question{
				{
					ID:     "pain_level",
					Prompt: "How would you describe your pain today?",
					Simple: "How bad is your pain today?",
					Type:   pro.AnswerChoice,
					Options: []Option{
						{Value: "None", Severity: 0},
						{Value: "Mild", Severity: 1},
						{Value: "Moderate", Severity: 2},
						{Value: "Severe", Severity: 3},
					},
					Metric: "pain",
				},
				{
					ID:     "fatigue_level",
					Prompt: "How has your energy been? Would you say your fatigue is none, mild, moderate or severe?",
					Simple: "How tired are you: none, mild, moderate or severe?",
					Type:   pro.AnswerChoice,
					Options: []Option{
						{Value: "None", Severity: 0},
						{Value: "Mild", Severity: 1},
						{Value: "Moderate", Severity: 2},
						{Value: "Severe", Severity: 3},
					},
					Metric: "fatigue",
				},
				{
					ID:     "sleep_hours",
					Prompt: "Roughly how many hours did you sleep last night?",
					Simple: "How many hours did you sleep?",
					Type:   pro.AnswerFreeText,
					Metric: "sleep",
				},
				{
					ID:     "mood_today",
					Prompt: "How would you rate your mood today?",
					Type:   pro.AnswerChoice,
					Options: []Option{
						{Value: "Good", Severity: 0},
						{Value: "Fair", Severity: 1},
						{Value: "Low", Severity: 2},
						{Value: "Very low", Severity: 3},
					},
					Metric: "mood",
				},
				{
					ID:     "medication_issues",
					Prompt: "Have you had any trouble taking your medication as prescribed?",
					Simple: "Any trouble with your medication?",
					Type:   pro.AnswerChoice,
					Options: []Option{
						{Value: "No", Severity: 0},
						{Value: "Sometimes", Severity: 1.5},
						{Value: "Often", Severity: 3},
					},
					Metric: "medication",
				},
			},
			FollowUps: []FollowUp{
				{
					Question: Question{
						ID:     "pain_location",
						Prompt: "I'm sorry to hear that. Where is the pain located?",
						Type:   pro.AnswerFreeText,
						Metric: "pain",
					},
					When:     Trigger{QuestionID: "pain_level", MinSeverity: sev(2)},
					Priority: 1,
				},
				{
					Question: Question{
						ID:     "pain_interference",
						Prompt: "Has the pain stopped you doing everyday activities?",
						Type:   pro.AnswerChoice,
						Options: []Option{
							{Value: "No", Severity: 0},
							{Value: "A little", Severity: 1},
							{Value: "A lot", Severity: 3},
						},
						Metric: "pain",
					},
					When:     Trigger{QuestionID: "pain_level", Equals: "Severe"},
					Priority: 2,
				},
				{
					Question: Question{
						ID:     "sleep_disruption",
						Prompt: "What kept you from sleeping well?",
						Type:   pro.AnswerFreeText,
						Metric: "sleep",
					},
					When:     Trigger{QuestionID: "fatigue_level", MinSeverity: sev(2)},
					Priority: 3,
				},
			},
		},
	}
}
