package emotion

import "strings"

// Label is a detected emotional state. The set is closed; callers never see
// anything outside these six values.
type Label string

const (
	Calm       Label = "calm"
	Anxious    Label = "anxious"
	Frustrated Label = "frustrated"
	Sad        Label = "sad"
	Positive   Label = "positive"
	Neutral    Label = "neutral"
)

// Result pairs a label with a confidence in [0,1].
type Result struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

var keywordBuckets = map[Label][]string{
	Positive: {
		"great", "good", "happy", "better", "improving", "wonderful", "fantastic",
		"well rested", "energetic", "optimistic", "glad", "relieved", "thank you",
	},
	Calm: {
		"okay", "fine", "alright", "not bad", "calm", "relaxed", "steady",
		"as usual", "managing", "comfortable", "stable",
	},
	Anxious: {
		"anxious", "worried", "nervous", "scared", "afraid", "panic", "on edge",
		"stressed", "stress", "overwhelmed", "can't stop thinking", "uneasy", "dread",
	},
	Frustrated: {
		"frustrated", "annoyed", "angry", "fed up", "sick of", "irritated",
		"furious", "hate", "ridiculous", "why does this keep", "had enough",
	},
	Sad: {
		"sad", "down", "depressed", "hopeless", "lonely", "crying", "cried",
		"miserable", "empty", "tearful", "grief", "heartbroken",
	},
}

// Soft cues nudge a bucket without being decisive on their own; "tired" alone
// reads calm-leaning, not distressed.
var softCues = map[Label][]string{
	Calm: {"tired", "a bit", "a little", "so-so"},
}

const keywordWeight = 3

// Classify maps a free-text utterance to an emotional state. It is a pure
// function of its input: any non-empty text yields a result, degenerate or
// ambiguous text yields Neutral with confidence no higher than 0.5. The
// optional history of prior labels smooths single-turn flapping: a tie
// between buckets resolves toward the most recent prior label.
func Classify(utterance string, history ...Label) Result {
	normalized := strings.ToLower(strings.TrimSpace(utterance))
	if normalized == "" {
		return Result{Label: Neutral, Confidence: 0}
	}

	scores := make(map[Label]int, len(keywordBuckets))
	for label, words := range keywordBuckets {
		for _, word := range words {
			if strings.Contains(normalized, word) {
				scores[label] += keywordWeight
			}
		}
	}
	for label, cues := range softCues {
		for _, cue := range cues {
			if strings.Contains(normalized, cue) {
				scores[label]++
			}
		}
	}

	if n := strings.Count(utterance, "!"); n > 0 {
		// Exclamation amplifies whatever is already being said rather than
		// introducing an emotion of its own.
		for label, s := range scores {
			if s >= keywordWeight {
				scores[label] += n
			}
		}
	}

	best, bestScore := Neutral, 0
	for _, label := range []Label{Positive, Calm, Anxious, Frustrated, Sad} {
		s := scores[label]
		if s > bestScore {
			best, bestScore = label, s
		} else if s == bestScore && s > 0 && recentLabel(history) == label {
			best = label
		}
	}

	if bestScore == 0 {
		return Result{Label: Neutral, Confidence: 0.4}
	}
	return Result{Label: best, Confidence: confidenceFor(bestScore)}
}

// confidenceFor maps a raw keyword score onto [0.5, 0.95].
func confidenceFor(score int) float64 {
	c := 0.5 + float64(score)*0.05
	if c > 0.95 {
		c = 0.95
	}
	return c
}

// Distressed reports whether the result should trigger gentler phrasing.
func (r Result) Distressed() bool {
	return (r.Label == Anxious || r.Label == Sad) && r.Confidence >= 0.6
}

func recentLabel(history []Label) Label {
	if len(history) == 0 {
		return Neutral
	}
	return history[len(history)-1]
}
