package emotion

import "testing"

func TestClassifyBuckets(t *testing.T) {
	cases := []struct {
		name      string
		utterance string
		want      Label
	}{
		{"calm check-in", "I'm okay, a bit tired.", Calm},
		{"anxious", "I've been really worried about the test results", Anxious},
		{"sad", "Honestly I've felt pretty hopeless this week", Sad},
		{"frustrated", "I'm fed up with these side effects", Frustrated},
		{"positive", "Feeling great today, slept really well!", Positive},
		{"plain answer", "Severe", Neutral},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.utterance)
			if got.Label != tc.want {
				t.Fatalf("Classify(%q) = %s (%.2f), want %s", tc.utterance, got.Label, got.Confidence, tc.want)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Fatalf("confidence %f outside [0,1]", got.Confidence)
			}
		})
	}
}

func TestClassifyDegenerateTextIsNeutralLowConfidence(t *testing.T) {
	for _, utterance := range []string{"...", "asdf qwerty", "42", "hm"} {
		got := Classify(utterance)
		if got.Label != Neutral {
			t.Fatalf("Classify(%q) = %s, want neutral", utterance, got.Label)
		}
		if got.Confidence > 0.5 {
			t.Fatalf("Classify(%q) confidence %f, want <= 0.5", utterance, got.Confidence)
		}
	}
}

func TestClassifyIsPure(t *testing.T) {
	const utterance = "I'm worried and I barely slept"
	first := Classify(utterance)
	for i := 0; i < 5; i++ {
		if got := Classify(utterance); got != first {
			t.Fatalf("Classify not deterministic: %v then %v", first, got)
		}
	}
}

func TestClassifyHistorySmoothsTies(t *testing.T) {
	// "down" scores Sad; a calm-only history must not override a clear signal.
	got := Classify("feeling down again", Calm, Calm)
	if got.Label != Sad {
		t.Fatalf("history overrode a decisive signal: got %s", got.Label)
	}
}

func TestDistressed(t *testing.T) {
	if !(Result{Label: Anxious, Confidence: 0.7}).Distressed() {
		t.Fatal("anxious at 0.7 should be distressed")
	}
	if (Result{Label: Anxious, Confidence: 0.5}).Distressed() {
		t.Fatal("low-confidence anxious should not be distressed")
	}
	if (Result{Label: Frustrated, Confidence: 0.9}).Distressed() {
		t.Fatal("frustrated is not a distressed label")
	}
}
