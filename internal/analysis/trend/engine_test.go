package trend

import (
	"math"
	"testing"
	"time"

	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/risk"
)

func resp(sessionID, metric string, severity float64) pro.Response {
	return pro.Response{
		ID:        sessionID + "-" + metric,
		SessionID: sessionID,
		Metric:    metric,
		Answer:    pro.FreeTextAnswer("n/a"),
		Severity:  &severity,
	}
}

func findSignal(t *testing.T, a risk.Assessment, metric string) risk.Signal {
	t.Helper()
	for _, sig := range a.Signals {
		if sig.Metric == metric {
			return sig
		}
	}
	t.Fatalf("no signal for metric %q in %+v", metric, a.Signals)
	return risk.Signal{}
}

func TestAnalyzeInsufficientData(t *testing.T) {
	e := NewEngine(Config{})
	a := e.Analyze("p1", "s1", nil, []pro.Response{resp("s1", "pain", 2)}, time.Now())

	if a.Score != 0 {
		t.Errorf("score = %v, want 0", a.Score)
	}
	if a.Alert {
		t.Error("alert raised without history")
	}
	if len(a.Signals) != 1 || a.Signals[0].Name != SignalInsufficientData {
		t.Errorf("signals = %+v, want single insufficient-data signal", a.Signals)
	}
}

func TestAnalyzeSleepDecline(t *testing.T) {
	e := NewEngine(Config{})
	history := []pro.Response{
		resp("s1", "sleep", 7),
		resp("s2", "sleep", 5),
	}
	current := []pro.Response{resp("s3", "sleep", 3)}

	a := e.Analyze("p1", "s3", history, current, time.Now())

	if a.Score <= 0 {
		t.Fatalf("score = %v, want > 0", a.Score)
	}
	sig := findSignal(t, a, "sleep")
	if sig.Direction != risk.Worsening {
		t.Errorf("direction = %s, want worsening", sig.Direction)
	}
	if sig.Name != "sleep declining 3 sessions" {
		t.Errorf("name = %q", sig.Name)
	}
	if sig.Acute {
		t.Error("a two-hour step should not read as acute for sleep")
	}
	if a.Alert {
		t.Errorf("score %v is below the default threshold, no alert expected", a.Score)
	}
}

func TestAnalyzeAcuteJumpOverridesScore(t *testing.T) {
	e := NewEngine(Config{Threshold: 0.9})
	history := []pro.Response{
		resp("s1", "pain", 1),
		resp("s2", "pain", 1),
		resp("s3", "pain", 1),
	}
	current := []pro.Response{resp("s4", "pain", 3)}

	a := e.Analyze("p1", "s4", history, current, time.Now())

	if a.Score >= 0.9 {
		t.Fatalf("score = %v, test needs it below the threshold", a.Score)
	}
	if !a.Alert {
		t.Error("acute jump must raise an alert regardless of the aggregate score")
	}
	sig := findSignal(t, a, "pain")
	if !sig.Acute {
		t.Errorf("signal = %+v, want acute", sig)
	}
}

func TestAnalyzeImprovingContributesNothing(t *testing.T) {
	e := NewEngine(Config{})
	history := []pro.Response{
		resp("s1", "pain", 3),
		resp("s2", "pain", 2),
	}
	current := []pro.Response{resp("s3", "pain", 1)}

	a := e.Analyze("p1", "s3", history, current, time.Now())

	if a.Score != 0 {
		t.Errorf("score = %v, want 0 for an improving trend", a.Score)
	}
	sig := findSignal(t, a, "pain")
	if sig.Direction != risk.Improving {
		t.Errorf("direction = %s, want improving", sig.Direction)
	}
	if a.Alert {
		t.Error("no alert expected")
	}
}

func TestAnalyzeStableIsSilent(t *testing.T) {
	e := NewEngine(Config{})
	history := []pro.Response{
		resp("s1", "mood", 1),
		resp("s2", "mood", 1),
	}
	current := []pro.Response{resp("s3", "mood", 1)}

	a := e.Analyze("p1", "s3", history, current, time.Now())

	if len(a.Signals) != 0 {
		t.Errorf("signals = %+v, want none for a flat series", a.Signals)
	}
	if a.Recommendation == "" {
		t.Error("recommendation should still carry routine guidance")
	}
}

func TestAnalyzeWeightedAggregate(t *testing.T) {
	e := NewEngine(Config{Weights: map[string]float64{"pain": 2, "mood": 1}})
	history := []pro.Response{
		resp("s1", "pain", 0), resp("s1", "mood", 1),
		resp("s2", "pain", 2), resp("s2", "mood", 1),
		resp("s3", "pain", 2), resp("s3", "mood", 1),
	}
	current := []pro.Response{resp("s4", "pain", 2), resp("s4", "mood", 1)}

	a := e.Analyze("p1", "s4", history, current, time.Now())

	// pain window mean 2 vs baseline 0: magnitude capped at 1; mood stable.
	want := 2.0 / 3.0
	if math.Abs(a.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", a.Score, want)
	}
	if !a.Alert {
		t.Errorf("score %v crosses the default threshold", a.Score)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	e := NewEngine(Config{})
	history := []pro.Response{
		resp("s1", "pain", 1), resp("s1", "sleep", 7), resp("s1", "fatigue", 0),
		resp("s2", "pain", 2), resp("s2", "sleep", 6), resp("s2", "fatigue", 1),
	}
	current := []pro.Response{resp("s3", "pain", 2), resp("s3", "sleep", 4), resp("s3", "fatigue", 2)}

	first := e.Analyze("p1", "s3", history, current, time.Now())
	for i := 0; i < 20; i++ {
		again := e.Analyze("p1", "s3", history, current, time.Now())
		if again.Score != first.Score || again.Alert != first.Alert {
			t.Fatalf("run %d diverged: %v/%v vs %v/%v", i, again.Score, again.Alert, first.Score, first.Alert)
		}
		if len(again.Signals) != len(first.Signals) {
			t.Fatalf("run %d signal count diverged", i)
		}
		for j := range again.Signals {
			if again.Signals[j].Name != first.Signals[j].Name || again.Signals[j].Magnitude != first.Signals[j].Magnitude {
				t.Fatalf("run %d signal %d diverged: %+v vs %+v", i, j, again.Signals[j], first.Signals[j])
			}
		}
	}
}

func TestAlerts(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()

	if got := e.Alerts(risk.Assessment{Alert: false, Score: 0.4}, now); got != nil {
		t.Errorf("alerts = %+v, want none when the assessment did not flag", got)
	}

	a := risk.Assessment{
		ID:        "assess-1",
		PatientID: "p1",
		Alert:     true,
		Score:     0.7,
		Signals:   []risk.Signal{{Name: "pain worsening", Metric: "pain", Direction: risk.Worsening, Magnitude: 0.7}},
	}
	alerts := e.Alerts(a, now)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].Severity != risk.SeverityHigh {
		t.Errorf("severity = %s, want high", alerts[0].Severity)
	}
	if alerts[0].Status != risk.StatusActive {
		t.Errorf("status = %s, want active", alerts[0].Status)
	}

	a.Score = 0.9
	if got := e.Alerts(a, now); got[0].Severity != risk.SeverityCritical {
		t.Errorf("severity = %s, want critical at score %v", got[0].Severity, a.Score)
	}
}
