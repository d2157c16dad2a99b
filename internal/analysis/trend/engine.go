package trend

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/risk"
)

// SignalInsufficientData is emitted instead of an error when there is not
// enough history to compute a trend.
const SignalInsufficientData = "insufficient data"

// Config carries the externally tunable scoring parameters. Thresholds and
// weights are a product decision, not an engineering one, so nothing here is
// hard-coded at call sites.
type Config struct {
	// Threshold is the aggregate score at or above which an alert is raised.
	Threshold float64
	// Window is the short-window size, in sessions, compared against the
	// prior baseline.
	Window int
	// Weights are per-metric-family scoring weights; families absent from the
	// map get weight 1 (equal weighting by default).
	Weights map[string]float64
	// AcuteJump is the single-session worsening change, in the family's
	// native units, that raises an alert regardless of the aggregate score.
	AcuteJump float64
	// AcuteJumps overrides AcuteJump for individual families (e.g. hours of
	// sleep move on a wider scale than 0-3 severity steps).
	AcuteJumps map[string]float64
	// LowerIsWorse flags families where a falling value means deterioration.
	LowerIsWorse map[string]bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:    0.6,
		Window:       3,
		AcuteJump:    2,
		AcuteJumps:   map[string]float64{"sleep": 3},
		LowerIsWorse: map[string]bool{"sleep": true},
	}
}

// stableBand is the relative change below which a trend counts as stable.
const stableBand = 0.05

// Engine computes risk assessments from longitudinal PRO history. It is
// deterministic: identical input always yields an identical score, signal
// set and alert decision.
type Engine struct {
	cfg Config
}

// NewEngine builds an engine, filling unset config fields with defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.AcuteJump <= 0 {
		cfg.AcuteJump = def.AcuteJump
	}
	if cfg.AcuteJumps == nil {
		cfg.AcuteJumps = def.AcuteJumps
	}
	if cfg.LowerIsWorse == nil {
		cfg.LowerIsWorse = def.LowerIsWorse
	}
	return &Engine{cfg: cfg}
}

// Analyze computes the assessment for a just-completed session. history holds
// the patient's responses across all past sessions in chronological order;
// current holds the completed session's responses. Missing history never
// produces an error: it yields a zero score with an explicit
// insufficient-data signal.
func (e *Engine) Analyze(patientID, sessionID string, history, current []pro.Response, now time.Time) risk.Assessment {
	assessment := risk.Assessment{
		ID:        uuid.NewString(),
		PatientID: patientID,
		SessionID: sessionID,
		CreatedAt: now,
	}

	series := buildSeries(history, current)

	families := make([]string, 0, len(series))
	for family := range series {
		families = append(families, family)
	}
	sort.Strings(families)

	var weighted, weightSum float64
	evaluated := false
	for _, family := range families {
		values := series[family]
		if len(values) < 2 {
			continue
		}
		evaluated = true

		sig := e.evaluate(family, values)
		weight := e.weightFor(family)
		weightSum += weight
		if sig.Direction == risk.Worsening {
			weighted += weight * sig.Magnitude
		}
		if sig.Direction != risk.Stable || sig.Acute {
			assessment.Signals = append(assessment.Signals, sig)
		}
	}

	if !evaluated {
		assessment.Signals = []risk.Signal{{Name: SignalInsufficientData, Direction: risk.Stable}}
		assessment.Recommendation = "Not enough check-in history to assess trends yet."
		return assessment
	}

	if weightSum > 0 {
		assessment.Score = clamp01(weighted / weightSum)
	}

	acute := false
	for _, sig := range assessment.Signals {
		if sig.Acute {
			acute = true
			break
		}
	}

	assessment.Alert = acute || assessment.Score >= e.cfg.Threshold
	assessment.Recommendation = e.recommend(assessment)
	return assessment
}

// evaluate computes the trend signal for one family's per-session values.
func (e *Engine) evaluate(family string, values []float64) risk.Signal {
	baseline, window := split(values, e.cfg.Window)
	windowMean := mean(window)

	delta := windowMean - baseline
	if e.cfg.LowerIsWorse[family] {
		delta = -delta
	}
	magnitude := clamp01(math.Abs(delta) / math.Max(math.Abs(baseline), 1))

	sig := risk.Signal{Metric: family, Magnitude: magnitude}
	switch {
	case magnitude < stableBand:
		sig.Direction = risk.Stable
		sig.Magnitude = 0
		sig.Name = family + " stable"
	case delta > 0:
		sig.Direction = risk.Worsening
		sig.Name = e.worseningName(family, values)
	default:
		sig.Direction = risk.Improving
		sig.Magnitude = 0
		sig.Name = family + " improving"
	}

	// Acute single-session jump, checked against the last two sessions only.
	// Independent of the aggregate: a stable long-term trend does not excuse
	// a sharp deterioration since the previous check-in.
	if len(values) >= 2 {
		jump := values[len(values)-1] - values[len(values)-2]
		if e.cfg.LowerIsWorse[family] {
			jump = -jump
		}
		if jump >= e.acuteJumpFor(family) {
			sig.Acute = true
			sig.Direction = risk.Worsening
			if sig.Magnitude == 0 {
				sig.Magnitude = clamp01(jump / math.Max(math.Abs(values[len(values)-2]), 1))
			}
			sig.Name = fmt.Sprintf("%s acute change since last session", family)
		}
	}

	return sig
}

// worseningName distinguishes a sustained decline across the whole window
// from plain worsening.
func (e *Engine) worseningName(family string, values []float64) string {
	n := e.cfg.Window
	if len(values) < n {
		return family + " worsening"
	}
	tail := values[len(values)-n:]
	for i := 1; i < len(tail); i++ {
		step := tail[i] - tail[i-1]
		if e.cfg.LowerIsWorse[family] {
			step = -step
		}
		if step <= 0 {
			return family + " worsening"
		}
	}
	if e.cfg.LowerIsWorse[family] {
		return fmt.Sprintf("%s declining %d sessions", family, n)
	}
	return fmt.Sprintf("%s rising %d sessions", family, n)
}

func (e *Engine) weightFor(family string) float64 {
	if w, ok := e.cfg.Weights[family]; ok && w > 0 {
		return w
	}
	return 1
}

func (e *Engine) acuteJumpFor(family string) float64 {
	if j, ok := e.cfg.AcuteJumps[family]; ok && j > 0 {
		return j
	}
	return e.cfg.AcuteJump
}

// recommendationTemplates maps metric families to fixed care-team guidance.
// Text generation is deterministic; the score and alert decision above never
// depend on it.
var recommendationTemplates = map[string]string{
	"pain":       "Review analgesia and consider a pain-management consult.",
	"sleep":      "Review sleep hygiene and screen for causes of disrupted sleep.",
	"fatigue":    "Assess for anaemia, medication side effects or mood-related fatigue.",
	"mood":       "Consider a wellbeing check and screen for low mood.",
	"medication": "Discuss adherence barriers at the next contact.",
}

func (e *Engine) recommend(a risk.Assessment) string {
	var parts []string
	for _, sig := range a.Signals {
		if sig.Direction != risk.Worsening {
			continue
		}
		if tmpl, ok := recommendationTemplates[sig.Metric]; ok {
			parts = append(parts, tmpl)
		} else {
			parts = append(parts, fmt.Sprintf("Review reported %s with the patient.", sig.Metric))
		}
	}
	if len(parts) == 0 {
		return "No significant changes; continue routine monitoring."
	}
	if a.Alert {
		parts = append(parts, "Contact the patient to review these changes.")
	}
	return strings.Join(parts, " ")
}

// Alerts derives clinician alerts from an assessment. Severity grading:
// acute jumps and very high scores escalate; a bare threshold crossing is
// high; worsening signals below threshold surface as medium.
func (e *Engine) Alerts(a risk.Assessment, now time.Time) []risk.Alert {
	if !a.Alert {
		return nil
	}

	severity := risk.SeverityHigh
	acute := false
	for _, sig := range a.Signals {
		if sig.Acute {
			acute = true
		}
	}
	switch {
	case a.Score >= 0.85:
		severity = risk.SeverityCritical
	case acute:
		severity = risk.SeverityHigh
	case a.Score >= e.cfg.Threshold:
		severity = risk.SeverityHigh
	default:
		severity = risk.SeverityMedium
	}

	names := make([]string, 0, len(a.Signals))
	for _, sig := range a.Signals {
		if sig.Direction == risk.Worsening {
			names = append(names, sig.Name)
		}
	}
	message := fmt.Sprintf("Risk score %.2f", a.Score)
	if len(names) > 0 {
		message += ": " + strings.Join(names, ", ")
	}

	return []risk.Alert{{
		ID:           uuid.NewString(),
		PatientID:    a.PatientID,
		AssessmentID: a.ID,
		Severity:     severity,
		Message:      message,
		Status:       risk.StatusActive,
		CreatedAt:    now,
	}}
}

// buildSeries groups responses into per-family, per-session mean values in
// chronological order. Sessions keep their first-seen order; responses
// without a derivable severity are skipped.
func buildSeries(history, current []pro.Response) map[string][]float64 {
	type bucket struct {
		sum   float64
		count int
	}

	sessionOrder := make([]string, 0, 8)
	perSession := make(map[string]map[string]*bucket)

	add := func(r pro.Response) {
		v, ok := r.SeverityValue()
		if !ok || r.Metric == "" {
			return
		}
		byFamily, seen := perSession[r.SessionID]
		if !seen {
			byFamily = make(map[string]*bucket)
			perSession[r.SessionID] = byFamily
			sessionOrder = append(sessionOrder, r.SessionID)
		}
		b := byFamily[r.Metric]
		if b == nil {
			b = &bucket{}
			byFamily[r.Metric] = b
		}
		b.sum += v
		b.count++
	}

	for _, r := range history {
		add(r)
	}
	for _, r := range current {
		add(r)
	}

	series := make(map[string][]float64)
	for _, sid := range sessionOrder {
		for family, b := range perSession[sid] {
			series[family] = append(series[family], b.sum/float64(b.count))
		}
	}
	return series
}

// split divides a value series into a prior baseline and the short window.
// With no sessions before the window, the oldest value anchors the baseline.
func split(values []float64, window int) (float64, []float64) {
	if len(values) <= window {
		return values[0], values[1:]
	}
	cut := len(values) - window
	return mean(values[:cut]), values[cut:]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
