package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/signintech/gopdf"

	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/risk"
)

// fontPaths lists common DejaVuSans locations across base images.
var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// Summary renders a one-page check-in summary PDF for the care team.
func Summary(pat patient.Patient, assessment risk.Assessment, responses []pro.Response) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	loaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			loaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !loaded {
		return nil, fmt.Errorf("load report font: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 18); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Patient Check-in Summary")
	pdf.Br(28)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Date: %s", assessment.CreatedAt.Format("2006-01-02 15:04")))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Patient: %s (%s)", pat.FullName, pat.ID))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Risk score: %.2f", assessment.Score))
	pdf.Br(22)

	if err := pdf.SetFont("DejaVu", "", 13); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Reported outcomes:")
	pdf.Br(14)

	if err := pdf.SetFont("DejaVu", "", 10); err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		pdf.Cell(nil, "- No structured answers recorded.")
		pdf.Br(12)
	}
	for _, r := range responses {
		line := fmt.Sprintf("- %s: %s", r.QuestionID, r.Answer.Text())
		if severity, ok := r.SeverityValue(); ok {
			line += fmt.Sprintf(" (severity %.1f)", severity)
		}
		writeWrapped(&pdf, line)
	}
	pdf.Br(10)

	if len(assessment.Signals) > 0 {
		if err := pdf.SetFont("DejaVu", "", 13); err != nil {
			return nil, err
		}
		pdf.Cell(nil, "Trend signals:")
		pdf.Br(14)
		if err := pdf.SetFont("DejaVu", "", 10); err != nil {
			return nil, err
		}
		for _, sig := range assessment.Signals {
			writeWrapped(&pdf, fmt.Sprintf("- %s (%s, magnitude %.2f)", sig.Name, sig.Direction, sig.Magnitude))
		}
		pdf.Br(10)
	}

	if assessment.Recommendation != "" {
		if err := pdf.SetFont("DejaVu", "", 13); err != nil {
			return nil, err
		}
		pdf.Cell(nil, "Recommendation:")
		pdf.Br(14)
		if err := pdf.SetFont("DejaVu", "", 10); err != nil {
			return nil, err
		}
		writeWrapped(&pdf, assessment.Recommendation)
	}

	pdf.SetY(790)
	if err := pdf.SetFont("DejaVu", "", 8); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Generated %s - automated summary, not a clinical judgement.", time.Now().UTC().Format(time.RFC3339)))

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write summary pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeWrapped(pdf *gopdf.GoPdf, text string) {
	lines, _ := pdf.SplitText(text, 500)
	for _, l := range lines {
		pdf.Cell(nil, l)
		pdf.Br(12)
	}
}
