package notify

import (
	"context"

	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/risk"
)

// Notifier delivers a completed assessment's alerts to the care team.
// Delivery is best effort: a failed notification is logged by the caller,
// never surfaced to the patient.
type Notifier interface {
	Notify(ctx context.Context, pat patient.Patient, assessment risk.Assessment, alerts []risk.Alert, responses []pro.Response) error
}
