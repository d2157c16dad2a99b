package notify

import (
	"context"
	"sync"
	"time"

	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/risk"
)

// AlertEvent is one alert broadcast to live subscribers.
type AlertEvent struct {
	PatientID  string          `json:"patientId"`
	Assessment risk.Assessment `json:"assessment"`
	Alerts     []risk.Alert    `json:"alerts"`
	At         time.Time       `json:"at"`
}

// Hub fans alert events out to live subscribers, keyed by patient. Slow
// subscribers drop events rather than block the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan AlertEvent]struct{}
}

var _ Notifier = (*Hub)(nil)

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan AlertEvent]struct{})}
}

// Subscribe registers for a patient's alert events. The returned cancel
// function must be called to release the subscription.
func (h *Hub) Subscribe(patientID string) (<-chan AlertEvent, func()) {
	ch := make(chan AlertEvent, 8)

	h.mu.Lock()
	set, ok := h.subscribers[patientID]
	if !ok {
		set = make(map[chan AlertEvent]struct{})
		h.subscribers[patientID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subscribers[patientID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subscribers, patientID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Notify broadcasts the assessment to every subscriber of the patient.
func (h *Hub) Notify(_ context.Context, pat patient.Patient, assessment risk.Assessment, alerts []risk.Alert, _ []pro.Response) error {
	event := AlertEvent{
		PatientID:  pat.ID,
		Assessment: assessment,
		Alerts:     alerts,
		At:         time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[pat.ID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}
