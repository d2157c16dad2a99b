package alerts

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumenhealth/checkin/backend/internal/notify"
	checkinservice "github.com/lumenhealth/checkin/backend/internal/service/checkin"
	"github.com/lumenhealth/checkin/backend/pkg/utils"
)

// Handler exposes clinician-facing alert queries and the live alert feed.
type Handler struct {
	orchestrator *checkinservice.Orchestrator
	hub          *notify.Hub
	log          *zap.SugaredLogger
	upgrader     websocket.Upgrader
}

// New creates the alerts handler. hub may be nil, which disables the feed.
func New(orchestrator *checkinservice.Orchestrator, hub *notify.Hub, log *zap.SugaredLogger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		hub:          hub,
		log:          log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the alert endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/alerts/{patientID}", h.handleList)
	r.Get("/alerts/{patientID}/feed", h.handleFeed)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	alerts, err := h.orchestrator.Alerts(r.Context(), patientID)
	if err != nil {
		var validationErr *checkinservice.ValidationError
		if errors.As(err, &validationErr) {
			utils.RespondError(w, http.StatusBadRequest, validationErr.Error())
			return
		}
		utils.RespondError(w, http.StatusServiceUnavailable, "temporarily unavailable, please retry")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// handleFeed streams alert events for one patient over a websocket until the
// client disconnects.
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "alert feed disabled")
		return
	}
	patientID := chi.URLParam(r, "patientID")
	if patientID == "" {
		utils.RespondError(w, http.StatusBadRequest, "patientID is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("alert feed upgrade failed", "patient", patientID, "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe(patientID)
	defer cancel()

	// Reader goroutine notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case event := <-events:
			if err := conn.WriteJSON(event); err != nil {
				h.log.Warnw("alert feed write failed", "patient", patientID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
