package checkin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	checkinservice "github.com/lumenhealth/checkin/backend/internal/service/checkin"
	"github.com/lumenhealth/checkin/backend/internal/storage"
	"github.com/lumenhealth/checkin/backend/pkg/utils"
)

// Handler exposes the check-in session lifecycle over HTTP.
type Handler struct {
	orchestrator *checkinservice.Orchestrator
}

// New creates the check-in handler.
func New(orchestrator *checkinservice.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// RegisterRoutes mounts the check-in endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/checkin/session", h.handleStartSession)
	r.Post("/checkin/turn", h.handleSubmitTurn)
	r.Get("/checkin/session/{sessionID}/assessment", h.handleAssessment)
	r.Post("/checkin/session/{sessionID}/cancel", h.handleCancel)
	r.Get("/patients/{patientID}/history", h.handleHistory)
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PatientID string `json:"patientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orchestrator.StartSession(r.Context(), payload.PatientID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.orchestrator.SubmitTurn(r.Context(), payload.SessionID, payload.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleAssessment(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	assessment, err := h.orchestrator.Assessment(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, assessment)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.orchestrator.Cancel(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	history, err := h.orchestrator.History(r.Context(), patientID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"responses": history})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *checkinservice.ValidationError
		stateErr      *checkinservice.StateError
		corruptionErr *checkinservice.CorruptionError
		transientErr  *checkinservice.TransientError
	)
	switch {
	case errors.As(err, &validationErr):
		utils.RespondError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &stateErr):
		utils.RespondError(w, http.StatusConflict, stateErr.Error())
	case errors.Is(err, storage.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "not found")
	case errors.As(err, &corruptionErr):
		utils.RespondError(w, http.StatusInternalServerError, corruptionErr.Error())
	case errors.As(err, &transientErr):
		utils.RespondError(w, http.StatusServiceUnavailable, "temporarily unavailable, please retry")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
