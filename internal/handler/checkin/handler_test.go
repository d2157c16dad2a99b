package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lumenhealth/checkin/backend/internal/analysis/trend"
	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/questionnaire"
	checkinservice "github.com/lumenhealth/checkin/backend/internal/service/checkin"
	"github.com/lumenhealth/checkin/backend/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *checkinservice.Orchestrator) {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := store.SavePatient(context.Background(), patient.Patient{ID: "p1", FullName: "Maria Gonzalez"}); err != nil {
		t.Fatal(err)
	}
	orchestrator := checkinservice.NewOrchestrator(
		store,
		questionnaire.NewMemoryStore(questionnaire.Seed()),
		trend.NewEngine(trend.Config{}),
		nil,
		nil,
		zap.NewNop().Sugar(),
		checkinservice.Options{},
	)

	r := chi.NewRouter()
	New(orchestrator).RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, orchestrator
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStartSessionEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/checkin/session", map[string]string{"patientId": "p1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var result struct {
		Session struct {
			ID    string `json:"id"`
			Phase string `json:"phase"`
		} `json:"session"`
		Greeting string `json:"greeting"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Session.ID == "" || result.Greeting == "" {
		t.Errorf("incomplete response: %+v", result)
	}
	if result.Session.Phase != "companion" {
		t.Errorf("phase = %s, want companion", result.Session.Phase)
	}
}

func TestStartSessionEndpointRejectsUnknownPatient(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/checkin/session", map[string]string{"patientId": "ghost"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitTurnEndpoint(t *testing.T) {
	server, orchestrator := newTestServer(t)

	start, err := orchestrator.StartSession(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, server.URL+"/checkin/turn", map[string]string{
		"sessionId": start.Session.ID,
		"message":   "Feeling a bit rough today",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var reply struct {
		Phase string `json:"phase"`
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.Phase != "questionnaire" {
		t.Errorf("phase = %s, want questionnaire", reply.Phase)
	}
	if reply.Reply == "" {
		t.Error("expected a reply")
	}
}

func TestSubmitTurnEndpointValidatesAnswer(t *testing.T) {
	server, orchestrator := newTestServer(t)
	ctx := context.Background()

	start, err := orchestrator.StartSession(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := orchestrator.SubmitTurn(ctx, start.Session.ID, "My joints hurt"); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, server.URL+"/checkin/turn", map[string]string{
		"sessionId": start.Session.ID,
		"message":   "Purple",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an unlisted option", resp.StatusCode)
	}
}

func TestSubmitTurnEndpointConflictOnEndedSession(t *testing.T) {
	server, orchestrator := newTestServer(t)
	ctx := context.Background()

	start, err := orchestrator.StartSession(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if err := orchestrator.Cancel(ctx, start.Session.ID); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, server.URL+"/checkin/turn", map[string]string{
		"sessionId": start.Session.ID,
		"message":   "hello?",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409 for an ended session", resp.StatusCode)
	}
}

func TestAssessmentEndpoint(t *testing.T) {
	server, orchestrator := newTestServer(t)
	ctx := context.Background()

	resp, err := http.Get(server.URL + "/checkin/session/unknown/assessment")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for an unknown session", resp.StatusCode)
	}

	start, err := orchestrator.StartSession(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	resp, err = http.Get(fmt.Sprintf("%s/checkin/session/%s/assessment", server.URL, start.Session.ID))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409 before completion", resp.StatusCode)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	server, orchestrator := newTestServer(t)
	ctx := context.Background()

	resp, err := http.Get(server.URL + "/patients/ghost/history")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for an unknown patient", resp.StatusCode)
	}

	start, err := orchestrator.StartSession(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := orchestrator.SubmitTurn(ctx, start.Session.ID, "My joints hurt"); err != nil {
		t.Fatal(err)
	}
	if _, err := orchestrator.SubmitTurn(ctx, start.Session.ID, "Mild"); err != nil {
		t.Fatal(err)
	}

	resp, err = http.Get(server.URL + "/patients/p1/history")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Responses []struct {
			QuestionID string `json:"questionId"`
		} `json:"responses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Responses) != 1 || payload.Responses[0].QuestionID != "pain_level" {
		t.Errorf("responses = %+v, want the recorded pain_level answer", payload.Responses)
	}
}

func TestCancelEndpoint(t *testing.T) {
	server, orchestrator := newTestServer(t)

	start, err := orchestrator.StartSession(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, server.URL+"/checkin/session/"+start.Session.ID+"/cancel", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
