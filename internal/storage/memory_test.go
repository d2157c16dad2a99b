package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/session"
)

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.LoadPatient(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadPatient error = %v, want ErrNotFound", err)
	}
	if _, err := store.LoadSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadSession error = %v, want ErrNotFound", err)
	}
	if _, err := store.AssessmentBySession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AssessmentBySession error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreActiveSession(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.ActiveSessionForPatient(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound with no sessions", err)
	}

	done := session.Session{ID: "s1", PatientID: "p1", Phase: session.PhaseComplete}
	open := session.Session{ID: "s2", PatientID: "p1", Phase: session.PhaseCompanion}
	if err := store.SaveSession(ctx, done); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSession(ctx, open); err != nil {
		t.Fatal(err)
	}

	active, err := store.ActiveSessionForPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("ActiveSessionForPatient error: %v", err)
	}
	if active.ID != "s2" {
		t.Errorf("active session = %s, want s2", active.ID)
	}

	open.Phase = session.PhaseAborted
	if err := store.SaveSession(ctx, open); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ActiveSessionForPatient(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound after abort", err)
	}
}

func TestMemoryStorePatientHistoryOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := store.SaveSession(ctx, session.Session{ID: id, PatientID: "p1", Phase: session.PhaseComplete}); err != nil {
			t.Fatal(err)
		}
		if err := store.AppendResponse(ctx, pro.Response{SessionID: id, QuestionID: "pain_level", Answer: pro.ChoiceAnswer("Mild")}); err != nil {
			t.Fatal(err)
		}
	}

	history, err := store.PatientHistory(ctx, "p1", "s3")
	if err != nil {
		t.Fatalf("PatientHistory error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 (current session excluded)", len(history))
	}
	if history[0].SessionID != "s1" || history[1].SessionID != "s2" {
		t.Errorf("history order = %s, %s; want s1, s2", history[0].SessionID, history[1].SessionID)
	}
}
