package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/om2108/OneGate/services/visit-service/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

type fakeStore struct {
	mu      sync.Mutex
	appts   []model.Appointment
	deleted map[string]int
	failIDs map[string]bool
	listErr error
}

func newFakeStore(appts ...model.Appointment) *fakeStore {
	return &fakeStore{
		appts:   appts,
		deleted: make(map[string]int),
		failIDs: make(map[string]bool),
	}
}

func (f *fakeStore) ListAppointments(context.Context) ([]model.Appointment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.appts, nil
}

func (f *fakeStore) DeleteAppointment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[id]++
	if f.failIDs[id] {
		return errors.New("store unavailable")
	}
	return nil
}

func TestSplit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	appts := []model.Appointment{
		{ID: "past", Status: model.StatusAccepted, ScheduledAt: ts("2025-05-31T12:00:00Z")},
		{ID: "future", Status: model.StatusAccepted, ScheduledAt: ts("2025-06-02T12:00:00Z")},
		{ID: "unscheduled", Status: model.StatusAccepted},
		{ID: "pending", Status: model.StatusRequested, ScheduledAt: ts("2020-01-01T00:00:00Z")},
		{ID: "declined", Status: model.StatusDeclined, ScheduledAt: ts("2020-01-01T00:00:00Z")},
	}

	upcoming, expired := Split(appts, now)

	if len(expired) != 1 || expired[0].ID != "past" {
		t.Fatalf("expected only the past ACCEPTED appointment expired, got %+v", expired)
	}
	if len(upcoming) != 2 {
		t.Fatalf("expected future and unscheduled upcoming, got %+v", upcoming)
	}
	for _, appt := range upcoming {
		if appt.ID != "future" && appt.ID != "unscheduled" {
			t.Fatalf("unexpected upcoming appointment %q", appt.ID)
		}
	}
}

func TestSplit_ExactBoundaryIsUpcoming(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	appts := []model.Appointment{
		{ID: "boundary", Status: model.StatusAccepted, ScheduledAt: &now},
	}
	upcoming, expired := Split(appts, now)
	if len(expired) != 0 || len(upcoming) != 1 {
		t.Fatalf("an appointment scheduled exactly at now must not expire: up=%v exp=%v", upcoming, expired)
	}
}

func TestSweep_DeletesEachOnceAndToleratesFailure(t *testing.T) {
	store := newFakeStore()
	store.failIDs["e2"] = true
	engine := NewEngine(store, nil, discardLogger())

	engine.Sweep(context.Background(), []model.Appointment{
		{ID: "e1"}, {ID: "e2"}, {ID: "e3"},
	})

	for _, id := range []string{"e1", "e2", "e3"} {
		if store.deleted[id] != 1 {
			t.Fatalf("appointment %s deleted %d times, want 1", id, store.deleted[id])
		}
	}
}

func TestPass_HidesExpiredAndSweeps(t *testing.T) {
	store := newFakeStore(
		model.Appointment{ID: "old", Status: model.StatusAccepted, ScheduledAt: ts("2020-01-01T00:00:00Z")},
		model.Appointment{ID: "soon", Status: model.StatusAccepted, ScheduledAt: ts("2099-01-01T00:00:00Z")},
		model.Appointment{ID: "open", Status: model.StatusAccepted},
	)
	engine := NewEngine(store, nil, discardLogger())

	upcoming, err := engine.Pass(context.Background())
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	if len(upcoming) != 2 {
		t.Fatalf("expected 2 upcoming, got %+v", upcoming)
	}
	for _, appt := range upcoming {
		if appt.ID == "old" {
			t.Fatal("expired appointment leaked into the upcoming view")
		}
	}
	if store.deleted["old"] != 1 {
		t.Fatalf("expired appointment not swept, deletes=%v", store.deleted)
	}
	if store.deleted["soon"] != 0 || store.deleted["open"] != 0 {
		t.Fatalf("live appointments must not be deleted, deletes=%v", store.deleted)
	}
}

func TestPass_ListFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("store down")
	engine := NewEngine(store, nil, discardLogger())

	if _, err := engine.Pass(context.Background()); err == nil {
		t.Fatal("expected an error when the store list fails")
	}
}
