package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/om2108/OneGate/services/visit-service/internal/model"
	"github.com/om2108/OneGate/services/visit-service/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type respondCall struct {
	id          string
	accepted    bool
	scheduledAt *time.Time
	location    string
}

type fakeStore struct {
	respondCalls []respondCall
	respondAppt  model.Appointment
	respondErr   error
	deletedIDs   []string
	deleteErr    error
}

func (f *fakeStore) Respond(_ context.Context, id string, accepted bool, scheduledAt *time.Time, location string) (model.Appointment, error) {
	f.respondCalls = append(f.respondCalls, respondCall{id, accepted, scheduledAt, location})
	if f.respondErr != nil {
		return model.Appointment{}, f.respondErr
	}
	return f.respondAppt, nil
}

func (f *fakeStore) DeleteAppointment(_ context.Context, id string) error {
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

func TestVisitTime(t *testing.T) {
	prev := time.Date(2024, 12, 1, 10, 30, 0, 0, time.UTC)
	cases := []struct {
		name    string
		draft   Draft
		prev    *time.Time
		want    *time.Time
		wantErr bool
	}{
		{
			name:  "date and time combine",
			draft: Draft{Date: "2025-01-10", Time: "14:30"},
			want:  timePtr(2025, 1, 10, 14, 30),
		},
		{
			name:  "date only gets default clock",
			draft: Draft{Date: "2025-01-10"},
			want:  timePtr(2025, 1, 10, 9, 0),
		},
		{
			name:  "no date keeps prior",
			draft: Draft{},
			prev:  &prev,
			want:  &prev,
		},
		{
			name:  "bare time is ignored",
			draft: Draft{Time: "14:30"},
			prev:  &prev,
			want:  &prev,
		},
		{
			name: "nothing anywhere stays unscheduled",
		},
		{
			name:    "garbage date rejected",
			draft:   Draft{Date: "not-a-date"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.draft.VisitTime(tc.prev)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("VisitTime: %v", err)
			}
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			if got != nil && !got.Equal(*tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOpenDraft(t *testing.T) {
	when := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	d := OpenDraft(model.Appointment{ScheduledAt: &when, Location: "Lobby"})
	if d.Date != "2025-03-01" || d.Time != "09:00" || d.Location != "Lobby" {
		t.Fatalf("unexpected draft %+v", d)
	}

	empty := OpenDraft(model.Appointment{})
	if empty.Date != "" || empty.Time != "" {
		t.Fatalf("unscheduled appointment must open an empty draft, got %+v", empty)
	}
}

func TestApprove_SendsScheduleAndReturnsAuthoritative(t *testing.T) {
	want := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		respondAppt: model.Appointment{ID: "a1", Status: model.StatusAccepted, ScheduledAt: &want, Location: "Lobby"},
	}
	svc := NewService(fs, discardLogger())

	appt := model.Appointment{ID: "a1", Status: model.StatusRequested}
	got, err := svc.Approve(context.Background(), appt, Draft{Date: "2025-03-01", Location: "Lobby"})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if len(fs.respondCalls) != 1 {
		t.Fatalf("expected one respond call, got %d", len(fs.respondCalls))
	}
	call := fs.respondCalls[0]
	if !call.accepted || call.id != "a1" || call.location != "Lobby" {
		t.Fatalf("unexpected respond call %+v", call)
	}
	if call.scheduledAt == nil || !call.scheduledAt.Equal(want) {
		t.Fatalf("date-only draft must default to 09:00, got %v", call.scheduledAt)
	}
	if got.Status != model.StatusAccepted || !got.ScheduledAt.Equal(want) {
		t.Fatalf("authoritative response not returned: %+v", got)
	}
}

func TestApprove_EmptyLocationKeepsPrior(t *testing.T) {
	fs := &fakeStore{}
	svc := NewService(fs, discardLogger())

	appt := model.Appointment{ID: "a1", Status: model.StatusRequested, Location: "Gate 2"}
	if _, err := svc.Approve(context.Background(), appt, Draft{Date: "2025-03-01"}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if fs.respondCalls[0].location != "Gate 2" {
		t.Fatalf("prior location not retained: %+v", fs.respondCalls[0])
	}
}

func TestApprove_PastVisitTimeAllowed(t *testing.T) {
	fs := &fakeStore{}
	svc := NewService(fs, discardLogger())

	if _, err := svc.Approve(context.Background(), model.Appointment{ID: "a1"}, Draft{Date: "2001-01-01", Time: "08:00"}); err != nil {
		t.Fatalf("retroactive approval must be accepted: %v", err)
	}
}

func TestApprove_TransitionRejectedPassesThrough(t *testing.T) {
	fs := &fakeStore{respondErr: store.ErrTransitionRejected}
	svc := NewService(fs, discardLogger())

	_, err := svc.Approve(context.Background(), model.Appointment{ID: "a1"}, Draft{Date: "2025-03-01"})
	if !errors.Is(err, store.ErrTransitionRejected) {
		t.Fatalf("expected ErrTransitionRejected, got %v", err)
	}
}

func TestDecline_DeletesRecord(t *testing.T) {
	fs := &fakeStore{}
	svc := NewService(fs, discardLogger())

	if err := svc.Decline(context.Background(), "a1"); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if len(fs.deletedIDs) != 1 || fs.deletedIDs[0] != "a1" {
		t.Fatalf("expected one delete for a1, got %v", fs.deletedIDs)
	}
}

func TestDecline_DeleteFailureReported(t *testing.T) {
	fs := &fakeStore{deleteErr: errors.New("store down")}
	svc := NewService(fs, discardLogger())

	if err := svc.Decline(context.Background(), "a1"); err == nil {
		t.Fatal("expected the delete failure to surface")
	}
}

func timePtr(year int, month time.Month, day, hour, minute int) *time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	return &t
}
