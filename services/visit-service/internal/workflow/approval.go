package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/om2108/OneGate/services/visit-service/internal/model"
)

// defaultVisitClock is applied when the responder picks a date but no
// time of day.
const defaultVisitClock = "09:00"

// Store is the slice of the repository contract the workflow needs.
type Store interface {
	Respond(ctx context.Context, id string, accepted bool, scheduledAt *time.Time, location string) (model.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
}

// Draft is the responder's editable view of an approval: visit date,
// time of day and meeting location, each independently optional.
type Draft struct {
	Date     string // YYYY-MM-DD
	Time     string // HH:MM
	Location string
}

// OpenDraft pre-fills a draft from the appointment's current schedule
// and location; with no schedule the date/time start empty. No side
// effects.
func OpenDraft(appt model.Appointment) Draft {
	d := Draft{Location: appt.Location}
	if appt.ScheduledAt != nil {
		t := appt.ScheduledAt.UTC()
		d.Date = t.Format("2006-01-02")
		d.Time = t.Format("15:04")
	}
	return d
}

// VisitTime resolves the draft's schedule against the prior value:
// date and time combine into one instant, a bare date gets the default
// time of day, and with no date the prior schedule stands (a bare time
// cannot be anchored and is ignored the same way).
func (d Draft) VisitTime(prev *time.Time) (*time.Time, error) {
	date := strings.TrimSpace(d.Date)
	clock := strings.TrimSpace(d.Time)
	if date == "" {
		return prev, nil
	}
	if clock == "" {
		clock = defaultVisitClock
	}
	t, err := time.Parse("2006-01-02T15:04", date+"T"+clock)
	if err != nil {
		return nil, fmt.Errorf("invalid visit date/time %q %q: %w", d.Date, d.Time, err)
	}
	return &t, nil
}

// Service applies responder decisions to REQUESTED appointments.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Approve accepts the appointment with the draft's schedule and
// location. A visit time in the past is deliberately allowed:
// responders may log a retroactive approval, and temporal sanity is
// their call. The store's answer is authoritative and must replace the
// caller's copy wholesale; store.ErrTransitionRejected comes back
// untouched when the appointment was no longer REQUESTED.
func (s *Service) Approve(ctx context.Context, appt model.Appointment, draft Draft) (model.Appointment, error) {
	visitAt, err := draft.VisitTime(appt.ScheduledAt)
	if err != nil {
		return model.Appointment{}, err
	}
	location := strings.TrimSpace(draft.Location)
	if location == "" {
		location = appt.Location
	}

	updated, err := s.store.Respond(ctx, appt.ID, true, visitAt, location)
	if err != nil {
		return model.Appointment{}, err
	}
	return updated, nil
}

// Decline removes the appointment outright. Keeping a DECLINED row
// forever would leak stale records into every downstream view, so the
// decline policy is deletion, uniformly. A failed delete is logged and
// reported; the caller still drops the row from its working set.
func (s *Service) Decline(ctx context.Context, id string) error {
	if err := s.store.DeleteAppointment(ctx, id); err != nil {
		s.logger.Warn("decline delete failed", "err", err, "appointment_id", id)
		return fmt.Errorf("decline appointment %s: %w", id, err)
	}
	return nil
}
