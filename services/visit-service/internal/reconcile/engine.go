package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/om2108/OneGate/services/visit-service/internal/events"
	"github.com/om2108/OneGate/services/visit-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Store is the slice of the repository contract the engine needs.
type Store interface {
	ListAppointments(ctx context.Context) ([]model.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
}

// Split partitions the ACCEPTED appointments into upcoming and expired
// relative to now. An absent visit time never expires; neither does an
// unparsable one, which the decoder already maps to absent, so a bad
// timestamp can never get data destroyed. Non-ACCEPTED appointments
// belong to neither partition.
func Split(appts []model.Appointment, now time.Time) (upcoming, expired []model.Appointment) {
	for _, appt := range appts {
		if appt.Status != model.StatusAccepted {
			continue
		}
		if appt.ScheduledAt != nil && appt.ScheduledAt.Before(now) {
			expired = append(expired, appt)
			continue
		}
		upcoming = append(upcoming, appt)
	}
	return upcoming, expired
}

// Engine retires expired appointments. The backing store has no native
// expiry, so classification happens on every pass and the expired set
// is deleted best-effort. Deletion lives here, in a loop that runs
// whether or not any client is connected; reads merely trigger an
// extra pass.
type Engine struct {
	store  Store
	events *events.Publisher
	logger *slog.Logger
	tracer trace.Tracer
}

func NewEngine(store Store, publisher *events.Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		events: publisher,
		logger: logger,
		tracer: otel.Tracer("visit-service/reconcile"),
	}
}

// Sweep issues one delete per expired appointment, fanned out
// concurrently. Each deletion is independent: a failure is logged and
// does not block the others, and nothing is rolled back. Callers hide
// the expired set from display regardless of the outcome here; an item
// whose delete failed may reappear on a later fetch, which is an
// accepted bounded inconsistency.
func (e *Engine) Sweep(ctx context.Context, expired []model.Appointment) {
	if len(expired) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, appt := range expired {
		wg.Add(1)
		go func(appt model.Appointment) {
			defer wg.Done()
			if err := e.store.DeleteAppointment(ctx, appt.ID); err != nil {
				e.logger.Warn("expiry delete failed", "err", err, "appointment_id", appt.ID)
				return
			}
			e.logger.Info("expired appointment retired", "appointment_id", appt.ID)
			e.events.Publish(ctx, events.AppointmentExpired, appt)
		}(appt)
	}
	wg.Wait()
}

// Pass runs one fetch-classify-sweep cycle and returns the upcoming
// partition.
func (e *Engine) Pass(ctx context.Context) ([]model.Appointment, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.pass")
	defer span.End()

	appts, err := e.store.ListAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile pass: %w", err)
	}
	upcoming, expired := Split(appts, time.Now().UTC())
	e.Sweep(ctx, expired)
	return upcoming, nil
}

// Run executes passes on a timer until the context ends. The first
// pass runs immediately so a restart self-heals without waiting a full
// interval.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	if _, err := e.Pass(ctx); err != nil {
		e.logger.Error("reconcile pass failed", "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Pass(ctx); err != nil {
				e.logger.Error("reconcile pass failed", "err", err)
			}
		}
	}
}
