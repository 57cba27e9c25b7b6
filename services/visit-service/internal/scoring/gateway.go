package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/om2108/OneGate/services/visit-service/internal/model"
)

// HighRiskThreshold is the no-show probability at and above which an
// appointment is presented as high risk.
const HighRiskThreshold = 0.7

// Risk bands shown next to an appointment.
const (
	RiskHigh     = "high"
	RiskLow      = "low"
	RiskUnscored = "unscored"
)

// RiskBand classifies a no-show score for display.
func RiskBand(score *float64) string {
	switch {
	case score == nil:
		return RiskUnscored
	case *score >= HighRiskThreshold:
		return RiskHigh
	default:
		return RiskLow
	}
}

// ErrScoreInFlight means a scoring call for that appointment has not
// returned yet; the caller should retry once it has.
var ErrScoreInFlight = errors.New("a scoring call for this appointment is already in flight")

// Store is the slice of the repository contract the gateway needs.
type Store interface {
	ScoreAppointment(ctx context.Context, id string) (model.Appointment, error)
}

// Gateway invokes the external no-show model for one appointment at a
// time per id. In-flight ids are tracked in a mutex-guarded set; the
// mark is always cleared when the call returns, success or not, so a
// failed call can be retried immediately.
type Gateway struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewGateway(store Store, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:    store,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Busy reports whether a scoring call for id is outstanding.
func (g *Gateway) Busy(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[id]
	return busy
}

// Score runs the model for one appointment and returns the rescored
// record. The returned appointment is authoritative: its noShowScore
// and lastScoredAt replace the caller's copy entirely. On failure the
// caller's copy is left alone and the error is surfaced.
func (g *Gateway) Score(ctx context.Context, id string) (model.Appointment, error) {
	if !g.begin(id) {
		return model.Appointment{}, ErrScoreInFlight
	}
	defer g.end(id)

	appt, err := g.store.ScoreAppointment(ctx, id)
	if err != nil {
		g.logger.Warn("scoring call failed", "err", err, "appointment_id", id)
		return model.Appointment{}, fmt.Errorf("score appointment %s: %w", id, err)
	}
	return appt, nil
}

func (g *Gateway) begin(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[id]; busy {
		return false
	}
	g.inFlight[id] = struct{}{}
	return true
}

func (g *Gateway) end(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, id)
}
