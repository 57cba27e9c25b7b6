package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/om2108/OneGate/services/visit-service/internal/events"
	"github.com/om2108/OneGate/services/visit-service/internal/model"
	"github.com/om2108/OneGate/services/visit-service/internal/scoring"
	"github.com/om2108/OneGate/services/visit-service/internal/session"
	"github.com/om2108/OneGate/services/visit-service/internal/store"
	"github.com/om2108/OneGate/services/visit-service/internal/workflow"
)

// Submitter is the slice of the repository contract used to create a
// new visit request.
type Submitter interface {
	CreateAppointment(ctx context.Context, req store.CreateAppointment) (model.Appointment, error)
}

type AppointmentHandler struct {
	submitter Submitter
	session   *session.Coordinator
	workflow  *workflow.Service
	scoring   *scoring.Gateway
	events    *events.Publisher
	logger    *slog.Logger
}

func NewAppointmentHandler(submitter Submitter, coordinator *session.Coordinator, wf *workflow.Service, gateway *scoring.Gateway, publisher *events.Publisher, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		submitter: submitter,
		session:   coordinator,
		workflow:  wf,
		scoring:   gateway,
		events:    publisher,
		logger:    logger,
	}
}

type submitRequest struct {
	PropertyID  string `json:"property_id"`
	RequesterID string `json:"requester_id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
}

type submitResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type respondRequest struct {
	AppointmentID string `json:"appointment_id"`
	Accepted      bool   `json:"accepted"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Location      string `json:"location"`
}

type respondResponse struct {
	AppointmentID string     `json:"appointment_id"`
	Status        string     `json:"status"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	Location      string     `json:"location,omitempty"`
}

type deleteRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type deleteResponse struct {
	AppointmentID string `json:"appointment_id"`
	Deleted       bool   `json:"deleted"`
}

type scoreRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type scoreResponse struct {
	AppointmentID string     `json:"appointment_id"`
	NoShowScore   *float64   `json:"no_show_score,omitempty"`
	LastScoredAt  *time.Time `json:"last_scored_at,omitempty"`
	RiskBand      string     `json:"risk_band"`
}

type listResponse struct {
	Items    []session.AppointmentView `json:"items"`
	Degraded []string                  `json:"degraded,omitempty"`
}

// Submit creates a REQUESTED appointment on behalf of a requester.
func (h *AppointmentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.PropertyID = strings.TrimSpace(req.PropertyID)
	req.RequesterID = strings.TrimSpace(req.RequesterID)
	if req.PropertyID == "" || req.RequesterID == "" {
		http.Error(w, "property_id and requester_id required", http.StatusBadRequest)
		return
	}

	draft := workflow.Draft{Date: req.Date, Time: req.Time}
	visitAt, err := draft.VisitTime(nil)
	if err != nil {
		http.Error(w, "invalid date/time", http.StatusBadRequest)
		return
	}

	appt, err := h.submitter.CreateAppointment(r.Context(), store.CreateAppointment{
		PropertyID:  req.PropertyID,
		RequesterID: req.RequesterID,
		ScheduledAt: visitAt,
		Location:    strings.TrimSpace(req.Location),
	})
	if err != nil {
		h.logger.Error("request submission failed", "err", err)
		http.Error(w, "failed to submit request", http.StatusBadGateway)
		return
	}

	h.session.Replace(appt)
	h.events.Publish(r.Context(), events.AppointmentRequested, appt)
	writeJSON(w, http.StatusCreated, submitResponse{AppointmentID: appt.ID, Status: string(appt.Status)})
}

// Requests lists the appointments still awaiting a response.
func (h *AppointmentHandler) Requests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	degraded := h.session.Refresh(r.Context())
	writeJSON(w, http.StatusOK, listResponse{Items: h.session.PendingRequests(), Degraded: degraded})
}

// Upcoming runs a reconciliation pass and returns the ordered upcoming
// ACCEPTED set.
func (h *AppointmentHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	degraded := h.session.Refresh(r.Context())
	writeJSON(w, http.StatusOK, listResponse{Items: h.session.UpcomingApproved(), Degraded: degraded})
}

// Respond applies the responder's decision: approve with an optional
// revised schedule/location, or decline, which removes the record.
func (h *AppointmentHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	if !req.Accepted {
		h.decline(w, r, req.AppointmentID)
		return
	}

	appt, ok := h.session.Get(req.AppointmentID)
	if !ok {
		// The working set may simply predate the request.
		h.session.Refresh(r.Context())
		if appt, ok = h.session.Get(req.AppointmentID); !ok {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
	}

	updated, err := h.workflow.Approve(r.Context(), appt, workflow.Draft{
		Date:     req.Date,
		Time:     req.Time,
		Location: req.Location,
	})
	if err != nil {
		if errors.Is(err, store.ErrTransitionRejected) {
			http.Error(w, "appointment is no longer awaiting a response", http.StatusConflict)
			return
		}
		h.logger.Error("approval failed", "err", err, "appointment_id", req.AppointmentID)
		http.Error(w, "failed to approve appointment", http.StatusBadGateway)
		return
	}

	h.session.Replace(updated)
	h.events.Publish(r.Context(), events.AppointmentApproved, updated)
	writeJSON(w, http.StatusOK, respondResponse{
		AppointmentID: updated.ID,
		Status:        string(updated.Status),
		ScheduledAt:   updated.ScheduledAt,
		Location:      updated.Location,
	})
}

func (h *AppointmentHandler) decline(w http.ResponseWriter, r *http.Request, id string) {
	err := h.workflow.Decline(r.Context(), id)
	// The row leaves the working set whichever way the delete went; a
	// record the store still holds resurfaces on the next full fetch.
	h.session.Remove(id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, deleteResponse{AppointmentID: id, Deleted: false})
		return
	}
	h.events.Publish(r.Context(), events.AppointmentDeclined, model.Appointment{ID: id, Status: model.StatusDeclined})
	writeJSON(w, http.StatusOK, deleteResponse{AppointmentID: id, Deleted: true})
}

// Delete removes an appointment outright, whatever its state.
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	if err := h.workflow.Decline(r.Context(), req.AppointmentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.session.Remove(req.AppointmentID)
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete appointment", http.StatusBadGateway)
		return
	}

	h.session.Remove(req.AppointmentID)
	h.events.Publish(r.Context(), events.AppointmentDeleted, model.Appointment{ID: req.AppointmentID})
	writeJSON(w, http.StatusOK, deleteResponse{AppointmentID: req.AppointmentID, Deleted: true})
}

// Score triggers the no-show model for one appointment.
func (h *AppointmentHandler) Score(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	scored, err := h.scoring.Score(r.Context(), req.AppointmentID)
	if err != nil {
		switch {
		case errors.Is(err, scoring.ErrScoreInFlight):
			http.Error(w, "scoring already in progress", http.StatusConflict)
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "appointment not found", http.StatusNotFound)
		default:
			http.Error(w, "scoring failed", http.StatusBadGateway)
		}
		return
	}

	h.session.Replace(scored)
	h.events.Publish(r.Context(), events.AppointmentScored, scored)
	writeJSON(w, http.StatusOK, scoreResponse{
		AppointmentID: scored.ID,
		NoShowScore:   scored.NoShowScore,
		LastScoredAt:  scored.LastScoredAt,
		RiskBand:      scoring.RiskBand(scored.NoShowScore),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
