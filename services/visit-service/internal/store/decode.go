package store

import (
	"strings"
	"time"

	"github.com/om2108/OneGate/services/visit-service/internal/model"
)

// wireInstant is the store's local-time instant format for visit
// times; createdAt and lastScoredAt usually arrive as RFC 3339.
const wireInstant = "2006-01-02T15:04:05"

// The store's payload shapes are heterogeneous: the same appointment
// may arrive with id or _id, an embedded tenant/user object or a bare
// foreign key under one of several names. Everything is normalized
// into the canonical model types here, before any business logic runs.

type appointmentPayload struct {
	ID           string          `json:"id"`
	AltID        string          `json:"_id"`
	PropertyID   string          `json:"propertyId"`
	UserID       string          `json:"userId"`
	TenantID     string          `json:"tenantId"`
	RequestedBy  string          `json:"requestedBy"`
	Status       string          `json:"status"`
	DateTime     string          `json:"dateTime"`
	Location     string          `json:"location"`
	CreatedAt    string          `json:"createdAt"`
	Tenant       *personPayload  `json:"tenant"`
	User         *personPayload  `json:"user"`
	NoShowScore  *float64        `json:"noShowScore"`
	LastScoredAt string          `json:"lastScoredAt"`
}

type personPayload struct {
	ID           string `json:"id"`
	AltID        string `json:"_id"`
	UserID       string `json:"userId"`
	AltUserID    string `json:"_userId"`
	Name         string `json:"name"`
	FullName     string `json:"fullName"`
	Username     string `json:"username"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	EmailAddress string `json:"emailAddress"`
}

type propertyPayload struct {
	ID       string `json:"id"`
	AltID    string `json:"_id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Location string `json:"location"`
}

func (p appointmentPayload) toModel() model.Appointment {
	appt := model.Appointment{
		ID:          firstNonEmpty(p.ID, p.AltID),
		PropertyID:  p.PropertyID,
		RequesterID: firstNonEmpty(p.UserID, p.TenantID, p.RequestedBy),
		Status:      normalizeStatus(p.Status),
		ScheduledAt: parseInstant(p.DateTime),
		Location:    p.Location,
		NoShowScore: p.NoShowScore,
	}
	if t := parseInstant(p.CreatedAt); t != nil {
		appt.CreatedAt = *t
	}
	appt.LastScoredAt = parseInstant(p.LastScoredAt)

	embedded := p.Tenant
	if embedded == nil {
		embedded = p.User
	}
	if embedded != nil {
		id := embedded.identity()
		appt.Requester = &id
	}
	return appt
}

func (p personPayload) identity() model.Identity {
	name := firstNonEmpty(p.Name, p.FullName, p.Username)
	if name == "" {
		name = strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	}
	return model.Identity{
		Name:  name,
		Email: firstNonEmpty(p.Email, p.EmailAddress),
	}
}

func (p personPayload) toProfile() model.UserProfile {
	var ids []string
	for _, id := range []string{p.ID, p.AltID, p.UserID, p.AltUserID} {
		if strings.TrimSpace(id) != "" {
			ids = append(ids, id)
		}
	}
	return model.UserProfile{IDs: ids, Identity: p.identity()}
}

func (p propertyPayload) toModel() model.Property {
	return model.Property{
		ID:       firstNonEmpty(p.ID, p.AltID),
		Name:     firstNonEmpty(p.Name, p.Title),
		Location: p.Location,
	}
}

// normalizeStatus upper-cases and folds the legacy "approved" value
// some store deployments still emit.
func normalizeStatus(raw string) model.Status {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "APPROVED" {
		return model.StatusAccepted
	}
	return model.Status(s)
}

// parseInstant accepts the store's two instant shapes. A value that
// parses as neither yields nil: the reconciliation engine treats a
// missing instant as "never expires", so a malformed timestamp can
// never cause data to be destroyed.
func parseInstant(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse(wireInstant, raw); err == nil {
		return &t
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
