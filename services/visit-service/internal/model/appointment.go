package model

import "time"

// Status is the persisted lifecycle state of a visit appointment.
// EXPIRED is intentionally absent: it is a derived classification
// computed against wall-clock time at read time, never stored.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusAccepted  Status = "ACCEPTED"
	StatusDeclined  Status = "DECLINED"
)

// Identity is a display-ready requester. Fields may be empty when the
// source record carried no usable name or email; callers fill
// placeholders at the presentation edge.
type Identity struct {
	Name  string
	Email string
}

type Appointment struct {
	ID          string
	PropertyID  string
	RequesterID string // normalized from userId/tenantId/requestedBy
	// Requester is set when the store enriched the payload server-side
	// with an embedded tenant/user object. Preferred over a directory
	// lookup when present.
	Requester *Identity
	Status    Status
	// ScheduledAt is the agreed visit time. Absent means "no fixed
	// time yet"; such appointments never expire.
	ScheduledAt  *time.Time
	Location     string
	CreatedAt    time.Time
	NoShowScore  *float64 // in [0,1]; absent until scored
	LastScoredAt *time.Time
}

type Property struct {
	ID       string
	Name     string
	Location string
}

// UserProfile is one row of the store's user collection. The same
// profile may be keyed under several id fields across deployments, so
// every non-empty alias is kept for lookup.
type UserProfile struct {
	IDs      []string
	Identity Identity
}
