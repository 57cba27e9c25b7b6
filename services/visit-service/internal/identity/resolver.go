package identity

import (
	"strings"

	"github.com/om2108/OneGate/services/visit-service/internal/model"
)

// Placeholders rendered when the source data gives us nothing better.
// "Unnamed"/"No Email" mean a requester record existed but carried no
// usable field; "Unknown User"/"N/A" mean no record matched at all.
const (
	UnnamedRequester = "Unnamed"
	NoEmail          = "No Email"
	UnknownUser      = "Unknown User"
	UnknownEmail     = "N/A"
	UnknownProperty  = "Unknown Property"
)

// Directory resolves requester and property display values from the
// reference snapshots fetched for one reconciliation pass. Resolution
// is total: every path returns a usable value, none returns an error.
type Directory struct {
	users      map[string]model.Identity
	properties map[string]model.Property
}

func NewDirectory(users []model.UserProfile, properties []model.Property) *Directory {
	d := &Directory{
		users:      make(map[string]model.Identity, len(users)),
		properties: make(map[string]model.Property, len(properties)),
	}
	for _, u := range users {
		for _, id := range u.IDs {
			if _, taken := d.users[id]; !taken {
				d.users[id] = u.Identity
			}
		}
	}
	for _, p := range properties {
		if p.ID != "" {
			d.properties[p.ID] = p
		}
	}
	return d
}

// Requester resolves the display identity for an appointment. The
// embedded requester wins when present (it spares a lookup and is the
// richer record); otherwise the normalized foreign key is matched
// against the user snapshot; otherwise the unknown sentinels.
func (d *Directory) Requester(appt model.Appointment) model.Identity {
	if appt.Requester != nil {
		return fill(*appt.Requester)
	}
	if id := strings.TrimSpace(appt.RequesterID); id != "" {
		if found, ok := d.users[id]; ok {
			return fill(found)
		}
	}
	return model.Identity{Name: UnknownUser, Email: UnknownEmail}
}

// PropertyName returns the property's display name, or the unknown
// placeholder on a miss. A missing property is never an error.
func (d *Directory) PropertyName(propertyID string) string {
	if p, ok := d.properties[propertyID]; ok && strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return UnknownProperty
}

func fill(id model.Identity) model.Identity {
	if strings.TrimSpace(id.Name) == "" {
		id.Name = UnnamedRequester
	}
	if strings.TrimSpace(id.Email) == "" {
		id.Email = NoEmail
	}
	return id
}
