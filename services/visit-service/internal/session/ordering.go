package session

import (
	"sort"

	"github.com/om2108/OneGate/services/visit-service/internal/model"
)

// Order sorts appointments for display: soonest visit first, with
// unscheduled appointments ahead of everything. An undated request
// still needs the responder's attention and must not sink below the
// dated ones. The
// sort is stable, so equal instants keep repository fetch order and
// re-sorting a sorted list changes nothing.
func Order(appts []model.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		a, b := appts[i].ScheduledAt, appts[j].ScheduledAt
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
}
