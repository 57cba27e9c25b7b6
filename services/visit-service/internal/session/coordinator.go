package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/om2108/OneGate/services/visit-service/internal/identity"
	"github.com/om2108/OneGate/services/visit-service/internal/model"
	"github.com/om2108/OneGate/services/visit-service/internal/reconcile"
	"github.com/om2108/OneGate/services/visit-service/internal/refcache"
	"github.com/om2108/OneGate/services/visit-service/internal/scoring"
)

// Store is the slice of the repository contract the coordinator needs.
type Store interface {
	ListAppointments(ctx context.Context) ([]model.Appointment, error)
	ListProperties(ctx context.Context) ([]model.Property, error)
	ListUsers(ctx context.Context) ([]model.UserProfile, error)
}

// Sweeper retires an expired partition; see reconcile.Engine.
type Sweeper interface {
	Sweep(ctx context.Context, expired []model.Appointment)
}

// Config fixes the coordinator's deployment context at construction.
// ResolveUsers is off for deployments whose store embeds requester
// identity on every appointment and has no user collection to consult.
type Config struct {
	SocietyID    string
	ResolveUsers bool
}

// Coordinator owns the in-memory working set surfaced to responders:
// it fetches the appointment and reference collections, runs the
// expiry classification, hands the expired partition to the sweeper,
// and serves ordered, enriched views. All mutation of the working set
// goes through the coordinator's lock.
type Coordinator struct {
	store   Store
	sweeper Sweeper
	cache   *refcache.Cache
	logger  *slog.Logger
	cfg     Config

	mu        sync.Mutex
	upcoming  []model.Appointment // ACCEPTED, not expired, repository fetch order
	requested []model.Appointment // awaiting a response, repository fetch order
	directory *identity.Directory
}

func NewCoordinator(store Store, sweeper Sweeper, cache *refcache.Cache, logger *slog.Logger, cfg Config) *Coordinator {
	return &Coordinator{
		store:     store,
		sweeper:   sweeper,
		cache:     cache,
		logger:    logger,
		cfg:       cfg,
		directory: identity.NewDirectory(nil, nil),
	}
}

// Refresh runs one reconciliation pass: fetch the three collections
// concurrently, classify, trigger the expiry sweep, rebuild the
// directory. A failed fetch degrades that collection to empty for the
// pass instead of failing the pass; the returned slice names the
// collections that degraded so the caller can surface a retryable
// state. The expired partition is hidden from the working set
// immediately, before its deletions settle.
func (c *Coordinator) Refresh(ctx context.Context) (degraded []string) {
	var (
		mu    sync.Mutex
		appts []model.Appointment
		props []model.Property
		users []model.UserProfile
	)
	fail := func(name string, err error) {
		c.logger.Error("reference fetch failed", "err", err, "collection", name)
		mu.Lock()
		degraded = append(degraded, name)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if appts, err = c.store.ListAppointments(gctx); err != nil {
			fail("appointments", err)
		}
		return nil
	})
	g.Go(func() error {
		if cached, ok := c.cache.Properties(); ok {
			props = cached
			return nil
		}
		fetched, err := c.store.ListProperties(gctx)
		if err != nil {
			fail("properties", err)
			return nil
		}
		c.cache.SetProperties(fetched)
		props = fetched
		return nil
	})
	if c.cfg.ResolveUsers {
		g.Go(func() error {
			if cached, ok := c.cache.Users(); ok {
				users = cached
				return nil
			}
			fetched, err := c.store.ListUsers(gctx)
			if err != nil {
				fail("users", err)
				return nil
			}
			c.cache.SetUsers(fetched)
			users = fetched
			return nil
		})
	}
	_ = g.Wait()

	upcoming, expired := reconcile.Split(appts, time.Now().UTC())
	requested := make([]model.Appointment, 0)
	for _, appt := range appts {
		if appt.Status == model.StatusRequested {
			requested = append(requested, appt)
		}
	}

	c.mu.Lock()
	c.upcoming = upcoming
	c.requested = requested
	c.directory = identity.NewDirectory(users, props)
	c.mu.Unlock()

	if len(expired) > 0 {
		// The sweep outlives the triggering request on purpose.
		go c.sweeper.Sweep(context.WithoutCancel(ctx), expired)
	}
	return degraded
}

// AppointmentView is the display projection of one appointment.
type AppointmentView struct {
	ID             string     `json:"appointment_id"`
	PropertyID     string     `json:"property_id"`
	PropertyName   string     `json:"property_name"`
	RequesterName  string     `json:"requester_name"`
	RequesterEmail string     `json:"requester_email"`
	Status         string     `json:"status"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Location       string     `json:"location,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	NoShowScore    *float64   `json:"no_show_score,omitempty"`
	RiskBand       string     `json:"risk_band"`
}

// UpcomingApproved returns the upcoming ACCEPTED set from the last
// pass, ordered for display and enriched.
func (c *Coordinator) UpcomingApproved() []AppointmentView {
	c.mu.Lock()
	defer c.mu.Unlock()
	appts := make([]model.Appointment, len(c.upcoming))
	copy(appts, c.upcoming)
	Order(appts)
	return c.viewsLocked(appts)
}

// PendingRequests returns the appointments still awaiting a response,
// enriched, in repository fetch order.
func (c *Coordinator) PendingRequests() []AppointmentView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewsLocked(c.requested)
}

// Get finds an appointment in the working set by id.
func (c *Coordinator) Get(id string) (model.Appointment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, appt := range c.requested {
		if appt.ID == id {
			return appt, true
		}
	}
	for _, appt := range c.upcoming {
		if appt.ID == id {
			return appt, true
		}
	}
	return model.Appointment{}, false
}

// Replace installs an authoritative copy of one appointment, moving it
// between partitions if its status changed. Speculative local edits
// are never merged; the store's record wins wholesale.
func (c *Coordinator) Replace(appt model.Appointment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requested = removeByID(c.requested, appt.ID)
	c.upcoming = removeByID(c.upcoming, appt.ID)
	switch appt.Status {
	case model.StatusRequested:
		c.requested = append(c.requested, appt)
	case model.StatusAccepted:
		c.upcoming = append(c.upcoming, appt)
	}
}

// Remove drops an appointment from the working set. Used after a
// decline or delete, including ones whose backing call failed: the row
// disappears from the view either way and a later pass re-surfaces it
// if the store still has it.
func (c *Coordinator) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requested = removeByID(c.requested, id)
	c.upcoming = removeByID(c.upcoming, id)
}

func (c *Coordinator) viewsLocked(appts []model.Appointment) []AppointmentView {
	views := make([]AppointmentView, 0, len(appts))
	for _, appt := range appts {
		who := c.directory.Requester(appt)
		views = append(views, AppointmentView{
			ID:             appt.ID,
			PropertyID:     appt.PropertyID,
			PropertyName:   c.directory.PropertyName(appt.PropertyID),
			RequesterName:  who.Name,
			RequesterEmail: who.Email,
			Status:         string(appt.Status),
			ScheduledAt:    appt.ScheduledAt,
			Location:       appt.Location,
			CreatedAt:      appt.CreatedAt,
			NoShowScore:    appt.NoShowScore,
			RiskBand:       scoring.RiskBand(appt.NoShowScore),
		})
	}
	return views
}

func removeByID(appts []model.Appointment, id string) []model.Appointment {
	out := appts[:0]
	for _, appt := range appts {
		if appt.ID != id {
			out = append(out, appt)
		}
	}
	return out
}
