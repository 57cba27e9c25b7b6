package refcache

import (
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/om2108/OneGate/services/visit-service/internal/model"
)

const (
	keyProperties = "properties"
	keyUsers      = "users"
)

// Cache holds the property and user reference snapshots between
// reconciliation passes. Snapshots are read-only and allowed to go
// stale within the TTL: a property renamed mid-window keeps its old
// display name until the next fetch.
type Cache struct {
	c *cache.Cache
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{c: cache.New(ttl, 2*ttl)}
}

func (rc *Cache) Properties() ([]model.Property, bool) {
	v, ok := rc.c.Get(keyProperties)
	if !ok {
		return nil, false
	}
	props, ok := v.([]model.Property)
	return props, ok
}

func (rc *Cache) SetProperties(props []model.Property) {
	rc.c.SetDefault(keyProperties, props)
}

func (rc *Cache) Users() ([]model.UserProfile, bool) {
	v, ok := rc.c.Get(keyUsers)
	if !ok {
		return nil, false
	}
	users, ok := v.([]model.UserProfile)
	return users, ok
}

func (rc *Cache) SetUsers(users []model.UserProfile) {
	rc.c.SetDefault(keyUsers, users)
}
