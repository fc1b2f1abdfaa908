// Package system provides the production Clock and IDGenerator plus a manual
// clock used by tests.
package system

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/99minutos/identity-service/internal/core/ports"
)

var (
	_ ports.Clock       = Clock{}
	_ ports.IDGenerator = UUIDGenerator{}
	_ ports.IDGenerator = ULIDGenerator{}
)

// Clock reads wall time in UTC.
type Clock struct{}

func (Clock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator produces time-ordered UUIDv7 strings, used for user ids and
// token jti values.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.Must(uuid.NewV7()).String() }

// ULIDGenerator produces ULIDs stamped with the given clock. Revocation records
// use it so their ids sort by revocation time.
type ULIDGenerator struct {
	Clock ports.Clock
}

func (g ULIDGenerator) NewID() string {
	now := time.Now()
	if g.Clock != nil {
		now = g.Clock.Now()
	}
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
