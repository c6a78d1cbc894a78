package notifications

import (
	"sync"
	"time"
)

const DefaultCooldown = 100 * time.Second

// Cooldown gates how often a camera may raise an alarm. The zero value allows an alarm
// at once and then never again until Interval has passed.
type Cooldown struct {
	Interval time.Duration

	mu       sync.Mutex
	lastSent time.Time
	sent     bool
}

func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{Interval: interval}
}

// ready reports whether an alarm may be sent at now. The interval must be strictly
// exceeded. The caller holds c.mu.
func (c *Cooldown) ready(now time.Time) bool {
	return !c.sent || now.Sub(c.lastSent) > c.Interval
}

// TryMark marks the cooldown and returns true when it was ready at now.
func (c *Cooldown) TryMark(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready(now) {
		return false
	}
	c.lastSent = now
	c.sent = true
	return true
}

// LastSent returns the time of the last alarm and whether one was ever sent.
func (c *Cooldown) LastSent() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSent, c.sent
}
