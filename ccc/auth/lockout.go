package auth

import (
	"sync"
	"time"
)

// LockoutSettings configures how many failed logins a remote address may make.
type LockoutSettings struct {
	Threshold int           // Failures within Window that lock the address out, 0 disables the lockout
	Window    time.Duration // Sliding window failures are counted in
}

// Lockout counts failed API logins per remote address over a sliding window.
type Lockout interface {
	// RecordFailure stores a failure and returns the number of failures of addr within the window.
	RecordFailure(addr string, at time.Time) int
	// Locked reports whether addr has reached the threshold within the window ending at now.
	Locked(addr string, now time.Time) bool
	// Reset forgets the failures of addr, e.g. after a successful login.
	Reset(addr string)
}

type nopLockout struct{}

var NopLockout Lockout = &nopLockout{}

func (n *nopLockout) RecordFailure(addr string, at time.Time) int { return 0 }
func (n *nopLockout) Locked(addr string, now time.Time) bool      { return false }
func (n *nopLockout) Reset(addr string)                           {}

type memoryLockout struct {
	settings LockoutSettings

	mu       sync.Mutex
	failures map[string][]time.Time
}

// NewMemoryLockout keeps failures in memory. A zero threshold returns NopLockout.
func NewMemoryLockout(settings LockoutSettings) Lockout {
	if settings.Threshold <= 0 {
		return NopLockout
	}
	return &memoryLockout{
		settings: settings,
		failures: make(map[string][]time.Time),
	}
}

func (l *memoryLockout) RecordFailure(addr string, at time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures[addr] = append(l.prune(addr, at), at)
	return len(l.failures[addr])
}

func (l *memoryLockout) Locked(addr string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.prune(addr, now)) >= l.settings.Threshold
}

func (l *memoryLockout) Reset(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.failures, addr)
}

// prune drops failures of addr older than the window ending at now. The caller holds l.mu.
func (l *memoryLockout) prune(addr string, now time.Time) []time.Time {
	cutoff := now.Add(-l.settings.Window)

	kept := l.failures[addr][:0]
	for _, at := range l.failures[addr] {
		if !at.Before(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) == 0 {
		delete(l.failures, addr)
		return nil
	}
	l.failures[addr] = kept
	return kept
}
