// Package session provides re-entrancy guards for one-time side effects.
package session

import "sync"

// Latch is a one-shot boolean guard. Trip reports whether this caller was the
// one that tripped it, which gives at-most-once execution across re-entrant
// triggers without a mutex around the guarded work itself.
type Latch struct {
	mu      sync.Mutex
	tripped bool
}

// Trip sets the latch and reports whether this call changed it.
func (l *Latch) Trip() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tripped {
		return false
	}
	l.tripped = true
	return true
}

// Tripped reports whether the latch has been set.
func (l *Latch) Tripped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tripped
}

// Reset clears the latch. Only full session teardown may call this.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tripped = false
}

// SessionLock is the in-transition lock. While held, routing forces the
// loading screen regardless of any other state. It is not a mutex: there is no
// contention, only repeated re-entry, so Acquire simply fails when held.
type SessionLock struct {
	mu   sync.Mutex
	held bool
}

// Acquire takes the lock, reporting false if it is already held.
func (l *SessionLock) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false
	}
	l.held = true
	return true
}

// Release clears the lock. Safe to call when not held.
func (l *SessionLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
}

// Held reports whether the lock is currently held.
func (l *SessionLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
