// internal/status/tracker.go
package status

import (
	"sync"
	"time"
)

// Tracker owns one host's Snapshot. The poller reports observations,
// a 1 Hz ticker advances seconds-in-error and marks silent hosts stale,
// and readers copy the snapshot.
type Tracker struct {
	mu       sync.Mutex
	snap     Snapshot
	lastSeen time.Time // last Observe, zero before the first
	now      func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Observe records one poll outcome. code 0 means healthy.
// It reports whether the snapshot changed.
func (t *Tracker) Observe(code uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health == HealthDisabled {
		return false
	}
	t.lastSeen = t.now()

	changed := false
	if code == 0 {
		// Recovery / OK
		if t.snap.Health != HealthOK {
			t.snap.Health = HealthOK
			changed = true
		}
		if t.snap.LastErrorCode != 0 {
			t.snap.LastErrorCode = 0
			changed = true
		}
		if t.snap.SecondsInError != 0 {
			t.snap.SecondsInError = 0
			changed = true
		}
	} else {
		if t.snap.Health != HealthError {
			t.snap.Health = HealthError
			changed = true
		}
		if t.snap.LastErrorCode != code {
			t.snap.LastErrorCode = code
			changed = true
		}
		// seconds_in_error increments on Tick only
	}

	if changed {
		t.snap.UpdatedAt = t.now()
	}
	return changed
}

// Tick advances seconds-in-error while the host is not OK.
func (t *Tracker) Tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.snap.Health {
	case HealthOK, HealthDisabled:
		return false
	}
	if t.snap.SecondsInError >= MaxSecondsInError {
		return false
	}
	t.snap.SecondsInError++
	t.snap.UpdatedAt = t.now()
	return true
}

// MarkStale moves the host to HealthStale when nothing has been observed
// for at least after. A host never observed stays unknown. The last error
// code is kept and seconds-in-error keeps counting from where it was.
// It reports whether the snapshot changed.
func (t *Tracker) MarkStale(after time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.snap.Health {
	case HealthStale, HealthDisabled:
		return false
	}
	if t.lastSeen.IsZero() {
		return false
	}
	now := t.now()
	if now.Sub(t.lastSeen) < after {
		return false
	}
	t.snap.Health = HealthStale
	t.snap.UpdatedAt = now
	return true
}

// Disable marks the host detached. Later observations are ignored.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{Health: HealthDisabled, UpdatedAt: t.now()}
}
