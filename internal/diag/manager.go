// internal/diag/manager.go
package diag

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tamzrod/ufsdiag/internal/cmdlog"
	"github.com/tamzrod/ufsdiag/internal/evthist"
)

// DefaultMaxHosts is the number of host controllers one manager serves.
const DefaultMaxHosts = 1

var (
	ErrCapacityExceeded = errors.New("diag: host capacity exceeded")
	ErrNotAttached      = errors.New("diag: handle not attached")
	ErrDuplicateName    = errors.New("diag: host name already attached")
)

// Handle identifies an attached unit. A handle outlives its unit:
// after Detach it resolves to nothing, even if the slot is reused.
type Handle struct {
	idx int
	gen uint32
}

func (h Handle) String() string { return fmt.Sprintf("host#%d.%d", h.idx, h.gen) }

type slot struct {
	unit *Unit
	gen  uint32
}

// Manager owns a fixed number of unit slots.
type Manager struct {
	mu    sync.RWMutex
	slots []slot
	log   *slog.Logger
}

// NewManager returns a manager with room for maxHosts units.
func NewManager(maxHosts int, log *slog.Logger) *Manager {
	if maxHosts <= 0 {
		maxHosts = DefaultMaxHosts
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		slots: make([]slot, maxHosts),
		log:   log,
	}
}

// Capacity returns the maximum number of attached units.
func (m *Manager) Capacity() int { return len(m.slots) }

// Attach builds a unit and places it in a free slot.
func (m *Manager) Attach(cfg UnitConfig) (Handle, error) {
	u, err := newUnit(cfg, m.log)
	if err != nil {
		return Handle{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	free := -1
	for i, s := range m.slots {
		if s.unit == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if s.unit.name == cfg.Name {
			return Handle{}, fmt.Errorf("%w: %s", ErrDuplicateName, cfg.Name)
		}
	}
	if free < 0 {
		return Handle{}, fmt.Errorf("%w: %d hosts attached", ErrCapacityExceeded, len(m.slots))
	}

	s := &m.slots[free]
	s.gen++
	s.unit = u

	m.log.Info("host attached", "host", cfg.Name, "slot", free)
	return Handle{idx: free, gen: s.gen}, nil
}

// Detach deactivates the unit and frees its slot.
// Holders of the *Unit keep a valid, permanently inactive object.
func (m *Manager) Detach(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.resolveLocked(h)
	if u == nil {
		return fmt.Errorf("%w: %s", ErrNotAttached, h)
	}
	u.state.Deactivate()
	m.slots[h.idx].unit = nil

	m.log.Info("host detached", "host", u.name, "slot", h.idx)
	return nil
}

// Unit resolves a handle; nil when detached.
func (m *Manager) Unit(h Handle) *Unit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveLocked(h)
}

func (m *Manager) resolveLocked(h Handle) *Unit {
	if h.idx < 0 || h.idx >= len(m.slots) || h.gen == 0 {
		return nil
	}
	s := m.slots[h.idx]
	if s.gen != h.gen {
		return nil
	}
	return s.unit
}

// Lookup finds an attached unit by name.
func (m *Manager) Lookup(name string) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, s := range m.slots {
		if s.unit != nil && s.unit.name == name {
			return Handle{idx: i, gen: s.gen}, true
		}
	}
	return Handle{}, false
}

// Handles lists attached units in slot order.
func (m *Manager) Handles() []Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Handle
	for i, s := range m.slots {
		if s.unit != nil {
			out = append(out, Handle{idx: i, gen: s.gen})
		}
	}
	return out
}

// ---- entry points for the submission, completion and error paths ----
// Stale handles make every call a no-op.

func (m *Manager) RecordCommandStart(h Handle, c cmdlog.Command) {
	if u := m.Unit(h); u != nil {
		u.RecordCommandStart(c)
	}
}

func (m *Manager) RecordCommandEnd(h Handle, tag int) {
	if u := m.Unit(h); u != nil {
		u.RecordCommandEnd(tag)
	}
}

func (m *Manager) RecordEvent(h Handle, k evthist.Kind, value uint32) {
	if u := m.Unit(h); u != nil {
		u.RecordEvent(k, value)
	}
}

func (m *Manager) CountHibern8(h Handle, enter bool) {
	if u := m.Unit(h); u != nil {
		u.CountHibern8(enter)
	}
}

// Dump renders the unit's full diagnostic state. It never fails.
func (m *Manager) Dump(h Handle, trigger string) {
	if u := m.Unit(h); u != nil {
		u.Dump(trigger)
	}
}

// SetLaneCount configures the PHY lanes dumped for the unit.
func (m *Manager) SetLaneCount(h Handle, n int) error {
	u := m.Unit(h)
	if u == nil {
		return fmt.Errorf("%w: %s", ErrNotAttached, h)
	}
	return u.SetLaneCount(n)
}

// DetachAll detaches every unit, for shutdown.
func (m *Manager) DetachAll() {
	for _, h := range m.Handles() {
		_ = m.Detach(h)
	}
}
