// internal/snapshot/store.go
package snapshot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tamzrod/ufsdiag/internal/regport"
)

var (
	// ErrReadFailed marks a descriptor whose read failed during a refresh.
	ErrReadFailed = errors.New("snapshot: register read failed")

	// ErrLaneCount is returned for lane counts outside 1..regport.MaxLanes.
	ErrLaneCount = errors.New("snapshot: lane count out of range")
)

// LaneValue is the captured state of one descriptor on one lane.
type LaneValue struct {
	Value    uint32 // most recent successful read
	HasValue bool

	// First is the baseline taken by the first refresh. Never rewritten.
	First    uint32
	HasFirst bool

	// Failed is set when the latest refresh could not read this lane.
	// Value then still holds the previous reading.
	Failed bool
}

// Descriptor is one register (std/vs) or attribute (unipro/phy).
type Descriptor struct {
	Name   string
	Space  regport.Space
	Offset uint32
	Lanes  [regport.MaxLanes]LaneValue
}

// PerLane reports whether the descriptor holds one value per lane.
func (d Descriptor) PerLane() bool {
	return d.Space == regport.SpacePhyLane
}

// IsAttribute reports whether the descriptor belongs to the attribute table.
func (d Descriptor) IsAttribute() bool {
	return d.Space == regport.SpaceUnipro || d.Space == regport.SpacePhyLane
}

// Store holds the descriptor set of one host and refreshes it through a port.
type Store struct {
	mu        sync.Mutex
	items     []Descriptor
	laneCount int
	firstDone bool
}

// NewStore resolves a table (selector rows applied) into descriptors.
// Value rows before the first selector belong to the standard space.
func NewStore(table []Item) *Store {
	s := &Store{laneCount: 1}
	space := regport.SpaceStandard

	for _, it := range table {
		if it.Selector {
			space = it.Space
			continue
		}
		s.items = append(s.items, Descriptor{
			Name:   it.Name,
			Space:  space,
			Offset: it.Offset,
		})
	}
	return s
}

// SetLaneCount sets how many PHY lanes are read per lane descriptor.
func (s *Store) SetLaneCount(n int) error {
	if n < 1 || n > regport.MaxLanes {
		return fmt.Errorf("%w: %d", ErrLaneCount, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.laneCount = n
	return nil
}

func (s *Store) LaneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.laneCount
}

// FirstDone reports whether the baseline capture has happened.
func (s *Store) FirstDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstDone
}

// Refresh reads every descriptor in table order.
// It is best-effort: a failing read flags its descriptor and the pass goes on.
// The returned error joins every failure and is informational only.
func (s *Store) Refresh(p regport.Port) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	baseline := !s.firstDone
	var errs []error

	w := &phyWindow{port: p}
	defer func() {
		if cerr := w.close(); cerr != nil {
			errs = append(errs, cerr)
		}
		err = errors.Join(errs...)
	}()

	for i := range s.items {
		d := &s.items[i]

		if d.Space != regport.SpacePhyLane {
			// leaving the PHY group releases the window
			if cerr := w.close(); cerr != nil {
				errs = append(errs, cerr)
			}
		} else if werr := w.open(); werr != nil {
			for lane := 0; lane < s.laneCount; lane++ {
				d.Lanes[lane].Failed = true
			}
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrReadFailed, d.Name, werr))
			continue
		}

		lanes := 1
		if d.PerLane() {
			lanes = s.laneCount
		}

		for lane := 0; lane < lanes; lane++ {
			v, rerr := s.read(p, d, lane)
			lv := &d.Lanes[lane]
			if rerr != nil {
				lv.Failed = true
				errs = append(errs, fmt.Errorf("%w: %s/%s[%d]: %v", ErrReadFailed, d.Space, d.Name, lane, rerr))
				continue
			}
			lv.Value = v
			lv.HasValue = true
			lv.Failed = false
			if baseline {
				lv.First = v
				lv.HasFirst = true
			}
		}
	}

	s.firstDone = true
	return nil
}

func (s *Store) read(p regport.Port, d *Descriptor, lane int) (uint32, error) {
	if d.Space == regport.SpacePhyLane {
		return p.ReadPhyLane(lane, d.Offset)
	}
	return regport.Read(p, d.Space, d.Offset)
}

// Registers returns a copy of the std/vs descriptors.
func (s *Store) Registers() []Descriptor {
	return s.filter(func(d Descriptor) bool { return !d.IsAttribute() })
}

// Attributes returns a copy of the unipro/phy descriptors.
func (s *Store) Attributes() []Descriptor {
	return s.filter(Descriptor.IsAttribute)
}

func (s *Store) filter(keep func(Descriptor) bool) []Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Descriptor
	for _, d := range s.items {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// phyWindow tracks the PHY access window across one refresh pass.
type phyWindow struct {
	port   regport.Port
	opened bool
	failed error
}

func (w *phyWindow) open() error {
	if w.opened {
		return nil
	}
	if w.failed != nil {
		return w.failed
	}
	if err := w.port.EnablePhyAccess(); err != nil {
		w.failed = err
		return err
	}
	w.opened = true
	return nil
}

func (w *phyWindow) close() error {
	w.failed = nil
	if !w.opened {
		return nil
	}
	w.opened = false
	if err := w.port.DisablePhyAccess(); err != nil {
		return fmt.Errorf("snapshot: close phy window: %w", err)
	}
	return nil
}
