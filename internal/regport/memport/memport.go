// internal/regport/memport/memport.go
package memport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tamzrod/ufsdiag/internal/regport"
)

// ErrWindowClosed is returned by PHY reads while the access window is closed.
var ErrWindowClosed = errors.New("memport: phy access window closed")

type key struct {
	space  regport.Space
	lane   int
	offset uint32
}

// Port is an in-memory regport.Port.
// It backs the "sim" driver and the tests of every consumer.
type Port struct {
	mu sync.Mutex

	regs  map[key]uint32
	fails map[key]error

	windowOpen  bool
	windowFail  error
	windowOpens int
	windowClose int

	frozen  bool
	freezes int
	thaws   int

	reads int
}

// New returns an empty port. Unset registers read as zero.
func New() *Port {
	return &Port{
		regs:  make(map[key]uint32),
		fails: make(map[key]error),
	}
}

// Set stores a value. lane is ignored for non-PHY spaces.
func (p *Port) Set(s regport.Space, lane int, offset uint32, v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs[mkKey(s, lane, offset)] = v
}

// Fail makes every following read of the location return err.
// A nil err clears the fault.
func (p *Port) Fail(s regport.Space, lane int, offset uint32, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := mkKey(s, lane, offset)
	if err == nil {
		delete(p.fails, k)
		return
	}
	p.fails[k] = err
}

// FailWindow makes EnablePhyAccess return err. nil clears it.
func (p *Port) FailWindow(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.windowFail = err
}

func mkKey(s regport.Space, lane int, offset uint32) key {
	if s != regport.SpacePhyLane {
		lane = 0
	}
	return key{space: s, lane: lane, offset: offset}
}

func (p *Port) read(k key) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reads++
	if k.space == regport.SpacePhyLane && !p.windowOpen {
		return 0, ErrWindowClosed
	}
	if err, ok := p.fails[k]; ok {
		return 0, err
	}
	return p.regs[k], nil
}

// ---- regport.Port ----

func (p *Port) ReadStandard(offset uint32) (uint32, error) {
	return p.read(mkKey(regport.SpaceStandard, 0, offset))
}

func (p *Port) ReadVendor(offset uint32) (uint32, error) {
	return p.read(mkKey(regport.SpaceVendor, 0, offset))
}

func (p *Port) ReadUnipro(attr uint32) (uint32, error) {
	return p.read(mkKey(regport.SpaceUnipro, 0, attr))
}

func (p *Port) ReadPhyLane(lane int, offset uint32) (uint32, error) {
	if lane < 0 || lane >= regport.MaxLanes {
		return 0, fmt.Errorf("memport: lane %d out of range", lane)
	}
	return p.read(mkKey(regport.SpacePhyLane, lane, offset))
}

func (p *Port) EnablePhyAccess() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.windowFail != nil {
		return p.windowFail
	}
	p.windowOpen = true
	p.windowOpens++
	return nil
}

func (p *Port) DisablePhyAccess() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.windowOpen = false
	p.windowClose++
	return nil
}

// ---- regport.CaptureFreezer ----

func (p *Port) FreezeCapture() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = true
	p.freezes++
	return nil
}

func (p *Port) ThawCapture() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = false
	p.thaws++
	return nil
}

// ---- introspection ----

// Stats reports access counters.
type Stats struct {
	Reads        int
	WindowOpens  int
	WindowCloses int
	WindowOpen   bool
	Freezes      int
	Thaws        int
	Frozen       bool
}

func (p *Port) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Reads:        p.reads,
		WindowOpens:  p.windowOpens,
		WindowCloses: p.windowClose,
		WindowOpen:   p.windowOpen,
		Freezes:      p.freezes,
		Thaws:        p.thaws,
		Frozen:       p.frozen,
	}
}
