// internal/cmdlog/ring.go
package cmdlog

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultCapacity is the number of retained command records.
	DefaultCapacity = 128

	// DefaultMaxTags is the legacy UTRL queue depth.
	DefaultMaxTags = 32
)

var (
	ErrTagRange   = errors.New("cmdlog: tag out of range")
	ErrUnknownTag = errors.New("cmdlog: completion for tag with no recorded start")
	ErrStaleSlot  = errors.New("cmdlog: completion for overwritten slot")
)

// Command is what the submission path hands over.
type Command struct {
	Tag         int    `json:"tag"`
	Opcode      byte   `json:"opcode"`
	LBA         uint64 `json:"lba"`
	SectorCount uint32 `json:"sector_count"`
	Retries     int    `json:"retries"`
	Outstanding uint64 `json:"outstanding"` // doorbell bitmap at submission
}

// Entry is one retained command record.
type Entry struct {
	Command

	// Seq is the zero-based all-time submission number.
	Seq  uint64 `json:"seq"`
	Slot int    `json:"slot"`

	Start time.Duration `json:"start_ns"`
	End   time.Duration `json:"end_ns"` // 0 while the command is in flight
}

// Ring is a fixed-capacity command log.
// Start claims and fills a slot under a short mutex; End is lock-free.
// Nothing on either path allocates.
type Ring struct {
	mu    sync.Mutex
	slots []Entry
	last  int
	total uint64

	// ends[slot] is written by End without the mutex.
	ends []atomic.Int64

	// occupant[slot] and pdata[tag] hold Seq+1; zero means empty.
	// pdata is a back-reference only: the slot it names may have been
	// reused since, which End detects through occupant.
	occupant []atomic.Uint64
	pdata    []atomic.Uint64

	now func() time.Duration
}

// testHookReclaim runs inside Start once a reused slot has been
// unpublished and before it is filled.
var testHookReclaim func(slot int)

// Option configures a Ring.
type Option func(*Ring)

// WithClock replaces the monotonic clock. The clock must not return 0.
func WithClock(now func() time.Duration) Option {
	return func(r *Ring) { r.now = now }
}

// New returns a ring with capacity slots tracking tags 0..maxTags-1.
func New(capacity, maxTags int, opts ...Option) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cmdlog: capacity must be > 0, got %d", capacity)
	}
	if maxTags <= 0 {
		return nil, fmt.Errorf("cmdlog: max tags must be > 0, got %d", maxTags)
	}

	epoch := time.Now()
	r := &Ring{
		slots:    make([]Entry, capacity),
		ends:     make([]atomic.Int64, capacity),
		occupant: make([]atomic.Uint64, capacity),
		pdata:    make([]atomic.Uint64, maxTags),
		now: func() time.Duration {
			// +1 keeps the very first reading distinct from "not completed"
			return time.Since(epoch) + 1
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func (r *Ring) Capacity() int { return len(r.slots) }

func (r *Ring) MaxTags() int { return len(r.pdata) }

// Total returns the number of commands ever started.
func (r *Ring) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Start records a submitted command in the next slot.
func (r *Ring) Start(c Command) error {
	if c.Tag < 0 || c.Tag >= len(r.pdata) {
		return fmt.Errorf("%w: %d (max %d)", ErrTagRange, c.Tag, len(r.pdata)-1)
	}
	start := r.now()

	r.mu.Lock()
	slot := r.last
	r.last = (r.last + 1) % len(r.slots)
	seq := r.total
	r.total++

	// Unpublish the old record before clearing its end stamp so a
	// concurrent End for it fails its occupant check instead of
	// stamping the new record.
	r.occupant[slot].Store(0)
	r.ends[slot].Store(0)
	if testHookReclaim != nil {
		testHookReclaim(slot)
	}
	r.slots[slot] = Entry{
		Command: c,
		Seq:     seq,
		Start:   start,
	}
	r.occupant[slot].Store(seq + 1)
	r.pdata[c.Tag].Store(seq + 1)
	r.mu.Unlock()

	return nil
}

// End stamps the completion time on the most recent record of tag.
// Calling it again for the same record moves the stamp forward.
func (r *Ring) End(tag int) error {
	if tag < 0 || tag >= len(r.pdata) {
		return fmt.Errorf("%w: %d (max %d)", ErrTagRange, tag, len(r.pdata)-1)
	}

	ref := r.pdata[tag].Load()
	if ref == 0 {
		return fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}

	slot := int((ref - 1) % uint64(len(r.slots)))
	if r.occupant[slot].Load() != ref {
		return fmt.Errorf("%w: tag %d seq %d", ErrStaleSlot, tag, ref-1)
	}

	end := int64(r.now())
	r.ends[slot].Store(end)

	// A Start may have reclaimed the slot between the check and the store.
	if r.occupant[slot].Load() != ref {
		r.ends[slot].CompareAndSwap(end, 0)
		return fmt.Errorf("%w: tag %d seq %d", ErrStaleSlot, tag, ref-1)
	}
	return nil
}

// Entries returns up to limit retained records, oldest first.
// limit <= 0 means all retained records.
func (r *Ring) Entries(limit int) []Entry {
	entries, _, _ := r.snapshot(limit)
	return entries
}

// snapshot copies the window under the mutex and reports the all-time
// total and the newest slot with it.
func (r *Ring) snapshot(limit int) ([]Entry, uint64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.shown(limit)
	size := len(r.slots)
	first := (r.last - n + size) % size

	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		slot := (first + i) % size
		e := r.slots[slot]
		e.Slot = slot
		e.End = time.Duration(r.ends[slot].Load())
		out = append(out, e)
	}
	return out, r.total, r.lastIndex()
}

// lastIndex is the slot of the newest record.
func (r *Ring) lastIndex() int {
	size := len(r.slots)
	return (r.last - 1 + size) % size
}

func (r *Ring) shown(limit int) int {
	n := len(r.slots)
	if r.total < uint64(n) {
		n = int(r.total)
	}
	if limit > 0 && limit < n {
		n = limit
	}
	return n
}
