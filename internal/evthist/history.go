// internal/evthist/history.go
package evthist

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultLength is the number of records kept per kind.
const DefaultLength = 8

// Kind classifies an abnormal event.
type Kind int

const (
	PAErr Kind = iota
	DLErr
	NLErr
	TLErr
	DMEErr
	AutoHibern8Err
	FatalErr
	LinkStartupFail
	ResumeErr
	SuspendErr
	DevReset
	HostReset
	Abort

	NumKinds
)

var kindNames = [NumKinds]string{
	PAErr:           "pa_err",
	DLErr:           "dl_err",
	NLErr:           "nl_err",
	TLErr:           "tl_err",
	DMEErr:          "dme_err",
	AutoHibern8Err:  "auto_hibern8_err",
	FatalErr:        "fatal_err",
	LinkStartupFail: "link_startup_fail",
	ResumeErr:       "resume_fail",
	SuspendErr:      "suspend_fail",
	DevReset:        "dev_reset",
	HostReset:       "host_reset",
	Abort:           "task_abort",
}

func (k Kind) String() string {
	if k < 0 || k >= NumKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a rendered kind name back to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("evthist: unknown kind %q", name)
}

// Record is one history slot. At == 0 means the slot was never written.
type Record struct {
	Value    uint32
	At       time.Duration
	Occupied bool
}

// Table keeps a short rolling history per kind.
type Table struct {
	mu     sync.Mutex
	length int
	recs   [NumKinds][]Record
	pos    [NumKinds]int
	count  [NumKinds]uint64
	now    func() time.Duration
}

// Option configures a Table.
type Option func(*Table)

// WithClock replaces the monotonic clock. The clock must not return 0.
func WithClock(now func() time.Duration) Option {
	return func(t *Table) { t.now = now }
}

// New returns a table keeping length records per kind.
func New(length int, opts ...Option) (*Table, error) {
	if length <= 0 {
		return nil, fmt.Errorf("evthist: length must be > 0, got %d", length)
	}

	epoch := time.Now()
	t := &Table{
		length: length,
		now:    func() time.Duration { return time.Since(epoch) + 1 },
	}
	for k := range t.recs {
		t.recs[k] = make([]Record, length)
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Record stores value for kind and returns the all-time count for kind.
func (t *Table) Record(k Kind, value uint32) (uint64, error) {
	if k < 0 || k >= NumKinds {
		return 0, fmt.Errorf("evthist: unknown kind %d", int(k))
	}
	at := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.recs[k][t.pos[k]] = Record{Value: value, At: at, Occupied: true}
	t.pos[k] = (t.pos[k] + 1) % t.length
	t.count[k]++
	return t.count[k], nil
}

// Count returns how many times kind was recorded.
func (t *Table) Count(k Kind) uint64 {
	if k < 0 || k >= NumKinds {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count[k]
}

// Records returns a copy of the slots of kind in storage order.
func (t *Table) Records(k Kind) []Record {
	if k < 0 || k >= NumKinds {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Record(nil), t.recs[k]...)
}

// RenderAll writes every kind's history in storage order.
func (t *Table) RenderAll(w io.Writer) {
	fmt.Fprintln(w, ":---------------------------------------------------")
	fmt.Fprintln(w, ":\t\tEVENT HISTORY")
	fmt.Fprintln(w, ":---------------------------------------------------")

	for k := Kind(0); k < NumKinds; k++ {
		recs := t.Records(k)
		found := false
		for i, r := range recs {
			if r.At == 0 {
				continue
			}
			found = true
			us := r.At.Microseconds()
			fmt.Fprintf(w, "%s[%d] = 0x%08x at %d.%06d\n", k, i, r.Value, us/1_000_000, us%1_000_000)
		}
		if !found {
			fmt.Fprintf(w, "No record of %s\n", k)
		}
	}
}
