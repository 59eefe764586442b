// internal/dump/dump.go
package dump

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/tamzrod/ufsdiag/internal/cmdlog"
	"github.com/tamzrod/ufsdiag/internal/evthist"
	"github.com/tamzrod/ufsdiag/internal/regport"
	"github.com/tamzrod/ufsdiag/internal/sink"
	"github.com/tamzrod/ufsdiag/internal/snapshot"
)

// State holds the per-host flags the coordinator reads and updates.
// The zero value is an inactive host.
type State struct {
	active    atomic.Bool
	dumping   atomic.Bool
	firstDone atomic.Bool
	dumps     atomic.Uint64

	hibern8Enter atomic.Uint64
	hibern8Exit  atomic.Uint64
}

func (s *State) Activate()        { s.active.Store(true) }
func (s *State) Deactivate()      { s.active.Store(false) }
func (s *State) Active() bool     { return s.active.Load() }
func (s *State) FirstDone() bool  { return s.firstDone.Load() }
func (s *State) Dumps() uint64    { return s.dumps.Load() }
func (s *State) InProgress() bool { return s.dumping.Load() }

func (s *State) Hibern8() (enter, exit uint64) {
	return s.hibern8Enter.Load(), s.hibern8Exit.Load()
}

// CountHibern8 counts one auto-hibern8 entry (enter=true) or exit.
func (s *State) CountHibern8(enter bool) {
	if enter {
		s.hibern8Enter.Add(1)
		return
	}
	s.hibern8Exit.Add(1)
}

// Target is everything one dump reads from.
type Target struct {
	Name    string
	State   *State
	Store   *snapshot.Store
	Log     *cmdlog.Ring
	History *evthist.Table
	Capture []CaptureRegion

	// Logger receives failures; they never reach the caller.
	Logger *slog.Logger
}

// Result summarizes one Dump call.
type Result struct {
	Skipped    string // non-empty when nothing was rendered
	First      bool
	ReadErrors bool
}

// Dump refreshes the snapshots and renders the whole diagnostic state of t
// to out. It is best-effort and never fails: read and sink errors are logged.
// Overlapping dumps of the same host are dropped.
func Dump(t *Target, port regport.Port, out sink.Sink, trigger string) Result {
	log := t.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("host", t.Name, "trigger", trigger)

	if !t.State.Active() {
		return Result{Skipped: "inactive"}
	}
	if !t.State.dumping.CompareAndSwap(false, true) {
		log.Warn("dump already in progress, skipped")
		return Result{Skipped: "in progress"}
	}
	defer t.State.dumping.Store(false)

	res := Result{First: !t.State.firstDone.Load()}
	n := t.State.dumps.Add(1)

	if err := t.Store.Refresh(port); err != nil {
		res.ReadErrors = true
		log.Warn("register refresh incomplete", "err", err)
	}

	w := sink.NewLineWriter(out)

	enter, exit := t.State.Hibern8()
	fmt.Fprintf(w, "===== %s: dump #%d (%s)%s =====\n", t.Name, n, trigger, firstTag(res.First))
	fmt.Fprintf(w, "ah8_enter count: %d, ah8_exit count: %d\n", enter, exit)

	t.Store.RenderRegisters(w)
	t.Store.RenderAttributes(w)
	renderCapture(w, log, port, t.Capture)
	t.Log.Render(w, t.Log.Capacity())
	t.History.RenderAll(w)

	fmt.Fprintf(w, "===== %s: dump #%d end =====\n", t.Name, n)
	_ = w.Close()

	t.State.firstDone.Store(true)

	if err := sink.Flush(out); err != nil {
		log.Error("dump sink flush failed", "err", err)
	}
	return res
}

func firstTag(first bool) string {
	if first {
		return " first"
	}
	return ""
}

// ---- capture buffer ----

// MaxCaptureBytes bounds each capture region.
const MaxCaptureBytes = 512

// CaptureRegion is a fixed scratch area read out word by word.
type CaptureRegion struct {
	Name  string
	Space regport.Space
	Base  uint32
	Size  int // bytes, multiple of 4, clamped to 0..MaxCaptureBytes
}

func renderCapture(w io.Writer, log *slog.Logger, port regport.Port, regions []CaptureRegion) {
	fmt.Fprintln(w, ":---------------------------------------------------")
	fmt.Fprintln(w, ":\t\tCAPTURE BUFFER")
	fmt.Fprintln(w, ":---------------------------------------------------")

	if len(regions) == 0 {
		fmt.Fprintln(w, "No capture region")
		return
	}

	if f, ok := port.(regport.CaptureFreezer); ok {
		if err := f.FreezeCapture(); err != nil {
			log.Warn("capture freeze failed", "err", err)
		}
		defer func() {
			if err := f.ThawCapture(); err != nil {
				log.Warn("capture thaw failed", "err", err)
			}
		}()
	}

	for _, r := range regions {
		data, bad := readRegion(port, r)
		hexdump(w, r, data, bad)
	}
}

// readRegion returns the region bytes (little-endian words) and a mask of
// words that could not be read.
func readRegion(port regport.Port, r CaptureRegion) ([]byte, []bool) {
	size := min(max(r.Size, 0), MaxCaptureBytes) &^ 3

	data := make([]byte, size)
	bad := make([]bool, size/4)
	for off := 0; off < size; off += 4 {
		v, err := regport.Read(port, r.Space, r.Base+uint32(off))
		if err != nil {
			bad[off/4] = true
			continue
		}
		data[off] = byte(v)
		data[off+1] = byte(v >> 8)
		data[off+2] = byte(v >> 16)
		data[off+3] = byte(v >> 24)
	}
	return data, bad
}

func hexdump(w io.Writer, r CaptureRegion, data []byte, bad []bool) {
	fmt.Fprintf(w, "[%s] %s @0x%08x, %d bytes\n", r.Space, r.Name, r.Base, len(data))
	for line := 0; line < len(data); line += 16 {
		fmt.Fprintf(w, "%s +0x%03x:", r.Name, line)
		for i := line; i < line+16 && i < len(data); i++ {
			if bad[i/4] {
				fmt.Fprint(w, " ??")
				continue
			}
			fmt.Fprintf(w, " %02x", data[i])
		}
		fmt.Fprintln(w)
	}
}
