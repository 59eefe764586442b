// internal/cmdlog/render.go
package cmdlog

import (
	"fmt"
	"io"
	"time"
)

// CurrentMarker flags the newest record in a rendered log.
const CurrentMarker = "<--"

// Render writes up to limit records oldest first, one line each.
func (r *Ring) Render(w io.Writer, limit int) {
	entries, total, last := r.snapshot(limit)

	fmt.Fprintln(w, ":---------------------------------------------------")
	fmt.Fprintln(w, ":\t\tCMD LOG")
	fmt.Fprintf(w, ":\t\ttotal %d, retained %d, shown %d\n", total, min(total, uint64(len(r.slots))), len(entries))
	fmt.Fprintln(w, ":---------------------------------------------------")

	for _, e := range entries {
		line := fmt.Sprintf(
			"%3d: seq %6d tag %2d op 0x%02x lba %10d sct %5d retry %d start %s end %s outstanding 0x%016x",
			e.Slot, e.Seq, e.Tag, e.Opcode, e.LBA, e.SectorCount, e.Retries,
			stamp(e.Start), stamp(e.End), e.Outstanding,
		)
		if e.Slot == last {
			line += " " + CurrentMarker
		}
		fmt.Fprintln(w, line)
	}
}

// stamp formats a monotonic timestamp like a kernel log prefix.
func stamp(d time.Duration) string {
	if d == 0 {
		return "       pending"
	}
	us := d.Microseconds()
	return fmt.Sprintf("%7d.%06d", us/1_000_000, us%1_000_000)
}
