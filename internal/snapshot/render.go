// internal/snapshot/render.go
package snapshot

import (
	"fmt"
	"io"
)

// RenderRegisters writes one line per register with current and baseline values.
func (s *Store) RenderRegisters(w io.Writer) {
	fmt.Fprintln(w, ":---------------------------------------------------")
	fmt.Fprintln(w, ":\t\tREGISTER")
	fmt.Fprintln(w, ":---------------------------------------------------")
	for _, d := range s.Registers() {
		fmt.Fprintf(w, "[%s] %-28s(0x%04x): %s\n", d.Space, d.Name, d.Offset, laneString(d.Lanes[0]))
	}
}

// RenderAttributes writes one line per attribute; PHY attributes get one
// column per active lane.
func (s *Store) RenderAttributes(w io.Writer) {
	lanes := s.LaneCount()

	fmt.Fprintln(w, ":---------------------------------------------------")
	fmt.Fprintln(w, ":\t\tATTRIBUTE")
	fmt.Fprintln(w, ":---------------------------------------------------")
	for _, d := range s.Attributes() {
		if !d.PerLane() {
			fmt.Fprintf(w, "[%s] %-28s(0x%04x): %s\n", d.Space, d.Name, d.Offset, laneString(d.Lanes[0]))
			continue
		}
		fmt.Fprintf(w, "[%s] %-28s(0x%04x):", d.Space, d.Name, d.Offset)
		for lane := 0; lane < lanes; lane++ {
			fmt.Fprintf(w, " L%d %s", lane, laneString(d.Lanes[lane]))
		}
		fmt.Fprintln(w)
	}
}

func laneString(v LaneValue) string {
	cur := "----------"
	if v.HasValue {
		cur = fmt.Sprintf("0x%08x", v.Value)
	}
	first := "----------"
	if v.HasFirst {
		first = fmt.Sprintf("0x%08x", v.First)
	}
	out := cur + " (1st " + first + ")"
	if v.Failed {
		out += " READ FAILED"
	}
	return out
}
