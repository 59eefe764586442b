// internal/cmdlog/ring_test.go
package cmdlog

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// tickClock advances one microsecond per reading.
func tickClock() func() time.Duration {
	var mu sync.Mutex
	var t time.Duration
	return func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		t += time.Microsecond
		return t
	}
}

func newRing(t *testing.T, capacity, maxTags int) *Ring {
	t.Helper()
	r, err := New(capacity, maxTags, WithClock(tickClock()))
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return r
}

func seqs(entries []Entry) []uint64 {
	out := make([]uint64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Seq)
	}
	return out
}

func TestNew_RejectsBadGeometry(t *testing.T) {
	if _, err := New(0, 32); err == nil {
		t.Fatalf("expected capacity error")
	}
	if _, err := New(128, 0); err == nil {
		t.Fatalf("expected max tags error")
	}
}

func TestEntries_EmptyRing(t *testing.T) {
	r := newRing(t, 8, 4)
	if got := r.Entries(0); len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func TestRingBound_KeepsMostRecentInOrder(t *testing.T) {
	r := newRing(t, 8, 4)

	for i := 0; i < 21; i++ {
		if err := r.Start(Command{Tag: i % 4, LBA: uint64(i)}); err != nil {
			t.Fatalf("Start(%d) err=%v", i, err)
		}
	}

	got := r.Entries(8)
	want := []uint64{13, 14, 15, 16, 17, 18, 19, 20}
	if diff := cmp.Diff(want, seqs(got)); diff != "" {
		t.Fatalf("retained seqs mismatch (-want +got):\n%s", diff)
	}
	for _, e := range got {
		if e.LBA != e.Seq {
			t.Fatalf("slot %d holds lba %d for seq %d", e.Slot, e.LBA, e.Seq)
		}
	}
	if r.Total() != 21 {
		t.Fatalf("total=%d want 21", r.Total())
	}
}

func TestEntries_LimitShowsNewest(t *testing.T) {
	r := newRing(t, 8, 4)
	for i := 0; i < 5; i++ {
		_ = r.Start(Command{Tag: 0})
	}
	if diff := cmp.Diff([]uint64{2, 3, 4}, seqs(r.Entries(3))); diff != "" {
		t.Fatalf("limited window mismatch (-want +got):\n%s", diff)
	}
}

func TestTagCompletion(t *testing.T) {
	r := newRing(t, 16, 8)

	if err := r.Start(Command{Tag: 5, Opcode: 0x2A}); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(Command{Tag: 6, Opcode: 0x28}); err != nil {
		t.Fatal(err)
	}
	if err := r.End(5); err != nil {
		t.Fatalf("End(5) err=%v", err)
	}

	e := r.Entries(0)
	if e[0].End == 0 || e[0].End <= e[0].Start {
		t.Fatalf("tag 5 start=%v end=%v", e[0].Start, e[0].End)
	}
	first := e[0].End

	// idempotent: a second completion only moves the stamp forward
	if err := r.End(5); err != nil {
		t.Fatalf("second End(5) err=%v", err)
	}
	e = r.Entries(0)
	if e[0].End < first {
		t.Fatalf("second completion moved end backwards: %v < %v", e[0].End, first)
	}
	if e[1].End != 0 {
		t.Fatalf("tag 6 must still be pending, end=%v", e[1].End)
	}
}

func TestEnd_UnknownTag(t *testing.T) {
	r := newRing(t, 8, 8)
	if err := r.End(3); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
}

func TestTagRange(t *testing.T) {
	r := newRing(t, 8, 8)
	if err := r.Start(Command{Tag: 8}); !errors.Is(err, ErrTagRange) {
		t.Fatalf("Start err=%v", err)
	}
	if err := r.End(-1); !errors.Is(err, ErrTagRange) {
		t.Fatalf("End err=%v", err)
	}
	if r.Total() != 0 {
		t.Fatalf("rejected start must not claim a slot")
	}
}

func TestEnd_StaleSlotIsNoop(t *testing.T) {
	r := newRing(t, 4, 8)

	_ = r.Start(Command{Tag: 5}) // seq 0, slot 0
	for tag := 0; tag < 4; tag++ {
		_ = r.Start(Command{Tag: tag}) // seq 4 lands in slot 0
	}

	if err := r.End(5); !errors.Is(err, ErrStaleSlot) {
		t.Fatalf("expected ErrStaleSlot, got %v", err)
	}
	for _, e := range r.Entries(0) {
		if e.End != 0 {
			t.Fatalf("stale completion touched seq %d (tag %d)", e.Seq, e.Tag)
		}
	}
}

func TestEnd_DuringSlotReclaimDoesNotStampNewRecord(t *testing.T) {
	r := newRing(t, 1, 4)
	_ = r.Start(Command{Tag: 0}) // seq 0, slot 0

	var endErr error
	testHookReclaim = func(int) { endErr = r.End(0) }
	t.Cleanup(func() { testHookReclaim = nil })

	_ = r.Start(Command{Tag: 1}) // seq 1 reclaims slot 0
	if !errors.Is(endErr, ErrStaleSlot) {
		t.Fatalf("completion during reclaim: got %v, want ErrStaleSlot", endErr)
	}

	e := r.Entries(0)
	if len(e) != 1 || e[0].Seq != 1 || e[0].End != 0 {
		t.Fatalf("new record stamped by old completion: %+v", e)
	}
}

func TestEnd_ReclaimedBetweenCheckAndStore(t *testing.T) {
	var (
		r         *Ring
		reentered bool
	)
	base := tickClock()
	clock := func() time.Duration {
		// the first End reading reclaims the slot it is about to stamp
		if r != nil && r.Total() == 1 && !reentered {
			reentered = true
			_ = r.Start(Command{Tag: 1})
		}
		return base()
	}
	r0, err := New(1, 4, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	_ = r0.Start(Command{Tag: 0})
	r = r0

	if err := r.End(0); !errors.Is(err, ErrStaleSlot) {
		t.Fatalf("expected ErrStaleSlot, got %v", err)
	}
	e := r.Entries(0)
	if len(e) != 1 || e[0].Seq != 1 || e[0].End != 0 {
		t.Fatalf("stamp left on reclaimed slot: %+v", e)
	}
}

func TestEnd_ReusedTagCompletesNewest(t *testing.T) {
	r := newRing(t, 8, 4)

	_ = r.Start(Command{Tag: 1}) // seq 0
	_ = r.Start(Command{Tag: 1}) // seq 1
	if err := r.End(1); err != nil {
		t.Fatal(err)
	}

	e := r.Entries(0)
	if e[0].End != 0 || e[1].End == 0 {
		t.Fatalf("completion landed on wrong record: %+v", e)
	}
}

func TestRender_ScenarioTwoHundredCommands(t *testing.T) {
	r := newRing(t, 128, 200)

	for tag := 0; tag < 200; tag++ {
		if err := r.Start(Command{Tag: tag}); err != nil {
			t.Fatal(err)
		}
		if err := r.End(tag); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	r.Render(&buf, 128)

	var lines []string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, " seq ") {
			lines = append(lines, l)
		}
	}
	if len(lines) != 128 {
		t.Fatalf("expected 128 rendered entries, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "seq     72 ") {
		t.Fatalf("oldest shown entry should be seq 72: %q", lines[0])
	}
	last := lines[len(lines)-1]
	if !strings.Contains(last, "seq    199 ") || !strings.HasSuffix(last, CurrentMarker) {
		t.Fatalf("newest entry should be seq 199 and marked: %q", last)
	}
	for _, l := range lines[:len(lines)-1] {
		if strings.Contains(l, CurrentMarker) {
			t.Fatalf("only the newest entry may be marked: %q", l)
		}
		if strings.Contains(l, "pending") {
			t.Fatalf("every entry was completed: %q", l)
		}
	}
}

func TestConcurrentRecordAndRender(t *testing.T) {
	r, err := New(64, 32)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tag := base*8 + i%8
				_ = r.Start(Command{Tag: tag})
				_ = r.End(tag)
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			r.Render(&bytes.Buffer{}, 0)
		}
	}()
	wg.Wait()

	if r.Total() != 2000 {
		t.Fatalf("total=%d want 2000", r.Total())
	}
	if n := len(r.Entries(0)); n != 64 {
		t.Fatalf("retained=%d want 64", n)
	}
}
