// internal/diag/manager_test.go
package diag

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/tamzrod/ufsdiag/internal/cmdlog"
	"github.com/tamzrod/ufsdiag/internal/dump"
	"github.com/tamzrod/ufsdiag/internal/evthist"
	"github.com/tamzrod/ufsdiag/internal/regport"
	"github.com/tamzrod/ufsdiag/internal/regport/memport"
	"github.com/tamzrod/ufsdiag/internal/sink"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func unitConfig(name string, out sink.Sink) UnitConfig {
	return UnitConfig{
		Name:        name,
		Port:        memport.New(),
		Sink:        out,
		LogCapacity: 8,
		MaxTags:     4,
	}
}

func TestAttach_CapacityExceeded(t *testing.T) {
	m := NewManager(0, quiet())
	if m.Capacity() != DefaultMaxHosts {
		t.Fatalf("capacity=%d want %d", m.Capacity(), DefaultMaxHosts)
	}

	if _, err := m.Attach(unitConfig("ufs0", nil)); err != nil {
		t.Fatalf("attach: %v", err)
	}
	_, err := m.Attach(unitConfig("ufs1", nil))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestAttach_RejectsBadConfig(t *testing.T) {
	m := NewManager(2, quiet())

	if _, err := m.Attach(UnitConfig{Port: memport.New()}); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if _, err := m.Attach(UnitConfig{Name: "ufs0"}); err == nil {
		t.Fatalf("expected error for missing port")
	}
	cfg := unitConfig("ufs0", nil)
	cfg.Lanes = 3
	if _, err := m.Attach(cfg); err == nil {
		t.Fatalf("expected error for lane count")
	}
	for _, region := range []dump.CaptureRegion{
		{Name: "neg", Space: regport.SpaceVendor, Size: -5},
		{Name: "big", Space: regport.SpaceVendor, Size: dump.MaxCaptureBytes + 4},
		{Name: "phy", Space: regport.SpacePhyLane, Size: 16},
	} {
		cfg := unitConfig("ufs0", nil)
		cfg.Capture = []dump.CaptureRegion{region}
		if _, err := m.Attach(cfg); err == nil {
			t.Fatalf("expected error for capture region %q", region.Name)
		}
	}

	if _, err := m.Attach(unitConfig("ufs0", nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Attach(unitConfig("ufs0", nil)); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestDetach_MakesUnitInactive(t *testing.T) {
	m := NewManager(1, quiet())
	var out sink.Buffer
	h, err := m.Attach(unitConfig("ufs0", &out))
	if err != nil {
		t.Fatal(err)
	}
	u := m.Unit(h)

	m.RecordCommandStart(h, cmdlog.Command{Tag: 1})
	if got := u.Status().Commands; got != 1 {
		t.Fatalf("commands=%d want 1", got)
	}

	if err := m.Detach(h); err != nil {
		t.Fatal(err)
	}

	m.RecordCommandStart(h, cmdlog.Command{Tag: 2})
	m.RecordEvent(h, evthist.PAErr, 1)
	m.CountHibern8(h, true)
	m.Dump(h, "after detach")

	// direct calls on a retained *Unit are no-ops too
	u.RecordCommandStart(cmdlog.Command{Tag: 3})
	u.RecordEvent(evthist.DLErr, 1)
	u.Dump("after detach")

	st := u.Status()
	if st.Active || st.Commands != 1 || st.Dumps != 0 || st.Hibern8Enter != 0 {
		t.Fatalf("detached unit mutated: %+v", st)
	}
	if u.EventCount(evthist.PAErr) != 0 || u.EventCount(evthist.DLErr) != 0 {
		t.Fatalf("detached unit recorded events")
	}
	if len(out.Lines()) != 0 {
		t.Fatalf("detached unit dumped")
	}

	if err := m.Detach(h); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("second detach: %v", err)
	}
	if err := m.SetLaneCount(h, 2); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("set lanes on stale handle: %v", err)
	}
	if err := u.SetLaneCount(2); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("set lanes on detached unit: %v", err)
	}
	if got := u.Status().Lanes; got != 1 {
		t.Fatalf("detached unit lanes changed to %d", got)
	}
}

func TestStaleHandle_AfterSlotReuse(t *testing.T) {
	m := NewManager(1, quiet())

	old, err := m.Attach(unitConfig("ufs0", nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Detach(old); err != nil {
		t.Fatal(err)
	}

	fresh, err := m.Attach(unitConfig("ufs0", nil))
	if err != nil {
		t.Fatalf("slot not reusable: %v", err)
	}
	if fresh == old {
		t.Fatalf("reused slot returned identical handle %s", fresh)
	}

	m.RecordCommandStart(old, cmdlog.Command{Tag: 0})
	if got := m.Unit(fresh).Status().Commands; got != 0 {
		t.Fatalf("stale handle reached new unit: commands=%d", got)
	}
	if m.Unit(old) != nil {
		t.Fatalf("stale handle resolved")
	}
	if m.Unit(Handle{}) != nil {
		t.Fatalf("zero handle resolved")
	}
}

func TestLookupAndHandles(t *testing.T) {
	m := NewManager(3, quiet())
	h0, _ := m.Attach(unitConfig("ufs0", nil))
	h1, _ := m.Attach(unitConfig("ufs1", nil))

	got, ok := m.Lookup("ufs1")
	if !ok || got != h1 {
		t.Fatalf("lookup ufs1 = %v,%v", got, ok)
	}
	if _, ok := m.Lookup("nope"); ok {
		t.Fatalf("lookup of unknown name succeeded")
	}

	hs := m.Handles()
	if len(hs) != 2 || hs[0] != h0 || hs[1] != h1 {
		t.Fatalf("handles=%v", hs)
	}

	m.DetachAll()
	if len(m.Handles()) != 0 {
		t.Fatalf("DetachAll left units attached")
	}
}

func TestRecordCommandEnd_ErrorsSwallowed(t *testing.T) {
	m := NewManager(1, quiet())
	h, _ := m.Attach(unitConfig("ufs0", nil))

	// unknown and out-of-range tags must not panic or surface
	m.RecordCommandEnd(h, 0)
	m.RecordCommandEnd(h, 99)
	m.RecordCommandStart(h, cmdlog.Command{Tag: 99})

	m.RecordCommandStart(h, cmdlog.Command{Tag: 2})
	m.RecordCommandEnd(h, 2)

	es := m.Unit(h).Commands(0)
	if len(es) != 1 || es[0].End == 0 {
		t.Fatalf("entries=%+v", es)
	}
}

func TestRecordEvent_ThresholdTriggersDump(t *testing.T) {
	m := NewManager(1, quiet())
	var out sink.Buffer
	cfg := unitConfig("ufs0", &out)
	cfg.DumpThresholds = map[evthist.Kind]uint64{evthist.DLErr: 2}
	h, _ := m.Attach(cfg)

	m.RecordEvent(h, evthist.DLErr, 0x80000001)
	m.RecordEvent(h, evthist.DLErr, 0x80000002)
	if m.Unit(h).Status().Dumps != 0 {
		t.Fatalf("dumped before threshold was crossed")
	}

	m.RecordEvent(h, evthist.DLErr, 0x80000003)
	if m.Unit(h).Status().Dumps != 1 {
		t.Fatalf("threshold crossing did not dump")
	}
	if !strings.Contains(out.String(), "(dl_err count 3) first") {
		t.Fatalf("dump header:\n%s", out.String())
	}

	// events without a threshold never dump
	for i := 0; i < 5; i++ {
		m.RecordEvent(h, evthist.PAErr, 1)
	}
	if got := m.Unit(h).Status().Dumps; got != 1 {
		t.Fatalf("dumps=%d want 1", got)
	}
}

func TestDumpTo_CopiesToExtraSink(t *testing.T) {
	m := NewManager(1, quiet())
	var configured, extra sink.Buffer
	h, _ := m.Attach(unitConfig("ufs0", &configured))

	res := m.Unit(h).DumpTo("http", &extra)
	if res.Skipped != "" {
		t.Fatalf("result %+v", res)
	}
	if extra.String() == "" || extra.String() != configured.String() {
		t.Fatalf("extra sink did not receive the same dump")
	}
}

func TestSetLaneCount_Bounds(t *testing.T) {
	m := NewManager(1, quiet())
	h, _ := m.Attach(unitConfig("ufs0", nil))

	if err := m.SetLaneCount(h, 2); err != nil {
		t.Fatal(err)
	}
	if got := m.Unit(h).Status().Lanes; got != 2 {
		t.Fatalf("lanes=%d", got)
	}
	if err := m.SetLaneCount(h, 0); err == nil {
		t.Fatalf("expected lane count error")
	}
}
