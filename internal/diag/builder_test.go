// internal/diag/builder_test.go
package diag

import (
	"bytes"
	"strings"
	"testing"

	cfg "github.com/tamzrod/ufsdiag/internal/config"
	"github.com/tamzrod/ufsdiag/internal/evthist"
)

func simHost() cfg.HostConfig {
	c := &cfg.Config{Diag: cfg.DiagConfig{Hosts: []cfg.HostConfig{{
		ID:   "ufs0",
		Port: cfg.PortConfig{Driver: "sim"},
		Watch: cfg.WatchConfig{
			Thresholds: map[string]uint64{"dl_err": 1},
		},
		Capture: []cfg.CaptureConfig{{Name: "cport", Space: "vs", Base: 0x800, Size: 32}},
		Sinks:   cfg.SinksConfig{Console: true, RingLines: 1000},
	}}}}
	cfg.Normalize(c)
	return c.Diag.Hosts[0]
}

func TestBuildUnit_SimHostDumpsToSinks(t *testing.T) {
	var console bytes.Buffer
	b, closeFn, err := BuildUnit(simHost(), Services{Console: &console, Log: quiet()})
	if err != nil {
		t.Fatalf("BuildUnit: %v", err)
	}
	defer closeFn()

	if b.Ring == nil {
		t.Fatalf("ring sink not built")
	}
	if b.Unit.DumpThresholds[evthist.DLErr] != 1 || len(b.Unit.Capture) != 1 {
		t.Fatalf("unit config: %+v", b.Unit)
	}

	m := NewManager(1, quiet())
	h, err := m.Attach(b.Unit)
	if err != nil {
		t.Fatal(err)
	}
	m.Dump(h, "manual")

	lines := b.Ring.Lines()
	if len(lines) == 0 || !strings.Contains(lines[0], "dump #1 (manual) first") {
		t.Fatalf("ring lines: %v", lines)
	}
	if !strings.Contains(console.String(), "[ufs0] ") || !strings.Contains(console.String(), "0x00000210") {
		t.Fatalf("console output:\n%s", console.String())
	}
	if !strings.Contains(console.String(), "cport +0x000:") {
		t.Fatalf("capture region missing:\n%s", console.String())
	}
}

func TestBuildUnit_ValkeyKeyNeedsClient(t *testing.T) {
	h := simHost()
	h.Sinks.ValkeyKey = "ufs0:dumps"
	if _, _, err := BuildUnit(h, Services{}); err == nil {
		t.Fatalf("expected error without valkey client")
	}
}

func TestBuildUnit_UnknownDriver(t *testing.T) {
	h := simHost()
	h.Port.Driver = "jtag"
	if _, _, err := BuildUnit(h, Services{}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
