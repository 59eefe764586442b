// internal/status/tracker_test.go
package status

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func fixedTracker() *Tracker {
	t := NewTracker()
	t.now = func() time.Time { return time.Unix(100, 0) }
	return t
}

func TestTracker_StartsUnknown(t *testing.T) {
	tr := fixedTracker()
	if s := tr.Snapshot(); s.Health != HealthUnknown || s.SecondsInError != 0 {
		t.Fatalf("initial snapshot %+v", s)
	}
}

func TestTracker_ErrorThenRecovery(t *testing.T) {
	tr := fixedTracker()

	if !tr.Observe(0x800) {
		t.Fatalf("error observation not reported as change")
	}
	if tr.Observe(0x800) {
		t.Fatalf("repeated identical error reported as change")
	}
	tr.Tick()
	tr.Tick()

	s := tr.Snapshot()
	if s.Health != HealthError || s.LastErrorCode != 0x800 || s.SecondsInError != 2 {
		t.Fatalf("error snapshot %+v", s)
	}

	if !tr.Observe(0) {
		t.Fatalf("recovery not reported as change")
	}
	s = tr.Snapshot()
	if s.Health != HealthOK || s.LastErrorCode != 0 || s.SecondsInError != 0 {
		t.Fatalf("recovered snapshot %+v", s)
	}
	if tr.Tick() {
		t.Fatalf("tick advanced while OK")
	}
}

func TestTracker_UnknownCountsSeconds(t *testing.T) {
	tr := fixedTracker()
	if !tr.Tick() || tr.Snapshot().SecondsInError != 1 {
		t.Fatalf("tick while unknown should count")
	}
}

func TestTracker_SecondsSaturate(t *testing.T) {
	tr := fixedTracker()
	tr.Observe(1)
	tr.snap.SecondsInError = MaxSecondsInError

	if tr.Tick() {
		t.Fatalf("tick past saturation")
	}
	if tr.Snapshot().SecondsInError != MaxSecondsInError {
		t.Fatalf("counter wrapped")
	}
}

func TestTracker_DisableIgnoresLaterObservations(t *testing.T) {
	tr := fixedTracker()
	tr.Observe(4)
	tr.Disable()

	if tr.Observe(0) || tr.Tick() {
		t.Fatalf("disabled tracker changed")
	}
	if s := tr.Snapshot(); s.Health != HealthDisabled || s.LastErrorCode != 0 {
		t.Fatalf("disabled snapshot %+v", s)
	}
}

func TestTracker_MarkStaleAfterSilence(t *testing.T) {
	tr := NewTracker()
	clock := time.Unix(100, 0)
	tr.now = func() time.Time { return clock }

	if tr.MarkStale(time.Second) {
		t.Fatalf("never-observed host marked stale")
	}

	tr.Observe(0x800)
	tr.Tick()
	clock = clock.Add(500 * time.Millisecond)
	if tr.MarkStale(time.Second) {
		t.Fatalf("stale before the window elapsed")
	}

	clock = clock.Add(time.Second)
	if !tr.MarkStale(time.Second) {
		t.Fatalf("silent host not marked stale")
	}
	if tr.MarkStale(time.Second) {
		t.Fatalf("stale reported twice")
	}
	if !tr.Tick() {
		t.Fatalf("stale host does not count seconds")
	}
	s := tr.Snapshot()
	if s.Health != HealthStale || s.LastErrorCode != 0x800 || s.SecondsInError != 2 {
		t.Fatalf("stale snapshot %+v", s)
	}

	if !tr.Observe(0) || tr.Snapshot().Health != HealthOK {
		t.Fatalf("observation did not leave stale: %+v", tr.Snapshot())
	}
}

func TestTracker_DisabledNeverStale(t *testing.T) {
	tr := NewTracker()
	clock := time.Unix(100, 0)
	tr.now = func() time.Time { return clock }

	tr.Observe(0)
	tr.Disable()
	clock = clock.Add(time.Hour)
	if tr.MarkStale(time.Second) || tr.Snapshot().Health != HealthDisabled {
		t.Fatalf("disabled tracker marked stale")
	}
}

func TestSnapshot_HealthByNameInJSON(t *testing.T) {
	b, err := json.Marshal(Snapshot{Health: HealthError, LastErrorCode: 3})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"health":"error"`) {
		t.Fatalf("json=%s", b)
	}
	if Health(42).String() != "unknown" {
		t.Fatalf("unmapped health name")
	}
}
