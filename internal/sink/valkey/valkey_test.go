// internal/sink/valkey/valkey_test.go
package valkey

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type pushCall struct {
	key   string
	lines []string
	max   int64
}

func TestFlush_PushesBatchOnce(t *testing.T) {
	var calls []pushCall
	s := newSink(Config{Key: "ufsdiag:ufs0", MaxLines: 1000}, func(_ context.Context, key string, lines []string, max int64) error {
		calls = append(calls, pushCall{key, lines, max})
		return nil
	})

	s.Line("a")
	s.Line("b")
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	// nothing pending: no second push
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	want := []pushCall{{"ufsdiag:ufs0", []string{"a", "b"}, 1000}}
	if diff := cmp.Diff(want, calls, cmp.AllowUnexported(pushCall{})); diff != "" {
		t.Fatalf("push calls mismatch (-want +got):\n%s", diff)
	}
}

func TestFlush_ErrorDropsBatch(t *testing.T) {
	fail := true
	var pushed [][]string
	s := newSink(Config{Key: "k"}, func(_ context.Context, _ string, lines []string, _ int64) error {
		if fail {
			return errors.New("connection refused")
		}
		pushed = append(pushed, lines)
		return nil
	})

	s.Line("lost")
	if err := s.Flush(); err == nil {
		t.Fatalf("expected flush error")
	}

	fail = false
	s.Line("kept")
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]string{{"kept"}}, pushed); diff != "" {
		t.Fatalf("pushed mismatch (-want +got):\n%s", diff)
	}
}

func TestDial_RequiresAddress(t *testing.T) {
	if _, err := Dial(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
