// internal/sink/sink.go
package sink

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Sink receives rendered dump output one line at a time.
// It is delivery-only: no parsing, no interpretation.
type Sink interface {
	Line(s string)
}

// Flusher is implemented by sinks that batch lines until the dump ends.
type Flusher interface {
	Flush() error
}

// Flush flushes s if it batches. Non-batching sinks return nil.
func Flush(s Sink) error {
	if f, ok := s.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// ---- line splitting ----

// LineWriter adapts a Sink to io.Writer, emitting one Line per '\n'.
type LineWriter struct {
	s   Sink
	buf bytes.Buffer
}

func NewLineWriter(s Sink) *LineWriter {
	return &LineWriter{s: s}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.s.Line(strings.TrimSuffix(line, "\n"))
	}
	return len(p), nil
}

// Close emits a trailing partial line, if any.
func (w *LineWriter) Close() error {
	if w.buf.Len() > 0 {
		w.s.Line(w.buf.String())
		w.buf.Reset()
	}
	return nil
}

// ---- console ----

// Writer writes each line to an io.Writer with an optional prefix.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func NewWriter(w io.Writer, prefix string) *Writer {
	return &Writer{w: w, prefix: prefix}
}

func (c *Writer) Line(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s%s\n", c.prefix, s)
}

// ---- in-memory ----

// Buffer collects every line it receives. One Buffer per dump request.
type Buffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *Buffer) Line(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, s)
}

func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

func (b *Buffer) String() string {
	lines := b.Lines()
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Ring keeps the most recent lines in a fixed-capacity buffer.
type Ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	total uint64
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{lines: make([]string, capacity)}
}

func (r *Ring) Line(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.next] = s
	r.next = (r.next + 1) % len(r.lines)
	r.total++
}

// Lines returns retained lines, oldest first.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.lines)
	if r.total < uint64(n) {
		n = int(r.total)
	}
	out := make([]string, 0, n)
	start := (r.next - n + len(r.lines)) % len(r.lines)
	for i := 0; i < n; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	return out
}

// ---- fan-out ----

// Multi delivers every line to all sinks.
type Multi []Sink

func (m Multi) Line(s string) {
	for _, t := range m {
		t.Line(s)
	}
}

// Flush flushes every batching sink; all failures are reported.
func (m Multi) Flush() error {
	var errs []string
	for _, t := range m {
		if err := Flush(t); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New("sink: " + strings.Join(errs, " | "))
	}
	return nil
}
