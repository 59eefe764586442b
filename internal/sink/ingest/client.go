// internal/sink/ingest/client.go
package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	magicHi byte = 0x55 // 'U'
	magicLo byte = 0x44 // 'D'

	versionV1 byte = 0x01

	typeDumpText byte = 0x01

	respOK       byte = 0x00
	respRejected byte = 0x01

	headerLen = 14

	// maxPayload bounds one frame; longer dumps are truncated at a line boundary.
	maxPayload = 1 << 20
)

// Dump Ingest v1 sink (stateless, 1 dump = 1 connection).
type Sink struct {
	endpoint string
	timeout  time.Duration
	hostID   uint16

	mu      sync.Mutex
	seq     uint16
	pending []string
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
	HostID   uint16
}

func New(cfg Config) (*Sink, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("sink ingest: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Sink{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		hostID:   cfg.HostID,
	}, nil
}

func (s *Sink) Line(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, line)
}

// Flush ships the batched lines as one frame.
func (s *Sink) Flush() error {
	s.mu.Lock()
	lines := s.pending
	s.pending = nil
	if len(lines) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	pkt := buildFrameV1(s.hostID, seq, lines)

	conn, err := net.DialTimeout("tcp", s.endpoint, s.timeout)
	if err != nil {
		return fmt.Errorf("sink ingest: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if err := writeAll(conn, pkt); err != nil {
		return fmt.Errorf("sink ingest: write: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.timeout))
	var resp [1]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return fmt.Errorf("sink ingest: read status: %w", err)
	}

	switch resp[0] {
	case respOK:
		return nil
	case respRejected:
		return errors.New("sink ingest: rejected")
	default:
		return fmt.Errorf("sink ingest: unknown status 0x%02x", resp[0])
	}
}

//
// ---- Dump Ingest v1 frame builder (LOCKED) ----
//
// Layout (14 bytes header, big-endian):
// 0–1   Magic "UD"
// 2     Version (0x01)
// 3     Type (0x01 = dump text)
// 4–5   HostID
// 6–7   Dump sequence
// 8–9   Line count
// 10–13 Payload length
// 14+   Payload (lines joined by '\n')
//

func buildFrameV1(hostID, seq uint16, lines []string) []byte {
	var payload strings.Builder
	count := 0
	for _, l := range lines {
		if payload.Len()+len(l)+1 > maxPayload || count == 0xFFFF {
			break
		}
		payload.WriteString(l)
		payload.WriteByte('\n')
		count++
	}

	pkt := make([]byte, headerLen, headerLen+payload.Len())
	pkt[0] = magicHi
	pkt[1] = magicLo
	pkt[2] = versionV1
	pkt[3] = typeDumpText
	binary.BigEndian.PutUint16(pkt[4:6], hostID)
	binary.BigEndian.PutUint16(pkt[6:8], seq)
	binary.BigEndian.PutUint16(pkt[8:10], uint16(count))
	binary.BigEndian.PutUint32(pkt[10:14], uint32(payload.Len()))

	return append(pkt, payload.String()...)
}

//
// ---- helpers ----
//

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
