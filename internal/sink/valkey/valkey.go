// internal/sink/valkey/valkey.go
package valkey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Config selects the list a host's dumps go to.
type Config struct {
	Address  string
	Password string
	Key      string        // list key, one per host
	MaxLines int64         // list is trimmed to the newest MaxLines
	Timeout  time.Duration // per flush
}

// pushFunc appends lines to key and trims the list to max entries.
type pushFunc func(ctx context.Context, key string, lines []string, max int64) error

// Sink batches dump lines and appends them to a capped Valkey list on Flush.
type Sink struct {
	mu      sync.Mutex
	key     string
	max     int64
	timeout time.Duration
	pending []string
	push    pushFunc
}

// Dial opens and pings a client. Several hosts share one client, each
// through its own New(client, cfg) sink.
func Dial(cfg Config) (valkey.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("sink valkey: address required")
	}
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("sink valkey: create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeoutOr(cfg.Timeout))
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("sink valkey: ping: %w", err)
	}
	return client, nil
}

// New returns a sink using an existing client.
func New(client valkey.Client, cfg Config) *Sink {
	return newSink(cfg, func(ctx context.Context, key string, lines []string, max int64) error {
		cmds := []valkey.Completed{
			client.B().Rpush().Key(key).Element(lines...).Build(),
		}
		if max > 0 {
			cmds = append(cmds, client.B().Ltrim().Key(key).Start(-max).Stop(-1).Build())
		}
		for _, res := range client.DoMulti(ctx, cmds...) {
			if err := res.Error(); err != nil {
				return err
			}
		}
		return nil
	})
}

func newSink(cfg Config, push pushFunc) *Sink {
	return &Sink{
		key:     cfg.Key,
		max:     cfg.MaxLines,
		timeout: timeoutOr(cfg.Timeout),
		push:    push,
	}
}

func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return 2 * time.Second
	}
	return d
}

func (s *Sink) Line(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, line)
}

// Flush pushes the batched lines. On failure the batch is dropped:
// a dump is only worth shipping whole.
func (s *Sink) Flush() error {
	s.mu.Lock()
	lines := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(lines) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.push(ctx, s.key, lines, s.max); err != nil {
		return fmt.Errorf("sink valkey: push %s (%d lines): %w", s.key, len(lines), err)
	}
	return nil
}
