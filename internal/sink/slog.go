// internal/sink/slog.go
package sink

import (
	"context"
	"log/slog"
)

// Slog writes each line as one structured log record.
type Slog struct {
	log   *slog.Logger
	level slog.Level
}

func NewSlog(log *slog.Logger, level slog.Level) *Slog {
	return &Slog{log: log, level: level}
}

func (s *Slog) Line(line string) {
	s.log.LogAttrs(context.Background(), s.level, "dump", slog.String("line", line))
}
