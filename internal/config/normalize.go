// internal/config/normalize.go
package config

import (
	"github.com/tamzrod/ufsdiag/internal/cmdlog"
	"github.com/tamzrod/ufsdiag/internal/evthist"
)

const (
	DefaultListen    = ":8080"
	DefaultGinMode   = "release"
	DefaultLogLevel  = "info"
	DefaultTimeoutMs = 1000
	DefaultMaxLines  = 10000
	DefaultIngestMs  = 2000
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	d := &cfg.Diag

	if d.MaxHosts == 0 {
		d.MaxHosts = max(len(d.Hosts), 1)
	}
	if d.LogLevel == "" {
		d.LogLevel = DefaultLogLevel
	}
	if d.HTTP.Listen == "" {
		d.HTTP.Listen = DefaultListen
	}
	if d.HTTP.GinMode == "" {
		d.HTTP.GinMode = DefaultGinMode
	}
	if d.Valkey.MaxLines == 0 {
		d.Valkey.MaxLines = DefaultMaxLines
	}
	if d.Valkey.TimeoutMs == 0 {
		d.Valkey.TimeoutMs = DefaultTimeoutMs
	}

	for hi := range d.Hosts {
		h := &d.Hosts[hi]

		if h.Port.Driver == "modbus" && h.Port.Mode == "" {
			h.Port.Mode = "tcp"
		}
		if h.Port.TimeoutMs == 0 {
			h.Port.TimeoutMs = DefaultTimeoutMs
		}
		if h.Lanes == 0 {
			h.Lanes = 1
		}
		if h.CmdLog.Capacity == 0 {
			h.CmdLog.Capacity = cmdlog.DefaultCapacity
		}
		if h.CmdLog.MaxTags == 0 {
			h.CmdLog.MaxTags = cmdlog.DefaultMaxTags
		}
		if h.HistoryLength == 0 {
			h.HistoryLength = evthist.DefaultLength
		}
		if h.Sinks.Ingest != nil && h.Sinks.Ingest.TimeoutMs == 0 {
			h.Sinks.Ingest.TimeoutMs = DefaultIngestMs
		}

		// A host with no sink still prints its dumps.
		s := h.Sinks
		if !s.Console && !s.Log && s.RingLines == 0 && s.Ingest == nil && s.ValkeyKey == "" {
			h.Sinks.Console = true
		}
	}
}
