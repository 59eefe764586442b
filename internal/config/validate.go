// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/ufsdiag/internal/dump"
	"github.com/tamzrod/ufsdiag/internal/evthist"
	"github.com/tamzrod/ufsdiag/internal/regport"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	d := cfg.Diag

	if len(d.Hosts) == 0 {
		return fmt.Errorf("no hosts configured")
	}
	if d.MaxHosts < 0 {
		return fmt.Errorf("max_hosts must be >= 0")
	}
	if d.MaxHosts > 0 && len(d.Hosts) > d.MaxHosts {
		return fmt.Errorf("%d hosts configured but max_hosts is %d", len(d.Hosts), d.MaxHosts)
	}

	switch d.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q: must be debug, info, warn or error", d.LogLevel)
	}

	switch d.HTTP.GinMode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("http.gin_mode %q: must be debug, release or test", d.HTTP.GinMode)
	}

	seen := make(map[string]struct{})

	for _, h := range d.Hosts {
		if h.ID == "" {
			return fmt.Errorf("host id required")
		}
		if _, dup := seen[h.ID]; dup {
			return fmt.Errorf("host %q: duplicate id", h.ID)
		}
		seen[h.ID] = struct{}{}

		// ------------------------------------------------------------
		// REGISTER PORT
		// ------------------------------------------------------------

		switch h.Port.Driver {
		case "sim":
		case "modbus":
			if h.Port.Endpoint == "" {
				return fmt.Errorf("host %q: port.endpoint required for modbus driver", h.ID)
			}
			switch h.Port.Mode {
			case "", "tcp", "rtu":
			default:
				return fmt.Errorf("host %q: port.mode %q: must be tcp or rtu", h.ID, h.Port.Mode)
			}
		default:
			return fmt.Errorf("host %q: port.driver %q: must be modbus or sim", h.ID, h.Port.Driver)
		}

		// ------------------------------------------------------------
		// RECORDING GEOMETRY
		// ------------------------------------------------------------

		if h.Lanes < 0 || h.Lanes > regport.MaxLanes {
			return fmt.Errorf("host %q: lanes must be 1..%d", h.ID, regport.MaxLanes)
		}
		if h.CmdLog.Capacity < 0 || h.CmdLog.MaxTags < 0 || h.HistoryLength < 0 {
			return fmt.Errorf("host %q: cmd_log and history_length must not be negative", h.ID)
		}
		if h.Watch.IntervalMs < 0 {
			return fmt.Errorf("host %q: watch.interval_ms must not be negative", h.ID)
		}
		for name := range h.Watch.Thresholds {
			if _, err := evthist.ParseKind(name); err != nil {
				return fmt.Errorf("host %q: watch.thresholds: %v", h.ID, err)
			}
		}

		// ------------------------------------------------------------
		// CAPTURE REGIONS
		// ------------------------------------------------------------

		for _, c := range h.Capture {
			if c.Name == "" {
				return fmt.Errorf("host %q: capture name required", h.ID)
			}
			sp, err := regport.ParseSpace(c.Space)
			if err != nil {
				return fmt.Errorf("host %q: capture %q: %v", h.ID, c.Name, err)
			}
			if sp == regport.SpacePhyLane {
				return fmt.Errorf("host %q: capture %q: phy space cannot be captured", h.ID, c.Name)
			}
			if c.Size <= 0 || c.Size%4 != 0 || c.Size > dump.MaxCaptureBytes {
				return fmt.Errorf("host %q: capture %q: size must be a multiple of 4 in 4..%d", h.ID, c.Name, dump.MaxCaptureBytes)
			}
			if c.Base%4 != 0 {
				return fmt.Errorf("host %q: capture %q: base must be 4-aligned", h.ID, c.Name)
			}
		}

		// ------------------------------------------------------------
		// SINKS
		// ------------------------------------------------------------

		if h.Sinks.RingLines < 0 {
			return fmt.Errorf("host %q: sinks.ring_lines must not be negative", h.ID)
		}
		if h.Sinks.Ingest != nil && h.Sinks.Ingest.Endpoint == "" {
			return fmt.Errorf("host %q: sinks.ingest.endpoint required", h.ID)
		}
		if h.Sinks.ValkeyKey != "" && d.Valkey.Address == "" {
			return fmt.Errorf("host %q: sinks.valkey_key is set but valkey.address is empty", h.ID)
		}
	}

	return nil
}
