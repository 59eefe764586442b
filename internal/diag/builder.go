// internal/diag/builder.go
package diag

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	vk "github.com/valkey-io/valkey-go"

	cfg "github.com/tamzrod/ufsdiag/internal/config"
	"github.com/tamzrod/ufsdiag/internal/dump"
	"github.com/tamzrod/ufsdiag/internal/evthist"
	"github.com/tamzrod/ufsdiag/internal/regport"
	"github.com/tamzrod/ufsdiag/internal/regport/memport"
	rmodbus "github.com/tamzrod/ufsdiag/internal/regport/modbus"
	"github.com/tamzrod/ufsdiag/internal/sink"
	"github.com/tamzrod/ufsdiag/internal/sink/ingest"
	svalkey "github.com/tamzrod/ufsdiag/internal/sink/valkey"
)

// Services are shared by every host built from one config.
type Services struct {
	Valkey    vk.Client // nil unless valkey.address is configured
	ValkeyCfg cfg.ValkeyConfig
	Console   io.Writer
	Log       *slog.Logger
}

// Built is one host ready to attach.
type Built struct {
	Unit UnitConfig
	Ring *sink.Ring // nil unless sinks.ring_lines > 0
}

// BuildUnit converts one host config into a UnitConfig and opens its port.
// Assumes config has already passed Validate and Normalize.
func BuildUnit(h cfg.HostConfig, svc Services) (Built, func() error, error) {
	port, closePort, err := buildPort(h.Port)
	if err != nil {
		return Built{}, nil, fmt.Errorf("diag: host %q: %w", h.ID, err)
	}

	out, ring, err := buildSinks(h, svc)
	if err != nil {
		_ = closePort()
		return Built{}, nil, fmt.Errorf("diag: host %q: %w", h.ID, err)
	}

	capture := make([]dump.CaptureRegion, 0, len(h.Capture))
	for _, c := range h.Capture {
		sp, err := regport.ParseSpace(c.Space)
		if err != nil {
			_ = closePort()
			return Built{}, nil, fmt.Errorf("diag: host %q: capture %q: %w", h.ID, c.Name, err)
		}
		capture = append(capture, dump.CaptureRegion{Name: c.Name, Space: sp, Base: c.Base, Size: c.Size})
	}

	var thresholds map[evthist.Kind]uint64
	if len(h.Watch.Thresholds) > 0 {
		thresholds = make(map[evthist.Kind]uint64, len(h.Watch.Thresholds))
		for name, n := range h.Watch.Thresholds {
			k, err := evthist.ParseKind(name)
			if err != nil {
				_ = closePort()
				return Built{}, nil, fmt.Errorf("diag: host %q: %w", h.ID, err)
			}
			thresholds[k] = n
		}
	}

	return Built{
		Unit: UnitConfig{
			Name:           h.ID,
			Port:           port,
			Sink:           out,
			Lanes:          h.Lanes,
			LogCapacity:    h.CmdLog.Capacity,
			MaxTags:        h.CmdLog.MaxTags,
			HistoryLength:  h.HistoryLength,
			Capture:        capture,
			DumpThresholds: thresholds,
		},
		Ring: ring,
	}, closePort, nil
}

// ---- register port ----

func buildPort(pc cfg.PortConfig) (regport.Port, func() error, error) {
	switch pc.Driver {
	case "sim":
		return simPort(), func() error { return nil }, nil

	case "modbus":
		p, err := rmodbus.New(rmodbus.Config{
			Mode:     pc.Mode,
			Endpoint: pc.Endpoint,
			UnitID:   pc.UnitID,
			Timeout:  time.Duration(pc.TimeoutMs) * time.Millisecond,
			BaudRate: pc.BaudRate,
			Layout: rmodbus.Layout{
				StandardBase:  pc.Layout.StandardBase,
				VendorBase:    pc.Layout.VendorBase,
				UniproBase:    pc.Layout.UniproBase,
				PhyBase:       pc.Layout.PhyBase,
				PhyLaneStride: pc.Layout.PhyLaneStride,
				PhyWindowCoil: pc.Layout.PhyWindowCoil,
				CaptureCoil:   pc.Layout.CaptureCoil,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown port driver %q", pc.Driver)
	}
}

// simPort is a quiet controller: identification registers set, no errors.
func simPort() *memport.Port {
	p := memport.New()
	p.Set(regport.SpaceStandard, 0, 0x00, 0x0107001F) // CAP: 32 slots, 8 TM slots
	p.Set(regport.SpaceStandard, 0, 0x08, 0x00000210) // VER 2.1
	p.Set(regport.SpaceStandard, 0, 0x30, 0x0000000F) // HCS: device present, lists ready
	p.Set(regport.SpaceStandard, 0, 0x34, 0x00000001) // HCE
	return p
}

// ---- sinks ----

func buildSinks(h cfg.HostConfig, svc Services) (sink.Sink, *sink.Ring, error) {
	var (
		out  sink.Multi
		ring *sink.Ring
	)

	if h.Sinks.Console && svc.Console != nil {
		out = append(out, sink.NewWriter(svc.Console, "["+h.ID+"] "))
	}
	if h.Sinks.Log && svc.Log != nil {
		out = append(out, sink.NewSlog(svc.Log.With("host", h.ID), slog.LevelInfo))
	}
	if h.Sinks.RingLines > 0 {
		ring = sink.NewRing(h.Sinks.RingLines)
		out = append(out, ring)
	}
	if in := h.Sinks.Ingest; in != nil {
		s, err := ingest.New(ingest.Config{
			Endpoint: in.Endpoint,
			Timeout:  time.Duration(in.TimeoutMs) * time.Millisecond,
			HostID:   in.HostID,
		})
		if err != nil {
			return nil, nil, err
		}
		out = append(out, s)
	}
	if h.Sinks.ValkeyKey != "" {
		if svc.Valkey == nil {
			return nil, nil, fmt.Errorf("sinks.valkey_key %q set but no valkey client", h.Sinks.ValkeyKey)
		}
		out = append(out, svalkey.New(svc.Valkey, svalkey.Config{
			Key:      h.Sinks.ValkeyKey,
			MaxLines: svc.ValkeyCfg.MaxLines,
			Timeout:  time.Duration(svc.ValkeyCfg.TimeoutMs) * time.Millisecond,
		}))
	}

	return out, ring, nil
}
