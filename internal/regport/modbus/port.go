// internal/regport/modbus/port.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/ufsdiag/internal/regport"
)

// Coil values for FC5.
const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// registerClient is the subset of modbus.Client the port uses.
type registerClient interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleCoil(address, value uint16) ([]byte, error)
}

type transport interface {
	Connect() error
	Close() error
}

// Layout maps register spaces onto the gateway's holding register map.
// Every 32-bit host register occupies two consecutive holding registers,
// high word first.
type Layout struct {
	StandardBase  uint16
	VendorBase    uint16
	UniproBase    uint16
	PhyBase       uint16
	PhyLaneStride uint16

	// PhyWindowCoil gates PHY register access on the gateway.
	PhyWindowCoil uint16

	// CaptureCoil, if set, enables the capture logger. Cleared while a
	// dump reads the capture buffer.
	CaptureCoil *uint16
}

// Config is minimal transport config.
type Config struct {
	Mode     string // "tcp" (default) or "rtu"
	Endpoint string // host:port for tcp, device path for rtu
	UnitID   uint8
	Timeout  time.Duration
	BaudRate int // rtu only

	Layout Layout
}

// Port implements regport.Port over a Modbus register gateway.
// Requests are serialized: goburrow handlers are not safe for concurrent use.
type Port struct {
	mu     sync.Mutex
	tr     transport
	client registerClient
	layout Layout
}

// New connects to the gateway.
func New(cfg Config) (*Port, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("regport modbus: endpoint required")
	}

	var (
		tr      transport
		handler modbus.ClientHandler
	)

	switch cfg.Mode {
	case "", "tcp":
		h := modbus.NewTCPClientHandler(cfg.Endpoint)
		h.Timeout = cfg.Timeout
		h.SlaveId = cfg.UnitID
		tr, handler = h, h

	case "rtu":
		h := modbus.NewRTUClientHandler(cfg.Endpoint)
		h.Timeout = cfg.Timeout
		h.SlaveId = cfg.UnitID
		if cfg.BaudRate > 0 {
			h.BaudRate = cfg.BaudRate
		}
		h.DataBits = 8
		h.Parity = "N"
		h.StopBits = 1
		tr, handler = h, h

	default:
		return nil, fmt.Errorf("regport modbus: unknown mode %q", cfg.Mode)
	}

	if err := tr.Connect(); err != nil {
		return nil, fmt.Errorf("regport modbus: connect %s: %w", cfg.Endpoint, err)
	}

	return &Port{
		tr:     tr,
		client: modbus.NewClient(handler),
		layout: cfg.Layout,
	}, nil
}

// Close closes the underlying connection.
func (p *Port) Close() error {
	if p == nil || p.tr == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tr.Close()
}

// ---- regport.Port ----

func (p *Port) ReadStandard(offset uint32) (uint32, error) {
	addr, err := wordAddr(p.layout.StandardBase, offset)
	if err != nil {
		return 0, err
	}
	return p.read32(addr)
}

func (p *Port) ReadVendor(offset uint32) (uint32, error) {
	addr, err := wordAddr(p.layout.VendorBase, offset)
	if err != nil {
		return 0, err
	}
	return p.read32(addr)
}

func (p *Port) ReadUnipro(attr uint32) (uint32, error) {
	addr := uint32(p.layout.UniproBase) + attr*2
	if addr+1 > 0xFFFF {
		return 0, fmt.Errorf("regport modbus: unipro attr 0x%04x out of map", attr)
	}
	return p.read32(uint16(addr))
}

func (p *Port) ReadPhyLane(lane int, offset uint32) (uint32, error) {
	if lane < 0 || lane >= regport.MaxLanes {
		return 0, fmt.Errorf("regport modbus: lane %d out of range", lane)
	}
	base := uint32(p.layout.PhyBase) + uint32(lane)*uint32(p.layout.PhyLaneStride)
	if base > 0xFFFF {
		return 0, fmt.Errorf("regport modbus: lane %d base out of map", lane)
	}
	addr, err := wordAddr(uint16(base), offset)
	if err != nil {
		return 0, err
	}
	return p.read32(addr)
}

func (p *Port) EnablePhyAccess() error {
	return p.writeCoil(p.layout.PhyWindowCoil, coilOn)
}

func (p *Port) DisablePhyAccess() error {
	return p.writeCoil(p.layout.PhyWindowCoil, coilOff)
}

// ---- regport.CaptureFreezer ----

func (p *Port) FreezeCapture() error {
	if p.layout.CaptureCoil == nil {
		return nil
	}
	return p.writeCoil(*p.layout.CaptureCoil, coilOff)
}

func (p *Port) ThawCapture() error {
	if p.layout.CaptureCoil == nil {
		return nil
	}
	return p.writeCoil(*p.layout.CaptureCoil, coilOn)
}

// ---- internal helpers ----

// wordAddr converts a 32-bit aligned byte offset into a holding register address.
func wordAddr(base uint16, offset uint32) (uint16, error) {
	if offset%4 != 0 {
		return 0, fmt.Errorf("regport modbus: offset 0x%x not 32-bit aligned", offset)
	}
	addr := uint32(base) + (offset/4)*2
	if addr+1 > 0xFFFF {
		return 0, fmt.Errorf("regport modbus: offset 0x%x out of map", offset)
	}
	return uint16(addr), nil
}

func (p *Port) read32(addr uint16) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return 0, errors.New("regport modbus: not connected")
	}

	b, err := p.client.ReadHoldingRegisters(addr, 2)
	if err != nil {
		return 0, fmt.Errorf("regport modbus: read addr=%d: %w", addr, err)
	}
	if len(b) < 4 {
		return 0, fmt.Errorf("regport modbus: short read addr=%d: %d bytes", addr, len(b))
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (p *Port) writeCoil(addr, value uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return errors.New("regport modbus: not connected")
	}
	if _, err := p.client.WriteSingleCoil(addr, value); err != nil {
		return fmt.Errorf("regport modbus: coil %d: %w", addr, err)
	}
	return nil
}
