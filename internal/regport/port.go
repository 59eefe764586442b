// internal/regport/port.go
package regport

import "fmt"

// MaxLanes is the maximum number of PHY data lanes a host exposes.
const MaxLanes = 2

// Space selects which read mechanism applies to an offset.
type Space uint8

const (
	SpaceStandard Space = iota // UFSHCI standard register block
	SpaceVendor                // vendor HCI block
	SpaceUnipro                // UniPro / M-PHY attribute (DME get)
	SpacePhyLane               // per-lane PHY register
)

func (s Space) String() string {
	switch s {
	case SpaceStandard:
		return "std"
	case SpaceVendor:
		return "vs"
	case SpaceUnipro:
		return "unipro"
	case SpacePhyLane:
		return "phy"
	default:
		return fmt.Sprintf("space(%d)", uint8(s))
	}
}

// ParseSpace maps a config name back to a Space.
func ParseSpace(name string) (Space, error) {
	switch name {
	case "std", "standard":
		return SpaceStandard, nil
	case "vs", "vendor":
		return SpaceVendor, nil
	case "unipro":
		return SpaceUnipro, nil
	case "phy", "phy_lane":
		return SpacePhyLane, nil
	}
	return 0, fmt.Errorf("regport: unknown space %q", name)
}

// Port abstracts the hardware register access the diagnostics need.
// Reads are blocking and may fail individually.
type Port interface {
	ReadStandard(offset uint32) (uint32, error)
	ReadVendor(offset uint32) (uint32, error)
	ReadUnipro(attr uint32) (uint32, error)
	ReadPhyLane(lane int, offset uint32) (uint32, error)

	// PHY registers are only readable while the access window is open.
	EnablePhyAccess() error
	DisablePhyAccess() error
}

// CaptureFreezer is implemented by ports whose capture logger must be
// stopped while its buffer is read out.
type CaptureFreezer interface {
	FreezeCapture() error
	ThawCapture() error
}

// Read dispatches one non-lane read by space.
// SpacePhyLane reads go to lane 0.
func Read(p Port, s Space, offset uint32) (uint32, error) {
	switch s {
	case SpaceStandard:
		return p.ReadStandard(offset)
	case SpaceVendor:
		return p.ReadVendor(offset)
	case SpaceUnipro:
		return p.ReadUnipro(offset)
	case SpacePhyLane:
		return p.ReadPhyLane(0, offset)
	default:
		return 0, fmt.Errorf("regport: unsupported space %d", uint8(s))
	}
}
