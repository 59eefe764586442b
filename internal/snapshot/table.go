// internal/snapshot/table.go
package snapshot

import "github.com/tamzrod/ufsdiag/internal/regport"

// Item is one row of a dump table.
// A selector row switches the read regime for every following row
// until the next selector. Selector rows carry no value.
// Rows under a SpacePhyLane selector are read once per active lane.
type Item struct {
	Selector bool
	Space    regport.Space // selector rows only

	Name   string
	Offset uint32
}

// Select returns a selector row.
func Select(s regport.Space) Item {
	return Item{Selector: true, Space: s}
}

// Reg returns a value row.
func Reg(name string, offset uint32) Item {
	return Item{Name: name, Offset: offset}
}

// DefaultTable is the UFS host dump layout: UFSHCI standard registers,
// the vendor HCI block, UniPro PA attributes and per-lane M-PHY registers.
func DefaultTable() []Item {
	return []Item{
		Select(regport.SpaceStandard),
		Reg("CAP", 0x00),
		Reg("VER", 0x08),
		Reg("HCPID", 0x10),
		Reg("HCMID", 0x14),
		Reg("AHIT", 0x18),
		Reg("IS", 0x20),
		Reg("IE", 0x24),
		Reg("HCS", 0x30),
		Reg("HCE", 0x34),
		Reg("UECPA", 0x38),
		Reg("UECDL", 0x3C),
		Reg("UECN", 0x40),
		Reg("UECT", 0x44),
		Reg("UECDME", 0x48),
		Reg("UTRIACR", 0x4C),
		Reg("UTRLBA", 0x50),
		Reg("UTRLBAU", 0x54),
		Reg("UTRLDBR", 0x58),
		Reg("UTRLCLR", 0x5C),
		Reg("UTRLRSR", 0x60),
		Reg("UTMRLBA", 0x70),
		Reg("UTMRLBAU", 0x74),
		Reg("UTMRLDBR", 0x78),
		Reg("UTMRLCLR", 0x7C),
		Reg("UTMRLRSR", 0x80),
		Reg("UICCMD", 0x90),
		Reg("UCMDARG1", 0x94),
		Reg("UCMDARG2", 0x98),
		Reg("UCMDARG3", 0x9C),

		Select(regport.SpaceVendor),
		Reg("TXPRDT_ENTRY_SIZE", 0x00),
		Reg("RXPRDT_ENTRY_SIZE", 0x04),
		Reg("TO_CNT_DIV_VAL", 0x08),
		Reg("1US_TO_CNT_VAL", 0x0C),
		Reg("INVALID_UPIU_CTRL", 0x10),
		Reg("INVALID_UPIU_BADDR", 0x14),
		Reg("INVALID_UPIU_UBADDR", 0x18),
		Reg("INVALID_UTMR_OFFSET_ADDR", 0x1C),
		Reg("INVALID_UTR_OFFSET_ADDR", 0x20),
		Reg("INVALID_DIN_OFFSET_ADDR", 0x24),
		Reg("VENDOR_SPECIFIC_IS", 0x38),
		Reg("VENDOR_SPECIFIC_IE", 0x3C),
		Reg("UTRL_NEXUS_TYPE", 0x40),
		Reg("UTMRL_NEXUS_TYPE", 0x44),
		Reg("SW_RST", 0x50),
		Reg("DATA_REORDER", 0x60),
		Reg("AXIDMA_RWDATA_BURST_LEN", 0x6C),
		Reg("GPIO_OUT", 0x70),
		Reg("CLKSTOP_CTRL", 0xB0),
		Reg("FORCE_HCS", 0xB4),
		Reg("UFS_ACG_DISABLE", 0xC0),
		Reg("MPHY_REFCLK_SEL", 0xC8),
		Reg("AH8_STATE", 0x114),

		Select(regport.SpaceUnipro),
		Reg("PA_AVAILTXDATALANES", 0x1520),
		Reg("PA_AVAILRXDATALANES", 0x1540),
		Reg("PA_ACTIVETXDATALANES", 0x1560),
		Reg("PA_CONNECTEDTXDATALANES", 0x1561),
		Reg("PA_TXGEAR", 0x1568),
		Reg("PA_TXTERMINATION", 0x1569),
		Reg("PA_HSSERIES", 0x156A),
		Reg("PA_PWRMODE", 0x1571),
		Reg("PA_ACTIVERXDATALANES", 0x1580),
		Reg("PA_CONNECTEDRXDATALANES", 0x1581),
		Reg("PA_RXGEAR", 0x1583),
		Reg("PA_RXTERMINATION", 0x1584),
		Reg("PA_MAXRXHSGEAR", 0x1587),
		Reg("PA_PACPERRORCOUNT", 0x15C1),
		Reg("PA_TACTIVATE", 0x15A8),
		Reg("PA_HIBERN8TIME", 0x15A7),
		Reg("DL_TC0TXFCTHRESHOLD", 0x2040),
		Reg("DL_AFC0REQTIMEOUTVAL", 0x2044),

		Select(regport.SpacePhyLane),
		Reg("TX_CDR_LOCK_STATUS", 0x00),
		Reg("RX_CDR_LOCK_STATUS", 0x04),
		Reg("RX_SQ_DET", 0x08),
		Reg("RX_LINE_RESET", 0x0C),
		Reg("RX_EQ_CTRL", 0x10),
		Reg("TX_DRV_LVL", 0x14),
	}
}
