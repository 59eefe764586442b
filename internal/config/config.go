// internal/config/config.go
package config

type Config struct {
	Diag DiagConfig `yaml:"diag"`
}

type DiagConfig struct {
	MaxHosts int          `yaml:"max_hosts"`
	LogLevel string       `yaml:"log_level"`
	HTTP     HTTPConfig   `yaml:"http"`
	Valkey   ValkeyConfig `yaml:"valkey"`
	Hosts    []HostConfig `yaml:"hosts"`
}

// ---- SHARED SERVICES ----

type HTTPConfig struct {
	Listen      string   `yaml:"listen"`
	GinMode     string   `yaml:"gin_mode"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type ValkeyConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	MaxLines  int64  `yaml:"max_lines"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- HOST ----

type HostConfig struct {
	ID            string          `yaml:"id"`
	Port          PortConfig      `yaml:"port"`
	Lanes         int             `yaml:"lanes"`
	CmdLog        CmdLogConfig    `yaml:"cmd_log"`
	HistoryLength int             `yaml:"history_length"`
	Watch         WatchConfig     `yaml:"watch"`
	Capture       []CaptureConfig `yaml:"capture"`
	Sinks         SinksConfig     `yaml:"sinks"`
}

// ---- REGISTER PORT ----

type PortConfig struct {
	Driver    string       `yaml:"driver"` // "modbus" or "sim"
	Mode      string       `yaml:"mode"`   // modbus: "tcp" or "rtu"
	Endpoint  string       `yaml:"endpoint"`
	UnitID    uint8        `yaml:"unit_id"`
	TimeoutMs int          `yaml:"timeout_ms"`
	BaudRate  int          `yaml:"baud_rate"`
	Layout    LayoutConfig `yaml:"layout"`
}

type LayoutConfig struct {
	StandardBase  uint16  `yaml:"standard_base"`
	VendorBase    uint16  `yaml:"vendor_base"`
	UniproBase    uint16  `yaml:"unipro_base"`
	PhyBase       uint16  `yaml:"phy_base"`
	PhyLaneStride uint16  `yaml:"phy_lane_stride"`
	PhyWindowCoil uint16  `yaml:"phy_window_coil"`
	CaptureCoil   *uint16 `yaml:"capture_coil"`
}

// ---- RECORDING ----

type CmdLogConfig struct {
	Capacity int `yaml:"capacity"`
	MaxTags  int `yaml:"max_tags"`
}

type WatchConfig struct {
	IntervalMs  int               `yaml:"interval_ms"` // 0 disables the watcher
	DumpOnFatal bool              `yaml:"dump_on_fatal"`
	Thresholds  map[string]uint64 `yaml:"thresholds"` // event kind name -> count
}

type CaptureConfig struct {
	Name  string `yaml:"name"`
	Space string `yaml:"space"` // std, vs or unipro
	Base  uint32 `yaml:"base"`
	Size  int    `yaml:"size"`
}

// ---- SINKS ----

type SinksConfig struct {
	Console   bool          `yaml:"console"`
	Log       bool          `yaml:"log"`
	RingLines int           `yaml:"ring_lines"`
	Ingest    *IngestConfig `yaml:"ingest"`
	ValkeyKey string        `yaml:"valkey_key"`
}

type IngestConfig struct {
	Endpoint  string `yaml:"endpoint"`
	HostID    uint16 `yaml:"host_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}
