// internal/diag/unit.go
package diag

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tamzrod/ufsdiag/internal/cmdlog"
	"github.com/tamzrod/ufsdiag/internal/dump"
	"github.com/tamzrod/ufsdiag/internal/evthist"
	"github.com/tamzrod/ufsdiag/internal/regport"
	"github.com/tamzrod/ufsdiag/internal/sink"
	"github.com/tamzrod/ufsdiag/internal/snapshot"
)

// UnitConfig describes one host controller to monitor.
type UnitConfig struct {
	Name string
	Port regport.Port
	Sink sink.Sink // nil discards dump output

	Table         []snapshot.Item // nil means snapshot.DefaultTable()
	Lanes         int             // 0 means 1
	LogCapacity   int             // 0 means cmdlog.DefaultCapacity
	MaxTags       int             // 0 means cmdlog.DefaultMaxTags
	HistoryLength int             // 0 means evthist.DefaultLength
	Capture       []dump.CaptureRegion

	// DumpThresholds triggers a dump once a kind has been recorded more
	// than the given number of times.
	DumpThresholds map[evthist.Kind]uint64

	// Clock overrides the monotonic clock of the log and history.
	Clock func() time.Duration
}

// Unit is the diagnostic state of one attached host.
// All recording and dump methods are no-ops once the unit is detached.
type Unit struct {
	name       string
	port       regport.Port
	sink       sink.Sink
	thresholds map[evthist.Kind]uint64
	log        *slog.Logger

	state  dump.State
	target dump.Target
}

func newUnit(cfg UnitConfig, log *slog.Logger) (*Unit, error) {
	if cfg.Name == "" {
		return nil, errors.New("diag: unit name required")
	}
	if cfg.Port == nil {
		return nil, fmt.Errorf("diag: unit %q: port required", cfg.Name)
	}

	for _, c := range cfg.Capture {
		if c.Size < 0 || c.Size > dump.MaxCaptureBytes {
			return nil, fmt.Errorf("diag: unit %q: capture %q: size %d outside 0..%d", cfg.Name, c.Name, c.Size, dump.MaxCaptureBytes)
		}
		if c.Space == regport.SpacePhyLane {
			return nil, fmt.Errorf("diag: unit %q: capture %q: phy space cannot be captured", cfg.Name, c.Name)
		}
	}

	table := cfg.Table
	if table == nil {
		table = snapshot.DefaultTable()
	}
	store := snapshot.NewStore(table)
	if cfg.Lanes != 0 {
		if err := store.SetLaneCount(cfg.Lanes); err != nil {
			return nil, fmt.Errorf("diag: unit %q: %w", cfg.Name, err)
		}
	}

	var (
		ringOpts []cmdlog.Option
		histOpts []evthist.Option
	)
	if cfg.Clock != nil {
		ringOpts = append(ringOpts, cmdlog.WithClock(cfg.Clock))
		histOpts = append(histOpts, evthist.WithClock(cfg.Clock))
	}

	ring, err := cmdlog.New(orDefault(cfg.LogCapacity, cmdlog.DefaultCapacity), orDefault(cfg.MaxTags, cmdlog.DefaultMaxTags), ringOpts...)
	if err != nil {
		return nil, fmt.Errorf("diag: unit %q: %w", cfg.Name, err)
	}
	hist, err := evthist.New(orDefault(cfg.HistoryLength, evthist.DefaultLength), histOpts...)
	if err != nil {
		return nil, fmt.Errorf("diag: unit %q: %w", cfg.Name, err)
	}

	out := cfg.Sink
	if out == nil {
		out = sink.Multi{}
	}

	u := &Unit{
		name:       cfg.Name,
		port:       cfg.Port,
		sink:       out,
		thresholds: cfg.DumpThresholds,
		log:        log.With("host", cfg.Name),
	}
	u.target = dump.Target{
		Name:    cfg.Name,
		State:   &u.state,
		Store:   store,
		Log:     ring,
		History: hist,
		Capture: cfg.Capture,
		Logger:  log,
	}
	u.state.Activate()
	return u, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (u *Unit) Name() string { return u.name }

func (u *Unit) Active() bool { return u.state.Active() }

// RecordCommandStart logs a submitted command.
func (u *Unit) RecordCommandStart(c cmdlog.Command) {
	if !u.state.Active() {
		return
	}
	if err := u.target.Log.Start(c); err != nil {
		u.log.Warn("cmd log start rejected", "tag", c.Tag, "err", err)
	}
}

// RecordCommandEnd stamps the completion of tag.
// Unknown tags and completions for overwritten slots are logged only.
func (u *Unit) RecordCommandEnd(tag int) {
	if !u.state.Active() {
		return
	}
	err := u.target.Log.End(tag)
	switch {
	case err == nil:
	case errors.Is(err, cmdlog.ErrStaleSlot):
		u.log.Debug("cmd log completion for overwritten slot", "tag", tag, "err", err)
	default:
		u.log.Warn("cmd log end rejected", "tag", tag, "err", err)
	}
}

// RecordEvent appends to the event history and dumps once the kind
// crosses its threshold. It reports whether that dump was rendered.
func (u *Unit) RecordEvent(k evthist.Kind, value uint32) bool {
	if !u.state.Active() {
		return false
	}
	n, err := u.target.History.Record(k, value)
	if err != nil {
		u.log.Warn("event rejected", "kind", int(k), "err", err)
		return false
	}
	if limit, ok := u.thresholds[k]; ok && n > limit {
		return u.Dump(fmt.Sprintf("%s count %d", k, n)).Skipped == ""
	}
	return false
}

// CountHibern8 counts an auto-hibern8 enter or exit.
func (u *Unit) CountHibern8(enter bool) {
	if !u.state.Active() {
		return
	}
	u.state.CountHibern8(enter)
}

// SetLaneCount changes how many PHY lanes are dumped.
func (u *Unit) SetLaneCount(n int) error {
	if !u.state.Active() {
		return fmt.Errorf("%w: %s", ErrNotAttached, u.name)
	}
	return u.target.Store.SetLaneCount(n)
}

// Dump renders the unit to its configured sink. It never fails.
func (u *Unit) Dump(trigger string) dump.Result {
	return dump.Dump(&u.target, u.port, u.sink, trigger)
}

// DumpTo renders to the configured sink and to extra.
func (u *Unit) DumpTo(trigger string, extra sink.Sink) dump.Result {
	return dump.Dump(&u.target, u.port, sink.Multi{u.sink, extra}, trigger)
}

// Port returns the unit's register access port.
func (u *Unit) Port() regport.Port { return u.port }

// Commands returns up to limit of the newest retained commands, oldest
// first. limit <= 0 returns everything retained.
func (u *Unit) Commands(limit int) []cmdlog.Entry { return u.target.Log.Entries(limit) }

// MaxTags bounds the tags RecordCommandStart accepts.
func (u *Unit) MaxTags() int { return u.target.Log.MaxTags() }

// Events returns the history slots of kind.
func (u *Unit) Events(k evthist.Kind) []evthist.Record { return u.target.History.Records(k) }

// EventCount returns how many times kind was recorded.
func (u *Unit) EventCount(k evthist.Kind) uint64 { return u.target.History.Count(k) }

// Registers and Attributes return the last captured snapshot.
func (u *Unit) Registers() []snapshot.Descriptor  { return u.target.Store.Registers() }
func (u *Unit) Attributes() []snapshot.Descriptor { return u.target.Store.Attributes() }

// Status is a point-in-time summary of a unit.
type Status struct {
	Name          string `json:"name"`
	Active        bool   `json:"active"`
	FirstDumpDone bool   `json:"first_dump_done"`
	Dumps         uint64 `json:"dumps"`
	Commands      uint64 `json:"commands"`
	LogCapacity   int    `json:"log_capacity"`
	Lanes         int    `json:"lanes"`
	Hibern8Enter  uint64 `json:"hibern8_enter"`
	Hibern8Exit   uint64 `json:"hibern8_exit"`
}

func (u *Unit) Status() Status {
	enter, exit := u.state.Hibern8()
	return Status{
		Name:          u.name,
		Active:        u.state.Active(),
		FirstDumpDone: u.state.FirstDone(),
		Dumps:         u.state.Dumps(),
		Commands:      u.target.Log.Total(),
		LogCapacity:   u.target.Log.Capacity(),
		Lanes:         u.target.Store.LaneCount(),
		Hibern8Enter:  enter,
		Hibern8Exit:   exit,
	}
}
