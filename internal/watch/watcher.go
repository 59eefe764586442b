// internal/watch/watcher.go
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tamzrod/ufsdiag/internal/dump"
	"github.com/tamzrod/ufsdiag/internal/evthist"
	"github.com/tamzrod/ufsdiag/internal/regport"
	"github.com/tamzrod/ufsdiag/internal/status"
)

// ---- UFSHCI interrupt status layout ----

const (
	RegIS     uint32 = 0x20
	RegUECPA  uint32 = 0x38
	RegUECDL  uint32 = 0x3C
	RegUECN   uint32 = 0x40
	RegUECT   uint32 = 0x44
	RegUECDME uint32 = 0x48
)

const (
	ISUICError     uint32 = 1 << 2
	ISHibern8Exit  uint32 = 1 << 5
	ISHibern8Enter uint32 = 1 << 6
	ISDeviceFatal  uint32 = 1 << 11
	ISUTPError     uint32 = 1 << 12
	ISHostFatal    uint32 = 1 << 16
	ISBusFatal     uint32 = 1 << 17

	ISFatalMask = ISDeviceFatal | ISUTPError | ISHostFatal | ISBusFatal
	ISErrorMask = ISUICError | ISFatalMask

	// UECErrorBit is set in a UIC error code register when it holds an error.
	UECErrorBit uint32 = 1 << 31
)

// uicErrors maps each UIC error code register to its event kind.
var uicErrors = []struct {
	reg  uint32
	kind evthist.Kind
}{
	{RegUECPA, evthist.PAErr},
	{RegUECDL, evthist.DLErr},
	{RegUECN, evthist.NLErr},
	{RegUECT, evthist.TLErr},
	{RegUECDME, evthist.DMEErr},
}

// Recorder receives what the watcher decodes. *diag.Unit implements it.
// RecordEvent reports whether recording the event already produced a dump.
type Recorder interface {
	RecordEvent(k evthist.Kind, value uint32) bool
	CountHibern8(enter bool)
	Dump(trigger string) dump.Result
}

// Config is the minimal runtime config the watcher needs.
type Config struct {
	Host        string
	Interval    time.Duration
	DumpOnFatal bool
}

// Result is what one poll cycle observed.
type Result struct {
	Host   string
	At     time.Time
	IS     uint32
	Events []evthist.Kind
	Dumped bool
	Err    error // non-nil means IS could not be read
}

// Watcher is a clock-driven interrupt status reader for one host.
// Events are recorded on rising edges of IS bits; health follows the
// current level.
type Watcher struct {
	cfg    Config
	port   regport.Port
	rec    Recorder
	status *status.Tracker
	log    *slog.Logger

	prev uint32
}

// New creates a watcher with immutable config.
func New(cfg Config, port regport.Port, rec Recorder, tracker *status.Tracker, log *slog.Logger) (*Watcher, error) {
	if cfg.Host == "" {
		return nil, errors.New("watch: host required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("watch: interval must be > 0")
	}
	if port == nil || rec == nil || tracker == nil {
		return nil, errors.New("watch: port, recorder and tracker required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		cfg:    cfg,
		port:   port,
		rec:    rec,
		status: tracker,
		log:    log.With("host", cfg.Host),
	}, nil
}

// PollOnce performs exactly one poll cycle.
func (w *Watcher) PollOnce() Result {
	res := Result{Host: w.cfg.Host, At: time.Now()}

	is, err := w.port.ReadStandard(RegIS)
	if err != nil {
		res.Err = fmt.Errorf("watch: read IS: %w", err)
		w.status.Observe(status.ErrorCodeUnreadable)
		return res
	}
	res.IS = is

	rising := is &^ w.prev
	w.prev = is

	if rising&ISHibern8Enter != 0 {
		w.rec.CountHibern8(true)
	}
	if rising&ISHibern8Exit != 0 {
		w.rec.CountHibern8(false)
	}

	if rising&ISUICError != 0 {
		for _, u := range uicErrors {
			v, err := w.port.ReadStandard(u.reg)
			if err != nil {
				w.log.Warn("uic error register read failed", "reg", fmt.Sprintf("0x%02x", u.reg), "err", err)
				continue
			}
			if v&UECErrorBit == 0 {
				continue
			}
			if w.rec.RecordEvent(u.kind, v) {
				res.Dumped = true
			}
			res.Events = append(res.Events, u.kind)
		}
	}

	if fatal := rising & ISFatalMask; fatal != 0 {
		dumped := w.rec.RecordEvent(evthist.FatalErr, is)
		res.Events = append(res.Events, evthist.FatalErr)
		// one dump per fatal edge even when a fatal_err threshold fired
		if w.cfg.DumpOnFatal && !dumped {
			r := w.rec.Dump(fmt.Sprintf("fatal error IS=0x%08x", is))
			dumped = r.Skipped == ""
		}
		res.Dumped = res.Dumped || dumped
	}

	if w.status.Observe(is & ISErrorMask) {
		snap := w.status.Snapshot()
		w.log.Info("health changed", "health", snap.Health.String(), "code", fmt.Sprintf("0x%08x", snap.LastErrorCode))
	}
	return res
}
