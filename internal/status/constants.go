// internal/status/constants.go
package status

import "fmt"

// ---- HEALTH CODES ----

// Health is the coarse state of one monitored host.
type Health uint16

const (
	// HealthUnknown represents an unknown or boot state.
	HealthUnknown Health = 0

	// HealthOK represents a host with no pending error bits.
	HealthOK Health = 1

	// HealthError represents a host reporting error bits, or one whose
	// status register cannot be read.
	HealthError Health = 2

	// HealthStale represents a host that has not been polled recently.
	HealthStale Health = 3

	// HealthDisabled represents a detached host.
	HealthDisabled Health = 4
)

// ---- LIMITS ----

// MaxSecondsInError saturates the seconds-in-error counter.
const MaxSecondsInError = 65535

// ErrorCodeUnreadable is the last error code when the poll itself failed.
const ErrorCodeUnreadable uint32 = 1

var healthNames = map[Health]string{
	HealthUnknown:  "unknown",
	HealthOK:       "ok",
	HealthError:    "error",
	HealthStale:    "stale",
	HealthDisabled: "disabled",
}

func (h Health) String() string {
	if n, ok := healthNames[h]; ok {
		return n
	}
	return "unknown"
}

// MarshalText renders the health by name in JSON.
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText accepts the names MarshalText produces.
func (h *Health) UnmarshalText(b []byte) error {
	for code, name := range healthNames {
		if name == string(b) {
			*h = code
			return nil
		}
	}
	return fmt.Errorf("status: unknown health %q", b)
}
