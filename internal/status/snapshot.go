// internal/status/snapshot.go
package status

import "time"

// Snapshot is the current health of one host.
// It holds no memory of the past beyond current state.
type Snapshot struct {
	Health         Health    `json:"health"`
	LastErrorCode  uint32    `json:"last_error_code"`
	SecondsInError uint16    `json:"seconds_in_error"`
	UpdatedAt      time.Time `json:"updated_at"`
}
