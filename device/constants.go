package device

import "fmt"

// Device states (spec.md §3): the device only ever occupies one of three
// states, monotone within a bus session. Unknown is the power-up state
// before usb_init's hardware bring-up completes; Disconnected is entered
// on successful controller initialisation and on every End-Of-Reset
// interrupt; Attached is entered only when the host issues
// SET_CONFIGURATION with a non-zero configuration value. Only Attached
// permits report submission and SOF-driven idle refresh.
const (
	StateUnknown      State = 0
	StateDisconnected State = 1
	StateAttached     State = 2
)

// State represents the device's enumeration state.
type State uint8

// String returns a human-readable state description.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateDisconnected:
		return "Disconnected"
	case StateAttached:
		return "Attached"
	default:
		return fmt.Sprintf("Unknown State (%d)", s)
	}
}
