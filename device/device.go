package device

import (
	"sync"

	"github.com/crockeo/fightkey/pkg"
)

// ReportSize is the length in bytes of a boot-protocol keyboard report
// (spec.md §6: modifier byte, reserved byte, six keycode bytes).
const ReportSize = 8

// MaxRolloverKeys is the number of simultaneously-pressed keys the boot
// report can carry. Beyond this the host is expected to see the
// phantom-state all-ones rollover report; n-key rollover is a Non-goal.
const MaxRolloverKeys = 6

// Device is the single fixed-shape state aggregate for this keyboard.
// Unlike a general USB stack modelling many configurations, interfaces,
// and endpoints, this device has exactly one of each, so its state lives
// as a flat set of fields rather than a tree of dynamically-sized
// objects (spec.md §3, §9).
//
// Every field that the control-transfer goroutine and the
// start-of-frame goroutine can touch concurrently is guarded by mu.
// The accessor methods below take mu themselves. EnterCritical and
// ExitCritical expose the same lock so a caller can group several
// unsynchronized writes (SetModifier, SetPressedKey) into one critical
// section; mu is not reentrant, so the locking accessors must not be
// called between EnterCritical and ExitCritical.
type Device struct {
	mu sync.Mutex

	state       State
	address     uint8
	configValue uint8

	idleValue   uint8 // units of 4ms, set by SET_IDLE; 0 = indefinite
	defaultIdle uint8 // idleValue restored on every bus reset; seeded by config.DeviceConfig.DefaultIdleRate
	currentIdle uint8 // refreshed every 4th SOF tick, compared to idleValue
	sofCounter  uint8 // free-running SOF tick counter

	protocol uint8 // 0 = Boot, 1 = Report (spec.md §6)

	// modifier and pressedKeys are the live boot-report payload. They are
	// written directly from the input-matrix scan (out of scope here)
	// with single-byte volatile stores and read back under the lock when
	// a report is assembled; a torn read only ever produces a report one
	// scan tick stale, never a corrupt one.
	modifier    uint8
	pressedKeys [MaxRolloverKeys]uint8

	ledShadow uint8 // last LED state accepted via SET_REPORT (spec.md Non-goals: acknowledged, not acted on)
}

// NewDevice constructs a device in the power-up Unknown state.
func NewDevice() *Device {
	return &Device{state: StateUnknown}
}

// EnterCritical acquires the device's exclusive lock. Callers must pair
// every EnterCritical with ExitCritical; see the Device doc comment for
// which methods may be called while it is held.
func (d *Device) EnterCritical() {
	d.mu.Lock()
}

// ExitCritical releases the device's exclusive lock.
func (d *Device) ExitCritical() {
	d.mu.Unlock()
}

// State returns the current enumeration state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Address returns the address assigned by SET_ADDRESS (0 before assignment).
func (d *Device) Address() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

// ConfigValue returns the configuration value accepted by SET_CONFIGURATION.
func (d *Device) ConfigValue() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configValue
}

// Protocol returns the current HID protocol: 0 (Boot) or 1 (Report).
func (d *Device) Protocol() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.protocol
}

// LEDShadow returns the last LED output byte accepted from the host.
func (d *Device) LEDShadow() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ledShadow
}

// Modifier returns the live modifier byte. Unsynchronized: the scan
// loop that owns this field performs single-byte atomic writes.
func (d *Device) Modifier() uint8 {
	return d.modifier
}

// SetModifier stores the live modifier byte from the input scan.
func (d *Device) SetModifier(m uint8) {
	d.modifier = m
}

// PressedKeys returns a snapshot of the live keycode slots. Unsynchronized
// for the same reason as Modifier.
func (d *Device) PressedKeys() [MaxRolloverKeys]uint8 {
	return d.pressedKeys
}

// SetPressedKey stores keycode into slot i (0..MaxRolloverKeys-1) of the
// live keycode array.
func (d *Device) SetPressedKey(i int, keycode uint8) {
	d.pressedKeys[i] = keycode
}

// OnEndOfReset handles the End-Of-Reset interrupt (spec.md §4.6): every
// bus reset, regardless of prior state, lands the device back in
// Disconnected with its address and configuration cleared, the idle
// duration restored to the SetDefaultIdle value, the idle and SOF
// counters zeroed, and the protocol set back to Boot. The
// control endpoint's re-enablement for RX-SETUP happens in the caller
// (the HAL reconfigure step), since OnEndOfReset only owns device state.
func (d *Device) OnEndOfReset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateDisconnected
	d.address = 0
	d.configValue = 0
	d.idleValue = d.defaultIdle
	d.currentIdle = 0
	d.sofCounter = 0
	d.protocol = 0
}

// SetDefaultIdle seeds the idle duration OnEndOfReset restores on every bus
// reset, in the same 4ms units as SetIdle. This is how a host-independent
// default idle rate (spec.md §9 Open Question 2's usb_config_t analogue,
// see config.DeviceConfig.DefaultIdleRate) survives the reset that would
// otherwise always zero it back to indefinite.
func (d *Device) SetDefaultIdle(idle uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defaultIdle = idle
}

// SetAddress records the address assigned by a SET_ADDRESS request. The
// actual ADDEN|addr register sequencing (apply after the status stage
// completes) lives in the HAL; this only updates the visible address.
func (d *Device) SetAddress(addr uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.address = addr
}

// SetConfigurationValue handles SET_CONFIGURATION. A non-zero value
// advances the device to Attached; spec.md §3 names Attached as reached
// only this way, and this device supports exactly one configuration, so
// any non-zero value is accepted. A zero value deconfigures back to
// Disconnected, matching the standard "address state" re-entry.
func (d *Device) SetConfigurationValue(value uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configValue = value
	if value != 0 {
		d.state = StateAttached
	} else {
		d.state = StateDisconnected
	}
}

// SetIdle implements SET_IDLE (HID 1.11 §7.2.4). wValue's low byte is
// the idle duration in 4ms units, stored whole with no shift applied
// (resolved design question: the original firmware stores the raw
// 16-bit setup packet value field directly into idle_value, and the
// low byte is what later leaks out through the single-byte GET_IDLE
// response).
func (d *Device) SetIdle(wValue uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idleValue = uint8(wValue)
	d.currentIdle = 0
}

// GetIdle implements GET_IDLE, returning the stored idle duration.
func (d *Device) GetIdle() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idleValue
}

// SetProtocol implements SET_PROTOCOL. protocol is 0 (Boot) or 1 (Report).
func (d *Device) SetProtocol(protocol uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.protocol = protocol
}

// GetProtocol implements GET_PROTOCOL.
func (d *Device) GetProtocol() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.protocol
}

// SetLED implements the single-byte SET_REPORT output report this
// keyboard accepts: the LED state is stored but never driven onto GPIO
// (LED output beyond acknowledgment is a Non-goal).
func (d *Device) SetLED(b uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ledShadow = b
}

// BuildReport assembles the current boot-protocol report into buf, which
// must be at least ReportSize bytes. Byte 0 is the modifier, byte 1 is
// reserved (always zero), and bytes 2-7 are the pressed-key slots.
func (d *Device) BuildReport(buf []byte) int {
	if len(buf) < ReportSize {
		return 0
	}
	buf[0] = d.modifier
	buf[1] = 0
	copy(buf[2:8], d.pressedKeys[:])
	return ReportSize
}

// SubmitReport implements submit_report (spec.md §4.5): while holding
// the device lock, verify Attached, assemble the live keycode state into
// an 8-byte report, hand it to the HAL for transmission, and reset the
// idle counter so the next SOF-driven refresh starts a fresh interval.
func (d *Device) SubmitReport(write func([]byte) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateAttached {
		return pkg.ErrNotAttached
	}

	var report [ReportSize]byte
	d.BuildReport(report[:])

	if err := write(report[:]); err != nil {
		return err
	}

	d.currentIdle = 0
	return nil
}

// OnStartOfFrame implements the periodic report engine's per-SOF tick
// (spec.md §4.4). It runs only while Attached: every 4th tick (the low
// two bits of the free-running counter both zero) it advances
// current_idle, and when current_idle reaches a non-zero idle_value it
// resets the counter and calls refresh to emit a report if the host's
// bank has room. refresh is given the live keycode state already
// assembled so it only needs to perform the bank-writable check and the
// write itself; it returns whether a report was actually written.
func (d *Device) OnStartOfFrame(refresh func(report []byte) (wrote bool, err error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateAttached {
		return nil
	}

	d.sofCounter++
	if d.sofCounter&0x03 != 0 {
		return nil
	}

	d.currentIdle++
	if d.idleValue == 0 || d.currentIdle != d.idleValue {
		return nil
	}
	d.currentIdle = 0

	var report [ReportSize]byte
	d.BuildReport(report[:])
	_, err := refresh(report[:])
	return err
}
