package hid

import (
	"github.com/crockeo/fightkey/device"
	"github.com/crockeo/fightkey/pkg"
)

// KeyboardDriver is the class driver for the boot-protocol keyboard
// interface. It owns no state of its own beyond the report descriptor
// it was built with: idle rate, protocol, and the LED shadow byte all
// live on the registered [device.Device], so there is exactly one
// source of truth for them (spec.md §4.3, §9).
type KeyboardDriver struct {
	dev              *device.Device
	reportDescriptor []byte
}

// NewKeyboardDriver constructs the keyboard class driver bound to dev.
// reportDescriptor is served verbatim on GET_DESCRIPTOR(HIDReport).
func NewKeyboardDriver(dev *device.Device, reportDescriptor []byte) *KeyboardDriver {
	return &KeyboardDriver{dev: dev, reportDescriptor: reportDescriptor}
}

var _ device.ClassDriver = (*KeyboardDriver)(nil)

// Init is a no-op: the device's idle/protocol/LED state already starts
// zeroed by NewDevice, and this driver keeps no bundle-scoped state.
func (k *KeyboardDriver) Init(bundle *device.Bundle) error {
	pkg.LogDebug(pkg.ComponentHID, "keyboard class driver initialized")
	return nil
}

// HandleSetup implements the six HID class requests this boot keyboard
// recognises (HID 1.11 §7.2): GET_REPORT, GET_IDLE, GET_PROTOCOL,
// SET_REPORT, SET_IDLE, SET_PROTOCOL. Anything else - including every
// class request not addressed to this interface - is left unhandled so
// the caller can STALL it.
func (k *KeyboardDriver) HandleSetup(bundle *device.Bundle, setup *device.SetupPacket, data []byte) (int, bool, error) {
	if !setup.IsClass() || !setup.IsInterfaceRecipient() {
		return 0, false, nil
	}
	if setup.InterfaceNumber() != 0 {
		return 0, false, nil
	}

	switch setup.Request {
	case device.RequestGetReport:
		return k.getReport(setup, data)
	case device.RequestGetIdle:
		return k.getIdle(data)
	case device.RequestGetProtocol:
		return k.getProtocol(data)
	case device.RequestSetReport:
		return k.setReport(setup, data)
	case device.RequestSetIdle:
		return k.setIdle(setup)
	case device.RequestSetProtocol:
		return k.setProtocol(setup)
	default:
		return 0, false, nil
	}
}

// getReport implements GET_REPORT for the Input report: it returns the
// live boot report (spec.md §6), irrespective of the report ID in
// wValue's low byte, since this device exposes exactly one report.
func (k *KeyboardDriver) getReport(setup *device.SetupPacket, data []byte) (int, bool, error) {
	reportType := uint8(setup.Value >> 8)
	if reportType != ReportTypeInput {
		return 0, true, pkg.ErrUnsupportedRequest
	}
	if len(data) < device.ReportSize {
		return 0, true, pkg.ErrBufferTooSmall
	}
	n := k.dev.BuildReport(data)
	return n, true, nil
}

// getIdle implements GET_IDLE, returning the one-byte idle rate.
func (k *KeyboardDriver) getIdle(data []byte) (int, bool, error) {
	if len(data) < 1 {
		return 0, true, pkg.ErrBufferTooSmall
	}
	data[0] = k.dev.GetIdle()
	return 1, true, nil
}

// getProtocol implements GET_PROTOCOL, returning the one-byte protocol.
func (k *KeyboardDriver) getProtocol(data []byte) (int, bool, error) {
	if len(data) < 1 {
		return 0, true, pkg.ErrBufferTooSmall
	}
	data[0] = k.dev.GetProtocol()
	return 1, true, nil
}

// setReport implements SET_REPORT for the Output report: the single
// LED-state byte the host writes is acknowledged and shadowed, never
// driven onto hardware (spec.md Non-goals).
func (k *KeyboardDriver) setReport(setup *device.SetupPacket, data []byte) (int, bool, error) {
	reportType := uint8(setup.Value >> 8)
	if reportType != ReportTypeOutput {
		return 0, true, pkg.ErrUnsupportedRequest
	}
	if len(data) < 1 {
		return 0, true, pkg.ErrUnsupportedRequest
	}
	k.dev.SetLED(data[0])
	return 0, true, nil
}

// setIdle implements SET_IDLE.
func (k *KeyboardDriver) setIdle(setup *device.SetupPacket) (int, bool, error) {
	k.dev.SetIdle(setup.Value)
	return 0, true, nil
}

// setProtocol implements SET_PROTOCOL, storing the high byte of wValue
// as the protocol.
func (k *KeyboardDriver) setProtocol(setup *device.SetupPacket) (int, bool, error) {
	k.dev.SetProtocol(uint8(setup.Value >> 8))
	return 0, true, nil
}

// Close releases no resources; the class driver holds none beyond the
// device reference and the report descriptor slice.
func (k *KeyboardDriver) Close() error {
	pkg.LogDebug(pkg.ComponentHID, "keyboard class driver closed")
	return nil
}
