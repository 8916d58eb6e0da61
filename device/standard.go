package device

import (
	"github.com/crockeo/fightkey/pkg"
)

// MaxControlResponseSize is the largest response a standard request can
// produce: the full configuration bundle (configuration + interface +
// HID + endpoint descriptors) fits well within it, as does the report
// descriptor (spec.md §4.2 bounds every GET_DESCRIPTOR response to 255
// bytes regardless).
const MaxControlResponseSize = MaxDescriptorResponseLength

// StandardRequestHandler implements the five standard device requests
// this device recognises (spec.md §4.1): GET_STATUS, SET_ADDRESS,
// GET_DESCRIPTOR, GET_CONFIGURATION, SET_CONFIGURATION. Every other
// standard request, and every non-device recipient, is left for the
// caller to STALL - interface and endpoint status, feature toggles,
// and alternate settings are all Non-goals.
type StandardRequestHandler struct {
	device *Device
	bundle *Bundle

	// responseBuf backs every device-to-host response this handler
	// produces; the returned slice always aliases it.
	responseBuf [MaxControlResponseSize]byte
}

// NewStandardRequestHandler creates a handler for dev's standard
// requests, serving descriptors out of bundle.
func NewStandardRequestHandler(dev *Device, bundle *Bundle) *StandardRequestHandler {
	return &StandardRequestHandler{device: dev, bundle: bundle}
}

// HandleSetup processes a standard SETUP request. For a device-to-host
// request it returns the response bytes (aliasing the handler's
// internal buffer, valid only until the next call); for a
// host-to-device request it returns nil on success.
func (h *StandardRequestHandler) HandleSetup(setup *SetupPacket) ([]byte, error) {
	if !setup.IsStandard() || !setup.IsDeviceRecipient() {
		return nil, pkg.ErrUnsupportedRequest
	}

	switch setup.Request {
	case RequestGetStatus:
		return h.getStatus(setup)
	case RequestSetAddress:
		return nil, h.setAddress(setup)
	case RequestGetDescriptor:
		return h.getDescriptor(setup)
	case RequestGetConfiguration:
		return h.getConfiguration(setup)
	case RequestSetConfiguration:
		return nil, h.setConfiguration(setup)
	default:
		return nil, pkg.ErrUnsupportedRequest
	}
}

// getStatus returns the 2-byte device status. Remote wake-up and
// self-powered reporting are Non-goals, so both status bits are
// always clear.
func (h *StandardRequestHandler) getStatus(setup *SetupPacket) ([]byte, error) {
	if setup.Length < 2 {
		return nil, pkg.ErrUnsupportedRequest
	}
	h.responseBuf[0] = 0
	h.responseBuf[1] = 0
	return h.responseBuf[:2], nil
}

// setAddress records the address the host assigned during enumeration.
func (h *StandardRequestHandler) setAddress(setup *SetupPacket) error {
	h.device.SetAddress(uint8(setup.Value & 0x7F))
	return nil
}

// getDescriptor handles GET_DESCRIPTOR for the four descriptor types
// this device serves: Device, Configuration (the full bundle), the HID
// descriptor alone, and the HID report descriptor. Anything else -
// including String, which this device deliberately does not support
// (spec.md §9 Open Question 3) - STALLs.
func (h *StandardRequestHandler) getDescriptor(setup *SetupPacket) ([]byte, error) {
	var n int
	switch setup.DescriptorType() {
	case DescriptorTypeDevice:
		n = h.bundle.Device.MarshalTo(h.responseBuf[:])
	case DescriptorTypeConfiguration:
		n = h.bundle.MarshalConfigurationBundle(h.responseBuf[:])
	case DescriptorTypeHID:
		n = h.bundle.HID.MarshalTo(h.responseBuf[:])
	case DescriptorTypeHIDReport:
		n = copy(h.responseBuf[:], h.bundle.ReportDescriptor)
	default:
		return nil, pkg.ErrUnsupportedDescriptor
	}
	if n == 0 {
		return nil, pkg.ErrBufferTooSmall
	}
	return h.responseBuf[:n], nil
}

// getConfiguration handles GET_CONFIGURATION.
func (h *StandardRequestHandler) getConfiguration(setup *SetupPacket) ([]byte, error) {
	h.responseBuf[0] = h.device.ConfigValue()
	return h.responseBuf[:1], nil
}

// setConfiguration handles SET_CONFIGURATION. Any non-zero value is
// accepted (this device has exactly one configuration); zero
// deconfigures back to Disconnected.
func (h *StandardRequestHandler) setConfiguration(setup *SetupPacket) error {
	h.device.SetConfigurationValue(uint8(setup.Value & 0xFF))
	return nil
}
