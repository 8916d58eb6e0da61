// Package device implements a pure-Go USB 1.1/2.0 device stack.
//
// It is platform-agnostic and interacts with hardware via the
// [hal.DeviceHAL] interface defined in the [github.com/crockeo/fightkey/device/hal]
// package. The HAL exposes generic operations for initialization, connection,
// endpoint configuration, data I/O, and event polling, allowing platform
// vendors to provide concrete implementations without changing the device stack.
//
// # Architecture
//
// The device stack is organized into several parts:
//
//   - [Device] holds the keyboard's state aggregate (enumeration state,
//     address, configuration, idle rate, protocol, LED shadow, live keys)
//   - [Bundle] holds the single fixed descriptor set and the class driver
//   - [Stack] runs the control loop and the start-of-frame loop
//   - [Endpoint] models one endpoint's bank/FIFO flags
//   - [EmitDescriptor] writes an IN data stage in control-endpoint banks
//
// # Transfer Types
//
// Only control transfers (endpoint 0) and interrupt IN transfers (the
// single keyboard report endpoint) are used; there is no bulk or
// isochronous support.
//
// # Device States
//
// The device moves between three states:
//
//	Unknown → Disconnected → Attached
//
// Every bus reset returns it to Disconnected; a non-zero
// SET_CONFIGURATION moves it to Attached.
//
// # Zero-Allocation Design
//
// The stack is designed for bare-metal and TinyGo compatibility with minimal
// heap allocations. Key patterns include:
//
//   - Serialization via MarshalTo(buf) instead of allocating Bytes()
//   - Parse functions with output parameters instead of returning pointers
//   - Fixed-size arrays instead of maps for endpoints, interfaces, etc.
//   - Caller-provided buffers for descriptor and string generation
//
// # Class Drivers
//
// The [ClassDriver] interface enables USB class implementations:
//
//	type ClassDriver interface {
//	    Init(bundle *Bundle) error
//	    HandleSetup(bundle *Bundle, setup *SetupPacket, data []byte) (n int, handled bool, err error)
//	    Close() error
//	}
//
// The one class driver in this repository is the HID boot keyboard in
// [github.com/crockeo/fightkey/device/class/hid].
//
// # Example
//
//	dev := device.NewDevice()
//	bundle := device.NewBundle(0xFEED, 0x0001, 0x83, 1, hid.KeyboardReportDescriptor)
//	bundle.SetClassDriver(hid.NewKeyboardDriver(dev, hid.KeyboardReportDescriptor))
//	stack := device.NewStack(dev, bundle, h)
//	stack.Start(ctx)
//
// A FIFO-based HAL for testing is available in
// [github.com/crockeo/fightkey/device/hal/fifo].
package device
