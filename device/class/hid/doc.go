// Package hid implements the boot-protocol HID keyboard class driver for
// the softusb device stack.
//
// # Architecture
//
// This device exposes a single HID interface:
//
//   - One Interrupt IN endpoint carrying the 8-byte boot keyboard report
//   - HID class descriptors (HID descriptor, Report descriptor)
//
// Unlike a general-purpose HID package serving keyboards, mice, and
// gamepads off shared report machinery, this driver implements exactly
// one device: the boot-protocol keyboard. Idle rate, protocol
// selection, and LED shadow state are not duplicated here - they live
// on the registered [device.Device], which this driver's class
// requests read and write directly.
//
// # Zero-Allocation Design
//
//   - Reports are assembled into caller-provided buffers
//   - The report descriptor is stored by reference, not copied
//
// # Usage
//
//	dev := device.NewDevice()
//	bundle := device.NewBundle(0x1209, 0x0001, 0x81, 10, hid.KeyboardReportDescriptor)
//	bundle.SetClassDriver(hid.NewKeyboardDriver(dev, hid.KeyboardReportDescriptor))
//
//	stack := device.NewStack(dev, bundle, hal)
//	stack.Start(ctx)
//
// The input-matrix scan loop (out of scope for this package) calls
// dev.SetModifier and dev.SetPressedKey directly as keys change state.
package hid
