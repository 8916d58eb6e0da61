// Package fifo implements a FIFO-based HAL for USB device stacks using named pipes.
//
// This HAL is primarily intended for testing and simulation purposes. It allows
// host and device stacks to communicate via named pipes (FIFOs) in the filesystem,
// enabling integration testing of USB class drivers without actual hardware.
//
// # Architecture
//
// Each device instance creates a unique subdirectory under a shared bus directory:
//
//	/tmp/usb-bus/                    # Bus directory (shared with host)
//	└── device-{uuid}/               # Device subdirectory (unique per device)
//	    ├── connection               # Connection signaling (device → host)
//	    ├── host_to_device           # Control transfers from host (SETUP/DATA)
//	    ├── device_to_host           # Control transfer responses to host
//	    └── ep3_in, ep3_out          # The boot keyboard's interrupt endpoint
//
// This device has exactly one data endpoint (the interrupt IN report
// endpoint, number 3), so unlike a general-purpose USB HAL this package
// never creates FIFOs for endpoints 1-2 or 4-15.
//
// The device directory's UUID is generated with [github.com/google/uuid]
// for cryptographic uniqueness, enabling safe parallel testing with
// multiple device instances.
//
// # Hot-Plugging Support
//
// The device signals connection and disconnection via the connection FIFO:
//   - 0x01: Device connected and ready
//   - 0x00: Device disconnecting
//
// This allows the host to poll for devices and handle them independently,
// supporting hot-plugging scenarios where devices connect/disconnect dynamically.
//
// # Zero-Allocation Design
//
// This implementation follows zero-allocation patterns:
//
//   - Fixed-size internal buffers for packet assembly
//   - Reuses caller-provided buffers for data transfer
//   - No dynamic memory allocation in hot paths
//
// # Usage
//
//	// Create device-side HAL with bus directory
//	h := fifo.New("/tmp/usb-bus")
//
//	dev := device.NewDevice()
//	bundle := device.NewBundle(0x1209, 0x0001, 0x83, 10, hid.KeyboardReportDescriptor)
//	bundle.SetClassDriver(hid.NewKeyboardDriver(dev, hid.KeyboardReportDescriptor))
//
//	stack := device.NewStack(dev, bundle, h)
//	stack.Start(ctx)
//
//	// Get the device's unique directory
//	fmt.Printf("Device directory: %s\n", h.DeviceDir())
//
// The host-side process uses the corresponding host FIFO HAL with the same
// bus directory path to discover and communicate with devices.
package fifo
