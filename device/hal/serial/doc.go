// Package serial implements a hal.DeviceHAL over a UART using
// go.bug.st/serial, for boards that pair this device stack with an
// external USB co-processor reachable only as a serial line.
//
// # Framing
//
// Both directions share the same [type, length_lo, length_hi, payload]
// framing the FIFO HAL uses, so a co-processor firmware speaking one can
// speak the other with a different transport underneath:
//
//   - SETUP frames carry the 8-byte SETUP packet (and any OUT-stage
//     payload for host-to-device class requests) from the co-processor
//   - DATA frames carry control IN responses and interrupt reports
//   - ACK/STALL frames complete the status stage
//   - RESET/ADDRESS frames relay bus reset and SET_ADDRESS out-of-band
//
// # Zero-Allocation Design
//
// Reads and writes land in fixed [HAL.readBuf]/[HAL.writeBuf] arrays; no
// frame triggers a heap allocation once the port is open.
//
// # Usage
//
//	h := serial.New("/dev/ttyACM0", 115200)
//
//	dev := device.NewDevice()
//	bundle := device.NewBundle(0x1209, 0x0001, 0x81, 10, hid.KeyboardReportDescriptor)
//	bundle.SetClassDriver(hid.NewKeyboardDriver(dev, hid.KeyboardReportDescriptor))
//
//	stack := device.NewStack(dev, bundle, h)
//	stack.Start(ctx)
package serial
