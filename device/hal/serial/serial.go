// Package serial implements hal.DeviceHAL over a single UART link using
// go.bug.st/serial, for boards where the USB PHY sits behind a
// co-processor that exposes its control/interrupt traffic as a framed
// byte stream rather than memory-mapped bank registers.
package serial

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	goserial "go.bug.st/serial"

	"github.com/crockeo/fightkey/device/hal"
	"github.com/crockeo/fightkey/pkg"
)

// InterruptEndpointNumber is the only data endpoint this device exposes.
const InterruptEndpointNumber = 3

// MaxPacketSize bounds a single framed message's payload.
const MaxPacketSize = 512

// SOFInterval is the full-speed frame period this HAL synthesizes
// locally; the co-processor's own SOF ticks are not relayed over the
// link, since the report engine only needs a steady 1ms cadence.
const SOFInterval = time.Millisecond

// Message types, framed as [type(1), length_lo, length_hi, payload...].
const (
	msgSetup   = 0x01
	msgData    = 0x02
	msgAck     = 0x03
	msgStall   = 0x05
	msgReset   = 0x12
	msgAddress = 0x13
)

const headerSize = 3

// HAL implements hal.DeviceHAL by framing control and interrupt traffic
// over a single serial port shared with a USB co-processor.
type HAL struct {
	portName string
	baudRate int

	mutex  sync.Mutex
	port   goserial.Port
	opened bool

	address     uint8
	endpoint    hal.EndpointConfig
	hasEndpoint bool

	connected uint32

	connectCh chan struct{}
	disconnCh chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once

	sofTicker *time.Ticker

	readBuf  [MaxPacketSize + headerSize]byte
	writeBuf [MaxPacketSize + headerSize]byte

	pendingSetup    hal.SetupPacket
	hasPendingSetup bool
}

// New creates a serial-backed HAL that will open portName at baudRate on
// Init.
func New(portName string, baudRate int) *HAL {
	return &HAL{
		portName:  portName,
		baudRate:  baudRate,
		connectCh: make(chan struct{}, 1),
		disconnCh: make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
	}
}

// Init opens the serial port.
func (h *HAL) Init(ctx context.Context) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.opened {
		return pkg.ErrAlreadyRunning
	}

	port, err := goserial.Open(h.portName, &goserial.Mode{BaudRate: h.baudRate})
	if err != nil {
		return err
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return err
	}

	h.port = port
	h.opened = true
	pkg.LogInfo(pkg.ComponentHAL, "serial device HAL initialized",
		"port", h.portName, "baud", h.baudRate)
	return nil
}

// Start begins the local Start-of-Frame ticker and marks the link
// connected. The co-processor signals the host-side connection state on
// its own; this HAL has no visibility into it beyond "port is open".
func (h *HAL) Start() error {
	h.mutex.Lock()
	if !h.opened {
		h.mutex.Unlock()
		return pkg.ErrNotConfigured
	}
	h.sofTicker = time.NewTicker(SOFInterval)
	h.mutex.Unlock()

	h.setConnected(true)
	pkg.LogInfo(pkg.ComponentHAL, "serial device HAL started")
	return nil
}

// Stop closes the serial port and stops the ticker.
func (h *HAL) Stop() error {
	h.setConnected(false)

	h.closeOnce.Do(func() {
		close(h.closeCh)
	})

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.sofTicker != nil {
		h.sofTicker.Stop()
		h.sofTicker = nil
	}
	if h.port != nil {
		err := h.port.Close()
		h.port = nil
		h.opened = false
		return err
	}
	return nil
}

func (h *HAL) setConnected(connected bool) {
	if connected {
		select {
		case h.connectCh <- struct{}{}:
		default:
		}
	} else {
		select {
		case h.disconnCh <- struct{}{}:
		default:
		}
	}
}

// SetAddress records the device address assigned during enumeration.
func (h *HAL) SetAddress(address uint8) error {
	h.mutex.Lock()
	h.address = address
	h.mutex.Unlock()
	return nil
}

// ConfigureEndpoints configures the single interrupt endpoint this
// device exposes.
func (h *HAL) ConfigureEndpoints(endpoints []hal.EndpointConfig) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.hasEndpoint = false
	for _, ep := range endpoints {
		if ep.Number() != InterruptEndpointNumber {
			return pkg.ErrInvalidEndpoint
		}
		h.endpoint = ep
		h.hasEndpoint = true
	}
	return nil
}

// ReadSetup blocks on the serial link until a SETUP frame arrives.
func (h *HAL) ReadSetup(ctx context.Context, out *hal.SetupPacket) error {
	h.mutex.Lock()
	if h.hasPendingSetup {
		*out = h.pendingSetup
		h.hasPendingSetup = false
		h.mutex.Unlock()
		return nil
	}
	h.mutex.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.closeCh:
			return pkg.ErrCancelled
		default:
		}

		msgType, payload, err := h.readFrame(ctx)
		if err != nil {
			return err
		}

		switch msgType {
		case msgSetup:
			if len(payload) < hal.SetupPacketSize {
				return pkg.ErrSetupPacketTooShort
			}
			if !hal.ParseSetupPacket(payload, out) {
				return pkg.ErrSetupPacketTooShort
			}
			return nil

		case msgReset:
			h.sendFrame(msgAck, nil)
			return pkg.ErrReset

		case msgAddress:
			if len(payload) >= 1 {
				h.mutex.Lock()
				h.address = payload[0]
				h.mutex.Unlock()
				h.sendFrame(msgAck, nil)
			}
			continue

		default:
			pkg.LogWarn(pkg.ComponentHAL, "unexpected frame on control link", "type", msgType)
			continue
		}
	}
}

// WriteEP0 sends a DATA frame for the control IN stage.
func (h *HAL) WriteEP0(ctx context.Context, data []byte) error {
	return h.sendFrame(msgData, data)
}

// ReadEP0 is a no-op: OUT-stage payloads for this device's one
// host-to-device class request (SET_REPORT) arrive packed into the
// SETUP frame's payload by the co-processor, mirroring the FIFO HAL.
func (h *HAL) ReadEP0(ctx context.Context, buf []byte) (int, error) {
	return 0, nil
}

// StallEP0 sends a STALL frame.
func (h *HAL) StallEP0() error {
	return h.sendFrame(msgStall, nil)
}

// AckEP0 sends an ACK frame.
func (h *HAL) AckEP0() error {
	return h.sendFrame(msgAck, nil)
}

// Read is unsupported: the interrupt endpoint is IN-only.
func (h *HAL) Read(ctx context.Context, address uint8, buf []byte) (int, error) {
	return 0, pkg.ErrInvalidEndpoint
}

// Write sends a report as a DATA frame for the interrupt endpoint.
func (h *HAL) Write(ctx context.Context, address uint8, data []byte) (int, error) {
	if address&0x0F != InterruptEndpointNumber {
		return 0, pkg.ErrInvalidEndpoint
	}
	if err := h.sendFrame(msgData, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Stall and ClearStall are no-ops: this HAL has no way to stall the
// interrupt endpoint independently of the control link.
func (h *HAL) Stall(address uint8) error      { return nil }
func (h *HAL) ClearStall(address uint8) error { return nil }

// IsConnected reports whether the serial port is open.
func (h *HAL) IsConnected() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.opened
}

// WaitConnect blocks until Start is called or the context is cancelled.
func (h *HAL) WaitConnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.connectCh:
		return nil
	}
}

// WaitDisconnect blocks until Stop is called or the context is cancelled.
func (h *HAL) WaitDisconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.disconnCh:
		return nil
	}
}

// WaitStartOfFrame blocks until the local 1ms ticker fires.
func (h *HAL) WaitStartOfFrame(ctx context.Context) error {
	h.mutex.Lock()
	ticker := h.sofTicker
	h.mutex.Unlock()

	if ticker == nil {
		return pkg.ErrNotConfigured
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.closeCh:
		return pkg.ErrCancelled
	case <-ticker.C:
		return nil
	}
}

// sendFrame writes a single [type, length, payload] frame to the port.
func (h *HAL) sendFrame(msgType byte, data []byte) error {
	h.mutex.Lock()
	port := h.port
	buf := h.writeBuf[:]
	h.mutex.Unlock()

	if port == nil {
		return pkg.ErrNotConfigured
	}

	n := len(data)
	if n > MaxPacketSize {
		n = MaxPacketSize
	}

	buf[0] = msgType
	binary.LittleEndian.PutUint16(buf[1:3], uint16(n))
	if n > 0 {
		copy(buf[headerSize:], data[:n])
	}

	total := headerSize + n
	written := 0
	for written < total {
		m, err := port.Write(buf[written:total])
		if m > 0 {
			written += m
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readFrame reads a single [type, length, payload] frame from the port,
// retrying on read timeouts until ctx is done.
func (h *HAL) readFrame(ctx context.Context) (byte, []byte, error) {
	h.mutex.Lock()
	port := h.port
	h.mutex.Unlock()

	if port == nil {
		return 0, nil, pkg.ErrNotConfigured
	}

	header := h.readBuf[:headerSize]
	if err := h.readFull(ctx, port, header); err != nil {
		return 0, nil, err
	}

	msgType := header[0]
	msgLen := int(binary.LittleEndian.Uint16(header[1:3]))
	if msgLen == 0 {
		return msgType, nil, nil
	}

	payload := h.readBuf[headerSize : headerSize+msgLen]
	if err := h.readFull(ctx, port, payload); err != nil {
		return 0, nil, err
	}
	return msgType, payload, nil
}

// readFull reads len(buf) bytes from port, looping past read timeouts
// (go.bug.st/serial returns (0, nil) rather than an error on timeout).
func (h *HAL) readFull(ctx context.Context, port goserial.Port, buf []byte) error {
	total := 0
	for total < len(buf) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.closeCh:
			return pkg.ErrCancelled
		default:
		}

		n, err := port.Read(buf[total:])
		if err != nil {
			return err
		}
		total += n
	}
	return nil
}

var _ hal.DeviceHAL = (*HAL)(nil)
