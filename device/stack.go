package device

import (
	"context"
	"errors"
	"sync"

	"github.com/crockeo/fightkey/device/hal"
	"github.com/crockeo/fightkey/pkg"
)

// MaxControlDataSize is the maximum data size for a control OUT data
// stage this stack will buffer (class SET_REPORT is the only request
// with one, and its payload is a single LED byte; this bound exists so
// a misbehaving host's oversized wLength cannot grow the read past a
// fixed buffer).
const MaxControlDataSize = 64

// Stack drives the control endpoint state machine and the
// start-of-frame periodic report engine for a single fixed device:
// one Device, one Bundle, one HAL. A general-purpose USB stack
// manages many endpoints' worth of pending transfers; this device has
// exactly one data endpoint and no bulk or isochronous transfers to
// track (spec.md Non-goals), so there is no transfer pool here.
type Stack struct {
	device *Device
	bundle *Bundle
	hal    hal.DeviceHAL

	standardHandler *StandardRequestHandler

	mutex   sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	setupBuf   hal.SetupPacket
	ep0ReadBuf [MaxControlDataSize]byte
}

// NewStack creates a device stack for dev, serving descriptors and
// class requests out of bundle, driven by h.
func NewStack(dev *Device, bundle *Bundle, h hal.DeviceHAL) *Stack {
	return &Stack{
		device:          dev,
		bundle:          bundle,
		hal:             h,
		standardHandler: NewStandardRequestHandler(dev, bundle),
	}
}

// Start initializes and enables the HAL, then starts the control and
// start-of-frame goroutines.
func (s *Stack) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return pkg.ErrAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mutex.Unlock()

	if err := s.hal.Init(s.ctx); err != nil {
		return err
	}
	if err := s.hal.Start(); err != nil {
		return err
	}

	s.mutex.Lock()
	s.running = true
	s.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentStack, "device stack started")

	s.wg.Add(2)
	go s.controlLoop()
	go s.sofLoop()

	return nil
}

// Stop cancels both goroutines and disables the HAL.
func (s *Stack) Stop() error {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mutex.Unlock()

	s.wg.Wait()

	if err := s.hal.Stop(); err != nil {
		return err
	}
	pkg.LogDebug(pkg.ComponentStack, "device stack stopped")
	return nil
}

// IsRunning returns true if the stack is running.
func (s *Stack) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// Device returns the underlying device.
func (s *Stack) Device() *Device {
	return s.device
}

// controlLoop reads and dispatches SETUP packets on EP0 until the
// stack is stopped.
func (s *Stack) controlLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.hal.ReadSetup(s.ctx, &s.setupBuf); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if errors.Is(err, pkg.ErrReset) {
				s.handleReset()
				continue
			}
			pkg.LogWarn(pkg.ComponentStack, "error reading setup", "error", err)
			continue
		}

		var setup SetupPacket
		setup.RequestType = s.setupBuf.RequestType
		setup.Request = s.setupBuf.Request
		setup.Value = s.setupBuf.Value
		setup.Index = s.setupBuf.Index
		setup.Length = s.setupBuf.Length

		if err := s.handleSetup(&setup); err != nil {
			pkg.LogWarn(pkg.ComponentStack, "error handling setup", "error", err, "request", setup.String())
			s.hal.StallEP0()
		}
	}
}

// handleReset implements the End-Of-Reset transition (spec.md §4.6):
// the device state resets to Disconnected and the HAL drops any
// active endpoint configuration so SET_CONFIGURATION must reconfigure
// it from scratch.
func (s *Stack) handleReset() {
	s.device.OnEndOfReset()
	if err := s.hal.ConfigureEndpoints(nil); err != nil {
		pkg.LogError(pkg.ComponentStack, "endpoint unconfigure failed after reset", "error", err)
	}
}

// handleSetup dispatches a single SETUP transaction to the standard
// request handler and, failing that, the class driver.
func (s *Stack) handleSetup(setup *SetupPacket) error {
	pkg.LogDebug(pkg.ComponentStack, "setup received", "request", setup.String())

	if setup.IsStandard() {
		return s.handleStandardSetup(setup)
	}

	if setup.IsClass() {
		return s.handleClassSetup(setup)
	}

	return pkg.ErrUnsupportedRequest
}

func (s *Stack) handleStandardSetup(setup *SetupPacket) error {
	resp, err := s.standardHandler.HandleSetup(setup)
	if err != nil {
		return err
	}

	if err := s.completeSetup(setup, resp); err != nil {
		return err
	}

	switch setup.Request {
	case RequestSetAddress:
		return s.hal.SetAddress(uint8(setup.Value & 0x7F))
	case RequestSetConfiguration:
		return s.reconfigureEndpoints(uint8(setup.Value & 0xFF))
	}
	return nil
}

// reconfigureEndpoints applies the interrupt endpoint's hardware
// configuration on SET_CONFIGURATION(nonzero), or drops it on
// SET_CONFIGURATION(0).
func (s *Stack) reconfigureEndpoints(configValue uint8) error {
	if configValue == 0 {
		return s.hal.ConfigureEndpoints(nil)
	}
	ep := s.bundle.Endpoint
	cfg := hal.EndpointConfig{
		Address:       ep.EndpointAddress,
		Attributes:    ep.Attributes,
		MaxPacketSize: ep.MaxPacketSize,
		Interval:      ep.Interval,
	}
	if err := s.hal.ConfigureEndpoints([]hal.EndpointConfig{cfg}); err != nil {
		return pkg.ErrEndpointConfigFailure
	}
	return nil
}

func (s *Stack) handleClassSetup(setup *SetupPacket) error {
	if setup.IsHostToDevice() && setup.Length > 0 {
		length := int(setup.Length)
		if length > MaxControlDataSize {
			length = MaxControlDataSize
		}
		n, err := s.hal.ReadEP0(s.ctx, s.ep0ReadBuf[:length])
		if err != nil {
			return err
		}
		_, handled, err := s.bundle.HandleSetup(setup, s.ep0ReadBuf[:n])
		if !handled {
			return pkg.ErrUnsupportedRequest
		}
		if err != nil {
			return err
		}
		return s.hal.AckEP0()
	}

	n, handled, err := s.bundle.HandleSetup(setup, s.ep0ReadBuf[:])
	if !handled {
		return pkg.ErrUnsupportedRequest
	}
	if err != nil {
		return err
	}
	return s.completeSetup(setup, s.ep0ReadBuf[:n])
}

// completeSetup finishes the control transfer. A device-to-host
// response is emitted bank-by-bank through EmitDescriptor, since
// MaxPacketSize0 bounds every IN data stage the same way regardless of
// which request produced it; a host-to-device request with no prior
// data stage just needs the status-stage acknowledgement.
func (s *Stack) completeSetup(setup *SetupPacket, data []byte) error {
	if setup.IsDeviceToHost() {
		err := EmitDescriptor(s.ctx, func(ctx context.Context, chunk []byte) error {
			return s.hal.WriteEP0(ctx, chunk)
		}, data, setup.Length)
		if err != nil {
			return err
		}
		_, err = s.hal.ReadEP0(s.ctx, s.ep0ReadBuf[:0])
		return err
	}
	return s.hal.AckEP0()
}

// sofLoop drives the periodic report engine off the HAL's
// start-of-frame ticks (spec.md §4.4) until the stack is stopped.
func (s *Stack) sofLoop() {
	defer s.wg.Done()

	for {
		if err := s.hal.WaitStartOfFrame(s.ctx); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			continue
		}

		err := s.device.OnStartOfFrame(func(report []byte) (bool, error) {
			if _, err := s.hal.Write(s.ctx, s.bundle.Endpoint.EndpointAddress, report); err != nil {
				return false, err
			}
			return true, nil
		})
		if err != nil {
			pkg.LogWarn(pkg.ComponentStack, "periodic report refresh failed", "error", err)
		}
	}
}

// IsConnected returns true if the device is connected to a host.
func (s *Stack) IsConnected() bool {
	return s.hal.IsConnected()
}

// WaitConnect blocks until the device connects to a host or the context is cancelled.
func (s *Stack) WaitConnect(ctx context.Context) error {
	return s.hal.WaitConnect(ctx)
}

// WaitDisconnect blocks until the device disconnects or the context is cancelled.
func (s *Stack) WaitDisconnect(ctx context.Context) error {
	return s.hal.WaitDisconnect(ctx)
}

// SubmitReport sends the live keycode state as a boot report over the
// interrupt endpoint immediately, outside the SOF-driven idle cadence
// (spec.md §4.5, submit_report).
func (s *Stack) SubmitReport() error {
	return s.device.SubmitReport(func(report []byte) error {
		_, err := s.hal.Write(s.ctx, s.bundle.Endpoint.EndpointAddress, report)
		return err
	})
}
