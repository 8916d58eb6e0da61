package device

import (
	"context"
	"sync"
	"testing"

	"github.com/crockeo/fightkey/device/hal"
)

// fakeHAL is a minimal in-memory hal.DeviceHAL used to exercise the
// control and start-of-frame dispatch logic in Stack without a real
// controller or FIFO bus.
type fakeHAL struct {
	mu sync.Mutex

	setAddressCalls []uint8
	configureCalls  [][]hal.EndpointConfig
	writtenEP0      [][]byte
	ackCount        int
	stallCount      int
	writes          [][]byte
	ep0ReadReturn   []byte
}

func (f *fakeHAL) Init(ctx context.Context) error { return nil }
func (f *fakeHAL) Start() error                   { return nil }
func (f *fakeHAL) Stop() error                    { return nil }

func (f *fakeHAL) SetAddress(address uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setAddressCalls = append(f.setAddressCalls, address)
	return nil
}

func (f *fakeHAL) ConfigureEndpoints(endpoints []hal.EndpointConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configureCalls = append(f.configureCalls, endpoints)
	return nil
}

func (f *fakeHAL) ReadSetup(ctx context.Context, out *hal.SetupPacket) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeHAL) WriteEP0(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writtenEP0 = append(f.writtenEP0, append([]byte(nil), data...))
	return nil
}

func (f *fakeHAL) ReadEP0(ctx context.Context, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(buf, f.ep0ReadReturn)
	return n, nil
}

func (f *fakeHAL) StallEP0() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stallCount++
	return nil
}

func (f *fakeHAL) AckEP0() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ackCount++
	return nil
}

func (f *fakeHAL) Read(ctx context.Context, address uint8, buf []byte) (int, error) {
	return 0, nil
}

func (f *fakeHAL) Write(ctx context.Context, address uint8, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (f *fakeHAL) Stall(address uint8) error                { return nil }
func (f *fakeHAL) ClearStall(address uint8) error            { return nil }
func (f *fakeHAL) IsConnected() bool                         { return true }
func (f *fakeHAL) WaitConnect(ctx context.Context) error     { return nil }
func (f *fakeHAL) WaitDisconnect(ctx context.Context) error  { return nil }
func (f *fakeHAL) WaitStartOfFrame(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

var _ hal.DeviceHAL = (*fakeHAL)(nil)

func newTestStack() (*Stack, *fakeHAL) {
	dev := NewDevice()
	bundle := NewBundle(0x1209, 0x0001, 0x81, 10, testReportDescriptor)
	driver := &fakeClassDriver{}
	bundle.SetClassDriver(driver)
	h := &fakeHAL{}
	s := NewStack(dev, bundle, h)
	s.ctx = context.Background()
	return s, h
}

func TestHandleStandardSetup_SetAddressAppliesToHAL(t *testing.T) {
	s, h := newTestStack()
	setup := deviceRecipientSetup(RequestSetAddress, false, 7, 0)
	if err := s.handleSetup(setup); err != nil {
		t.Fatalf("handleSetup(SET_ADDRESS) error = %v", err)
	}
	if len(h.setAddressCalls) != 1 || h.setAddressCalls[0] != 7 {
		t.Errorf("setAddressCalls = %v, want [7]", h.setAddressCalls)
	}
	if h.ackCount != 1 {
		t.Errorf("ackCount = %d, want 1", h.ackCount)
	}
}

func TestHandleStandardSetup_SetConfigurationConfiguresEndpoint(t *testing.T) {
	s, h := newTestStack()
	setup := deviceRecipientSetup(RequestSetConfiguration, false, 1, 0)
	if err := s.handleSetup(setup); err != nil {
		t.Fatalf("handleSetup(SET_CONFIGURATION) error = %v", err)
	}
	if len(h.configureCalls) != 1 || len(h.configureCalls[0]) != 1 {
		t.Fatalf("configureCalls = %v, want one call with one endpoint", h.configureCalls)
	}
	if h.configureCalls[0][0].Address != s.bundle.Endpoint.EndpointAddress {
		t.Errorf("configured endpoint address = 0x%02X, want 0x%02X", h.configureCalls[0][0].Address, s.bundle.Endpoint.EndpointAddress)
	}
	if s.device.State() != StateAttached {
		t.Errorf("State() = %v, want Attached", s.device.State())
	}
}

func TestHandleStandardSetup_SetConfigurationZeroDeconfigures(t *testing.T) {
	s, h := newTestStack()
	s.device.SetConfigurationValue(1)
	setup := deviceRecipientSetup(RequestSetConfiguration, false, 0, 0)
	if err := s.handleSetup(setup); err != nil {
		t.Fatalf("handleSetup(SET_CONFIGURATION 0) error = %v", err)
	}
	if len(h.configureCalls) != 1 || h.configureCalls[0] != nil {
		t.Fatalf("configureCalls = %v, want one nil call", h.configureCalls)
	}
	if s.device.State() != StateDisconnected {
		t.Errorf("State() = %v, want Disconnected", s.device.State())
	}
}

func TestHandleSetup_GetDescriptorWritesThroughEP0(t *testing.T) {
	s, h := newTestStack()
	var setup SetupPacket
	GetDescriptorSetup(&setup, DescriptorTypeDevice, 0, DeviceDescriptorSize)
	if err := s.handleSetup(&setup); err != nil {
		t.Fatalf("handleSetup(GET_DESCRIPTOR) error = %v", err)
	}
	if len(h.writtenEP0) != 1 || len(h.writtenEP0[0]) != DeviceDescriptorSize {
		t.Fatalf("writtenEP0 = %v, want one %d-byte write", h.writtenEP0, DeviceDescriptorSize)
	}
}

func TestHandleReset_UnconfiguresEndpoints(t *testing.T) {
	s, h := newTestStack()
	s.device.SetConfigurationValue(1)
	s.handleReset()
	if s.device.State() != StateDisconnected {
		t.Errorf("State() = %v, want Disconnected", s.device.State())
	}
	if len(h.configureCalls) != 1 || h.configureCalls[0] != nil {
		t.Errorf("configureCalls = %v, want one nil call", h.configureCalls)
	}
}

func TestHandleClassSetup_Unhandled(t *testing.T) {
	s, _ := newTestStack()
	var setup SetupPacket
	HIDClassRequestSetup(&setup, 0x7F, true, 0, 1)
	if err := s.handleSetup(&setup); err == nil {
		t.Error("handleSetup(unrecognised class request) error = nil, want non-nil")
	}
}

func TestHandleClassSetup_DeviceToHost(t *testing.T) {
	s, h := newTestStack()
	driver := s.bundle.classDriver.(*fakeClassDriver)
	driver.handleSetup = func(bundle *Bundle, setup *SetupPacket, data []byte) (int, bool, error) {
		data[0] = 0xAB
		return 1, true, nil
	}

	var setup SetupPacket
	HIDClassRequestSetup(&setup, RequestGetIdle, true, 0, 1)
	if err := s.handleSetup(&setup); err != nil {
		t.Fatalf("handleSetup(class GET) error = %v", err)
	}
	if len(h.writtenEP0) != 1 || h.writtenEP0[0][0] != 0xAB {
		t.Fatalf("writtenEP0 = %v, want [[0xAB]]", h.writtenEP0)
	}
}

func TestHandleClassSetup_HostToDeviceReadsOUTStage(t *testing.T) {
	s, h := newTestStack()
	h.ep0ReadReturn = []byte{0x03}
	var gotData []byte
	driver := s.bundle.classDriver.(*fakeClassDriver)
	driver.handleSetup = func(bundle *Bundle, setup *SetupPacket, data []byte) (int, bool, error) {
		gotData = append([]byte(nil), data...)
		return 0, true, nil
	}

	var setup SetupPacket
	HIDClassRequestSetup(&setup, RequestSetReport, false, 0, 1)
	if err := s.handleSetup(&setup); err != nil {
		t.Fatalf("handleSetup(class SET) error = %v", err)
	}
	if len(gotData) != 1 || gotData[0] != 0x03 {
		t.Errorf("driver received data = %v, want [3]", gotData)
	}
	if h.ackCount != 1 {
		t.Errorf("ackCount = %d, want 1", h.ackCount)
	}
}

func TestSubmitReport_WritesToInterruptEndpoint(t *testing.T) {
	s, h := newTestStack()
	s.device.OnEndOfReset()
	s.device.SetConfigurationValue(1)
	s.device.SetModifier(0x01)

	if err := s.SubmitReport(); err != nil {
		t.Fatalf("SubmitReport() error = %v", err)
	}
	if len(h.writes) != 1 || len(h.writes[0]) != ReportSize {
		t.Fatalf("writes = %v, want one %d-byte write", h.writes, ReportSize)
	}
	if h.writes[0][0] != 0x01 {
		t.Errorf("report modifier = 0x%02X, want 0x01", h.writes[0][0])
	}
}
