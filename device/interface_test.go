package device

import "testing"

var testReportDescriptor = []byte{0x05, 0x01, 0x09, 0x06, 0xC0}

func TestNewBundle(t *testing.T) {
	b := NewBundle(0x1234, 0x5678, 0x81, 10, testReportDescriptor)

	if b.Device.VendorID != 0x1234 {
		t.Errorf("Device.VendorID = 0x%04X, want 0x1234", b.Device.VendorID)
	}
	if b.Device.ProductID != 0x5678 {
		t.Errorf("Device.ProductID = 0x%04X, want 0x5678", b.Device.ProductID)
	}
	if b.Device.NumConfigurations != 1 {
		t.Errorf("Device.NumConfigurations = %d, want 1", b.Device.NumConfigurations)
	}
	if b.Interface.InterfaceClass != ClassHID {
		t.Errorf("Interface.InterfaceClass = 0x%02X, want 0x%02X", b.Interface.InterfaceClass, ClassHID)
	}
	if b.Endpoint.EndpointAddress != 0x81 {
		t.Errorf("Endpoint.EndpointAddress = 0x%02X, want 0x81", b.Endpoint.EndpointAddress)
	}
	if b.HID.ReportDescLength != uint16(len(testReportDescriptor)) {
		t.Errorf("HID.ReportDescLength = %d, want %d", b.HID.ReportDescLength, len(testReportDescriptor))
	}
	wantTotal := uint16(ConfigurationDescriptorSize + InterfaceDescriptorSize + HIDDescriptorSize + EndpointDescriptorSize)
	if b.Configuration.TotalLength != wantTotal {
		t.Errorf("Configuration.TotalLength = %d, want %d", b.Configuration.TotalLength, wantTotal)
	}
}

func TestBundleMarshalConfigurationBundle(t *testing.T) {
	b := NewBundle(0x1234, 0x5678, 0x81, 10, testReportDescriptor)

	buf := make([]byte, 64)
	n := b.MarshalConfigurationBundle(buf)
	want := ConfigurationDescriptorSize + InterfaceDescriptorSize + HIDDescriptorSize + EndpointDescriptorSize
	if n != want {
		t.Fatalf("MarshalConfigurationBundle() = %d, want %d", n, want)
	}

	var cfg ConfigurationDescriptor
	if err := ParseConfigurationDescriptor(buf[0:], &cfg); err != nil {
		t.Fatalf("ParseConfigurationDescriptor() error = %v", err)
	}
	if cfg.NumInterfaces != 1 {
		t.Errorf("NumInterfaces = %d, want 1", cfg.NumInterfaces)
	}

	var iface InterfaceDescriptor
	if err := ParseInterfaceDescriptor(buf[ConfigurationDescriptorSize:], &iface); err != nil {
		t.Fatalf("ParseInterfaceDescriptor() error = %v", err)
	}
	if iface.InterfaceClass != ClassHID {
		t.Errorf("InterfaceClass = 0x%02X, want 0x%02X", iface.InterfaceClass, ClassHID)
	}

	var ep EndpointDescriptor
	epOffset := ConfigurationDescriptorSize + InterfaceDescriptorSize + HIDDescriptorSize
	if err := ParseEndpointDescriptor(buf[epOffset:], &ep); err != nil {
		t.Fatalf("ParseEndpointDescriptor() error = %v", err)
	}
	if ep.EndpointAddress != 0x81 {
		t.Errorf("EndpointAddress = 0x%02X, want 0x81", ep.EndpointAddress)
	}
}

func TestBundleMarshalConfigurationBundle_BufferTooSmall(t *testing.T) {
	b := NewBundle(0x1234, 0x5678, 0x81, 10, testReportDescriptor)
	buf := make([]byte, 4)
	if n := b.MarshalConfigurationBundle(buf); n != 0 {
		t.Errorf("MarshalConfigurationBundle() = %d, want 0", n)
	}
}

type fakeClassDriver struct {
	initCalled  bool
	closeCalled bool
	handleSetup func(*Bundle, *SetupPacket, []byte) (int, bool, error)
}

func (f *fakeClassDriver) Init(bundle *Bundle) error {
	f.initCalled = true
	return nil
}

func (f *fakeClassDriver) HandleSetup(bundle *Bundle, setup *SetupPacket, data []byte) (int, bool, error) {
	if f.handleSetup != nil {
		return f.handleSetup(bundle, setup, data)
	}
	return 0, false, nil
}

func (f *fakeClassDriver) Close() error {
	f.closeCalled = true
	return nil
}

func TestBundleSetClassDriver(t *testing.T) {
	b := NewBundle(0x1234, 0x5678, 0x81, 10, testReportDescriptor)
	driver := &fakeClassDriver{}

	if err := b.SetClassDriver(driver); err != nil {
		t.Fatalf("SetClassDriver() error = %v", err)
	}
	if !driver.initCalled {
		t.Error("Init not called on class driver registration")
	}
}

func TestBundleHandleSetup(t *testing.T) {
	b := NewBundle(0x1234, 0x5678, 0x81, 10, testReportDescriptor)

	if n, handled, err := b.HandleSetup(&SetupPacket{}, nil); handled || err != nil || n != 0 {
		t.Errorf("HandleSetup() with no driver = (%d, %v, %v), want (0, false, nil)", n, handled, err)
	}

	driver := &fakeClassDriver{
		handleSetup: func(bundle *Bundle, setup *SetupPacket, data []byte) (int, bool, error) {
			return 1, true, nil
		},
	}
	b.SetClassDriver(driver)

	n, handled, err := b.HandleSetup(&SetupPacket{}, nil)
	if err != nil || !handled || n != 1 {
		t.Errorf("HandleSetup() = (%d, %v, %v), want (1, true, nil)", n, handled, err)
	}
}

func TestBundleClose(t *testing.T) {
	b := NewBundle(0x1234, 0x5678, 0x81, 10, testReportDescriptor)
	driver := &fakeClassDriver{}
	b.SetClassDriver(driver)

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !driver.closeCalled {
		t.Error("Close not propagated to class driver")
	}
}
