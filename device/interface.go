package device

// ClassDriver defines the interface for USB class-specific handling.
// This device registers exactly one: the HID boot keyboard driver in
// device/class/hid. Alternate settings are a Non-goal, so unlike a
// general USB stack's class driver contract there is no SetAlternate.
type ClassDriver interface {
	// Init initializes the class driver for the interface bundle.
	Init(bundle *Bundle) error

	// HandleSetup processes class-specific SETUP requests addressed to
	// this interface. data is the OUT-stage payload on a host-to-device
	// request, or a scratch buffer the driver may fill on a
	// device-to-host request. Returns the number of bytes written to
	// data for the IN data stage (zero for OUT requests and requests
	// with no data stage), and whether the request was recognised.
	HandleSetup(bundle *Bundle, setup *SetupPacket, data []byte) (n int, handled bool, err error)

	// Close releases any resources held by the class driver.
	Close() error
}

// Bundle is the device's single fixed descriptor set: one configuration,
// one interface, one HID descriptor, one interrupt IN endpoint. A
// general USB stack models these as dynamically-sized collections
// (Configuration.AddInterface, Interface.AddEndpoint, ...); this device
// never has more than one of any of them, so Bundle holds them as plain
// fields rather than growable arrays (spec.md §3, §6).
type Bundle struct {
	Device        DeviceDescriptor
	Configuration ConfigurationDescriptor
	Interface     InterfaceDescriptor
	HID           HIDDescriptor
	Endpoint      EndpointDescriptor

	// ReportDescriptor is the raw HID report descriptor bytes (the boot
	// keyboard report map), served verbatim on GET_DESCRIPTOR(HIDReport).
	ReportDescriptor []byte

	classDriver ClassDriver
}

// NewBundle constructs the fixed descriptor bundle for a boot-protocol
// HID keyboard with one interrupt IN endpoint at address epAddr.
func NewBundle(vendorID, productID uint16, epAddr uint8, epInterval uint8, reportDescriptor []byte) *Bundle {
	b := &Bundle{
		Device: DeviceDescriptor{
			Length:            DeviceDescriptorSize,
			DescriptorType:    DescriptorTypeDevice,
			USBVersion:        0x0200,
			DeviceClass:       0x00, // class info lives on the interface
			MaxPacketSize0:    32,   // control endpoint bank size
			VendorID:          vendorID,
			ProductID:         productID,
			NumConfigurations: 1,
		},
		Configuration: ConfigurationDescriptor{
			Length:             ConfigurationDescriptorSize,
			DescriptorType:     DescriptorTypeConfiguration,
			NumInterfaces:      1,
			ConfigurationValue: 1,
			Attributes:         ConfigAttrBusPowered | ConfigAttrSelfPowered,
			MaxPower:           50,
		},
		Interface: InterfaceDescriptor{
			Length:            InterfaceDescriptorSize,
			DescriptorType:    DescriptorTypeInterface,
			NumEndpoints:      1,
			InterfaceClass:    ClassHID,
			InterfaceSubClass: 0x01, // boot subclass
			InterfaceProtocol: 0x01, // keyboard protocol
		},
		HID: HIDDescriptor{
			Length:           HIDDescriptorSize,
			DescriptorType:   DescriptorTypeHID,
			HIDVersion:       0x0111,
			NumDescriptors:   1,
			ReportDescType:   DescriptorTypeHIDReport,
			ReportDescLength: uint16(len(reportDescriptor)),
		},
		Endpoint: EndpointDescriptor{
			Length:          EndpointDescriptorSize,
			DescriptorType:  DescriptorTypeEndpoint,
			EndpointAddress: epAddr,
			Attributes:      EndpointTypeInterrupt,
			MaxPacketSize:   8,
			Interval:        epInterval,
		},
		ReportDescriptor: reportDescriptor,
	}
	b.Configuration.TotalLength = b.totalLength()
	return b
}

// totalLength is the byte length of the concatenated configuration bundle:
// configuration + interface + HID + endpoint descriptors.
func (b *Bundle) totalLength() uint16 {
	return ConfigurationDescriptorSize + InterfaceDescriptorSize + HIDDescriptorSize + EndpointDescriptorSize
}

// MarshalConfigurationBundle writes the configuration descriptor followed
// by its interface, HID, and endpoint descriptors to buf, as returned by
// GET_DESCRIPTOR(Configuration). Returns the number of bytes written.
func (b *Bundle) MarshalConfigurationBundle(buf []byte) int {
	offset := 0
	n := b.Configuration.MarshalTo(buf[offset:])
	if n == 0 {
		return 0
	}
	offset += n

	n = b.Interface.MarshalTo(buf[offset:])
	if n == 0 {
		return 0
	}
	offset += n

	n = b.HID.MarshalTo(buf[offset:])
	if n == 0 {
		return 0
	}
	offset += n

	n = b.Endpoint.MarshalTo(buf[offset:])
	if n == 0 {
		return 0
	}
	offset += n

	return offset
}

// SetClassDriver registers the HID class driver that handles class
// requests directed at this interface.
func (b *Bundle) SetClassDriver(driver ClassDriver) error {
	b.classDriver = driver
	if driver != nil {
		return driver.Init(b)
	}
	return nil
}

// HandleSetup dispatches a class-specific SETUP request to the
// registered class driver, if any.
func (b *Bundle) HandleSetup(setup *SetupPacket, data []byte) (int, bool, error) {
	if b.classDriver == nil {
		return 0, false, nil
	}
	return b.classDriver.HandleSetup(b, setup, data)
}

// Close releases resources held by the registered class driver.
func (b *Bundle) Close() error {
	if b.classDriver == nil {
		return nil
	}
	driver := b.classDriver
	b.classDriver = nil
	return driver.Close()
}
