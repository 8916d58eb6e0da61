package serial

import (
	"context"
	"io"
	"testing"
	"time"

	goserial "go.bug.st/serial"

	"github.com/crockeo/fightkey/device/hal"
)

// fakePort implements goserial.Port over an in-memory pipe so the
// framing logic can be exercised without a real UART.
type fakePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	otherW *io.PipeWriter
	otherR *io.PipeReader
}

func newFakePortPair() (*fakePort, *fakePort) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	a := &fakePort{r: r1, w: w2}
	b := &fakePort{r: r2, w: w1}
	return a, b
}

func (p *fakePort) Read(buf []byte) (int, error)  { return p.r.Read(buf) }
func (p *fakePort) Write(buf []byte) (int, error) { return p.w.Write(buf) }
func (p *fakePort) Close() error {
	p.r.Close()
	p.w.Close()
	return nil
}
func (p *fakePort) SetMode(mode *goserial.Mode) error           { return nil }
func (p *fakePort) ResetInputBuffer() error                     { return nil }
func (p *fakePort) ResetOutputBuffer() error                    { return nil }
func (p *fakePort) SetDTR(dtr bool) error                       { return nil }
func (p *fakePort) SetRTS(rts bool) error                       { return nil }
func (p *fakePort) GetModemStatusBits() (*goserial.ModemStatusBits, error) {
	return &goserial.ModemStatusBits{}, nil
}
func (p *fakePort) SetReadTimeout(t time.Duration) error { return nil }
func (p *fakePort) Break(d time.Duration) error          { return nil }
func (p *fakePort) Drain() error                         { return nil }

var _ goserial.Port = (*fakePort)(nil)

func newTestHAL(t *testing.T) (*HAL, *fakePort) {
	t.Helper()
	devSide, peerSide := newFakePortPair()
	h := &HAL{
		connectCh: make(chan struct{}, 1),
		disconnCh: make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
	}
	h.port = devSide
	h.opened = true
	return h, peerSide
}

func TestSendFrame_WritesDataHeader(t *testing.T) {
	h, peer := newTestHAL(t)

	go func() {
		h.sendFrame(msgData, []byte{0xAB, 0xCD})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(peer, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	if header[0] != msgData {
		t.Errorf("msgType = %d, want %d", header[0], msgData)
	}
	_ = ctx
}

func TestReadSetup_ParsesSetupFrame(t *testing.T) {
	h, peer := newTestHAL(t)

	var setup hal.SetupPacket
	setup.RequestType = 0x21
	setup.Request = 0x09
	setup.Value = 0x0200
	setup.Length = 1

	var payload [hal.SetupPacketSize]byte
	setup.MarshalTo(payload[:])

	go func() {
		frame := make([]byte, headerSize+len(payload))
		frame[0] = msgSetup
		frame[1] = byte(len(payload))
		frame[2] = 0
		copy(frame[headerSize:], payload[:])
		peer.Write(frame)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out hal.SetupPacket
	if err := h.ReadSetup(ctx, &out); err != nil {
		t.Fatalf("ReadSetup() error = %v", err)
	}
	if out.Request != setup.Request || out.Value != setup.Value {
		t.Errorf("ReadSetup() = %+v, want %+v", out, setup)
	}
}

func TestWrite_RejectsWrongEndpoint(t *testing.T) {
	h, _ := newTestHAL(t)
	if _, err := h.Write(context.Background(), 0x82, []byte{0x00}); err == nil {
		t.Error("Write(wrong endpoint) error = nil, want non-nil")
	}
}

func TestConfigureEndpoints_RejectsUnknownEndpoint(t *testing.T) {
	h, _ := newTestHAL(t)
	err := h.ConfigureEndpoints([]hal.EndpointConfig{{Address: 0x85}})
	if err == nil {
		t.Error("ConfigureEndpoints(unknown endpoint) error = nil, want non-nil")
	}
}
