package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Koromix/tytools-sub001/platform"
)

type fakePort struct {
	closed bool
}

func (p *fakePort) ReadSerial(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	return 0, nil
}
func (p *fakePort) WriteSerial(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	return len(buf), nil
}
func (p *fakePort) ReadHID(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	return 0, nil
}
func (p *fakePort) WriteHID(buf []byte) (int, error)          { return len(buf), nil }
func (p *fakePort) SendFeatureReport(buf []byte) (int, error) { return len(buf), nil }
func (p *fakePort) SetSerialConfig(baud int) error             { return nil }
func (p *fakePort) Pollable() platform.Pollable                { return platform.Pollable{} }
func (p *fakePort) Close() error {
	if p.closed {
		return errors.New("already closed")
	}
	p.closed = true
	return nil
}

type fakeHAL struct {
	port   *fakePort
	opens  int
	failOn bool
}

func (h *fakeHAL) Enumerate(match func(platform.RawDevice) bool) ([]platform.RawDevice, error) {
	return nil, nil
}
func (h *fakeHAL) Hotplug(ctx context.Context) (<-chan platform.HotplugEvent, error) {
	return nil, nil
}
func (h *fakeHAL) Open(dev platform.RawDevice) (platform.Port, error) {
	h.opens++
	if h.failOn {
		return nil, errors.New("open failed")
	}
	h.port = &fakePort{}
	return h.port, nil
}
func (h *fakeHAL) Poll(pollables []platform.Pollable, timeout time.Duration) (int, error) {
	return -1, nil
}
func (h *fakeHAL) Millis() int64 { return 0 }
func (h *fakeHAL) Close() error  { return nil }

func TestPortOpenCountSharing(t *testing.T) {
	hal := &fakeHAL{}
	p := NewPort(hal, Device{})

	if err := p.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Open(); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if hal.opens != 1 {
		t.Fatalf("hal.opens = %d, want 1 (shared handle)", hal.opens)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if !p.IsOpen() {
		t.Fatalf("port should still be open after one of two closes")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if p.IsOpen() {
		t.Fatalf("port should be closed")
	}
	if !hal.port.closed {
		t.Fatalf("underlying handle should be closed")
	}
}

func TestPortOpenFailure(t *testing.T) {
	hal := &fakeHAL{failOn: true}
	p := NewPort(hal, Device{})
	if err := p.Open(); err == nil {
		t.Fatalf("expected error")
	}
	if p.IsOpen() {
		t.Fatalf("should not be open after failed Open")
	}
}

func TestCapabilitySet(t *testing.T) {
	var caps CapabilitySet
	caps = caps.With(CapUpload).With(CapReset)

	if !caps.Has(CapUpload) || !caps.Has(CapReset) {
		t.Fatalf("caps = %b, want Upload|Reset", caps)
	}
	if caps.Has(CapSerial) {
		t.Fatalf("caps should not have Serial")
	}
}

func TestInterfaceHasCapability(t *testing.T) {
	iface := &Interface{Capabilities: CapabilitySet(0).With(CapReboot)}
	if !iface.HasCapability(CapReboot) {
		t.Fatalf("expected CapReboot")
	}
	if iface.HasCapability(CapUnique) {
		t.Fatalf("did not expect CapUnique")
	}
}
