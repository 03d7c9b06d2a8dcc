// Package device holds the Device/Port/Interface data model: a Device is
// an immutable snapshot of one platform.RawDevice, a Port is a shared,
// open handle onto it, and an Interface pairs a Device with the
// class-specific role (capabilities, model guess, display name) a
// driver assigned it. It is grounded on board.h's ty_board_interface,
// adapted from refcounted C handles to Go's GC plus a plain open-count
// for the one resource that is genuinely shared: the underlying
// platform.Port file handle.
package device

import (
	"sync"

	"github.com/Koromix/tytools-sub001/internal/errcode"
	"github.com/Koromix/tytools-sub001/model"
	"github.com/Koromix/tytools-sub001/platform"
)

// Capability is one of the six operations a board interface may support,
// kept in sync with capabilityNames below.
type Capability int

const (
	CapUnique Capability = iota
	CapRun
	CapUpload
	CapReset
	CapReboot
	CapSerial

	capCount
)

var capabilityNames = [capCount]string{
	CapUnique: "unique",
	CapRun:    "run",
	CapUpload: "upload",
	CapReset:  "reset",
	CapReboot: "reboot",
	CapSerial: "serial",
}

func (c Capability) String() string {
	if c < 0 || c >= capCount {
		return "unknown"
	}
	return capabilityNames[c]
}

// CapabilitySet is a bitmask over Capability values.
type CapabilitySet uint

// Has reports whether the set includes cap.
func (s CapabilitySet) Has(cap Capability) bool {
	return s&(1<<uint(cap)) != 0
}

// With returns s with cap added.
func (s CapabilitySet) With(cap Capability) CapabilitySet {
	return s | (1 << uint(cap))
}

// Device is an immutable snapshot of one platform-enumerated physical
// interface. Unlike board.h's refcounted ty_device, a Go Device needs no
// manual lifetime management; it lives as long as something references
// it.
type Device struct {
	Raw platform.RawDevice
}

// Port wraps a platform.Port with the open-count sharing semantics a
// board Interface needs: multiple logical consumers (a task goroutine
// doing a serial read, the monitor goroutine refreshing model info) may
// open the same interface concurrently, and the underlying handle is
// only actually closed once every opener has closed it.
type Port struct {
	mu        sync.Mutex
	hal       platform.HAL
	dev       Device
	handle    platform.Port
	openCount int
}

// NewPort creates a Port wrapper around dev with no handle open yet.
func NewPort(hal platform.HAL, dev Device) *Port {
	return &Port{hal: hal, dev: dev}
}

// Open increments the open count, opening the underlying platform.Port
// on the first call.
func (p *Port) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.openCount == 0 {
		handle, err := p.hal.Open(p.dev.Raw)
		if err != nil {
			return errcode.Wrap(errcode.IO, err, "opening '%s'", p.dev.Raw.Node)
		}
		p.handle = handle
	}
	p.openCount++
	return nil
}

// Close decrements the open count, closing the underlying platform.Port
// once it reaches zero.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.openCount == 0 {
		return nil
	}
	p.openCount--
	if p.openCount == 0 && p.handle != nil {
		err := p.handle.Close()
		p.handle = nil
		return err
	}
	return nil
}

// IsOpen reports whether the underlying handle is currently open.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openCount > 0
}

// Handle returns the live platform.Port, or nil if not open.
func (p *Port) Handle() platform.Port {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

// Interface is one (Device, driver role) pairing: the unit a class driver
// assigns capabilities and a model guess to, matching ty_board_interface.
// A single physical board can expose several Interfaces (e.g. Teensy's
// HalfKay HID interface alongside a CDC-ACM serial interface), each
// contributing to one shared capability set on its parent Board.
type Interface struct {
	Device Device
	Port   *Port

	// Name is a driver-assigned label ("HalfKay", "Seremu", "Serial").
	Name string

	Capabilities CapabilitySet
	Model        model.Model

	// Number is the platform interface index within the physical
	// device, used to disambiguate log messages when a board exposes
	// more than one Interface.
	Number uint8
}

// HasCapability reports whether iface supports cap.
func (iface *Interface) HasCapability(cap Capability) bool {
	return iface.Capabilities.Has(cap)
}
