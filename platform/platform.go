// Package platform defines the host-OS device layer contract:
// enumeration with hotplug continuation, open/close of a Port, blocking
// serial/HID reads and writes with deadlines, serial line configuration,
// and a poll primitive that every wait loop in the higher layers funnels
// through.
//
// This mirrors the role softusb's host/hal.HostHAL interface plays for
// that project's USB host stack, generalized one layer up: instead of
// issuing raw control/bulk/interrupt transfers to an unenumerated device,
// a platform.HAL opens already-kernel-enumerated character devices
// (hidraw, tty) and layers hotplug notification on top.
package platform

import (
	"context"
	"time"
)

// DeviceType distinguishes the two kinds of character device the core
// ever opens.
type DeviceType int

const (
	TypeHID DeviceType = iota
	TypeSerial
)

func (t DeviceType) String() string {
	if t == TypeHID {
		return "hid"
	}
	return "serial"
}

// RawDevice is the platform's enumeration record for one physical
// interface, analogous to softusb's hal.EndpointDescriptor plus sysfs
// device metadata, but one layer up: it already carries the information
// libhs extracts from sysfs/udev/IOKit/SetupAPI (vendor/product IDs,
// strings, HID usage page) rather than raw USB descriptors, since this
// module never performs bus enumeration itself; the kernel already did.
type RawDevice struct {
	// Location is a platform-specific physical USB port path, stable
	// across replugging at the same port and shared by every interface
	// of the same physical device.
	Location string

	Type DeviceType

	VendorID  uint16
	ProductID uint16
	BCDDevice uint16

	SerialNumber string
	Product      string
	Manufacturer string

	// HID only; zero for serial devices.
	UsagePage uint16
	Usage     uint16

	// Node is the platform device node this RawDevice resolves to
	// (e.g. "/dev/hidraw3" or "/dev/ttyACM0"); used by Open.
	Node string
}

// Port is an open file handle onto a RawDevice.
type Port interface {
	// ReadSerial performs a blocking read with a deadline; 0, nil is
	// returned on timeout with no data available.
	ReadSerial(ctx context.Context, buf []byte, timeout time.Duration) (int, error)

	// WriteSerial performs a blocking write with a deadline; partial
	// writes are permitted.
	WriteSerial(ctx context.Context, buf []byte, timeout time.Duration) (int, error)

	// ReadHID reads one length-prefixed HID input report.
	ReadHID(ctx context.Context, buf []byte, timeout time.Duration) (int, error)

	// WriteHID writes one length-prefixed HID output report.
	WriteHID(buf []byte) (int, error)

	// SendFeatureReport writes a length-prefixed HID feature report.
	SendFeatureReport(buf []byte) (int, error)

	// SetSerialConfig reprograms the line's baud rate. Used only by the
	// HalfKay reboot trick, which needs an arbitrary, non-standard baud
	// rate (134), not just one of the termios Bxxxxx enumerators.
	SetSerialConfig(baud int) error

	// Pollable exposes an identifier suitable for Poll.
	Pollable() Pollable

	Close() error
}

// Pollable is an opaque handle a HAL can wait on. FD is the only
// platform-specific payload needed so far (a raw file descriptor);
// exposing it as a plain struct rather than an interface keeps
// implementations in other packages (platform/linux) straightforward
// without resorting to unexported interface methods across package
// boundaries.
type Pollable struct {
	FD uintptr
}

// HAL is the platform device layer contract.
type HAL interface {
	// Enumerate performs an initial device scan.
	Enumerate(match func(RawDevice) bool) ([]RawDevice, error)

	// Hotplug starts watching for device arrival/removal and delivers
	// events on the returned channel until ctx is cancelled. The channel
	// is closed when watching stops.
	Hotplug(ctx context.Context) (<-chan HotplugEvent, error)

	// Open opens a RawDevice for I/O.
	Open(dev RawDevice) (Port, error)

	// Poll blocks until one of the given pollables is ready or timeout
	// elapses, returning the index of the first ready member, or -1 on
	// timeout. This is the only cross-cutting "wait for any of N
	// pollables" primitive; every wait loop in the board/task layers
	// funnels through it indirectly via context deadlines, but
	// platform-layer code (e.g. HalfKay's retry loop) may call it
	// directly.
	Poll(pollables []Pollable, timeout time.Duration) (int, error)

	// Millis returns a monotonic millisecond clock.
	Millis() int64

	Close() error
}

// HotplugEvent reports a single hotplug transition for one RawDevice.
type HotplugEvent struct {
	Added  bool // false means removed
	Device RawDevice
}
