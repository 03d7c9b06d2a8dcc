// Package board holds the Board/Monitor data model: a Board aggregates
// the interfaces a physical device exposes, tracks an
// ONLINE/MISSING/DROPPED lifecycle, and is matched against a
// user-supplied tag string. Monitor watches platform hotplug events and
// keeps the Board set in sync, notifying registered callbacks on every
// transition. Grounded on board.c/board.h and monitor.c.
package board

import (
	"strings"
	"sync"

	"github.com/Koromix/tytools-sub001/device"
	"github.com/Koromix/tytools-sub001/model"
	"github.com/Koromix/tytools-sub001/task"
)

// Status is a Board's place in the ONLINE/MISSING/DROPPED lifecycle.
type Status int

const (
	StatusOnline Status = iota
	StatusMissing
	StatusDropped
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusMissing:
		return "missing"
	case StatusDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event reports why a callback fired, matching ty_monitor_event.
type Event int

const (
	EventAdded Event = iota
	EventChanged
	EventDisappeared
	EventDropped
)

func (e Event) String() string {
	switch e {
	case EventAdded:
		return "added"
	case EventChanged:
		return "changed"
	case EventDisappeared:
		return "disappeared"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Board is one physical device as last seen by a Monitor: the union of
// every interface it currently exposes, plus the identity a class driver
// assigned it (id/serial number/description/model).
type Board struct {
	mu sync.Mutex

	monitor *Monitor

	// id is the canonical "serial-model" identity a class driver
	// derives (class_teensy.c's teensy_update_board); tag defaults to
	// id but can be overridden by SetTag.
	id          string
	tag         string
	tagOverride bool

	location     string
	serialNumber string
	description  string

	vendorID  uint16
	productID uint16
	model     model.Model

	status       Status
	missingSince int64 // platform.HAL.Millis() timestamp

	ifaces    []*device.Interface
	drivers   map[*device.Interface]ClassDriver
	cap2iface map[device.Capability]*device.Interface
	caps      device.CapabilitySet

	// currentTask serializes operations on one board: a class driver's
	// Upload/Reset/Reboot method runs as a task.Task, and a second
	// operation on the same board is rejected with errcode.Busy while the
	// first is still running, matching board.c's one-task-per-board
	// discipline.
	currentTask *task.Task
}

func newBoard(location string) *Board {
	return &Board{
		location:  location,
		status:    StatusOnline,
		drivers:   make(map[*device.Interface]ClassDriver),
		cap2iface: make(map[device.Capability]*device.Interface),
	}
}

// ID returns the board's canonical identity string.
func (b *Board) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}

// SetID replaces the canonical identity; called only by the class driver
// that owns this board's interfaces while updating it. If no custom tag
// has been set, the tag follows id, matching board.c's tag==id pointer
// aliasing.
func (b *Board) SetID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.id = id
	if !b.tagOverride {
		b.tag = id
	}
}

// Tag returns the board's current display/match tag.
func (b *Board) Tag() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tag
}

// SetTag overrides the tag a user refers to this board by; an empty
// string reverts to following id, per ty_board_set_tag.
func (b *Board) SetTag(tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tag == "" {
		b.tag = b.id
		b.tagOverride = false
		return
	}
	b.tag = tag
	b.tagOverride = true
}

func (b *Board) Location() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.location
}

func (b *Board) SerialNumber() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.serialNumber
}

// SetSerialNumber is called by a class driver while updating the board.
func (b *Board) SetSerialNumber(sn string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.serialNumber = sn
}

func (b *Board) Description() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.description
}

func (b *Board) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}

func (b *Board) Model() model.Model {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model
}

func (b *Board) SetModel(m model.Model) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = m
}

func (b *Board) VendorProduct() (vendorID, productID uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vendorID, b.productID
}

func (b *Board) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Board) Capabilities() device.CapabilitySet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caps
}

func (b *Board) HasCapability(cap device.Capability) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caps.Has(cap)
}

// Interfaces returns the board's current interface list. The returned
// slice is a copy; callers must not rely on it updating as the board
// changes.
func (b *Board) Interfaces() []*device.Interface {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*device.Interface, len(b.ifaces))
	copy(out, b.ifaces)
	return out
}

// interfaceFor returns the interface, if any, currently serving cap.
func (b *Board) interfaceFor(cap device.Capability) (*device.Interface, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	iface, ok := b.cap2iface[cap]
	return iface, ok
}

// driverForCapability returns the interface and driver currently serving
// cap, used by the upload/reset/reboot task runners in operations.go.
func (b *Board) driverForCapability(cap device.Capability) (*device.Interface, ClassDriver, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	iface, ok := b.cap2iface[cap]
	if !ok {
		return nil, nil, false
	}
	driver, ok := b.drivers[iface]
	return iface, driver, ok
}

// recomputeCapabilities rebuilds cap2iface/caps from the current
// interface list, matching register_interface/remove_interface's
// "replay every interface's capabilities" approach. UNIQUE is masked in
// rather than cleared, since it identifies the board itself and must
// stick until DROPPED even once every interface granting it is gone,
// matching monitor.c's board->capabilities &= 1 << TY_BOARD_CAPABILITY_UNIQUE
// before the re-OR. Caller must hold mu.
func (b *Board) recomputeCapabilities() {
	b.cap2iface = make(map[device.Capability]*device.Interface)
	b.caps &= device.CapabilitySet(0).With(device.CapUnique)
	for _, iface := range b.ifaces {
		for cap := device.Capability(0); cap < device.Capability(8); cap++ {
			if iface.Capabilities.Has(cap) {
				b.cap2iface[cap] = iface
			}
		}
		b.caps |= iface.Capabilities
	}
}

// MatchesTag reports whether idPattern (as given on a -B/--board command
// line flag) matches this board, per ty_board_matches_tag. idPattern has
// the grammar "<serial-or-?>-<model>[@location]"; any part may be
// omitted (wildcard). An empty idPattern always matches.
func (b *Board) MatchesTag(idPattern string) bool {
	if idPattern == "" {
		return true
	}

	b.mu.Lock()
	tag, id, location := b.tag, b.id, b.location
	ifaces := make([]*device.Interface, len(b.ifaces))
	copy(ifaces, b.ifaces)
	b.mu.Unlock()

	if tag != id && idPattern == tag {
		return true
	}

	serialPart, modelPart, locationPart, hasLocation := splitTagPattern(idPattern)
	idSerialPart, idModelPart := splitBoardID(id)

	if serialPart != "" && serialPart != idSerialPart {
		return false
	}
	if modelPart != "" && modelPart != idModelPart {
		return false
	}
	if hasLocation && locationPart != location {
		matched := false
		for _, iface := range ifaces {
			if iface.Device.Raw.Node == locationPart {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// splitTagPattern splits a user-supplied tag on "@" then "-", mirroring
// parse_board_id(id, "-@", parts): the location suffix is cut off first
// regardless of whether a "-" precedes it, since a bare "@<path>" tag
// (no serial/model at all) must still split out its location; what
// remains before the "@" is then split on its first "-" into
// serial/model parts.
func splitTagPattern(s string) (serialPart, modelPart, locationPart string, hasLocation bool) {
	rest := s
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		locationPart = rest[i+1:]
		rest = rest[:i]
		hasLocation = true
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		serialPart = rest[:i]
		modelPart = rest[i+1:]
	} else {
		serialPart = rest
	}
	return serialPart, modelPart, locationPart, hasLocation
}

// splitBoardID splits a canonical board id on its single "-" delimiter,
// mirroring parse_board_id(board->id, "-", parts).
func splitBoardID(id string) (serialPart, modelPart string) {
	if i := strings.IndexByte(id, '-'); i >= 0 {
		return id[:i], id[i+1:]
	}
	return id, ""
}
