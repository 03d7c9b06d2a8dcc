package board

import (
	"context"
	"time"

	"github.com/Koromix/tytools-sub001/device"
	"github.com/Koromix/tytools-sub001/firmware"
	"github.com/Koromix/tytools-sub001/halfkay"
	"github.com/Koromix/tytools-sub001/model"
	"github.com/Koromix/tytools-sub001/platform"
)

// ClassDriver is the per-board-type behavior a class package (e.g. the
// Teensy or generic-serial driver) supplies, matching the shape of
// _ty_class_vtable in board.c/class.c. board never imports the packages
// that implement this interface; they import board and register
// themselves instead (see
// RegisterClass), the same inversion database/sql uses for drivers.
type ClassDriver interface {
	// LoadInterface inspects a freshly opened device and decides whether
	// this driver claims it, filling in iface.Name/Capabilities/Model.
	// ok is false if the device doesn't belong to this driver after all
	// (not an error: just no match).
	LoadInterface(raw platform.RawDevice, iface *device.Interface) (ok bool, err error)

	// UpdateBoard folds iface's identity into b (id, serial number,
	// description, model), called once when a board is first created
	// (isNew true) and again every time one of its interfaces changes.
	// compatible is false if iface no longer belongs on this board at
	// all (e.g. the model identity changed completely), in which case
	// the caller drops b and creates a fresh one.
	UpdateBoard(iface *device.Interface, b *Board, isNew bool) (compatible bool, err error)

	// IdentifyModels guesses which models a firmware image could run on.
	IdentifyModels(fw *firmware.Firmware) []model.Model

	OpenInterface(iface *device.Interface) error
	CloseInterface(iface *device.Interface) error

	SerialRead(ctx context.Context, iface *device.Interface, buf []byte, timeout time.Duration) (int, error)
	SerialWrite(ctx context.Context, iface *device.Interface, buf []byte) (int, error)

	Upload(ctx context.Context, iface *device.Interface, fw *firmware.Firmware, progress halfkay.ProgressFunc) error
	Reset(iface *device.Interface) error
	Reboot(iface *device.Interface) error
}

// MatchEntry routes one VID/PID (or device-type catch-all) combination to
// a driver, matching the match-table entries class.c and class_default.c
// build for hs_monitor_new.
type MatchEntry struct {
	VendorID  uint16
	ProductID uint16

	// MatchType, when true, ignores VendorID/ProductID and matches any
	// device of Type instead (the generic driver's catch-all entry).
	MatchType bool
	Type      platform.DeviceType

	Driver ClassDriver
	Name   string
}

var matchTable []MatchEntry

// RegisterClass appends entries to the global class match table. Entries
// are tried in registration order, so a specific VID/PID driver must
// register before a catch-all one (the class package's init() in
// class/teensy.go registers the Teensy entries first and the generic
// catch-all last).
func RegisterClass(entries ...MatchEntry) {
	matchTable = append(matchTable, entries...)
}

// matchDriver returns the first registered entry whose predicate matches
// raw, or ok=false if no driver claims this device type at all.
func matchDriver(raw platform.RawDevice) (ClassDriver, string, bool) {
	for _, entry := range matchTable {
		if entry.MatchType {
			if entry.Type == raw.Type {
				return entry.Driver, entry.Name, true
			}
			continue
		}
		if entry.VendorID == raw.VendorID && entry.ProductID == raw.ProductID {
			return entry.Driver, entry.Name, true
		}
	}
	return nil, "", false
}
