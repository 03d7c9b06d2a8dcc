package board

import (
	"context"
	"testing"
	"time"

	"github.com/Koromix/tytools-sub001/device"
	"github.com/Koromix/tytools-sub001/firmware"
	"github.com/Koromix/tytools-sub001/halfkay"
	"github.com/Koromix/tytools-sub001/model"
	"github.com/Koromix/tytools-sub001/platform"
)

type stubDriver struct{ name string }

func (d *stubDriver) LoadInterface(raw platform.RawDevice, iface *device.Interface) (bool, error) {
	return true, nil
}
func (d *stubDriver) UpdateBoard(iface *device.Interface, b *Board, isNew bool) (bool, error) {
	return true, nil
}
func (d *stubDriver) IdentifyModels(fw *firmware.Firmware) []model.Model { return nil }
func (d *stubDriver) OpenInterface(iface *device.Interface) error       { return nil }
func (d *stubDriver) CloseInterface(iface *device.Interface) error      { return nil }
func (d *stubDriver) SerialRead(ctx context.Context, iface *device.Interface, buf []byte, timeout time.Duration) (int, error) {
	return 0, nil
}
func (d *stubDriver) SerialWrite(ctx context.Context, iface *device.Interface, buf []byte) (int, error) {
	return len(buf), nil
}
func (d *stubDriver) Upload(ctx context.Context, iface *device.Interface, fw *firmware.Firmware, progress halfkay.ProgressFunc) error {
	return nil
}
func (d *stubDriver) Reset(iface *device.Interface) error  { return nil }
func (d *stubDriver) Reboot(iface *device.Interface) error { return nil }

func TestMatchDriverSpecificBeforeCatchAll(t *testing.T) {
	saved := matchTable
	defer func() { matchTable = saved }()
	matchTable = nil

	specific := &stubDriver{name: "specific"}
	catchAll := &stubDriver{name: "catch-all"}
	RegisterClass(
		MatchEntry{VendorID: 0x16C0, ProductID: 0x0483, Driver: specific, Name: "teensy"},
		MatchEntry{MatchType: true, Type: platform.TypeSerial, Driver: catchAll, Name: "generic"},
	)

	driver, name, ok := matchDriver(platform.RawDevice{VendorID: 0x16C0, ProductID: 0x0483, Type: platform.TypeHID})
	if !ok || driver != specific || name != "teensy" {
		t.Fatalf("matchDriver(teensy PID) = (%v, %q, %v)", driver, name, ok)
	}

	driver, name, ok = matchDriver(platform.RawDevice{VendorID: 0x1234, ProductID: 0x5678, Type: platform.TypeSerial})
	if !ok || driver != catchAll || name != "generic" {
		t.Fatalf("matchDriver(unknown serial) = (%v, %q, %v)", driver, name, ok)
	}

	_, _, ok = matchDriver(platform.RawDevice{VendorID: 0x1234, ProductID: 0x5678, Type: platform.TypeHID})
	if ok {
		t.Fatalf("unknown HID device should not match any driver")
	}
}
