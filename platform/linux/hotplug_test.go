//go:build linux

package linux

import "testing"

func TestParseUEventAdd(t *testing.T) {
	raw := "add@/devices/pci0000:00/usb1/1-1/1-1:1.0/hidraw/hidraw3\x00" +
		"ACTION=add\x00" +
		"DEVPATH=/devices/pci0000:00/usb1/1-1/1-1:1.0/hidraw/hidraw3\x00" +
		"SUBSYSTEM=hidraw\x00"
	evt := parseUEvent([]byte(raw))
	if evt.action != ueventAdd {
		t.Fatalf("action = %v, want ueventAdd", evt.action)
	}
	if evt.subsystem != "hidraw" {
		t.Fatalf("subsystem = %q, want hidraw", evt.subsystem)
	}
}

func TestParseUEventRemove(t *testing.T) {
	raw := "remove@/devices/pci0000:00/usb1/1-1/1-1:1.0/tty/ttyACM0\x00" +
		"ACTION=remove\x00" +
		"SUBSYSTEM=tty\x00"
	evt := parseUEvent([]byte(raw))
	if evt.action != ueventRemove || evt.subsystem != "tty" {
		t.Fatalf("got %+v", evt)
	}
}

func TestParseUEventKeepsOtherSubsystems(t *testing.T) {
	raw := "add@/devices/pci0000:00/usb1/1-1\x00ACTION=add\x00SUBSYSTEM=usb\x00"
	evt := parseUEvent([]byte(raw))
	if evt.subsystem != "usb" {
		t.Fatalf("subsystem = %q, want usb (filtering happens in readEvent)", evt.subsystem)
	}
}
