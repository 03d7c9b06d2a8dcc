package board

import (
	"testing"

	"github.com/Koromix/tytools-sub001/device"
	"github.com/Koromix/tytools-sub001/platform"
)

func TestBoardSetIDFollowsTagUntilOverridden(t *testing.T) {
	b := newBoard("usb-1-1")
	b.SetID("12345-Teensy")
	if b.Tag() != "12345-Teensy" {
		t.Fatalf("Tag = %q, want to follow id", b.Tag())
	}

	b.SetTag("myboard")
	b.SetID("67890-Teensy")
	if b.Tag() != "myboard" {
		t.Fatalf("Tag = %q, want override to stick", b.Tag())
	}

	b.SetTag("")
	if b.Tag() != "67890-Teensy" {
		t.Fatalf("Tag = %q, want to revert to id", b.Tag())
	}
}

func TestBoardMatchesTagEmptyAlwaysMatches(t *testing.T) {
	b := newBoard("usb-1-1")
	b.SetID("12345-Teensy")
	if !b.MatchesTag("") {
		t.Fatalf("empty pattern should always match")
	}
}

func TestBoardMatchesTagOverrideWins(t *testing.T) {
	b := newBoard("usb-1-1")
	b.SetID("12345-Teensy")
	b.SetTag("myboard")
	if !b.MatchesTag("myboard") {
		t.Fatalf("override tag should match verbatim")
	}
	if !b.MatchesTag("12345-Teensy") {
		t.Fatalf("id should still match alongside an override tag")
	}
}

func TestBoardMatchesTagSerialModelLocation(t *testing.T) {
	b := newBoard("usb-1-1")
	b.SetID("12345-Teensy")
	b.ifaces = []*device.Interface{
		{Device: device.Device{Raw: platform.RawDevice{Node: "/dev/ttyACM0"}}},
	}

	cases := []struct {
		pattern string
		want    bool
	}{
		{"12345-Teensy", true},
		{"12345-", true},
		{"-Teensy", true},
		{"99999-Teensy", false},
		{"12345-Other", false},
		{"12345-Teensy@usb-1-1", true},  // location matches the board's own location
		{"12345-Teensy@usb-9-9", false}, // location matches neither the board nor any interface
		{"@/dev/ttyACM0", true},         // bare "@<path>" with no serial/model, matching an interface node
		{"@usb-1-1", true},              // bare "@<path>" matching the board's own location
	}
	for _, c := range cases {
		if got := b.MatchesTag(c.pattern); got != c.want {
			t.Errorf("MatchesTag(%q) = %v, want %v", c.pattern, got, c.want)
		}
	}
}

func TestSplitTagPattern(t *testing.T) {
	cases := []struct {
		in           string
		serial       string
		model        string
		location     string
		hasLocation  bool
	}{
		{"12345-Teensy@usb-1-1", "12345", "Teensy", "usb-1-1", true},
		{"12345-Teensy", "12345", "Teensy", "", false},
		{"12345", "12345", "", "", false},
		{"-Teensy", "", "Teensy", "", false},
		{"@/dev/ttyACM0", "", "", "/dev/ttyACM0", true},
	}
	for _, c := range cases {
		serial, model, location, hasLocation := splitTagPattern(c.in)
		if serial != c.serial || model != c.model || location != c.location || hasLocation != c.hasLocation {
			t.Errorf("splitTagPattern(%q) = (%q, %q, %q, %v), want (%q, %q, %q, %v)",
				c.in, serial, model, location, hasLocation, c.serial, c.model, c.location, c.hasLocation)
		}
	}
}

func TestBoardRecomputeCapabilities(t *testing.T) {
	b := newBoard("usb-1-1")
	iface := &device.Interface{Capabilities: device.CapabilitySet(0).With(device.CapUpload).With(device.CapReset)}
	b.ifaces = []*device.Interface{iface}
	b.drivers[iface] = nil
	b.recomputeCapabilities()

	if !b.HasCapability(device.CapUpload) {
		t.Fatalf("expected CapUpload")
	}
	if !b.HasCapability(device.CapReset) {
		t.Fatalf("expected CapReset")
	}
	if b.HasCapability(device.CapReboot) {
		t.Fatalf("did not expect CapReboot")
	}

	iface2, driver, ok := b.driverForCapability(device.CapUpload)
	if !ok || iface2 != iface || driver != nil {
		t.Fatalf("driverForCapability(CapUpload) = (%v, %v, %v)", iface2, driver, ok)
	}
}

func TestBoardRecomputeCapabilitiesPreservesUnique(t *testing.T) {
	b := newBoard("usb-1-1")
	iface := &device.Interface{Capabilities: device.CapabilitySet(0).With(device.CapUnique).With(device.CapUpload)}
	b.ifaces = []*device.Interface{iface}
	b.drivers[iface] = nil
	b.recomputeCapabilities()

	if !b.HasCapability(device.CapUnique) {
		t.Fatalf("expected CapUnique after first recompute")
	}

	b.ifaces = nil
	b.recomputeCapabilities()

	if !b.HasCapability(device.CapUnique) {
		t.Fatalf("CapUnique should persist once every interface is gone")
	}
	if b.HasCapability(device.CapUpload) {
		t.Fatalf("CapUpload should not survive its interface's removal")
	}
}

func TestStatusAndEventStrings(t *testing.T) {
	if StatusOnline.String() != "online" || StatusMissing.String() != "missing" || StatusDropped.String() != "dropped" {
		t.Fatalf("unexpected Status.String() values")
	}
	if EventAdded.String() != "added" || EventChanged.String() != "changed" ||
		EventDisappeared.String() != "disappeared" || EventDropped.String() != "dropped" {
		t.Fatalf("unexpected Event.String() values")
	}
}
