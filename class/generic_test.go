package class

import (
	"testing"

	"github.com/Koromix/tytools-sub001/device"
	"github.com/Koromix/tytools-sub001/model"
	"github.com/Koromix/tytools-sub001/platform"
)

func TestSanitizeID(t *testing.T) {
	cases := map[string]string{
		"ABC123-xyz":    "ABC123-xyz",
		"hello world!":  "hello_world_",
		"a.b:c_d-e":     "a.b:c_d-e",
		"":              "",
	}
	for in, want := range cases {
		if got := sanitizeID(in); got != want {
			t.Errorf("sanitizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenericLoadInterfaceOnlySerial(t *testing.T) {
	iface := &device.Interface{}
	ok, err := GenericDriver{}.LoadInterface(platform.RawDevice{Type: platform.TypeSerial}, iface)
	if err != nil || !ok {
		t.Fatalf("LoadInterface(serial) = (%v, %v)", ok, err)
	}
	if iface.Model != model.Generic {
		t.Errorf("Model = %v, want Generic", iface.Model)
	}
	if !iface.Capabilities.Has(device.CapSerial) {
		t.Errorf("expected CapSerial")
	}

	iface2 := &device.Interface{}
	ok, err = GenericDriver{}.LoadInterface(platform.RawDevice{Type: platform.TypeHID}, iface2)
	if err != nil || ok {
		t.Fatalf("LoadInterface(hid) = (%v, %v), want ok=false", ok, err)
	}
}

func TestGenericDriverRejectsUnsupportedOperations(t *testing.T) {
	d := GenericDriver{}
	if err := d.Upload(nil, nil, nil, nil); err == nil {
		t.Errorf("expected Upload to be unsupported")
	}
	if err := d.Reset(nil); err == nil {
		t.Errorf("expected Reset to be unsupported")
	}
	if err := d.Reboot(nil); err == nil {
		t.Errorf("expected Reboot to be unsupported")
	}
}
