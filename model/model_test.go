package model

import (
	"testing"

	"github.com/Koromix/tytools-sub001/firmware"
)

func TestInfoAndString(t *testing.T) {
	if Teensy36.String() != "Teensy 3.6" {
		t.Fatalf("String() = %q", Teensy36.String())
	}
	if !Teensy36.IsReal() {
		t.Fatalf("Teensy36 should be real")
	}
	if Unknown.IsReal() || Generic.IsReal() {
		t.Fatalf("Unknown/Generic should not be real")
	}
}

func TestFind(t *testing.T) {
	if Find("Teensy 3.2") != Teensy32 {
		t.Fatalf("Find(Teensy 3.2) = %v", Find("Teensy 3.2"))
	}
	if Find("nonexistent") != Unknown {
		t.Fatalf("Find(nonexistent) should be Unknown")
	}
}

func TestFromHalfKayUsage(t *testing.T) {
	cases := map[uint16]Model{
		0x1A: TeensyPP10,
		0x21: Teensy32,
		0x24: Teensy40,
		0xFF: Unknown,
	}
	for usage, want := range cases {
		if got := FromHalfKayUsage(usage); got != want {
			t.Errorf("FromHalfKayUsage(%#x) = %v, want %v", usage, got, want)
		}
	}
}

func TestFromBCDDevice(t *testing.T) {
	if FromBCDDevice(0x279) != Teensy40 {
		t.Fatalf("FromBCDDevice(0x279) = %v, want Teensy40", FromBCDDevice(0x279))
	}
	if FromBCDDevice(0xFFFF) != Unknown {
		t.Fatalf("FromBCDDevice(0xFFFF) should be Unknown")
	}
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func TestIdentifyFirmwareTeensy40(t *testing.T) {
	fw := firmware.New("test.hex")
	seg, _ := fw.AddSegment(0x60000000, 8)
	copy(seg.Data, le64(0x5601000042464346))

	models := IdentifyFirmware(fw, 2)
	if len(models) != 2 || models[0] != Teensy40 || models[1] != Teensy40Beta1 {
		t.Fatalf("models = %v", models)
	}
}

func TestIdentifyFirmwareTeensy30Vectors(t *testing.T) {
	fw := firmware.New("test.hex")
	seg, _ := fw.AddSegment(0, 0x400)
	copy(seg.Data[0:4], le32(0x20002000))
	copy(seg.Data[4:8], le32(0xF8))
	for i := 0xF8; i+8 <= 0x400; i += 4 {
		copy(seg.Data[i:i+8], le64(0xFFFFFFFFFFFFFFFF))
	}

	models := IdentifyFirmware(fw, 1)
	if len(models) != 1 || models[0] != Teensy30 {
		t.Fatalf("models = %v", models)
	}
}

func TestIdentifyFirmwareAVR(t *testing.T) {
	fw := firmware.New("test.hex")
	seg, _ := fw.AddSegment(0x1000, 16)
	copy(seg.Data[4:12], le64(0x94F8CFFF3F00940C))

	models := IdentifyFirmware(fw, 1)
	if len(models) != 1 || models[0] != Teensy20 {
		t.Fatalf("models = %v", models)
	}
}

func TestIdentifyFirmwareUnrecognized(t *testing.T) {
	fw := firmware.New("test.hex")
	fw.AddSegment(0x1000, 16)

	models := IdentifyFirmware(fw, 1)
	if len(models) != 0 {
		t.Fatalf("models = %v, want none", models)
	}
}
