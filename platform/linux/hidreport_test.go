//go:build linux

package linux

import "testing"

// buildShortItem encodes a HID short item per HID 1.11 §6.2.2.2.
func buildShortItem(tag, typ byte, val uint32, size int) []byte {
	b := byte(size)
	if size == 4 {
		b = 3
	}
	item := []byte{(tag << 4) | (typ << 2) | b}
	for i := 0; i < size; i++ {
		item = append(item, byte(val>>(8*i)))
	}
	return item
}

func TestParseTopLevelUsageHalfKay(t *testing.T) {
	// Usage Page (0xFF9C), Usage (0x21), Collection (Application)
	var data []byte
	data = append(data, buildShortItem(0, 1, 0xFF9C, 2)...) // global usage page, 2 bytes
	data = append(data, buildShortItem(0, 2, 0x21, 1)...)   // local usage, 1 byte
	data = append(data, buildShortItem(0xA, 0, 0x01, 1)...) // main collection

	page, usage, ok := parseTopLevelUsage(data)
	if !ok {
		t.Fatalf("expected a usage pair to be found")
	}
	if page != 0xFF9C || usage != 0x21 {
		t.Fatalf("got page=%#x usage=%#x, want page=0xFF9C usage=0x21", page, usage)
	}
}

func TestParseTopLevelUsageNoCollection(t *testing.T) {
	data := buildShortItem(0, 1, 0xFFAB, 2)
	_, _, ok := parseTopLevelUsage(data)
	if ok {
		t.Fatalf("expected no usage pair without a trailing collection")
	}
}

func TestIOCSize(t *testing.T) {
	req := iocSize(3, 'H', 0x06, 5)
	if req == 0 {
		t.Fatalf("expected a non-zero ioctl request number")
	}
	// Re-derive the size field and check round-trip.
	size := (req >> 16) & 0x3FFF
	if size != 5 {
		t.Fatalf("size field = %d, want 5", size)
	}
}
