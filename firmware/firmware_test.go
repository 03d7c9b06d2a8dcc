package firmware

import (
	"path/filepath"
	"testing"

	"github.com/Koromix/tytools-sub001/internal/errcode"
)

func TestLoadIHexBasic(t *testing.T) {
	hex := ":10000000000102030405060708090A0B0C0D0E0F78\n" +
		":00000001FF\n"
	fw, err := LoadBytes("test.hex", []byte(hex), "")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if len(fw.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(fw.Segments))
	}
	if fw.Segments[0].Address != 0 || len(fw.Segments[0].Data) != 16 {
		t.Fatalf("segment = %+v", fw.Segments[0])
	}
	if fw.Segments[0].Data[1] != 0x01 {
		t.Fatalf("data[1] = %#x, want 0x01", fw.Segments[0].Data[1])
	}
}

func TestLoadIHexExtendedLinearAddress(t *testing.T) {
	hex := ":020000040001F9\n" + // base = 0x00010000
		":10000000AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA50\n" +
		":00000001FF\n"
	fw, err := LoadBytes("test.hex", []byte(hex), "")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if fw.Segments[0].Address != 0x00010000 {
		t.Fatalf("address = %#x, want 0x10000", fw.Segments[0].Address)
	}
}

func TestLoadIHexBadChecksum(t *testing.T) {
	hex := ":10000000000102030405060708090A0B0C0D0E0FFF\n"
	_, err := LoadBytes("test.hex", []byte(hex), "")
	if errcode.Of(err) != errcode.Parse {
		t.Fatalf("err = %v, want Parse", err)
	}
}

func TestLoadIHexMissingEOF(t *testing.T) {
	hex := ":10000000000102030405060708090A0B0C0D0E0F78\n"
	_, err := LoadBytes("test.hex", []byte(hex), "")
	if errcode.Of(err) != errcode.Parse {
		t.Fatalf("err = %v, want Parse", err)
	}
}

func TestLoadIHexContiguousDataMerges(t *testing.T) {
	hex := ":10000000000102030405060708090A0B0C0D0E0F78\n" +
		":10001000101112131415161718191A1B1C1D1E1F68\n" +
		":00000001FF\n"
	fw, err := LoadBytes("test.hex", []byte(hex), "")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if len(fw.Segments) != 1 {
		t.Fatalf("segments = %d, want 1 (contiguous records should merge)", len(fw.Segments))
	}
	if len(fw.Segments[0].Data) != 32 {
		t.Fatalf("segment size = %d, want 32", len(fw.Segments[0].Data))
	}
}

func buildELF32(order string, segments []Segment) []byte {
	le := order == "le"
	put16 := func(b []byte, v uint16) {
		if le {
			b[0], b[1] = byte(v), byte(v>>8)
		} else {
			b[0], b[1] = byte(v>>8), byte(v)
		}
	}
	put32 := func(b []byte, v uint32) {
		if le {
			b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
		} else {
			b[0], b[1], b[2], b[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
		}
	}

	const ehdrSize, phdrSize = 52, 32
	phoff := uint32(ehdrSize)
	bodyOffset := phoff + uint32(len(segments))*phdrSize

	buf := make([]byte, bodyOffset)
	buf[0], buf[1], buf[2], buf[3] = 0x7F, 'E', 'L', 'F'
	buf[4] = 1 // ELFCLASS32
	if le {
		buf[5] = 1
	} else {
		buf[5] = 2
	}
	put32(buf[28:32], phoff)
	put16(buf[42:44], phdrSize)
	put16(buf[44:46], uint16(len(segments)))

	offset := bodyOffset
	for i, seg := range segments {
		buf = append(buf, seg.Data...)
		ph := make([]byte, phdrSize)
		put32(ph[0:4], ptLoad)
		put32(ph[4:8], offset)
		put32(ph[12:16], seg.Address)
		put32(ph[16:20], uint32(len(seg.Data)))
		copy(buf[phoff+uint32(i)*phdrSize:], ph)
		offset += uint32(len(seg.Data))
	}
	return buf
}

func TestLoadELFLittleEndian(t *testing.T) {
	data := buildELF32("le", []Segment{
		{Address: 0x1000, Data: []byte{1, 2, 3, 4}},
		{Address: 0x6000000, Data: []byte{5, 6}},
	})
	fw, err := LoadBytes("test.elf", data, "")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if len(fw.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(fw.Segments))
	}
	if fw.Segments[0].Address != 0x1000 {
		t.Fatalf("segment[0].Address = %#x", fw.Segments[0].Address)
	}
	if fw.MaxAddress != 0x6000002 {
		t.Fatalf("MaxAddress = %#x, want 0x6000002", fw.MaxAddress)
	}
}

func TestLoadELFBigEndian(t *testing.T) {
	data := buildELF32("be", []Segment{{Address: 0x2000, Data: []byte{9, 9, 9}}})
	fw, err := LoadBytes("test.elf", data, "")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if fw.Segments[0].Address != 0x2000 || len(fw.Segments[0].Data) != 3 {
		t.Fatalf("segment = %+v", fw.Segments[0])
	}
}

func TestLoadELFBadMagic(t *testing.T) {
	_, err := LoadBytes("test.elf", []byte("not an elf file at all............"), "")
	if errcode.Of(err) != errcode.Parse {
		t.Fatalf("err = %v, want Parse", err)
	}
}

func TestFindFormatByExtension(t *testing.T) {
	format, err := findFormat(filepath.FromSlash("a/b.HEX"), "")
	if err != nil {
		t.Fatalf("findFormat: %v", err)
	}
	if format.Name != "ihex" {
		t.Fatalf("format = %s, want ihex", format.Name)
	}
}

func TestFindFormatUnknownExtension(t *testing.T) {
	_, err := findFormat("firmware.bin", "")
	if errcode.Of(err) != errcode.Unsupported {
		t.Fatalf("err = %v, want Unsupported", err)
	}
}

func TestExtract(t *testing.T) {
	fw := New("test.hex")
	seg, _ := fw.AddSegment(0x100, 4)
	copy(seg.Data, []byte{0xAA, 0xBB, 0xCC, 0xDD})

	buf := make([]byte, 4)
	n := fw.Extract(0x100, buf)
	if n != 4 {
		t.Fatalf("n = %d, want 4", n)
	}
	if buf[0] != 0xAA || buf[3] != 0xDD {
		t.Fatalf("buf = %v", buf)
	}
}

func TestAddSegmentRangeLimit(t *testing.T) {
	fw := New("huge.hex")
	_, err := fw.AddSegment(0, MaxSize+1)
	if errcode.Of(err) != errcode.Range {
		t.Fatalf("err = %v, want Range", err)
	}
}

func TestWriteExtendingSegmentRespectsMaxSize(t *testing.T) {
	fw := New("huge.hex")
	if _, err := fw.AddSegment(0, MaxSize-1); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	err := fw.Write(MaxSize-1, []byte{0x01, 0x02})
	if errcode.Of(err) != errcode.Range {
		t.Fatalf("err = %v, want Range", err)
	}
}
