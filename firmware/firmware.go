// Package firmware loads firmware images (Intel HEX and ELF32) into a
// common segment-list representation. It follows pkg/error.go's
// sentinel-error style and is generalized from firmware_*.c's
// format-specific loaders.
package firmware

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Koromix/tytools-sub001/internal/errcode"
)

// MaxSegments and MaxSize bound a loaded image, mirroring firmware.h's
// TY_FIRMWARE_MAX_SEGMENTS / TY_FIRMWARE_MAX_SIZE.
const (
	MaxSegments = 16
	MaxSize     = 32 * 1024 * 1024
)

// Segment is one contiguous block of firmware data at a fixed address.
type Segment struct {
	Address uint32
	Data    []byte
}

// End returns the address one past the last byte of the segment.
func (s Segment) End() uint32 {
	return s.Address + uint32(len(s.Data))
}

// Firmware is a parsed firmware image: a filename, a display name (the
// basename, unless overridden) and the segments read from it.
type Firmware struct {
	Filename string
	Name     string

	Segments []Segment

	MaxAddress uint32
	TotalSize  int
}

// New creates an empty Firmware named after filename's basename.
func New(filename string) *Firmware {
	return &Firmware{
		Filename: filename,
		Name:     filepath.Base(filename),
	}
}

// AddSegment appends a new segment, enforcing the MaxSegments/MaxSize
// limits, and returns a pointer to it for in-place filling.
func (fw *Firmware) AddSegment(address uint32, size int) (*Segment, error) {
	if len(fw.Segments) >= MaxSegments {
		return nil, errcode.New(errcode.Range, "firmware '%s' has too many segments (max %d)", fw.Filename, MaxSegments)
	}
	if fw.TotalSize+size > MaxSize {
		return nil, errcode.New(errcode.Range, "firmware '%s' is too large (max %d bytes)", fw.Filename, MaxSize)
	}
	fw.Segments = append(fw.Segments, Segment{Address: address, Data: make([]byte, size)})
	seg := &fw.Segments[len(fw.Segments)-1]

	fw.TotalSize += size
	if end := address + uint32(size); end > fw.MaxAddress {
		fw.MaxAddress = end
	}
	return seg, nil
}

// Write deposits data at address, extending the segment that already ends
// at address (the common case for a stream of ascending Intel HEX data
// records) or starting a fresh one when address falls outside every
// existing segment. It mirrors ty_firmware_expand_image's role of growing
// a single image buffer, generalized to the segment list ELF also needs.
func (fw *Firmware) Write(address uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	for i := range fw.Segments {
		seg := &fw.Segments[i]
		if address == seg.End() {
			if fw.TotalSize+len(data) > MaxSize {
				return errcode.New(errcode.Range, "firmware '%s' is too large (max %d bytes)", fw.Filename, MaxSize)
			}
			seg.Data = append(seg.Data, data...)
			fw.TotalSize += len(data)
			if end := seg.End(); end > fw.MaxAddress {
				fw.MaxAddress = end
			}
			return nil
		}
		if address >= seg.Address && address+uint32(len(data)) <= seg.End() {
			copy(seg.Data[address-seg.Address:], data)
			return nil
		}
	}
	seg, err := fw.AddSegment(address, len(data))
	if err != nil {
		return err
	}
	copy(seg.Data, data)
	return nil
}

// FindSegment returns the segment containing address, if any.
func (fw *Firmware) FindSegment(address uint32) (*Segment, bool) {
	for i := range fw.Segments {
		seg := &fw.Segments[i]
		if address >= seg.Address && address < seg.End() {
			return seg, true
		}
	}
	return nil, false
}

// Extract copies up to len(buf) bytes starting at address, drawing only
// from segments that actually cover that range; bytes in gaps between
// segments are left at buf's existing value (halfkay.Upload passes a
// zeroed buffer, so gaps are uploaded as 0x00; Extract itself writes
// nothing there).
func (fw *Firmware) Extract(address uint32, buf []byte) int {
	n := 0
	for i := range fw.Segments {
		seg := &fw.Segments[i]
		lo := max32(address, seg.Address)
		hi := min32(address+uint32(len(buf)), seg.End())
		if lo >= hi {
			continue
		}
		copy(buf[lo-address:hi-address], seg.Data[lo-seg.Address:hi-seg.Address])
		if int(hi-address) > n {
			n = int(hi - address)
		}
	}
	return n
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// Format is a recognized firmware file format.
type Format struct {
	Name string
	Ext  string
	Load func(fw *Firmware, data []byte) error
}

// Formats lists the supported formats in autodetection order, mirroring
// ty_firmware_formats.
var Formats = []Format{
	{Name: "elf", Ext: ".elf", Load: loadELF},
	{Name: "ihex", Ext: ".hex", Load: loadIHex},
}

func findFormat(filename, formatName string) (*Format, error) {
	if formatName != "" {
		for i := range Formats {
			if strings.EqualFold(Formats[i].Name, formatName) {
				return &Formats[i], nil
			}
		}
		return nil, errcode.New(errcode.Unsupported, "firmware file format '%s' unknown", formatName)
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		return nil, errcode.New(errcode.Unsupported, "firmware '%s' has no file extension", filename)
	}
	for i := range Formats {
		if strings.EqualFold(Formats[i].Ext, ext) {
			return &Formats[i], nil
		}
	}
	return nil, errcode.New(errcode.Unsupported, "firmware '%s' has unrecognized extension '%s'", filename, ext)
}

// LoadBytes parses data as formatName (or, if formatName is empty, by
// filename's extension) and returns the resulting Firmware.
func LoadBytes(filename string, data []byte, formatName string) (*Firmware, error) {
	format, err := findFormat(filename, formatName)
	if err != nil {
		return nil, err
	}
	fw := New(filename)
	if err := format.Load(fw, data); err != nil {
		return nil, fmt.Errorf("loading '%s' as %s: %w", filename, format.Name, err)
	}
	return fw, nil
}

// LoadFile reads filename from disk and parses it, autodetecting the
// format from its extension unless formatName overrides that.
func LoadFile(filename, formatName string) (*Firmware, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		switch {
		case os.IsPermission(err):
			return nil, errcode.New(errcode.Access, "permission denied for '%s'", filename)
		case os.IsNotExist(err):
			return nil, errcode.New(errcode.NotFound, "file '%s' does not exist", filename)
		default:
			return nil, errcode.Wrap(errcode.System, err, "reading '%s'", filename)
		}
	}
	return LoadBytes(filename, data, formatName)
}
