//go:build linux

package linux

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// hidrawReportDescriptor mirrors struct hidraw_report_descriptor from
// <linux/hidraw.h>: a u32 size followed by a 4096-byte fixed buffer.
type hidrawReportDescriptor struct {
	Size  uint32
	Value [4096]byte
}

const (
	hidiocGRDescSize = 0x80044801 // HIDIOCGRDESCSIZE
	hidiocGRDesc     = 0x90044802 // HIDIOCGRDESC
)

// readHIDUsage opens a hidraw node just long enough to pull its report
// descriptor and extract the top-level (usage page, usage) pair, the
// same information libhs gets from IOHIDDeviceGetProperty on macOS or
// HidD_GetPreparsedData on Windows, here reconstructed by hand-parsing
// the short-item stream per the HID 1.11 spec (§6.2.2), since Linux's
// hidraw interface hands back the raw descriptor bytes rather than a
// pre-parsed usage table.
func readHIDUsage(node string) (page, usage uint16, ok bool) {
	f, err := os.OpenFile(node, os.O_RDONLY, 0)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	var size uint32
	if err := ioctl(f.Fd(), hidiocGRDescSize, uintptr(unsafe.Pointer(&size))); err != nil {
		return 0, 0, false
	}

	var desc hidrawReportDescriptor
	desc.Size = size
	if err := ioctl(f.Fd(), hidiocGRDesc, uintptr(unsafe.Pointer(&desc))); err != nil {
		return 0, 0, false
	}

	return parseTopLevelUsage(desc.Value[:desc.Size])
}

// parseTopLevelUsage walks HID report descriptor short items looking for
// the first Usage Page (global, tag 0) and Usage (local, tag 0) pair that
// precedes the first Collection item (the application collection's
// usage), the "HID usage page" / "usage value" pair used to classify an
// interface.
func parseTopLevelUsage(data []byte) (page, usage uint16, ok bool) {
	var havePage, haveUsage bool
	for i := 0; i < len(data); {
		item := data[i]
		size := int(item & 0x03)
		if size == 3 {
			size = 4
		}
		tag := (item >> 4) & 0x0F
		typ := (item >> 2) & 0x03
		i++
		if i+size > len(data) {
			break
		}
		val := littleEndian(data[i : i+size])
		i += size

		switch {
		case typ == 1 && tag == 0: // Global: Usage Page
			page = uint16(val)
			havePage = true
		case typ == 2 && tag == 0: // Local: Usage
			usage = uint16(val)
			haveUsage = true
		case typ == 0 && tag == 0xA: // Main: Collection
			if havePage && haveUsage {
				return page, usage, true
			}
		}
	}
	return page, usage, havePage && haveUsage
}

func littleEndian(b []byte) uint32 {
	var v uint32
	for i, c := range b {
		v |= uint32(c) << (8 * i)
	}
	return v
}

func ioctl(fd uintptr, req uint, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// iocSize reconstructs the Linux _IOC(dir, type, nr, size) macro for
// hidraw's variable-length feature-report ioctls, whose request number
// depends on the report buffer length.
func iocSize(dir uint, typ byte, nr, size int) uint {
	const (
		nrBits   = 8
		typeBits = 8
		sizeBits = 14
		dirShift = nrBits + typeBits + sizeBits
	)
	return (dir << dirShift) | (uint(typ) << nrBits) | uint(nr) | (uint(size) << (nrBits + typeBits))
}

func ioctlBytes(fd uintptr, req uint, buf []byte) error {
	if len(buf) == 0 {
		return ioctl(fd, req, 0)
	}
	return ioctl(fd, req, uintptr(unsafe.Pointer(&buf[0])))
}
