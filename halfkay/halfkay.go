// Package halfkay implements the HalfKay bootloader's HID upload
// protocol: per-model block-size/address-range parameters, the v1/v2/v3
// frame layouts, block-by-block programming with retry, and the
// reset/reboot commands. Grounded on class_teensy.c's
// get_halfkay_settings/halfkay_send/teensy_upload/teensy_reset/
// teensy_reboot.
package halfkay

import (
	"context"
	"os"
	"time"

	"github.com/Koromix/tytools-sub001/internal/errcode"
	"github.com/Koromix/tytools-sub001/internal/msgsink"
	"github.com/Koromix/tytools-sub001/model"
)

// Params holds one model's HalfKay wire parameters.
type Params struct {
	Version    int // frame layout version: 1, 2 or 3
	MinAddress uint32
	MaxAddress uint32
	BlockSize  int
}

var paramTable = map[model.Model]Params{
	model.TeensyPP10: {Version: 1, MinAddress: 0, MaxAddress: 0xFC00, BlockSize: 256},
	model.Teensy20:   {Version: 1, MinAddress: 0, MaxAddress: 0x7E00, BlockSize: 128},
	model.TeensyPP20: {Version: 2, MinAddress: 0, MaxAddress: 0x1FC00, BlockSize: 256},
	model.Teensy30:   {Version: 3, MinAddress: 0, MaxAddress: 0x20000, BlockSize: 1024},
	model.Teensy31:   {Version: 3, MinAddress: 0, MaxAddress: 0x40000, BlockSize: 1024},
	model.Teensy32:   {Version: 3, MinAddress: 0, MaxAddress: 0x40000, BlockSize: 1024},
	model.Teensy35:   {Version: 3, MinAddress: 0, MaxAddress: 0x80000, BlockSize: 1024},
	model.Teensy36:   {Version: 3, MinAddress: 0, MaxAddress: 0x100000, BlockSize: 1024},
	model.TeensyLC:   {Version: 3, MinAddress: 0, MaxAddress: 0xF800, BlockSize: 512},

	model.Teensy40Beta1: {Version: 3, MinAddress: 0x60000000, MaxAddress: 0x60180000, BlockSize: 1024},
	model.Teensy40:       {Version: 3, MinAddress: 0x60000000, MaxAddress: 0x60180000, BlockSize: 1024},
}

// experimentalModels gates boards whose bootloader protocol has not been
// exercised enough to trust by default, matching board.c's
// TYTOOLS_EXPERIMENTAL_BOARDS escape hatch.
var experimentalModels = map[model.Model]bool{
	model.TeensyPP10: true,
	model.Teensy20:   true,
}

// ParamsFor returns the HalfKay wire parameters for m, or an error if m
// has no bootloader parameters (a non-Teensy or unidentified model) or is
// gated behind TYTOOLS_EXPERIMENTAL_BOARDS.
func ParamsFor(m model.Model) (Params, error) {
	if experimentalModels[m] && os.Getenv("TYTOOLS_EXPERIMENTAL_BOARDS") == "" {
		return Params{}, errcode.New(errcode.Unsupported,
			"support for %s boards is experimental, set environment variable "+
				"TYTOOLS_EXPERIMENTAL_BOARDS to any value to enable upload", m)
	}
	p, ok := paramTable[m]
	if !ok {
		return Params{}, errcode.New(errcode.Unsupported, "%s is not a HalfKay-capable model", m)
	}
	return p, nil
}

// buildFrame lays out one HalfKay HID report per the version's addressing
// scheme (1 and 2 use a 3-byte header; 3 reserves 64 bytes for a longer
// address field future firmware revisions might need).
func buildFrame(p Params, address uint32, data []byte) []byte {
	var headerSize int
	switch p.Version {
	case 1, 2:
		headerSize = 3
	default:
		headerSize = 65
	}

	buf := make([]byte, headerSize+p.BlockSize)
	switch p.Version {
	case 1:
		buf[1] = byte(address)
		buf[2] = byte(address >> 8)
	case 2:
		buf[1] = byte(address >> 8)
		buf[2] = byte(address >> 16)
	default:
		buf[1] = byte(address)
		buf[2] = byte(address >> 8)
		buf[3] = byte(address >> 16)
	}
	copy(buf[headerSize:], data)
	return buf
}

// HIDWriter is the minimal surface halfkay needs from an open interface:
// writing one HID output report. device.Port (once open) satisfies this
// through its platform.Port handle.
type HIDWriter interface {
	WriteHID(buf []byte) (int, error)
}

// FeatureWriter additionally supports feature reports, needed only for
// the Seremu reboot trick.
type FeatureWriter interface {
	HIDWriter
	SendFeatureReport(buf []byte) (int, error)
}

// sendBlock writes one HalfKay frame, retrying on I/O stalls (the
// bootloader STALLs, EPIPE on Linux, if the host writes too fast) until
// timeout elapses. The first block (address 0) gets an extra 200ms pause
// afterward: it triggers a full chip erase.
func sendBlock(w HIDWriter, p Params, address uint32, data []byte, timeout time.Duration) error {
	frame := buildFrame(p, address, data)
	deadline := time.Now().Add(timeout)

	for {
		_, err := w.WriteHID(frame)
		if err == nil {
			break
		}
		if errcode.Of(err) == errcode.IO && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		return errcode.Wrap(errcode.IO, err, "writing HalfKay block at %#x", address)
	}

	if address == 0 {
		time.Sleep(200 * time.Millisecond)
	}
	return nil
}

// Extractor supplies firmware bytes for one address range; implemented
// by *firmware.Firmware.
type Extractor interface {
	Extract(address uint32, buf []byte) int
}

// ProgressFunc reports bytes uploaded so far against the flash size in
// use, feeding the same PROGRESS task messages task.Task.Progress emits.
type ProgressFunc func(uploaded, total int)

// ValidateSize reports a Range error if a firmware image's highest
// address exceeds what p's model can hold, per teensy_upload's
// fw->max_address check.
func ValidateSize(p Params, fwMaxAddress uint32, modelName string) error {
	if fwMaxAddress > p.MaxAddress {
		return errcode.New(errcode.Range, "firmware is too big for %s", modelName)
	}
	return nil
}

// Upload programs fw onto a HalfKay bootloader reachable through w,
// iterating block-by-block from the model's minimum address up to
// maxAddress and skipping all-empty blocks, per teensy_upload.
func Upload(ctx context.Context, w HIDWriter, p Params, fw Extractor, maxAddress uint32, progress ProgressFunc) error {
	total := int(p.MaxAddress - p.MinAddress)
	if progress != nil {
		progress(0, total)
	}

	buf := make([]byte, p.BlockSize)
	uploaded := 0
	for address := p.MinAddress; address < maxAddress; address += uint32(p.BlockSize) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for i := range buf {
			buf[i] = 0
		}
		n := fw.Extract(address, buf)
		if n == 0 {
			continue
		}

		if err := sendBlock(w, p, address, buf, 3*time.Second); err != nil {
			return err
		}
		uploaded += n
		if progress != nil {
			progress(uploaded, total)
		}
		msgsink.Log(msgsink.LevelDebug, msgsink.ComponentHalfKay, nil,
			"programmed block at %#x (%d bytes)", address, n)
	}
	return nil
}

// Reset sends HalfKay's reset command: an empty block at address
// 0xFFFFFF, with a short 250ms retry budget since the device is about to
// disappear regardless of whether the write is acknowledged.
func Reset(w HIDWriter, p Params) error {
	return sendBlock(w, p, 0xFFFFFF, nil, 250*time.Millisecond)
}

// seremuRebootMagic is the Seremu HID feature report that asks a running
// sketch (linked against Teensyduino) to jump to the bootloader.
var seremuRebootMagic = []byte{0x00, 0xA9, 0x45, 0xC2, 0x6B}

// RebootViaSeremu sends the Seremu reboot-to-bootloader feature report,
// used when a board exposes a raw-HID Seremu serial interface instead of
// a CDC-ACM tty.
func RebootViaSeremu(w FeatureWriter) error {
	n, err := w.SendFeatureReport(seremuRebootMagic)
	if err != nil {
		return errcode.Wrap(errcode.IO, err, "sending Seremu reboot report")
	}
	if n != len(seremuRebootMagic) {
		return errcode.New(errcode.IO, "short write sending Seremu reboot report")
	}
	return nil
}

// SerialRebootBaud is the non-standard baud rate that, when the port is
// reconfigured to it, tells a running Teensyduino CDC-ACM sketch to jump
// to the bootloader. The caller must restore a sane baud rate (115200)
// afterward, since some systems (Linux among them) persist tty settings
// across opens and would otherwise make the board reboot forever.
const SerialRebootBaud = 134
