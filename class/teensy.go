// Package class implements the ClassDriver contracts board.go declares:
// a Teensy driver speaking the HalfKay/Seremu protocols, and a catch-all
// generic serial driver for everything else. Both register themselves
// into board's match table from init(), so board never imports this
// package. Grounded on class_teensy.c/class_default.c and class.c's
// match tables.
package class

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/Koromix/tytools-sub001/board"
	"github.com/Koromix/tytools-sub001/device"
	"github.com/Koromix/tytools-sub001/firmware"
	"github.com/Koromix/tytools-sub001/halfkay"
	"github.com/Koromix/tytools-sub001/internal/errcode"
	"github.com/Koromix/tytools-sub001/internal/msgsink"
	"github.com/Koromix/tytools-sub001/model"
	"github.com/Koromix/tytools-sub001/platform"
)

const (
	usagePageBootloader uint16 = 0xFF9C
	usagePageRawHID     uint16 = 0xFFAB
	usagePageSeremu     uint16 = 0xFFC9

	seremuTxSize = 32
	seremuRxSize = 64
)

// teensyPIDs lists the VID:PID pairs (VID is always 0x16C0, PJRC's) that
// class.c's match table routes to the Teensy driver, covering every
// running-mode and bootloader PID across AVR and ARM Teensy generations.
var teensyPIDs = []uint16{
	0x0476, 0x0478, 0x0482, 0x0483, 0x0484, 0x0485, 0x0486, 0x0487,
	0x0488, 0x0489, 0x048A, 0x048B, 0x048C,
	0x04D0, 0x04D1, 0x04D2, 0x04D3, 0x04D4, 0x04D5, 0x04D9,
}

const pjrcVendorID uint16 = 0x16C0

func init() {
	driver := &TeensyDriver{}
	entries := make([]board.MatchEntry, 0, len(teensyPIDs))
	for _, pid := range teensyPIDs {
		entries = append(entries, board.MatchEntry{
			VendorID:  pjrcVendorID,
			ProductID: pid,
			Driver:    driver,
			Name:      "teensy",
		})
	}
	board.RegisterClass(entries...)

	// The generic driver's catch-all registers after every specific
	// entry above, so it only ever sees devices nothing else claimed
	// (class_default.c's HS_DEVICE_TYPE_SERIAL match).
	board.RegisterClass(board.MatchEntry{
		MatchType: true,
		Type:      platform.TypeSerial,
		Driver:    &GenericDriver{},
		Name:      "generic",
	})
}

// TeensyDriver implements board.ClassDriver for PJRC Teensy boards.
type TeensyDriver struct{}

func (TeensyDriver) LoadInterface(raw platform.RawDevice, iface *device.Interface) (bool, error) {
	switch raw.Type {
	case platform.TypeSerial:
		iface.Name = "Serial"
		iface.Capabilities = iface.Capabilities.With(device.CapRun).
			With(device.CapSerial).With(device.CapReboot)

	case platform.TypeHID:
		switch raw.UsagePage {
		case usagePageBootloader:
			iface.Name = "HalfKay"
			iface.Model = model.FromHalfKayUsage(raw.Usage)
			if iface.Model != model.Unknown {
				iface.Capabilities = iface.Capabilities.With(device.CapUpload).With(device.CapReset)
			}
		case usagePageRawHID:
			iface.Name = "RawHID"
			iface.Capabilities = iface.Capabilities.With(device.CapRun)
		case usagePageSeremu:
			iface.Name = "Seremu"
			iface.Capabilities = iface.Capabilities.With(device.CapRun).
				With(device.CapSerial).With(device.CapReboot)
		default:
			return false, nil
		}
	}

	if iface.Model == model.Unknown {
		iface.Model = model.FromBCDDevice(raw.BCDDevice)
		if iface.Model == model.Unknown {
			iface.Model = model.Teensy
		}
	}
	return true, nil
}

// parseBootloaderSerialNumber decodes a HalfKay serial number string,
// which the bootloader reports in hexadecimal and running sketches
// report in decimal with a Teensyduino-version-dependent scaling quirk.
// Grounded on parse_bootloader_serial_number.
func parseBootloaderSerialNumber(s string) uint64 {
	if s == "" {
		return 12345
	}
	v, _ := strconv.ParseUint(s, 16, 64)
	if v == 100 {
		return 0
	}
	if v < 10000000 {
		v *= 10
	}
	return v
}

func (TeensyDriver) UpdateBoard(iface *device.Interface, b *board.Board, isNew bool) (bool, error) {
	raw := iface.Device.Raw
	teensyName := model.Teensy.Info().Name

	var newModel model.Model
	if iface.Model != model.Teensy {
		m := iface.Model
		current := b.Model()
		switch {
		case current == model.Teensy31 && m == model.Teensy32 && iface.Capabilities.Has(device.CapUpload):
			// Bootloader info is more accurate than the bcdDevice guess; keep m.
		case current == model.Teensy32 && m == model.Teensy31 && !iface.Capabilities.Has(device.CapUpload):
			m = model.Unknown
		case !isNew && current != model.Teensy && current != model.Unknown && current != m:
			return false, nil
		}
		newModel = m
	} else if b.Model() == model.Unknown {
		newModel = iface.Model
	}

	var serialNumber string
	haveSerial := false
	if raw.SerialNumber != "" {
		var serialValue uint64
		if iface.Capabilities.Has(device.CapUpload) {
			serialValue = parseBootloaderSerialNumber(raw.SerialNumber)
		} else {
			serialValue, _ = strconv.ParseUint(raw.SerialNumber, 10, 64)
		}
		if serialValue != 0 {
			if serialValue != 12345 {
				iface.Capabilities = iface.Capabilities.With(device.CapUnique)
			}
			serialNumber = strconv.FormatUint(serialValue, 10)
			haveSerial = true

			if existing := b.SerialNumber(); existing != "" && existing != serialNumber {
				boardSerialValue, _ := strconv.ParseUint(existing, 10, 64)
				if iface.Capabilities.Has(device.CapUpload) && serialValue == boardSerialValue*10 {
					msgsink.Log(msgsink.LevelWarning, msgsink.ComponentClass, nil,
						"upgrade board '%s' with recent Teensyduino version", b.Tag())
				} else {
					return false, nil
				}
			}
		}
	}

	var description string
	haveDescription := false
	switch {
	case iface.Capabilities.Has(device.CapUpload):
		if b.Description() == "" {
			description, haveDescription = "HalfKay", true
		}
	case raw.Product != "":
		description, haveDescription = raw.Product, true
	default:
		description, haveDescription = teensyName, true
	}
	if haveDescription && description == b.Description() {
		haveDescription = false
	}

	var id string
	haveID := false
	if b.ID() == "" || haveSerial {
		part := "?"
		if haveSerial {
			part = serialNumber
		}
		id = part + "-" + teensyName
		haveID = true
	}

	if newModel != model.Unknown {
		b.SetModel(newModel)
	}
	if haveSerial {
		b.SetSerialNumber(serialNumber)
	}
	if haveDescription {
		b.SetDescription(description)
	}
	if haveID {
		b.SetID(id)
	}

	return true, nil
}

func (TeensyDriver) IdentifyModels(fw *firmware.Firmware) []model.Model {
	return model.IdentifyFirmware(fw, 2)
}

func changeBaudrate(port platform.Port, baud int) error {
	return port.SetSerialConfig(baud)
}

func (TeensyDriver) OpenInterface(iface *device.Interface) error {
	if err := iface.Port.Open(); err != nil {
		return err
	}
	if iface.Device.Raw.Type == platform.TypeSerial {
		if h := iface.Port.Handle(); h != nil {
			if err := changeBaudrate(h, 115200); err != nil {
				msgsink.Log(msgsink.LevelDebug, msgsink.ComponentClass, err,
					"restoring baud rate on '%s'", iface.Device.Raw.Node)
			}
		}
	}
	return nil
}

func (TeensyDriver) CloseInterface(iface *device.Interface) error {
	return iface.Port.Close()
}

func (TeensyDriver) SerialRead(ctx context.Context, iface *device.Interface, buf []byte, timeout time.Duration) (int, error) {
	h := iface.Port.Handle()
	if h == nil {
		return 0, errcode.New(errcode.IO, "interface not open")
	}

	switch iface.Device.Raw.Type {
	case platform.TypeSerial:
		return h.ReadSerial(ctx, buf, timeout)
	case platform.TypeHID:
		hidBuf := make([]byte, seremuRxSize+1)
		n, err := h.ReadHID(ctx, hidBuf, timeout)
		if err != nil {
			return 0, err
		}
		if n < 2 {
			return 0, nil
		}
		payload := hidBuf[1:n]
		if i := bytes.IndexByte(payload, 0); i >= 0 {
			payload = payload[:i]
		}
		return copy(buf, payload), nil
	default:
		return 0, errcode.New(errcode.Unsupported, "unsupported device type")
	}
}

func (TeensyDriver) SerialWrite(ctx context.Context, iface *device.Interface, buf []byte) (int, error) {
	h := iface.Port.Handle()
	if h == nil {
		return 0, errcode.New(errcode.IO, "interface not open")
	}

	switch iface.Device.Raw.Type {
	case platform.TypeSerial:
		n, err := h.WriteSerial(ctx, buf, 5*time.Second)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, errcode.New(errcode.IO, "timed out writing to '%s'", iface.Device.Raw.Node)
		}
		return n, nil

	case platform.TypeHID:
		report := make([]byte, seremuTxSize+1)
		total := 0
		for total < len(buf) {
			blockSize := seremuTxSize
			if remaining := len(buf) - total; remaining < blockSize {
				blockSize = remaining
			}
			for i := range report {
				report[i] = 0
			}
			copy(report[1:], buf[total:total+blockSize])

			n, err := h.WriteHID(report)
			if err != nil {
				return total, err
			}
			if n == 0 {
				break
			}
			total += blockSize
		}
		return total, nil

	default:
		return 0, errcode.New(errcode.Unsupported, "unsupported device type")
	}
}

func (TeensyDriver) Upload(ctx context.Context, iface *device.Interface, fw *firmware.Firmware, progress halfkay.ProgressFunc) error {
	h := iface.Port.Handle()
	if h == nil {
		return errcode.New(errcode.IO, "interface not open")
	}
	params, err := halfkay.ParamsFor(iface.Model)
	if err != nil {
		return err
	}
	if err := halfkay.ValidateSize(params, fw.MaxAddress, iface.Model.String()); err != nil {
		return err
	}
	return halfkay.Upload(ctx, h, params, fw, fw.MaxAddress, progress)
}

func (TeensyDriver) Reset(iface *device.Interface) error {
	h := iface.Port.Handle()
	if h == nil {
		return errcode.New(errcode.IO, "interface not open")
	}
	params, err := halfkay.ParamsFor(iface.Model)
	if err != nil {
		return err
	}
	return halfkay.Reset(h, params)
}

func (TeensyDriver) Reboot(iface *device.Interface) error {
	h := iface.Port.Handle()
	if h == nil {
		return errcode.New(errcode.IO, "interface not open")
	}

	if iface.Device.Raw.Type == platform.TypeHID {
		return halfkay.RebootViaSeremu(h)
	}

	if err := h.SetSerialConfig(halfkay.SerialRebootBaud); err != nil {
		return errcode.Wrap(errcode.IO, err, "triggering reboot on '%s'", iface.Device.Raw.Node)
	}
	if err := changeBaudrate(h, 115200); err != nil {
		msgsink.Log(msgsink.LevelDebug, msgsink.ComponentClass, err,
			"restoring baud rate on '%s'", iface.Device.Raw.Node)
	}
	return nil
}
