package class

import (
	"context"
	"strings"
	"time"

	"github.com/Koromix/tytools-sub001/board"
	"github.com/Koromix/tytools-sub001/device"
	"github.com/Koromix/tytools-sub001/firmware"
	"github.com/Koromix/tytools-sub001/halfkay"
	"github.com/Koromix/tytools-sub001/internal/errcode"
	"github.com/Koromix/tytools-sub001/model"
	"github.com/Koromix/tytools-sub001/platform"
)

// GenericDriver implements board.ClassDriver for any plain CDC-ACM
// serial device that no more specific driver claimed: a raw tty with no
// upload/reset capability, identified only by its USB strings. Grounded
// on class_generic.c.
type GenericDriver struct{}

func (GenericDriver) LoadInterface(raw platform.RawDevice, iface *device.Interface) (bool, error) {
	if raw.Type != platform.TypeSerial {
		return false, nil
	}
	iface.Name = "Serial"
	iface.Capabilities = iface.Capabilities.With(device.CapSerial)
	iface.Model = model.Generic
	return true, nil
}

// sanitizeID replaces anything outside [-_:.A-Za-z0-9] with '_', matching
// generic_update_board's character-by-character id cleanup.
func sanitizeID(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '-' || r == '_' || r == ':' || r == '.':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (GenericDriver) UpdateBoard(iface *device.Interface, b *board.Board, isNew bool) (bool, error) {
	raw := iface.Device.Raw

	manufacturer := raw.Manufacturer
	if manufacturer == "" {
		manufacturer = "Unknown"
	}
	product := raw.Product
	if product == "" {
		product = "Unknown"
	}
	serialNumberString := raw.SerialNumber
	if serialNumberString == "" {
		serialNumberString = "?"
	}

	if b.Model() != model.Generic && b.Model() != model.Unknown {
		return false, nil
	}
	if existing := b.SerialNumber(); existing != "" && existing != serialNumberString {
		return false, nil
	}
	if existing := b.Description(); existing != "" && existing != product {
		return false, nil
	}

	id := sanitizeID(serialNumberString + "-" + manufacturer)
	if existing := b.ID(); existing != "" && existing != id {
		return false, nil
	}

	unique := false
	if raw.SerialNumber != "" {
		if strings.Trim(raw.SerialNumber, "0_ ") != "" {
			unique = true
		}
	}

	b.SetModel(model.Generic)
	b.SetSerialNumber(serialNumberString)
	if unique {
		iface.Capabilities = iface.Capabilities.With(device.CapUnique)
	}
	b.SetDescription(product)
	if b.ID() == "" {
		b.SetID(id)
	}

	return true, nil
}

func (GenericDriver) IdentifyModels(fw *firmware.Firmware) []model.Model {
	return nil
}

func (GenericDriver) OpenInterface(iface *device.Interface) error {
	return iface.Port.Open()
}

func (GenericDriver) CloseInterface(iface *device.Interface) error {
	return iface.Port.Close()
}

func (GenericDriver) SerialRead(ctx context.Context, iface *device.Interface, buf []byte, timeout time.Duration) (int, error) {
	h := iface.Port.Handle()
	if h == nil {
		return 0, errcode.New(errcode.IO, "interface not open")
	}
	return h.ReadSerial(ctx, buf, timeout)
}

func (GenericDriver) SerialWrite(ctx context.Context, iface *device.Interface, buf []byte) (int, error) {
	h := iface.Port.Handle()
	if h == nil {
		return 0, errcode.New(errcode.IO, "interface not open")
	}
	n, err := h.WriteSerial(ctx, buf, 5*time.Second)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errcode.New(errcode.IO, "timed out writing to '%s'", iface.Device.Raw.Node)
	}
	return n, nil
}

func (GenericDriver) Upload(ctx context.Context, iface *device.Interface, fw *firmware.Firmware, progress halfkay.ProgressFunc) error {
	return errcode.New(errcode.Unsupported, "generic serial devices do not support firmware upload")
}

func (GenericDriver) Reset(iface *device.Interface) error {
	return errcode.New(errcode.Unsupported, "generic serial devices do not support reset")
}

func (GenericDriver) Reboot(iface *device.Interface) error {
	return errcode.New(errcode.Unsupported, "generic serial devices do not support reboot")
}
