//go:build linux

package linux

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Koromix/tytools-sub001/pkg/linux/usbid"
	"github.com/Koromix/tytools-sub001/platform"
)

var (
	usbidOnce sync.Once
	usbidDB   *usbid.Database
)

// vendorProductNames loads the system's usb.ids database lazily and
// returns it; kernels without a string descriptor for a device (common
// on cheap hubs, and on devices whose bootloader never programs iProduct)
// still get a human-readable fallback name this way, exactly as lsusb
// does.
func vendorProductNames() *usbid.Database {
	usbidOnce.Do(func() {
		usbidDB = usbid.New()
		usbidDB.Load()
	})
	return usbidDB
}

// scanUSBDevices walks sysfs for every USB device and the interfaces that
// expose a hidraw or tty child node, turning each into a platform.RawDevice.
// Adapted from host/hal/linux/sysfs.go, generalized from "devices with
// a HID interface" to "devices with a hidraw-or-tty interface" since
// that's the boundary a board-monitoring HAL actually cares about.
func scanUSBDevices() ([]platform.RawDevice, error) {
	entries, err := os.ReadDir(sysfsUSBPath)
	if err != nil {
		return nil, err
	}

	var out []platform.RawDevice
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue // hub roots and interface entries, not devices
		}
		devPath := filepath.Join(sysfsUSBPath, name)
		out = append(out, scanDeviceInterfaces(name, devPath)...)
	}
	return out, nil
}

// scanDeviceInterfaces returns one RawDevice per hidraw/tty-bearing
// interface of the device at devPath, all sharing devPath's sysfs name as
// their Location, invariant for a Board's lifetime and shared by every
// interface of one physical device.
func scanDeviceInterfaces(location, devPath string) []platform.RawDevice {
	vendorID, _ := readSysfsHex16(filepath.Join(devPath, "idVendor"))
	productID, _ := readSysfsHex16(filepath.Join(devPath, "idProduct"))
	bcdDevice, _ := readSysfsHex16(filepath.Join(devPath, "bcdDevice"))
	serial, _ := readSysfsString(filepath.Join(devPath, "serial"))
	product, _ := readSysfsString(filepath.Join(devPath, "product"))
	manufacturer, _ := readSysfsString(filepath.Join(devPath, "manufacturer"))

	if product == "" || manufacturer == "" {
		db := vendorProductNames()
		if manufacturer == "" {
			manufacturer = db.LookupVendor(vendorID)
		}
		if product == "" {
			product = db.LookupProduct(vendorID, productID)
		}
	}

	entries, err := os.ReadDir(devPath)
	if err != nil {
		return nil
	}

	var out []platform.RawDevice
	base := filepath.Base(devPath)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, base+":") {
			continue
		}
		ifacePath := filepath.Join(devPath, name)

		common := platform.RawDevice{
			Location:     location,
			VendorID:     vendorID,
			ProductID:    productID,
			BCDDevice:    bcdDevice,
			SerialNumber: serial,
			Product:      product,
			Manufacturer: manufacturer,
		}

		if node, ok := findChildNode(ifacePath, "hidraw"); ok {
			dev := common
			dev.Type = platform.TypeHID
			dev.Node = filepath.Join("/dev", node)
			if page, usage, ok := readHIDUsage(dev.Node); ok {
				dev.UsagePage = page
				dev.Usage = usage
			}
			out = append(out, dev)
			continue
		}
		if node, ok := findChildNode(ifacePath, "tty"); ok {
			dev := common
			dev.Type = platform.TypeSerial
			dev.Node = filepath.Join("/dev", node)
			out = append(out, dev)
		}
	}
	return out
}

// findChildNode looks for subsystem/<name>/<devnode> under an interface's
// sysfs directory, e.g. ".../1-1:1.0/hidraw/hidraw3" or
// ".../1-1:1.0/tty/ttyACM0".
func findChildNode(ifacePath, subsystem string) (string, bool) {
	dir := filepath.Join(ifacePath, subsystem)
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return "", false
	}
	return entries[0].Name(), true
}

func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readSysfsHex16(path string) (uint16, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	return uint16(v), err
}
