//go:build linux

package linux

// Sysfs and devfs locations, matching host/hal/linux/constants.go's
// layout. Same filesystem, different subsystem: we walk the usb
// device tree for hidraw/tty children instead of claiming
// interfaces for bulk/control transfers.
const (
	sysfsUSBPath = "/sys/bus/usb/devices"
	devBusUSB    = "/dev/bus/usb"
)

// Netlink uevent constants, matching hotplug.go's socket setup.
const (
	netlinkKObjectUEvent = 15 // NETLINK_KOBJECT_UEVENT
	ueventBufferSize     = 4096
	ueventBroadcastGroup = 1 // UDEV_MONITOR_KERNEL
)

// usbClassHID is the USB interface class code for HID.
const usbClassHID = 0x03

// maxEpollEvents is not referenced by the poller: pollFDs sizes its
// epoll event buffer to the number of fds it waits on.
const maxEpollEvents = 32
