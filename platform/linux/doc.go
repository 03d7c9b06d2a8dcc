// Package linux implements platform.HAL for Linux: sysfs-based
// enumeration of USB hidraw/tty interfaces, udev netlink uevent hotplug,
// epoll-based polling and termios2 serial control.
//
// It is adapted from host/hal/linux, which speaks usbfs URBs and sysfs
// USB-device enumeration for a software USB host controller. This module
// operates one layer higher: it never issues a USB transfer itself, only
// opens the character devices the kernel's own hid/usb-serial drivers
// already expose, so usbfs.go's URB submission code and the
// MaxDevices/address-assignment bookkeeping in linux.go have no
// equivalent here. What carries over is the sysfs directory walk, the
// netlink hotplug socket, and the epoll wait loop.
package linux
