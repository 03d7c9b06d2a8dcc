// Package platform and its linux subpackage implement the HAL contract
// documented in platform.go.
//
// Only a Linux backend ships in this tree (platform/linux), built against
// sysfs, netlink uevents, hidraw and termios, no cgo. The darwin/windows
// equivalents libhs implements via IOKit/hidapi and SetupAPI/hid.dll are
// out of scope here, but two cgo-based third-party libraries would be the
// natural bridge if this module grew those backends:
//
//   - github.com/google/gousb wraps libusb and could drive a libusb-based
//     HAL on any OS libusb supports, trading the no-cgo property for
//     portability.
//   - github.com/karalabe/hid wraps hidapi specifically for the HID half
//     of the contract.
//
// Both stayed out of the dependency graph for the same reason softusb's
// own host HAL hand-rolls its Linux backend instead of reaching for
// gousb: the primary target here is Linux, where syscalls are cheaper and
// more debuggable than a cgo boundary, and the HalfKay reboot trick needs
// raw termios2/BOTHER control that generic USB libraries don't expose.
package platform
