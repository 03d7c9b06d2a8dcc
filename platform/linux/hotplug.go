//go:build linux

package linux

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/Koromix/tytools-sub001/platform"
)

// ueventAction is a parsed udev action, matching host/hal/linux/hotplug.go.
type ueventAction uint8

const (
	ueventUnknown ueventAction = iota
	ueventAdd
	ueventRemove
)

type uevent struct {
	action    ueventAction
	devpath   string
	subsystem string
}

// hotplugMonitor watches udev's netlink broadcast for "add"/"remove" on
// the hidraw and tty subsystems and resolves each into a platform.RawDevice
// (or, for remove, at least the Node path needed to identify it), reusing
// host/hal/linux/hotplug.go's netlink socket setup but filtering on the
// subsystems this module actually opens instead of "usb_device".
type hotplugMonitor struct {
	fd int
}

func newHotplugMonitor() (*hotplugMonitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, netlinkKObjectUEvent)
	if err != nil {
		return nil, err
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: ueventBroadcastGroup}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &hotplugMonitor{fd: fd}, nil
}

func (h *hotplugMonitor) close() error {
	return unix.Close(h.fd)
}

func (h *hotplugMonitor) pollable() platform.Pollable {
	return platform.Pollable{FD: uintptr(h.fd)}
}

// readEvent reads and parses one pending uevent, resolving hidraw/tty
// subsystem add/remove events into a platform.HotplugEvent. Returns
// ok=false if no relevant event was produced (wrong subsystem, or the
// sysfs node disappeared before it could be parsed).
func (h *hotplugMonitor) readEvent() (platform.HotplugEvent, bool, error) {
	buf := make([]byte, ueventBufferSize)
	n, err := unix.Read(h.fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return platform.HotplugEvent{}, false, nil
		}
		return platform.HotplugEvent{}, false, err
	}
	if n <= 0 {
		return platform.HotplugEvent{}, false, nil
	}

	evt := parseUEvent(buf[:n])
	if evt.subsystem != "hidraw" && evt.subsystem != "tty" {
		return platform.HotplugEvent{}, false, nil
	}

	node := filepath.Join("/dev", filepath.Base(evt.devpath))
	switch evt.action {
	case ueventAdd:
		dev, ok := resolveDeviceByNode(evt.subsystem, node)
		if !ok {
			return platform.HotplugEvent{}, false, nil
		}
		return platform.HotplugEvent{Added: true, Device: dev}, true, nil
	case ueventRemove:
		return platform.HotplugEvent{Added: false, Device: platform.RawDevice{Node: node}}, true, nil
	default:
		return platform.HotplugEvent{}, false, nil
	}
}

func parseUEvent(data []byte) uevent {
	var evt uevent
	for _, line := range bytes.Split(data, []byte{0}) {
		if len(line) == 0 {
			continue
		}
		s := string(line)
		idx := strings.IndexByte(s, '=')
		if idx < 0 {
			switch {
			case strings.HasPrefix(s, "add@"):
				evt.action, evt.devpath = ueventAdd, s[4:]
			case strings.HasPrefix(s, "remove@"):
				evt.action, evt.devpath = ueventRemove, s[7:]
			}
			continue
		}
		key, value := s[:idx], s[idx+1:]
		switch key {
		case "ACTION":
			switch value {
			case "add":
				evt.action = ueventAdd
			case "remove":
				evt.action = ueventRemove
			}
		case "DEVPATH":
			evt.devpath = value
		case "SUBSYSTEM":
			evt.subsystem = value
		}
	}
	return evt
}

// resolveDeviceByNode walks back from a newly-appeared /dev/hidrawN or
// /dev/ttyACMN node to the owning USB device's sysfs directory, rebuilding
// the same RawDevice scanUSBDevices would have produced for it.
func resolveDeviceByNode(subsystem, node string) (platform.RawDevice, bool) {
	devs, err := scanUSBDevices()
	if err != nil {
		return platform.RawDevice{}, false
	}
	for _, d := range devs {
		if d.Node == node {
			return d, true
		}
	}
	return platform.RawDevice{}, false
}

// watch runs until ctx is cancelled, delivering events on out. It waits on
// its netlink socket with the same "wait for any of N pollables, or
// timeout" primitive the rest of the HAL uses, via pollFDs.
func (h *hotplugMonitor) watch(ctx context.Context, out chan<- platform.HotplugEvent) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ready, err := pollFDs([]int{h.fd}, 250)
		if err != nil || !ready[0] {
			continue
		}
		for {
			evt, ok, err := h.readEvent()
			if err != nil || !ok {
				break
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}
}
