//go:build linux

package linux

import (
	"context"
	"time"

	"github.com/Koromix/tytools-sub001/platform"
)

// HAL is the Linux implementation of platform.HAL: sysfs enumeration,
// netlink-uevent hotplug, hidraw/tty I/O and termios2 baud control. It
// holds no long-lived kernel resources of its own beyond whatever the
// active Hotplug watch opened, so Close is a no-op placeholder kept for
// symmetry with the interface (and with host/hal/linux's HAL.Close,
// which likewise tears down controller state this layer simply doesn't
// have).
type HAL struct{}

// New returns a Linux platform.HAL.
func New() *HAL {
	return &HAL{}
}

func (h *HAL) Enumerate(match func(platform.RawDevice) bool) ([]platform.RawDevice, error) {
	devs, err := scanUSBDevices()
	if err != nil {
		return nil, err
	}
	if match == nil {
		return devs, nil
	}
	out := devs[:0]
	for _, d := range devs {
		if match(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (h *HAL) Hotplug(ctx context.Context) (<-chan platform.HotplugEvent, error) {
	mon, err := newHotplugMonitor()
	if err != nil {
		return nil, err
	}
	out := make(chan platform.HotplugEvent, 16)
	go func() {
		<-ctx.Done()
		mon.close()
	}()
	go mon.watch(ctx, out)
	return out, nil
}

func (h *HAL) Open(dev platform.RawDevice) (platform.Port, error) {
	return openPort(dev)
}

func (h *HAL) Poll(pollables []platform.Pollable, timeout time.Duration) (int, error) {
	fds := make([]poolFD, len(pollables))
	for i, p := range pollables {
		fds[i] = poolFD{fd: int(p.FD)}
	}
	return poll(fds, timeout)
}

func (h *HAL) Millis() int64 {
	return time.Now().UnixMilli()
}

func (h *HAL) Close() error {
	return nil
}
