//go:build linux

package linux

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollFDs waits up to timeoutMs for any of fds to become readable,
// returning a parallel boolean slice: "wait for any of N pollables, or
// timeout", built on epoll the same way host/hal/linux/poller.go is, but
// as a one-shot helper rather than a long-lived registered-callback
// poller, since nothing here needs edge-triggered persistent
// registration.
func pollFDs(fds []int, timeoutMs int) ([]bool, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	defer unix.Close(epfd)

	for _, fd := range fds {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return nil, err
		}
	}

	events := make([]unix.EpollEvent, len(fds))
	n, err := unix.EpollWait(epfd, events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			n = 0
		} else {
			return nil, err
		}
	}

	ready := make([]bool, len(fds))
	readyFDs := make(map[int32]bool, n)
	for i := 0; i < n; i++ {
		readyFDs[events[i].Fd] = true
	}
	for i, fd := range fds {
		ready[i] = readyFDs[int32(fd)]
	}
	return ready, nil
}

// poll implements platform.HAL's Poll method: "wait for any of N
// pollables, or timeout, return index of first ready member".
func poll(pollables []poolFD, timeout time.Duration) (int, error) {
	fds := make([]int, len(pollables))
	for i, p := range pollables {
		fds[i] = p.fd
	}
	ready, err := pollFDs(fds, int(timeout/time.Millisecond))
	if err != nil {
		return -1, err
	}
	for i, r := range ready {
		if r {
			return i, nil
		}
	}
	return -1, nil
}

// poolFD adapts platform.Pollable to an int fd for this package's use.
type poolFD struct{ fd int }
