//go:build linux

package linux

import (
	"context"
	"os"
	"time"

	"github.com/Koromix/tytools-sub001/platform"
)

// port implements platform.Port over a plain character-device file
// (hidraw or tty), one OS handle per Port with no internal open-count.
// Sharing a single OS handle across concurrent readers/writers is the
// device.Interface layer's job, not this package's.
type port struct {
	f      *os.File
	typ    platform.DeviceType
	hidLen int // negotiated HID report length, 0 until known
}

func openPort(dev platform.RawDevice) (*port, error) {
	flags := os.O_RDWR
	f, err := os.OpenFile(dev.Node, flags, 0)
	if err != nil {
		return nil, err
	}
	if dev.Type == platform.TypeSerial {
		// Put the line in raw mode so control bytes pass through
		// untouched; callers drive baud rate via SetSerialConfig.
		_ = makeRaw(f.Fd())
	}
	return &port{f: f, typ: dev.Type}, nil
}

func (p *port) Pollable() platform.Pollable {
	return platform.Pollable{FD: p.f.Fd()}
}

func (p *port) Close() error {
	return p.f.Close()
}

func (p *port) ReadSerial(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	return p.readWithTimeout(ctx, buf, timeout)
}

func (p *port) WriteSerial(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	return p.writeWithTimeout(ctx, buf, timeout)
}

func (p *port) ReadHID(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	return p.readWithTimeout(ctx, buf, timeout)
}

func (p *port) WriteHID(buf []byte) (int, error) {
	return p.f.Write(buf)
}

func (p *port) SendFeatureReport(buf []byte) (int, error) {
	req := iocSize(3 /* _IOC_WRITE|_IOC_READ */, 'H', 0x06, len(buf))
	if err := ioctlBytes(p.f.Fd(), req, buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (p *port) SetSerialConfig(baud int) error {
	return setCustomBaud(p.f.Fd(), baud)
}

// readWithTimeout polls the fd for readability before issuing a
// non-blocking-equivalent Read, returning (0, nil) on timeout per spec
// §6.5 ("0 return on timeout").
func (p *port) readWithTimeout(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	ready, err := pollFDs([]int{int(p.f.Fd())}, clampMillis(timeout))
	if err != nil {
		return 0, err
	}
	if !ready[0] {
		return 0, nil
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	n, err := p.f.Read(buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// writeWithTimeout performs a write; partial writes are permitted, so we
// don't loop to completion here. Callers (HalfKay's frame writer in
// particular) check the returned count themselves.
func (p *port) writeWithTimeout(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	deadline := time.Now().Add(timeout)
	if err := p.f.SetWriteDeadline(deadline); err != nil {
		// Not all character devices support deadlines (hidraw does
		// not); fall back to an unbounded write, matching libhs's
		// behavior of only enforcing deadlines on reads for such nodes.
		return p.f.Write(buf)
	}
	return p.f.Write(buf)
}

func clampMillis(d time.Duration) int {
	ms := int(d / time.Millisecond)
	if ms < 0 {
		ms = -1
	}
	return ms
}

func makeRaw(fd uintptr) error {
	t, err := getTermios2(fd)
	if err != nil {
		return err
	}
	const (
		ignbrk = 0o000001
		brkint = 0o000002
		parmrk = 0o000010
		istrip = 0o000040
		inlcr  = 0o000100
		igncr  = 0o000200
		icrnl  = 0o000400
		ixon   = 0o002000
		opost  = 0o000001
		echo   = 0o000010
		echonl = 0o000100
		icanon = 0o000002
		isig   = 0o000001
		iexten = 0o100000
		csize  = 0o000060
		parenb = 0o000400
		cs8    = 0o000060
	)
	t.Iflag &^= ignbrk | brkint | parmrk | istrip | inlcr | igncr | icrnl | ixon
	t.Oflag &^= opost
	t.Lflag &^= echo | echonl | icanon | isig | iexten
	t.Cflag &^= csize | parenb
	t.Cflag |= cs8
	return setTermios2(fd, t)
}
