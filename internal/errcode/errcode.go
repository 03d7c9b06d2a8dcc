// Package errcode defines the stable, sign-valued error taxonomy shared
// across the board-lifecycle engine's public API.
package errcode

import (
	"errors"
	"fmt"
)

// Code is one of the negative error kinds from the public API. Code
// implements error directly so call sites can do errors.Is(err, errcode.NotFound),
// mirroring how softusb's TransferStatus doubles as both a result code and
// an error.
type Code int

// Error kinds. Values are not part of the wire format; only the symbol and
// its String() text are stable.
const (
	Memory Code = -(iota + 1)
	Param
	Unsupported
	NotFound
	Exists
	Access
	Busy
	IO
	Mode // capability unavailable on this board/interface
	Timeout
	Range
	System
	Parse
	Other
)

// String returns the taxonomy name.
func (c Code) String() string {
	switch c {
	case Memory:
		return "memory"
	case Param:
		return "param"
	case Unsupported:
		return "unsupported"
	case NotFound:
		return "not found"
	case Exists:
		return "exists"
	case Access:
		return "access denied"
	case Busy:
		return "busy"
	case IO:
		return "i/o error"
	case Mode:
		return "capability unavailable"
	case Timeout:
		return "timed out"
	case Range:
		return "out of range"
	case System:
		return "system error"
	case Parse:
		return "parse error"
	case Other:
		return "error"
	default:
		return "unknown error"
	}
}

// Error implements the error interface so a bare Code can be returned and
// tested with errors.Is.
func (c Code) Error() string {
	return c.String()
}

// wrapped pairs a Code with a human-readable message and an optional
// wrapped cause, so that errors.Is(err, SomeCode) keeps working after
// fmt.Errorf-style context is added.
type wrapped struct {
	code Code
	msg  string
	err  error
}

// New builds an error of the given code with a formatted message.
func New(code Code, format string, args ...any) error {
	return &wrapped{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an existing error, preserving it as the cause.
func Wrap(code Code, err error, format string, args ...any) error {
	if err == nil {
		return New(code, format, args...)
	}
	msg := fmt.Sprintf(format, args...)
	return &wrapped{code: code, msg: msg, err: err}
}

func (w *wrapped) Error() string {
	if w.err != nil {
		return fmt.Sprintf("%s: %s", w.msg, w.err)
	}
	return w.msg
}

func (w *wrapped) Unwrap() error {
	return w.err
}

// Is reports whether target is the Code this error carries, so
// errors.Is(err, errcode.Busy) works regardless of added context.
func (w *wrapped) Is(target error) bool {
	code, ok := target.(Code)
	return ok && code == w.code
}

// Of extracts the Code carried by err, if any, defaulting to Other.
func Of(err error) Code {
	if err == nil {
		return 0
	}
	if code, ok := err.(Code); ok {
		return code
	}
	var w *wrapped
	if errors.As(err, &w) {
		return w.code
	}
	return Other
}
