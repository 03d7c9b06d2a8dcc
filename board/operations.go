package board

import (
	"context"
	"runtime"
	"time"

	"github.com/Koromix/tytools-sub001/device"
	"github.com/Koromix/tytools-sub001/firmware"
	"github.com/Koromix/tytools-sub001/halfkay"
	"github.com/Koromix/tytools-sub001/internal/errcode"
	"github.com/Koromix/tytools-sub001/internal/msgsink"
	"github.com/Koromix/tytools-sub001/model"
	"github.com/Koromix/tytools-sub001/task"
)

// manualRebootDelay is how long Upload and Reset wait for
// TY_BOARD_CAPABILITY_UPLOAD/RESET to reappear after triggering a reboot
// and expecting the user to press the board's button, matching board.c's
// MANUAL_REBOOT_DELAY (longer on Windows, where device re-enumeration
// after a reset is slower).
var manualRebootDelay = func() time.Duration {
	if runtime.GOOS == "windows" {
		return 15 * time.Second
	}
	return 8 * time.Second
}()

// finalTaskTimeout bounds how long run_upload/run_reset/run_reboot wait
// for a capability to come back once a reset/reboot has actually fired
// (as opposed to manualRebootDelay, which waits for a human to act),
// matching board.c's FINAL_TASK_TIMEOUT.
const finalTaskTimeout = 8 * time.Second

// maxUploadFirmwares mirrors board.h's TY_UPLOAD_MAX_FIRMWARES: the
// largest number of candidate firmwares ty_upload will consider before
// picking the one compatible with the board's identified model.
const maxUploadFirmwares = 256

// UploadFlags modifies Upload's behavior, matching board.h's
// TY_UPLOAD_* bitmask.
type UploadFlags int

const (
	// UploadWait makes Upload wait indefinitely for the board to enter
	// bootloader mode instead of triggering a reboot itself.
	UploadWait UploadFlags = 1 << iota
	// UploadNoReset skips the post-upload reset, leaving new firmware
	// unstarted until the board is reset some other way.
	UploadNoReset
	// UploadNoCheck disables model-compatibility checking and always
	// uploads the first firmware given.
	UploadNoCheck
)

// newBoardTask claims b for a new task named "<action>@<tag>", refusing
// if b already has one running, matching new_board_task's BUSY check.
// The returned task's run function releases the claim when it finishes,
// matching finalize_upload/finalize_reset/finalize_reboot/finalize_send's
// shared cleanup_task_board call.
func newBoardTask(b *Board, action string, run task.RunFunc) (*task.Task, error) {
	b.mu.Lock()
	if b.currentTask != nil {
		busyName := b.currentTask.Name()
		b.mu.Unlock()
		return nil, errcode.New(errcode.Busy, "board '%s' is busy on task '%s'", b.tag, busyName)
	}
	t := task.New(action+"@"+b.tag, func(ctx context.Context, t *task.Task) (any, error) {
		defer cleanupTaskBoard(b)
		return run(ctx, t)
	})
	b.currentTask = t
	b.mu.Unlock()
	return t, nil
}

// cleanupTaskBoard releases b's claim once its task has finished,
// matching cleanup_task_board.
func cleanupTaskBoard(b *Board) {
	b.mu.Lock()
	b.currentTask = nil
	b.mu.Unlock()
}

// openInterface opens the interface currently serving cap and returns it
// with its driver, matching ty_board_open_interface. ok is false (with a
// nil error) when the board has no interface for cap at all.
func (b *Board) openInterface(cap device.Capability) (iface *device.Interface, driver ClassDriver, ok bool, err error) {
	iface, driver, ok = b.driverForCapability(cap)
	if !ok {
		return nil, nil, false, nil
	}
	if err := driver.OpenInterface(iface); err != nil {
		return nil, nil, false, err
	}
	return iface, driver, true, nil
}

func closeInterfaceLogged(iface *device.Interface, driver ClassDriver) {
	if err := driver.CloseInterface(iface); err != nil {
		msgsink.Log(msgsink.LevelWarning, msgsink.ComponentBoard, err, "closing interface '%s'", iface.Device.Raw.Node)
	}
}

// SerialRead reads from b's serial-capable interface, matching
// ty_board_serial_read.
func (b *Board) SerialRead(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	iface, driver, ok, err := b.openInterface(device.CapSerial)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errcode.New(errcode.Mode, "board '%s' is not available for serial I/O", b.Tag())
	}
	defer closeInterfaceLogged(iface, driver)
	return driver.SerialRead(ctx, iface, buf, timeout)
}

// SerialWrite writes to b's serial-capable interface, matching
// ty_board_serial_write.
func (b *Board) SerialWrite(ctx context.Context, buf []byte) (int, error) {
	iface, driver, ok, err := b.openInterface(device.CapSerial)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errcode.New(errcode.Mode, "board '%s' is not available for serial I/O", b.Tag())
	}
	defer closeInterfaceLogged(iface, driver)
	return driver.SerialWrite(ctx, iface, buf)
}

// UploadFirmware flashes fw to b's upload-capable interface, matching
// ty_board_upload.
func (b *Board) UploadFirmware(ctx context.Context, fw *firmware.Firmware, progress halfkay.ProgressFunc) error {
	iface, driver, ok, err := b.openInterface(device.CapUpload)
	if err != nil {
		return err
	}
	if !ok {
		return errcode.New(errcode.Mode, "cannot upload to board '%s'", b.Tag())
	}
	defer closeInterfaceLogged(iface, driver)
	return driver.Upload(ctx, iface, fw, progress)
}

// ResetBoard sends the reset command to b's reset-capable interface,
// matching ty_board_reset.
func (b *Board) ResetBoard() error {
	iface, driver, ok, err := b.openInterface(device.CapReset)
	if err != nil {
		return err
	}
	if !ok {
		return errcode.New(errcode.Mode, "cannot reset board '%s'", b.Tag())
	}
	defer closeInterfaceLogged(iface, driver)
	return driver.Reset(iface)
}

// RebootBoard triggers b's reboot-capable interface, matching
// ty_board_reboot.
func (b *Board) RebootBoard() error {
	iface, driver, ok, err := b.openInterface(device.CapReboot)
	if err != nil {
		return err
	}
	if !ok {
		return errcode.New(errcode.Mode, "cannot reboot board '%s'", b.Tag())
	}
	defer closeInterfaceLogged(iface, driver)
	return driver.Reboot(iface)
}

// selectCompatibleFirmware picks the first firmware in fws that
// ClassDriver.IdentifyModels reports as compatible with b's identified
// model, matching select_compatible_firmware.
func selectCompatibleFirmware(b *Board, fws []*firmware.Firmware) (*firmware.Firmware, error) {
	_, driver, ok := b.driverForCapability(device.CapUpload)
	if !ok {
		driver, _, ok = matchDriverForBoard(b)
		if !ok {
			return fws[0], nil
		}
	}

	var lastModels []model.Model
	for _, fw := range fws {
		models := driver.IdentifyModels(fw)
		lastModels = models
		for _, m := range models {
			if m == b.Model() {
				return fw, nil
			}
		}
	}

	switch {
	case len(fws) > 1:
		return nil, errcode.New(errcode.Unsupported, "No firmware is compatible with '%s' (%s)",
			b.Tag(), b.Model().Info().Name)
	case len(lastModels) > 0:
		names := make([]string, len(lastModels))
		for i, m := range lastModels {
			names[i] = m.Info().Name
		}
		return nil, errcode.New(errcode.Unsupported, "Firmware '%s' is only compatible with %s",
			fws[0].Name, joinModelNames(names))
	default:
		return nil, errcode.New(errcode.Unsupported, "Firmware '%s' is not compatible with '%s'",
			fws[0].Name, b.Tag())
	}
}

func joinModelNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		out := names[0]
		for i := 1; i < len(names); i++ {
			if i+1 < len(names) {
				out += ", " + names[i]
			} else {
				out += " and " + names[i]
			}
		}
		return out
	}
}

// matchDriverForBoard finds the driver already attached to any of b's
// interfaces, used when selecting firmware before upload capability is
// confirmed (the board may currently be in run mode, not bootloader).
func matchDriverForBoard(b *Board) (ClassDriver, *device.Interface, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for iface, driver := range b.drivers {
		return driver, iface, true
	}
	return nil, nil, false
}

// Upload submits a task.Task that flashes the first fws entry compatible
// with b (or fws[0] if flags has UploadNoCheck) onto the board, waking
// it into bootloader mode first if needed and resetting it afterward
// unless flags has UploadNoReset, matching run_upload/ty_upload.
func Upload(ctx context.Context, pool *task.Pool, mon *Monitor, b *Board, fws []*firmware.Firmware, flags UploadFlags) (*task.Task, error) {
	if len(fws) == 0 {
		return nil, errcode.New(errcode.Param, "no firmware given")
	}
	if len(fws) > maxUploadFirmwares {
		msgsink.Log(msgsink.LevelWarning, msgsink.ComponentBoard, nil,
			"cannot select more than %d firmwares per upload", maxUploadFirmwares)
		fws = fws[:maxUploadFirmwares]
	}
	if flags&UploadNoCheck != 0 {
		fws = fws[:1]
	}

	t, err := newBoardTask(b, "upload", func(ctx context.Context, t *task.Task) (any, error) {
		var fw *firmware.Firmware
		if flags&UploadNoCheck != 0 {
			fw = fws[0]
		} else if b.Model().Info().MCU != "" {
			var err error
			fw, err = selectCompatibleFirmware(b, fws)
			if err != nil {
				return nil, err
			}
		}

		msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil,
			"uploading to board '%s' (%s)", b.Tag(), b.Model().Info().Name)

		if !b.HasCapability(device.CapUpload) {
			if flags&UploadWait != 0 {
				msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil,
					"waiting for device (press button to reboot)...")
			} else {
				msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil, "triggering board reboot")
				if err := b.RebootBoard(); err != nil {
					return nil, err
				}
			}
		}

		wait := flags&UploadWait != 0
		for {
			timeout := manualRebootDelay
			if wait {
				timeout = 0
			}
			ok, err := mon.WaitFor(ctx, b, device.CapUpload, timeout)
			if err != nil {
				return nil, err
			}
			if ok {
				break
			}
			msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil, "reboot didn't work, press button manually")
			wait = true
		}

		if fw == nil {
			var err error
			fw, err = selectCompatibleFirmware(b, fws)
			if err != nil {
				return nil, err
			}
		}

		if err := b.UploadFirmware(ctx, fw, func(uploaded, total int) {
			t.Progress("Uploading", uploaded, total)
		}); err != nil {
			return nil, err
		}

		if flags&UploadNoReset == 0 {
			msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil, "sending reset command")
			if err := b.ResetBoard(); err != nil {
				return nil, err
			}
			ok, err := mon.WaitFor(ctx, b, device.CapRun, finalTaskTimeout)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errcode.New(errcode.Timeout, "failed to reset board '%s'", b.Tag())
			}
		} else {
			msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil, "firmware uploaded, reset the board to use it")
		}

		return fw, nil
	})
	if err != nil {
		return nil, err
	}

	pool.Submit(ctx, t)
	return t, nil
}

// Reset submits a task.Task that resets b, triggering a reboot first if
// the board only has REBOOT (not RESET) capability right now, matching
// run_reset/ty_reset.
func Reset(ctx context.Context, pool *task.Pool, mon *Monitor, b *Board) (*task.Task, error) {
	t, err := newBoardTask(b, "reset", func(ctx context.Context, _ *task.Task) (any, error) {
		msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil,
			"resetting board '%s' (%s)", b.Tag(), b.Model().Info().Name)

		if !b.HasCapability(device.CapReset) && b.HasCapability(device.CapReboot) {
			msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil, "triggering board reboot")
			if err := b.RebootBoard(); err != nil {
				return nil, err
			}
			ok, err := mon.WaitFor(ctx, b, device.CapReset, manualRebootDelay)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errcode.New(errcode.Timeout, "failed to reboot board '%s'", b.Tag())
			}
		}

		msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil, "sending reset command")
		if err := b.ResetBoard(); err != nil {
			return nil, err
		}

		ok, err := mon.WaitFor(ctx, b, device.CapRun, finalTaskTimeout)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errcode.New(errcode.Timeout, "failed to reset board '%s'", b.Tag())
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	pool.Submit(ctx, t)
	return t, nil
}

// Reboot submits a task.Task that triggers b's reboot, unless b is
// already in bootloader mode, matching run_reboot/ty_reboot.
func Reboot(ctx context.Context, pool *task.Pool, mon *Monitor, b *Board) (*task.Task, error) {
	t, err := newBoardTask(b, "reboot", func(ctx context.Context, _ *task.Task) (any, error) {
		msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil,
			"rebooting board '%s' (%s)", b.Tag(), b.Model().Info().Name)

		if b.HasCapability(device.CapUpload) {
			msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil, "board is already in bootloader mode")
			return nil, nil
		}

		msgsink.Log(msgsink.LevelInfo, msgsink.ComponentBoard, nil, "triggering board reboot")
		if err := b.RebootBoard(); err != nil {
			return nil, err
		}

		ok, err := mon.WaitFor(ctx, b, device.CapUpload, finalTaskTimeout)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errcode.New(errcode.Timeout, "failed to reboot board '%s'", b.Tag())
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	pool.Submit(ctx, t)
	return t, nil
}

// sendBlockSize is the chunk size run_send/run_send_file write in,
// matching their hardcoded 1024-byte blocks.
const sendBlockSize = 1024

// Send submits a task.Task that writes buf to b's serial interface in
// sendBlockSize chunks, reporting progress as it goes, matching
// run_send/ty_send.
func Send(ctx context.Context, pool *task.Pool, b *Board, buf []byte) (*task.Task, error) {
	data := make([]byte, len(buf))
	copy(data, buf)

	t, err := newBoardTask(b, "send", func(ctx context.Context, t *task.Task) (any, error) {
		written := 0
		for written < len(data) {
			t.Progress("Sending", written, len(data))
			blockSize := sendBlockSize
			if remaining := len(data) - written; remaining < blockSize {
				blockSize = remaining
			}
			n, err := b.SerialWrite(ctx, data[written:written+blockSize])
			if err != nil {
				return nil, err
			}
			written += n
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	pool.Submit(ctx, t)
	return t, nil
}

// SendFile submits a task.Task that sends data, the contents of the file
// named filename as already read by the caller, to b's serial interface,
// matching run_send_file/ty_send_file. An I/O error reading the file thus
// surfaces before any task exists rather than from inside the running
// task.
func SendFile(ctx context.Context, pool *task.Pool, b *Board, filename string, data []byte) (*task.Task, error) {
	if len(data) == 0 {
		return nil, errcode.New(errcode.Unsupported, "failed to read size of '%s', is it a regular file?", filename)
	}

	t, err := newBoardTask(b, "send", func(ctx context.Context, t *task.Task) (any, error) {
		written := 0
		for written < len(data) {
			t.Progress("Sending", written, len(data))
			blockSize := sendBlockSize
			if remaining := len(data) - written; remaining < blockSize {
				blockSize = remaining
			}
			blockEnd := written + blockSize
			for written < blockEnd {
				n, err := b.SerialWrite(ctx, data[written:blockEnd])
				if err != nil {
					return nil, err
				}
				written += n
			}
		}
		t.Progress("Sending", len(data), len(data))
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	pool.Submit(ctx, t)
	return t, nil
}
