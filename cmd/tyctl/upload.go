//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Koromix/tytools-sub001/board"
	"github.com/Koromix/tytools-sub001/firmware"
	"github.com/Koromix/tytools-sub001/task"
)

// runUpload implements `tyctl upload`, matching tyc/upload.c's upload().
func runUpload(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	commonFlags(fs)
	format := fs.String("f", "", "firmware file format (autodetected by default)")
	wait := fs.Bool("w", false, "wait for the bootloader instead of rebooting")
	noCheck := fs.Bool("nocheck", false, "force upload even if the board is not compatible")
	noReset := fs.Bool("noreset", false, "do not reset the device once the upload is finished")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "missing firmware filename")
		return 1
	}
	applyQuiet()

	fws := make([]*firmware.Firmware, 0, len(files))
	for _, filename := range files {
		fw, err := firmware.LoadFile(filename, *format)
		if err != nil {
			return fail(err)
		}
		fws = append(fws, fw)
	}

	mon, err := openMonitor(ctx)
	if err != nil {
		return fail(err)
	}
	defer mon.Stop()

	b, err := findBoard(mon)
	if err != nil {
		return fail(err)
	}

	var flags board.UploadFlags
	if *wait {
		flags |= board.UploadWait
	}
	if *noCheck {
		flags |= board.UploadNoCheck
	}
	if *noReset {
		flags |= board.UploadNoReset
	}

	t, err := board.Upload(ctx, task.Default(), mon, b, fws, flags)
	if err != nil {
		return fail(err)
	}
	if _, err := t.Join(ctx); err != nil {
		return fail(err)
	}
	return 0
}
