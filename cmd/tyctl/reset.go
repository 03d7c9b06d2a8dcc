//go:build linux

package main

import (
	"context"
	"flag"

	"github.com/Koromix/tytools-sub001/board"
	"github.com/Koromix/tytools-sub001/task"
)

// runReset implements `tyctl reset`, matching tyc/reset.c's reset().
func runReset(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	commonFlags(fs)
	bootloader := fs.Bool("b", false, "switch board to bootloader")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fail(errTooManyArgs("reset"))
		return 1
	}
	applyQuiet()

	mon, err := openMonitor(ctx)
	if err != nil {
		return fail(err)
	}
	defer mon.Stop()

	b, err := findBoard(mon)
	if err != nil {
		return fail(err)
	}

	pool := task.Default()
	var t *task.Task
	if *bootloader {
		t, err = board.Reboot(ctx, pool, mon, b)
	} else {
		t, err = board.Reset(ctx, pool, mon, b)
	}
	if err != nil {
		return fail(err)
	}

	if _, err := t.Join(ctx); err != nil {
		return fail(err)
	}
	return 0
}
