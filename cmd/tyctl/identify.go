//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Koromix/tytools-sub001/firmware"
	"github.com/Koromix/tytools-sub001/model"
)

// runIdentify reports which models a firmware file could run on, using
// the same heuristics class/teensy.go's IdentifyModels delegates to.
// Not part of tyc's original command set; added per SPEC_FULL's CLI
// surface so the identification heuristics have a script-reachable
// entry point outside of tests.
func runIdentify(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("identify", flag.ContinueOnError)
	commonFlags(fs)
	format := fs.String("f", "", "firmware file format (autodetected by default)")
	asJSON := fs.Bool("j", false, "output as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	applyQuiet()

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "missing firmware filename")
		return 1
	}

	status := 0
	for _, filename := range files {
		fw, err := firmware.LoadFile(filename, *format)
		if err != nil {
			fail(err)
			status = 1
			continue
		}
		models := model.IdentifyFirmware(fw, 64)
		printModels(filename, models, *asJSON)
	}
	return status
}

func printModels(filename string, models []model.Model, asJSON bool) {
	if asJSON {
		fmt.Printf("{\"file\": %q, \"models\": [", filename)
		for i, m := range models {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Printf("%q", m.Info().Name)
		}
		fmt.Println("]}")
		return
	}

	if len(models) == 0 {
		fmt.Printf("%s: no compatible models found\n", filename)
		return
	}
	fmt.Printf("%s:\n", filename)
	for _, m := range models {
		fmt.Printf("  - %s (%s)\n", m.Info().Name, m.Info().MCU)
	}
}
