//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Koromix/tytools-sub001/board"
	"github.com/Koromix/tytools-sub001/device"
)

// runList implements `tyctl list`, matching tyc/list.c's list().
func runList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	commonFlags(fs)
	verbose := fs.Bool("v", false, "print detailed information about devices")
	watch := fs.Bool("w", false, "watch devices dynamically")
	output := fs.String("O", "plain", "output format: plain or json")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if output == nil || (*output != "plain" && *output != "json") {
		fmt.Fprintln(os.Stderr, "--output must be one of plain or json")
		return 1
	}
	applyQuiet()

	mon, err := openMonitor(ctx)
	if err != nil {
		return fail(err)
	}
	defer mon.Stop()

	for _, b := range mon.List() {
		printBoard(b, board.EventAdded, *verbose, *output == "json")
	}

	if *watch {
		done := make(chan struct{})
		id := mon.RegisterCallback(func(b *board.Board, event board.Event) (bool, error) {
			printBoard(b, event, *verbose, *output == "json")
			return false, nil
		})
		defer mon.DeregisterCallback(id)
		<-ctx.Done()
		close(done)
	}

	return 0
}

// capabilityCount mirrors device.CapSerial+1, the number of Capability
// values device defines; kept local since capCount itself is unexported.
const capabilityCount = 6

func printBoard(b *board.Board, event board.Event, verbose bool, asJSON bool) {
	modelName := b.Model().Info().Name

	if asJSON {
		fmt.Printf("{\"action\": %q, \"tag\": %q, \"serial\": %q, \"location\": %q, \"model\": %q",
			event.String(), b.Tag(), b.SerialNumber(), b.Location(), modelName)
		if verbose {
			fmt.Printf(", %s", capabilitiesJSON(b))
		}
		fmt.Println("}")
		return
	}

	fmt.Printf("%s %s %s\n", event.String(), b.Tag(), modelName)
	if verbose && event != board.EventDropped && event != board.EventDisappeared {
		for cap := device.Capability(0); cap < capabilityCount; cap++ {
			if b.HasCapability(cap) {
				fmt.Printf("  - %s\n", cap.String())
			}
		}
		for _, iface := range b.Interfaces() {
			fmt.Printf("  + %s: %s\n", iface.Name, iface.Device.Raw.Node)
		}
	}
}

func capabilitiesJSON(b *board.Board) string {
	caps := "["
	first := true
	for cap := device.Capability(0); cap < capabilityCount; cap++ {
		if b.HasCapability(cap) {
			if !first {
				caps += ", "
			}
			caps += fmt.Sprintf("%q", cap.String())
			first = false
		}
	}
	return "\"capabilities\": " + caps + "]"
}
