//go:build linux

// Command tyctl is a thin reference CLI over the board/task/halfkay
// packages: list, identify, reset and upload. It exists to exercise the
// public API end to end and give the documented CLI surface a concrete
// home; it is not itself part of the tested contract. Grounded on
// tyc/main.c's command dispatch and common-option handling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Koromix/tytools-sub001/board"
	_ "github.com/Koromix/tytools-sub001/class"
	"github.com/Koromix/tytools-sub001/internal/errcode"
	"github.com/Koromix/tytools-sub001/internal/msgsink"
	"github.com/Koromix/tytools-sub001/pkg/prof"
	"github.com/Koromix/tytools-sub001/platform/linux"
)

const version = "0.1.0"

// command is one tyctl subcommand, matching tyc/main.c's struct command.
type command struct {
	name        string
	run         func(ctx context.Context, args []string) int
	description string
}

var commands = []command{
	{"list", runList, "List available boards"},
	{"identify", runIdentify, "Report which models a firmware file targets"},
	{"reset", runReset, "Reset board"},
	{"upload", runUpload, "Upload new firmware"},
}

// boardTag holds -B/--board, consulted by every subcommand that needs a
// single board, matching tyc/main.c's static board_tag.
var boardTag string

// quiet counts -q occurrences; one raises the log level past INFO, a
// third past ERROR, matching tyc/main.c's use of ty_config_quiet.
var quiet int

// profilePath holds --profile; empty by default, and a no-op unless the
// binary is built with -tags profile (see pkg/prof).
var profilePath string

func printMainUsage(w *os.File) {
	fmt.Fprintf(w, "usage: tyctl <command> [options]\n\n")
	printCommonOptions(w)
	fmt.Fprintf(w, "\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "   %-10s %s\n", c.name, c.description)
	}
}

func printCommonOptions(w *os.File) {
	fmt.Fprintf(w, "General options:\n"+
		"       --help           Show help message\n"+
		"       --version        Display version information\n"+
		"   -B, --board <tag>    Work with board <tag> instead of first detected\n"+
		"   -q, --quiet          Disable output, use -q -q -q to silence errors\n"+
		"       --profile <path> Write a CPU profile to <path> (requires -tags profile)\n")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) == 0 {
		printMainUsage(os.Stderr)
		return 0
	}

	switch argv[0] {
	case "--help", "help":
		printMainUsage(os.Stdout)
		return 0
	case "--version":
		fmt.Printf("tyctl %s\n", version)
		return 0
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == argv[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command '%s'\n", argv[0])
		printMainUsage(os.Stderr)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	rest := extractProfileFlag(argv[1:])
	if profilePath != "" {
		if err := prof.StartCPU(profilePath); err != nil {
			fmt.Fprintf(os.Stderr, "could not start profiling: %s\n", err)
			return 1
		}
		defer prof.StopCPU()
	}

	return cmd.run(ctx, rest)
}

// extractProfileFlag pulls a "--profile <path>" (or
// "--profile=<path>") out of args before the subcommand's own FlagSet
// sees it, since --profile is a tyctl-wide option rather than one any
// single subcommand owns. Returns args with the flag removed.
func extractProfileFlag(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--profile" && i+1 < len(args):
			profilePath = args[i+1]
			i++
		case len(arg) > len("--profile=") && arg[:len("--profile=")] == "--profile=":
			profilePath = arg[len("--profile="):]
		default:
			out = append(out, arg)
		}
	}
	return out
}

// commonFlags registers -B/--board and -q/--quiet on fs, matching
// MAIN_SHORT_OPTIONS/MAIN_LONG_OPTIONS shared by every tyc subcommand.
func commonFlags(fs *flag.FlagSet) {
	fs.StringVar(&boardTag, "B", "", "work with board <tag> instead of first detected")
	fs.StringVar(&boardTag, "board", "", "work with board <tag> instead of first detected")
	fs.BoolFunc("q", "decrease verbosity (repeatable)", func(string) error { quiet++; return nil })
	fs.BoolFunc("quiet", "decrease verbosity (repeatable)", func(string) error { quiet++; return nil })
}

func applyQuiet() {
	switch {
	case quiet >= 3:
		msgsink.SetLevel(msgsink.LevelError + 1)
	case quiet >= 1:
		msgsink.SetLevel(msgsink.LevelError)
	}
}

// openMonitor starts a board.Monitor over the Linux HAL and waits for
// its initial enumeration to settle, matching init_manager/get_manager.
func openMonitor(ctx context.Context) (*board.Monitor, error) {
	hal := linux.New()
	mon := board.New(hal)
	if err := mon.Start(ctx); err != nil {
		return nil, err
	}
	return mon, nil
}

// findBoard resolves boardTag to a single board, matching get_board's
// "first detected, or the one named by -B" rule.
func findBoard(mon *board.Monitor) (*board.Board, error) {
	if boardTag != "" {
		b := mon.FindTag(boardTag)
		if b == nil {
			return nil, errcode.New(errcode.NotFound, "board '%s' not found", boardTag)
		}
		return b, nil
	}
	boards := mon.List()
	if len(boards) == 0 {
		return nil, errcode.New(errcode.NotFound, "no board available")
	}
	return boards[0], nil
}

func errTooManyArgs(cmdName string) error {
	return errcode.New(errcode.Param, "no positional argument is allowed for '%s'", cmdName)
}

func fail(err error) int {
	msgsink.Log(msgsink.LevelError, msgsink.ComponentBoard, err, "%s", err)
	return 1
}
