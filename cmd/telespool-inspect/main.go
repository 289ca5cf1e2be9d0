// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/telespool/lib/config"
	"github.com/bureau-foundation/telespool/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// target is the spool a command operates on.
type target struct {
	dir string

	// maxBytes is the configured capacity, or 0 when only --dir was
	// given.
	maxBytes int64
}

func run(args []string, stdout io.Writer) error {
	var configPath, dir string
	var showVersion, confirmed, diagnostic bool

	flagSet := pflag.NewFlagSet("telespool-inspect", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "config file naming the spool directory (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&dir, "dir", "", "spool directory (overrides the config file)")
	flagSet.BoolVar(&confirmed, "yes", false, "confirm purge")
	flagSet.BoolVar(&diagnostic, "diag", false, "envelope: print CBOR diagnostic notation")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Fprintf(stdout, "telespool-inspect %s\n", version.Full())
		return nil
	}

	arguments := flagSet.Args()
	if len(arguments) == 0 {
		printHelp(flagSet)
		return fmt.Errorf("missing command")
	}

	selected, err := resolveTarget(configPath, dir)
	if err != nil {
		return err
	}
	out := newPrinter(stdout, isTerminal(stdout))

	command, rest := arguments[0], arguments[1:]
	switch command {
	case "list":
		if err := noArguments(command, rest); err != nil {
			return err
		}
		return listCommand(out, selected)
	case "cat":
		if len(rest) != 1 {
			return fmt.Errorf("cat takes exactly one record name")
		}
		return catCommand(out, selected, rest[0])
	case "envelope":
		if len(rest) != 1 {
			return fmt.Errorf("envelope takes exactly one record name")
		}
		return envelopeCommand(out, selected, rest[0], diagnostic)
	case "stats":
		if err := noArguments(command, rest); err != nil {
			return err
		}
		return statsCommand(out, selected)
	case "purge":
		if err := noArguments(command, rest); err != nil {
			return err
		}
		if !confirmed {
			return fmt.Errorf("purge deletes every spooled batch in %s; rerun with --yes", selected.dir)
		}
		return purgeCommand(out, selected)
	default:
		return fmt.Errorf("unknown command %q (want list, cat, envelope, stats, or purge)", command)
	}
}

func noArguments(command string, rest []string) error {
	if len(rest) > 0 {
		return fmt.Errorf("%s: unexpected argument: %s", command, rest[0])
	}
	return nil
}

// resolveTarget prefers --dir and otherwise reads the spool section of
// the config file.
func resolveTarget(configPath, dir string) (target, error) {
	if dir != "" && configPath == "" {
		return target{dir: dir}, nil
	}
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return target{}, fmt.Errorf("%w (or pass --dir)", err)
	}
	resolved := target{dir: cfg.Spool.Dir, maxBytes: cfg.Spool.MaxBytes}
	if dir != "" {
		resolved.dir = dir
	}
	return resolved, nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `telespool-inspect examines a telemetry spool directory.

Usage:
  telespool-inspect [flags] <command> [args]

Commands:
  list         list spooled batches, oldest first
  cat NAME     print the records of one batch as JSON lines
  envelope NAME
               print the stored envelope of one batch (--diag for CBOR notation)
  stats        summarize the spool
  purge        delete every spooled batch (requires --yes; fails while a relay runs)

Flags:
%s`, flagSet.FlagUsages())
}
