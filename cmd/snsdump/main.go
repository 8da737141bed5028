// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// snsdump prints the frames published on a channel.
//
// The message type is resolved through the dispatch registry: built-in
// types render in-process, and any other type is looked up as a Go
// plugin named libsns_msg_<type>.so in the configured plugin
// directory. An unresolvable type is fatal at startup.
//
// Output modes:
//
//   - text (default): the type's renderer, one block per frame
//   - --sample: one line of label=value pairs per frame
//   - --format cbor: a CBOR sequence of record entries on stdout
//
// --record FILE additionally writes a compressed recording, and
// --replay FILE prints a recording instead of reading a channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/muesli/termenv"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sns/lib/channel"
	"github.com/bureau-foundation/sns/lib/clock"
	"github.com/bureau-foundation/sns/lib/config"
	"github.com/bureau-foundation/sns/lib/dispatch"
	"github.com/bureau-foundation/sns/lib/logging"
	"github.com/bureau-foundation/sns/lib/msgdump"
	"github.com/bureau-foundation/sns/lib/process"
	"github.com/bureau-foundation/sns/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath  string
	sample      bool
	format      string
	recordPath  string
	compression string
	frames      bool
	replayPath  string
	precision   int
	noColor     bool
	verbose     bool
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("snsdump", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "config file (default: $SNS_CONFIG, else built-in defaults)")
	flagSet.BoolVar(&opts.sample, "sample", false, "print label=value samples instead of rendered frames")
	flagSet.StringVar(&opts.format, "format", "text", "output format: text or cbor")
	flagSet.StringVar(&opts.recordPath, "record", "", "also write a recording to this file")
	flagSet.StringVar(&opts.compression, "compression", "zstd", "recording compression: none, lz4 or zstd")
	flagSet.BoolVar(&opts.frames, "frames", false, "store raw frames in recordings and cbor output")
	flagSet.StringVar(&opts.replayPath, "replay", "", "print a recording instead of reading a channel")
	flagSet.IntVar(&opts.precision, "precision", 0, "decimal places for reals (default 6)")
	flagSet.BoolVar(&opts.noColor, "no-color", false, "disable styled output")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		version.Print("snsdump")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if opts.format != "text" && opts.format != "cbor" {
		return fmt.Errorf("--format must be text or cbor, got %q", opts.format)
	}

	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := newLogger(cfg, opts.verbose)
	if err != nil {
		return err
	}

	profile := termenv.Ascii
	if !opts.noColor && opts.format == "text" {
		profile = msgdump.DetectProfile(os.Stdout)
	}
	registry := newRegistry(cfg, msgdump.Options{
		Profile:   profile,
		Precision: opts.precision,
		Clock:     clock.Real(),
	}, logger)
	defer registry.Close()

	ctx, stop := process.SignalContext(context.Background())
	defer stop()

	if opts.replayPath != "" {
		if flagSet.NArg() != 0 {
			return fmt.Errorf("--replay takes no positional arguments")
		}
		return replay(opts.replayPath, registry, opts, os.Stdout, logger)
	}

	args := flagSet.Args()
	switch len(args) {
	case 0:
		return fmt.Errorf("missing channel; try 'snsdump --help'")
	case 1:
		return fmt.Errorf("missing type; try 'snsdump --help'")
	case 2:
	default:
		return fmt.Errorf("invalid argument: %s", args[2])
	}
	channelName, typeName := args[0], args[1]
	logger = logger.With("channel", channelName, "type", typeName)

	if _, err := registry.Resolve(typeName); err != nil {
		return err
	}

	source, err := channel.Open(cfg.Channels.Dir, channelName, channel.OpenOptions{
		Slots:        cfg.Channels.Slots,
		SlotSize:     cfg.Channels.SlotSize,
		PollInterval: cfg.Channels.PollInterval.Std(),
	})
	if err != nil {
		return err
	}
	defer source.Close()

	output, err := newSink(registry, typeName, channelName, opts, os.Stdout)
	if err != nil {
		return err
	}
	logger.Info("dumping", "dir", cfg.Channels.Dir)
	dumpErr := dump(ctx, source, output, readTimeout, logger)
	if err := output.Close(); err != nil && dumpErr == nil {
		dumpErr = err
	}
	return dumpErr
}

func newLogger(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	return logging.New(os.Stderr, level, logging.Format(cfg.Logging.Format)), nil
}

// newRegistry resolves built-in types first and plugins second.
func newRegistry(cfg *config.Config, renderOptions msgdump.Options, logger *slog.Logger) *dispatch.Registry {
	static := dispatch.NewStatic()
	msgdump.New(renderOptions).Register(static)
	plugins := dispatch.PluginLoader{
		Dir:    cfg.Plugins.Dir,
		Prefix: cfg.Plugins.Prefix,
		Suffix: cfg.Plugins.Suffix,
	}
	return dispatch.NewRegistry(logger, static, plugins)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `snsdump - print the frames published on a channel

Usage:
  snsdump [flags] CHANNEL TYPE
  snsdump [flags] --replay FILE

TYPE is a built-in message type (%s)
or the name of a plugin type loaded from the configured plugin
directory as libsns_msg_TYPE.so.

Examples:
  # Dump joystick messages from the js channel
  snsdump js joystick

  # Plot-ready samples of the arm state
  snsdump --sample state motor_state

  # Record the reference channel while watching it
  snsdump --record ref.snsrec --compression lz4 --frames ref motor_ref

Flags:
`, msgdump.TypeNames())
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
