// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// sns-watchdog halts a robot whose joints are about to leave their
// configured limits.
//
// It reads joint state from the -y channel (newest frame only) and
// references from the -j channel (every frame, in order). Each
// reference, and each quiet control period, runs the joint-limit
// guard; when it trips, a HALT motor_ref is published on the -u
// channel. A final halt is always published on shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sns/lib/arena"
	"github.com/bureau-foundation/sns/lib/channel"
	"github.com/bureau-foundation/sns/lib/config"
	"github.com/bureau-foundation/sns/lib/evloop"
	"github.com/bureau-foundation/sns/lib/logging"
	"github.com/bureau-foundation/sns/lib/msg"
	"github.com/bureau-foundation/sns/lib/process"
	"github.com/bureau-foundation/sns/lib/version"
	"github.com/bureau-foundation/sns/lib/watchdog"
)

const toolName = "sns-watchdog"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath string
		stateName  string
		refInName  string
		refOutName string
		frequency  float64
		verbose    bool
	)
	flagSet := pflag.NewFlagSet(toolName, pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "config file (default: $SNS_CONFIG, else built-in defaults)")
	flagSet.StringVarP(&stateName, "state", "y", "", "motor_state channel, input")
	flagSet.StringVarP(&refInName, "ref-in", "j", "", "motor_ref channel, input")
	flagSet.StringVarP(&refOutName, "ref-out", "u", "", "motor_ref channel, output")
	flagSet.Float64Var(&frequency, "frequency", 0, "control frequency in Hz (default: watchdog.frequency from config)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		version.Print(toolName)
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
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	switch {
	case stateName == "":
		return errors.New("need state channel (-y)")
	case refInName == "":
		return errors.New("need ref_in channel (-j)")
	case refOutName == "":
		return errors.New("need ref_out channel (-u)")
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if frequency != 0 {
		cfg.Watchdog.Frequency = frequency
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(os.Stderr, level, logging.Format(cfg.Logging.Format))

	openOptions := channel.OpenOptions{
		Slots:        cfg.Channels.Slots,
		SlotSize:     cfg.Channels.SlotSize,
		PollInterval: cfg.Channels.PollInterval.Std(),
	}
	var channels channelSet
	defer channels.Close()
	for _, target := range []struct {
		handle **channel.Channel
		name   string
	}{
		{&channels.state, stateName},
		{&channels.refIn, refInName},
		{&channels.refOut, refOutName},
	} {
		handle, err := channel.Open(cfg.Channels.Dir, target.name, openOptions)
		if err != nil {
			return err
		}
		*target.handle = handle
	}

	ctx, stop := process.SignalContext(context.Background())
	defer stop()
	return watch(ctx, channels, cfg, logger)
}

// channelSet holds the watchdog's three channel handles.
type channelSet struct {
	state  *channel.Channel
	refIn  *channel.Channel
	refOut *channel.Channel
}

func (c *channelSet) Close() {
	for _, handle := range []*channel.Channel{c.state, c.refIn, c.refOut} {
		if handle != nil {
			handle.Close()
		}
	}
}

// watch runs the guard until ctx is cancelled or the event loop
// fails, then publishes a final halt.
func watch(ctx context.Context, channels channelSet, cfg *config.Config, logger *slog.Logger) error {
	pool := arena.NewPool(cfg.Arena.Size, arena.Options{Lock: cfg.Arena.Lock})
	defer pool.Close()
	local, err := pool.Acquire()
	if err != nil {
		return fmt.Errorf("acquiring arena region: %w", err)
	}
	defer local.Return()

	ident := cfg.Producer.Ident
	if ident == "" {
		ident = toolName
	}
	producer, err := msg.NewProducer(ident, msg.ProducerOptions{Validity: cfg.Producer.Validity.Std()})
	if err != nil {
		return err
	}

	limits := make([]watchdog.Limit, len(cfg.Watchdog.Limits))
	for i, limit := range cfg.Watchdog.Limits {
		limits[i] = watchdog.Limit{Name: limit.Name, Min: limit.Min, Max: limit.Max, MaxVelocity: limit.MaxVelocity}
	}
	if len(limits) == 0 {
		logger.Warn("no joint limits configured; the guard only halts on shutdown")
	}
	joints := max(len(limits), 1)

	guard, err := watchdog.New(watchdog.Config{
		Joints:       joints,
		Limits:       limits,
		Period:       cfg.Watchdog.Period(),
		StepScale:    cfg.Watchdog.StepScale,
		HaltValidity: cfg.Watchdog.HaltValidity.Std(),
		Producer:     producer,
		Output:       channels.refOut,
		Arena:        local,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting event loop",
		"state", channels.state.Name(),
		"ref_in", channels.refIn.Name(),
		"ref_out", channels.refOut.Name(),
		"period", cfg.Watchdog.Period(),
		"joints", joints)

	loopErr := evloop.Run(ctx, evloop.Config{
		Handlers: []evloop.Handler{
			{Source: channels.state, Last: true, Handle: guard.HandleState},
			{Source: channels.refIn, Handle: guard.HandleRef},
		},
		Period:   cfg.Watchdog.Period(),
		Periodic: guard.Tick,
		Logger:   logger,
	})
	if loopErr != nil {
		logger.Error("event loop failed", "error", loopErr)
	}

	if err := guard.Halt(); err != nil {
		return errors.Join(loopErr, fmt.Errorf("final halt: %w", err))
	}
	return loopErr
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `sns-watchdog - halt the robot before it leaves its joint limits

Usage:
  sns-watchdog -y STATE -j REF_IN -u REF_OUT [flags]

Joint limits are read from the watchdog.limits section of the config
file. A halt command is published whenever the guard trips, and once
more on shutdown.

Examples:
  sns-watchdog -y state -j ref_in -u ref

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
