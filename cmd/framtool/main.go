// go-fram
// Copyright (c) 2025 The go-fram Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-fram.
//
// go-fram is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-fram is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-fram; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	fram "github.com/jakubarm/go-fram"
	"github.com/jakubarm/go-fram/config"
	"github.com/jakubarm/go-fram/detection"
	// Import the I2C detector to register it
	i2cdetect "github.com/jakubarm/go-fram/detection/i2c"
	"github.com/jakubarm/go-fram/transport/i2c"
)

type options struct {
	configPath *string
	profile    *string
	bus        *string
	addr       *uint
	size       *int
	pageSize   *int
	timeout    *time.Duration
	debug      *bool
}

func parseFlags() *options {
	opts := &options{
		configPath: flag.String("config", "", "YAML file with device profiles"),
		profile:    flag.String("profile", "", "Profile name (may be omitted for single-device files)"),
		bus: flag.String("bus", "",
			"I2C bus (e.g., /dev/i2c-1 or 1). Leave empty for auto-detection."),
		addr:     flag.Uint("addr", fram.DefaultAddress, "7-bit device address"),
		size:     flag.Int("size", fram.MaxSize, "Memory size in bytes"),
		pageSize: flag.Int("page-size", config.DefaultPageSize, "Write chunk size in bytes"),
		timeout:  flag.Duration("timeout", 10*time.Second, "Timeout for the whole command"),
		debug:    flag.Bool("debug", false, "Enable debug output"),
	}
	flag.Usage = usage
	flag.Parse()

	// Enable debug output if --debug flag is set
	if *opts.debug {
		fram.SetDebugEnabled(true)
	}

	return opts
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	_, _ = fmt.Fprint(out, commandHelp)
	_, _ = fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

// resolveProfile builds the device profile from the config file and the
// flags given on the command line; flags win over the file.
func resolveProfile(opts *options) (config.Profile, error) {
	profile := config.Default()
	if *opts.configPath != "" {
		file, err := config.Load(*opts.configPath)
		if err != nil {
			return config.Profile{}, err
		}
		p, err := file.Profile(*opts.profile)
		if err != nil {
			return config.Profile{}, fmt.Errorf("%s: %w", *opts.configPath, err)
		}
		profile = *p
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bus":
			profile.Bus = *opts.bus
		case "addr":
			profile.Address = uint8(*opts.addr) //nolint:gosec // checked by Validate below
		case "size":
			profile.Size = *opts.size
		case "page-size":
			profile.PageSize = *opts.pageSize
		}
	})
	if *opts.addr > 0x7F {
		return config.Profile{}, fmt.Errorf("address 0x%X is not a 7-bit address", *opts.addr)
	}

	return profile, profile.Validate()
}

// autoDetect fills the bus and address of profile from the first chip found
func autoDetect(ctx context.Context, profile *config.Profile, logger *slog.Logger) error {
	detectOpts := detection.DefaultOptions()
	devices, err := detection.DetectAll(ctx, &detectOpts)
	if err != nil {
		return fmt.Errorf("auto-detection failed: %w", err)
	}

	busPath, addr, err := i2cdetect.ParsePath(devices[0].Path)
	if err != nil {
		return err
	}
	logger.Info("using detected device", "path", devices[0].Path, "confidence", devices[0].Confidence.String())
	profile.Bus = busPath
	profile.Address = addr
	return nil
}

func openDevice(ctx context.Context, profile config.Profile, logger *slog.Logger) (*fram.SyncDevice, func(), error) {
	if profile.Bus == "" {
		if err := autoDetect(ctx, &profile, logger); err != nil {
			return nil, nil, err
		}
	}

	transport, err := i2c.New(profile.Bus)
	if err != nil {
		return nil, nil, err
	}

	device, err := profile.Open(transport, fram.WithLogger(logger))
	if err != nil {
		_ = transport.Close()
		return nil, nil, err
	}
	if err := device.InitContext(ctx); err != nil {
		_ = transport.Close()
		return nil, nil, err
	}

	return fram.NewSyncDevice(device), func() { _ = transport.Close() }, nil
}

func run(opts *options, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("no command given")
	}

	level := slog.LevelWarn
	if *opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if args[0] == "detect" {
		ctx, cancel := context.WithTimeout(ctx, *opts.timeout)
		defer cancel()
		return runDetect(ctx, os.Stdout)
	}

	profile, err := resolveProfile(opts)
	if err != nil {
		return err
	}

	device, closeDevice, err := openDevice(ctx, profile, logger)
	if err != nil {
		return err
	}
	defer closeDevice()

	a := &app{mem: device, out: os.Stdout, timeout: *opts.timeout}
	if args[0] == "shell" {
		return runShell(ctx, a)
	}
	return a.exec(ctx, args)
}

func main() {
	opts := parseFlags()
	if err := run(opts, flag.Args()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
