// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// layermount assembles an overlay filesystem from a configuration file
// and keeps it mounted until interrupted.
//
// Startup validates the layer composition (creating the upper, work,
// and merged directories and refusing to mount if the writable layer
// masks lower-layer files), mirrors every remote lower source with
// rsync, and mounts the overlay. While mounted, constant mirrors are
// refreshed every sync_interval. A refresh failure is tolerated until
// the mirror is older than max_staleness; after that the overlay is
// unmounted and layermount exits non-zero. SIGINT and SIGTERM unmount
// and exit cleanly.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/layermount/layer"
	"github.com/bureau-foundation/layermount/lib/clock"
	"github.com/bureau-foundation/layermount/lib/config"
	"github.com/bureau-foundation/layermount/lib/process"
	"github.com/bureau-foundation/layermount/lib/version"
	"github.com/bureau-foundation/layermount/mirror"
	"github.com/bureau-foundation/layermount/overlay"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		logFormat   string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("layermount", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the configuration file (default: $LAYERMOUNT_CONFIG)")
	flagSet.StringVar(&logFormat, "log-format", "", "log output format: text or json (default: options.log_format, else text on a terminal and json otherwise)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return configError{err}
	}
	if showVersion {
		version.Print("layermount")
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return configError{fmt.Errorf("unexpected argument: %s", args[0])}
	}

	var (
		file *config.File
		err  error
	)
	if configPath != "" {
		file, err = config.LoadFile(configPath)
	} else {
		file, err = config.Load()
	}
	if err != nil {
		return configError{fmt.Errorf("loading configuration: %w", err)}
	}
	if logFormat != "" {
		file.Options.LogFormat = logFormat
	}
	if err := file.Validate(); err != nil {
		return configError{fmt.Errorf("invalid configuration: %w", err)}
	}

	logger := newLogger(os.Stderr, file.Options.LogFormat, term.IsTerminal(int(os.Stderr.Fd())), os.Getenv("LAYERMOUNT_DEBUG") != "")
	slog.SetDefault(logger)

	layers, err := file.Layers()
	if err != nil {
		return configError{fmt.Errorf("invalid configuration: %w", err)}
	}
	validated, err := layer.Validate(layers, layer.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("validating layers: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := process.ExecRunner{}
	options := file.Options
	syncs, synced, err := mirror.NewManager(ctx, validated, mirror.Options{
		Runner:  runner,
		Clock:   clock.Real(),
		Binary:  options.RsyncBinary,
		Timeout: time.Duration(options.MirrorTimeout),
		Digest:  options.MirrorDigest,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("initial mirror: %w", err)
	}

	mount := overlay.New(synced, overlay.Options{
		Runner:            runner,
		DiagnosticsBinary: options.DmesgBinary,
		Logger:            logger,
	})
	if err := mount.Mount(ctx); err != nil {
		if options.ShowDmesg {
			logKernelDiagnostics(logger, err)
		}
		return err
	}
	logger.Info("overlay mount setup complete",
		"merged", mount.MergedPath(),
		"constant_mirrors", syncs.Len(),
		"sync_interval", time.Duration(options.SyncInterval),
		"max_staleness", time.Duration(options.MaxStaleness),
	)

	err = maintain(ctx, clock.Real(), syncs, time.Duration(options.SyncInterval), time.Duration(options.MaxStaleness), logger)
	if err == nil {
		logger.Info("shutting down")
	}
	return unmountAfter(mount, err)
}

// configError marks failures caused by the command line or the
// configuration file. They exit with status 2.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }
func (configError) ExitCode() int { return 2 }

// logKernelDiagnostics logs the kernel log lines attached to a failed
// mount, newest first.
func logKernelDiagnostics(logger *slog.Logger, err error) {
	var mountErr *overlay.MountError
	if !errors.As(err, &mountErr) {
		return
	}
	if mountErr.DiagnosticsErr != nil {
		logger.Warn("kernel log unavailable", "error", mountErr.DiagnosticsErr)
		return
	}
	for _, line := range mountErr.Diagnostics {
		logger.Error("recent dmesg output", "line", line)
	}
}
