// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/layermount/layer"
	"github.com/bureau-foundation/layermount/lib/process"
)

const (
	// DefaultDiagnosticsBinary prints the kernel ring buffer.
	DefaultDiagnosticsBinary = "dmesg"

	// DefaultDiagnosticLines is how many kernel log lines a MountError
	// carries.
	DefaultDiagnosticLines = 15
)

// Options configures a Manager. The zero value is usable.
type Options struct {
	// Mounter defaults to KernelMounter{}.
	Mounter Mounter

	// Runner runs the diagnostics command. Default: process.ExecRunner{}.
	Runner process.Runner

	// DiagnosticsBinary defaults to DefaultDiagnosticsBinary.
	DiagnosticsBinary string

	// DiagnosticLines defaults to DefaultDiagnosticLines.
	DiagnosticLines int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Manager mounts and unmounts one overlay composition.
type Manager struct {
	config  layer.Config
	options Options

	mu      sync.Mutex
	mounted bool
}

// New returns a manager for source. It performs no I/O.
func New(source layer.Mountable, options Options) *Manager {
	if options.Mounter == nil {
		options.Mounter = KernelMounter{}
	}
	if options.Runner == nil {
		options.Runner = process.ExecRunner{}
	}
	if options.DiagnosticsBinary == "" {
		options.DiagnosticsBinary = DefaultDiagnosticsBinary
	}
	if options.DiagnosticLines <= 0 {
		options.DiagnosticLines = DefaultDiagnosticLines
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Manager{config: source.Layers(), options: options}
}

// MergedPath is the mount point.
func (m *Manager) MergedPath() string { return m.config.Upper.MergedPath() }

// Mounted reports whether the last Mount succeeded and no Umount has
// succeeded since.
func (m *Manager) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// Mount mounts the composition on MergedPath. On failure it returns a
// *MountError with kernel log diagnostics attached. ctx bounds only the
// diagnostics command.
func (m *Manager) Mount(ctx context.Context) error {
	if len(m.config.Lowers) == 0 {
		return errors.New("composition has no lower sources; it was not produced by layer.Validate")
	}
	options, err := MountOptions(m.config)
	if err != nil {
		return fmt.Errorf("building overlay options: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.MergedPath()
	m.options.Logger.Debug("mounting overlay", "target", target, "options", options)
	if err := m.options.Mounter.Mount(target, options); err != nil {
		mountErr := &MountError{Target: target, Options: options, Err: err}
		mountErr.Diagnostics, mountErr.DiagnosticsErr = m.kernelLogTail(ctx)
		return mountErr
	}

	m.mounted = true
	m.options.Logger.Info("overlay mounted",
		"target", target,
		"lowers", len(m.config.Lowers),
		"upper", m.config.Upper.UpperPath(),
	)
	return nil
}

// Umount unmounts MergedPath. It attempts the unmount even if this
// manager did not perform the mount.
func (m *Manager) Umount() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.MergedPath()
	if err := m.options.Mounter.Unmount(target); err != nil {
		return &UnmountError{Target: target, Err: err}
	}
	m.mounted = false
	m.options.Logger.Info("overlay unmounted", "target", target)
	return nil
}

// kernelLogTail runs the diagnostics command with no arguments and
// returns its last DiagnosticLines lines of output, newest first.
func (m *Manager) kernelLogTail(ctx context.Context) ([]string, error) {
	binary := m.options.DiagnosticsBinary
	result, err := m.options.Runner.Run(ctx, []string{binary})
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", binary, err)
	}
	if !result.Success() {
		return nil, fmt.Errorf("%s exited with status %d: %s",
			binary, result.ExitCode, strings.TrimSpace(string(result.Stderr)))
	}

	lines := strings.Split(strings.TrimRight(string(result.Stdout), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	slices.Reverse(lines)
	if len(lines) > m.options.DiagnosticLines {
		lines = lines[:m.options.DiagnosticLines]
	}
	return lines, nil
}
