// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"log/slog"
	"time"

	"github.com/bureau-foundation/layermount/lib/clock"
	"github.com/bureau-foundation/layermount/lib/process"
)

// DefaultBinary is the mirror command used when Options.Binary is empty.
const DefaultBinary = "rsync"

// Options configures a DirSyncer or Manager. The zero value is usable.
type Options struct {
	// Runner executes the mirror command. Default: process.ExecRunner{}.
	Runner process.Runner

	// Clock drives the staleness policy. Default: clock.Real().
	Clock clock.Clock

	// Binary is the rsync executable. Default: DefaultBinary.
	Binary string

	// Timeout bounds each mirror run. Zero means no limit.
	Timeout time.Duration

	// Digest enables BLAKE3 tree digests of the destination after each
	// successful mirror, reported in Result.Digest and Result.Changed.
	Digest bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Runner == nil {
		o.Runner = process.ExecRunner{}
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Binary == "" {
		o.Binary = DefaultBinary
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
