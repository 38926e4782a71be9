// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/layermount/lib/clock"
	"github.com/bureau-foundation/layermount/mirror"
)

// refresher is the part of *mirror.Manager the maintenance loop uses.
type refresher interface {
	TrySync(ctx context.Context, maxAge time.Duration) []mirror.Result
}

// unmounter is the part of *overlay.Manager the shutdown path uses.
type unmounter interface {
	Umount() error
}

// maintain refreshes constant mirrors every interval until ctx is done
// (returning nil) or a mirror goes fatal (returning its error).
func maintain(ctx context.Context, c clock.Clock, syncs refresher, interval, maxAge time.Duration, logger *slog.Logger) error {
	ticker := c.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		results := syncs.TrySync(ctx, maxAge)
		if ctx.Err() != nil {
			// A refresh killed by shutdown is not a staleness failure.
			return nil
		}
		for _, result := range results {
			if result.Status == mirror.StatusOK && result.Changed {
				logger.Info("mirror content changed", "source", result.Path, "digest", result.Digest.String())
			}
		}
		if err := mirror.FatalError(results); err != nil {
			return fmt.Errorf("mirror sync failed: %w", err)
		}
	}
}

// unmountAfter unmounts and returns cause. If the unmount fails too,
// both errors are returned, the unmount failure annotated as happening
// while handling cause.
func unmountAfter(mount unmounter, cause error) error {
	err := mount.Umount()
	if err == nil {
		return cause
	}
	if cause == nil {
		return fmt.Errorf("during cleanup: %w", err)
	}
	return errors.Join(cause, fmt.Errorf("while handling the previous error, unmount also failed: %w", err))
}
