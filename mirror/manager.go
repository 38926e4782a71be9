// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/layermount/layer"
)

// validated is embedded under an unexported name so that only
// NewManager can supply the proof a Synced carries.
type validated = layer.Validated

// Synced is a validated composition whose mirrored lower sources have
// been copied to their destinations. Layers reports those sources as
// plain sources at the destination, which is what gets mounted. Only
// NewManager produces a usable Synced; the zero value has no lower
// sources and cannot be mounted.
type Synced struct {
	validated
	layers layer.Config
}

// Layers returns the composition with mirrored sources resolved to
// their destinations.
func (s Synced) Layers() layer.Config { return s.layers.Clone() }

// Manager holds the syncers for constant sources and refreshes them on
// demand. It owns no timer.
type Manager struct {
	syncers []*DirSyncer
	logger  *slog.Logger
}

// NewManager mirrors every once and constant source of proof, in
// configured order. The first failure aborts with a *SourceError. Only
// constant sources are retained for later refreshes.
func NewManager(ctx context.Context, proof layer.Validated, options Options) (*Manager, Synced, error) {
	options = options.withDefaults()
	config := proof.Layers()
	manager := &Manager{logger: options.Logger}

	resolved := config.Clone()
	for index, lower := range config.Lowers {
		mode := lower.Mode()
		if !mode.Mirrored() {
			continue
		}
		syncer, err := NewDirSyncer(ctx, lower, options)
		if err != nil {
			return nil, Synced{}, &SourceError{Path: lower.FullPath(), Err: err}
		}
		options.Logger.Info("mirror ready",
			"source", lower.FullPath(),
			"destination", mode.Destination,
			"mode", mode.Kind.String(),
		)
		if mode.Kind == layer.SyncConstant {
			manager.syncers = append(manager.syncers, syncer)
		}
		resolved.Lowers[index] = lower.Resolved()
	}

	return manager, Synced{validated: proof, layers: resolved}, nil
}

// Len returns the number of retained constant syncers.
func (m *Manager) Len() int { return len(m.syncers) }

// TrySync refreshes every constant source once and returns one Result
// per source, in configured order. Transient failures are logged at
// Warn, fatal ones at Error.
func (m *Manager) TrySync(ctx context.Context, maxAge time.Duration) []Result {
	results := make([]Result, 0, len(m.syncers))
	for _, syncer := range m.syncers {
		result := syncer.TrySync(ctx, maxAge)
		switch result.Status {
		case StatusTransient:
			m.logger.Warn("mirror refresh failed, serving previous copy",
				"source", result.Path, "error", result.Err)
		case StatusFatal:
			m.logger.Error("mirror too stale", "source", result.Path, "error", result.Err)
		}
		results = append(results, result)
	}
	return results
}

// FatalError joins the errors of all fatal results, each attributed to
// its source with a *SourceError. It returns nil when none is fatal.
func FatalError(results []Result) error {
	var errs []error
	for _, result := range results {
		if result.Status == StatusFatal {
			errs = append(errs, &SourceError{Path: result.Path, Err: result.Err})
		}
	}
	return errors.Join(errs...)
}
