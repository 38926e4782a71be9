// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/layermount/layer"
	"github.com/bureau-foundation/layermount/lib/clock"
)

// State is the health of a DirSyncer as of its most recent attempt.
type State int

const (
	// StateActive means the most recent mirror succeeded.
	StateActive State = iota
	// StateTransient means the most recent mirror failed but the last
	// good copy is still within the permitted age.
	StateTransient
	// StateFatal is terminal.
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateTransient:
		return "transient"
	case StateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status classifies a single TrySync outcome.
type Status int

const (
	StatusOK Status = iota
	StatusTransient
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTransient:
		return "transient"
	case StatusFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of one sync attempt for one source.
type Result struct {
	// Path is the source's full path.
	Path   string
	Status Status

	// Err is nil for StatusOK. For StatusFatal it is a *StaleError.
	Err error

	// Digest and Changed are set on StatusOK when digests are enabled.
	// Changed reports whether the tree differs from the previous
	// successful mirror.
	Digest  Digest
	Changed bool

	// DigestErr is set when the mirror succeeded but its digest could
	// not be computed. Digest then holds the last known value and the
	// attempt still counts as a success.
	DigestErr error
}

// DirSyncer mirrors one lower source into its destination and tracks
// how long ago that last succeeded. It is safe for concurrent use;
// attempts are serialized.
type DirSyncer struct {
	source  layer.LowerSource
	options Options

	mu          sync.Mutex
	lastSuccess time.Time
	state       State
	fatalErr    error
	digest      Digest
}

// NewDirSyncer performs the first mirror of source synchronously and
// returns a syncer whose staleness clock starts at that success. The
// source must have a once or constant sync mode.
func NewDirSyncer(ctx context.Context, source layer.LowerSource, options Options) (*DirSyncer, error) {
	if !source.Mode().Mirrored() {
		return nil, fmt.Errorf("source %s has no mirror destination", source.FullPath())
	}
	syncer := &DirSyncer{source: source, options: options.withDefaults()}
	if err := syncer.mirror(ctx); err != nil {
		return nil, err
	}
	syncer.lastSuccess = syncer.options.Clock.Now()
	if syncer.options.Digest {
		if _, err := syncer.updateDigest(); err != nil {
			syncer.options.Logger.Warn("computing mirror digest failed",
				"source", source.FullPath(), "error", err)
		}
	}
	return syncer, nil
}

// Source returns the source being mirrored.
func (s *DirSyncer) Source() layer.LowerSource { return s.source }

// LastSuccess returns the time of the most recent successful mirror.
func (s *DirSyncer) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// State returns the syncer's health as of its last attempt.
func (s *DirSyncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TrySync mirrors the source again and classifies the outcome against
// maxAge. Once a syncer has gone fatal it returns the recorded error
// without running the mirror again.
func (s *DirSyncer) TrySync(ctx context.Context, maxAge time.Duration) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.source.FullPath()
	logger := s.options.Logger.With("source", path)
	if s.state == StateFatal {
		return Result{Path: path, Status: StatusFatal, Err: s.fatalErr}
	}

	err := s.mirror(ctx)
	if err == nil {
		s.lastSuccess = s.options.Clock.Now()
		s.state = StateActive
		result := Result{Path: path, Status: StatusOK}
		if s.options.Digest {
			result.Changed, result.DigestErr = s.updateDigest()
			result.Digest = s.digest
			if result.DigestErr != nil {
				logger.Warn("computing mirror digest failed", "error", result.DigestErr)
			}
		}
		logger.Debug("mirror refreshed", "changed", result.Changed)
		return result
	}

	age := clock.Since(s.options.Clock, s.lastSuccess)
	if age <= maxAge {
		s.state = StateTransient
		return Result{Path: path, Status: StatusTransient, Err: err}
	}
	s.state = StateFatal
	s.fatalErr = &StaleError{Age: age, MaxAge: maxAge, Err: err}
	return Result{Path: path, Status: StatusFatal, Err: s.fatalErr}
}

// updateDigest must be called with s.mu held. On error the previous
// digest is kept.
func (s *DirSyncer) updateDigest() (changed bool, err error) {
	digest, err := TreeDigest(s.source.Mode().Destination)
	if err != nil {
		return false, err
	}
	changed = digest != s.digest
	s.digest = digest
	return changed, nil
}

// mirror runs "<binary> -av --delete <source>/ <destination>". The
// trailing slash makes rsync copy the source's contents rather than
// the directory itself.
func (s *DirSyncer) mirror(ctx context.Context) error {
	destination := s.source.Mode().Destination
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return fmt.Errorf("creating mirror destination: %w", err)
	}

	if s.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.Timeout)
		defer cancel()
	}

	argv := []string{
		s.options.Binary, "-av", "--delete",
		strings.TrimSuffix(s.source.FullPath(), "/") + "/",
		destination,
	}
	s.options.Logger.Debug("running mirror", "argv", argv)

	result, err := s.options.Runner.Run(ctx, argv)
	if err != nil {
		return &LaunchError{Binary: s.options.Binary, Err: err}
	}
	if !result.Success() {
		return &ExitError{
			Code:   result.ExitCode,
			Stderr: strings.TrimSpace(string(result.Stderr)),
		}
	}
	return nil
}
