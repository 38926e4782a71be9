// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/bureau-foundation/layermount/lib/clock"
	"github.com/bureau-foundation/layermount/lib/process"
	"github.com/bureau-foundation/layermount/lib/testutil"
	"github.com/bureau-foundation/layermount/mirror"
	"github.com/bureau-foundation/layermount/overlay"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// scriptedRefresher returns one scripted result set per TrySync call
// and reports each call's maxAge on calls.
type scriptedRefresher struct {
	mu      sync.Mutex
	results [][]mirror.Result
	calls   chan time.Duration
}

func (s *scriptedRefresher) TrySync(ctx context.Context, maxAge time.Duration) []mirror.Result {
	s.mu.Lock()
	var next []mirror.Result
	if len(s.results) > 0 {
		next, s.results = s.results[0], s.results[1:]
	}
	s.mu.Unlock()
	s.calls <- maxAge
	return next
}

type fakeUnmounter struct {
	err   error
	calls int
}

func (f *fakeUnmounter) Umount() error {
	f.calls++
	return f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMaintainRefreshesUntilCancelled(t *testing.T) {
	t.Parallel()

	fakeClock := clock.Fake(epoch)
	syncs := &scriptedRefresher{
		results: [][]mirror.Result{
			{{Path: "/remote", Status: mirror.StatusOK}},
			{{Path: "/remote", Status: mirror.StatusTransient, Err: errors.New("connection refused")}},
		},
		calls: make(chan time.Duration, 4),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- maintain(ctx, fakeClock, syncs, 30*time.Second, 5*time.Minute, quietLogger())
	}()

	fakeClock.WaitForTickers(1)
	for range 2 {
		fakeClock.Advance(30 * time.Second)
		if maxAge := testutil.Receive(t, syncs.calls, "refresh"); maxAge != 5*time.Minute {
			t.Errorf("TrySync maxAge = %v, want 5m", maxAge)
		}
	}

	cancel()
	if err := testutil.Receive(t, done, "maintain exit"); err != nil {
		t.Errorf("maintain() = %v, want nil after cancellation", err)
	}
}

func TestMaintainStopsOnFatal(t *testing.T) {
	t.Parallel()

	fakeClock := clock.Fake(epoch)
	stale := &mirror.StaleError{Age: 10 * time.Minute, MaxAge: 5 * time.Minute, Err: errors.New("rsync exited 23")}
	syncs := &scriptedRefresher{
		results: [][]mirror.Result{
			{{Path: "/remote", Status: mirror.StatusFatal, Err: stale}},
		},
		calls: make(chan time.Duration, 1),
	}
	done := make(chan error, 1)
	go func() {
		done <- maintain(context.Background(), fakeClock, syncs, time.Second, 5*time.Minute, quietLogger())
	}()

	fakeClock.WaitForTickers(1)
	fakeClock.Advance(time.Second)
	testutil.Receive(t, syncs.calls, "refresh")

	err := testutil.Receive(t, done, "maintain exit")
	var sourceErr *mirror.SourceError
	if !errors.As(err, &sourceErr) || sourceErr.Path != "/remote" {
		t.Fatalf("maintain() = %v, want a *mirror.SourceError for /remote", err)
	}
	if !errors.Is(err, stale) {
		t.Errorf("maintain() = %v, want it to wrap the stale error", err)
	}
}

func TestUnmountAfter(t *testing.T) {
	t.Parallel()

	cause := errors.New("mirror sync failed")
	unmountErr := &overlay.UnmountError{Target: "/merged", Err: syscall.EBUSY}

	t.Run("clean shutdown", func(t *testing.T) {
		t.Parallel()
		mount := &fakeUnmounter{}
		if err := unmountAfter(mount, nil); err != nil || mount.calls != 1 {
			t.Errorf("unmountAfter() = %v with %d calls", err, mount.calls)
		}
	})

	t.Run("fatal error with clean unmount", func(t *testing.T) {
		t.Parallel()
		mount := &fakeUnmounter{}
		if err := unmountAfter(mount, cause); err != cause || mount.calls != 1 {
			t.Errorf("unmountAfter() = %v, want the cause unchanged", err)
		}
	})

	t.Run("unmount failure alone", func(t *testing.T) {
		t.Parallel()
		err := unmountAfter(&fakeUnmounter{err: unmountErr}, nil)
		if !errors.Is(err, syscall.EBUSY) {
			t.Errorf("unmountAfter() = %v, want it to wrap EBUSY", err)
		}
	})

	t.Run("both fail", func(t *testing.T) {
		t.Parallel()
		err := unmountAfter(&fakeUnmounter{err: unmountErr}, cause)
		if !errors.Is(err, cause) || !errors.Is(err, syscall.EBUSY) {
			t.Fatalf("unmountAfter() = %v, want both errors", err)
		}
		if !strings.Contains(err.Error(), "while handling the previous error") {
			t.Errorf("unmount failure not annotated: %v", err)
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		format     string
		isTerminal bool
		wantJSON   bool
	}{
		{"terminal defaults to text", "", true, false},
		{"pipe defaults to json", "", false, true},
		{"explicit text on pipe", "text", false, false},
		{"explicit json on terminal", "json", true, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var output bytes.Buffer
			newLogger(&output, test.format, test.isTerminal, false).Info("hello", "key", "value")
			isJSON := strings.HasPrefix(output.String(), "{")
			if isJSON != test.wantJSON {
				t.Errorf("output %q: json = %v, want %v", output.String(), isJSON, test.wantJSON)
			}
		})
	}

	var output bytes.Buffer
	newLogger(&output, "text", true, false).Debug("hidden")
	newLogger(&output, "text", true, true).Debug("shown")
	if strings.Contains(output.String(), "hidden") || !strings.Contains(output.String(), "shown") {
		t.Errorf("debug gating wrong: %q", output.String())
	}
}

func TestLogKernelDiagnostics(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer
	logger := newLogger(&output, "text", true, false)
	err := &overlay.MountError{
		Target:      "/merged",
		Err:         syscall.EINVAL,
		Diagnostics: []string{"overlayfs: missing 'lowerdir'", "older line"},
	}
	logKernelDiagnostics(logger, err)

	text := output.String()
	if !strings.Contains(text, "missing 'lowerdir'") || !strings.Contains(text, "older line") {
		t.Errorf("diagnostics not logged: %q", text)
	}
	if strings.Index(text, "missing") > strings.Index(text, "older line") {
		t.Error("diagnostics not logged newest first")
	}
}

func TestConfigErrorExitStatus(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer
	err := fmt.Errorf("startup: %w", configError{errors.New("lower_dirs must list at least one source")})
	if code := process.Report(&output, err); code != 2 {
		t.Errorf("exit status = %d, want 2", code)
	}
	if code := process.Report(&output, errors.New("mount failed")); code != 1 {
		t.Errorf("exit status = %d, want 1", code)
	}
}
