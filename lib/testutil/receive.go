// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"
	"time"
)

// DefaultTimeout bounds Receive. It only guards against hangs; a
// passing test never waits this long.
const DefaultTimeout = 5 * time.Second

// Receive returns the next value from ch, failing the test if none
// arrives within DefaultTimeout or ch is closed. what names the awaited
// event in the failure message.
//
//	err := testutil.Receive(t, done, "loop exit")
func Receive[T any](t testing.TB, ch <-chan T, what string) T {
	t.Helper()
	return ReceiveWithin(t, ch, DefaultTimeout, what)
}

// ReceiveWithin is Receive with an explicit timeout.
func ReceiveWithin[T any](t testing.TB, ch <-chan T, timeout time.Duration, what string) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("waiting for %s: channel closed", what)
		}
		return value
	case <-timer.C:
		t.Fatalf("waiting for %s: nothing received after %v", what, timeout)
	}
	panic("unreachable")
}
