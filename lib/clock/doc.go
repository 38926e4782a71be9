// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// The mirror staleness policy compares the time of the last successful
// mirror against a maximum age, and the refresh loop in layermount
// ticks on a caller-chosen interval. Both take a Clock instead of
// calling time.Now or time.NewTicker directly, so tests can place the
// last success arbitrarily far in the past and fire ticks on demand:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	syncer := ... // constructed with c
//	c.Advance(2 * time.Minute) // the last success is now two minutes old
package clock
