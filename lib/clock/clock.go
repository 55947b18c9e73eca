// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time so that debounce timers and blocking
// reads can be driven deterministically in tests instead of relying on
// real sleeps.
package clock

import "time"

// Clock is the time source used by every timer-driven component in
// this module: production code injects Real(), tests inject Fake().
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d elapses. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine (or synchronously for the fake clock, during
	// Advance). Returns a Timer whose Stop cancels the pending call.
	AfterFunc(d time.Duration, f func()) *Timer

	// Sleep pauses the calling goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Timer represents a scheduled AfterFunc callback.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop prevents the Timer from firing. Returns true if the call stops
// the timer, false if it already fired or was already stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset reschedules the Timer to fire after duration d.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }
