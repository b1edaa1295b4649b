// Package watchdog implements the inactivity watchdog that forces a reset
// if a tester opens a programming session but abandons it, plus a thin
// service wrapper around the hardware liveness watchdog. The two timers are
// unrelated: inactivity enforces a programming protocol deadline, the
// hardware watchdog bounds total CPU stalls.
package watchdog

import (
	"github.com/gridania/telematic-bootloader/platform"
	"github.com/gridania/telematic-bootloader/uds"
)

// Inactivity tracks the {armed, started, armed_at_ms} state described in
// spec.md section 4.G. It is driven entirely by the session layer's
// Notifier callbacks and polled once per main-loop tick.
type Inactivity struct {
	TimeoutMs uint32

	armed     bool
	started   bool
	armedAtMs uint32
}

// NewInactivity constructs an Inactivity watchdog with the given timeout
// (spec default 500ms).
func NewInactivity(timeoutMs uint32) *Inactivity {
	return &Inactivity{TimeoutMs: timeoutMs}
}

// FlashingInit arms the watchdog: entering a Programming session, or any
// Session Control received while already in Programming, resets the
// deadline without marking the transfer as started.
func (w *Inactivity) FlashingInit(nowMs uint32) {
	w.armed = true
	w.started = false
	w.armedAtMs = nowMs
}

// FlashingStarted marks the watchdog started: once Request Download
// arrives, the inactivity deadline no longer applies, since the download
// itself is now bounded by other protocol timers.
func (w *Inactivity) FlashingStarted() {
	w.started = true
}

// Disarm clears the watchdog, e.g. when the session leaves Programming.
func (w *Inactivity) Disarm() {
	w.armed = false
	w.started = false
}

// ShouldReset reports whether the armed-but-not-started deadline has
// elapsed as of nowMs, using wrapping subtraction so a millisecond counter
// rollover never causes a false negative.
func (w *Inactivity) ShouldReset(nowMs uint32) bool {
	if !w.armed || w.started {
		return false
	}
	return platform.ElapsedMs(nowMs, w.armedAtMs) >= w.TimeoutMs
}

// Armed reports whether the watchdog is currently armed (for diagnostics
// and tests).
func (w *Inactivity) Armed() bool {
	return w.armed
}

var _ uds.Notifier = (*inactivityNotifierAdapter)(nil)

// inactivityNotifierAdapter adapts Inactivity's nowMs-taking FlashingInit to
// the uds.Notifier interface, which has no clock parameter of its own.
type inactivityNotifierAdapter struct {
	w     *Inactivity
	clock platform.Clock
}

// NewNotifier returns a uds.Notifier backed by w, sourcing the current time
// from clock at the moment FlashingInit fires.
func NewNotifier(w *Inactivity, clock platform.Clock) uds.Notifier {
	return &inactivityNotifierAdapter{w: w, clock: clock}
}

func (a *inactivityNotifierAdapter) FlashingInit() {
	a.w.FlashingInit(a.clock.NowMs())
}

func (a *inactivityNotifierAdapter) FlashingStarted() {
	a.w.FlashingStarted()
}

// FlashingAborted disarms the watchdog: the session left Programming before
// the transfer completed, so the inactivity deadline no longer applies.
func (a *inactivityNotifierAdapter) FlashingAborted() {
	a.w.Disarm()
}
