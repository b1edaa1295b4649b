//go:build !tinygo

package platform

// Sim is a RAM-only stand-in for Platform used by the uds and boot package
// tests. Unlike real hardware, Reset and Jump
// record their call instead of halting the process, so a test can assert
// "the bootloader tried to reset" rather than actually terminating.
type Sim struct {
	ms uint32

	interruptsEnabled bool

	resetCount int
	cause      ResetCause

	jumped      bool
	jumpVector  uint32
}

// NewSim creates a simulated platform starting at millisecond 0.
func NewSim() *Sim {
	return &Sim{cause: ResetCausePowerOn}
}

// Advance moves the simulated clock forward by deltaMs milliseconds.
func (s *Sim) Advance(deltaMs uint32) {
	s.ms += deltaMs
}

// SetNowMs pins the simulated clock to an absolute value, useful for
// exercising wraparound near the 2^32ms boundary.
func (s *Sim) SetNowMs(ms uint32) {
	s.ms = ms
}

func (s *Sim) NowMs() uint32 {
	return s.ms
}

func (s *Sim) Reset() {
	s.resetCount++
}

// ResetCount reports how many times Reset was called.
func (s *Sim) ResetCount() int {
	return s.resetCount
}

func (s *Sim) EnableGlobalInterrupts() {
	s.interruptsEnabled = true
}

// InterruptsEnabled reports whether EnableGlobalInterrupts was called.
func (s *Sim) InterruptsEnabled() bool {
	return s.interruptsEnabled
}

func (s *Sim) Jump(vectorTable uint32) {
	s.jumped = true
	s.jumpVector = vectorTable
}

// Jumped reports whether Jump was called, and with what vector table
// address, so boot decision tests can assert on it without a real MCU.
func (s *Sim) Jumped() (bool, uint32) {
	return s.jumped, s.jumpVector
}

func (s *Sim) ResetCause() ResetCause {
	return s.cause
}

// SetResetCause lets a test simulate booting after a particular reset
// cause (e.g. ResetCauseWatchdog after an inactivity-triggered reset).
func (s *Sim) SetResetCause(c ResetCause) {
	s.cause = c
}

var _ Clock = (*Sim)(nil)
var _ ResetTrigger = (*Sim)(nil)
var _ InterruptGate = (*Sim)(nil)
var _ Handoff = (*Sim)(nil)
