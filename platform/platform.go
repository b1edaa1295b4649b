// Package platform abstracts the MCU primitives the bootloader core needs:
// a monotonic millisecond clock, the global interrupt gate, the one-way
// system reset, and the vector-table jump that hands control to the
// application. Register-level detail for a specific MCU family lives behind
// build tags and is treated, per spec.md section 1, as an external
// collaborator with only the contract defined here — this package never
// pokes a peripheral register directly outside the tinygo-tagged files.
package platform

// Clock is a monotonic millisecond counter. Callers compare two NowMs
// readings with wrapping unsigned subtraction, never with <, so wraparound
// at 2^32ms (~49.7 days) never misfires a timeout.
type Clock interface {
	NowMs() uint32
}

// ElapsedMs returns how many milliseconds have passed since start, correct
// across a wraparound of the millisecond counter.
func ElapsedMs(now, start uint32) uint32 {
	return now - start
}

// ResetTrigger requests an immediate system reset. On real hardware Reset
// never returns. It is the only legal way to leave the bootloader without
// executing an application.
type ResetTrigger interface {
	Reset()
}

// InterruptGate enables the global interrupt mask so the bus receive
// interrupt can start depositing frames.
type InterruptGate interface {
	EnableGlobalInterrupts()
}

// ResetCause classifies why the MCU last reset, read from the reset control
// module at boot. It is informational only — spec.md section 4.G's boot
// decision never consults it, it is only ever logged (see SPEC_FULL.md
// section 3's supplement from original_source/src/drivers/power.rs).
type ResetCause uint8

const (
	ResetCauseUnknown ResetCause = iota
	ResetCausePowerOn
	ResetCauseExternal
	ResetCauseWatchdog
	ResetCauseSoftware
	ResetCauseLockup
	ResetCauseJTAG
	ResetCauseLowVoltage
)

func (c ResetCause) String() string {
	switch c {
	case ResetCausePowerOn:
		return "power-on"
	case ResetCauseExternal:
		return "external"
	case ResetCauseWatchdog:
		return "watchdog"
	case ResetCauseSoftware:
		return "software"
	case ResetCauseLockup:
		return "lockup"
	case ResetCauseJTAG:
		return "jtag"
	case ResetCauseLowVoltage:
		return "low-voltage"
	default:
		return "unknown"
	}
}

// Handoff performs the one-way control transfer into the resident
// application. Jump loads the application's initial stack pointer from
// word 0 of the vector table at vectorTable, then branches to the reset
// handler at word 1. Real implementations issue a data-synchronization and
// instruction-synchronization barrier and disable interrupts immediately
// before branching, and never return.
type Handoff interface {
	Jump(vectorTable uint32)
	ResetCause() ResetCause
}

// Platform bundles the primitives the bootloader core depends on. A board
// entry point constructs one concrete Platform and threads it through the
// rest of the wiring; core packages only ever see the interfaces above.
type Platform struct {
	Clock
	ResetTrigger
	InterruptGate
	Handoff
}
