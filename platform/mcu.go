//go:build tinygo

package platform

import (
	"device/arm"
	"machine"
	"unsafe"
)

// MCU is the real Cortex-M platform. Register addresses are board-specific.
// NewMCU sets AIRCR to the address shared by every Cortex-M core and leaves
// ResetCauseReg 0. A board with a different MCU family overrides AIRCR
// before use.
type MCU struct {
	// AIRCR is the Application Interrupt and Reset Control Register used to
	// request a system reset (write VECTKEY | SYSRESETREQ).
	AIRCR uintptr
	// ResetCauseReg, if non-zero when the cause is classified, is read to
	// classify ResetCause(); original_source/src/drivers/power.rs reads the
	// equivalent RCM_SRS register. Left 0 reports ResetCauseUnknown. NewMCU
	// classifies the cause before returning, while this field is still 0,
	// so an MCU built by NewMCU reports ResetCauseUnknown; setting the field
	// afterwards does not change the reported cause.
	ResetCauseReg uintptr

	cause ResetCause
}

const (
	aircrVectKey      = 0x05FA0000
	aircrSysResetReq  = 1 << 2
	defaultAIRCR      = 0xE000ED0C
)

// NewMCU constructs the default Cortex-M platform using the standard AIRCR
// address shared by every Cortex-M core.
func NewMCU() *MCU {
	m := &MCU{AIRCR: defaultAIRCR}
	m.cause = m.detectResetCause()
	return m
}

func (m *MCU) detectResetCause() ResetCause {
	if m.ResetCauseReg == 0 {
		return ResetCauseUnknown
	}
	v := volatileRead32(m.ResetCauseReg)
	switch {
	case v&(1<<0) != 0:
		return ResetCausePowerOn
	case v&(1<<1) != 0:
		return ResetCauseLowVoltage
	case v&(1<<2) != 0:
		return ResetCauseWatchdog
	case v&(1<<3) != 0:
		return ResetCauseExternal
	case v&(1<<4) != 0:
		return ResetCauseSoftware
	case v&(1<<5) != 0:
		return ResetCauseLockup
	case v&(1<<6) != 0:
		return ResetCauseJTAG
	default:
		return ResetCauseUnknown
	}
}

func (m *MCU) NowMs() uint32 {
	return uint32(machine.GetSystemTicks() / 1000)
}

// Reset triggers SYSRESETREQ. Never returns.
func (m *MCU) Reset() {
	barrier()
	volatileWrite32(m.AIRCR, aircrVectKey|aircrSysResetReq)
	barrier()
	for {
		arm.Asm("wfi")
	}
}

func (m *MCU) EnableGlobalInterrupts() {
	arm.EnableInterrupts()
}

func (m *MCU) ResetCause() ResetCause {
	return m.cause
}

// Jump loads the application's initial stack pointer from word 0 of the
// vector table and branches to the reset handler at word 1. Never returns.
func (m *MCU) Jump(vectorTable uint32) {
	sp := volatileRead32(uintptr(vectorTable))
	pc := volatileRead32(uintptr(vectorTable) + 4)

	arm.DisableInterrupts()
	barrier()
	jumpTo(sp, pc)
	// Unreachable: jumpTo never returns.
	for {
		arm.Asm("wfi")
	}
}

func barrier() {
	arm.Asm("dsb 0xF")
	arm.Asm("isb 0xF")
}

func volatileRead32(addr uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(addr))
}

func volatileWrite32(addr uintptr, v uint32) {
	*(*uint32)(unsafe.Pointer(addr)) = v
}

// jumpTo sets the main stack pointer to sp and branches to pc. Implemented
// in assembly (platform_jump_tinygo.s in a real board package); declared
// here so this file documents the contract without depending on the
// assembler, which is out of scope per spec.md section 1.
func jumpTo(sp, pc uint32)

var _ Clock = (*MCU)(nil)
var _ ResetTrigger = (*MCU)(nil)
var _ InterruptGate = (*MCU)(nil)
var _ Handoff = (*MCU)(nil)
