// Package boot implements the top-level boot decision, the application
// hand-off, and the main-loop task that ties the bus transport, UDS
// session, and watchdogs together (spec.md sections 4.G and 5).
package boot

import "github.com/gridania/telematic-bootloader/flash"

// Decide consults engine's stored checksum and reports whether the
// application is valid. The reference design has no "stay in bootloader"
// override and always jumps when the checksum verifies; override, when
// non-nil, is consulted first and can force staying resident (e.g. a board
// button held at reset) without altering that default.
func Decide(engine *flash.Engine, override func() bool) (jump bool, err error) {
	if override != nil && override() {
		return false, nil
	}
	ok, err := engine.VerifyChecksum()
	if err != nil {
		return false, err
	}
	return ok, nil
}
