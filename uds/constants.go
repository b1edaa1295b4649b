// Package uds implements the wire-level diagnostic programming protocol: a
// service dispatcher gated by session state and security access, backing
// the session FSM, security access, and transfer manager pieces of the
// bootloader core.
package uds

// Service IDs. SIDCommunicationControl is not dispatched by Session.Process
// (this bootloader never needs to mute bus traffic during a flash), kept
// here so the SID table reads complete against ISO 14229.
const (
	SIDDiagnosticSessionControl byte = 0x10
	SIDECUReset                 byte = 0x11
	SIDSecurityAccess           byte = 0x27
	SIDCommunicationControl     byte = 0x28
	SIDTesterPresent            byte = 0x3E
	SIDRequestDownload          byte = 0x34
	SIDTransferData             byte = 0x36
	SIDRequestTransferExit      byte = 0x37
	SIDNegativeResponse         byte = 0x7F
)

// RspPositive is added to a request SID to form its positive response SID.
const RspPositive byte = 0x40

// Negative response codes. A few (NRCTransferDataSuspended,
// NRCResponsePending) round out the table for services this bootloader
// doesn't implement or never needs to suspend/delay; they document the
// protocol rather than appear in a return statement.
const (
	NRCGeneralReject                  byte = 0x10
	NRCServiceNotSupported            byte = 0x11
	NRCSubFunctionNotSupported        byte = 0x12
	NRCIncorrectMessageLengthOrFormat byte = 0x13
	NRCConditionsNotCorrect           byte = 0x22
	NRCRequestSequenceError           byte = 0x24
	NRCRequestOutOfRange              byte = 0x31
	NRCSecurityAccessDenied           byte = 0x33
	NRCInvalidKey                     byte = 0x35
	NRCExceededNumberOfAttempts       byte = 0x36
	NRCTransferDataSuspended          byte = 0x71
	NRCGeneralProgrammingFailure      byte = 0x72
	NRCWrongBlockSequenceCounter      byte = 0x73
	NRCResponsePending                byte = 0x78
)

// Diagnostic session types.
const (
	SessionDefault     byte = 0x01
	SessionProgramming byte = 0x02
	SessionExtended    byte = 0x03
)

// ECU reset subfunctions. Only ResetHard and ResetSoft are accepted by
// handleECUReset; the rest are listed for table completeness against the
// ISO 14229 subfunction range and fall through to NRCSubFunctionNotSupported.
const (
	ResetHard                      byte = 0x01
	ResetKeyOffOn                  byte = 0x02
	ResetSoft                      byte = 0x03
	ResetEnableRapidPowerShutdown  byte = 0x04
	ResetDisableRapidPowerShutdown byte = 0x05
)

// suppressPositiveResponseBit marks a subfunction as not expecting a reply.
const suppressPositiveResponseBit byte = 0x80
