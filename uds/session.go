package uds

import (
	"log/slog"

	"github.com/gridania/telematic-bootloader/logging"
	"github.com/gridania/telematic-bootloader/platform"
)

func noopLogger() *slog.Logger {
	return logging.Noop()
}

// Notifier receives session lifecycle events the inactivity watchdog cares
// about: a diagnostic session control into Programming, the first byte of an
// actual download request, and the session leaving Programming before the
// transfer completed. The watchdog arms on the first, marks itself started
// on the second, and disarms on the third (spec.md section 4.G).
type Notifier interface {
	FlashingInit()
	FlashingStarted()
	FlashingAborted()
}

type noopNotifier struct{}

func (noopNotifier) FlashingInit()    {}
func (noopNotifier) FlashingStarted() {}
func (noopNotifier) FlashingAborted() {}

// Session implements the diagnostic session state machine: it tracks the
// current SessionState and gates SIDs 0x34/0x36/0x37 on both Programming
// session and unlocked security access, per spec.md section 4.D.
type Session struct {
	current byte

	security *Security
	transfer *Transfer
	reset    platform.ResetTrigger
	notifier Notifier

	log *slog.Logger
}

// NewSession constructs a Session. reset is invoked on an accepted ECU
// reset request; notifier may be nil, in which case session-lifecycle
// events are dropped. log may be nil.
func NewSession(security *Security, transfer *Transfer, reset platform.ResetTrigger, notifier Notifier, log *slog.Logger) *Session {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if log == nil {
		log = noopLogger()
	}
	return &Session{
		current:  SessionDefault,
		security: security,
		transfer: transfer,
		reset:    reset,
		notifier: notifier,
		log:      log,
	}
}

// Reset returns the session to its post-boot state: Default session,
// cleared security and transfer state.
func (s *Session) Reset() {
	s.current = SessionDefault
	s.security.Reset()
	s.transfer.Reset()
}

// Current returns the active SessionState.
func (s *Session) Current() byte {
	return s.current
}

// Security returns the session's Security handler, e.g. so a test harness
// can inject a deterministic SeedGenerator.
func (s *Session) Security() *Security {
	return s.security
}

// Process dispatches one UDS request frame (including its leading SID
// byte) and returns the response frame. An empty response means no reply
// is sent (e.g. a suppressed positive response).
func (s *Session) Process(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}

	sid := data[0]
	body := data[1:]

	if s.current == SessionProgramming {
		switch sid {
		case SIDDiagnosticSessionControl:
			s.notifier.FlashingInit()
		case SIDRequestDownload:
			s.notifier.FlashingStarted()
		}
	}

	switch sid {
	case SIDNegativeResponse:
		// 0x7F is the negative-response marker, never a valid request SID;
		// a tester sending it back at us is not an "unsupported service",
		// it is a malformed request outright.
		s.log.Warn("rejected request echoing the negative-response SID")
		return NegativeResponse(sid, NRCGeneralReject)
	case SIDDiagnosticSessionControl:
		return s.handleSessionControl(body)
	case SIDECUReset:
		return s.handleECUReset(body)
	case SIDSecurityAccess:
		return s.security.Handle(body)
	case SIDTesterPresent:
		return s.handleTesterPresent(body)
	case SIDRequestDownload:
		return s.gatedProgramming(sid, func() []byte { return s.transfer.HandleRequestDownload(body) })
	case SIDTransferData:
		return s.gatedProgramming(sid, func() []byte { return s.transfer.HandleTransferData(body) })
	case SIDRequestTransferExit:
		return s.gatedProgramming(sid, func() []byte { return s.transfer.HandleTransferExit(body) })
	default:
		s.log.Warn("unsupported UDS service", "sid", sid)
		return NegativeResponse(sid, NRCServiceNotSupported)
	}
}

// gatedProgramming runs fn only if the session is Programming and security
// is unlocked, otherwise returning the appropriate negative response. This
// is the one gate SIDs 0x34/0x36/0x37 share.
func (s *Session) gatedProgramming(sid byte, fn func() []byte) []byte {
	if s.current != SessionProgramming {
		return NegativeResponse(sid, NRCConditionsNotCorrect)
	}
	if !s.security.IsUnlocked() {
		return NegativeResponse(sid, NRCSecurityAccessDenied)
	}
	return fn()
}

func (s *Session) handleSessionControl(data []byte) []byte {
	if len(data) == 0 {
		return NegativeResponse(SIDDiagnosticSessionControl, NRCSubFunctionNotSupported)
	}

	sessionType := data[0]
	switch sessionType {
	case SessionDefault, SessionProgramming, SessionExtended:
		leavingProgramming := s.current == SessionProgramming && sessionType != SessionProgramming
		s.current = sessionType
		s.log.Info("session changed", "session", sessionType)
		if sessionType == SessionProgramming {
			s.notifier.FlashingInit()
		}
		if leavingProgramming {
			// Spec requires Session Control (Default) to abort any in-flight
			// transfer; a stale active/blockCounter must not survive into
			// whatever session comes next.
			s.transfer.Reset()
			s.notifier.FlashingAborted()
		}
		return []byte{positiveResponse(SIDDiagnosticSessionControl), sessionType}
	default:
		s.log.Warn("unsupported session type", "session", sessionType)
		return NegativeResponse(SIDDiagnosticSessionControl, NRCSubFunctionNotSupported)
	}
}

func (s *Session) handleECUReset(data []byte) []byte {
	if len(data) == 0 {
		return NegativeResponse(SIDECUReset, NRCSubFunctionNotSupported)
	}

	resetType := data[0]
	switch resetType & 0x7F {
	case ResetHard, ResetSoft:
		var resp []byte
		if resetType&suppressPositiveResponseBit == 0 {
			resp = []byte{positiveResponse(SIDECUReset), resetType & 0x7F}
		}
		s.log.Info("ECU reset requested", "type", resetType&0x7F)
		// Resetting the MCU never returns on real hardware; the response
		// built above only makes it onto the bus if the transport flushes
		// before the reset takes effect, matching the reference behavior.
		if s.reset != nil {
			s.reset.Reset()
		}
		return resp
	default:
		s.log.Warn("unsupported reset type", "type", resetType)
		return NegativeResponse(SIDECUReset, NRCSubFunctionNotSupported)
	}
}

func (s *Session) handleTesterPresent(data []byte) []byte {
	if len(data) == 0 {
		return NegativeResponse(SIDTesterPresent, NRCSubFunctionNotSupported)
	}

	subfunction := data[0]
	if subfunction&0x7F != 0x00 {
		return NegativeResponse(SIDTesterPresent, NRCSubFunctionNotSupported)
	}
	if subfunction&suppressPositiveResponseBit != 0 {
		return nil
	}
	return []byte{positiveResponse(SIDTesterPresent), 0x00}
}
