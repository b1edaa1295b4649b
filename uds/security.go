package uds

import "log/slog"

const securityLevelUnlocked byte = 0x01

// SeedGenerator produces the next seed value for a seed/key challenge. The
// default implementation is a fixed-value placeholder inherited unchanged
// from the reference implementation's own "would be more complex in a real
// implementation" seed generator; production boards must inject a source
// backed by real entropy (a hardware RNG peripheral or a counter mixed with
// an unpredictable timer) before this is fielded.
type SeedGenerator func() uint32

// defaultSeedGenerator reproduces the placeholder algorithm unchanged: XOR
// a constant value with another constant. It is deterministic by design and
// MUST be replaced for any real deployment.
func defaultSeedGenerator() uint32 {
	const timerPlaceholder = 0x12345678
	return timerPlaceholder ^ 0xA5A5A5A5
}

// CalculateKey derives the expected key from a seed: XOR with a fixed
// constant, then rotate right by 3 bits. This is the same placeholder
// algorithm as the seed generator and carries the same production caveat.
func CalculateKey(seed uint32) uint32 {
	key := seed ^ 0x5A5A5A5A
	return (key >> 3) | (key << 29)
}

// Security implements SID 0x27 seed/key security access, including attempt
// throttling. Once FailedAttempts reaches the configured cap, every seed
// and key subfunction is rejected with NRCExceededNumberOfAttempts. Per the
// reference implementation's SecurityState, the cap is never reset except
// by a full reset of the Security value itself (Reset), matching the
// decision that the unlocked state is not cleared on a session transition
// but the attempt counter also does not survive a device reset.
type Security struct {
	Seed SeedGenerator

	unlocked       bool
	failedAttempts uint8
	attemptsCap    uint8
	lastSeed       uint32

	log *slog.Logger
}

// NewSecurity constructs a Security handler with the given attempt cap
// (spec default 3). log may be nil.
func NewSecurity(attemptsCap uint8, log *slog.Logger) *Security {
	if log == nil {
		log = noopLogger()
	}
	return &Security{attemptsCap: attemptsCap, log: log}
}

// Reset clears unlock state and the failed-attempt counter, as performed on
// every boot.
func (s *Security) Reset() {
	s.unlocked = false
	s.failedAttempts = 0
	s.lastSeed = 0
}

// IsUnlocked reports whether SID 0x27 level 1 is currently unlocked.
func (s *Security) IsUnlocked() bool {
	return s.unlocked
}

// Handle dispatches a SID 0x27 request (the bytes after the SID byte).
func (s *Security) Handle(data []byte) []byte {
	if len(data) == 0 {
		return NegativeResponse(SIDSecurityAccess, NRCSubFunctionNotSupported)
	}

	subfunction := data[0]
	if subfunction&0x01 == 0x01 {
		return s.handleSeedRequest(subfunction)
	}
	if len(data) < 5 {
		return NegativeResponse(SIDSecurityAccess, NRCConditionsNotCorrect)
	}
	key := uint32(data[1])<<24 | uint32(data[2])<<16 | uint32(data[3])<<8 | uint32(data[4])
	return s.handleKeyVerification(subfunction, key)
}

func (s *Security) handleSeedRequest(subfunction byte) []byte {
	if subfunction != securityLevelUnlocked {
		return NegativeResponse(SIDSecurityAccess, NRCSubFunctionNotSupported)
	}

	if s.unlocked {
		return []byte{positiveResponse(SIDSecurityAccess), subfunction, 0, 0, 0, 0}
	}

	if s.failedAttempts >= s.attemptsCap {
		return NegativeResponse(SIDSecurityAccess, NRCExceededNumberOfAttempts)
	}

	gen := s.Seed
	if gen == nil {
		gen = defaultSeedGenerator
	}
	s.lastSeed = gen()

	resp := make([]byte, 0, 6)
	resp = append(resp, positiveResponse(SIDSecurityAccess), subfunction)
	resp = append(resp, byte(s.lastSeed>>24), byte(s.lastSeed>>16), byte(s.lastSeed>>8), byte(s.lastSeed))
	return resp
}

func (s *Security) handleKeyVerification(subfunction byte, key uint32) []byte {
	if subfunction != securityLevelUnlocked+1 {
		return NegativeResponse(SIDSecurityAccess, NRCSubFunctionNotSupported)
	}

	if s.unlocked {
		return []byte{positiveResponse(SIDSecurityAccess), subfunction}
	}

	if s.failedAttempts >= s.attemptsCap {
		return NegativeResponse(SIDSecurityAccess, NRCExceededNumberOfAttempts)
	}

	if key == CalculateKey(s.lastSeed) {
		s.unlocked = true
		s.failedAttempts = 0
		s.log.Info("security access unlocked")
		return []byte{positiveResponse(SIDSecurityAccess), subfunction}
	}

	s.failedAttempts++
	s.log.Warn("invalid security key", "attempt", s.failedAttempts, "cap", s.attemptsCap)
	return NegativeResponse(SIDSecurityAccess, NRCInvalidKey)
}
