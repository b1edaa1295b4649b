//go:build !tinygo

package bus

// Sim is a loopback Transport backed by an Inbox, used by the boot
// package's end-to-end tests. A test deposits frames
// with Inject (standing in for the ISR) and inspects transmitted frames via
// Sent(); the FSM under test only ever sees the Transport interface.
type Sim struct {
	cfg       Config
	inbox     Inbox
	sent      []Frame
	configured bool

	// FailTx, if set, makes the next Transmit fail with that error kind
	// instead of recording the frame, to exercise spec.md's "transport
	// errors are silently dropped at the core layer" rule.
	FailTx *ErrorKind
	// BusOff, if true, makes TryReceive report a bus-off condition.
	BusOff bool
}

// NewSim constructs an unconfigured simulated transport.
func NewSim() *Sim {
	return &Sim{}
}

func (s *Sim) Configure(cfg Config) error {
	s.cfg = cfg
	s.configured = true
	return nil
}

// Inject stands in for the ISR depositing a received frame. It returns
// false if the single-slot inbox was still occupied (overrun).
func (s *Sim) Inject(f Frame) bool {
	return s.inbox.Deposit(f)
}

func (s *Sim) TryReceive() (Frame, error) {
	if !s.configured {
		return nil, &Error{Kind: NotInitialized}
	}
	if s.BusOff {
		return nil, &Error{Kind: BusOff}
	}
	if s.inbox.Overruns() > 0 {
		return nil, &Error{Kind: Overrun}
	}
	f, ok := s.inbox.Claim()
	if !ok {
		return nil, nil
	}
	return f, nil
}

func (s *Sim) Transmit(f Frame) error {
	if !s.configured {
		return &Error{Kind: NotInitialized}
	}
	if s.FailTx != nil {
		kind := *s.FailTx
		s.FailTx = nil
		return &Error{Kind: kind}
	}
	cp := make(Frame, len(f))
	copy(cp, f)
	s.sent = append(s.sent, cp)
	return nil
}

// Sent returns every frame transmitted so far, in order.
func (s *Sim) Sent() []Frame {
	return s.sent
}

// LastSent returns the most recently transmitted frame, or nil if none.
func (s *Sim) LastSent() Frame {
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}

// ClearSent discards the transmit history, letting a test isolate the
// frame(s) produced by the next request.
func (s *Sim) ClearSent() {
	s.sent = nil
}

var _ Transport = (*Sim)(nil)
