//go:build tinygo

package bus

// RawCAN is the byte-buffer sink/source contract spec.md section 1 assigns
// to the CAN frame-level driver: this package depends only on this shape
// and never configures mailboxes, filters, or bus timing itself — that is
// the external collaborator's job, matching original_source's own
// communication/can.rs, which stubs out register-level configuration
// behind the same kind of init()/transmit()/receive() trio.
type RawCAN interface {
	Init(bitrateBps uint32) error
	// TryPop returns a received frame's 29-bit extended ID and payload, or
	// ok=false if nothing is pending.
	TryPop() (id uint32, data []byte, ok bool)
	// Push enqueues a frame for transmission with the given 29-bit
	// extended ID. Any bound on how long Push blocks is the driver's own:
	// CANTransport passes only the bitrate to Init, never
	// Config.TxTimeoutMs.
	Push(id uint32, data []byte) error
}

// CANTransport adapts a RawCAN driver to the Transport contract, filtering
// incoming frames by RequestID and stamping outgoing frames with
// ResponseID.
type CANTransport struct {
	raw RawCAN
	cfg Config
}

// NewCANTransport wraps raw in a Transport. raw is expected to already be
// constructed for the target MCU's CAN peripheral; this type only calls
// Init/TryPop/Push on it.
func NewCANTransport(raw RawCAN) *CANTransport {
	return &CANTransport{raw: raw}
}

func (c *CANTransport) Configure(cfg Config) error {
	c.cfg = cfg
	return c.raw.Init(cfg.BitrateBps)
}

func (c *CANTransport) TryReceive() (Frame, error) {
	id, data, ok := c.raw.TryPop()
	if !ok {
		return nil, nil
	}
	if id != c.cfg.RequestID {
		// Not addressed to us; drop silently and let the next tick poll
		// again, matching spec.md's "no retry policy at this layer".
		return nil, nil
	}
	return Frame(data), nil
}

func (c *CANTransport) Transmit(f Frame) error {
	return c.raw.Push(c.cfg.ResponseID, f)
}

var _ Transport = (*CANTransport)(nil)
