package boot

import (
	"log/slog"

	"github.com/gridania/telematic-bootloader/bus"
	"github.com/gridania/telematic-bootloader/flash"
	"github.com/gridania/telematic-bootloader/logging"
	"github.com/gridania/telematic-bootloader/platform"
	"github.com/gridania/telematic-bootloader/uds"
	"github.com/gridania/telematic-bootloader/watchdog"
)

// Bootloader wires the platform, bus transport, flash engine, UDS session,
// and both watchdogs into the single main-loop task described in spec.md
// section 5. Construct one with New, call Init once at power-on, and then
// call Task once per iteration of the board's main loop.
type Bootloader struct {
	Platform   platform.Platform
	Transport  bus.Transport
	Session    *uds.Session
	Engine     *flash.Engine
	Inactivity *watchdog.Inactivity
	Hardware   *watchdog.Hardware
	BusConfig  bus.Config

	// Override, if non-nil, forces staying resident in the bootloader even
	// when the application checksum verifies.
	Override func() bool

	log *slog.Logger
}

// New constructs a Bootloader. log may be nil.
func New(
	plat platform.Platform,
	transport bus.Transport,
	session *uds.Session,
	engine *flash.Engine,
	inactivity *watchdog.Inactivity,
	hardware *watchdog.Hardware,
	busConfig bus.Config,
	log *slog.Logger,
) *Bootloader {
	if log == nil {
		log = logging.Noop()
	}
	return &Bootloader{
		Platform:   plat,
		Transport:  transport,
		Session:    session,
		Engine:     engine,
		Inactivity: inactivity,
		Hardware:   hardware,
		BusConfig:  busConfig,
		log:        log,
	}
}

// Init brings up the bus transport and interrupts, then makes the boot
// decision. It returns (true, nil) if control was handed off to the
// application — the caller must treat a true return as unreachable on real
// hardware, since Jump never returns there; the simulated Platform used by
// tests returns normally so the decision itself stays testable.
func (b *Bootloader) Init(appVectorTable uint32) (jumped bool, err error) {
	if err := b.Transport.Configure(b.BusConfig); err != nil {
		return false, err
	}
	b.Platform.EnableGlobalInterrupts()

	jump, err := Decide(b.Engine, b.Override)
	if err != nil {
		b.log.Warn("boot validity check failed", "err", err)
		return false, nil
	}
	if !jump {
		b.log.Info("application invalid or override held, remaining resident")
		return false, nil
	}

	b.log.Info("application valid, handing off", "vector_table", appVectorTable)
	b.Platform.Jump(appVectorTable)
	return true, nil
}

// Task runs one main-loop iteration: services the hardware watchdog, polls
// the bus for a pending request and dispatches it through the UDS session,
// and checks the inactivity watchdog.
func (b *Bootloader) Task(nowMs uint32) {
	b.Hardware.Tick()

	frame, err := b.Transport.TryReceive()
	if err != nil {
		b.log.Warn("bus receive error", "err", err)
	} else if frame != nil {
		resp := b.Session.Process(frame)
		if resp != nil {
			if err := b.Transport.Transmit(bus.Frame(resp)); err != nil {
				b.log.Warn("bus transmit error", "err", err)
			}
		}
	}

	if b.Inactivity.ShouldReset(nowMs) {
		b.log.Warn("inactivity timeout, resetting")
		b.Platform.Reset()
	}
}
