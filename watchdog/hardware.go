package watchdog

// HardwareFeeder is the liveness watchdog peripheral contract: Feed resets
// its countdown, and an unfed watchdog eventually resets the MCU on its
// own.
type HardwareFeeder interface {
	Feed()
}

// Hardware wraps a HardwareFeeder with the "feed only while healthy"
// pattern: the caller marks the system unhealthy on an unrecoverable fault
// and simply stops feeding, letting the watchdog's own timeout perform the
// reset rather than calling Reset directly.
type Hardware struct {
	feeder  HardwareFeeder
	healthy bool
}

// NewHardware wraps feeder, starting in the healthy state.
func NewHardware(feeder HardwareFeeder) *Hardware {
	return &Hardware{feeder: feeder, healthy: true}
}

// Tick feeds the watchdog if the system is still healthy. Call once per
// main-loop iteration.
func (h *Hardware) Tick() {
	if h.healthy {
		h.feeder.Feed()
	}
}

// MarkUnhealthy stops further feeding; the watchdog timeout will reset the
// device on its own.
func (h *Hardware) MarkUnhealthy() {
	h.healthy = false
}

// Healthy reports the current health flag.
func (h *Hardware) Healthy() bool {
	return h.healthy
}
