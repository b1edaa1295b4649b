//go:build !tinygo

package watchdog

import "testing"

func TestInactivity_NotArmedDoesNotTrigger(t *testing.T) {
	w := NewInactivity(500)
	if w.ShouldReset(10_000) {
		t.Fatalf("expected no reset while unarmed")
	}
}

func TestInactivity_ArmedButStartedDoesNotTrigger(t *testing.T) {
	w := NewInactivity(500)
	w.FlashingInit(1000)
	w.FlashingStarted()
	if w.ShouldReset(1000 + 600) {
		t.Fatalf("expected no reset once transfer has started")
	}
}

func TestInactivity_TriggersAfterTimeout(t *testing.T) {
	w := NewInactivity(500)
	w.FlashingInit(1000)
	if w.ShouldReset(1000 + 499) {
		t.Fatalf("expected no reset just before timeout")
	}
	if !w.ShouldReset(1000 + 500) {
		t.Fatalf("expected reset at exactly the timeout")
	}
}

func TestInactivity_SessionControlWhileProgrammingRearms(t *testing.T) {
	w := NewInactivity(500)
	w.FlashingInit(1000)
	w.FlashingInit(1400) // another Session Control received while Programming
	if w.ShouldReset(1400 + 499) {
		t.Fatalf("expected rearmed deadline to reset the window")
	}
	if !w.ShouldReset(1400 + 500) {
		t.Fatalf("expected reset at rearmed timeout")
	}
}

func TestInactivity_DisarmStopsTrigger(t *testing.T) {
	w := NewInactivity(500)
	w.FlashingInit(1000)
	w.Disarm()
	if w.ShouldReset(1000 + 10_000) {
		t.Fatalf("expected disarmed watchdog to never trigger")
	}
}

func TestInactivity_ToleratesClockWraparound(t *testing.T) {
	w := NewInactivity(500)
	nearMax := ^uint32(0) - 100
	w.FlashingInit(nearMax)
	// now wraps past zero; ElapsedMs must still compute the true delta.
	if w.ShouldReset(nearMax + 499) {
		t.Fatalf("expected no reset before timeout across wraparound")
	}
	if !w.ShouldReset(nearMax + 500) {
		t.Fatalf("expected reset at timeout across wraparound")
	}
}

func TestHardware_FeedsWhileHealthy(t *testing.T) {
	feeder := &SimFeeder{}
	h := NewHardware(feeder)
	h.Tick()
	h.Tick()
	if feeder.FeedCount != 2 {
		t.Fatalf("FeedCount = %d, want 2", feeder.FeedCount)
	}
}

func TestHardware_StopsFeedingWhenUnhealthy(t *testing.T) {
	feeder := &SimFeeder{}
	h := NewHardware(feeder)
	h.Tick()
	h.MarkUnhealthy()
	h.Tick()
	h.Tick()
	if feeder.FeedCount != 1 {
		t.Fatalf("FeedCount = %d, want 1 (feeding should have stopped)", feeder.FeedCount)
	}
	if h.Healthy() {
		t.Fatalf("expected Healthy() = false")
	}
}
