//go:build !tinygo

package boot

import (
	"testing"

	"github.com/gridania/telematic-bootloader/bus"
	"github.com/gridania/telematic-bootloader/flash"
	"github.com/gridania/telematic-bootloader/platform"
	"github.com/gridania/telematic-bootloader/uds"
	"github.com/gridania/telematic-bootloader/watchdog"
)

func testRegion() flash.Region {
	return flash.Region{
		AppStart:       0x1000,
		FlashEnd:       0x3000,
		EraseBlockSize: 0x100,
		WriteBlockSize: 0x40,
		ChecksumOffset: 0x3F8,
	}
}

func TestDecide_JumpsWhenChecksumValid(t *testing.T) {
	region := testRegion()
	dev := flash.NewRAMDevice(0x3000, 0x100)
	engine := flash.New(region, dev, nil)

	if err := engine.Erase(region.AppStart, 0x400); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	dev.SeedVectorTable(region.AppStart, []uint32{1, 2, 3, 4, 5, 6, 7, 0})
	if err := engine.WriteChecksum(); err != nil {
		t.Fatalf("WriteChecksum: %v", err)
	}
	if err := engine.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	jump, err := Decide(engine, nil)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !jump {
		t.Fatalf("expected jump = true for a valid checksum")
	}
}

func TestDecide_StaysResidentWhenChecksumInvalid(t *testing.T) {
	region := testRegion()
	dev := flash.NewRAMDevice(0x3000, 0x100)
	engine := flash.New(region, dev, nil)
	// Never written: vector table and checksum slot are both 0xFF.

	jump, err := Decide(engine, nil)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if jump {
		t.Fatalf("expected jump = false for an unwritten application")
	}
}

func TestDecide_OverrideForcesResident(t *testing.T) {
	region := testRegion()
	dev := flash.NewRAMDevice(0x3000, 0x100)
	engine := flash.New(region, dev, nil)
	engine.Erase(region.AppStart, 0x400)
	dev.SeedVectorTable(region.AppStart, []uint32{1, 2, 3, 4, 5, 6, 7, 0})
	engine.WriteChecksum()
	engine.Finalize()

	jump, err := Decide(engine, func() bool { return true })
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if jump {
		t.Fatalf("expected override to force staying resident")
	}
}

// setupBootloader builds a fully wired Bootloader over simulated platform,
// bus, and flash, mirroring scenario S2's full reflash sequence.
func setupBootloader(t *testing.T) (*Bootloader, *bus.Sim, *platform.Sim, *flash.RAMDevice) {
	t.Helper()
	region := testRegion()
	dev := flash.NewRAMDevice(0x3000, 0x100)
	engine := flash.New(region, dev, nil)
	sec := uds.NewSecurity(3, nil)
	transfer := uds.NewTransfer(engine, region, 1024, 0x100000, nil)
	plat := platform.NewSim()
	inactivity := watchdog.NewInactivity(500)
	notifier := watchdog.NewNotifier(inactivity, plat)
	session := uds.NewSession(sec, transfer, plat, notifier, nil)
	hardware := watchdog.NewHardware(&watchdog.SimFeeder{})
	sim := bus.NewSim()
	transport := bus.NewISOTPTransport(sim)

	busCfg := bus.Config{RequestID: 0x80000148, ResponseID: 0x800007E1, BitrateBps: 250_000, TxTimeoutMs: 50}
	bl := New(platform.Platform{Clock: plat, ResetTrigger: plat, InterruptGate: plat, Handoff: plat}, transport, session, engine, inactivity, hardware, busCfg, nil)
	return bl, sim, plat, dev
}

// lastSentMessage reassembles the most recently transmitted raw frame(s)
// back into the plain UDS response bytes Session.Process produced, undoing
// the ISO-TP segmentation Transmit applies on the way out.
func lastSentMessage(t *testing.T, transport *bus.Sim) []byte {
	t.Helper()
	var r bus.Reassembler
	for _, raw := range transport.Sent() {
		msg, complete, err := r.Feed(raw)
		if err != nil {
			t.Fatalf("reassemble sent frame: %v", err)
		}
		if complete {
			return msg
		}
	}
	t.Fatalf("no complete message among sent frames")
	return nil
}

func TestBootloader_S2_FullReflash(t *testing.T) {
	bl, transport, plat, dev := setupBootloader(t)

	if _, err := bl.Init(0x9999); err != nil {
		t.Fatalf("Init: %v", err)
	}

	send := func(frame []byte) {
		transport.ClearSent()
		for _, raw := range bus.EncodeISOTP(frame) {
			transport.Inject(raw)
			bl.Task(plat.NowMs())
		}
	}

	send([]byte{uds.SIDDiagnosticSessionControl, uds.SessionProgramming})
	if got := lastSentMessage(t, transport); string(got) != string([]byte{0x50, 0x02}) {
		t.Fatalf("session control resp = % X, want 50 02", got)
	}

	bl.Session.Security().Seed = func() uint32 { return 0x01020304 }
	send([]byte{uds.SIDSecurityAccess, 0x01})
	seedResp := lastSentMessage(t, transport)
	if seedResp[0] != 0x67 {
		t.Fatalf("seed resp = % X", seedResp)
	}
	seed := uint32(seedResp[2])<<24 | uint32(seedResp[3])<<16 | uint32(seedResp[4])<<8 | uint32(seedResp[5])
	key := uds.CalculateKey(seed)
	send([]byte{uds.SIDSecurityAccess, 0x02, byte(key >> 24), byte(key >> 16), byte(key >> 8), byte(key)})
	if got := lastSentMessage(t, transport); string(got) != string([]byte{0x67, 0x02}) {
		t.Fatalf("key resp = % X, want 67 02", got)
	}

	// Request download: 0x400 bytes at app_start.
	send([]byte{uds.SIDRequestDownload, 0x44, 0, 0, 0x10, 0, 0, 0, 0x04, 0x00})
	if got := lastSentMessage(t, transport); string(got) != string([]byte{0x74, 0x10, 0x04, 0x00}) {
		t.Fatalf("request download resp = % X, want 74 10 04 00", got)
	}

	payload := make([]byte, 0x400)
	for i := range payload {
		payload[i] = byte(i)
	}
	// Seed a valid vector table as the first 32 bytes of the payload so the
	// checksum write at transfer exit has something real to work with.
	vectorWords := []uint32{0x20001000, 0x00001101, 0x11111111, 0x22222222, 0x33333333, 0x44444444, 0x55555555, 0}
	for i, w := range vectorWords {
		off := i * 4
		payload[off] = byte(w)
		payload[off+1] = byte(w >> 8)
		payload[off+2] = byte(w >> 16)
		payload[off+3] = byte(w >> 24)
	}

	const chunkSize = 256
	seq := byte(1)
	for off := 0; off < len(payload); off += chunkSize {
		end := off + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		frame := append([]byte{uds.SIDTransferData, seq}, payload[off:end]...)
		send(frame)
		want := []byte{0x76, seq}
		if got := lastSentMessage(t, transport); string(got) != string(want) {
			t.Fatalf("transfer data resp at seq %d = % X, want % X", seq, got, want)
		}
		seq++
	}

	send([]byte{uds.SIDRequestTransferExit})
	if got := lastSentMessage(t, transport); string(got) != string([]byte{0x77}) {
		t.Fatalf("transfer exit resp = % X, want 77", got)
	}

	send([]byte{uds.SIDECUReset, uds.ResetHard})
	if got := lastSentMessage(t, transport); string(got) != string([]byte{0x51, 0x01}) {
		t.Fatalf("ecu reset resp = % X, want 51 01", got)
	}
	if plat.ResetCount() != 1 {
		t.Fatalf("ResetCount() = %d, want 1", plat.ResetCount())
	}

	// Everything outside the checksum word matches the submitted payload
	// exactly; the checksum word itself was overwritten by WriteChecksum
	// during transfer exit, so it is checked separately via VerifyChecksum.
	checksumOff := 0x3F8
	got := dev.Bytes(0x1000, checksumOff)
	if string(got) != string(payload[:checksumOff]) {
		t.Fatalf("flashed image mismatch before checksum word")
	}
	got = dev.Bytes(0x1000+uint32(checksumOff)+4, len(payload)-checksumOff-4)
	if string(got) != string(payload[checksumOff+4:]) {
		t.Fatalf("flashed image mismatch after checksum word")
	}

	ok, err := bl.Engine.VerifyChecksum()
	if err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}
	if !ok {
		t.Fatalf("expected sealed image to verify after reflash")
	}
}

func TestBootloader_S6_InactivityResetsAfterTimeout(t *testing.T) {
	bl, transport, plat, _ := setupBootloader(t)
	if _, err := bl.Init(0x9999); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, raw := range bus.EncodeISOTP([]byte{uds.SIDDiagnosticSessionControl, uds.SessionProgramming}) {
		transport.Inject(raw)
	}
	bl.Task(plat.NowMs())

	plat.Advance(499)
	bl.Task(plat.NowMs())
	if plat.ResetCount() != 0 {
		t.Fatalf("expected no reset before 500ms elapsed")
	}

	plat.Advance(1)
	bl.Task(plat.NowMs())
	if plat.ResetCount() != 1 {
		t.Fatalf("expected reset once the 500ms inactivity window elapses")
	}
}

func TestBootloader_S4_OutOfRangeDownloadRejectedNoErase(t *testing.T) {
	bl, transport, plat, dev := setupBootloader(t)
	if _, err := bl.Init(0x9999); err != nil {
		t.Fatalf("Init: %v", err)
	}

	inject := func(frame []byte) {
		for _, raw := range bus.EncodeISOTP(frame) {
			transport.Inject(raw)
			bl.Task(plat.NowMs())
		}
	}

	inject([]byte{uds.SIDDiagnosticSessionControl, uds.SessionProgramming})
	bl.Session.Security().Seed = func() uint32 { return 42 }
	inject([]byte{uds.SIDSecurityAccess, 0x01})
	key := uds.CalculateKey(42)
	inject([]byte{uds.SIDSecurityAccess, 0x02, byte(key >> 24), byte(key >> 16), byte(key >> 8), byte(key)})

	transport.ClearSent()
	inject([]byte{uds.SIDRequestDownload, 0x44, 0, 0, 0, 0, 0, 0, 0x01, 0x00})

	want := []byte{0x7F, uds.SIDRequestDownload, uds.NRCRequestOutOfRange}
	if got := lastSentMessage(t, transport); string(got) != string(want) {
		t.Fatalf("resp = % X, want % X", got, want)
	}
	if len(dev.EraseCalls) != 0 {
		t.Fatalf("expected no erase calls for an out-of-range download, got %v", dev.EraseCalls)
	}
}
