package uds

import (
	"testing"

	"github.com/gridania/telematic-bootloader/flash"
)

func testTransferSetup(t *testing.T) (*Transfer, *flash.RAMDevice) {
	t.Helper()
	region := flash.Region{
		AppStart:       0x1000,
		FlashEnd:       0x3000,
		EraseBlockSize: 0x100,
		WriteBlockSize: 0x40,
		ChecksumOffset: 0x3F8,
	}
	dev := flash.NewRAMDevice(0x3000, 0x100)
	engine := flash.New(region, dev, nil)
	return NewTransfer(engine, region, 1024, 0x100000, nil), dev
}

func requestDownloadFrame(addr, size uint32) []byte {
	// format byte 0x44: 4-byte address, 4-byte size.
	return []byte{
		0x44,
		byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr),
		byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size),
	}
}

func TestTransfer_RequestDownload_Success(t *testing.T) {
	tr, dev := testTransferSetup(t)

	resp := tr.HandleRequestDownload(requestDownloadFrame(0x1000, 0x200))
	want := []byte{positiveResponse(SIDRequestDownload), 0x10, 0x04, 0x00}
	if string(resp) != string(want) {
		t.Fatalf("resp = % X, want % X", resp, want)
	}
	if !tr.Active() {
		t.Fatalf("expected Active() = true")
	}
	if len(dev.EraseCalls) == 0 {
		t.Fatalf("expected erase to have been called")
	}
}

func TestTransfer_RequestDownload_OutOfRange(t *testing.T) {
	tr, _ := testTransferSetup(t)

	resp := tr.HandleRequestDownload(requestDownloadFrame(0x0F00, 0x200))
	want := NegativeResponse(SIDRequestDownload, NRCRequestOutOfRange)
	if string(resp) != string(want) {
		t.Fatalf("resp = % X, want % X", resp, want)
	}
}

func TestTransfer_RequestDownload_TooShort(t *testing.T) {
	tr, _ := testTransferSetup(t)
	resp := tr.HandleRequestDownload([]byte{0x44, 0x00})
	want := NegativeResponse(SIDRequestDownload, NRCIncorrectMessageLengthOrFormat)
	if string(resp) != string(want) {
		t.Fatalf("resp = % X, want % X", resp, want)
	}
}

func TestTransfer_TransferData_RejectsWithoutActiveDownload(t *testing.T) {
	tr, _ := testTransferSetup(t)
	resp := tr.HandleTransferData([]byte{0x01, 0xAA})
	want := NegativeResponse(SIDTransferData, NRCRequestSequenceError)
	if string(resp) != string(want) {
		t.Fatalf("resp = % X, want % X", resp, want)
	}
}

func TestTransfer_TransferData_SequenceDiscipline(t *testing.T) {
	tr, dev := testTransferSetup(t)
	tr.HandleRequestDownload(requestDownloadFrame(0x1000, 0x10))

	// Wrong block counter (should be 1).
	resp := tr.HandleTransferData([]byte{0x02, 0xAA})
	want := NegativeResponse(SIDTransferData, NRCWrongBlockSequenceCounter)
	if string(resp) != string(want) {
		t.Fatalf("resp = % X, want % X", resp, want)
	}

	// Correct sequence.
	resp = tr.HandleTransferData([]byte{0x01, 0xAA, 0xBB})
	wantOK := []byte{positiveResponse(SIDTransferData), 0x01}
	if string(resp) != string(wantOK) {
		t.Fatalf("resp = % X, want % X", resp, wantOK)
	}

	// Next block must be counter 2.
	resp = tr.HandleTransferData([]byte{0x02, 0xCC})
	wantOK2 := []byte{positiveResponse(SIDTransferData), 0x02}
	if string(resp) != string(wantOK2) {
		t.Fatalf("resp = % X, want % X", resp, wantOK2)
	}

	if resp := tr.HandleTransferExit(nil); resp[0] != positiveResponse(SIDRequestTransferExit) {
		t.Fatalf("transfer exit resp = % X", resp)
	}
	got := dev.Bytes(0x1000, 3)
	wantBytes := []byte{0xAA, 0xBB, 0xCC}
	if string(got) != string(wantBytes) {
		t.Fatalf("flashed bytes = % X, want % X", got, wantBytes)
	}
}

func TestTransfer_TransferData_ExceedsRemainingSize(t *testing.T) {
	tr, _ := testTransferSetup(t)
	tr.HandleRequestDownload(requestDownloadFrame(0x1000, 2))

	resp := tr.HandleTransferData([]byte{0x01, 0xAA, 0xBB, 0xCC})
	want := NegativeResponse(SIDTransferData, NRCRequestOutOfRange)
	if string(resp) != string(want) {
		t.Fatalf("resp = % X, want % X", resp, want)
	}
}

func TestTransfer_TransferExit_RequiresActiveDownload(t *testing.T) {
	tr, _ := testTransferSetup(t)
	resp := tr.HandleTransferExit(nil)
	want := NegativeResponse(SIDRequestTransferExit, NRCRequestSequenceError)
	if string(resp) != string(want) {
		t.Fatalf("resp = % X, want % X", resp, want)
	}
}

func TestTransfer_TransferExit_FinalizesAndClearsActive(t *testing.T) {
	tr, _ := testTransferSetup(t)
	tr.HandleRequestDownload(requestDownloadFrame(0x1000, 0x400))
	tr.HandleTransferData(append([]byte{0x01}, make([]byte, 32)...))

	resp := tr.HandleTransferExit(nil)
	want := []byte{positiveResponse(SIDRequestTransferExit)}
	if string(resp) != string(want) {
		t.Fatalf("resp = % X, want % X", resp, want)
	}
	if tr.Active() {
		t.Fatalf("expected Active() = false after transfer exit")
	}
}
