package uds

import (
	"log/slog"

	"github.com/gridania/telematic-bootloader/flash"
)

// Transfer implements SIDs 0x34 (Request Download), 0x36 (Transfer Data),
// and 0x37 (Request Transfer Exit), enforcing the sequence-counter
// discipline and address-range policing that sit in front of the flash
// engine.
type Transfer struct {
	engine          *flash.Engine
	region          flash.Region
	maxBlockSize    uint32
	maxDownloadSize uint32

	active       bool
	address      uint32
	remaining    uint32
	blockCounter uint8

	log *slog.Logger
}

// NewTransfer constructs a Transfer bound to engine, enforcing region's
// address limits and the given max block/download sizes (spec defaults:
// 1024 B block, 1 MiB total).
func NewTransfer(engine *flash.Engine, region flash.Region, maxBlockSize, maxDownloadSize uint32, log *slog.Logger) *Transfer {
	if log == nil {
		log = noopLogger()
	}
	return &Transfer{engine: engine, region: region, maxBlockSize: maxBlockSize, maxDownloadSize: maxDownloadSize, log: log}
}

// Reset clears transfer state, as performed on every boot and whenever the
// session drops out of Programming.
func (t *Transfer) Reset() {
	t.active = false
	t.address = 0
	t.remaining = 0
	t.blockCounter = 0
}

// Active reports whether a download sequence is in progress.
func (t *Transfer) Active() bool {
	return t.active
}

// HandleRequestDownload processes SID 0x34 data (bytes after the SID byte).
func (t *Transfer) HandleRequestDownload(data []byte) []byte {
	if len(data) < 3 {
		return NegativeResponse(SIDRequestDownload, NRCIncorrectMessageLengthOrFormat)
	}

	format := data[0]
	addrLen := int(format>>4) & 0x0F
	sizeLen := int(format) & 0x0F
	if len(data) < 1+addrLen+sizeLen {
		return NegativeResponse(SIDRequestDownload, NRCIncorrectMessageLengthOrFormat)
	}

	var address uint32
	for i := 0; i < addrLen; i++ {
		address = address<<8 | uint32(data[1+i])
	}
	var size uint32
	for i := 0; i < sizeLen; i++ {
		size = size<<8 | uint32(data[1+addrLen+i])
	}

	if !t.validateRange(address, size) {
		return NegativeResponse(SIDRequestDownload, NRCRequestOutOfRange)
	}

	if err := t.engine.Erase(address, size); err != nil {
		t.log.Warn("flash erase failed", "err", err)
		return NegativeResponse(SIDRequestDownload, NRCGeneralProgrammingFailure)
	}

	t.address = address
	t.remaining = size
	t.blockCounter = 0
	t.active = true
	t.log.Info("download request", "addr", address, "size", size)

	return []byte{
		positiveResponse(SIDRequestDownload),
		0x10, // lengthFormatIdentifier; the max block size follows as two bytes
		byte(t.maxBlockSize >> 8),
		byte(t.maxBlockSize),
	}
}

// HandleTransferData processes SID 0x36 data.
func (t *Transfer) HandleTransferData(data []byte) []byte {
	if !t.active {
		return NegativeResponse(SIDTransferData, NRCRequestSequenceError)
	}
	if len(data) == 0 {
		return NegativeResponse(SIDTransferData, NRCIncorrectMessageLengthOrFormat)
	}

	blockCounter := data[0]
	if blockCounter != t.blockCounter+1 {
		t.log.Warn("block sequence error", "expected", t.blockCounter+1, "received", blockCounter)
		return NegativeResponse(SIDTransferData, NRCWrongBlockSequenceCounter)
	}

	payload := data[1:]
	if uint32(len(payload)) > t.remaining {
		return NegativeResponse(SIDTransferData, NRCRequestOutOfRange)
	}

	// The checksum slot is reserved for WriteChecksum at transfer exit.
	// Payload bytes that land on it are programmed as 0xFF, leaving the slot
	// erased so the checksum is later programmed onto erased flash.
	if slot := t.region.AppStart + t.region.ChecksumOffset; t.address < slot+4 && t.address+uint32(len(payload)) > slot {
		payload = append([]byte(nil), payload...)
		for i := range payload {
			if a := t.address + uint32(i); a >= slot && a < slot+4 {
				payload[i] = 0xFF
			}
		}
	}

	if err := t.engine.Write(t.address, payload); err != nil {
		t.log.Warn("flash write failed", "err", err)
		return NegativeResponse(SIDTransferData, NRCGeneralProgrammingFailure)
	}

	t.address += uint32(len(payload))
	t.remaining -= uint32(len(payload))
	t.blockCounter = blockCounter

	return []byte{positiveResponse(SIDTransferData), blockCounter}
}

// HandleTransferExit processes SID 0x37 data.
func (t *Transfer) HandleTransferExit(data []byte) []byte {
	if !t.active {
		return NegativeResponse(SIDRequestTransferExit, NRCRequestSequenceError)
	}

	if err := t.engine.Finalize(); err != nil {
		t.log.Warn("flash finalize failed", "err", err)
		return NegativeResponse(SIDRequestTransferExit, NRCGeneralProgrammingFailure)
	}
	if err := t.engine.WriteChecksum(); err != nil {
		t.log.Warn("checksum write failed", "err", err)
		return NegativeResponse(SIDRequestTransferExit, NRCGeneralProgrammingFailure)
	}

	t.active = false
	return []byte{positiveResponse(SIDRequestTransferExit)}
}

// validateRange reports whether [address, address+size) is within bounds
// for a single download (size cap, overflow, and the flash region's
// application zone).
func (t *Transfer) validateRange(address, size uint32) bool {
	if size > t.maxDownloadSize {
		return false
	}
	end := address + size
	if end < address {
		return false
	}
	return address >= t.region.AppStart && end <= t.region.FlashEnd
}
