package flash

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gridania/telematic-bootloader/logging"
)

// Region describes the device memory map: a bootloader zone the engine must
// never touch, and an application zone it is allowed to erase and program.
type Region struct {
	AppStart       uint32
	FlashEnd       uint32
	EraseBlockSize uint32
	WriteBlockSize uint32
	ChecksumOffset uint32 // offset of the checksum word within the app's vector table
}

// contains reports whether [addr, addr+length) lies entirely within the
// application zone [AppStart, FlashEnd).
func (r Region) contains(addr, length uint32) bool {
	if length == 0 {
		return addr >= r.AppStart && addr <= r.FlashEnd
	}
	end := addr + length
	if end < addr {
		return false // overflow
	}
	return addr >= r.AppStart && end <= r.FlashEnd
}

// Errors returned by Engine operations. Each is terminal for the current
// transfer; the caller (the transfer manager) is responsible for mapping
// these onto a UDS negative response while leaving the session open.
var (
	ErrInvalidAddress = errors.New("flash: invalid address")
	ErrWrite          = errors.New("flash: write failed")
	ErrErase          = errors.New("flash: erase failed")
	ErrVerification   = errors.New("flash: verification failed")
)

// block is the single live write-through buffer.
type block struct {
	base uint32
	data []byte
}

// Engine implements the block-buffered program engine, address-range
// policing, and checksum seal/verify described for the flash write path.
// It holds at most one live write buffer at a time.
type Engine struct {
	region Region
	dev    Device
	log    *slog.Logger

	buf *block
}

// New constructs an Engine bound to region and backed by dev. log may be
// nil, in which case logging is a no-op.
func New(region Region, dev Device, log *slog.Logger) *Engine {
	if log == nil {
		log = logging.Noop()
	}
	return &Engine{region: region, dev: dev, log: log}
}

// Erase erases every device sector overlapping [address, address+length).
func (e *Engine) Erase(address, length uint32) error {
	if !e.region.contains(address, length) {
		return fmt.Errorf("%w: erase [0x%08X, len %d) escapes application zone", ErrInvalidAddress, address, length)
	}
	if length == 0 {
		return nil
	}
	blockSize := e.region.EraseBlockSize
	firstSector := address / blockSize
	lastSector := (address + length - 1) / blockSize
	for sector := firstSector; sector <= lastSector; sector++ {
		sectorAddr := sector * blockSize
		if err := e.dev.EraseSector(sectorAddr); err != nil {
			e.log.Error("flash erase failed", "addr", sectorAddr, "err", err)
			return fmt.Errorf("%w: sector 0x%08X: %v", ErrErase, sectorAddr, err)
		}
	}
	return nil
}

// Write appends data starting at address to the single-slot write-through
// buffer, flushing and re-materializing the buffer as the address crosses
// write-block windows. Zero-length writes succeed without allocating a
// buffer.
func (e *Engine) Write(address uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !e.region.contains(address, uint32(len(data))) {
		return fmt.Errorf("%w: write [0x%08X, len %d) escapes application zone", ErrInvalidAddress, address, len(data))
	}

	for len(data) > 0 {
		windowBase := e.windowBase(address)
		if e.buf == nil || e.buf.base != windowBase {
			if err := e.flush(); err != nil {
				return err
			}
			if err := e.materialize(windowBase); err != nil {
				return err
			}
		}

		offsetInWindow := address - windowBase
		room := e.region.WriteBlockSize - offsetInWindow
		n := uint32(len(data))
		if n > room {
			n = room
		}
		copy(e.buf.data[offsetInWindow:offsetInWindow+n], data[:n])

		address += n
		data = data[n:]

		if offsetInWindow+n == e.region.WriteBlockSize {
			if err := e.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) windowBase(address uint32) uint32 {
	return address - address%e.region.WriteBlockSize
}

// materialize reads the current device contents of the write-block window
// at windowBase into a fresh buffer, giving read-modify-write semantics for
// bytes outside the slice about to be written.
func (e *Engine) materialize(windowBase uint32) error {
	data := make([]byte, e.region.WriteBlockSize)
	if err := e.dev.ReadBlock(windowBase, data); err != nil {
		return fmt.Errorf("%w: read-modify-write fetch at 0x%08X: %v", ErrWrite, windowBase, err)
	}
	e.buf = &block{base: windowBase, data: data}
	return nil
}

// flush programs the live buffer to the device, if one exists.
func (e *Engine) flush() error {
	if e.buf == nil {
		return nil
	}
	buf := e.buf
	e.buf = nil
	if err := e.dev.ProgramBlock(buf.base, buf.data); err != nil {
		e.log.Error("flash program failed", "addr", buf.base, "err", err)
		return fmt.Errorf("%w: block 0x%08X: %v", ErrWrite, buf.base, err)
	}
	return nil
}

// Finalize flushes any residual buffer. Idempotent after the first success,
// since a successful flush clears the buffer.
func (e *Engine) Finalize() error {
	return e.flush()
}

// WriteChecksum reads the first eight 32-bit little-endian words of the
// application vector table, computes the two's-complement of the sum of
// the first seven, and writes it as the four-byte little-endian checksum
// word at AppStart + ChecksumOffset. It flushes the write-through buffer
// before returning, so the checksum word is committed to the device rather
// than left sitting in the single-slot buffer for a caller to lose.
func (e *Engine) WriteChecksum() error {
	words := make([]byte, 32)
	if err := e.dev.ReadBlock(e.region.AppStart, words); err != nil {
		return fmt.Errorf("%w: reading vector table: %v", ErrWrite, err)
	}

	var sum uint32
	for i := 0; i < 7; i++ {
		sum += le32(words[i*4 : i*4+4])
	}
	cs := ^sum + 1 // two's complement

	csBytes := []byte{byte(cs), byte(cs >> 8), byte(cs >> 16), byte(cs >> 24)}
	if err := e.Write(e.region.AppStart+e.region.ChecksumOffset, csBytes); err != nil {
		return err
	}
	return e.Finalize()
}

// VerifyChecksum recomputes the additive sum of the first seven vector-table
// words plus the stored checksum word and reports whether it equals zero.
func (e *Engine) VerifyChecksum() (bool, error) {
	words := make([]byte, 32)
	if err := e.dev.ReadBlock(e.region.AppStart, words); err != nil {
		return false, fmt.Errorf("%w: reading vector table: %v", ErrVerification, err)
	}
	csWord := make([]byte, 4)
	if err := e.dev.ReadBlock(e.region.AppStart+e.region.ChecksumOffset, csWord); err != nil {
		return false, fmt.Errorf("%w: reading checksum word: %v", ErrVerification, err)
	}

	var sum uint32
	for i := 0; i < 7; i++ {
		sum += le32(words[i*4 : i*4+4])
	}
	sum += le32(csWord)
	return sum == 0, nil
}

// ChecksumRange computes the two's-complement running checksum over
// [addr, addr+length) for diagnostic use outside the boot-validity path,
// e.g. a tester command that wants to spot-check a region it just flashed.
// length must be a multiple of 4.
func (e *Engine) ChecksumRange(addr, length uint32) (uint32, error) {
	if length%4 != 0 {
		return 0, fmt.Errorf("%w: checksum range length %d not word-aligned", ErrInvalidAddress, length)
	}
	buf := make([]byte, length)
	if err := e.dev.ReadBlock(addr, buf); err != nil {
		return 0, fmt.Errorf("%w: reading range: %v", ErrVerification, err)
	}
	var sum uint32
	for i := uint32(0); i < length; i += 4 {
		sum += le32(buf[i : i+4])
	}
	return ^sum + 1, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
