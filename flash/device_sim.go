//go:build !tinygo

package flash

import "fmt"

// RAMDevice is a byte-slice-backed Device used by every test. It honors
// real NOR-flash semantics: EraseSector sets a sector to all-0xFF, and
// ProgramBlock may only clear bits (AND semantics), so a test that forgets
// to erase before writing observes the same corruption a real part would
// produce instead of silently succeeding.
type RAMDevice struct {
	mem        []byte
	eraseSize  uint32
	EraseCalls []uint32 // sector-aligned addresses passed to EraseSector, in order
	FailErase  map[uint32]bool
	FailWrite  map[uint32]bool
}

// NewRAMDevice creates a RAMDevice of size bytes, pre-erased to 0xFF, with
// sectors of eraseSize bytes.
func NewRAMDevice(size int, eraseSize uint32) *RAMDevice {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &RAMDevice{
		mem:       mem,
		eraseSize: eraseSize,
		FailErase: map[uint32]bool{},
		FailWrite: map[uint32]bool{},
	}
}

func (d *RAMDevice) ReadBlock(addr uint32, buf []byte) error {
	if int(addr)+len(buf) > len(d.mem) {
		return fmt.Errorf("flash: read out of range at 0x%08X", addr)
	}
	copy(buf, d.mem[addr:int(addr)+len(buf)])
	return nil
}

func (d *RAMDevice) ProgramBlock(addr uint32, data []byte) error {
	if d.FailWrite[addr] {
		return fmt.Errorf("flash: simulated write failure at 0x%08X", addr)
	}
	if int(addr)+len(data) > len(d.mem) {
		return fmt.Errorf("flash: program out of range at 0x%08X", addr)
	}
	for i, b := range data {
		d.mem[int(addr)+i] &= b
	}
	return nil
}

func (d *RAMDevice) EraseSector(addr uint32) error {
	sectorAddr := addr - addr%d.eraseSize
	if d.FailErase[sectorAddr] {
		return fmt.Errorf("flash: simulated erase failure at 0x%08X", sectorAddr)
	}
	d.EraseCalls = append(d.EraseCalls, sectorAddr)
	end := int(sectorAddr) + int(d.eraseSize)
	if end > len(d.mem) {
		end = len(d.mem)
	}
	for i := int(sectorAddr); i < end; i++ {
		d.mem[i] = 0xFF
	}
	return nil
}

// Bytes returns a copy of the region [addr, addr+n) for test assertions.
func (d *RAMDevice) Bytes(addr uint32, n int) []byte {
	out := make([]byte, n)
	copy(out, d.mem[addr:int(addr)+n])
	return out
}

// SeedVectorTable writes words (little-endian) starting at addr, used by
// tests to construct a valid or invalid application image.
func (d *RAMDevice) SeedVectorTable(addr uint32, words []uint32) {
	for i, w := range words {
		off := int(addr) + i*4
		d.mem[off] = byte(w)
		d.mem[off+1] = byte(w >> 8)
		d.mem[off+2] = byte(w >> 16)
		d.mem[off+3] = byte(w >> 24)
	}
}

var _ Device = (*RAMDevice)(nil)
