//go:build tinygo

package flash

// MCUDevice delegates to a vendor-HAL-provided low-level driver. The
// register sequence for a specific flash controller (unlock, program-phrase
// command, FSTAT polling, erase-sector command) is board/vendor specific
// and out of scope per spec.md section 1; this file only documents the
// shape a board support package must provide and wires it to Device.
type MCUDevice struct {
	// Unlock, if non-nil, is called once before any erase/program and
	// should block until the flash controller is ready to accept commands.
	Unlock func() error
	// EraseSectorFn erases the device sector containing addr, busy-waiting
	// for command completion.
	EraseSectorFn func(addr uint32) error
	// ProgramBlockFn programs data at addr, busy-waiting for completion.
	ProgramBlockFn func(addr uint32, data []byte) error
	// ReadBlockFn reads len(buf) bytes at addr. On most Cortex-M parts with
	// flash mapped into the address space this is a plain memory copy.
	ReadBlockFn func(addr uint32, buf []byte) error

	unlocked bool
}

func (d *MCUDevice) ensureUnlocked() error {
	if d.unlocked || d.Unlock == nil {
		d.unlocked = true
		return nil
	}
	if err := d.Unlock(); err != nil {
		return err
	}
	d.unlocked = true
	return nil
}

func (d *MCUDevice) ReadBlock(addr uint32, buf []byte) error {
	return d.ReadBlockFn(addr, buf)
}

func (d *MCUDevice) ProgramBlock(addr uint32, data []byte) error {
	if err := d.ensureUnlocked(); err != nil {
		return err
	}
	return d.ProgramBlockFn(addr, data)
}

func (d *MCUDevice) EraseSector(addr uint32) error {
	if err := d.ensureUnlocked(); err != nil {
		return err
	}
	return d.EraseSectorFn(addr)
}

var _ Device = (*MCUDevice)(nil)
