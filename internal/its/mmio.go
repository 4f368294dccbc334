package its

import "fmt"

// Read services a guest MMIO read at offset with the given width (1, 2, 4,
// or 8 bytes). Per §4.2's InvalidAccess handling, a read that would
// otherwise fault (wrong width, reserved offset, translation-frame read)
// instead returns zero: the ITS never signals a data abort to the guest for
// a register-file access.
func (i *ITS) Read(offset uint64, width int) uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()

	v, err := i.read(offset, width)
	if err != nil {
		i.log.Warn("its: read: invalid access, returning zero", "offset", fmt.Sprintf("%#x", offset), "width", width, "err", err)
		return 0
	}

	return v
}

// Write services a guest MMIO write at offset. requesterID is the AXI/AMBA
// requester identifier attached to the write; it is consulted only for
// writes to the translation frame, where it supplies the DeviceID.
func (i *ITS) Write(offset uint64, width int, value uint64, requesterID uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if offset == offTranslater {
		i.writeTranslater(width, value, requesterID)
		return
	}

	if err := i.writeControl(offset, width, value); err != nil {
		i.log.Warn("its: write ignored", "offset", fmt.Sprintf("%#x", offset), "width", width, "err", err)
	}
}

func (i *ITS) writeTranslater(width int, value, requesterID uint64) {
	if width != 2 && width != 4 {
		i.log.Warn("its: translater: invalid width", "width", width)
		return
	}

	if !i.enabled() {
		return // invariant 6: writes while disabled are no-ops
	}

	var eventid uint64
	if width == 2 {
		eventid = value & 0xffff
	} else {
		eventid = value & 0xffffffff
	}

	i.regs.translater = eventid

	pintid, cpu, _, ok, err := i.translate(requesterID, eventid)
	if err != nil {
		i.log.Warn("its: translater: guest memory fault", "err", err)
		return
	}

	if !ok {
		return
	}

	if err := i.redist.PendLPI(cpu, pintid); err != nil {
		i.log.Warn("its: translater: redistributor error", "err", err)
	}
}

// wideAccess services a read of a 64-bit logical register that the guest
// may address at its base offset (full 8-byte read, or low 4 bytes) or base
// offset + 4 (high 4 bytes).
func wideAccess(reg uint64, sub uint64, width int) (uint64, error) {
	switch {
	case width == 8 && sub == 0:
		return reg, nil
	case width == 4 && sub == 0:
		return reg & 0xffffffff, nil
	case width == 4 && sub == 4:
		return reg >> 32, nil
	default:
		return 0, fmt.Errorf("%w: width=%d sub=%d", ErrInvalidAccess, width, sub)
	}
}

func (i *ITS) read(offset uint64, width int) (uint64, error) {
	if width == 1 {
		return 0, fmt.Errorf("%w: byte access to control frame", ErrInvalidAccess)
	}

	switch {
	case offset == offCTLR:
		if width != 4 {
			return 0, fmt.Errorf("%w: CTLR width=%d", ErrInvalidAccess, width)
		}

		return i.regs.ctlr & 0xffffffff, nil

	case offset == offIIDR:
		if width != 4 {
			return 0, fmt.Errorf("%w: IIDR width=%d", ErrInvalidAccess, width)
		}

		return i.regs.iidr & 0xffffffff, nil

	case offset == offPIDR2:
		if width != 4 {
			return 0, fmt.Errorf("%w: PIDR2 width=%d", ErrInvalidAccess, width)
		}

		return pidr2Value, nil

	case offset == offTYPER || offset == offTYPER+4:
		return wideAccess(i.regs.typer, offset-offTYPER, width)

	case offset == offCBASER || offset == offCBASER+4:
		return wideAccess(i.regs.cbaser, offset-offCBASER, width)

	case offset == offCWRITER || offset == offCWRITER+4:
		return wideAccess(i.regs.cwriter, offset-offCWRITER, width)

	case offset == offCREADR || offset == offCREADR+4:
		return wideAccess(i.regs.creadr, offset-offCREADR, width)

	case offset >= offBASER0 && offset < offBASERN:
		idx := (offset - offBASER0) / 8
		base := offBASER0 + idx*8

		return wideAccess(i.regs.baser[idx], offset-base, width)

	default:
		return 0, fmt.Errorf("%w: reserved offset %#x", ErrInvalidAccess, offset)
	}
}

func (i *ITS) writeControl(offset uint64, width int, value uint64) error {
	switch {
	case offset == offCTLR:
		if width != 4 {
			return fmt.Errorf("%w: CTLR width=%d", ErrInvalidAccess, width)
		}
		// Bits can only be set, never cleared, by a register write (§4.2).
		i.regs.ctlr |= value & 0xffffffff

		return nil

	case offset == offIIDR || offset == offTYPER || offset == offTYPER+4 || offset == offCREADR || offset == offCREADR+4:
		return fmt.Errorf("%w: register is read-only", ErrInvalidRegisterWrite)

	case offset == offPIDR2:
		return fmt.Errorf("%w: PIDR2 is read-only", ErrInvalidRegisterWrite)

	case offset == offCBASER || offset == offCBASER+4:
		return i.writeCBASER(offset-offCBASER, width, value)

	case offset == offCWRITER || offset == offCWRITER+4:
		return i.writeCWRITER(offset-offCWRITER, width, value)

	case offset >= offBASER0 && offset < offBASERN:
		idx := (offset - offBASER0) / 8
		base := offBASER0 + idx*8

		return i.writeBASER(idx, offset-base, width, value)

	default:
		return fmt.Errorf("%w: reserved offset %#x", ErrInvalidAccess, offset)
	}
}

func (i *ITS) writeCBASER(sub uint64, width int, value uint64) error {
	if i.enabled() {
		return fmt.Errorf("%w: CBASER locked while enabled", ErrInvalidRegisterWrite)
	}

	old := i.regs.cbaser

	var (
		newVal    uint64
		fullWrite bool
	)

	switch {
	case width == 8 && sub == 0:
		newVal, fullWrite = value, true
	case width == 4 && sub == 0:
		newVal = (old &^ 0xffffffff) | (value & 0xffffffff)
	case width == 4 && sub == 4:
		newVal, fullWrite = (old&^(uint64(0xffffffff)<<32))|((value&0xffffffff)<<32), true
	default:
		return fmt.Errorf("%w: CBASER width=%d sub=%d", ErrInvalidAccess, width, sub)
	}

	i.regs.cbaser = newVal

	if fullWrite {
		i.cmdQ = extractCBaser(newVal)
		i.regs.creadr = 0
	}

	return nil
}

func (i *ITS) writeCWRITER(sub uint64, width int, value uint64) error {
	old := i.regs.cwriter

	var newVal uint64

	switch {
	case width == 8 && sub == 0:
		newVal = value
	case width == 4 && sub == 0:
		newVal = (old &^ 0xffffffff) | (value & 0xffffffff)
	case width == 4 && sub == 4:
		newVal = (old &^ (uint64(0xffffffff) << 32)) | ((value & 0xffffffff) << 32)
	default:
		return fmt.Errorf("%w: CWRITER width=%d sub=%d", ErrInvalidAccess, width, sub)
	}

	i.regs.cwriter = newVal

	if i.enabled() && i.regs.cwriter != i.regs.creadr {
		return i.runCommands()
	}

	return nil
}

// writeBASER applies clean replace-semantics to the addressed half of
// BASER[idx] and leaves the other half untouched, fixing the source's
// OR-into-register pattern (see Design Notes). A lone high-word write
// additionally strips GITS_BASER_VAL_MASK bits from the incoming value
// (§4.2): type, entry size, indirect, and valid all live in the high word,
// and a 32-bit write to it may not change them, only a full 64-bit write
// can. The descriptor is re-extracted whenever the high word or the full
// register is written.
func (i *ITS) writeBASER(idx uint64, sub uint64, width int, value uint64) error {
	if i.enabled() {
		return fmt.Errorf("%w: BASER[%d] locked while enabled", ErrInvalidRegisterWrite, idx)
	}

	old := i.regs.baser[idx]

	var (
		newVal    uint64
		highWrite bool
	)

	switch {
	case width == 8 && sub == 0:
		newVal, highWrite = value, true
	case width == 4 && sub == 0:
		newVal = (old &^ 0xffffffff) | (value & 0xffffffff)
	case width == 4 && sub == 4:
		incoming := (value & 0xffffffff) << 32
		incoming = incoming&^baserValMask | old&baserValMask
		newVal, highWrite = (old&^(uint64(0xffffffff)<<32))|incoming, true
	default:
		return fmt.Errorf("%w: BASER[%d] width=%d sub=%d", ErrInvalidAccess, idx, width, sub)
	}

	i.regs.baser[idx] = newVal

	if !highWrite {
		return nil
	}

	var (
		wantType uint64
		maxIDs   uint64
	)

	switch idx {
	case 0:
		wantType, maxIDs = baserTypeDevice, i.topo.maxDevIDs()
	case 1:
		wantType, maxIDs = baserTypeCollection, i.topo.maxCollIDs()
	default:
		// Unimplemented table slot: the raw value is stored but no
		// descriptor is derived, matching the reset-time comment that all
		// other BASER[i] are zero/unimplemented.
		return nil
	}

	desc, err := extractBaser(newVal, wantType, maxIDs)
	if err != nil {
		i.regs.baser[idx] = 0

		switch idx {
		case 0:
			i.devDesc = tableDesc{}
		case 1:
			i.collDesc = tableDesc{}
		}

		i.log.Warn("its: malformed BASER write, clearing register", "idx", idx, "err", err)

		return fmt.Errorf("%w: %w", ErrInvalidAccess, err)
	}

	switch idx {
	case 0:
		i.devDesc = desc
	case 1:
		i.collDesc = desc
	}

	return nil
}
