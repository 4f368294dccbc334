package its

import "fmt"

// resolveEntryAddr computes the guest physical address of entry id within a
// table described by desc, honoring flat vs. two-level (indirect) layout
// (§4.6). ok is false if an indirect lookup misses (the L1 entry is
// invalid); callers treat a miss as "read as zero" / "write is a no-op",
// exactly as flat reads of an out-of-range slot would never occur (bounds
// are checked by the caller against desc.maxIDs/maxEntries beforehand).
func resolveEntryAddr(mem GuestMemory, desc tableDesc, id uint64) (addr uint64, ok bool, err error) {
	if !desc.indirect {
		return desc.baseAddr + id*desc.entrySz, true, nil
	}

	slotsPerL2 := desc.pageSz / desc.entrySz
	l1Index := id / slotsPerL2
	l2Index := id % slotsPerL2

	raw, err := mem.LoadLE(desc.baseAddr+l1Index*8, 8)
	if err != nil {
		return 0, false, fmt.Errorf("%w: l1 entry: %w", ErrGuestMemoryFault, err)
	}

	l1 := decodeL1(raw, desc.pageSzType)
	if !l1.valid {
		return 0, false, nil
	}

	return l1.pageAddr + l2Index*desc.entrySz, true, nil
}

// readDTE reads the Device Table Entry for devid. If devid is out of range
// or the slot misses (unmapped indirect L1 entry), it returns the zero DTE
// with ok=false and no error.
func readDTE(mem GuestMemory, desc tableDesc, devid uint64) (d dte, ok bool, err error) {
	if devid >= desc.maxEntries {
		return dte{}, false, nil
	}

	addr, hit, err := resolveEntryAddr(mem, desc, devid)
	if err != nil {
		return dte{}, false, err
	}

	if !hit {
		return dte{}, false, nil
	}

	word, err := mem.LoadLE(addr, 8)
	if err != nil {
		return dte{}, false, fmt.Errorf("%w: dte: %w", ErrGuestMemoryFault, err)
	}

	return decodeDTE(word), true, nil
}

// writeDTE writes d at devid's slot. A no-op is returned as a nil error if
// devid is out of range or an indirect L1 entry is unmapped.
func writeDTE(mem GuestMemory, desc tableDesc, devid uint64, d dte) error {
	if devid >= desc.maxEntries {
		return nil
	}

	addr, hit, err := resolveEntryAddr(mem, desc, devid)
	if err != nil {
		return err
	}

	if !hit {
		return nil
	}

	if err := mem.StoreLE(addr, 8, encodeDTE(d)); err != nil {
		return fmt.Errorf("%w: dte: %w", ErrGuestMemoryFault, err)
	}

	return nil
}

// readCTE reads the Collection Table Entry for icid.
func readCTE(mem GuestMemory, desc tableDesc, icid uint64, pta bool) (c cte, ok bool, err error) {
	if icid >= desc.maxEntries {
		return cte{}, false, nil
	}

	addr, hit, err := resolveEntryAddr(mem, desc, icid)
	if err != nil {
		return cte{}, false, err
	}

	if !hit {
		return cte{}, false, nil
	}

	word, err := mem.LoadLE(addr, 8)
	if err != nil {
		return cte{}, false, fmt.Errorf("%w: cte: %w", ErrGuestMemoryFault, err)
	}

	return decodeCTE(word, pta), true, nil
}

// writeCTE writes c at icid's slot.
func writeCTE(mem GuestMemory, desc tableDesc, icid uint64, pta bool, c cte) error {
	if icid >= desc.maxEntries {
		return nil
	}

	addr, hit, err := resolveEntryAddr(mem, desc, icid)
	if err != nil {
		return err
	}

	if !hit {
		return nil
	}

	if err := mem.StoreLE(addr, 8, encodeCTE(c, pta)); err != nil {
		return fmt.Errorf("%w: cte: %w", ErrGuestMemoryFault, err)
	}

	return nil
}

// The Interrupt Translation Table is always flat; the architecture offers
// no indirect ITT variant (§4.6 only describes indirection for Device and
// Collection tables).

// readITE reads the Interrupt Translation Entry at eventid within the ITT
// based at ittBase.
func readITE(mem GuestMemory, ittBase uint64, eventid uint64) (ite, error) {
	var buf [iteSize]byte

	if err := mem.ReadBytes(ittBase+eventid*iteSize, buf[:]); err != nil {
		return ite{}, fmt.Errorf("%w: ite: %w", ErrGuestMemoryFault, err)
	}

	return decodeITE(buf[:]), nil
}

// writeITE writes i at eventid within the ITT based at ittBase.
func writeITE(mem GuestMemory, ittBase uint64, eventid uint64, i ite) error {
	buf := encodeITE(i)

	if err := mem.WriteBytes(ittBase+eventid*iteSize, buf[:]); err != nil {
		return fmt.Errorf("%w: ite: %w", ErrGuestMemoryFault, err)
	}

	return nil
}
