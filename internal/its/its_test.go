package its

import "testing"

// setupDevice wires up device table, collection table, and command queue
// descriptors on a fresh ITS and runs a MAPD/MAPC/MAPTI sequence, leaving the
// ITS enabled and ready for doorbell writes. It returns the device and event
// identifiers used, with the target CPU and pINTID they map to, so callers
// can issue their own doorbell or INT/CLEAR/DISCARD commands against them.
func setupDevice(t *testing.T, mem *FlatMemory, i *ITS) (devid, eventid uint64, cpu uint64, pintid uint32) {
	t.Helper()

	devid, eventid, cpu, pintid = 5, 2, 3, 8300

	devVal := baserValue(baserTypeDevice, pageSize4K, 0, 8, false, true, 0x1000)
	i.Write(offBASER0, 8, devVal, 0)

	collVal := baserValue(baserTypeCollection, pageSize4K, 0, 8, false, true, 0x2000)
	i.Write(offBASER0+8, 8, collVal, 0)

	const cmdQAddr = 0x3000
	cbaserVal := uint64(1) << cbaserValidShift
	cbaserVal |= (uint64(cmdQAddr) >> cbaserAddrShift) << cbaserAddrShift
	i.Write(offCBASER, 8, cbaserVal, 0)

	i.Write(offCTLR, 4, ctlrEnabled, 0)

	cmds := []command{
		{opcode: opMAPD, devid: uint32(devid), size: 5, ittAddr: 0x4000, valid: true},
		{opcode: opMAPC, icid: 1, rdbase: cpu, valid: true},
		{opcode: opMAPTI, devid: uint32(devid), eventid: uint32(eventid), pintid: pintid, icid: 1, valid: true},
	}

	for n, c := range cmds {
		buf := encodeCmd(c)
		if err := mem.WriteBytes(cmdQAddr+uint64(n)*cmdEntrySize, buf[:]); err != nil {
			t.Fatalf("write command %d: %s", n, err)
		}
	}

	i.Write(offCWRITER, 8, uint64(len(cmds))<<cqOffsetShift, 0)

	return devid, eventid, cpu, pintid
}

func TestScenario_HappyPath(t *testing.T) {
	t.Parallel()

	mem := NewFlatMemory(1 << 16)
	redist := &RecordingRedistributor{}
	i := New(mem, WithRedistributor(redist))

	devid, eventid, cpu, pintid := setupDevice(t, mem, i)

	intCmd := encodeCmd(command{opcode: opINT, devid: uint32(devid), eventid: uint32(eventid), valid: true})
	if err := mem.WriteBytes(0x3000+3*cmdEntrySize, intCmd[:]); err != nil {
		t.Fatalf("write INT command: %s", err)
	}

	i.Write(offCWRITER, 8, 4<<cqOffsetShift, 0)

	if len(redist.Calls) != 1 {
		t.Fatalf("expected 1 redistributor call after INT, got %d: %+v", len(redist.Calls), redist.Calls)
	}

	want := RedistCall{Pend: true, CPU: cpu, IntID: pintid}
	if redist.Calls[0] != want {
		t.Errorf("got: %+v, want: %+v", redist.Calls[0], want)
	}

	// Doorbell write reaches the same translation result.
	i.Write(offTranslater, 4, eventid, devid)

	if len(redist.Calls) != 2 {
		t.Fatalf("expected 2 redistributor calls after doorbell, got %d: %+v", len(redist.Calls), redist.Calls)
	}

	if redist.Calls[1] != want {
		t.Errorf("got: %+v, want: %+v", redist.Calls[1], want)
	}
}

func TestScenario_DisabledDoorbellIsNoOp(t *testing.T) {
	t.Parallel()

	mem := NewFlatMemory(1 << 16)
	redist := &RecordingRedistributor{}
	i := New(mem, WithRedistributor(redist))

	i.Write(offTranslater, 4, 1, 0)

	if len(redist.Calls) != 0 {
		t.Errorf("expected no redistributor calls while disabled, got: %+v", redist.Calls)
	}
}

func TestScenario_EventIDOutOfRange(t *testing.T) {
	t.Parallel()

	mem := NewFlatMemory(1 << 16)
	redist := &RecordingRedistributor{}
	i := New(mem, WithRedistributor(redist))

	devid, _, _, _ := setupDevice(t, mem, i)

	i.Write(offTranslater, 4, 9999, devid)

	if len(redist.Calls) != 0 {
		t.Errorf("expected no redistributor calls for out-of-range eventid, got: %+v", redist.Calls)
	}
}

func TestScenario_Discard(t *testing.T) {
	t.Parallel()

	mem := NewFlatMemory(1 << 16)
	redist := &RecordingRedistributor{}
	i := New(mem, WithRedistributor(redist))

	devid, eventid, cpu, pintid := setupDevice(t, mem, i)

	discardCmd := encodeCmd(command{opcode: opDISCARD, devid: uint32(devid), eventid: uint32(eventid), valid: true})
	if err := mem.WriteBytes(0x3000+3*cmdEntrySize, discardCmd[:]); err != nil {
		t.Fatalf("write DISCARD command: %s", err)
	}

	i.Write(offCWRITER, 8, 4<<cqOffsetShift, 0)

	want := RedistCall{Pend: false, CPU: cpu, IntID: pintid}
	if len(redist.Calls) != 1 || redist.Calls[0] != want {
		t.Fatalf("DISCARD should clear the LPI once, got: %+v, want: [%+v]", redist.Calls, want)
	}

	d, ok, err := readDTE(mem, i.devDesc, devid)
	if err != nil || !ok {
		t.Fatalf("readDTE: ok=%v err=%s", ok, err)
	}

	entry, err := readITE(mem, d.ittAddr, eventid)
	if err != nil {
		t.Fatalf("readITE: %s", err)
	}

	if entry.valid {
		t.Errorf("expected ITE to be cleared after DISCARD, got: %+v", entry)
	}
}

func TestScenario_CBASERLockedWhileEnabled(t *testing.T) {
	t.Parallel()

	mem := NewFlatMemory(1 << 16)
	i := New(mem)

	i.Write(offCTLR, 4, ctlrEnabled, 0)

	before := i.Read(offCBASER, 8)
	i.Write(offCBASER, 8, 0xffff_ffff_ffff_ffff, 0)

	after := i.Read(offCBASER, 8)
	if after != before {
		t.Errorf("CBASER changed while enabled: before=%#x, after=%#x", before, after)
	}
}

func TestScenario_ReservedPageSizeClearsRegister(t *testing.T) {
	t.Parallel()

	mem := NewFlatMemory(1 << 16)
	i := New(mem)

	bad := uint64(3) << baserPageSizeShift // reserved code
	bad |= baserTypeDevice << baserTypeShift
	bad |= 1 << baserValidShift

	i.Write(offBASER0, 8, bad, 0)

	got := i.Read(offBASER0, 8)
	if got != 0 {
		t.Errorf("expected BASER[0] to be cleared after malformed write, got: %#x", got)
	}
}

func TestScenario_CTLRBitsOnlySet(t *testing.T) {
	t.Parallel()

	mem := NewFlatMemory(1 << 16)
	i := New(mem)

	i.Write(offCTLR, 4, ctlrEnabled, 0)
	i.Write(offCTLR, 4, 0, 0) // attempting to clear should be ignored

	got := i.Read(offCTLR, 4)
	if got&ctlrEnabled == 0 {
		t.Errorf("CTLR enabled bit was cleared by a register write: %#x", got)
	}
}

func TestReset_RestoresQuiescentState(t *testing.T) {
	t.Parallel()

	mem := NewFlatMemory(1 << 16)
	i := New(mem)

	i.Write(offCTLR, 4, ctlrEnabled, 0)
	i.Reset()

	got := i.Read(offCTLR, 4)
	if got&ctlrQuiescent == 0 {
		t.Errorf("expected CTLR quiescent after reset, got: %#x", got)
	}

	if got&ctlrEnabled != 0 {
		t.Errorf("expected CTLR disabled after reset, got: %#x", got)
	}
}
