package its

import "testing"

func TestDecodeCommand_RoundTrip(t *testing.T) {
	t.Parallel()

	// Some fields share bits in the layout, so each case carries only the
	// fields its opcode defines and only those are compared.
	tcs := []command{
		{opcode: opMAPD, devid: 5, size: 5, ittAddr: 0x4000, valid: true},
		{opcode: opMAPC, icid: 1, rdbase: 3, valid: true},
		{opcode: opMAPTI, devid: 5, eventid: 2, pintid: 8300, icid: 1, valid: true},
	}

	for _, in := range tcs {
		buf := encodeCmd(in)
		out := decodeCommand(buf[:])

		got := command{opcode: out.opcode, valid: out.valid}

		switch in.opcode {
		case opMAPD:
			got.devid, got.size, got.ittAddr = out.devid, out.size, out.ittAddr
		case opMAPC:
			got.icid, got.rdbase = out.icid, out.rdbase
		case opMAPTI:
			got.devid, got.eventid, got.pintid, got.icid = out.devid, out.eventid, out.pintid, out.icid
		}

		if got != in {
			t.Errorf("got: %+v, want: %+v", got, in)
		}
	}
}

func TestRunCommands_SkipsInvalidAndContinues(t *testing.T) {
	t.Parallel()

	mem := NewFlatMemory(1 << 16)
	i := New(mem)

	// Device table: 4K page, 8-byte entries, 1 page.
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
		{opcode: opMAPD, devid: 200000, size: 5, ittAddr: 0x4000, valid: true}, // invalid: devid out of range
		{opcode: opMAPD, devid: 5, size: 5, ittAddr: 0x4000, valid: true},     // valid
	}

	for n, c := range cmds {
		buf := encodeCmd(c)
		if err := mem.WriteBytes(cmdQAddr+uint64(n)*cmdEntrySize, buf[:]); err != nil {
			t.Fatalf("write command %d: %s", n, err)
		}
	}

	i.Write(offCWRITER, 8, uint64(len(cmds))<<cqOffsetShift, 0)

	d, ok, err := readDTE(mem, i.devDesc, 5)
	if err != nil {
		t.Fatalf("readDTE: %s", err)
	}

	if !ok || !d.valid {
		t.Fatalf("expected devid 5 to be mapped, got: %+v ok=%v", d, ok)
	}

	readr := i.Read(offCREADR, 8)
	wantReadr := uint64(len(cmds)) << cqOffsetShift
	if readr != wantReadr {
		t.Errorf("creadr: got: %#x, want: %#x", readr, wantReadr)
	}
}
