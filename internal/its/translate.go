package its

// translate implements the DTE -> ITE -> CTE lookup chain shared by
// GITS_TRANSLATER writes and the INT/CLEAR/DISCARD commands (§4.5). It
// returns ok=false whenever the pipeline abandons for an architecturally
// expected reason (invalid entry, out-of-range ID, PTA addressing which
// this core treats as out of scope); such abandonment is never a caller
// error, only a single log line. A non-nil error means the guest memory
// adapter itself faulted.
//
// Callers must hold i.mu.
func (i *ITS) translate(devid, eventid uint64) (pintid uint32, cpu uint64, ittAddr uint64, ok bool, err error) {
	if !i.devDesc.valid {
		i.log.Debug("its: translate: device table not configured", "devid", devid)
		return 0, 0, 0, false, nil
	}

	d, hit, err := readDTE(i.mem, i.devDesc, devid)
	if err != nil {
		return 0, 0, 0, false, err
	}

	if !hit || !d.valid {
		i.log.Debug("its: translate: dte miss", "devid", devid)
		return 0, 0, 0, false, nil
	}

	if devid > i.topo.maxDevIDs() || eventid > d.maxEventID() {
		i.log.Debug("its: translate: id out of range", "devid", devid, "eventid", eventid)
		return 0, 0, 0, false, nil
	}

	entry, err := readITE(i.mem, d.ittAddr, eventid)
	if err != nil {
		return 0, 0, 0, false, err
	}

	if !entry.valid || !entry.physical {
		i.log.Debug("its: translate: ite miss or not physical", "devid", devid, "eventid", eventid)
		return 0, 0, 0, false, nil
	}

	coll, hit, err := readCTE(i.mem, i.collDesc, uint64(entry.icid), i.topo.PTA)
	if err != nil {
		return 0, 0, 0, false, err
	}

	if !hit || !coll.valid {
		i.log.Debug("its: translate: cte miss", "icid", entry.icid)
		return 0, 0, 0, false, nil
	}

	if i.topo.PTA {
		i.log.Debug("its: translate: PTA addressing not implemented, ignoring")
		return 0, 0, 0, false, nil
	}

	return entry.pINTID, coll.rdbase, d.ittAddr, true, nil
}

// Translate services a GITS_TRANSLATER doorbell write: devid comes from the
// requester attributes, eventid from the written value. It is a no-op,
// silently, while the ITS is disabled (§4.2, invariant 6).
func (i *ITS) Translate(devid, eventid uint64) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.enabled() {
		return nil
	}

	pintid, cpu, _, ok, err := i.translate(devid, eventid)

	if err != nil {
		return err
	}

	if !ok {
		return nil
	}

	return i.redist.PendLPI(cpu, pintid)
}
