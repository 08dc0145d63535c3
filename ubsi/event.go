/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ubsi

// ubsiEvent dispatches one beacon marker for the invoking thread.
func (e *Engine) ubsiEvent(tid int32, a0, a1 uint64, line []byte) {
	u, isNew := e.lookupOrAdd(tid)

	switch a0 {
	case markUEntry:
		loopID := int64(int32(uint32(a1)))
		if e.merge > 0 {
			u.mergeCount++
			if u.mergeCount == 1 || u.mergeCount > e.merge {
				e.unitEntry(u, loopID, line)
			}
		} else {
			e.unitEntry(u, loopID, line)
		}
	case markUEntryID:
		e.unitEntryMapID(u, int64(uint32(a1)), line)
	case markUExit:
		if !isNew {
			e.unitExit(u, line)
		}
	case markMRead1:
		u.rAddr = a1 << 32
	case markMRead2:
		u.rAddr |= a1 & 0xffffffff
		e.memRead(u, u.rAddr, line)
	case markMWrite1:
		u.wAddr = a1 << 32
	case markMWrite2:
		u.wAddr |= a1 & 0xffffffff
		e.memWrite(u, u.wAddr)
	case markUDep:
		e.declaredDep(u, int64(uint32(a1)), line)
	}
}

// unitEntry starts or advances a unit on a UENTRY marker.  A matching
// loop id advances the iteration; a different one starts a new loop.
func (e *Engine) unitEntry(u *unit, loopID int64, line []byte) {
	_, ts, eid, ok := headerTime(line)
	if !ok {
		return
	}
	if e.lastTime != ts {
		if e.lastTime != -1 {
			e.iter.reset()
		}
		e.lastTime = ts
	}

	if u.valid {
		u.endUnit()
	}
	if !u.valid || u.cur.LoopID != loopID {
		u.cur.LoopID = loopID
		u.cur.Iteration = 0
		if proc, ok := procSnippet(line); ok {
			u.proc = proc
		} else {
			e.lg.Warnf("unit entry missing process info: %q", string(line))
			u.proc = ``
		}
	} else {
		u.cur.Iteration++
	}
	u.valid = true
	u.cur.Timestamp = ts

	if c, ok := e.iter.get(u.thread.Tid, u.cur.LoopID, u.cur.Iteration); ok {
		u.cur.Count = c
	} else {
		e.lg.Warnf("iteration window exhausted for tid %d", u.thread.Tid)
	}

	if u.proc != `` {
		e.emitEntry(u, ts, eid)
	}
	if e.merge > 0 {
		u.mergeCount = 1
	}
}

// unitExit finalizes the current unit and emits the exit record if a
// valid unit existed.
func (e *Engine) unitExit(u *unit, line []byte) {
	wasValid := u.valid
	u.endUnit()
	if !wasValid {
		return
	}
	u.valid = false
	_, ts, eid, ok := headerTime(line)
	if !ok || u.proc == `` {
		return
	}
	e.emitExit(u, ts, eid)
}

// unitEntryMapID publishes the current unit under an external id on
// the group leader so later UDEP markers can name it.
func (e *Engine) unitEntryMapID(u *unit, extID int64, line []byte) {
	lu := e.leaderUnit(u)
	if lu == nil {
		e.lg.Warnf("unit id mapping with no leader: %q", string(line))
		return
	}
	if lu.unitIDMap == nil {
		lu.unitIDMap = make(map[int64]UnitID, 8)
	}
	lu.unitIDMap[extID] = u.cur
}

// memWrite registers a completed write address: dedup within the unit,
// then stamp the process wide last-writer map on the leader.
func (e *Engine) memWrite(u *unit, addr uint64) {
	if u.cur.LoopID == 0 || u.cur.Timestamp == 0 {
		return
	}
	if u.memUnit[addr] {
		return
	}
	if u.memUnit == nil {
		u.memUnit = make(map[uint64]bool, 64)
	}
	u.memUnit[addr] = true

	lu := e.leaderUnit(u)
	if lu == nil {
		return
	}
	if lu.memProc == nil {
		lu.memProc = make(map[uint64]UnitID, 256)
	}
	lu.memProc[addr] = u.cur
}

// memRead resolves a completed read address against the last writer
// and emits a dependency the first time a foreign unit shows up.
func (e *Engine) memRead(u *unit, addr uint64, line []byte) {
	if u.cur.LoopID == 0 || u.cur.Timestamp == 0 {
		return
	}
	lu := e.leaderUnit(u)
	if lu == nil {
		return
	}
	src, ok := lu.memProc[addr]
	if !ok {
		return
	}
	if src.Timestamp == 0 || src == u.cur {
		return
	}
	if u.linkUnit[src] {
		return
	}
	if u.linkUnit == nil {
		u.linkUnit = make(map[UnitID]bool, 16)
	}
	u.linkUnit[src] = true

	_, ts, eid, ok := headerTime(line)
	if !ok || u.proc == `` {
		return
	}
	e.emitDep(u, src, ts, eid)
}

// declaredDep resolves an externally declared dependency id through
// the leader's unit id map.
func (e *Engine) declaredDep(u *unit, extID int64, line []byte) {
	lu := e.leaderUnit(u)
	if lu == nil {
		e.lg.Warnf("declared dependency with no leader: %q", string(line))
		return
	}
	src, ok := lu.unitIDMap[extID]
	if !ok {
		e.lg.Warnf("declared dependency names unknown unit id %d", extID)
		return
	}
	if src == u.cur {
		return
	}
	if u.linkUnit[src] {
		return
	}
	if u.linkUnit == nil {
		u.linkUnit = make(map[UnitID]bool, 16)
	}
	u.linkUnit[src] = true

	_, ts, eid, ok := headerTime(line)
	if !ok || u.proc == `` {
		return
	}
	e.emitDep(u, src, ts, eid)
}

// nonUBSIEvent passes the record through verbatim and applies process
// lifecycle transitions on success.
func (e *Engine) nonUBSIEvent(tid int32, sysno int64, succ bool, a0, a1, a2 uint64, line []byte) error {
	u, _ := e.lookupOrAdd(tid)

	if err := e.passthrough(line); err != nil {
		return err
	}
	if !succ {
		return nil
	}

	switch sysno {
	case sysClone, sysFork, sysVfork:
		ret, ok := fieldInt(line, ` exit=`)
		if !ok {
			return nil
		}
		child := int32(ret)
		if cu, ok := e.units[e.threadOf(child)]; ok {
			// stale state from a recycled tid
			e.procEnd(cu)
		}
		if tt, _, _, ok := headerTime(line); ok {
			e.setSlot(child, tt)
		}
		if sysno == sysClone && a2 > 0 {
			// thread creation: child joins the caller's group
			e.setPid(child, tid)
		}
	case sysExecve, sysExecveat:
		e.procEnd(u)
		if sysno == sysExecve {
			if tt, _, _, ok := headerTime(line); ok {
				e.setSlot(tid, tt)
			}
		}
	case sysExit:
		e.procEnd(u)
		e.resetSlot(tid)
	case sysExitGroup:
		e.procGroupEnd(u)
	case sysKill:
		e.killSignal(a0, a1)
	case sysRtSigaction:
		if a0 < maxSigno {
			u.sigHandler[a0] = true
		}
	}
	return nil
}

// killSignal treats a delivered fatal signal as termination of the
// target unless the target installed a handler for it.
func (e *Engine) killSignal(a0, a1 uint64) {
	if a1 != sigINT && a1 != sigKILL && a1 != sigTERM {
		return
	}
	target := int32(uint32(a0))
	tu, ok := e.units[e.threadOf(target)]
	if !ok {
		return
	}
	if a1 < maxSigno && tu.sigHandler[a1] {
		return
	}
	if _, ok := e.leaders[tu.thread]; ok {
		e.procGroupEnd(tu)
	} else {
		e.procEnd(tu)
	}
}
