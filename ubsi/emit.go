/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ubsi

import (
	"fmt"
)

// passthrough writes a non-beacon record unchanged.
func (e *Engine) passthrough(line []byte) error {
	_, err := e.out.Write(line)
	return err
}

// unitClause renders the canonical unit=( ... ) body shared by entry
// and dependency records.
func unitClause(id UnitID, tt ThreadTime) string {
	return fmt.Sprintf("pid=%d thread_time=%d.%03d unitid=%d iteration=%d time=%.3f count=%d",
		id.Tid, tt.Sec, tt.Ms, id.LoopID, id.Iteration, id.Timestamp, id.Count)
}

func (e *Engine) emitEntry(u *unit, ts float64, eid int64) {
	fmt.Fprintf(e.out, "type=UBSI_ENTRY msg=ubsi(%.3f:%d): unit=(%s) %s\n",
		ts, eid, unitClause(u.cur, u.thread.Time), u.proc)
}

func (e *Engine) emitExit(u *unit, ts float64, eid int64) {
	fmt.Fprintf(e.out, "type=UBSI_EXIT msg=ubsi(%.3f:%d): %s\n", ts, eid, u.proc)
}

func (e *Engine) emitDep(u *unit, src UnitID, ts float64, eid int64) {
	fmt.Fprintf(e.out, "type=UBSI_DEP msg=ubsi(%.3f:%d): dep=(%s), unit=(%s) %s\n",
		ts, eid, unitClause(src, src.Time), unitClause(u.cur, u.thread.Time), u.proc)
}
