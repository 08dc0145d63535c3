/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package ubsi reconstructs loop execution units from beacon markers
// embedded in an audit syscall stream.  Instrumented applications mark
// unit boundaries and memory provenance with kill calls carrying
// sentinel pid arguments; everything else passes through unchanged
// with UBSI_ENTRY/UBSI_EXIT/UBSI_DEP records interleaved.
package ubsi

// Beacon sentinels as they appear in the a0 field of an audit record
// (32 bit two's complement, rendered in hex).
const (
	markUEntry   uint64 = 0xffffff9c // kill(-100, loopid)
	markUEntryID uint64 = 0xffffff9a // kill(-102, extid)
	markUExit    uint64 = 0xffffff9b // kill(-101, _)
	markMRead1   uint64 = 0xffffff38
	markMRead2   uint64 = 0xffffff37
	markMWrite1  uint64 = 0xfffffed4
	markMWrite2  uint64 = 0xfffffed3
	markUDep     uint64 = 0xfffffe70 // kill(-400, extid)
)

// Syscall numbers the lifecycle tracking keys on (x86_64).
const (
	sysRtSigaction = 13
	sysClone       = 56
	sysFork        = 57
	sysVfork       = 58
	sysExecve      = 59
	sysExit        = 60
	sysKill        = 62
	sysExitGroup   = 231
	sysExecveat    = 322
)

// Signal numbers with termination semantics for lifecycle tracking.
const (
	sigINT  = 2
	sigKILL = 9
	sigTERM = 15

	// maxSigno bounds the per-thread handler table.
	maxSigno = 50
)

// ThreadTime is a thread creation instant as reported in the audit
// log, millisecond precision.  The zero value is the "unknown"
// sentinel.
type ThreadTime struct {
	Sec int64
	Ms  int
}

func (tt ThreadTime) IsZero() bool {
	return tt.Sec == 0 && tt.Ms == 0
}

// Thread identifies a thread by id and observed creation time so tid
// reuse yields distinct keys.
type Thread struct {
	Tid  int32
	Time ThreadTime
}

// UnitID canonically identifies one loop iteration unit.
type UnitID struct {
	Tid       int32
	Time      ThreadTime
	LoopID    int64
	Iteration int
	Timestamp float64
	Count     int
}

// unit is the per-thread analysis state.  memProc and unitIDMap are
// populated only on the thread group leader; member threads resolve
// through the leader at query time.
type unit struct {
	thread Thread
	pid    int32 // thread group leader tid
	cur    UnitID
	valid  bool
	rAddr  uint64
	wAddr  uint64

	linkUnit  map[UnitID]bool
	memUnit   map[uint64]bool
	memProc   map[uint64]UnitID
	unitIDMap map[int64]UnitID

	mergeCount int
	proc       string
	sigHandler [maxSigno]bool
}

// endUnit drops the per-unit scratch state; the unit stays valid so a
// following entry can advance the iteration.
func (u *unit) endUnit() {
	u.linkUnit = nil
	u.memUnit = nil
	u.rAddr = 0
	u.wAddr = 0
	u.mergeCount = 0
}

// clearProc additionally drops the leader owned maps.
func (u *unit) clearProc() {
	u.endUnit()
	u.memProc = nil
	u.unitIDMap = nil
}
