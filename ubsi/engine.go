/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ubsi

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/provatrace/provatrace/applog"
)

const (
	defaultPidMax = 32768
	pidMaxPath    = `/proc/sys/kernel/pid_max`
)

var (
	ErrNilOutput = errors.New("nil output writer")
)

// Config wires an analysis engine.
type Config struct {
	Out        io.Writer
	MergeUnits int // coalesce up to N consecutive unit entries, 0 disables
	PidMax     int // 0 reads the host pid_max
	Logger     *applog.Logger
}

// Engine is the single threaded unit analysis state machine.  It owns
// every table exclusively; callers feed it reordered records one line
// at a time.  Output buffering belongs to the caller so interleaved
// passthrough writes stay ordered.
type Engine struct {
	out   io.Writer
	merge int
	lg    *applog.Logger

	units   map[Thread]*unit
	leaders map[Thread]Thread          // member -> group leader
	groups  map[Thread]map[Thread]bool // leader -> members

	// createTime[tid] is the first sighting time of the tid, sized to
	// twice pid_max so recycled ids stay in bounds across an epoch.
	createTime []ThreadTime

	iter     iterationCounter
	lastTime float64
}

// NewEngine builds an engine; the creation time table is sized at
// twice the host pid_max.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Out == nil {
		return nil, ErrNilOutput
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.NewDiscardLogger()
	}
	pm := cfg.PidMax
	if pm <= 0 {
		pm = hostPidMax()
	}
	return &Engine{
		out:        cfg.Out,
		merge:      cfg.MergeUnits,
		lg:         cfg.Logger,
		units:      make(map[Thread]*unit, 1024),
		leaders:    make(map[Thread]Thread, 128),
		groups:     make(map[Thread]map[Thread]bool, 128),
		createTime: make([]ThreadTime, 2*(pm+1)),
		lastTime:   -1,
	}, nil
}

func hostPidMax() int {
	b, err := os.ReadFile(pidMaxPath)
	if err != nil {
		return defaultPidMax
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || v <= 0 {
		return defaultPidMax
	}
	return v
}

// Flush drains buffered output if the writer supports it.
func (e *Engine) Flush() error {
	if f, ok := e.out.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// HandleLine processes one complete syscall record line (newline
// terminated).  Records missing mandatory fields are dropped.
func (e *Engine) HandleLine(line []byte) error {
	sysno, ok := fieldInt(line, ` syscall=`)
	if !ok {
		return nil
	}
	a0, ok := fieldHex(line, ` a0=`)
	if !ok {
		return nil
	}
	a1, ok := fieldHex(line, ` a1=`)
	if !ok {
		return nil
	}
	a2, ok := fieldHex(line, ` a2=`)
	if !ok {
		return nil
	}
	if _, ok = fieldHex(line, ` a3=`); !ok {
		return nil
	}
	if _, ok = fieldInt(line, ` ppid=`); !ok {
		return nil
	}
	pid, ok := fieldInt(line, ` pid=`)
	if !ok {
		return nil
	}
	succ, ok := succField(line, sysno)
	if !ok {
		return nil
	}
	tid := int32(pid)
	e.setSeenTimeConditionally(tid, line)

	if sysno == sysKill && isMark(a0) {
		e.ubsiEvent(tid, a0, a1, line)
		return nil
	}
	return e.nonUBSIEvent(tid, sysno, succ, a0, a1, a2, line)
}

// HandleWrapped rewrites a kernel `ubsi_intercepted="..."` envelope
// into a synthetic SYSCALL record and processes it.
func (e *Engine) HandleWrapped(line []byte) error {
	syn, ok := rewriteWrapped(line)
	if !ok {
		e.lg.Warnf("malformed ubsi_intercepted record: %q", string(line))
		return nil
	}
	return e.HandleLine(syn)
}

// rewriteWrapped strips the envelope, keeping the audit header and the
// inner key/value tokens.
func rewriteWrapped(line []byte) ([]byte, bool) {
	envIdx := bytes.Index(line, []byte(`ubsi_intercepted=`))
	if envIdx < 0 {
		return nil, false
	}
	msgIdx := bytes.Index(line, []byte(`msg=`))
	if msgIdx < 0 || msgIdx > envIdx {
		return nil, false
	}
	innerIdx := bytes.Index(line[envIdx:], []byte(`syscall=`))
	if innerIdx < 0 {
		return nil, false
	}
	inner := line[envIdx+innerIdx:]
	if q := bytes.LastIndexByte(inner, '"'); q >= 0 {
		inner = inner[:q]
	}
	syn := make([]byte, 0, len(line))
	syn = append(syn, `type=SYSCALL `...)
	syn = append(syn, line[msgIdx:envIdx]...)
	syn = append(syn, inner...)
	syn = append(syn, '\n')
	return syn, true
}

func isMark(a0 uint64) bool {
	switch a0 {
	case markUEntry, markUEntryID, markUExit,
		markMRead1, markMRead2, markMWrite1, markMWrite2, markUDep:
		return true
	}
	return false
}

// threadOf keys a tid with its recorded creation time.
func (e *Engine) threadOf(tid int32) Thread {
	return Thread{Tid: tid, Time: e.slot(tid)}
}

func (e *Engine) slot(tid int32) ThreadTime {
	if tid < 0 || int(tid) >= len(e.createTime) {
		return ThreadTime{}
	}
	return e.createTime[tid]
}

func (e *Engine) setSlot(tid int32, tt ThreadTime) {
	if tid < 0 || int(tid) >= len(e.createTime) {
		return
	}
	e.createTime[tid] = tt
}

func (e *Engine) resetSlot(tid int32) {
	e.setSlot(tid, ThreadTime{})
}

// setSeenTimeConditionally stamps a first sighting; the zero time is
// the "unknown" sentinel and never overwritten by later records.
func (e *Engine) setSeenTimeConditionally(tid int32, line []byte) {
	if !e.slot(tid).IsZero() {
		return
	}
	if tt, _, _, ok := headerTime(line); ok {
		e.setSlot(tid, tt)
	}
}

// lookupOrAdd returns the unit state for the invoking thread, creating
// a placeholder (own leader, no valid unit) on first sight.
func (e *Engine) lookupOrAdd(tid int32) (*unit, bool) {
	th := e.threadOf(tid)
	if u, ok := e.units[th]; ok {
		return u, false
	}
	return e.addUnit(tid, tid, false), true
}

func (e *Engine) addUnit(tid, pid int32, valid bool) *unit {
	th := e.threadOf(tid)
	u := &unit{
		thread: th,
		pid:    pid,
		valid:  valid,
		cur: UnitID{
			Tid:  tid,
			Time: th.Time,
		},
	}
	e.units[th] = u
	return u
}

// leaderUnit resolves the thread group leader's state; lookups of the
// group owned maps go through this.
func (e *Engine) leaderUnit(u *unit) *unit {
	if u.pid == u.thread.Tid {
		return u
	}
	lu, ok := e.units[e.threadOf(u.pid)]
	if !ok {
		return nil
	}
	return lu
}

// procEnd releases one thread's analysis state.
func (e *Engine) procEnd(u *unit) {
	if u == nil {
		return
	}
	delete(e.leaders, u.thread)
	u.clearProc()
	delete(e.units, u.thread)
}

// procGroupEnd releases every thread in the invoker's group, then the
// leader, resetting each released creation time slot.
func (e *Engine) procGroupEnd(u *unit) {
	if u == nil {
		return
	}
	leaderTh, ok := e.leaders[u.thread]
	if !ok {
		// no group was ever registered; the thread is its own leader
		leaderTh = u.thread
	}
	for m := range e.groups[leaderTh] {
		if mu, ok := e.units[m]; ok {
			e.procEnd(mu)
		}
		delete(e.leaders, m)
		e.resetSlot(m.Tid)
	}
	delete(e.groups, leaderTh)
	if lu, ok := e.units[leaderTh]; ok {
		e.procEnd(lu)
	}
	delete(e.leaders, leaderTh)
	e.resetSlot(leaderTh.Tid)
}

// setThreadGroupLeader registers child under parent's leader, creating
// the leader's self entry on first use.
func (e *Engine) setThreadGroupLeader(child, parent Thread) {
	if _, ok := e.leaders[child]; ok {
		return
	}
	leader, ok := e.leaders[parent]
	if !ok {
		leader = parent
		e.leaders[parent] = parent
	}
	e.leaders[child] = leader
	g, ok := e.groups[leader]
	if !ok {
		g = make(map[Thread]bool, 4)
		e.groups[leader] = g
	}
	g[child] = true
}

// setPid marks child as a thread of parent's group, inheriting the
// group leader pid.
func (e *Engine) setPid(childTid, parentTid int32) {
	parentTh := e.threadOf(parentTid)
	ppid := parentTid
	if pu, ok := e.units[parentTh]; ok {
		ppid = pu.pid
	}
	childTh := e.threadOf(childTid)
	if cu, ok := e.units[childTh]; ok {
		cu.pid = ppid
	} else {
		e.addUnit(childTid, ppid, false)
	}
	e.setThreadGroupLeader(childTh, parentTh)
}
