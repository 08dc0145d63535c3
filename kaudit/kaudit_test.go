/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package kaudit

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/provatrace/provatrace/audfilter"
)

type fakeTasks struct {
	cur   TaskInfo
	tgids map[int64]int64
}

func (f *fakeTasks) Current() TaskInfo {
	return f.cur
}

func (f *fakeTasks) TgidOf(pid int64) int64 {
	if t, ok := f.tgids[pid]; ok {
		return t
	}
	return -3 //ESRCH
}

type fakeSocks struct {
	info SockInfo
	err  error
}

func (f *fakeSocks) SockInfo(fd int64) (SockInfo, error) {
	return f.info, f.err
}

type fakeNs struct {
	inums NsInums
	err   error
}

func (f *fakeNs) Namespaces(pid int64) (NsInums, error) {
	return f.inums, f.err
}

type fakePlatform struct {
	symbols    map[string]uintptr
	installs   int
	uninstalls int
	failAt     string
}

func (f *fakePlatform) Resolve(symbol string) (uintptr, error) {
	if a, ok := f.symbols[symbol]; ok {
		return a, nil
	}
	return 0, ErrSymbolNotFound
}

func (f *fakePlatform) Install(addr uintptr, symbol string, hook Fn) (Fn, error) {
	if symbol == f.failAt {
		return nil, errors.New("install refused")
	}
	f.installs++
	return func(args Args) int64 { return 0 }, nil
}

func (f *fakePlatform) Uninstall(addr uintptr, symbol string, orig Fn) error {
	f.uninstalls++
	return nil
}

func allSymbols() map[string]uintptr {
	mp := make(map[string]uintptr, 16)
	syms := []string{
		`__x64_sys_accept`, `__x64_sys_accept4`, `__x64_sys_bind`, `__x64_sys_clone`,
		`__x64_sys_connect`, `__x64_sys_fork`, `__x64_sys_kill`, `__x64_sys_recvfrom`,
		`__x64_sys_recvmsg`, `__x64_sys_sendmsg`, `__x64_sys_sendto`, `__x64_sys_setns`,
		`__x64_sys_unshare`, `__x64_sys_vfork`,
	}
	for i, s := range syms {
		mp[s] = uintptr(0x1000 + i)
	}
	return mp
}

type fakeSink struct {
	lines []string
}

func (f *fakeSink) Submit(line string) error {
	f.lines = append(f.lines, line)
	return nil
}

func openContext() *audfilter.Context {
	return &audfilter.Context{
		NetworkIO:     true,
		IncludeNsInfo: true,
		MonitorResult: audfilter.MonitorAll,
		Pids:          audfilter.IDList{Mode: audfilter.ModeIgnore},
		Ppids:         audfilter.IDList{Mode: audfilter.ModeIgnore},
		Uids:          audfilter.IDList{Mode: audfilter.ModeIgnore},
		Netfilter: audfilter.NetfilterContext{
			HooksOn:   true,
			MonitorCt: audfilter.CtMonitorAll,
		},
	}
}

func testEngine(t *testing.T, tasks *fakeTasks) (*Engine, *fakeSink) {
	t.Helper()
	if tasks == nil {
		tasks = &fakeTasks{cur: TaskInfo{Pid: 100, Ppid: 1, Uid: 0, Euid: 0, Comm: `test`}}
	}
	sink := &fakeSink{}
	e, err := NewEngine(EngineConfig{
		Tasks:    tasks,
		Socks:    &fakeSocks{info: SockInfo{SockType: 1, Local: []byte{1, 2}, Remote: []byte{3, 4}, NetNsInum: 99}},
		Ns:       &fakeNs{inums: NsInums{NsPid: 1, Mnt: 11, Net: 12, Pid: 13, PidChildren: 14, Usr: 15, Ipc: 16, Cgroup: 17}},
		Platform: &fakePlatform{symbols: allSymbols()},
		Sink:     sink,
	})
	require.NoError(t, err)
	return e, sink
}

func TestLifecycleTransitions(t *testing.T) {
	e, _ := testEngine(t, nil)
	require.False(t, e.AuditingStarted())
	require.ErrorIs(t, e.AuditingStart(openContext()), ErrNotInitialized)

	require.NoError(t, e.Init(true))
	require.ErrorIs(t, e.Init(true), ErrAlreadyInitialized)
	require.False(t, e.AuditingStarted())

	require.NoError(t, e.AuditingStart(openContext()))
	require.True(t, e.AuditingStarted())
	require.ErrorIs(t, e.AuditingStart(openContext()), ErrAlreadyStarted)

	//deinit while started must refuse
	require.Error(t, e.Deinit())

	require.NoError(t, e.AuditingStop())
	require.ErrorIs(t, e.AuditingStop(), ErrAlreadyStopped)
	require.False(t, e.AuditingStarted())

	require.NoError(t, e.Deinit())
	require.ErrorIs(t, e.Deinit(), ErrAlreadyDeinited)
}

func TestInstallRollbackOnFailure(t *testing.T) {
	plat := &fakePlatform{symbols: allSymbols(), failAt: `__x64_sys_kill`}
	sink := &fakeSink{}
	e, err := NewEngine(EngineConfig{
		Tasks:    &fakeTasks{},
		Platform: plat,
		Sink:     sink,
	})
	require.NoError(t, err)
	require.NoError(t, e.Init(false))
	err = e.AuditingStart(openContext())
	require.Error(t, err)
	require.False(t, e.AuditingStarted())
	//everything placed before the failure must have been restored
	require.Equal(t, plat.installs, plat.uninstalls)
	require.NotZero(t, plat.installs)
	//start must be retryable after the flag reverts
	plat.failAt = ``
	require.NoError(t, e.AuditingStart(openContext()))
	require.True(t, e.AuditingStarted())
}

func startDry(t *testing.T, e *Engine, ctx *audfilter.Context) {
	t.Helper()
	require.NoError(t, e.Init(true))
	require.NoError(t, e.AuditingStart(ctx))
}

func TestDisallowSuppressesOriginal(t *testing.T) {
	tasks := &fakeTasks{
		cur:   TaskInfo{Pid: 100, Ppid: 1, Uid: 2000, Euid: 2000, Comm: `attacker`},
		tgids: map[int64]int64{500: 500},
	}
	e, sink := testEngine(t, tasks)
	ctx := openContext()
	ctx.Harden.Tgids = []int64{500}
	ctx.Harden.AuthorizedUids = []int64{1000}
	startDry(t, e, ctx)

	def, err := e.DefByFunc(audfilter.FuncKill)
	require.NoError(t, err)
	origCalled := false
	hook, err := e.Wrapped(def, func(args Args) int64 {
		origCalled = true
		return 0
	})
	require.NoError(t, err)

	ret := hook(Args{500, 9})
	require.Equal(t, ErrnoEACCES, ret)
	require.False(t, origCalled, "vetoed call must not reach the original")
	require.Empty(t, sink.lines, "denied kill must not be audited")
}

func TestAuthorizedUidPassesHarden(t *testing.T) {
	tasks := &fakeTasks{
		cur:   TaskInfo{Pid: 100, Ppid: 1, Uid: 1000, Euid: 1000, Comm: `admin`},
		tgids: map[int64]int64{500: 500},
	}
	e, sink := testEngine(t, tasks)
	ctx := openContext()
	ctx.Harden.Tgids = []int64{500}
	ctx.Harden.AuthorizedUids = []int64{1000}
	startDry(t, e, ctx)

	def, _ := e.DefByFunc(audfilter.FuncKill)
	hook, _ := e.Wrapped(def, func(args Args) int64 { return 0 })
	require.Equal(t, int64(0), hook(Args{500, 9}))
	require.Len(t, sink.lines, 1)
	require.Contains(t, sink.lines[0], `ubsi_intercepted="syscall=62 `)
}

func TestKillSentinelForcedSuccess(t *testing.T) {
	e, sink := testEngine(t, nil)
	startDry(t, e, openContext())
	def, _ := e.DefByFunc(audfilter.FuncKill)
	//sentinel markers report success even when delivery fails
	hook, _ := e.Wrapped(def, func(args Args) int64 { return -3 })
	hook(Args{SentinelUEntry, 42})
	require.Len(t, sink.lines, 1)
	require.Contains(t, sink.lines[0], `a0=ffffff9c`)
	require.Contains(t, sink.lines[0], `success=yes`)
}

func TestFilterSkipsChains(t *testing.T) {
	e, sink := testEngine(t, nil)
	ctx := openContext()
	ctx.Pids = audfilter.IDList{Mode: audfilter.ModeCapture, Ids: []int64{555}}
	startDry(t, e, ctx)
	def, _ := e.DefByFunc(audfilter.FuncSendto)
	hook, _ := e.Wrapped(def, func(args Args) int64 { return 7 })
	//current pid 100 is not captured; call proceeds but nothing is audited
	require.Equal(t, int64(7), hook(Args{3}))
	require.Empty(t, sink.lines)
}

func TestNetworkAuditEmitted(t *testing.T) {
	e, sink := testEngine(t, nil)
	startDry(t, e, openContext())
	def, _ := e.DefByFunc(audfilter.FuncSendto)
	hook, _ := e.Wrapped(def, func(args Args) int64 { return 128 })
	require.Equal(t, int64(128), hook(Args{3}))
	require.Len(t, sink.lines, 1)
	line := sink.lines[0]
	require.True(t, strings.HasPrefix(line, `netio_intercepted="syscall=44 `), line)
	require.Contains(t, line, `exit=128`)
	require.Contains(t, line, `net_ns_inum=99`)
}

func TestSockLookupMissDropsRecordOnly(t *testing.T) {
	sink := &fakeSink{}
	e, err := NewEngine(EngineConfig{
		Tasks:    &fakeTasks{},
		Socks:    &fakeSocks{err: errors.New("no such fd")},
		Platform: &fakePlatform{symbols: allSymbols()},
		Sink:     sink,
	})
	require.NoError(t, err)
	startDry(t, e, openContext())
	def, _ := e.DefByFunc(audfilter.FuncRecvmsg)
	called := false
	hook, _ := e.Wrapped(def, func(args Args) int64 { called = true; return 16 })
	require.Equal(t, int64(16), hook(Args{9}))
	require.True(t, called)
	require.Empty(t, sink.lines)
}

func TestConnectInProgressIsSuccess(t *testing.T) {
	e, sink := testEngine(t, nil)
	ctx := openContext()
	ctx.MonitorResult = audfilter.MonitorOnlySuccessful
	startDry(t, e, ctx)
	def, _ := e.DefByFunc(audfilter.FuncConnect)
	hook, _ := e.Wrapped(def, func(args Args) int64 { return ErrnoEINPROGRESS })
	hook(Args{5})
	require.Len(t, sink.lines, 1)
}

func TestNotStartedNothingActionable(t *testing.T) {
	e, sink := testEngine(t, nil)
	require.NoError(t, e.Init(true))
	def, _ := e.DefByFunc(audfilter.FuncSendto)
	hook, _ := e.Wrapped(def, func(args Args) int64 { return 1 })
	require.Equal(t, int64(1), hook(Args{3}))
	require.Empty(t, sink.lines)
}
