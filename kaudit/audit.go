/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package kaudit

import (
	"github.com/provatrace/provatrace/audfilter"
	"github.com/provatrace/provatrace/audmsg"
)

// syscallNumbers maps function numbers to the x86_64 syscall numbers
// carried on the wire.
var syscallNumbers = map[audfilter.FuncNumber]int{
	audfilter.FuncAccept:   43,
	audfilter.FuncAccept4:  288,
	audfilter.FuncBind:     49,
	audfilter.FuncClone:    56,
	audfilter.FuncConnect:  42,
	audfilter.FuncFork:     57,
	audfilter.FuncKill:     62,
	audfilter.FuncRecvfrom: 45,
	audfilter.FuncRecvmsg:  47,
	audfilter.FuncSendmsg:  46,
	audfilter.FuncSendto:   44,
	audfilter.FuncSetns:    308,
	audfilter.FuncUnshare:  272,
	audfilter.FuncVfork:    58,
}

func msgProcess(t TaskInfo) audmsg.Process {
	p := audmsg.Process{
		Pid:   int32(t.Pid),
		Ppid:  int32(t.Ppid),
		Uid:   uint32(t.Uid),
		Euid:  uint32(t.Euid),
		Suid:  uint32(t.Suid),
		Fsuid: uint32(t.Fsuid),
		Gid:   uint32(t.Gid),
		Egid:  uint32(t.Egid),
		Sgid:  uint32(t.Sgid),
		Fsgid: uint32(t.Fsgid),
	}
	p.SetComm(t.Comm)
	return p
}

// auditNetworkIOPost emits a network I/O record for send/recv/connect
// style calls.  A failed socket lookup drops the record only.
func auditNetworkIOPost(e *Engine, ctx *PostContext) error {
	if e.socks == nil {
		return nil
	}
	fd := ctx.Args[0]
	si, err := e.socks.SockInfo(fd)
	if err != nil {
		e.debugf("socket lookup miss for fd %d: %v", fd, err)
		return nil
	}
	m := audmsg.NetworkIO{
		Process:         msgProcess(ctx.Proc),
		SyscallNumber:   syscallNumbers[ctx.Func],
		Exit:            ctx.Ret,
		Success:         ctx.Success,
		Fd:              int32(fd),
		SockType:        si.SockType,
		LocalSaddr:      si.Local,
		LocalSaddrSize:  len(si.Local),
		RemoteSaddr:     si.Remote,
		RemoteSaddrSize: len(si.Remote),
		NetNsInum:       si.NetNsInum,
	}
	if err := m.Init(audmsg.Header{Type: audmsg.MsgNetworkIO, Version: audmsg.CurrentVersion}); err != nil {
		return err
	}
	e.submit(&m)
	return nil
}

// auditNamespacePost emits a namespace record for process creation and
// namespace transition calls.
func auditNamespacePost(e *Engine, ctx *PostContext) error {
	if e.ns == nil {
		return nil
	}
	op := audmsg.NsOpNewProcess
	pid := ctx.Proc.Pid
	if ctx.Func == audfilter.FuncSetns || ctx.Func == audfilter.FuncUnshare {
		op = audmsg.NsOpSetNs
	} else if ctx.Success {
		// creation events report the child
		pid = ctx.Ret
	}
	inums, err := e.ns.Namespaces(pid)
	if err != nil {
		e.debugf("namespace lookup miss for pid %d: %v", pid, err)
		return nil
	}
	m := audmsg.Namespace{
		Process:         msgProcess(ctx.Proc),
		Op:              op,
		SyscallNumber:   syscallNumbers[ctx.Func],
		NsPid:           inums.NsPid,
		HostPid:         int32(pid),
		InumMnt:         inums.Mnt,
		InumNet:         inums.Net,
		InumPid:         inums.Pid,
		InumPidChildren: inums.PidChildren,
		InumUsr:         inums.Usr,
		InumIpc:         inums.Ipc,
		InumCgroup:      inums.Cgroup,
	}
	if err := m.Init(audmsg.Header{Type: audmsg.MsgNamespace, Version: audmsg.CurrentVersion}); err != nil {
		return err
	}
	e.submit(&m)
	return nil
}

// auditKillPost emits the ubsi_intercepted record.  A vetoed or failed
// real kill is not reported; beacon sentinels always are.
func auditKillPost(e *Engine, ctx *PostContext) error {
	if !ctx.Success {
		return nil
	}
	m := audmsg.UBSI{
		Process:       msgProcess(ctx.Proc),
		SyscallNumber: syscallNumbers[ctx.Func],
		Exit:          ctx.Ret,
		Success:       ctx.Success,
		TargetPid:     ctx.Args[0],
		Signal:        ctx.Args[1],
	}
	if err := m.Init(audmsg.Header{Type: audmsg.MsgUBSI, Version: audmsg.CurrentVersion}); err != nil {
		return err
	}
	e.submit(&m)
	return nil
}

// buildDefs registers the static hook table.  Order matters only for
// the action lists: filter first, function specific actions after.
func (e *Engine) buildDefs() error {
	netPre := []PreAction{preFilterAction}
	netPost := []PostAction{postFilterAction, auditNetworkIOPost}
	nsPost := []PostAction{postFilterAction, auditNamespacePost}

	e.defs = []*HookDef{
		{Func: audfilter.FuncAccept, Symbol: `__x64_sys_accept`, Pre: netPre, Post: netPost},
		{Func: audfilter.FuncAccept4, Symbol: `__x64_sys_accept4`, Pre: netPre, Post: netPost},
		{Func: audfilter.FuncBind, Symbol: `__x64_sys_bind`, Pre: netPre, Post: netPost},
		{Func: audfilter.FuncClone, Symbol: `__x64_sys_clone`, Pre: []PreAction{preFilterAction}, Post: nsPost},
		{Func: audfilter.FuncConnect, Symbol: `__x64_sys_connect`, Pre: netPre, Post: netPost, Success: connectSuccess},
		{Func: audfilter.FuncFork, Symbol: `__x64_sys_fork`, Pre: []PreAction{preFilterAction}, Post: nsPost},
		{Func: audfilter.FuncKill, Symbol: `__x64_sys_kill`, Pre: []PreAction{preFilterAction, hardenKillPre}, Post: []PostAction{postFilterAction, auditKillPost}, Success: killSuccess},
		{Func: audfilter.FuncRecvfrom, Symbol: `__x64_sys_recvfrom`, Pre: netPre, Post: netPost},
		{Func: audfilter.FuncRecvmsg, Symbol: `__x64_sys_recvmsg`, Pre: netPre, Post: netPost},
		{Func: audfilter.FuncSendmsg, Symbol: `__x64_sys_sendmsg`, Pre: netPre, Post: netPost},
		{Func: audfilter.FuncSendto, Symbol: `__x64_sys_sendto`, Pre: netPre, Post: netPost},
		{Func: audfilter.FuncSetns, Symbol: `__x64_sys_setns`, Pre: []PreAction{preFilterAction}, Post: nsPost},
		{Func: audfilter.FuncUnshare, Symbol: `__x64_sys_unshare`, Pre: []PreAction{preFilterAction}, Post: nsPost},
		{Func: audfilter.FuncVfork, Symbol: `__x64_sys_vfork`, Pre: []PreAction{preFilterAction}, Post: nsPost},
	}
	return nil
}
