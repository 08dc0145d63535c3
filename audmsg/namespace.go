/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package audmsg

import (
	"github.com/provatrace/provatrace/seqbuf"
)

type NamespaceOp int

const (
	NsOpNewProcess NamespaceOp = iota
	NsOpSetNs
)

func (op NamespaceOp) String() string {
	if op == NsOpSetNs {
		return `ns_SETNS`
	}
	return `ns_NEWPROCESS`
}

// Namespace records the namespace inode set of a process at creation
// or at a setns style transition.
type Namespace struct {
	Header          Header
	Process         Process
	Op              NamespaceOp
	SyscallNumber   int
	NsPid           int32
	HostPid         int32
	InumMnt         uint64
	InumNet         uint64
	InumPid         uint64
	InumPidChildren uint64
	InumUsr         uint64
	InumIpc         uint64
	InumCgroup      uint64
}

func (m *Namespace) Init(hdr Header) error {
	if hdr.Type != MsgNamespace {
		return ErrBadVariant
	}
	m.Header = hdr
	return nil
}

func (m *Namespace) Serialize(sb *seqbuf.SeqBuf) error {
	sb.Printf("ns_syscall=%d ", m.SyscallNumber)
	sb.WriteString(`ns_subtype=ns_namespaces `)
	sb.Printf("ns_operation=%s ", m.Op)
	sb.Printf("ns_ns_pid=%d ", m.NsPid)
	sb.Printf("ns_host_pid=%d ", m.HostPid)
	sb.Printf("ns_inum_mnt=%d ", m.InumMnt)
	sb.Printf("ns_inum_net=%d ", m.InumNet)
	sb.Printf("ns_inum_pid=%d ", m.InumPid)
	sb.Printf("ns_inum_pid_children=%d ", m.InumPidChildren)
	sb.Printf("ns_inum_usr=%d ", m.InumUsr)
	sb.Printf("ns_inum_ipc=%d ", m.InumIpc)
	return sb.Printf("ns_inum_cgroup=%d", m.InumCgroup)
}
