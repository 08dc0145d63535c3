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

// UBSI records an intercepted kill syscall carrying a unit beacon
// sentinel.  TargetPid and Signal land in a0/a1 of the wire form; a2,
// a3 and items are fixed zero so the line parses like a native audit
// SYSCALL record downstream.
type UBSI struct {
	Header        Header
	Process       Process
	SyscallNumber int
	Exit          int64
	Success       bool
	Signal        int64
	TargetPid     int64
}

func (m *UBSI) Init(hdr Header) error {
	if hdr.Type != MsgUBSI {
		return ErrBadVariant
	}
	m.Header = hdr
	return nil
}

func (m *UBSI) Serialize(sb *seqbuf.SeqBuf) error {
	succ := `no`
	if m.Success {
		succ = `yes`
	}
	sb.WriteString(`ubsi_intercepted="`)
	sb.Printf("syscall=%d ", m.SyscallNumber)
	sb.Printf("success=%s ", succ)
	sb.Printf("exit=%d ", m.Exit)
	sb.Printf("a0=%x ", uint64(m.TargetPid)&0xffffffff)
	sb.Printf("a1=%x ", uint64(m.Signal)&0xffffffff)
	sb.WriteString(`a2=0 a3=0 items=0 `)
	m.Process.serialize(sb)
	return sb.WriteString(`"`)
}
