/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package audmsg

import (
	"encoding/hex"

	"github.com/provatrace/provatrace/seqbuf"
)

// Process is the credential block attached to every message.  Comm is
// fixed width; shorter names are NUL padded so the hex form is always
// HexTaskCommLen characters.
type Process struct {
	Pid   int32
	Ppid  int32
	Uid   uint32
	Euid  uint32
	Suid  uint32
	Fsuid uint32
	Gid   uint32
	Egid  uint32
	Sgid  uint32
	Fsgid uint32
	Comm  [TaskCommLen]byte
}

// SetComm copies a command name into the fixed comm buffer, truncating
// and zero filling as the kernel does.
func (p *Process) SetComm(name string) {
	var comm [TaskCommLen]byte
	copy(comm[:], name)
	p.Comm = comm
}

// CommHex returns the wire form of the comm field.
func (p *Process) CommHex() string {
	return hex.EncodeToString(p.Comm[:])
}

func (p *Process) serialize(sb *seqbuf.SeqBuf) error {
	sb.Printf("pid=%d ", p.Pid)
	sb.Printf("ppid=%d ", p.Ppid)
	sb.Printf("gid=%d ", p.Gid)
	sb.Printf("egid=%d ", p.Egid)
	sb.Printf("sgid=%d ", p.Sgid)
	sb.Printf("fsgid=%d ", p.Fsgid)
	sb.Printf("uid=%d ", p.Uid)
	sb.Printf("euid=%d ", p.Euid)
	sb.Printf("suid=%d ", p.Suid)
	sb.Printf("fsuid=%d ", p.Fsuid)
	return sb.Printf("comm=%s", p.CommHex())
}
