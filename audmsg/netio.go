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

// MaxSockAddrLen bounds the raw socket address blobs carried by a
// network I/O message.
const MaxSockAddrLen = 128

// NetworkIO records one send/receive/connect/accept style syscall with
// both endpoint addresses captured as raw bytes.
type NetworkIO struct {
	Header          Header
	Process         Process
	SyscallNumber   int
	Exit            int64
	Success         bool
	Fd              int32
	SockType        int32
	LocalSaddr      []byte
	LocalSaddrSize  int
	RemoteSaddr     []byte
	RemoteSaddrSize int
	NetNsInum       uint64
}

func (m *NetworkIO) Init(hdr Header) error {
	if hdr.Type != MsgNetworkIO {
		return ErrBadVariant
	}
	m.Header = hdr
	return nil
}

func (m *NetworkIO) Serialize(sb *seqbuf.SeqBuf) error {
	if m.LocalSaddrSize > len(m.LocalSaddr) || m.RemoteSaddrSize > len(m.RemoteSaddr) {
		return ErrShortAddress
	}
	succ := 0
	if m.Success {
		succ = 1
	}
	sb.WriteString(`netio_intercepted="`)
	sb.Printf("syscall=%d ", m.SyscallNumber)
	sb.Printf("exit=%d ", m.Exit)
	sb.Printf("success=%d ", succ)
	sb.Printf("fd=%d ", m.Fd)
	m.Process.serialize(sb)
	sb.Printf(" sock_type=%d ", m.SockType)
	sb.Printf("local_saddr=%s ", hex.EncodeToString(m.LocalSaddr[:m.LocalSaddrSize]))
	sb.Printf("remote_saddr=%s ", hex.EncodeToString(m.RemoteSaddr[:m.RemoteSaddrSize]))
	sb.Printf("remote_saddr_size=%d ", m.RemoteSaddrSize)
	sb.Printf("net_ns_inum=%d", m.NetNsInum)
	return sb.WriteString(`"`)
}
