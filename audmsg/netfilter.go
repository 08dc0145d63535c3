/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package audmsg

import (
	"errors"
	"net"

	"github.com/provatrace/provatrace/seqbuf"
)

var (
	ErrBadIPVersion = errors.New("netfilter message has no well defined ip version")
	ErrBadTransport = errors.New("netfilter message has no well defined transport")
)

type NetfilterHook int

const (
	NfHookPreRouting NetfilterHook = iota
	NfHookLocalIn
	NfHookForward
	NfHookLocalOut
	NfHookPostRouting
)

func (h NetfilterHook) String() string {
	switch h {
	case NfHookPreRouting:
		return `NF_INET_PRE_ROUTING`
	case NfHookLocalIn:
		return `NF_INET_LOCAL_IN`
	case NfHookForward:
		return `NF_INET_FORWARD`
	case NfHookLocalOut:
		return `NF_INET_LOCAL_OUT`
	case NfHookPostRouting:
		return `NF_INET_POST_ROUTING`
	}
	return `NF_INET_UNKNOWN`
}

type NetfilterPriority int

const (
	NfPriorityFirst NetfilterPriority = iota
	NfPriorityLast
)

func (p NetfilterPriority) String() string {
	if p == NfPriorityLast {
		return `NF_IP_PRI_LAST`
	}
	return `NF_IP_PRI_FIRST`
}

type IPVersion int

const (
	IPVersionUnknown IPVersion = iota
	IPv4
	IPv6
)

func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return `IPV4`
	case IPv6:
		return `IPV6`
	}
	return `UNKNOWN`
}

type Transport int

const (
	TransportUnknown Transport = iota
	TransportTCP
	TransportUDP
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return `TCP`
	case TransportUDP:
		return `UDP`
	}
	return `UNKNOWN`
}

// Netfilter records one packet observation at a netfilter hook point.
type Netfilter struct {
	Header    Header
	Process   Process
	Hook      NetfilterHook
	Priority  NetfilterPriority
	IPVersion IPVersion
	Transport Transport
	SrcAddr   net.IP
	SrcPort   uint16
	DstAddr   net.IP
	DstPort   uint16
	NetNsInum uint64
	SkbID     uint64
}

func (m *Netfilter) Init(hdr Header) error {
	if hdr.Type != MsgNetfilter {
		return ErrBadVariant
	}
	m.Header = hdr
	return nil
}

// formatIP renders v4 addresses dotted quad and v6 addresses as eight
// colon separated 16 bit hex groups, uncompressed.
func formatIP(ip net.IP, v IPVersion) string {
	if v == IPv4 {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
		return `0.0.0.0`
	}
	v6 := ip.To16()
	if v6 == nil {
		v6 = net.IPv6zero
	}
	var buf [39]byte
	out := buf[:0]
	for i := 0; i < 16; i += 2 {
		if i > 0 {
			out = append(out, ':')
		}
		out = appendHex16(out, uint16(v6[i])<<8|uint16(v6[i+1]))
	}
	return string(out)
}

const hexdigits = `0123456789abcdef`

func appendHex16(dst []byte, v uint16) []byte {
	started := false
	for shift := 12; shift >= 0; shift -= 4 {
		d := (v >> uint(shift)) & 0xf
		if d != 0 || started || shift == 0 {
			dst = append(dst, hexdigits[d])
			started = true
		}
	}
	return dst
}

func (m *Netfilter) Serialize(sb *seqbuf.SeqBuf) error {
	if m.IPVersion != IPv4 && m.IPVersion != IPv6 {
		return ErrBadIPVersion
	}
	if m.Transport != TransportTCP && m.Transport != TransportUDP {
		return ErrBadTransport
	}
	sb.WriteString(`nf_subtype=nf_netfilter `)
	sb.Printf("nf_hook=%s ", m.Hook)
	sb.Printf("nf_priority=%s ", m.Priority)
	sb.Printf("nf_id=%016x ", m.SkbID)
	sb.Printf("nf_src_ip=%s ", formatIP(m.SrcAddr, m.IPVersion))
	sb.Printf("nf_src_port=%d ", m.SrcPort)
	sb.Printf("nf_dst_ip=%s ", formatIP(m.DstAddr, m.IPVersion))
	sb.Printf("nf_dst_port=%d ", m.DstPort)
	sb.Printf("nf_protocol=%s ", m.Transport)
	sb.Printf("nf_ip_version=%s ", m.IPVersion)
	return sb.Printf("nf_net_ns=%d", m.NetNsInum)
}
