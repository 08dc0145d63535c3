/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package kaudit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/provatrace/provatrace/audfilter"
	"github.com/provatrace/provatrace/audmsg"
)

// tcp4Packet builds a minimal IPv4+TCP frame.
func tcp4Packet() []byte {
	pkt := []byte{
		//IPv4 header
		0x45, 0x00, 0x00, 0x28, //version/ihl, tos, total length 40
		0x00, 0x00, 0x00, 0x00, //id, flags/fragment
		0x40, 0x06, 0x00, 0x00, //ttl, proto TCP, checksum
		10, 0, 0, 1, //src
		10, 0, 0, 2, //dst
		//TCP header
		0x04, 0xd2, 0x00, 0x50, //sport 1234, dport 80
		0x00, 0x00, 0x00, 0x00, //seq
		0x00, 0x00, 0x00, 0x00, //ack
		0x50, 0x02, 0xff, 0xff, //data offset, SYN, window
		0x00, 0x00, 0x00, 0x00, //checksum, urgent
	}
	return pkt
}

func udp6Packet() []byte {
	pkt := []byte{
		//IPv6 header
		0x60, 0x00, 0x00, 0x00, //version/class/flow
		0x00, 0x08, 0x11, 0x40, //payload len 8, next header UDP, hop limit
		//src fe80::1
		0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1,
		//dst fe80::2
		0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2,
		//UDP header
		0x00, 0x35, 0xc0, 0x00, //sport 53, dport 49152
		0x00, 0x08, 0x00, 0x00, //length, checksum
	}
	return pkt
}

func TestClassifyPacket(t *testing.T) {
	m, err := classifyPacket(tcp4Packet())
	require.NoError(t, err)
	require.Equal(t, audmsg.IPv4, m.IPVersion)
	require.Equal(t, audmsg.TransportTCP, m.Transport)
	require.Equal(t, uint16(1234), m.SrcPort)
	require.Equal(t, uint16(80), m.DstPort)
	require.Equal(t, `10.0.0.1`, m.SrcAddr.String())

	m, err = classifyPacket(udp6Packet())
	require.NoError(t, err)
	require.Equal(t, audmsg.IPv6, m.IPVersion)
	require.Equal(t, audmsg.TransportUDP, m.Transport)
	require.Equal(t, uint16(53), m.SrcPort)

	_, err = classifyPacket([]byte{0x20, 0x01, 0x02})
	require.ErrorIs(t, err, ErrNotIP)
	_, err = classifyPacket(nil)
	require.ErrorIs(t, err, ErrNotIP)
}

func TestConntrackPolicy(t *testing.T) {
	e, sink := testEngine(t, nil)
	ctx := openContext()
	ctx.Netfilter.MonitorCt = audfilter.CtMonitorOnlyNew
	startDry(t, e, ctx)

	meta := PacketMeta{
		Hook:      audmsg.NfHookPreRouting,
		Priority:  audmsg.NfPriorityFirst,
		Conntrack: audfilter.CtNew,
		NetNsInum: 4026531992,
		SkbID:     0xabc,
	}
	require.NoError(t, e.NetfilterPacket(meta, tcp4Packet()))
	require.Len(t, sink.lines, 1)
	require.Contains(t, sink.lines[0], `nf_hook=NF_INET_PRE_ROUTING`)
	require.Contains(t, sink.lines[0], `nf_protocol=TCP`)
	require.Zero(t, e.NetfilterDiscards())

	meta.Conntrack = audfilter.CtEstablished
	require.NoError(t, e.NetfilterPacket(meta, tcp4Packet()))
	require.Len(t, sink.lines, 1, "established packet must not produce a record")
	require.Equal(t, uint64(1), e.NetfilterDiscards())
}

func TestUnclassifiableDiscards(t *testing.T) {
	e, sink := testEngine(t, nil)
	startDry(t, e, openContext())
	meta := PacketMeta{Conntrack: audfilter.CtNew}
	require.NoError(t, e.NetfilterPacket(meta, []byte{0x00, 0x01}))
	require.Empty(t, sink.lines)
	require.Equal(t, uint64(1), e.NetfilterDiscards())
}

func TestNetfilterRequiresStart(t *testing.T) {
	e, _ := testEngine(t, nil)
	err := e.NetfilterPacket(PacketMeta{}, tcp4Packet())
	require.ErrorIs(t, err, ErrNotStarted)
}
