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
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/provatrace/provatrace/audfilter"
	"github.com/provatrace/provatrace/audmsg"
)

var (
	ErrNotIP        = errors.New("packet is not IPv4 or IPv6")
	ErrNotTransport = errors.New("packet is not TCP or UDP")
)

// PacketMeta is what the netfilter hook layer hands us alongside the
// raw packet bytes.
type PacketMeta struct {
	Hook      audmsg.NetfilterHook
	Priority  audmsg.NetfilterPriority
	Conntrack audfilter.ConntrackState
	Uid       int64
	NetNsInum uint64
	SkbID     uint64
}

// classifyPacket decodes the IP and transport headers of a raw packet.
// Anything that is not IPv4/IPv6 over TCP/UDP is unclassifiable and
// gets discarded by the caller.
func classifyPacket(data []byte) (m audmsg.Netfilter, err error) {
	if len(data) == 0 {
		return m, ErrNotIP
	}
	var pkt gopacket.Packet
	switch data[0] >> 4 {
	case 4:
		pkt = gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.NoCopy)
		ip4, ok := pkt.NetworkLayer().(*layers.IPv4)
		if !ok {
			return m, ErrNotIP
		}
		m.IPVersion = audmsg.IPv4
		m.SrcAddr = ip4.SrcIP
		m.DstAddr = ip4.DstIP
	case 6:
		pkt = gopacket.NewPacket(data, layers.LayerTypeIPv6, gopacket.NoCopy)
		ip6, ok := pkt.NetworkLayer().(*layers.IPv6)
		if !ok {
			return m, ErrNotIP
		}
		m.IPVersion = audmsg.IPv6
		m.SrcAddr = ip6.SrcIP
		m.DstAddr = ip6.DstIP
	default:
		return m, ErrNotIP
	}
	switch tl := pkt.TransportLayer().(type) {
	case *layers.TCP:
		m.Transport = audmsg.TransportTCP
		m.SrcPort = uint16(tl.SrcPort)
		m.DstPort = uint16(tl.DstPort)
	case *layers.UDP:
		m.Transport = audmsg.TransportUDP
		m.SrcPort = uint16(tl.SrcPort)
		m.DstPort = uint16(tl.DstPort)
	default:
		return m, ErrNotTransport
	}
	return m, nil
}

// NetfilterPacket classifies one observed packet and emits a netfilter
// record if the filter admits it.  Unclassifiable packets and packets
// rejected by policy bump the discard counter.
func (e *Engine) NetfilterPacket(meta PacketMeta, data []byte) error {
	if !e.AuditingStarted() {
		return ErrNotStarted
	}
	if !e.ctx.Netfilter.HooksOn {
		return nil
	}
	if !e.ctx.Netfilter.UserActionable(meta.Uid) {
		atomic.AddUint64(&e.nfDiscards, 1)
		return nil
	}
	if !e.ctx.Netfilter.ConntrackActionable(meta.Conntrack) {
		atomic.AddUint64(&e.nfDiscards, 1)
		return nil
	}
	m, err := classifyPacket(data)
	if err != nil {
		atomic.AddUint64(&e.nfDiscards, 1)
		e.debugf("netfilter packet discarded: %v", err)
		return nil
	}
	m.Hook = meta.Hook
	m.Priority = meta.Priority
	m.NetNsInum = meta.NetNsInum
	m.SkbID = meta.SkbID
	m.Process = msgProcess(e.tasks.Current())
	if err := m.Init(audmsg.Header{Type: audmsg.MsgNetfilter, Version: audmsg.CurrentVersion}); err != nil {
		return err
	}
	return e.submit(&m)
}
