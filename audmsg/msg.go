/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package audmsg defines the audit message variants emitted by the
// capture core and their canonical key=value wire serialization.  A
// message is a common header plus exactly one variant payload; the
// serializer writes into a bounded seqbuf and reports overflow so the
// caller can drop the record instead of emitting a truncated line.
package audmsg

import (
	"errors"

	"github.com/provatrace/provatrace/seqbuf"
)

const (
	// TaskCommLen is the fixed width of the kernel task comm field.
	TaskCommLen = 16
	// HexTaskCommLen is the width of the hex encoded comm on the wire.
	HexTaskCommLen = TaskCommLen * 2

	// MaxRecordSize bounds a single serialized audit record.
	MaxRecordSize = 2048
)

var (
	ErrNilMessage   = errors.New("nil message")
	ErrBadVariant   = errors.New("message variant does not match header type")
	ErrShortAddress = errors.New("socket address truncated")
)

type MsgType int

const (
	MsgNamespace MsgType = iota
	MsgNetfilter
	MsgNetworkIO
	MsgUBSI
)

func (mt MsgType) String() string {
	switch mt {
	case MsgNamespace:
		return `namespace`
	case MsgNetfilter:
		return `netfilter`
	case MsgNetworkIO:
		return `network_io`
	case MsgUBSI:
		return `ubsi`
	}
	return `unknown`
}

// Version is carried in the header for compatibility tracking but is
// deliberately suppressed from the audit wire form.
type Version struct {
	Major uint
	Minor uint
	Patch uint
}

type Header struct {
	Type    MsgType
	Version Version
}

// Message is the capability set shared by all variants.
type Message interface {
	Init(hdr Header) error
	Serialize(sb *seqbuf.SeqBuf) error
}

// New allocates the variant matching the given type with the header
// already applied.
func New(t MsgType) (Message, error) {
	hdr := Header{Type: t, Version: CurrentVersion}
	var m Message
	switch t {
	case MsgNamespace:
		m = &Namespace{}
	case MsgNetfilter:
		m = &Netfilter{}
	case MsgNetworkIO:
		m = &NetworkIO{}
	case MsgUBSI:
		m = &UBSI{}
	default:
		return nil, ErrBadVariant
	}
	if err := m.Init(hdr); err != nil {
		return nil, err
	}
	return m, nil
}

// CurrentVersion is the message schema version stamped into headers.
var CurrentVersion = Version{Major: 1, Minor: 0, Patch: 0}
