/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package audfilter

// ConntrackState is the connection tracking classification of an
// observed packet.
type ConntrackState int

const (
	CtNew ConntrackState = iota
	CtEstablished
	CtRelated
	CtEstablishedReply
	CtRelatedReply
	CtUntracked
)

func (s ConntrackState) String() string {
	switch s {
	case CtNew:
		return `IP_CT_NEW`
	case CtEstablished:
		return `IP_CT_ESTABLISHED`
	case CtRelated:
		return `IP_CT_RELATED`
	case CtEstablishedReply:
		return `IP_CT_ESTABLISHED_REPLY`
	case CtRelatedReply:
		return `IP_CT_RELATED_REPLY`
	case CtUntracked:
		return `IP_CT_UNTRACKED`
	}
	return `IP_CT_UNKNOWN`
}

// CtMode selects which conntrack classifications are monitored.
type CtMode int

const (
	CtMonitorAll     CtMode = -1
	CtMonitorOnlyNew CtMode = 0
)

// NetfilterContext is the evaluated netfilter filter configuration.
type NetfilterContext struct {
	HooksOn       bool
	IncludeNsInfo bool
	UseUser       bool
	MonitorCt     CtMode
	User          IDList
}

func (c *NetfilterContext) Validate() error {
	return c.User.Validate()
}

// UserActionable applies the optional user predicate; with UseUser off
// every packet passes.
func (c *NetfilterContext) UserActionable(uid int64) bool {
	if !c.UseUser {
		return true
	}
	return c.User.Actionable(uid)
}

// ConntrackActionable admits packets by conntrack classification.
func (c *NetfilterContext) ConntrackActionable(ct ConntrackState) bool {
	if c.MonitorCt == CtMonitorAll {
		return true
	}
	return ct == CtNew
}
