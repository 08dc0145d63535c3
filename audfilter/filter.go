/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package audfilter holds the pure decision logic that classifies an
// intercepted function call as actionable or not.  Nothing in here
// touches global state; callers hand in the filter context and the
// observed call attributes and get back a verdict.
package audfilter

import (
	"errors"
)

// MaxListLen bounds each monitored id list.
const MaxListLen = 64

var (
	ErrListTooLong = errors.New("monitored id list exceeds maximum length")
)

// FuncNumber identifies an intercepted kernel function.
type FuncNumber int

const (
	FuncAccept FuncNumber = iota
	FuncAccept4
	FuncBind
	FuncClone
	FuncConnect
	FuncFork
	FuncKill
	FuncRecvfrom
	FuncRecvmsg
	FuncSendmsg
	FuncSendto
	FuncSetns
	FuncUnshare
	FuncVfork
)

func (f FuncNumber) String() string {
	switch f {
	case FuncAccept:
		return `accept`
	case FuncAccept4:
		return `accept4`
	case FuncBind:
		return `bind`
	case FuncClone:
		return `clone`
	case FuncConnect:
		return `connect`
	case FuncFork:
		return `fork`
	case FuncKill:
		return `kill`
	case FuncRecvfrom:
		return `recvfrom`
	case FuncRecvmsg:
		return `recvmsg`
	case FuncSendmsg:
		return `sendmsg`
	case FuncSendto:
		return `sendto`
	case FuncSetns:
		return `setns`
	case FuncUnshare:
		return `unshare`
	case FuncVfork:
		return `vfork`
	}
	return `unknown`
}

// ResultMode selects which call outcomes are monitored.
type ResultMode int

const (
	MonitorAll            ResultMode = -1
	MonitorOnlyFailed     ResultMode = 0
	MonitorOnlySuccessful ResultMode = 1
)

// ListMode selects whether an id list captures or ignores its members.
type ListMode int

const (
	ModeCapture ListMode = 0
	ModeIgnore  ListMode = 1
)

// IDList is a bounded monitored id list with a capture/ignore mode.
type IDList struct {
	Mode ListMode
	Ids  []int64
}

func (l *IDList) Validate() error {
	if len(l.Ids) > MaxListLen {
		return ErrListTooLong
	}
	return nil
}

// Actionable applies the list semantics: capture mode admits members,
// ignore mode admits everyone else.  An empty capture list admits
// nothing; an empty ignore list admits everything.
func (l *IDList) Actionable(id int64) bool {
	found := false
	for _, v := range l.Ids {
		if v == id {
			found = true
			break
		}
	}
	if l.Mode == ModeCapture {
		return found
	}
	return !found
}

// Context is the evaluated filter configuration for function hooks.
type Context struct {
	NetworkIO     bool
	IncludeNsInfo bool
	MonitorResult ResultMode
	Pids          IDList
	Ppids         IDList
	Uids          IDList
	Netfilter     NetfilterContext
	Harden        HardenContext
}

// HardenContext lists protected thread group ids and the uids allowed
// to signal them.
type HardenContext struct {
	Tgids          []int64
	AuthorizedUids []int64
}

func (c *Context) Validate() error {
	if err := c.Pids.Validate(); err != nil {
		return err
	}
	if err := c.Ppids.Validate(); err != nil {
		return err
	}
	if err := c.Uids.Validate(); err != nil {
		return err
	}
	if len(c.Harden.Tgids) > MaxListLen || len(c.Harden.AuthorizedUids) > MaxListLen {
		return ErrListTooLong
	}
	return c.Netfilter.Validate()
}

// NumberActionable decides whether the function number itself is in
// scope given the network and namespace switches.
func (c *Context) NumberActionable(f FuncNumber) bool {
	switch f {
	case FuncSendto, FuncSendmsg, FuncRecvfrom, FuncRecvmsg:
		if !c.NetworkIO {
			return false
		}
	case FuncClone, FuncFork, FuncVfork, FuncSetns, FuncUnshare:
		if !c.IncludeNsInfo {
			return false
		}
	}
	return true
}

func (c *Context) SuccessActionable(success bool) bool {
	switch c.MonitorResult {
	case MonitorOnlyFailed:
		return !success
	case MonitorOnlySuccessful:
		return success
	}
	return true
}

func (c *Context) PidActionable(pid int64) bool {
	return c.Pids.Actionable(pid)
}

func (c *Context) PpidActionable(ppid int64) bool {
	return c.Ppids.Actionable(ppid)
}

func (c *Context) UidActionable(uid int64) bool {
	return c.Uids.Actionable(uid)
}

// PreExecutionActionable is the conjunction applied before the call
// runs; success is not known yet.
func (c *Context) PreExecutionActionable(f FuncNumber, pid, ppid, uid int64) bool {
	return c.NumberActionable(f) &&
		c.PidActionable(pid) &&
		c.PpidActionable(ppid) &&
		c.UidActionable(uid)
}

// PostExecutionActionable adds the result predicate once the call has
// returned.
func (c *Context) PostExecutionActionable(f FuncNumber, success bool, pid, ppid, uid int64) bool {
	return c.PreExecutionActionable(f, pid, ppid, uid) && c.SuccessActionable(success)
}

// TgidHardened reports whether the thread group is under the harden
// policy.
func (c *Context) TgidHardened(tgid int64) bool {
	for _, v := range c.Harden.Tgids {
		if v == tgid {
			return true
		}
	}
	return false
}

// UidAuthorized reports whether the uid may signal hardened groups.
func (c *Context) UidAuthorized(uid int64) bool {
	for _, v := range c.Harden.AuthorizedUids {
		if v == uid {
			return true
		}
	}
	return false
}
