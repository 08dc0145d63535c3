/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package kaudit

// hardenKillPre vetoes kill on a protected thread group unless the
// calling euid is on the authorized list.  The veto synthesizes -EACCES
// in the wrapper; the kill itself never runs.
func hardenKillPre(e *Engine, ctx *PreContext) error {
	pid := ctx.Args[0]
	if isUBSISentinel(pid) {
		return nil
	}
	tgid := e.tasks.TgidOf(pid)
	if tgid < 0 {
		e.debugf("tgid lookup failed for pid %d: %d", pid, tgid)
		return nil
	}
	if !e.AuditingStarted() {
		return nil
	}
	if !e.ctx.TgidHardened(tgid) {
		return nil
	}
	if e.ctx.UidAuthorized(ctx.Proc.Euid) {
		return nil
	}
	e.debugf("hardened tgid %d, disallowing kill from euid %d", tgid, ctx.Proc.Euid)
	ctx.Result.SetDisallowFunction()
	return nil
}
