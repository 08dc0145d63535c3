/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package kaudit

import (
	"github.com/provatrace/provatrace/audfilter"
)

// ResultFlag bits accumulate across the action chain of a single call.
// Once set a flag stays set for the remainder of that call.
type ResultFlag uint32

const (
	FlagSkipPreActions ResultFlag = 1 << iota
	FlagSkipPostActions
	FlagSkipAllActions
	FlagDisallowFunction
)

// ActionResult is the per-call flag accumulator shared by the pre and
// post chains.
type ActionResult struct {
	flags ResultFlag
}

func (ar *ActionResult) SetSkipPreActions()  { ar.flags |= FlagSkipPreActions }
func (ar *ActionResult) SetSkipPostActions() { ar.flags |= FlagSkipPostActions }
func (ar *ActionResult) SetSkipAllActions() {
	ar.flags |= FlagSkipAllActions | FlagSkipPreActions | FlagSkipPostActions
}
func (ar *ActionResult) SetDisallowFunction() { ar.flags |= FlagDisallowFunction }

func (ar *ActionResult) SkipPreActions() bool {
	return ar.flags&FlagSkipPreActions != 0
}
func (ar *ActionResult) SkipPostActions() bool {
	return ar.flags&FlagSkipPostActions != 0
}
func (ar *ActionResult) DisallowFunction() bool {
	return ar.flags&FlagDisallowFunction != 0
}

// PreAction runs before the original function.  A non-nil error aborts
// the chain for this call but never propagates past the hook boundary.
type PreAction func(e *Engine, ctx *PreContext) error

// PostAction runs after the original function (or its -EACCES stand-in).
type PostAction func(e *Engine, ctx *PostContext) error

// runPreChain invokes pre actions in order, honoring the skip flags as
// they appear.
func runPreChain(e *Engine, actions []PreAction, ctx *PreContext) {
	for i, act := range actions {
		if act == nil {
			break
		}
		if err := act(e, ctx); err != nil {
			e.debugf("pre action %d for %s failed: %v", i, ctx.Func, err)
			break
		}
		if ctx.Result.SkipPreActions() {
			break
		}
	}
}

// runPostChain invokes post actions; a skip-post flag raised by any pre
// action suppresses the whole chain.  A vetoed call still runs its post
// chain with ret=-EACCES and success=false so actions can observe the
// denial; result-sensitive actions gate on success themselves.
func runPostChain(e *Engine, actions []PostAction, ctx *PostContext) {
	if ctx.Result.SkipPostActions() {
		return
	}
	for i, act := range actions {
		if act == nil {
			break
		}
		if err := act(e, ctx); err != nil {
			e.debugf("post action %d for %s failed: %v", i, ctx.Func, err)
			break
		}
		if ctx.Result.SkipPostActions() {
			break
		}
	}
}

// preFilterAction is the mandatory first pre action: it consults the
// filter evaluator and short circuits both chains when the call is not
// actionable.
func preFilterAction(e *Engine, ctx *PreContext) error {
	if e.filterPreActionable(ctx.Func, ctx.Proc.Pid, ctx.Proc.Ppid, ctx.Proc.Uid) {
		return nil
	}
	ctx.Result.SetSkipPreActions()
	ctx.Result.SetSkipPostActions()
	return nil
}

// postFilterAction gates the post chain on the call result.
func postFilterAction(e *Engine, ctx *PostContext) error {
	if e.filterPostActionable(ctx.Func, ctx.Success, ctx.Proc.Pid, ctx.Proc.Ppid, ctx.Proc.Uid) {
		return nil
	}
	ctx.Result.SetSkipPostActions()
	return nil
}

func (e *Engine) filterPreActionable(f audfilter.FuncNumber, pid, ppid, uid int64) bool {
	if !e.AuditingStarted() {
		return false
	}
	return e.ctx.PreExecutionActionable(f, pid, ppid, uid)
}

func (e *Engine) filterPostActionable(f audfilter.FuncNumber, success bool, pid, ppid, uid int64) bool {
	if !e.AuditingStarted() {
		return false
	}
	return e.ctx.PostExecutionActionable(f, success, pid, ppid, uid)
}
