/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package audfilter

import (
	"testing"
)

func TestNumberActionable(t *testing.T) {
	type tc struct {
		f      FuncNumber
		netIO  bool
		nsInfo bool
		want   bool
	}
	tsts := []tc{
		{FuncSendto, false, true, false},
		{FuncSendmsg, false, true, false},
		{FuncRecvfrom, false, true, false},
		{FuncRecvmsg, false, true, false},
		{FuncSendto, true, false, true},
		{FuncClone, true, false, false},
		{FuncFork, true, false, false},
		{FuncVfork, true, false, false},
		{FuncSetns, true, false, false},
		{FuncUnshare, true, false, false},
		{FuncClone, false, true, true},
		{FuncKill, false, false, true},
		{FuncBind, false, false, true},
		{FuncAccept, false, false, true},
	}
	for i, v := range tsts {
		ctx := Context{NetworkIO: v.netIO, IncludeNsInfo: v.nsInfo}
		if got := ctx.NumberActionable(v.f); got != v.want {
			t.Fatalf("%d: %v actionable=%v want %v", i, v.f, got, v.want)
		}
	}
}

func TestSuccessActionable(t *testing.T) {
	tsts := []struct {
		mode ResultMode
		succ bool
		want bool
	}{
		{MonitorAll, true, true},
		{MonitorAll, false, true},
		{MonitorOnlyFailed, true, false},
		{MonitorOnlyFailed, false, true},
		{MonitorOnlySuccessful, true, true},
		{MonitorOnlySuccessful, false, false},
	}
	for i, v := range tsts {
		ctx := Context{MonitorResult: v.mode}
		if got := ctx.SuccessActionable(v.succ); got != v.want {
			t.Fatalf("%d: got %v want %v", i, got, v.want)
		}
	}
}

func TestIDListModes(t *testing.T) {
	capture := IDList{Mode: ModeCapture, Ids: []int64{10, 20}}
	if !capture.Actionable(10) || !capture.Actionable(20) {
		t.Fatal("capture mode must admit members")
	}
	if capture.Actionable(30) {
		t.Fatal("capture mode must reject non-members")
	}
	ignore := IDList{Mode: ModeIgnore, Ids: []int64{10}}
	if ignore.Actionable(10) {
		t.Fatal("ignore mode must reject members")
	}
	if !ignore.Actionable(30) {
		t.Fatal("ignore mode must admit non-members")
	}
	//empty lists
	emptyCapture := IDList{Mode: ModeCapture}
	if emptyCapture.Actionable(1) {
		t.Fatal("empty capture list must admit nothing")
	}
	emptyIgnore := IDList{Mode: ModeIgnore}
	if !emptyIgnore.Actionable(1) {
		t.Fatal("empty ignore list must admit everything")
	}
}

func TestListBound(t *testing.T) {
	l := IDList{Ids: make([]int64, MaxListLen)}
	if err := l.Validate(); err != nil {
		t.Fatal(err)
	}
	l.Ids = append(l.Ids, 1)
	if err := l.Validate(); err == nil {
		t.Fatal("expected length error")
	}
}

func TestPrePostConjunction(t *testing.T) {
	ctx := Context{
		NetworkIO:     true,
		MonitorResult: MonitorOnlySuccessful,
		Pids:          IDList{Mode: ModeCapture, Ids: []int64{100}},
		Ppids:         IDList{Mode: ModeIgnore},
		Uids:          IDList{Mode: ModeIgnore},
	}
	if !ctx.PreExecutionActionable(FuncSendto, 100, 1, 0) {
		t.Fatal("expected pre actionable")
	}
	if ctx.PreExecutionActionable(FuncSendto, 101, 1, 0) {
		t.Fatal("pid not captured, expected not actionable")
	}
	if ctx.PostExecutionActionable(FuncSendto, false, 100, 1, 0) {
		t.Fatal("failed call must be rejected with ONLY_SUCCESSFUL")
	}
	if !ctx.PostExecutionActionable(FuncSendto, true, 100, 1, 0) {
		t.Fatal("expected post actionable")
	}
}

func TestNetfilterPredicates(t *testing.T) {
	nf := NetfilterContext{UseUser: false}
	if !nf.UserActionable(1234) {
		t.Fatal("user predicate off must admit everyone")
	}
	nf = NetfilterContext{UseUser: true, User: IDList{Mode: ModeCapture, Ids: []int64{5}}}
	if nf.UserActionable(1234) || !nf.UserActionable(5) {
		t.Fatal("bad user predicate")
	}

	all := NetfilterContext{MonitorCt: CtMonitorAll}
	onlyNew := NetfilterContext{MonitorCt: CtMonitorOnlyNew}
	states := []ConntrackState{CtNew, CtEstablished, CtRelated, CtEstablishedReply, CtRelatedReply, CtUntracked}
	for _, st := range states {
		if !all.ConntrackActionable(st) {
			t.Fatalf("ALL must admit %v", st)
		}
		want := st == CtNew
		if got := onlyNew.ConntrackActionable(st); got != want {
			t.Fatalf("ONLY_NEW: %v got %v want %v", st, got, want)
		}
	}
}
