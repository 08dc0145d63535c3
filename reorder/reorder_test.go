/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package reorder

import (
	"fmt"
	"strings"
	"testing"
)

func collector() (*[]string, func(line []byte) error) {
	var out []string
	return &out, func(line []byte) error {
		out = append(out, string(line))
		return nil
	}
}

func auditLine(id int64, body string) []byte {
	return []byte(fmt.Sprintf("type=SYSCALL msg=audit(100.%03d:%d): %s\n", id%1000, id, body))
}

func TestEventIDParse(t *testing.T) {
	tsts := []struct {
		line string
		id   int64
		ok   bool
	}{
		{"type=SYSCALL msg=audit(10.000:1): syscall=62\n", 1, true},
		{"type=SYSCALL msg=audit(123.456:99887): x\n", 99887, true},
		{"type=UBSI msg=ubsi(1.002:42): y\n", 42, true},
		{"garbage with no colon\n", 0, false},
	}
	for i, v := range tsts {
		id, ok := EventID([]byte(v.line))
		if ok != v.ok || id != v.id {
			t.Fatalf("%d: got (%d,%v) want (%d,%v)", i, id, ok, v.id, v.ok)
		}
	}
}

func TestTimestampParse(t *testing.T) {
	sec, ms, ok := Timestamp([]byte("type=SYSCALL msg=audit(1500.042:77): x\n"))
	if !ok || sec != 1500 || ms != 42 {
		t.Fatalf("got (%d,%d,%v)", sec, ms, ok)
	}
	if _, _, ok = Timestamp([]byte("no header\n")); ok {
		t.Fatal("expected parse failure")
	}
}

func TestFlushOrdering(t *testing.T) {
	out, emit := collector()
	r, err := NewReorderer(emit, nil)
	if err != nil {
		t.Fatal(err)
	}
	//arrival order 3, 1, 2
	for _, id := range []int64{3, 1, 2} {
		if err := r.Submit(auditLine(id, `x`)); err != nil {
			t.Fatal(err)
		}
	}
	if len(*out) != 0 {
		t.Fatal("nothing may emit below the window")
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(*out) != 3 {
		t.Fatalf("got %d lines", len(*out))
	}
	for i, id := range []int64{1, 2, 3} {
		if want := string(auditLine(id, `x`)); (*out)[i] != want {
			t.Fatalf("line %d: got %q want %q", i, (*out)[i], want)
		}
	}
}

func TestWindowBoundary(t *testing.T) {
	out, emit := collector()
	r, _ := NewReorderer(emit, nil)
	//exactly full window: zero emissions
	for id := int64(1); id <= Window; id++ {
		r.Submit(auditLine(id, `x`))
	}
	if len(*out) != 0 {
		t.Fatalf("window full must emit nothing, got %d", len(*out))
	}
	//one past the window: exactly one emission, the smallest id
	r.Submit(auditLine(Window+1, `x`))
	if len(*out) != 1 {
		t.Fatalf("expected one emission, got %d", len(*out))
	}
	if id, _ := EventID([]byte((*out)[0])); id != 1 {
		t.Fatalf("expected event 1 first, got %d", id)
	}
}

func TestWindowGapAdvances(t *testing.T) {
	out, emit := collector()
	r, _ := NewReorderer(emit, nil)
	//ids 1..window+3 with id 2 missing: the gap position is surrendered
	r.Submit(auditLine(1, `x`))
	for id := int64(3); id <= Window+3; id++ {
		r.Submit(auditLine(id, `x`))
	}
	if len(*out) != 2 {
		t.Fatalf("expected 2 emissions (1 and 3), got %d", len(*out))
	}
	ids := []int64{}
	for _, ln := range *out {
		id, _ := EventID([]byte(ln))
		ids = append(ids, id)
	}
	if ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("bad order %v", ids)
	}
}

func TestContinuationConcatenation(t *testing.T) {
	out, emit := collector()
	r, _ := NewReorderer(emit, nil)
	r.Submit([]byte("type=SYSCALL msg=audit(10.000:5): first\n"))
	r.Submit([]byte("type=PATH msg=audit(10.000:5): second\n"))
	r.Flush()
	if len(*out) != 1 {
		t.Fatalf("continuations must merge, got %d lines", len(*out))
	}
	want := "type=SYSCALL msg=audit(10.000:5): first\ntype=PATH msg=audit(10.000:5): second\n"
	if (*out)[0] != want {
		t.Fatalf("no separator may be inserted: %q", (*out)[0])
	}
}

func TestDroppedTypes(t *testing.T) {
	out, emit := collector()
	r, _ := NewReorderer(emit, nil)
	r.Submit([]byte("type=EOE msg=audit(10.000:1): \n"))
	r.Submit([]byte("type=PROCTILE msg=audit(10.000:2): \n"))
	r.Submit([]byte("type=UNKNOWN[1337] msg=audit(10.000:3): \n"))
	r.Flush()
	if len(*out) != 0 {
		t.Fatalf("dropped types leaked: %v", *out)
	}
}

func TestDaemonStartFlushes(t *testing.T) {
	out, emit := collector()
	r, _ := NewReorderer(emit, nil)
	r.Submit(auditLine(7, `x`))
	r.Submit(auditLine(6, `x`))
	r.Submit([]byte("type=DAEMON_START msg=audit(200.000:100): starting\n"))
	if len(*out) != 2 {
		t.Fatalf("daemon start must flush prior events, got %d", len(*out))
	}
	if !strings.Contains((*out)[0], `:6)`) {
		t.Fatalf("flush must be ordered, got %q", (*out)[0])
	}
	//the daemon start record itself is buffered for ordered emission
	if r.Pending() != 1 {
		t.Fatalf("daemon start record must be buffered, pending %d", r.Pending())
	}
}

func TestLineBufferFraming(t *testing.T) {
	var lines []string
	var lb LineBuffer
	fn := func(b []byte) error {
		lines = append(lines, string(b))
		return nil
	}
	lb.Feed([]byte("alpha\nbra"), fn)
	if len(lines) != 1 || lines[0] != "alpha\n" {
		t.Fatalf("bad first split %v", lines)
	}
	if !lb.Pending() {
		t.Fatal("partial line must be pending")
	}
	lb.Feed([]byte("vo\ncharlie\n"), fn)
	if len(lines) != 3 {
		t.Fatalf("bad line count %d", len(lines))
	}
	if lines[1] != "bravo\n" || lines[2] != "charlie\n" {
		t.Fatalf("carry over broken: %v", lines)
	}
	if lb.Pending() {
		t.Fatal("nothing should be pending")
	}
}
