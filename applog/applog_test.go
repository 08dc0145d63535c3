/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package applog

import (
	"bytes"
	"strings"
	"testing"
)

type bufCloser struct {
	bytes.Buffer
}

func (bc *bufCloser) Close() error { return nil }

func TestLevelGating(t *testing.T) {
	var bc bufCloser
	l := New(&bc)
	if err := l.SetLevel(WARN); err != nil {
		t.Fatal(err)
	}
	l.Infof("should not appear")
	l.Warnf("should appear %d", 1)
	out := bc.String()
	if strings.Contains(out, `should not appear`) {
		t.Fatal("info leaked past WARN level")
	}
	if !strings.Contains(out, `should appear 1`) {
		t.Fatal("warn missing")
	}
}

func TestParseLevel(t *testing.T) {
	tsts := []struct {
		s   string
		lvl Level
		ok  bool
	}{
		{`INFO`, INFO, true},
		{`info`, INFO, true},
		{` ERROR `, ERROR, true},
		{`debug`, DEBUG, true},
		{`bogus`, OFF, false},
	}
	for i, v := range tsts {
		lvl, err := ParseLevel(v.s)
		if (err == nil) != v.ok || (v.ok && lvl != v.lvl) {
			t.Fatalf("%d: got (%v, %v)", i, lvl, err)
		}
	}
}

func TestStructuredRawOutput(t *testing.T) {
	var bc bufCloser
	l := New(&bc)
	l.EnableRawMode()
	l.Info("record dropped", KV(`reason`, `overflow`), KV(`count`, 3))
	out := bc.String()
	if !strings.Contains(out, `record dropped`) || !strings.Contains(out, `reason="overflow"`) {
		t.Fatalf("bad structured raw output %q", out)
	}
}

func TestStructuredRFCOutput(t *testing.T) {
	var bc bufCloser
	l := New(&bc)
	l.Error("lookup failed", KV(`fd`, 7))
	out := bc.String()
	//rfc5424 renders a priority tag and the structured data block
	if !strings.HasPrefix(out, `<`) {
		t.Fatalf("expected rfc5424 header, got %q", out)
	}
	if !strings.Contains(out, `fd="7"`) || !strings.Contains(out, `lookup failed`) {
		t.Fatalf("bad rfc output %q", out)
	}
}

func TestClosedLoggerRefuses(t *testing.T) {
	var bc bufCloser
	l := New(&bc)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.AddWriter(&bufCloser{}); err != ErrNotOpen {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if err := l.Close(); err != ErrNotOpen {
		t.Fatalf("double close must report not open, got %v", err)
	}
}

func TestDiscardLogger(t *testing.T) {
	l := NewDiscardLogger()
	if err := l.Errorf("goes nowhere"); err != nil {
		t.Fatal(err)
	}
}
