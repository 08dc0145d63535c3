/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ubsi

import (
	"bytes"
	"strconv"
)

// field extracts the token following `key` (which must include its
// leading space and trailing '=') up to the next space, newline or
// double quote.
func field(line []byte, key string) ([]byte, bool) {
	idx := bytes.Index(line, []byte(key))
	if idx < 0 {
		return nil, false
	}
	rest := line[idx+len(key):]
	end := 0
	for end < len(rest) && rest[end] != ' ' && rest[end] != '\n' && rest[end] != '"' {
		end++
	}
	if end == 0 {
		return nil, false
	}
	return rest[:end], true
}

func fieldInt(line []byte, key string) (int64, bool) {
	tok, ok := field(line, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(string(tok), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func fieldHex(line []byte, key string) (uint64, bool) {
	tok, ok := field(line, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(string(tok), 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// headerTime parses the `(sec.msec:eventid)` record header.
func headerTime(line []byte) (tt ThreadTime, ts float64, eid int64, ok bool) {
	idx := bytes.IndexByte(line, '(')
	if idx < 0 {
		return
	}
	rest := line[idx+1:]
	i := 0
	for ; i < len(rest) && rest[i] >= '0' && rest[i] <= '9'; i++ {
		tt.Sec = tt.Sec*10 + int64(rest[i]-'0')
	}
	if i == 0 || i >= len(rest) || rest[i] != '.' {
		return
	}
	digits := 0
	for i++; i < len(rest) && digits < 3 && rest[i] >= '0' && rest[i] <= '9'; i++ {
		tt.Ms = tt.Ms*10 + int(rest[i]-'0')
		digits++
	}
	if digits == 0 {
		return
	}
	for d := digits; d < 3; d++ {
		tt.Ms *= 10
	}
	if i >= len(rest) || rest[i] != ':' {
		return
	}
	seen := false
	for i++; i < len(rest) && rest[i] >= '0' && rest[i] <= '9'; i++ {
		eid = eid*10 + int64(rest[i]-'0')
		seen = true
	}
	if !seen {
		return
	}
	ts = float64(tt.Sec) + float64(tt.Ms)/1000.0
	ok = true
	return
}

// succField reads the success= token; exit and exit_group never carry
// one and always count as successful.
func succField(line []byte, sysno int64) (bool, bool) {
	if sysno == sysExit || sysno == sysExitGroup {
		return true, true
	}
	tok, ok := field(line, ` success=`)
	if !ok {
		return false, false
	}
	return bytes.Equal(tok, []byte(`yes`)), true
}

// procSnippet captures the record tail starting at the ppid= token;
// the entry record's process context is replayed on every unit line.
func procSnippet(line []byte) (string, bool) {
	idx := bytes.Index(line, []byte(` ppid=`))
	if idx < 0 {
		return ``, false
	}
	tail := line[idx+1:]
	tail = bytes.TrimRight(tail, "\n")
	return string(tail), true
}
