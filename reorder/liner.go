/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package reorder reframes raw audit stream chunks into lines and
// re-sequences them by event id across a bounded window.
package reorder

import (
	"bytes"
)

// MaxLineLen bounds a single reassembled event line.
const MaxLineLen = 1024 * 1024

// LineBuffer accumulates raw read chunks and yields complete newline
// terminated lines.  Bytes after the last newline are carried over and
// prepended to the next chunk.
type LineBuffer struct {
	remain []byte
}

// Feed splits a chunk into lines, invoking fn for each complete line
// (newline included).  Carry-over from the previous chunk is glued to
// the front of the first line.
func (lb *LineBuffer) Feed(chunk []byte, fn func(line []byte) error) error {
	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			lb.remain = append(lb.remain, chunk...)
			if len(lb.remain) > MaxLineLen {
				// unterminated garbage; drop rather than grow forever
				lb.remain = lb.remain[:0]
			}
			return nil
		}
		line := chunk[:idx+1]
		chunk = chunk[idx+1:]
		if len(lb.remain) > 0 {
			line = append(lb.remain, line...)
			lb.remain = nil
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports whether an unterminated partial line is buffered.
// Partial content at end of stream is discarded by the caller.
func (lb *LineBuffer) Pending() bool {
	return len(lb.remain) > 0
}

// Reset drops any buffered partial line.
func (lb *LineBuffer) Reset() {
	lb.remain = nil
}
