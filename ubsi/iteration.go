/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ubsi

// iterationCounterSize bounds how many distinct (tid, loopid,
// iteration) triples can be tracked within a single audit timestamp.
const iterationCounterSize = 1000

type iterationKey struct {
	tid       int32
	loopID    int64
	iteration int
}

// iterationCounter disambiguates units entered at the same audit
// timestamp.  It is valid for a single timestamp and reset whenever
// the observed time advances.
type iterationCounter struct {
	counts map[iterationKey]int
}

// get returns the next count for the triple: 0 on first sight, then
// 1, 2, ... strictly monotone.  ok is false once the per-timestamp
// bound is exhausted and the triple is not already tracked; the caller
// keeps its previous count in that case.
func (ic *iterationCounter) get(tid int32, loopID int64, iteration int) (int, bool) {
	k := iterationKey{tid: tid, loopID: loopID, iteration: iteration}
	if ic.counts == nil {
		ic.counts = make(map[iterationKey]int, 16)
	}
	if c, ok := ic.counts[k]; ok {
		c++
		ic.counts[k] = c
		return c, true
	}
	if len(ic.counts) >= iterationCounterSize {
		return 0, false
	}
	ic.counts[k] = 0
	return 0, true
}

// reset starts a fresh window for a new timestamp.
func (ic *iterationCounter) reset() {
	ic.counts = nil
}
