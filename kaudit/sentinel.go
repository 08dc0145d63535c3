/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package kaudit

// Unit beacon sentinels: instrumented applications encode unit
// boundary markers as kill calls with these pid arguments.  The hook
// sees them sign extended in the first argument register.
const (
	SentinelUEntry   int64 = -100
	SentinelUExit    int64 = -101
	SentinelUEntryID int64 = -102
	SentinelMRead1   int64 = -200
	SentinelMRead2   int64 = -201
	SentinelMWrite1  int64 = -300
	SentinelMWrite2  int64 = -301
	SentinelUDep     int64 = -400
)

func isUBSISentinel(pid int64) bool {
	switch pid {
	case SentinelUEntry, SentinelUExit, SentinelUEntryID,
		SentinelMRead1, SentinelMRead2,
		SentinelMWrite1, SentinelMWrite2,
		SentinelUDep:
		return true
	}
	return false
}
