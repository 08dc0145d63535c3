/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// auditGenerator emits a synthetic audit record stream on stdout:
// instrumented loops with unit boundary beacons, memory provenance
// marker pairs, and plain syscall traffic.  Point unitBridge at it to
// soak the reorder and analysis paths without a kernel.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/provatrace/provatrace/audmsg"
	"github.com/provatrace/provatrace/seqbuf"
)

var (
	loopCount  = flag.Int("loops", 10, "Number of instrumented loops to generate")
	iterations = flag.Int("iterations", 5, "Iterations per loop")
	procCount  = flag.Int("procs", 4, "Number of synthetic processes")
	shuffle    = flag.Bool("shuffle", false, "Shuffle event emission order to exercise reordering")
	seed       = flag.Int64("seed", 1701, "PRNG seed")
	startPid   = flag.Int("start-pid", 2000, "First synthetic pid")
	kernelForm = flag.Bool("kernel-form", false, "Emit ubsi_intercepted wrapper records as the capture core does")
)

const (
	uentry = 0xffffff9c
	uexit  = 0xffffff9b
	mwr1   = 0xfffffed4
	mwr2   = 0xfffffed3
	mrd1   = 0xffffff38
	mrd2   = 0xffffff37
)

type stream struct {
	wtr  *bufio.Writer
	eid  int64
	sec  int64
	ms   int
	rng  *rand.Rand
	pend []string
}

func (s *stream) tick() {
	s.ms++
	if s.ms >= 1000 {
		s.ms = 0
		s.sec++
	}
}

func (s *stream) push(line string) {
	s.pend = append(s.pend, line)
}

func (s *stream) kill(pid, ppid int, a0, a1 uint32) {
	s.eid++
	s.tick()
	if *kernelForm {
		m := audmsg.UBSI{
			SyscallNumber: 62,
			Success:       true,
			TargetPid:     int64(int32(a0)),
			Signal:        int64(int32(a1)),
		}
		m.Process.Pid = int32(pid)
		m.Process.Ppid = int32(ppid)
		m.Process.SetComm(`gen`)
		if err := m.Init(audmsg.Header{Type: audmsg.MsgUBSI, Version: audmsg.CurrentVersion}); err != nil {
			log.Fatalf("init failed: %v", err)
		}
		sb := seqbuf.New(audmsg.MaxRecordSize)
		if err := m.Serialize(sb); err != nil {
			log.Fatalf("serialize failed: %v", err)
		}
		s.push(fmt.Sprintf("type=USER msg=audit(%d.%03d:%d): %s\n", s.sec, s.ms, s.eid, sb.String()))
		return
	}
	s.push(fmt.Sprintf(
		"type=SYSCALL msg=audit(%d.%03d:%d): syscall=62 success=yes exit=0 a0=%x a1=%x a2=0 a3=0 items=0 ppid=%d pid=%d uid=0\n",
		s.sec, s.ms, s.eid, a0, a1, ppid, pid))
}

func (s *stream) plain(pid, ppid, sysno int, exit int64) {
	s.eid++
	s.tick()
	s.push(fmt.Sprintf(
		"type=SYSCALL msg=audit(%d.%03d:%d): syscall=%d success=yes exit=%d a0=3 a1=0 a2=0 a3=0 items=0 ppid=%d pid=%d uid=0\n",
		s.sec, s.ms, s.eid, sysno, exit, ppid, pid))
}

func (s *stream) flush() {
	if *shuffle {
		s.rng.Shuffle(len(s.pend), func(i, j int) {
			s.pend[i], s.pend[j] = s.pend[j], s.pend[i]
		})
	}
	for _, ln := range s.pend {
		s.wtr.WriteString(ln)
	}
	s.pend = nil
}

func main() {
	flag.Parse()
	s := &stream{
		wtr: bufio.NewWriter(os.Stdout),
		sec: 1000,
		rng: rand.New(rand.NewSource(*seed)),
	}
	defer s.wtr.Flush()

	for i := 0; i < *procCount; i++ {
		pid := *startPid + i
		ppid := *startPid - 1
		for l := 0; l < *loopCount; l++ {
			loopid := uint32(l + 1)
			for it := 0; it < *iterations; it++ {
				s.kill(pid, ppid, uentry, loopid)
				addr := s.rng.Uint64()
				s.kill(pid, ppid, mwr1, uint32(addr>>32))
				s.kill(pid, ppid, mwr2, uint32(addr))
				s.plain(pid, ppid, 1, 128)
				s.kill(pid, ppid, mrd1, uint32(addr>>32))
				s.kill(pid, ppid, mrd2, uint32(addr))
			}
			s.kill(pid, ppid, uexit, 0)
		}
		// terminate the process so the bridge releases its state
		s.plain(pid, ppid, 231, 0)
	}
	s.flush()
}
