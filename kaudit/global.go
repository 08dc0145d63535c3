/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package kaudit models the kernel capture core: the function hook
// runtime, its action chains, the install/restore protocol, the harden
// policy, netfilter packet classification, and the two phase lifecycle
// that gates all of it.  The ambient kernel facilities (current task,
// socket and namespace introspection, the redirect mechanism, the host
// audit sink) are interfaces so the core runs identically under test
// and in dry-run mode.
package kaudit

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/provatrace/provatrace/applog"
	"github.com/provatrace/provatrace/audfilter"
	"github.com/provatrace/provatrace/seqbuf"
)

var (
	ErrAlreadyInitialized = errors.New("state already initialized")
	ErrAlreadyStarted     = errors.New("auditing already started")
	ErrAlreadyStopped     = errors.New("auditing already stopped")
	ErrAlreadyDeinited    = errors.New("state already deinitialized")
	ErrNotInitialized     = errors.New("state not initialized")
	ErrNotStarted         = errors.New("auditing not started")
	ErrNilProvider        = errors.New("nil ambient provider")
)

// Sink receives serialized audit records; in production this is the
// host audit facility.
type Sink interface {
	Submit(line string) error
}

// SockInfo is the socket introspection result attached to network I/O
// records.
type SockInfo struct {
	SockType  int32
	Local     []byte
	Remote    []byte
	NetNsInum uint64
}

// SockProvider resolves a file descriptor of the current task to its
// socket endpoints.  A lookup miss drops the record, not the call.
type SockProvider interface {
	SockInfo(fd int64) (SockInfo, error)
}

// NsInums is the namespace inode set of a process.
type NsInums struct {
	NsPid       int32
	Mnt         uint64
	Net         uint64
	Pid         uint64
	PidChildren uint64
	Usr         uint64
	Ipc         uint64
	Cgroup      uint64
}

// NsProvider resolves namespace inodes for a pid.
type NsProvider interface {
	Namespaces(pid int64) (NsInums, error)
}

// EngineConfig wires the ambient facilities into an Engine.
type EngineConfig struct {
	Tasks    TaskProvider
	Socks    SockProvider
	Ns       NsProvider
	Platform Platform
	Sink     Sink
	Logger   *applog.Logger
}

// Engine owns all capture core state; there are no package globals.
type Engine struct {
	initialized int32
	started     int32

	mtx    sync.Mutex
	dryRun bool
	ctx    audfilter.Context

	tasks    TaskProvider
	socks    SockProvider
	ns       NsProvider
	platform Platform
	sink     Sink
	lg       *applog.Logger

	defs      []*HookDef
	installed []installedHook

	serialDrops uint64
	nfDiscards  uint64
	sinkDrops   uint64
}

// NewEngine validates the ambient wiring; the engine starts in the
// uninitialized state.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Tasks == nil || cfg.Platform == nil || cfg.Sink == nil {
		return nil, ErrNilProvider
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.NewDiscardLogger()
	}
	return &Engine{
		tasks:    cfg.Tasks,
		socks:    cfg.Socks,
		ns:       cfg.Ns,
		platform: cfg.Platform,
		sink:     cfg.Sink,
		lg:       cfg.Logger,
	}, nil
}

// Init performs state initialization: the hook definition table is
// built but control flow is not redirected yet.  With dryRun set,
// AuditingStart will skip the actual redirect as well.
func (e *Engine) Init(dryRun bool) error {
	if !atomic.CompareAndSwapInt32(&e.initialized, 0, 1) {
		return ErrAlreadyInitialized
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.dryRun = dryRun
	if err := e.buildDefs(); err != nil {
		// revert so a later Init can retry
		atomic.StoreInt32(&e.initialized, 0)
		return err
	}
	return nil
}

// Deinit tears the state back down; auditing must be stopped first.
func (e *Engine) Deinit() error {
	if e.AuditingStarted() {
		return ErrAlreadyStarted
	}
	if !atomic.CompareAndSwapInt32(&e.initialized, 1, 0) {
		return ErrAlreadyDeinited
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.defs = nil
	return nil
}

// AuditingStart installs the configured filter context and redirects
// every registered function.  A mid-install failure rolls back the
// hooks already placed and reverts the started flag.
func (e *Engine) AuditingStart(args *audfilter.Context) error {
	if !e.Initialized() {
		return ErrNotInitialized
	}
	if args == nil {
		return errors.New("nil filter context")
	}
	if !atomic.CompareAndSwapInt32(&e.started, 0, 1) {
		return ErrAlreadyStarted
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if err := args.Validate(); err != nil {
		atomic.StoreInt32(&e.started, 0)
		return err
	}
	e.ctx = *args
	if !e.dryRun {
		if err := e.installAll(); err != nil {
			atomic.StoreInt32(&e.started, 0)
			return err
		}
	}
	e.lg.Info("auditing started", applog.KV("dry_run", e.dryRun))
	return nil
}

// AuditingStop restores every redirected function and clears the flag.
func (e *Engine) AuditingStop() error {
	if !e.Initialized() {
		return ErrNotInitialized
	}
	if !atomic.CompareAndSwapInt32(&e.started, 1, 0) {
		return ErrAlreadyStopped
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.uninstallAll()
	e.lg.Info("auditing stopped")
	return nil
}

func (e *Engine) Initialized() bool {
	return atomic.LoadInt32(&e.initialized) == 1
}

// AuditingStarted implies Initialized; the flags are never observable
// in the started-but-uninitialized order.
func (e *Engine) AuditingStarted() bool {
	return atomic.LoadInt32(&e.initialized) == 1 && atomic.LoadInt32(&e.started) == 1
}

// SerializationDrops counts records dropped because serialization
// failed or overflowed the seqbuf.
func (e *Engine) SerializationDrops() uint64 {
	return atomic.LoadUint64(&e.serialDrops)
}

// NetfilterDiscards counts packets dropped by classification or
// conntrack policy.
func (e *Engine) NetfilterDiscards() uint64 {
	return atomic.LoadUint64(&e.nfDiscards)
}

// submit serializes a message and hands it to the audit sink; overflow
// drops the record and bumps the warning counter.
func (e *Engine) submit(m interface {
	Serialize(*seqbuf.SeqBuf) error
}) error {
	sb := seqbuf.New(maxAuditRecord)
	if err := m.Serialize(sb); err != nil {
		atomic.AddUint64(&e.serialDrops, 1)
		e.debugf("record dropped: %v", err)
		return err
	}
	if sb.Overflowed() {
		atomic.AddUint64(&e.serialDrops, 1)
		e.debugf("record dropped: overflow")
		return seqbuf.ErrOverflow
	}
	if err := e.sink.Submit(sb.String()); err != nil {
		atomic.AddUint64(&e.sinkDrops, 1)
		e.debugf("sink submit failed: %v", err)
		return err
	}
	return nil
}

const maxAuditRecord = 2048

func (e *Engine) debugf(format string, args ...interface{}) {
	e.lg.Debugf(format, args...)
}
