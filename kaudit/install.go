/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package kaudit

import (
	"errors"
	"fmt"

	"github.com/provatrace/provatrace/audfilter"
)

var (
	ErrSymbolNotFound = errors.New("symbol resolution failed")
	ErrNotInstalled   = errors.New("hook not installed")
)

// Platform is the redirect mechanism: an ftrace style trampoline or a
// call table rewrite, selected by the host build.  Resolve stands in
// for the kallsyms lookup that older kernels only expose through a
// registered probe.
type Platform interface {
	Resolve(symbol string) (uintptr, error)
	Install(addr uintptr, symbol string, hook Fn) (orig Fn, err error)
	Uninstall(addr uintptr, symbol string, orig Fn) error
}

// installedHook remembers everything needed to restore one redirect.
type installedHook struct {
	def  *HookDef
	addr uintptr
	orig Fn
}

// installAll redirects every registered function.  The sequence is a
// scoped resource chain: any failure restores the hooks already placed
// before the error is returned, so start never leaves a partial
// install behind.
func (e *Engine) installAll() error {
	var done []installedHook
	for _, def := range e.defs {
		addr, err := e.platform.Resolve(def.Symbol)
		if err != nil {
			e.rollback(done)
			return fmt.Errorf("resolving %s: %w", def.Symbol, err)
		}
		ih := installedHook{def: def, addr: addr}
		hookFn := e.wrap(def, func(args Args) int64 {
			// orig is bound after Install returns
			return ih.orig(args)
		})
		orig, err := e.platform.Install(addr, def.Symbol, hookFn)
		if err != nil {
			e.rollback(done)
			return fmt.Errorf("installing %s: %w", def.Symbol, err)
		}
		if orig == nil {
			e.rollback(done)
			return ErrNilOriginal
		}
		ih.orig = orig
		done = append(done, ih)
	}
	e.installed = done
	return nil
}

func (e *Engine) rollback(done []installedHook) {
	for i := len(done) - 1; i >= 0; i-- {
		ih := done[i]
		if err := e.platform.Uninstall(ih.addr, ih.def.Symbol, ih.orig); err != nil {
			e.debugf("rollback of %s failed: %v", ih.def.Symbol, err)
		}
	}
}

func (e *Engine) uninstallAll() {
	e.rollback(e.installed)
	e.installed = nil
}

// Wrapped builds the hook function for a definition around the given
// original; no install is needed, so dry-run harnesses and tests can
// drive calls through the full chain without a live redirect.
func (e *Engine) Wrapped(def *HookDef, orig Fn) (Fn, error) {
	if def == nil {
		return nil, ErrUnknownFunction
	}
	if orig == nil {
		return nil, ErrNilOriginal
	}
	return e.wrap(def, orig), nil
}

// DefByFunc retrieves the registered definition for a function number.
func (e *Engine) DefByFunc(f audfilter.FuncNumber) (*HookDef, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	for _, def := range e.defs {
		if def.Func == f {
			return def, nil
		}
	}
	return nil, ErrUnknownFunction
}
