/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package reorder

import (
	"bytes"
	"errors"

	"golang.org/x/time/rate"

	"github.com/provatrace/provatrace/applog"
)

// Window is the maximum number of pending event ids buffered before
// forced in-order emission begins.
const Window = 10000

var (
	ErrNilEmit = errors.New("nil emit function")
)

type eventEntry struct {
	id   int64
	data []byte
}

// Reorderer buffers audit lines keyed by event id and releases them in
// ascending id order.  Continuation lines sharing an id are
// concatenated byte for byte; every segment carries its own type=
// prefix so no separator is inserted.
type Reorderer struct {
	emit     func(line []byte) error
	buf      map[int64]*eventEntry
	next     int64
	haveNext bool
	lg       *applog.Logger
	warnLim  *rate.Limiter
}

// NewReorderer builds a reorderer that hands released lines to emit.
func NewReorderer(emit func(line []byte) error, lg *applog.Logger) (*Reorderer, error) {
	if emit == nil {
		return nil, ErrNilEmit
	}
	if lg == nil {
		lg = applog.NewDiscardLogger()
	}
	return &Reorderer{
		emit:    emit,
		buf:     make(map[int64]*eventEntry, Window),
		lg:      lg,
		warnLim: rate.NewLimiter(rate.Limit(1), 5),
	}, nil
}

// Submit ingests one complete line.  EOE, PROCTILE and UNKNOWN[...]
// records are discarded; DAEMON_START flushes everything buffered
// before the record itself enters the buffer.
func (r *Reorderer) Submit(line []byte) error {
	if hasType(line, `DAEMON_START`) {
		if err := r.Flush(); err != nil {
			return err
		}
	}
	if hasType(line, `EOE`) || hasType(line, `PROCTILE`) || bytes.Contains(line, []byte(`type=UNKNOWN[`)) {
		return nil
	}
	id, ok := EventID(line)
	if !ok {
		if r.warnLim.Allow() {
			r.lg.Warnf("cannot parse event id: %q", string(line))
		}
		return nil
	}
	if !r.haveNext || id < r.next {
		r.next = id
		r.haveNext = true
	}
	if e, ok := r.buf[id]; ok {
		e.data = append(e.data, line...)
	} else {
		data := make([]byte, len(line))
		copy(data, line)
		r.buf[id] = &eventEntry{id: id, data: data}
	}
	return r.drainWindow()
}

// drainWindow releases events in next-id order while the buffer
// exceeds the window.  A missing id is skipped; its window position is
// surrendered so the stream keeps advancing.
func (r *Reorderer) drainWindow() error {
	for len(r.buf) > Window {
		if err := r.popNext(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reorderer) popNext() error {
	id := r.next
	r.next++
	e, ok := r.buf[id]
	if !ok {
		return nil
	}
	delete(r.buf, id)
	return r.emit(e.data)
}

// Flush releases the entire buffer in ascending id order; used at end
// of stream and on DAEMON_START.
func (r *Reorderer) Flush() error {
	r.lg.Infof("flushing reorder buffer: %d events", len(r.buf))
	for len(r.buf) > 0 {
		if err := r.popNext(); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports the number of buffered events.
func (r *Reorderer) Pending() int {
	return len(r.buf)
}
