/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package applog is the shared leveled logger.  Raw mode writes plain
// timestamped lines; structured mode renders RFC5424 with key=value
// structured data attached.
package applog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

const (
	OFF      Level = 0
	DEBUG    Level = 1
	INFO     Level = 2
	WARN     Level = 3
	ERROR    Level = 4
	CRITICAL Level = 5
	FATAL    Level = 6
)

const defaultID = `prova@1`

var (
	ErrNotOpen      = errors.New("Logger is not open")
	ErrInvalidLevel = errors.New("Log level is invalid")
)

type Level int

func (l Level) String() string {
	switch l {
	case OFF:
		return `OFF`
	case DEBUG:
		return `DEBUG`
	case INFO:
		return `INFO`
	case WARN:
		return `WARN`
	case ERROR:
		return `ERROR`
	case CRITICAL:
		return `CRITICAL`
	case FATAL:
		return `FATAL`
	}
	return `UNKNOWN`
}

// ParseLevel resolves a level name as found in config files.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case `OFF`:
		return OFF, nil
	case `DEBUG`:
		return DEBUG, nil
	case `INFO`:
		return INFO, nil
	case `WARN`:
		return WARN, nil
	case `ERROR`:
		return ERROR, nil
	case `CRITICAL`:
		return CRITICAL, nil
	case `FATAL`:
		return FATAL, nil
	}
	return OFF, ErrInvalidLevel
}

// KV builds a structured data parameter.
func KV(name string, value interface{}) rfc5424.SDParam {
	return rfc5424.SDParam{
		Name:  name,
		Value: fmt.Sprintf("%v", value),
	}
}

// KVErr is the conventional error kv.
func KVErr(err error) rfc5424.SDParam {
	return KV(`error`, err)
}

type Logger struct {
	mtx      sync.Mutex
	wtrs     []io.WriteCloser
	lvl      Level
	hot      bool
	raw      bool
	hostname string
	appname  string
}

// New creates a logger on the given writer at level INFO.
func New(wtr io.WriteCloser) *Logger {
	l := &Logger{
		wtrs: []io.WriteCloser{wtr},
		lvl:  INFO,
		hot:  true,
	}
	l.guessHostnameAppname()
	return l
}

// NewFile opens (or appends to) a log file.
func NewFile(p string) (*Logger, error) {
	fout, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0660)
	if err != nil {
		return nil, err
	}
	return New(fout), nil
}

// NewStderrLogger returns a raw mode logger on stderr.
func NewStderrLogger() *Logger {
	l := New(nopCloser{os.Stderr})
	l.raw = true
	return l
}

func NewDiscardLogger() *Logger {
	l := New(discardCloser{})
	l.lvl = OFF
	return l
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

type discardCloser struct{}

func (discardCloser) Write(b []byte) (int, error) { return len(b), nil }
func (discardCloser) Close() error                { return nil }

func (l *Logger) guessHostnameAppname() {
	l.hostname, _ = os.Hostname()
	if args := os.Args; len(args) > 0 {
		l.appname = filepath.Base(args[0])
	}
}

func (l *Logger) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.hot {
		return ErrNotOpen
	}
	var err error
	for _, w := range l.wtrs {
		if lerr := w.Close(); lerr != nil {
			err = lerr
		}
	}
	l.hot = false
	return err
}

func (l *Logger) AddWriter(wtr io.WriteCloser) error {
	if wtr == nil {
		return errors.New("nil writer")
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.hot {
		return ErrNotOpen
	}
	l.wtrs = append(l.wtrs, wtr)
	return nil
}

func (l *Logger) SetLevelString(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}
	return l.SetLevel(lvl)
}

func (l *Logger) SetLevel(lvl Level) error {
	if lvl < OFF || lvl > FATAL {
		return ErrInvalidLevel
	}
	l.mtx.Lock()
	l.lvl = lvl
	l.mtx.Unlock()
	return nil
}

func (l *Logger) GetLevel() Level {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.lvl
}

func (l *Logger) EnableRawMode() {
	l.mtx.Lock()
	l.raw = true
	l.mtx.Unlock()
}

// Debugf and friends are the printf form.
func (l *Logger) Debugf(f string, args ...interface{}) error {
	return l.outputf(DEBUG, f, args...)
}

func (l *Logger) Infof(f string, args ...interface{}) error {
	return l.outputf(INFO, f, args...)
}

func (l *Logger) Warnf(f string, args ...interface{}) error {
	return l.outputf(WARN, f, args...)
}

func (l *Logger) Errorf(f string, args ...interface{}) error {
	return l.outputf(ERROR, f, args...)
}

func (l *Logger) Criticalf(f string, args ...interface{}) error {
	return l.outputf(CRITICAL, f, args...)
}

func (l *Logger) Fatalf(f string, args ...interface{}) {
	l.outputf(FATAL, f, args...)
	os.Exit(-1)
}

// FatalCode logs at FATAL then exits with the given code.
func (l *Logger) FatalCode(code int, f string, args ...interface{}) {
	l.outputf(FATAL, f, args...)
	os.Exit(code)
}

// Debug and friends are the structured form.
func (l *Logger) Debug(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(DEBUG, msg, sds...)
}

func (l *Logger) Info(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(INFO, msg, sds...)
}

func (l *Logger) Warn(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(WARN, msg, sds...)
}

func (l *Logger) Error(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(ERROR, msg, sds...)
}

func (l *Logger) Critical(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(CRITICAL, msg, sds...)
}

func (l *Logger) outputf(lvl Level, f string, args ...interface{}) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.hot || lvl < l.lvl || l.lvl == OFF {
		return nil
	}
	msg := fmt.Sprintf(f, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	line := fmt.Sprintf("%s %s %s", time.Now().UTC().Format(time.RFC3339), lvl, msg)
	return l.writeAll([]byte(line))
}

func (l *Logger) outputStructured(lvl Level, msg string, sds ...rfc5424.SDParam) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.hot || lvl < l.lvl || l.lvl == OFF {
		return nil
	}
	if l.raw {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s %s %s", time.Now().UTC().Format(time.RFC3339), lvl, msg)
		for _, sd := range sds {
			fmt.Fprintf(&sb, " %s=%q", sd.Name, sd.Value)
		}
		sb.WriteString("\n")
		return l.writeAll([]byte(sb.String()))
	}
	m := rfc5424.Message{
		Priority:  prio(lvl),
		Timestamp: time.Now(),
		Hostname:  l.hostname,
		AppName:   l.appname,
		Message:   []byte(msg),
	}
	if len(sds) > 0 {
		m.StructuredData = []rfc5424.StructuredData{{
			ID:         defaultID,
			Parameters: sds,
		}}
	}
	b, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	return l.writeAll(append(b, '\n'))
}

func (l *Logger) writeAll(b []byte) (err error) {
	for _, w := range l.wtrs {
		if _, lerr := w.Write(b); lerr != nil {
			err = lerr
		}
	}
	return
}

func prio(lvl Level) rfc5424.Priority {
	switch lvl {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case CRITICAL:
		return rfc5424.User | rfc5424.Crit
	case FATAL:
		return rfc5424.User | rfc5424.Alert
	}
	return rfc5424.User | rfc5424.Info
}
