/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package logsource provides the bridge input modes: an arbitrary
// stream (stdin or a unix socket), a single log file, a file of log
// file names, and a rotating directory.  In single file and file list
// modes, files named with a .gz suffix are decompressed transparently;
// the directory watcher reads every file as raw bytes.
package logsource

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/provatrace/provatrace/applog"
)

// ReadBufSize is the per-turn read size from any source.
const ReadBufSize = 16 * 1024

var (
	ErrNilHandler = errors.New("nil chunk handler")
)

// Handler consumes raw byte chunks as they arrive; framing happens
// downstream.
type Handler func(chunk []byte) error

// ReadStream pumps a reader to the handler until EOF.
func ReadStream(r io.Reader, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	buf := make([]byte, ReadBufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if herr := h(buf[:n]); herr != nil {
				return herr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// DialSocket connects to the audit dispatcher's unix stream socket.
func DialSocket(path string) (net.Conn, error) {
	return net.Dial(`unix`, path)
}

// openLog opens a log file, layering a gunzip reader over rotated
// compressed files.
func openLog(path string) (io.ReadCloser, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, `.gz`) {
		gz, err := gzip.NewReader(fin)
		if err != nil {
			fin.Close()
			return nil, err
		}
		return &gzFile{gz: gz, fin: fin}, nil
	}
	return fin, nil
}

type gzFile struct {
	gz  *gzip.Reader
	fin *os.File
}

func (g *gzFile) Read(b []byte) (int, error) {
	return g.gz.Read(b)
}

func (g *gzFile) Close() error {
	err := g.gz.Close()
	if lerr := g.fin.Close(); err == nil {
		err = lerr
	}
	return err
}

// ReadFile pumps a single log file through the handler.
func ReadFile(path string, h Handler) error {
	fin, err := openLog(path)
	if err != nil {
		return err
	}
	defer fin.Close()
	return ReadStream(fin, h)
}

// ReadFileList processes a file whose lines each name a log file, in
// order.  Unreadable entries are logged and skipped.
func ReadFileList(path string, h Handler, lg *applog.Logger) error {
	if lg == nil {
		lg = applog.NewDiscardLogger()
	}
	fin, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fin.Close()
	scn := bufio.NewScanner(fin)
	for scn.Scan() {
		name := strings.TrimSpace(scn.Text())
		if name == `` {
			continue
		}
		lg.Infof("reading log file: %s", name)
		if err := ReadFile(name, h); err != nil {
			lg.Errorf("failed to read %s: %v", name, err)
			continue
		}
	}
	return scn.Err()
}
