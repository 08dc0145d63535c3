/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/provatrace/provatrace/applog"
	"github.com/provatrace/provatrace/logsource"
	"github.com/provatrace/provatrace/reorder"
	"github.com/provatrace/provatrace/ubsi"
	"github.com/provatrace/provatrace/version"
)

const dirTimeFormat = `2006-01-02:15:04:05`

var (
	unitAnalysis bool
	socketPath   string
	fileListPath string
	filePath     string
	dirPath      string
	dirTimeStr   string
	mergeUnits   int
	waitForEnd   bool
	ver          bool

	lg *applog.Logger
)

func init() {
	flag.BoolVar(&unitAnalysis, `u`, false, `unit analysis`)
	flag.BoolVar(&unitAnalysis, `unit`, false, `unit analysis`)
	flag.StringVar(&socketPath, `s`, ``, `audit dispatcher socket path`)
	flag.StringVar(&socketPath, `socket`, ``, `audit dispatcher socket path`)
	flag.StringVar(&fileListPath, `f`, ``, `file listing log files to process in order`)
	flag.StringVar(&fileListPath, `files`, ``, `file listing log files to process in order`)
	flag.StringVar(&filePath, `F`, ``, `single log file to process`)
	flag.StringVar(&filePath, `file`, ``, `single log file to process`)
	flag.StringVar(&dirPath, `d`, ``, `directory containing rotated log files`)
	flag.StringVar(&dirPath, `dir`, ``, `directory containing rotated log files`)
	flag.StringVar(&dirTimeStr, `t`, ``, `only handle files modified after this time (YYYY-MM-DD:HH:MM:SS)`)
	flag.StringVar(&dirTimeStr, `time`, ``, `only handle files modified after this time (YYYY-MM-DD:HH:MM:SS)`)
	flag.IntVar(&mergeUnits, `m`, 0, `merge N consecutive units into one`)
	flag.IntVar(&mergeUnits, `merge-unit`, 0, `merge N consecutive units into one`)
	flag.BoolVar(&waitForEnd, `w`, false, `ignore signals and continue to the end of input`)
	flag.BoolVar(&waitForEnd, `wait-for-end`, false, `ignore signals and continue to the end of input`)
	flag.BoolVar(&ver, `version`, false, `print the version information and exit`)
	flag.Usage = usage
	flag.Parse()
	if ver {
		version.PrintVersion(os.Stdout)
		os.Exit(0)
	}
	lg = applog.NewStderrLogger()
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  -u, --unit          unit analysis\n")
	fmt.Fprintf(os.Stderr, "  -s, --socket        socket name\n")
	fmt.Fprintf(os.Stderr, "  -w, --wait-for-end  continue processing till the end of the log\n")
	fmt.Fprintf(os.Stderr, "  -f, --files         a filename that has a list of log files to process\n")
	fmt.Fprintf(os.Stderr, "  -F, --file          single file to process\n")
	fmt.Fprintf(os.Stderr, "  -d, --dir           a directory name that contains log files\n")
	fmt.Fprintf(os.Stderr, "  -t, --time          only handle log files modified after the timestamp\n")
	fmt.Fprintf(os.Stderr, "                      (format: YYYY-MM-DD:HH:MM:SS, e.g. 2017-01-21:07:09:20)\n")
	fmt.Fprintf(os.Stderr, "  -m, --merge-unit    merge N units into a single unit\n")
	fmt.Fprintf(os.Stderr, "  -h, --help          print this help and exit\n")
}

// pipeline owns the single threaded processing chain; the mutex only
// arbitrates between the pump and the signal triggered flush.
type pipeline struct {
	mtx    sync.Mutex
	lines  reorder.LineBuffer
	reord  *reorder.Reorderer
	engine *ubsi.Engine
	out    *bufio.Writer
}

func newPipeline() (*pipeline, error) {
	p := &pipeline{
		out: bufio.NewWriterSize(os.Stdout, 64*1024),
	}
	if unitAnalysis {
		eng, err := ubsi.NewEngine(ubsi.Config{
			Out:        p.out,
			MergeUnits: mergeUnits,
			Logger:     lg,
		})
		if err != nil {
			return nil, err
		}
		p.engine = eng
	}
	r, err := reorder.NewReorderer(p.dispatch, lg)
	if err != nil {
		return nil, err
	}
	p.reord = r
	return p, nil
}

// dispatch routes a released record: syscall records and intercepted
// wrappers go to the analysis engine when enabled, everything else
// passes through untouched.
func (p *pipeline) dispatch(line []byte) error {
	if p.engine != nil {
		if bytes.Contains(line, []byte(`ubsi_intercepted=`)) {
			return p.engine.HandleWrapped(line)
		}
		if bytes.Contains(line, []byte(`type=SYSCALL`)) {
			return p.engine.HandleLine(line)
		}
	}
	_, err := p.out.Write(line)
	return err
}

// feed is the chunk handler handed to every source.
func (p *pipeline) feed(chunk []byte) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.lines.Feed(chunk, p.reord.Submit)
}

// finish flushes the reorder buffer and all output.
func (p *pipeline) finish() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if err := p.reord.Flush(); err != nil {
		lg.Errorf("flush failed: %v", err)
	}
	if p.engine != nil {
		p.engine.Flush()
	}
	p.out.Flush()
}

func main() {
	p, err := newPipeline()
	if err != nil {
		lg.FatalCode(-1, "failed to build pipeline: %v", err)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if waitForEnd {
				// run until the input ends
				continue
			}
			p.finish()
			os.Exit(0)
		}
	}()

	fmt.Fprintf(os.Stderr, "#CONTROL_MSG#pid=%d run=%s\n", os.Getpid(), uuid.New())

	switch {
	case socketPath != ``:
		conn, err := logsource.DialSocket(socketPath)
		if err != nil {
			lg.FatalCode(-1, "unable to connect to socket %s: %v", socketPath, err)
		}
		if err := logsource.ReadStream(conn, p.feed); err != nil {
			lg.Errorf("socket read failed: %v", err)
		}
		conn.Close()
	case filePath != ``:
		lg.Infof("reading a log file: %s", filePath)
		if err := logsource.ReadFile(filePath, p.feed); err != nil {
			p.finish()
			lg.FatalCode(-1, "file read failed: %v", err)
		}
	case fileListPath != ``:
		if err := logsource.ReadFileList(fileListPath, p.feed, lg); err != nil {
			p.finish()
			lg.FatalCode(-1, "file list read failed: %v", err)
		}
	case dirPath != ``:
		var since time.Time
		if dirTimeStr != `` {
			if since, err = time.ParseInLocation(dirTimeFormat, dirTimeStr, time.Local); err != nil {
				lg.FatalCode(-1, "time error: %s: %v", dirTimeStr, err)
			}
		}
		dw, err := logsource.NewDirWatcher(dirPath, since, lg)
		if err != nil {
			lg.FatalCode(-1, "unable to watch %s: %v", dirPath, err)
		}
		defer dw.Close()
		if err := dw.Run(p.feed); err != nil {
			p.finish()
			lg.FatalCode(-1, "directory read failed: %v", err)
		}
	default:
		if err := logsource.ReadStream(os.Stdin, p.feed); err != nil {
			p.finish()
			lg.FatalCode(-1, "stdin read failed: %v", err)
		}
	}

	p.finish()
}
