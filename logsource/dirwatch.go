/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logsource

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"github.com/provatrace/provatrace/applog"
)

var (
	ErrNoDirectory = errors.New("directory does not exist")
)

// scanInterval is the fallback poll cadence when no directory events
// arrive.
const scanInterval = time.Second

// DirWatcher advances through rotated log files in a directory by
// modification time.  Files are tracked by inode so renames during
// rotation do not restart a file.
type DirWatcher struct {
	dir   string
	since time.Time
	lg    *applog.Logger
	fsn   *fsnotify.Watcher
	tick  *time.Ticker
}

// NewDirWatcher watches dir, considering only files modified strictly
// after since.
func NewDirWatcher(dir string, since time.Time, lg *applog.Logger) (*DirWatcher, error) {
	if lg == nil {
		lg = applog.NewDiscardLogger()
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return nil, ErrNoDirectory
	}
	fsn, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsn.Add(dir); err != nil {
		fsn.Close()
		return nil, err
	}
	return &DirWatcher{
		dir:   dir,
		since: since,
		lg:    lg,
		fsn:   fsn,
		tick:  time.NewTicker(scanInterval),
	}, nil
}

func (d *DirWatcher) Close() error {
	d.tick.Stop()
	return d.fsn.Close()
}

// nextFile finds the earliest regular file modified strictly after the
// reference time, excluding the currently open inode.
func (d *DirWatcher) nextFile(after time.Time, curIno uint64) (ino uint64, ok bool) {
	ents, err := os.ReadDir(d.dir)
	if err != nil {
		d.lg.Errorf("dir open error: %s: %v", d.dir, err)
		return 0, false
	}
	var best time.Time
	for _, ent := range ents {
		var st unix.Stat_t
		full := filepath.Join(d.dir, ent.Name())
		if err := unix.Stat(full, &st); err != nil {
			continue
		}
		if st.Mode&unix.S_IFMT != unix.S_IFREG {
			continue
		}
		mtime := time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
		if !mtime.After(after) {
			continue
		}
		if st.Ino == curIno {
			continue
		}
		if !ok || mtime.Before(best) {
			best = mtime
			ino = st.Ino
			ok = true
		}
	}
	return
}

// openInode opens the directory entry carrying the given inode.
func (d *DirWatcher) openInode(ino uint64) (*os.File, error) {
	ents, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	for _, ent := range ents {
		var st unix.Stat_t
		full := filepath.Join(d.dir, ent.Name())
		if err := unix.Stat(full, &st); err != nil {
			continue
		}
		if st.Ino == ino {
			return os.Open(full)
		}
	}
	return nil, os.ErrNotExist
}

// waitTurn blocks until a directory event or the poll tick.
func (d *DirWatcher) waitTurn() {
	select {
	case <-d.fsn.Events:
	case <-d.fsn.Errors:
	case <-d.tick.C:
	}
}

// Run pumps the rotation sequence through the handler until the
// context of the process ends it; it only returns on a hard error.
func (d *DirWatcher) Run(h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	// wait for the first candidate
	var ino uint64
	for {
		var ok bool
		if ino, ok = d.nextFile(d.since, 0); ok {
			break
		}
		d.waitTurn()
	}
	for {
		next, err := d.followInode(ino, h)
		if err != nil {
			return err
		}
		ino = next
	}
}

// followInode tails one file; once the file stops growing and a newer
// candidate exists, remaining content is drained and the next inode
// returned.
func (d *DirWatcher) followInode(ino uint64, h Handler) (uint64, error) {
	fin, err := d.openInode(ino)
	if err != nil {
		d.lg.Errorf("file open error: inode %d: %v", ino, err)
		return 0, err
	}
	defer fin.Close()
	buf := make([]byte, ReadBufSize)
	for {
		n, err := fin.Read(buf)
		if n > 0 {
			if herr := h(buf[:n]); herr != nil {
				return 0, herr
			}
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		// at EOF: look for a successor modified after this file
		var st unix.Stat_t
		if err := unix.Fstat(int(fin.Fd()), &st); err != nil {
			d.lg.Errorf("stat failed: inode %d: %v", ino, err)
			d.waitTurn()
			continue
		}
		mtime := time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
		if next, ok := d.nextFile(mtime, st.Ino); ok {
			// drain anything that landed since the last read
			for {
				n, err := fin.Read(buf)
				if n > 0 {
					if herr := h(buf[:n]); herr != nil {
						return 0, herr
					}
					continue
				}
				if err != nil && !errors.Is(err, io.EOF) {
					return 0, err
				}
				break
			}
			return next, nil
		}
		d.waitTurn()
	}
}
