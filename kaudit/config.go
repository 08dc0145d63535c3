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
	"os"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/provatrace/provatrace/audfilter"
)

const maxConfigSize int64 = 1024 * 1024

var (
	ErrConfigTooLarge = errors.New("config file too large")
	ErrBadMonitorMode = errors.New("invalid monitor mode")
	ErrBadResultMode  = errors.New("invalid monitor result mode")
	ErrBadCtMode      = errors.New("invalid conntrack monitor mode")
)

type cfgType struct {
	Capture struct {
		Network_IO              bool
		Include_NS_Info         bool
		Monitor_Function_Result int
		Pid_Monitor_Mode        int
		Pids                    []string
		Ppid_Monitor_Mode       int
		Ppids                   []string
		Uid_Monitor_Mode        int
		Uids                    []string
	}
	Netfilter struct {
		Hooks             bool
		Use_User          bool
		Monitor_Conntrack int
		Users             []string
	}
	Harden struct {
		Tgids           []string
		Authorized_Uids []string
	}
}

// LoadConfig reads the capture filter context from an INI style
// configuration file.
func LoadConfig(path string) (*audfilter.Context, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := fin.Stat()
	if err != nil {
		fin.Close()
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		fin.Close()
		return nil, ErrConfigTooLarge
	}
	content := make([]byte, fi.Size())
	n, err := fin.Read(content)
	fin.Close()
	if err != nil || int64(n) != fi.Size() {
		return nil, errors.New("failed to read config file")
	}

	var c cfgType
	c.Capture.Monitor_Function_Result = int(audfilter.MonitorAll)
	c.Netfilter.Monitor_Conntrack = int(audfilter.CtMonitorAll)
	if err := gcfg.ReadStringInto(&c, string(content)); err != nil {
		return nil, err
	}
	return c.context()
}

func (c *cfgType) context() (*audfilter.Context, error) {
	var ctx audfilter.Context
	var err error
	ctx.NetworkIO = c.Capture.Network_IO
	ctx.IncludeNsInfo = c.Capture.Include_NS_Info
	switch audfilter.ResultMode(c.Capture.Monitor_Function_Result) {
	case audfilter.MonitorAll, audfilter.MonitorOnlyFailed, audfilter.MonitorOnlySuccessful:
		ctx.MonitorResult = audfilter.ResultMode(c.Capture.Monitor_Function_Result)
	default:
		return nil, ErrBadResultMode
	}
	if ctx.Pids, err = parseIDList(c.Capture.Pid_Monitor_Mode, c.Capture.Pids); err != nil {
		return nil, err
	}
	if ctx.Ppids, err = parseIDList(c.Capture.Ppid_Monitor_Mode, c.Capture.Ppids); err != nil {
		return nil, err
	}
	if ctx.Uids, err = parseIDList(c.Capture.Uid_Monitor_Mode, c.Capture.Uids); err != nil {
		return nil, err
	}
	ctx.Netfilter.HooksOn = c.Netfilter.Hooks
	ctx.Netfilter.UseUser = c.Netfilter.Use_User
	ctx.Netfilter.IncludeNsInfo = c.Capture.Include_NS_Info
	switch audfilter.CtMode(c.Netfilter.Monitor_Conntrack) {
	case audfilter.CtMonitorAll, audfilter.CtMonitorOnlyNew:
		ctx.Netfilter.MonitorCt = audfilter.CtMode(c.Netfilter.Monitor_Conntrack)
	default:
		return nil, ErrBadCtMode
	}
	if ctx.Netfilter.User, err = parseIDList(0, c.Netfilter.Users); err != nil {
		return nil, err
	}
	if ctx.Harden.Tgids, err = parseIDs(c.Harden.Tgids); err != nil {
		return nil, err
	}
	if ctx.Harden.AuthorizedUids, err = parseIDs(c.Harden.Authorized_Uids); err != nil {
		return nil, err
	}
	if err = ctx.Validate(); err != nil {
		return nil, err
	}
	return &ctx, nil
}

func parseIDList(mode int, vals []string) (l audfilter.IDList, err error) {
	switch audfilter.ListMode(mode) {
	case audfilter.ModeCapture, audfilter.ModeIgnore:
		l.Mode = audfilter.ListMode(mode)
	default:
		return l, ErrBadMonitorMode
	}
	l.Ids, err = parseIDs(vals)
	return
}

func parseIDs(vals []string) ([]int64, error) {
	var ids []int64
	for _, v := range vals {
		for _, f := range strings.Fields(strings.ReplaceAll(v, ",", " ")) {
			id, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
