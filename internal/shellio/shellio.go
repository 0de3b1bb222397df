// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package shellio implements the redirection descriptor's runtime
// effect (§4.5.6): opening targets, duplicating into the requested fd,
// and the mandatory save/restore bracket so builtins and functions
// observe their redirections without leaking them to later commands.
package shellio

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/shellerr"
)

// saveBase is the lowest fd the shell uses for save/restore
// bookkeeping, keeping fds 0..9 free for the user-visible redirection
// space (§5 "the shell uses fds ≥10 for save/restore bookkeeping").
const saveBase = 10

// Streams holds the three standard streams the executor threads
// through command evaluation; redirections mutate a copy, never the
// original, so a restore is just "put this struct back."
type Streams struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Fork returns a shallow copy of s, for passing into a pipeline stage
// or subshell that may redirect independently of its caller.
func (s Streams) Fork() Streams { return s }

// saved records one fd's prior target, captured via dup so it can be
// restored exactly regardless of what the command did to the
// original descriptor number in between.
type saved struct {
	fd     int
	backup *os.File // nil means "fd was not open before"
}

// Frame accumulates the dups needed to undo a set of redirections,
// applied in reverse order on Restore.
type Frame struct {
	entries []saved
}

// ApplyRedirects opens and dups every redirect in order, recording
// enough state in the returned Frame to undo them later. streams is
// mutated in place for fds 0/1/2 so callers seeing std{in,out,err} via
// *os.File (as opposed to a raw fd number) observe the new targets.
// noclobber makes a plain `>` refuse to truncate an existing regular
// file; `>|` bypasses it (§4.5.6).
func ApplyRedirects(redirects []ast.Redirect, streams *Streams, expandTarget func(ast.Word) (string, error), noclobber bool) (*Frame, error) {
	f := &Frame{}
	for _, r := range redirects {
		fd := r.FD
		if fd < 0 {
			fd = defaultFD(r.Op)
		}
		if err := f.save(fd); err != nil {
			return f, err
		}
		if err := applyOne(r, fd, streams, expandTarget, noclobber); err != nil {
			return f, err
		}
	}
	return f, nil
}

func defaultFD(op ast.RedirOp) int {
	switch op {
	case ast.RedirInput, ast.RedirDupInput, ast.RedirHereDoc, ast.RedirHereDocStrip, ast.RedirHereString:
		return 0
	default:
		return 1
	}
}

// save dups fd into an unused bookkeeping slot (≥10) before it gets
// overwritten, or records that it was closed so Restore can close it
// again.
func (f *Frame) save(fd int) error {
	dup, err := syscall.Dup(fd)
	if err != nil {
		f.entries = append(f.entries, saved{fd: fd, backup: nil})
		return nil
	}
	moved, err := moveAboveSaveBase(dup)
	if err != nil {
		syscall.Close(dup)
		return errors.Wrap(err, "shellio: save fd")
	}
	f.entries = append(f.entries, saved{fd: fd, backup: os.NewFile(uintptr(moved), "saved-fd")})
	return nil
}

// moveAboveSaveBase dups fd to the lowest free descriptor ≥ saveBase
// and closes the original, so bookkeeping dups never collide with the
// user-visible 0..9 redirection space.
func moveAboveSaveBase(fd int) (int, error) {
	if fd >= saveBase {
		return fd, nil
	}
	newFd, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD, saveBase)
	syscall.Close(fd)
	return newFd, err
}

// Restore undoes every save in reverse order.
func (f *Frame) Restore() {
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.backup == nil {
			syscall.Close(e.fd)
			continue
		}
		syscall.Dup2(int(e.backup.Fd()), e.fd)
		e.backup.Close()
	}
}

func applyOne(r ast.Redirect, fd int, streams *Streams, expandTarget func(ast.Word) (string, error), noclobber bool) error {
	switch r.Op {
	case ast.RedirInput:
		return openAndDup(r.Target, fd, os.O_RDONLY, 0, streams, expandTarget, false)
	case ast.RedirOutput:
		return openAndDup(r.Target, fd, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644, streams, expandTarget, noclobber)
	case ast.RedirClobber:
		return openAndDup(r.Target, fd, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644, streams, expandTarget, false)
	case ast.RedirAppend:
		return openAndDup(r.Target, fd, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644, streams, expandTarget, false)
	case ast.RedirReadWrite:
		return openAndDup(r.Target, fd, os.O_RDWR|os.O_CREATE, 0o644, streams, expandTarget, false)
	case ast.RedirDupInput, ast.RedirDupOutput:
		return dupFD(r, fd, streams)
	case ast.RedirBothOutput:
		return dupBoth(r.Target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, streams, expandTarget)
	case ast.RedirBothAppend:
		return dupBoth(r.Target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, streams, expandTarget)
	case ast.RedirHereDoc, ast.RedirHereDocStrip, ast.RedirHereString:
		return feedHereData(r, fd, streams)
	default:
		return shellerr.New(shellerr.KindRedirect, "unsupported redirection")
	}
}

func openAndDup(target ast.Word, fd int, flags int, perm os.FileMode, streams *Streams, expandTarget func(ast.Word) (string, error), noclobber bool) error {
	path, err := expandTarget(target)
	if err != nil {
		return err
	}
	if noclobber {
		if fi, statErr := os.Stat(path); statErr == nil && fi.Mode().IsRegular() {
			return shellerr.New(shellerr.KindRedirect, "%s: cannot overwrite existing file", path)
		}
	}
	file, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return shellerr.Wrap(shellerr.KindRedirect, err, "%s", path)
	}
	defer file.Close()
	if err := syscall.Dup2(int(file.Fd()), fd); err != nil {
		return shellerr.Wrap(shellerr.KindRedirect, err, "dup2 %d", fd)
	}
	assignStream(streams, fd, os.NewFile(uintptr(fd), path))
	return nil
}

func dupFD(r ast.Redirect, fd int, streams *Streams) error {
	if r.TargetIsFD {
		srcText := r.Target.Tok.Text
		if srcText == "-" {
			syscall.Close(fd)
			return nil
		}
		src, err := parseFDNumber(srcText)
		if err != nil {
			return err
		}
		if err := syscall.Dup2(src, fd); err != nil {
			return shellerr.Wrap(shellerr.KindRedirect, err, "dup2 %d->%d", src, fd)
		}
		assignStream(streams, fd, os.NewFile(uintptr(fd), "dup"))
		return nil
	}
	return shellerr.New(shellerr.KindRedirect, "bad fd-duplication target")
}

func parseFDNumber(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, shellerr.New(shellerr.KindRedirect, "empty fd target")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, shellerr.New(shellerr.KindRedirect, "%s: bad fd number", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func dupBoth(target ast.Word, flags int, streams *Streams, expandTarget func(ast.Word) (string, error)) error {
	path, err := expandTarget(target)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return shellerr.Wrap(shellerr.KindRedirect, err, "%s", path)
	}
	defer file.Close()
	if err := syscall.Dup2(int(file.Fd()), 1); err != nil {
		return err
	}
	if err := syscall.Dup2(int(file.Fd()), 2); err != nil {
		return err
	}
	assignStream(streams, 1, os.NewFile(1, path))
	assignStream(streams, 2, os.NewFile(2, path))
	return nil
}

// feedHereData pipes an already-collected here-doc/here-string body
// into fd via an os.Pipe, since here-data has no backing file.
func feedHereData(r ast.Redirect, fd int, streams *Streams) error {
	rFile, wFile, err := os.Pipe()
	if err != nil {
		return shellerr.Wrap(shellerr.KindRedirect, err, "pipe")
	}
	go func() {
		defer wFile.Close()
		_, _ = wFile.WriteString(r.HereDocBody)
	}()
	defer rFile.Close()
	if err := syscall.Dup2(int(rFile.Fd()), fd); err != nil {
		return shellerr.Wrap(shellerr.KindRedirect, err, "dup2 here-data")
	}
	assignStream(streams, fd, os.NewFile(uintptr(fd), "heredoc"))
	return nil
}

func assignStream(streams *Streams, fd int, f *os.File) {
	if streams == nil {
		return
	}
	switch fd {
	case 0:
		streams.Stdin = f
	case 1:
		streams.Stdout = f
	case 2:
		streams.Stderr = f
	}
}
