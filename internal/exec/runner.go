// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package exec

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/aleutianshell/ash/internal/parser"
	"github.com/aleutianshell/ash/internal/procexec"
	"github.com/aleutianshell/ash/internal/shellio"
)

// execRunner implements expand.Runner, letting internal/expand re-enter
// the front end + executor for `$(...)`, backtick, and process
// substitution without importing this package back (see expand's
// package doc on the one-way dependency).
type execRunner struct {
	ex *Executor
}

// RunCaptured parses and runs script against a clone of the calling
// Executor's state (the in-process isolation path from the package
// doc: command substitution always runs to completion, blocking its
// caller, before the result is used, so nothing else touches fds 0/1/2
// concurrently). Output is captured through a pipe drained concurrently
// so a substitution that writes more than a pipe buffer can't deadlock.
func (r *execRunner) RunCaptured(script string) (string, int, error) {
	top, err := parser.Parse(script, parser.ModeBash)
	if err != nil {
		return "", 1, err
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", 1, err
	}
	sub := r.ex.forkInProcess()
	sub.Streams = shellio.Streams{
		Stdin:  r.ex.Streams.Stdin,
		Stdout: pw,
		Stderr: r.ex.Streams.Stderr,
	}

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		io.Copy(&buf, pr)
		close(done)
	}()

	status, runErr := sub.Run(top)
	pw.Close()
	<-done
	pr.Close()

	out := strings.TrimRight(buf.String(), "\n")
	return out, status, runErr
}

// StartProcessSub creates a FIFO and launches script as a self-reexec'd
// shell-process child with one end connected to it (the concurrent-use
// path from the package doc: the substitution must run alongside the
// command that reads or writes the FIFO, which makes in-process cloning
// unsafe). cleanup removes the FIFO and its containing directory once
// the caller is done with the path.
func (r *execRunner) StartProcessSub(script string, dir byte) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "ash-procsub-"+uuid.NewString()[:8])
	if err != nil {
		return "", nil, err
	}
	fifoPath := filepath.Join(tmpDir, "fifo")
	if err := syscall.Mkfifo(fifoPath, 0o600); err != nil {
		os.RemoveAll(tmpDir)
		return "", nil, err
	}

	ex := r.ex
	prelude := ex.buildPrelude()
	fullScript := prelude + script

	// Opening the FIFO O_RDWR here (rather than in the single direction
	// the child actually uses) sidesteps the classic FIFO-open race: a
	// O_WRONLY|O_NONBLOCK open fails with ENXIO until a reader exists,
	// and the caller's own open of fifoPath (the other end) only
	// happens after this function returns the path. Holding an O_RDWR
	// descriptor open across that window means neither side's eventual
	// single-direction open ever has to wait for a peer that isn't
	// there yet.
	fifoFile, err := os.OpenFile(fifoPath, os.O_RDWR, 0)
	if err != nil {
		os.RemoveAll(tmpDir)
		return "", nil, err
	}

	var childStdin, childStdout *os.File
	if dir == '<' {
		// <(...): child writes into the FIFO, caller opens it to read.
		childStdin = ex.Streams.Stdin
		childStdout = fifoFile
	} else {
		// >(...): child reads from the FIFO, caller opens it to write.
		childStdin = fifoFile
		childStdout = ex.Streams.Stdout
	}

	cmd, err := procexec.StartShellChild(procexec.ShellChildSpec{
		Script: fullScript,
		Env:    ex.Vars.ExportedEnviron(),
		Dir:    ".",
		Stdin:  childStdin,
		Stdout: childStdout,
		Stderr: ex.Streams.Stderr,
		Pgid:   0,
	})
	if err != nil {
		fifoFile.Close()
		os.RemoveAll(tmpDir)
		return "", nil, err
	}
	fifoFile.Close()

	cleanup := func() {
		cmd.Wait()
		os.RemoveAll(tmpDir)
	}
	return fifoPath, cleanup, nil
}
