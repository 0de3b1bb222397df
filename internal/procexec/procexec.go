// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package procexec launches child processes on the Executor's behalf
// and carries the single unified child-signal policy (§5, §9) that
// every fork site must go through.
//
// Go's runtime cannot safely run Go code between fork() and exec() in
// a forked child (the forked process has only the calling goroutine's
// OS thread; most of the runtime, including the garbage collector and
// other goroutines, is unsafe to touch there). os/exec's Cmd.Start
// already does fork+exec atomically through the kernel's clone(2)/
// execve(2) pair; the portable hook into that window is
// syscall.SysProcAttr, not arbitrary code. Two consequences shape this
// package:
//
//   - Leaf external commands (pipeline stages that exec a real binary)
//     go through StartLeaf, which sets SysProcAttr.Setpgid/Pgid/
//     Foreground and brackets the fork with a parent-side signal
//     reset: the signals a job-controlling shell holds SIG_IGN (SIGINT,
//     SIGQUIT, SIGTSTP, SIGTTIN, SIGTTOU) are put back to SIG_DFL for
//     the instant of Start, since a forked child inherits whatever
//     disposition its parent holds at the moment of fork, and exec(2)
//     only resets *handled* signals, not SIG_IGN ones.
//   - Shell-process children (subshells, brace groups run as a
//     background job, command/process substitution run as a job) are
//     not forked via raw fork() at all: ash self-reexecs its own binary
//     (StartShellChild) with the sub-program passed as its `-c`
//     argument. For that
//     freshly-exec'd process, ApplyChildSignalPolicy called at the very
//     top of cmd/ash's main is "immediately after fork" from this
//     architecture's point of view, since process start and post-fork
//     are the same moment for a re-exec'd child.
package procexec

import (
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
)

// jobControlSignals is the set every forked child sees reset to
// default per the unified policy: the five signals IgnoreForInteractive
// ignores, plus SIGCHLD, SIGPIPE and SIGWINCH.
var jobControlSignals = []os.Signal{
	syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTSTP,
	syscall.SIGTTIN, syscall.SIGTTOU, syscall.SIGCHLD, syscall.SIGPIPE,
	syscall.SIGWINCH,
}

// LeafSpec describes one external-command fork site: the pipeline
// process-group to join (0 means "start a new group"), and whether
// the new group should take the controlling terminal.
type LeafSpec struct {
	Path       string
	Args       []string
	Env        []string
	Dir        string
	Stdin      *os.File
	Stdout     *os.File
	Stderr     *os.File
	ExtraFiles []*os.File
	Pgid       int  // 0 => new process group led by this child
	Foreground bool // true => child's group takes the controlling tty at fork time
}

// StartLeaf forks+execs an external command, applying the unified
// child-signal policy's effect (default dispositions in the child) via
// the parent-side signal-reset bracket described in the package doc,
// and joins it to a process group (§5).
func StartLeaf(spec LeafSpec) (*exec.Cmd, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.ExtraFiles = spec.ExtraFiles
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pgid:      spec.Pgid,
		Foreground: spec.Foreground,
	}

	restore := resetJobControlSignalsForFork()
	err := cmd.Start()
	restore()
	if err != nil {
		return nil, errors.Wrapf(err, "exec %s", spec.Path)
	}
	return cmd, nil
}

// ShellChildSpec describes one self-reexec fork site: a rendered shell
// source fragment (normally internal/astprint output, optionally
// prefixed with a variable/function/option prelude) run by a fresh
// `ash -c` process rather than the current one.
type ShellChildSpec struct {
	Script     string
	Args       []string // "$0 $1 ..." for the child, script's positional params
	Env        []string
	Dir        string
	Stdin      *os.File
	Stdout     *os.File
	Stderr     *os.File
	ExtraFiles []*os.File
	Pgid       int
	Foreground bool
}

// selfExePath caches os.Executable's result; resolved once since argv[0]
// can't meaningfully change mid-process.
var selfExePath = func() string {
	p, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return p
}()

// StartShellChild self-reexecs the current ash binary as a shell-process
// child (subshell, backgrounded construct, or pipeline stage that isn't
// a bare external command), per the package doc. The child's first
// argv entries are ["-c", spec.Script], followed by spec.Args as its
// positional parameters.
func StartShellChild(spec ShellChildSpec) (*exec.Cmd, error) {
	args := append([]string{"-c", spec.Script}, spec.Args...)
	cmd := exec.Command(selfExePath, args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.ExtraFiles = spec.ExtraFiles
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:    true,
		Pgid:       spec.Pgid,
		Foreground: spec.Foreground,
	}

	restore := resetJobControlSignalsForFork()
	err := cmd.Start()
	restore()
	if err != nil {
		return nil, errors.Wrapf(err, "exec %s -c", selfExePath)
	}
	return cmd, nil
}

// resetJobControlSignalsForFork puts SIGINT/SIGQUIT/SIGTSTP/SIGTTIN/
// SIGTTOU back to their default disposition for the duration of a
// single fork+exec, then returns a closure that re-ignores them,
// restoring whatever policy the interactive shell was running under.
// Signals the shell was not ignoring are left untouched either way.
func resetJobControlSignalsForFork() func() {
	var ignored []os.Signal
	for _, sig := range jobControlSignals {
		if signal.Ignored(sig) {
			ignored = append(ignored, sig)
		}
	}
	if len(ignored) == 0 {
		return func() {}
	}
	signal.Reset(ignored...)
	return func() {
		signal.Ignore(ignored...)
	}
}

// ApplyChildSignalPolicy is called at the top of a freshly-started
// shell-process child (a self-reexec'd ash invocation backing a
// subshell, brace group, or command/process substitution run as a
// job) before it does anything else: reset the job-control signal set
// to default, then re-ignore SIGTTOU if this child is itself going to
// do job control (tcsetpgrp) of its own, e.g. a subshell that runs its
// own foreground pipelines.
func ApplyChildSignalPolicy(isShellProcess bool) {
	signal.Reset(jobControlSignals...)
	if isShellProcess {
		signal.Ignore(syscall.SIGTTOU)
	}
}

// IgnoreForInteractive puts the shell's own process-lifetime SIG_IGN
// set in place: called once at interactive/job-control startup, per
// §5 "The parent ignores SIGINT, SIGQUIT, SIGTSTP, SIGTTIN, SIGTTOU
// while not waiting."
func IgnoreForInteractive() {
	signal.Ignore(syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU)
}
