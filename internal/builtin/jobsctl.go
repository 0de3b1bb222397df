// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package builtin

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/aleutianshell/ash/internal/job"
)

func init() {
	register("jobs", jobsBuiltin)
	register("fg", fgBuiltin)
	register("bg", bgBuiltin)
	register("disown", disownBuiltin)
	register("wait", waitBuiltin)
	register("kill", killBuiltin)
}

func jobsBuiltin(ctx *Context) (int, error) {
	long := false
	for _, a := range ctx.Args[1:] {
		if a == "-l" {
			long = true
		}
	}
	for _, j := range ctx.Jobs.List() {
		marker := "-"
		if j == ctx.Jobs.Current() {
			marker = "+"
		}
		if !long {
			fmt.Fprintf(ctx.Streams.Stdout, "[%d]%s %s %s\n", j.ID, marker, j.State, j.Command)
			continue
		}
		// -l: one line per member process, with the executable name
		// resolved from the live process table; a reaped process no
		// longer resolves and falls back to the job's command string.
		names := j.CommandNames()
		for i, p := range j.Procs {
			label := names[p.PID]
			if label == "" {
				label = j.Command
			}
			if i == 0 {
				fmt.Fprintf(ctx.Streams.Stdout, "[%d]%s %d %s %s\n", j.ID, marker, p.PID, j.State, label)
			} else {
				fmt.Fprintf(ctx.Streams.Stdout, "      %d %s %s\n", p.PID, j.State, label)
			}
		}
	}
	return 0, nil
}

// resolveJobArg parses a `%N`, bare job id, or empty (current job)
// job-control specifier into a *job.Manager-registered Job.
func resolveJobArg(ctx *Context, arg string) (*job.Job, error) {
	if arg == "" {
		if j := ctx.Jobs.Current(); j != nil {
			return j, nil
		}
		return nil, fmt.Errorf("current: no such job")
	}
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "%"))
	if err != nil {
		return nil, fmt.Errorf("%s: no such job", arg)
	}
	j, ok := ctx.Jobs.Get(id)
	if !ok {
		return nil, fmt.Errorf("%%%d: no such job", id)
	}
	return j, nil
}

// fgBuiltin resumes a stopped/background job in the foreground,
// sending SIGCONT to its process group and reclaiming the terminal.
func fgBuiltin(ctx *Context) (int, error) {
	arg := ""
	if len(ctx.Args) > 1 {
		arg = ctx.Args[1]
	}
	j, err := resolveJobArg(ctx, arg)
	if err != nil {
		return 1, fmt.Errorf("fg: %w", err)
	}
	fmt.Fprintf(ctx.Streams.Stdout, "%s\n", j.Command)
	if err := ctx.Jobs.SetForeground(j.PGID); err != nil {
		return 1, err
	}
	syscall.Kill(-j.PGID, syscall.SIGCONT)
	status, err := ctx.Jobs.WaitForeground(j, false)
	ctx.Jobs.ReclaimForeground()
	return status, err
}

// bgBuiltin resumes a stopped job in the background.
func bgBuiltin(ctx *Context) (int, error) {
	arg := ""
	if len(ctx.Args) > 1 {
		arg = ctx.Args[1]
	}
	j, err := resolveJobArg(ctx, arg)
	if err != nil {
		return 1, fmt.Errorf("bg: %w", err)
	}
	if err := syscall.Kill(-j.PGID, syscall.SIGCONT); err != nil {
		return 1, err
	}
	fmt.Fprintf(ctx.Streams.Stdout, "[%d]+ %s &\n", j.ID, j.Command)
	return 0, nil
}

// spinUntilDone blocks the calling goroutine, reaping SIGCHLD-pending
// children through the same non-blocking wait4 path the signal watcher
// uses, until j has no more live processes. A single-threaded
// tree-walking interpreter has no other suspension point to wait on.
func spinUntilDone(jm *job.Manager, j *job.Job) {
	for !j.AllDone() {
		if !jm.ReapOnce() {
			runtime.Gosched()
		}
	}
}

// waitBuiltin implements `wait [job-or-pid...]` (§4.7): with no
// arguments, waits for every tracked job; otherwise waits for each
// named job/pid in turn, returning the last one's exit status.
func waitBuiltin(ctx *Context) (int, error) {
	if len(ctx.Args) <= 1 {
		status := 0
		for _, j := range ctx.Jobs.List() {
			spinUntilDone(ctx.Jobs, j)
			status = j.LastStatus()
			ctx.Jobs.Remove(j.ID)
		}
		return status, nil
	}
	status := 0
	for _, arg := range ctx.Args[1:] {
		j, err := resolveJobArg(ctx, arg)
		if err != nil {
			return 127, fmt.Errorf("wait: %w", err)
		}
		spinUntilDone(ctx.Jobs, j)
		status = j.LastStatus()
	}
	return status, nil
}

// signalByName resolves `kill -SIGNAME`/`kill -N` arguments, matching
// the vocabulary the `trap` builtin accepts.
var signalByName = map[string]syscall.Signal{
	"HUP": syscall.SIGHUP, "INT": syscall.SIGINT, "QUIT": syscall.SIGQUIT,
	"ILL": syscall.SIGILL, "TRAP": syscall.SIGTRAP, "ABRT": syscall.SIGABRT,
	"FPE": syscall.SIGFPE, "KILL": syscall.SIGKILL, "USR1": syscall.SIGUSR1,
	"SEGV": syscall.SIGSEGV, "USR2": syscall.SIGUSR2, "PIPE": syscall.SIGPIPE,
	"ALRM": syscall.SIGALRM, "TERM": syscall.SIGTERM, "CHLD": syscall.SIGCHLD,
	"CONT": syscall.SIGCONT, "TSTP": syscall.SIGTSTP, "TTIN": syscall.SIGTTIN,
	"TTOU": syscall.SIGTTOU, "WINCH": syscall.SIGWINCH,
}

func parseSignalArg(s string) (syscall.Signal, bool) {
	s = strings.TrimPrefix(strings.ToUpper(s), "SIG")
	if sig, ok := signalByName[s]; ok {
		return sig, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return syscall.Signal(n), true
	}
	return 0, false
}

// killBuiltin implements `kill [-SIG] job-or-pid...` (§4.7): delivers a
// signal (default SIGTERM) to a job's whole process group (`%N`
// targets) or a bare PID.
func killBuiltin(ctx *Context) (int, error) {
	args := ctx.Args[1:]
	sig := syscall.SIGTERM
	if len(args) > 0 && strings.HasPrefix(args[0], "-") {
		name := strings.TrimPrefix(args[0], "-")
		resolved, ok := parseSignalArg(name)
		if !ok {
			return 1, fmt.Errorf("kill: %s: invalid signal specification", args[0])
		}
		sig = resolved
		args = args[1:]
	}
	if len(args) == 0 {
		return 1, fmt.Errorf("kill: usage: kill [-sig] pid|%%job ...")
	}
	status := 0
	for _, a := range args {
		if strings.HasPrefix(a, "%") {
			j, err := resolveJobArg(ctx, a)
			if err != nil {
				status = 1
				fmt.Fprintf(ctx.Streams.Stderr, "kill: %v\n", err)
				continue
			}
			if err := syscall.Kill(-j.PGID, sig); err != nil {
				status = 1
				fmt.Fprintf(ctx.Streams.Stderr, "kill: (%%%d): %v\n", j.ID, err)
			}
			continue
		}
		pid, err := strconv.Atoi(a)
		if err != nil {
			status = 1
			fmt.Fprintf(ctx.Streams.Stderr, "kill: %s: arguments must be process or job IDs\n", a)
			continue
		}
		if err := syscall.Kill(pid, sig); err != nil {
			status = 1
			fmt.Fprintf(ctx.Streams.Stderr, "kill: (%d): %v\n", pid, err)
		}
	}
	return status, nil
}

func disownBuiltin(ctx *Context) (int, error) {
	arg := ""
	if len(ctx.Args) > 1 {
		arg = ctx.Args[1]
	}
	j, err := resolveJobArg(ctx, arg)
	if err != nil {
		return 1, fmt.Errorf("disown: %w", err)
	}
	ctx.Jobs.Remove(j.ID)
	return 0, nil
}
