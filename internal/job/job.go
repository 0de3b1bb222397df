// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package job implements the job/process-group data model (§3 Job)
// and the job manager: registration, state tracking via SIGCHLD/wait4,
// and terminal-ownership transfer for foreground pipelines (§5).
package job

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"syscall"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"
)

// State is one of a Job's three lifecycle states (§3).
type State int

const (
	Running State = iota
	Stopped
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Proc is one child PID belonging to a Job, with its last-known status.
type Proc struct {
	PID      int
	Done     bool
	ExitCode int
	Signaled bool
	Signal   syscall.Signal
}

// Job is the §3 Job record: an id, process-group id, its member
// processes, aggregate state, and bookkeeping flags.
type Job struct {
	ID         int
	PGID       int
	Procs      []*Proc
	State      State
	Foreground bool
	NoHup      bool
	Command    string
}

// LastStatus returns the exit status contributed by the job's last
// process (the rightmost pipeline stage), used as the job's own exit
// status absent `pipefail`.
func (j *Job) LastStatus() int {
	if len(j.Procs) == 0 {
		return 0
	}
	last := j.Procs[len(j.Procs)-1]
	if last.Signaled {
		return 128 + int(last.Signal)
	}
	return last.ExitCode
}

// PipefailStatus returns the rightmost non-zero exit code among the
// job's processes, or 0 if every stage exited zero (§4.5.2 pipefail).
func (j *Job) PipefailStatus() int {
	status := 0
	for _, p := range j.Procs {
		s := p.ExitCode
		if p.Signaled {
			s = 128 + int(p.Signal)
		}
		if s != 0 {
			status = s
		}
	}
	return status
}

// AllDone reports whether every process in the job has exited.
func (j *Job) AllDone() bool {
	for _, p := range j.Procs {
		if !p.Done {
			return false
		}
	}
	return true
}

// CommandNames resolves each live PID in the job to a command name via
// go-ps, best-effort, for `jobs -l` diagnostics (§4.7 jobs).
func (j *Job) CommandNames() map[int]string {
	out := make(map[int]string, len(j.Procs))
	procs, err := ps.Processes()
	if err != nil {
		return out
	}
	byPID := make(map[int]ps.Process, len(procs))
	for _, p := range procs {
		byPID[p.Pid()] = p
	}
	for _, proc := range j.Procs {
		if p, ok := byPID[proc.PID]; ok {
			out[proc.PID] = p.Executable()
		}
	}
	return out
}

// Manager owns the jobs table and the shell's terminal-ownership
// bookkeeping (§3 "The Job Manager owns a jobs map keyed by job-id and
// a current_job pointer").
type Manager struct {
	mu         sync.Mutex
	jobs       map[int]*Job
	nextID     int
	current    *Job
	TTYFd      int // fd of the controlling terminal, or -1 if none
	ShellPGID  int
}

// New creates an empty job table. ttyFd is the controlling terminal's
// fd (typically os.Stdin.Fd()), or -1 for a non-interactive shell.
func New(ttyFd int) *Manager {
	pgid, _ := unix.Getpgid(os.Getpid())
	return &Manager{jobs: make(map[int]*Job), nextID: 1, TTYFd: ttyFd, ShellPGID: pgid}
}

// Register adds a newly-started job to the table and, when it is a
// background job, makes it current.
func (m *Manager) Register(pgid int, pids []int, foreground bool, command string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	procs := make([]*Proc, len(pids))
	for i, pid := range pids {
		procs[i] = &Proc{PID: pid}
	}
	j := &Job{ID: m.nextID, PGID: pgid, Procs: procs, State: Running, Foreground: foreground, Command: command}
	m.nextID++
	m.jobs[j.ID] = j
	if !foreground {
		m.current = j
	}
	return j
}

// Get returns a job by id.
func (m *Manager) Get(id int) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok
}

// Current returns the most recently backgrounded job (bash's `$!`/`%%` target).
func (m *Manager) Current() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// List returns every tracked job, ordered by id, for the `jobs` builtin.
func (m *Manager) List() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*Job, len(ids))
	for i, id := range ids {
		out[i] = m.jobs[id]
	}
	return out
}

// Remove drops a completed job from the table (after it has been
// reported, per §3 "persist until reaped and printed").
func (m *Manager) Remove(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// UpdateStatus records a wait4 result against the job owning pid,
// recomputing the job's aggregate State. Called from the SIGCHLD reaper.
func (m *Manager) UpdateStatus(pid int, ws syscall.WaitStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		for _, p := range j.Procs {
			if p.PID != pid {
				continue
			}
			switch {
			case ws.Exited():
				p.Done = true
				p.ExitCode = ws.ExitStatus()
			case ws.Signaled():
				p.Done = true
				p.Signaled = true
				p.Signal = ws.Signal()
			case ws.Stopped():
				j.State = Stopped
				return
			}
			if j.AllDone() {
				j.State = Done
			} else {
				j.State = Running
			}
			return
		}
	}
}

// ReapOnce performs one non-blocking wait4(-1, WNOHANG|WUNTRACED) and
// folds the result into the jobs table. Intended to be called from a
// SIGCHLD handler loop; returns false once there is nothing left to reap.
func (m *Manager) ReapOnce() bool {
	var ws syscall.WaitStatus
	pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG|syscall.WUNTRACED, nil)
	if err != nil || pid <= 0 {
		return false
	}
	m.UpdateStatus(pid, ws)
	return true
}

// WaitForeground blocks (via blocking wait4 on the job's pgid) until
// every process in j has exited or the whole group has stopped,
// returning the job's final exit status per the last-stage/pipefail
// rule the caller supplies via pipefail.
func (m *Manager) WaitForeground(j *Job, pipefail bool) (int, error) {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-j.PGID, &ws, syscall.WUNTRACED, nil)
		if err != nil {
			if err == syscall.ECHILD {
				break
			}
			return 0, err
		}
		m.UpdateStatus(pid, ws)
		if j.State == Stopped {
			break
		}
		if j.AllDone() {
			break
		}
	}
	if pipefail {
		return j.PipefailStatus(), nil
	}
	return j.LastStatus(), nil
}

// SetForeground transfers terminal ownership to pgid via the
// TIOCSPGRP ioctl (the Tcsetpgrp equivalent exposed by golang.org/x/sys
// does not ship a dedicated wrapper on every platform, so this calls
// the ioctl directly as bash and other job-control shells do). A
// no-op when the manager has no controlling terminal.
func (m *Manager) SetForeground(pgid int) error {
	if m.TTYFd < 0 {
		return nil
	}
	return unix.IoctlSetPointerInt(m.TTYFd, unix.TIOCSPGRP, pgid)
}

// Foreground returns the process group currently owning the terminal.
func (m *Manager) Foreground() (int, error) {
	if m.TTYFd < 0 {
		return 0, fmt.Errorf("no controlling terminal")
	}
	return unix.IoctlGetInt(m.TTYFd, unix.TIOCGPGRP)
}

// ReclaimForeground hands the terminal back to the shell's own
// process group; called after a foreground job finishes or stops
// (§5 "on completion, the shell reclaims ownership").
func (m *Manager) ReclaimForeground() error {
	return m.SetForeground(m.ShellPGID)
}
