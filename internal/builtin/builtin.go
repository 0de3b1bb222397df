// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package builtin implements the shell's essential builtins (§4.7):
// the utilities bash ships as builtins for performance or because they
// must run in the shell's own process (cd, test, read, jobs control,
// declare/local, alias, type, command, ...). The POSIX special
// builtins with different assignment/error-fatality semantics
// (break, continue, return, exit, :, eval, exec, set, shift, trap,
// export, readonly, unset, ./source) are implemented directly in
// internal/exec instead, since they need tight coupling with the
// Executor's loop/function nesting and trap state; this package never
// imports internal/exec; it is given the state it needs through
// Context each call, the same seam internal/expand uses (Runner) to
// avoid a dependency cycle back to the executor.
package builtin

import (
	"github.com/aleutianshell/ash/internal/expand"
	"github.com/aleutianshell/ash/internal/job"
	"github.com/aleutianshell/ash/internal/shellio"
	"github.com/aleutianshell/ash/internal/shellopt"
	"github.com/aleutianshell/ash/internal/vars"
)

// Context is the state one builtin invocation needs. Streams is a
// value (not pointer) because redirection save/restore around the
// call is the caller's (internal/exec's) responsibility; the builtin
// only ever sees the already-redirected descriptors.
type Context struct {
	Vars    *vars.Store
	Opts    *shellopt.Options
	Jobs    *job.Manager
	Streams shellio.Streams
	Engine  *expand.Engine

	// Args is the full argv for this invocation, Args[0] the command
	// name as typed (so `[` and `test` can share one implementation
	// and tell them apart).
	Args []string

	// Positional is the caller's current positional-parameter list,
	// for builtins defined against "$@" when invoked without operands
	// (getopts).
	Positional []string

	Aliases map[string]string // shared with the executor's alias table
	HashTbl map[string]string // shared PATH-lookup cache (`hash` builtin)

	// CurrentScopeIsFunction is true when `local` is legal (Vars.Current()
	// is a function-call frame, not the global scope).
	CurrentScopeIsFunction bool
}

// Func is one builtin's implementation: consult ctx.Args/ctx.Streams,
// return the exit status and any ShellError to report on stderr.
type Func func(ctx *Context) (int, error)

// Registry maps builtin names to their implementation, populated by
// each builtin's file via init(). internal/exec consults this after
// its own special-builtin table and before a function-name lookup
// miss falls through to PATH search.
var Registry = map[string]Func{}

func register(name string, fn Func) { Registry[name] = fn }
