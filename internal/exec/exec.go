// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package exec implements the Executor: the AST visitor that carries
// out simple commands, pipelines, control-flow constructs, functions,
// subshells, and redirections (§4.5), cooperating with internal/expand
// through the Runner interface for command/process substitution.
//
// Subshells (§4.5.5) and non-leaf pipeline stages are not true OS
// forks. Go cannot safely continue running arbitrary Go code between
// fork() and exec() — most of the runtime, including the garbage
// collector and every other goroutine, is unsafe to touch in a raw
// forked child (see internal/procexec's package doc, which states the
// same constraint for leaf commands). Two independent workarounds
// cover the two situations that arise:
//
//   - A subshell or compound command that runs alone, blocking its
//     caller (not concurrent with any sibling pipeline stage or
//     background job), is isolated by running it against a deep clone
//     of the Vars/Opts state (vars.Store.Clone / shellopt.Options.Clone)
//     in the same OS process. Nothing else touches the process's file
//     descriptors while it runs, so there is no race, and mutations to
//     the clone never propagate back to the parent.
//   - A subshell or non-leaf builtin/function used as one stage of a
//     pipeline, or backgrounded with `&`, runs concurrently with other
//     work in the same process. shellio's redirection model dup2's
//     literal OS file descriptors 0/1/2, which is not safe to do from
//     two goroutines at once. Those cases self-reexec: the executor
//     renders the construct back to shell source with internal/astprint,
//     prepends a prelude capturing every variable, function, and option
//     currently in scope (since a freshly exec'd process starts with an
//     empty Store, unlike a true fork which would inherit one by copying
//     memory), and hands it to procexec.StartShellChild as a real,
//     independently-scheduled OS process with its own pgid.
package exec

import (
	"fmt"
	"os"

	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/builtin"
	"github.com/aleutianshell/ash/internal/expand"
	"github.com/aleutianshell/ash/internal/job"
	"github.com/aleutianshell/ash/internal/shellerr"
	"github.com/aleutianshell/ash/internal/shellio"
	"github.com/aleutianshell/ash/internal/shellopt"
	"github.com/aleutianshell/ash/internal/vars"
	"github.com/aleutianshell/ash/pkg/logging"
)

// Executor is the shell-wide interpreter state threaded through every
// AST node visit. One Executor backs one shell process (interactive,
// script, `-c`, or a self-reexec'd child standing in for a subshell).
type Executor struct {
	Vars   *vars.Store
	Opts   *shellopt.Options
	Jobs   *job.Manager
	Traps  *TrapManager
	Expand *expand.Engine

	Streams shellio.Streams

	ScriptName string
	Positional []string
	LastStatus int
	LastBgPID  int
	ShellPID   int

	Aliases  map[string]string
	HashTbl  map[string]string
	FuncName []string // FUNCNAME stack, innermost last

	// Interactive is true when job control (tcsetpgrp, SIGTSTP handling)
	// is active; false for scripts and `-c` programs (§5).
	Interactive bool

	// inTrap is set while a trap action's own statements run, so they
	// never re-fire DEBUG/ERR or queued signal traps recursively.
	inTrap bool

	// Log is the ambient structured logger (internal faults and
	// recoverable-issue diagnostics; never the user-visible xtrace
	// stream, which always writes PS4-prefixed lines to stderr
	// directly). Defaults to logging.Default() so an Executor built
	// without an explicit logger still has somewhere to write.
	Log *logging.Logger
}

// New builds an Executor with fresh Vars/Opts/Jobs and the given
// streams. scriptName becomes $0; args become the positional parameters.
func New(scriptName string, args []string, streams shellio.Streams, ttyFd int) *Executor {
	vs := vars.New()
	opts := shellopt.New()
	jm := job.New(ttyFd)
	ex := &Executor{
		Vars:       vs,
		Opts:       opts,
		Jobs:       jm,
		Traps:      NewTrapManager(),
		Streams:    streams,
		ScriptName: scriptName,
		Positional: append([]string{}, args...),
		ShellPID:   os.Getpid(),
		Aliases:    make(map[string]string),
		HashTbl:    make(map[string]string),
		Log:        logging.Default(),
	}
	ex.Expand = &expand.Engine{
		Vars:       vs,
		Opts:       opts,
		Run:        &execRunner{ex: ex},
		Positional: ex.Positional,
		ScriptName: scriptName,
		ShellPID:   ex.ShellPID,
	}
	return ex
}

// syncExpand refreshes the fields of ex.Expand that mirror Executor
// state the expansion engine needs read access to but does not own.
func (ex *Executor) syncExpand() {
	ex.Expand.Positional = ex.Positional
	ex.Expand.ScriptName = ex.ScriptName
	ex.Expand.LastStatus = ex.LastStatus
	ex.Expand.LastBgPID = ex.LastBgPID
}

// Context is the immutable-per-call execution context threaded down
// through node visits: each structural construct derives a child
// rather than mutating a shared value, so restoring it on the way back
// up is automatic (§9 design note on context propagation).
type Context struct {
	InPipeline     bool
	PipelineLast   bool // true for the final stage of its pipeline
	InSubshell     bool
	Conditional    bool // true where errexit/ERR-trap must not fire (cond lists, !, &&/|| antecedents)
	LoopDepth      int
	CurrentFunc    string
	aliasExpanding bool // set while re-running one alias's own expansion, to block infinite self-alias loops
}

func (c Context) asConditional() Context { c.Conditional = true; return c }
func (c Context) loopBody() Context      { c.LoopDepth++; c.Conditional = false; return c }

// Run executes a parsed program top to bottom, honoring errexit and
// running the EXIT trap exactly once before returning, per §5/§9.
func (ex *Executor) Run(top *ast.TopLevel) (status int, err error) {
	status, _, err = ex.runTop(top)
	return status, err
}

// RunREPL runs one interactively-entered chunk of input the same way
// Run does, but also reports whether `exit` was invoked (or a `return`
// escaped past everything the line contained), since an interactive
// loop has to stop reading further lines in that case instead of just
// looping back for the next prompt.
func (ex *Executor) RunREPL(top *ast.TopLevel) (status int, exited bool, err error) {
	return ex.runTop(top)
}

func (ex *Executor) runTop(top *ast.TopLevel) (status int, exited bool, err error) {
	status, err = ex.execStatementList(top.Body, Context{})
	if _, ok := err.(*shellerr.FunctionReturn); ok {
		// A `return` escaping every function and sourced script is a
		// script error, not an exit (§7 control-flow escapes).
		fmt.Fprintln(ex.Streams.Stderr, "return: can only `return' from a function or sourced script")
		status, err = 1, nil
	}
	exitStatus := status
	if se, ok := err.(*shellerr.ShellExit); ok {
		exitStatus, err = se.Status, nil
		exited = true
	}
	ex.LastStatus = exitStatus
	ex.runTrapIfSet("EXIT", exitStatus)
	return exitStatus, exited, err
}

// execStatementList runs each statement in order, honoring `&`
// backgrounding and errexit's stop-on-first-failure rule for the
// statements that are eligible to trigger it (§4.5, §7).
func (ex *Executor) execStatementList(sl *ast.StatementList, c Context) (int, error) {
	if sl == nil {
		return 0, nil
	}
	status := 0
	for _, item := range sl.Items {
		ex.DrainPendingTraps()
		ex.runTrapIfSet("DEBUG", ex.LastStatus)
		if item.Background {
			ex.startBackground(item.Node, c)
			status = 0
			continue
		}
		var err error
		status, err = ex.execNode(item.Node, c)
		if err != nil {
			return status, err
		}
		ex.LastStatus = status
		if status != 0 && !c.Conditional && !isNegatedPipeline(item.Node) {
			ex.runTrapIfSet("ERR", status)
			if ex.Opts.Get(shellopt.Errexit) {
				return status, &shellerr.ShellExit{Status: status}
			}
		}
	}
	return status, nil
}

// execNode is the single dispatch point every other exec file's helpers
// call back into for a nested node; it never panics on an unrecognized
// node type, since the parser is the only producer of ast.Node values.
func (ex *Executor) execNode(n ast.Node, c Context) (int, error) {
	ex.syncExpand()
	switch v := n.(type) {
	case *ast.SimpleCommand:
		return ex.execSimpleCommand(v, c)
	case *ast.RedirectedCommand:
		return ex.execRedirectedCommand(v, c)
	case *ast.Pipeline:
		return ex.execPipeline(v, c)
	case *ast.AndOrList:
		return ex.execAndOrList(v, c)
	case *ast.StatementList:
		return ex.execStatementList(v, c)
	case *ast.IfConditional:
		return ex.execIf(v, c)
	case *ast.WhileLoop:
		return ex.execWhile(v, c)
	case *ast.UntilLoop:
		return ex.execUntil(v, c)
	case *ast.ForLoop:
		return ex.execFor(v, c)
	case *ast.CStyleForLoop:
		return ex.execCStyleFor(v, c)
	case *ast.CaseConditional:
		return ex.execCase(v, c)
	case *ast.SelectLoop:
		return ex.execSelect(v, c)
	case *ast.FunctionDef:
		return ex.execFunctionDef(v, c)
	case *ast.SubshellGroup:
		return ex.execSubshell(v, c)
	case *ast.BraceGroup:
		return ex.execBraceGroup(v, c)
	case *ast.ArithmeticEvaluation:
		return ex.execArithEval(v, c)
	case *ast.EnhancedTestStatement:
		return ex.execEnhancedTest(v, c)
	case *ast.ArrayInitialization:
		return ex.execArrayInit(v, c)
	case *ast.ArrayElementAssignment:
		return ex.execArrayElementAssignment(v, c)
	case *ast.BreakStatement:
		return 0, &shellerr.LoopBreak{Level: max1(v.Level)}
	case *ast.ContinueStatement:
		return 0, &shellerr.LoopContinue{Level: max1(v.Level)}
	case *ast.TopLevel:
		return ex.execStatementList(v.Body, c)
	default:
		return 0, shellerr.New(shellerr.KindSyntax, "exec: unhandled node type %T", n)
	}
}

// isNegatedPipeline reports whether n is a `! ...` pipeline, which is
// exempt from errexit and the ERR trap (§7 propagation carve-outs).
func isNegatedPipeline(n ast.Node) bool {
	pl, ok := n.(*ast.Pipeline)
	return ok && pl.Negated
}

func max1(level int) int {
	if level < 1 {
		return 1
	}
	return level
}

// builtinRegistry exposes internal/builtin's essential-builtin table;
// kept as a var (not a direct package-qualified reference scattered
// across files) so there is one place to swap it in tests.
var builtinRegistry = builtin.Registry
