// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package exec

import (
	"fmt"
	"strings"

	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/builtin"
	"github.com/aleutianshell/ash/internal/procexec"
	"github.com/aleutianshell/ash/internal/shellerr"
	"github.com/aleutianshell/ash/internal/shellio"
	"github.com/aleutianshell/ash/internal/shellopt"
	"github.com/aleutianshell/ash/internal/vars"
)

// specialBuiltins are the POSIX special builtins (§4.7): assignments
// prefixed to one of these persist in the current shell rather than
// being restored afterward, and they run inside this Executor rather
// than a resolved external/regular-builtin path. internal/builtin
// keeps its own copy of this set for its own `type`/`command` reporting
// since that package cannot import this one (see its package doc);
// the two lists are kept in sync by hand, there being a fixed, rarely
// changing set of them.
var specialBuiltinNames = map[string]bool{
	":": true, "true": true, "false": true,
	"break": true, "continue": true, "return": true, "exit": true,
	"eval": true, "exec": true, "set": true, "shift": true, "trap": true,
	"export": true, "readonly": true, "unset": true, ".": true, "source": true,
	"times": true,
}

// execSimpleCommand runs one simple command: pure assignment,
// special-builtin, function, regular builtin, or external program, in
// that resolution order (§4.5.1, §4.7).
func (ex *Executor) execSimpleCommand(cmd *ast.SimpleCommand, c Context) (int, error) {
	defer ex.Expand.FinishSubstitutions()
	frame, restoreStreams, err := ex.applyRedirects(cmd.Redirects)
	permanent := false // set for `exec`, whose redirections outlive the command (§4.7)
	if frame != nil {
		defer func() {
			if permanent {
				return
			}
			frame.Restore()
			restoreStreams()
		}()
	}
	if err != nil {
		return 1, nil
	}

	if len(cmd.Args) == 0 {
		return ex.applyPersistentAssignments(cmd.Assignments)
	}

	words, err := ex.Expand.ExpandWords(cmd.Args)
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
		return 1, nil
	}
	if len(words) == 0 {
		return ex.applyPersistentAssignments(cmd.Assignments)
	}
	name := words[0]
	args := words[1:]
	ex.Expand.LastArg = words[len(words)-1]

	if alias, ok := ex.Aliases[name]; ok && !c.aliasExpanding {
		return ex.runAliasExpansion(alias, args, cmd, c)
	}

	if ex.Opts.Get(shellopt.Xtrace) {
		ps4, ok := ex.Vars.GetArith("PS4")
		if !ok || ps4 == "" {
			ps4 = "+ "
		}
		fmt.Fprintf(ex.Streams.Stderr, "%s%s\n", ps4, strings.Join(words, " "))
	}

	if specialBuiltinNames[name] {
		if status, _ := ex.applyPersistentAssignments(cmd.Assignments); status != 0 {
			return status, nil
		}
		if name == "exec" {
			// exec's assignments are permanent and exported, and its
			// redirections stay applied to the shell itself (§4.5.1
			// item 4, §4.7 exec).
			permanent = true
			for _, a := range cmd.Assignments {
				ex.Vars.SetAttr(a.Name, vars.AttrExported)
			}
		}
		return ex.runSpecialBuiltin(name, args)
	}

	if body, ok := ex.Vars.GetFunction(name); ok {
		node, isNode := body.(ast.Node)
		if !isNode {
			return 1, shellerr.New(shellerr.KindSyntax, "%s: corrupt function body", name)
		}
		restoreVars := ex.applyTemporaryAssignments(cmd.Assignments)
		defer restoreVars()
		return ex.callFunction(name, node, args)
	}

	if fn, ok := builtinRegistry[name]; ok {
		restoreVars := ex.applyTemporaryAssignments(cmd.Assignments)
		defer restoreVars()
		return ex.runRegularBuiltin(fn, name, args)
	}

	return ex.runExternal(name, args, cmd.Assignments, c)
}

func (c Context) withAliasExpanding() Context { c.aliasExpanding = true; return c }

// runAliasExpansion splices an alias's replacement text in front of the
// command's remaining words and re-runs it as a simple command built
// from scratch, matching bash's textual-substitution alias model
// (§4.7 alias) rather than trying to rewrite cmd.Args in place.
func (ex *Executor) runAliasExpansion(alias string, args []string, cmd *ast.SimpleCommand, c Context) (int, error) {
	rest := make([]string, len(args))
	copy(rest, args)
	var sb strings.Builder
	sb.WriteString(alias)
	for _, a := range rest {
		sb.WriteString(" ")
		sb.WriteString(quoteLiteral(a))
	}
	status, err := ex.runInlineWithContext(sb.String(), c.withAliasExpanding())
	return status, err
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// applyRedirects pre-expands any here-doc bodies attached to cmd's
// redirects into a private copy of the slice (shellio.ApplyRedirects
// pipes HereDocBody verbatim; the executor, not shellio, owns variable
// expansion) before applying them through shellio. The returned
// restore closure puts ex.Streams back the way it was, since shellio
// rewrites the stream pointers in place for fds 0/1/2.
func (ex *Executor) applyRedirects(redirects []ast.Redirect) (*shellio.Frame, func(), error) {
	if len(redirects) == 0 {
		return nil, nil, nil
	}
	expanded := make([]ast.Redirect, len(redirects))
	copy(expanded, redirects)
	for i, r := range expanded {
		if r.Op == ast.RedirHereDoc || r.Op == ast.RedirHereDocStrip {
			body, err := ex.Expand.ExpandHereDocBody(r.HereDocBody, r.HereDocQuot)
			if err != nil {
				return nil, nil, err
			}
			if body != "" {
				body += "\n"
			}
			expanded[i].HereDocBody = body
		} else if r.Op == ast.RedirHereString {
			joined, err := ex.Expand.ExpandWordJoined(r.Target)
			if err != nil {
				return nil, nil, err
			}
			expanded[i].HereDocBody = joined + "\n"
		}
	}
	prior := ex.Streams
	restore := func() { ex.Streams = prior }
	frame, err := shellio.ApplyRedirects(expanded, &ex.Streams, ex.Expand.ExpandWordJoined, ex.Opts.Get(shellopt.Noclobber))
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
	}
	return frame, restore, err
}

// applyPersistentAssignments writes assignments directly into the
// current scope: the rule for a bare assignment with no command word
// (§4.5.1).
func (ex *Executor) applyPersistentAssignments(assigns []ast.Assignment) (int, error) {
	for _, a := range assigns {
		val, err := ex.Expand.ExpandWordJoined(a.Value)
		if err != nil {
			fmt.Fprintln(ex.Streams.Stderr, err)
			return 1, nil
		}
		if err := ex.setAssignment(a, val); err != nil {
			fmt.Fprintln(ex.Streams.Stderr, err)
			return 1, nil
		}
	}
	return 0, nil
}

func (ex *Executor) setAssignment(a ast.Assignment, val string) error {
	if a.Append {
		if cur, ok := ex.Vars.Lookup(a.Name); ok {
			return ex.Vars.Set(a.Name, cur.Scalar+val)
		}
	}
	return ex.Vars.Set(a.Name, val)
}

// applyTemporaryAssignments implements the rule for assignments
// prefixed to a function, regular builtin, or external command: they
// take effect only for the duration of that one invocation (§4.5.1).
// The returned closure restores whatever was there before, including
// "was unset."
func (ex *Executor) applyTemporaryAssignments(assigns []ast.Assignment) func() {
	if len(assigns) == 0 {
		return func() {}
	}
	type saved struct {
		name    string
		existed bool
		value   string
	}
	var prior []saved
	for _, a := range assigns {
		v, ok := ex.Vars.Lookup(a.Name)
		s := saved{name: a.Name, existed: ok}
		if ok {
			s.value = v.Scalar
		}
		prior = append(prior, s)
		val, err := ex.Expand.ExpandWordJoined(a.Value)
		if err != nil {
			continue
		}
		_ = ex.setAssignment(a, val)
	}
	return func() {
		for _, s := range prior {
			if s.existed {
				_ = ex.Vars.Set(s.name, s.value)
			} else {
				_ = ex.Vars.Unset(s.name)
			}
		}
	}
}

// runRegularBuiltin invokes an internal/builtin.Func through the seam
// Context, translating the Executor's own state into the struct that
// package expects (its package doc explains why it never imports back
// into internal/exec).
func (ex *Executor) runRegularBuiltin(fn builtin.Func, name string, args []string) (int, error) {
	ctx := &builtin.Context{
		Vars:                   ex.Vars,
		Opts:                   ex.Opts,
		Jobs:                   ex.Jobs,
		Streams:                ex.Streams,
		Engine:                 ex.Expand,
		Args:                   append([]string{name}, args...),
		Positional:             ex.Positional,
		Aliases:                ex.Aliases,
		HashTbl:                ex.HashTbl,
		CurrentScopeIsFunction: len(ex.FuncName) > 0,
	}
	return fn(ctx)
}

// runExternal resolves name against $PATH and execs it as a leaf
// process, with temporary assignments added to its environment (never
// touching the shell's own Store, per §4.5.1) and waits for it in the
// foreground.
func (ex *Executor) runExternal(name string, args []string, assigns []ast.Assignment, c Context) (int, error) {
	path, ok := ex.lookupPath(name)
	if !ok {
		notFound := shellerr.New(shellerr.KindCommandNotFound, "%s: command not found", name)
		fmt.Fprintln(ex.Streams.Stderr, notFound.Message)
		return 127, nil
	}
	env := ex.Vars.ExportedEnviron()
	for _, a := range assigns {
		val, err := ex.Expand.ExpandWordJoined(a.Value)
		if err != nil {
			continue
		}
		env = append(env, a.Name+"="+val)
	}

	pgid := 0
	foreground := !c.InPipeline && ex.Interactive
	cmd, err := procexec.StartLeaf(procexec.LeafSpec{
		Path:       path,
		Args:       append([]string{name}, args...),
		Env:        env,
		Dir:        ".",
		Stdin:      ex.Streams.Stdin,
		Stdout:     ex.Streams.Stdout,
		Stderr:     ex.Streams.Stderr,
		Pgid:       pgid,
		Foreground: foreground,
	})
	if err != nil {
		cmdErr := &shellerr.CommandError{Command: name, Args: args, ExitCode: 126, Wrapped: err}
		ex.Log.Error("spawn failed", "command", name, "err", cmdErr)
		fmt.Fprintf(ex.Streams.Stderr, "%s: %v\n", name, err)
		return 126, nil
	}
	j := ex.Jobs.Register(cmd.Process.Pid, []int{cmd.Process.Pid}, foreground, name)
	if foreground {
		if err := ex.Jobs.SetForeground(j.PGID); err == nil {
			defer ex.Jobs.ReclaimForeground()
		}
	}
	status, err := ex.Jobs.WaitForeground(j, ex.Opts.Get(shellopt.Pipefail))
	ex.Jobs.Remove(j.ID)
	if err != nil {
		return 1, nil
	}
	return status, nil
}
