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

	"github.com/aleutianshell/ash/internal/arith"
	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/astprint"
	"github.com/aleutianshell/ash/internal/shellerr"
	"github.com/aleutianshell/ash/internal/vars"
)

// execFunctionDef records a function's body (§4.5.3); it is a
// declaration, not a call, and always succeeds.
func (ex *Executor) execFunctionDef(v *ast.FunctionDef, c Context) (int, error) {
	ex.Vars.SetFunction(v.Name, v.Body)
	return 0, nil
}

// callFunction invokes a previously-defined function: pushes a scope
// and a FUNCNAME frame, rebinds the positional parameters to args, runs
// the body, and catches a FunctionReturn raised from inside it (§4.5.3,
// §4.5.4). When a job manager is present, the terminal state is saved
// before the body runs and restored after it.
func (ex *Executor) callFunction(name string, body ast.Node, args []string) (int, error) {
	ex.Vars.PushScope(name)
	ex.FuncName = append(ex.FuncName, name)
	ex.syncFuncNameVar()
	prevPositional := ex.Positional
	ex.Positional = append([]string{}, args...)

	restoreTerm := func() {}
	if ex.Jobs != nil {
		if st, err := ex.Jobs.SaveTermState(); err == nil && st != nil {
			restoreTerm = func() { _ = ex.Jobs.RestoreTermState(st) }
		}
	}
	status, err := ex.execNode(body, Context{CurrentFunc: name})
	restoreTerm()

	ex.Positional = prevPositional
	ex.FuncName = ex.FuncName[:len(ex.FuncName)-1]
	ex.Vars.PopScope()

	if fe, ok := err.(*shellerr.FunctionReturn); ok {
		return fe.Status, nil
	}
	return status, err
}

// syncFuncNameVar publishes ex.FuncName as the readonly $FUNCNAME array
// (§6), innermost-first per bash's own ordering: FUNCNAME[0] is the
// function currently running, FUNCNAME[1] its caller, and so on.
// Declared fresh into the scope callFunction just pushed, so it falls
// out of scope automatically on return without needing to be restored.
func (ex *Executor) syncFuncNameVar() {
	rev := make([]string, len(ex.FuncName))
	for i, n := range ex.FuncName {
		rev[len(ex.FuncName)-1-i] = n
	}
	ex.Vars.DeclareIndexedArray("FUNCNAME", rev, vars.AttrReadonly)
}

// execRedirectedCommand applies a compound command's trailing
// redirections around its whole body (§4.5.6), with the same fd
// save/restore bracket a simple command's redirects get.
func (ex *Executor) execRedirectedCommand(v *ast.RedirectedCommand, c Context) (int, error) {
	frame, restoreStreams, err := ex.applyRedirects(v.Redirects)
	if frame != nil {
		defer restoreStreams()
		defer frame.Restore()
	}
	if err != nil {
		return 1, nil
	}
	return ex.execNode(v.Node, c)
}

// execSubshell runs a `( ... )` group (§4.5.5). Standalone and blocking
// (not itself nested in a pipeline or background job, both of which
// already gave this construct its own self-reexec'd process before
// execNode ever saw it — see execPipeline/startBackground), it is
// isolated cheaply via Vars/Opts cloning rather than a real fork.
func (ex *Executor) execSubshell(v *ast.SubshellGroup, c Context) (int, error) {
	sub := ex.forkInProcess()
	status, err := sub.execStatementList(v.Body, Context{InSubshell: true})
	if se, ok := err.(*shellerr.ShellExit); ok {
		return se.Status, nil
	}
	return status, err
}

// execBraceGroup runs `{ ... }` directly against ex: no isolation at
// all, since its entire purpose is to share the calling shell's state
// (§4.5.5).
func (ex *Executor) execBraceGroup(v *ast.BraceGroup, c Context) (int, error) {
	return ex.execStatementList(v.Body, c)
}

// execArithEval runs `((expr))` as a command: exit status 0 if the
// result is non-zero, 1 if it is zero (§4.4, §4.5).
func (ex *Executor) execArithEval(v *ast.ArithmeticEvaluation, c Context) (int, error) {
	result, err := arith.Eval(v.Expression, ex.Vars)
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
		return 1, nil
	}
	if result == 0 {
		return 1, nil
	}
	return 0, nil
}

// execArrayInit runs `name=(e1 e2 ...)` / `name+=(...)` (§4.6). Bare
// elements fill successive indices; `[k]=v` elements set an explicit
// index (arithmetic-evaluated for an indexed array, as-is for an
// associative one) and subsequent bare elements continue from there.
func (ex *Executor) execArrayInit(v *ast.ArrayInitialization, c Context) (int, error) {
	elems, err := ex.Expand.ExpandWords(v.Elements)
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
		return 1, nil
	}
	existing, _ := ex.Vars.Lookup(v.Name)
	if existing != nil && existing.Kind == vars.KindAssocArray {
		if !v.Append {
			ex.Vars.DeclareAssocArray(v.Name, nil, existing.Attrs)
		}
		for _, el := range elems {
			key, val, ok := splitElementIndex(el)
			if !ok {
				fmt.Fprintf(ex.Streams.Stderr, "%s: %q: must use [key]=value\n", v.Name, el)
				return 1, nil
			}
			if err := ex.Vars.SetAssoc(v.Name, key, val); err != nil {
				fmt.Fprintln(ex.Streams.Stderr, err)
				return 1, nil
			}
		}
		return 0, nil
	}
	next := 0
	if v.Append && existing != nil && existing.Kind == vars.KindIndexedArray {
		next = existing.MaxIndex() + 1
	} else if !v.Append {
		attrs := vars.Attr(0)
		if existing != nil {
			attrs = existing.Attrs
		}
		ex.Vars.DeclareIndexedArray(v.Name, nil, attrs)
	}
	for _, el := range elems {
		if idxExpr, val, ok := splitElementIndex(el); ok {
			n, err := arith.Eval(idxExpr, ex.Vars)
			if err != nil {
				fmt.Fprintln(ex.Streams.Stderr, err)
				return 1, nil
			}
			if err := ex.Vars.SetIndexed(v.Name, int(n), val); err != nil {
				fmt.Fprintln(ex.Streams.Stderr, err)
				return 1, nil
			}
			next = int(n) + 1
			continue
		}
		if err := ex.Vars.SetIndexed(v.Name, next, el); err != nil {
			fmt.Fprintln(ex.Streams.Stderr, err)
			return 1, nil
		}
		next++
	}
	return 0, nil
}

// splitElementIndex recognizes a `[index]=value` array-initialization
// element, returning the bracketed text and the value.
func splitElementIndex(el string) (idx, val string, ok bool) {
	if len(el) < 4 || el[0] != '[' {
		return "", "", false
	}
	close := strings.IndexByte(el, ']')
	if close < 1 || close+1 >= len(el) || el[close+1] != '=' {
		return "", "", false
	}
	return el[1:close], el[close+2:], true
}

// execArrayElementAssignment runs `name[index]=value` /
// `name[index]+=value` (§4.6). Index is an arithmetic-expression
// subscript for an indexed array and a literal key for an associative
// one; the variable's existing Kind (or an absence of one, defaulting
// to indexed) decides which applies.
func (ex *Executor) execArrayElementAssignment(v *ast.ArrayElementAssignment, c Context) (int, error) {
	val, err := ex.Expand.ExpandWordJoined(v.Value)
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
		return 1, nil
	}
	existing, _ := ex.Vars.Lookup(v.Name)
	isAssoc := existing != nil && existing.Kind == vars.KindAssocArray
	if isAssoc {
		if v.Append {
			if cur, ok := existing.Assoc[v.Index]; ok {
				val = cur + val
			}
		}
		if err := ex.Vars.SetAssoc(v.Name, v.Index, val); err != nil {
			fmt.Fprintln(ex.Streams.Stderr, err)
			return 1, nil
		}
		return 0, nil
	}
	n, err := arith.Eval(v.Index, ex.Vars)
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
		return 1, nil
	}
	idx := int(n)
	if v.Append {
		if existing != nil {
			if cur, ok := existing.IndexedAt(idx); ok {
				val = cur + val
			}
		}
	}
	if err := ex.Vars.SetIndexed(v.Name, idx, val); err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
		return 1, nil
	}
	return 0, nil
}

// renderForSelfReexec is the helper pipeline.go's startPipelineStage
// uses, for pipeline stages and backgrounded commands alike, to turn a
// construct into a self-reexec'd child: a
// prelude capturing the caller's visible state, followed by the
// construct's own rendered source (see the package doc).
func (ex *Executor) renderForSelfReexec(n ast.Node) string {
	return ex.buildPrelude() + astprint.Node(n) + "\n"
}
