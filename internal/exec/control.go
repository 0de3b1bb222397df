// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package exec

import (
	"fmt"
	"io"
	"strconv"

	"github.com/aleutianshell/ash/internal/arith"
	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/expand"
	"github.com/aleutianshell/ash/internal/shellerr"
	"github.com/aleutianshell/ash/internal/shellopt"
)

// execIf runs an if/elif/else chain, stopping at the first branch
// whose condition is true (§4.5).
func (ex *Executor) execIf(v *ast.IfConditional, c Context) (int, error) {
	for _, br := range v.Branches {
		status, err := ex.execStatementList(br.Cond, c.asConditional())
		if err != nil {
			return status, err
		}
		if status == 0 {
			return ex.execStatementList(br.Body, c)
		}
	}
	if v.Else != nil {
		return ex.execStatementList(v.Else, c)
	}
	return 0, nil
}

// loopOutcome folds a LoopBreak/LoopContinue into a decision for the
// innermost loop catching it: stop, restart, or propagate outward to an
// enclosing loop one level up.
func loopOutcome(err error) (stop bool, cont bool, propagate error) {
	if b, ok := err.(*shellerr.LoopBreak); ok {
		if b.Level > 1 {
			return true, false, &shellerr.LoopBreak{Level: b.Level - 1}
		}
		return true, false, nil
	}
	if cn, ok := err.(*shellerr.LoopContinue); ok {
		if cn.Level > 1 {
			return true, false, &shellerr.LoopContinue{Level: cn.Level - 1}
		}
		return false, true, nil
	}
	return false, false, err
}

// execWhile runs `while Cond; do Body; done` (§4.5).
func (ex *Executor) execWhile(v *ast.WhileLoop, c Context) (int, error) {
	status := 0
	for {
		condStatus, err := ex.execStatementList(v.Cond, c.asConditional())
		if err != nil {
			return condStatus, err
		}
		if condStatus != 0 {
			break
		}
		var bodyErr error
		status, bodyErr = ex.execStatementList(v.Body, c.loopBody())
		if bodyErr != nil {
			stop, _, propagate := loopOutcome(bodyErr)
			if propagate != nil {
				return status, propagate
			}
			if stop {
				break
			}
		}
	}
	return status, nil
}

// execUntil runs `until Cond; do Body; done` (§4.5).
func (ex *Executor) execUntil(v *ast.UntilLoop, c Context) (int, error) {
	status := 0
	for {
		condStatus, err := ex.execStatementList(v.Cond, c.asConditional())
		if err != nil {
			return condStatus, err
		}
		if condStatus == 0 {
			break
		}
		var bodyErr error
		status, bodyErr = ex.execStatementList(v.Body, c.loopBody())
		if bodyErr != nil {
			stop, _, propagate := loopOutcome(bodyErr)
			if propagate != nil {
				return status, propagate
			}
			if stop {
				break
			}
		}
	}
	return status, nil
}

// execFor runs `for v in words; do Body; done`, or `for v; do Body; done`
// which iterates "$@" (§4.5).
func (ex *Executor) execFor(v *ast.ForLoop, c Context) (int, error) {
	var items []string
	if v.HasInClause {
		expanded, err := ex.Expand.ExpandWords(v.IterableWords)
		if err != nil {
			fmt.Fprintln(ex.Streams.Stderr, err)
			return 1, nil
		}
		items = expanded
	} else {
		items = ex.Positional
	}
	status := 0
	for _, item := range items {
		_ = ex.Vars.Set(v.Variable, item)
		var bodyErr error
		status, bodyErr = ex.execStatementList(v.Body, c.loopBody())
		if bodyErr != nil {
			stop, _, propagate := loopOutcome(bodyErr)
			if propagate != nil {
				return status, propagate
			}
			if stop {
				break
			}
		}
	}
	return status, nil
}

// execCStyleFor runs `for ((init; cond; update)); do Body; done` (§4.5, §4.4).
func (ex *Executor) execCStyleFor(v *ast.CStyleForLoop, c Context) (int, error) {
	if v.Init != "" {
		if _, err := arith.Eval(v.Init, ex.Vars); err != nil {
			fmt.Fprintln(ex.Streams.Stderr, err)
			return 1, nil
		}
	}
	status := 0
	for {
		if v.Cond != "" {
			cond, err := arith.Eval(v.Cond, ex.Vars)
			if err != nil {
				fmt.Fprintln(ex.Streams.Stderr, err)
				return 1, nil
			}
			if cond == 0 {
				break
			}
		}
		var bodyErr error
		status, bodyErr = ex.execStatementList(v.Body, c.loopBody())
		if bodyErr != nil {
			stop, _, propagate := loopOutcome(bodyErr)
			if propagate != nil {
				return status, propagate
			}
			if stop {
				break
			}
		}
		if v.Update != "" {
			if _, err := arith.Eval(v.Update, ex.Vars); err != nil {
				fmt.Fprintln(ex.Streams.Stderr, err)
				return 1, nil
			}
		}
	}
	return status, nil
}

// execCase runs `case x in pattern) body ;; ... esac`, honoring `;&`
// (fall through to the next item's body unconditionally) and `;;&`
// (fall through to the next item's pattern test) (§4.5).
func (ex *Executor) execCase(v *ast.CaseConditional, c Context) (int, error) {
	scrutinee, err := ex.Expand.ExpandWordJoined(v.Scrutinee)
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
		return 1, nil
	}
	status := 0
	fallingThrough := false
	for i := 0; i < len(v.Items); i++ {
		item := v.Items[i]
		matched := fallingThrough
		if !matched {
			for _, pat := range item.Patterns {
				patText, err := ex.Expand.ExpandWordJoined(pat)
				if err != nil {
					continue
				}
				pat, err := expand.CompilePattern(patText, ex.Opts.GetShopt(shellopt.Nocaseglob))
				if err == nil && pat.MatchFull(scrutinee) {
					matched = true
					break
				}
			}
		}
		if !matched {
			fallingThrough = false
			continue
		}
		status, err = ex.execStatementList(item.Body, c)
		if err != nil {
			return status, err
		}
		switch item.Terminator {
		case ast.TermFallThrough:
			fallingThrough = true
			continue
		case ast.TermContinueMatch:
			fallingThrough = false
			continue
		default:
			return status, nil
		}
	}
	return status, nil
}

// execSelect runs bash's `select v in words; do Body; done` menu loop
// (§4.5): prints a numbered menu to stderr, reads a choice from stdin
// into REPLY, and repeats until the body breaks out or stdin hits EOF.
func (ex *Executor) execSelect(v *ast.SelectLoop, c Context) (int, error) {
	items, err := ex.Expand.ExpandWords(v.IterableWords)
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
		return 1, nil
	}
	status := 0
	for {
		for i, item := range items {
			fmt.Fprintf(ex.Streams.Stderr, "%d) %s\n", i+1, item)
		}
		ps3, _ := ex.Vars.GetArith("PS3")
		if ps3 == "" {
			ps3 = "#? "
		}
		fmt.Fprint(ex.Streams.Stderr, ps3)
		line, readErr := readLineFromFile(ex.Streams.Stdin)
		if readErr != nil {
			break
		}
		_ = ex.Vars.Set("REPLY", line)
		choice := ""
		if n, convErr := parsePositiveInt(line); convErr == nil && n >= 1 && n <= len(items) {
			choice = items[n-1]
		}
		_ = ex.Vars.Set(v.Variable, choice)
		var bodyErr error
		status, bodyErr = ex.execStatementList(v.Body, c.loopBody())
		if bodyErr != nil {
			stop, _, propagate := loopOutcome(bodyErr)
			if propagate != nil {
				return status, propagate
			}
			if stop {
				break
			}
		}
	}
	return status, nil
}

// readLineFromFile reads one newline-terminated line, one byte at a
// time, for the same reason internal/builtin's `read` does (see its
// package's read.go): a buffered reader would swallow bytes a later
// consumer of the same fd still needs.
func readLineFromFile(f io.Reader) (string, error) {
	var out []byte
	buf := make([]byte, 1)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return string(out), nil
			}
			out = append(out, buf[0])
		}
		if err != nil {
			if len(out) > 0 {
				return string(out), nil
			}
			return "", err
		}
	}
}

func parsePositiveInt(s string) (int, error) {
	return strconv.Atoi(s)
}
