// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package exec

import (
	"os"
	"regexp"

	"golang.org/x/sys/unix"

	"github.com/aleutianshell/ash/internal/arith"
	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/expand"
)

func compileRegex(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(pattern)
}

// execEnhancedTest evaluates `[[ expression ]]` (§4.5), bash's own
// test sub-grammar rather than classic test(1)'s word-count grammar;
// internal/builtin/test.go implements the latter separately since it
// receives pre-expanded string args instead of an AST.
func (ex *Executor) execEnhancedTest(v *ast.EnhancedTestStatement, c Context) (int, error) {
	result, err := ex.evalTestExpr(v.Expr)
	if err != nil {
		return 1, nil
	}
	if result {
		return 0, nil
	}
	return 1, nil
}

func (ex *Executor) evalTestExpr(e ast.TestExpr) (bool, error) {
	switch v := e.(type) {
	case *ast.TestUnary:
		operand, err := ex.Expand.ExpandWordJoined(v.Operand)
		if err != nil {
			return false, err
		}
		return ex.evalTestUnary(v.Op, operand)
	case *ast.TestBinary:
		left, err := ex.Expand.ExpandWordJoined(v.Left)
		if err != nil {
			return false, err
		}
		right, err := ex.Expand.ExpandWordJoined(v.Right)
		if err != nil {
			return false, err
		}
		return ex.evalTestBinary(v.Op, left, right)
	case *ast.TestNot:
		r, err := ex.evalTestExpr(v.Expr)
		return !r, err
	case *ast.TestAnd:
		l, err := ex.evalTestExpr(v.Left)
		if err != nil || !l {
			return false, err
		}
		return ex.evalTestExpr(v.Right)
	case *ast.TestOr:
		l, err := ex.evalTestExpr(v.Left)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return ex.evalTestExpr(v.Right)
	case *ast.TestGroup:
		return ex.evalTestExpr(v.Expr)
	default:
		return false, nil
	}
}

func (ex *Executor) evalTestUnary(op, operand string) (bool, error) {
	switch op {
	case "-z":
		return operand == "", nil
	case "-n":
		return operand != "", nil
	case "-e", "-a":
		_, err := os.Stat(operand)
		return err == nil, nil
	case "-f":
		fi, err := os.Stat(operand)
		return err == nil && fi.Mode().IsRegular(), nil
	case "-d":
		fi, err := os.Stat(operand)
		return err == nil && fi.IsDir(), nil
	case "-r":
		return unix.Access(operand, unix.R_OK) == nil, nil
	case "-w":
		return unix.Access(operand, unix.W_OK) == nil, nil
	case "-x":
		return unix.Access(operand, unix.X_OK) == nil, nil
	case "-s":
		fi, err := os.Stat(operand)
		return err == nil && fi.Size() > 0, nil
	case "-L", "-h":
		fi, err := os.Lstat(operand)
		return err == nil && fi.Mode()&os.ModeSymlink != 0, nil
	case "-p":
		fi, err := os.Stat(operand)
		return err == nil && fi.Mode()&os.ModeNamedPipe != 0, nil
	case "-v":
		_, ok := ex.Vars.Lookup(operand)
		return ok, nil
	case "-o":
		return false, nil
	default:
		return false, nil
	}
}

func (ex *Executor) evalTestBinary(op, left, right string) (bool, error) {
	switch op {
	case "=", "==":
		return patternMatches(right, left)
	case "!=":
		ok, err := patternMatches(right, left)
		return !ok, err
	case "<":
		return left < right, nil
	case ">":
		return left > right, nil
	case "=~":
		return regexMatches(right, left)
	case "-eq":
		return arithCompare(ex, left, right, func(a, b int64) bool { return a == b })
	case "-ne":
		return arithCompare(ex, left, right, func(a, b int64) bool { return a != b })
	case "-lt":
		return arithCompare(ex, left, right, func(a, b int64) bool { return a < b })
	case "-le":
		return arithCompare(ex, left, right, func(a, b int64) bool { return a <= b })
	case "-gt":
		return arithCompare(ex, left, right, func(a, b int64) bool { return a > b })
	case "-ge":
		return arithCompare(ex, left, right, func(a, b int64) bool { return a >= b })
	case "-nt":
		return fileNewer(left, right)
	case "-ot":
		return fileNewer(right, left)
	case "-ef":
		return sameFile(left, right)
	default:
		return false, nil
	}
}

func patternMatches(pattern, s string) (bool, error) {
	pat, err := expand.CompilePattern(pattern, false)
	if err != nil {
		return false, err
	}
	return pat.MatchFull(s), nil
}

func regexMatches(pattern, s string) (bool, error) {
	// bash's [[ =~ ]] uses POSIX ERE; Go's regexp (RE2) covers the
	// common subset scripts actually rely on.
	re, err := compileRegex(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func arithCompare(ex *Executor, left, right string, cmp func(a, b int64) bool) (bool, error) {
	a, err := arith.Eval(left, ex.Vars)
	if err != nil {
		return false, err
	}
	b, err := arith.Eval(right, ex.Vars)
	if err != nil {
		return false, err
	}
	return cmp(a, b), nil
}

func fileNewer(a, b string) (bool, error) {
	fa, errA := os.Stat(a)
	fb, errB := os.Stat(b)
	if errA != nil {
		return false, nil
	}
	if errB != nil {
		return true, nil
	}
	return fa.ModTime().After(fb.ModTime()), nil
}

func sameFile(a, b string) (bool, error) {
	fa, errA := os.Stat(a)
	fb, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false, nil
	}
	return os.SameFile(fa, fb), nil
}
