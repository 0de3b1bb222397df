// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package builtin

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

func init() {
	register("test", testBuiltin)
	register("[", testBuiltin)
}

// testBuiltin implements classic test(1)/`[ ... ]`: unary file/string
// tests, binary string/arithmetic comparisons, and -a/-o/! combinators
// evaluated left to right (bash's own test, not the stricter POSIX
// grammar, since scripts in the wild lean on the looser behavior).
func testBuiltin(ctx *Context) (int, error) {
	args := ctx.Args[1:]
	if ctx.Args[0] == "[" {
		if len(args) == 0 || args[len(args)-1] != "]" {
			return 2, fmt.Errorf("[: missing closing ]")
		}
		args = args[:len(args)-1]
	}
	ok, err := evalTestArgs(args)
	if err != nil {
		return 2, err
	}
	if ok {
		return 0, nil
	}
	return 1, nil
}

func evalTestArgs(args []string) (bool, error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		return args[0] != "", nil
	case 2:
		if args[0] == "!" {
			r, err := evalTestArgs(args[1:])
			return !r, err
		}
		return evalUnary(args[0], args[1])
	case 3:
		if args[0] == "!" {
			r, err := evalTestArgs(args[1:])
			return !r, err
		}
		if bin, ok := binaryOps[args[1]]; ok {
			return bin(args[0], args[2])
		}
		return false, fmt.Errorf("test: %s: unexpected operator", args[1])
	default:
		if args[0] == "!" {
			r, err := evalTestArgs(args[1:])
			return !r, err
		}
		mid := -1
		for i, a := range args {
			if a == "-a" || a == "-o" {
				mid = i
				break
			}
		}
		if mid < 0 {
			return false, fmt.Errorf("test: too many arguments")
		}
		left, err := evalTestArgs(args[:mid])
		if err != nil {
			return false, err
		}
		right, err := evalTestArgs(args[mid+1:])
		if err != nil {
			return false, err
		}
		if args[mid] == "-a" {
			return left && right, nil
		}
		return left || right, nil
	}
}

func evalUnary(op, operand string) (bool, error) {
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
	case "-S":
		fi, err := os.Stat(operand)
		return err == nil && fi.Mode()&os.ModeSocket != 0, nil
	default:
		return false, fmt.Errorf("test: %s: unknown unary operator", op)
	}
}

var binaryOps = map[string]func(a, b string) (bool, error){
	"=":   func(a, b string) (bool, error) { return a == b, nil },
	"==":  func(a, b string) (bool, error) { return a == b, nil },
	"!=":  func(a, b string) (bool, error) { return a != b, nil },
	"<":   func(a, b string) (bool, error) { return a < b, nil },
	">":   func(a, b string) (bool, error) { return a > b, nil },
	"-eq": numCompare(func(a, b int64) bool { return a == b }),
	"-ne": numCompare(func(a, b int64) bool { return a != b }),
	"-lt": numCompare(func(a, b int64) bool { return a < b }),
	"-le": numCompare(func(a, b int64) bool { return a <= b }),
	"-gt": numCompare(func(a, b int64) bool { return a > b }),
	"-ge": numCompare(func(a, b int64) bool { return a >= b }),
	"-nt": fileNewer,
	"-ot": fileOlder,
	"-ef": sameFile,
}

func numCompare(cmp func(a, b int64) bool) func(a, b string) (bool, error) {
	return func(a, b string) (bool, error) {
		na, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return false, fmt.Errorf("test: %s: integer expression expected", a)
		}
		nb, err := strconv.ParseInt(b, 10, 64)
		if err != nil {
			return false, fmt.Errorf("test: %s: integer expression expected", b)
		}
		return cmp(na, nb), nil
	}
}

func fileNewer(a, b string) (bool, error) {
	fa, erra := os.Stat(a)
	fb, errb := os.Stat(b)
	if erra != nil {
		return false, nil
	}
	if errb != nil {
		return true, nil
	}
	return fa.ModTime().After(fb.ModTime()), nil
}

func fileOlder(a, b string) (bool, error) {
	newer, err := fileNewer(a, b)
	if err != nil {
		return false, err
	}
	if newer {
		return false, nil
	}
	_, erra := os.Stat(a)
	_, errb := os.Stat(b)
	return erra == nil && errb == nil, nil
}

func sameFile(a, b string) (bool, error) {
	fa, erra := os.Stat(a)
	fb, errb := os.Stat(b)
	if erra != nil || errb != nil {
		return false, nil
	}
	return os.SameFile(fa, fb), nil
}
