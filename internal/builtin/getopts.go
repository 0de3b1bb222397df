// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package builtin

import (
	"fmt"
	"strconv"
	"strings"
)

func init() {
	register("getopts", getoptsBuiltin)
}

// optErrEnabled reports whether OPTERR permits getopts' own "illegal
// option"/"option requires an argument" diagnostics (§6): unset or any
// value other than "0" leaves them on, matching bash's default.
func optErrEnabled(ctx *Context) bool {
	v, ok := ctx.Vars.GetArith("OPTERR")
	return !ok || v != "0"
}

// getoptsBuiltin implements `getopts optstring name [arg ...]`,
// reading successive option characters from OPTIND (1-based) across
// the given args (or the caller's own positional parameters when no
// args follow name, taken from ctx.Positional).
func getoptsBuiltin(ctx *Context) (int, error) {
	args := ctx.Args[1:]
	if len(args) < 2 {
		return 2, fmt.Errorf("getopts: usage: getopts optstring name [arg ...]")
	}
	optstring, name := args[0], args[1]
	operands := args[2:]
	if len(operands) == 0 {
		operands = ctx.Positional
	}

	optindStr, _ := ctx.Vars.GetArith("OPTIND")
	optind, err := strconv.Atoi(optindStr)
	if err != nil || optind < 1 {
		optind = 1
	}

	silent := strings.HasPrefix(optstring, ":")

	if optind-1 >= len(operands) {
		ctx.Vars.Set(name, "?")
		ctx.Vars.Set("OPTIND", strconv.Itoa(optind))
		return 1, nil
	}
	arg := operands[optind-1]
	if len(arg) < 2 || arg[0] != '-' || arg == "--" {
		if arg == "--" {
			ctx.Vars.Set("OPTIND", strconv.Itoa(optind+1))
		}
		ctx.Vars.Set(name, "?")
		return 1, nil
	}
	opt := arg[1]
	pos := strings.IndexByte(optstring, opt)
	if pos < 0 {
		ctx.Vars.Set(name, "?")
		if !silent {
			ctx.Vars.Set("OPTARG", string(opt))
		}
		ctx.Vars.Set("OPTIND", strconv.Itoa(optind+1))
		if !silent && optErrEnabled(ctx) {
			fmt.Fprintf(ctx.Streams.Stderr, "illegal option -- %c\n", opt)
		}
		return 0, nil
	}
	ctx.Vars.Set(name, string(opt))
	if pos+1 < len(optstring) && optstring[pos+1] == ':' {
		if len(arg) > 2 {
			ctx.Vars.Set("OPTARG", arg[2:])
			ctx.Vars.Set("OPTIND", strconv.Itoa(optind+1))
		} else if optind < len(operands) {
			ctx.Vars.Set("OPTARG", operands[optind])
			ctx.Vars.Set("OPTIND", strconv.Itoa(optind+2))
		} else {
			if silent {
				ctx.Vars.Set(name, ":")
				ctx.Vars.Set("OPTARG", string(opt))
			} else if optErrEnabled(ctx) {
				fmt.Fprintf(ctx.Streams.Stderr, "option requires an argument -- %c\n", opt)
			}
			ctx.Vars.Set("OPTIND", strconv.Itoa(optind+1))
		}
	} else {
		ctx.Vars.Set("OPTIND", strconv.Itoa(optind+1))
	}
	return 0, nil
}
