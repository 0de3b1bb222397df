// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package builtin

import (
	"fmt"

	"github.com/aleutianshell/ash/internal/shellopt"
)

func init() {
	register("shopt", shoptBuiltin)
}

// shoptBuiltin implements `shopt [-s|-u] [name ...]`, bash's feature
// toggle table (SUPPLEMENTED FEATURES; distinct from `set -o`'s POSIX
// option set).
func shoptBuiltin(ctx *Context) (int, error) {
	args := ctx.Args[1:]
	mode := byte(0)
	if len(args) > 0 && (args[0] == "-s" || args[0] == "-u") {
		mode = args[0][1]
		args = args[1:]
	}
	if len(args) == 0 {
		for _, name := range shellopt.ShoptNames() {
			s, _ := shellopt.ShoptByName(name)
			printShoptState(ctx, name, ctx.Opts.GetShopt(s))
		}
		return 0, nil
	}
	status := 0
	for _, name := range args {
		s, ok := shellopt.ShoptByName(name)
		if !ok {
			fmt.Fprintf(ctx.Streams.Stderr, "shopt: %s: invalid shell option name\n", name)
			status = 1
			continue
		}
		switch mode {
		case 's':
			ctx.Opts.SetShopt(s, true)
		case 'u':
			ctx.Opts.SetShopt(s, false)
		default:
			printShoptState(ctx, name, ctx.Opts.GetShopt(s))
		}
	}
	return status, nil
}

func printShoptState(ctx *Context, name string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	fmt.Fprintf(ctx.Streams.Stdout, "%s\t%s\n", name, state)
}
