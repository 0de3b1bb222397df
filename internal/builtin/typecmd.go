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
	"path/filepath"
	"strings"

	"github.com/aleutianshell/ash/internal/procexec"
)

func init() {
	register("type", typeBuiltin)
	register("command", commandBuiltin)
	register("hash", hashBuiltin)
}

// specialBuiltinNames mirrors internal/exec's POSIX-special-builtin
// table for `type`/`command -v` reporting purposes only; the actual
// dispatch decision is internal/exec's, made before this package is
// ever consulted.
var specialBuiltinNames = map[string]bool{
	":": true, "true": true, "false": true, "break": true, "continue": true,
	"return": true, "exit": true, "eval": true, "exec": true, "set": true,
	"shift": true, "trap": true, "export": true, "readonly": true,
	"unset": true, ".": true, "source": true, "times": true,
}

// lookupPath searches dirs from the shell's own PATH variable (not the
// OS process environment, which may differ) for an executable name.
func lookupPath(name, pathVar string) (string, bool) {
	if strings.Contains(name, "/") {
		if fi, err := os.Stat(name); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
			return name, true
		}
		return "", false
	}
	for _, dir := range strings.Split(pathVar, ":") {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
			return candidate, true
		}
	}
	return "", false
}

func typeBuiltin(ctx *Context) (int, error) {
	args := ctx.Args[1:]
	pathOnly := false
	if len(args) > 0 && args[0] == "-p" {
		pathOnly = true
		args = args[1:]
	}
	status := 0
	path, _ := ctx.Vars.GetArith("PATH")
	for _, name := range args {
		switch {
		case specialBuiltinNames[name]:
			if !pathOnly {
				fmt.Fprintf(ctx.Streams.Stdout, "%s is a shell builtin\n", name)
			}
		case ctx.Engine != nil && funcDefined(ctx, name):
			if !pathOnly {
				fmt.Fprintf(ctx.Streams.Stdout, "%s is a function\n", name)
			}
		case Registry[name] != nil:
			if !pathOnly {
				fmt.Fprintf(ctx.Streams.Stdout, "%s is a shell builtin\n", name)
			}
		default:
			if resolved, ok := lookupPath(name, path); ok {
				fmt.Fprintf(ctx.Streams.Stdout, "%s is %s\n", name, resolved)
			} else {
				fmt.Fprintf(ctx.Streams.Stderr, "type: %s: not found\n", name)
				status = 1
			}
		}
	}
	return status, nil
}

func funcDefined(ctx *Context, name string) bool {
	_, ok := ctx.Vars.GetFunction(name)
	return ok
}

// commandBuiltin implements `command [-v|-V] name [args...]`: runs
// name bypassing shell-function resolution, trying a regular builtin
// first and falling back to a real fork+exec over PATH.
func commandBuiltin(ctx *Context) (int, error) {
	args := ctx.Args[1:]
	if len(args) == 0 {
		return 0, nil
	}
	report := ""
	if args[0] == "-v" || args[0] == "-V" {
		report = args[0]
		args = args[1:]
	}
	if len(args) == 0 {
		return 1, fmt.Errorf("command: usage: command [-v|-V] name [args...]")
	}
	name := args[0]
	path, _ := ctx.Vars.GetArith("PATH")
	if report != "" {
		if specialBuiltinNames[name] || Registry[name] != nil {
			fmt.Fprintf(ctx.Streams.Stdout, "%s\n", name)
			return 0, nil
		}
		if resolved, ok := lookupPath(name, path); ok {
			fmt.Fprintf(ctx.Streams.Stdout, "%s\n", resolved)
			return 0, nil
		}
		return 1, nil
	}
	if fn, ok := Registry[name]; ok {
		return fn(&Context{Vars: ctx.Vars, Opts: ctx.Opts, Jobs: ctx.Jobs, Streams: ctx.Streams, Engine: ctx.Engine, Args: args, Positional: ctx.Positional, Aliases: ctx.Aliases, HashTbl: ctx.HashTbl})
	}
	resolved, ok := lookupPath(name, path)
	if !ok {
		fmt.Fprintf(ctx.Streams.Stderr, "command: %s: not found\n", name)
		return 127, nil
	}
	cmd, err := procexec.StartLeaf(procexec.LeafSpec{
		Path:   resolved,
		Args:   args,
		Env:    ctx.Vars.ExportedEnviron(),
		Stdin:  ctx.Streams.Stdin,
		Stdout: ctx.Streams.Stdout,
		Stderr: ctx.Streams.Stderr,
	})
	if err != nil {
		return 126, err
	}
	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(interface{ ExitCode() int }); ok {
		return exitErr.ExitCode(), nil
	}
	return 1, err
}

func hashBuiltin(ctx *Context) (int, error) {
	args := ctx.Args[1:]
	if len(args) > 0 && args[0] == "-r" {
		for k := range ctx.HashTbl {
			delete(ctx.HashTbl, k)
		}
		return 0, nil
	}
	path, _ := ctx.Vars.GetArith("PATH")
	if len(args) == 0 {
		for name, resolved := range ctx.HashTbl {
			fmt.Fprintf(ctx.Streams.Stdout, "%s=%s\n", name, resolved)
		}
		return 0, nil
	}
	status := 0
	for _, name := range args {
		resolved, ok := lookupPath(name, path)
		if !ok {
			fmt.Fprintf(ctx.Streams.Stderr, "hash: %s: not found\n", name)
			status = 1
			continue
		}
		ctx.HashTbl[name] = resolved
	}
	return status, nil
}
