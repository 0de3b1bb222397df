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
)

func init() {
	register("cd", cdBuiltin)
	register("pwd", pwdBuiltin)
}

// cdBuiltin implements `cd [-LP] [dir]`, maintaining $OLDPWD/$PWD the
// way bash does so scripts and prompts relying on either keep working.
func cdBuiltin(ctx *Context) (int, error) {
	args := ctx.Args[1:]
	physical := false
	for len(args) > 0 && len(args[0]) == 2 && args[0][0] == '-' {
		switch args[0][1] {
		case 'P':
			physical = true
		case 'L':
			physical = false
		default:
			return 1, fmt.Errorf("cd: %s: invalid option", args[0])
		}
		args = args[1:]
	}
	target := ""
	if len(args) == 0 {
		home, _ := ctx.Vars.GetArith("HOME")
		target = home
	} else if args[0] == "-" {
		old, ok := ctx.Vars.GetArith("OLDPWD")
		if !ok || old == "" {
			return 1, fmt.Errorf("cd: OLDPWD not set")
		}
		target = old
		fmt.Fprintln(ctx.Streams.Stdout, target)
	} else {
		target = args[0]
	}
	if target == "" {
		return 1, fmt.Errorf("cd: HOME not set")
	}
	cur, _ := os.Getwd()
	if err := os.Chdir(target); err != nil {
		return 1, fmt.Errorf("cd: %s: %w", target, err)
	}
	newWd, err := os.Getwd()
	if err != nil {
		newWd = target
	}
	if physical {
		if resolved, err := filepath.EvalSymlinks(newWd); err == nil {
			newWd = resolved
		}
	}
	ctx.Vars.Set("OLDPWD", cur)
	ctx.Vars.Set("PWD", newWd)
	return 0, nil
}

func pwdBuiltin(ctx *Context) (int, error) {
	physical := false
	for _, a := range ctx.Args[1:] {
		if a == "-P" {
			physical = true
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return 1, err
	}
	if physical {
		if resolved, err := filepath.EvalSymlinks(wd); err == nil {
			wd = resolved
		}
	}
	fmt.Fprintln(ctx.Streams.Stdout, wd)
	return 0, nil
}
