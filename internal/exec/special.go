// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package exec

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/aleutianshell/ash/internal/parser"
	"github.com/aleutianshell/ash/internal/shellerr"
	"github.com/aleutianshell/ash/internal/shellopt"
	"github.com/aleutianshell/ash/internal/vars"
)

// runSpecialBuiltin dispatches one of the POSIX special builtins
// (§4.7). These run directly against ex rather than a clone, since
// their entire reason for existing is to mutate the calling shell's
// own state (scope, positional params, traps, loop/function nesting).
func (ex *Executor) runSpecialBuiltin(name string, args []string) (int, error) {
	switch name {
	case ":", "true":
		return 0, nil
	case "false":
		return 1, nil
	case "break":
		return 0, &shellerr.LoopBreak{Level: max1(levelArg(args))}
	case "continue":
		return 0, &shellerr.LoopContinue{Level: max1(levelArg(args))}
	case "return":
		status := ex.LastStatus
		if len(args) > 0 {
			status, _ = strconv.Atoi(args[0])
		}
		return 0, &shellerr.FunctionReturn{Status: status}
	case "exit":
		status := ex.LastStatus
		if len(args) > 0 {
			status, _ = strconv.Atoi(args[0])
		}
		return 0, &shellerr.ShellExit{Status: status}
	case "eval":
		return ex.evalBuiltin(args)
	case "exec":
		return ex.execBuiltin(args)
	case "set":
		return ex.setBuiltin(args)
	case "shift":
		return ex.shiftBuiltin(args)
	case "trap":
		return ex.trapBuiltin(args)
	case "export":
		return ex.exportBuiltin(args)
	case "readonly":
		return ex.readonlyBuiltin(args)
	case "unset":
		return ex.unsetBuiltin(args)
	case ".", "source":
		return ex.dotBuiltin(args)
	case "times":
		return ex.timesBuiltin()
	default:
		return 1, shellerr.New(shellerr.KindSyntax, "%s: not a special builtin", name)
	}
}

func levelArg(args []string) int {
	if len(args) == 0 {
		return 1
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 1
	}
	return n
}

// RunInline parses and runs text against this Executor directly (not a
// clone): backs `eval`, trap action firing, and alias re-expansion,
// all of which are defined to behave as if the text had been typed in
// place at the current point in the script (§4.7 eval, §9 trap).
func (ex *Executor) RunInline(text string) (int, error) {
	return ex.runInlineWithContext(text, Context{})
}

func (ex *Executor) runInlineWithContext(text string, c Context) (int, error) {
	top, err := parser.Parse(text, parser.ModeBash)
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
		return 2, nil
	}
	return ex.execStatementList(top.Body, c)
}

// evalBuiltin joins its arguments with a single space (POSIX's
// eval semantics) and runs the result inline.
func (ex *Executor) evalBuiltin(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	return ex.RunInline(strings.Join(args, " "))
}

// execBuiltin replaces the shell's own process image with the named
// command (no fork) when given a command name, or applies its
// redirections permanently to the running shell when given none
// (§4.7 exec); the latter case has already happened by the time
// execSimpleCommand's redirect bracket ran, so only "replace the
// process" remains to implement here.
func (ex *Executor) execBuiltin(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	name := args[0]
	path, ok := ex.lookupPath(name)
	if !ok {
		fmt.Fprintf(ex.Streams.Stderr, "%s: command not found\n", name)
		return 127, nil
	}
	env := ex.Vars.ExportedEnviron()
	argv := append([]string{name}, args[1:]...)
	err := syscall.Exec(path, argv, env)
	fmt.Fprintf(ex.Streams.Stderr, "exec: %s: %v\n", name, err)
	return 126, nil
}

// setBuiltin implements `set [-opt|+opt]... [-o name|+o name]... [--] [args...]`;
// with no arguments at all it lists every visible variable (§4.7 set).
func (ex *Executor) setBuiltin(args []string) (int, error) {
	if len(args) == 0 {
		for _, name := range ex.Vars.NamesWithPrefix("") {
			if v, ok := ex.Vars.Lookup(name); ok && v.Kind == vars.KindScalar {
				fmt.Fprintf(ex.Streams.Stdout, "%s=%s\n", name, v.Scalar)
			}
		}
		return 0, nil
	}
	i := 0
	for i < len(args) {
		arg := args[i]
		if arg == "--" {
			i++
			break
		}
		if len(arg) < 2 || (arg[0] != '-' && arg[0] != '+') {
			break
		}
		on := arg[0] == '-'
		if arg == "-o" || arg == "+o" {
			if i+1 >= len(args) {
				ex.printSetOFlags()
				i++
				continue
			}
			optName := args[i+1]
			if opt, ok := shellopt.ByName(optName); ok {
				ex.Opts.Set(opt, on)
			}
			i += 2
			continue
		}
		for _, c := range arg[1:] {
			if opt, ok := shellopt.ByLetter(byte(c)); ok {
				ex.Opts.Set(opt, on)
			}
		}
		i++
	}
	if i < len(args) {
		ex.Positional = append([]string{}, args[i:]...)
	}
	return 0, nil
}

func (ex *Executor) printSetOFlags() {
	for _, name := range shellopt.OptionNames() {
		opt, _ := shellopt.ByName(name)
		state := "off"
		if ex.Opts.Get(opt) {
			state = "on"
		}
		fmt.Fprintf(ex.Streams.Stdout, "%-15s%s\n", name, state)
	}
}

// shiftBuiltin drops the first n (default 1) positional parameters.
func (ex *Executor) shiftBuiltin(args []string) (int, error) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return 1, nil
		}
		n = v
	}
	if n > len(ex.Positional) {
		return 1, nil
	}
	ex.Positional = ex.Positional[n:]
	return 0, nil
}

// timesBuiltin prints the accumulated user/system CPU time of the
// shell and of its reaped children, in bash's two-line m/s format.
func (ex *Executor) timesBuiltin() (int, error) {
	var self, children syscall.Rusage
	_ = syscall.Getrusage(syscall.RUSAGE_SELF, &self)
	_ = syscall.Getrusage(syscall.RUSAGE_CHILDREN, &children)
	fmt.Fprintf(ex.Streams.Stdout, "%s %s\n%s %s\n",
		formatCPUTime(self.Utime), formatCPUTime(self.Stime),
		formatCPUTime(children.Utime), formatCPUTime(children.Stime))
	return 0, nil
}

func formatCPUTime(tv syscall.Timeval) string {
	total := float64(tv.Sec) + float64(tv.Usec)/1e6
	mins := int(total) / 60
	return fmt.Sprintf("%dm%.3fs", mins, total-float64(mins*60))
}

// trapBuiltin implements `trap`, `trap -p`, `trap action name...`, and
// `trap -- action name...` (§9).
func (ex *Executor) trapBuiltin(args []string) (int, error) {
	if len(args) == 0 {
		for _, line := range ex.Traps.List() {
			fmt.Fprintln(ex.Streams.Stdout, line)
		}
		return 0, nil
	}
	if args[0] == "-l" {
		names := make([]string, 0, len(signalByName))
		for name := range signalByName {
			names = append(names, name)
		}
		sort.Strings(names)
		for i, name := range names {
			sig, _ := signalByName[name].(syscall.Signal)
			fmt.Fprintf(ex.Streams.Stdout, "%2d) SIG%s", int(sig), name)
			if (i+1)%4 == 0 || i == len(names)-1 {
				fmt.Fprintln(ex.Streams.Stdout)
			} else {
				fmt.Fprint(ex.Streams.Stdout, "\t")
			}
		}
		return 0, nil
	}
	if args[0] == "-p" {
		names := args[1:]
		if len(names) == 0 {
			for _, line := range ex.Traps.List() {
				fmt.Fprintln(ex.Streams.Stdout, line)
			}
			return 0, nil
		}
		for _, n := range names {
			if action, ok := ex.Traps.Get(n); ok {
				fmt.Fprintf(ex.Streams.Stdout, "trap -- '%s' %s\n", action, n)
			}
		}
		return 0, nil
	}
	action := args[0]
	if action == "--" && len(args) > 1 {
		action = args[1]
		args = args[1:]
	}
	for _, name := range args[1:] {
		if err := ex.Traps.Set(name, action); err != nil {
			fmt.Fprintln(ex.Streams.Stderr, err)
			return 1, nil
		}
	}
	return 0, nil
}

// exportBuiltin marks names exported, optionally assigning a value in
// the same step (`export NAME=value`), and with no operands lists every
// exported variable (§4.7 export).
func (ex *Executor) exportBuiltin(args []string) (int, error) {
	if len(args) == 0 {
		for _, line := range ex.Vars.ExportedEnviron() {
			fmt.Fprintf(ex.Streams.Stdout, "export %s\n", line)
		}
		return 0, nil
	}
	for _, a := range args {
		if a == "-p" {
			continue
		}
		name, val, hasVal := strings.Cut(a, "=")
		if hasVal {
			if err := ex.Vars.Set(name, val); err != nil {
				fmt.Fprintln(ex.Streams.Stderr, err)
				return 1, nil
			}
		}
		ex.Vars.SetAttr(name, vars.AttrExported)
	}
	return 0, nil
}

// readonlyBuiltin marks names readonly, optionally assigning a value,
// and with no operands lists every readonly variable.
func (ex *Executor) readonlyBuiltin(args []string) (int, error) {
	if len(args) == 0 {
		for _, name := range ex.Vars.NamesWithPrefix("") {
			if v, ok := ex.Vars.Lookup(name); ok && v.Attrs.Has(vars.AttrReadonly) {
				fmt.Fprintf(ex.Streams.Stdout, "readonly %s=%s\n", name, v.Scalar)
			}
		}
		return 0, nil
	}
	for _, a := range args {
		if a == "-p" {
			continue
		}
		name, val, hasVal := strings.Cut(a, "=")
		if hasVal {
			if err := ex.Vars.Set(name, val); err != nil {
				fmt.Fprintln(ex.Streams.Stderr, err)
				return 1, nil
			}
		}
		ex.Vars.SetAttr(name, vars.AttrReadonly)
	}
	return 0, nil
}

// unsetBuiltin removes a variable or (`-f`) a function (§4.5.4, §4.7).
func (ex *Executor) unsetBuiltin(args []string) (int, error) {
	funcMode := false
	status := 0
	for _, a := range args {
		switch a {
		case "-f":
			funcMode = true
			continue
		case "-v":
			funcMode = false
			continue
		}
		if funcMode {
			ex.Vars.UnsetFunction(a)
			continue
		}
		if err := ex.Vars.Unset(a); err != nil {
			fmt.Fprintln(ex.Streams.Stderr, err)
			status = 1
		}
	}
	return status, nil
}

// dotBuiltin reads and runs a file inline in the current Executor
// (`.`/`source`), searching $PATH when the name has no slash, per
// bash's (non-POSIX-strict) extension to plain POSIX dot semantics.
func (ex *Executor) dotBuiltin(args []string) (int, error) {
	if len(args) == 0 {
		return 2, shellerr.New(shellerr.KindSyntax, ".: filename argument required")
	}
	path := args[0]
	if !strings.Contains(path, "/") {
		if resolved, ok := ex.lookupPath(path); ok {
			path = resolved
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(ex.Streams.Stderr, ".: %s: %v\n", path, err)
		return 1, nil
	}
	prevPositional := ex.Positional
	if len(args) > 1 {
		ex.Positional = args[1:]
	}
	status, err := ex.RunInline(string(data))
	ex.Positional = prevPositional
	if fe, ok := err.(*shellerr.FunctionReturn); ok {
		return fe.Status, nil
	}
	return status, err
}
