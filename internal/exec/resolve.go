// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package exec

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aleutianshell/ash/internal/expand"
	"github.com/aleutianshell/ash/internal/shellopt"
)

// lookupPath resolves name to an executable path against the shell's
// own $PATH (not the OS process environment, which may have drifted
// from it), consulting the hash table first per §4.7 hash semantics.
func (ex *Executor) lookupPath(name string) (string, bool) {
	if strings.Contains(name, "/") {
		if fi, err := os.Stat(name); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
			return name, true
		}
		return "", false
	}
	if ex.Opts.Get(shellopt.Hashcmds) {
		if cached, ok := ex.HashTbl[name]; ok {
			if fi, err := os.Stat(cached); err == nil && !fi.IsDir() {
				return cached, true
			}
			delete(ex.HashTbl, name)
		}
	}
	pathVar, _ := ex.Vars.GetArith("PATH")
	for _, dir := range strings.Split(pathVar, ":") {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
			ex.HashTbl[name] = candidate
			return candidate, true
		}
	}
	return "", false
}

// forkInProcess returns an Executor isolated from ex by deep-cloning
// Vars/Opts (see the package doc): used for subshells and command
// substitution that run to completion before their caller resumes, so
// no concurrent fd access is possible.
func (ex *Executor) forkInProcess() *Executor {
	clonedVars := ex.Vars.Clone()
	clonedOpts := ex.Opts.Clone()
	sub := &Executor{
		Vars:        clonedVars,
		Opts:        clonedOpts,
		Jobs:        ex.Jobs,
		Traps:       ex.Traps,
		Streams:     ex.Streams,
		ScriptName:  ex.ScriptName,
		Positional:  append([]string{}, ex.Positional...),
		LastStatus:  ex.LastStatus,
		LastBgPID:   ex.LastBgPID,
		ShellPID:    ex.ShellPID,
		Aliases:     cloneStringMap(ex.Aliases),
		HashTbl:     cloneStringMap(ex.HashTbl),
		FuncName:    append([]string{}, ex.FuncName...),
		Interactive: false,
		Log:         ex.Log,
	}
	sub.Expand = &expand.Engine{
		Vars:       clonedVars,
		Opts:       clonedOpts,
		Run:        &execRunner{ex: sub},
		Positional: sub.Positional,
		ScriptName: sub.ScriptName,
		LastStatus: sub.LastStatus,
		LastBgPID:  sub.LastBgPID,
		ShellPID:   sub.ShellPID,
	}
	return sub
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
