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
	"syscall"
	"time"

	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/astprint"
	"github.com/aleutianshell/ash/internal/procexec"
	"github.com/aleutianshell/ash/internal/shellio"
	"github.com/aleutianshell/ash/internal/shellopt"
)

// execAndOrList runs a left-to-right `&&`/`||` chain, short-circuiting
// on the first pipeline whose result decides the outcome (§4.5).
func (ex *Executor) execAndOrList(v *ast.AndOrList, c Context) (int, error) {
	status, err := ex.execPipeline(v.Pipelines[0], c.asConditional())
	if err != nil {
		return status, err
	}
	for i, op := range v.Operators {
		next := v.Pipelines[i+1]
		shouldRun := (op == ast.AndOp && status == 0) || (op == ast.OrOp && status != 0)
		if !shouldRun {
			continue
		}
		cond := c.asConditional()
		if i == len(v.Operators)-1 {
			cond = c
		}
		status, err = ex.execPipeline(next, cond)
		if err != nil {
			return status, err
		}
	}
	return status, nil
}

// execPipeline runs a `cmd1 | cmd2 | ...` chain (§4.5.2). A single bare
// SimpleCommand pipeline just runs directly: there is nothing to
// isolate it from. A true multi-stage pipeline wires every stage's
// stdout to the next stage's stdin with os.Pipe; external-command
// stages become a single StartLeaf process each, while any stage that
// is itself a builtin/function/compound construct has to become its
// own OS process too (shellio's fd model can't run two stages'
// redirections in the same process concurrently — see the package
// doc), so it self-reexecs via the same renderForSelfReexec path
// execSubshell's caller uses for backgrounding.
func (ex *Executor) execPipeline(v *ast.Pipeline, c Context) (int, error) {
	var startWall time.Time
	var startChildren syscall.Rusage
	if v.Timed {
		startWall = time.Now()
		_ = syscall.Getrusage(syscall.RUSAGE_CHILDREN, &startChildren)
	}
	status, err := ex.runPipelineStages(v, c)
	if v.Timed {
		var endChildren syscall.Rusage
		_ = syscall.Getrusage(syscall.RUSAGE_CHILDREN, &endChildren)
		fmt.Fprintf(ex.Streams.Stderr, "\nreal\t%.3fs\nuser\t%.3fs\nsys\t%.3fs\n",
			time.Since(startWall).Seconds(),
			timevalSeconds(endChildren.Utime)-timevalSeconds(startChildren.Utime),
			timevalSeconds(endChildren.Stime)-timevalSeconds(startChildren.Stime))
	}
	if err != nil {
		return status, err
	}
	if v.Negated {
		if status == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return status, nil
}

func (ex *Executor) runPipelineStages(v *ast.Pipeline, c Context) (int, error) {
	if len(v.Commands) == 1 {
		return ex.execNode(v.Commands[0], Context{
			InPipeline:   c.InPipeline,
			PipelineLast: true,
			Conditional:  c.Conditional,
			LoopDepth:    c.LoopDepth,
			CurrentFunc:  c.CurrentFunc,
		})
	}

	pids := make([]int, 0, len(v.Commands))
	streams := ex.Streams
	var prevRead *os.File
	pgid := 0

	for i, node := range v.Commands {
		last := i == len(v.Commands)-1
		stageStreams := streams
		stageStreams.Stdin = prevRead
		if prevRead == nil {
			stageStreams.Stdin = streams.Stdin
		}
		var pw *os.File
		if !last {
			pr, w, perr := os.Pipe()
			if perr != nil {
				return 1, nil
			}
			stageStreams.Stdout = w
			pw = w
			prevRead = pr
		} else {
			stageStreams.Stdout = streams.Stdout
			prevRead = nil
		}

		pid, _, perr := ex.startPipelineStage(node, stageStreams, pgid, last && ex.Interactive)
		if pw != nil {
			pw.Close()
		}
		if stageStreams.Stdin != streams.Stdin && stageStreams.Stdin != nil {
			stageStreams.Stdin.Close()
		}
		if perr != nil {
			fmt.Fprintln(ex.Streams.Stderr, perr)
			return 1, nil
		}
		if pgid == 0 {
			pgid = pid
		}
		pids = append(pids, pid)
	}

	j := ex.Jobs.Register(pgid, pids, ex.Interactive, "")
	if ex.Interactive {
		if err := ex.Jobs.SetForeground(pgid); err == nil {
			defer ex.Jobs.ReclaimForeground()
		}
	}
	status, err := ex.Jobs.WaitForeground(j, ex.Opts.Get(shellopt.Pipefail))
	ex.Jobs.Remove(j.ID)
	return status, err
}

func timevalSeconds(tv syscall.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}

// startBackground launches a `cmd &` statement without waiting for it:
// one process (leaf or self-reexec'd, same rules as a single-stage
// pipeline stage) in its own new process group, registered as the
// current job so `$!`/`wait`/`jobs` can find it later (§4.5.2, §6).
func (ex *Executor) startBackground(node ast.Node, c Context) {
	pid, _, err := ex.startPipelineStage(node, ex.Streams, 0, false)
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, err)
		ex.LastStatus = 1
		return
	}
	j := ex.Jobs.Register(pid, []int{pid}, false, astprint.Node(node))
	ex.LastBgPID = pid
	if ex.Interactive {
		fmt.Fprintf(ex.Streams.Stdout, "[%d] %d\n", j.ID, pid)
	}
}

// startPipelineStage launches one pipeline stage as an independent OS
// process: StartLeaf directly for a bare external SimpleCommand,
// otherwise a self-reexec'd shell child running the rendered construct.
func (ex *Executor) startPipelineStage(node ast.Node, streams shellio.Streams, pgid int, foreground bool) (int, *os.Process, error) {
	if sc, ok := node.(*ast.SimpleCommand); ok && len(sc.Assignments) == 0 {
		words, err := ex.Expand.ExpandWords(sc.Args)
		if err == nil && len(words) > 0 {
			_, isAlias := ex.Aliases[words[0]]
			_, isSpecial := specialBuiltinNames[words[0]]
			_, isFunc := ex.Vars.GetFunction(words[0])
			_, isBuiltin := builtinRegistry[words[0]]
			if !isAlias && !isSpecial && !isFunc && !isBuiltin {
				if path, ok := ex.lookupPath(words[0]); ok {
					cmd, err := procexec.StartLeaf(procexec.LeafSpec{
						Path:       path,
						Args:       words,
						Env:        ex.Vars.ExportedEnviron(),
						Dir:        ".",
						Stdin:      streams.Stdin,
						Stdout:     streams.Stdout,
						Stderr:     streams.Stderr,
						Pgid:       pgid,
						Foreground: foreground,
					})
					if err != nil {
						ex.Log.Error("fork/exec failed", "path", path, "err", err)
						return 0, nil, err
					}
					return cmd.Process.Pid, cmd.Process, nil
				}
			}
		}
	}

	script := ex.renderForSelfReexec(node)
	cmd, err := procexec.StartShellChild(procexec.ShellChildSpec{
		Script:     script,
		Env:        ex.Vars.ExportedEnviron(),
		Dir:        ".",
		Stdin:      streams.Stdin,
		Stdout:     streams.Stdout,
		Stderr:     streams.Stderr,
		Pgid:       pgid,
		Foreground: foreground,
	})
	if err != nil {
		ex.Log.Error("self-reexec failed", "err", err)
		return 0, nil, err
	}
	return cmd.Process.Pid, cmd.Process, nil
}
