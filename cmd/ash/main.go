// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package main is the ash entry point: argv/option parsing, ambient
// config loading, and dispatch to one of the three invocation shapes
// (§6) — `ash -c cmd [args...]`, `ash script [args...]`, or bare `ash`
// for an interactive REPL.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aleutianshell/ash/internal/exec"
	"github.com/aleutianshell/ash/internal/parser"
	"github.com/aleutianshell/ash/internal/procexec"
	"github.com/aleutianshell/ash/internal/shellerr"
	"github.com/aleutianshell/ash/internal/shellio"
	"github.com/aleutianshell/ash/internal/shellopt"
	"github.com/aleutianshell/ash/internal/vars"
)

// letterOptions is the fixed set of single-letter `set -e`-style flags
// ash exposes on its own argv, in the order `$-` renders them.
var letterOptions = []byte{'e', 'u', 'x', 'n', 'f', 'a', 'C', 'b', 'm', 'v', 'h'}

var (
	cCommand string
	oSet     []string
	oUnset   []string
)

func main() {
	// This ash process may be a self-reexec'd shell child standing in
	// for a subshell or backgrounded construct (internal/procexec's
	// package doc); resetting the job-control signal set to default is
	// "immediately after fork" from that architecture's point of view,
	// so it happens before anything else regardless of which of the
	// three invocation shapes this turns out to be.
	procexec.ApplyChildSignalPolicy(true)

	rootCmd := newRootCmd()
	rootCmd.SetArgs(preprocessArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ash:", err)
		os.Exit(2)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ash [options] [script [args...]]",
		Short:         "a POSIX/bash-compatible shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runAsh,
	}
	fs := cmd.Flags()
	fs.SetInterspersed(false)
	fs.StringVarP(&cCommand, "command", "c", "", "run cmd as a command string instead of reading a script")
	fs.StringArrayVarP(&oSet, "opt", "o", nil, "turn on the named shell option (set -o name)")
	fs.StringArrayVar(&oUnset, "unset-opt", nil, "turn off the named shell option (set +o name)")
	fs.Lookup("unset-opt").Hidden = true

	// Pre-register a shorthand-less "help" flag so cobra's automatic
	// --help wiring finds one already present and skips claiming "-h"
	// as its shorthand — bash's own -h is hashall, not help, and the
	// letterOptions loop below needs that shorthand for it.
	fs.Bool("help", false, "show usage")

	for _, c := range letterOptions {
		opt, _ := shellopt.ByLetter(c)
		name := opt.String()
		fs.BoolP(name, string(c), false, "set -"+string(c)+" ("+name+")")
	}
	return cmd
}

// ambientConfig is the optional `$XDG_CONFIG_HOME/ash/ash.yaml` payload
// (§6 Configuration): it only seeds shellopt.Options/IFS/PS4 defaults
// before argv is parsed, and is absent on most systems, which is not
// an error.
type ambientConfig struct {
	IFS    string   `mapstructure:"ifs"`
	Shopts []string `mapstructure:"shopts"`
	PS4    string   `mapstructure:"ps4"`
}

func loadAmbientConfig() ambientConfig {
	var cfg ambientConfig
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg
		}
		configDir = filepath.Join(home, ".config")
	}
	v := viper.New()
	v.SetConfigFile(filepath.Join(configDir, "ash", "ash.yaml"))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return cfg
	}
	_ = v.Unmarshal(&cfg)
	return cfg
}

// preprocessArgs rewrites every `+`-prefixed token in raw into the
// pflag-friendly `--unset-opt=name` form: pflag has no concept of a
// `+` flag prefix, so `+eux` and `+o name` are translated here before
// cobra ever sees them. Everything after a literal `--` is passed
// through untouched, since it marks the end of option parsing.
func preprocessArgs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		a := raw[i]
		if a == "--" {
			out = append(out, raw[i:]...)
			break
		}
		if a == "+o" {
			if i+1 < len(raw) {
				out = append(out, "--unset-opt="+raw[i+1])
				i++
			}
			continue
		}
		if len(a) >= 2 && a[0] == '+' {
			for _, c := range []byte(a[1:]) {
				if opt, ok := shellopt.ByLetter(c); ok {
					out = append(out, "--unset-opt="+opt.String())
				}
			}
			continue
		}
		out = append(out, a)
	}
	return out
}

// runAsh is cobra's RunE callback. args is the positional remainder
// left after flag parsing stopped (fs.SetInterspersed(false) in
// newRootCmd makes that "everything from the first non-flag token
// on," which is exactly the script-name-plus-arguments tail §6 needs).
func runAsh(cmd *cobra.Command, args []string) error {
	fs := cmd.Flags()

	streams := shellio.Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
	ttyFd := int(os.Stdin.Fd())

	scriptName := "ash"
	var positional []string
	if len(args) > 0 {
		scriptName = args[0]
		positional = args[1:]
	}

	ex := exec.New(scriptName, positional, streams, ttyFd)
	seedEnvironment(ex)
	applyAmbientConfig(ex, loadAmbientConfig())
	applyOptionFlags(ex, fs)

	switch {
	case fs.Changed("command"):
		os.Exit(runSource(ex, cCommand))
	case len(args) > 0:
		src, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "ash: %s: %v\n", args[0], err)
			os.Exit(127)
		}
		os.Exit(runSource(ex, string(src)))
	case isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()):
		os.Exit(runInteractive(ex))
	default:
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ash: %v\n", err)
			os.Exit(1)
		}
		os.Exit(runSource(ex, string(src)))
	}
	return nil
}

// seedEnvironment copies the OS process environment into ex.Vars as
// exported scalars, the starting point every shell builds its own
// variable store from (§3, §6).
func seedEnvironment(ex *exec.Executor) {
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !vars.ValidIdentifier(name) {
			continue
		}
		_ = ex.Vars.Set(name, value)
		ex.Vars.SetAttr(name, vars.AttrExported)
	}
}

func applyAmbientConfig(ex *exec.Executor, cfg ambientConfig) {
	if cfg.IFS != "" {
		_ = ex.Vars.Set("IFS", cfg.IFS)
	}
	if cfg.PS4 != "" {
		_ = ex.Vars.Set("PS4", cfg.PS4)
	}
	for _, name := range cfg.Shopts {
		if s, ok := shellopt.ShoptByName(name); ok {
			ex.Opts.SetShopt(s, true)
		}
	}
}

func applyOptionFlags(ex *exec.Executor, fs *pflag.FlagSet) {
	for _, c := range letterOptions {
		opt, _ := shellopt.ByLetter(c)
		name := opt.String()
		if v, err := fs.GetBool(name); err == nil && v {
			ex.Opts.Set(opt, true)
		}
	}
	for _, name := range oSet {
		if opt, ok := shellopt.ByName(name); ok {
			ex.Opts.Set(opt, true)
		}
	}
	for _, name := range oUnset {
		if opt, ok := shellopt.ByName(name); ok {
			ex.Opts.Set(opt, false)
		}
	}
}

func parserMode(ex *exec.Executor) parser.Mode {
	if ex.Opts.Get(shellopt.Posix) {
		return parser.ModePOSIX
	}
	return parser.ModeBash
}

// runSource parses and runs one complete program, returning the
// process exit status (§6: 0-255, 126/127 for resolution failures,
// 128+n for a terminating signal, 2 for a syntax error).
func runSource(ex *exec.Executor, src string) int {
	top, err := parser.Parse(src, parserMode(ex))
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, "ash:", err)
		return 2
	}
	status, err := ex.Run(top)
	if err != nil {
		fmt.Fprintln(ex.Streams.Stderr, "ash:", err)
		return 1
	}
	return status
}

// runInteractive drives the PS1/PS2 read-eval-print loop (§6 "Stdin
// semantics"): job control is switched on, and a SyntaxError whose
// message reports an unterminated quote/substitution/here-doc is
// treated as "read one more line," the only distinction the parser
// surfaces between a real error and mid-construct input.
func runInteractive(ex *exec.Executor) int {
	procexec.IgnoreForInteractive()
	ex.Interactive = true
	ex.StartSignalWatcher()

	reader := bufio.NewReader(os.Stdin)
	status := ex.LastStatus
	for {
		prompt, _ := ex.Vars.GetArith("PS1")
		if prompt == "" {
			prompt = "$ "
		}
		fmt.Fprint(os.Stderr, prompt)

		src, ok := readLogicalLine(ex, reader)
		if !ok {
			fmt.Fprintln(os.Stderr)
			return status
		}
		if strings.TrimSpace(src) == "" {
			continue
		}

		top, err := parser.Parse(src, parserMode(ex))
		if err != nil {
			fmt.Fprintln(os.Stderr, "ash:", err)
			continue
		}
		var exited bool
		status, exited, err = ex.RunREPL(top)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ash:", err)
		}
		if exited {
			return status
		}
	}
}

// readLogicalLine reads one line, then keeps appending further lines
// (prompting with PS2) while the accumulated text fails to parse with
// an "unterminated ..." SyntaxError — an open quote, substitution, or
// here-doc spanning multiple physical lines. It reports ok=false only
// on EOF with nothing buffered yet.
func readLogicalLine(ex *exec.Executor, reader *bufio.Reader) (string, bool) {
	line, err := reader.ReadString('\n')
	if line == "" && err != nil {
		return "", false
	}
	buf := line
	for {
		if _, perr := parser.Parse(buf, parserMode(ex)); perr == nil {
			return buf, true
		} else if !isUnterminated(perr) {
			return buf, true
		}
		ps2, _ := ex.Vars.GetArith("PS2")
		if ps2 == "" {
			ps2 = "> "
		}
		fmt.Fprint(os.Stderr, ps2)
		more, merr := reader.ReadString('\n')
		if more == "" && merr != nil {
			return buf, true
		}
		buf += more
	}
}

func isUnterminated(err error) bool {
	se, ok := err.(*shellerr.ShellError)
	return ok && se.Kind == shellerr.KindSyntax && strings.Contains(se.Message, "unterminated")
}
