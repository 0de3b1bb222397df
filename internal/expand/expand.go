// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package expand implements the expansion pipeline: brace expansion,
// tilde expansion, parameter/command/arithmetic expansion, word
// splitting, pathname expansion, and quote removal, run in the strict
// order fixed by §4.3. Command and process substitution re-enter the
// executor through the Runner interface — a one-way dependency per the
// design note on the Executor/Expansion-Engine cycle, so this package
// never imports internal/exec.
package expand

import (
	"math/rand"
	"os"
	"os/user"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aleutianshell/ash/internal/arith"
	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/shellerr"
	"github.com/aleutianshell/ash/internal/shellopt"
	"github.com/aleutianshell/ash/internal/token"
	"github.com/aleutianshell/ash/internal/vars"
)

// Runner is the callback surface the expansion engine uses to re-enter
// the front end + executor for command and process substitution. A
// fresh implementation runs a capture-redirected parse+execute; no
// shared mutable state beyond the shell's own Store/Options.
type Runner interface {
	// RunCaptured runs script as a shell program, returning its
	// trailing-newline-stripped stdout and exit status.
	RunCaptured(script string) (output string, status int, err error)
	// StartProcessSub starts script as a background shell process with
	// one end of a pipe/FIFO connected per dir ('<' readable by the
	// caller, '>' writable by the caller), returning a filesystem path
	// and a cleanup function to call once the caller is done with it.
	StartProcessSub(script string, dir byte) (path string, cleanup func(), err error)
}

// Engine holds everything the expansion pipeline needs: the variable
// store, option state, the Runner callback, and the special-parameter
// values the executor maintains ($?, $$, $!, positional params, $0).
type Engine struct {
	Vars       *vars.Store
	Opts       *shellopt.Options
	Run        Runner
	Positional []string
	ScriptName string
	LastStatus int
	ShellPID   int
	LastBgPID  int
	LastArg    string // $_
	LineNo     int    // $LINENO's value; the executor never sets it, so $LINENO expands to 0

	start time.Time      // shell-start instant $SECONDS counts from
	rng   *rand.Rand     // private source for $RANDOM, seeded lazily

	// cleanups holds the process-substitution teardown callbacks
	// accumulated while expanding the current command's words; the
	// executor runs them once that command has finished with the paths.
	cleanups []func()
}

// FinishSubstitutions waits out and removes any process-substitution
// FIFOs created since the last call. The executor invokes it after the
// command that consumed the paths completes.
func (e *Engine) FinishSubstitutions() {
	for _, fn := range e.cleanups {
		fn()
	}
	e.cleanups = nil
}

// shellStart is the instant this package was initialized at process
// start, which $SECONDS counts from.
var shellStart = time.Now()

// seedDynamicVars lazily initializes the clocks/PRNG $SECONDS and
// $RANDOM read from; called on first access so an Engine built without
// going through a constructor (e.g. in a test) still behaves.
func (e *Engine) seedDynamicVars() {
	if e.start.IsZero() {
		e.start = shellStart
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// fieldPiece is one run of text contributed to a field by a single
// word part; Quoted marks text that must not be word-split or
// glob-expanded (phase 4/5 immunity).
type fieldPiece struct {
	text   string
	quoted bool
}

// ExpandWord runs the full pipeline (phases 2-6; phase 1 brace
// expansion is handled by ExpandWords since it can turn one word into
// several before the rest of the pipeline ever sees it) on a single
// already-brace-expanded word, returning the resulting fields.
func (e *Engine) ExpandWord(w ast.Word) ([]string, error) {
	parts := partsOf(w.Tok)
	parts = e.expandTilde(parts)

	fields := [][]fieldPiece{{}}
	for _, part := range parts {
		vals, quoted, splice, err := e.expandPart(part)
		if err != nil {
			return nil, err
		}
		if splice {
			if len(vals) == 0 {
				continue
			}
			cur := fields[len(fields)-1]
			fields[len(fields)-1] = append(cur, fieldPiece{text: vals[0], quoted: quoted})
			if len(vals) > 1 {
				for _, v := range vals[1 : len(vals)-1] {
					fields = append(fields, []fieldPiece{{text: v, quoted: quoted}})
				}
				fields = append(fields, []fieldPiece{{text: vals[len(vals)-1], quoted: quoted}})
			}
			continue
		}
		val := ""
		if len(vals) > 0 {
			val = vals[0]
		}
		fields[len(fields)-1] = append(fields[len(fields)-1], fieldPiece{text: val, quoted: quoted})
	}

	var out []string
	ifs := e.ifs()
	for _, pieces := range fields {
		if w.Quoted || allQuoted(pieces) {
			out = append(out, concatPieces(pieces))
			continue
		}
		for _, f := range splitField(pieces, ifs) {
			if f.quoted {
				out = append(out, f.text)
				continue
			}
			out = append(out, e.globField(f.text)...)
		}
	}
	return out, nil
}

func allQuoted(pieces []fieldPiece) bool {
	for _, p := range pieces {
		if !p.quoted {
			return false
		}
	}
	return true
}

// ExpandWords runs brace expansion (phase 1) on each word, then the
// rest of the pipeline on every resulting sub-word, flattening the
// results into a single field list — the contract every caller in
// internal/exec uses for argv/assignment-RHS/case-pattern expansion.
func (e *Engine) ExpandWords(ws []ast.Word) ([]string, error) {
	var out []string
	for _, w := range ws {
		sub, err := e.braceExpandWord(w)
		if err != nil {
			return nil, err
		}
		for _, sw := range sub {
			fields, err := e.ExpandWord(sw)
			if err != nil {
				return nil, err
			}
			out = append(out, fields...)
		}
	}
	return out, nil
}

// ExpandWordJoined expands w and joins the resulting fields with a
// space, for contexts that want a single string (redirection targets,
// case scrutinee, here-string body, assignment RHS). Brace expansion
// never applies in these contexts: an assignment RHS or redirect
// target keeps `{a,b}` literal, as bash does.
func (e *Engine) ExpandWordJoined(w ast.Word) (string, error) {
	// Quoted-word handling already means "expand but never split or
	// glob", which is exactly these contexts' rule.
	w.Quoted = true
	fields, err := e.ExpandWord(w)
	if err != nil {
		return "", err
	}
	return strings.Join(fields, " "), nil
}

func (e *Engine) braceExpandWord(w ast.Word) ([]ast.Word, error) {
	if !e.Opts.Get(shellopt.Braceexpand) || w.Quoted {
		return []ast.Word{w}, nil
	}
	texts := braceExpand(w.Tok.Text)
	if len(texts) == 1 && texts[0] == w.Tok.Text {
		return []ast.Word{w}, nil
	}
	var out []ast.Word
	for _, t := range texts {
		toks, err := tokenizeWord(t)
		if err != nil {
			return nil, err
		}
		out = append(out, toks...)
	}
	return out, nil
}

func partsOf(tok token.Token) []token.Part {
	if len(tok.Parts) > 0 {
		return tok.Parts
	}
	if tok.Text != "" {
		return []token.Part{{Type: token.PartLiteral, Text: tok.Text}}
	}
	return nil
}

func concatPieces(pieces []fieldPiece) string {
	var sb strings.Builder
	for _, p := range pieces {
		sb.WriteString(p.text)
	}
	return sb.String()
}

// ifs returns the active IFS value, defaulting to space/tab/newline
// per §6 when IFS is unset.
func (e *Engine) ifs() string {
	if v, ok := e.Vars.GetArith("IFS"); ok {
		return v
	}
	return " \t\n"
}

func isIFSWhitespace(c byte, ifs string) bool {
	return (c == ' ' || c == '\t' || c == '\n') && strings.IndexByte(ifs, c) >= 0
}

// splitOut is one field produced by phase 4 splitting; quoted is true
// only if every byte contributing to it came from a quoted piece, in
// which case phase 5 (globbing) must not run on it.
type splitOut struct {
	text   string
	quoted bool
}

// splitField implements phase 4 (§4.3 item 4): whitespace-IFS runs
// coalesce, non-whitespace IFS characters each delimit one field,
// quoted pieces are immune from splitting and from contributing
// glob-eligibility to the field they land in.
func splitField(pieces []fieldPiece, ifs string) []splitOut {
	if ifs == "" {
		// IFS set to empty string: no splitting at all.
		return []splitOut{{text: concatPieces(pieces), quoted: allQuoted(pieces)}}
	}
	var out []splitOut
	var cur strings.Builder
	haveField := false
	inWSRun := false
	curQuoted := true
	flush := func() {
		out = append(out, splitOut{text: cur.String(), quoted: curQuoted})
		cur.Reset()
		haveField = false
		curQuoted = true
	}
	for _, p := range pieces {
		if p.quoted {
			cur.WriteString(p.text)
			haveField = true
			inWSRun = false
			continue
		}
		for i := 0; i < len(p.text); i++ {
			c := p.text[i]
			if isIFSWhitespace(c, ifs) {
				if haveField || cur.Len() > 0 {
					if !inWSRun {
						flush()
					}
				}
				inWSRun = true
				continue
			}
			if strings.IndexByte(ifs, c) >= 0 {
				flush()
				inWSRun = false
				continue
			}
			cur.WriteByte(c)
			haveField = true
			curQuoted = false
			inWSRun = false
		}
	}
	if haveField || cur.Len() > 0 {
		flush()
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// globField applies phase 5 (pathname expansion) to one already-split
// field, honoring noglob/dotglob/nullglob/nocaseglob/globstar.
func (e *Engine) globField(field string) []string {
	if e.Opts.Get(shellopt.Noglob) {
		return []string{unescapeGlobLiterals(field)}
	}
	pattern := field
	if !HasGlobMeta(pattern) {
		return []string{unescapeGlobLiterals(field)}
	}
	matches, err := globPath(pattern, e.Opts)
	if err != nil || len(matches) == 0 {
		if e.Opts.GetShopt(shellopt.Nullglob) {
			return nil
		}
		return []string{unescapeGlobLiterals(field)}
	}
	sort.Strings(matches)
	return matches
}

func unescapeGlobLiterals(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			sb.WriteByte(s[i+1])
			i++
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// expandTilde implements phase 2 on the first part of a composite word
// if it is unquoted literal text beginning with `~` (quoted text is
// never PartLiteral, so this naturally excludes `"~"`/`'~'`).
func (e *Engine) expandTilde(parts []token.Part) []token.Part {
	if len(parts) == 0 || parts[0].Type != token.PartLiteral || !strings.HasPrefix(parts[0].Text, "~") {
		return parts
	}
	rest := parts[0].Text[1:]
	name := rest
	after := ""
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		name, after = rest[:slash], rest[slash:]
	}
	home, ok := e.resolveHome(name)
	if !ok {
		return parts
	}
	out := append([]token.Part{}, parts...)
	out[0] = token.Part{Type: token.PartLiteral, Text: home + after}
	return out
}

func (e *Engine) resolveHome(name string) (string, bool) {
	if name == "" {
		if h, ok := e.Vars.GetArith("HOME"); ok && h != "" {
			return h, true
		}
		if h, err := os.UserHomeDir(); err == nil {
			return h, true
		}
		return "", false
	}
	u, err := user.Lookup(name)
	if err != nil {
		return "", false
	}
	return u.HomeDir, true
}

// expandPart expands one composite-token Part into a value list (a
// single-element list for ordinary substitutions, multi-element when
// splice is true for unquoted $@/${arr[@]}).
func (e *Engine) expandPart(part token.Part) (vals []string, quoted bool, splice bool, err error) {
	switch part.Type {
	case token.PartLiteral:
		return []string{part.Text}, part.Quoted, false, nil
	case token.PartSingleQuoted:
		return []string{part.Text}, true, false, nil
	case token.PartDoubleQuoted:
		return []string{part.Text}, true, false, nil
	case token.PartVariableRef:
		vals, _, splice, err := e.expandVariableRef(part.Text)
		return vals, part.Quoted, splice, err
	case token.PartCommandSub, token.PartBacktickSub:
		out, _, err := e.Run.RunCaptured(part.Text)
		if err != nil {
			return nil, false, false, err
		}
		return []string{strings.TrimRight(out, "\n")}, part.Quoted, false, nil
	case token.PartArithSub:
		v, err := arith.Eval(part.Text, e.Vars)
		if err != nil {
			return nil, false, false, err
		}
		return []string{strconv.FormatInt(v, 10)}, part.Quoted, false, nil
	case token.PartProcessSub:
		path, cleanup, err := e.Run.StartProcessSub(part.Text, part.ProcessSubDir)
		if err != nil {
			return nil, false, false, err
		}
		if cleanup != nil {
			e.cleanups = append(e.cleanups, cleanup)
		}
		return []string{path}, part.Quoted, false, nil
	default:
		return []string{part.Text}, part.Quoted, false, nil
	}
}

func newExpansionErr(format string, args ...any) error {
	return shellerr.New(shellerr.KindExpansion, format, args...)
}
