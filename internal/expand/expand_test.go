// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package expand

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/shellopt"
	"github.com/aleutianshell/ash/internal/vars"
)

type fakeRunner struct {
	out    string
	status int
}

func (f *fakeRunner) RunCaptured(script string) (string, int, error) {
	return f.out, f.status, nil
}

func (f *fakeRunner) StartProcessSub(script string, dir byte) (string, func(), error) {
	return "/tmp/fake-procsub", func() {}, nil
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return &Engine{
		Vars:       vars.New(),
		Opts:       shellopt.New(),
		Run:        &fakeRunner{},
		Positional: nil,
		ScriptName: "ash",
	}
}

func wordOf(t *testing.T, text string) ast.Word {
	t.Helper()
	ws, err := tokenizeWord(text)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	return ws[0]
}

func TestExpandWord_Literal(t *testing.T) {
	e := newEngine(t)
	fields, err := e.ExpandWord(wordOf(t, "hello"))
	require.NoError(t, err)
	require.Equal(t, []string{"hello"}, fields)
}

func TestExpandWord_PlainVariable(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Vars.Set("NAME", "world"))
	fields, err := e.ExpandWord(wordOf(t, "hello-$NAME"))
	require.NoError(t, err)
	require.Equal(t, []string{"hello-world"}, fields)
}

func TestExpandWord_BracedVariable(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Vars.Set("X", "abc"))
	fields, err := e.ExpandWord(wordOf(t, "${X}def"))
	require.NoError(t, err)
	require.Equal(t, []string{"abcdef"}, fields)
}

func TestExpandWord_DefaultValueOperator(t *testing.T) {
	e := newEngine(t)
	fields, err := e.ExpandWord(wordOf(t, "${UNSET:-fallback}"))
	require.NoError(t, err)
	require.Equal(t, []string{"fallback"}, fields)
}

func TestExpandWord_AssignDefaultOperatorWritesBack(t *testing.T) {
	e := newEngine(t)
	fields, err := e.ExpandWord(wordOf(t, "${FOO:=assigned}"))
	require.NoError(t, err)
	require.Equal(t, []string{"assigned"}, fields)
	v, ok := e.Vars.Lookup("FOO")
	require.True(t, ok)
	require.Equal(t, "assigned", v.Scalar)
}

func TestExpandWord_ErrorOperatorUnset(t *testing.T) {
	e := newEngine(t)
	_, err := e.ExpandWord(wordOf(t, "${MISSING:?not set}"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not set")
}

func TestExpandWord_PrefixSuffixRemoval(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Vars.Set("PATHLIKE", "/usr/local/bin"))
	fields, err := e.ExpandWord(wordOf(t, "${PATHLIKE##*/}"))
	require.NoError(t, err)
	require.Equal(t, []string{"bin"}, fields)

	fields, err = e.ExpandWord(wordOf(t, "${PATHLIKE%/*}"))
	require.NoError(t, err)
	require.Equal(t, []string{"/usr/local"}, fields)
}

func TestExpandWord_ReplaceOperator(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Vars.Set("S", "banana"))
	fields, err := e.ExpandWord(wordOf(t, "${S//a/o}"))
	require.NoError(t, err)
	require.Equal(t, []string{"bonono"}, fields)

	fields, err = e.ExpandWord(wordOf(t, "${S/a/o}"))
	require.NoError(t, err)
	require.Equal(t, []string{"bonana"}, fields)
}

func TestExpandWord_Substring(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Vars.Set("S", "0123456789"))
	fields, err := e.ExpandWord(wordOf(t, "${S:2:3}"))
	require.NoError(t, err)
	require.Equal(t, []string{"234"}, fields)

	fields, err = e.ExpandWord(wordOf(t, "${S: -3}"))
	require.NoError(t, err)
	require.Equal(t, []string{"789"}, fields)
}

func TestExpandWord_CaseModification(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Vars.Set("S", "hello world"))
	fields, err := e.ExpandWord(wordOf(t, "${S^^}"))
	require.NoError(t, err)
	require.Equal(t, []string{"HELLO", "WORLD"}, fields)

	fields, err = e.ExpandWord(wordOf(t, "${S^}"))
	require.NoError(t, err)
	require.Equal(t, []string{"Hello", "world"}, fields)
}

func TestExpandWord_Length(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Vars.Set("S", "hello"))
	fields, err := e.ExpandWord(wordOf(t, "${#S}"))
	require.NoError(t, err)
	require.Equal(t, []string{"5"}, fields)
}

func TestExpandWord_SpecialParameters(t *testing.T) {
	e := newEngine(t)
	e.LastStatus = 7
	e.ShellPID = 1234
	e.Positional = []string{"one", "two", "three"}
	fields, err := e.ExpandWord(wordOf(t, "$?"))
	require.NoError(t, err)
	require.Equal(t, []string{"7"}, fields)

	fields, err = e.ExpandWord(wordOf(t, "$$"))
	require.NoError(t, err)
	require.Equal(t, []string{"1234"}, fields)

	fields, err = e.ExpandWord(wordOf(t, "$#"))
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, fields)
}

func TestExpandWords_UnquotedAtSplicesIntoMultipleWords(t *testing.T) {
	e := newEngine(t)
	e.Positional = []string{"a b", "c", "d"}
	fields, err := e.ExpandWords([]ast.Word{wordOf(t, "$@")})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, fields)
}

func TestExpandWord_QuotedAtKeepsEachParameterAsOneWord(t *testing.T) {
	e := newEngine(t)
	e.Positional = []string{"a b", "c", "d"}
	w := wordOf(t, `"$@"`)
	fields, err := e.ExpandWord(w)
	require.NoError(t, err)
	require.Equal(t, []string{"a b", "c", "d"}, fields)
}

func TestExpandWords_WordSplittingOnIFS(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Vars.Set("LIST", "one two  three"))
	fields, err := e.ExpandWords([]ast.Word{wordOf(t, "$LIST")})
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two", "three"}, fields)
}

func TestExpandWords_BraceExpansion(t *testing.T) {
	e := newEngine(t)
	fields, err := e.ExpandWords([]ast.Word{wordOf(t, "file{1,2,3}.txt")})
	require.NoError(t, err)
	require.Equal(t, []string{"file1.txt", "file2.txt", "file3.txt"}, fields)
}

func TestExpandWords_BraceRange(t *testing.T) {
	e := newEngine(t)
	fields, err := e.ExpandWords([]ast.Word{wordOf(t, "{1..5}")})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, fields)
}

func TestExpandWord_CommandSubstitution(t *testing.T) {
	e := newEngine(t)
	e.Run = &fakeRunner{out: "result\n", status: 0}
	fields, err := e.ExpandWord(wordOf(t, "$(echo result)"))
	require.NoError(t, err)
	require.Equal(t, []string{"result"}, fields)
}

func TestExpandWord_ArithmeticSubstitution(t *testing.T) {
	e := newEngine(t)
	fields, err := e.ExpandWord(wordOf(t, "$((2 + 3 * 4))"))
	require.NoError(t, err)
	require.Equal(t, []string{"14"}, fields)
}

func TestExpandWord_IndirectExpansion(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Vars.Set("ref", "target"))
	require.NoError(t, e.Vars.Set("target", "value"))
	fields, err := e.ExpandWord(wordOf(t, "${!ref}"))
	require.NoError(t, err)
	require.Equal(t, []string{"value"}, fields)
}

func TestExpandWord_ArrayAllAndLength(t *testing.T) {
	e := newEngine(t)
	e.Vars.DeclareIndexedArray("arr", []string{"x", "y", "z"}, 0)
	fields, err := e.ExpandWords([]ast.Word{wordOf(t, "${arr[@]}")})
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y", "z"}, fields)

	lenFields, err := e.ExpandWord(wordOf(t, "${#arr[@]}"))
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, lenFields)
}

func TestExpandWord_TildeExpansion(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Vars.Set("HOME", "/home/ash"))
	fields, err := e.ExpandWord(wordOf(t, "~/bin"))
	require.NoError(t, err)
	require.Equal(t, []string{"/home/ash/bin"}, fields)
}

func TestExpandWords_Globbing(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	e := newEngine(t)
	fields, err := e.ExpandWords([]ast.Word{wordOf(t, "*.txt")})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.txt", "b.txt"}, fields)
}

func TestExpandWords_NoGlobMatchLeavesPatternLiteral(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	e := newEngine(t)
	fields, err := e.ExpandWords([]ast.Word{wordOf(t, "*.nomatch")})
	require.NoError(t, err)
	require.Equal(t, []string{"*.nomatch"}, fields)
}

func TestExpandWord_NounsetErrorsOnUnboundVariable(t *testing.T) {
	e := newEngine(t)
	e.Opts.Set(shellopt.Nounset, true)
	_, err := e.ExpandWord(wordOf(t, "$UNSET"))
	require.Error(t, err)
}
