// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lexer

import (
	"testing"

	"github.com/aleutianshell/ash/internal/token"
	"github.com/stretchr/testify/require"
)

func typesOf(t *testing.T, toks []token.Token) []token.Type {
	t.Helper()
	var out []token.Type
	for _, tok := range toks {
		out = append(out, tok.Type)
	}
	return out
}

func TestTokenize_SimpleCommand(t *testing.T) {
	toks, err := Tokenize("echo hello")
	require.NoError(t, err)
	require.Equal(t, []token.Type{token.Word, token.Word, token.EOF}, typesOf(t, toks))
}

func TestTokenize_AssignmentWord(t *testing.T) {
	toks, err := Tokenize("x=1")
	require.NoError(t, err)
	require.Equal(t, token.AssignmentWord, toks[0].Type)
	require.Equal(t, "x", toks[0].AssignName)
	require.Equal(t, "1", toks[0].AssignValue)
}

func TestTokenize_AppendAssignment(t *testing.T) {
	toks, err := Tokenize("x+=1")
	require.NoError(t, err)
	require.Equal(t, token.AssignmentWord, toks[0].Type)
	require.True(t, toks[0].AssignAppend)
}

func TestTokenize_ArrayInitialization(t *testing.T) {
	toks, err := Tokenize("arr=(a b c)")
	require.NoError(t, err)
	require.Equal(t, token.ArrayInitialization, toks[0].Type)
	require.Equal(t, "arr", toks[0].AssignName)
	require.Equal(t, "(a b c)", toks[0].AssignValue)
}

func TestTokenize_ArrayElementAssignment(t *testing.T) {
	toks, err := Tokenize("arr[2]=x")
	require.NoError(t, err)
	require.Equal(t, token.ArrayElementAssignment, toks[0].Type)
	require.Equal(t, "arr", toks[0].AssignName)
	require.Equal(t, "2", toks[0].ArrayIndexExpr)
	require.Equal(t, "x", toks[0].AssignValue)
}

func TestTokenize_TwoCharOperatorsGreedy(t *testing.T) {
	toks, err := Tokenize("a && b || c")
	require.NoError(t, err)
	require.Equal(t, "&&", toks[1].Text)
	require.Equal(t, "||", toks[3].Text)
}

func TestTokenize_HeredocOperators(t *testing.T) {
	toks, err := Tokenize("cmd <<EOF")
	require.NoError(t, err)
	require.Equal(t, token.Redirect, toks[1].Type)
	require.Equal(t, "<<", toks[1].Text)
}

func TestTokenize_FdPrefixedRedirect(t *testing.T) {
	toks, err := Tokenize("cmd 2>file")
	require.NoError(t, err)
	require.Equal(t, token.Redirect, toks[1].Type)
	require.Equal(t, 2, toks[1].RedirectFD)
	require.Equal(t, ">", toks[1].RedirectOp)
}

func TestTokenize_SingleQuotedIsLiteral(t *testing.T) {
	toks, err := Tokenize(`echo 'a$b\c'`)
	require.NoError(t, err)
	require.Equal(t, token.Word, toks[1].Type)
	require.Len(t, toks[1].Parts, 1)
	require.Equal(t, token.PartSingleQuoted, toks[1].Parts[0].Type)
	require.Equal(t, `a$b\c`, toks[1].Parts[0].Text)
}

func TestTokenize_DoubleQuotedAllowsVariableExpansion(t *testing.T) {
	toks, err := Tokenize(`echo "hi $name!"`)
	require.NoError(t, err)
	require.Equal(t, token.Composite, toks[1].Type)
	var sawVar bool
	for _, p := range toks[1].Parts {
		if p.Type == token.PartVariableRef {
			sawVar = true
			require.Equal(t, "name", p.Text)
		}
	}
	require.True(t, sawVar)
}

func TestTokenize_CommandSubstitution(t *testing.T) {
	toks, err := Tokenize("x=$(echo hi)")
	require.NoError(t, err)
	require.Equal(t, token.AssignmentWord, toks[0].Type)
}

func TestTokenize_ArithSubstitution(t *testing.T) {
	toks, err := Tokenize("echo $((1+2))")
	require.NoError(t, err)
	require.Equal(t, token.Composite, toks[1].Type)
	require.Equal(t, token.PartArithSub, toks[1].Parts[0].Type)
	require.Equal(t, "1+2", toks[1].Parts[0].Text)
}

func TestTokenize_KeywordRecognizedInCommandPosition(t *testing.T) {
	toks, err := Tokenize("if true; then echo x; fi")
	require.NoError(t, err)
	require.Equal(t, token.Keyword, toks[0].Type)
	require.Equal(t, "if", toks[0].Text)
}

func TestTokenize_LineContinuationDisappears(t *testing.T) {
	toks, err := Tokenize("echo a\\\nb")
	require.NoError(t, err)
	require.Equal(t, "ab", toks[1].Text)
}

func TestTokenize_UnterminatedSingleQuoteFails(t *testing.T) {
	_, err := Tokenize("echo 'unterminated")
	require.Error(t, err)
}

func TestCollectHereDoc_StopsAtDelimiter(t *testing.T) {
	l := New("line one\nline two\nEOF\nnext command\n")
	body, err := l.CollectHereDoc("EOF", false)
	require.NoError(t, err)
	require.Equal(t, "line one\nline two", body)
}

func TestCollectHereDoc_StripTabsForm(t *testing.T) {
	l := New("\t\tindented\nEOF\n")
	body, err := l.CollectHereDoc("EOF", true)
	require.NoError(t, err)
	require.Equal(t, "indented", body)
}

func TestTokenize_QuotedHeredocDelimiterMatches(t *testing.T) {
	toks, err := Tokenize("cat <<'EOF'\n$HOME stays literal\nEOF\n")
	require.NoError(t, err)
	require.Equal(t, token.Redirect, toks[1].Type)
	require.Equal(t, "$HOME stays literal", toks[1].HereDocBody)
	require.True(t, toks[1].HereDocQuoted)
}

func TestTokenize_BraceStaysInsideWord(t *testing.T) {
	toks, err := Tokenize("echo file{1,2}.txt")
	require.NoError(t, err)
	require.Equal(t, token.Word, toks[1].Type)
	require.Equal(t, "file{1,2}.txt", toks[1].Text)
}

func TestTokenize_BraceGroupKeywords(t *testing.T) {
	toks, err := Tokenize("{ echo hi; }")
	require.NoError(t, err)
	require.Equal(t, token.Keyword, toks[0].Type)
	require.Equal(t, "{", toks[0].Text)
	require.Equal(t, token.Keyword, toks[4].Type)
	require.Equal(t, "}", toks[4].Text)
}
