// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parser

import (
	"testing"

	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/token"
	"github.com/stretchr/testify/require"
)

func TestParse_SimpleCommand(t *testing.T) {
	top, err := Parse("echo hello world", ModeBash)
	require.NoError(t, err)
	require.Len(t, top.Body.Items, 1)
	cmd, ok := top.Body.Items[0].Node.(*ast.SimpleCommand)
	require.True(t, ok)
	require.Len(t, cmd.Args, 2)
}

func TestParse_Pipeline(t *testing.T) {
	top, err := Parse("false | true", ModeBash)
	require.NoError(t, err)
	pl, ok := top.Body.Items[0].Node.(*ast.Pipeline)
	require.True(t, ok)
	require.Len(t, pl.Commands, 2)
}

func TestParse_AndOrList(t *testing.T) {
	top, err := Parse("true && echo yes || echo no", ModeBash)
	require.NoError(t, err)
	al, ok := top.Body.Items[0].Node.(*ast.AndOrList)
	require.True(t, ok)
	require.Len(t, al.Pipelines, 3)
	require.Equal(t, []ast.AndOrOp{ast.AndOp, ast.OrOp}, al.Operators)
}

func TestParse_IfElif(t *testing.T) {
	top, err := Parse("if false; then echo a; elif true; then echo b; else echo c; fi", ModeBash)
	require.NoError(t, err)
	ifNode, ok := top.Body.Items[0].Node.(*ast.IfConditional)
	require.True(t, ok)
	require.Len(t, ifNode.Branches, 2)
	require.NotNil(t, ifNode.Else)
}

func TestParse_WhileLoop(t *testing.T) {
	top, err := Parse("while true; do echo x; done", ModeBash)
	require.NoError(t, err)
	_, ok := top.Body.Items[0].Node.(*ast.WhileLoop)
	require.True(t, ok)
}

func TestParse_ForInLoop(t *testing.T) {
	top, err := Parse("for v in a b c; do echo $v; done", ModeBash)
	require.NoError(t, err)
	f, ok := top.Body.Items[0].Node.(*ast.ForLoop)
	require.True(t, ok)
	require.Equal(t, "v", f.Variable)
	require.Len(t, f.IterableWords, 3)
}

func TestParse_CStyleForLoop(t *testing.T) {
	top, err := Parse("for ((i=0;i<3;i++)); do echo $i; done", ModeBash)
	require.NoError(t, err)
	f, ok := top.Body.Items[0].Node.(*ast.CStyleForLoop)
	require.True(t, ok)
	require.Equal(t, "i=0", f.Init)
	require.Equal(t, "i<3", f.Cond)
	require.Equal(t, "i++", f.Update)
}

func TestParse_CaseWithFallthrough(t *testing.T) {
	top, err := Parse("case x in x) echo 1 ;& y) echo 2 ;; esac", ModeBash)
	require.NoError(t, err)
	c, ok := top.Body.Items[0].Node.(*ast.CaseConditional)
	require.True(t, ok)
	require.Len(t, c.Items, 2)
	require.Equal(t, ast.TermFallThrough, c.Items[0].Terminator)
}

func TestParse_FunctionDefBothForms(t *testing.T) {
	top, err := Parse("f() { echo hi; }", ModeBash)
	require.NoError(t, err)
	fn, ok := top.Body.Items[0].Node.(*ast.FunctionDef)
	require.True(t, ok)
	require.Equal(t, "f", fn.Name)

	top2, err := Parse("function g { echo hi; }", ModeBash)
	require.NoError(t, err)
	fn2, ok := top2.Body.Items[0].Node.(*ast.FunctionDef)
	require.True(t, ok)
	require.Equal(t, "g", fn2.Name)
}

func TestParse_Subshell(t *testing.T) {
	top, err := Parse("(echo hi)", ModeBash)
	require.NoError(t, err)
	_, ok := top.Body.Items[0].Node.(*ast.SubshellGroup)
	require.True(t, ok)
}

func TestParse_ArithmeticCommand(t *testing.T) {
	top, err := Parse("((1+2))", ModeBash)
	require.NoError(t, err)
	a, ok := top.Body.Items[0].Node.(*ast.ArithmeticEvaluation)
	require.True(t, ok)
	require.Equal(t, "1+2", a.Expression)
}

func TestParse_EnhancedTest(t *testing.T) {
	top, err := Parse("[[ -f foo.txt ]]", ModeBash)
	require.NoError(t, err)
	e, ok := top.Body.Items[0].Node.(*ast.EnhancedTestStatement)
	require.True(t, ok)
	u, ok := e.Expr.(*ast.TestUnary)
	require.True(t, ok)
	require.Equal(t, "-f", u.Op)
}

func TestParse_HereDoc(t *testing.T) {
	top, err := Parse("cat <<EOF\nhello\nworld\nEOF\n", ModeBash)
	require.NoError(t, err)
	cmd, ok := top.Body.Items[0].Node.(*ast.SimpleCommand)
	require.True(t, ok)
	require.Len(t, cmd.Redirects, 1)
	require.Equal(t, "hello\nworld", cmd.Redirects[0].HereDocBody)
}

func TestParse_Redirection(t *testing.T) {
	top, err := Parse("echo hi > out.txt 2>&1", ModeBash)
	require.NoError(t, err)
	cmd := top.Body.Items[0].Node.(*ast.SimpleCommand)
	require.Len(t, cmd.Redirects, 2)
	require.Equal(t, ast.RedirOutput, cmd.Redirects[0].Op)
	require.Equal(t, ast.RedirDupOutput, cmd.Redirects[1].Op)
	require.Equal(t, 2, cmd.Redirects[1].FD)
}

func TestParse_PermissiveModeCollectsErrors(t *testing.T) {
	_, err := Parse("if true; then echo a", ModePermissive)
	require.Error(t, err)
}

func TestParse_AssignmentOnlyCommand(t *testing.T) {
	top, err := Parse("x=1 y=2", ModeBash)
	require.NoError(t, err)
	cmd := top.Body.Items[0].Node.(*ast.SimpleCommand)
	require.Len(t, cmd.Assignments, 2)
	require.Empty(t, cmd.Args)
}

func TestParse_AssignmentValueKeepsSubstitutionParts(t *testing.T) {
	top, err := Parse("x=$HOME/bin", ModeBash)
	require.NoError(t, err)
	cmd := top.Body.Items[0].Node.(*ast.SimpleCommand)
	require.Len(t, cmd.Assignments, 1)
	var sawVar bool
	for _, p := range cmd.Assignments[0].Value.Tok.Parts {
		if p.Type == token.PartVariableRef {
			sawVar = true
		}
	}
	require.True(t, sawVar, "assignment RHS must carry a variable-ref part, not literal text")
}

func TestParse_ArrayInitialization(t *testing.T) {
	top, err := Parse("arr=(a b c)", ModeBash)
	require.NoError(t, err)
	ai, ok := top.Body.Items[0].Node.(*ast.ArrayInitialization)
	require.True(t, ok)
	require.Equal(t, "arr", ai.Name)
	require.Len(t, ai.Elements, 3)
	require.False(t, ai.Append)
}

func TestParse_ArrayAppendInitialization(t *testing.T) {
	top, err := Parse("arr+=(d e)", ModeBash)
	require.NoError(t, err)
	ai := top.Body.Items[0].Node.(*ast.ArrayInitialization)
	require.True(t, ai.Append)
	require.Len(t, ai.Elements, 2)
}

func TestParse_ArrayElementAssignment(t *testing.T) {
	top, err := Parse("arr[2]=x", ModeBash)
	require.NoError(t, err)
	ae, ok := top.Body.Items[0].Node.(*ast.ArrayElementAssignment)
	require.True(t, ok)
	require.Equal(t, "arr", ae.Name)
	require.Equal(t, "2", ae.Index)
}

func TestParse_CompoundCommandTrailingRedirect(t *testing.T) {
	top, err := Parse("while true; do echo x; done > out.txt", ModeBash)
	require.NoError(t, err)
	rc, ok := top.Body.Items[0].Node.(*ast.RedirectedCommand)
	require.True(t, ok)
	_, ok = rc.Node.(*ast.WhileLoop)
	require.True(t, ok)
	require.Len(t, rc.Redirects, 1)
	require.Equal(t, ast.RedirOutput, rc.Redirects[0].Op)
}

func TestParse_BackgroundStatement(t *testing.T) {
	top, err := Parse("sleep 5 &", ModeBash)
	require.NoError(t, err)
	require.True(t, top.Body.Items[0].Background)
}
