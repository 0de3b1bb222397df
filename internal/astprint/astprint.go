// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package astprint renders an AST back to shell source text. It backs
// three concrete needs: the parse/pretty-print/re-parse round-trip
// invariant (§8), `declare -f`/`type` printing a function's
// body, and re-serializing a background job's (§5 "&") or subshell's
// (§4.5.5) body so internal/exec can hand it to a freshly self-exec'd
// ash process rather than attempting to fork mid-interpreter — Go
// cannot safely continue running Go code in a raw forked child, so
// ash isolates those constructs by running an independent process
// over the original source instead (see internal/exec package doc).
package astprint

import (
	"fmt"
	"strings"

	"github.com/aleutianshell/ash/internal/ast"
)

// Node renders a single AST node as shell source.
func Node(n ast.Node) string {
	var sb strings.Builder
	writeNode(&sb, n, 0)
	return sb.String()
}

// StatementList renders a statement list's items separated by newlines.
func StatementList(sl *ast.StatementList) string {
	var sb strings.Builder
	writeStatementList(&sb, sl, 0)
	return sb.String()
}

func indent(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
}

func writeStatementList(sb *strings.Builder, sl *ast.StatementList, depth int) {
	if sl == nil {
		return
	}
	for _, item := range sl.Items {
		indent(sb, depth)
		writeNode(sb, item.Node, depth)
		if item.Background {
			sb.WriteString(" &")
		} else {
			sb.WriteString(";")
		}
		sb.WriteString("\n")
	}
}

func writeNode(sb *strings.Builder, n ast.Node, depth int) {
	switch v := n.(type) {
	case *ast.SimpleCommand:
		writeSimpleCommand(sb, v)
	case *ast.Pipeline:
		writePipeline(sb, v, depth)
	case *ast.AndOrList:
		writeAndOrList(sb, v, depth)
	case *ast.StatementList:
		sb.WriteString("{\n")
		writeStatementList(sb, v, depth+1)
		indent(sb, depth)
		sb.WriteString("}")
	case *ast.IfConditional:
		writeIf(sb, v, depth)
	case *ast.WhileLoop:
		sb.WriteString("while ")
		writeStatementList(sb, v.Cond, 0)
		sb.WriteString("do\n")
		writeStatementList(sb, v.Body, depth+1)
		indent(sb, depth)
		sb.WriteString("done")
	case *ast.UntilLoop:
		sb.WriteString("until ")
		writeStatementList(sb, v.Cond, 0)
		sb.WriteString("do\n")
		writeStatementList(sb, v.Body, depth+1)
		indent(sb, depth)
		sb.WriteString("done")
	case *ast.ForLoop:
		writeForLoop(sb, v, depth)
	case *ast.CStyleForLoop:
		fmt.Fprintf(sb, "for ((%s; %s; %s)); do\n", v.Init, v.Cond, v.Update)
		writeStatementList(sb, v.Body, depth+1)
		indent(sb, depth)
		sb.WriteString("done")
	case *ast.CaseConditional:
		writeCase(sb, v, depth)
	case *ast.SelectLoop:
		sb.WriteString("select ")
		sb.WriteString(v.Variable)
		sb.WriteString(" in ")
		sb.WriteString(joinWords(v.IterableWords))
		sb.WriteString("; do\n")
		writeStatementList(sb, v.Body, depth+1)
		indent(sb, depth)
		sb.WriteString("done")
	case *ast.FunctionDef:
		fmt.Fprintf(sb, "%s() ", v.Name)
		writeNode(sb, v.Body, depth)
	case *ast.SubshellGroup:
		sb.WriteString("(\n")
		writeStatementList(sb, v.Body, depth+1)
		indent(sb, depth)
		sb.WriteString(")")
	case *ast.BraceGroup:
		sb.WriteString("{\n")
		writeStatementList(sb, v.Body, depth+1)
		indent(sb, depth)
		sb.WriteString("}")
	case *ast.ArithmeticEvaluation:
		fmt.Fprintf(sb, "((%s))", v.Expression)
	case *ast.EnhancedTestStatement:
		sb.WriteString("[[ ")
		sb.WriteString(writeTestExpr(v.Expr))
		sb.WriteString(" ]]")
	case *ast.RedirectedCommand:
		writeNode(sb, v.Node, depth)
		for _, r := range v.Redirects {
			sb.WriteString(" ")
			sb.WriteString(writeRedirect(r))
		}
	case *ast.ArrayInitialization:
		writeArrayInit(sb, v)
	case *ast.ArrayElementAssignment:
		writeArrayElementAssignment(sb, v)
	case *ast.BreakStatement:
		writeLevel(sb, "break", v.Level)
	case *ast.ContinueStatement:
		writeLevel(sb, "continue", v.Level)
	case *ast.TopLevel:
		writeStatementList(sb, v.Body, depth)
	default:
		sb.WriteString(":")
	}
}

func writeLevel(sb *strings.Builder, name string, level int) {
	sb.WriteString(name)
	if level > 1 {
		fmt.Fprintf(sb, " %d", level)
	}
}

func writeSimpleCommand(sb *strings.Builder, c *ast.SimpleCommand) {
	var parts []string
	for _, a := range c.Assignments {
		op := "="
		if a.Append {
			op = "+="
		}
		parts = append(parts, a.Name+op+wordText(a.Value))
	}
	for _, w := range c.Args {
		parts = append(parts, wordText(w))
	}
	sb.WriteString(strings.Join(parts, " "))
	for _, r := range c.Redirects {
		sb.WriteString(" ")
		sb.WriteString(writeRedirect(r))
	}
}

func writeRedirect(r ast.Redirect) string {
	op := redirOpText(r.Op)
	fdPrefix := ""
	if r.FD >= 0 {
		fdPrefix = fmt.Sprintf("%d", r.FD)
	}
	switch r.Op {
	case ast.RedirHereDoc, ast.RedirHereDocStrip:
		// The body was already collected at lex time; a here-string
		// round-trips it without re-quoting a delimiter. A quoted
		// delimiter's body stays literal; an unexpanded body keeps its
		// substitutions live inside double quotes, matching the
		// original here-doc's expansion rule.
		body := strings.TrimSuffix(r.HereDocBody, "\n")
		if r.HereDocQuot {
			return fdPrefix + "<<< " + Quote(body)
		}
		return fdPrefix + `<<< "` + strings.ReplaceAll(body, `"`, `\"`) + `"`
	default:
		return fdPrefix + op + wordText(r.Target)
	}
}

func redirOpText(op ast.RedirOp) string {
	switch op {
	case ast.RedirInput:
		return "<"
	case ast.RedirOutput:
		return ">"
	case ast.RedirAppend:
		return ">>"
	case ast.RedirReadWrite:
		return "<>"
	case ast.RedirDupInput:
		return "<&"
	case ast.RedirDupOutput:
		return ">&"
	case ast.RedirHereDoc:
		return "<<"
	case ast.RedirHereDocStrip:
		return "<<-"
	case ast.RedirHereString:
		return "<<<"
	case ast.RedirClobber:
		return ">|"
	case ast.RedirBothOutput:
		return "&>"
	case ast.RedirBothAppend:
		return "&>>"
	default:
		return ">"
	}
}

func writePipeline(sb *strings.Builder, p *ast.Pipeline, depth int) {
	if p.Timed {
		sb.WriteString("time ")
	}
	if p.Negated {
		sb.WriteString("! ")
	}
	for i, c := range p.Commands {
		if i > 0 {
			sb.WriteString(" | ")
		}
		writeNode(sb, c, depth)
	}
}

func writeAndOrList(sb *strings.Builder, a *ast.AndOrList, depth int) {
	for i, p := range a.Pipelines {
		if i > 0 {
			if a.Operators[i-1] == ast.AndOp {
				sb.WriteString(" && ")
			} else {
				sb.WriteString(" || ")
			}
		}
		writePipeline(sb, p, depth)
	}
}

func writeIf(sb *strings.Builder, v *ast.IfConditional, depth int) {
	for i, br := range v.Branches {
		if i == 0 {
			sb.WriteString("if ")
		} else {
			indent(sb, depth)
			sb.WriteString("elif ")
		}
		writeStatementList(sb, br.Cond, 0)
		sb.WriteString("then\n")
		writeStatementList(sb, br.Body, depth+1)
	}
	if v.Else != nil {
		indent(sb, depth)
		sb.WriteString("else\n")
		writeStatementList(sb, v.Else, depth+1)
	}
	indent(sb, depth)
	sb.WriteString("fi")
}

func writeForLoop(sb *strings.Builder, v *ast.ForLoop, depth int) {
	sb.WriteString("for ")
	sb.WriteString(v.Variable)
	if v.HasInClause {
		sb.WriteString(" in ")
		sb.WriteString(joinWords(v.IterableWords))
	}
	sb.WriteString("; do\n")
	writeStatementList(sb, v.Body, depth+1)
	indent(sb, depth)
	sb.WriteString("done")
}

func writeCase(sb *strings.Builder, v *ast.CaseConditional, depth int) {
	sb.WriteString("case ")
	sb.WriteString(wordText(v.Scrutinee))
	sb.WriteString(" in\n")
	for _, item := range v.Items {
		indent(sb, depth+1)
		sb.WriteString(joinWordsSep(item.Patterns, "|"))
		sb.WriteString(")\n")
		writeStatementList(sb, item.Body, depth+2)
		indent(sb, depth+2)
		switch item.Terminator {
		case ast.TermFallThrough:
			sb.WriteString(";&\n")
		case ast.TermContinueMatch:
			sb.WriteString(";;&\n")
		default:
			sb.WriteString(";;\n")
		}
	}
	indent(sb, depth)
	sb.WriteString("esac")
}

func writeArrayInit(sb *strings.Builder, v *ast.ArrayInitialization) {
	op := "="
	if v.Append {
		op = "+="
	}
	fmt.Fprintf(sb, "%s%s(%s)", v.Name, op, joinWords(v.Elements))
}

func writeArrayElementAssignment(sb *strings.Builder, v *ast.ArrayElementAssignment) {
	op := "="
	if v.Append {
		op = "+="
	}
	fmt.Fprintf(sb, "%s[%s]%s%s", v.Name, v.Index, op, wordText(v.Value))
}

func joinWords(ws []ast.Word) string { return joinWordsSep(ws, " ") }

func joinWordsSep(ws []ast.Word, sep string) string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = wordText(w)
	}
	return strings.Join(out, sep)
}

// wordText renders a word as close to its original surface form as
// the retained token text allows; composite words keep their raw
// source text (token.Token.Text) since the lexer preserves it verbatim.
func wordText(w ast.Word) string {
	if w.Tok.Text != "" {
		return w.Tok.Text
	}
	return ""
}

// Quote renders s as a single-quoted shell word, safe to splice
// verbatim into generated source (variable/function preludes, `printf
// %q`-style builtin output). Single quotes themselves are the only
// character that needs escaping inside a single-quoted string: each
// becomes '\'' (close quote, escaped literal quote, reopen quote).
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func writeTestExpr(e ast.TestExpr) string {
	switch v := e.(type) {
	case *ast.TestUnary:
		return v.Op + " " + wordText(v.Operand)
	case *ast.TestBinary:
		return wordText(v.Left) + " " + v.Op + " " + wordText(v.Right)
	case *ast.TestNot:
		return "! " + writeTestExpr(v.Expr)
	case *ast.TestAnd:
		return writeTestExpr(v.Left) + " && " + writeTestExpr(v.Right)
	case *ast.TestOr:
		return writeTestExpr(v.Left) + " || " + writeTestExpr(v.Right)
	case *ast.TestGroup:
		return "( " + writeTestExpr(v.Expr) + " )"
	default:
		return ""
	}
}
