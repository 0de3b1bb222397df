// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ast defines the shell's abstract syntax tree: leaves,
// composite nodes, and the redirection descriptor shared by every
// command form, per the data model's AST nodes section.
package ast

import "github.com/aleutianshell/ash/internal/token"

// Node is implemented by every AST node. It exists purely to give the
// Executor visitor a single type to switch over; it carries no
// behavior of its own (exhaustive type switches, not virtual dispatch,
// per the union-typed-values design note).
type Node interface{ isNode() }

// Word is a single shell word as the parser hands it to the expansion
// engine: its composite token plus a Quoted flag used when the whole
// word was produced from a single quoted string (so phase 4/5 of
// expansion can skip splitting/globbing it outright).
type Word struct {
	Tok    token.Token
	Quoted bool
}

// RedirOp enumerates the redirection operators (§3 Redirection descriptor).
type RedirOp int

const (
	RedirInput RedirOp = iota
	RedirOutput
	RedirAppend
	RedirReadWrite
	RedirDupInput
	RedirDupOutput
	RedirHereDoc
	RedirHereDocStrip
	RedirHereString
	RedirClobber
	RedirBothOutput
	RedirBothAppend
)

// Redirect is the redirection descriptor attached to any command.
type Redirect struct {
	FD          int // -1 means "use the operator's default fd"
	Op          RedirOp
	Target      Word // file path, or fd number as text for dup forms
	TargetIsFD  bool
	HereDocBody string // populated for RedirHereDoc[Strip] after collection
	HereDocQuot bool   // true if the delimiter was quoted (suppresses expansion)
}

// RedirectedCommand attaches trailing redirections to a compound
// command; they apply to the command's entire body (§4.2
// "CompoundCommand Redirect*"). Simple commands carry their own
// Redirects field instead.
type RedirectedCommand struct {
	Node      Node
	Redirects []Redirect
}

func (*RedirectedCommand) isNode() {}

// --- Leaves ---

// Assignment is one NAME=VALUE or NAME+=VALUE pair preceding a simple command.
type Assignment struct {
	Name   string
	Append bool
	Value  Word
}

// SimpleCommand is a command name, its arguments, leading assignments,
// and attached redirections.
type SimpleCommand struct {
	Assignments []Assignment
	Args        []Word
	Redirects   []Redirect
	Background  bool
}

func (*SimpleCommand) isNode() {}

// BreakStatement unwinds Level nested loops.
type BreakStatement struct{ Level int }

func (*BreakStatement) isNode() {}

// ContinueStatement unwinds to the top of Level nested loops.
type ContinueStatement struct{ Level int }

func (*ContinueStatement) isNode() {}

// --- Composites ---

// Pipeline is a `!`-negatable sequence of one or more commands joined
// by `|`; a `time` prefix makes the executor report the pipeline's
// wall-clock and CPU times on stderr.
type Pipeline struct {
	Commands []Node
	Negated  bool
	Timed    bool
}

func (*Pipeline) isNode() {}

// AndOrOp is `&&` or `||` joining pipelines in an AndOrList.
type AndOrOp int

const (
	AndOp AndOrOp = iota
	OrOp
)

// AndOrList is a left-to-right, short-circuit sequence of pipelines.
type AndOrList struct {
	Pipelines []*Pipeline
	Operators []AndOrOp // len(Operators) == len(Pipelines)-1
}

func (*AndOrList) isNode() {}

// StatementListItem pairs a top-level/compound-body statement with how
// it was terminated, since `&` (background) changes execution but not
// the node shape.
type StatementListItem struct {
	Node       Node
	Background bool
}

// StatementList is an ordered sequence of statements, used for TopLevel
// input and every compound command's body.
type StatementList struct {
	Items []StatementListItem
}

func (*StatementList) isNode() {}

// TopLevel is the parser's output: the whole parsed program.
type TopLevel struct {
	Body *StatementList
}

func (*TopLevel) isNode() {}

// IfConditional is `if C1; then B1; elif C2; then B2; ...; else Be; fi`.
type IfBranch struct {
	Cond *StatementList
	Body *StatementList
}

type IfConditional struct {
	Branches []IfBranch // first entry is the `if`, rest are `elif`
	Else     *StatementList
}

func (*IfConditional) isNode() {}

// WhileLoop is `while C; do B; done`.
type WhileLoop struct {
	Cond *StatementList
	Body *StatementList
}

func (*WhileLoop) isNode() {}

// UntilLoop is `until C; do B; done`.
type UntilLoop struct {
	Cond *StatementList
	Body *StatementList
}

func (*UntilLoop) isNode() {}

// ForLoop is `for v in words; do B; done`.
type ForLoop struct {
	Variable       string
	IterableWords  []Word
	HasInClause    bool // false means iterate over "$@" (no `in` clause)
	Body           *StatementList
}

func (*ForLoop) isNode() {}

// CStyleForLoop is `for ((init; cond; update)); do B; done`. Any of
// Init/Cond/Update may be empty (empty Cond means "true").
type CStyleForLoop struct {
	Init, Cond, Update string
	Body               *StatementList
}

func (*CStyleForLoop) isNode() {}

// CaseTerminator distinguishes `;;`, `;&`, `;;&`.
type CaseTerminator int

const (
	TermBreak      CaseTerminator = iota // ;;
	TermFallThrough                      // ;&
	TermContinueMatch                    // ;;&
)

// CaseItem is one `pattern[|pattern...]) body terminator` clause.
type CaseItem struct {
	Patterns   []Word
	Body       *StatementList
	Terminator CaseTerminator
}

// CaseConditional is `case x in ... esac`.
type CaseConditional struct {
	Scrutinee Word
	Items     []CaseItem
}

func (*CaseConditional) isNode() {}

// SelectLoop is `select v in words; do B; done`.
type SelectLoop struct {
	Variable      string
	IterableWords []Word
	Body          *StatementList
}

func (*SelectLoop) isNode() {}

// FunctionDef is `name() compound-command` or `function name { ... }`.
type FunctionDef struct {
	Name string
	Body Node // a BraceGroup, SubshellGroup, or any compound command
}

func (*FunctionDef) isNode() {}

// SubshellGroup is `( ... )`: runs Body in a forked child.
type SubshellGroup struct{ Body *StatementList }

func (*SubshellGroup) isNode() {}

// BraceGroup is `{ ... }`: runs Body in the current shell, no fork.
type BraceGroup struct{ Body *StatementList }

func (*BraceGroup) isNode() {}

// ArithmeticEvaluation is `((expression))` used as a command (exit
// status 0 if the expression is non-zero, 1 if zero).
type ArithmeticEvaluation struct{ Expression string }

func (*ArithmeticEvaluation) isNode() {}

// EnhancedTestStatement is `[[ expression ]]`, parsed into its own
// small expression tree below rather than re-tokenized as a command.
type EnhancedTestStatement struct{ Expr TestExpr }

func (*EnhancedTestStatement) isNode() {}

// TestExpr is the `[[ ... ]]` sub-grammar: unary/binary file and string
// tests composed with &&, ||, !, and parens.
type TestExpr interface{ isTestExpr() }

type TestUnary struct {
	Op      string // -e -f -d -r -w -x -s -z -n, etc.
	Operand Word
}

func (*TestUnary) isTestExpr() {}

type TestBinary struct {
	Op          string // = != =~ -eq -ne -lt -le -gt -ge -nt -ot -ef
	Left, Right Word
}

func (*TestBinary) isTestExpr() {}

type TestNot struct{ Expr TestExpr }

func (*TestNot) isTestExpr() {}

type TestAnd struct{ Left, Right TestExpr }

func (*TestAnd) isTestExpr() {}

type TestOr struct{ Left, Right TestExpr }

func (*TestOr) isTestExpr() {}

type TestGroup struct{ Expr TestExpr }

func (*TestGroup) isTestExpr() {}

// ArrayInitialization is `name=(e1 e2 ...)` or `name+=(...)`.
type ArrayInitialization struct {
	Name     string
	Elements []Word
	Append   bool
}

func (*ArrayInitialization) isNode() {}

// ArrayElementAssignment is `name[index]=value` or `name[index]+=value`.
type ArrayElementAssignment struct {
	Name   string
	Index  string // arithmetic expression text for indexed; literal key text for assoc
	Value  Word
	Append bool
}

func (*ArrayElementAssignment) isNode() {}
