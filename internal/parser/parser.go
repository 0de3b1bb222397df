// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package parser implements the recursive-descent parser: token
// stream in, typed AST out, per the parser component. The parser is
// pluggable across Mode: POSIX, bash-compatible, and permissive
// (record SyntaxErrors in a multierror rather than returning at once);
// the AST shape does not vary across modes.
package parser

import (
	"strings"

	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/lexer"
	"github.com/aleutianshell/ash/internal/shellerr"
	"github.com/aleutianshell/ash/internal/token"
)

// Mode selects the parser's strictness/feature set.
type Mode int

const (
	// ModeBash is the default: full bash-compatible grammar.
	ModeBash Mode = iota
	// ModePOSIX parses the same grammar as ModeBash; it does not reject
	// [[ ]], select, ;&, ;;& or the C-style for.
	ModePOSIX
	// ModePermissive records each SyntaxError in a multierror instead of
	// returning it at once. Parsing of the statement list that holds the
	// failing construct stops there, and Parse returns the statements
	// parsed so far together with the collected errors.
	ModePermissive
)

// Parser holds parse state over a token stream produced by the lexer.
// Here-document bodies are already collected into their Redirect
// token by lexer.Tokenize, so the parser only copies them onto the
// AST node.
type Parser struct {
	toks []token.Token
	pos  int
	mode Mode
	errs error
}

// New creates a Parser in the given Mode over src.
func New(src string, mode Mode) (*Parser, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks, mode: mode}, nil
}

// Parse parses the whole token stream into a TopLevel AST.
func Parse(src string, mode Mode) (*ast.TopLevel, error) {
	p, err := New(src, mode)
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatementList(nil)
	if err != nil {
		return nil, err
	}
	if p.mode == ModePermissive && p.errs != nil {
		return &ast.TopLevel{Body: body}, p.errs
	}
	return &ast.TopLevel{Body: body}, nil
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) advance() token.Token { t := p.cur(); if p.pos < len(p.toks)-1 { p.pos++ }; return t }

func (p *Parser) fail(format string, args ...any) error {
	err := shellerr.NewAt(shellerr.KindSyntax, p.cur().Pos, format, args...)
	if p.mode == ModePermissive {
		p.errs = shellerr.Append(p.errs, err)
		return nil
	}
	return err
}

func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	if t.Type == token.Keyword {
		return t.Text == kw
	}
	// The lexer only types command-position occurrences as Keyword;
	// reserved words the grammar asks about in other spots (`in` after
	// a for-loop variable, `do` on the same line, `{` after `()`) come
	// through as plain words. They still bind here unless quoted.
	if t.Type == token.Word && t.Text == kw && token.KeywordSet[kw] {
		return len(t.Parts) == 0 || (len(t.Parts) == 1 && t.Parts[0].Type == token.PartLiteral)
	}
	return false
}

func (p *Parser) isOp(op string) bool {
	return (p.cur().Type == token.Operator || p.cur().Type == token.Keyword) && p.cur().Text == op
}

func (p *Parser) skipSeparators() {
	for p.cur().Type == token.Newline || p.isOp(";") {
		p.advance()
	}
}

// atTerminator reports whether the current token should
// terminate a StatementList given the enclosing terminator keywords.
func (p *Parser) atTerminator(terms ...string) bool {
	if p.cur().Type == token.EOF {
		return true
	}
	for _, t := range terms {
		if p.isKeyword(t) {
			return true
		}
	}
	return false
}

// parseStatementList parses `(AndOrList sep)*` until one of terms (or
// EOF) is seen without consuming the terminator.
func (p *Parser) parseStatementList(terms []string) (*ast.StatementList, error) {
	list := &ast.StatementList{}
	p.skipSeparators()
	for !p.atTerminator(terms...) {
		node, err := p.parseAndOrAsNode()
		if err != nil {
			return nil, err
		}
		if node == nil {
			break
		}
		bg := false
		if p.isOp("&") {
			p.advance()
			bg = true
		}
		list.Items = append(list.Items, ast.StatementListItem{Node: node, Background: bg})
		if p.isOp(";") || p.cur().Type == token.Newline {
			p.skipSeparators()
			continue
		}
		if p.atTerminator(terms...) {
			break
		}
		if bg {
			continue
		}
		break
	}
	return list, nil
}

func (p *Parser) parseAndOrAsNode() (ast.Node, error) {
	if p.atTerminator() {
		return nil, nil
	}
	al, err := p.parseAndOrList()
	if err != nil || al == nil {
		return nil, err
	}
	if len(al.Pipelines) == 1 && len(al.Operators) == 0 {
		pl := al.Pipelines[0]
		if len(pl.Commands) == 1 && !pl.Negated && !pl.Timed {
			return pl.Commands[0], nil
		}
		return pl, nil
	}
	return al, nil
}

func (p *Parser) parseAndOrList() (*ast.AndOrList, error) {
	first, err := p.parsePipeline()
	if err != nil || first == nil {
		return nil, err
	}
	al := &ast.AndOrList{Pipelines: []*ast.Pipeline{first}}
	for p.isOp("&&") || p.isOp("||") {
		op := ast.AndOp
		if p.cur().Text == "||" {
			op = ast.OrOp
		}
		p.advance()
		p.skipSeparators()
		next, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, p.fail("expected command after %q", opText(op))
		}
		al.Operators = append(al.Operators, op)
		al.Pipelines = append(al.Pipelines, next)
	}
	return al, nil
}

func opText(op ast.AndOrOp) string {
	if op == ast.OrOp {
		return "||"
	}
	return "&&"
}

func (p *Parser) parsePipeline() (*ast.Pipeline, error) {
	timed := false
	if p.isKeyword("time") {
		timed = true
		p.advance()
		if p.cur().Type == token.Word && p.cur().Text == "-p" {
			p.advance()
		}
	}
	negated := false
	if p.isKeyword("!") {
		negated = true
		p.advance()
	}
	first, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	if first == nil {
		if negated {
			return nil, p.fail("expected command after '!'")
		}
		if timed {
			return nil, p.fail("expected command after 'time'")
		}
		return nil, nil
	}
	pl := &ast.Pipeline{Commands: []ast.Node{first}, Negated: negated, Timed: timed}
	for p.isOp("|") {
		p.advance()
		p.skipSeparators()
		next, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, p.fail("expected command after '|'")
		}
		pl.Commands = append(pl.Commands, next)
	}
	return pl, nil
}

func (p *Parser) parseCommand() (ast.Node, error) {
	var node ast.Node
	var err error
	compound := true
	switch {
	case p.isKeyword("if"):
		node, err = p.parseIf()
	case p.isKeyword("while"):
		node, err = p.parseWhile()
	case p.isKeyword("until"):
		node, err = p.parseUntil()
	case p.isKeyword("for"):
		node, err = p.parseFor()
	case p.isKeyword("case"):
		node, err = p.parseCase()
	case p.isKeyword("select"):
		node, err = p.parseSelect()
	case p.isKeyword("function"):
		node, err = p.parseFunctionKeyword()
	case p.isKeyword("{"):
		node, err = p.parseBraceGroup()
	case p.cur().Type == token.ArithCommand:
		expr := p.advance().Text
		node = &ast.ArithmeticEvaluation{Expression: expr}
	case p.isOp("("):
		node, err = p.parseSubshellOrArith()
	case p.isKeyword("[["):
		node, err = p.parseEnhancedTest()
	case p.cur().Type == token.ArrayInitialization:
		node, err = p.parseArrayInit()
		compound = false
	case p.cur().Type == token.ArrayElementAssignment:
		tok := p.advance()
		node = &ast.ArrayElementAssignment{
			Name: tok.AssignName, Index: tok.ArrayIndexExpr,
			Value: p.wordFromRaw(tok.AssignValue), Append: tok.AssignAppend,
		}
		compound = false
	default:
		return p.parseSimpleCommandOrFunctionDef()
	}
	if err != nil || node == nil || !compound {
		return node, err
	}
	// Redirections may trail any compound command and apply to its whole
	// body (§4.2 "CompoundCommand Redirect*").
	var redirects []ast.Redirect
	for p.cur().Type == token.Redirect {
		r, rerr := p.parseRedirect()
		if rerr != nil {
			return nil, rerr
		}
		redirects = append(redirects, *r)
	}
	if len(redirects) > 0 {
		return &ast.RedirectedCommand{Node: node, Redirects: redirects}, nil
	}
	return node, nil
}

// parseArrayInit turns an ArrayInitialization token's parenthesized
// element text back through the lexer so each element keeps its own
// composite parts (quotes, substitutions) for elementwise expansion.
func (p *Parser) parseArrayInit() (ast.Node, error) {
	tok := p.advance()
	inner := strings.TrimSuffix(strings.TrimPrefix(tok.AssignValue, "("), ")")
	toks, err := lexer.Tokenize(inner)
	if err != nil {
		return nil, err
	}
	var elems []ast.Word
	for _, t := range toks {
		if t.Type == token.EOF || t.Type == token.Newline {
			continue
		}
		elems = append(elems, p.wordFromToken(t))
	}
	return &ast.ArrayInitialization{Name: tok.AssignName, Elements: elems, Append: tok.AssignAppend}, nil
}

// --- if / while / until ---

func (p *Parser) parseIf() (ast.Node, error) {
	p.advance() // if
	node := &ast.IfConditional{}
	for {
		cond, err := p.parseStatementList([]string{"then"})
		if err != nil {
			return nil, err
		}
		if !p.isKeyword("then") {
			return nil, p.fail("expected 'then'")
		}
		p.advance()
		body, err := p.parseStatementList([]string{"elif", "else", "fi"})
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, ast.IfBranch{Cond: cond, Body: body})
		if p.isKeyword("elif") {
			p.advance()
			continue
		}
		break
	}
	if p.isKeyword("else") {
		p.advance()
		elseBody, err := p.parseStatementList([]string{"fi"})
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
	}
	if !p.isKeyword("fi") {
		return nil, p.fail("expected 'fi'")
	}
	p.advance()
	return node, nil
}

func (p *Parser) parseWhile() (ast.Node, error) {
	p.advance()
	cond, err := p.parseStatementList([]string{"do"})
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("do") {
		return nil, p.fail("expected 'do'")
	}
	p.advance()
	body, err := p.parseStatementList([]string{"done"})
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("done") {
		return nil, p.fail("expected 'done'")
	}
	p.advance()
	return &ast.WhileLoop{Cond: cond, Body: body}, nil
}

func (p *Parser) parseUntil() (ast.Node, error) {
	p.advance()
	cond, err := p.parseStatementList([]string{"do"})
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("do") {
		return nil, p.fail("expected 'do'")
	}
	p.advance()
	body, err := p.parseStatementList([]string{"done"})
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("done") {
		return nil, p.fail("expected 'done'")
	}
	p.advance()
	return &ast.UntilLoop{Cond: cond, Body: body}, nil
}

// --- for (both forms) ---

func (p *Parser) parseFor() (ast.Node, error) {
	p.advance() // for
	if p.cur().Type == token.ArithCommand {
		return p.parseCStyleFor()
	}
	if p.cur().Type != token.Word && p.cur().Type != token.Composite {
		return nil, p.fail("expected name after 'for'")
	}
	name := p.advance().Text
	hasIn := false
	var words []ast.Word
	if p.isKeyword("in") {
		hasIn = true
		p.advance()
		for !p.isOp(";") && p.cur().Type != token.Newline && !p.isKeyword("do") {
			words = append(words, p.wordFromToken(p.advance()))
		}
	}
	p.skipSeparators()
	if !p.isKeyword("do") {
		return nil, p.fail("expected 'do'")
	}
	p.advance()
	body, err := p.parseStatementList([]string{"done"})
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("done") {
		return nil, p.fail("expected 'done'")
	}
	p.advance()
	return &ast.ForLoop{Variable: name, IterableWords: words, HasInClause: hasIn, Body: body}, nil
}

// parseCStyleFor is grounded on the lexer slurping `((...))` whole into
// one ArithCommand token wherever a token starts with `((`; the expression text
// between the double parens is re-scanned by splitting on `;` since the
// arithmetic sub-language owns its own internal tokenization.
func (p *Parser) parseCStyleFor() (ast.Node, error) {
	inner := p.advance().Text // raw text between "((" and "))", slurped whole by the lexer
	clauses := strings.SplitN(inner, ";", 3)
	for len(clauses) < 3 {
		clauses = append(clauses, "")
	}
	p.skipSeparators()
	if !p.isKeyword("do") {
		return nil, p.fail("expected 'do'")
	}
	p.advance()
	body, err := p.parseStatementList([]string{"done"})
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("done") {
		return nil, p.fail("expected 'done'")
	}
	p.advance()
	return &ast.CStyleForLoop{
		Init: strings.TrimSpace(clauses[0]), Cond: strings.TrimSpace(clauses[1]), Update: strings.TrimSpace(clauses[2]),
		Body: body,
	}, nil
}

// --- case ---

func (p *Parser) parseCase() (ast.Node, error) {
	p.advance() // case
	scrutinee := p.wordFromToken(p.advance())
	p.skipSeparators()
	if !p.isKeyword("in") {
		return nil, p.fail("expected 'in'")
	}
	p.advance()
	p.skipSeparators()
	node := &ast.CaseConditional{Scrutinee: scrutinee}
	for !p.isKeyword("esac") {
		if p.isOp("(") {
			p.advance()
		}
		var patterns []ast.Word
		for {
			patterns = append(patterns, p.wordFromToken(p.advance()))
			if p.isOp("|") {
				p.advance()
				continue
			}
			break
		}
		if !p.isOp(")") {
			return nil, p.fail("expected ')' after case pattern")
		}
		p.advance()
		body, err := p.parseStatementList([]string{"esac"})
		if err != nil {
			return nil, err
		}
		term := ast.TermBreak
		switch {
		case p.isOp(";;&"):
			term = ast.TermContinueMatch
			p.advance()
		case p.isOp(";&"):
			term = ast.TermFallThrough
			p.advance()
		case p.isOp(";;"):
			p.advance()
		}
		node.Items = append(node.Items, ast.CaseItem{Patterns: patterns, Body: body, Terminator: term})
		p.skipSeparators()
	}
	p.advance() // esac
	return node, nil
}

// --- select ---

func (p *Parser) parseSelect() (ast.Node, error) {
	p.advance()
	if p.cur().Type != token.Word && p.cur().Type != token.Composite {
		return nil, p.fail("expected name after 'select'")
	}
	name := p.advance().Text
	var words []ast.Word
	if p.isKeyword("in") {
		p.advance()
		for !p.isOp(";") && p.cur().Type != token.Newline && !p.isKeyword("do") {
			words = append(words, p.wordFromToken(p.advance()))
		}
	}
	p.skipSeparators()
	if !p.isKeyword("do") {
		return nil, p.fail("expected 'do'")
	}
	p.advance()
	body, err := p.parseStatementList([]string{"done"})
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("done") {
		return nil, p.fail("expected 'done'")
	}
	p.advance()
	return &ast.SelectLoop{Variable: name, IterableWords: words, Body: body}, nil
}

// --- function definitions, brace groups, subshells ---

func (p *Parser) parseFunctionKeyword() (ast.Node, error) {
	p.advance() // function
	name := p.advance().Text
	if p.isOp("(") {
		p.advance()
		if !p.isOp(")") {
			return nil, p.fail("expected ')' in function definition")
		}
		p.advance()
	}
	p.skipSeparators()
	body, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDef{Name: name, Body: body}, nil
}

func (p *Parser) parseBraceGroup() (ast.Node, error) {
	p.advance() // {
	body, err := p.parseStatementList([]string{"}"})
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("}") {
		return nil, p.fail("expected '}'")
	}
	p.advance()
	return &ast.BraceGroup{Body: body}, nil
}

func (p *Parser) parseSubshellOrArith() (ast.Node, error) {
	p.advance() // (
	body, err := p.parseStatementList([]string{})
	if err != nil {
		return nil, err
	}
	if !p.isOp(")") {
		return nil, p.fail("expected ')'")
	}
	p.advance()
	return &ast.SubshellGroup{Body: body}, nil
}

// --- [[ ]] ---

func (p *Parser) parseEnhancedTest() (ast.Node, error) {
	p.advance() // [[
	expr, err := p.parseTestOr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("]]") {
		return nil, p.fail("expected ']]'")
	}
	p.advance()
	return &ast.EnhancedTestStatement{Expr: expr}, nil
}

func (p *Parser) parseTestOr() (ast.TestExpr, error) {
	left, err := p.parseTestAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		p.advance()
		right, err := p.parseTestAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.TestOr{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseTestAnd() (ast.TestExpr, error) {
	left, err := p.parseTestUnaryLevel()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		p.advance()
		right, err := p.parseTestUnaryLevel()
		if err != nil {
			return nil, err
		}
		left = &ast.TestAnd{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseTestUnaryLevel() (ast.TestExpr, error) {
	if p.isOp("!") || (p.cur().Type == token.Word && p.cur().Text == "!") {
		p.advance()
		inner, err := p.parseTestUnaryLevel()
		if err != nil {
			return nil, err
		}
		return &ast.TestNot{Expr: inner}, nil
	}
	if p.isOp("(") {
		p.advance()
		inner, err := p.parseTestOr()
		if err != nil {
			return nil, err
		}
		if !p.isOp(")") {
			return nil, p.fail("expected ')' in test expression")
		}
		p.advance()
		return &ast.TestGroup{Expr: inner}, nil
	}
	if p.cur().Type == token.Word && isUnaryTestOp(p.cur().Text) {
		op := p.advance().Text
		operand := p.wordFromToken(p.advance())
		return &ast.TestUnary{Op: op, Operand: operand}, nil
	}
	left := p.wordFromToken(p.advance())
	if p.cur().Type == token.Word && isBinaryTestOp(p.cur().Text) {
		op := p.advance().Text
		right := p.wordFromToken(p.advance())
		return &ast.TestBinary{Op: op, Left: left, Right: right}, nil
	}
	if p.isOp("=") || p.isOp("!=") {
		op := p.advance().Text
		right := p.wordFromToken(p.advance())
		return &ast.TestBinary{Op: op, Left: left, Right: right}, nil
	}
	return &ast.TestUnary{Op: "-n", Operand: left}, nil
}

func isUnaryTestOp(s string) bool {
	switch s {
	case "-e", "-f", "-d", "-r", "-w", "-x", "-s", "-z", "-n", "-L", "-h", "-p", "-S":
		return true
	}
	return false
}

func isBinaryTestOp(s string) bool {
	switch s {
	case "=", "==", "!=", "=~", "-eq", "-ne", "-lt", "-le", "-gt", "-ge", "-nt", "-ot", "-ef":
		return true
	}
	return false
}

// --- simple commands / function-def shorthand / redirections ---

func (p *Parser) parseSimpleCommandOrFunctionDef() (ast.Node, error) {
	if (p.cur().Type == token.Word || p.cur().Type == token.Composite) && p.peekAt(1).Type == token.Operator && p.peekAt(1).Text == "(" && p.peekAt(2).Type == token.Operator && p.peekAt(2).Text == ")" {
		name := p.advance().Text
		p.advance() // (
		p.advance() // )
		p.skipSeparators()
		body, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		return &ast.FunctionDef{Name: name, Body: body}, nil
	}

	cmd := &ast.SimpleCommand{}
	for p.cur().Type == token.AssignmentWord {
		tok := p.advance()
		cmd.Assignments = append(cmd.Assignments, ast.Assignment{
			Name: tok.AssignName, Append: tok.AssignAppend, Value: p.wordFromRaw(tok.AssignValue),
		})
	}
	for {
		switch p.cur().Type {
		case token.Word, token.Composite:
			cmd.Args = append(cmd.Args, p.wordFromToken(p.advance()))
		case token.Redirect:
			r, err := p.parseRedirect()
			if err != nil {
				return nil, err
			}
			cmd.Redirects = append(cmd.Redirects, *r)
		default:
			goto done
		}
	}
done:
	// A trailing `&` is left for parseStatementList, which owns
	// background dispatch for every statement shape uniformly.
	if len(cmd.Args) == 0 && len(cmd.Assignments) == 0 && len(cmd.Redirects) == 0 {
		return nil, nil
	}
	return cmd, nil
}

// wordFromRaw re-lexes raw value text (an assignment RHS, an array
// element-assignment value) into a word with real composite parts, so
// quotes and $-substitutions inside it expand instead of passing
// through literally.
func (p *Parser) wordFromRaw(text string) ast.Word {
	literal := ast.Word{Tok: token.Token{
		Type: token.Word, Text: text,
		Parts: []token.Part{{Type: token.PartLiteral, Text: text}},
	}}
	if strings.HasPrefix(text, "#") {
		// Re-lexing would read this as a comment; a value is never one.
		return literal
	}
	toks, err := lexer.Tokenize(text)
	if err != nil {
		return literal
	}
	for _, t := range toks {
		if t.Type == token.EOF || t.Type == token.Newline {
			break
		}
		w := p.wordFromToken(t)
		w.Tok.Text = text
		return w
	}
	return ast.Word{Tok: token.Token{
		Type: token.Word, Text: "",
		Parts: []token.Part{{Type: token.PartLiteral, Text: ""}},
	}}
}

func (p *Parser) parseRedirect() (*ast.Redirect, error) {
	tok := p.advance()
	r := &ast.Redirect{FD: tok.RedirectFD}
	switch tok.RedirectOp {
	case "<":
		r.Op = ast.RedirInput
	case ">":
		r.Op = ast.RedirOutput
	case ">>":
		r.Op = ast.RedirAppend
	case "<>":
		r.Op = ast.RedirReadWrite
	case ">|":
		r.Op = ast.RedirClobber
	case "<&":
		r.Op = ast.RedirDupInput
	case ">&":
		r.Op = ast.RedirDupOutput
	case "&>":
		r.Op = ast.RedirBothOutput
	case "&>>":
		r.Op = ast.RedirBothAppend
	case "<<", "<<-":
		p.advance() // the delimiter word token; its text was already consumed by the lexer
		r.Op = ast.RedirHereDoc
		if tok.RedirectOp == "<<-" {
			r.Op = ast.RedirHereDocStrip
		}
		r.HereDocBody = tok.HereDocBody
		r.HereDocQuot = tok.HereDocQuoted
		return r, nil
	case "<<<":
		r.Op = ast.RedirHereString
		r.Target = p.wordFromToken(p.advance())
		return r, nil
	}
	if r.Op == ast.RedirDupInput || r.Op == ast.RedirDupOutput {
		target := p.advance()
		if target.Text == "-" {
			r.TargetIsFD = true
			r.Target = ast.Word{Tok: token.Token{Type: token.Word, Text: "-"}}
		} else {
			r.TargetIsFD = true
			r.Target = p.wordFromToken(target)
		}
		return r, nil
	}
	r.Target = p.wordFromToken(p.advance())
	return r, nil
}

func (p *Parser) wordFromToken(tok token.Token) ast.Word {
	quoted := false
	if len(tok.Parts) > 0 {
		allQuoted := true
		for _, part := range tok.Parts {
			if part.Type != token.PartSingleQuoted && part.Type != token.PartDoubleQuoted {
				allQuoted = false
				break
			}
		}
		quoted = allQuoted
	}
	return ast.Word{Tok: tok, Quoted: quoted}
}
