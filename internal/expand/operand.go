// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package expand

import (
	"strconv"
	"strings"

	"github.com/aleutianshell/ash/internal/arith"
)

// expandOperandText expands the raw (unparsed) text carried by a
// parameter-expansion operator's operand — the default/assign/error
// message of `:-`/`:=`/`:?`, the pattern/replacement of `#`/`%`/`/`,
// the offset/length of `:`, or the case-modification pattern of `^`/`,`.
// It runs quote removal and nested $-expansion but does not word-split
// or glob, since the operand always collapses to one string before the
// enclosing operator uses it.
func (e *Engine) expandOperandText(s string) (string, error) {
	var sb strings.Builder
	i, n := 0, len(s)
	for i < n {
		c := s[i]
		switch c {
		case '\\':
			if i+1 < n {
				sb.WriteByte(s[i+1])
				i += 2
			} else {
				sb.WriteByte('\\')
				i++
			}
		case '\'':
			j := strings.IndexByte(s[i+1:], '\'')
			if j < 0 {
				sb.WriteString(s[i+1:])
				i = n
				continue
			}
			sb.WriteString(s[i+1 : i+1+j])
			i = i + 1 + j + 1
		case '"':
			end := scanDoubleQuoted(s[i+1:])
			expanded, err := e.expandOperandText(s[i+1 : i+1+end])
			if err != nil {
				return "", err
			}
			sb.WriteString(expanded)
			i = i + 1 + end
			if i < n && s[i] == '"' {
				i++
			}
		case '$':
			val, consumed, err := e.expandDollarAt(s[i:])
			if err != nil {
				return "", err
			}
			sb.WriteString(val)
			i += consumed
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), nil
}

// scanDoubleQuoted finds the end of a double-quoted run (the index of
// the unescaped closing quote, or len(s) if unterminated).
func scanDoubleQuoted(s string) int {
	i := 0
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			i += 2
			continue
		}
		if s[i] == '"' {
			return i
		}
		i++
	}
	return len(s)
}

// scanBalanced finds the index of the close byte matching the already-
// consumed open at depth 1, skipping over quoted runs so embedded
// parens/braces inside strings don't miscount. Returns -1 if unterminated.
func scanBalanced(s string, open, closeB byte) int {
	depth := 1
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			i += 2
			continue
		case '\'':
			j := strings.IndexByte(s[i+1:], '\'')
			if j < 0 {
				return -1
			}
			i = i + 1 + j + 1
			continue
		case '"':
			j := scanDoubleQuoted(s[i+1:])
			i = i + 1 + j + 1
			continue
		case open:
			depth++
		case closeB:
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return -1
}

// expandDollarAt expands the `$`-introduced form at the start of s,
// returning its value and how many bytes of s it consumed.
func (e *Engine) expandDollarAt(s string) (string, int, error) {
	if len(s) < 2 {
		return "$", 1, nil
	}
	rest := s[1:]
	switch rest[0] {
	case '{':
		end := scanBalanced(rest[1:], '{', '}')
		if end < 0 {
			return "$" + rest, len(s), nil
		}
		inner := rest[1 : 1+end]
		vals, _, splice, err := e.expandBraced(inner)
		if err != nil {
			return "", 0, err
		}
		return joinVals(vals, splice, e), 1 + 1 + end + 1, nil
	case '(':
		if len(rest) > 1 && rest[1] == '(' {
			end := scanArithClose(rest[2:])
			if end < 0 {
				return "$" + rest, len(s), nil
			}
			expr := rest[2 : 2+end]
			v, err := arith.Eval(expr, e.Vars)
			if err != nil {
				return "", 0, err
			}
			return strconv.FormatInt(v, 10), 1 + 2 + end + 2, nil
		}
		end := scanBalanced(rest[1:], '(', ')')
		if end < 0 {
			return "$" + rest, len(s), nil
		}
		script := rest[1 : 1+end]
		out, _, err := e.Run.RunCaptured(script)
		if err != nil {
			return "", 0, err
		}
		return strings.TrimRight(out, "\n"), 1 + 1 + end + 1, nil
	}
	if c := rest[0]; c == '?' || c == '$' || c == '!' || c == '#' || c == '@' || c == '*' || c == '-' || c == '_' || isASCIIDigit(c) {
		vals, _, splice, err := e.expandSimple(string(c))
		if err != nil {
			return "", 0, err
		}
		return joinVals(vals, splice, e), 2, nil
	}
	j := 0
	for j < len(rest) && isIdentByte(rest[j]) {
		j++
	}
	if j == 0 {
		return "$", 1, nil
	}
	name := rest[:j]
	vals, _, splice, err := e.expandSimple(name)
	if err != nil {
		return "", 0, err
	}
	return joinVals(vals, splice, e), 1 + j, nil
}

// scanArithClose finds the `))` that closes a `$((` form, tracking `(`
// nesting per lexer.lexBalancedArith's convention.
func scanArithClose(s string) int {
	depth := 1
	i := 0
	for i < len(s) {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if i+1 < len(s) && s[i+1] == ')' && depth == 1 {
				return i
			}
			depth--
		}
		i++
	}
	return -1
}

func isASCIIDigit(c byte) bool { return c >= '0' && c <= '9' }

func joinVals(vals []string, splice bool, e *Engine) string {
	if !splice {
		if len(vals) == 0 {
			return ""
		}
		return vals[0]
	}
	ifsFirst := " "
	if s := e.ifs(); s != "" {
		ifsFirst = s[:1]
	}
	return strings.Join(vals, ifsFirst)
}
