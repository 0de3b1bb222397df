// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package expand

import (
	"strings"

	"github.com/aleutianshell/ash/internal/arith"
	"github.com/aleutianshell/ash/internal/shellerr"
)

// applyOp evaluates one §4.3.1 operator against the current value of a
// name (or one array element, for the elementwise `[@]`/`[*]` callers).
// cur/isSet describe the pre-operator state; operand is the raw,
// not-yet-expanded text following the operator.
func (e *Engine) applyOp(name, cur string, isSet bool, op, operand string) (string, error) {
	switch op {
	case "":
		return cur, nil
	case ":-", "-":
		useDefault := !isSet || (op == ":-" && cur == "")
		if !useDefault {
			return cur, nil
		}
		return e.expandOperandText(operand)
	case ":=", "=":
		useDefault := !isSet || (op == ":=" && cur == "")
		if !useDefault {
			return cur, nil
		}
		val, err := e.expandOperandText(operand)
		if err != nil {
			return "", err
		}
		if err := e.Vars.Set(name, val); err != nil {
			return "", err
		}
		return val, nil
	case ":?", "?":
		trigger := !isSet || (op == ":?" && cur == "")
		if !trigger {
			return cur, nil
		}
		msg, err := e.expandOperandText(operand)
		if err != nil {
			return "", err
		}
		if msg == "" {
			msg = "parameter null or not set"
		}
		return "", shellerr.New(shellerr.KindExpansion, "%s: %s", name, msg)
	case ":+", "+":
		use := isSet && (op == "+" || cur != "")
		if !use {
			return "", nil
		}
		return e.expandOperandText(operand)
	case "#", "##":
		pattern, err := e.expandOperandText(operand)
		if err != nil {
			return "", err
		}
		return removePrefix(cur, pattern, op == "##")
	case "%", "%%":
		pattern, err := e.expandOperandText(operand)
		if err != nil {
			return "", err
		}
		return removeSuffix(cur, pattern, op == "%%")
	case "/", "//", "/#", "/%":
		return e.applyReplace(cur, op, operand)
	case ":":
		return e.applySubstring(cur, operand)
	case "^", "^^", ",", ",,":
		return e.applyCaseOp(cur, op, operand)
	}
	return cur, nil
}

func (e *Engine) applyReplace(cur, op, operand string) (string, error) {
	rawPattern, rawRep, _ := splitTopLevelOnce(operand, '/')
	pattern, err := e.expandOperandText(rawPattern)
	if err != nil {
		return "", err
	}
	rep, err := e.expandOperandText(rawRep)
	if err != nil {
		return "", err
	}
	switch op {
	case "//":
		return replaceAll(cur, pattern, rep), nil
	case "/#":
		return replaceAnchoredStart(cur, pattern, rep)
	case "/%":
		return replaceAnchoredEnd(cur, pattern, rep)
	default: // "/"
		return replaceFirst(cur, pattern, rep), nil
	}
}

func (e *Engine) applySubstring(cur, operand string) (string, error) {
	rawOff, rawLen, hasLen := splitTopLevelOnce(operand, ':')
	offExpr, err := e.expandOperandText(rawOff)
	if err != nil {
		return "", err
	}
	off, err := arith.Eval(offExpr, e.Vars)
	if err != nil {
		return "", err
	}
	runes := []rune(cur)
	n := int64(len(runes))
	start := off
	if start < 0 {
		start += n
		if start < 0 {
			start = 0
		}
	}
	if start > n {
		start = n
	}
	if !hasLen {
		return string(runes[start:]), nil
	}
	lenExpr, err := e.expandOperandText(rawLen)
	if err != nil {
		return "", err
	}
	length, err := arith.Eval(lenExpr, e.Vars)
	if err != nil {
		return "", err
	}
	end := start + length
	if length < 0 {
		end = n + length
	}
	if end < start {
		end = start
	}
	if end > n {
		end = n
	}
	return string(runes[start:end]), nil
}

func (e *Engine) applyCaseOp(cur, op, operand string) (string, error) {
	pattern := "?"
	if operand != "" {
		expanded, err := e.expandOperandText(operand)
		if err != nil {
			return "", err
		}
		pattern = expanded
	}
	m, err := CompilePattern(pattern, false)
	if err != nil {
		return "", err
	}
	all := op == "^^" || op == ",,"
	up := op == "^" || op == "^^"
	runes := []rune(cur)
	for i, r := range runes {
		if !m.MatchFull(string(r)) {
			continue
		}
		if up {
			runes[i] = toUpperRune(r)
		} else {
			runes[i] = toLowerRune(r)
		}
		if !all {
			break
		}
	}
	return string(runes), nil
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// splitTopLevelOnce splits s at the first unescaped occurrence of sep
// that is not nested inside a quote or a `$(...)`/`${...}` substitution.
func splitTopLevelOnce(s string, sep byte) (before, after string, found bool) {
	depth := 0
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
				return s, "", false
			}
			i = i + 1 + j + 1
			continue
		case '"':
			j := scanDoubleQuoted(s[i+1:])
			i = i + 1 + j + 1
			continue
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			if depth > 0 {
				depth--
			}
		default:
			if c == sep && depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
		i++
	}
	return s, "", false
}
