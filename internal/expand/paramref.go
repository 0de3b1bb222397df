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
	"time"

	"github.com/aleutianshell/ash/internal/arith"
	"github.com/aleutianshell/ash/internal/shellerr"
	"github.com/aleutianshell/ash/internal/shellopt"
	"github.com/aleutianshell/ash/internal/vars"
)

// expandVariableRef expands a PartVariableRef's raw text: either a
// special single-character parameter, a bare name/digit, or a braced
// `{...}` form carrying one of §4.3.1's operators.
func (e *Engine) expandVariableRef(text string) (vals []string, quoted bool, splice bool, err error) {
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return e.expandBraced(text[1 : len(text)-1])
	}
	return e.expandSimple(text)
}

// expandSimple handles `$name`, `$1`, and the special parameters listed
// in §4.3.1's token set (`? $ ! # @ * 0 -`), plus `$_` (SUPPLEMENTED
// FEATURES).
func (e *Engine) expandSimple(name string) ([]string, bool, bool, error) {
	switch name {
	case "?":
		return []string{strconv.Itoa(e.LastStatus)}, false, false, nil
	case "$":
		return []string{strconv.Itoa(e.ShellPID)}, false, false, nil
	case "!":
		if e.LastBgPID == 0 {
			return []string{""}, false, false, nil
		}
		return []string{strconv.Itoa(e.LastBgPID)}, false, false, nil
	case "#":
		return []string{strconv.Itoa(len(e.Positional))}, false, false, nil
	case "-":
		return []string{e.Opts.Letters()}, false, false, nil
	case "_":
		return []string{e.LastArg}, false, false, nil
	case "@":
		return append([]string{}, e.Positional...), false, true, nil
	case "*":
		ifsFirst := " "
		if s := e.ifs(); s != "" {
			ifsFirst = s[:1]
		}
		return []string{strings.Join(e.Positional, ifsFirst)}, false, false, nil
	case "0":
		return []string{e.ScriptName}, false, false, nil
	}
	if isAllDigits(name) {
		n, _ := strconv.Atoi(name)
		if n == 0 {
			return []string{e.ScriptName}, false, false, nil
		}
		if n <= len(e.Positional) {
			return []string{e.Positional[n-1]}, false, false, nil
		}
		return []string{""}, false, false, e.checkUnbound(name, "")
	}
	val, isSet := e.lookupScalarOrArrayJoin(name)
	if !isSet {
		return []string{""}, false, false, e.checkUnbound(name, "")
	}
	return []string{val}, false, false, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (e *Engine) checkUnbound(name, fallback string) error {
	if e.Opts != nil && e.Opts.Get(shellopt.Nounset) {
		return shellerr.New(shellerr.KindUnboundVariable, "%s: unbound variable", name)
	}
	return nil
}

// lookupScalarOrArrayJoin reads a plain (non-subscripted) name: a
// scalar's value, or an indexed array's element 0 (bash's own
// behavior for `$arr` without a subscript).
func (e *Engine) lookupScalarOrArrayJoin(name string) (string, bool) {
	if v, ok := e.dynamicSpecialVar(name); ok {
		return v, true
	}
	v, ok := e.Vars.Lookup(name)
	if !ok {
		return "", false
	}
	switch v.Kind {
	case vars.KindScalar:
		return v.Scalar, true
	case vars.KindIndexedArray:
		s, ok := v.IndexedAt(0)
		return s, ok
	case vars.KindAssocArray:
		s, ok := v.Assoc["0"]
		return s, ok
	}
	return "", false
}

// dynamicSpecialVar reads the handful of names bash computes on every
// reference rather than storing in the variable table (§6): $RANDOM
// (a fresh pseudorandom value 0-32767), $SECONDS (elapsed wall-clock
// time since the shell started), and $LINENO (e.LineNo, which the
// executor never sets, so it reads 0). Unlike bash, ash does
// not special-case a subsequent `unset`/assignment to these names back
// into ordinary variables — a deliberate simplification recorded in
// the design notes.
func (e *Engine) dynamicSpecialVar(name string) (string, bool) {
	switch name {
	case "RANDOM":
		e.seedDynamicVars()
		return strconv.Itoa(e.rng.Intn(32768)), true
	case "SECONDS":
		e.seedDynamicVars()
		return strconv.Itoa(int(time.Since(e.start).Seconds())), true
	case "LINENO":
		return strconv.Itoa(e.LineNo), true
	}
	return "", false
}

// expandBraced parses and evaluates the `${...}` sub-grammar.
func (e *Engine) expandBraced(inner string) ([]string, bool, bool, error) {
	if inner == "" {
		return []string{""}, false, false, nil
	}
	// ${!...}: indirection, array-keys (`${!arr[@]}`), or name-matching
	// (`${!prefix*}`/`${!prefix@}`).
	if strings.HasPrefix(inner, "!") {
		return e.expandBang(inner[1:])
	}
	// ${#...}: length.
	if strings.HasPrefix(inner, "#") && len(inner) > 1 {
		return e.expandLength(inner[1:])
	}
	name, rest := scanRefName(inner)
	if name == "" {
		return nil, false, false, newExpansionErr("bad substitution: %q", inner)
	}
	var index string
	hasIndex := false
	if strings.HasPrefix(rest, "[") {
		end := matchingBracket(rest)
		if end < 0 {
			return nil, false, false, newExpansionErr("bad substitution: unterminated '[' in %q", inner)
		}
		index = rest[1:end]
		hasIndex = true
		rest = rest[end+1:]
	}
	op, operand := splitOperator(rest)
	return e.evalNameOp(name, index, hasIndex, op, operand)
}

// scanRefName consumes a leading identifier, digit run, or single
// special-parameter character from s, returning the name and the rest.
func scanRefName(s string) (name, rest string) {
	if s == "" {
		return "", ""
	}
	c := s[0]
	switch c {
	case '?', '$', '!', '#', '@', '*', '-', '_':
		return string(c), s[1:]
	}
	i := 0
	for i < len(s) && (isIdentByte(s[i]) || (i == 0 && s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	return s[:i], s[i:]
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func matchingBracket(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitOperator recognizes the longest matching operator prefix from
// §4.3.1's table and returns it plus the remaining operand text.
func splitOperator(s string) (op, operand string) {
	if s == "" {
		return "", ""
	}
	for _, candidate := range []string{":-", ":=", ":?", ":+", "##", "%%", "//", "/#", "/%", "^^", ",,"} {
		if strings.HasPrefix(s, candidate) {
			return candidate, s[len(candidate):]
		}
	}
	switch s[0] {
	case ':':
		return ":", s[1:]
	case '-', '=', '?', '+', '#', '%', '/', '^', ',':
		return string(s[0]), s[1:]
	}
	return "", s
}

// isSpecialName reports whether name is a special parameter or a
// positional reference, which never live in the variable store.
func isSpecialName(name string) bool {
	switch name {
	case "?", "$", "!", "#", "@", "*", "-", "_", "0":
		return true
	}
	return isAllDigits(name)
}

// specialValue reads a special/positional parameter as a single scalar
// for operator application; isSet is false for an out-of-range
// positional and for `@` with no positional parameters, matching the
// defaults operators' unset test.
func (e *Engine) specialValue(name string) (string, bool) {
	if isAllDigits(name) {
		n, _ := strconv.Atoi(name)
		if n == 0 {
			return e.ScriptName, true
		}
		if n <= len(e.Positional) {
			return e.Positional[n-1], true
		}
		return "", false
	}
	vals, _, splice, err := e.expandSimple(name)
	if err != nil || len(vals) == 0 {
		return "", name != "@" && name != "*"
	}
	if splice {
		return strings.Join(vals, " "), len(vals) > 0
	}
	return vals[0], true
}

func (e *Engine) evalNameOp(name, index string, hasIndex bool, op, operand string) ([]string, bool, bool, error) {
	if hasIndex && (index == "@" || index == "*") {
		return e.evalArrayAllOp(name, index, op, operand)
	}
	if !hasIndex && isSpecialName(name) {
		if op == "" {
			return e.expandSimple(name)
		}
		if op == ":" && (name == "@" || name == "*") {
			elems := append([]string{e.ScriptName}, e.Positional...)
			return e.sliceList(elems, operand, name == "@")
		}
		cur, isSet := e.specialValue(name)
		val, err := e.applyOp(name, cur, isSet, op, operand)
		if err != nil {
			return nil, false, false, err
		}
		return []string{val}, false, false, nil
	}
	cur, isSet, err := e.readScalarTarget(name, index, hasIndex)
	if err != nil {
		return nil, false, false, err
	}
	if op == "" && !isSet {
		if err := e.checkUnbound(name, ""); err != nil {
			return nil, false, false, err
		}
	}
	val, err := e.applyOp(name, cur, isSet, op, operand)
	if err != nil {
		return nil, false, false, err
	}
	return []string{val}, false, false, nil
}

// readScalarTarget resolves `name` or `name[index]` to its current
// scalar value and whether it's set (non-existent vs. set-but-empty
// matter for `:-`/`:+` vs `-`/`+`).
func (e *Engine) readScalarTarget(name, index string, hasIndex bool) (string, bool, error) {
	v, ok := e.Vars.Lookup(name)
	if !ok {
		return "", false, nil
	}
	if !hasIndex {
		switch v.Kind {
		case vars.KindScalar:
			return v.Scalar, true, nil
		case vars.KindIndexedArray:
			s, ok := v.IndexedAt(0)
			return s, ok, nil
		case vars.KindAssocArray:
			s, ok := v.Assoc["0"]
			return s, ok, nil
		}
	}
	idx, err := e.resolveIndex(index)
	if err != nil {
		return "", false, err
	}
	switch v.Kind {
	case vars.KindIndexedArray:
		n, err := strconv.Atoi(idx)
		if err != nil {
			return "", false, newExpansionErr("bad array subscript %q", idx)
		}
		s, ok := v.IndexedAt(n)
		return s, ok, nil
	case vars.KindAssocArray:
		s, ok := v.Assoc[idx]
		return s, ok, nil
	default:
		return v.Scalar, true, nil
	}
}

func (e *Engine) resolveIndex(index string) (string, error) {
	n, err := arith.Eval(index, e.Vars)
	if err != nil {
		return index, nil // associative-array keys are used as-is, not arithmetic
	}
	return strconv.FormatInt(n, 10), nil
}

// evalArrayAllOp handles `${arr[@]}`/`${arr[@]<op>...}` and the `*`
// variant, per §4.3.1's elementwise rule.
func (e *Engine) evalArrayAllOp(name, mode, op, operand string) ([]string, bool, bool, error) {
	elems := e.arrayElements(name)
	if op == ":" {
		// ${arr[@]:off:len} slices the element list rather than applying
		// the substring operator elementwise.
		return e.sliceList(elems, operand, mode == "@")
	}
	if op == "" {
		if mode == "@" {
			return elems, false, true, nil
		}
		ifsFirst := " "
		if s := e.ifs(); s != "" {
			ifsFirst = s[:1]
		}
		return []string{strings.Join(elems, ifsFirst)}, false, false, nil
	}
	if op == "#" && operand == "" {
		return []string{strconv.Itoa(len(elems))}, false, false, nil
	}
	out := make([]string, len(elems))
	for i, el := range elems {
		v, err := e.applyOp(name, el, true, op, operand)
		if err != nil {
			return nil, false, false, err
		}
		out[i] = v
	}
	if mode == "@" {
		return out, false, true, nil
	}
	ifsFirst := " "
	if s := e.ifs(); s != "" {
		ifsFirst = s[:1]
	}
	return []string{strings.Join(out, ifsFirst)}, false, false, nil
}

// sliceList implements the `:off[:len]` operator over a list of
// elements (array [@]/[*] or positional parameters), with the same
// negative-offset/negative-length arithmetic applySubstring uses on a
// scalar's runes.
func (e *Engine) sliceList(elems []string, operand string, splice bool) ([]string, bool, bool, error) {
	rawOff, rawLen, hasLen := splitTopLevelOnce(operand, ':')
	offExpr, err := e.expandOperandText(rawOff)
	if err != nil {
		return nil, false, false, err
	}
	off, err := arith.Eval(offExpr, e.Vars)
	if err != nil {
		return nil, false, false, err
	}
	n := int64(len(elems))
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
	end := n
	if hasLen {
		lenExpr, err := e.expandOperandText(rawLen)
		if err != nil {
			return nil, false, false, err
		}
		length, err := arith.Eval(lenExpr, e.Vars)
		if err != nil {
			return nil, false, false, err
		}
		end = start + length
		if length < 0 {
			end = n + length
		}
		if end < start {
			end = start
		}
		if end > n {
			end = n
		}
	}
	out := elems[start:end]
	if splice {
		return out, false, true, nil
	}
	ifsFirst := " "
	if s := e.ifs(); s != "" {
		ifsFirst = s[:1]
	}
	return []string{strings.Join(out, ifsFirst)}, false, false, nil
}

func (e *Engine) arrayElements(name string) []string {
	v, ok := e.Vars.Lookup(name)
	if !ok {
		return nil
	}
	switch v.Kind {
	case vars.KindIndexedArray:
		keys := v.IndexedKeys()
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = v.Indexed[k]
		}
		return out
	case vars.KindAssocArray:
		keys := v.AssocKeys()
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = v.Assoc[k]
		}
		return out
	default:
		return []string{v.Scalar}
	}
}

// expandLength backs `${#v}`/`${#arr[@]}`/`${##}` (positional count via
// plain name "#" handled in expandSimple).
func (e *Engine) expandLength(rest string) ([]string, bool, bool, error) {
	name, idxRest := scanRefName(rest)
	if name == "" {
		return nil, false, false, newExpansionErr("bad substitution: %q", rest)
	}
	if strings.HasPrefix(idxRest, "[") {
		end := matchingBracket(idxRest)
		if end < 0 {
			return nil, false, false, newExpansionErr("bad substitution: unterminated '[' in %q", rest)
		}
		index := idxRest[1:end]
		if index == "@" || index == "*" {
			return []string{strconv.Itoa(len(e.arrayElements(name)))}, false, false, nil
		}
		val, _, err := e.readScalarTarget(name, index, true)
		if err != nil {
			return nil, false, false, err
		}
		return []string{strconv.Itoa(len([]rune(val)))}, false, false, nil
	}
	switch name {
	case "@", "*":
		return []string{strconv.Itoa(len(e.Positional))}, false, false, nil
	case "#", "?", "$", "!", "-", "_":
		vals, _, _, err := e.expandSimple(name)
		if err != nil {
			return nil, false, false, err
		}
		return []string{strconv.Itoa(len([]rune(vals[0])))}, false, false, nil
	}
	if isAllDigits(name) {
		n, _ := strconv.Atoi(name)
		if n >= 1 && n <= len(e.Positional) {
			return []string{strconv.Itoa(len([]rune(e.Positional[n-1])))}, false, false, nil
		}
		return []string{"0"}, false, false, nil
	}
	v, ok := e.Vars.Lookup(name)
	if !ok {
		return []string{"0"}, false, false, nil
	}
	return []string{strconv.Itoa(v.Length())}, false, false, nil
}

// expandBang handles `${!name}` (indirection), `${!arr[@]}`/`${!arr[*]}`
// (defined indices/keys), and `${!prefix*}`/`${!prefix@}` (name match).
func (e *Engine) expandBang(rest string) ([]string, bool, bool, error) {
	name, idxRest := scanRefName(rest)
	if strings.HasPrefix(idxRest, "[") {
		end := matchingBracket(idxRest)
		if end < 0 {
			return nil, false, false, newExpansionErr("bad substitution: unterminated '[' in %q", rest)
		}
		index := idxRest[1:end]
		if index == "@" || index == "*" {
			keys := e.arrayKeys(name)
			if index == "@" {
				return keys, false, true, nil
			}
			return []string{strings.Join(keys, " ")}, false, false, nil
		}
	}
	if idxRest == "*" || idxRest == "@" {
		prefix := name
		splice := idxRest == "@"
		names := e.Vars.NamesWithPrefix(prefix)
		if splice {
			return names, false, true, nil
		}
		return []string{strings.Join(names, " ")}, false, false, nil
	}
	if idxRest != "" {
		return nil, false, false, newExpansionErr("bad substitution: %q", "!"+rest)
	}
	// Plain indirection: the value stored in `name` is itself a variable
	// name to resolve.
	target, ok := e.lookupScalarOrArrayJoin(name)
	if !ok || target == "" {
		return []string{""}, false, false, nil
	}
	return e.expandSimple(target)
}

func (e *Engine) arrayKeys(name string) []string {
	v, ok := e.Vars.Lookup(name)
	if !ok {
		return nil
	}
	switch v.Kind {
	case vars.KindIndexedArray:
		keys := v.IndexedKeys()
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = strconv.Itoa(k)
		}
		return out
	case vars.KindAssocArray:
		return v.AssocKeys()
	default:
		if v.Scalar != "" {
			return []string{"0"}
		}
		return nil
	}
}
