// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package expand

import (
	"regexp"
	"strings"
)

// Pattern is a compiled shell wildcard pattern (`*`, `?`, `[...]`),
// backing pathname expansion, `case` matching, parameter-expansion
// prefix/suffix/replace operators, and `[[ = ]]`/`[[ == ]]`. The full
// bash extglob matcher is not implemented: `@(...)`, `!(...)` and
// `+(...)` are matched as literal text, while in `*(...)` and `?(...)`
// the leading `*` or `?` keeps its wildcard meaning.
type Pattern struct {
	re *regexp.Regexp
}

// CompilePattern translates a shell glob pattern into a Pattern. caseFold
// makes the match case-insensitive (nocaseglob).
func CompilePattern(pattern string, caseFold bool) (*Pattern, error) {
	re, err := regexp.Compile(translateGlob(pattern, caseFold))
	if err != nil {
		return nil, err
	}
	return &Pattern{re: re}, nil
}

// MatchFull reports whether s matches the pattern in its entirety.
func (p *Pattern) MatchFull(s string) bool {
	return p.re.MatchString(s)
}

func translateGlob(pattern string, caseFold bool) string {
	var sb strings.Builder
	sb.WriteString("^")
	if caseFold {
		sb.WriteString("(?i)")
	}
	i, n := 0, len(pattern)
	for i < n {
		c := pattern[i]
		switch c {
		case '*':
			sb.WriteString(".*")
			i++
		case '?':
			sb.WriteString(".")
			i++
		case '[':
			j := i + 1
			if j < n && (pattern[j] == '!' || pattern[j] == '^') {
				j++
			}
			if j < n && pattern[j] == ']' {
				j++
			}
			for j < n && pattern[j] != ']' {
				j++
			}
			if j >= n {
				// Unterminated class: treat '[' as a literal.
				sb.WriteString(regexp.QuoteMeta("["))
				i++
				continue
			}
			class := pattern[i+1 : j]
			sb.WriteString("[")
			if strings.HasPrefix(class, "!") {
				sb.WriteString("^" + class[1:])
			} else {
				sb.WriteString(class)
			}
			sb.WriteString("]")
			i = j + 1
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	sb.WriteString("$")
	return sb.String()
}

// HasGlobMeta reports whether s contains any unquoted glob metacharacter,
// used to decide whether pathname expansion should run at all on a field.
func HasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// exactMatcher wraps Pattern for the substring-scan helpers used by
// parameter-expansion prefix/suffix/replace operators, which need to
// test whether the *whole* pattern matches a given substring.
type exactMatcher struct{ p *Pattern }

func newExactMatcher(pattern string) (*exactMatcher, error) {
	p, err := CompilePattern(pattern, false)
	if err != nil {
		return nil, err
	}
	return &exactMatcher{p: p}, nil
}

// removePrefix finds the shortest (longest=false) or longest (longest=true)
// prefix of s that matches pattern entirely, and returns s with that
// prefix removed. Returns s unchanged if no prefix matches.
func removePrefix(s, pattern string, longest bool) (string, error) {
	m, err := newExactMatcher(pattern)
	if err != nil {
		return s, err
	}
	if longest {
		for i := len(s); i >= 0; i-- {
			if m.p.MatchFull(s[:i]) {
				return s[i:], nil
			}
		}
	} else {
		for i := 0; i <= len(s); i++ {
			if m.p.MatchFull(s[:i]) {
				return s[i:], nil
			}
		}
	}
	return s, nil
}

// removeSuffix finds the shortest or longest suffix of s matching
// pattern entirely, and returns s with that suffix removed.
func removeSuffix(s, pattern string, longest bool) (string, error) {
	m, err := newExactMatcher(pattern)
	if err != nil {
		return s, err
	}
	if longest {
		for i := 0; i <= len(s); i++ {
			if m.p.MatchFull(s[i:]) {
				return s[:i], nil
			}
		}
	} else {
		for i := len(s); i >= 0; i-- {
			if m.p.MatchFull(s[i:]) {
				return s[:i], nil
			}
		}
	}
	return s, nil
}

// findMatch locates the leftmost occurrence of pattern inside s,
// preferring the longest match at that leftmost position (bash's
// `${v/pattern/rep}` search order), returning the byte range [start,end).
func findMatch(s, pattern string) (start, end int, ok bool) {
	m, err := newExactMatcher(pattern)
	if err != nil {
		return 0, 0, false
	}
	for start = 0; start <= len(s); start++ {
		for end = len(s); end >= start; end-- {
			if m.p.MatchFull(s[start:end]) {
				return start, end, true
			}
		}
	}
	return 0, 0, false
}

// replaceAll replaces every non-overlapping leftmost match of pattern
// in s with rep.
func replaceAll(s, pattern, rep string) string {
	var out strings.Builder
	rest := s
	offset := 0
	for {
		start, end, ok := findMatch(rest, pattern)
		if !ok || (start == end && start >= len(rest)) {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])
		out.WriteString(rep)
		if end == start {
			// Zero-width match: avoid an infinite loop by copying one
			// byte forward before resuming the search.
			if start < len(rest) {
				out.WriteByte(rest[start])
				rest = rest[start+1:]
			} else {
				break
			}
		} else {
			rest = rest[end:]
		}
		offset++
		if offset > len(s)+1 {
			out.WriteString(rest)
			break
		}
	}
	return out.String()
}

// replaceFirst replaces only the first leftmost match of pattern in s.
func replaceFirst(s, pattern, rep string) string {
	start, end, ok := findMatch(s, pattern)
	if !ok {
		return s
	}
	return s[:start] + rep + s[end:]
}

// replaceAnchoredStart replaces pattern with rep only if it matches
// starting at position 0 (`${v/#p/r}`).
func replaceAnchoredStart(s, pattern, rep string) (string, error) {
	m, err := newExactMatcher(pattern)
	if err != nil {
		return s, err
	}
	for i := len(s); i >= 0; i-- {
		if m.p.MatchFull(s[:i]) {
			return rep + s[i:], nil
		}
	}
	return s, nil
}

// replaceAnchoredEnd replaces pattern with rep only if it matches
// ending at the end of s (`${v/%p/r}`).
func replaceAnchoredEnd(s, pattern, rep string) (string, error) {
	m, err := newExactMatcher(pattern)
	if err != nil {
		return s, err
	}
	for i := 0; i <= len(s); i++ {
		if m.p.MatchFull(s[i:]) {
			return s[:i] + rep, nil
		}
	}
	return s, nil
}
