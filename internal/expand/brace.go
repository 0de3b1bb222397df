// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package expand

import (
	"fmt"
	"strconv"
	"strings"
)

// braceExpand implements phase 1 (§4.3): `a{b,c}d` -> `abd acd`, numeric
// ranges `{1..5}`/`{1..10..2}`, with nesting. Purely lexical, performed
// on raw unexpanded source text before any other phase runs, treated
// as a pre-phase producing multiple words from one.
func braceExpand(s string) []string {
	start, end, ok := findBraceGroup(s)
	if !ok {
		return []string{s}
	}
	prefix, body, suffix := s[:start], s[start+1:end], s[end+1:]
	alts := splitBraceBody(body)
	if alts == nil {
		// Not a valid comma-list or range: braces are literal.
		return []string{s}
	}
	var out []string
	for _, alt := range alts {
		for _, expandedSuffix := range braceExpand(suffix) {
			combined := prefix + alt + expandedSuffix
			out = append(out, braceExpand(combined)...)
		}
	}
	// Guard against combined re-expansion re-finding the same group
	// (braceExpand(combined) above already recurses); dedupe the
	// degenerate case where combined had no further braces at all by
	// returning out as built.
	return out
}

// findBraceGroup locates the first top-level unescaped `{`...`}` pair.
// A `${...}` parameter expansion is not a brace group; its braces are
// skipped wholesale so `${v:-a,b}` survives to the parameter phase.
func findBraceGroup(s string) (start, end int, ok bool) {
	start = -1
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' {
			i++
			continue
		}
		if c == '{' && i > 0 && s[i-1] == '$' {
			i += skipParamBraces(s[i:])
			continue
		}
		if c == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 && start >= 0 {
				return start, i, true
			}
		}
	}
	return 0, 0, false
}

// skipParamBraces returns the offset of the `}` matching the `{` at
// s[0] (or the last index if unterminated), counting nested braces.
func skipParamBraces(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(s) - 1
}

// splitBraceBody splits a brace group's interior into its alternatives:
// either a comma-separated list (each element itself brace-expanded
// recursively by the caller) or a `{a..b}` / `{a..b..c}` range. Returns
// nil if body is neither (braces stay literal).
func splitBraceBody(body string) []string {
	if r := expandRange(body); r != nil {
		return r
	}
	parts := splitTopLevelCommas(body)
	if len(parts) < 2 {
		return nil
	}
	return parts
}

func splitTopLevelCommas(body string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, body[last:])
	return parts
}

// expandRange handles `{a..b}` and `{a..b..c}`, numeric or single-letter,
// returning nil if body isn't a valid range.
func expandRange(body string) []string {
	fields := strings.Split(body, "..")
	if len(fields) != 2 && len(fields) != 3 {
		return nil
	}
	step := 1
	if len(fields) == 3 {
		n, err := strconv.Atoi(fields[2])
		if err != nil || n == 0 {
			return nil
		}
		step = n
		if step < 0 {
			step = -step
		}
	}
	if lo, hi, ok := parseIntRange(fields[0], fields[1]); ok {
		return intRange(lo, hi, step)
	}
	if lo, hi, ok := parseLetterRange(fields[0], fields[1]); ok {
		return letterRange(lo, hi, step)
	}
	return nil
}

func parseIntRange(a, b string) (int, int, bool) {
	lo, err1 := strconv.Atoi(a)
	hi, err2 := strconv.Atoi(b)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

func intRange(lo, hi, step int) []string {
	var out []string
	width := 0
	if strings.HasPrefix(strconv.Itoa(lo), "0") && len(strconv.Itoa(lo)) > 1 {
		width = len(strconv.Itoa(lo))
	}
	fmtNum := func(n int) string {
		if width > 0 {
			return fmt.Sprintf("%0*d", width, n)
		}
		return strconv.Itoa(n)
	}
	if lo <= hi {
		for i := lo; i <= hi; i += step {
			out = append(out, fmtNum(i))
		}
	} else {
		for i := lo; i >= hi; i -= step {
			out = append(out, fmtNum(i))
		}
	}
	return out
}

func parseLetterRange(a, b string) (byte, byte, bool) {
	if len(a) != 1 || len(b) != 1 {
		return 0, 0, false
	}
	if !isAsciiLetter(a[0]) || !isAsciiLetter(b[0]) {
		return 0, 0, false
	}
	return a[0], b[0], true
}

func isAsciiLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func letterRange(lo, hi byte, step int) []string {
	var out []string
	if lo <= hi {
		for c := int(lo); c <= int(hi); c += step {
			out = append(out, string(byte(c)))
		}
	} else {
		for c := int(lo); c >= int(hi); c -= step {
			out = append(out, string(byte(c)))
		}
	}
	return out
}
