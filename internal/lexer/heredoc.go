// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lexer

import (
	"strings"

	"github.com/aleutianshell/ash/internal/token"
)

// HereDocParts lexes an already-collected here-document/here-string
// body for expansion (§4.1 "otherwise parameter, command, and
// arithmetic expansion apply"): the same $ / ` / backslash escapes as
// inside a double-quoted string, reusing lexDollar/lexBacktick, but
// with no quote-character terminator since the body's extent was
// already fixed by line-based collection against the delimiter word.
func HereDocParts(body string) ([]token.Part, error) {
	l := New(body)
	var parts []token.Part
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, token.Part{Type: token.PartDoubleQuoted, Text: lit.String(), Quoted: true})
			lit.Reset()
		}
	}
	for !l.eof() {
		c := l.peek()
		if c == '\\' {
			next := l.peekAt(1)
			if next == '$' || next == '`' || next == '\\' {
				l.advance()
				l.advance()
				lit.WriteByte(next)
				continue
			}
			if next == '\n' {
				l.advance()
				l.advance()
				continue
			}
			l.advance()
			lit.WriteByte('\\')
			continue
		}
		if c == '$' {
			flush()
			part, _, err := l.lexDollar()
			if err != nil {
				return nil, err
			}
			part.Quoted = true
			parts = append(parts, part)
			continue
		}
		if c == '`' {
			flush()
			text, _, err := l.lexBacktick()
			if err != nil {
				return nil, err
			}
			parts = append(parts, token.Part{Type: token.PartBacktickSub, Text: text, Quoted: true})
			continue
		}
		l.advance()
		lit.WriteByte(c)
	}
	flush()
	if len(parts) == 0 {
		parts = append(parts, token.Part{Type: token.PartDoubleQuoted, Text: "", Quoted: true})
	}
	return parts, nil
}
