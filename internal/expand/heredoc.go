// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package expand

import (
	"strings"

	"github.com/aleutianshell/ash/internal/lexer"
)

// ExpandHereDocBody expands an already-collected here-document or
// here-string body (§4.5.6). A quoted delimiter (`<<'EOF'`) suppresses
// expansion entirely; otherwise parameter, command, and arithmetic
// substitution apply with no word splitting or globbing, matching
// double-quoted-string semantics for the body as a whole.
func (e *Engine) ExpandHereDocBody(body string, delimiterQuoted bool) (string, error) {
	if delimiterQuoted {
		return body, nil
	}
	parts, err := lexer.HereDocParts(body)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, part := range parts {
		vals, _, splice, err := e.expandPart(part)
		if err != nil {
			return "", err
		}
		if splice {
			sb.WriteString(strings.Join(vals, " "))
			continue
		}
		if len(vals) > 0 {
			sb.WriteString(vals[0])
		}
	}
	return sb.String(), nil
}
