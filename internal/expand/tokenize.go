// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package expand

import (
	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/lexer"
	"github.com/aleutianshell/ash/internal/token"
)

// tokenizeWord turns the text of one brace-expansion alternative back
// into word tokens, so the rest of the pipeline (tilde/parameter/
// command/arithmetic expansion, splitting, globbing) can run on it
// exactly as it would on any other word. A brace alternative is always
// whitespace-free at the top level (braceExpand only substitutes inside
// the matched group), so in the common case this yields exactly one
// word; lexer.Tokenize is used rather than duplicating its composite-
// part rules, and multiple words are returned only if an alternative
// itself happened to contain unescaped whitespace.
func tokenizeWord(text string) ([]ast.Word, error) {
	toks, err := lexer.Tokenize(text)
	if err != nil {
		return nil, err
	}
	var out []ast.Word
	for _, tok := range toks {
		if tok.Type == token.EOF || tok.Type == token.Newline {
			continue
		}
		out = append(out, wordFromToken(tok))
	}
	if len(out) == 0 {
		out = append(out, ast.Word{Tok: token.Token{Type: token.Word, Text: text}})
	}
	return out, nil
}

// wordFromToken mirrors internal/parser's heuristic: a word is Quoted
// only when every one of its composite parts is a quoted part.
func wordFromToken(tok token.Token) ast.Word {
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
