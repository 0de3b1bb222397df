// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package astprint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aleutianshell/ash/internal/astprint"
	"github.com/aleutianshell/ash/internal/parser"
)

// roundTrip exercises the §8 round-trip invariant: parse(lex(s)) pretty-
// printed and re-parsed yields an AST that prints identically again.
func roundTrip(t *testing.T, src string) {
	t.Helper()
	top, err := parser.Parse(src, parser.ModeBash)
	require.NoError(t, err)
	printed := astprint.Node(top)

	top2, err := parser.Parse(printed, parser.ModeBash)
	require.NoError(t, err, "re-parsing rendered source: %s", printed)
	printed2 := astprint.Node(top2)

	require.Equal(t, printed, printed2)
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"echo hello",
		"echo $((2 + 3 * 4))",
		"if true; then echo yes; else echo no; fi",
		"while false; do echo loop; done",
		"for i in a b c; do echo $i; done",
		"case x in x) echo 1 ;; y) echo 2 ;; esac",
		"f() { echo inside; }",
		"( echo sub )",
	}
	for _, c := range cases {
		roundTrip(t, c)
	}
}
