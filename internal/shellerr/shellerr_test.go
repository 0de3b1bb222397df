// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package shellerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKind_String(t *testing.T) {
	require.Equal(t, "SyntaxError", KindSyntax.String())
	require.Equal(t, "CommandNotFound", KindCommandNotFound.String())
	require.Equal(t, "UnknownError", ErrorKind(99).String())
}

func TestNewAt_IncludesPosition(t *testing.T) {
	err := NewAt(KindSyntax, Pos{Line: 2, Column: 5}, "unexpected token %q", "fi")
	require.Contains(t, err.Error(), "2:5")
	require.Contains(t, err.Error(), "unexpected token \"fi\"")
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("no such file or directory")
	err := Wrap(KindRedirect, cause, "open %s", "/tmp/missing")
	require.ErrorIs(t, err, cause)
}

func TestIs_MatchesKind(t *testing.T) {
	err := New(KindReadonly, "cannot assign to readonly variable %q", "PATH")
	require.True(t, Is(err, KindReadonly))
	require.False(t, Is(err, KindArith))
}

func TestAppend_CollectsMultipleErrors(t *testing.T) {
	var all error
	all = Append(all, New(KindSyntax, "unexpected `fi'"))
	all = Append(all, New(KindSyntax, "unexpected `done'"))
	require.Contains(t, all.Error(), "2 errors")
}

func TestCommandError_Error(t *testing.T) {
	err := &CommandError{Command: "grep", ExitCode: 2, Stderr: "grep: bad.txt: No such file"}
	require.Contains(t, err.Error(), "grep")
	require.Contains(t, err.Error(), "exit status 2")
	require.Contains(t, err.Error(), "bad.txt")
}

func TestControlFlowSignals_ErrorStrings(t *testing.T) {
	require.Contains(t, (&LoopBreak{Level: 2}).Error(), "level 2")
	require.Contains(t, (&LoopContinue{Level: 1}).Error(), "level 1")
	require.Contains(t, (&FunctionReturn{Status: 7}).Error(), "7")
	require.Contains(t, (&ShellExit{Status: 3}).Error(), "3")
}
