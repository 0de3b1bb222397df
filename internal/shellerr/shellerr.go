// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package shellerr defines the closed error taxonomy shared by every
// stage of the shell: lexer, parser, expansion engine, arithmetic
// evaluator, and executor. Control-flow escapes (break/continue/return)
// are modeled as distinct signal types rather than ErrorKind values,
// since callers must distinguish "stop, something is wrong" from
// "unwind, this is an ordinary loop/function exit."
package shellerr

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ErrorKind enumerates the closed taxonomy from the error-handling design.
type ErrorKind int

const (
	// KindSyntax is a lexing or parsing failure.
	KindSyntax ErrorKind = iota
	// KindExpansion covers unset-and-required, bad substitution, bad substring bounds.
	KindExpansion
	// KindArith covers div-by-zero, bad base, overflow, too-deep expressions.
	KindArith
	// KindReadonly is mutation of a readonly variable.
	KindReadonly
	// KindUnboundVariable is reading an unset variable under nounset.
	KindUnboundVariable
	// KindRedirect is an open/dup failure or a noclobber violation.
	KindRedirect
	// KindCommandNotFound corresponds to exit 127.
	KindCommandNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "SyntaxError"
	case KindExpansion:
		return "ExpansionError"
	case KindArith:
		return "ArithError"
	case KindReadonly:
		return "ReadonlyError"
	case KindUnboundVariable:
		return "UnboundVariableError"
	case KindRedirect:
		return "RedirectError"
	case KindCommandNotFound:
		return "CommandNotFound"
	default:
		return "UnknownError"
	}
}

// Pos is a source position, carried by SyntaxError so diagnostics can
// point at the offending token.
type Pos struct {
	Line   int
	Column int
	Offset int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// ShellError is the concrete error type for every ErrorKind. It wraps
// an underlying cause (possibly nil) so errors.Unwrap/errors.Is chains
// work against both shell-level and OS-level failures.
type ShellError struct {
	Kind    ErrorKind
	Message string
	Pos     Pos
	Cause   error
}

func (e *ShellError) Error() string {
	if e.Pos.Line != 0 || e.Pos.Column != 0 {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Pos, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ShellError) Unwrap() error { return e.Cause }

// New creates a ShellError with no position information.
func New(kind ErrorKind, format string, args ...any) *ShellError {
	return &ShellError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewAt creates a ShellError carrying a source position, for lexer/parser failures.
func NewAt(kind ErrorKind, pos Pos, format string, args ...any) *ShellError {
	return &ShellError{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Wrap attaches cause to a new ShellError, capturing a stack trace via
// pkg/errors at the OS-interaction boundary (open/dup/fork failures
// re-surfaced as RedirectError or similar).
func Wrap(kind ErrorKind, cause error, format string, args ...any) *ShellError {
	return &ShellError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: errors.WithStack(cause)}
}

// Is reports whether err is a ShellError of the given kind.
func Is(err error, kind ErrorKind) bool {
	var se *ShellError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// Append collects independent errors for the parser's permissive mode,
// where a syntax failure should not abort the whole parse — it should
// be recorded alongside any other failures found in the same pass.
func Append(existing error, err error) error {
	return multierror.Append(existing, err)
}

// CommandError wraps an external command's failure: the argv that was
// run, its exit code, and a captured tail of stderr, so the executor
// and callers (process substitution, command substitution) can render
// a precise diagnostic without re-running the command.
type CommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
	Wrapped  error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Wrapped }

// Control-flow escapes. These are not ErrorKind values: they are
// ordinary Go errors that loops and function bodies catch and consume;
// anything that leaks past its legal nesting context is a programming
// error in the script, reported by the executor as a diagnostic with
// exit status 1 (spec §7).

// LoopBreak unwinds Level nested loops.
type LoopBreak struct{ Level int }

func (e *LoopBreak) Error() string { return fmt.Sprintf("break outside loop (level %d)", e.Level) }

// LoopContinue unwinds to the top of Level nested loops.
type LoopContinue struct{ Level int }

func (e *LoopContinue) Error() string {
	return fmt.Sprintf("continue outside loop (level %d)", e.Level)
}

// FunctionReturn unwinds the innermost function or sourced script with
// exit status Status.
type FunctionReturn struct{ Status int }

func (e *FunctionReturn) Error() string { return fmt.Sprintf("return outside function (%d)", e.Status) }

// ShellExit requests termination of the whole shell process with Status,
// running the EXIT trap first. Raised by the `exit` builtin.
type ShellExit struct{ Status int }

func (e *ShellExit) Error() string { return fmt.Sprintf("exit %d", e.Status) }
