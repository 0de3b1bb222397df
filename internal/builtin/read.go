// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package builtin

import (
	"fmt"
	"io"
	"strings"
)

func init() {
	register("read", readBuiltin)
}

// readBuiltin implements `read [-r] [-p prompt] [-a array] [-d delim]
// [name ...]`, splitting one input line on IFS into the named
// variables (the trailing variable absorbs any remainder, per POSIX).
func readBuiltin(ctx *Context) (int, error) {
	args := ctx.Args[1:]
	raw := false
	prompt := ""
	arrayName := ""
	delim := byte('\n')
	var names []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-r":
			raw = true
		case a == "-p" && i+1 < len(args):
			i++
			prompt = args[i]
		case a == "-a" && i+1 < len(args):
			i++
			arrayName = args[i]
		case a == "-d" && i+1 < len(args):
			i++
			if len(args[i]) > 0 {
				delim = args[i][0]
			} else {
				delim = 0
			}
		case strings.HasPrefix(a, "-"):
			// Unsupported flag (-t, -n, -s, -u): accepted and ignored so
			// scripts exercising them still read a line rather than erroring.
		default:
			names = append(names, a)
		}
	}
	if prompt != "" {
		fmt.Fprint(ctx.Streams.Stderr, prompt)
	}
	line, err := readDelimited(ctx.Streams.Stdin, delim)
	if err != nil && line == "" {
		return 1, nil
	}
	if !raw {
		line = unescapeReadLine(line)
	}
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	ifs, ok := ctx.Vars.GetArith("IFS")
	if !ok {
		ifs = " \t\n"
	}
	fields := splitOnIFS(line, ifs)

	if arrayName != "" {
		ctx.Vars.DeclareIndexedArray(arrayName, fields, 0)
		return 0, nil
	}
	for i, name := range names {
		if i == len(names)-1 {
			rest := ""
			if i < len(fields) {
				rest = strings.Join(fields[i:], string(ifsFirstByte(ifs)))
			}
			ctx.Vars.Set(name, rest)
			continue
		}
		val := ""
		if i < len(fields) {
			val = fields[i]
		}
		ctx.Vars.Set(name, val)
	}
	return 0, nil
}

func ifsFirstByte(ifs string) byte {
	if ifs == "" {
		return ' '
	}
	return ifs[0]
}

// readDelimited reads one byte at a time (not through a buffered
// reader) so `read` never consumes bytes past its own delimiter that a
// following command or here-document still needs from the same fd.
func readDelimited(r io.Reader, delim byte) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == delim {
				return sb.String(), nil
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			return sb.String(), err
		}
	}
}

func unescapeReadLine(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			sb.WriteByte(s[i])
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func splitOnIFS(s, ifs string) []string {
	if ifs == "" {
		return []string{s}
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(ifs, r)
	})
}
