// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package builtin

import (
	"fmt"
	"strconv"
	"strings"
)

func init() {
	register("echo", echoBuiltin)
	register("printf", printfBuiltin)
}

// echoBuiltin implements bash's echo, including -n/-e/-E, since the
// POSIX xpg echo semantics alone would surprise scripts written
// against bash (SUPPLEMENTED FEATURES).
func echoBuiltin(ctx *Context) (int, error) {
	args := ctx.Args[1:]
	newline := true
	interpret := false
	for len(args) > 0 {
		a := args[0]
		if a == "--" {
			args = args[1:]
			break
		}
		if len(a) < 2 || a[0] != '-' {
			break
		}
		if strings.Trim(a[1:], "neE") != "" {
			break
		}
		for _, c := range a[1:] {
			switch c {
			case 'n':
				newline = false
			case 'e':
				interpret = true
			case 'E':
				interpret = false
			}
		}
		args = args[1:]
	}
	parts := make([]string, len(args))
	for i, a := range args {
		if interpret {
			parts[i] = interpretEchoEscapes(a)
		} else {
			parts[i] = a
		}
	}
	fmt.Fprint(ctx.Streams.Stdout, strings.Join(parts, " "))
	if newline {
		fmt.Fprint(ctx.Streams.Stdout, "\n")
	}
	return 0, nil
}

func interpretEchoEscapes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case 'e', 'E':
			sb.WriteByte(0x1b)
		case 'c':
			return sb.String()
		case 'x':
			if n, width := parseRadixEscape(s[i+1:], 16, 2); width > 0 {
				sb.WriteByte(byte(n))
				i += width
			} else {
				sb.WriteString(`\x`)
			}
		case 'u':
			if n, width := parseRadixEscape(s[i+1:], 16, 4); width > 0 {
				sb.WriteRune(rune(n))
				i += width
			} else {
				sb.WriteString(`\u`)
			}
		case 'U':
			if n, width := parseRadixEscape(s[i+1:], 16, 8); width > 0 {
				sb.WriteRune(rune(n))
				i += width
			} else {
				sb.WriteString(`\U`)
			}
		case '0', '1', '2', '3', '4', '5', '6', '7':
			start := i
			if s[i] == '0' {
				start = i + 1
			}
			n, width := parseRadixEscape(s[start:], 8, 3)
			if width > 0 || s[i] == '0' {
				sb.WriteByte(byte(n))
				i = start + width - 1
			} else {
				sb.WriteByte('\\')
				sb.WriteByte(s[i])
			}
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// parseRadixEscape reads up to maxDigits digits of the given base from
// the front of s, returning the value and how many bytes were consumed.
func parseRadixEscape(s string, base, maxDigits int) (int, int) {
	val := 0
	n := 0
	for n < maxDigits && n < len(s) {
		d := digitVal(s[n], base)
		if d < 0 {
			break
		}
		val = val*base + d
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return val, n
}

func digitVal(c byte, base int) int {
	var d int
	switch {
	case c >= '0' && c <= '9':
		d = int(c - '0')
	case c >= 'a' && c <= 'f':
		d = int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		d = int(c-'A') + 10
	default:
		return -1
	}
	if d >= base {
		return -1
	}
	return d
}

// printfBuiltin implements a practical subset of printf(1): %s %d %i
// %f %c %x %o %% plus width/precision passthrough to Go's fmt, and
// %b (backslash-escape interpretation, bash's own extension).
func printfBuiltin(ctx *Context) (int, error) {
	if len(ctx.Args) < 2 {
		return 1, fmt.Errorf("printf: usage: printf format [arguments]")
	}
	format := ctx.Args[1]
	args := ctx.Args[2:]
	out, consumed := renderPrintf(format, args)
	fmt.Fprint(ctx.Streams.Stdout, out)
	for consumed < len(args) {
		more, n := renderPrintf(format, args[consumed:])
		if n == 0 {
			break
		}
		fmt.Fprint(ctx.Streams.Stdout, more)
		consumed += n
	}
	return 0, nil
}

func renderPrintf(format string, args []string) (string, int) {
	var sb strings.Builder
	argi := 0
	next := func() string {
		if argi < len(args) {
			v := args[argi]
			argi++
			return v
		}
		return ""
	}
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '\\' && i+1 < len(format) {
			i++
			switch format[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			default:
				sb.WriteByte(format[i])
			}
			continue
		}
		if c != '%' || i+1 >= len(format) {
			sb.WriteByte(c)
			continue
		}
		i++
		if format[i] == '%' {
			sb.WriteByte('%')
			continue
		}
		spec, width := format[i], ""
		j := i
		for j < len(format) && (format[j] == '-' || format[j] == '0' || (format[j] >= '0' && format[j] <= '9') || format[j] == '.') {
			j++
		}
		width = format[i:j]
		i = j
		if i >= len(format) {
			break
		}
		spec = format[i]
		verb := "%" + width
		switch spec {
		case 's':
			fmt.Fprintf(&sb, verb+"s", next())
		case 'd', 'i':
			n, _ := strconv.ParseInt(next(), 0, 64)
			fmt.Fprintf(&sb, verb+"d", n)
		case 'f':
			f, _ := strconv.ParseFloat(next(), 64)
			fmt.Fprintf(&sb, verb+"f", f)
		case 'x':
			n, _ := strconv.ParseInt(next(), 0, 64)
			fmt.Fprintf(&sb, verb+"x", n)
		case 'o':
			n, _ := strconv.ParseInt(next(), 0, 64)
			fmt.Fprintf(&sb, verb+"o", n)
		case 'c':
			v := next()
			if len(v) > 0 {
				sb.WriteByte(v[0])
			}
		case 'b':
			sb.WriteString(interpretEchoEscapes(next()))
		default:
			sb.WriteByte('%')
			sb.WriteByte(spec)
		}
	}
	return sb.String(), argi
}
