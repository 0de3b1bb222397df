// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aleutianshell/ash/internal/vars"
)

func init() {
	register("declare", declareBuiltin)
	register("typeset", declareBuiltin)
	register("local", localBuiltin)
}

// declareBuiltin implements `declare`/`typeset [-rxilu aAp] [name[=val] ...]`.
// Bare `declare -p` (or no args) lists every visible variable in
// redeclarable form, mirroring bash's own output shape.
func declareBuiltin(ctx *Context) (int, error) {
	return runDeclare(ctx, false)
}

// localBuiltin is `local`: same flag grammar as declare, but always
// writes to the current (function-call) scope regardless of where an
// outer binding of the same name lives, and is only meaningful inside
// a function body.
func localBuiltin(ctx *Context) (int, error) {
	if !ctx.CurrentScopeIsFunction {
		fmt.Fprintln(ctx.Streams.Stderr, "local: can only be used in a function")
		return 1, nil
	}
	return runDeclare(ctx, true)
}

func runDeclare(ctx *Context, local bool) (int, error) {
	var attrs vars.Attr
	var wantArray, wantAssoc, wantNameref, wantPrint bool
	args := ctx.Args[1:]
	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		if len(a) < 2 || a[0] != '-' {
			break
		}
		if a == "--" {
			i++
			break
		}
		for _, c := range a[1:] {
			switch c {
			case 'r':
				attrs |= vars.AttrReadonly
			case 'x':
				attrs |= vars.AttrExported
			case 'i':
				attrs |= vars.AttrInteger
			case 'l':
				attrs |= vars.AttrLowercase
			case 'u':
				attrs |= vars.AttrUppercase
			case 'a':
				wantArray = true
			case 'A':
				wantAssoc = true
			case 'n':
				wantNameref = true
			case 'p':
				wantPrint = true
			case 'g':
				// global: declare already defaults to Set's dynamic-scope
				// rule outside a function; accepted for compatibility.
			default:
				return 2, fmt.Errorf("declare: -%c: invalid option", c)
			}
		}
	}
	rest := args[i:]
	if wantPrint || len(rest) == 0 {
		printDeclared(ctx, rest)
		return 0, nil
	}
	for _, item := range rest {
		name, value, hasValue := strings.Cut(item, "=")
		switch {
		case wantNameref:
			if hasValue {
				if err := ctx.Vars.DeclareNameref(name, value); err != nil {
					fmt.Fprintln(ctx.Streams.Stderr, err)
					return 1, nil
				}
			} else {
				// Attribute only; the first assignment to the reference
				// then names its target.
				ctx.Vars.SetAttr(name, vars.AttrNameref)
			}
		case wantArray:
			ctx.Vars.DeclareIndexedArray(name, nil, attrs)
		case wantAssoc:
			ctx.Vars.DeclareAssocArray(name, nil, attrs)
		default:
			ctx.Vars.SetAttr(name, 0) // ensure a binding exists before attrs apply
			for _, a := range attrBits(attrs) {
				ctx.Vars.SetAttr(name, a)
			}
			if hasValue {
				var err error
				if local {
					err = ctx.Vars.SetLocal(name, value)
				} else {
					err = ctx.Vars.Set(name, value)
				}
				if err != nil {
					return 1, err
				}
			} else if local {
				ctx.Vars.SetLocal(name, "")
			}
		}
	}
	return 0, nil
}

func attrBits(a vars.Attr) []vars.Attr {
	var out []vars.Attr
	for _, bit := range []vars.Attr{vars.AttrReadonly, vars.AttrExported, vars.AttrInteger, vars.AttrLowercase, vars.AttrUppercase} {
		if a.Has(bit) {
			out = append(out, bit)
		}
	}
	return out
}

func printDeclared(ctx *Context, names []string) {
	if len(names) == 0 {
		names = ctx.Vars.NamesWithPrefix("")
		sort.Strings(names)
	}
	for _, name := range names {
		// LookupDirect: `declare -p ref` must show the reference binding
		// itself, not the variable it points at.
		v, ok := ctx.Vars.LookupDirect(name)
		if !ok {
			continue
		}
		fmt.Fprintf(ctx.Streams.Stdout, "declare %s%s=%s\n", declareFlags(v.Attrs), name, declareValue(v))
	}
}

func declareFlags(a vars.Attr) string {
	var sb strings.Builder
	sb.WriteString("-")
	if a == 0 {
		return "--"
	}
	if a.Has(vars.AttrIndexedArray) {
		sb.WriteByte('a')
	}
	if a.Has(vars.AttrAssocArray) {
		sb.WriteByte('A')
	}
	if a.Has(vars.AttrReadonly) {
		sb.WriteByte('r')
	}
	if a.Has(vars.AttrExported) {
		sb.WriteByte('x')
	}
	if a.Has(vars.AttrInteger) {
		sb.WriteByte('i')
	}
	if a.Has(vars.AttrLowercase) {
		sb.WriteByte('l')
	}
	if a.Has(vars.AttrUppercase) {
		sb.WriteByte('u')
	}
	if a.Has(vars.AttrNameref) {
		sb.WriteByte('n')
	}
	if sb.Len() == 1 {
		return "--"
	}
	return sb.String()
}

func declareValue(v *vars.Variable) string {
	switch v.Kind {
	case vars.KindIndexedArray:
		keys := v.IndexedKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("[%d]=%q", k, v.Indexed[k])
		}
		return "(" + strings.Join(parts, " ") + ")"
	case vars.KindAssocArray:
		keys := v.AssocKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("[%s]=%q", k, v.Assoc[k])
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return fmt.Sprintf("%q", v.Scalar)
	}
}
